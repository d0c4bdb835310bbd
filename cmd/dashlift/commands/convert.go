package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/dashlift/dashlift/internal/generator"
	"github.com/dashlift/dashlift/internal/translator"
	"github.com/dashlift/dashlift/internal/workbook"
)

var (
	convertOutput  string
	convertGitInit bool
)

var convertCmd = &cobra.Command{
	Use:   "convert <workbook.twbx>",
	Short: "Generate a Streamlit app from a workbook",
	Long: `Convert reads a .twbx archive, translates every calculated field
and writes a runnable Streamlit application to the output directory.

Examples:
  dashlift convert workbook.twbx -o ./app
  dashlift convert workbook.twbx -o ./app --git-init`,
	Args: cobra.ExactArgs(1),
	RunE: runConvert,
}

func init() {
	convertCmd.Flags().StringVarP(&convertOutput, "output", "o", "app", "Output directory for the generated app")
	convertCmd.Flags().BoolVar(&convertGitInit, "git-init", false, "Initialize the output directory as a git repository")
}

func runConvert(cmd *cobra.Command, args []string) error {
	archive, err := workbook.OpenArchive(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	structure, err := archive.Workbook()
	if err != nil {
		return err
	}
	slog.Debug("workbook parsed",
		"calculations", len(structure.Calculations),
		"worksheets", len(structure.Worksheets),
		"dashboards", len(structure.Dashboards))

	gen, err := generator.New(translator.New(nil))
	if err != nil {
		return err
	}
	app, err := gen.Generate(structure)
	if err != nil {
		return err
	}
	if err := app.Write(convertOutput); err != nil {
		return err
	}
	if convertGitInit {
		if err := generator.InitRepo(convertOutput, "Generated dashboard from "+args[0]); err != nil {
			return err
		}
	}

	fmt.Printf("Generated %q with %d files in %s\n", app.Name, len(app.Files), convertOutput)
	return nil
}
