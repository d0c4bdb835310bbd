// Package commands provides the CLI commands for the dashlift tool.
package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
)

var verbose bool

var rootCmd = &cobra.Command{
	Use:   "dashlift",
	Short: "Convert Tableau workbooks into Streamlit dashboards",
	Long: `dashlift reads Tableau .twbx workbook archives, translates their
calculated fields into pandas, SQL and in-process expressions, and
generates a runnable Streamlit application.

Usage:
  dashlift convert workbook.twbx -o ./app    Generate an app from a workbook
  dashlift inspect workbook.twbx             Show extracted structure
  dashlift translate 'SUM([Sales])'          Translate a single formula
  dashlift order workbook.twbx               Print calculation evaluation order
  dashlift validate workbook.twbx            Validate translations against data`,
	SilenceErrors: true,
	SilenceUsage:  true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelWarn
		if verbose {
			level = slog.LevelDebug
		}
		slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
	},
}

// Execute runs the root command.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "Error:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(convertCmd)
	rootCmd.AddCommand(inspectCmd)
	rootCmd.AddCommand(translateCmd)
	rootCmd.AddCommand(orderCmd)
	rootCmd.AddCommand(validateCmd)
	rootCmd.AddCommand(versionCmd)
}
