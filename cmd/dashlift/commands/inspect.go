package commands

import (
	"fmt"
	"sort"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dashlift/dashlift/internal/workbook"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect <workbook.twbx>",
	Short: "Show the extracted structure of a workbook",
	Args:  cobra.ExactArgs(1),
	RunE:  runInspect,
}

func runInspect(cmd *cobra.Command, args []string) error {
	archive, err := workbook.OpenArchive(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	s, err := archive.Workbook()
	if err != nil {
		return err
	}

	fmt.Printf("Workbook version %s\n\n", s.Version)

	fmt.Printf("Data sources (%d):\n", len(s.Datasources))
	for _, src := range workbook.DetectSources(s) {
		marker := " "
		if src.Primary {
			marker = "*"
		}
		fmt.Printf("  %s %s (%s)\n", marker, src.Caption, src.ConnectionType)
	}

	fmt.Printf("\nCalculations (%d):\n", len(s.Calculations))
	names := make([]string, 0, len(s.Calculations))
	for name := range s.Calculations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		calc := s.Calculations[name]
		fmt.Printf("  %s = %s\n", name, calc.Formula)
		if calc.IsLOD {
			fmt.Printf("    LOD: %s\n", calc.LODType)
		}
		if len(calc.Dependencies) > 0 {
			fmt.Printf("    depends on: %s\n", strings.Join(calc.Dependencies, ", "))
		}
	}

	fmt.Printf("\nWorksheets (%d):\n", len(s.Worksheets))
	wsNames := make([]string, 0, len(s.Worksheets))
	for name := range s.Worksheets {
		wsNames = append(wsNames, name)
	}
	sort.Strings(wsNames)
	for _, name := range wsNames {
		fmt.Printf("  %s\n", name)
	}

	fmt.Printf("\nDashboards (%d):\n", len(s.Dashboards))
	dashNames := make([]string, 0, len(s.Dashboards))
	for name := range s.Dashboards {
		dashNames = append(dashNames, name)
	}
	sort.Strings(dashNames)
	for _, name := range dashNames {
		dash := s.Dashboards[name]
		fmt.Printf("  %s (%dx%d, %d worksheets)\n", name, dash.Width, dash.Height, len(dash.Worksheets))
	}

	if len(s.Parameters) > 0 {
		fmt.Printf("\nParameters (%d):\n", len(s.Parameters))
		for _, p := range s.Parameters {
			fmt.Printf("  %s (%s)\n", p.Caption, p.DataType)
		}
	}
	return nil
}
