package commands

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dashlift/dashlift/internal/depgraph"
	"github.com/dashlift/dashlift/internal/translator"
	"github.com/dashlift/dashlift/internal/workbook"
)

var orderCmd = &cobra.Command{
	Use:   "order <workbook.twbx>",
	Short: "Print the evaluation order of calculated fields",
	Args:  cobra.ExactArgs(1),
	RunE:  runOrder,
}

func runOrder(cmd *cobra.Command, args []string) error {
	archive, err := workbook.OpenArchive(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	s, err := archive.Workbook()
	if err != nil {
		return err
	}

	graph := depgraph.Build(s.CalculationFormulas(), translator.ExtractFieldRefs)
	order, err := graph.EvaluationOrder()
	if err != nil {
		var cycleErr *depgraph.CycleError
		if errors.As(err, &cycleErr) {
			return fmt.Errorf("%w\nbreak the cycle before converting", cycleErr)
		}
		return err
	}

	fmt.Printf("Evaluation order (%d calculations):\n", len(order))
	for i, name := range order {
		fmt.Printf("  %d. %s\n", i+1, name)
	}
	if cols := graph.Columns(); len(cols) > 0 {
		fmt.Printf("\nRequired columns: %s\n", strings.Join(cols, ", "))
	}
	return nil
}
