package commands

import (
	"fmt"
	"log/slog"
	"sort"

	"github.com/spf13/cobra"

	"github.com/dashlift/dashlift/internal/translator"
	"github.com/dashlift/dashlift/internal/validation"
	"github.com/dashlift/dashlift/internal/workbook"
)

var (
	validateLocal   bool
	validateTable   string
	validateSampleN int
)

var validateCmd = &cobra.Command{
	Use:   "validate <workbook.twbx>",
	Short: "Validate translated calculations against data",
	Long: `Validate translates every calculated field and checks the results.

The expression target of each calculation is evaluated against sample
data bundled in the archive. With --local that is the whole check.
Without it, the SQL target is also run against the warehouse named by
DASHLIFT_DATABASE_URL (a .env file is honored) and compared against
the sample result within the configured tolerance.

One failing calculation never stops the rest of the batch.`,
	Args: cobra.ExactArgs(1),
	RunE: runValidate,
}

func init() {
	validateCmd.Flags().BoolVar(&validateLocal, "local", false, "Skip the warehouse and only evaluate against bundled sample data")
	validateCmd.Flags().StringVar(&validateTable, "table", "orders", "Warehouse table to run metric queries against")
	validateCmd.Flags().IntVar(&validateSampleN, "sample-rows", 1000, "Rows of sample data to load per sheet")
}

func runValidate(cmd *cobra.Command, args []string) error {
	archive, err := workbook.OpenArchive(args[0])
	if err != nil {
		return err
	}
	defer archive.Close()

	s, err := archive.Workbook()
	if err != nil {
		return err
	}
	if len(s.Calculations) == 0 {
		fmt.Println("No calculations to validate.")
		return nil
	}

	tables, err := archive.SampleTables(validateSampleN)
	if err != nil {
		return err
	}
	if len(tables) == 0 {
		return fmt.Errorf("archive carries no sample data to validate against")
	}
	table := tables[0]
	slog.Debug("using sample table", "file", table.Name, "sheet", table.Sheet, "rows", len(table.Rows))

	tr := translator.New(nil)
	ev := validation.NewLocalEvaluator()

	type expectation struct {
		name  string
		sql   string
		value float64
	}
	var expected []expectation
	manual := 0
	for _, name := range sortedCalcNames(s) {
		res := tr.Translate(s.Calculations[name].Formula)
		if res.Expr == "" || res.IsWindowFunction {
			manual++
			fmt.Printf("MANUAL %s: no local evaluation for this calculation\n", name)
			continue
		}
		out, err := ev.Evaluate(res.Expr, table)
		if err != nil {
			manual++
			fmt.Printf("MANUAL %s: %v\n", name, err)
			continue
		}
		fmt.Printf("OK     %s = %v (sample data)\n", name, out)
		value, ok := out.(float64)
		if ok && res.RequiresAggregation && res.SQL != "" {
			expected = append(expected, expectation{name: name, sql: res.SQL, value: value})
		}
	}
	fmt.Printf("\n%d evaluated locally, %d need manual implementation\n",
		len(s.Calculations)-manual, manual)

	if validateLocal {
		return nil
	}
	if len(expected) == 0 {
		fmt.Println("No aggregated calculations to check against the warehouse.")
		return nil
	}

	cfg, err := validation.LoadConfig()
	if err != nil {
		return err
	}
	v, err := validation.Open(cmd.Context(), cfg)
	if err != nil {
		return err
	}
	defer v.Close()

	metrics := make([]validation.Metric, 0, len(expected))
	for _, e := range expected {
		metrics = append(metrics, validation.Metric{
			Name:     e.name,
			SQL:      fmt.Sprintf("SELECT %s FROM %s", e.sql, validateTable),
			Expected: e.value,
		})
	}

	fmt.Println()
	results := v.ValidateAll(cmd.Context(), metrics)
	for _, r := range results {
		if r.Err != nil {
			fmt.Printf("FAIL %s: %v\n", r.Metric, r.Err)
			continue
		}
		fmt.Printf("OK   %s = %g (warehouse)\n", r.Metric, r.Actual)
	}
	if failed := validation.Failures(results); len(failed) > 0 {
		return fmt.Errorf("%d of %d warehouse metrics failed", len(failed), len(results))
	}
	return nil
}

func sortedCalcNames(s *workbook.Structure) []string {
	names := make([]string, 0, len(s.Calculations))
	for name := range s.Calculations {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
