package commands

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/dashlift/dashlift/internal/translator"
)

var translateDims []string

var translateCmd = &cobra.Command{
	Use:   "translate <formula>",
	Short: "Translate one formula into all target languages",
	Long: `Translate prints the pandas, SQL and expression renditions of a
single formula, plus its dependencies and classification flags.

Examples:
  dashlift translate 'SUM([Sales])'
  dashlift translate '{ INCLUDE [Customer] : AVG([Sales]) }' --dims Region`,
	Args: cobra.ExactArgs(1),
	RunE: runTranslate,
}

func init() {
	translateCmd.Flags().StringSliceVar(&translateDims, "dims", nil,
		"View dimensions for resolving INCLUDE/EXCLUDE scopes")
}

func runTranslate(cmd *cobra.Command, args []string) error {
	tr := translator.New(nil)

	var res translator.Result
	if len(translateDims) > 0 {
		res = tr.TranslateInContext(args[0], translateDims)
	} else {
		res = tr.Translate(args[0])
	}

	fmt.Printf("formula: %s\n", res.Formula)
	fmt.Printf("expr:    %s\n", res.Expr)
	fmt.Printf("pandas:  %s\n", res.Pandas)
	fmt.Printf("sql:     %s\n", res.SQL)
	fmt.Printf("depends: %s\n", strings.Join(res.Dependencies, ", "))
	fmt.Printf("aggregation: %t  window: %t\n", res.RequiresAggregation, res.IsWindowFunction)
	if res.NeedsReview {
		fmt.Println("needs review: INCLUDE/EXCLUDE scope without view dimensions (pass --dims)")
	}
	return nil
}
