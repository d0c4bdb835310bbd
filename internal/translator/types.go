// Package translator converts workbook calculation formulas into the
// three target expression languages consumed by the rest of the
// pipeline: expr (evaluated in-process), pandas (spliced into the
// generated app) and SQL (run against the warehouse).
package translator

// Target identifies one of the output expression languages.
type Target int

const (
	// TargetExpr is the general-purpose expression target (expr-lang
	// syntax, evaluated against sample rows by the local validator).
	TargetExpr Target = iota
	// TargetPandas is the table-processing target spliced into the
	// generated application's calculation engine.
	TargetPandas
	// TargetSQL is the query-language target used for warehouse
	// validation.
	TargetSQL
)

func (t Target) String() string {
	switch t {
	case TargetExpr:
		return "expr"
	case TargetPandas:
		return "pandas"
	case TargetSQL:
		return "sql"
	}
	return "unknown"
}

// Result is the immutable outcome of translating one formula. Any of
// the three expression strings may be empty, signaling that no
// translation is available for that target and the calculation needs a
// manual implementation there.
type Result struct {
	// Formula is the normalized input formula.
	Formula string

	Expr   string
	Pandas string
	SQL    string

	// Dependencies holds the de-duplicated bracketed field names
	// referenced by the formula.
	Dependencies []string

	// RequiresAggregation is true when an aggregation function name
	// appears anywhere in the formula. This is a substring containment
	// test, not a tokenized one; a field literally named [SUMOFSALES]
	// is misclassified. Known imprecision, kept to stay in agreement
	// with the rest of the pipeline.
	RequiresAggregation bool

	// IsWindowFunction is true when a running/windowed function name
	// appears in the formula. Same containment caveat as above.
	IsWindowFunction bool

	// NeedsReview is set when the formula uses an INCLUDE or EXCLUDE
	// scoped aggregation and the enclosing view's dimensions were not
	// supplied, so the emitted grouping is a best-effort approximation.
	NeedsReview bool
}

// ForTarget returns the expression string for the given target.
func (r Result) ForTarget(t Target) string {
	switch t {
	case TargetExpr:
		return r.Expr
	case TargetPandas:
		return r.Pandas
	case TargetSQL:
		return r.SQL
	}
	return ""
}
