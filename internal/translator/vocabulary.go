package translator

import (
	"regexp"
	"strings"
)

// Mapping holds the target-language equivalents of one calculation
// function. An empty string means the function has no direct mapping
// for that target and the affected expression is left for manual
// implementation.
type Mapping struct {
	Expr   string
	Pandas string
	SQL    string
}

// ForTarget returns the mapping form for the given target.
func (m Mapping) ForTarget(t Target) string {
	switch t {
	case TargetExpr:
		return m.Expr
	case TargetPandas:
		return m.Pandas
	case TargetSQL:
		return m.SQL
	}
	return ""
}

// Vocabulary is the static function table injected into every
// Translator. It is built once at startup and never mutated, so
// concurrent lookups need no synchronization.
type Vocabulary struct {
	names    []string           // canonical spellings, table order
	mappings map[string]Mapping // canonical name -> mapping
	folders  []*regexp.Regexp   // case-insensitive matcher per name, same order as names
}

// NewVocabulary builds an immutable vocabulary from the given entries.
// Entry order is preserved for rewriting passes.
func NewVocabulary(names []string, mappings map[string]Mapping) *Vocabulary {
	v := &Vocabulary{
		names:    append([]string(nil), names...),
		mappings: make(map[string]Mapping, len(mappings)),
		folders:  make([]*regexp.Regexp, 0, len(names)),
	}
	for name, m := range mappings {
		v.mappings[name] = m
	}
	for _, name := range v.names {
		v.folders = append(v.folders, regexp.MustCompile(`(?i)\b`+regexp.QuoteMeta(name)+`\b`))
	}
	return v
}

// Lookup returns the mapping for a canonical function name.
func (v *Vocabulary) Lookup(name string) (Mapping, bool) {
	m, ok := v.mappings[strings.ToUpper(name)]
	return m, ok
}

// Names returns the canonical function names in table order.
func (v *Vocabulary) Names() []string {
	return v.names
}

// Fold rewrites every case-insensitive occurrence of each vocabulary
// name in the formula to its canonical uppercase spelling. All later
// rewriting passes match on exact-case names, so this must run first.
func (v *Vocabulary) Fold(formula string) string {
	for i, name := range v.names {
		formula = v.folders[i].ReplaceAllString(formula, name)
	}
	return formula
}

// aggregationNames are the function names whose presence marks a
// formula as requiring aggregation.
var aggregationNames = []string{"SUM", "AVG", "COUNT", "COUNTD", "MIN", "MAX", "MEDIAN", "STDEV", "VAR"}

// windowNames are the name prefixes/names whose presence marks a
// formula as windowed.
var windowNames = []string{"RUNNING_", "WINDOW_", "RANK", "INDEX", "FIRST", "LAST"}

// DefaultVocabulary returns the full function table. The expr column
// names helpers registered by the local evaluator; the pandas column
// uses method / accessor / operator forms; the SQL column follows the
// warehouse dialect.
func DefaultVocabulary() *Vocabulary {
	type entry struct {
		name string
		m    Mapping
	}
	table := []entry{
		// Aggregation functions
		{"SUM", Mapping{"sum", "sum()", "SUM"}},
		{"AVG", Mapping{"mean", "mean()", "AVG"}},
		{"COUNTD", Mapping{"countd", "nunique()", "COUNT(DISTINCT"}},
		{"COUNT", Mapping{"count", "count()", "COUNT"}},
		{"MEDIAN", Mapping{"median", "median()", "MEDIAN"}},
		{"MIN", Mapping{"min", "min()", "MIN"}},
		{"MAX", Mapping{"max", "max()", "MAX"}},
		{"STDEV", Mapping{"stdev", "std()", "STDDEV"}},
		{"VAR", Mapping{"variance", "var()", "VARIANCE"}},

		// Mathematical functions
		{"ABS", Mapping{"abs", "abs", "ABS"}},
		{"ROUND", Mapping{"round", "round", "ROUND"}},
		{"CEILING", Mapping{"ceil", "ceil", "CEIL"}},
		{"FLOOR", Mapping{"floor", "floor", "FLOOR"}},
		{"SQRT", Mapping{"sqrt", "sqrt", "SQRT"}},
		{"POWER", Mapping{"pow", "pow", "POWER"}},
		{"EXP", Mapping{"exp", "exp", "EXP"}},
		{"LOG", Mapping{"log", "log", "LOG"}},
		{"LN", Mapping{"log", "log", "LN"}},

		// String functions
		{"LEN", Mapping{"len", "str.len()", "LENGTH"}},
		{"LOWER", Mapping{"lower", "str.lower()", "LOWER"}},
		{"UPPER", Mapping{"upper", "str.upper()", "UPPER"}},
		{"TRIM", Mapping{"trim", "str.strip()", "TRIM"}},
		{"LTRIM", Mapping{"ltrim", "str.lstrip()", "LTRIM"}},
		{"RTRIM", Mapping{"rtrim", "str.rstrip()", "RTRIM"}},
		{"CONTAINS", Mapping{"contains", "str.contains", "LIKE"}},
		{"STARTSWITH", Mapping{"startsWith", "str.startswith", "LIKE"}},
		{"ENDSWITH", Mapping{"endsWith", "str.endswith", "LIKE"}},
		{"REPLACE", Mapping{"replace", "str.replace", "REPLACE"}},
		{"SPLIT", Mapping{"split", "str.split", "SPLIT_PART"}},
		{"LEFT", Mapping{"", "str.slice", "LEFT"}},
		{"RIGHT", Mapping{"", "", "RIGHT"}},
		{"MID", Mapping{"", "str.slice", "SUBSTRING"}},

		// Date functions
		{"TODAY", Mapping{"now()", "pd.Timestamp.today()", "CURRENT_DATE"}},
		{"NOW", Mapping{"now()", "pd.Timestamp.now()", "CURRENT_TIMESTAMP"}},
		{"YEAR", Mapping{"year", "dt.year", "YEAR"}},
		{"MONTH", Mapping{"month", "dt.month", "MONTH"}},
		{"DAY", Mapping{"day", "dt.day", "DAY"}},
		{"QUARTER", Mapping{"quarter", "dt.quarter", "QUARTER"}},
		{"WEEK", Mapping{"week", "dt.isocalendar().week", "WEEK"}},
		{"DATEPART", Mapping{"", "", "DATE_PART"}},
		{"DATEADD", Mapping{"", "", "DATEADD"}},
		{"DATEDIFF", Mapping{"", "", "DATEDIFF"}},
		{"DATETRUNC", Mapping{"", "dt.floor", "DATE_TRUNC"}},

		// Logical functions
		{"IIF", Mapping{"", "", ""}},
		{"ISNULL", Mapping{"isnil", "isna()", "IS NULL"}},
		{"IFNULL", Mapping{"coalesce", "fillna", "COALESCE"}},
		{"ZN", Mapping{"zn", "fillna(0)", "COALESCE"}},
		{"AND", Mapping{"and", "&", "AND"}},
		{"OR", Mapping{"or", "|", "OR"}},
		{"NOT", Mapping{"not", "~", "NOT"}},

		// Window functions
		{"RUNNING_SUM", Mapping{"", "cumsum()", "SUM() OVER"}},
		{"RUNNING_AVG", Mapping{"", "expanding().mean()", "AVG() OVER"}},
		{"WINDOW_SUM", Mapping{"", "rolling().sum()", "SUM() OVER"}},
		{"WINDOW_AVG", Mapping{"", "rolling().mean()", "AVG() OVER"}},
		{"RANK", Mapping{"", "rank()", "RANK() OVER"}},
		{"INDEX", Mapping{"", "index", "ROW_NUMBER() OVER"}},
		{"FIRST", Mapping{"", "first()", "FIRST_VALUE() OVER"}},
		{"LAST", Mapping{"", "last()", "LAST_VALUE() OVER"}},
	}

	names := make([]string, 0, len(table))
	mappings := make(map[string]Mapping, len(table))
	for _, e := range table {
		names = append(names, e.name)
		mappings[e.name] = e.m
	}
	return NewVocabulary(names, mappings)
}
