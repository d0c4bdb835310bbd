package validation

import (
	"fmt"
	"math"
	"sort"
	"strconv"
	"time"

	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"

	"github.com/dashlift/dashlift/internal/workbook"
)

// LocalEvaluator runs the general-purpose expression target of a
// translation against sample rows, without any database. Column data
// is exposed as `data`, a map from field name to value slice, plus
// aggregation helpers matching the translated function names.
type LocalEvaluator struct {
	helpers map[string]any
}

func NewLocalEvaluator() *LocalEvaluator {
	return &LocalEvaluator{helpers: helperFuncs()}
}

// Evaluate compiles and runs one expression over a sample table. A
// compile failure means the calculation needs a manual implementation;
// the returned error says so and wraps the cause.
func (e *LocalEvaluator) Evaluate(src string, table workbook.Table) (any, error) {
	env := e.environment(table)
	program, err := e.compile(src, env)
	if err != nil {
		return nil, err
	}
	out, err := expr.Run(program, env)
	if err != nil {
		return nil, fmt.Errorf("evaluating %q: %w", src, err)
	}
	return out, nil
}

// Check compiles an expression without running it, reporting whether a
// manual implementation is needed.
func (e *LocalEvaluator) Check(src string, table workbook.Table) error {
	_, err := e.compile(src, e.environment(table))
	return err
}

func (e *LocalEvaluator) compile(src string, env map[string]any) (*vm.Program, error) {
	program, err := expr.Compile(src, expr.Env(env))
	if err != nil {
		return nil, fmt.Errorf("needs manual implementation: %w", err)
	}
	return program, nil
}

func (e *LocalEvaluator) environment(table workbook.Table) map[string]any {
	env := make(map[string]any, len(e.helpers)+1)
	for name, fn := range e.helpers {
		env[name] = fn
	}
	env["data"] = columnize(table)
	return env
}

// columnize turns row-oriented sample data into column slices,
// parsing values as numbers where every cell of a column parses.
func columnize(table workbook.Table) map[string]any {
	cols := make(map[string]any, len(table.Columns))
	for _, name := range table.Columns {
		raw := make([]string, len(table.Rows))
		nums := make([]float64, len(table.Rows))
		numeric := len(table.Rows) > 0
		for i, row := range table.Rows {
			raw[i] = row[name]
			if numeric {
				f, err := strconv.ParseFloat(row[name], 64)
				if err != nil {
					numeric = false
					continue
				}
				nums[i] = f
			}
		}
		if numeric {
			cols[name] = nums
		} else {
			cols[name] = raw
		}
	}
	return cols
}

func helperFuncs() map[string]any {
	return map[string]any{
		"sum": func(v any) float64 {
			var total float64
			for _, f := range toFloats(v) {
				total += f
			}
			return total
		},
		"mean": func(v any) float64 {
			fs := toFloats(v)
			if len(fs) == 0 {
				return 0
			}
			var total float64
			for _, f := range fs {
				total += f
			}
			return total / float64(len(fs))
		},
		"count": func(v any) int {
			return valueLen(v)
		},
		"countd": func(v any) int {
			seen := make(map[string]bool)
			for _, s := range toStrings(v) {
				seen[s] = true
			}
			return len(seen)
		},
		"median": func(v any) float64 {
			fs := append([]float64(nil), toFloats(v)...)
			if len(fs) == 0 {
				return 0
			}
			sort.Float64s(fs)
			mid := len(fs) / 2
			if len(fs)%2 == 0 {
				return (fs[mid-1] + fs[mid]) / 2
			}
			return fs[mid]
		},
		"stdev": func(v any) float64 {
			return math.Sqrt(variance(toFloats(v)))
		},
		"variance": func(v any) float64 {
			return variance(toFloats(v))
		},
		"sqrt": math.Sqrt,
		"pow":  math.Pow,
		"exp":  math.Exp,
		"log":  math.Log,
		"zn": func(v any) float64 {
			if v == nil {
				return 0
			}
			f, _ := toFloat(v)
			return f
		},
		"coalesce": func(a, b any) any {
			if a == nil {
				return b
			}
			return a
		},
		"isnil": func(v any) bool {
			return v == nil || v == ""
		},
		"year":    datePart(func(t time.Time) int { return t.Year() }),
		"month":   datePart(func(t time.Time) int { return int(t.Month()) }),
		"day":     datePart(func(t time.Time) int { return t.Day() }),
		"quarter": datePart(func(t time.Time) int { return (int(t.Month())-1)/3 + 1 }),
		"week":    datePart(func(t time.Time) int { _, w := t.ISOWeek(); return w }),
		"now": func() time.Time {
			return time.Now()
		},
		// Scoped aggregations cannot be reproduced row-by-row here;
		// the inner value passes through as an approximation.
		"lod": func(mode string, dims []any, value any) any {
			return value
		},
	}
}

func variance(fs []float64) float64 {
	if len(fs) < 2 {
		return 0
	}
	var total float64
	for _, f := range fs {
		total += f
	}
	mean := total / float64(len(fs))
	var sq float64
	for _, f := range fs {
		sq += (f - mean) * (f - mean)
	}
	return sq / float64(len(fs)-1)
}

var dateLayouts = []string{
	"2006-01-02", "2006-01-02 15:04:05", time.RFC3339, "01/02/2006", "1/2/2006",
}

func datePart(part func(time.Time) int) func(any) int {
	return func(v any) int {
		switch t := v.(type) {
		case time.Time:
			return part(t)
		case string:
			for _, layout := range dateLayouts {
				if parsed, err := time.Parse(layout, t); err == nil {
					return part(parsed)
				}
			}
		}
		return 0
	}
}

func toFloat(v any) (float64, bool) {
	switch f := v.(type) {
	case float64:
		return f, true
	case int:
		return float64(f), true
	case string:
		parsed, err := strconv.ParseFloat(f, 64)
		return parsed, err == nil
	}
	return 0, false
}

func toFloats(v any) []float64 {
	switch vals := v.(type) {
	case []float64:
		return vals
	case []any:
		out := make([]float64, 0, len(vals))
		for _, item := range vals {
			if f, ok := toFloat(item); ok {
				out = append(out, f)
			}
		}
		return out
	case []string:
		out := make([]float64, 0, len(vals))
		for _, s := range vals {
			if f, err := strconv.ParseFloat(s, 64); err == nil {
				out = append(out, f)
			}
		}
		return out
	}
	if f, ok := toFloat(v); ok {
		return []float64{f}
	}
	return nil
}

func toStrings(v any) []string {
	switch vals := v.(type) {
	case []string:
		return vals
	case []float64:
		out := make([]string, len(vals))
		for i, f := range vals {
			out[i] = strconv.FormatFloat(f, 'g', -1, 64)
		}
		return out
	case []any:
		out := make([]string, len(vals))
		for i, item := range vals {
			out[i] = fmt.Sprint(item)
		}
		return out
	}
	return []string{fmt.Sprint(v)}
}

func valueLen(v any) int {
	switch vals := v.(type) {
	case []float64:
		return len(vals)
	case []string:
		return len(vals)
	case []any:
		return len(vals)
	}
	return 1
}
