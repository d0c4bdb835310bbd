// Package validation checks translated calculations against real
// data: the SQL target against a live warehouse, the expression
// target against sample rows bundled in the workbook archive.
package validation

import (
	"context"
	"database/sql"
	"fmt"
	"math"
	"os"
	"strconv"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"

	"github.com/dashlift/dashlift/lifterr"
)

// DefaultTolerance is the relative difference accepted between an
// expected and a computed metric value.
const DefaultTolerance = 0.01

// Config carries warehouse connection settings.
type Config struct {
	DSN       string
	Tolerance float64
}

// LoadConfig reads settings from the environment, loading a .env file
// first when one exists.
func LoadConfig() (Config, error) {
	_ = godotenv.Load()

	cfg := Config{
		DSN:       os.Getenv("DASHLIFT_DATABASE_URL"),
		Tolerance: DefaultTolerance,
	}
	if cfg.DSN == "" {
		cfg.DSN = os.Getenv("DATABASE_URL")
	}
	if cfg.DSN == "" {
		return Config{}, fmt.Errorf("DASHLIFT_DATABASE_URL is not set")
	}
	if raw := os.Getenv("DASHLIFT_TOLERANCE"); raw != "" {
		tol, err := strconv.ParseFloat(raw, 64)
		if err != nil || tol < 0 {
			return Config{}, fmt.Errorf("invalid DASHLIFT_TOLERANCE %q", raw)
		}
		cfg.Tolerance = tol
	}
	return cfg, nil
}

// Metric is one check to run against the warehouse: the SQL scalar
// expression of a translated calculation and its expected value.
type Metric struct {
	Name      string
	SQL       string
	Expected  float64
	Tolerance float64 // zero means the validator default
}

// Result is the outcome of validating one metric.
type Result struct {
	Metric     string
	Valid      bool
	Expected   float64
	Actual     float64
	Difference float64
	Err        error
}

// Validator runs metric checks over one database handle.
type Validator struct {
	db        *sql.DB
	tolerance float64
}

// Open connects to the warehouse described by cfg.
func Open(ctx context.Context, cfg Config) (*Validator, error) {
	db, err := sql.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("opening warehouse connection: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return nil, fmt.Errorf("warehouse unreachable: %w", err)
	}
	return NewValidator(db, cfg.Tolerance), nil
}

// NewValidator wraps an existing handle, used by tests.
func NewValidator(db *sql.DB, tolerance float64) *Validator {
	if tolerance <= 0 {
		tolerance = DefaultTolerance
	}
	return &Validator{db: db, tolerance: tolerance}
}

func (v *Validator) Close() error {
	return v.db.Close()
}

// ValidateMetric runs one metric query and compares its first scalar
// against the expected value.
func (v *Validator) ValidateMetric(ctx context.Context, m Metric) Result {
	res := Result{Metric: m.Name, Expected: m.Expected}

	var actual sql.NullFloat64
	if err := v.db.QueryRowContext(ctx, m.SQL).Scan(&actual); err != nil {
		res.Err = lifterr.NewValidationError(m.Name, "query failed: "+err.Error())
		return res
	}
	if !actual.Valid {
		res.Err = lifterr.NewValidationError(m.Name, "query returned NULL")
		return res
	}

	tolerance := m.Tolerance
	if tolerance <= 0 {
		tolerance = v.tolerance
	}
	res.Actual = actual.Float64
	res.Valid, res.Difference = Compare(m.Expected, actual.Float64, tolerance)
	if !res.Valid {
		res.Err = lifterr.NewValidationError(m.Name,
			fmt.Sprintf("expected %g, got %g (diff %g, tolerance %g)",
				m.Expected, actual.Float64, res.Difference, tolerance))
	}
	return res
}

// ValidateAll checks every metric. A failing metric never stops the
// batch; its Result carries the failure instead.
func (v *Validator) ValidateAll(ctx context.Context, metrics []Metric) []Result {
	results := make([]Result, 0, len(metrics))
	for _, m := range metrics {
		results = append(results, v.ValidateMetric(ctx, m))
	}
	return results
}

// Compare reports whether actual is within the relative tolerance of
// expected, and the absolute difference.
func Compare(expected, actual, tolerance float64) (bool, float64) {
	diff := math.Abs(actual - expected)
	scale := math.Max(math.Abs(expected), 1e-10)
	return diff/scale <= tolerance, diff
}

// Failures filters a result set down to the failing entries.
func Failures(results []Result) []Result {
	var failed []Result
	for _, r := range results {
		if r.Err != nil || !r.Valid {
			failed = append(failed, r)
		}
	}
	return failed
}

// CollectErrors merges every failure into one error, or nil when all
// metrics passed.
func CollectErrors(results []Result) error {
	merr := &lifterr.MultiError{}
	for _, r := range Failures(results) {
		if r.Err != nil {
			merr.Add(r.Err)
		}
	}
	if merr.HasErrors() {
		return merr
	}
	return nil
}
