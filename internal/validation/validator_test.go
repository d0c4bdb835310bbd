package validation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashlift/dashlift/lifterr"
)

func TestCompare(t *testing.T) {
	tests := []struct {
		name      string
		expected  float64
		actual    float64
		tolerance float64
		valid     bool
	}{
		{"exact", 100, 100, 0.01, true},
		{"within tolerance", 100, 100.5, 0.01, true},
		{"outside tolerance", 100, 103, 0.01, false},
		{"negative values", -100, -100.5, 0.01, true},
		{"zero expected small actual", 0, 1e-12, 0.01, true},
		{"zero expected large actual", 0, 5, 0.01, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			valid, diff := Compare(tt.expected, tt.actual, tt.tolerance)
			assert.Equal(t, tt.valid, valid)
			assert.GreaterOrEqual(t, diff, 0.0)
		})
	}
}

func TestFailures(t *testing.T) {
	results := []Result{
		{Metric: "ok", Valid: true},
		{Metric: "off", Valid: false, Err: lifterr.NewValidationError("off", "too far")},
		{Metric: "broken", Err: lifterr.NewValidationError("broken", "query failed")},
	}

	failed := Failures(results)
	require.Len(t, failed, 2)
	assert.Equal(t, "off", failed[0].Metric)
	assert.Equal(t, "broken", failed[1].Metric)
}

func TestCollectErrors(t *testing.T) {
	assert.NoError(t, CollectErrors([]Result{{Metric: "ok", Valid: true}}))

	err := CollectErrors([]Result{
		{Metric: "ok", Valid: true},
		{Metric: "bad", Valid: false, Err: lifterr.NewValidationError("bad", "off by a mile")},
	})
	require.Error(t, err)

	merr, ok := err.(*lifterr.MultiError)
	require.True(t, ok)
	assert.Len(t, merr.Errors, 1)
	assert.Contains(t, err.Error(), "bad")
}

func TestLoadConfig(t *testing.T) {
	t.Setenv("DASHLIFT_DATABASE_URL", "postgres://u:p@localhost/warehouse")
	t.Setenv("DASHLIFT_TOLERANCE", "0.05")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, "postgres://u:p@localhost/warehouse", cfg.DSN)
	assert.Equal(t, 0.05, cfg.Tolerance)
}

func TestLoadConfigDefaults(t *testing.T) {
	t.Setenv("DASHLIFT_DATABASE_URL", "postgres://u:p@localhost/warehouse")
	t.Setenv("DASHLIFT_TOLERANCE", "")

	cfg, err := LoadConfig()
	require.NoError(t, err)
	assert.Equal(t, DefaultTolerance, cfg.Tolerance)
}

func TestLoadConfigMissingDSN(t *testing.T) {
	t.Setenv("DASHLIFT_DATABASE_URL", "")
	t.Setenv("DATABASE_URL", "")

	_, err := LoadConfig()
	require.Error(t, err)
}

func TestLoadConfigBadTolerance(t *testing.T) {
	t.Setenv("DASHLIFT_DATABASE_URL", "postgres://u:p@localhost/warehouse")
	t.Setenv("DASHLIFT_TOLERANCE", "lots")

	_, err := LoadConfig()
	require.Error(t, err)
}
