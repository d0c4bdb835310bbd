package generator

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dashlift/dashlift/internal/translator"
	"github.com/dashlift/dashlift/internal/workbook"
)

func fixtureStructure() *workbook.Structure {
	return &workbook.Structure{
		Calculations: map[string]workbook.Calculation{
			"Profit Ratio": {
				Name:         "Profit Ratio",
				Formula:      "SUM([Profit]) / SUM([Sales])",
				DataType:     "real",
				Role:         "measure",
				Dependencies: []string{"Profit", "Sales"},
			},
			"Running Sales": {
				Name:         "Running Sales",
				Formula:      "RUNNING_SUM([Sales])",
				DataType:     "real",
				Role:         "measure",
				Dependencies: []string{"Sales"},
			},
			"Customer Avg": {
				Name:         "Customer Avg",
				Formula:      "{ INCLUDE [Customer] : AVG([Sales]) }",
				DataType:     "real",
				Role:         "measure",
				Dependencies: []string{"Customer", "Sales"},
				IsLOD:        true,
				LODType:      "INCLUDE",
			},
		},
		Datasources: []workbook.Datasource{
			{
				Name:    "superstore",
				Caption: "Superstore",
				Connections: []workbook.Connection{
					{Class: "postgres", Server: "db.local", DBName: "analytics", Schema: "public"},
				},
				Columns: []workbook.Column{
					{Name: "[Sales]", Role: "measure", DataType: "real"},
					{Name: "[Profit]", Role: "measure", DataType: "real"},
					{Name: "[Region]", Role: "dimension", DataType: "string"},
					{Name: "[Customer]", Role: "dimension", DataType: "string"},
				},
			},
		},
		Worksheets: map[string]workbook.Worksheet{
			"Sales by Region": {Name: "Sales by Region"},
		},
		Dashboards: map[string]workbook.Dashboard{
			"Overview": {Name: "Overview", Title: "Overview", Width: 1000, Height: 700},
		},
	}
}

func TestGenerateFiles(t *testing.T) {
	g, err := New(translator.New(nil))
	require.NoError(t, err)

	app, err := g.Generate(fixtureStructure())
	require.NoError(t, err)

	for _, path := range []string{
		"app.py",
		"utils/data_loader.py",
		"utils/calculations.py",
		"utils/filters.py",
		"utils/__init__.py",
		"requirements.txt",
		"README.md",
		".env.template",
	} {
		assert.Contains(t, app.Files, path)
	}
	assert.Equal(t, "Overview", app.Name)
}

func TestGenerateCalculations(t *testing.T) {
	g, err := New(nil)
	require.NoError(t, err)

	app, err := g.Generate(fixtureStructure())
	require.NoError(t, err)
	calcs := app.Files["utils/calculations.py"]

	// Aggregated calculation reduces to a scalar.
	assert.Contains(t, calcs, "def calculate_profit_ratio(self, df):")
	assert.Contains(t, calcs, "return float(df['Profit'].sum() / df['Sales'].sum())")

	// Window calculation keeps the series.
	assert.Contains(t, calcs, "def calculate_running_sales(self, df):")
	assert.Contains(t, calcs, "return df['Sales'].cumsum()")
	assert.NotContains(t, calcs, "float(df['Sales'].cumsum())")

	// Unresolvable scoped calculation becomes an explicit stub.
	assert.Contains(t, calcs, "def calculate_customer_avg(self, df):")
	assert.Contains(t, calcs, "raise NotImplementedError")

	// Source formulas survive in the docstrings.
	assert.Contains(t, calcs, "SUM([Profit]) / SUM([Sales])")
}

func TestGenerateAppMetrics(t *testing.T) {
	g, err := New(nil)
	require.NoError(t, err)

	app, err := g.Generate(fixtureStructure())
	require.NoError(t, err)
	main := app.Files["app.py"]

	assert.Contains(t, main, `st.set_page_config`)
	assert.Contains(t, main, `page_title="Overview"`)
	// Only the aggregated, fully-translated calculation becomes a metric.
	assert.Contains(t, main, "calculate_profit_ratio")
	assert.NotContains(t, main, `st.metric("Running Sales"`)
	assert.NotContains(t, main, `st.metric("Customer Avg"`)
}

func TestGenerateFilters(t *testing.T) {
	g, err := New(nil)
	require.NoError(t, err)

	app, err := g.Generate(fixtureStructure())
	require.NoError(t, err)
	filters := app.Files["utils/filters.py"]

	assert.Contains(t, filters, `"Region"`)
	assert.Contains(t, filters, `"Customer"`)
	assert.Contains(t, filters, "st.multiselect")
	// Measures never become filters.
	assert.NotContains(t, filters, `"Sales" in data.columns`)
}

func TestGenerateDataQuery(t *testing.T) {
	g, err := New(nil)
	require.NoError(t, err)

	app, err := g.Generate(fixtureStructure())
	require.NoError(t, err)
	loader := app.Files["utils/data_loader.py"]

	assert.Contains(t, loader, `"Sales"`)
	assert.Contains(t, loader, `"Region"`)
	assert.Contains(t, loader, "FROM public.ORDERS")
	// Calculations are computed locally, never selected.
	assert.NotContains(t, loader, `"Profit Ratio"`)
}

func TestGenerateWithoutDashboard(t *testing.T) {
	s := fixtureStructure()
	s.Dashboards = nil

	g, err := New(nil)
	require.NoError(t, err)
	app, err := g.Generate(s)
	require.NoError(t, err)
	assert.Equal(t, "Generated Dashboard", app.Name)
}

func TestAppWrite(t *testing.T) {
	g, err := New(nil)
	require.NoError(t, err)
	app, err := g.Generate(fixtureStructure())
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, app.Write(dir))

	for _, rel := range app.Paths() {
		data, err := os.ReadFile(filepath.Join(dir, filepath.FromSlash(rel)))
		require.NoError(t, err)
		assert.Equal(t, app.Files[rel], string(data))
	}
}

func TestInitRepo(t *testing.T) {
	g, err := New(nil)
	require.NoError(t, err)
	app, err := g.Generate(fixtureStructure())
	require.NoError(t, err)

	dir := t.TempDir()
	require.NoError(t, app.Write(dir))
	require.NoError(t, InitRepo(dir, "initial import"))

	info, err := os.Stat(filepath.Join(dir, ".git"))
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}
