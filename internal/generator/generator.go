// Package generator renders a runnable Streamlit dashboard package
// from an extracted workbook: the app shell, a calculation engine with
// the translated expressions spliced in, a data loader, filters and
// project files.
package generator

import (
	"embed"
	"fmt"
	"sort"
	"strings"
	"text/template"

	"github.com/dashlift/dashlift/internal/fields"
	"github.com/dashlift/dashlift/internal/translator"
	"github.com/dashlift/dashlift/internal/workbook"
)

//go:embed templates/*.tmpl
var templateFS embed.FS

// CalcSpec is one calculation prepared for rendering.
type CalcSpec struct {
	Identifier string
	Display    string
	Formula    string
	Expression string // pandas expression, empty when untranslatable
	Aggregated bool
	Windowed   bool
	Manual     bool // no usable translation, stub raises instead
}

// FilterSpec is one sidebar filter over a dimension column.
type FilterSpec struct {
	Identifier string
	Display    string
	Column     string
}

// appData is the render context shared by all templates.
type appData struct {
	Title        string
	Description  string
	Calculations []CalcSpec
	Metrics      []CalcSpec // aggregated, non-windowed calculations
	Filters      []FilterSpec
	Columns      []string
	DataQuery    string
	SourceName   string
}

// App is a rendered application: relative path to file contents.
type App struct {
	Name  string
	Files map[string]string
}

// Generator renders apps from workbook structures.
type Generator struct {
	tr  *translator.Translator
	tpl *template.Template
}

func New(tr *translator.Translator) (*Generator, error) {
	if tr == nil {
		tr = translator.New(nil)
	}
	tpl, err := template.ParseFS(templateFS, "templates/*.tmpl")
	if err != nil {
		return nil, fmt.Errorf("parsing templates: %w", err)
	}
	return &Generator{tr: tr, tpl: tpl}, nil
}

// Generate renders the full application for a workbook structure.
func (g *Generator) Generate(s *workbook.Structure) (*App, error) {
	mapper := fields.FromWorkbook(s)
	data := g.prepare(s, mapper)

	app := &App{Name: data.Title, Files: make(map[string]string)}
	renders := map[string]string{
		"app.py":                "app.py.tmpl",
		"utils/data_loader.py":  "data_loader.py.tmpl",
		"utils/calculations.py": "calculations.py.tmpl",
		"utils/filters.py":      "filters.py.tmpl",
		"requirements.txt":      "requirements.txt.tmpl",
		"README.md":             "readme.md.tmpl",
		".env.template":         "env.tmpl",
	}
	for path, name := range renders {
		var sb strings.Builder
		if err := g.tpl.ExecuteTemplate(&sb, name, data); err != nil {
			return nil, fmt.Errorf("rendering %s: %w", path, err)
		}
		app.Files[path] = sb.String()
	}
	app.Files["utils/__init__.py"] = ""
	return app, nil
}

func (g *Generator) prepare(s *workbook.Structure, mapper *fields.Mapper) appData {
	data := appData{
		Title:       "Generated Dashboard",
		Description: "Dashboard converted from a Tableau workbook.",
	}
	if dash := firstDashboard(s); dash != nil {
		data.Title = dash.Title
	}

	names := make([]string, 0, len(s.Calculations))
	for name := range s.Calculations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		calc := s.Calculations[name]
		res := g.tr.Translate(calc.Formula)
		spec := CalcSpec{
			Identifier: mapper.IdentifierFor(name),
			Display:    name,
			Formula:    calc.Formula,
			Expression: res.Pandas,
			Aggregated: res.RequiresAggregation,
			Windowed:   res.IsWindowFunction,
			Manual:     res.Pandas == "" || res.NeedsReview,
		}
		data.Calculations = append(data.Calculations, spec)
		if spec.Aggregated && !spec.Windowed && !spec.Manual {
			data.Metrics = append(data.Metrics, spec)
		}
	}

	data.Filters = dimensionFilters(s, mapper)
	data.Columns = dataColumns(s)
	data.DataQuery = buildQuery(s, data.Columns)
	if src := workbook.RecommendedSource(workbook.DetectSources(s)); src != nil {
		data.SourceName = src.Caption
	}
	return data
}

func firstDashboard(s *workbook.Structure) *workbook.Dashboard {
	names := make([]string, 0, len(s.Dashboards))
	for name := range s.Dashboards {
		names = append(names, name)
	}
	if len(names) == 0 {
		return nil
	}
	sort.Strings(names)
	dash := s.Dashboards[names[0]]
	return &dash
}

// dimensionFilters builds one filter per string-typed dimension column.
func dimensionFilters(s *workbook.Structure, mapper *fields.Mapper) []FilterSpec {
	var filters []FilterSpec
	seen := make(map[string]bool)
	for _, ds := range s.Datasources {
		for _, col := range ds.Columns {
			name := strings.Trim(col.Name, "[]")
			if col.Role != "dimension" || col.DataType != "string" || seen[name] {
				continue
			}
			if _, isCalc := s.Calculations[name]; isCalc {
				continue
			}
			seen[name] = true
			filters = append(filters, FilterSpec{
				Identifier: mapper.IdentifierFor(name),
				Display:    fields.DisplayName(name),
				Column:     name,
			})
		}
	}
	sort.Slice(filters, func(i, j int) bool { return filters[i].Column < filters[j].Column })
	return filters
}

// dataColumns lists the raw columns the app needs: every non-calculated
// datasource column plus every column a calculation depends on.
func dataColumns(s *workbook.Structure) []string {
	seen := make(map[string]bool)
	var cols []string
	add := func(name string) {
		name = strings.Trim(name, "[]")
		if name == "" || seen[name] {
			return
		}
		if _, isCalc := s.Calculations[name]; isCalc {
			return
		}
		seen[name] = true
		cols = append(cols, name)
	}
	for _, ds := range s.Datasources {
		for _, col := range ds.Columns {
			add(col.Name)
		}
	}
	for _, calc := range s.Calculations {
		for _, dep := range calc.Dependencies {
			add(dep)
		}
	}
	sort.Strings(cols)
	return cols
}

func buildQuery(s *workbook.Structure, cols []string) string {
	table := "ORDERS"
	if src := workbook.RecommendedSource(workbook.DetectSources(s)); src != nil && src.Schema != "" {
		table = src.Schema + ".ORDERS"
	}
	if len(cols) == 0 {
		return "SELECT * FROM " + table
	}
	quoted := make([]string, len(cols))
	for i, c := range cols {
		quoted[i] = `"` + c + `"`
	}
	return "SELECT " + strings.Join(quoted, ", ") + " FROM " + table
}
