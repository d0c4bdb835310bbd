// Package workbook reads Tableau workbook archives (.twbx) and
// extracts the pieces the conversion pipeline needs: calculated
// fields, datasources, worksheets, dashboards and parameters.
package workbook

// Calculation is a calculated field declared on a datasource column.
type Calculation struct {
	Name         string
	Caption      string
	Formula      string
	Role         string // dimension or measure
	DataType     string // string, integer, real, date, ...
	Aggregation  string
	Dependencies []string // bracketed field names referenced by the formula
	IsLOD        bool
	LODType      string // FIXED, INCLUDE or EXCLUDE when IsLOD
}

// Connection describes one datasource connection.
type Connection struct {
	Class     string `xml:"class,attr"`
	DBName    string `xml:"dbname,attr"`
	Server    string `xml:"server,attr"`
	Warehouse string `xml:"warehouse,attr"`
	Schema    string `xml:"schema,attr"`
	Filename  string `xml:"filename,attr"`
}

// Column is a datasource column declaration.
type Column struct {
	Name        string
	Caption     string
	DataType    string
	Role        string
	Type        string
	Aggregation string
}

// Datasource is one datasource in the workbook, with its connections,
// plain columns and calculated fields.
type Datasource struct {
	Name         string
	Caption      string
	Inline       bool
	Connections  []Connection
	Columns      []Column
	Calculations []Calculation
}

// Mark is a visualization mark with its field encodings.
type Mark struct {
	Class     string
	Encodings map[string]string // encoding attr -> field
}

// Filter is a worksheet filter.
type Filter struct {
	Class  string
	Column string
}

// Worksheet is one sheet with the fields it shows.
type Worksheet struct {
	Name        string
	Title       string
	Datasources []string // datasource names this sheet depends on
	Fields      []string // fields referenced anywhere in the sheet
	Marks       []Mark
	Filters     []Filter
}

// Zone is one layout zone of a dashboard.
type Zone struct {
	Type string
	Name string
	X, Y int
	W, H int
}

// Dashboard is a dashboard layout referencing worksheets.
type Dashboard struct {
	Name       string
	Title      string
	Worksheets []string
	Zones      []Zone
	Width      int
	Height     int
}

// Parameter is a workbook parameter declaration.
type Parameter struct {
	Name         string
	Caption      string
	DataType     string
	CurrentValue string
}

// Structure is the extracted content of one workbook.
type Structure struct {
	Version      string
	Platform     string
	Datasources  []Datasource
	Calculations map[string]Calculation // keyed by column name
	Worksheets   map[string]Worksheet
	Dashboards   map[string]Dashboard
	Parameters   []Parameter
}

// CalculationFormulas returns the name-to-formula mapping consumed by
// the dependency graph and the batch translator.
func (s *Structure) CalculationFormulas() map[string]string {
	out := make(map[string]string, len(s.Calculations))
	for name, calc := range s.Calculations {
		out[name] = calc.Formula
	}
	return out
}
