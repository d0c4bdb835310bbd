// Package fields maps workbook field names to identifiers usable in
// generated code. Generated identifiers are snake_case, steer clear of
// the target language's keywords and must be unique per mapper.
package fields

import (
	"encoding/json"
	"fmt"
	"regexp"
	"sort"
	"strings"

	"github.com/dashlift/dashlift/internal/workbook"
)

// Mapping ties one workbook field to its generated identifier.
type Mapping struct {
	Field      string `json:"field"`       // original field name, brackets stripped
	Display    string `json:"display"`     // human-readable label
	Identifier string `json:"identifier"`  // generated snake_case name
	FieldType  string `json:"field_type"`  // calculation, dimension, measure, parameter
	DataType   string `json:"data_type"`   // string, integer, real, boolean, date
	Valid      bool   `json:"valid"`
	Problem    string `json:"problem,omitempty"`
}

// reservedIdentifiers are names the generated Python code already uses
// plus the language's keywords.
var reservedIdentifiers = map[string]bool{
	"False": true, "None": true, "True": true, "and": true, "as": true,
	"assert": true, "async": true, "await": true, "break": true,
	"class": true, "continue": true, "def": true, "del": true,
	"elif": true, "else": true, "except": true, "finally": true,
	"for": true, "from": true, "global": true, "if": true,
	"import": true, "in": true, "is": true, "lambda": true,
	"nonlocal": true, "not": true, "or": true, "pass": true,
	"raise": true, "return": true, "try": true, "while": true,
	"with": true, "yield": true,
	"data": true, "df": true, "result": true, "value": true, "index": true,
}

// Mapper holds the mappings for one workbook conversion.
type Mapper struct {
	mappings map[string]*Mapping // keyed by original field name
}

func NewMapper() *Mapper {
	return &Mapper{mappings: make(map[string]*Mapping)}
}

// FromWorkbook builds mappings for every calculation, datasource
// column and parameter in the structure, then validates them all.
func FromWorkbook(s *workbook.Structure) *Mapper {
	m := NewMapper()

	names := make([]string, 0, len(s.Calculations))
	for name := range s.Calculations {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		calc := s.Calculations[name]
		m.add(name, "calculation", calc.DataType)
	}

	for _, ds := range s.Datasources {
		for _, col := range ds.Columns {
			if _, isCalc := s.Calculations[strings.Trim(col.Name, "[]")]; isCalc {
				continue
			}
			fieldType := "measure"
			if col.Role == "dimension" {
				fieldType = "dimension"
			}
			m.add(col.Name, fieldType, col.DataType)
		}
	}

	for _, param := range s.Parameters {
		m.add(param.Name, "parameter", param.DataType)
	}

	m.revalidate()
	return m
}

func (m *Mapper) add(field, fieldType, dataType string) {
	field = strings.Trim(field, "[]")
	if field == "" || m.mappings[field] != nil {
		return
	}
	if dataType == "" {
		dataType = "string"
	}
	m.mappings[field] = &Mapping{
		Field:      field,
		Display:    DisplayName(field),
		Identifier: Identifier(field),
		FieldType:  fieldType,
		DataType:   dataType,
	}
}

var (
	nonWordChars  = regexp.MustCompile(`[^\w\s]`)
	spaceRuns     = regexp.MustCompile(`\s+`)
	underscoreRun = regexp.MustCompile(`_+`)
)

// Identifier derives a snake_case identifier from a field name.
func Identifier(field string) string {
	cleaned := strings.Trim(field, "[]\"'")
	id := nonWordChars.ReplaceAllString(cleaned, "_")
	id = spaceRuns.ReplaceAllString(id, "_")
	id = strings.ToLower(id)
	id = underscoreRun.ReplaceAllString(id, "_")
	id = strings.Trim(id, "_")

	if id == "" {
		return "unnamed_field"
	}
	if id[0] >= '0' && id[0] <= '9' {
		id = "field_" + id
	}
	if reservedIdentifiers[id] {
		id += "_field"
	}
	return id
}

// DisplayName derives a human-readable label from a field name.
func DisplayName(field string) string {
	cleaned := strings.Trim(field, "[]\"'")
	cleaned = strings.ReplaceAll(cleaned, "_", " ")
	return spaceRuns.ReplaceAllString(strings.TrimSpace(cleaned), " ")
}

var identifierPattern = regexp.MustCompile(`^[a-zA-Z_]\w*$`)

// revalidate re-checks every mapping: identifier shape, reserved
// words and duplicates across the whole set.
func (m *Mapper) revalidate() {
	used := make(map[string]string) // identifier -> first field using it
	fields := m.sortedFields()
	for _, field := range fields {
		mapping := m.mappings[field]
		mapping.Valid = true
		mapping.Problem = ""
		switch {
		case !identifierPattern.MatchString(mapping.Identifier):
			mapping.Valid = false
			mapping.Problem = fmt.Sprintf("%q is not a valid identifier", mapping.Identifier)
		case reservedIdentifiers[mapping.Identifier]:
			mapping.Valid = false
			mapping.Problem = fmt.Sprintf("%q is a reserved name", mapping.Identifier)
		case used[mapping.Identifier] != "":
			mapping.Valid = false
			mapping.Problem = fmt.Sprintf("%q already used for field %q",
				mapping.Identifier, used[mapping.Identifier])
		default:
			used[mapping.Identifier] = field
		}
	}
}

func (m *Mapper) sortedFields() []string {
	fields := make([]string, 0, len(m.mappings))
	for field := range m.mappings {
		fields = append(fields, field)
	}
	sort.Strings(fields)
	return fields
}

// Get returns the mapping for a field, or nil.
func (m *Mapper) Get(field string) *Mapping {
	return m.mappings[strings.Trim(field, "[]")]
}

// IdentifierFor returns the identifier for a field, deriving one on
// the fly when the field was never mapped or its mapping is invalid.
func (m *Mapper) IdentifierFor(field string) string {
	if mapping := m.Get(field); mapping != nil && mapping.Valid {
		return mapping.Identifier
	}
	return Identifier(field)
}

// Update renames a field's identifier. The change is rejected, and
// reverted, when it would collide or produce an invalid name.
func (m *Mapper) Update(field, identifier string) error {
	mapping := m.Get(field)
	if mapping == nil {
		return fmt.Errorf("no mapping for field %q", field)
	}
	old := mapping.Identifier
	mapping.Identifier = identifier
	m.revalidate()
	if !mapping.Valid {
		problem := mapping.Problem
		mapping.Identifier = old
		m.revalidate()
		return fmt.Errorf("rejected identifier %q for field %q: %s", identifier, field, problem)
	}
	return nil
}

// All returns every mapping sorted by field name.
func (m *Mapper) All() []Mapping {
	out := make([]Mapping, 0, len(m.mappings))
	for _, field := range m.sortedFields() {
		out = append(out, *m.mappings[field])
	}
	return out
}

// Invalid returns the mappings that failed validation.
func (m *Mapper) Invalid() []Mapping {
	var out []Mapping
	for _, field := range m.sortedFields() {
		if !m.mappings[field].Valid {
			out = append(out, *m.mappings[field])
		}
	}
	return out
}

type exportFile struct {
	Version  string    `json:"version"`
	Mappings []Mapping `json:"mappings"`
}

// Export serializes the mapping set to JSON.
func (m *Mapper) Export() ([]byte, error) {
	return json.MarshalIndent(exportFile{Version: "1.0", Mappings: m.All()}, "", "  ")
}

// Import replaces the mapping set with one previously exported and
// revalidates everything.
func (m *Mapper) Import(data []byte) error {
	var file exportFile
	if err := json.Unmarshal(data, &file); err != nil {
		return fmt.Errorf("unreadable mapping file: %w", err)
	}
	m.mappings = make(map[string]*Mapping, len(file.Mappings))
	for i := range file.Mappings {
		mapping := file.Mappings[i]
		m.mappings[mapping.Field] = &mapping
	}
	m.revalidate()
	return nil
}
