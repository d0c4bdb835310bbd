package workbook

import (
	"encoding/xml"
	"io"
	"regexp"
	"strconv"
	"strings"

	"github.com/dashlift/dashlift/internal/translator"
	"github.com/dashlift/dashlift/lifterr"
)

// lodPattern detects level-of-detail expressions and their mode. The
// opening brace may be followed by whitespace.
var lodPattern = regexp.MustCompile(`(?i)\{\s*(FIXED|INCLUDE|EXCLUDE)\b`)

// Parse reads workbook XML and extracts its structure. Elements are
// matched by local name at any depth, since the schema nests
// differently across workbook versions.
func Parse(r io.Reader) (*Structure, error) {
	dec := xml.NewDecoder(r)
	dec.CharsetReader = charsetReader

	s := &Structure{
		Calculations: make(map[string]Calculation),
		Worksheets:   make(map[string]Worksheet),
		Dashboards:   make(map[string]Dashboard),
	}

	sawWorkbook := false
	for {
		tok, err := dec.Token()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, lifterr.NewParseError("malformed workbook XML: " + err.Error())
		}
		el, ok := tok.(xml.StartElement)
		if !ok {
			continue
		}
		switch el.Name.Local {
		case "workbook":
			sawWorkbook = true
			s.Version = attr(el, "version")
		case "source":
			if s.Platform == "" {
				s.Platform = attr(el, "platform")
			}
		case "datasource":
			ds, err := parseDatasource(dec, el)
			if err != nil {
				return nil, err
			}
			if ds.Name == "Parameters" || ds.Caption == "Parameters" {
				for _, col := range ds.Columns {
					s.Parameters = append(s.Parameters, Parameter{
						Name:     col.Name,
						Caption:  col.Caption,
						DataType: col.DataType,
					})
				}
				continue
			}
			s.Datasources = append(s.Datasources, ds)
			for _, calc := range ds.Calculations {
				s.Calculations[calc.Name] = calc
			}
		case "worksheet":
			ws, err := parseWorksheet(dec, el)
			if err != nil {
				return nil, err
			}
			s.Worksheets[ws.Name] = ws
		case "dashboard":
			dash, err := parseDashboard(dec, el)
			if err != nil {
				return nil, err
			}
			s.Dashboards[dash.Name] = dash
		}
	}
	if !sawWorkbook {
		return nil, lifterr.NewParseError("no workbook element found")
	}
	return s, nil
}

func parseDatasource(dec *xml.Decoder, start xml.StartElement) (Datasource, error) {
	ds := Datasource{
		Name:    attr(start, "name"),
		Caption: attr(start, "caption"),
		Inline:  attr(start, "inline") == "true",
	}

	var curColumn *Column
	var curCalc *Calculation
	err := walkSubtree(dec, func(el xml.StartElement) {
		switch el.Name.Local {
		case "connection":
			conn := Connection{
				Class:     attr(el, "class"),
				DBName:    attr(el, "dbname"),
				Server:    attr(el, "server"),
				Warehouse: attr(el, "warehouse"),
				Schema:    attr(el, "schema"),
				Filename:  attr(el, "filename"),
			}
			ds.Connections = append(ds.Connections, conn)
		case "column":
			ds.Columns = append(ds.Columns, Column{
				Name:        attr(el, "name"),
				Caption:     attr(el, "caption"),
				DataType:    attr(el, "datatype"),
				Role:        attr(el, "role"),
				Type:        attr(el, "type"),
				Aggregation: attr(el, "aggregation"),
			})
			curColumn = &ds.Columns[len(ds.Columns)-1]
			curCalc = nil
		case "calculation":
			if curColumn == nil {
				return
			}
			formula := attr(el, "formula")
			calc := Calculation{
				Name:         strings.Trim(curColumn.Name, "[]"),
				Caption:      curColumn.Caption,
				Formula:      formula,
				Role:         curColumn.Role,
				DataType:     curColumn.DataType,
				Aggregation:  curColumn.Aggregation,
				Dependencies: translator.ExtractFieldRefs(formula),
			}
			if m := lodPattern.FindStringSubmatch(formula); m != nil {
				calc.IsLOD = true
				calc.LODType = strings.ToUpper(m[1])
			}
			curCalc = &calc
		}
	}, func(el xml.EndElement) {
		if el.Name.Local == "column" {
			if curCalc != nil && curCalc.Formula != "" {
				ds.Calculations = append(ds.Calculations, *curCalc)
			}
			curColumn = nil
			curCalc = nil
		}
	})
	return ds, err
}

func parseWorksheet(dec *xml.Decoder, start xml.StartElement) (Worksheet, error) {
	ws := Worksheet{
		Name:  attr(start, "name"),
		Title: attr(start, "formatted-name"),
	}
	if ws.Title == "" {
		ws.Title = ws.Name
	}
	seenDS := make(map[string]bool)
	seenField := make(map[string]bool)
	addField := func(name string) {
		if name != "" && !seenField[name] {
			seenField[name] = true
			ws.Fields = append(ws.Fields, name)
		}
	}

	err := walkSubtree(dec, func(el xml.StartElement) {
		switch el.Name.Local {
		case "datasource-dependencies":
			if name := attr(el, "datasource"); name != "" && !seenDS[name] {
				seenDS[name] = true
				ws.Datasources = append(ws.Datasources, name)
			}
		case "filter":
			ws.Filters = append(ws.Filters, Filter{
				Class:  attr(el, "class"),
				Column: attr(el, "column"),
			})
			addField(attr(el, "column"))
		case "mark":
			ws.Marks = append(ws.Marks, Mark{
				Class:     attr(el, "class"),
				Encodings: make(map[string]string),
			})
		case "encoding":
			if len(ws.Marks) > 0 {
				mark := &ws.Marks[len(ws.Marks)-1]
				mark.Encodings[attr(el, "attr")] = attr(el, "field")
			}
			addField(attr(el, "field"))
		case "column":
			addField(attr(el, "name"))
		default:
			addField(attr(el, "field"))
			addField(attr(el, "column"))
		}
	}, nil)
	return ws, err
}

func parseDashboard(dec *xml.Decoder, start xml.StartElement) (Dashboard, error) {
	dash := Dashboard{
		Name:   attr(start, "name"),
		Title:  attr(start, "formatted-name"),
		Width:  800,
		Height: 600,
	}
	if dash.Title == "" {
		dash.Title = dash.Name
	}
	err := walkSubtree(dec, func(el xml.StartElement) {
		switch el.Name.Local {
		case "zone":
			zone := Zone{
				Type: attr(el, "type"),
				Name: attr(el, "name"),
				X:    atoi(attr(el, "x")),
				Y:    atoi(attr(el, "y")),
				W:    atoi(attr(el, "w")),
				H:    atoi(attr(el, "h")),
			}
			dash.Zones = append(dash.Zones, zone)
			if zone.Type == "worksheet" && zone.Name != "" {
				dash.Worksheets = append(dash.Worksheets, zone.Name)
			}
		case "size":
			if w := atoi(attr(el, "width")); w > 0 {
				dash.Width = w
			}
			if h := atoi(attr(el, "height")); h > 0 {
				dash.Height = h
			}
		}
	}, nil)
	return dash, err
}

// walkSubtree feeds every element inside the already-consumed start
// element to the callbacks and stops at the matching end element.
func walkSubtree(dec *xml.Decoder, onStart func(xml.StartElement), onEnd func(xml.EndElement)) error {
	depth := 1
	for depth > 0 {
		tok, err := dec.Token()
		if err != nil {
			return lifterr.NewParseError("malformed workbook XML: " + err.Error())
		}
		switch el := tok.(type) {
		case xml.StartElement:
			depth++
			if onStart != nil {
				onStart(el)
			}
		case xml.EndElement:
			depth--
			if depth > 0 && onEnd != nil {
				onEnd(el)
			}
		}
	}
	return nil
}

func attr(el xml.StartElement, name string) string {
	for _, a := range el.Attr {
		if a.Name.Local == name {
			return a.Value
		}
	}
	return ""
}

func atoi(s string) int {
	n, _ := strconv.Atoi(s)
	return n
}
