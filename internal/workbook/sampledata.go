package workbook

import (
	"io"
	"path"
	"strings"

	"github.com/xuri/excelize/v2"

	"github.com/dashlift/dashlift/lifterr"
)

// Table is sample data read from a bundled spreadsheet, one row per
// record keyed by header name. Used by the local validator to evaluate
// translated expressions against real values.
type Table struct {
	Name    string
	Sheet   string
	Columns []string
	Rows    []map[string]string
}

// SampleTables reads every bundled .xlsx entry into tables, one per
// sheet. The first row of a sheet is its header; sheets without a
// header row are skipped. maxRows caps the records read per sheet,
// zero means no cap.
func (a *Archive) SampleTables(maxRows int) ([]Table, error) {
	var tables []Table
	for _, name := range a.DataEntries() {
		if strings.ToLower(path.Ext(name)) != ".xlsx" {
			continue
		}
		rc, err := a.open(name)
		if err != nil {
			return nil, err
		}
		entry, err := readWorkbookTables(name, rc, maxRows)
		rc.Close()
		if err != nil {
			return nil, err
		}
		tables = append(tables, entry...)
	}
	return tables, nil
}

func readWorkbookTables(name string, r io.Reader, maxRows int) ([]Table, error) {
	f, err := excelize.OpenReader(r)
	if err != nil {
		return nil, lifterr.NewParseErrorInArchive(name, "", "unreadable spreadsheet: "+err.Error())
	}
	defer f.Close()

	var tables []Table
	for _, sheet := range f.GetSheetList() {
		rows, err := f.GetRows(sheet)
		if err != nil {
			return nil, lifterr.NewParseErrorInArchive(name, sheet, err.Error())
		}
		if len(rows) < 2 {
			continue
		}
		header := rows[0]
		table := Table{Name: name, Sheet: sheet, Columns: header}
		for _, row := range rows[1:] {
			if maxRows > 0 && len(table.Rows) >= maxRows {
				break
			}
			record := make(map[string]string, len(header))
			for i, col := range header {
				if i < len(row) {
					record[col] = row[i]
				} else {
					record[col] = ""
				}
			}
			table.Rows = append(table.Rows, record)
		}
		tables = append(tables, table)
	}
	return tables, nil
}
