// Package export renders query results as a terminal table, CSV, JSON or
// an XLSX workbook.
package export

import (
	"encoding/csv"
	"encoding/json"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/charmbracelet/lipgloss"
	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
)

// Format is an output format.
type Format string

const (
	FormatTable Format = "table"
	FormatCSV   Format = "csv"
	FormatJSON  Format = "json"
	FormatXLSX  Format = "xlsx"
)

// ParseFormat accepts table, csv, json and xlsx (case-insensitive).
func ParseFormat(s string) (Format, error) {
	switch f := Format(strings.ToLower(strings.TrimSpace(s))); f {
	case FormatTable, FormatCSV, FormatJSON, FormatXLSX:
		return f, nil
	case "":
		return FormatTable, nil
	default:
		return "", eris.Errorf("export: unknown format %q", s)
	}
}

// Table is a rectangular result with a header row.
type Table struct {
	Title  string
	Header []string
	Rows   [][]string
}

var titleStyle = lipgloss.NewStyle().Bold(true)

// Write renders t in format f. JSON output encodes v instead of t so nested
// values survive.
func Write(w io.Writer, f Format, t Table, v any) error {
	switch f {
	case FormatTable:
		return WriteTable(w, t)
	case FormatCSV:
		return WriteCSV(w, t)
	case FormatJSON:
		return WriteJSON(w, v)
	case FormatXLSX:
		return WriteXLSX(w, t)
	default:
		return eris.Errorf("export: unknown format %q", f)
	}
}

// WriteTable writes t as aligned columns.
func WriteTable(w io.Writer, t Table) error {
	if t.Title != "" {
		if _, err := io.WriteString(w, titleStyle.Render(t.Title)+"\n"); err != nil {
			return eris.Wrap(err, "export: write title")
		}
	}
	tw := tabwriter.NewWriter(w, 2, 0, 3, ' ', 0)
	if _, err := io.WriteString(tw, strings.Join(t.Header, "\t")+"\n"); err != nil {
		return eris.Wrap(err, "export: write header")
	}
	for _, row := range t.Rows {
		if _, err := io.WriteString(tw, strings.Join(row, "\t")+"\n"); err != nil {
			return eris.Wrap(err, "export: write row")
		}
	}
	return eris.Wrap(tw.Flush(), "export: flush table")
}

// WriteCSV writes t as CSV with a header line.
func WriteCSV(w io.Writer, t Table) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Header); err != nil {
		return eris.Wrap(err, "export: write csv header")
	}
	if err := cw.WriteAll(t.Rows); err != nil {
		return eris.Wrap(err, "export: write csv rows")
	}
	return nil
}

// WriteJSON writes v as indented JSON.
func WriteJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return eris.Wrap(enc.Encode(v), "export: encode json")
}

// WriteXLSX writes t as a one-sheet workbook. The sheet is named after the
// title.
func WriteXLSX(w io.Writer, t Table) error {
	f := xlsx.NewFile()
	name := t.Title
	if name == "" {
		name = "Sheet1"
	}
	if len(name) > 31 {
		name = name[:31]
	}
	sheet, err := f.AddSheet(name)
	if err != nil {
		return eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range t.Header {
		header.AddCell().SetString(h)
	}
	for _, r := range t.Rows {
		row := sheet.AddRow()
		for _, v := range r {
			row.AddCell().SetString(v)
		}
	}
	return eris.Wrap(f.Write(w), "export: write xlsx")
}
