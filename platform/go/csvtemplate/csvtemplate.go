// Package csvtemplate defines the downloadable import templates and parses uploaded CSV files
// against them.
package csvtemplate

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
)

const ContentType = "text/csv; charset=utf-8"

// MaxRows bounds a single import.
const MaxRows = 5000

var (
	ErrMissingHeader = errors.New("csv header row is missing")
	ErrTooManyRows   = fmt.Errorf("csv import is limited to %d rows", MaxRows)
)

// Column is one importable field.
type Column struct {
	Name     string
	Example  string
	Required bool
}

// Template is a named column layout.
type Template struct {
	Name    string
	Columns []Column
}

var (
	Leads = Template{
		Name: "leads.csv",
		Columns: []Column{
			{Name: "fullName", Example: "Asha Rao", Required: true},
			{Name: "email", Example: "asha.rao@example.com"},
			{Name: "phone", Example: "+91 98200 12345"},
			{Name: "source", Example: "website"},
			{Name: "status", Example: "new"},
			{Name: "budget", Example: "15000000"},
			{Name: "propertyId", Example: ""},
			{Name: "assignedTo", Example: ""},
			{Name: "notes", Example: "Prefers sea-facing units"},
		},
	}

	Properties = Template{
		Name: "properties.csv",
		Columns: []Column{
			{Name: "title", Example: "3BHK Luxury Apartment in Bandra, Mumbai", Required: true},
			{Name: "description", Example: "Sea-facing, two covered parking spots"},
			{Name: "price", Example: "45000000"},
			{Name: "currency", Example: "INR"},
			{Name: "city", Example: "Mumbai"},
			{Name: "locality", Example: "Bandra West"},
			{Name: "propertyType", Example: "apartment"},
			{Name: "bedrooms", Example: "3"},
			{Name: "bathrooms", Example: "3"},
			{Name: "areaSqft", Example: "1850"},
			{Name: "status", Example: "available"},
		},
	}
)

var registry = map[string]Template{
	Leads.Name:      Leads,
	Properties.Name: Properties,
}

// Lookup returns the template with the given file name.
func Lookup(name string) (Template, bool) {
	t, ok := registry[name]
	return t, ok
}

// Names lists the registered template file names.
func Names() []string {
	names := make([]string, 0, len(registry))
	for name := range registry {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Render writes the header row and one example row.
func (t Template) Render(w io.Writer) error {
	header := make([]string, len(t.Columns))
	example := make([]string, len(t.Columns))
	for i, col := range t.Columns {
		header[i] = col.Name
		example[i] = col.Example
	}

	cw := csv.NewWriter(w)
	if err := cw.WriteAll([][]string{header, example}); err != nil {
		return fmt.Errorf("render %s: %w", t.Name, err)
	}
	return nil
}

func (t Template) column(name string) (Column, bool) {
	for _, col := range t.Columns {
		if strings.EqualFold(col.Name, name) {
			return col, true
		}
	}
	return Column{}, false
}

// Row is one data line keyed by canonical column name. Line is the 1-based line in the file.
type Row struct {
	Line   int
	Values map[string]string
}

// Get returns the trimmed value for column.
func (r Row) Get(column string) string {
	return strings.TrimSpace(r.Values[column])
}

// ParseRows reads an uploaded CSV. The first non-blank line is the header; header names match
// template columns case-insensitively, unknown and duplicate columns are rejected, and rows whose
// cells are all blank are skipped.
func ParseRows(r io.Reader, t Template) ([]Row, error) {
	reader := csv.NewReader(r)
	reader.TrimLeadingSpace = true

	rawHeader, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, ErrMissingHeader
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	header, err := resolveHeader(rawHeader, t)
	if err != nil {
		return nil, err
	}

	var rows []Row
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv: %w", err)
		}

		if isBlank(record) {
			continue
		}
		if len(rows) == MaxRows {
			return nil, ErrTooManyRows
		}

		line, _ := reader.FieldPos(0)
		values := make(map[string]string, len(header))
		for i, name := range header {
			values[name] = record[i]
		}
		rows = append(rows, Row{Line: line, Values: values})
	}

	return rows, nil
}

func resolveHeader(raw []string, t Template) ([]string, error) {
	header := make([]string, len(raw))
	seen := make(map[string]struct{}, len(raw))

	for i, name := range raw {
		name = strings.TrimSpace(name)
		if i == 0 {
			name = strings.TrimPrefix(name, "\ufeff")
		}

		col, ok := t.column(name)
		if !ok {
			return nil, fmt.Errorf("unknown column %q in %s", name, t.Name)
		}
		if _, dup := seen[col.Name]; dup {
			return nil, fmt.Errorf("duplicate column %q in %s", col.Name, t.Name)
		}
		seen[col.Name] = struct{}{}
		header[i] = col.Name
	}

	for _, col := range t.Columns {
		if _, ok := seen[col.Name]; col.Required && !ok {
			return nil, fmt.Errorf("required column %q missing from %s", col.Name, t.Name)
		}
	}

	return header, nil
}

func isBlank(record []string) bool {
	for _, cell := range record {
		if strings.TrimSpace(cell) != "" {
			return false
		}
	}
	return true
}

// RowFailure reports why a row was not imported.
type RowFailure struct {
	Row    int                 `json:"row"`
	Errors map[string][]string `json:"errors"`
}

// ImportResult summarizes an import.
type ImportResult struct {
	Imported int          `json:"imported"`
	Failed   []RowFailure `json:"failed"`
}

// Fail records a failed row.
func (r *ImportResult) Fail(line int, fields map[string][]string) {
	r.Failed = append(r.Failed, RowFailure{Row: line, Errors: fields})
}
