package core

import (
	"encoding/csv"
	"io"
)

// Kind is the entity category a table describes.
type Kind string

const (
	KindClients Kind = "clients"
	KindWorkers Kind = "workers"
	KindTasks   Kind = "tasks"
)

// Row is one record keyed by column name. Missing keys read as Absent.
type Row map[string]Value

// Get returns the value stored under column, or Absent.
func (r Row) Get(column string) Value {
	if r == nil {
		return Value{}
	}
	return r[column]
}

// Has reports whether the row carries column at all (null and empty text count).
func (r Row) Has(column string) bool {
	v, ok := r[column]
	return ok && v.Type() != TypeAbsent
}

// Clone returns a shallow copy; Values are immutable so this is a full copy.
func (r Row) Clone() Row {
	out := make(Row, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Table is one normalized file.
type Table struct {
	Kind    Kind     `json:"kind"`
	Name    string   `json:"name"`
	Columns []string `json:"columns"`
	Rows    []Row    `json:"rows"`
}

// HasColumn reports whether name appears in the header.
func (t Table) HasColumn(name string) bool {
	for _, c := range t.Columns {
		if c == name {
			return true
		}
	}
	return false
}

// Clone deep-copies the table so callers can mutate rows independently.
func (t Table) Clone() Table {
	out := Table{
		Kind:    t.Kind,
		Name:    t.Name,
		Columns: append([]string(nil), t.Columns...),
		Rows:    make([]Row, len(t.Rows)),
	}
	for i, r := range t.Rows {
		out.Rows[i] = r.Clone()
	}
	return out
}

// Record renders row i as positional strings following Columns.
// Absent and null cells render as empty strings.
func (t Table) Record(i int) []string {
	row := t.Rows[i]
	rec := make([]string, len(t.Columns))
	for j, col := range t.Columns {
		rec[j] = row.Get(col).String()
	}
	return rec
}

// WriteCSV writes the header and every row as delimited text.
func (t Table) WriteCSV(w io.Writer) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(t.Columns); err != nil {
		return err
	}
	for i := range t.Rows {
		if err := cw.Write(t.Record(i)); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

// File is one uploaded blob.
type File struct {
	Name string
	Data []byte
}

// FileError records a file that could not be normalized.
type FileError struct {
	Index int    `json:"index"`
	Name  string `json:"name"`
	Err   error  `json:"-"`
}

func (e FileError) Error() string {
	return e.Name + ": " + e.Err.Error()
}

func (e FileError) Unwrap() error {
	return e.Err
}

// BatchResult is the outcome of normalizing one upload batch.
// Tables keep upload order; failed files are absent from Tables and listed in Failures.
type BatchResult struct {
	Tables   []Table
	Failures []FileError
}

// Severity grades a finding. Errors block progression, warnings do not.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
)

// Category is the taxonomy bucket a finding belongs to.
type Category string

const (
	CategoryStructural Category = "structural"
	CategoryIntegrity  Category = "integrity"
	CategoryQuality    Category = "quality"
)

// Finding is one detected data-quality issue.
type Finding struct {
	Table      Kind     `json:"table"`
	TableIndex int      `json:"tableIndex"`
	Row        int      `json:"row"`
	TableLevel bool     `json:"tableLevel,omitempty"`
	Column     string   `json:"column"`
	Message    string   `json:"message"`
	Severity   Severity `json:"severity"`
	Category   Category `json:"category"`
	Code       string   `json:"code"`
}

// Summary counts findings by severity.
type Summary struct {
	Errors   int  `json:"errors"`
	Warnings int  `json:"warnings"`
	Blocking bool `json:"blocking"`
}
