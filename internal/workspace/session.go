// Package workspace holds editing sessions: the uploaded tables, their
// current findings, the rules document and an edit history.
//
// Every mutation revalidates the whole table set before returning, so a
// session's findings always describe its current tables.
package workspace

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strconv"
	"sync"
	"time"

	"github.com/JonMunkholm/alchemist/internal/core"
	"github.com/JonMunkholm/alchemist/internal/export"
)

var (
	// ErrUnknownTable is returned when a table reference matches nothing in the session.
	ErrUnknownTable = errors.New("unknown table")

	// ErrRowOutOfRange is returned when a row index is outside the table.
	ErrRowOutOfRange = errors.New("row out of range")

	// ErrEmptyColumn is returned for a cell edit without a column name.
	ErrEmptyColumn = errors.New("invalid request: column name is empty")
)

// Session is one user's working copy. It is safe for concurrent use.
type Session struct {
	ID        string
	CreatedAt time.Time

	engine *core.Engine

	mu        sync.RWMutex
	tables    []core.Table
	failures  []core.FileError
	findings  []core.Finding
	rules     export.Rules
	history   history
	updatedAt time.Time
}

// NewSession creates an empty session that validates with engine.
func NewSession(id string, engine *core.Engine) *Session {
	now := time.Now().UTC()
	return &Session{
		ID:        id,
		CreatedAt: now,
		engine:    engine,
		tables:    []core.Table{},
		findings:  []core.Finding{},
		rules:     export.DefaultRules(),
		history:   history{limit: DefaultHistoryLimit},
		updatedAt: now,
	}
}

// Snapshot is a point-in-time copy of a session.
type Snapshot struct {
	ID        string         `json:"id"`
	Tables    []core.Table   `json:"tables"`
	Findings  []core.Finding `json:"findings"`
	Summary   core.Summary   `json:"summary"`
	Failures  []FileFailure  `json:"failures"`
	CreatedAt time.Time      `json:"createdAt"`
	UpdatedAt time.Time      `json:"updatedAt"`
}

// FileFailure is a file that could not be read, in API form.
type FileFailure struct {
	Index   int    `json:"index"`
	Name    string `json:"name"`
	Message string `json:"message"`
	Code    string `json:"code"`
}

// Snapshot copies the session state.
func (s *Session) Snapshot() Snapshot {
	s.mu.RLock()
	defer s.mu.RUnlock()

	tables := make([]core.Table, len(s.tables))
	for i, t := range s.tables {
		tables[i] = t.Clone()
	}
	failures := make([]FileFailure, len(s.failures))
	for i, fe := range s.failures {
		msg := core.MapError(fe.Err)
		failures[i] = FileFailure{Index: fe.Index, Name: fe.Name, Message: msg.Message, Code: msg.Code}
	}

	return Snapshot{
		ID:        s.ID,
		Tables:    tables,
		Findings:  slices.Clone(s.findings),
		Summary:   core.Summarize(s.findings),
		Failures:  failures,
		CreatedAt: s.CreatedAt,
		UpdatedAt: s.updatedAt,
	}
}

// Tables returns deep copies of the current tables.
func (s *Session) Tables() []core.Table {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]core.Table, len(s.tables))
	for i, t := range s.tables {
		out[i] = t.Clone()
	}
	return out
}

// Findings returns the findings for the current tables.
func (s *Session) Findings() []core.Finding {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return slices.Clone(s.findings)
}

// Summary counts the current findings.
func (s *Session) Summary() core.Summary {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return core.Summarize(s.findings)
}

// CanAdvance reports whether no error finding blocks the next step.
func (s *Session) CanAdvance() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return !core.HasErrors(s.findings)
}

// History returns recorded changes, oldest first.
func (s *Session) History() []Entry {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.history.list()
}

// Rules returns a copy of the rules document.
func (s *Session) Rules() export.Rules {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.rules.Clone()
}

// SetRules validates and stores a new rules document.
func (s *Session) SetRules(r export.Rules) error {
	if err := r.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.rules = r.Clone()
	s.touch()
	s.history.record(Entry{Action: ActionRulesUpdate, TableIndex: -1, Row: -1}, core.Summarize(s.findings))
	return nil
}

// ReplaceTables swaps in a freshly normalized batch wholesale and
// revalidates. Previous tables and failures are discarded.
func (s *Session) ReplaceTables(res core.BatchResult) []core.Finding {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tables = make([]core.Table, len(res.Tables))
	for i, t := range res.Tables {
		s.tables[i] = t.Clone()
	}
	s.failures = slices.Clone(res.Failures)
	s.revalidate()

	files := make([]string, 0, len(res.Tables))
	for _, t := range res.Tables {
		files = append(files, t.Name)
	}
	s.history.record(Entry{Action: ActionUpload, TableIndex: -1, Row: -1, Files: files}, core.Summarize(s.findings))
	return slices.Clone(s.findings)
}

// TableIndex resolves ref to a table position. ref is either a decimal
// index or a kind name, which selects the first table of that kind.
func (s *Session) TableIndex(ref string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.tableIndex(ref)
}

func (s *Session) tableIndex(ref string) (int, error) {
	if i, err := strconv.Atoi(ref); err == nil {
		if i < 0 || i >= len(s.tables) {
			return 0, fmt.Errorf("%w: %d", ErrUnknownTable, i)
		}
		return i, nil
	}
	for i, t := range s.tables {
		if string(t.Kind) == ref {
			return i, nil
		}
	}
	return 0, fmt.Errorf("%w: %q", ErrUnknownTable, ref)
}

// UpdateCell sets one cell and revalidates. A column the table has not
// seen before is appended to its header.
func (s *Session) UpdateCell(tableIdx, row int, column string, v core.Value) ([]core.Finding, error) {
	if column == "" {
		return nil, ErrEmptyColumn
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.locate(tableIdx, row)
	if err != nil {
		return nil, err
	}

	r := t.Rows[row]
	old := r.Get(column)
	if r == nil {
		r = core.Row{}
		t.Rows[row] = r
	}
	r[column] = v
	if !t.HasColumn(column) {
		t.Columns = append(t.Columns, column)
	}

	s.revalidate()
	s.history.record(Entry{
		Action:     ActionCellEdit,
		TableIndex: tableIdx,
		Table:      t.Kind,
		Row:        row,
		Column:     column,
		OldValue:   old,
		NewValue:   v,
	}, core.Summarize(s.findings))
	return slices.Clone(s.findings), nil
}

// ReplaceRow swaps one row wholesale and revalidates. Keys the header does
// not list are appended to it in sorted order.
func (s *Session) ReplaceRow(tableIdx, row int, r core.Row) ([]core.Finding, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	t, err := s.locate(tableIdx, row)
	if err != nil {
		return nil, err
	}

	next := r.Clone()
	t.Rows[row] = next

	var added []string
	for k := range next {
		if !t.HasColumn(k) {
			added = append(added, k)
		}
	}
	sort.Strings(added)
	t.Columns = append(t.Columns, added...)

	s.revalidate()
	s.history.record(Entry{
		Action:     ActionRowReplace,
		TableIndex: tableIdx,
		Table:      t.Kind,
		Row:        row,
		RowData:    next.Clone(),
	}, core.Summarize(s.findings))
	return slices.Clone(s.findings), nil
}

// locate bounds-checks a table and row. Callers hold the write lock.
func (s *Session) locate(tableIdx, row int) (*core.Table, error) {
	if tableIdx < 0 || tableIdx >= len(s.tables) {
		return nil, fmt.Errorf("%w: %d", ErrUnknownTable, tableIdx)
	}
	t := &s.tables[tableIdx]
	if row < 0 || row >= len(t.Rows) {
		return nil, fmt.Errorf("%w: row %d of %d", ErrRowOutOfRange, row, len(t.Rows))
	}
	return t, nil
}

// revalidate recomputes findings from scratch. Callers hold the write lock.
func (s *Session) revalidate() {
	s.findings = s.engine.Validate(s.tables)
	s.touch()
}

func (s *Session) touch() {
	s.updatedAt = time.Now().UTC()
}
