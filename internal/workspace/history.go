package workspace

import (
	"time"

	"github.com/JonMunkholm/alchemist/internal/core"
	"github.com/google/uuid"
)

// Action is the kind of change recorded in a session's history.
type Action string

const (
	ActionUpload      Action = "upload"
	ActionCellEdit    Action = "cell_edit"
	ActionRowReplace  Action = "row_replace"
	ActionRulesUpdate Action = "rules_update"
)

// Entry is one recorded change.
type Entry struct {
	ID         string     `json:"id"`
	Action     Action     `json:"action"`
	TableIndex int        `json:"tableIndex"`
	Table      core.Kind  `json:"table,omitempty"`
	Row        int        `json:"row"`
	Column     string     `json:"column,omitempty"`
	OldValue   core.Value `json:"oldValue"`
	NewValue   core.Value `json:"newValue"`
	RowData    core.Row   `json:"rowData,omitempty"`
	Files      []string   `json:"files,omitempty"`
	Errors     int        `json:"errors"`
	Warnings   int        `json:"warnings"`
	CreatedAt  time.Time  `json:"createdAt"`
}

// DefaultHistoryLimit caps how many entries a session keeps.
const DefaultHistoryLimit = 500

// history is a bounded, append-only log. Oldest entries drop first.
type history struct {
	limit   int
	entries []Entry
}

func (h *history) record(e Entry, summary core.Summary) {
	e.ID = uuid.NewString()
	e.CreatedAt = time.Now().UTC()
	e.Errors = summary.Errors
	e.Warnings = summary.Warnings

	h.entries = append(h.entries, e)
	if h.limit > 0 && len(h.entries) > h.limit {
		h.entries = append([]Entry(nil), h.entries[len(h.entries)-h.limit:]...)
	}
}

func (h *history) list() []Entry {
	out := make([]Entry, len(h.entries))
	copy(out, h.entries)
	return out
}
