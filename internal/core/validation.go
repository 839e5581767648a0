package core

// validation.go is the cross-table validation engine.
//
// Validation runs table by table in input order. Within a table the checks
// run in a fixed order and each check scans rows in row order, so the
// findings for a given table set are always identical:
//
//  1. Identity column present (a miss stops the table)
//  2. Identity values unique
//  3. Required fields filled (warning)
//  4. Required skills covered by some worker
//  5. Numeric candidates are non-negative numbers
//  6. Date candidates parse
//  7. Free-text candidates stay under the length limit (warning)
//
// Tables without rows produce nothing. Malformed data always becomes a
// Finding; the engine has no error return.

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// DefaultMaxTextLength is the free-text length above which a warning is raised.
const DefaultMaxTextLength = 500

// CheckOptions lists the candidate fields probed by the schema-agnostic checks.
// Absent fields are tolerated; present, malformed ones are reported.
type CheckOptions struct {
	NumericFields []string
	DateFields    []string
	TextFields    []string
	MaxTextLength int
}

// DefaultCheckOptions returns the standard candidate fields.
func DefaultCheckOptions() CheckOptions {
	return CheckOptions{
		NumericFields: []string{"priority", "duration", "cost"},
		DateFields:    []string{"start_date", "end_date", "deadline"},
		TextFields:    []string{"name", "description", "notes"},
		MaxTextLength: DefaultMaxTextLength,
	}
}

// Engine validates table sets against a catalog.
type Engine struct {
	catalog *Catalog
	opts    CheckOptions
}

// NewEngine creates an engine. A zero MaxTextLength takes the default.
func NewEngine(catalog *Catalog, opts CheckOptions) *Engine {
	if opts.MaxTextLength <= 0 {
		opts.MaxTextLength = DefaultMaxTextLength
	}
	return &Engine{catalog: catalog, opts: opts}
}

// Catalog returns the engine's catalog.
func (e *Engine) Catalog() *Catalog {
	return e.catalog
}

// Validate returns every finding for tables, in deterministic order.
func (e *Engine) Validate(tables []Table) []Finding {
	v := &validator{
		engine:   e,
		skills:   e.skillPool(tables),
		findings: []Finding{},
	}
	for i := range tables {
		v.table(i, tables[i])
	}
	return v.findings
}

// skillPool collects every skill token offered by any skill-providing table.
// Only text cells count; a skill list is comma-separated text.
// It is built once per run, before any table is checked.
func (e *Engine) skillPool(tables []Table) map[string]bool {
	pool := make(map[string]bool)
	for _, t := range tables {
		rule, ok := e.catalog.Rule(t.Kind)
		if !ok || rule.ProvidesSkills == "" {
			continue
		}
		for _, row := range t.Rows {
			skills, ok := row.Get(rule.ProvidesSkills).AsText()
			if !ok {
				continue
			}
			for _, tok := range splitTokens(skills) {
				pool[tok] = true
			}
		}
	}
	return pool
}

// validator carries the state of one Validate run.
type validator struct {
	engine   *Engine
	skills   map[string]bool
	findings []Finding

	tableIdx int
	kind     Kind
}

func (v *validator) add(row int, column string, code string, format string, args ...any) {
	info := findingCodes[code]
	v.findings = append(v.findings, Finding{
		Table:      v.kind,
		TableIndex: v.tableIdx,
		Row:        row,
		Column:     column,
		Message:    fmt.Sprintf(format, args...),
		Severity:   info.severity,
		Category:   info.category,
		Code:       code,
	})
}

func (v *validator) table(idx int, t Table) {
	if len(t.Rows) == 0 {
		return
	}
	v.tableIdx = idx
	v.kind = t.Kind

	cat := v.engine.catalog
	idCol := cat.IDColumn(t.Kind)
	rule, _ := cat.Rule(t.Kind)

	if !v.identityColumn(t, idCol) {
		return
	}
	v.duplicateIDs(t, idCol)
	v.requiredFields(t, rule.RequiredFields)
	if rule.RequiresSkills != "" {
		v.skillCoverage(t, rule.RequiresSkills)
	}

	opts := v.engine.opts
	v.numericFields(t, opts.NumericFields)
	v.dateFields(t, opts.DateFields)
	v.textLengths(t, opts.TextFields, opts.MaxTextLength)
}

// identityColumn reports whether the table carries its identity column.
// Only the header and the first row are consulted; later rows missing the
// value are left to the duplicate check, which ignores them.
func (v *validator) identityColumn(t Table, idCol string) bool {
	missing := !t.Rows[0].Has(idCol)
	if len(t.Columns) > 0 && !t.HasColumn(idCol) {
		missing = true
	}
	if !missing {
		return true
	}

	v.add(0, idCol, CodeMissingIDColumn,
		"Missing required column: %s. Please add this column to your data file.", idCol)
	v.findings[len(v.findings)-1].TableLevel = true
	return false
}

func (v *validator) duplicateIDs(t Table, idCol string) {
	seen := make(map[string]bool, len(t.Rows))
	for i, row := range t.Rows {
		val := row.Get(idCol)
		if val.Type() != TypeText && val.Type() != TypeNumber {
			continue
		}
		id := val.String()
		if seen[id] {
			v.add(i, idCol, CodeDuplicateID,
				"Duplicate %s: %s. Each row must have a unique ID.", idCol, id)
			continue
		}
		seen[id] = true
	}
}

func (v *validator) requiredFields(t Table, fields []string) {
	for _, field := range fields {
		for i, row := range t.Rows {
			if row.Get(field).IsEmpty() {
				v.add(i, field, CodeEmptyRequired,
					"Missing value for required field: %s. Please fill in this field.", field)
			}
		}
	}
}

func (v *validator) skillCoverage(t Table, column string) {
	for i, row := range t.Rows {
		val := row.Get(column)
		if !val.Truthy() {
			continue
		}
		for _, skill := range splitTokens(val.String()) {
			if !v.skills[skill] {
				v.add(i, column, CodeUncoveredSkill,
					"Required skill '%s' is not covered by any worker. Please check your workers' skills.", skill)
			}
		}
	}
}

func (v *validator) numericFields(t Table, fields []string) {
	for _, field := range fields {
		for i, row := range t.Rows {
			val := row.Get(field)
			if val.IsEmpty() {
				continue
			}
			if n, ok := val.Float(); !ok || n < 0 {
				v.add(i, field, CodeInvalidNumber,
					"Invalid numeric value for %s: %s", field, val.String())
			}
		}
	}
}

func (v *validator) dateFields(t Table, fields []string) {
	for _, field := range fields {
		for i, row := range t.Rows {
			val := row.Get(field)
			if val.IsEmpty() {
				continue
			}
			if _, ok := val.Time(); !ok {
				v.add(i, field, CodeInvalidDate,
					"Invalid date format for %s: %s", field, val.String())
			}
		}
	}
}

func (v *validator) textLengths(t Table, fields []string, limit int) {
	for _, field := range fields {
		for i, row := range t.Rows {
			s, ok := row.Get(field).AsText()
			if !ok {
				continue
			}
			if n := utf8.RuneCountInString(s); n > limit {
				v.add(i, field, CodeTextTooLong,
					"Text too long for %s: %d characters", field, n)
			}
		}
	}
}

// splitTokens splits a comma-separated list and trims each token.
// Empty tokens are dropped.
func splitTokens(s string) []string {
	parts := strings.Split(s, ",")
	out := make([]string, 0, len(parts))
	for _, p := range parts {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
