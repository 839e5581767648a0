package core

import (
	"fmt"
	"strings"
)

// FallbackIDColumn is the identity column for kinds the catalog does not know.
const FallbackIDColumn = "id"

// KindRule holds every per-kind parameter used by inference and validation.
type KindRule struct {
	Kind           Kind     // Table kind: "clients"
	Keywords       []string // Lower-case filename fragments that select this kind
	IDColumn       string   // Identity column: "ClientID"
	RequiredFields []string // Non-identity fields expected to be filled

	// ProvidesSkills names a comma-separated column whose tokens make up the
	// skill pool (workers). RequiresSkills names the column whose tokens must
	// all be in that pool (tasks). Either may be empty.
	ProvidesSkills string
	RequiresSkills string
}

// Catalog is an immutable, ordered set of kind rules.
// Order matters: inference tests kinds in catalog order and the first match wins.
type Catalog struct {
	rules       []KindRule
	index       map[Kind]int
	defaultKind Kind
}

// NewCatalog builds a catalog. defaultKind is used when no keyword matches
// and must be one of the rules' kinds.
func NewCatalog(defaultKind Kind, rules ...KindRule) (*Catalog, error) {
	c := &Catalog{
		rules:       make([]KindRule, 0, len(rules)),
		index:       make(map[Kind]int, len(rules)),
		defaultKind: defaultKind,
	}

	for _, r := range rules {
		if r.Kind == "" {
			return nil, fmt.Errorf("catalog: rule with empty kind")
		}
		if _, exists := c.index[r.Kind]; exists {
			return nil, fmt.Errorf("catalog: kind already registered: %s", r.Kind)
		}
		if r.IDColumn == "" {
			r.IDColumn = FallbackIDColumn
		}
		kw := make([]string, len(r.Keywords))
		for i, k := range r.Keywords {
			kw[i] = strings.ToLower(k)
		}
		r.Keywords = kw
		r.RequiredFields = append([]string(nil), r.RequiredFields...)

		c.index[r.Kind] = len(c.rules)
		c.rules = append(c.rules, r)
	}

	if _, ok := c.index[defaultKind]; !ok {
		return nil, fmt.Errorf("catalog: default kind %q has no rule", defaultKind)
	}

	return c, nil
}

// MustCatalog is NewCatalog that panics on error.
// Use this only for package-level catalogs built from literals.
func MustCatalog(defaultKind Kind, rules ...KindRule) *Catalog {
	c, err := NewCatalog(defaultKind, rules...)
	if err != nil {
		panic(err)
	}
	return c
}

// DefaultRules are the clients/workers/tasks rules.
func DefaultRules() []KindRule {
	return []KindRule{
		{
			Kind:           KindClients,
			Keywords:       []string{"client", "cliente", "clientes"},
			IDColumn:       "ClientID",
			RequiredFields: []string{"ClientName"},
		},
		{
			Kind:           KindWorkers,
			Keywords:       []string{"worker", "trabajador", "empleado", "workers"},
			IDColumn:       "WorkerID",
			RequiredFields: []string{"WorkerName"},
			ProvidesSkills: "Skills",
		},
		{
			Kind:           KindTasks,
			Keywords:       []string{"task", "tarea", "tasks", "tareas"},
			IDColumn:       "TaskID",
			RequiredFields: []string{"TaskName"},
			RequiresSkills: "RequiredSkills",
		},
	}
}

// DefaultCatalog returns a fresh catalog of the default rules with "tasks" as fallback kind.
func DefaultCatalog() *Catalog {
	return MustCatalog(KindTasks, DefaultRules()...)
}

// Rule returns the rule for kind.
// Returns false if not found.
func (c *Catalog) Rule(kind Kind) (KindRule, bool) {
	i, ok := c.index[kind]
	if !ok {
		return KindRule{}, false
	}
	return c.rules[i], true
}

// Rules returns all rules in catalog order.
func (c *Catalog) Rules() []KindRule {
	out := make([]KindRule, len(c.rules))
	copy(out, c.rules)
	return out
}

// Kinds returns all kinds in catalog order.
func (c *Catalog) Kinds() []Kind {
	kinds := make([]Kind, len(c.rules))
	for i, r := range c.rules {
		kinds[i] = r.Kind
	}
	return kinds
}

// DefaultKind is the kind assigned when no keyword matches.
func (c *Catalog) DefaultKind() Kind {
	return c.defaultKind
}

// IDColumn returns the identity column for kind, or FallbackIDColumn.
func (c *Catalog) IDColumn(kind Kind) string {
	if r, ok := c.Rule(kind); ok {
		return r.IDColumn
	}
	return FallbackIDColumn
}

// InferKind guesses a table kind from a filename.
// The name is lower-cased and tested against each rule's keywords in catalog order.
func (c *Catalog) InferKind(filename string) Kind {
	lower := strings.ToLower(filename)
	for _, r := range c.rules {
		for _, kw := range r.Keywords {
			if kw != "" && strings.Contains(lower, kw) {
				return r.Kind
			}
		}
	}
	return c.defaultKind
}

// Len returns the number of kinds.
func (c *Catalog) Len() int {
	return len(c.rules)
}
