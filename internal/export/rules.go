package export

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"sort"

	"github.com/go-playground/validator/v10"
)

// ErrInvalidRules is returned when a rules document fails to parse or validate.
var ErrInvalidRules = errors.New("invalid rules")

// Criterion is one weighted prioritization slider.
type Criterion struct {
	Label string `json:"label" validate:"required"`
	Key   string `json:"key" validate:"required"`
	Value int    `json:"value" validate:"min=0,max=100"`
}

// Rules is the exported rules document. Fields other than "criteria" are
// carried through untouched so newer rule kinds survive a round trip.
type Rules struct {
	Criteria []Criterion `json:"criteria" validate:"unique=Key,dive"`

	Extra map[string]json.RawMessage `json:"-"`
}

// DefaultRules returns the starting prioritization criteria, all at 50.
func DefaultRules() Rules {
	return Rules{
		Criteria: []Criterion{
			{Label: "Cost", Key: "cost", Value: 50},
			{Label: "Workload", Key: "workload", Value: 50},
			{Label: "Preference", Key: "preference", Value: 50},
			{Label: "Phase Balance", Key: "phaseBalance", Value: 50},
		},
	}
}

// Clone deep-copies the document.
func (r Rules) Clone() Rules {
	out := Rules{Criteria: append([]Criterion(nil), r.Criteria...)}
	if r.Extra != nil {
		out.Extra = make(map[string]json.RawMessage, len(r.Extra))
		for k, v := range r.Extra {
			out.Extra[k] = append(json.RawMessage(nil), v...)
		}
	}
	return out
}

// Weight returns the value of the criterion with key.
func (r Rules) Weight(key string) (int, bool) {
	for _, c := range r.Criteria {
		if c.Key == key {
			return c.Value, true
		}
	}
	return 0, false
}

var validate = validator.New()

// Validate checks struct constraints: every criterion is labelled and keyed,
// keys are unique and values lie in 0..100.
func (r Rules) Validate() error {
	if err := validate.Struct(r); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			fe := verrs[0]
			return fmt.Errorf("%w: %s failed on %q", ErrInvalidRules, fe.Namespace(), fe.Tag())
		}
		return fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	return nil
}

// ParseRules decodes and validates a rules document.
func ParseRules(data []byte) (Rules, error) {
	var r Rules
	if err := json.Unmarshal(data, &r); err != nil {
		return Rules{}, fmt.Errorf("%w: %v", ErrInvalidRules, err)
	}
	if err := r.Validate(); err != nil {
		return Rules{}, err
	}
	return r, nil
}

func (r Rules) MarshalJSON() ([]byte, error) {
	fields := make(map[string]json.RawMessage, len(r.Extra)+1)
	for k, v := range r.Extra {
		fields[k] = v
	}

	criteria := r.Criteria
	if criteria == nil {
		criteria = []Criterion{}
	}
	raw, err := json.Marshal(criteria)
	if err != nil {
		return nil, err
	}
	fields["criteria"] = raw

	// "criteria" first, then extras in key order.
	keys := make([]string, 0, len(fields))
	for k := range fields {
		if k != "criteria" {
			keys = append(keys, k)
		}
	}
	sort.Strings(keys)
	keys = append([]string{"criteria"}, keys...)

	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			buf.WriteByte(',')
		}
		name, _ := json.Marshal(k)
		buf.Write(name)
		buf.WriteByte(':')
		buf.Write(fields[k])
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func (r *Rules) UnmarshalJSON(data []byte) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return err
	}

	*r = Rules{}
	if raw, ok := fields["criteria"]; ok {
		if err := json.Unmarshal(raw, &r.Criteria); err != nil {
			return fmt.Errorf("criteria: %w", err)
		}
		delete(fields, "criteria")
	}
	if len(fields) > 0 {
		r.Extra = fields
	}
	return nil
}

// WriteRulesJSON renders the rules document with two-space indentation.
func WriteRulesJSON(r Rules) ([]byte, error) {
	raw, err := json.Marshal(r)
	if err != nil {
		return nil, err
	}
	var out bytes.Buffer
	if err := json.Indent(&out, raw, "", "  "); err != nil {
		return nil, err
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}
