// Package chartopts builds the per-statistic menus of chart sub-options
// (type, range, compare) and resolves a viewer's selection against them.
package chartopts

import (
	"bytes"
	"encoding/json"
	"slices"
)

// Choice is one offered value of a sub-option.
type Choice struct {
	Value    string `json:"value"`
	Label    string `json:"label"`
	Disabled bool   `json:"disabled,omitempty"`
}

// Offer is either Off (the sub-option is not offered) or On with an ordered
// set of choices. The zero Offer is Off.
type Offer struct {
	on      bool
	choices []Choice
}

// Off returns an offer that removes the sub-option.
func Off() Offer {
	return Offer{}
}

// On returns an offer with the given choices in order. Duplicate values keep
// the first occurrence.
func On(choices ...Choice) Offer {
	o := Offer{on: true, choices: make([]Choice, 0, len(choices))}
	for _, c := range choices {
		if o.Has(c.Value) {
			continue
		}
		o.choices = append(o.choices, c)
	}
	return o
}

// Enabled reports whether the sub-option is offered at all.
func (o Offer) Enabled() bool { return o.on }

// Choices returns a copy of the offered choices.
func (o Offer) Choices() []Choice {
	return slices.Clone(o.choices)
}

// Has reports whether v is listed, disabled or not.
func (o Offer) Has(v string) bool {
	return o.index(v) >= 0
}

// Allowed reports whether v is listed and selectable.
func (o Offer) Allowed(v string) bool {
	i := o.index(v)
	return i >= 0 && !o.choices[i].Disabled
}

// FirstAllowed returns the first selectable value in declaration order.
func (o Offer) FirstAllowed() (string, bool) {
	for _, c := range o.choices {
		if !c.Disabled {
			return c.Value, true
		}
	}
	return "", false
}

// Label returns the label for v, or "" when v is not listed.
func (o Offer) Label(v string) string {
	if i := o.index(v); i >= 0 {
		return o.choices[i].Label
	}
	return ""
}

func (o Offer) index(v string) int {
	for i, c := range o.choices {
		if c.Value == v {
			return i
		}
	}
	return -1
}

// without drops the named values.
func (o Offer) without(values ...string) Offer {
	if !o.on {
		return o
	}
	out := Offer{on: true}
	for _, c := range o.choices {
		if !slices.Contains(values, c.Value) {
			out.choices = append(out.choices, c)
		}
	}
	return out
}

// disable keeps the named values listed but makes them unselectable.
func (o Offer) disable(values ...string) Offer {
	if !o.on {
		return o
	}
	out := Offer{on: true, choices: slices.Clone(o.choices)}
	for i := range out.choices {
		if slices.Contains(values, out.choices[i].Value) {
			out.choices[i].Disabled = true
		}
	}
	return out
}

// MarshalJSON encodes Off as null and On as the ordered choice list.
func (o Offer) MarshalJSON() ([]byte, error) {
	if !o.on {
		return []byte("null"), nil
	}
	if o.choices == nil {
		return []byte("[]"), nil
	}
	return json.Marshal(o.choices)
}

// UnmarshalJSON is the inverse of MarshalJSON.
func (o *Offer) UnmarshalJSON(b []byte) error {
	if bytes.Equal(bytes.TrimSpace(b), []byte("null")) {
		*o = Off()
		return nil
	}
	var choices []Choice
	if err := json.Unmarshal(b, &choices); err != nil {
		return err
	}
	*o = On(choices...)
	return nil
}
