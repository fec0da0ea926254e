package chartopts

import (
	"errors"
	"fmt"
	"maps"

	"github.com/dalemusser/stratachart/internal/domain/models"
)

// ErrUnknownMainOption is returned when a statistic is not in the catalog.
var ErrUnknownMainOption = errors.New("unknown main option")

// Offers maps each sub-option to its offer. A missing key means Off.
type Offers map[models.SubOption]Offer

// Get returns the offer for opt, Off when absent.
func (s Offers) Get(opt models.SubOption) Offer {
	return s[opt]
}

func (s Offers) clone() Offers {
	return maps.Clone(s)
}

// OverrideRule narrows a statistic's offers while one sub-option holds a given
// value. Options entries replace the current offer (Off deletes the
// sub-option); Disable marks values unselectable. When one rule both deletes
// and disables the same sub-option, the deletion wins.
type OverrideRule struct {
	When    models.SubOption
	Equals  string
	Options Offers
	Disable map[models.SubOption][]string
}

// Definition is the declaration of one statistic's menu.
type Definition struct {
	Main      models.MainOption
	Label     string
	Options   Offers
	Defaults  map[models.SubOption]string
	Overrides []OverrideRule
}

// MainChoice is one statistic tab.
type MainChoice struct {
	ID    models.MainOption `json:"id"`
	Label string            `json:"label"`
}

// Resolution is the effective menu for a statistic plus a selection that is
// guaranteed to reference only allowed values of that menu.
type Resolution struct {
	Main      models.MainOption      `json:"main"`
	Label     string                 `json:"label"`
	Options   Offers                 `json:"options"`
	Selection models.SelectedOptions `json:"selection"`
}

// Catalog holds the menus of every statistic. It is immutable once built.
type Catalog struct {
	order    []models.MainOption
	defs     map[models.MainOption]Definition
	defaults map[models.MainOption]map[models.SubOption]string
}

// New builds a catalog from definitions in tab order. Each definition's
// Defaults are checked against its base offers here, once; a default naming a
// value that is not selectable is dropped in favour of the first allowed one.
func New(defs ...Definition) (*Catalog, error) {
	c := &Catalog{
		defs:     make(map[models.MainOption]Definition, len(defs)),
		defaults: make(map[models.MainOption]map[models.SubOption]string, len(defs)),
	}
	for _, d := range defs {
		if d.Main == "" {
			return nil, errors.New("chartopts: definition without main option")
		}
		if _, dup := c.defs[d.Main]; dup {
			return nil, fmt.Errorf("chartopts: duplicate definition for %q", d.Main)
		}
		c.order = append(c.order, d.Main)
		c.defs[d.Main] = d

		base := make(map[models.SubOption]string)
		for _, opt := range models.AllSubOptions {
			offer := d.Options.Get(opt)
			if !offer.Enabled() {
				continue
			}
			if v, ok := d.Defaults[opt]; ok && offer.Allowed(v) {
				base[opt] = v
			} else if v, ok := offer.FirstAllowed(); ok {
				base[opt] = v
			}
		}
		// Defaults for sub-options that only appear through overrides are
		// kept as declared and validated during resolution.
		for opt, v := range d.Defaults {
			if _, ok := base[opt]; !ok && !d.Options.Get(opt).Enabled() {
				base[opt] = v
			}
		}
		c.defaults[d.Main] = base
	}
	return c, nil
}

// MainOptions returns the statistic tabs in declaration order.
func (c *Catalog) MainOptions() []MainChoice {
	out := make([]MainChoice, len(c.order))
	for i, m := range c.order {
		out[i] = MainChoice{ID: m, Label: c.defs[m].Label}
	}
	return out
}

// Has reports whether main is in the catalog.
func (c *Catalog) Has(main models.MainOption) bool {
	_, ok := c.defs[main]
	return ok
}

// Label returns the display label for main.
func (c *Catalog) Label(main models.MainOption) string {
	return c.defs[main].Label
}

// Resolve computes the effective offers for main given the sub-option values
// the viewer currently has (possibly from an earlier resolution or absent).
// Values that are no longer allowed fall back to the statistic's default and
// then to the first allowed value. Resolution never fails for a known
// statistic.
func (c *Catalog) Resolve(main models.MainOption, current map[models.SubOption]string) (Resolution, error) {
	def, ok := c.defs[main]
	if !ok {
		return Resolution{}, fmt.Errorf("%w: %q", ErrUnknownMainOption, main)
	}
	defaults := c.defaults[main]

	sel := fit(def.Options, current, defaults)
	eff := def.Options
	// Overrides may change the values that trigger them, so iterate until the
	// selection is stable or every rule has had a chance to settle.
	for i := 0; i <= len(def.Overrides); i++ {
		eff = applyOverrides(def, sel)
		next := fit(eff, current, defaults)
		if maps.Equal(next, sel) {
			break
		}
		sel = next
	}
	sel = fit(eff, current, defaults)

	return Resolution{
		Main:      main,
		Label:     def.Label,
		Options:   eff,
		Selection: models.SelectedOptions{Main: main, Values: sel},
	}, nil
}

// fit picks a value for every enabled sub-option in offers: the requested one
// if allowed, else the default if allowed, else the first allowed value.
func fit(offers Offers, requested, defaults map[models.SubOption]string) map[models.SubOption]string {
	out := make(map[models.SubOption]string)
	for _, opt := range models.AllSubOptions {
		offer := offers.Get(opt)
		if !offer.Enabled() {
			continue
		}
		if v, ok := requested[opt]; ok && offer.Allowed(v) {
			out[opt] = v
			continue
		}
		if v, ok := defaults[opt]; ok && offer.Allowed(v) {
			out[opt] = v
			continue
		}
		if v, ok := offer.FirstAllowed(); ok {
			out[opt] = v
		}
	}
	return out
}

// applyOverrides applies, per trigger sub-option, the first rule whose
// condition holds for sel. Rules on different trigger sub-options all apply
// in declaration order, so a later rule wins where two touch the same field.
func applyOverrides(def Definition, sel map[models.SubOption]string) Offers {
	eff := def.Options.clone()
	if eff == nil {
		eff = Offers{}
	}
	triggered := make(map[models.SubOption]bool)

	for _, rule := range def.Overrides {
		if triggered[rule.When] {
			continue
		}
		if v, ok := sel[rule.When]; !ok || v != rule.Equals {
			continue
		}
		triggered[rule.When] = true

		for opt, offer := range rule.Options {
			eff[opt] = offer
		}
		for opt, values := range rule.Disable {
			if replaced, ok := rule.Options[opt]; ok && !replaced.Enabled() {
				continue
			}
			eff[opt] = eff.Get(opt).disable(values...)
		}
	}
	return eff
}
