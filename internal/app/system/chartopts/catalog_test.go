package chartopts

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/dalemusser/stratachart/internal/domain/models"
)

func identity(key string) string { return key }

func values(o Offer) []string {
	var out []string
	for _, c := range o.Choices() {
		out = append(out, c.Value)
	}
	return out
}

func equalStrings(a, b []string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if a[i] != b[i] {
			return false
		}
	}
	return true
}

func TestDomestic_ConfirmedDefaults(t *testing.T) {
	tests := []struct {
		name        string
		liveFirst   bool
		requested   map[models.SubOption]string
		wantType    string
		wantRange   string
		wantCompare string
	}{
		{
			name:      "daily first when live not prioritised",
			liveFirst: false,
			wantType:  models.TypeDaily,
			wantRange: models.RangeOneWeek,
		},
		{
			name:        "live first drops range and adds compare",
			liveFirst:   true,
			wantType:    models.TypeLive,
			wantCompare: models.CompareYesterday,
		},
		{
			name:      "explicit selection beats default",
			liveFirst: true,
			requested: map[models.SubOption]string{models.SubType: models.TypeMonthly, models.SubRange: models.RangeAll},
			wantType:  models.TypeMonthly,
			wantRange: models.RangeAll,
		},
		{
			name:      "range kept when compare leaks from a live selection",
			requested: map[models.SubOption]string{models.SubType: models.TypeDaily, models.SubCompare: models.CompareWeekAgo},
			wantType:  models.TypeDaily,
			wantRange: models.RangeOneWeek,
		},
		{
			name: "live with requested compare keeps compare",
			requested: map[models.SubOption]string{
				models.SubType:    models.TypeLive,
				models.SubRange:   models.RangeAll,
				models.SubCompare: models.CompareWeekAgo,
			},
			wantType:    models.TypeLive,
			wantCompare: models.CompareWeekAgo,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := Domestic(identity, tt.liveFirst)
			res, err := c.Resolve(models.MainConfirmed, tt.requested)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}
			sel := res.Selection
			if sel.Type() != tt.wantType {
				t.Errorf("type = %q, want %q", sel.Type(), tt.wantType)
			}
			if sel.Range() != tt.wantRange {
				t.Errorf("range = %q, want %q", sel.Range(), tt.wantRange)
			}
			if sel.Compare() != tt.wantCompare {
				t.Errorf("compare = %q, want %q", sel.Compare(), tt.wantCompare)
			}
			if tt.wantRange == "" && res.Options.Get(models.SubRange).Enabled() {
				t.Error("range should not be offered")
			}
			if tt.wantCompare == "" && res.Options.Get(models.SubCompare).Enabled() {
				t.Error("compare should not be offered")
			}
		})
	}
}

func TestDomestic_DisabledRangeFallsBack(t *testing.T) {
	c := Domestic(identity, false)

	for _, main := range []models.MainOption{models.MainConfirmedCritical, models.MainTested} {
		res, err := c.Resolve(main, map[models.SubOption]string{models.SubRange: models.RangeAll})
		if err != nil {
			t.Fatalf("Resolve(%s) error: %v", main, err)
		}
		if got := res.Selection.Range(); got != models.RangeOneWeek {
			t.Errorf("%s range = %q, want %q", main, got, models.RangeOneWeek)
		}
		rng := res.Options.Get(models.SubRange)
		if !rng.Has(models.RangeAll) || rng.Allowed(models.RangeAll) {
			t.Errorf("%s: all should be listed but disabled", main)
		}
	}
}

func TestDomestic_TypeOmissions(t *testing.T) {
	c := Domestic(identity, true)

	tests := []struct {
		main models.MainOption
		want []string
	}{
		{models.MainConfirmed, []string{models.TypeLive, models.TypeDaily, models.TypeMonthly}},
		{models.MainConfirmedCritical, []string{models.TypeDaily}},
		{models.MainDeceased, []string{models.TypeDaily, models.TypeMonthly}},
		{models.MainTested, []string{models.TypeDaily}},
	}
	for _, tt := range tests {
		res, err := c.Resolve(tt.main, map[models.SubOption]string{models.SubType: models.TypeAccumulated})
		if err != nil {
			t.Fatalf("Resolve(%s) error: %v", tt.main, err)
		}
		if got := values(res.Options.Get(models.SubType)); !equalStrings(got, tt.want) {
			t.Errorf("%s types = %v, want %v", tt.main, got, tt.want)
		}
		if res.Selection.Type() == models.TypeAccumulated {
			t.Errorf("%s: accumulated must not be selected", tt.main)
		}
	}
}

func TestCatalog_UnknownMainOption(t *testing.T) {
	c := Domestic(identity, false)
	_, err := c.Resolve("recovered", nil)
	if !errors.Is(err, ErrUnknownMainOption) {
		t.Errorf("error = %v, want ErrUnknownMainOption", err)
	}
}

func TestNew_RejectsDuplicates(t *testing.T) {
	def := Definition{Main: models.MainDeceased, Options: Offers{models.SubType: On(Choice{Value: "daily"})}}
	if _, err := New(def, def); err == nil {
		t.Error("expected error for duplicate definition")
	}
	if _, err := New(Definition{}); err == nil {
		t.Error("expected error for definition without main option")
	}
}

func ch(vals ...string) Offer {
	choices := make([]Choice, len(vals))
	for i, v := range vals {
		choices[i] = Choice{Value: v, Label: v}
	}
	return On(choices...)
}

func TestResolve_OverrideSemantics(t *testing.T) {
	base := Offers{
		models.SubType:  ch("a", "b"),
		models.SubRange: ch("x", "y", "z"),
	}

	tests := []struct {
		name        string
		rules       []OverrideRule
		requested   map[models.SubOption]string
		wantRange   []string // nil means not offered
		wantCompare []string
		wantSel     map[models.SubOption]string
	}{
		{
			name: "first match per trigger field, later field wins",
			rules: []OverrideRule{
				{When: models.SubType, Equals: "a", Options: Offers{models.SubCompare: ch("c1")}},
				{When: models.SubType, Equals: "a", Options: Offers{models.SubCompare: ch("c2")}},
				{When: models.SubRange, Equals: "x", Options: Offers{models.SubCompare: ch("c3")}},
			},
			requested:   map[models.SubOption]string{models.SubType: "a", models.SubRange: "x"},
			wantRange:   []string{"x", "y", "z"},
			wantCompare: []string{"c3"},
			wantSel:     map[models.SubOption]string{models.SubType: "a", models.SubRange: "x", models.SubCompare: "c3"},
		},
		{
			name: "omit wins over disable in the same rule",
			rules: []OverrideRule{
				{
					When:    models.SubType,
					Equals:  "a",
					Options: Offers{models.SubRange: Off()},
					Disable: map[models.SubOption][]string{models.SubRange: {"x"}},
				},
			},
			requested: map[models.SubOption]string{models.SubType: "a", models.SubRange: "x"},
			wantSel:   map[models.SubOption]string{models.SubType: "a"},
		},
		{
			name: "disable falls back to next allowed value",
			rules: []OverrideRule{
				{When: models.SubType, Equals: "b", Disable: map[models.SubOption][]string{models.SubRange: {"x", "y"}}},
			},
			requested: map[models.SubOption]string{models.SubType: "b", models.SubRange: "x"},
			wantRange: []string{"x", "y", "z"},
			wantSel:   map[models.SubOption]string{models.SubType: "b", models.SubRange: "z"},
		},
		{
			name: "rule not triggered leaves base offers",
			rules: []OverrideRule{
				{When: models.SubType, Equals: "b", Options: Offers{models.SubRange: Off()}},
			},
			requested: map[models.SubOption]string{models.SubRange: "y"},
			wantRange: []string{"x", "y", "z"},
			wantSel:   map[models.SubOption]string{models.SubType: "a", models.SubRange: "y"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, err := New(Definition{Main: models.MainDeceased, Options: base, Overrides: tt.rules})
			if err != nil {
				t.Fatalf("New() error: %v", err)
			}
			res, err := c.Resolve(models.MainDeceased, tt.requested)
			if err != nil {
				t.Fatalf("Resolve() error: %v", err)
			}

			rng := res.Options.Get(models.SubRange)
			if tt.wantRange == nil && rng.Enabled() {
				t.Errorf("range offered = %v, want not offered", values(rng))
			} else if tt.wantRange != nil && !equalStrings(values(rng), tt.wantRange) {
				t.Errorf("range = %v, want %v", values(rng), tt.wantRange)
			}
			cmp := res.Options.Get(models.SubCompare)
			if tt.wantCompare == nil && cmp.Enabled() {
				t.Errorf("compare offered = %v, want not offered", values(cmp))
			} else if tt.wantCompare != nil && !equalStrings(values(cmp), tt.wantCompare) {
				t.Errorf("compare = %v, want %v", values(cmp), tt.wantCompare)
			}

			if len(res.Selection.Values) != len(tt.wantSel) {
				t.Fatalf("selection = %v, want %v", res.Selection.Values, tt.wantSel)
			}
			for k, v := range tt.wantSel {
				if res.Selection.Get(k) != v {
					t.Errorf("selection[%s] = %q, want %q", k, res.Selection.Get(k), v)
				}
			}
		})
	}
}

func TestResolve_DefaultsPrecedence(t *testing.T) {
	c, err := New(Definition{
		Main: models.MainDeceased,
		Options: Offers{
			models.SubType:  ch("a", "b"),
			models.SubRange: On(Choice{Value: "x", Disabled: true}, Choice{Value: "y"}, Choice{Value: "z"}),
		},
		Defaults: map[models.SubOption]string{models.SubType: "b", models.SubRange: "x"},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	res, _ := c.Resolve(models.MainDeceased, nil)
	if res.Selection.Type() != "b" {
		t.Errorf("type = %q, want default b", res.Selection.Type())
	}
	if res.Selection.Range() != "y" {
		t.Errorf("range = %q, want first allowed y (default is disabled)", res.Selection.Range())
	}

	res, _ = c.Resolve(models.MainDeceased, map[models.SubOption]string{models.SubType: "a"})
	if res.Selection.Type() != "a" {
		t.Errorf("type = %q, want explicit a", res.Selection.Type())
	}
}

// Every resolution, for every statistic and every requested combination,
// must only reference values that are allowed by its own effective offers.
func TestResolve_SelectionAlwaysAllowed(t *testing.T) {
	selfDisabling, err := New(Definition{
		Main:    models.MainDeceased,
		Options: Offers{models.SubType: ch("a", "b"), models.SubRange: ch("x", "y")},
		Overrides: []OverrideRule{
			{When: models.SubType, Equals: "a", Disable: map[models.SubOption][]string{models.SubType: {"a"}}},
			{When: models.SubRange, Equals: "y", Options: Offers{models.SubType: ch("b")}},
		},
	})
	if err != nil {
		t.Fatalf("New() error: %v", err)
	}

	catalogs := []*Catalog{Domestic(identity, false), Domestic(identity, true), selfDisabling}

	typeVals := append([]string{"", "bogus", "a", "b"}, models.AllChartTypes...)
	rangeVals := append([]string{"", "bogus", "x", "y"}, models.AllChartRanges...)
	compareVals := append([]string{"", "bogus"}, models.AllCompareWindows...)

	for _, c := range catalogs {
		for _, mc := range c.MainOptions() {
			for _, tv := range typeVals {
				for _, rv := range rangeVals {
					for _, cv := range compareVals {
						req := map[models.SubOption]string{}
						if tv != "" {
							req[models.SubType] = tv
						}
						if rv != "" {
							req[models.SubRange] = rv
						}
						if cv != "" {
							req[models.SubCompare] = cv
						}
						res, err := c.Resolve(mc.ID, req)
						if err != nil {
							t.Fatalf("Resolve(%s, %v) error: %v", mc.ID, req, err)
						}
						for opt, v := range res.Selection.Values {
							if !res.Options.Get(opt).Allowed(v) {
								t.Fatalf("Resolve(%s, %v): %s=%q not allowed by effective offers", mc.ID, req, opt, v)
							}
						}
						for _, opt := range models.AllSubOptions {
							offer := res.Options.Get(opt)
							if _, ok := offer.FirstAllowed(); ok && res.Selection.Get(opt) == "" {
								t.Fatalf("Resolve(%s, %v): %s offered but not selected", mc.ID, req, opt)
							}
						}
					}
				}
			}
		}
	}
}

func TestOffer_JSON(t *testing.T) {
	offers := Offers{
		models.SubType:  On(Choice{Value: "daily", Label: "Daily"}, Choice{Value: "all", Label: "All", Disabled: true}),
		models.SubRange: Off(),
	}
	b, err := json.Marshal(offers)
	if err != nil {
		t.Fatalf("Marshal error: %v", err)
	}
	want := `{"range":null,"type":[{"value":"daily","label":"Daily"},{"value":"all","label":"All","disabled":true}]}`
	if string(b) != want {
		t.Errorf("json = %s\nwant   %s", b, want)
	}

	var back Offers
	if err := json.Unmarshal(b, &back); err != nil {
		t.Fatalf("Unmarshal error: %v", err)
	}
	if back.Get(models.SubRange).Enabled() {
		t.Error("range should decode as Off")
	}
	if !back.Get(models.SubType).Has("all") || back.Get(models.SubType).Allowed("all") {
		t.Error("type should keep disabled value")
	}
}
