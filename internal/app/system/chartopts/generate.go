package chartopts

import (
	"slices"

	"github.com/dalemusser/stratachart/internal/domain/models"
)

// Translate returns the display string for a stable label key.
type Translate func(key string) string

// GenerateOpts narrows a generated offer. Omit removes values; Disable keeps
// them listed but unselectable.
type GenerateOpts struct {
	Omit    []string
	Disable []string
}

// Label keys for generated choices.
var (
	typeLabelKeys = map[string]string{
		models.TypeLive:        "chart.option.live",
		models.TypeDaily:       "chart.option.daily",
		models.TypeMonthly:     "chart.option.monthly",
		models.TypeAccumulated: "chart.option.accumulated",
	}
	rangeLabelKeys = map[string]string{
		models.RangeOneWeek:     "chart.option.one_week",
		models.RangeOneMonth:    "chart.option.one_month",
		models.RangeThreeMonths: "chart.option.three_months",
		models.RangeAll:         "chart.option.all",
	}
	compareLabelKeys = map[string]string{
		models.CompareYesterday:   "chart.option.yesterday",
		models.CompareWeekAgo:     "chart.option.one_week_ago",
		models.CompareTwoWeeksAgo: "chart.option.two_weeks_ago",
		models.CompareMonthAgo:    "chart.option.four_weeks_ago",
	}
)

// LabelKey returns the label key for a generated value of opt, or "" when
// the value is unknown.
func LabelKey(opt models.SubOption, value string) string {
	switch opt {
	case models.SubType:
		return typeLabelKeys[value]
	case models.SubRange:
		return rangeLabelKeys[value]
	case models.SubCompare:
		return compareLabelKeys[value]
	}
	return ""
}

// TypeOffer generates the chart type choices.
func TypeOffer(t Translate, opts GenerateOpts) Offer {
	return generate(t, models.AllChartTypes, typeLabelKeys, opts)
}

// RangeOffer generates the range choices.
func RangeOffer(t Translate, opts GenerateOpts) Offer {
	return generate(t, models.AllChartRanges, rangeLabelKeys, opts)
}

// CompareOffer generates live comparison choices for the given windows, in
// the canonical window order.
func CompareOffer(t Translate, windows ...string) Offer {
	var omit []string
	for _, w := range models.AllCompareWindows {
		if !slices.Contains(windows, w) {
			omit = append(omit, w)
		}
	}
	return generate(t, models.AllCompareWindows, compareLabelKeys, GenerateOpts{Omit: omit})
}

func generate(t Translate, values []string, keys map[string]string, opts GenerateOpts) Offer {
	choices := make([]Choice, 0, len(values))
	for _, v := range values {
		if slices.Contains(opts.Omit, v) {
			continue
		}
		choices = append(choices, Choice{
			Value:    v,
			Label:    t(keys[v]),
			Disabled: slices.Contains(opts.Disable, v),
		})
	}
	return On(choices...)
}
