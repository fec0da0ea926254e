// internal/domain/models/chartoptions.go
package models

// MainOption identifies a tracked statistic shown as a chart tab.
type MainOption string

const (
	MainConfirmed         MainOption = "confirmed"
	MainConfirmedCritical MainOption = "confirmed-critical"
	MainDeceased          MainOption = "deceased"
	MainTested            MainOption = "tested"
)

// AllMainOptions lists the statistics in tab order.
var AllMainOptions = []MainOption{
	MainConfirmed,
	MainConfirmedCritical,
	MainDeceased,
	MainTested,
}

// IsValidMainOption checks if a value names a known statistic.
func IsValidMainOption(value string) bool {
	for _, m := range AllMainOptions {
		if string(m) == value {
			return true
		}
	}
	return false
}

// SubOption names a secondary axis of chart configuration.
type SubOption string

const (
	SubType    SubOption = "type"
	SubRange   SubOption = "range"
	SubCompare SubOption = "compare"
)

// AllSubOptions is the stable iteration order for sub-options.
var AllSubOptions = []SubOption{SubType, SubRange, SubCompare}

// Chart type values.
const (
	TypeLive        = "live"
	TypeDaily       = "daily"
	TypeMonthly     = "monthly"
	TypeAccumulated = "accumulated"
)

// AllChartTypes is the stable order of chart type values.
var AllChartTypes = []string{TypeLive, TypeDaily, TypeMonthly, TypeAccumulated}

// Range values.
const (
	RangeOneWeek     = "oneWeek"
	RangeOneMonth    = "oneMonth"
	RangeThreeMonths = "threeMonths"
	RangeAll         = "all"
)

// AllChartRanges is the stable order of range values.
var AllChartRanges = []string{RangeOneWeek, RangeOneMonth, RangeThreeMonths, RangeAll}

// Live comparison window values.
const (
	CompareYesterday   = "yesterday"
	CompareWeekAgo     = "weekAgo"
	CompareTwoWeeksAgo = "twoWeeksAgo"
	CompareMonthAgo    = "monthAgo"
)

// AllCompareWindows is the stable order of live comparison windows.
var AllCompareWindows = []string{CompareYesterday, CompareWeekAgo, CompareTwoWeeksAgo, CompareMonthAgo}

// LiveToday is the hourly live key for the current day.
const LiveToday = "today"

// SelectedOptions is the viewer's current choice for one statistic.
// Sub-options that are not offered are absent from Values.
type SelectedOptions struct {
	Main   MainOption           `json:"main"`
	Values map[SubOption]string `json:"values"`
}

// Get returns the selected value for a sub-option, or "" when not offered.
func (s SelectedOptions) Get(opt SubOption) string {
	return s.Values[opt]
}

// Type, Range and Compare are shorthands for Get.
func (s SelectedOptions) Type() string    { return s.Values[SubType] }
func (s SelectedOptions) Range() string   { return s.Values[SubRange] }
func (s SelectedOptions) Compare() string { return s.Values[SubCompare] }

// ViewMode selects between a single detailed chart and the combined summary.
type ViewMode string

const (
	ModeDefault  ViewMode = "DEFAULT"
	ModeExpanded ViewMode = "EXPANDED"
)

// ParseViewMode returns the mode named by s, with ok=false when unknown.
func ParseViewMode(s string) (ViewMode, bool) {
	switch ViewMode(s) {
	case ModeDefault:
		return ModeDefault, true
	case ModeExpanded:
		return ModeExpanded, true
	}
	return "", false
}
