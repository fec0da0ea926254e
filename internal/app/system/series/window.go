package series

import (
	"fmt"
	"time"

	"github.com/dalemusser/stratachart/internal/domain/models"
)

// Window is an inclusive time window. The zero Window with All set covers
// every sample.
type Window struct {
	From time.Time
	To   time.Time
	All  bool
}

// Contains reports whether t falls inside the window.
func (w Window) Contains(t time.Time) bool {
	if w.All {
		return true
	}
	return !t.Before(w.From) && !t.After(w.To)
}

// lookbackDays is the number of daily samples each range keeps, counting the
// anchor day.
var lookbackDays = map[string]int{
	models.RangeOneWeek:     7,
	models.RangeOneMonth:    30,
	models.RangeThreeMonths: 90,
}

// LookbackDays returns how many daily samples rng keeps, with ok=false for
// the all-time range and unknown ranges.
func LookbackDays(rng string) (int, bool) {
	d, ok := lookbackDays[rng]
	return d, ok
}

// RangeWindow returns the lookback window for rng, anchored at the last sample
// of raw rather than the wall clock. An empty series gets the full window.
func RangeWindow(raw models.RawSeries, rng string) (Window, error) {
	if rng == models.RangeAll {
		return Window{All: true}, nil
	}
	days, ok := lookbackDays[rng]
	if !ok {
		return Window{}, fmt.Errorf("%w: %q", ErrUnknownRange, rng)
	}
	last, ok := raw.Last()
	if !ok {
		return Window{All: true}, nil
	}
	return Window{From: last.T.AddDate(0, 0, -(days - 1)), To: last.T}, nil
}
