// Package series turns raw cumulative counter series into the display series
// a chart draws. Every function here is pure.
package series

import (
	"errors"
	"fmt"
	"time"

	"github.com/dalemusser/stratachart/internal/domain/models"
)

var (
	// ErrUnknownType is returned for a chart type this package cannot render.
	ErrUnknownType = errors.New("unknown chart type")
	// ErrUnknownRange is returned for a range without a lookback window.
	ErrUnknownRange = errors.New("unknown chart range")
	// ErrLiveType is returned when the live type is passed to Transform.
	// Live charts are assembled from the live collaborator with Hours.
	ErrLiveType = errors.New("live charts are not derived from historical series")
)

// ExtraTotal is the Extra key carrying the cumulative value behind a delta.
const ExtraTotal = "total"

// Transform renders raw for the (type, range) view.
func Transform(raw models.RawSeries, typ, rng string) (models.DisplaySeries, error) {
	w, err := RangeWindow(raw, rng)
	if err != nil {
		return nil, err
	}
	return TransformWindow(raw, typ, w)
}

// TransformWindow renders raw for typ over an explicit window.
func TransformWindow(raw models.RawSeries, typ string, w Window) (models.DisplaySeries, error) {
	switch typ {
	case models.TypeAccumulated:
		return accumulated(raw, w), nil
	case models.TypeDaily:
		return daily(raw, w), nil
	case models.TypeMonthly:
		return monthly(raw, w), nil
	case models.TypeLive:
		return nil, ErrLiveType
	}
	return nil, fmt.Errorf("%w: %q", ErrUnknownType, typ)
}

func accumulated(raw models.RawSeries, w Window) models.DisplaySeries {
	out := make(models.DisplaySeries, 0, len(raw))
	for _, p := range raw {
		if w.Contains(p.T) {
			out = append(out, models.Point{X: p.T.Unix(), Y: p.Value})
		}
	}
	return out
}

// daily takes first differences inside the window. The first point in the
// window is diffed against the last sample strictly before it; without one
// it reports 0 flagged as a gap. Negative deltas are clamped to 0.
func daily(raw models.RawSeries, w Window) models.DisplaySeries {
	out := make(models.DisplaySeries, 0, len(raw))
	var (
		prev    int64
		hasPrev bool
	)
	for _, p := range raw {
		if !w.Contains(p.T) {
			if !w.All && p.T.Before(w.From) {
				prev, hasPrev = p.Value, true
			}
			continue
		}
		pt := models.Point{
			X:     p.T.Unix(),
			Extra: map[string]int64{ExtraTotal: p.Value},
		}
		if hasPrev {
			pt.Y = max(p.Value-prev, 0)
		} else {
			pt.Gap = true
		}
		out = append(out, pt)
		prev, hasPrev = p.Value, true
	}
	return out
}

// monthly sums daily deltas per UTC calendar month. Gap deltas contribute
// nothing; a month made only of gaps is itself a gap.
func monthly(raw models.RawSeries, w Window) models.DisplaySeries {
	var out models.DisplaySeries
	for _, d := range daily(raw, w) {
		t := time.Unix(d.X, 0).UTC()
		month := time.Date(t.Year(), t.Month(), 1, 0, 0, 0, 0, time.UTC).Unix()

		if n := len(out); n > 0 && out[n-1].X == month {
			last := &out[n-1]
			last.Y += d.Y
			last.Gap = last.Gap && d.Gap
			last.Extra[ExtraTotal] = d.Extra[ExtraTotal]
			continue
		}
		out = append(out, models.Point{
			X:     month,
			Y:     d.Y,
			Gap:   d.Gap,
			Extra: map[string]int64{ExtraTotal: d.Extra[ExtraTotal]},
		})
	}
	return out
}
