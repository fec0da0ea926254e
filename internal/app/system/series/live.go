package series

import (
	"time"

	"github.com/dalemusser/stratachart/internal/domain/models"
)

// HoursPerDay is the length of the shared live x-domain.
const HoursPerDay = 24

// Hours places a day's live samples on the elapsed-time-of-day domain: one
// point per hour with X in seconds since local midnight. Each hour holds the
// last sample taken in it; hours without a sample are gaps. Every result has
// HoursPerDay points, so today and any comparison day overlay directly.
func Hours(raw models.RawSeries, loc *time.Location) models.DisplaySeries {
	if loc == nil {
		loc = time.UTC
	}
	out := make(models.DisplaySeries, HoursPerDay)
	for h := range out {
		out[h] = models.Point{X: int64(h * 3600), Gap: true}
	}
	for _, p := range raw {
		h := p.T.In(loc).Hour()
		out[h].Y = p.Value
		out[h].Gap = false
	}
	return out
}
