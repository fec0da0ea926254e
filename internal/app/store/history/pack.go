package history

import (
	"errors"
	"time"

	"github.com/dalemusser/stratachart/internal/domain/models"
)

// ErrCorruptPack is returned when a packed series cannot be decoded.
var ErrCorruptPack = errors.New("corrupt packed series")

// Packed is the compressed form of a daily cumulative series. Days holds the
// gap in days from the previous sample (the first is 0) and Values the
// difference from the previous value (the first is absolute). Long, mostly
// smooth series encode to small integers.
type Packed struct {
	Start  time.Time `bson:"start"`
	Days   []int32   `bson:"days"`
	Values []int64   `bson:"values"`
}

// Len returns the number of samples.
func (p Packed) Len() int {
	return len(p.Values)
}

// Encode packs s. Samples are assumed ordered by time and day-aligned.
func Encode(s models.RawSeries) Packed {
	if len(s) == 0 {
		return Packed{}
	}
	p := Packed{
		Start:  truncateToDay(s[0].T),
		Days:   make([]int32, len(s)),
		Values: make([]int64, len(s)),
	}
	prevDay := p.Start
	var prevValue int64
	for i, pt := range s {
		d := truncateToDay(pt.T)
		p.Days[i] = int32(d.Sub(prevDay) / (24 * time.Hour))
		p.Values[i] = pt.Value - prevValue
		prevDay, prevValue = d, pt.Value
	}
	return p
}

// Decode is the inverse of Encode.
func Decode(p Packed) (models.RawSeries, error) {
	if len(p.Days) != len(p.Values) {
		return nil, ErrCorruptPack
	}
	if len(p.Values) == 0 {
		return models.RawSeries{}, nil
	}
	out := make(models.RawSeries, len(p.Values))
	day := truncateToDay(p.Start)
	var value int64
	for i := range p.Values {
		day = day.AddDate(0, 0, int(p.Days[i]))
		value += p.Values[i]
		out[i] = models.RawPoint{T: day, Value: value}
	}
	return out, nil
}

// truncateToDay returns the date truncated to midnight UTC.
func truncateToDay(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}
