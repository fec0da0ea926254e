// internal/domain/models/series.go
package models

import "time"

// RawPoint is one (timestamp, counter) sample from a collaborator.
type RawPoint struct {
	T     time.Time `json:"t" bson:"t"`
	Value int64     `json:"value" bson:"value"`
}

// RawSeries is an ordered sequence of samples. Cumulative statistics are
// expected to be non-decreasing, but corrections may break that.
type RawSeries []RawPoint

// Last returns the final sample and ok=false for an empty series.
func (s RawSeries) Last() (RawPoint, bool) {
	if len(s) == 0 {
		return RawPoint{}, false
	}
	return s[len(s)-1], true
}

// Batch maps each requested statistic to its raw series.
type Batch map[MainOption]RawSeries

// LiveSeries maps hourly live keys ("today", comparison windows) to series.
type LiveSeries map[string]RawSeries

// Point is one display-ready sample. X is unix seconds on a date axis and
// elapsed seconds since midnight on an elapsed axis.
type Point struct {
	X     int64            `json:"x"`
	Y     int64            `json:"y"`
	Gap   bool             `json:"gap,omitempty"`
	Extra map[string]int64 `json:"extra,omitempty"`
}

// DisplaySeries is derived from a RawSeries and never mutated afterwards.
type DisplaySeries []Point

// SeriesConfig tells the renderer how to draw one data set. Key is the stable
// identifier of the data set (a statistic, or a live window such as "today").
type SeriesConfig struct {
	Key          string `json:"key,omitempty"`
	ChartType    string `json:"chartType"`
	Color        string `json:"color"`
	TooltipLabel string `json:"tooltipLabel,omitempty"`
	StatLabel    string `json:"statLabel,omitempty"`
	ShowPoints   bool   `json:"showPoints,omitempty"`
}

// DataSet pairs display data with its drawing config.
type DataSet struct {
	Data   DisplaySeries `json:"data"`
	Config SeriesConfig  `json:"config"`
}

// Chart types understood by the renderer.
const (
	ChartBar  = "bar"
	ChartLine = "line"
)

// Axis kinds.
const (
	AxisDate    = "date"
	AxisMonth   = "month"
	AxisElapsed = "elapsed"
	AxisCount   = "count"
)

// Axis describes one chart axis.
type Axis struct {
	Kind      string `json:"kind"`
	TickCount int    `json:"tickCount,omitempty"`
	Format    string `json:"format,omitempty"`
}

// DataSource is the attribution shown under finalized charts.
type DataSource struct {
	Label string `json:"label"`
	URL   string `json:"url,omitempty"`
}

// Chart is the payload handed to the renderer.
type Chart struct {
	Main       MainOption  `json:"main,omitempty"`
	DataSet    []DataSet   `json:"dataSet"`
	XAxis      Axis        `json:"xAxis"`
	YAxis      Axis        `json:"yAxis"`
	DataSource *DataSource `json:"dataSource,omitempty"`
}
