package chartview

import (
	"github.com/dalemusser/stratachart/internal/app/system/series"
	"github.com/dalemusser/stratachart/internal/domain/models"
)

// Colour tokens understood by the renderer.
const (
	colorLiveToday   = "blue500"
	colorLiveCompare = "gray400"
)

var statColors = map[models.MainOption]string{
	models.MainConfirmed:         "red500",
	models.MainConfirmedCritical: "orange500",
	models.MainDeceased:          "gray700",
	models.MainTested:            "teal500",
}

func statColor(main models.MainOption) string {
	if c, ok := statColors[main]; ok {
		return c
	}
	return "gray500"
}

// seriesConfig returns the drawing config for a finalized statistic series.
func seriesConfig(main models.MainOption, typ string, tr func(string) string, statLabel string) models.SeriesConfig {
	cfg := models.SeriesConfig{
		Key:       string(main),
		ChartType: models.ChartBar,
		Color:     statColor(main),
		StatLabel: statLabel,
	}
	switch typ {
	case models.TypeAccumulated:
		cfg.ChartType = models.ChartLine
		cfg.TooltipLabel = tr("chart.tooltip.total")
	default:
		cfg.TooltipLabel = tr("chart.tooltip.new")
	}
	return cfg
}

var dateTicks = map[string]int{
	models.RangeOneWeek:     7,
	models.RangeOneMonth:    5,
	models.RangeThreeMonths: 6,
	models.RangeAll:         6,
}

// xAxis returns the x-axis descriptor for a finalized (type, range) view.
func xAxis(typ, rng string) models.Axis {
	if typ == models.TypeMonthly {
		return models.Axis{Kind: models.AxisMonth, Format: "YYYY.MM"}
	}
	ticks, ok := dateTicks[rng]
	if !ok {
		ticks = 6
	}
	return models.Axis{Kind: models.AxisDate, TickCount: ticks, Format: "MM.DD"}
}

func liveXAxis() models.Axis {
	return models.Axis{Kind: models.AxisElapsed, TickCount: series.HoursPerDay / 4, Format: "HH"}
}

func yAxis() models.Axis {
	return models.Axis{Kind: models.AxisCount, TickCount: 4}
}
