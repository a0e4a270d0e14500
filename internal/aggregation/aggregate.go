package aggregation

import (
	"fmt"

	"climatecheck/internal/models"
)

// Labels carries the chart text derived from the selected field
type Labels struct {
	HeatMapTitle string `json:"heat_map_title"`
	TrendTitle   string `json:"trend_title"`
	MonthAxis    string `json:"month_axis"`
	YearAxis     string `json:"year_axis"`
	ValueAxis    string `json:"value_axis"`
}

// Result holds both derived views of one station series
type Result struct {
	StationID string            `json:"station_id"`
	Field     models.Field      `json:"field"`
	Readings  int               `json:"readings"`
	Grid      MonthlyGrid       `json:"monthly_grid"`
	Trend     YearlyRollingMean `json:"rolling_yearly_mean"`
	Labels    Labels            `json:"labels"`
}

// Aggregate selects the field and builds both views; it either returns the
// complete result or an error, never a partial one.
func Aggregate(series *models.StationSeries) (*Result, error) {
	if series == nil {
		return nil, fmt.Errorf("aggregate: nil station series")
	}

	ts := SelectField(series)
	grid := BuildMonthlyGrid(ts)
	trend := BuildRollingYearlyMean(ts)

	return &Result{
		StationID: ts.StationID,
		Field:     ts.Field,
		Readings:  len(ts.Points),
		Grid:      grid,
		Trend:     trend,
		Labels: Labels{
			HeatMapTitle: grid.Title(),
			TrendTitle:   trend.Title(),
			MonthAxis:    "Month",
			YearAxis:     "Year",
			ValueAxis:    fmt.Sprintf("%s (°C)", ts.Field),
		},
	}, nil
}
