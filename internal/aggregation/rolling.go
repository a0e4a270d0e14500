package aggregation

import (
	"fmt"

	"climatecheck/internal/models"
)

// RollingWindow is the number of yearly means in each trailing average
const RollingWindow = 5

// YearlyPoint is the mean of one year and the trailing average ending at it.
// Rolling is nil until a full window of years is available.
type YearlyPoint struct {
	Year    int      `json:"year"`
	Mean    float64  `json:"mean"`
	Count   int      `json:"count"`
	Rolling *float64 `json:"rolling"`
}

// YearlyRollingMean is the smoothed yearly trend, ascending by year
type YearlyRollingMean struct {
	Field  models.Field  `json:"field"`
	Window int           `json:"window"`
	Points []YearlyPoint `json:"points"`
}

// BuildRollingYearlyMean averages every year with at least one reading, with no
// start-year floor, then applies a trailing simple moving average of
// RollingWindow entries over those yearly means.
func BuildRollingYearlyMean(ts TemperatureSeries) YearlyRollingMean {
	trend := YearlyRollingMean{
		Field:  ts.Field,
		Window: RollingWindow,
		Points: []YearlyPoint{},
	}

	var sum float64
	for _, p := range ts.Points {
		year := p.Date.Year()
		n := len(trend.Points)
		if n == 0 || trend.Points[n-1].Year != year {
			if n > 0 {
				trend.Points[n-1].Mean = sum / float64(trend.Points[n-1].Count)
			}
			trend.Points = append(trend.Points, YearlyPoint{Year: year})
			sum = 0
			n++
		}
		sum += p.Celsius
		trend.Points[n-1].Count++
	}
	if n := len(trend.Points); n > 0 {
		trend.Points[n-1].Mean = sum / float64(trend.Points[n-1].Count)
	}

	for i := RollingWindow - 1; i < len(trend.Points); i++ {
		var windowSum float64
		for j := i - RollingWindow + 1; j <= i; j++ {
			windowSum += trend.Points[j].Mean
		}
		rolling := windowSum / RollingWindow
		trend.Points[i].Rolling = &rolling
	}

	return trend
}

// Title labels the trend chart with the selected field
func (t YearlyRollingMean) Title() string {
	return fmt.Sprintf("%d-year rolling mean of yearly %s (°C)", t.Window, t.Field)
}
