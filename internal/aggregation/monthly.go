package aggregation

import (
	"fmt"
	"time"

	"climatecheck/internal/models"
)

// GridStartYear is the first year shown on the monthly heat map
const GridStartYear = 1980

// MonthlyCell is the mean of one calendar month that had readings
type MonthlyCell struct {
	Year  int        `json:"year"`
	Month time.Month `json:"month"`
	Mean  float64    `json:"mean"`
	Count int        `json:"count"`
}

// MonthlyGrid holds month-of-year by year means.
// Cells is sparse: a month without readings has no cell at all.
type MonthlyGrid struct {
	Field models.Field  `json:"field"`
	Years []int         `json:"years"`
	Cells []MonthlyCell `json:"cells"`
}

// BuildMonthlyGrid averages readings from GridStartYear onwards per calendar month.
// Years appear in ascending order and only when at least one month has data.
func BuildMonthlyGrid(ts TemperatureSeries) MonthlyGrid {
	grid := MonthlyGrid{
		Field: ts.Field,
		Years: []int{},
		Cells: []MonthlyCell{},
	}

	var (
		current MonthlyCell
		sum     float64
		open    bool
	)

	flush := func() {
		if !open {
			return
		}
		current.Mean = sum / float64(current.Count)
		grid.Cells = append(grid.Cells, current)
		if n := len(grid.Years); n == 0 || grid.Years[n-1] != current.Year {
			grid.Years = append(grid.Years, current.Year)
		}
	}

	// Points are ascending, so each month is one contiguous run.
	for _, p := range ts.Points {
		year, month, _ := p.Date.Date()
		if year < GridStartYear {
			continue
		}

		if !open || current.Year != year || current.Month != month {
			flush()
			current = MonthlyCell{Year: year, Month: month}
			sum = 0
			open = true
		}

		sum += p.Celsius
		current.Count++
	}
	flush()

	return grid
}

// Value returns the mean for (year, month) and whether that month had readings
func (g MonthlyGrid) Value(year int, month time.Month) (float64, bool) {
	for _, c := range g.Cells {
		if c.Year == year && c.Month == month {
			return c.Mean, true
		}
	}
	return 0, false
}

// Matrix lays the grid out as 12 rows (January first) by len(Years) columns.
// Months without readings are nil.
func (g MonthlyGrid) Matrix() [][]*float64 {
	col := make(map[int]int, len(g.Years))
	for i, y := range g.Years {
		col[y] = i
	}

	rows := make([][]*float64, 12)
	for i := range rows {
		rows[i] = make([]*float64, len(g.Years))
	}

	for _, c := range g.Cells {
		mean := c.Mean
		rows[int(c.Month)-1][col[c.Year]] = &mean
	}

	return rows
}

// Title labels the heat map with the selected field
func (g MonthlyGrid) Title() string {
	return fmt.Sprintf("Monthly mean %s (°C) since %d", g.Field, GridStartYear)
}
