// Package aggregation turns a raw daily station record into the monthly heat-map
// grid and the rolling yearly trend.
//
// Every function here is pure: the same series always yields bit-identical output
// and nothing is cached between calls.
package aggregation

import (
	"time"

	"climatecheck/internal/models"
)

// TemperaturePoint is one daily reading in degrees Celsius
type TemperaturePoint struct {
	Date    time.Time `json:"date"`
	Celsius float64   `json:"celsius"`
}

// TemperatureSeries is the single field chosen for a station, in ascending date order
type TemperatureSeries struct {
	StationID string             `json:"station_id"`
	Field     models.Field       `json:"field"`
	Points    []TemperaturePoint `json:"points"`
}

// SelectField picks the temperature field with strictly more readings.
// TMAX wins only when its count exceeds TAVG's, so equal counts (including
// zero against zero) select TAVG. Readings are converted from tenths of a
// degree to degrees; missing days are left out.
func SelectField(series *models.StationSeries) TemperatureSeries {
	field := models.FieldTAVG
	if series.Count(models.FieldTMAX) > series.Count(models.FieldTAVG) {
		field = models.FieldTMAX
	}

	ts := TemperatureSeries{
		StationID: series.StationID(),
		Field:     field,
		Points:    make([]TemperaturePoint, 0, series.Len()),
	}

	for _, obs := range series.Observations() {
		v := obs.Value(field)
		if v == nil {
			continue
		}
		ts.Points = append(ts.Points, TemperaturePoint{
			Date:    obs.Date,
			Celsius: float64(*v) / 10.0,
		})
	}

	return ts
}
