package models

import (
	"sort"
	"strconv"
	"strings"
	"time"
)

// Field names a daily temperature measurement
type Field string

const (
	FieldTMAX Field = "TMAX"
	FieldTAVG Field = "TAVG"
)

// DateLayout is the DATE column layout of the per-station CSV
const DateLayout = "2006-01-02"

// missingSentinel marks an absent reading in GHCN fixed-format files
const missingSentinel = -9999

// DailyObservation is one calendar day of a station record.
// Temperatures are tenths of a degree Celsius; nil means no reading.
type DailyObservation struct {
	Date time.Time
	TMAX *int
	TAVG *int
}

// Value returns the reading for field f, or nil
func (o DailyObservation) Value(f Field) *int {
	switch f {
	case FieldTMAX:
		return o.TMAX
	case FieldTAVG:
		return o.TAVG
	default:
		return nil
	}
}

// RawDailyRecord represents a single row of a station CSV
// Used while parsing the remote series
type RawDailyRecord struct {
	Date string
	TMAX string
	TAVG string
}

// ToObservation converts RawDailyRecord to DailyObservation
// Blank cells and the -9999 sentinel become missing readings
func (r *RawDailyRecord) ToObservation() (DailyObservation, error) {
	date, err := time.Parse(DateLayout, strings.TrimSpace(r.Date))
	if err != nil {
		return DailyObservation{}, &ValidationError{
			Field:   "DATE",
			Value:   r.Date,
			Message: "invalid date format, expected YYYY-MM-DD",
		}
	}

	tmax, err := parseTenths(FieldTMAX, r.TMAX)
	if err != nil {
		return DailyObservation{}, err
	}

	tavg, err := parseTenths(FieldTAVG, r.TAVG)
	if err != nil {
		return DailyObservation{}, err
	}

	return DailyObservation{
		Date: date,
		TMAX: tmax,
		TAVG: tavg,
	}, nil
}

func parseTenths(field Field, raw string) (*int, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, nil
	}

	v, err := strconv.Atoi(raw)
	if err != nil {
		return nil, &ValidationError{
			Field:   string(field),
			Value:   raw,
			Message: "invalid " + string(field) + " value, expected integer tenths of a degree",
		}
	}

	if v == missingSentinel {
		return nil, nil
	}

	return &v, nil
}

// StationSeries is the raw daily record of one station.
// It can only be built through NewStationSeries, which guarantees that at
// least one of the TMAX and TAVG columns is present and that dates are unique.
type StationSeries struct {
	stationID    string
	hasTMAX      bool
	hasTAVG      bool
	observations []DailyObservation
}

// NewStationSeries validates observations and returns them as a series sorted by date.
// fields lists the measurement columns the source carried, whether or not any
// cell in them holds a reading.
func NewStationSeries(stationID string, fields []Field, observations []DailyObservation) (*StationSeries, error) {
	s := &StationSeries{stationID: stationID}

	for _, f := range fields {
		switch f {
		case FieldTMAX:
			s.hasTMAX = true
		case FieldTAVG:
			s.hasTAVG = true
		}
	}

	if !s.hasTMAX && !s.hasTAVG {
		return nil, &NoUsableFieldError{StationID: stationID}
	}

	sorted := make([]DailyObservation, len(observations))
	for i, obs := range observations {
		if obs.TMAX != nil && !s.hasTMAX {
			return nil, &ValidationError{
				Field:   string(FieldTMAX),
				Value:   obs.Date.Format(DateLayout),
				Message: "TMAX reading present but the series has no TMAX column",
			}
		}
		if obs.TAVG != nil && !s.hasTAVG {
			return nil, &ValidationError{
				Field:   string(FieldTAVG),
				Value:   obs.Date.Format(DateLayout),
				Message: "TAVG reading present but the series has no TAVG column",
			}
		}

		y, m, d := obs.Date.Date()
		obs.Date = time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
		sorted[i] = obs
	}

	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].Date.Before(sorted[j].Date)
	})

	for i := 1; i < len(sorted); i++ {
		if sorted[i].Date.Equal(sorted[i-1].Date) {
			return nil, &ValidationError{
				Field:   "DATE",
				Value:   sorted[i].Date.Format(DateLayout),
				Message: "duplicate date in station series: " + sorted[i].Date.Format(DateLayout),
			}
		}
	}

	s.observations = sorted
	return s, nil
}

// StationID returns the station the series belongs to
func (s *StationSeries) StationID() string {
	return s.stationID
}

// HasField reports whether the source carried a column for f
func (s *StationSeries) HasField(f Field) bool {
	switch f {
	case FieldTMAX:
		return s.hasTMAX
	case FieldTAVG:
		return s.hasTAVG
	default:
		return false
	}
}

// Len returns the number of days in the series
func (s *StationSeries) Len() int {
	return len(s.observations)
}

// Count returns the number of non-missing readings of f; an absent column counts zero
func (s *StationSeries) Count(f Field) int {
	if !s.HasField(f) {
		return 0
	}

	n := 0
	for _, obs := range s.observations {
		if obs.Value(f) != nil {
			n++
		}
	}
	return n
}

// Observations returns a copy of the days in ascending date order
func (s *StationSeries) Observations() []DailyObservation {
	out := make([]DailyObservation, len(s.observations))
	copy(out, s.observations)
	return out
}
