package models

import (
	"fmt"
	"time"
)

// StationRecord represents one row of the station catalog.
// Records are loaded once from the catalog snapshot and never mutated.
type StationRecord struct {
	ID          string   `json:"id" db:"station_id"`
	Name        string   `json:"name" db:"name"`
	Latitude    float64  `json:"latitude" db:"latitude"`
	Longitude   float64  `json:"longitude" db:"longitude"`
	Elevation   *float64 `json:"elevation,omitempty" db:"elevation"`
	PeriodStart int      `json:"period_start" db:"period_start"`
	PeriodEnd   int      `json:"period_end" db:"period_end"`
}

// Validate checks the fields every catalog row must carry
func (s *StationRecord) Validate() error {
	if s.ID == "" {
		return &ValidationError{Field: "id", Value: s.ID, Message: "station id is required"}
	}

	if s.Latitude < -90 || s.Latitude > 90 {
		return &ValidationError{
			Field:   "latitude",
			Value:   fmt.Sprintf("%f", s.Latitude),
			Message: fmt.Sprintf("invalid latitude for station %s: %f", s.ID, s.Latitude),
		}
	}

	if s.Longitude < -180 || s.Longitude > 180 {
		return &ValidationError{
			Field:   "longitude",
			Value:   fmt.Sprintf("%f", s.Longitude),
			Message: fmt.Sprintf("invalid longitude for station %s: %f", s.ID, s.Longitude),
		}
	}

	return nil
}

// StoredStation is a catalog row as persisted in the station store
type StoredStation struct {
	StationRecord
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// BBox is a map viewport in degrees
type BBox struct {
	MinLon float64
	MinLat float64
	MaxLon float64
	MaxLat float64
}

// Contains reports whether the station lies inside the box, edges included
func (b BBox) Contains(s StationRecord) bool {
	return s.Longitude >= b.MinLon && s.Longitude <= b.MaxLon &&
		s.Latitude >= b.MinLat && s.Latitude <= b.MaxLat
}

// String returns the bounding box as minLon,minLat,maxLon,maxLat
func (b BBox) String() string {
	return fmt.Sprintf("%.4f,%.4f,%.4f,%.4f", b.MinLon, b.MinLat, b.MaxLon, b.MaxLat)
}
