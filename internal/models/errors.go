package models

import "fmt"

// ValidationError represents a data validation error
type ValidationError struct {
	Field   string
	Value   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

// IsTransient returns false as validation errors are permanent
func (e *ValidationError) IsTransient() bool {
	return false
}

// NotFoundError represents a resource not found error
type NotFoundError struct {
	Resource string
	ID       string
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Resource, e.ID)
}

func (e *NotFoundError) IsTransient() bool {
	return false
}

// DataUnavailableError reports a catalog snapshot that is missing or corrupt,
// or a station series that could not be fetched or parsed.
type DataUnavailableError struct {
	Source string
	Reason string
	Err    error
	// Transient marks failures that may clear up on a later request:
	// network errors and upstream 5xx responses.
	Transient bool
}

func (e *DataUnavailableError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("data unavailable from %s: %s: %v", e.Source, e.Reason, e.Err)
	}
	return fmt.Sprintf("data unavailable from %s: %s", e.Source, e.Reason)
}

func (e *DataUnavailableError) Unwrap() error {
	return e.Err
}

// IsTransient reports the Transient flag; the caller decides whether to ask
// again. Nothing in this module retries.
func (e *DataUnavailableError) IsTransient() bool {
	return e.Transient
}

// NoUsableFieldError reports a fetched series that carries neither TMAX nor TAVG
type NoUsableFieldError struct {
	StationID string
}

func (e *NoUsableFieldError) Error() string {
	return fmt.Sprintf("station %s has neither %s nor %s data", e.StationID, FieldTMAX, FieldTAVG)
}

func (e *NoUsableFieldError) IsTransient() bool {
	return false
}
