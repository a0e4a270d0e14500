// Package catalog loads the station catalog snapshot.
//
// Two snapshot formats are supported: a Feather (Arrow IPC) table and the
// fixed-width ghcnd-stations.txt layout. Rows are returned in file order with
// no filtering. Any unreadable or malformed snapshot is reported as a
// models.DataUnavailableError; there is no partial result.
package catalog

import (
	"context"
	"path/filepath"
	"strings"

	"climatecheck/internal/models"
)

// Format identifies the snapshot encoding
type Format string

const (
	FormatAuto       Format = ""
	FormatFeather    Format = "feather"
	FormatFixedWidth Format = "fixed-width"
)

// Options controls where and how the catalog is read
type Options struct {
	Path   string
	Format Format

	// InventoryPath optionally names a ghcnd-inventory.txt used to fill the
	// period of record from the TMAX and TAVG element rows.
	InventoryPath string
}

// ParseFormat maps a configuration value to a Format
func ParseFormat(s string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "auto":
		return FormatAuto, nil
	case "feather", "arrow":
		return FormatFeather, nil
	case "fixed-width", "fixedwidth", "text", "txt":
		return FormatFixedWidth, nil
	default:
		return FormatAuto, &models.ValidationError{
			Field:   "catalog_format",
			Value:   s,
			Message: "invalid catalog format " + s + " (allowed: auto, feather, fixed-width)",
		}
	}
}

// DetectFormat picks the format from the file extension
func DetectFormat(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".feather", ".arrow", ".ipc":
		return FormatFeather
	default:
		return FormatFixedWidth
	}
}

// Load reads every station from the snapshot named by opts
func Load(ctx context.Context, opts Options) ([]models.StationRecord, error) {
	if opts.Path == "" {
		return nil, &models.DataUnavailableError{Source: "catalog", Reason: "no snapshot path configured"}
	}

	format := opts.Format
	if format == FormatAuto {
		format = DetectFormat(opts.Path)
	}

	var (
		stations []models.StationRecord
		err      error
	)

	switch format {
	case FormatFeather:
		stations, err = LoadFeather(opts.Path)
	case FormatFixedWidth:
		stations, err = LoadFixedWidth(ctx, opts.Path)
	default:
		return nil, &models.DataUnavailableError{Source: opts.Path, Reason: "unknown catalog format " + string(format)}
	}
	if err != nil {
		return nil, err
	}

	if opts.InventoryPath != "" {
		periods, err := LoadInventory(ctx, opts.InventoryPath)
		if err != nil {
			return nil, err
		}
		ApplyPeriods(stations, periods)
	}

	return stations, nil
}
