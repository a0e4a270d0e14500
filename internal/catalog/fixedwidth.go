package catalog

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"climatecheck/internal/models"
)

// Column positions of ghcnd-stations.txt, 1-based and inclusive.
//
//	ID 1-11, LATITUDE 13-20, LONGITUDE 22-30, ELEVATION 32-37, STATE 39-40,
//	NAME 42-71, GSN/HCN/CRN flags 73-79, WMO ID 81-85
type span struct{ from, to int }

var (
	colID        = span{1, 11}
	colLatitude  = span{13, 20}
	colLongitude = span{22, 30}
	colElevation = span{32, 37}
	colName      = span{42, 71}
)

// missingElevation is the GHCN marker for an unknown elevation
const missingElevation = -999.9

// isMissingElevation matches the marker after a round trip through float32,
// which Feather snapshots may use for the elevation column.
func isMissingElevation(ele float64) bool {
	return ele <= missingElevation+0.05
}

// cut returns the trimmed text in s, tolerating short lines
func cut(line string, s span) string {
	if len(line) < s.from {
		return ""
	}
	end := s.to
	if len(line) < end {
		end = len(line)
	}
	return strings.TrimSpace(line[s.from-1 : end])
}

// LoadFixedWidth reads a ghcnd-stations.txt snapshot
func LoadFixedWidth(ctx context.Context, path string) ([]models.StationRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &models.DataUnavailableError{Source: path, Reason: "failed to open catalog snapshot", Err: err}
	}
	defer file.Close()

	stations, err := ParseFixedWidth(ctx, file)
	if err != nil {
		return nil, &models.DataUnavailableError{Source: path, Reason: "malformed catalog snapshot", Err: err}
	}
	return stations, nil
}

// ParseFixedWidth parses ghcnd-stations.txt rows from r
func ParseFixedWidth(ctx context.Context, r io.Reader) ([]models.StationRecord, error) {
	stations := make([]models.StationRecord, 0, 1024)

	scanner := bufio.NewScanner(r)
	lineNo := 0
	for scanner.Scan() {
		lineNo++
		if lineNo%4096 == 0 {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
		}

		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		station, err := parseStationLine(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", lineNo, err)
		}
		stations = append(stations, station)
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading catalog: %w", err)
	}

	return stations, nil
}

func parseStationLine(line string) (models.StationRecord, error) {
	station := models.StationRecord{
		ID:   cut(line, colID),
		Name: cut(line, colName),
	}

	lat, err := strconv.ParseFloat(cut(line, colLatitude), 64)
	if err != nil {
		return station, fmt.Errorf("invalid latitude: %w", err)
	}
	lon, err := strconv.ParseFloat(cut(line, colLongitude), 64)
	if err != nil {
		return station, fmt.Errorf("invalid longitude: %w", err)
	}
	station.Latitude = lat
	station.Longitude = lon

	if raw := cut(line, colElevation); raw != "" {
		ele, err := strconv.ParseFloat(raw, 64)
		if err != nil {
			return station, fmt.Errorf("invalid elevation: %w", err)
		}
		if !isMissingElevation(ele) {
			station.Elevation = &ele
		}
	}

	if err := station.Validate(); err != nil {
		return station, err
	}

	return station, nil
}
