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

// ghcnd-inventory.txt: ID 1-11, LATITUDE 13-20, LONGITUDE 22-30,
// ELEMENT 32-35, FIRSTYEAR 37-40, LASTYEAR 42-45
var (
	colInvElement   = span{32, 35}
	colInvFirstYear = span{37, 40}
	colInvLastYear  = span{42, 45}
)

// Period is a station's period of record in calendar years
type Period struct {
	Start int
	End   int
}

// LoadInventory reads the TMAX/TAVG periods of record from a ghcnd-inventory.txt file
func LoadInventory(ctx context.Context, path string) (map[string]Period, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &models.DataUnavailableError{Source: path, Reason: "failed to open station inventory", Err: err}
	}
	defer file.Close()

	periods, err := ParseInventory(ctx, file)
	if err != nil {
		return nil, &models.DataUnavailableError{Source: path, Reason: "malformed station inventory", Err: err}
	}
	return periods, nil
}

// ParseInventory returns, per station, the widest period covered by its
// TMAX or TAVG element rows. Other elements are ignored.
func ParseInventory(ctx context.Context, r io.Reader) (map[string]Period, error) {
	periods := make(map[string]Period)

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

		element := models.Field(cut(line, colInvElement))
		if element != models.FieldTMAX && element != models.FieldTAVG {
			continue
		}

		id := cut(line, colID)
		if id == "" {
			return nil, fmt.Errorf("line %d: missing station id", lineNo)
		}

		first, err := strconv.Atoi(cut(line, colInvFirstYear))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid first year: %w", lineNo, err)
		}
		last, err := strconv.Atoi(cut(line, colInvLastYear))
		if err != nil {
			return nil, fmt.Errorf("line %d: invalid last year: %w", lineNo, err)
		}

		p, ok := periods[id]
		if !ok {
			periods[id] = Period{Start: first, End: last}
			continue
		}
		if first < p.Start {
			p.Start = first
		}
		if last > p.End {
			p.End = last
		}
		periods[id] = p
	}

	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("error reading inventory: %w", err)
	}

	return periods, nil
}

// ApplyPeriods fills the period of record of stations found in periods.
// It runs at load time, before the records are published.
func ApplyPeriods(stations []models.StationRecord, periods map[string]Period) {
	for i := range stations {
		if p, ok := periods[stations[i].ID]; ok {
			stations[i].PeriodStart = p.Start
			stations[i].PeriodEnd = p.End
		}
	}
}
