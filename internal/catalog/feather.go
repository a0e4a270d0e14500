package catalog

import (
	"fmt"
	"math"
	"os"
	"strings"

	"github.com/apache/arrow-go/v18/arrow"
	"github.com/apache/arrow-go/v18/arrow/array"
	"github.com/apache/arrow-go/v18/arrow/ipc"
	"github.com/apache/arrow-go/v18/arrow/memory"

	"climatecheck/internal/models"
)

// Accepted column names per station attribute, matched case-insensitively
var featherColumns = struct {
	id, name, lat, lon, ele, start, end []string
}{
	id:    []string{"id", "station_id", "station"},
	name:  []string{"name", "station_name"},
	lat:   []string{"lat", "latitude"},
	lon:   []string{"lon", "lng", "longitude"},
	ele:   []string{"ele", "elevation"},
	start: []string{"start", "period_start", "firstyear", "first_year"},
	end:   []string{"end", "period_end", "lastyear", "last_year"},
}

// featherLayout maps attributes to column indices; -1 marks an absent optional column
type featherLayout struct {
	id, name, lat, lon, ele, start, end int
}

func findColumn(schema *arrow.Schema, names []string) int {
	for i, f := range schema.Fields() {
		for _, n := range names {
			if strings.EqualFold(f.Name, n) {
				return i
			}
		}
	}
	return -1
}

func resolveLayout(schema *arrow.Schema) (featherLayout, error) {
	layout := featherLayout{
		id:    findColumn(schema, featherColumns.id),
		name:  findColumn(schema, featherColumns.name),
		lat:   findColumn(schema, featherColumns.lat),
		lon:   findColumn(schema, featherColumns.lon),
		ele:   findColumn(schema, featherColumns.ele),
		start: findColumn(schema, featherColumns.start),
		end:   findColumn(schema, featherColumns.end),
	}

	required := map[string]int{"id": layout.id, "name": layout.name, "lat": layout.lat, "lon": layout.lon}
	for _, col := range []string{"id", "name", "lat", "lon"} {
		if required[col] < 0 {
			return layout, fmt.Errorf("missing required column %q", col)
		}
	}

	return layout, nil
}

// LoadFeather reads a Feather v2 (Arrow IPC file) station snapshot
func LoadFeather(path string) ([]models.StationRecord, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, &models.DataUnavailableError{Source: path, Reason: "failed to open catalog snapshot", Err: err}
	}
	defer file.Close()

	reader, err := ipc.NewFileReader(file, ipc.WithAllocator(memory.NewGoAllocator()))
	if err != nil {
		return nil, &models.DataUnavailableError{Source: path, Reason: "not a readable feather file", Err: err}
	}
	defer reader.Close()

	layout, err := resolveLayout(reader.Schema())
	if err != nil {
		return nil, &models.DataUnavailableError{Source: path, Reason: "malformed catalog snapshot", Err: err}
	}

	var stations []models.StationRecord
	for i := 0; i < reader.NumRecords(); i++ {
		rec, err := reader.Record(i)
		if err != nil {
			return nil, &models.DataUnavailableError{Source: path, Reason: "failed to read record batch", Err: err}
		}

		cols := make([]arrow.Array, rec.NumCols())
		for c := range cols {
			cols[c] = rec.Column(c)
		}

		batch, err := decodeBatch(cols, int(rec.NumRows()), layout)
		if err != nil {
			return nil, &models.DataUnavailableError{
				Source: path,
				Reason: fmt.Sprintf("malformed record batch %d", i),
				Err:    err,
			}
		}
		stations = append(stations, batch...)
	}

	return stations, nil
}

func decodeBatch(cols []arrow.Array, rows int, layout featherLayout) ([]models.StationRecord, error) {
	stations := make([]models.StationRecord, 0, rows)

	for row := 0; row < rows; row++ {
		var s models.StationRecord
		var err error

		if s.ID, err = stringAt(cols[layout.id], row); err != nil {
			return nil, fmt.Errorf("row %d id: %w", row, err)
		}
		if s.Name, err = stringAt(cols[layout.name], row); err != nil {
			return nil, fmt.Errorf("row %d name: %w", row, err)
		}

		lat, ok, err := floatAt(cols[layout.lat], row)
		if err != nil || !ok {
			return nil, fmt.Errorf("row %d lat: missing or invalid (%v)", row, err)
		}
		lon, ok, err := floatAt(cols[layout.lon], row)
		if err != nil || !ok {
			return nil, fmt.Errorf("row %d lon: missing or invalid (%v)", row, err)
		}
		s.Latitude = lat
		s.Longitude = lon

		if layout.ele >= 0 {
			ele, ok, err := floatAt(cols[layout.ele], row)
			if err != nil {
				return nil, fmt.Errorf("row %d ele: %w", row, err)
			}
			if ok && !isMissingElevation(ele) {
				s.Elevation = &ele
			}
		}

		if layout.start >= 0 {
			if s.PeriodStart, err = yearAt(cols[layout.start], row); err != nil {
				return nil, fmt.Errorf("row %d start: %w", row, err)
			}
		}
		if layout.end >= 0 {
			if s.PeriodEnd, err = yearAt(cols[layout.end], row); err != nil {
				return nil, fmt.Errorf("row %d end: %w", row, err)
			}
		}

		if err := s.Validate(); err != nil {
			return nil, fmt.Errorf("row %d: %w", row, err)
		}

		stations = append(stations, s)
	}

	return stations, nil
}

func stringAt(col arrow.Array, i int) (string, error) {
	if col.IsNull(i) {
		return "", nil
	}

	switch c := col.(type) {
	case *array.String:
		return strings.TrimSpace(c.Value(i)), nil
	case *array.LargeString:
		return strings.TrimSpace(c.Value(i)), nil
	case *array.Binary:
		return strings.TrimSpace(string(c.Value(i))), nil
	default:
		return "", fmt.Errorf("unsupported string column type %s", col.DataType())
	}
}

// floatAt returns the numeric cell as float64; ok is false for null or NaN
func floatAt(col arrow.Array, i int) (float64, bool, error) {
	if col.IsNull(i) {
		return 0, false, nil
	}

	var v float64
	switch c := col.(type) {
	case *array.Float64:
		v = c.Value(i)
	case *array.Float32:
		v = float64(c.Value(i))
	case *array.Int64:
		v = float64(c.Value(i))
	case *array.Int32:
		v = float64(c.Value(i))
	case *array.Int16:
		v = float64(c.Value(i))
	case *array.Int8:
		v = float64(c.Value(i))
	case *array.Uint16:
		v = float64(c.Value(i))
	case *array.Uint32:
		v = float64(c.Value(i))
	default:
		return 0, false, fmt.Errorf("unsupported numeric column type %s", col.DataType())
	}

	if math.IsNaN(v) {
		return 0, false, nil
	}
	return v, true, nil
}

func yearAt(col arrow.Array, i int) (int, error) {
	v, ok, err := floatAt(col, i)
	if err != nil || !ok {
		return 0, err
	}
	return int(v), nil
}
