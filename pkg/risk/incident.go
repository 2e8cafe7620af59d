package risk

import (
	"context"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"os"
	"strconv"
	"strings"
)

// Incident aggregates the crashes recorded at one location.
type Incident struct {
	Lat       float64
	Lon       float64
	Accidents float64
	Injured   float64
	Killed    float64
}

// Severity weights an incident: every crash counts once, injuries twice, deaths five times.
func (i Incident) Severity() float64 {
	return i.Accidents + 2*i.Injured + 5*i.Killed
}

var ErrIncidentFormat = errors.New("invalid incident file")

var requiredColumns = []string{"latitude", "longitude", "total_injured", "total_killed", "accidents"}

// LoadIncidentsCSV reads the incident statistics produced by the offline crash preprocessing.
func LoadIncidentsCSV(path string) ([]Incident, int, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, 0, err
	}
	defer f.Close()
	return ReadIncidentsCSV(f)
}

// ReadIncidentsCSV parses incident rows, locating columns by header name. Rows without a usable
// location are skipped and counted in the second return value.
func ReadIncidentsCSV(r io.Reader) ([]Incident, int, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1
	reader.TrimLeadingSpace = true

	header, err := reader.Read()
	if err != nil {
		return nil, 0, fmt.Errorf("%w: read header: %v", ErrIncidentFormat, err)
	}
	col := make(map[string]int, len(header))
	for i, h := range header {
		col[strings.ToLower(strings.TrimSpace(h))] = i
	}
	for _, name := range requiredColumns {
		if _, ok := col[name]; !ok {
			return nil, 0, fmt.Errorf("%w: missing column %q", ErrIncidentFormat, name)
		}
	}

	incidents := []Incident{}
	skipped := 0
	line := 1
	for {
		record, err := reader.Read()
		if err == io.EOF {
			break
		}
		line++
		if err != nil {
			return nil, skipped, fmt.Errorf("%w: line %d: %v", ErrIncidentFormat, line, err)
		}

		values := make([]float64, len(requiredColumns))
		ok := true
		for i, name := range requiredColumns {
			idx := col[name]
			if idx >= len(record) {
				ok = false
				break
			}
			values[i], ok = parseNumber(record[idx])
			if !ok {
				break
			}
		}
		if !ok {
			skipped++
			continue
		}

		inc := Incident{Lat: values[0], Lon: values[1], Injured: values[2], Killed: values[3], Accidents: values[4]}
		if !validLocation(inc.Lat, inc.Lon) || inc.Injured < 0 || inc.Killed < 0 || inc.Accidents < 0 {
			skipped++
			continue
		}
		incidents = append(incidents, inc)
	}
	return incidents, skipped, nil
}

func parseNumber(s string) (float64, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil || math.IsNaN(v) || math.IsInf(v, 0) {
		return 0, false
	}
	return v, true
}

// crash exports use 0,0 for unknown locations
func validLocation(lat, lon float64) bool {
	if lat == 0 && lon == 0 {
		return false
	}
	return lat >= -90 && lat <= 90 && lon >= -180 && lon <= 180
}

// CSVIncidentSource loads incidents from a csv file on every call.
type CSVIncidentSource struct {
	path   string
	logger *slog.Logger
}

func NewCSVIncidentSource(path string, logger *slog.Logger) *CSVIncidentSource {
	return &CSVIncidentSource{path: path, logger: logger}
}

func (s *CSVIncidentSource) LoadIncidents(ctx context.Context) ([]Incident, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	incidents, skipped, err := LoadIncidentsCSV(s.path)
	if err != nil {
		return nil, fmt.Errorf("load incidents %s: %w", s.path, err)
	}
	s.logger.Info("incident statistics loaded", slog.String("file", s.path),
		slog.Int("incidents", len(incidents)), slog.Int("skipped_rows", skipped))
	return incidents, nil
}
