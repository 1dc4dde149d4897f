// Package dataset reads the processed hourly CSV the ingestion pipeline
// produces. The file is the only persisted station state; it is re-read on
// every call so concurrent requests always observe the latest refresh, and
// nothing is cached in between.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"math"
	"os"
	"strconv"
	"strings"
	"time"

	"airq-forecast/internal/airq"
)

var (
	// ErrDatasetMissing is returned when the processed CSV does not exist
	// yet. The operator has to run the ingestion step first.
	ErrDatasetMissing = errors.New("processed dataset not found")

	// ErrStationNotFound is returned for a station id with no records.
	ErrStationNotFound = errors.New("station_id not found in processed data")

	// ErrCityNotFound is returned for a city with no matching stations.
	ErrCityNotFound = errors.New("city not found in processed data")
)

// Columns the processed CSV must contain. Extra columns are ignored.
var requiredColumns = []string{
	"station_id", "station_name", "city", "country", "lat", "lon", "datetime_utc", "pm25",
}

// Store is a flat-file measurement store over the processed CSV.
type Store struct {
	path string
}

func NewStore(path string) *Store {
	return &Store{path: path}
}

// Path returns the processed CSV location.
func (s *Store) Path() string {
	return s.path
}

// Load reads and parses the whole processed CSV.
func (s *Store) Load() ([]airq.Measurement, error) {
	f, err := os.Open(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w at %s; run the data ingestion first", ErrDatasetMissing, s.path)
		}
		return nil, fmt.Errorf("open processed dataset: %w", err)
	}
	defer f.Close()

	return ReadMeasurements(f)
}

// StationHistory returns every measurement for one station.
func (s *Store) StationHistory(stationID string) ([]airq.Measurement, error) {
	all, err := s.Load()
	if err != nil {
		return nil, err
	}

	var out []airq.Measurement
	for _, m := range all {
		if m.StationID == stationID {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrStationNotFound, stationID)
	}
	return out, nil
}

// Stations returns up to limit distinct station metadata rows in order of
// first appearance. limit <= 0 means no limit.
func (s *Store) Stations(limit int) ([]airq.Station, error) {
	all, err := s.Load()
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var out []airq.Station
	for _, m := range all {
		if seen[m.StationID] {
			continue
		}
		seen[m.StationID] = true
		out = append(out, airq.Station{
			StationID:   m.StationID,
			StationName: m.StationName,
			City:        m.City,
			Country:     m.Country,
			Lat:         m.Lat,
			Lon:         m.Lon,
		})
		if limit > 0 && len(out) >= limit {
			break
		}
	}
	return out, nil
}

// CityStations resolves a city (case-insensitive exact match) to its
// distinct station ids.
func (s *Store) CityStations(city string) ([]string, error) {
	all, err := s.Load()
	if err != nil {
		return nil, err
	}

	want := strings.ToLower(city)
	seen := make(map[string]bool)
	var out []string
	for _, m := range all {
		if strings.ToLower(m.City) != want {
			continue
		}
		if seen[m.StationID] {
			continue
		}
		seen[m.StationID] = true
		out = append(out, m.StationID)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("%w: %q", ErrCityNotFound, city)
	}
	return out, nil
}

// ReadMeasurements parses processed-schema CSV content. Columns are resolved
// by header name so column order does not matter; rows with an unparseable
// timestamp are skipped, a missing pm25 becomes NaN.
func ReadMeasurements(r io.Reader) ([]airq.Measurement, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1

	header, err := cr.Read()
	if err != nil {
		if err == io.EOF {
			return nil, nil
		}
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	idx := make(map[string]int, len(header))
	for i, name := range header {
		idx[strings.TrimSpace(name)] = i
	}
	for _, col := range requiredColumns {
		if _, ok := idx[col]; !ok {
			return nil, fmt.Errorf("processed dataset is missing required column %q", col)
		}
	}

	field := func(rec []string, col string) string {
		i := idx[col]
		if i >= len(rec) {
			return ""
		}
		return strings.TrimSpace(rec[i])
	}

	var out []airq.Measurement
	for {
		rec, err := cr.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}

		ts, err := ParseTimestamp(field(rec, "datetime_utc"))
		if err != nil {
			continue
		}

		out = append(out, airq.Measurement{
			StationID:   field(rec, "station_id"),
			StationName: field(rec, "station_name"),
			City:        field(rec, "city"),
			Country:     field(rec, "country"),
			Lat:         parseFloat(field(rec, "lat")),
			Lon:         parseFloat(field(rec, "lon")),
			Timestamp:   ts,
			PM25:        parseFloat(field(rec, "pm25")),
		})
	}
	return out, nil
}

// WriteMeasurements writes processed-schema CSV content, header included.
// NaN coordinates and values are written as empty fields.
func WriteMeasurements(w io.Writer, ms []airq.Measurement) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(requiredColumns); err != nil {
		return err
	}
	for _, m := range ms {
		rec := []string{
			m.StationID,
			m.StationName,
			m.City,
			m.Country,
			formatFloat(m.Lat),
			formatFloat(m.Lon),
			m.Timestamp.UTC().Format("2006-01-02 15:04:05"),
			formatFloat(m.PM25),
		}
		if err := cw.Write(rec); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func formatFloat(v float64) string {
	if math.IsNaN(v) {
		return ""
	}
	return strconv.FormatFloat(v, 'f', -1, 64)
}

// timestampLayouts are the formats ingestion and external tooling have been
// seen writing.
var timestampLayouts = []string{
	time.RFC3339,
	"2006-01-02 15:04:05",
	"2006-01-02T15:04:05",
	"2006-01-02 15:04",
	"2006-01-02",
}

// ParseTimestamp parses a processed-schema timestamp as UTC.
func ParseTimestamp(s string) (time.Time, error) {
	for _, layout := range timestampLayouts {
		if ts, err := time.Parse(layout, s); err == nil {
			return ts.UTC(), nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
}

func parseFloat(s string) float64 {
	if s == "" {
		return math.NaN()
	}
	v, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return math.NaN()
	}
	return v
}
