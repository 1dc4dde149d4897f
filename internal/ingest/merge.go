package ingest

import (
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"time"

	"airq-forecast/internal/airq"
	"airq-forecast/internal/dataset"
)

// Merge folds freshly fetched measurements into the historical set.
// Timestamps floor to the hour; duplicates by (station_id, hour) keep the
// newest occurrence, so fetched rows override history for the same hour.
// The result is sorted by station id, then time.
func Merge(history, fetched []airq.Measurement) []airq.Measurement {
	type key struct {
		station string
		ts      int64
	}

	byKey := make(map[key]airq.Measurement, len(history)+len(fetched))
	order := make([]key, 0, len(history)+len(fetched))

	add := func(m airq.Measurement) {
		m.Timestamp = m.Timestamp.UTC().Truncate(time.Hour)
		k := key{station: m.StationID, ts: m.Timestamp.Unix()}
		if _, exists := byKey[k]; !exists {
			order = append(order, k)
		}
		byKey[k] = m
	}

	for _, m := range history {
		add(m)
	}
	for _, m := range fetched {
		add(m)
	}

	sort.Slice(order, func(i, j int) bool {
		if order[i].station != order[j].station {
			return order[i].station < order[j].station
		}
		return order[i].ts < order[j].ts
	})

	out := make([]airq.Measurement, 0, len(order))
	for _, k := range order {
		out = append(out, byKey[k])
	}
	return out
}

// loadHistory reads the historical CSV; a file that does not exist yet is an
// empty history, not an error.
func loadHistory(path string) ([]airq.Measurement, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("open historical csv: %w", err)
	}
	defer f.Close()

	return dataset.ReadMeasurements(f)
}

// writeCSV writes measurements to path, creating parent directories.
func writeCSV(path string, ms []airq.Measurement) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create directory for %s: %w", path, err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	defer f.Close()

	if err := dataset.WriteMeasurements(f, ms); err != nil {
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}
