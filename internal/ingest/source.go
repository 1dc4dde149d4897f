// Package ingest pulls PM2.5 records from upstream air-quality APIs and
// maintains the flat-file dataset: new records append to the historical
// CSV, duplicates collapse by (station, hour) keeping the newest, and the
// processed CSV the serving path reads is rewritten from the result.
package ingest

import (
	"context"

	"airq-forecast/internal/airq"
)

// Source abstracts an upstream air-quality API (CPCB, OpenAQ). Fetch
// returns normalized measurements; apiKey overrides the source's configured
// key for a single run and may be empty.
type Source interface {
	Name() string
	Fetch(ctx context.Context, limit int, apiKey string) ([]airq.Measurement, error)
}
