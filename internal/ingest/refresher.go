package ingest

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
)

// Refresher re-pulls source data and regenerates the dataset files. The
// source is injected once at startup; there is no lazily-resolved fetch
// routine.
//
// Run performs a blocking read-modify-write of the shared CSVs with no file
// locking: two refreshes running concurrently risk lost updates. This is a
// known limitation; callers are expected not to overlap refreshes.
type Refresher struct {
	source         Source
	augment        *Augmenter // optional coordinate backfill, may be nil
	historicalPath string
	processedPath  string
	jobTimeout     time.Duration
}

func NewRefresher(source Source, augment *Augmenter, historicalPath, processedPath string) *Refresher {
	return &Refresher{
		source:         source,
		augment:        augment,
		historicalPath: historicalPath,
		processedPath:  processedPath,
		jobTimeout:     5 * time.Minute,
	}
}

// Result summarizes one refresh run.
type Result struct {
	Fetched         int    `json:"fetched"`
	HistoricalTotal int    `json:"historical_total"`
	Out             string `json:"out"`
	Hist            string `json:"hist"`
}

// Run fetches synchronously and rewrites both CSVs. An upstream failure is
// returned to the caller; an empty fetch leaves the files untouched.
func (r *Refresher) Run(ctx context.Context, limit int, apiKey string) (Result, error) {
	fetched, err := r.source.Fetch(ctx, limit, apiKey)
	if err != nil {
		return Result{}, fmt.Errorf("fetch from %s failed: %w", r.source.Name(), err)
	}

	if len(fetched) == 0 {
		log.Warn().Str("source", r.source.Name()).Msg("no PM2.5 records returned from upstream")
		return Result{Out: r.processedPath, Hist: r.historicalPath}, nil
	}

	if r.augment != nil {
		filled := r.augment.Fill(fetched)
		if filled > 0 {
			log.Info().Int("stations", filled).Msg("backfilled missing station coordinates")
		}
	}

	history, err := loadHistory(r.historicalPath)
	if err != nil {
		return Result{}, err
	}

	merged := Merge(history, fetched)

	if err := writeCSV(r.historicalPath, merged); err != nil {
		return Result{}, err
	}
	if err := writeCSV(r.processedPath, merged); err != nil {
		return Result{}, err
	}

	return Result{
		Fetched:         len(fetched),
		HistoricalTotal: len(merged),
		Out:             r.processedPath,
		Hist:            r.historicalPath,
	}, nil
}

// RunBackground schedules a fire-and-forget refresh and returns immediately
// with the job id. Completion and failure are only observable in the logs;
// there is no status endpoint, and a background failure is swallowed after
// logging because there is no caller left to notify.
func (r *Refresher) RunBackground(limit int, apiKey string) string {
	jobID := uuid.NewString()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), r.jobTimeout)
		defer cancel()

		log.Info().Str("job_id", jobID).Str("source", r.source.Name()).Int("limit", limit).
			Msg("background refresh started")

		res, err := r.Run(ctx, limit, apiKey)
		if err != nil {
			log.Error().Str("job_id", jobID).Err(err).Msg("background refresh failed")
			return
		}

		log.Info().Str("job_id", jobID).
			Int("fetched", res.Fetched).
			Int("historical_total", res.HistoricalTotal).
			Str("out", res.Out).
			Msg("background refresh finished")
	}()

	return jobID
}
