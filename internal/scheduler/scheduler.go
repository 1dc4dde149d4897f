package scheduler

import (
	"context"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"

	"airq-forecast/internal/ingest"
)

// Scheduler periodically re-runs the ingestion refresh. An interval of zero
// disables scheduling entirely; the dataset then only moves when /refresh is
// called.
type Scheduler struct {
	scheduler *gocron.Scheduler
	refresher *ingest.Refresher
	interval  time.Duration
	limit     int
}

func New(refresher *ingest.Refresher, interval time.Duration, limit int) *Scheduler {
	return &Scheduler{
		scheduler: gocron.NewScheduler(time.UTC),
		refresher: refresher,
		interval:  interval,
		limit:     limit,
	}
}

// Start schedules the periodic refresh job and starts the underlying
// scheduler. Jobs run one at a time: refreshes are not safe to overlap.
func (s *Scheduler) Start() error {
	if s.interval <= 0 {
		log.Info().Msg("scheduler: periodic refresh disabled")
		return nil
	}

	s.scheduler.SingletonModeAll()

	_, err := s.scheduler.Every(s.interval).Do(func() {
		log.Info().Dur("interval", s.interval).Msg("scheduler: running ingestion refresh")

		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Minute)
		defer cancel()

		res, err := s.refresher.Run(ctx, s.limit, "")
		if err != nil {
			log.Error().Err(err).Msg("scheduler: refresh failed")
			return
		}
		log.Info().Int("fetched", res.Fetched).Int("historical_total", res.HistoricalTotal).
			Msg("scheduler: refresh finished")
	})
	if err != nil {
		return err
	}

	s.scheduler.StartAsync()
	return nil
}

// Stop stops the scheduler and cancels any future jobs.
func (s *Scheduler) Stop() {
	if s.scheduler != nil {
		s.scheduler.Stop()
	}
}
