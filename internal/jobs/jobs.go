package jobs

import (
	"context"
	"fmt"
	"time"

	"github.com/go-co-op/gocron"
	"github.com/rs/zerolog/log"
)

// SweepFunc is a periodic background job.
type SweepFunc func(ctx context.Context) error

// StartSweeps starts the background scheduler for the status sweep. It
// runs separately from the reconciliation loop so that completion and
// renames are picked up while the loop is stopped. An interval of 0
// disables the sweep.
func StartSweeps(ctx context.Context, intervalSeconds int, sweep SweepFunc) (*gocron.Scheduler, error) {
	s := gocron.NewScheduler(time.UTC)
	s.SingletonModeAll()

	if intervalSeconds <= 0 {
		log.Info().Msg("Status sync interval is 0, scheduled sync is disabled.")
		return s, nil
	}

	jobID := "status-sync"
	log.Info().Str("job", jobID).Int("interval_seconds", intervalSeconds).Msg("Scheduling job")

	_, err := s.Every(time.Duration(intervalSeconds) * time.Second).Tag(jobID).Do(func() {
		if ctx.Err() != nil {
			return
		}
		if err := sweep(ctx); err != nil {
			log.Error().Err(err).Str("job", jobID).Msg("Scheduled job failed")
		}
	})
	if err != nil {
		return nil, fmt.Errorf("schedule %s: %w", jobID, err)
	}

	log.Info().Msg("Starting background job scheduler...")
	s.StartAsync()
	return s, nil
}
