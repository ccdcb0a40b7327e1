// Package scheduler runs the clearing pipeline on a cron schedule.
// One-shot execution is the default; the scheduler only comes up when a
// schedule expression is configured.
package scheduler

import (
	"fmt"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"
)

// Scheduler wraps a cron runner with overlap protection: a tick that
// arrives while a run is still in progress is dropped, not queued.
type Scheduler struct {
	cron    *cron.Cron
	log     zerolog.Logger
	running chan struct{}
}

func New(log zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:    cron.New(),
		log:     log.With().Str("module", "scheduler").Logger(),
		running: make(chan struct{}, 1),
	}
}

// Start registers the job under the cron expression and starts the
// runner. The call returns immediately; job errors are logged, never
// fatal to the schedule.
func (s *Scheduler) Start(spec string, job func() error) error {
	_, err := s.cron.AddFunc(spec, func() {
		select {
		case s.running <- struct{}{}:
			defer func() { <-s.running }()
		default:
			s.log.Warn().Msg("Previous run still in progress, skipping tick")
			return
		}

		s.log.Info().Msg("Scheduled run starting")
		if err := job(); err != nil {
			s.log.Error().Err(err).Msg("Scheduled run failed")
		}
	})
	if err != nil {
		return fmt.Errorf("invalid schedule %q: %w", spec, err)
	}

	s.cron.Start()
	s.log.Info().Str("schedule", spec).Msg("Scheduler started")
	return nil
}

// Stop stops the cron runner and waits for an in-flight job to finish.
func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.running <- struct{}{}
	<-s.running
}
