package usecase

import (
	"context"
	"time"

	"go.uber.org/zap"

	"ChannelPublisher/internal/logging"
	"ChannelPublisher/internal/ports"
)

// Scheduler wires the interval driver with the publish use case.
type Scheduler struct {
	driver     ports.Scheduler
	pipeline   *Pipeline
	runTimeout time.Duration
	logger     *zap.Logger
}

// NewScheduler returns a helper to start/stop recurring publish runs. Each
// run is bounded by runTimeout when it is positive.
func NewScheduler(driver ports.Scheduler, pipeline *Pipeline, runTimeout time.Duration, logger *zap.Logger) *Scheduler {
	return &Scheduler{driver: driver, pipeline: pipeline, runTimeout: runTimeout, logger: logging.OrNop(logger)}
}

// Start registers the pipeline with the provided scheduler.
func (s *Scheduler) Start(ctx context.Context) error {
	if s.driver == nil || s.pipeline == nil {
		return nil
	}

	job := func(trigger time.Time) {
		runCtx, cancel := withTimeout(ctx, s.runTimeout)
		defer cancel()

		log := s.logger.With(zap.Time("trigger", trigger))
		res, err := s.pipeline.Publish(runCtx)
		switch {
		case err != nil:
			log.Error("scheduled publish failed", zap.Error(err))
		case res.Candidate == nil:
			log.Info("scheduled publish: nothing pending", zap.Int("inserted", res.Inserted))
		default:
			log.Info("scheduled publish done",
				zap.String("id", res.Candidate.ID),
				zap.String("url", res.Candidate.URL),
				zap.Int("inserted", res.Inserted))
		}
	}

	return s.driver.Start(ctx, job)
}

// Stop gracefully tears down the underlying scheduler.
func (s *Scheduler) Stop(ctx context.Context) error {
	if s.driver == nil {
		return nil
	}

	return s.driver.Stop(ctx)
}
