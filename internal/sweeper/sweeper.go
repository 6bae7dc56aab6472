// Package sweeper periodically deletes expired auth tokens.
package sweeper

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/ErlanBelekov/user-management/internal/metrics"
	"github.com/robfig/cron/v3"
)

// TokenSweeper is satisfied by *usecase.TokenUsecase.
type TokenSweeper interface {
	Sweep(ctx context.Context, now time.Time) (int64, error)
}

type Sweeper struct {
	tokens   TokenSweeper
	schedule cron.Schedule
	logger   *slog.Logger
	now      func() time.Time
}

// New parses spec as a standard cron expression or descriptor ("@hourly").
func New(tokens TokenSweeper, spec string, logger *slog.Logger) (*Sweeper, error) {
	schedule, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse sweep schedule %q: %w", spec, err)
	}
	return &Sweeper{
		tokens:   tokens,
		schedule: schedule,
		logger:   logger.With("component", "sweeper"),
		now:      time.Now,
	}, nil
}

// Start runs a sweep at every schedule activation until ctx is done.
func (s *Sweeper) Start(ctx context.Context) {
	s.logger.Info("sweeper started")

	for {
		next := s.schedule.Next(s.now())
		timer := time.NewTimer(time.Until(next))

		select {
		case <-ctx.Done():
			timer.Stop()
			s.logger.Info("sweeper shut down")
			return
		case <-timer.C:
			_, _ = s.RunOnce(ctx)
		}
	}
}

// RunOnce deletes every token that has expired by now and reports the count.
func (s *Sweeper) RunOnce(ctx context.Context) (int64, error) {
	start := time.Now()
	defer func() {
		metrics.SweepCycleDuration.Observe(time.Since(start).Seconds())
	}()

	n, err := s.tokens.Sweep(ctx, s.now())
	if err != nil {
		metrics.SweepFailuresTotal.Inc()
		s.logger.ErrorContext(ctx, "sweep expired tokens", "error", err)
		return 0, err
	}

	metrics.TokensSweptTotal.Add(float64(n))
	if n > 0 {
		s.logger.InfoContext(ctx, "swept expired tokens", "count", n)
	}
	return n, nil
}
