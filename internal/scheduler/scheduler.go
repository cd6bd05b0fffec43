package scheduler

import (
	"context"
	"errors"
	"time"

	"github.com/rs/zerolog"
)

// RefreshFunc recomputes the dashboards for one bucket.
type RefreshFunc func(ctx context.Context, bucket time.Time) error

// Options tune scheduler behaviour.
type Options struct {
	Interval     time.Duration
	AlignToStart bool
	StartupDelay time.Duration
	// RunOnStart refreshes the bucket containing the start time before waiting.
	RunOnStart bool
}

// Scheduler drives aligned dashboard refreshes.
type Scheduler struct {
	opts   Options
	logger zerolog.Logger
	now    func() time.Time
}

// New constructs a Scheduler instance.
func New(opts Options, logger zerolog.Logger) (*Scheduler, error) {
	if opts.Interval <= 0 {
		return nil, errors.New("scheduler interval must be positive")
	}
	return &Scheduler{
		opts:   opts,
		logger: logger.With().Str("component", "scheduler").Logger(),
		now:    func() time.Time { return time.Now().UTC() },
	}, nil
}

// Run blocks, invoking refresh at each aligned interval until ctx is cancelled.
// Refresh errors are logged and do not stop the loop.
func (s *Scheduler) Run(ctx context.Context, refresh RefreshFunc) error {
	if s.opts.StartupDelay > 0 {
		timer := time.NewTimer(s.opts.StartupDelay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	if s.opts.RunOnStart {
		s.execute(ctx, refresh, s.bucketStart(s.now()))
	}

	next := s.nextTick(s.now())
	for {
		delay := next.Sub(s.now())
		if delay < 0 {
			next = s.nextTick(s.now())
			delay = next.Sub(s.now())
		}

		timer := time.NewTimer(delay)
		s.logger.Debug().Time("next_bucket", next).Msg("waiting for next refresh")

		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		s.execute(ctx, refresh, s.bucketStart(next))
		next = next.Add(s.opts.Interval)
	}
}

func (s *Scheduler) execute(ctx context.Context, refresh RefreshFunc, bucket time.Time) {
	started := s.now()
	s.logger.Info().Time("bucket", bucket).Msg("refreshing dashboards")

	if err := refresh(ctx, bucket); err != nil {
		s.logger.Error().Err(err).Time("bucket", bucket).Msg("refresh failed")
		return
	}
	s.logger.Debug().Time("bucket", bucket).Dur("took", s.now().Sub(started)).Msg("refresh complete")
}

func (s *Scheduler) nextTick(now time.Time) time.Time {
	if !s.opts.AlignToStart {
		return now.Add(s.opts.Interval)
	}
	bucket := now.Truncate(s.opts.Interval)
	if !bucket.After(now) {
		bucket = bucket.Add(s.opts.Interval)
	}
	return bucket
}

func (s *Scheduler) bucketStart(t time.Time) time.Time {
	if !s.opts.AlignToStart {
		return t
	}
	return t.Truncate(s.opts.Interval)
}

// Buckets lists the aligned bucket starts in [from, to).
func Buckets(from, to time.Time, interval time.Duration) []time.Time {
	if interval <= 0 || !to.After(from) {
		return nil
	}
	start := from.UTC().Truncate(interval)
	if start.Before(from.UTC()) {
		start = start.Add(interval)
	}
	var buckets []time.Time
	for b := start; b.Before(to.UTC()); b = b.Add(interval) {
		buckets = append(buckets, b)
	}
	return buckets
}
