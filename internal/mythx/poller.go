package mythx

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"time"
)

// Poll policy defaults.
const (
	// DefaultInitialDelayFloor is the minimum wait before the first status
	// check. No observed job finishes faster.
	DefaultInitialDelayFloor = 45 * time.Second

	DefaultQuickTimeout    = 5 * time.Minute
	DefaultFullTimeout     = 5 * time.Hour
	DefaultPollInterval    = 1 * time.Second
	DefaultMaxPollInterval = 30 * time.Second
	DefaultBackoffFactor   = 2.0
)

// PollPolicy controls polling. Zero fields take the Default* values.
type PollPolicy struct {
	InitialDelayFloor time.Duration
	QuickTimeout      time.Duration
	FullTimeout       time.Duration
	Interval          time.Duration
	MaxInterval       time.Duration
	BackoffFactor     float64
}

// DefaultPollPolicy returns the production policy.
func DefaultPollPolicy() PollPolicy {
	return PollPolicy{
		InitialDelayFloor: DefaultInitialDelayFloor,
		QuickTimeout:      DefaultQuickTimeout,
		FullTimeout:       DefaultFullTimeout,
		Interval:          DefaultPollInterval,
		MaxInterval:       DefaultMaxPollInterval,
		BackoffFactor:     DefaultBackoffFactor,
	}
}

// withDefaults fills zero fields from DefaultPollPolicy.
func (p PollPolicy) withDefaults() PollPolicy {
	d := DefaultPollPolicy()

	if p.InitialDelayFloor <= 0 {
		p.InitialDelayFloor = d.InitialDelayFloor
	}

	if p.QuickTimeout <= 0 {
		p.QuickTimeout = d.QuickTimeout
	}

	if p.FullTimeout <= 0 {
		p.FullTimeout = d.FullTimeout
	}

	if p.Interval <= 0 {
		p.Interval = d.Interval
	}

	if p.MaxInterval < p.Interval {
		p.MaxInterval = max(d.MaxInterval, p.Interval)
	}

	if p.BackoffFactor < 1 {
		p.BackoffFactor = d.BackoffFactor
	}

	return p
}

// timeoutFor returns the polling budget for a submission: the explicit value
// if given, else the mode default.
func (p PollPolicy) timeoutFor(sub *Submission) time.Duration {
	if sub.Timeout > 0 {
		return sub.Timeout
	}

	if sub.mode() == ModeFull {
		return p.FullTimeout
	}

	return p.QuickTimeout
}

// initialDelayFor clamps the requested delay to the floor. Callers may ask
// for a longer wait, never a shorter one.
func (p PollPolicy) initialDelayFor(sub *Submission) time.Duration {
	return max(sub.InitialDelay, p.InitialDelayFloor)
}

// interval returns the wait after the given poll attempt (0-based):
// Interval * BackoffFactor^attempt, capped at MaxInterval.
func (p PollPolicy) interval(attempt int) time.Duration {
	d := float64(p.Interval) * math.Pow(p.BackoffFactor, float64(attempt))
	if d > float64(p.MaxInterval) {
		return p.MaxInterval
	}

	return time.Duration(d)
}

// pollJob describes one bounded polling run.
type pollJob struct {
	uuid         string
	start        time.Time     // submission time; delay and deadline count from here
	timeout      time.Duration // total budget from start
	initialDelay time.Duration // already clamped
	debug        int
}

// poller turns a pending job into a terminal status record.
type poller struct {
	policy    PollPolicy
	fetch     func(ctx context.Context, uuid string) (*Analysis, error)
	nowFunc   func() time.Time
	sleepFunc func(ctx context.Context, d time.Duration) error
	logger    *slog.Logger
}

// run waits out the initial delay, then polls until the job is terminal or
// the deadline passes. No poll is issued at or after the deadline.
func (p *poller) run(ctx context.Context, job pollJob) (*Analysis, error) {
	deadline := job.start.Add(job.timeout)
	level := slog.LevelDebug

	if job.debug > 0 {
		level = slog.LevelInfo
	}

	p.logger.Log(ctx, level, "waiting before first status check",
		slog.String("uuid", job.uuid),
		slog.Duration("initial_delay", job.initialDelay),
		slog.Duration("timeout", job.timeout),
	)

	first := job.start.Add(job.initialDelay)
	if deadline.Before(first) {
		first = deadline
	}

	wait := first.Sub(p.nowFunc())
	if err := p.sleep(ctx, job.uuid, wait); err != nil {
		return nil, err
	}

	var last Status

	for attempt := 0; ; attempt++ {
		now := p.nowFunc()
		if !now.Before(deadline) {
			p.logger.Warn("polling deadline reached",
				slog.String("uuid", job.uuid),
				slog.String("last_status", string(last)),
				slog.Int("polls", attempt),
			)

			return nil, &PollTimeoutError{UUID: job.uuid, Elapsed: now.Sub(job.start), LastStatus: last}
		}

		a, err := p.fetch(ctx, job.uuid)
		if err != nil {
			return nil, err
		}

		last = a.Status
		next := min(p.policy.interval(attempt), deadline.Sub(p.nowFunc()))

		p.logger.Log(ctx, level, "polled analysis status",
			slog.String("uuid", job.uuid),
			slog.String("status", string(a.Status)),
			slog.Int("attempt", attempt+1),
			slog.Duration("elapsed", p.nowFunc().Sub(job.start)),
			slog.Duration("next_wait", next),
		)

		if job.debug > 1 {
			p.logger.Info("analysis record", slog.Any("record", a))
		}

		if a.Status.Terminal() {
			return a, nil
		}

		if err := p.sleep(ctx, job.uuid, next); err != nil {
			return nil, err
		}
	}
}

func (p *poller) sleep(ctx context.Context, uuid string, d time.Duration) error {
	if d <= 0 {
		return nil
	}

	if err := p.sleepFunc(ctx, d); err != nil {
		return fmt.Errorf("mythx: polling %s canceled: %w", uuid, err)
	}

	return nil
}

// timeSleep waits for the given duration or until the context is canceled.
// It is the default sleepFunc.
func timeSleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
