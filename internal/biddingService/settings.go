package bidding

import (
	"auction-engine/internal/biddingerrors"
	"auction-engine/utils"
	"context"
	"fmt"
	"time"
)

// Defaults used when no Option overrides them
const (
	DefaultLockTimeout    = 5 * time.Second
	DefaultMaxAttempts    = 3
	DefaultRetryBackoff   = 50 * time.Millisecond
	DefaultTriggerWindow  = 5 * time.Minute
	DefaultPublishTimeout = 5 * time.Second
)

type settings struct {
	now            func() time.Time
	lockTimeout    time.Duration
	maxAttempts    int
	retryBackoff   time.Duration
	triggerWindow  time.Duration
	publishTimeout time.Duration
}

func defaultSettings() settings {
	return settings{
		now:            func() time.Time { return time.Now().UTC() },
		lockTimeout:    DefaultLockTimeout,
		maxAttempts:    DefaultMaxAttempts,
		retryBackoff:   DefaultRetryBackoff,
		triggerWindow:  DefaultTriggerWindow,
		publishTimeout: DefaultPublishTimeout,
	}
}

// Option configures BiddingService and ResolutionService
type Option func(*settings)

// WithClock replaces the wall clock
func WithClock(now func() time.Time) Option {
	return func(s *settings) {
		if now != nil {
			s.now = now
		}
	}
}

// WithLockTimeout bounds each attempt to acquire the auction lock and commit
func WithLockTimeout(d time.Duration) Option {
	return func(s *settings) {
		if d > 0 {
			s.lockTimeout = d
		}
	}
}

// WithRetry sets how many times a transient failure is attempted and the
// initial backoff, which doubles after every failed attempt
func WithRetry(maxAttempts int, backoff time.Duration) Option {
	return func(s *settings) {
		if maxAttempts > 0 {
			s.maxAttempts = maxAttempts
		}
		if backoff >= 0 {
			s.retryBackoff = backoff
		}
	}
}

// WithTriggerWindow sets how close to end_date a bid must land to extend the auction
func WithTriggerWindow(d time.Duration) Option {
	return func(s *settings) {
		if d >= 0 {
			s.triggerWindow = d
		}
	}
}

func newSettings(opts []Option) settings {
	s := defaultSettings()
	for _, opt := range opts {
		opt(&s)
	}
	return s
}

// retry runs op until it succeeds, fails with a non-transient error, or the
// attempts are exhausted. Each attempt gets its own lock timeout and starts
// from scratch, so preconditions are always re-validated.
func (s settings) retry(ctx context.Context, name string, op func(ctx context.Context) error) error {
	backoff := s.retryBackoff
	var err error
	for attempt := 1; attempt <= s.maxAttempts; attempt++ {
		attemptCtx, cancel := context.WithTimeout(ctx, s.lockTimeout)
		err = op(attemptCtx)
		cancel()

		if err == nil || !biddingerrors.IsTransient(err) {
			return err
		}
		if attempt == s.maxAttempts {
			break
		}

		utils.Warn(name+": transient failure, retrying", map[string]any{
			"attempt": attempt,
			"backoff": backoff.String(),
			"error":   err.Error(),
		})
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return fmt.Errorf("%w: %v", biddingerrors.ErrTransientFailure, ctx.Err())
		}
		backoff *= 2
	}
	return fmt.Errorf("%s: gave up after %d attempts: %w", name, s.maxAttempts, err)
}

// publishContext detaches event delivery from the caller's cancellation.
// The commit has already happened, so the event must still go out.
func (s settings) publishContext(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), s.publishTimeout)
}
