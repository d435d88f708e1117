package provider

import (
	"context"
	"errors"
	"time"
)

// DefaultPollInterval is the fixed delay between status checks.
const DefaultPollInterval = 2 * time.Second

// CheckFunc queries the remote job once. done reports a terminal outcome;
// otherwise the job is still running or the check hit a transient error.
type CheckFunc func(ctx context.Context) (out Outcome, done bool)

// PollUntil runs check immediately and then every interval until it reports
// a terminal outcome, the deadline passes or ctx is cancelled. The last two
// produce a Timeout outcome.
func PollUntil(ctx context.Context, b Backend, deadline time.Time, interval time.Duration, check CheckFunc) Outcome {
	if interval <= 0 {
		interval = DefaultPollInterval
	}

	pollCtx, cancel := context.WithDeadline(ctx, deadline)
	defer cancel()

	if out, done := check(pollCtx); done {
		return out
	}

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-pollCtx.Done():
			return Failure(TimedOut(b, timeoutCause(ctx, pollCtx)))
		case <-ticker.C:
			if out, done := check(pollCtx); done {
				return out
			}
		}
	}
}

func timeoutCause(parent, poll context.Context) error {
	if err := parent.Err(); err != nil {
		return err
	}
	if errors.Is(poll.Err(), context.DeadlineExceeded) {
		return context.DeadlineExceeded
	}
	return poll.Err()
}
