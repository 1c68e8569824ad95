// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


package retry

import (
	"context"
	"errors"
	"log/slog"
	"time"
)

// ErrInvalidMaxAttempts is returned when a policy allows no attempts at all.
var ErrInvalidMaxAttempts = errors.New("maxAttempts must be greater than 0")

// Policy describes how often and how long to wait between attempts.
type Policy struct {
	// MaxAttempts is the total number of attempts, including the first one.
	MaxAttempts int

	// BaseDelay is the delay after the first failure. It doubles on every
	// further failure unless Fixed is set.
	BaseDelay time.Duration

	// MinDelay and MaxDelay clamp the computed delay when non-zero.
	MinDelay time.Duration
	MaxDelay time.Duration

	// Fixed disables the exponential growth of BaseDelay.
	Fixed bool
}

// FixedPolicy returns a policy that sleeps delay between attempts.
func FixedPolicy(attempts int, delay time.Duration) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: delay, Fixed: true}
}

// ExponentialPolicy returns a policy that doubles base after every failure,
// clamped to [min, max].
func ExponentialPolicy(attempts int, base, min, max time.Duration) Policy {
	return Policy{MaxAttempts: attempts, BaseDelay: base, MinDelay: min, MaxDelay: max}
}

// Delay returns the wait after the given failed attempt (1-based).
func (p Policy) Delay(attempt int) time.Duration {
	delay := p.BaseDelay
	if !p.Fixed {
		for i := 1; i < attempt; i++ {
			delay *= 2
			if p.MaxDelay > 0 && delay >= p.MaxDelay {
				break
			}
		}
	}
	if p.MinDelay > 0 && delay < p.MinDelay {
		delay = p.MinDelay
	}
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	return delay
}

// AfterError asks the retry loop to wait at least Delay before the next
// attempt, typically because the server sent a Retry-After hint.
type AfterError struct {
	Err   error
	Delay time.Duration
}

func (e *AfterError) Error() string { return e.Err.Error() }

func (e *AfterError) Unwrap() error { return e.Err }

type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }

func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying. Do returns the wrapped error
// immediately.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Do runs operation until it succeeds, the policy is exhausted, the
// operation returns a Permanent error, or ctx is done.
// Returns the error from the last attempt if all attempts fail.
func Do(ctx context.Context, policy Policy, operation func() error) error {
	if policy.MaxAttempts <= 0 {
		return ErrInvalidMaxAttempts
	}

	var lastErr error
	for attempt := 1; attempt <= policy.MaxAttempts; attempt++ {
		// Check context before attempting
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = operation()
		if lastErr == nil {
			if attempt > 1 {
				slog.Debug("operation succeeded after retry", "attempt", attempt)
			}
			return nil
		}

		var permanent *permanentError
		if errors.As(lastErr, &permanent) {
			return permanent.err
		}

		// Don't sleep after the last attempt
		if attempt == policy.MaxAttempts {
			break
		}

		delay := policy.Delay(attempt)
		var after *AfterError
		if errors.As(lastErr, &after) && after.Delay > delay {
			delay = after.Delay
		}

		slog.Warn("operation failed, will retry",
			"attempt", attempt, "maxAttempts", policy.MaxAttempts, "delay", delay, "error", lastErr)

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return lastErr
}

// Fixed retries operation up to attempts times, sleeping delay between attempts.
func Fixed(ctx context.Context, attempts int, delay time.Duration, operation func() error) error {
	return Do(ctx, FixedPolicy(attempts, delay), operation)
}
