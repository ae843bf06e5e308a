package retry

// Retry with exponential backoff.
// Retryable: HTTP 429/500/502/503/504 and anything marked with MarkRateLimited.
// Two sleep modes: full jitter (public REST APIs) and a fixed doubling schedule
// (1s, 2s, 4s, ...) used against rate-limited RPC nodes.
// Retry-After on a 429 wins over both.

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"strconv"
	"strings"
	"time"
)

type Options struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
	Backoff    float64
	// NoJitter switches to the deterministic BaseDelay * Backoff^attempt schedule.
	NoJitter bool
	// OnRetry is called before each sleep.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// RPCBackoff is the 1s/2s/4s schedule used for rate-limited chain RPC calls.
var RPCBackoff = Options{
	MaxRetries: 3,
	BaseDelay:  time.Second,
	MaxDelay:   8 * time.Second,
	Backoff:    2.0,
	NoJitter:   true,
}

type HTTPError struct {
	StatusCode int
	Body       []byte
	RetryAfter time.Duration
}

func (e *HTTPError) Error() string {
	if e == nil {
		return "http error: <nil>"
	}
	if len(e.Body) == 0 {
		return fmt.Sprintf("http error (%d)", e.StatusCode)
	}
	return fmt.Sprintf("http error (%d): %s", e.StatusCode, string(e.Body))
}

type rateLimitedError struct{ err error }

func (e *rateLimitedError) Error() string { return e.err.Error() }
func (e *rateLimitedError) Unwrap() error { return e.err }

// MarkRateLimited wraps err so IsRetryable reports true for it.
func MarkRateLimited(err error) error {
	if err == nil {
		return nil
	}
	return &rateLimitedError{err: err}
}

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent wraps err so IsRetryable reports false for it whatever it wraps.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// IsRateLimited reports a JSON-RPC rate limit or an HTTP 429.
func IsRateLimited(err error) bool {
	var rl *rateLimitedError
	if errors.As(err, &rl) {
		return true
	}
	var he *HTTPError
	return errors.As(err, &he) && he.StatusCode == 429
}

func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	var pe *permanentError
	if errors.As(err, &pe) {
		return false
	}
	var rl *rateLimitedError
	if errors.As(err, &rl) {
		return true
	}
	var he *HTTPError
	if errors.As(err, &he) {
		switch he.StatusCode {
		case 429, 500, 502, 503, 504:
			return true
		}
	}
	return false
}

func ParseRetryAfter(v string) time.Duration {
	v = strings.TrimSpace(v)
	if v == "" {
		return 0
	}
	if secs, err := strconv.Atoi(v); err == nil && secs > 0 {
		return time.Duration(secs) * time.Second
	}
	for _, layout := range []string{time.RFC1123, time.RFC1123Z, time.RFC850, time.ANSIC} {
		if t, err := time.Parse(layout, v); err == nil {
			if d := time.Until(t); d > 0 {
				return d
			}
			return 0
		}
	}
	return 0
}

func clamp(d, max time.Duration) time.Duration {
	if max > 0 && d > max {
		return max
	}
	return d
}

func FullJitterSleep(attempt int, baseDelay, maxDelay time.Duration) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	if baseDelay <= 0 {
		return 0
	}
	maxForAttempt := clamp(baseDelay<<attempt, maxDelay)
	if maxForAttempt <= 0 {
		return 0
	}
	return time.Duration(rand.Int63n(int64(maxForAttempt) + 1))
}

// ExponentialSleep returns baseDelay * backoff^attempt, clamped to maxDelay.
func ExponentialSleep(attempt int, baseDelay, maxDelay time.Duration, backoff float64) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	d := float64(baseDelay)
	for i := 0; i < attempt; i++ {
		d *= backoff
	}
	return clamp(time.Duration(d), maxDelay)
}

func (o Options) withDefaults() Options {
	if o.MaxRetries < 0 {
		o.MaxRetries = 0
	}
	if o.BaseDelay <= 0 {
		o.BaseDelay = 300 * time.Millisecond
	}
	if o.Backoff <= 0 {
		o.Backoff = 2.0
	}
	return o
}

// Delay is the sleep before retry number attempt+1 for err.
func (o Options) Delay(attempt int, err error) time.Duration {
	o = o.withDefaults()
	var sleep time.Duration
	if o.NoJitter {
		sleep = ExponentialSleep(attempt, o.BaseDelay, o.MaxDelay, o.Backoff)
	} else {
		sleep = FullJitterSleep(attempt, o.BaseDelay, o.MaxDelay)
	}

	var he *HTTPError
	if errors.As(err, &he) && he.StatusCode == 429 && he.RetryAfter > 0 {
		sleep = clamp(he.RetryAfter, o.MaxDelay)
	}
	return sleep
}

func Do(ctx context.Context, opts Options, fn func() error) error {
	opts = opts.withDefaults()

	totalAttempts := 1 + opts.MaxRetries
	var lastErr error

	for attempt := 0; attempt < totalAttempts; attempt++ {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !IsRetryable(err) || attempt == totalAttempts-1 {
			return lastErr
		}

		sleep := opts.Delay(attempt, err)
		if opts.OnRetry != nil {
			opts.OnRetry(attempt+1, sleep, err)
		}

		t := time.NewTimer(sleep)
		select {
		case <-ctx.Done():
			t.Stop()
			return ctx.Err()
		case <-t.C:
		}
	}

	return lastErr
}
