package retry

import (
	"context"
	"errors"
	"math"
	"math/rand/v2"
	"time"
)

// Config describes how an operation is retried.
type Config struct {
	MaxAttempts       int           `mapstructure:"max_attempts" json:"maxAttempts"`
	BaseDelay         time.Duration `mapstructure:"base_delay" json:"baseDelay"`
	BackoffMultiplier float64       `mapstructure:"backoff_multiplier" json:"backoffMultiplier"`
	MaxDelay          time.Duration `mapstructure:"max_delay" json:"maxDelay"`
	MaxJitter         time.Duration `mapstructure:"max_jitter" json:"maxJitter"`
}

// DefaultConfig is used for part uploads and presign batches.
func DefaultConfig() Config {
	return Config{
		MaxAttempts:       3,
		BaseDelay:         500 * time.Millisecond,
		BackoffMultiplier: 2,
		MaxDelay:          10 * time.Second,
		MaxJitter:         250 * time.Millisecond,
	}
}

// Delay returns the wait before retrying after the given 1-indexed attempt failed.
//
//	min(BaseDelay * BackoffMultiplier^(attempt-1), MaxDelay) + U[0, MaxJitter]
//
// Jitter is added on top of the capped value so it never lowers the floor.
func Delay(attempt int, cfg Config) time.Duration {
	if attempt < 1 {
		attempt = 1
	}

	mult := cfg.BackoffMultiplier
	if mult < 1 {
		mult = 1
	}

	backoff := float64(cfg.BaseDelay) * math.Pow(mult, float64(attempt-1))
	if cfg.MaxDelay > 0 && backoff > float64(cfg.MaxDelay) {
		backoff = float64(cfg.MaxDelay)
	}
	// guard against overflow for very large attempt counts
	if backoff > math.MaxInt64/2 {
		backoff = math.MaxInt64 / 2
	}

	delay := time.Duration(backoff)
	if cfg.MaxJitter > 0 {
		delay += time.Duration(rand.Int64N(int64(cfg.MaxJitter) + 1))
	}
	return delay
}

// IsCancellation reports whether err is the result of a cancelled context.
// Cancellations are never retried.
func IsCancellation(err error) bool {
	return errors.Is(err, context.Canceled)
}

// Do runs fn until it succeeds, returns a non-retryable error, or the attempts
// run out. Only the last attempt's error is returned. fn receives the 1-indexed
// attempt number. A nil retryable treats every non-cancellation error as
// transient.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context, attempt int) error, retryable func(error) bool) error {
	attempts := cfg.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		err = fn(ctx, attempt)
		if err == nil {
			return nil
		}

		if IsCancellation(err) || ctx.Err() != nil {
			return err
		}
		if retryable != nil && !retryable(err) {
			return err
		}
		if attempt == attempts {
			break
		}

		timer := time.NewTimer(Delay(attempt, cfg))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}

	return err
}
