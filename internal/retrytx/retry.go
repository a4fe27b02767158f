package retrytx

import (
	"context"
	"errors"
	"math/rand"
	"time"

	"github.com/avast/retry-go/v4"
	"github.com/memoza/flashcards-back/internal/repository"
)

// Config bounds the retry loop around a contended transaction.
type Config struct {
	MaxAttempts int
	Backoff     time.Duration
	Jitter      time.Duration
}

func (c Config) withDefaults() Config {
	if c.MaxAttempts <= 0 {
		c.MaxAttempts = 4
	}
	if c.Backoff <= 0 {
		c.Backoff = 50 * time.Millisecond
	}
	if c.Jitter < 0 {
		c.Jitter = 0
	}
	return c
}

// RunWithRetry executes txFn, retrying only contention-class failures
// (repository.ErrWriteConflict) with jittered linear backoff. Any other
// error, and conflict errors that outlive the attempt budget, propagate to
// the caller unchanged. txFn must be safe to re-run: the transactions fed
// through here carry their own dedupe pre-check, so an attempt retried
// after a conflicting-but-committed predecessor is itself a no-op.
func RunWithRetry(ctx context.Context, txFn func(context.Context) error, cfg Config) error {
	cfg = cfg.withDefaults()

	return retry.Do(
		func() error { return txFn(ctx) },
		retry.Context(ctx),
		retry.Attempts(uint(cfg.MaxAttempts)),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			return errors.Is(err, repository.ErrWriteConflict)
		}),
		retry.DelayType(func(attempt uint, _ error, _ *retry.Config) time.Duration {
			delay := cfg.Backoff * time.Duration(attempt+1)
			if cfg.Jitter > 0 {
				delay += time.Duration(rand.Int63n(int64(cfg.Jitter) + 1))
			}
			return delay
		}),
	)
}
