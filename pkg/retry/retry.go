// Package retry re-runs hub operations with exponential backoff.
//
// Sessions never retry on their own; a failed connect always ends in the
// disconnected state. Callers that want automatic reconnects wrap the call:
//
//	err := retry.Do(ctx, retry.Config{}, func(ctx context.Context) error {
//	    return s.Connect(ctx)
//	})
package retry

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/hublink/hublink-go/pkg/transport"
)

// ErrExhausted is returned when every attempt failed.
var ErrExhausted = errors.New("retry attempts exhausted")

// Config configures Do.
type Config struct {
	// Backoff supplies the delays (default: NewBackoff()).
	Backoff *Backoff

	// MaxAttempts bounds the number of calls. Zero means retry until the
	// context is done.
	MaxAttempts int

	// Retryable decides whether an error is worth another attempt
	// (default: Retryable).
	Retryable func(error) bool

	// Clock is the time source for delays (default: the wall clock).
	Clock clock.Clock

	// Logger is the optional logger. If nil, logging is disabled.
	Logger *slog.Logger
}

// Retryable reports whether err is a connection-level failure. Rejected
// credentials and missing entities fail the same way on every attempt.
func Retryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}
	if errors.Is(err, transport.ErrConnectionLost) {
		return true
	}
	var te *transport.Error
	if errors.As(err, &te) {
		switch te.Kind {
		case transport.KindUnauthorized, transport.KindNotFound:
			return false
		}
		return true
	}
	return false
}

// Do calls fn until it succeeds, returns a non-retryable error, the
// attempts run out, or ctx is done.
func Do(ctx context.Context, cfg Config, fn func(ctx context.Context) error) error {
	if cfg.Backoff == nil {
		cfg.Backoff = NewBackoff()
	}
	if cfg.Retryable == nil {
		cfg.Retryable = Retryable
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.New()
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	for attempt := 1; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			cfg.Backoff.Reset()
			return nil
		}
		if !cfg.Retryable(err) {
			return err
		}
		if cfg.MaxAttempts > 0 && attempt >= cfg.MaxAttempts {
			return fmt.Errorf("%w after %d attempts: %w", ErrExhausted, attempt, err)
		}

		delay := cfg.Backoff.Next()
		logger.Debug("retrying", "attempt", attempt, "delay", delay, "error", err)
		if err := sleep(ctx, cfg.Clock, delay); err != nil {
			return err
		}
	}
}

func sleep(ctx context.Context, clk clock.Clock, d time.Duration) error {
	t := clk.Timer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
