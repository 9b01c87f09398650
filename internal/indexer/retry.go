package indexer

import (
	"context"
	"errors"
	"strings"
	"time"
)

// permanentError stops withRetry immediately.
type permanentError struct {
	err error
}

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

func permanent(err error) error {
	return &permanentError{err: err}
}

func withRetry(ctx context.Context, maxRetries int, baseDelay time.Duration, fn func(context.Context) error) error {
	if maxRetries < 0 {
		maxRetries = 0
	}
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}

	delay := baseDelay
	for attempt := 0; ; attempt++ {
		err := fn(ctx)
		if err == nil {
			return nil
		}
		var stop *permanentError
		if errors.As(err, &stop) {
			return stop.err
		}
		if attempt >= maxRetries {
			return err
		}

		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}

		delay *= 2
	}
}

// rangeLimitHints are fragments providers use when an eth_getLogs range
// returns too much.
var rangeLimitHints = []string{
	"too many results",
	"query returned more than",
	"response size exceeded",
	"block range is too large",
	"exceed maximum block range",
	"limit exceeded",
}

func isRangeLimit(err error) bool {
	if err == nil {
		return false
	}
	msg := strings.ToLower(err.Error())
	for _, hint := range rangeLimitHints {
		if strings.Contains(msg, hint) {
			return true
		}
	}
	return false
}
