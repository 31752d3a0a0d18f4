package waveexec

import (
	"context"
	"time"

	"github.com/conductor-core/conductor-core/internal/execerrors"
)

// maxRetryAttempts is spec §4.5/§7's "Transient I/O... retry with
// exponential backoff, up to five attempts; then fatal."
const maxRetryAttempts = 5

const retryBaseDelay = 200 * time.Millisecond

// withRetry runs fn, retrying with exponential backoff only while fn
// returns a Transient-kind error. Any other error (or a nil error)
// returns immediately. Mirrors the teacher's rate-limit pause/resume
// logging hooks (internal/executor/orchestrator.go's
// LogRateLimitPause/Resume), exposed here as LogRetryAttempt/LogRetryGiveUp.
func withRetry(ctx context.Context, logger Logger, operation string, fn func() error) error {
	var lastErr error
	delay := retryBaseDelay
	for attempt := 1; attempt <= maxRetryAttempts; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err
		if !execerrors.Is(err, execerrors.KindTransient) {
			return err
		}
		if logger != nil {
			logger.LogRetryAttempt(operation, attempt, err)
		}
		if attempt == maxRetryAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(delay):
		}
		delay *= 2
	}
	if logger != nil {
		logger.LogRetryGiveUp(operation, lastErr)
	}
	return lastErr
}
