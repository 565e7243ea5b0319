package database

import (
	"context"
	"fmt"
	"time"
)

// Logger is the subset of logger.Logger used while connecting.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
}

// ConnectWithRetry runs connect until it succeeds, doubling the delay between
// attempts. It is only used at process startup; request paths never retry.
func ConnectWithRetry(ctx context.Context, name string, maxAttempts int, initialDelay time.Duration, log Logger, connect func(context.Context) error) error {
	var err error
	delay := initialDelay

	for attempt := 1; attempt <= maxAttempts; attempt++ {
		if err = connect(ctx); err == nil {
			return nil
		}
		if attempt == maxAttempts {
			break
		}

		log.Warn(name+" connection failed, retrying", map[string]interface{}{
			"error":       err.Error(),
			"attempt":     attempt,
			"maxAttempts": maxAttempts,
			"nextRetryIn": delay.String(),
		})

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return fmt.Errorf("%s connection cancelled: %w", name, ctx.Err())
		}
		delay *= 2
	}

	return fmt.Errorf("%s connection failed after %d attempts: %w", name, maxAttempts, err)
}
