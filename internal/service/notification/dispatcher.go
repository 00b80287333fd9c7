package notification

import (
	"context"
	"time"

	"github.com/jwalitptl/leadsla/internal/model"
)

// Dispatch sends one message, retrying up to maxRetries attempts in total
// and waiting 2^attempt backoff units between attempts. It never returns
// the transport error; the outcome is reported as a bool and logged.
func (s *Service) Dispatch(ctx context.Context, messageType model.MessageType, to, subject, htmlBody string) bool {
	var lastErr error
	attempts := 0
	for attempt := 0; attempt < s.maxRetries; attempt++ {
		if attempt > 0 {
			s.metrics.DispatchRetries.WithLabelValues(string(messageType)).Inc()
		}
		attempts++
		lastErr = s.transport.Send(ctx, to, subject, htmlBody)
		if lastErr == nil {
			return true
		}
		if attempt == s.maxRetries-1 {
			break
		}
		if !s.sleep(ctx, s.backoff(attempt)) {
			break
		}
	}

	s.logger.Warn(lastErr, "giving up on notification",
		"message_type", string(messageType),
		"to", to,
		"attempts", attempts)
	return false
}

func (s *Service) backoff(attempt int) time.Duration {
	return time.Duration(1<<uint(attempt)) * s.backoffUnit
}

// sleep waits d or until ctx is done. It reports whether the full wait
// elapsed.
func (s *Service) sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-timer.C:
		return true
	}
}
