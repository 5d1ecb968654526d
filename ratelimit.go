package statsig

import (
	"context"
	"net/http"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
)

// rateLimitGuard re-issues a request while the server answers 429.
type rateLimitGuard struct {
	maxRetries    uint
	fallbackDelay time.Duration
	sleep         func(ctx context.Context, d time.Duration) error
	now           func() time.Time
	logger        *zap.Logger
}

// wrap returns the first non-429 outcome, or the last 429 response once
// maxRetries re-issues have been spent.
func (g *rateLimitGuard) wrap(send sendFunc) sendFunc {
	return func(ctx context.Context) (*rawResponse, error) {
		var pastRetries uint
		for {
			resp, err := send(ctx)
			if err != nil || resp.status != http.StatusTooManyRequests {
				return resp, err
			}
			if pastRetries >= g.maxRetries {
				return resp, nil
			}
			delay, ok := parseRetryAfter(resp.header.Get("Retry-After"), g.now())
			if !ok {
				delay = g.fallbackDelay
			}
			g.logger.Debug("rate limited, waiting before re-issuing request",
				zap.Uint("attempt", pastRetries+1),
				zap.Duration("delay", delay))
			if sleepErr := g.sleep(ctx, delay); sleepErr != nil {
				return resp, nil
			}
			pastRetries++
		}
	}
}

// parseRetryAfter reads a Retry-After value as integer seconds or as an
// HTTP-date relative to now. Dates in the past yield zero.
func parseRetryAfter(value string, now time.Time) (time.Duration, bool) {
	value = strings.TrimSpace(value)
	if value == "" {
		return 0, false
	}
	if seconds, err := strconv.ParseUint(value, 10, 64); err == nil {
		return time.Duration(seconds) * time.Second, true
	}
	when, err := http.ParseTime(value)
	if err != nil {
		return 0, false
	}
	return max(when.Sub(now), 0), true
}
