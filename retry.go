package statsig

import (
	"context"
	"errors"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"go.uber.org/zap"
	backoff "gopkg.in/cenkalti/backoff.v1"
)

const maxBackoffInterval = 60 * time.Second

type retryDecision int

const (
	retryFatal retryDecision = iota
	retryTransient
)

// classify decides whether an attempt may be retried. Rate-limited
// responses are fatal here; the rate-limit guard owns them.
func classify(ctx context.Context, resp *rawResponse, err error) retryDecision {
	if err != nil {
		if ctx.Err() != nil {
			return retryFatal
		}
		if isConnectionError(err) {
			return retryTransient
		}
		return retryFatal
	}
	switch {
	case resp.status == http.StatusTooManyRequests:
		return retryFatal
	case resp.status >= 500 && resp.status <= 599, resp.status == http.StatusRequestTimeout:
		return retryTransient
	}
	return retryFatal
}

func isConnectionError(err error) bool {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		err = urlErr.Err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr)
}

type backoffPolicy struct {
	maxRetries      uint
	initialInterval time.Duration
}

// next returns the delay before retry number pastRetries+1, or false once
// the retry budget is spent.
func (p backoffPolicy) next(pastRetries uint) (time.Duration, bool) {
	if pastRetries >= p.maxRetries {
		return 0, false
	}
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.initialInterval
	b.RandomizationFactor = 0.5
	b.Multiplier = 2
	b.MaxInterval = maxBackoffInterval
	b.MaxElapsedTime = 0
	b.Reset()

	delay := p.initialInterval
	for i := uint(0); i <= pastRetries; i++ {
		if d := b.NextBackOff(); d != backoff.Stop {
			delay = d
		}
	}
	return delay, true
}

// retryState lives for one logical call.
type retryState struct {
	pastRetries uint
	startedAt   time.Time
}

type retrier struct {
	policy backoffPolicy
	sleep  func(ctx context.Context, d time.Duration) error
	now    func() time.Time
	logger *zap.Logger
}

// wrap re-issues send on transient outcomes and returns the last outcome
// once the outcome is fatal or the policy gives up.
func (r *retrier) wrap(send sendFunc) sendFunc {
	return func(ctx context.Context) (*rawResponse, error) {
		state := retryState{startedAt: r.now()}
		for {
			resp, err := send(ctx)
			if classify(ctx, resp, err) == retryFatal {
				return resp, err
			}
			delay, ok := r.policy.next(state.pastRetries)
			if !ok {
				return resp, err
			}
			r.logger.Debug("retrying transient failure",
				zap.Uint("attempt", state.pastRetries+1),
				zap.Duration("delay", delay),
				zap.Duration("elapsed", r.now().Sub(state.startedAt)),
				zap.Int("status", statusOf(resp)),
				zap.Error(err))
			if sleepErr := r.sleep(ctx, delay); sleepErr != nil {
				return resp, err
			}
			state.pastRetries++
		}
	}
}

func statusOf(resp *rawResponse) int {
	if resp == nil {
		return 0
	}
	return resp.status
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
