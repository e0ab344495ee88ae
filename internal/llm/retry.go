package llm

import (
	"context"
	"log/slog"
	"time"

	"github.com/cenkalti/backoff/v4"

	"github.com/miradorstack/mirador-investigator/internal/metrics"
)

// RetryPolicy bounds throttle retries.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
	MaxBackoff     time.Duration
}

// Retrying wraps a Client and retries throttling-class failures with
// exponential backoff. Any other error is returned after the first attempt.
type Retrying struct {
	next   Client
	policy RetryPolicy
	logger *slog.Logger
}

// NewRetrying constructs a retrying client.
func NewRetrying(next Client, policy RetryPolicy, logger *slog.Logger) *Retrying {
	if logger == nil {
		logger = slog.Default()
	}
	if policy.MaxAttempts < 1 {
		policy.MaxAttempts = 1
	}
	if policy.InitialBackoff <= 0 {
		policy.InitialBackoff = time.Second
	}
	if policy.MaxBackoff < policy.InitialBackoff {
		policy.MaxBackoff = policy.InitialBackoff
	}
	return &Retrying{next: next, policy: policy, logger: logger}
}

// Complete implements Client.
func (r *Retrying) Complete(ctx context.Context, req Request) (string, error) {
	var text string
	operation := func() error {
		out, err := r.next.Complete(ctx, req)
		if err != nil {
			if IsThrottled(err) {
				return err
			}
			return backoff.Permanent(err)
		}
		text = out
		return nil
	}

	exp := backoff.NewExponentialBackOff()
	exp.InitialInterval = r.policy.InitialBackoff
	exp.MaxInterval = r.policy.MaxBackoff
	exp.MaxElapsedTime = 0
	policy := backoff.WithContext(backoff.WithMaxRetries(exp, uint64(r.policy.MaxAttempts-1)), ctx)

	notify := func(err error, wait time.Duration) {
		metrics.ObserveInferenceRetry()
		r.logger.Warn("inference throttled, retrying", "stage", req.Stage, "wait", wait, "error", err)
	}
	if err := backoff.RetryNotify(operation, policy, notify); err != nil {
		return "", err
	}
	return text, nil
}
