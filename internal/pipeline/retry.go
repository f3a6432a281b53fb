package pipeline

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v5"

	"github.com/joseph-ayodele/studysift/internal/common"
)

// RetryPolicy bounds how often a generation stage is attempted. Only
// GenerationBackendError is retried.
type RetryPolicy struct {
	MaxAttempts    int
	InitialBackoff time.Duration
}

func (p RetryPolicy) normalized() RetryPolicy {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.InitialBackoff <= 0 {
		p.InitialBackoff = time.Second
	}
	return p
}

func retry[T any](ctx context.Context, p RetryPolicy, op func() (T, error)) (T, error) {
	p = p.normalized()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.InitialBackoff
	return backoff.Retry(ctx, func() (T, error) {
		v, err := op()
		if err != nil && !common.IsKind(err, common.KindGenerationBackendError) {
			return v, backoff.Permanent(err)
		}
		return v, err
	}, backoff.WithBackOff(b), backoff.WithMaxTries(uint(p.MaxAttempts)))
}
