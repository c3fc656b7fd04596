package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"safety-stories-service/internal/domain"
)

// DefaultStoreTimeout bounds every store call when no timeout is configured.
const DefaultStoreTimeout = 3 * time.Second

// storeCall runs fn with a bounded deadline and reports an expired deadline as
// domain.ErrTimeout.
func storeCall[T any](ctx context.Context, timeout time.Duration, fn func(context.Context) (T, error)) (T, error) {
	if timeout <= 0 {
		timeout = DefaultStoreTimeout
	}
	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	v, err := fn(callCtx)
	if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, domain.ErrTimeout) {
		err = fmt.Errorf("%w: %w", domain.ErrTimeout, err)
	}
	return v, err
}

// retryConflicts re-runs fn while it fails with domain.ErrConflict, at most retries extra times.
func retryConflicts[T any](retries int, fn func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for attempt := 0; ; attempt++ {
		v, err = fn()
		if err == nil || !errors.Is(err, domain.ErrConflict) || attempt >= retries {
			return v, err
		}
	}
}
