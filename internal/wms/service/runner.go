package service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/bitfantasy/nimo-wms/internal/shared/retry"
	"github.com/bitfantasy/nimo-wms/internal/wms/repository"
	"go.uber.org/zap"
)

// Runner executes store work with a per-attempt timeout and retries an
// unavailable store once. A retry re-runs the whole closure, so decisions
// inside it are always derived from fresh reads.
type Runner struct {
	store   repository.Store
	timeout time.Duration
	policy  retry.Policy
	logger  *zap.Logger
}

func NewRunner(store repository.Store, timeout, backoff time.Duration, logger *zap.Logger) *Runner {
	if logger == nil {
		logger = zap.NewNop()
	}
	r := &Runner{store: store, timeout: timeout, logger: logger}
	r.policy = retry.Policy{
		MaxAttempts: 2,
		Backoff:     retry.Constant(backoff),
		Retryable:   repository.IsRetryable,
		OnRetry: func(attempt int, err error, wait time.Duration) {
			logger.Warn("Store unavailable, retrying", zap.Int("attempt", attempt), zap.Duration("backoff", wait), zap.Error(err))
		},
	}
	return r
}

func (r *Runner) attempt(ctx context.Context, fn func(ctx context.Context) error) error {
	return r.policy.Do(ctx, func(ctx context.Context) error {
		if r.timeout > 0 {
			var cancel context.CancelFunc
			ctx, cancel = context.WithTimeout(ctx, r.timeout)
			defer cancel()
		}
		err := fn(ctx)
		if err != nil && errors.Is(err, context.DeadlineExceeded) && !errors.Is(err, repository.ErrStoreUnavailable) {
			return fmt.Errorf("%w: %v", repository.ErrStoreUnavailable, err)
		}
		return err
	})
}

// Tx runs fn inside one store transaction.
func (r *Runner) Tx(ctx context.Context, fn func(ctx context.Context, tx repository.Store) error) error {
	return r.attempt(ctx, func(ctx context.Context) error {
		return r.store.WithTx(ctx, func(tx repository.Store) error {
			return fn(ctx, tx)
		})
	})
}

// Read runs fn against the store outside a transaction.
func (r *Runner) Read(ctx context.Context, fn func(ctx context.Context, s repository.Store) error) error {
	return r.attempt(ctx, func(ctx context.Context) error {
		return fn(ctx, r.store)
	})
}
