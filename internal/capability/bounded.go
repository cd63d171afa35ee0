package capability

import (
	"context"
	"fmt"
	"time"

	"golang.org/x/sync/semaphore"
)

// #region bounded

// BoundedGenerator limits in-flight calls to the wrapped generator and
// applies a per-call timeout. The wrapped handle is never called by more
// than slots goroutines at once.
type BoundedGenerator struct {
	inner   Generator
	sem     *semaphore.Weighted
	timeout time.Duration
}

// Bounded wraps g. slots < 1 is treated as 1; timeout <= 0 disables the
// per-call deadline.
func Bounded(g Generator, slots int, timeout time.Duration) *BoundedGenerator {
	if slots < 1 {
		slots = 1
	}
	return &BoundedGenerator{
		inner:   g,
		sem:     semaphore.NewWeighted(int64(slots)),
		timeout: timeout,
	}
}

// Generate waits for a free slot, then delegates.
func (b *BoundedGenerator) Generate(ctx context.Context, req GenerateRequest) (string, error) {
	if err := b.sem.Acquire(ctx, 1); err != nil {
		return "", fmt.Errorf("acquire generator slot: %w", err)
	}
	defer b.sem.Release(1)

	if b.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, b.timeout)
		defer cancel()
	}
	return b.inner.Generate(ctx, req)
}

// #endregion bounded
