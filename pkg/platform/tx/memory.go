package tx

import (
	"context"
	"fmt"
	"sync"
	"time"

	dErrors "boxinator/pkg/domain-errors"
)

type journalKey struct{}

// defaultMemoryTxTimeout bounds how long a unit of work may wait for the lock.
const defaultMemoryTxTimeout = 5 * time.Second

// journal records compensating actions for writes made inside a unit of work.
type journal struct {
	mu    sync.Mutex
	undos []func()
}

func (j *journal) add(undo func()) {
	j.mu.Lock()
	j.undos = append(j.undos, undo)
	j.mu.Unlock()
}

func (j *journal) rollback() {
	j.mu.Lock()
	defer j.mu.Unlock()
	for i := len(j.undos) - 1; i >= 0; i-- {
		j.undos[i]()
	}
	j.undos = nil
}

// MemoryRunner serializes units of work against in-memory stores behind a
// coarse lock. Stores register undo actions via OnRollback; when fn fails the
// undos run in reverse order so no partial write survives.
type MemoryRunner struct {
	mu      sync.Mutex
	timeout time.Duration
}

// NewMemoryRunner builds an in-memory runner.
func NewMemoryRunner() *MemoryRunner {
	return &MemoryRunner{timeout: defaultMemoryTxTimeout}
}

func (r *MemoryRunner) RunInTx(ctx context.Context, fn func(ctx context.Context) error) (err error) {
	if _, ok := ctx.Value(journalKey{}).(*journal); ok {
		return fn(ctx)
	}
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}
	if _, hasDeadline := ctx.Deadline(); !hasDeadline && r.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, r.timeout)
		defer cancel()
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	j := &journal{}
	defer func() {
		if p := recover(); p != nil {
			j.rollback()
			err = fmt.Errorf("transaction panicked: %v", p)
		}
	}()

	if err := fn(context.WithValue(ctx, journalKey{}, j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}

// OnRollback registers undo to run if the enclosing in-memory unit of work
// fails. It is a no-op outside a MemoryRunner transaction.
func OnRollback(ctx context.Context, undo func()) {
	if j, ok := ctx.Value(journalKey{}).(*journal); ok {
		j.add(undo)
	}
}
