package invite

import (
	"context"
	"errors"
	"os"
	"sync"
)

// Interrupter turns interrupt signals into context cancellation. While an
// account is armed, an interrupt cancels only that account so the run can
// move on to the next one. An interrupt while nothing is armed aborts the
// whole run.
type Interrupter struct {
	mu     sync.Mutex
	abort  context.CancelCauseFunc
	cancel context.CancelCauseFunc
}

func NewInterrupter(parent context.Context) (context.Context, *Interrupter) {
	ctx, abort := context.WithCancelCause(parent)
	return ctx, &Interrupter{abort: abort}
}

// Arm derives an account context from ctx. The returned release func must
// be called when the account is finished.
func (i *Interrupter) Arm(ctx context.Context) (context.Context, func()) {
	actx, cancel := context.WithCancelCause(ctx)

	i.mu.Lock()
	i.cancel = cancel
	i.mu.Unlock()

	return actx, func() {
		i.mu.Lock()
		i.cancel = nil
		i.mu.Unlock()
		cancel(nil)
	}
}

// Interrupt skips the armed account, or aborts when none is armed. The
// first interrupt disarms, so a second one during shutdown of the same
// account aborts.
func (i *Interrupter) Interrupt() {
	i.mu.Lock()
	defer i.mu.Unlock()

	if i.cancel != nil {
		i.cancel(ErrInterrupted)
		i.cancel = nil
		return
	}
	i.abort(ErrInterrupted)
}

// Abort cancels the run regardless of arming.
func (i *Interrupter) Abort(cause error) {
	i.abort(cause)
}

// Watch forwards signals from sigs until ctx is done. skip signals are
// treated as Interrupt, everything else as Abort.
func (i *Interrupter) Watch(ctx context.Context, sigs <-chan os.Signal, skip os.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig := <-sigs:
			if sig == skip {
				i.Interrupt()
			} else {
				i.Abort(ErrInterrupted)
			}
		}
	}
}

// Skipped reports whether ctx was cancelled by an interrupt aimed at the
// armed account rather than the whole run.
func Skipped(parent, ctx context.Context) bool {
	return parent.Err() == nil && errors.Is(context.Cause(ctx), ErrInterrupted)
}
