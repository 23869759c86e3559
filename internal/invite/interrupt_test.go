package invite

import (
	"context"
	"os"
	"syscall"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

func TestInterruptArmed(t *testing.T) {
	root, i := NewInterrupter(context.Background())

	actx, release := i.Arm(root)
	i.Interrupt()

	require.Error(t, actx.Err())
	assert.NoError(t, root.Err())
	assert.True(t, Skipped(root, actx))
	release()

	// Nothing armed any more.
	i.Interrupt()
	assert.ErrorIs(t, context.Cause(root), ErrInterrupted)
}

func TestReleaseIsNotSkip(t *testing.T) {
	root, i := NewInterrupter(context.Background())

	actx, release := i.Arm(root)
	release()

	assert.Error(t, actx.Err())
	assert.False(t, Skipped(root, actx))
	assert.NoError(t, root.Err())
}

func TestAbortCancelsArmedAccount(t *testing.T) {
	root, i := NewInterrupter(context.Background())
	actx, release := i.Arm(root)
	defer release()

	i.Abort(context.DeadlineExceeded)

	assert.Error(t, actx.Err())
	assert.False(t, Skipped(root, actx))
	assert.ErrorIs(t, context.Cause(root), context.DeadlineExceeded)
}

func TestWatch(t *testing.T) {
	root, i := NewInterrupter(context.Background())
	sigs := make(chan os.Signal, 1)

	done := make(chan struct{})
	go func() {
		defer close(done)
		i.Watch(root, sigs, os.Interrupt)
	}()

	actx, release := i.Arm(root)
	defer release()

	sigs <- os.Interrupt
	select {
	case <-actx.Done():
	case <-time.After(time.Second):
		t.Fatal("armed context not cancelled")
	}
	assert.NoError(t, root.Err())

	sigs <- syscall.SIGTERM
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("watch did not return after abort")
	}
	assert.ErrorIs(t, context.Cause(root), ErrInterrupted)
}
