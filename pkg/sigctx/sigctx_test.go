//go:build unix

package sigctx

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

func TestSignalCancelsContext(t *testing.T) {
	ctx, cancel := WithSignal(context.Background(), syscall.SIGUSR1)
	defer cancel()

	p, err := os.FindProcess(os.Getpid())
	require.NoError(t, err)
	require.NoError(t, p.Signal(syscall.SIGUSR1))

	select {
	case <-ctx.Done():
	case <-time.After(5 * time.Second):
		t.Fatal("context was not cancelled by the signal")
	}
	assert.True(t, Interrupted(ctx))
	assert.ErrorIs(t, ctx.Err(), context.Canceled)
}

func TestCancelIsNotInterrupt(t *testing.T) {
	ctx, cancel := WithSignal(context.Background(), syscall.SIGUSR1)
	cancel()
	cancel()

	<-ctx.Done()
	assert.False(t, Interrupted(ctx))
}

func TestParentCancellation(t *testing.T) {
	parent, cancelParent := context.WithCancel(context.Background())
	ctx, cancel := WithSignal(parent, syscall.SIGUSR1)
	defer cancel()

	cancelParent()
	<-ctx.Done()
	assert.False(t, Interrupted(ctx))
}
