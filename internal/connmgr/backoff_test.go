package connmgr

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpaggregator/internal/errs"
)

func TestConnectDelayDoublesPerAttempt(t *testing.T) {
	origDelay := InitialDelay
	InitialDelay = 100 * time.Millisecond
	t.Cleanup(func() { InitialDelay = origDelay })

	assert.Equal(t, 100*time.Millisecond, connectDelay(0))
	assert.Equal(t, 200*time.Millisecond, connectDelay(1))
	assert.Equal(t, 400*time.Millisecond, connectDelay(2))
}

func TestDiagnosticBackoffCapsAtMax(t *testing.T) {
	assert.Equal(t, diagnosticInitialBackoff, diagnosticBackoff(1))
	assert.Equal(t, 2*diagnosticInitialBackoff, diagnosticBackoff(2))
	assert.Equal(t, diagnosticMaxBackoff, diagnosticBackoff(100))
}

func TestCancelableSleepReturnsAfterDuration(t *testing.T) {
	err := cancelableSleep(context.Background(), time.Millisecond)
	assert.NoError(t, err)
}

func TestCancelableSleepZeroDurationIsImmediate(t *testing.T) {
	err := cancelableSleep(context.Background(), 0)
	assert.NoError(t, err)
}

func TestCancelableSleepReturnsCancelledOnDoneContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	err := cancelableSleep(ctx, time.Second)
	require.Error(t, err)
	var cancelled *errs.CancelledError
	assert.True(t, errors.As(err, &cancelled))
}

func TestCancelableSleepCancelledMidSleep(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(5 * time.Millisecond)
		cancel()
	}()

	err := cancelableSleep(ctx, time.Second)
	require.Error(t, err)
	var cancelled *errs.CancelledError
	assert.True(t, errors.As(err, &cancelled))
}
