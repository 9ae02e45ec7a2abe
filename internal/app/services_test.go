package app

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"mcpaggregator/internal/config"
	"mcpaggregator/internal/connmgr"
)

func TestApplyChangeTagsOnlyModificationSkipsReconnect(t *testing.T) {
	origMax, origDelay := connmgr.MaxAttempts, connmgr.InitialDelay
	connmgr.MaxAttempts = 1
	connmgr.InitialDelay = time.Millisecond
	t.Cleanup(func() { connmgr.MaxAttempts, connmgr.InitialDelay = origMax, origDelay })

	cfg := NewConfig(true, false, t.TempDir())
	app, err := NewApplication(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.services.Close() })

	upstream := config.UpstreamConfig{
		Name: "nonexistent",
		Type: config.TransportStdio,
		Local: &config.LocalTransportConfig{
			Command: []string{"this-binary-does-not-exist-anywhere"},
		},
	}
	app.services.applyChange(context.Background(), config.Change{
		Kind:          config.ChangeModified,
		Name:          "nonexistent",
		Upstream:      upstream,
		FieldsChanged: []string{"tags"},
	})

	// A tags-only change must never reach the connection manager: there is
	// nothing to reconnect, so no record is ever created for it.
	_, ok := app.services.Manager.Get("nonexistent")
	assert.False(t, ok)
}

func TestApplyChangeNonTagsModificationReconnects(t *testing.T) {
	origMax, origDelay := connmgr.MaxAttempts, connmgr.InitialDelay
	connmgr.MaxAttempts = 1
	connmgr.InitialDelay = time.Millisecond
	t.Cleanup(func() { connmgr.MaxAttempts, connmgr.InitialDelay = origMax, origDelay })

	cfg := NewConfig(true, false, t.TempDir())
	app, err := NewApplication(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = app.services.Close() })

	upstream := config.UpstreamConfig{
		Name: "nonexistent",
		Type: config.TransportStdio,
		Local: &config.LocalTransportConfig{
			Command: []string{"this-binary-does-not-exist-anywhere"},
		},
	}
	app.services.applyChange(context.Background(), config.Change{
		Kind:          config.ChangeModified,
		Name:          "nonexistent",
		Upstream:      upstream,
		FieldsChanged: []string{"transport"},
	})

	// A non-tags change must attempt a reconnect, leaving a (failed) record
	// behind for the attempted upstream.
	rec, ok := app.services.Manager.Get("nonexistent")
	require.True(t, ok)
	assert.Equal(t, connmgr.Error, rec.Status)
}
