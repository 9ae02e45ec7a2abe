package app

import (
	"testing"

	"github.com/stretchr/testify/require"
)

func TestNewApplicationWithEmptyConfigDirSucceeds(t *testing.T) {
	dir := t.TempDir()

	cfg := NewConfig(true, false, dir)
	application, err := NewApplication(cfg)

	require.NoError(t, err)
	require.NotNil(t, application)
	require.NotNil(t, application.services)
	require.Empty(t, application.services.Manager.All())
}

func TestLoadConfigUsesSinglePathWhenSet(t *testing.T) {
	dir := t.TempDir()

	loaded, err := loadConfig(dir)
	require.NoError(t, err)
	require.Empty(t, loaded.Upstreams)
}
