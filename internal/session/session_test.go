package session

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewSessionIDFormat(t *testing.T) {
	id := NewSessionID()
	assert.True(t, strings.HasPrefix(id, "stream-"))
	assert.Len(t, strings.TrimPrefix(id, "stream-"), 36)
}

func TestInMemoryRepositoryCreateGetUpdateDelete(t *testing.T) {
	repo := NewInMemoryRepository(time.Hour)
	defer repo.Close()

	id := NewSessionID()
	err := repo.Create(id, State{Filter: NoFilter, Transport: TransportStreamableHTTP})
	require.NoError(t, err)

	state, ok := repo.Get(id)
	require.True(t, ok)
	assert.Equal(t, id, state.SessionID)
	assert.False(t, state.CreatedAt.IsZero())

	firstAccess := state.LastAccess
	time.Sleep(time.Millisecond)
	require.NoError(t, repo.UpdateAccess(id))
	state, _ = repo.Get(id)
	assert.True(t, state.LastAccess.After(firstAccess) || state.LastAccess.Equal(firstAccess))

	require.NoError(t, repo.Delete(id))
	_, ok = repo.Get(id)
	assert.False(t, ok)
}

func TestInMemoryRepositoryUpdateAccessUnknownSession(t *testing.T) {
	repo := NewInMemoryRepository(time.Hour)
	defer repo.Close()

	err := repo.UpdateAccess("stream-unknown")
	assert.Error(t, err)
}

func TestInMemoryRepositoryRejectsInvalidSessionID(t *testing.T) {
	repo := NewInMemoryRepository(time.Hour)
	defer repo.Close()

	err := repo.Create("", State{})
	assert.Error(t, err)
}

func TestInMemoryRepositoryListReflectsAllSessions(t *testing.T) {
	repo := NewInMemoryRepository(time.Hour)
	defer repo.Close()

	for i := 0; i < 3; i++ {
		require.NoError(t, repo.Create(NewSessionID(), State{}))
	}
	assert.Len(t, repo.List(), 3)
}

func TestInMemoryRepositoryPurgesIdleSessions(t *testing.T) {
	repo := NewInMemoryRepository(20 * time.Millisecond)
	defer repo.Close()

	id := NewSessionID()
	require.NoError(t, repo.Create(id, State{}))

	require.Eventually(t, func() bool {
		_, ok := repo.Get(id)
		return !ok
	}, time.Second, 10*time.Millisecond)
}
