package session

import (
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
)

func TestRegistryAcquireCreatesOnFirstConnection(t *testing.T) {
	r := NewRegistry()
	secret := uuid.New()

	s := r.Acquire(secret)
	require.NotNil(t, s)
	require.Equal(t, 1, r.Count())

	again := r.Acquire(secret)
	require.Same(t, s, again)
	require.Equal(t, 1, r.Count())
}

func TestRegistryReleaseTearsDownOnLastConnection(t *testing.T) {
	r := NewRegistry()
	secret := uuid.New()

	r.Acquire(secret)
	r.Acquire(secret)
	require.Equal(t, 1, r.Count())

	r.Release(secret)
	require.Equal(t, 1, r.Count())

	r.Release(secret)
	require.Equal(t, 0, r.Count())
}

func TestRegistryLookupUnknownSecretIsNil(t *testing.T) {
	r := NewRegistry()
	require.Nil(t, r.Lookup(uuid.New()))
}

func TestActiveSessionTracksCreatedDirs(t *testing.T) {
	r := NewRegistry()
	secret := uuid.New()
	s := r.Acquire(secret)

	require.False(t, s.CreatedDir(`C:\dest\sub`))
	s.MarkDirCreated(`C:\dest\sub`)
	require.True(t, s.CreatedDir(`C:\dest\sub`))
}
