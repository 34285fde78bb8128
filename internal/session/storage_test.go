package session

import (
	"path/filepath"
	"testing"

	"github.com/azamzar/tienda-alimentacion-asiatica-sub000/internal/models"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStorageRoundTrip(t *testing.T) {
	storage := NewMemoryStorage()

	snap, err := storage.Load()
	require.NoError(t, err)
	assert.True(t, snap.IsAnonymous())

	saved := Snapshot{
		Token:    "tok-1",
		Identity: &models.Identity{ID: 1, Email: "ana@example.com", Role: models.RoleCustomer},
	}
	require.NoError(t, storage.Save(saved))

	snap, err = storage.Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-1", snap.Token)
	require.NotNil(t, snap.Identity)
	assert.Equal(t, "ana@example.com", snap.Identity.Email)

	require.NoError(t, storage.Clear())
	snap, err = storage.Load()
	require.NoError(t, err)
	assert.True(t, snap.IsAnonymous())
	assert.Nil(t, snap.Identity)
}

func TestFileStorageRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "session.json")
	storage := NewFileStorage(path)

	// Missing file reads as anonymous, not as an error.
	snap, err := storage.Load()
	require.NoError(t, err)
	assert.True(t, snap.IsAnonymous())

	saved := Snapshot{
		Token:    "tok-2",
		Identity: &models.Identity{ID: 2, Email: "admin@example.com", Role: models.RoleAdmin},
	}
	require.NoError(t, storage.Save(saved))

	// A fresh instance sees the persisted snapshot.
	reloaded, err := NewFileStorage(path).Load()
	require.NoError(t, err)
	assert.Equal(t, "tok-2", reloaded.Token)
	require.NotNil(t, reloaded.Identity)
	assert.Equal(t, models.RoleAdmin, reloaded.Identity.Role)

	require.NoError(t, storage.Clear())
	snap, err = storage.Load()
	require.NoError(t, err)
	assert.True(t, snap.IsAnonymous())

	// Clearing twice is fine.
	require.NoError(t, storage.Clear())
}

func TestTokenSourceReadsStorage(t *testing.T) {
	storage := NewMemoryStorage()
	source := TokenSource(storage)

	assert.Equal(t, "", source.Token())

	require.NoError(t, storage.Save(Snapshot{Token: "tok-3"}))
	assert.Equal(t, "tok-3", source.Token())
}
