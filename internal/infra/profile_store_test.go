package infra

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/eliteGoblin/shield/internal/domain"
)

// newTestProfileStore creates an encrypted profile store in a temp directory.
func newTestProfileStore(t *testing.T) (*EncryptedProfileStore, []byte) {
	t.Helper()
	key, err := GenerateKey()
	require.NoError(t, err)

	store, err := NewEncryptedProfileStore(filepath.Join(t.TempDir(), profileDBName), key)
	require.NoError(t, err)
	t.Cleanup(func() { store.Close() })
	return store, key
}

func TestEncryptedProfileStore_SaveAndList(t *testing.T) {
	store, _ := newTestProfileStore(t)

	first := domain.HardeningProfile{ID: "a", Name: "Work", Settings: map[string]bool{"telemetry": true, "rdp": false}}
	second := domain.HardeningProfile{ID: "b", Name: "Gaming", Settings: map[string]bool{"smb1": true}}
	require.NoError(t, store.Save(first))
	require.NoError(t, store.Save(second))

	profiles, err := store.List()
	require.NoError(t, err)
	require.Len(t, profiles, 2)
	assert.Equal(t, "Work", profiles[0].Name, "creation order is kept")
	assert.Equal(t, first.Settings, profiles[0].Settings)
	assert.Equal(t, "Gaming", profiles[1].Name)
	assert.False(t, profiles[0].IsSystem)
}

func TestEncryptedProfileStore_SaveReplaces(t *testing.T) {
	store, _ := newTestProfileStore(t)

	require.NoError(t, store.Save(domain.HardeningProfile{ID: "a", Name: "Old", Settings: map[string]bool{}}))
	require.NoError(t, store.Save(domain.HardeningProfile{ID: "a", Name: "New", Settings: map[string]bool{"wpad": true}}))

	got, err := store.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "New", got.Name)
	assert.True(t, got.Settings["wpad"])

	profiles, err := store.List()
	require.NoError(t, err)
	assert.Len(t, profiles, 1)
}

func TestEncryptedProfileStore_RejectsSystemProfiles(t *testing.T) {
	store, _ := newTestProfileStore(t)

	err := store.Save(domain.HardeningProfile{ID: "standard", IsSystem: true})
	assert.ErrorIs(t, err, domain.ErrSystemProfile)
}

func TestEncryptedProfileStore_GetMissing(t *testing.T) {
	store, _ := newTestProfileStore(t)

	_, err := store.Get("nope")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
}

func TestEncryptedProfileStore_Active(t *testing.T) {
	store, _ := newTestProfileStore(t)

	id, err := store.Active()
	require.NoError(t, err)
	assert.Empty(t, id)

	require.NoError(t, store.SetActive("strict"))
	id, err = store.Active()
	require.NoError(t, err)
	assert.Equal(t, "strict", id)
}

func TestEncryptedProfileStore_Delete(t *testing.T) {
	store, _ := newTestProfileStore(t)
	require.NoError(t, store.Save(domain.HardeningProfile{ID: "a", Name: "A", Settings: map[string]bool{}}))
	require.NoError(t, store.SetActive("a"))

	require.NoError(t, store.Delete("a"))

	_, err := store.Get("a")
	assert.ErrorIs(t, err, domain.ErrProfileNotFound)
	id, err := store.Active()
	require.NoError(t, err)
	assert.Empty(t, id, "deleting the active profile clears it")

	assert.ErrorIs(t, store.Delete("a"), domain.ErrProfileNotFound)
}

func TestEncryptedProfileStore_PersistsAcrossReopen(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), profileDBName)
	key, err := GenerateKey()
	require.NoError(t, err)

	store, err := NewEncryptedProfileStore(dbPath, key)
	require.NoError(t, err)
	require.NoError(t, store.Save(domain.HardeningProfile{ID: "a", Name: "Kept", Settings: map[string]bool{"llmnr": true}}))
	require.NoError(t, store.Close())

	reopened, err := NewEncryptedProfileStore(dbPath, key)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get("a")
	require.NoError(t, err)
	assert.Equal(t, "Kept", got.Name)
}

func TestEncryptedProfileStore_WrongKeyFails(t *testing.T) {
	dbPath := filepath.Join(t.TempDir(), profileDBName)
	key, _ := GenerateKey()

	store, err := NewEncryptedProfileStore(dbPath, key)
	require.NoError(t, err)
	require.NoError(t, store.Save(domain.HardeningProfile{ID: "a", Name: "A", Settings: map[string]bool{}}))
	require.NoError(t, store.Close())

	wrongKey, _ := GenerateKey()
	_, err = NewEncryptedProfileStore(dbPath, wrongKey)
	assert.Error(t, err)
}

func TestEncryptedProfileStore_FileIsEncrypted(t *testing.T) {
	store, _ := newTestProfileStore(t)
	require.NoError(t, store.Save(domain.HardeningProfile{ID: "a", Name: "VerySecretProfileName", Settings: map[string]bool{}}))
	require.NoError(t, store.Close())

	data, err := os.ReadFile(store.Path())
	require.NoError(t, err)
	assert.NotContains(t, string(data), "SQLite format 3")
	assert.NotContains(t, string(data), "VerySecretProfileName")
}
