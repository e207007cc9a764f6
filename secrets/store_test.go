package secrets

import (
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
)

// An encrypted-then-decrypted secret yields the original key; decryption
// with any other password returns an error.
func TestEncryptDecryptRoundTrip(t *testing.T) {
	seed := make([]byte, 32)
	for i := range seed {
		seed[i] = byte(i)
	}

	enc, err := Encrypt(seed, "correct horse")
	require.NoError(t, err)
	require.Len(t, enc.Salt, argon2SaltSize)

	out, err := Decrypt(enc, "correct horse")
	require.NoError(t, err)
	require.Equal(t, seed, out)

	_, err = Decrypt(enc, "wrong password")
	require.ErrorIs(t, err, ErrInvalidPassword)
}

func TestEncryptUsesFreshSalt(t *testing.T) {
	seed := make([]byte, 32)
	enc1, err := Encrypt(seed, "pw")
	require.NoError(t, err)
	enc2, err := Encrypt(seed, "pw")
	require.NoError(t, err)

	require.NotEqual(t, enc1.Salt, enc2.Salt)
	require.NotEqual(t, enc1.Ciphertext, enc2.Ciphertext)
}

func TestStoreLoadRoundTrip(t *testing.T) {
	dir := t.TempDir()
	store, err := Open(filepath.Join(dir, ".secrets.json"))
	require.NoError(t, err)

	seed := make([]byte, 32)
	require.NoError(t, store.Store("alice", PersistentSecret{Plaintext: seed}))

	loaded, ok := store.Load("alice")
	require.True(t, ok)
	require.Equal(t, seed, loaded.Plaintext)
	require.False(t, loaded.IsEncrypted())

	_, ok = store.Load("nonexistent")
	require.False(t, ok)
}

func TestStorePersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, ".secrets.json")

	store, err := Open(path)
	require.NoError(t, err)

	enc, err := Encrypt([]byte("01234567890123456789012345678901"[:32]), "pw")
	require.NoError(t, err)
	require.NoError(t, store.Store("bob", PersistentSecret{Encrypted: enc}))

	reopened, err := Open(path)
	require.NoError(t, err)

	loaded, ok := reopened.Load("bob")
	require.True(t, ok)
	require.True(t, loaded.IsEncrypted())

	out, err := Decrypt(loaded.Encrypted, "pw")
	require.NoError(t, err)
	require.Equal(t, []byte("01234567890123456789012345678901"[:32]), out)
}
