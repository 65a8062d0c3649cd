package keystore

import (
	"encoding/hex"
	"os"
	"path/filepath"
	"testing"

	ethKeystore "github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

func Test_LoadOrCreateKey(t *testing.T) {
	logger := zaptest.NewLogger(t)

	t.Run("creates missing file", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "nested", "secret.txt")

		key, created, err := LoadOrCreateKey(path, logger)
		require.NoError(t, err)
		assert.True(t, created)

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())

		again, created, err := LoadOrCreateKey(path, logger)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, crypto.FromECDSA(key), crypto.FromECDSA(again))
	})

	t.Run("loads existing key with prefix and newline", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secret.txt")
		key, err := crypto.GenerateKey()
		require.NoError(t, err)
		hexKey := "0x" + hex.EncodeToString(crypto.FromECDSA(key)) + "\n"
		require.NoError(t, os.WriteFile(path, []byte(hexKey), 0600))

		loaded, created, err := LoadOrCreateKey(path, logger)
		require.NoError(t, err)
		assert.False(t, created)
		assert.Equal(t, crypto.PubkeyToAddress(key.PublicKey), crypto.PubkeyToAddress(loaded.PublicKey))
	})

	t.Run("replaces invalid key", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "secret.txt")
		require.NoError(t, os.WriteFile(path, []byte("not a key"), 0644))

		key, created, err := LoadOrCreateKey(path, logger)
		require.NoError(t, err)
		assert.True(t, created)

		data, err := os.ReadFile(path)
		require.NoError(t, err)
		parsed, err := ParseHexKey(string(data))
		require.NoError(t, err)
		assert.Equal(t, crypto.FromECDSA(key), crypto.FromECDSA(parsed))

		info, err := os.Stat(path)
		require.NoError(t, err)
		assert.Equal(t, os.FileMode(0600), info.Mode().Perm())
	})

	t.Run("empty path", func(t *testing.T) {
		_, _, err := LoadOrCreateKey("", logger)
		require.Error(t, err)
	})
}

func Test_ParseHexKey(t *testing.T) {
	_, err := ParseHexKey("   ")
	require.Error(t, err)

	_, err = ParseHexKey("0x1234")
	require.Error(t, err)
}

func Test_EncryptedKeyRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "keystore.json")
	key, err := crypto.GenerateKey()
	require.NoError(t, err)

	require.NoError(t, SaveEncryptedKey(path, key, "correct horse", ethKeystore.LightScryptN, ethKeystore.LightScryptP))

	loaded, err := LoadEncryptedKey(path, "correct horse")
	require.NoError(t, err)
	assert.Equal(t, crypto.FromECDSA(key), crypto.FromECDSA(loaded))

	_, err = LoadEncryptedKey(path, "wrong")
	require.Error(t, err)

	_, err = LoadEncryptedKey(filepath.Join(t.TempDir(), "missing.json"), "x")
	require.Error(t, err)
}
