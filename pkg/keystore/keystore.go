package keystore

import (
	"crypto/ecdsa"
	"encoding/hex"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	ethKeystore "github.com/ethereum/go-ethereum/accounts/keystore"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// LoadOrCreateKey reads a hex private key from path. When the file is missing
// or does not hold a valid key, a new key is generated and written over it.
func LoadOrCreateKey(path string, logger *zap.Logger) (*ecdsa.PrivateKey, bool, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if path == "" {
		return nil, false, fmt.Errorf("key path is required")
	}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		key, parseErr := ParseHexKey(string(data))
		if parseErr == nil {
			return key, false, nil
		}
		logger.Sugar().Warnw("Key file is invalid, generating a new key", "path", path, "error", parseErr)
	case os.IsNotExist(err):
		logger.Sugar().Infow("Key file not found, generating a new key", "path", path)
	default:
		return nil, false, fmt.Errorf("failed to read key file: %w", err)
	}

	key, err := crypto.GenerateKey()
	if err != nil {
		return nil, false, fmt.Errorf("failed to generate key: %w", err)
	}
	if err := WriteHexKey(path, key); err != nil {
		return nil, false, err
	}
	logger.Sugar().Infow("Generated new key", "path", path, "address", crypto.PubkeyToAddress(key.PublicKey).Hex())
	return key, true, nil
}

// ParseHexKey accepts a hex secp256k1 key with or without 0x and surrounding whitespace
func ParseHexKey(s string) (*ecdsa.PrivateKey, error) {
	s = strings.TrimSpace(s)
	s = strings.TrimPrefix(strings.TrimPrefix(s, "0x"), "0X")
	if s == "" {
		return nil, fmt.Errorf("empty key")
	}
	key, err := crypto.HexToECDSA(s)
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return key, nil
}

// WriteHexKey writes key as hex, readable only by the owner
func WriteHexKey(path string, key *ecdsa.PrivateKey) error {
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create key directory: %w", err)
	}
	encoded := hex.EncodeToString(crypto.FromECDSA(key))
	if err := os.WriteFile(path, []byte(encoded), 0600); err != nil {
		return fmt.Errorf("failed to write key file: %w", err)
	}
	// WriteFile keeps the mode of an existing file
	if err := os.Chmod(path, 0600); err != nil {
		return fmt.Errorf("failed to set key file permissions: %w", err)
	}
	return nil
}

// LoadEncryptedKey decrypts a go-ethereum keystore JSON file
func LoadEncryptedKey(path string, passphrase string) (*ecdsa.PrivateKey, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read keystore file: %w", err)
	}
	key, err := ethKeystore.DecryptKey(data, passphrase)
	if err != nil {
		return nil, fmt.Errorf("failed to decrypt keystore %s: %w", path, err)
	}
	return key.PrivateKey, nil
}

// SaveEncryptedKey writes key as keystore JSON using the given scrypt cost
func SaveEncryptedKey(path string, key *ecdsa.PrivateKey, passphrase string, scryptN, scryptP int) error {
	id, err := uuid.NewRandom()
	if err != nil {
		return fmt.Errorf("failed to generate key id: %w", err)
	}
	encrypted, err := ethKeystore.EncryptKey(&ethKeystore.Key{
		Id:         id,
		Address:    crypto.PubkeyToAddress(key.PublicKey),
		PrivateKey: key,
	}, passphrase, scryptN, scryptP)
	if err != nil {
		return fmt.Errorf("failed to encrypt key: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0700); err != nil {
		return fmt.Errorf("failed to create keystore directory: %w", err)
	}
	return os.WriteFile(path, encrypted, 0600)
}
