// Package digest computes the content identifiers used by the DocumentSigner
// contract: the keccak256 hash of a document's raw bytes.
package digest

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
)

// ComputeDigest hashes the full byte buffer
func ComputeDigest(data []byte) types.DocumentDigest {
	return crypto.Keccak256Hash(data)
}

// FromReader streams r into a keccak256 hasher
func FromReader(r io.Reader) (types.DocumentDigest, error) {
	if r == nil {
		return common.Hash{}, fmt.Errorf("reader cannot be nil")
	}
	h := crypto.NewKeccakState()
	if _, err := io.Copy(h, r); err != nil {
		return common.Hash{}, fmt.Errorf("failed to read document: %w", err)
	}
	var out common.Hash
	if _, err := h.Read(out[:]); err != nil {
		return common.Hash{}, fmt.Errorf("failed to finalize digest: %w", err)
	}
	return out, nil
}

// FromFile hashes the file at path
func FromFile(path string) (types.DocumentDigest, error) {
	f, err := os.Open(path)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to open document %s: %w", path, err)
	}
	defer func() { _ = f.Close() }()

	return FromReader(f)
}

// Parse decodes a 0x-prefixed 32-byte hex digest
func Parse(s string) (types.DocumentDigest, error) {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "0x") || len(s) != 66 {
		return common.Hash{}, fmt.Errorf("invalid document hash %q: must be a 0x-prefixed 32-byte hex string", s)
	}
	b, err := hexutil.Decode(s)
	if err != nil {
		return common.Hash{}, fmt.Errorf("invalid document hash %q: %w", s, err)
	}
	return common.BytesToHash(b), nil
}
