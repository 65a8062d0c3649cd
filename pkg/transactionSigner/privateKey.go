package transactionSigner

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"strings"

	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// PrivateKeySigner signs transactions with an in-process secp256k1 key
type PrivateKeySigner struct {
	*baseSigner
	privateKey *ecdsa.PrivateKey
}

// NewPrivateKeySigner parses a hex private key, with or without 0x
func NewPrivateKeySigner(privateKey string, backend EthBackend, logger *zap.Logger, opts ...Option) (*PrivateKeySigner, error) {
	key, err := crypto.HexToECDSA(strings.TrimPrefix(strings.TrimSpace(privateKey), "0x"))
	if err != nil {
		return nil, fmt.Errorf("invalid private key: %w", err)
	}
	return NewPrivateKeySignerFromKey(key, backend, logger, opts...)
}

func NewPrivateKeySignerFromKey(key *ecdsa.PrivateKey, backend EthBackend, logger *zap.Logger, opts ...Option) (*PrivateKeySigner, error) {
	if key == nil {
		return nil, fmt.Errorf("private key cannot be nil")
	}
	base, err := newBaseSigner(backend, crypto.PubkeyToAddress(key.PublicKey), logger, opts)
	if err != nil {
		return nil, err
	}
	return &PrivateKeySigner{
		baseSigner: base,
		privateKey: key,
	}, nil
}

// SignAndSendTransaction signs a transaction and sends it to the network
func (p *PrivateKeySigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	unsigned, err := p.prepare(ctx, tx)
	if err != nil {
		return nil, err
	}

	signedTx, err := types.SignNewTx(p.privateKey, types.LatestSignerForChainID(p.chainID), unsigned)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction: %w", err)
	}
	return p.sendAndWait(ctx, signedTx)
}

// SignHash produces a 65 byte [R || S || V] signature with V in {0, 1}
func (p *PrivateKeySigner) SignHash(hash []byte) ([]byte, error) {
	return crypto.Sign(hash, p.privateKey)
}
