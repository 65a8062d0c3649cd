package wallet

import (
	"context"
	"crypto/ecdsa"
	"fmt"
	"math/big"
	"sync"

	"github.com/docsigner/docsigner-go/pkg/eip712"
	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

// LocalWallet holds secp256k1 keys in process. The first key is the active account.
type LocalWallet struct {
	accountListeners

	mu        sync.RWMutex
	keys      []*ecdsa.PrivateKey
	backend   transactionSigner.EthBackend
	logger    *zap.Logger
	txOptions []transactionSigner.Option
}

func NewLocalWallet(backend transactionSigner.EthBackend, logger *zap.Logger, keys ...*ecdsa.PrivateKey) (*LocalWallet, error) {
	if len(keys) == 0 {
		return nil, fmt.Errorf("at least one key is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &LocalWallet{
		keys:    append([]*ecdsa.PrivateKey(nil), keys...),
		backend: backend,
		logger:  logger,
	}, nil
}

// WithTransactionOptions sets options applied to every transaction signer
func (w *LocalWallet) WithTransactionOptions(opts ...transactionSigner.Option) *LocalWallet {
	w.txOptions = opts
	return w
}

func (w *LocalWallet) accountsLocked() []common.Address {
	accounts := make([]common.Address, 0, len(w.keys))
	for _, key := range w.keys {
		accounts = append(accounts, crypto.PubkeyToAddress(key.PublicKey))
	}
	return accounts
}

func (w *LocalWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	return w.accountsLocked(), nil
}

func (w *LocalWallet) ChainID(ctx context.Context) (*big.Int, error) {
	if w.backend == nil {
		return nil, fmt.Errorf("wallet has no chain backend")
	}
	return w.backend.ChainID(ctx)
}

func (w *LocalWallet) keyFor(account common.Address) (*ecdsa.PrivateKey, error) {
	w.mu.RLock()
	defer w.mu.RUnlock()
	for _, key := range w.keys {
		if crypto.PubkeyToAddress(key.PublicKey) == account {
			return key, nil
		}
	}
	return nil, fmt.Errorf("%w: %s", ErrUnknownAccount, account.Hex())
}

func (w *LocalWallet) SignTypedData(ctx context.Context, account common.Address, typedData apitypes.TypedData) ([]byte, error) {
	key, err := w.keyFor(account)
	if err != nil {
		return nil, err
	}
	hash, err := eip712.Hash(typedData)
	if err != nil {
		return nil, err
	}
	sig, err := crypto.Sign(hash.Bytes(), key)
	if err != nil {
		return nil, fmt.Errorf("failed to sign typed data: %w", err)
	}
	return eip712.ToWalletFormat(sig), nil
}

func (w *LocalWallet) TransactionSigner(ctx context.Context, account common.Address) (transactionSigner.ITransactionSigner, error) {
	key, err := w.keyFor(account)
	if err != nil {
		return nil, err
	}
	return transactionSigner.NewPrivateKeySignerFromKey(key, w.backend, w.logger, w.txOptions...)
}

// SwitchAccount makes account the active account and notifies subscribers
func (w *LocalWallet) SwitchAccount(account common.Address) error {
	w.mu.Lock()
	idx := -1
	for i, key := range w.keys {
		if crypto.PubkeyToAddress(key.PublicKey) == account {
			idx = i
			break
		}
	}
	if idx < 0 {
		w.mu.Unlock()
		return fmt.Errorf("%w: %s", ErrUnknownAccount, account.Hex())
	}
	if idx == 0 {
		w.mu.Unlock()
		return nil
	}
	key := w.keys[idx]
	w.keys = append(w.keys[:idx], w.keys[idx+1:]...)
	w.keys = append([]*ecdsa.PrivateKey{key}, w.keys...)
	accounts := w.accountsLocked()
	w.mu.Unlock()

	w.logger.Sugar().Infow("Switched active account", "account", account.Hex())
	w.emit(accounts)
	return nil
}

var _ IWallet = (*LocalWallet)(nil)
