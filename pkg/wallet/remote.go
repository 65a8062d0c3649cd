package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/docsigner/docsigner-go/pkg/clients/web3signer"
	"github.com/docsigner/docsigner-go/pkg/eip712"
	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
	"go.uber.org/zap"
)

const DefaultAccountPollInterval = 5 * time.Second

// RemoteWallet delegates key custody to a Web3Signer instance
type RemoteWallet struct {
	accountListeners

	client    web3signer.IWeb3Signer
	backend   transactionSigner.EthBackend
	logger    *zap.Logger
	txOptions []transactionSigner.Option

	mu       sync.Mutex
	accounts []common.Address
}

func NewRemoteWallet(client web3signer.IWeb3Signer, backend transactionSigner.EthBackend, logger *zap.Logger, txOptions ...transactionSigner.Option) (*RemoteWallet, error) {
	if client == nil {
		return nil, fmt.Errorf("web3signer client is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &RemoteWallet{
		client:    client,
		backend:   backend,
		logger:    logger,
		txOptions: txOptions,
	}, nil
}

func (w *RemoteWallet) fetchAccounts(ctx context.Context) ([]common.Address, error) {
	raw, err := w.client.EthAccounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list web3signer accounts: %w", err)
	}
	accounts := make([]common.Address, 0, len(raw))
	for _, a := range raw {
		if !common.IsHexAddress(a) {
			return nil, fmt.Errorf("web3signer returned invalid address %q", a)
		}
		accounts = append(accounts, common.HexToAddress(a))
	}
	return accounts, nil
}

func (w *RemoteWallet) RequestAccounts(ctx context.Context) ([]common.Address, error) {
	accounts, err := w.fetchAccounts(ctx)
	if err != nil {
		return nil, err
	}
	w.mu.Lock()
	w.accounts = accounts
	w.mu.Unlock()
	return accounts, nil
}

func (w *RemoteWallet) ChainID(ctx context.Context) (*big.Int, error) {
	if w.backend == nil {
		return nil, fmt.Errorf("wallet has no chain backend")
	}
	return w.backend.ChainID(ctx)
}

func (w *RemoteWallet) SignTypedData(ctx context.Context, account common.Address, typedData apitypes.TypedData) ([]byte, error) {
	sigHex, err := w.client.EthSignTypedData(ctx, account.Hex(), typedData)
	if err != nil {
		return nil, err
	}
	sig, err := hexutil.Decode(sigHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode web3signer signature: %w", err)
	}
	if len(sig) != crypto.SignatureLength {
		return nil, fmt.Errorf("web3signer returned a %d byte signature", len(sig))
	}
	return eip712.ToWalletFormat(sig), nil
}

func (w *RemoteWallet) TransactionSigner(ctx context.Context, account common.Address) (transactionSigner.ITransactionSigner, error) {
	return transactionSigner.NewWeb3TransactionSigner(w.client, account, w.backend, w.logger, w.txOptions...)
}

// Poll checks eth_accounts once and emits a change when the active account differs
func (w *RemoteWallet) Poll(ctx context.Context) error {
	accounts, err := w.fetchAccounts(ctx)
	if err != nil {
		return err
	}

	w.mu.Lock()
	previous := w.accounts
	w.accounts = accounts
	w.mu.Unlock()

	if firstAccount(previous) != firstAccount(accounts) {
		w.logger.Sugar().Infow("Web3Signer active account changed",
			"previous", firstAccount(previous).Hex(),
			"current", firstAccount(accounts).Hex(),
		)
		w.emit(accounts)
	}
	return nil
}

// Watch polls until ctx is done
func (w *RemoteWallet) Watch(ctx context.Context, interval time.Duration) {
	if interval <= 0 {
		interval = DefaultAccountPollInterval
	}
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := w.Poll(ctx); err != nil {
				w.logger.Sugar().Warnw("Failed to poll web3signer accounts", "error", err)
			}
		}
	}
}

func firstAccount(accounts []common.Address) common.Address {
	if len(accounts) == 0 {
		return common.Address{}
	}
	return accounts[0]
}

var _ IWallet = (*RemoteWallet)(nil)
