package wallet

import (
	"context"
	"errors"
	"math/big"
	"sync"

	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/rpc"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

// UserRejectedRequestCode is the EIP-1193 error code for a declined request
const UserRejectedRequestCode = 4001

var (
	ErrUserRejected   = errors.New("user rejected the request")
	ErrNoAccounts     = errors.New("wallet returned no accounts")
	ErrUnknownAccount = errors.New("account is not controlled by this wallet")
)

// IsUserRejected reports whether err is a user decline, either ErrUserRejected
// or a JSON-RPC error carrying code 4001.
func IsUserRejected(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrUserRejected) {
		return true
	}
	var rpcErr rpc.Error
	return errors.As(err, &rpcErr) && rpcErr.ErrorCode() == UserRejectedRequestCode
}

// AccountChangeFunc receives the wallet's accounts after a change; the first
// entry is the active account and an empty slice means disconnected.
type AccountChangeFunc func(accounts []common.Address)

// IWallet is the boundary to whatever holds the user's keys
type IWallet interface {
	RequestAccounts(ctx context.Context) ([]common.Address, error)

	ChainID(ctx context.Context) (*big.Int, error)

	// SignTypedData returns a 65 byte signature with v in {27, 28}
	SignTypedData(ctx context.Context, account common.Address, typedData apitypes.TypedData) ([]byte, error)

	// TransactionSigner returns a signer that sends transactions from account
	TransactionSigner(ctx context.Context, account common.Address) (transactionSigner.ITransactionSigner, error)

	SubscribeAccountChanges(fn AccountChangeFunc) (unsubscribe func())
}

// accountListeners is embedded by wallets that emit account changes
type accountListeners struct {
	listenerMu sync.Mutex
	nextID     int
	listeners  map[int]AccountChangeFunc
}

func (l *accountListeners) SubscribeAccountChanges(fn AccountChangeFunc) func() {
	l.listenerMu.Lock()
	defer l.listenerMu.Unlock()
	if l.listeners == nil {
		l.listeners = make(map[int]AccountChangeFunc)
	}
	id := l.nextID
	l.nextID++
	l.listeners[id] = fn

	return func() {
		l.listenerMu.Lock()
		defer l.listenerMu.Unlock()
		delete(l.listeners, id)
	}
}

func (l *accountListeners) emit(accounts []common.Address) {
	l.listenerMu.Lock()
	fns := make([]AccountChangeFunc, 0, len(l.listeners))
	for _, fn := range l.listeners {
		fns = append(fns, fn)
	}
	l.listenerMu.Unlock()

	for _, fn := range fns {
		fn(append([]common.Address(nil), accounts...))
	}
}
