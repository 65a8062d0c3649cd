package wallet

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// AccountListener is told when the session's active account changes. A zero
// current address means the wallet disconnected.
type AccountListener func(previous, current common.Address)

// Session is the connection context between the client and a wallet
type Session struct {
	wallet IWallet
	logger *zap.Logger

	mu          sync.RWMutex
	account     common.Address
	chainID     *big.Int
	connected   bool
	nextID      int
	listeners   map[int]AccountListener
	unsubscribe func()
}

func NewSession(wallet IWallet, logger *zap.Logger) *Session {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Session{
		wallet:    wallet,
		logger:    logger,
		listeners: make(map[int]AccountListener),
	}
}

// Connect requests accounts and the chain id and starts following account changes
func (s *Session) Connect(ctx context.Context) (common.Address, error) {
	accounts, err := s.wallet.RequestAccounts(ctx)
	if err != nil {
		return common.Address{}, err
	}
	if len(accounts) == 0 {
		return common.Address{}, ErrNoAccounts
	}
	chainID, err := s.wallet.ChainID(ctx)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to get chain id: %w", err)
	}

	s.mu.Lock()
	if s.unsubscribe == nil {
		s.unsubscribe = s.wallet.SubscribeAccountChanges(s.handleAccountsChanged)
	}
	s.account = accounts[0]
	s.chainID = chainID
	s.connected = true
	s.mu.Unlock()

	s.logger.Sugar().Infow("Wallet connected",
		"account", accounts[0].Hex(),
		"chainId", chainID.String(),
	)
	return accounts[0], nil
}

func (s *Session) handleAccountsChanged(accounts []common.Address) {
	current := firstAccount(accounts)

	s.mu.Lock()
	previous := s.account
	if previous == current {
		s.mu.Unlock()
		return
	}
	s.account = current
	s.connected = current != (common.Address{})
	fns := make([]AccountListener, 0, len(s.listeners))
	for _, fn := range s.listeners {
		fns = append(fns, fn)
	}
	s.mu.Unlock()

	s.logger.Sugar().Infow("Active account changed",
		"previous", previous.Hex(),
		"current", current.Hex(),
	)
	for _, fn := range fns {
		fn(previous, current)
	}
}

// Account returns the active account and whether the session is connected
func (s *Session) Account() (common.Address, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.account, s.connected
}

func (s *Session) ChainID() *big.Int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.chainID == nil {
		return nil
	}
	return new(big.Int).Set(s.chainID)
}

func (s *Session) Wallet() IWallet {
	return s.wallet
}

func (s *Session) OnAccountChange(fn AccountListener) (unsubscribe func()) {
	s.mu.Lock()
	defer s.mu.Unlock()
	id := s.nextID
	s.nextID++
	s.listeners[id] = fn
	return func() {
		s.mu.Lock()
		defer s.mu.Unlock()
		delete(s.listeners, id)
	}
}

// Close stops following wallet account changes
func (s *Session) Close() {
	s.mu.Lock()
	unsubscribe := s.unsubscribe
	s.unsubscribe = nil
	s.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}
