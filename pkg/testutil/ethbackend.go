package testutil

import (
	"context"
	"fmt"
	"math/big"
	"sync"

	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
)

// FakeBackend is an in-memory stand-in for ethclient.Client. Sent transactions
// are mined immediately with ReceiptStatus.
type FakeBackend struct {
	mu sync.Mutex

	ChainId       *big.Int
	BaseFee       *big.Int
	GasTipCap     *big.Int
	GasTipCapErr  error
	GasEstimate   uint64
	EstimateErr   error
	SendErr       error
	ReceiptStatus uint64
	Code          []byte

	// CallHandler answers eth_call; nil returns empty output
	CallHandler func(msg ethereum.CallMsg) ([]byte, error)

	nonces      map[common.Address]uint64
	blockNumber uint64
	sent        []*types.Transaction
	receipts    map[common.Hash]*types.Receipt
}

func NewFakeBackend(chainID int64) *FakeBackend {
	return &FakeBackend{
		ChainId:       big.NewInt(chainID),
		BaseFee:       big.NewInt(1_000_000_000),
		GasTipCap:     big.NewInt(1_000_000),
		GasEstimate:   100_000,
		ReceiptStatus: types.ReceiptStatusSuccessful,
		Code:          []byte{0x60, 0x80},
		nonces:        make(map[common.Address]uint64),
		blockNumber:   100,
		receipts:      make(map[common.Hash]*types.Receipt),
	}
}

// Sent returns the transactions accepted by SendTransaction
func (f *FakeBackend) Sent() []*types.Transaction {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*types.Transaction, len(f.sent))
	copy(out, f.sent)
	return out
}

func (f *FakeBackend) SetReceiptStatus(status uint64) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ReceiptStatus = status
}

func (f *FakeBackend) ChainID(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Set(f.ChainId), nil
}

func (f *FakeBackend) SuggestGasTipCap(ctx context.Context) (*big.Int, error) {
	if f.GasTipCapErr != nil {
		return nil, f.GasTipCapErr
	}
	return new(big.Int).Set(f.GasTipCap), nil
}

func (f *FakeBackend) SuggestGasPrice(ctx context.Context) (*big.Int, error) {
	return new(big.Int).Add(f.BaseFee, f.GasTipCap), nil
}

func (f *FakeBackend) HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var baseFee *big.Int
	if f.BaseFee != nil {
		baseFee = new(big.Int).Set(f.BaseFee)
	}
	return &types.Header{
		Number:  new(big.Int).SetUint64(f.blockNumber),
		BaseFee: baseFee,
	}, nil
}

func (f *FakeBackend) EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error) {
	if f.EstimateErr != nil {
		return 0, f.EstimateErr
	}
	return f.GasEstimate, nil
}

func (f *FakeBackend) PendingNonceAt(ctx context.Context, account common.Address) (uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.nonces[account], nil
}

func (f *FakeBackend) PendingCodeAt(ctx context.Context, account common.Address) ([]byte, error) {
	return f.Code, nil
}

func (f *FakeBackend) CodeAt(ctx context.Context, account common.Address, blockNumber *big.Int) ([]byte, error) {
	return f.Code, nil
}

func (f *FakeBackend) CallContract(ctx context.Context, call ethereum.CallMsg, blockNumber *big.Int) ([]byte, error) {
	if f.CallHandler == nil {
		return nil, nil
	}
	return f.CallHandler(call)
}

func (f *FakeBackend) SendTransaction(ctx context.Context, tx *types.Transaction) error {
	if f.SendErr != nil {
		return f.SendErr
	}
	sender, err := types.Sender(types.LatestSignerForChainID(f.ChainId), tx)
	if err != nil {
		return fmt.Errorf("invalid sender: %w", err)
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if tx.Nonce() != f.nonces[sender] {
		return fmt.Errorf("nonce too low: have %d, want %d", tx.Nonce(), f.nonces[sender])
	}
	f.nonces[sender]++
	f.blockNumber++
	f.sent = append(f.sent, tx)
	f.receipts[tx.Hash()] = &types.Receipt{
		Type:        tx.Type(),
		Status:      f.ReceiptStatus,
		TxHash:      tx.Hash(),
		GasUsed:     tx.Gas() / 2,
		BlockNumber: new(big.Int).SetUint64(f.blockNumber),
	}
	return nil
}

func (f *FakeBackend) TransactionReceipt(ctx context.Context, txHash common.Hash) (*types.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	receipt, ok := f.receipts[txHash]
	if !ok {
		return nil, ethereum.NotFound
	}
	return receipt, nil
}

func (f *FakeBackend) FilterLogs(ctx context.Context, query ethereum.FilterQuery) ([]types.Log, error) {
	return nil, nil
}

func (f *FakeBackend) SubscribeFilterLogs(ctx context.Context, query ethereum.FilterQuery, ch chan<- types.Log) (ethereum.Subscription, error) {
	return nil, fmt.Errorf("subscriptions are not supported")
}
