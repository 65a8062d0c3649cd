package transactionSigner

import (
	"context"
	"crypto/ecdsa"
	"errors"
	"fmt"
	"math/big"

	"github.com/docsigner/docsigner-go/pkg/config"
	"github.com/ethereum/go-ethereum"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
	"go.uber.org/zap"
)

// ErrTransactionFailed is returned, together with the receipt, when a
// transaction is mined with a non-success status.
var ErrTransactionFailed = errors.New("transaction failed")

// ITransactionSigner provides methods for signing Ethereum transactions
type ITransactionSigner interface {
	// GetTransactOpts returns transaction options for creating unsigned transactions
	GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error)

	// SignAndSendTransaction signs a transaction, sends it and waits for it to be mined.
	// A reverted transaction yields its receipt and an error wrapping ErrTransactionFailed.
	SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error)

	// GetFromAddress returns the address that will be used for signing
	GetFromAddress() common.Address

	// EstimateGasPriceAndLimit estimates the max fee per gas and gas limit for a transaction
	EstimateGasPriceAndLimit(ctx context.Context, tx *types.Transaction) (*big.Int, uint64, error)
}

// EthBackend is the subset of ethclient.Client the signers need
type EthBackend interface {
	bind.DeployBackend
	ChainID(ctx context.Context) (*big.Int, error)
	SuggestGasTipCap(ctx context.Context) (*big.Int, error)
	HeaderByNumber(ctx context.Context, number *big.Int) (*types.Header, error)
	EstimateGas(ctx context.Context, msg ethereum.CallMsg) (uint64, error)
	PendingNonceAt(ctx context.Context, account common.Address) (uint64, error)
	SendTransaction(ctx context.Context, tx *types.Transaction) error
}

type SignerConfig struct {
	PrivateKey string `json:"privateKey" yaml:"privateKey"`
	GasLimit   uint64 `json:"gasLimit" yaml:"gasLimit"`
}

func NewTransactionSigner(cfg *SignerConfig, backend EthBackend, logger *zap.Logger) (ITransactionSigner, error) {
	if cfg.PrivateKey == "" {
		return nil, fmt.Errorf("private key cannot be empty")
	}

	var opts []Option
	if cfg.GasLimit > 0 {
		opts = append(opts, WithFixedGasLimit(cfg.GasLimit))
	}
	return NewPrivateKeySigner(cfg.PrivateKey, backend, logger, opts...)
}

type Option func(*baseSigner)

// WithFixedGasLimit skips gas estimation and uses limit for every transaction
func WithFixedGasLimit(limit uint64) Option {
	return func(b *baseSigner) {
		b.fixedGasLimit = limit
	}
}

// baseSigner holds the fee, nonce and receipt handling shared by every signer
type baseSigner struct {
	backend       EthBackend
	logger        *zap.Logger
	chainID       *big.Int
	fromAddress   common.Address
	fixedGasLimit uint64
}

func newBaseSigner(backend EthBackend, fromAddress common.Address, logger *zap.Logger, opts []Option) (*baseSigner, error) {
	if backend == nil {
		return nil, fmt.Errorf("eth backend is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	chainID, err := backend.ChainID(context.Background())
	if err != nil {
		return nil, fmt.Errorf("failed to get chain ID: %w", err)
	}

	b := &baseSigner{
		backend:     backend,
		logger:      logger,
		chainID:     chainID,
		fromAddress: fromAddress,
	}
	for _, opt := range opts {
		opt(b)
	}
	return b, nil
}

// GetFromAddress returns the address that will be used for signing
func (b *baseSigner) GetFromAddress() common.Address {
	return b.fromAddress
}

func (b *baseSigner) ChainID() *big.Int {
	return new(big.Int).Set(b.chainID)
}

// GetTransactOpts returns options whose Signer passes the transaction through
// untouched. Signing happens in SignAndSendTransaction.
func (b *baseSigner) GetTransactOpts(ctx context.Context) (*bind.TransactOpts, error) {
	opts := &bind.TransactOpts{
		From:    b.fromAddress,
		Context: ctx,
		NoSend:  true,
		Signer: func(address common.Address, tx *types.Transaction) (*types.Transaction, error) {
			return tx, nil
		},
	}
	if b.fixedGasLimit > 0 {
		opts.GasLimit = b.fixedGasLimit
	}
	return opts, nil
}

func (b *baseSigner) feeParams(ctx context.Context) (gasTipCap *big.Int, maxFeePerGas *big.Int, err error) {
	var fallbackGasTipCap *big.Int
	var baseFeeMultiplier int64

	if config.IsEthereum(config.ChainId(b.chainID.Uint64())) {
		fallbackGasTipCap = big.NewInt(1500000000) // 1.5 gwei
		baseFeeMultiplier = 3
	} else {
		fallbackGasTipCap = big.NewInt(1000000) // 0.001 gwei
		baseFeeMultiplier = 2
	}

	gasTipCap, err = b.backend.SuggestGasTipCap(ctx)
	if err != nil {
		// backend may not support eth_maxPriorityFeePerGas
		b.logger.Sugar().Warnw("Cannot get gasTipCap, using fallback",
			zap.Error(err),
		)
		gasTipCap = fallbackGasTipCap
	}

	header, err := b.backend.HeaderByNumber(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to get latest block header: %w", err)
	}
	if header.BaseFee == nil {
		return nil, nil, fmt.Errorf("chain %s does not report a base fee", b.chainID.String())
	}

	maxFeePerGas = new(big.Int).Add(
		new(big.Int).Mul(header.BaseFee, big.NewInt(baseFeeMultiplier)),
		gasTipCap,
	)
	return gasTipCap, maxFeePerGas, nil
}

func (b *baseSigner) gasLimit(ctx context.Context, tx *types.Transaction, gasTipCap, maxFeePerGas *big.Int) (uint64, error) {
	if b.fixedGasLimit > 0 {
		return b.fixedGasLimit, nil
	}
	gasLimit, err := b.backend.EstimateGas(ctx, ethereum.CallMsg{
		From:      b.fromAddress,
		To:        tx.To(),
		GasTipCap: gasTipCap,
		GasFeeCap: maxFeePerGas,
		Value:     tx.Value(),
		Data:      tx.Data(),
	})
	if err != nil {
		return 0, fmt.Errorf("failed to estimate gas: %w", err)
	}
	return addGasBuffer(gasLimit), nil
}

// EstimateGasPriceAndLimit estimates the max fee per gas and gas limit for a transaction
func (b *baseSigner) EstimateGasPriceAndLimit(ctx context.Context, tx *types.Transaction) (*big.Int, uint64, error) {
	gasTipCap, maxFeePerGas, err := b.feeParams(ctx)
	if err != nil {
		return nil, 0, err
	}
	gasLimit, err := b.gasLimit(ctx, tx, gasTipCap, maxFeePerGas)
	if err != nil {
		return nil, 0, err
	}
	return maxFeePerGas, gasLimit, nil
}

// prepare rebuilds tx as an EIP-1559 transaction with fresh fees and nonce
func (b *baseSigner) prepare(ctx context.Context, tx *types.Transaction) (*types.DynamicFeeTx, error) {
	if tx.To() == nil {
		return nil, fmt.Errorf("contract creation is not supported")
	}
	gasTipCap, maxFeePerGas, err := b.feeParams(ctx)
	if err != nil {
		return nil, err
	}
	gasLimit, err := b.gasLimit(ctx, tx, gasTipCap, maxFeePerGas)
	if err != nil {
		return nil, err
	}

	// the incoming nonce may be 0, which is also a valid nonce
	nonce, err := b.backend.PendingNonceAt(ctx, b.fromAddress)
	if err != nil {
		return nil, fmt.Errorf("failed to get nonce: %w", err)
	}

	return &types.DynamicFeeTx{
		ChainID:   b.ChainID(),
		Nonce:     nonce,
		GasTipCap: gasTipCap,
		GasFeeCap: maxFeePerGas,
		Gas:       gasLimit,
		To:        tx.To(),
		Value:     tx.Value(),
		Data:      tx.Data(),
	}, nil
}

func (b *baseSigner) sendAndWait(ctx context.Context, signedTx *types.Transaction) (*types.Receipt, error) {
	if err := b.backend.SendTransaction(ctx, signedTx); err != nil {
		return nil, fmt.Errorf("failed to send transaction: %w", err)
	}

	b.logger.Sugar().Infow("Transaction sent",
		zap.String("txHash", signedTx.Hash().Hex()),
		zap.String("from", b.fromAddress.Hex()),
		zap.String("to", signedTx.To().Hex()),
		zap.Uint64("gasLimit", signedTx.Gas()),
		zap.Uint64("nonce", signedTx.Nonce()),
	)

	waitCtx, cancel := context.WithTimeout(ctx, config.ReceiptTimeoutForChain(config.ChainId(b.chainID.Uint64())))
	defer cancel()

	receipt, err := bind.WaitMined(waitCtx, b.backend, signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed to wait for transaction receipt: %w", err)
	}

	if receipt.Status != types.ReceiptStatusSuccessful {
		b.logger.Sugar().Errorw("Transaction failed",
			zap.String("txHash", receipt.TxHash.Hex()),
			zap.Uint64("status", receipt.Status),
			zap.Uint64("gasUsed", receipt.GasUsed),
		)
		return receipt, fmt.Errorf("%w: %s mined with status %d", ErrTransactionFailed, receipt.TxHash.Hex(), receipt.Status)
	}

	blockNumber := uint64(0)
	if receipt.BlockNumber != nil {
		blockNumber = receipt.BlockNumber.Uint64()
	}
	b.logger.Sugar().Infow("Transaction succeeded",
		zap.String("txHash", receipt.TxHash.Hex()),
		zap.Uint64("gasUsed", receipt.GasUsed),
		zap.Uint64("blockNumber", blockNumber),
	)
	return receipt, nil
}

// addGasBuffer adds 20% to an estimated gas limit
func addGasBuffer(gasLimit uint64) uint64 {
	return gasLimit + gasLimit/5
}

// AddressFromPublicKey derives the Ethereum address for a secp256k1 public key
func AddressFromPublicKey(pub *ecdsa.PublicKey) common.Address {
	return crypto.PubkeyToAddress(*pub)
}
