package transactionSigner

import (
	"context"
	"fmt"

	"github.com/docsigner/docsigner-go/pkg/clients/web3signer"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	"github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// Web3TransactionSigner implements ITransactionSigner using a Web3Signer service
type Web3TransactionSigner struct {
	*baseSigner
	web3SignerClient web3signer.IWeb3Signer
}

func NewWeb3TransactionSigner(web3SignerClient web3signer.IWeb3Signer, fromAddress common.Address, backend EthBackend, logger *zap.Logger, opts ...Option) (*Web3TransactionSigner, error) {
	if web3SignerClient == nil {
		return nil, fmt.Errorf("web3signer client is required")
	}
	base, err := newBaseSigner(backend, fromAddress, logger, opts)
	if err != nil {
		return nil, err
	}
	return &Web3TransactionSigner{
		baseSigner:       base,
		web3SignerClient: web3SignerClient,
	}, nil
}

// SignAndSendTransaction signs a transaction with Web3Signer and sends it to the network
func (w3s *Web3TransactionSigner) SignAndSendTransaction(ctx context.Context, tx *types.Transaction) (*types.Receipt, error) {
	unsigned, err := w3s.prepare(ctx, tx)
	if err != nil {
		return nil, err
	}

	txData := map[string]interface{}{
		"to":                   unsigned.To.Hex(),
		"value":                hexutil.EncodeBig(unsigned.Value),
		"gas":                  hexutil.EncodeUint64(unsigned.Gas),
		"maxPriorityFeePerGas": hexutil.EncodeBig(unsigned.GasTipCap),
		"maxFeePerGas":         hexutil.EncodeBig(unsigned.GasFeeCap),
		"nonce":                hexutil.EncodeUint64(unsigned.Nonce),
		"data":                 hexutil.Encode(unsigned.Data),
		"type":                 "0x2",
		"chainId":              hexutil.EncodeBig(unsigned.ChainID),
	}

	w3s.logger.Sugar().Infow("Signing transaction with web3signer",
		zap.String("to", unsigned.To.Hex()),
		zap.String("maxPriorityFeePerGas", unsigned.GasTipCap.String()),
		zap.String("maxFeePerGas", unsigned.GasFeeCap.String()),
		zap.Uint64("gasLimit", unsigned.Gas),
		zap.Uint64("nonce", unsigned.Nonce),
	)

	signedTxHex, err := w3s.web3SignerClient.EthSignTransaction(ctx, w3s.fromAddress.Hex(), txData)
	if err != nil {
		return nil, fmt.Errorf("failed to sign transaction with Web3Signer: %w", err)
	}

	signedTxBytes, err := hexutil.Decode(signedTxHex)
	if err != nil {
		return nil, fmt.Errorf("failed to decode signed transaction: %w", err)
	}

	var signedTx types.Transaction
	if err := signedTx.UnmarshalBinary(signedTxBytes); err != nil {
		return nil, fmt.Errorf("failed to unmarshal signed transaction: %w", err)
	}

	sender, err := types.Sender(types.LatestSignerForChainID(w3s.chainID), &signedTx)
	if err != nil {
		return nil, fmt.Errorf("failed to recover sender of signed transaction: %w", err)
	}
	if sender != w3s.fromAddress {
		return nil, fmt.Errorf("web3signer signed with %s, expected %s", sender.Hex(), w3s.fromAddress.Hex())
	}

	return w3s.sendAndWait(ctx, &signedTx)
}
