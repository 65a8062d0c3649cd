package caller

import (
	"context"
	"fmt"
	"math/big"

	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

// transact simulates method as the signer so reverts surface with their reason,
// then signs, sends and waits for the transaction.
func (cc *ContractCaller) transact(
	ctx context.Context,
	signer transactionSigner.ITransactionSigner,
	contract *bind.BoundContract,
	contractAbi *abi.ABI,
	to common.Address,
	method string,
	args ...interface{},
) (*ethereumTypes.Receipt, error) {
	if signer == nil {
		return nil, fmt.Errorf("transaction signer is required for %s", method)
	}
	txOpts, err := signer.GetTransactOpts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to build transaction options: %w", err)
	}

	data, err := contractAbi.Pack(method, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to pack %s: %w", method, err)
	}

	var out []interface{}
	if err := contract.Call(&bind.CallOpts{Context: ctx, From: txOpts.From}, &out, method, args...); err != nil {
		return nil, wrapRevert(method, err)
	}

	tx := ethereumTypes.NewTx(&ethereumTypes.DynamicFeeTx{
		To:    &to,
		Value: big.NewInt(0),
		Gas:   txOpts.GasLimit,
		Data:  data,
	})
	return cc.signAndSendTransaction(ctx, signer, tx, method)
}

func (cc *ContractCaller) signAndSendTransaction(
	ctx context.Context,
	signer transactionSigner.ITransactionSigner,
	tx *ethereumTypes.Transaction,
	operation string,
) (*ethereumTypes.Receipt, error) {
	cc.logger.Sugar().Infow("Signing and sending transaction",
		zap.String("operation", operation),
		zap.String("from", signer.GetFromAddress().Hex()),
		zap.String("to", tx.To().Hex()),
	)

	receipt, err := signer.SignAndSendTransaction(ctx, tx)
	if err != nil {
		return receipt, wrapRevert(operation, err)
	}
	return receipt, nil
}
