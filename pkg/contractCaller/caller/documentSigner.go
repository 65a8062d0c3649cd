package caller

import (
	"context"
	"fmt"

	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
)

// GetNonce returns the signer's current EIP-712 nonce
func (cc *ContractCaller) GetNonce(ctx context.Context, signer common.Address) (uint32, error) {
	var out []interface{}
	if err := cc.documentSigner.Call(callOpts(ctx), &out, "nonce", signer); err != nil {
		return 0, fmt.Errorf("failed to get nonce for %s: %w", signer.Hex(), err)
	}
	return *abi.ConvertType(out[0], new(uint32)).(*uint32), nil
}

// GetSigners returns the signature records stored for a document
func (cc *ContractCaller) GetSigners(ctx context.Context, digest types.DocumentDigest) ([]*types.SignerRecord, error) {
	var out []interface{}
	if err := cc.documentSigner.Call(callOpts(ctx), &out, "getSigners", digest); err != nil {
		return nil, fmt.Errorf("failed to get signers for %s: %w", digest.Hex(), err)
	}
	infos := *abi.ConvertType(out[0], new([]DocumentSignerSignerInfo)).(*[]DocumentSignerSignerInfo)

	records := make([]*types.SignerRecord, 0, len(infos))
	for _, info := range infos {
		records = append(records, &types.SignerRecord{
			Signer:    info.Signer,
			Timestamp: types.UnixToTime(info.Timestamp),
			Sender:    info.Sender,
		})
	}
	return records, nil
}

func (cc *ContractCaller) VerifyStoredSignature(ctx context.Context, digest types.DocumentDigest, signer common.Address) (bool, error) {
	var out []interface{}
	if err := cc.documentSigner.Call(callOpts(ctx), &out, "verifyStoredSignature", digest, signer); err != nil {
		return false, fmt.Errorf("failed to verify stored signature: %w", err)
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

// SignDocument stores signature for digest on behalf of signer. The
// transaction is paid for by txSigner, which need not be the signer.
func (cc *ContractCaller) SignDocument(
	ctx context.Context,
	txSigner transactionSigner.ITransactionSigner,
	digest types.DocumentDigest,
	signer common.Address,
	signature []byte,
) (*ethereumTypes.Receipt, error) {
	return cc.transact(ctx, txSigner, cc.documentSigner, cc.documentSignerABI, cc.documentSignerAddress,
		string(types.Operation_SignDocument), digest, signer, signature)
}

func (cc *ContractCaller) InvalidateSignature(
	ctx context.Context,
	txSigner transactionSigner.ITransactionSigner,
	digest types.DocumentDigest,
	signer common.Address,
	signature []byte,
) (*ethereumTypes.Receipt, error) {
	return cc.transact(ctx, txSigner, cc.documentSigner, cc.documentSignerABI, cc.documentSignerAddress,
		string(types.Operation_InvalidateSignature), digest, signer, signature)
}
