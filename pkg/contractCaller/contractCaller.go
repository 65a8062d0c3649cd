package contractCaller

import (
	"context"
	"math/big"

	"github.com/docsigner/docsigner-go/pkg/contractCaller/caller"
	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
)

// IDocumentSignerCaller reads and writes the DocumentSigner contract
type IDocumentSignerCaller interface {
	DocumentSignerAddress() common.Address

	GetNonce(ctx context.Context, signer common.Address) (uint32, error)

	GetSigners(ctx context.Context, digest types.DocumentDigest) ([]*types.SignerRecord, error)

	VerifyStoredSignature(ctx context.Context, digest types.DocumentDigest, signer common.Address) (bool, error)

	SignDocument(
		ctx context.Context,
		txSigner transactionSigner.ITransactionSigner,
		digest types.DocumentDigest,
		signer common.Address,
		signature []byte,
	) (*ethereumTypes.Receipt, error)

	InvalidateSignature(
		ctx context.Context,
		txSigner transactionSigner.ITransactionSigner,
		digest types.DocumentDigest,
		signer common.Address,
		signature []byte,
	) (*ethereumTypes.Receipt, error)
}

// IAccreditationRegistryCaller reads and writes the AccreditationRegistry contract
type IAccreditationRegistryCaller interface {
	GetRegistryOwner(ctx context.Context) (common.Address, error)

	IsAuditor(ctx context.Context, account common.Address) (bool, error)

	GetLaboratoryInfo(ctx context.Context, lab common.Address) (*types.Laboratory, error)

	HasValidAccreditation(ctx context.Context, lab common.Address, name string) (bool, error)

	GetAccreditationDetails(ctx context.Context, lab common.Address, name string) (*types.Accreditation, error)

	GetAllAccreditationsForLaboratory(ctx context.Context, lab common.Address) ([]*types.Accreditation, error)

	GetRegisteredSigner(ctx context.Context, signer common.Address) (*types.RegisteredSigner, error)

	AddAuditor(ctx context.Context, txSigner transactionSigner.ITransactionSigner, auditor common.Address) (*ethereumTypes.Receipt, error)

	RemoveAuditor(ctx context.Context, txSigner transactionSigner.ITransactionSigner, auditor common.Address) (*ethereumTypes.Receipt, error)

	AddLaboratory(ctx context.Context, txSigner transactionSigner.ITransactionSigner, lab common.Address, name string) (*ethereumTypes.Receipt, error)

	SetLaboratoryVerificationStatus(ctx context.Context, txSigner transactionSigner.ITransactionSigner, lab common.Address, verified bool) (*ethereumTypes.Receipt, error)

	AddModSigner(ctx context.Context, txSigner transactionSigner.ITransactionSigner, name string) (*ethereumTypes.Receipt, error)

	SetSignerVerificationStatus(ctx context.Context, txSigner transactionSigner.ITransactionSigner, signer common.Address, verified bool) (*ethereumTypes.Receipt, error)

	AddModAccreditation(
		ctx context.Context,
		txSigner transactionSigner.ITransactionSigner,
		lab common.Address,
		name string,
		validFrom *big.Int,
		validUntil *big.Int,
	) (*ethereumTypes.Receipt, error)

	RevokeAccreditation(ctx context.Context, txSigner transactionSigner.ITransactionSigner, lab common.Address, name string) (*ethereumTypes.Receipt, error)
}

type IContractCaller interface {
	IDocumentSignerCaller
	IAccreditationRegistryCaller
}

var _ IContractCaller = (*caller.ContractCaller)(nil)
