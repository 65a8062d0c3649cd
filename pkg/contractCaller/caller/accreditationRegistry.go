package caller

import (
	"context"
	"fmt"
	"math/big"

	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
)

func (cc *ContractCaller) callRegistry(ctx context.Context, method string, args ...interface{}) ([]interface{}, error) {
	if err := cc.requireRegistry(); err != nil {
		return nil, err
	}
	var out []interface{}
	if err := cc.registry.Call(callOpts(ctx), &out, method, args...); err != nil {
		return nil, fmt.Errorf("failed to call %s: %w", method, err)
	}
	return out, nil
}

func (cc *ContractCaller) transactRegistry(ctx context.Context, txSigner transactionSigner.ITransactionSigner, method string, args ...interface{}) (*ethereumTypes.Receipt, error) {
	if err := cc.requireRegistry(); err != nil {
		return nil, err
	}
	return cc.transact(ctx, txSigner, cc.registry, cc.registryABI, cc.registryAddress, method, args...)
}

func (cc *ContractCaller) GetRegistryOwner(ctx context.Context) (common.Address, error) {
	out, err := cc.callRegistry(ctx, "owner")
	if err != nil {
		return common.Address{}, err
	}
	return *abi.ConvertType(out[0], new(common.Address)).(*common.Address), nil
}

func (cc *ContractCaller) IsAuditor(ctx context.Context, account common.Address) (bool, error) {
	out, err := cc.callRegistry(ctx, "isAuditor", account)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (cc *ContractCaller) GetLaboratoryInfo(ctx context.Context, lab common.Address) (*types.Laboratory, error) {
	out, err := cc.callRegistry(ctx, "getLaboratoryInfo", lab)
	if err != nil {
		return nil, err
	}
	return &types.Laboratory{
		Address:    lab,
		Name:       *abi.ConvertType(out[0], new(string)).(*string),
		IsVerified: *abi.ConvertType(out[1], new(bool)).(*bool),
		Exists:     *abi.ConvertType(out[2], new(bool)).(*bool),
	}, nil
}

func (cc *ContractCaller) HasValidAccreditation(ctx context.Context, lab common.Address, name string) (bool, error) {
	out, err := cc.callRegistry(ctx, "hasValidAccreditation", lab, name)
	if err != nil {
		return false, err
	}
	return *abi.ConvertType(out[0], new(bool)).(*bool), nil
}

func (cc *ContractCaller) GetAccreditationDetails(ctx context.Context, lab common.Address, name string) (*types.Accreditation, error) {
	out, err := cc.callRegistry(ctx, "getAccreditationDetails", lab, name)
	if err != nil {
		return nil, err
	}
	return &types.Accreditation{
		Name:       *abi.ConvertType(out[0], new(string)).(*string),
		ValidFrom:  types.UnixToTime(*abi.ConvertType(out[1], new(*big.Int)).(**big.Int)),
		ValidUntil: types.UnixToTime(*abi.ConvertType(out[2], new(*big.Int)).(**big.Int)),
		Exists:     *abi.ConvertType(out[3], new(bool)).(*bool),
	}, nil
}

func (cc *ContractCaller) GetAllAccreditationsForLaboratory(ctx context.Context, lab common.Address) ([]*types.Accreditation, error) {
	out, err := cc.callRegistry(ctx, "getAllAccreditationsForLaboratory", lab)
	if err != nil {
		return nil, err
	}
	raw := *abi.ConvertType(out[0], new([]AccreditationRegistryAccreditation)).(*[]AccreditationRegistryAccreditation)

	accreditations := make([]*types.Accreditation, 0, len(raw))
	for _, acc := range raw {
		accreditations = append(accreditations, &types.Accreditation{
			Name:       acc.Name,
			ValidFrom:  types.UnixToTime(acc.ValidFrom),
			ValidUntil: types.UnixToTime(acc.ValidUntil),
			Exists:     true,
		})
	}
	return accreditations, nil
}

// GetRegisteredSigner reads signers(address). An unregistered signer comes
// back with a zero address.
func (cc *ContractCaller) GetRegisteredSigner(ctx context.Context, signer common.Address) (*types.RegisteredSigner, error) {
	out, err := cc.callRegistry(ctx, "signers", signer)
	if err != nil {
		return nil, err
	}
	return &types.RegisteredSigner{
		Address:    *abi.ConvertType(out[0], new(common.Address)).(*common.Address),
		Name:       *abi.ConvertType(out[1], new(string)).(*string),
		IsVerified: *abi.ConvertType(out[2], new(bool)).(*bool),
	}, nil
}

func (cc *ContractCaller) AddAuditor(ctx context.Context, txSigner transactionSigner.ITransactionSigner, auditor common.Address) (*ethereumTypes.Receipt, error) {
	return cc.transactRegistry(ctx, txSigner, "addAuditor", auditor)
}

func (cc *ContractCaller) RemoveAuditor(ctx context.Context, txSigner transactionSigner.ITransactionSigner, auditor common.Address) (*ethereumTypes.Receipt, error) {
	return cc.transactRegistry(ctx, txSigner, "removeAuditor", auditor)
}

func (cc *ContractCaller) AddLaboratory(ctx context.Context, txSigner transactionSigner.ITransactionSigner, lab common.Address, name string) (*ethereumTypes.Receipt, error) {
	return cc.transactRegistry(ctx, txSigner, "addLaboratory", lab, name)
}

func (cc *ContractCaller) SetLaboratoryVerificationStatus(ctx context.Context, txSigner transactionSigner.ITransactionSigner, lab common.Address, verified bool) (*ethereumTypes.Receipt, error) {
	return cc.transactRegistry(ctx, txSigner, "setLaboratoryVerificationStatus", lab, verified)
}

// AddModSigner registers the transaction sender as a signer named name
func (cc *ContractCaller) AddModSigner(ctx context.Context, txSigner transactionSigner.ITransactionSigner, name string) (*ethereumTypes.Receipt, error) {
	return cc.transactRegistry(ctx, txSigner, "addModSigner", name)
}

func (cc *ContractCaller) SetSignerVerificationStatus(ctx context.Context, txSigner transactionSigner.ITransactionSigner, signer common.Address, verified bool) (*ethereumTypes.Receipt, error) {
	return cc.transactRegistry(ctx, txSigner, "setSignerVerificationStatus", signer, verified)
}

func (cc *ContractCaller) AddModAccreditation(
	ctx context.Context,
	txSigner transactionSigner.ITransactionSigner,
	lab common.Address,
	name string,
	validFrom *big.Int,
	validUntil *big.Int,
) (*ethereumTypes.Receipt, error) {
	return cc.transactRegistry(ctx, txSigner, "addModAccreditation", lab, name, validFrom, validUntil)
}

func (cc *ContractCaller) RevokeAccreditation(ctx context.Context, txSigner transactionSigner.ITransactionSigner, lab common.Address, name string) (*ethereumTypes.Receipt, error) {
	return cc.transactRegistry(ctx, txSigner, "revokeAccreditation", lab, name)
}
