package caller

import (
	"context"
	"errors"
	"fmt"

	"github.com/ethereum/go-ethereum/accounts/abi"
	"github.com/ethereum/go-ethereum/accounts/abi/bind"
	"github.com/ethereum/go-ethereum/common"
	"go.uber.org/zap"
)

// ErrRegistryNotConfigured is returned by registry methods when no
// AccreditationRegistry address was given.
var ErrRegistryNotConfigured = errors.New("accreditation registry address is not configured")

type ContractCaller struct {
	backend bind.ContractBackend
	logger  *zap.Logger

	documentSignerAddress common.Address
	documentSignerABI     *abi.ABI
	documentSigner        *bind.BoundContract

	registryAddress common.Address
	registryABI     *abi.ABI
	registry        *bind.BoundContract
}

// NewContractCaller binds the DocumentSigner contract and, when registryAddress
// is non-zero, the AccreditationRegistry contract.
func NewContractCaller(
	backend bind.ContractBackend,
	documentSignerAddress common.Address,
	registryAddress common.Address,
	logger *zap.Logger,
) (*ContractCaller, error) {
	if backend == nil {
		return nil, fmt.Errorf("contract backend is required")
	}
	if documentSignerAddress == (common.Address{}) {
		return nil, fmt.Errorf("document signer address is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	documentSignerABI, err := DocumentSignerMetaData.GetAbi()
	if err != nil {
		return nil, fmt.Errorf("failed to parse document signer abi: %w", err)
	}

	cc := &ContractCaller{
		backend:               backend,
		logger:                logger,
		documentSignerAddress: documentSignerAddress,
		documentSignerABI:     documentSignerABI,
		documentSigner:        bind.NewBoundContract(documentSignerAddress, *documentSignerABI, backend, backend, backend),
	}

	if registryAddress != (common.Address{}) {
		registryABI, err := AccreditationRegistryMetaData.GetAbi()
		if err != nil {
			return nil, fmt.Errorf("failed to parse accreditation registry abi: %w", err)
		}
		cc.registryAddress = registryAddress
		cc.registryABI = registryABI
		cc.registry = bind.NewBoundContract(registryAddress, *registryABI, backend, backend, backend)
	}

	logger.Sugar().Infow("Using contracts",
		"documentSigner", documentSignerAddress.Hex(),
		"accreditationRegistry", registryAddress.Hex(),
	)
	return cc, nil
}

func (cc *ContractCaller) DocumentSignerAddress() common.Address {
	return cc.documentSignerAddress
}

func (cc *ContractCaller) RegistryAddress() common.Address {
	return cc.registryAddress
}

func (cc *ContractCaller) requireRegistry() error {
	if cc.registry == nil {
		return ErrRegistryNotConfigured
	}
	return nil
}

func callOpts(ctx context.Context) *bind.CallOpts {
	return &bind.CallOpts{Context: ctx}
}
