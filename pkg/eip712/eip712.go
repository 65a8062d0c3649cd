package eip712

import (
	"fmt"
	"math/big"

	"github.com/docsigner/docsigner-go/pkg/config"
	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/math"
	"github.com/ethereum/go-ethereum/crypto"
	"github.com/ethereum/go-ethereum/signer/core/apitypes"
)

const PrimaryType = "Document"

// Domain is the EIP-712 domain of a DocumentSigner deployment
type Domain struct {
	Name              string
	Version           string
	ChainID           *big.Int
	VerifyingContract common.Address
}

// NewDocumentSignerDomain uses the fixed name/version the contract was deployed with
func NewDocumentSignerDomain(chainID *big.Int, verifyingContract common.Address) Domain {
	return Domain{
		Name:              config.DocumentSignerDomainName,
		Version:           config.DocumentSignerDomainVersion,
		ChainID:           chainID,
		VerifyingContract: verifyingContract,
	}
}

func (d Domain) Validate() error {
	if d.Name == "" || d.Version == "" {
		return fmt.Errorf("domain name and version are required")
	}
	if d.ChainID == nil || d.ChainID.Sign() <= 0 {
		return fmt.Errorf("domain chain id must be positive")
	}
	if d.VerifyingContract == (common.Address{}) {
		return fmt.Errorf("domain verifying contract is required")
	}
	return nil
}

var documentTypes = apitypes.Types{
	"EIP712Domain": {
		{Name: "name", Type: "string"},
		{Name: "version", Type: "string"},
		{Name: "chainId", Type: "uint256"},
		{Name: "verifyingContract", Type: "address"},
	},
	PrimaryType: {
		{Name: "contentHash", Type: "bytes32"},
		{Name: "nonce", Type: "uint32"},
	},
}

// NewDocumentTypedData builds Document{contentHash, nonce} under domain
func NewDocumentTypedData(domain Domain, digest types.DocumentDigest, nonce uint32) (apitypes.TypedData, error) {
	if err := domain.Validate(); err != nil {
		return apitypes.TypedData{}, err
	}
	return apitypes.TypedData{
		Types:       documentTypes,
		PrimaryType: PrimaryType,
		Domain: apitypes.TypedDataDomain{
			Name:              domain.Name,
			Version:           domain.Version,
			ChainId:           (*math.HexOrDecimal256)(new(big.Int).Set(domain.ChainID)),
			VerifyingContract: domain.VerifyingContract.Hex(),
		},
		Message: apitypes.TypedDataMessage{
			"contentHash": digest.Hex(),
			"nonce":       new(big.Int).SetUint64(uint64(nonce)),
		},
	}, nil
}

// Hash returns the EIP-712 signing hash: keccak256(0x1901 || domainSeparator || hashStruct(message))
func Hash(typedData apitypes.TypedData) (common.Hash, error) {
	sighash, _, err := apitypes.TypedDataAndHash(typedData)
	if err != nil {
		return common.Hash{}, fmt.Errorf("failed to hash typed data: %w", err)
	}
	return common.BytesToHash(sighash), nil
}

// RecoverSigner returns the address that produced sig over typedData. sig may
// carry v as 0/1 or 27/28.
func RecoverSigner(typedData apitypes.TypedData, sig []byte) (common.Address, error) {
	if len(sig) != crypto.SignatureLength {
		return common.Address{}, fmt.Errorf("signature must be %d bytes, got %d", crypto.SignatureLength, len(sig))
	}
	hash, err := Hash(typedData)
	if err != nil {
		return common.Address{}, err
	}

	normalized := make([]byte, crypto.SignatureLength)
	copy(normalized, sig)
	if normalized[64] >= 27 {
		normalized[64] -= 27
	}

	pub, err := crypto.SigToPub(hash.Bytes(), normalized)
	if err != nil {
		return common.Address{}, fmt.Errorf("failed to recover signer: %w", err)
	}
	return crypto.PubkeyToAddress(*pub), nil
}

// ToWalletFormat shifts the recovery id to 27/28 as wallets return it
func ToWalletFormat(sig []byte) []byte {
	out := make([]byte, len(sig))
	copy(out, sig)
	if len(out) == crypto.SignatureLength && out[64] < 27 {
		out[64] += 27
	}
	return out
}
