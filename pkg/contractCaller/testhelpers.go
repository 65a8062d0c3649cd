package contractCaller

import (
	"context"
	"encoding/binary"
	"fmt"
	"math/big"
	"sync"
	"time"

	"github.com/docsigner/docsigner-go/pkg/contractCaller/caller"
	"github.com/docsigner/docsigner-go/pkg/eip712"
	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	ethTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/ethereum/go-ethereum/crypto"
)

// DocumentCall records a signDocument/invalidateSignature transaction
type DocumentCall struct {
	Operation types.Operation
	Digest    types.DocumentDigest
	Signer    common.Address
	Signature []byte
	From      common.Address
}

// FakeContractCaller is an in-memory IContractCaller. When Domain is set,
// document writes recover the EIP-712 signer and revert on mismatch the way
// the contract does.
type FakeContractCaller struct {
	mu sync.Mutex

	Address common.Address
	Domain  *eip712.Domain
	Now     func() time.Time

	Nonces      map[common.Address]uint32
	Stored      map[types.DocumentDigest][]*types.SignerRecord
	Valid       map[types.DocumentDigest]map[common.Address]bool
	Calls       []DocumentCall
	NonceCalls  int
	SignErr     error
	NonceErr    error
	block       uint64
	Owner       common.Address
	Auditors    map[common.Address]bool
	Labs        map[common.Address]*types.Laboratory
	Accreds     map[common.Address][]*types.Accreditation
	Signers     map[common.Address]*types.RegisteredSigner
	RegistryOps []string
}

func NewFakeContractCaller(address common.Address) *FakeContractCaller {
	return &FakeContractCaller{
		Address:  address,
		Now:      time.Now,
		Nonces:   make(map[common.Address]uint32),
		Stored:   make(map[types.DocumentDigest][]*types.SignerRecord),
		Valid:    make(map[types.DocumentDigest]map[common.Address]bool),
		block:    1000,
		Auditors: make(map[common.Address]bool),
		Labs:     make(map[common.Address]*types.Laboratory),
		Accreds:  make(map[common.Address][]*types.Accreditation),
		Signers:  make(map[common.Address]*types.RegisteredSigner),
	}
}

func (f *FakeContractCaller) DocumentCalls() []DocumentCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]DocumentCall, len(f.Calls))
	copy(out, f.Calls)
	return out
}

func (f *FakeContractCaller) DocumentSignerAddress() common.Address {
	return f.Address
}

func (f *FakeContractCaller) GetNonce(ctx context.Context, signer common.Address) (uint32, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.NonceCalls++
	if f.NonceErr != nil {
		return 0, f.NonceErr
	}
	return f.Nonces[signer], nil
}

func (f *FakeContractCaller) GetSigners(ctx context.Context, digest types.DocumentDigest) ([]*types.SignerRecord, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.SignerRecord(nil), f.Stored[digest]...), nil
}

func (f *FakeContractCaller) VerifyStoredSignature(ctx context.Context, digest types.DocumentDigest, signer common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Valid[digest][signer], nil
}

func (f *FakeContractCaller) receipt() *ethTypes.Receipt {
	f.block++
	var buf [8]byte
	binary.BigEndian.PutUint64(buf[:], f.block)
	return &ethTypes.Receipt{
		Status:      ethTypes.ReceiptStatusSuccessful,
		TxHash:      crypto.Keccak256Hash(f.Address.Bytes(), buf[:]),
		BlockNumber: new(big.Int).SetUint64(f.block),
		GasUsed:     54321,
	}
}

// checkSignature mirrors the contract: the signature must recover to signer
// over the signer's current nonce.
func (f *FakeContractCaller) checkSignature(op types.Operation, digest types.DocumentDigest, signer common.Address, signature []byte) error {
	if f.Domain == nil {
		return nil
	}
	td, err := eip712.NewDocumentTypedData(*f.Domain, digest, f.Nonces[signer])
	if err != nil {
		return err
	}
	recovered, err := eip712.RecoverSigner(td, signature)
	if err != nil || recovered != signer {
		return &caller.RevertError{Method: string(op), Reason: "Invalid signature"}
	}
	return nil
}

func (f *FakeContractCaller) SignDocument(
	ctx context.Context,
	txSigner transactionSigner.ITransactionSigner,
	digest types.DocumentDigest,
	signer common.Address,
	signature []byte,
) (*ethTypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	from := txSigner.GetFromAddress()
	f.Calls = append(f.Calls, DocumentCall{types.Operation_SignDocument, digest, signer, signature, from})
	if f.SignErr != nil {
		return nil, f.SignErr
	}
	if err := f.checkSignature(types.Operation_SignDocument, digest, signer, signature); err != nil {
		return nil, err
	}

	f.Nonces[signer]++
	f.Stored[digest] = append(f.Stored[digest], &types.SignerRecord{Signer: signer, Timestamp: f.Now().UTC(), Sender: from})
	if f.Valid[digest] == nil {
		f.Valid[digest] = make(map[common.Address]bool)
	}
	f.Valid[digest][signer] = true
	return f.receipt(), nil
}

func (f *FakeContractCaller) InvalidateSignature(
	ctx context.Context,
	txSigner transactionSigner.ITransactionSigner,
	digest types.DocumentDigest,
	signer common.Address,
	signature []byte,
) (*ethTypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.Calls = append(f.Calls, DocumentCall{types.Operation_InvalidateSignature, digest, signer, signature, txSigner.GetFromAddress()})
	if f.SignErr != nil {
		return nil, f.SignErr
	}
	if err := f.checkSignature(types.Operation_InvalidateSignature, digest, signer, signature); err != nil {
		return nil, err
	}
	if !f.Valid[digest][signer] {
		return nil, &caller.RevertError{Method: string(types.Operation_InvalidateSignature), Reason: "Signature not found"}
	}

	f.Nonces[signer]++
	f.Valid[digest][signer] = false
	return f.receipt(), nil
}

func (f *FakeContractCaller) GetRegistryOwner(ctx context.Context) (common.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Owner, nil
}

func (f *FakeContractCaller) IsAuditor(ctx context.Context, account common.Address) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.Auditors[account], nil
}

func (f *FakeContractCaller) GetLaboratoryInfo(ctx context.Context, lab common.Address) (*types.Laboratory, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if l, ok := f.Labs[lab]; ok {
		copied := *l
		return &copied, nil
	}
	return &types.Laboratory{Address: lab}, nil
}

func (f *FakeContractCaller) findAccreditation(lab common.Address, name string) *types.Accreditation {
	for _, acc := range f.Accreds[lab] {
		if acc.Name == name {
			return acc
		}
	}
	return nil
}

func (f *FakeContractCaller) HasValidAccreditation(ctx context.Context, lab common.Address, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	acc := f.findAccreditation(lab, name)
	return acc != nil && acc.IsValidAt(f.Now()), nil
}

func (f *FakeContractCaller) GetAccreditationDetails(ctx context.Context, lab common.Address, name string) (*types.Accreditation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if acc := f.findAccreditation(lab, name); acc != nil {
		copied := *acc
		return &copied, nil
	}
	return &types.Accreditation{}, nil
}

func (f *FakeContractCaller) GetAllAccreditationsForLaboratory(ctx context.Context, lab common.Address) ([]*types.Accreditation, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*types.Accreditation(nil), f.Accreds[lab]...), nil
}

func (f *FakeContractCaller) GetRegisteredSigner(ctx context.Context, signer common.Address) (*types.RegisteredSigner, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if s, ok := f.Signers[signer]; ok {
		copied := *s
		return &copied, nil
	}
	return &types.RegisteredSigner{}, nil
}

func (f *FakeContractCaller) registryWrite(op string, apply func()) (*ethTypes.Receipt, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.RegistryOps = append(f.RegistryOps, op)
	if f.SignErr != nil {
		return nil, f.SignErr
	}
	apply()
	return f.receipt(), nil
}

func (f *FakeContractCaller) AddAuditor(ctx context.Context, txSigner transactionSigner.ITransactionSigner, auditor common.Address) (*ethTypes.Receipt, error) {
	return f.registryWrite("addAuditor", func() { f.Auditors[auditor] = true })
}

func (f *FakeContractCaller) RemoveAuditor(ctx context.Context, txSigner transactionSigner.ITransactionSigner, auditor common.Address) (*ethTypes.Receipt, error) {
	return f.registryWrite("removeAuditor", func() { delete(f.Auditors, auditor) })
}

func (f *FakeContractCaller) AddLaboratory(ctx context.Context, txSigner transactionSigner.ITransactionSigner, lab common.Address, name string) (*ethTypes.Receipt, error) {
	return f.registryWrite("addLaboratory", func() {
		f.Labs[lab] = &types.Laboratory{Address: lab, Name: name, Exists: true}
	})
}

func (f *FakeContractCaller) SetLaboratoryVerificationStatus(ctx context.Context, txSigner transactionSigner.ITransactionSigner, lab common.Address, verified bool) (*ethTypes.Receipt, error) {
	return f.registryWrite("setLaboratoryVerificationStatus", func() {
		if l, ok := f.Labs[lab]; ok {
			l.IsVerified = verified
		}
	})
}

func (f *FakeContractCaller) AddModSigner(ctx context.Context, txSigner transactionSigner.ITransactionSigner, name string) (*ethTypes.Receipt, error) {
	from := txSigner.GetFromAddress()
	return f.registryWrite("addModSigner", func() {
		f.Signers[from] = &types.RegisteredSigner{Address: from, Name: name}
	})
}

func (f *FakeContractCaller) SetSignerVerificationStatus(ctx context.Context, txSigner transactionSigner.ITransactionSigner, signer common.Address, verified bool) (*ethTypes.Receipt, error) {
	return f.registryWrite("setSignerVerificationStatus", func() {
		if s, ok := f.Signers[signer]; ok {
			s.IsVerified = verified
		}
	})
}

func (f *FakeContractCaller) AddModAccreditation(
	ctx context.Context,
	txSigner transactionSigner.ITransactionSigner,
	lab common.Address,
	name string,
	validFrom *big.Int,
	validUntil *big.Int,
) (*ethTypes.Receipt, error) {
	return f.registryWrite("addModAccreditation", func() {
		f.Accreds[lab] = append(f.Accreds[lab], &types.Accreditation{
			Name:       name,
			ValidFrom:  types.UnixToTime(validFrom),
			ValidUntil: types.UnixToTime(validUntil),
			Exists:     true,
		})
	})
}

func (f *FakeContractCaller) RevokeAccreditation(ctx context.Context, txSigner transactionSigner.ITransactionSigner, lab common.Address, name string) (*ethTypes.Receipt, error) {
	return f.registryWrite("revokeAccreditation", func() {
		kept := f.Accreds[lab][:0]
		for _, acc := range f.Accreds[lab] {
			if acc.Name != name {
				kept = append(kept, acc)
			}
		}
		f.Accreds[lab] = kept
	})
}

var _ IContractCaller = (*FakeContractCaller)(nil)

// String is used in test failure output
func (c DocumentCall) String() string {
	return fmt.Sprintf("%s(%s, %s, %d bytes) from %s", c.Operation, c.Digest.Hex(), c.Signer.Hex(), len(c.Signature), c.From.Hex())
}
