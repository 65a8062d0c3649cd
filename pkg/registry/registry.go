package registry

import (
	"context"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/docsigner/docsigner-go/pkg/contractCaller"
	"github.com/docsigner/docsigner-go/pkg/transactionSigner"
	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"go.uber.org/zap"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrNotOwner     = errors.New("only the registry owner can manage auditors")
	ErrNotAuditor   = errors.New("only auditors can perform this action")
)

// AccountStatus is the caller's role in the accreditation registry
type AccountStatus struct {
	Account   common.Address `json:"account"`
	IsAuditor bool           `json:"isAuditor"`
	IsOwner   bool           `json:"isOwner"`
}

type AccreditationStatus struct {
	*types.Accreditation
	Valid bool `json:"valid"`
}

// LaboratoryReport is a laboratory and its accreditations evaluated at At
type LaboratoryReport struct {
	Laboratory     *types.Laboratory      `json:"laboratory"`
	Accreditations []*AccreditationStatus `json:"accreditations"`
	At             time.Time              `json:"at"`
}

// SignerReport describes one stored signature of a document
type SignerReport struct {
	Record   *types.SignerRecord     `json:"record"`
	Valid    bool                    `json:"valid"`
	Identity *types.RegisteredSigner `json:"identity,omitempty"`
	// Label is the registry identity shown next to a valid signature
	Label string `json:"label,omitempty"`
}

type Service struct {
	registry  contractCaller.IAccreditationRegistryCaller
	documents contractCaller.IDocumentSignerCaller
	logger    *zap.Logger
}

// NewService builds a registry service. documents is only needed for
// SignerReports and may be nil.
func NewService(
	registry contractCaller.IAccreditationRegistryCaller,
	documents contractCaller.IDocumentSignerCaller,
	logger *zap.Logger,
) (*Service, error) {
	if registry == nil {
		return nil, fmt.Errorf("accreditation registry caller is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		registry:  registry,
		documents: documents,
		logger:    logger,
	}, nil
}

// ParseAddress accepts any hex address, checksummed or not
func ParseAddress(s string) (common.Address, error) {
	s = strings.TrimSpace(s)
	if !common.IsHexAddress(s) {
		return common.Address{}, fmt.Errorf("%w: invalid address %q", ErrInvalidInput, s)
	}
	return common.HexToAddress(s), nil
}

func requireAddress(what string, addr common.Address) error {
	if addr == (common.Address{}) {
		return fmt.Errorf("%w: %s address is required", ErrInvalidInput, what)
	}
	return nil
}

func requireName(what string, name string) (string, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return "", fmt.Errorf("%w: %s name is required", ErrInvalidInput, what)
	}
	return name, nil
}

func (s *Service) AccountStatus(ctx context.Context, account common.Address) (*AccountStatus, error) {
	isAuditor, err := s.registry.IsAuditor(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("failed to check auditor status: %w", err)
	}
	owner, err := s.registry.GetRegistryOwner(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to get registry owner: %w", err)
	}
	return &AccountStatus{
		Account:   account,
		IsAuditor: isAuditor,
		IsOwner:   owner == account,
	}, nil
}

// LaboratoryReport reads a laboratory and, when it exists, every
// accreditation with its validity at the given time.
func (s *Service) LaboratoryReport(ctx context.Context, lab common.Address, at time.Time) (*LaboratoryReport, error) {
	if err := requireAddress("laboratory", lab); err != nil {
		return nil, err
	}
	info, err := s.registry.GetLaboratoryInfo(ctx, lab)
	if err != nil {
		return nil, fmt.Errorf("failed to get laboratory info: %w", err)
	}
	report := &LaboratoryReport{Laboratory: info, At: at}
	if !info.Exists {
		return report, nil
	}

	accreditations, err := s.registry.GetAllAccreditationsForLaboratory(ctx, lab)
	if err != nil {
		return nil, fmt.Errorf("failed to get accreditations: %w", err)
	}
	for _, acc := range accreditations {
		report.Accreditations = append(report.Accreditations, &AccreditationStatus{
			Accreditation: acc,
			Valid:         acc.IsValidAt(at),
		})
	}
	return report, nil
}

func (s *Service) HasValidAccreditation(ctx context.Context, lab common.Address, name string) (bool, error) {
	if err := requireAddress("laboratory", lab); err != nil {
		return false, err
	}
	name, err := requireName("accreditation", name)
	if err != nil {
		return false, err
	}
	return s.registry.HasValidAccreditation(ctx, lab, name)
}

// AccreditationDetails returns nil when the laboratory holds no accreditation
// with that name.
func (s *Service) AccreditationDetails(ctx context.Context, lab common.Address, name string) (*types.Accreditation, error) {
	if err := requireAddress("laboratory", lab); err != nil {
		return nil, err
	}
	name, err := requireName("accreditation", name)
	if err != nil {
		return nil, err
	}
	acc, err := s.registry.GetAccreditationDetails(ctx, lab, name)
	if err != nil {
		return nil, fmt.Errorf("failed to get accreditation details: %w", err)
	}
	if !acc.Exists {
		return nil, nil
	}
	return acc, nil
}

// SignerLabel renders a registry identity the way signer lists show it
func SignerLabel(identity *types.RegisteredSigner) string {
	if !identity.Exists() {
		return "not registered"
	}
	if identity.IsVerified {
		return identity.Name + " - Verified"
	}
	return identity.Name + " - Not Verified"
}

// SignerReports lists the stored signatures of a document. The registry
// identity is only looked up for signatures that still verify; a failed
// identity lookup is reported in the label rather than failing the report.
func (s *Service) SignerReports(ctx context.Context, d types.DocumentDigest) ([]*SignerReport, error) {
	if s.documents == nil {
		return nil, fmt.Errorf("document signer caller is not configured")
	}
	records, err := s.documents.GetSigners(ctx, d)
	if err != nil {
		return nil, fmt.Errorf("failed to get signers: %w", err)
	}

	reports := make([]*SignerReport, 0, len(records))
	for _, record := range records {
		report := &SignerReport{Record: record}
		valid, err := s.documents.VerifyStoredSignature(ctx, d, record.Signer)
		if err != nil {
			return nil, fmt.Errorf("failed to verify stored signature of %s: %w", record.Signer.Hex(), err)
		}
		report.Valid = valid
		if valid {
			identity, err := s.registry.GetRegisteredSigner(ctx, record.Signer)
			if err != nil {
				s.logger.Sugar().Warnw("Failed to load signer identity", "signer", record.Signer.Hex(), "error", err)
				report.Label = "failed to load signer info"
			} else {
				report.Identity = identity
				report.Label = SignerLabel(identity)
			}
		}
		reports = append(reports, report)
	}
	return reports, nil
}

func (s *Service) requireOwner(ctx context.Context, txSigner transactionSigner.ITransactionSigner) error {
	status, err := s.AccountStatus(ctx, txSigner.GetFromAddress())
	if err != nil {
		return err
	}
	if !status.IsOwner {
		return ErrNotOwner
	}
	return nil
}

func (s *Service) requireAuditor(ctx context.Context, txSigner transactionSigner.ITransactionSigner) error {
	isAuditor, err := s.registry.IsAuditor(ctx, txSigner.GetFromAddress())
	if err != nil {
		return fmt.Errorf("failed to check auditor status: %w", err)
	}
	if !isAuditor {
		return ErrNotAuditor
	}
	return nil
}

func (s *Service) logWrite(op string, receipt *ethereumTypes.Receipt, err error, kv ...interface{}) {
	if err != nil {
		s.logger.Sugar().Errorw("Registry write failed", append([]interface{}{"op", op, "error", err}, kv...)...)
		return
	}
	s.logger.Sugar().Infow("Registry write mined", append([]interface{}{"op", op, "txHash", receipt.TxHash.Hex()}, kv...)...)
}

func (s *Service) AddAuditor(ctx context.Context, txSigner transactionSigner.ITransactionSigner, auditor common.Address) (*ethereumTypes.Receipt, error) {
	if err := requireAddress("auditor", auditor); err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, txSigner); err != nil {
		return nil, err
	}
	receipt, err := s.registry.AddAuditor(ctx, txSigner, auditor)
	s.logWrite("addAuditor", receipt, err, "auditor", auditor.Hex())
	return receipt, err
}

func (s *Service) RemoveAuditor(ctx context.Context, txSigner transactionSigner.ITransactionSigner, auditor common.Address) (*ethereumTypes.Receipt, error) {
	if err := requireAddress("auditor", auditor); err != nil {
		return nil, err
	}
	if err := s.requireOwner(ctx, txSigner); err != nil {
		return nil, err
	}
	receipt, err := s.registry.RemoveAuditor(ctx, txSigner, auditor)
	s.logWrite("removeAuditor", receipt, err, "auditor", auditor.Hex())
	return receipt, err
}

func (s *Service) AddLaboratory(ctx context.Context, txSigner transactionSigner.ITransactionSigner, lab common.Address, name string) (*ethereumTypes.Receipt, error) {
	if err := requireAddress("laboratory", lab); err != nil {
		return nil, err
	}
	name, err := requireName("laboratory", name)
	if err != nil {
		return nil, err
	}
	receipt, err := s.registry.AddLaboratory(ctx, txSigner, lab, name)
	s.logWrite("addLaboratory", receipt, err, "laboratory", lab.Hex(), "name", name)
	return receipt, err
}

func (s *Service) SetLaboratoryVerificationStatus(ctx context.Context, txSigner transactionSigner.ITransactionSigner, lab common.Address, verified bool) (*ethereumTypes.Receipt, error) {
	if err := requireAddress("laboratory", lab); err != nil {
		return nil, err
	}
	if err := s.requireAuditor(ctx, txSigner); err != nil {
		return nil, err
	}
	receipt, err := s.registry.SetLaboratoryVerificationStatus(ctx, txSigner, lab, verified)
	s.logWrite("setLaboratoryVerificationStatus", receipt, err, "laboratory", lab.Hex(), "verified", verified)
	return receipt, err
}

// AddModSigner registers or renames the sending account as a signer
func (s *Service) AddModSigner(ctx context.Context, txSigner transactionSigner.ITransactionSigner, name string) (*ethereumTypes.Receipt, error) {
	name, err := requireName("signer", name)
	if err != nil {
		return nil, err
	}
	receipt, err := s.registry.AddModSigner(ctx, txSigner, name)
	s.logWrite("addModSigner", receipt, err, "signer", txSigner.GetFromAddress().Hex(), "name", name)
	return receipt, err
}

func (s *Service) SetSignerVerificationStatus(ctx context.Context, txSigner transactionSigner.ITransactionSigner, signer common.Address, verified bool) (*ethereumTypes.Receipt, error) {
	if err := requireAddress("signer", signer); err != nil {
		return nil, err
	}
	if err := s.requireAuditor(ctx, txSigner); err != nil {
		return nil, err
	}
	receipt, err := s.registry.SetSignerVerificationStatus(ctx, txSigner, signer, verified)
	s.logWrite("setSignerVerificationStatus", receipt, err, "signer", signer.Hex(), "verified", verified)
	return receipt, err
}

// AddModAccreditation adds or replaces a named accreditation. Both bounds are
// truncated to whole seconds and validFrom must be strictly before validUntil.
func (s *Service) AddModAccreditation(
	ctx context.Context,
	txSigner transactionSigner.ITransactionSigner,
	lab common.Address,
	name string,
	validFrom time.Time,
	validUntil time.Time,
) (*ethereumTypes.Receipt, error) {
	if err := requireAddress("laboratory", lab); err != nil {
		return nil, err
	}
	name, err := requireName("accreditation", name)
	if err != nil {
		return nil, err
	}
	if validFrom.IsZero() || validUntil.IsZero() {
		return nil, fmt.Errorf("%w: validity window is required", ErrInvalidInput)
	}
	from, until := validFrom.Unix(), validUntil.Unix()
	if from >= until {
		return nil, fmt.Errorf("%w: validFrom must be before validUntil", ErrInvalidInput)
	}
	if err := s.requireAuditor(ctx, txSigner); err != nil {
		return nil, err
	}
	receipt, err := s.registry.AddModAccreditation(ctx, txSigner, lab, name, big.NewInt(from), big.NewInt(until))
	s.logWrite("addModAccreditation", receipt, err, "laboratory", lab.Hex(), "name", name, "validFrom", from, "validUntil", until)
	return receipt, err
}

func (s *Service) RevokeAccreditation(ctx context.Context, txSigner transactionSigner.ITransactionSigner, lab common.Address, name string) (*ethereumTypes.Receipt, error) {
	if err := requireAddress("laboratory", lab); err != nil {
		return nil, err
	}
	name, err := requireName("accreditation", name)
	if err != nil {
		return nil, err
	}
	if err := s.requireAuditor(ctx, txSigner); err != nil {
		return nil, err
	}
	receipt, err := s.registry.RevokeAccreditation(ctx, txSigner, lab, name)
	s.logWrite("revokeAccreditation", receipt, err, "laboratory", lab.Hex(), "name", name)
	return receipt, err
}
