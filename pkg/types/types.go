package types

import (
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/ethereum/go-ethereum/common"
)

// DocumentDigest is the keccak256 hash of a document's bytes
type DocumentDigest = common.Hash

// SubmissionMode selects the transport used to commit a signature
type SubmissionMode int

const (
	// SubmissionMode_Direct sends the transaction from the connected account
	SubmissionMode_Direct SubmissionMode = iota
	// SubmissionMode_Relayed posts the signed request to the relay service
	SubmissionMode_Relayed
)

func (m SubmissionMode) String() string {
	switch m {
	case SubmissionMode_Direct:
		return "direct"
	case SubmissionMode_Relayed:
		return "relayed"
	default:
		return fmt.Sprintf("unknown(%d)", int(m))
	}
}

// ParseSubmissionMode accepts "direct"/"solitary" and "relayed"/"api"
func ParseSubmissionMode(s string) (SubmissionMode, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "direct", "solitary":
		return SubmissionMode_Direct, nil
	case "relayed", "relay", "api":
		return SubmissionMode_Relayed, nil
	default:
		return 0, fmt.Errorf("unsupported submission mode: %s", s)
	}
}

// Operation is the contract write a submission performs
type Operation string

const (
	Operation_SignDocument        Operation = "signDocument"
	Operation_InvalidateSignature Operation = "invalidateSignature"
)

// SigningRequest is built across the three signing steps. It is only
// submittable once Digest, Signer and Signature are all set.
type SigningRequest struct {
	Digest    DocumentDigest `json:"digest"`
	Signer    common.Address `json:"signer"`
	Nonce     uint32         `json:"nonce"`
	Signature []byte         `json:"signature,omitempty"`
}

// Missing returns the names of the fields that are still empty
func (r *SigningRequest) Missing() []string {
	var missing []string
	if r == nil {
		return []string{"digest", "signerAddress", "signature"}
	}
	if r.Digest == (common.Hash{}) {
		missing = append(missing, "digest")
	}
	if r.Signer == (common.Address{}) {
		missing = append(missing, "signerAddress")
	}
	if len(r.Signature) == 0 {
		missing = append(missing, "signature")
	}
	return missing
}

func (r *SigningRequest) IsComplete() bool {
	return len(r.Missing()) == 0
}

// SubmissionReceipt describes a committed signDocument/invalidateSignature call
type SubmissionReceipt struct {
	Mode            SubmissionMode `json:"mode"`
	Operation       Operation      `json:"operation"`
	Digest          DocumentDigest `json:"digest"`
	Signer          common.Address `json:"signer"`
	Nonce           uint32         `json:"nonce"`
	TransactionHash common.Hash    `json:"transactionHash"`
	BlockNumber     uint64         `json:"blockNumber"`
	GasUsed         uint64         `json:"gasUsed"`
	Status          string         `json:"status"`
	RelayMessage    string         `json:"relayMessage,omitempty"`
}

// SignerRecord is a signature entry stored by the DocumentSigner contract
type SignerRecord struct {
	Signer    common.Address `json:"signer"`
	Timestamp time.Time      `json:"timestamp"`
	Sender    common.Address `json:"sender"`
}

// Laboratory is the registry's view of a laboratory
type Laboratory struct {
	Address    common.Address `json:"address"`
	Name       string         `json:"name"`
	IsVerified bool           `json:"isVerified"`
	Exists     bool           `json:"exists"`
}

// Accreditation is a named validity window granted to a laboratory
type Accreditation struct {
	Name       string    `json:"name"`
	ValidFrom  time.Time `json:"validFrom"`
	ValidUntil time.Time `json:"validUntil"`
	Exists     bool      `json:"exists"`
}

// IsValidAt reports whether t falls inside the accreditation window (inclusive)
func (a *Accreditation) IsValidAt(t time.Time) bool {
	return !a.ValidFrom.After(t) && !a.ValidUntil.Before(t)
}

// RegisteredSigner is the registry's identity record for a signer
type RegisteredSigner struct {
	Address    common.Address `json:"address"`
	Name       string         `json:"name"`
	IsVerified bool           `json:"isVerified"`
}

// Exists is false when the registry returned the zero record
func (s *RegisteredSigner) Exists() bool {
	return s != nil && s.Address != (common.Address{})
}

// UnixToTime converts a uint256 seconds value returned by a contract
func UnixToTime(v *big.Int) time.Time {
	if v == nil || !v.IsInt64() {
		return time.Time{}
	}
	return time.Unix(v.Int64(), 0).UTC()
}
