package signingflow

import (
	"fmt"

	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
)

type State int

const (
	StateIdle State = iota
	StateDigestReady
	StateSignatureReady
	StateSubmitting
	StateCommitted
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "Idle"
	case StateDigestReady:
		return "DigestReady"
	case StateSignatureReady:
		return "SignatureReady"
	case StateSubmitting:
		return "Submitting"
	case StateCommitted:
		return "Committed"
	case StateFailed:
		return "Failed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Snapshot is an immutable copy of the controller state
type Snapshot struct {
	State       State
	Mode        types.SubmissionMode
	Source      string
	Digest      types.DocumentDigest
	Request     *types.SigningRequest
	Account     common.Address
	Busy        bool
	LastReceipt *types.SubmissionReceipt
	LastError   error
}

// Observer is called after every state change, outside the controller lock
type Observer func(Snapshot)

func copyRequest(req *types.SigningRequest) *types.SigningRequest {
	if req == nil {
		return nil
	}
	copied := *req
	copied.Signature = append([]byte(nil), req.Signature...)
	return &copied
}
