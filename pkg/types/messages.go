package types

import (
	"time"

	"github.com/ethereum/go-ethereum/common/hexutil"
)

// RelayRequest is the body of POST /sign_document_contract and
// POST /invalidate_signature_contract.
type RelayRequest struct {
	DocumentHash  string `json:"document_hash"`
	SignerAddress string `json:"signer_address"`
	Signature     string `json:"signature"`
}

// RelayResponse is returned by the relay once the transaction is mined
type RelayResponse struct {
	Message           string `json:"message"`
	TransactionHash   string `json:"transaction_hash"`
	BlockNumber       uint64 `json:"block_number"`
	GasUsed           uint64 `json:"gas_used"`
	TransactionStatus string `json:"transaction_status"`
	RequestID         string `json:"request_id,omitempty"`
}

// RelayErrorResponse is returned by the relay for every failure
type RelayErrorResponse struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// RelayAddressResponse is returned by GET /get_address
type RelayAddressResponse struct {
	EthereumAddress string `json:"ethereum_address"`
}

const (
	TransactionStatus_Success = "success"
	TransactionStatus_Failed  = "failed"
)

// RelayReceipt is the relay's persisted record of a forwarded request
type RelayReceipt struct {
	ID              string    `json:"id"`
	RequestID       string    `json:"requestId"`
	Operation       Operation `json:"operation"`
	DocumentHash    string    `json:"documentHash"`
	SignerAddress   string    `json:"signerAddress"`
	TransactionHash string    `json:"transactionHash"`
	BlockNumber     uint64    `json:"blockNumber"`
	GasUsed         uint64    `json:"gasUsed"`
	Status          string    `json:"status"`
	Error           string    `json:"error,omitempty"`
	CreatedAt       time.Time `json:"createdAt"`
}

// NewRelayRequest encodes a complete signing request for the relay. The
// signer address is EIP-55 checksummed as the relay requires.
func NewRelayRequest(req *SigningRequest) *RelayRequest {
	return &RelayRequest{
		DocumentHash:  req.Digest.Hex(),
		SignerAddress: req.Signer.Hex(),
		Signature:     hexutil.Encode(req.Signature),
	}
}
