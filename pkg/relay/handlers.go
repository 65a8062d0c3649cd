package relay

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/docsigner/docsigner-go/pkg/contractCaller/caller"
	"github.com/docsigner/docsigner-go/pkg/digest"
	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/ethereum/go-ethereum/common"
	"github.com/ethereum/go-ethereum/common/hexutil"
	ethereumTypes "github.com/ethereum/go-ethereum/core/types"
	"github.com/google/uuid"
)

const maxBodyBytes = 64 << 10

const (
	messageSuccess  = "Transaction confirmed successfully."
	messageReverted = "Transaction confirmed, but it failed and was reverted."
)

// validationError is a 400 whose text is returned to the caller verbatim
type validationError string

func (e validationError) Error() string {
	return string(e)
}

func invalidf(format string, args ...interface{}) error {
	return validationError(fmt.Sprintf(format, args...))
}

// documentCall is a validated relay request
type documentCall struct {
	digest    types.DocumentDigest
	signer    common.Address
	signature []byte
}

func writeJSON(w http.ResponseWriter, status int, body interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(body)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, msg string) {
	writeJSON(w, status, &types.RelayErrorResponse{Error: msg, RequestID: requestIDFrom(r.Context())})
}

func (s *Server) handleGetAddress(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	writeJSON(w, http.StatusOK, &types.RelayAddressResponse{EthereumAddress: s.signer.GetFromAddress().Hex()})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := s.store.HealthCheck(); err != nil {
		writeError(w, r, http.StatusServiceUnavailable, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleReceipts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	documentHash := r.URL.Query().Get("document_hash")
	if _, err := digest.Parse(documentHash); err != nil {
		writeError(w, r, http.StatusBadRequest, fmt.Sprintf("Invalid document hash: %s. It must be a 32-byte hex string starting with 0x.", documentHash))
		return
	}

	receipts, err := s.store.ListReceiptsForDocument(documentHash)
	if err != nil {
		s.logger.Sugar().Errorw("Failed to list receipts", "documentHash", documentHash, "error", err)
		writeError(w, r, http.StatusInternalServerError, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, receipts)
}

func (s *Server) handleSignDocument(w http.ResponseWriter, r *http.Request) {
	s.handleDocumentCall(w, r, types.Operation_SignDocument)
}

func (s *Server) handleInvalidateSignature(w http.ResponseWriter, r *http.Request) {
	s.handleDocumentCall(w, r, types.Operation_InvalidateSignature)
}

// parseRelayRequest applies the relay's input rules: all three attributes
// present, a checksummed signer, a 0x-prefixed 32-byte hash and a 0x-prefixed
// hex signature.
func parseRelayRequest(w http.ResponseWriter, r *http.Request) (*documentCall, error) {
	var req types.RelayRequest
	decoder := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	if err := decoder.Decode(&req); err != nil {
		return nil, invalidf("Empty or invalid JSON payload")
	}

	if req.DocumentHash == "" || req.SignerAddress == "" || req.Signature == "" {
		return nil, invalidf("The attributes 'document_hash', 'signer_address' and 'signature' are required")
	}

	if !isChecksumAddress(req.SignerAddress) {
		return nil, invalidf("Invalid address: %s", req.SignerAddress)
	}
	if !strings.HasPrefix(req.DocumentHash, "0x") || len(req.DocumentHash) != 66 {
		return nil, invalidf("Invalid document hash: %s. It must be a 32-byte hex string starting with 0x.", req.DocumentHash)
	}
	d, err := digest.Parse(req.DocumentHash)
	if err != nil {
		return nil, invalidf("Invalid document hash: %s. It must be a 32-byte hex string starting with 0x.", req.DocumentHash)
	}
	if !strings.HasPrefix(req.Signature, "0x") {
		return nil, invalidf("Invalid signature: %s. It must be a hex string starting with 0x.", req.Signature)
	}
	sig, err := hexutil.Decode(req.Signature)
	if err != nil || len(sig) == 0 {
		return nil, invalidf("Invalid signature: %s. It must be a hex string starting with 0x.", req.Signature)
	}

	return &documentCall{
		digest:    d,
		signer:    common.HexToAddress(req.SignerAddress),
		signature: sig,
	}, nil
}

func isChecksumAddress(s string) bool {
	if !common.IsHexAddress(s) || !strings.HasPrefix(s, "0x") {
		return false
	}
	return common.HexToAddress(s).Hex() == s
}

func (s *Server) send(ctx context.Context, operation types.Operation, call *documentCall) (*ethereumTypes.Receipt, error) {
	switch operation {
	case types.Operation_InvalidateSignature:
		return s.contract.InvalidateSignature(ctx, s.signer, call.digest, call.signer, call.signature)
	default:
		return s.contract.SignDocument(ctx, s.signer, call.digest, call.signer, call.signature)
	}
}

func (s *Server) handleDocumentCall(w http.ResponseWriter, r *http.Request, operation types.Operation) {
	if r.Method != http.MethodPost {
		writeError(w, r, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	requestID := requestIDFrom(r.Context())

	call, err := parseRelayRequest(w, r)
	if err != nil {
		s.logger.Sugar().Debugw("Rejected relay request", "requestId", requestID, "operation", operation, "error", err)
		writeError(w, r, http.StatusBadRequest, err.Error())
		return
	}

	s.logger.Sugar().Infow("Forwarding document call",
		"requestId", requestID,
		"operation", operation,
		"documentHash", call.digest.Hex(),
		"signer", call.signer.Hex(),
	)

	receipt, sendErr := s.send(r.Context(), operation, call)
	if receipt == nil && sendErr == nil {
		sendErr = fmt.Errorf("%s returned no receipt", operation)
	}

	record := &types.RelayReceipt{
		ID:            uuid.NewString(),
		RequestID:     requestID,
		Operation:     operation,
		DocumentHash:  call.digest.Hex(),
		SignerAddress: call.signer.Hex(),
		CreatedAt:     s.now().UTC(),
	}
	if receipt != nil {
		record.TransactionHash = receipt.TxHash.Hex()
		record.GasUsed = receipt.GasUsed
		if receipt.BlockNumber != nil {
			record.BlockNumber = receipt.BlockNumber.Uint64()
		}
		record.Status = types.TransactionStatus_Success
		if receipt.Status != ethereumTypes.ReceiptStatusSuccessful {
			record.Status = types.TransactionStatus_Failed
		}
	} else if sendErr != nil {
		record.Status = types.TransactionStatus_Failed
	}
	if sendErr != nil {
		record.Error = sendErr.Error()
	}
	if err := s.store.SaveReceipt(record); err != nil {
		s.logger.Sugar().Errorw("Failed to persist relay receipt", "requestId", requestID, "error", err)
	}

	switch {
	case receipt != nil:
		status := http.StatusOK
		message := messageSuccess
		if record.Status != types.TransactionStatus_Success {
			status = http.StatusBadRequest
			message = messageReverted
		}
		s.logger.Sugar().Infow("Relay transaction mined",
			"requestId", requestID,
			"txHash", record.TransactionHash,
			"blockNumber", record.BlockNumber,
			"status", record.Status,
		)
		writeJSON(w, status, &types.RelayResponse{
			Message:           message,
			TransactionHash:   record.TransactionHash,
			BlockNumber:       record.BlockNumber,
			GasUsed:           record.GasUsed,
			TransactionStatus: record.Status,
			RequestID:         requestID,
		})
	case caller.IsRevert(sendErr):
		s.logger.Sugar().Warnw("Relay call reverted", "requestId", requestID, "operation", operation, "error", sendErr)
		writeError(w, r, http.StatusBadRequest, sendErr.Error())
	default:
		s.logger.Sugar().Errorw("Relay call failed", "requestId", requestID, "operation", operation, "error", sendErr)
		writeError(w, r, http.StatusInternalServerError, sendErr.Error())
	}
}
