package persistence

import (
	"encoding/json"
	"fmt"
	"strings"

	"github.com/docsigner/docsigner-go/pkg/types"
)

// MarshalRelayReceipt serializes a RelayReceipt to JSON bytes
func MarshalRelayReceipt(receipt *types.RelayReceipt) ([]byte, error) {
	if receipt == nil {
		return nil, fmt.Errorf("cannot marshal nil RelayReceipt")
	}
	if receipt.ID == "" {
		return nil, fmt.Errorf("cannot marshal RelayReceipt without an id")
	}

	data, err := json.Marshal(receipt)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal RelayReceipt to JSON: %w", err)
	}
	return data, nil
}

func UnmarshalRelayReceipt(data []byte) (*types.RelayReceipt, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("cannot unmarshal empty data")
	}

	var receipt types.RelayReceipt
	if err := json.Unmarshal(data, &receipt); err != nil {
		return nil, fmt.Errorf("failed to unmarshal JSON to RelayReceipt: %w", err)
	}
	return &receipt, nil
}

// NormalizeDocumentHash is the index key form of a document hash
func NormalizeDocumentHash(documentHash string) string {
	return strings.ToLower(strings.TrimSpace(documentHash))
}
