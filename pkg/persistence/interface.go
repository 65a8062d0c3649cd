package persistence

import "github.com/docsigner/docsigner-go/pkg/types"

// IReceiptStore persists the relay's record of every forwarded request.
// All implementations must be thread-safe; the relay serves requests concurrently.
type IReceiptStore interface {
	// SaveReceipt stores a receipt under its ID, overwriting any previous
	// receipt with the same ID.
	SaveReceipt(receipt *types.RelayReceipt) error

	// LoadReceipt returns nil if the receipt doesn't exist, error only on storage failure.
	LoadReceipt(id string) (*types.RelayReceipt, error)

	// ListReceiptsForDocument returns every receipt for a document hash ordered
	// by CreatedAt (ascending). The hash is matched case-insensitively.
	ListReceiptsForDocument(documentHash string) ([]*types.RelayReceipt, error)

	// Close is idempotent. After Close(), all other operations return ErrClosed.
	Close() error

	// HealthCheck returns nil if the store is operational
	HealthCheck() error
}
