package memory

import (
	"fmt"
	"sync"

	"github.com/docsigner/docsigner-go/pkg/persistence"
	"github.com/docsigner/docsigner-go/pkg/types"
	"go.uber.org/zap"
)

// MemoryPersistence keeps receipts in process memory. Receipt history is lost
// when the relay restarts.
type MemoryPersistence struct {
	mu sync.RWMutex

	receipts map[string]*types.RelayReceipt
	// document hash -> receipt ids
	byDocument map[string][]string

	closed bool
}

func NewMemoryPersistence(logger *zap.Logger) *MemoryPersistence {
	if logger != nil {
		logger.Sugar().Warnw("Using in-memory receipt store, receipt history will be lost on restart",
			"hint", "set persistence to badger or redis to keep it",
		)
	}
	return &MemoryPersistence{
		receipts:   make(map[string]*types.RelayReceipt),
		byDocument: make(map[string][]string),
	}
}

func (m *MemoryPersistence) SaveReceipt(receipt *types.RelayReceipt) error {
	if receipt == nil {
		return fmt.Errorf("cannot save nil RelayReceipt")
	}
	if receipt.ID == "" {
		return fmt.Errorf("cannot save RelayReceipt without an id")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return persistence.ErrClosed
	}

	if previous, ok := m.receipts[receipt.ID]; ok {
		m.unindexLocked(previous)
	}
	copied := *receipt
	m.receipts[receipt.ID] = &copied

	hash := persistence.NormalizeDocumentHash(receipt.DocumentHash)
	m.byDocument[hash] = append(m.byDocument[hash], receipt.ID)
	return nil
}

func (m *MemoryPersistence) unindexLocked(receipt *types.RelayReceipt) {
	hash := persistence.NormalizeDocumentHash(receipt.DocumentHash)
	ids := m.byDocument[hash]
	for i, id := range ids {
		if id == receipt.ID {
			m.byDocument[hash] = append(ids[:i], ids[i+1:]...)
			break
		}
	}
	if len(m.byDocument[hash]) == 0 {
		delete(m.byDocument, hash)
	}
}

func (m *MemoryPersistence) LoadReceipt(id string) (*types.RelayReceipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	receipt, ok := m.receipts[id]
	if !ok {
		return nil, nil
	}
	copied := *receipt
	return &copied, nil
}

func (m *MemoryPersistence) ListReceiptsForDocument(documentHash string) ([]*types.RelayReceipt, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	if m.closed {
		return nil, persistence.ErrClosed
	}

	ids := m.byDocument[persistence.NormalizeDocumentHash(documentHash)]
	receipts := make([]*types.RelayReceipt, 0, len(ids))
	for _, id := range ids {
		copied := *m.receipts[id]
		receipts = append(receipts, &copied)
	}
	persistence.SortReceipts(receipts)
	return receipts, nil
}

func (m *MemoryPersistence) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.closed = true
	return nil
}

func (m *MemoryPersistence) HealthCheck() error {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if m.closed {
		return persistence.ErrClosed
	}
	return nil
}
