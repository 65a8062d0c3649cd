package badger

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/docsigner/docsigner-go/pkg/persistence"
	"github.com/docsigner/docsigner-go/pkg/types"
	badgerdb "github.com/dgraph-io/badger/v3"
	"go.uber.org/zap"
)

// Key prefixes for namespacing
const (
	keyPrefixReceipt     = "receipt:id:"
	keyPrefixDocument    = "receipt:doc:"
	keySchemaVersion     = "metadata:schema_version"
	currentSchemaVersion = "v1"
)

// BadgerPersistence stores receipts on local disk. Each receipt is written
// together with a document index entry in one transaction.
type BadgerPersistence struct {
	db       *badgerdb.DB
	logger   *zap.Logger
	gcCancel context.CancelFunc
	gcWg     sync.WaitGroup
	mu       sync.RWMutex
	closed   bool
}

// NewBadgerPersistence opens (or creates) the database at dataPath and starts
// value-log GC in the background.
func NewBadgerPersistence(dataPath string, logger *zap.Logger) (*BadgerPersistence, error) {
	absPath, err := filepath.Abs(dataPath)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve absolute path: %w", err)
	}

	opts := badgerdb.DefaultOptions(absPath)
	opts.Logger = &badgerLoggerAdapter{logger: logger}
	opts.SyncWrites = true
	opts.CompactL0OnClose = true
	opts.NumVersionsToKeep = 1

	db, err := badgerdb.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("failed to open badger database at %s: %w", absPath, err)
	}

	bp := &BadgerPersistence{
		db:     db,
		logger: logger,
	}

	if err := bp.initSchema(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	bp.gcCancel = cancel
	bp.gcWg.Add(1)
	go bp.runGC(ctx)

	logger.Sugar().Infow("Badger persistence initialized", "path", absPath)

	return bp, nil
}

func (b *BadgerPersistence) initSchema() error {
	return b.db.Update(func(txn *badgerdb.Txn) error {
		item, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return txn.Set([]byte(keySchemaVersion), []byte(currentSchemaVersion))
		}
		if err != nil {
			return fmt.Errorf("failed to read schema version: %w", err)
		}

		var existingVersion string
		err = item.Value(func(val []byte) error {
			existingVersion = string(val)
			return nil
		})
		if err != nil {
			return fmt.Errorf("failed to read schema version value: %w", err)
		}

		if existingVersion != currentSchemaVersion {
			return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
		}
		return nil
	})
}

func (b *BadgerPersistence) runGC(ctx context.Context) {
	defer b.gcWg.Done()

	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			err := b.db.RunValueLogGC(0.5)
			if err != nil && err != badgerdb.ErrNoRewrite {
				b.logger.Sugar().Warnw("Badger GC error", "error", err)
			}
		case <-ctx.Done():
			return
		}
	}
}

func receiptKey(id string) []byte {
	return []byte(keyPrefixReceipt + id)
}

func documentPrefix(documentHash string) string {
	return keyPrefixDocument + persistence.NormalizeDocumentHash(documentHash) + ":"
}

// documentIndexKey sorts lexicographically by creation time
func documentIndexKey(receipt *types.RelayReceipt) []byte {
	nanos := receipt.CreatedAt.UnixNano()
	if receipt.CreatedAt.IsZero() || nanos < 0 {
		nanos = 0
	}
	return []byte(fmt.Sprintf("%s%020d:%s", documentPrefix(receipt.DocumentHash), nanos, receipt.ID))
}

func getValue(txn *badgerdb.Txn, key []byte) ([]byte, error) {
	item, err := txn.Get(key)
	if err == badgerdb.ErrKeyNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (b *BadgerPersistence) SaveReceipt(receipt *types.RelayReceipt) error {
	if receipt == nil {
		return fmt.Errorf("cannot save nil RelayReceipt")
	}

	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalRelayReceipt(receipt)
	if err != nil {
		return fmt.Errorf("failed to marshal RelayReceipt: %w", err)
	}

	return b.db.Update(func(txn *badgerdb.Txn) error {
		previousData, err := getValue(txn, receiptKey(receipt.ID))
		if err != nil {
			return err
		}
		if previousData != nil {
			previous, err := persistence.UnmarshalRelayReceipt(previousData)
			if err != nil {
				return fmt.Errorf("failed to unmarshal previous RelayReceipt: %w", err)
			}
			if err := txn.Delete(documentIndexKey(previous)); err != nil {
				return err
			}
		}

		if err := txn.Set(receiptKey(receipt.ID), data); err != nil {
			return err
		}
		return txn.Set(documentIndexKey(receipt), []byte(receipt.ID))
	})
}

func (b *BadgerPersistence) LoadReceipt(id string) (*types.RelayReceipt, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	var data []byte
	err := b.db.View(func(txn *badgerdb.Txn) error {
		var err error
		data, err = getValue(txn, receiptKey(id))
		return err
	})
	if err != nil {
		return nil, fmt.Errorf("failed to load RelayReceipt: %w", err)
	}
	if data == nil {
		return nil, nil
	}

	receipt, err := persistence.UnmarshalRelayReceipt(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal RelayReceipt: %w", err)
	}
	return receipt, nil
}

func (b *BadgerPersistence) ListReceiptsForDocument(documentHash string) ([]*types.RelayReceipt, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return nil, persistence.ErrClosed
	}

	receipts := make([]*types.RelayReceipt, 0)
	err := b.db.View(func(txn *badgerdb.Txn) error {
		opts := badgerdb.DefaultIteratorOptions
		opts.Prefix = []byte(documentPrefix(documentHash))

		it := txn.NewIterator(opts)
		defer it.Close()

		for it.Rewind(); it.Valid(); it.Next() {
			id, err := it.Item().ValueCopy(nil)
			if err != nil {
				return fmt.Errorf("failed to read index entry %s: %w", strings.TrimPrefix(string(it.Item().Key()), keyPrefixDocument), err)
			}

			data, err := getValue(txn, receiptKey(string(id)))
			if err != nil {
				return err
			}
			if data == nil {
				b.logger.Sugar().Warnw("Receipt index points at missing receipt", "id", string(id))
				continue
			}
			receipt, err := persistence.UnmarshalRelayReceipt(data)
			if err != nil {
				return fmt.Errorf("failed to unmarshal RelayReceipt %s: %w", string(id), err)
			}
			receipts = append(receipts, receipt)
		}
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list receipts: %w", err)
	}

	persistence.SortReceipts(receipts)
	return receipts, nil
}

// Close stops GC and closes the database. Safe to call more than once.
func (b *BadgerPersistence) Close() error {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil
	}
	b.closed = true
	b.mu.Unlock()

	if b.gcCancel != nil {
		b.gcCancel()
	}
	b.gcWg.Wait()

	if err := b.db.Close(); err != nil {
		return fmt.Errorf("failed to close badger database: %w", err)
	}

	b.logger.Sugar().Info("Badger persistence closed")
	return nil
}

func (b *BadgerPersistence) HealthCheck() error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return persistence.ErrClosed
	}

	return b.db.View(func(txn *badgerdb.Txn) error {
		_, err := txn.Get([]byte(keySchemaVersion))
		if err == badgerdb.ErrKeyNotFound {
			return fmt.Errorf("schema version not found - database may be corrupted")
		}
		return err
	})
}
