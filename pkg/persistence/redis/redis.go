package redis

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/docsigner/docsigner-go/pkg/persistence"
	"github.com/docsigner/docsigner-go/pkg/types"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

// Key prefixes for namespacing in Redis
const (
	keyPrefixReceipt     = "docsigner:relay:receipt:"
	keyPrefixDocument    = "docsigner:relay:doc:"
	keySchemaVersion     = "docsigner:relay:metadata:schema_version"
	currentSchemaVersion = "v1"
)

// RedisPersistence stores receipts in Redis so several relay replicas share
// one history. Each document has a sorted set of receipt ids scored by creation time.
type RedisPersistence struct {
	client    *redis.Client
	logger    *zap.Logger
	keyPrefix string
	mu        sync.RWMutex
	closed    bool
}

type RedisConfig struct {
	// Address is the Redis server address (host:port)
	Address  string
	Password string
	// DB is the Redis database number (0-15)
	DB int
	// KeyPrefix is prepended to every key, e.g. "staging:"
	KeyPrefix string
}

func NewRedisPersistence(cfg *RedisConfig, logger *zap.Logger) (*RedisPersistence, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	if cfg.Address == "" {
		return nil, fmt.Errorf("redis address cannot be empty")
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Address,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to connect to Redis at %s: %w", cfg.Address, err)
	}

	rp := &RedisPersistence{
		client:    client,
		logger:    logger,
		keyPrefix: cfg.KeyPrefix,
	}

	if err := rp.initSchema(ctx); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}

	logger.Sugar().Infow("Redis persistence initialized", "address", cfg.Address, "db", cfg.DB, "key_prefix", cfg.KeyPrefix)
	return rp, nil
}

func (r *RedisPersistence) prefixKey(key string) string {
	return r.keyPrefix + key
}

func (r *RedisPersistence) receiptKey(id string) string {
	return r.prefixKey(keyPrefixReceipt + id)
}

func (r *RedisPersistence) documentKey(documentHash string) string {
	return r.prefixKey(keyPrefixDocument + persistence.NormalizeDocumentHash(documentHash))
}

func (r *RedisPersistence) initSchema(ctx context.Context) error {
	schemaKey := r.prefixKey(keySchemaVersion)

	existingVersion, err := r.client.Get(ctx, schemaKey).Result()
	if err == redis.Nil {
		return r.client.Set(ctx, schemaKey, currentSchemaVersion, 0).Err()
	}
	if err != nil {
		return fmt.Errorf("failed to read schema version: %w", err)
	}

	if existingVersion != currentSchemaVersion {
		return fmt.Errorf("unsupported schema version: %s (expected: %s)", existingVersion, currentSchemaVersion)
	}
	return nil
}

func createdAtScore(receipt *types.RelayReceipt) float64 {
	if receipt.CreatedAt.IsZero() {
		return 0
	}
	return float64(receipt.CreatedAt.UnixMilli())
}

func (r *RedisPersistence) SaveReceipt(receipt *types.RelayReceipt) error {
	if receipt == nil {
		return fmt.Errorf("cannot save nil RelayReceipt")
	}

	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	data, err := persistence.MarshalRelayReceipt(receipt)
	if err != nil {
		return fmt.Errorf("failed to marshal RelayReceipt: %w", err)
	}

	ctx := context.Background()
	key := r.receiptKey(receipt.ID)

	previousData, err := r.client.Get(ctx, key).Bytes()
	if err != nil && err != redis.Nil {
		return fmt.Errorf("failed to read previous RelayReceipt: %w", err)
	}

	_, err = r.client.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		if len(previousData) > 0 {
			if previous, err := persistence.UnmarshalRelayReceipt(previousData); err == nil {
				pipe.ZRem(ctx, r.documentKey(previous.DocumentHash), receipt.ID)
			}
		}
		pipe.Set(ctx, key, data, 0)
		pipe.ZAdd(ctx, r.documentKey(receipt.DocumentHash), redis.Z{
			Score:  createdAtScore(receipt),
			Member: receipt.ID,
		})
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to save RelayReceipt: %w", err)
	}
	return nil
}

func (r *RedisPersistence) LoadReceipt(id string) (*types.RelayReceipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	data, err := r.client.Get(context.Background(), r.receiptKey(id)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load RelayReceipt: %w", err)
	}

	receipt, err := persistence.UnmarshalRelayReceipt(data)
	if err != nil {
		return nil, fmt.Errorf("failed to unmarshal RelayReceipt: %w", err)
	}
	return receipt, nil
}

func (r *RedisPersistence) ListReceiptsForDocument(documentHash string) ([]*types.RelayReceipt, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return nil, persistence.ErrClosed
	}

	ctx := context.Background()
	indexKey := r.documentKey(documentHash)

	ids, err := r.client.ZRange(ctx, indexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to list receipt ids: %w", err)
	}
	receipts := make([]*types.RelayReceipt, 0, len(ids))
	if len(ids) == 0 {
		return receipts, nil
	}

	keys := make([]string, len(ids))
	for i, id := range ids {
		keys[i] = r.receiptKey(id)
	}

	values, err := r.client.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to fetch RelayReceipts: %w", err)
	}

	for i, val := range values {
		if val == nil {
			// index entry without a receipt
			r.client.ZRem(ctx, indexKey, ids[i])
			continue
		}

		data, ok := val.(string)
		if !ok {
			r.logger.Sugar().Warnw("Unexpected value type for RelayReceipt", "key", keys[i])
			continue
		}

		receipt, err := persistence.UnmarshalRelayReceipt([]byte(data))
		if err != nil {
			r.logger.Sugar().Warnw("Failed to unmarshal RelayReceipt, skipping", "key", keys[i], "error", err)
			continue
		}
		receipts = append(receipts, receipt)
	}

	persistence.SortReceipts(receipts)
	return receipts, nil
}

func (r *RedisPersistence) Close() error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return nil
	}
	r.closed = true
	r.mu.Unlock()

	if err := r.client.Close(); err != nil {
		return fmt.Errorf("failed to close Redis client: %w", err)
	}

	r.logger.Sugar().Info("Redis persistence closed")
	return nil
}

func (r *RedisPersistence) HealthCheck() error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	if r.closed {
		return persistence.ErrClosed
	}

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := r.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis health check failed: %w", err)
	}

	_, err := r.client.Get(ctx, r.prefixKey(keySchemaVersion)).Result()
	if err == redis.Nil {
		return fmt.Errorf("schema version not found - database may not be properly initialized")
	}
	if err != nil {
		return fmt.Errorf("failed to verify schema version: %w", err)
	}
	return nil
}
