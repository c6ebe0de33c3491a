package cache

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	gocache "github.com/patrickmn/go-cache"
	"go.uber.org/zap"

	"github.com/nft-bridge/bridge_client/internal/domain/entities"
)

// DefaultEntryTTL bounds how long stale entries linger in a store. Freshness
// is decided by the ownership service, not by expiry.
const DefaultEntryTTL = 24 * time.Hour

// RedisOwnershipStore persists ownership entries in Redis
type RedisOwnershipStore struct {
	redis  RedisClient
	ttl    time.Duration
	logger *zap.Logger
}

func NewRedisOwnershipStore(redis RedisClient, ttl time.Duration, logger *zap.Logger) *RedisOwnershipStore {
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}
	return &RedisOwnershipStore{redis: redis, ttl: ttl, logger: logger}
}

// Get returns the entry or nil when absent
func (s *RedisOwnershipStore) Get(ctx context.Context, account, networkID string) (*entities.OwnershipCacheEntry, error) {
	var rec ownershipRecord
	err := s.redis.Get(ctx, entities.OwnershipCacheKey(account, networkID), &rec)
	if errors.Is(err, ErrCacheMiss) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	entry, err := fromRecord(rec)
	if err != nil {
		// A corrupt entry is treated as a miss and overwritten by the next probe
		s.logger.Warn("Discarding unreadable ownership entry",
			zap.String("account", account),
			zap.String("network", networkID),
			zap.Error(err))
		return nil, nil
	}
	return entry, nil
}

func (s *RedisOwnershipStore) Put(ctx context.Context, entry *entities.OwnershipCacheEntry) error {
	key := entities.OwnershipCacheKey(entry.Account, entry.NetworkID)
	if err := s.redis.Set(ctx, key, toRecord(entry), s.ttl); err != nil {
		return fmt.Errorf("store ownership entry %s: %w", key, err)
	}
	return nil
}

// DeleteAccount removes every entry of account across networks
func (s *RedisOwnershipStore) DeleteAccount(ctx context.Context, account string) error {
	keys, err := s.redis.ScanKeys(ctx, entities.OwnershipAccountPrefix(account)+"*")
	if err != nil {
		return err
	}
	if err := s.redis.Del(ctx, keys...); err != nil {
		return fmt.Errorf("delete ownership entries of %s: %w", account, err)
	}
	s.logger.Debug("Ownership entries invalidated", zap.String("account", account), zap.Int("count", len(keys)))
	return nil
}

// MemoryOwnershipStore keeps entries in process
type MemoryOwnershipStore struct {
	items *gocache.Cache
}

func NewMemoryOwnershipStore(ttl time.Duration) *MemoryOwnershipStore {
	if ttl <= 0 {
		ttl = DefaultEntryTTL
	}
	return &MemoryOwnershipStore{items: gocache.New(ttl, ttl/2)}
}

func (s *MemoryOwnershipStore) Get(_ context.Context, account, networkID string) (*entities.OwnershipCacheEntry, error) {
	v, ok := s.items.Get(entities.OwnershipCacheKey(account, networkID))
	if !ok {
		return nil, nil
	}
	rec := v.(ownershipRecord)
	return fromRecord(rec)
}

// Put stores the serialized form so readers never share asset slices
func (s *MemoryOwnershipStore) Put(_ context.Context, entry *entities.OwnershipCacheEntry) error {
	s.items.SetDefault(entities.OwnershipCacheKey(entry.Account, entry.NetworkID), toRecord(entry))
	return nil
}

func (s *MemoryOwnershipStore) DeleteAccount(_ context.Context, account string) error {
	prefix := entities.OwnershipAccountPrefix(account)
	for key := range s.items.Items() {
		if strings.HasPrefix(key, prefix) {
			s.items.Delete(key)
		}
	}
	return nil
}
