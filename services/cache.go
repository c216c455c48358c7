package services

import (
	"context"
	"encoding/json"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
)

const cacheTTL = time.Hour

// BalanceSnapshot is the cached view of an account's balances. Advisory only;
// the ledger is authoritative and every write invalidates the snapshot.
type BalanceSnapshot struct {
	TotalXP     int64 `json:"total_xp"`
	SpendableXP int64 `json:"spendable_xp"`
}

// CacheService wraps the Redis client used for balance/feature-ownership
// snapshots and the quiz-generation stream. A nil client degrades every
// operation to a no-op so the system runs without Redis.
type CacheService struct {
	client *redis.Client
}

// NewCacheService creates a CacheService from a Redis URL. An empty URL
// returns a disabled cache.
func NewCacheService(redisURL string) (*CacheService, error) {
	if redisURL == "" {
		log.Println("⚠️  REDIS_URL not set — balance cache and quiz queue disabled")
		return &CacheService{}, nil
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, err
	}
	return &CacheService{client: redis.NewClient(opts)}, nil
}

// NewCacheServiceWithClient wires an existing client (used by tests).
func NewCacheServiceWithClient(client *redis.Client) *CacheService {
	return &CacheService{client: client}
}

// Enabled reports whether a Redis backend is wired.
func (c *CacheService) Enabled() bool { return c.client != nil }

// Client exposes the underlying Redis client for the quiz-generation stream.
func (c *CacheService) Client() *redis.Client { return c.client }

// Close closes the Redis connection.
func (c *CacheService) Close() error {
	if c.client == nil {
		return nil
	}
	return c.client.Close()
}

func balanceKey(accountID string) string  { return "verifast:balance:" + accountID }
func featuresKey(accountID string) string { return "verifast:features:" + accountID }

// GetBalance returns the cached snapshot, or nil on miss/disabled cache.
func (c *CacheService) GetBalance(ctx context.Context, accountID string) *BalanceSnapshot {
	if c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, balanceKey(accountID)).Bytes()
	if err != nil {
		return nil
	}
	var snap BalanceSnapshot
	if err := json.Unmarshal(raw, &snap); err != nil {
		return nil
	}
	return &snap
}

// SetBalance stores a snapshot with the advisory TTL.
func (c *CacheService) SetBalance(ctx context.Context, accountID string, snap BalanceSnapshot) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(snap)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, balanceKey(accountID), raw, cacheTTL).Err(); err != nil {
		log.Printf("⚠️  cache set failed for %s: %v", accountID, err)
	}
}

// GetFeatureOwnership returns the cached ownership map, or nil on miss.
func (c *CacheService) GetFeatureOwnership(ctx context.Context, accountID string) map[string]bool {
	if c.client == nil {
		return nil
	}
	raw, err := c.client.Get(ctx, featuresKey(accountID)).Bytes()
	if err != nil {
		return nil
	}
	var owned map[string]bool
	if err := json.Unmarshal(raw, &owned); err != nil {
		return nil
	}
	return owned
}

// SetFeatureOwnership stores the ownership map with the advisory TTL.
func (c *CacheService) SetFeatureOwnership(ctx context.Context, accountID string, owned map[string]bool) {
	if c.client == nil {
		return
	}
	raw, err := json.Marshal(owned)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, featuresKey(accountID), raw, cacheTTL).Err(); err != nil {
		log.Printf("⚠️  cache set failed for %s: %v", accountID, err)
	}
}

// InvalidateAccount drops both snapshots for an account. Called synchronously
// after every successful ledger write.
func (c *CacheService) InvalidateAccount(ctx context.Context, accountID string) {
	if c.client == nil {
		return
	}
	if err := c.client.Del(ctx, balanceKey(accountID), featuresKey(accountID)).Err(); err != nil {
		log.Printf("⚠️  cache invalidation failed for %s: %v", accountID, err)
	}
}
