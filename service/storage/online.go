package storage

import (
	"context"
	"sync"
	"time"

	"VChat/logger"

	"github.com/redis/go-redis/v9"
)

// The redis mirror keeps the set of online user ids visible outside the
// process (ops tooling, future multi-node fan-out). The in-memory connection
// registry stays authoritative; mirror failures are logged and ignored.

type OnlineConfig struct {
	Addr     string
	Password string
	DB       int
	Key      string        // set key, default "vchat:online"
	TTL      time.Duration // key TTL refreshed on every change, default 5m
}

func (c *OnlineConfig) norm() {
	if c.Key == "" {
		c.Key = "vchat:online"
	}
	if c.TTL <= 0 {
		c.TTL = 5 * time.Minute
	}
}

type Manager struct {
	rdb *redis.Client
	key string
	ttl time.Duration
}

var (
	globalOnline *Manager
	onlineMu     sync.RWMutex
)

// InitOnline connects the mirror. An empty addr leaves the mirror disabled;
// every Manager method is nil-safe for that case.
func InitOnline(cfg OnlineConfig) error {
	if cfg.Addr == "" {
		return nil
	}
	cfg.norm()
	rdb := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return err
	}
	onlineMu.Lock()
	globalOnline = &Manager{rdb: rdb, key: cfg.Key, ttl: cfg.TTL}
	onlineMu.Unlock()
	return nil
}

func GetOnline() *Manager {
	onlineMu.RLock()
	defer onlineMu.RUnlock()
	return globalOnline
}

// Online records userID as reachable.
func (m *Manager) Online(ctx context.Context, userID string) {
	if m == nil || userID == "" {
		return
	}
	pipe := m.rdb.TxPipeline()
	pipe.SAdd(ctx, m.key, userID)
	pipe.Expire(ctx, m.key, m.ttl)
	if _, err := pipe.Exec(ctx); err != nil {
		logger.Warnf("[online] mirror add %s: %v", userID, err)
	}
}

// Offline removes userID from the mirror.
func (m *Manager) Offline(ctx context.Context, userID string) {
	if m == nil || userID == "" {
		return
	}
	if err := m.rdb.SRem(ctx, m.key, userID).Err(); err != nil {
		logger.Warnf("[online] mirror remove %s: %v", userID, err)
	}
}

// ListOnline returns the mirrored set.
func (m *Manager) ListOnline(ctx context.Context) ([]string, error) {
	if m == nil {
		return nil, nil
	}
	return m.rdb.SMembers(ctx, m.key).Result()
}

// Reset clears the mirrored set, typically at startup so stale entries from
// a crashed process do not linger.
func (m *Manager) Reset(ctx context.Context) {
	if m == nil {
		return
	}
	if err := m.rdb.Del(ctx, m.key).Err(); err != nil {
		logger.Warnf("[online] mirror reset: %v", err)
	}
}

func (m *Manager) Close() error {
	if m == nil {
		return nil
	}
	return m.rdb.Close()
}
