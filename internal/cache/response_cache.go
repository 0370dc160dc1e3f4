package cache

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const responseKeyPrefix = "agentsurvey:resp:"

// Entry is a stored raw model reply
type Entry struct {
	RawReply string    `json:"rawReply"`
	Model    string    `json:"model"`
	StoredAt time.Time `json:"storedAt"`
}

// ResponseCache holds raw model replies by call fingerprint. A key holds at
// most one value: Store never overwrites, and reports whether it wrote.
type ResponseCache interface {
	Lookup(ctx context.Context, key string) (*Entry, error)
	Store(ctx context.Context, key string, entry *Entry) (bool, error)
	Remove(ctx context.Context, key string) error
}

type responseCache struct {
	client *redis.Client
	ttl    time.Duration
}

// NewResponseCache stores entries in Redis. A zero ttl keeps them forever.
func NewResponseCache(client *redis.Client, ttl time.Duration) ResponseCache {
	return &responseCache{
		client: client,
		ttl:    ttl,
	}
}

func (c *responseCache) key(k string) string {
	return responseKeyPrefix + k
}

func (c *responseCache) Lookup(ctx context.Context, key string) (*Entry, error) {
	data, err := c.client.Get(ctx, c.key(key)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var entry Entry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil, err
	}
	return &entry, nil
}

func (c *responseCache) Store(ctx context.Context, key string, entry *Entry) (bool, error) {
	data, err := json.Marshal(entry)
	if err != nil {
		return false, err
	}
	return c.client.SetNX(ctx, c.key(key), data, c.ttl).Result()
}

func (c *responseCache) Remove(ctx context.Context, key string) error {
	return c.client.Del(ctx, c.key(key)).Err()
}

// MemoryResponseCache is an in-process ResponseCache
type MemoryResponseCache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

func NewMemoryResponseCache() *MemoryResponseCache {
	return &MemoryResponseCache{entries: make(map[string]Entry)}
}

func (c *MemoryResponseCache) Lookup(_ context.Context, key string) (*Entry, error) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	entry, ok := c.entries[key]
	if !ok {
		return nil, nil
	}
	return &entry, nil
}

func (c *MemoryResponseCache) Store(_ context.Context, key string, entry *Entry) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, exists := c.entries[key]; exists {
		return false, nil
	}
	c.entries[key] = *entry
	return true, nil
}

func (c *MemoryResponseCache) Remove(_ context.Context, key string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.entries, key)
	return nil
}

// Len is the number of stored entries
func (c *MemoryResponseCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
