// Package cache holds the public event projection cache and the key/value
// store used for idempotent replays.
package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/diagnosis/rsvp-events/internal/domain"
)

const publicEventPrefix = "event:public:"

func PublicEventKey(id string) string { return publicEventPrefix + id }

// PublicEvents caches GET /events/{id}/public responses.
type PublicEvents interface {
	// Get returns nil, nil on a miss.
	Get(ctx context.Context, id string) (*domain.PublicEvent, error)
	Set(ctx context.Context, ev *domain.PublicEvent) error
	Invalidate(ctx context.Context, id string) error
}

// KV is the minimal string store behind idempotency replays.
type KV interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
}

// NewRedisClient parses a redis:// URL; password and db override the URL when set.
func NewRedisClient(ctx context.Context, url, password string, db int) (*redis.Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}
	if password != "" {
		opts.Password = password
	}
	if db > 0 {
		opts.DB = db
	}
	client := redis.NewClient(opts)

	ctx, cancel := context.WithTimeout(ctx, 3*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("ping redis: %w", err)
	}
	return client, nil
}

type RedisPublicEvents struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisPublicEvents(client *redis.Client, ttl time.Duration) *RedisPublicEvents {
	return &RedisPublicEvents{client: client, ttl: ttl}
}

func (c *RedisPublicEvents) Get(ctx context.Context, id string) (*domain.PublicEvent, error) {
	raw, err := c.client.Get(ctx, PublicEventKey(id)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	var ev domain.PublicEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, fmt.Errorf("decode cached event: %w", err)
	}
	return &ev, nil
}

func (c *RedisPublicEvents) Set(ctx context.Context, ev *domain.PublicEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, PublicEventKey(ev.ID), raw, c.ttl).Err()
}

func (c *RedisPublicEvents) Invalidate(ctx context.Context, id string) error {
	return c.client.Del(ctx, PublicEventKey(id)).Err()
}

// RedisKV stores idempotent responses. Set keeps the first value written.
type RedisKV struct {
	client *redis.Client
}

func NewRedisKV(client *redis.Client) *RedisKV {
	return &RedisKV{client: client}
}

func (s *RedisKV) Get(ctx context.Context, key string) (string, error) {
	v, err := s.client.Get(ctx, key).Result()
	if errors.Is(err, redis.Nil) {
		return "", nil
	}
	return v, err
}

func (s *RedisKV) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

func (s *RedisKV) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	return s.client.SetNX(ctx, key, value, ttl).Err()
}

type memoryEntry struct {
	value     []byte
	expiresAt time.Time
}

// Memory implements both PublicEvents and KV in process.
type Memory struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]memoryEntry
	now     func() time.Time
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]memoryEntry), now: time.Now}
}

func (m *Memory) load(key string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return nil, false
	}
	if !e.expiresAt.IsZero() && m.now().After(e.expiresAt) {
		delete(m.entries, key)
		return nil, false
	}
	return e.value, true
}

func (m *Memory) store(key string, value []byte, ttl time.Duration, onlyIfAbsent bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if onlyIfAbsent {
		if e, ok := m.entries[key]; ok && (e.expiresAt.IsZero() || m.now().Before(e.expiresAt)) {
			return
		}
	}
	var exp time.Time
	if ttl > 0 {
		exp = m.now().Add(ttl)
	}
	m.entries[key] = memoryEntry{value: value, expiresAt: exp}
}

func (m *Memory) Get(ctx context.Context, key string) (string, error) {
	v, ok := m.load(key)
	if !ok {
		return "", nil
	}
	return string(v), nil
}

func (m *Memory) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	m.store(key, []byte(value), ttl, true)
	return nil
}

// PublicEvents returns a view of m that satisfies PublicEvents.
func (m *Memory) PublicEvents() PublicEvents { return memoryPublicEvents{m} }

type memoryPublicEvents struct{ m *Memory }

func (p memoryPublicEvents) Get(ctx context.Context, id string) (*domain.PublicEvent, error) {
	raw, ok := p.m.load(PublicEventKey(id))
	if !ok {
		return nil, nil
	}
	var ev domain.PublicEvent
	if err := json.Unmarshal(raw, &ev); err != nil {
		return nil, err
	}
	return &ev, nil
}

func (p memoryPublicEvents) Set(ctx context.Context, ev *domain.PublicEvent) error {
	raw, err := json.Marshal(ev)
	if err != nil {
		return err
	}
	p.m.store(PublicEventKey(ev.ID), raw, p.m.ttl, false)
	return nil
}

func (p memoryPublicEvents) Invalidate(ctx context.Context, id string) error {
	p.m.mu.Lock()
	defer p.m.mu.Unlock()
	delete(p.m.entries, PublicEventKey(id))
	return nil
}

var (
	_ PublicEvents = (*RedisPublicEvents)(nil)
	_ PublicEvents = memoryPublicEvents{}
	_ KV           = (*RedisKV)(nil)
	_ KV           = (*Memory)(nil)
)
