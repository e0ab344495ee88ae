package cache

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
)

// LRUConfig sizes the in-process cache. TTL is the upper bound for every
// entry; a shorter per-call ttl is honoured on read.
type LRUConfig struct {
	Size int
	TTL  time.Duration
}

type entry struct {
	value     []byte
	expiresAt time.Time
}

// LRUProvider implements Provider on a size-bounded, expiring LRU.
type LRUProvider struct {
	mu     sync.Mutex
	lru    *expirable.LRU[string, entry]
	ttl    time.Duration
	now    func() time.Time
	closed bool
}

// NewLRUProvider creates an LRU-backed Provider.
func NewLRUProvider(cfg LRUConfig) (*LRUProvider, error) {
	if cfg.Size <= 0 {
		return nil, errors.New("cache size must be positive")
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Minute
	}
	return &LRUProvider{
		lru: expirable.NewLRU[string, entry](cfg.Size, nil, cfg.TTL),
		ttl: cfg.TTL,
		now: time.Now,
	}, nil
}

// Get fetches bytes by key, returning ErrCacheMiss when the key is absent or expired.
func (p *LRUProvider) Get(_ context.Context, key string) ([]byte, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	e, ok := p.live(key)
	if !ok {
		return nil, ErrCacheMiss
	}
	return append([]byte(nil), e.value...), nil
}

// Set stores value under key.
func (p *LRUProvider) Set(_ context.Context, key string, value []byte, ttl time.Duration) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return errors.New("cache closed")
	}
	p.lru.Add(key, p.entry(value, ttl))
	return nil
}

// SetNX stores value only when key is absent or expired, reporting whether it did.
func (p *LRUProvider) SetNX(_ context.Context, key string, value []byte, ttl time.Duration) (bool, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return false, errors.New("cache closed")
	}
	if _, ok := p.live(key); ok {
		return false, nil
	}
	p.lru.Add(key, p.entry(value, ttl))
	return true, nil
}

// Del removes key.
func (p *LRUProvider) Del(_ context.Context, key string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lru.Remove(key)
	return nil
}

// Close purges the cache; later writes fail.
func (p *LRUProvider) Close() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.closed = true
	p.lru.Purge()
	return nil
}

// live must be called with p.mu held.
func (p *LRUProvider) live(key string) (entry, bool) {
	e, ok := p.lru.Get(key)
	if !ok {
		return entry{}, false
	}
	if !e.expiresAt.IsZero() && !p.now().Before(e.expiresAt) {
		p.lru.Remove(key)
		return entry{}, false
	}
	return e, true
}

func (p *LRUProvider) entry(value []byte, ttl time.Duration) entry {
	if ttl <= 0 || ttl > p.ttl {
		ttl = p.ttl
	}
	return entry{value: append([]byte(nil), value...), expiresAt: p.now().Add(ttl)}
}
