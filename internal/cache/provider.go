// Package cache holds the key/value layer behind log-query result reuse and
// the one-run-per-incident claims.
package cache

import (
	"context"
	"errors"
	"io"
	"time"
)

// ErrCacheMiss signals that a cache key was not found.
var ErrCacheMiss = errors.New("cache miss")

// Provider is a byte-oriented cache with expiring entries. SetNX must be
// atomic: at most one concurrent caller for a key may observe true.
type Provider interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttl time.Duration) error
	SetNX(ctx context.Context, key string, value []byte, ttl time.Duration) (bool, error)
	Del(ctx context.Context, key string) error
	io.Closer
}

// Claim is a reservation taken with TryClaim.
type Claim struct {
	provider Provider
	key      string
}

// TryClaim reserves key for ttl, storing holder as the value. It returns
// (nil, false, nil) when someone else already holds the key.
func TryClaim(ctx context.Context, p Provider, key, holder string, ttl time.Duration) (*Claim, bool, error) {
	ok, err := p.SetNX(ctx, key, []byte(holder), ttl)
	if err != nil || !ok {
		return nil, false, err
	}
	return &Claim{provider: p, key: key}, true, nil
}

// Holder returns the value stored by the current claim on key, if any.
func Holder(ctx context.Context, p Provider, key string) (string, error) {
	v, err := p.Get(ctx, key)
	if err != nil {
		return "", err
	}
	return string(v), nil
}

// Release drops the reservation. Releasing a nil claim is a no-op.
func (c *Claim) Release(ctx context.Context) error {
	if c == nil {
		return nil
	}
	return c.provider.Del(ctx, c.key)
}

// NoopProvider stores nothing. Every read misses and every claim succeeds,
// which disables both result reuse and duplicate-run protection.
type NoopProvider struct{}

func (NoopProvider) Get(context.Context, string) ([]byte, error) { return nil, ErrCacheMiss }

func (NoopProvider) Set(context.Context, string, []byte, time.Duration) error { return nil }

func (NoopProvider) SetNX(context.Context, string, []byte, time.Duration) (bool, error) {
	return true, nil
}

func (NoopProvider) Del(context.Context, string) error { return nil }

func (NoopProvider) Close() error { return nil }
