package storage

import (
	"context"
	"errors"
)

// ErrClosed is returned by operations on a closed backend.
var ErrClosed = errors.New("storage: backend closed")

// Backend persists opaque values by key.
type Backend interface {
	Load(ctx context.Context, key string) ([]byte, bool, error)
	Save(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}

// Area is a string view over a Backend, namespaced by a key prefix.
type Area struct {
	backend Backend
	prefix  string
}

// NewArea wraps backend, prefixing every key with prefix.
func NewArea(backend Backend, prefix string) *Area {
	return &Area{backend: backend, prefix: prefix}
}

// Get returns the value stored under key.
func (a *Area) Get(ctx context.Context, key string) (string, bool, error) {
	b, ok, err := a.backend.Load(ctx, a.prefix+key)
	if err != nil || !ok {
		return "", ok, err
	}
	return string(b), true, nil
}

// Set stores value under key.
func (a *Area) Set(ctx context.Context, key, value string) error {
	return a.backend.Save(ctx, a.prefix+key, []byte(value))
}

// Remove deletes key.
func (a *Area) Remove(ctx context.Context, key string) error {
	return a.backend.Delete(ctx, a.prefix+key)
}
