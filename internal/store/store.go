// Package store provides the persistent key-value store behind cheat-sheet
// data: JSON-encoded values keyed by string, with memory, SQLite, and
// Postgres drivers selected at startup.
package store

import (
	"context"
	"errors"
)

// ErrNotFound is returned by Get when the key has never been written
var ErrNotFound = errors.New("key not found")

// Store defines the key-value persistence interface
type Store interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
	Delete(ctx context.Context, key string) error
	Close() error
}
