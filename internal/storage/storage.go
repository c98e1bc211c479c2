// Package storage defines the local persistence interfaces and their implementations.
package storage

import "context"

// KV is the local persistent key-value store.
type KV interface {
	// Get returns the value of key and whether it exists.
	Get(ctx context.Context, key string) (string, bool, error)
	Set(ctx context.Context, key, value string) error
	Remove(ctx context.Context, key string) error
}

// SeenLedger remembers which items of an external source were already imported.
type SeenLedger interface {
	MarkSeen(ctx context.Context, source, guid string) error
	IsSeen(ctx context.Context, source, guid string) (bool, error)
}
