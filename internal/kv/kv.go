// Package kv provides the abstract get/set key-value capability the scheduling
// core persists through, plus in-memory, Redis and DynamoDB implementations.
package kv

import "context"

// Backend is a minimal key-value store. Get returns nil, nil for a missing key.
type Backend interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte) error
}
