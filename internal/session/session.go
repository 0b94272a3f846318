// Package session defines the key-value store a cart persists its state in,
// scoped to one client session.
package session

import (
	"context"
	"encoding/json"
	"fmt"
)

// Store is a namespaced key-value store bound to one session.
//
// Get decodes the value stored under key into dst and reports whether it was
// present. When the key is absent dst is left untouched, so a caller can
// pre-populate it with a default.
type Store interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Put(ctx context.Context, key string, value any) error
	Forget(ctx context.Context, key string) error
}

// Backend opens the Store of a session.
type Backend interface {
	Open(sessionID string) Store
	Name() string
}

// Encode serializes a value for storage.
func Encode(value any) ([]byte, error) {
	b, err := json.Marshal(value)
	if err != nil {
		return nil, fmt.Errorf("encode session value: %w", err)
	}
	return b, nil
}

// Decode deserializes stored bytes into dst.
func Decode(data []byte, dst any) error {
	if err := json.Unmarshal(data, dst); err != nil {
		return fmt.Errorf("decode session value: %w", err)
	}
	return nil
}
