package cart

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"errors"

	"github.com/mahmudulhsn/shopping-cart/internal/session"
)

// Factory hands out Carts bound to one session each.
type Factory struct {
	backend session.Backend
	rootKey string
	opts    []Option
}

// NewFactory creates a Factory that namespaces every cart under rootKey.
func NewFactory(backend session.Backend, rootKey string, opts ...Option) *Factory {
	return &Factory{backend: backend, rootKey: rootKey, opts: opts}
}

// For opens the cart of sessionID, initializing it on first use.
func (f *Factory) For(ctx context.Context, sessionID string) (*Cart, error) {
	if sessionID == "" {
		return nil, errors.New("session id is required")
	}
	return Open(ctx, f.backend.Open(sessionID), f.rootKey, f.opts...)
}

// Backend returns the session backend carts are opened on.
func (f *Factory) Backend() session.Backend {
	return f.backend
}

// RootSessionKey derives the key namespace from the application name.
func RootSessionKey(appName string) string {
	sum := md5.Sum([]byte(appName)) // #nosec G401 -- namespace only
	return hex.EncodeToString(sum[:])
}
