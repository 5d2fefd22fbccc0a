// internal/overrides/layers.go
package overrides

import (
	"context"
)

// Layers pairs the protocol-default and per-user override caches.
type Layers struct {
	Defaults *Cache // keyed by protocol id
	Users    *Cache // keyed by user id
}

// Load returns both override layers for a user under a protocol. Either
// cache may be nil, in which case that layer is empty.
func (l Layers) Load(ctx context.Context, protocolID, userID string) (defaults, user map[string]any, err error) {
	if l.Defaults != nil && protocolID != "" {
		if defaults, err = l.Defaults.Get(ctx, protocolID); err != nil {
			return nil, nil, err
		}
	}
	if l.Users != nil && userID != "" {
		if user, err = l.Users.Get(ctx, userID); err != nil {
			return nil, nil, err
		}
	}
	return defaults, user, nil
}
