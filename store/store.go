// Package store persists session snapshots so the server can restore sessions on restart.
package store

import (
	"context"
	"time"
)

// Per-call caps applied on top of the caller's context.
const (
	connectTimeout = 10 * time.Second
	opTimeout      = 5 * time.Second
	loadTimeout    = 10 * time.Second
)

// Snapshotter saves and restores the JSON-encoded game state of each session. Calls end at
// ctx's deadline or the per-call cap, whichever comes first.
type Snapshotter interface {
	SaveSnapshot(ctx context.Context, sessionID string, state []byte) error
	LoadAllSnapshots(ctx context.Context) (map[string][]byte, error)
	DeleteSnapshot(ctx context.Context, sessionID string) error
	Close()
}
