package store

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"
)

// snapshotsKey is the hash holding every session's snapshot, keyed by session id.
const snapshotsKey = "tactical-grid:snapshots"

// Redis keeps all snapshots in a single hash.
type Redis struct {
	client *redis.Client
}

var _ Snapshotter = (*Redis)(nil)

// NewRedis connects to addr and checks the server answers.
func NewRedis(ctx context.Context, addr string) (*Redis, error) {
	if addr == "" {
		return nil, fmt.Errorf("redis: address is required")
	}
	client := redis.NewClient(&redis.Options{Addr: addr})

	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("redis: connect: %w", err)
	}
	return &Redis{client: client}, nil
}

func (r *Redis) SaveSnapshot(ctx context.Context, sessionID string, state []byte) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := r.client.HSet(ctx, snapshotsKey, sessionID, state).Err(); err != nil {
		return fmt.Errorf("redis: save session %s: %w", sessionID, err)
	}
	return nil
}

func (r *Redis) LoadAllSnapshots(ctx context.Context) (map[string][]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, loadTimeout)
	defer cancel()

	raw, err := r.client.HGetAll(ctx, snapshotsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("redis: load sessions: %w", err)
	}
	snapshots := make(map[string][]byte, len(raw))
	for id, data := range raw {
		snapshots[id] = []byte(data)
	}
	return snapshots, nil
}

func (r *Redis) DeleteSnapshot(ctx context.Context, sessionID string) error {
	ctx, cancel := context.WithTimeout(ctx, opTimeout)
	defer cancel()

	if err := r.client.HDel(ctx, snapshotsKey, sessionID).Err(); err != nil {
		return fmt.Errorf("redis: delete session %s: %w", sessionID, err)
	}
	return nil
}

func (r *Redis) Close() {
	r.client.Close()
}
