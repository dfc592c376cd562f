package client

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"tactical-grid/game"
	"tactical-grid/targeting"
)

// Query asks the server for movement options over HTTP.
type Query struct {
	base      string
	sessionID string
	timeout   time.Duration
}

var _ targeting.MovementQuery = (*Query)(nil)

func NewQuery(base, sessionID string, timeout time.Duration) *Query {
	return &Query{base: strings.TrimSuffix(base, "/"), sessionID: sessionID, timeout: timeout}
}

// MovementOptions implements targeting.MovementQuery. The request is bounded by the
// query timeout or the context deadline, whichever comes first.
func (q *Query) MovementOptions(ctx context.Context, sceneID, creatureID string) ([]game.TileCoordinate, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	endpoint := q.base + "/session/" + url.PathEscape(q.sessionID)
	if creatureID == "" {
		endpoint += "/combat_movement_options"
	} else {
		endpoint += "/movement_options/" + url.PathEscape(sceneID) + "/" + url.PathEscape(creatureID)
	}

	a := fiber.Get(endpoint)
	if timeout := q.deadline(ctx); timeout > 0 {
		a.Timeout(timeout)
	}

	var opts []game.TileCoordinate
	code, body, errs := a.Struct(&opts)
	if code != fiber.StatusOK && code != 0 {
		return nil, fmt.Errorf("movement options: %d %s", code, strings.TrimSpace(string(body)))
	}
	if len(errs) > 0 {
		return nil, fmt.Errorf("movement options: %w", errors.Join(errs...))
	}
	return opts, nil
}

func (q *Query) deadline(ctx context.Context) time.Duration {
	timeout := q.timeout
	if d, ok := ctx.Deadline(); ok {
		if left := time.Until(d); timeout <= 0 || left < timeout {
			timeout = max(left, time.Millisecond)
		}
	}
	return timeout
}
