// Package targeting owns the movement and ability-target overlays drawn on the grid and
// turns a chosen destination or target into a command.
package targeting

import (
	"context"
	"log/slog"
	"time"

	"tactical-grid/game"
)

const (
	DefaultTeleportRadius = 20
	DefaultQueryTimeout   = 5 * time.Second
)

//go:generate mockgen -destination=../mocks/movement_query.go -package=mocks tactical-grid/targeting MovementQuery

// MovementQuery fetches the authoritative set of walk destinations. An empty creatureID asks
// for the current combat actor's options.
type MovementQuery interface {
	MovementOptions(ctx context.Context, sceneID, creatureID string) ([]game.TileCoordinate, error)
}

// World is the read-only game snapshot the engine resolves ids against.
type World interface {
	Creature(id string) (game.Creature, bool)
	Scene(id string) (game.Scene, bool)
	Ability(id string) (game.Ability, bool)
	CombatActor() (string, bool)
}

// MovementOverlay is the set of destination tiles on offer. An empty Subject means whichever
// creature holds the combat turn.
type MovementOverlay struct {
	Subject      string
	Destinations []game.TileCoordinate
	Teleport     bool
}

// TargetingOverlay marks the creatures an ability can be used on.
type TargetingOverlay struct {
	AbilityID string
	ActorID   string
	Eligible  map[string]bool
}

type Config struct {
	Query      MovementQuery
	Dispatcher game.Dispatcher
	// Post schedules f on the goroutine that owns the engine. Query results arrive through it.
	Post           func(f func())
	TeleportRadius int
	QueryTimeout   time.Duration
	Logger         *slog.Logger
}

// request tags an outstanding movement query with what it was issued for.
type request struct {
	gen     uint64
	subject string
	sceneID string
}

// Engine is not safe for concurrent use; everything but the query itself runs on the
// goroutine behind Config.Post.
type Engine struct {
	query    MovementQuery
	dispatch game.Dispatcher
	post     func(func())
	radius   int
	timeout  time.Duration
	log      *slog.Logger

	world   World
	sceneID string

	movement  *MovementOverlay
	targeting *TargetingOverlay

	gen     uint64
	pending *request
}

func New(cfg Config) *Engine {
	if cfg.TeleportRadius <= 0 {
		cfg.TeleportRadius = DefaultTeleportRadius
	}
	if cfg.QueryTimeout <= 0 {
		cfg.QueryTimeout = DefaultQueryTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	return &Engine{
		query:    cfg.Query,
		dispatch: cfg.Dispatcher,
		post:     cfg.Post,
		radius:   cfg.TeleportRadius,
		timeout:  cfg.QueryTimeout,
		log:      cfg.Logger,
		world:    game.State{},
	}
}

// Sync points the engine at a fresh snapshot and the scene currently in focus.
func (e *Engine) Sync(world World, sceneID string) {
	if sceneID != e.sceneID {
		e.Cancel()
	}
	e.world = world
	e.sceneID = sceneID
}

func (e *Engine) Movement() (MovementOverlay, bool) {
	if e.movement == nil {
		return MovementOverlay{}, false
	}
	return *e.movement, true
}

func (e *Engine) Targeting() (TargetingOverlay, bool) {
	if e.targeting == nil {
		return TargetingOverlay{}, false
	}
	return *e.targeting, true
}

// Pending reports whether a movement query is outstanding.
func (e *Engine) Pending() bool { return e.pending != nil }

// RequestWalk asks the server where creatureID can walk and shows the answer.
func (e *Engine) RequestWalk(ctx context.Context, creatureID string) {
	e.requestOptions(ctx, creatureID)
}

// RequestCombatMove is RequestWalk for whichever creature holds the combat turn.
func (e *Engine) RequestCombatMove(ctx context.Context) {
	if _, ok := e.world.CombatActor(); !ok {
		e.log.Warn("combat move requested with no combat actor")
		return
	}
	e.requestOptions(ctx, "")
}

func (e *Engine) requestOptions(ctx context.Context, subject string) {
	if _, ok := e.world.Scene(e.sceneID); !ok {
		e.log.Warn("movement requested without a scene", "scene", e.sceneID)
		return
	}
	e.gen++
	req := request{gen: e.gen, subject: subject, sceneID: e.sceneID}
	e.pending = &req

	go func() {
		ctx, cancel := context.WithTimeout(ctx, e.timeout)
		defer cancel()
		opts, err := e.query.MovementOptions(ctx, req.sceneID, req.subject)
		e.post(func() { e.receive(req, opts, err) })
	}()
}

func (e *Engine) receive(req request, opts []game.TileCoordinate, err error) {
	if e.pending == nil || *e.pending != req {
		e.log.Debug("discarding stale movement options", "subject", req.subject, "gen", req.gen)
		return
	}
	e.pending = nil
	if err != nil {
		e.log.Warn("movement options query failed", "subject", req.subject, "error", err)
		return
	}
	e.targeting = nil
	e.movement = &MovementOverlay{Subject: req.subject, Destinations: opts}
	e.log.Debug("movement overlay set", "subject", req.subject, "options", len(opts))
}

// RequestTeleport offers every tile within the teleport radius of the creature, on its layer,
// regardless of terrain or occupancy. The server decides legality when the move arrives.
func (e *Engine) RequestTeleport(creatureID string) {
	scene, ok := e.world.Scene(e.sceneID)
	if !ok {
		e.log.Warn("teleport requested without a scene", "scene", e.sceneID)
		return
	}
	placement, ok := scene.Creatures[creatureID]
	if !ok {
		e.log.Warn("teleport requested for creature not in scene", "creature", creatureID)
		return
	}
	e.invalidate()
	e.targeting = nil
	e.movement = &MovementOverlay{
		Subject:      creatureID,
		Destinations: Nearby(placement.Pos, e.radius),
		Teleport:     true,
	}
}

// Nearby lists the tiles within Chebyshev distance radius of pos on pos's layer, row by row.
func Nearby(pos game.TileCoordinate, radius int) []game.TileCoordinate {
	side := 2*radius + 1
	out := make([]game.TileCoordinate, 0, side*side)
	for dy := -radius; dy <= radius; dy++ {
		for dx := -radius; dx <= radius; dx++ {
			out = append(out, pos.Add(dx, dy))
		}
	}
	return out
}

// Confirm commits the move to dest and dismisses the overlay without waiting for the server.
// It is only reachable from destination tiles, which exist only while an overlay is shown.
func (e *Engine) Confirm(dest game.TileCoordinate) {
	mv := e.movement
	if mv == nil {
		return
	}
	switch {
	case mv.Teleport:
		e.dispatch.Dispatch(game.SetCreaturePos(e.sceneID, mv.Subject, dest))
	case mv.Subject == "":
		e.dispatch.Dispatch(game.MoveCombatCreature(dest))
	default:
		e.dispatch.Dispatch(game.MoveCreature(e.sceneID, mv.Subject, dest))
	}
	e.invalidate()
	e.movement = nil
}

// RequestCombatAbilityTarget uses an actor-targeted ability straight away; any other ability
// shows the creatures in range and waits for one to be clicked.
func (e *Engine) RequestCombatAbilityTarget(actorID, abilityID string) {
	ability, ok := e.world.Ability(abilityID)
	if !ok {
		e.log.Warn("unknown ability", "ability", abilityID)
		return
	}
	if ability.Target.Kind == game.TargetActor {
		e.dispatch.Dispatch(game.CombatAct(abilityID, game.DecidedTarget{Kind: game.TargetActor}))
		return
	}
	scene, ok := e.world.Scene(e.sceneID)
	if !ok {
		e.log.Warn("targeting requested without a scene", "scene", e.sceneID)
		return
	}
	from, ok := scene.Creatures[actorID]
	if !ok {
		e.log.Warn("targeting actor not in scene", "creature", actorID)
		return
	}
	eligible := make(map[string]bool)
	for id, p := range scene.Creatures {
		if d := from.Pos.Chebyshev(p.Pos); d >= 0 && d <= ability.Target.Range {
			eligible[id] = true
		}
	}
	e.invalidate()
	e.movement = nil
	e.targeting = &TargetingOverlay{AbilityID: abilityID, ActorID: actorID, Eligible: eligible}
}

// ClickCreature offers a creature click to the targeting overlay. It reports whether the
// overlay consumed the click; clicks on ineligible creatures are consumed and ignored.
func (e *Engine) ClickCreature(creatureID string) bool {
	t := e.targeting
	if t == nil {
		return false
	}
	if !t.Eligible[creatureID] {
		return true
	}
	e.dispatch.Dispatch(game.CombatAct(t.AbilityID, game.DecidedTarget{Kind: game.TargetCreature, CreatureID: creatureID}))
	e.targeting = nil
	return true
}

// Cancel dismisses both overlays and forgets any outstanding query.
func (e *Engine) Cancel() {
	e.invalidate()
	e.movement = nil
	e.targeting = nil
}

func (e *Engine) invalidate() {
	e.gen++
	e.pending = nil
}
