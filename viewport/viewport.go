// Package viewport is one mounted grid: it owns the camera, the gesture state, the open
// popover, the movement and targeting overlays and, while the terrain editor is open, the
// draft. Everything here runs on a single goroutine; see Loop.
package viewport

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"tactical-grid/draft"
	"tactical-grid/focus"
	"tactical-grid/game"
	"tactical-grid/gesture"
	"tactical-grid/grid"
	"tactical-grid/render"
	"tactical-grid/targeting"
)

// Menu entries offered on creature tokens.
const (
	ActionWalk       = "Walk"
	ActionTeleport   = "Teleport"
	ActionCombatMove = "Combat move"
)

type Config struct {
	// PlayerID is the viewer. Empty means the GM.
	PlayerID   string
	Query      targeting.MovementQuery
	Dispatcher game.Dispatcher
	Scheduler  gesture.Scheduler
	Post       func(func())

	Camera         grid.Camera
	ClickWindow    time.Duration
	TeleportRadius int
	QueryTimeout   time.Duration
	EditWindow     int
	Logger         *slog.Logger
}

type Viewport struct {
	ctx        context.Context
	playerID   string
	dispatcher game.Dispatcher
	editWindow int
	log        *slog.Logger

	camera   *grid.Camera
	gestures *gesture.Disambiguator
	focus    *focus.Machine
	engine   *targeting.Engine
	draft    *draft.Draft

	world   game.State
	sceneID string

	width, height float64
	fittedMap     string

	pressed bool
	dragged bool
	downAt  grid.Point
}

func New(ctx context.Context, cfg Config) *Viewport {
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Camera.Zoom == 0 {
		cfg.Camera = grid.DefaultCamera()
	}
	camera := cfg.Camera
	v := &Viewport{
		ctx:        ctx,
		playerID:   cfg.PlayerID,
		dispatcher: cfg.Dispatcher,
		editWindow: cfg.EditWindow,
		log:        cfg.Logger,
		camera:     &camera,
		focus:      focus.NewMachine(cfg.Logger),
		world:      game.State{},
	}
	v.gestures = gesture.New(v.camera, cfg.Scheduler, cfg.ClickWindow,
		gesture.WithLogger(cfg.Logger),
		gesture.OnPanZoom(func(active bool) {
			v.log.Debug("pan/zoom", "active", active)
		}))
	v.engine = targeting.New(targeting.Config{
		Query:          cfg.Query,
		Dispatcher:     cfg.Dispatcher,
		Post:           cfg.Post,
		TeleportRadius: cfg.TeleportRadius,
		QueryTimeout:   cfg.QueryTimeout,
		Logger:         cfg.Logger,
	})
	return v
}

func (v *Viewport) Camera() grid.Camera            { return *v.camera }
func (v *Viewport) Focus() focus.Focus             { return v.focus.Current() }
func (v *Viewport) Engine() *targeting.Engine      { return v.engine }
func (v *Viewport) GestureState() gesture.State    { return v.gestures.State() }
func (v *Viewport) SceneID() string                { return v.sceneID }
func (v *Viewport) World() game.State              { return v.world }
func (v *Viewport) Draft() (*draft.Draft, bool)    { return v.draft, v.draft != nil }
func (v *Viewport) IsGM() bool                     { return v.playerID == "" }
func (v *Viewport) ScreenSize() (float64, float64) { return v.width, v.height }

// Resize records the screen size and refits the camera to the current map.
func (v *Viewport) Resize(w, h float64) {
	v.width, v.height = w, h
	v.fittedMap = ""
	v.fit()
}

// SetSnapshot replaces the game state. Players always look at the scene they are in; the GM
// keeps the scene chosen with FocusScene, defaulting to the first one.
func (v *Viewport) SetSnapshot(world game.State) {
	v.world = world
	sceneID := v.sceneID
	if v.playerID != "" {
		sceneID = ""
		if s, ok := world.PlayerScene(v.playerID); ok {
			sceneID = s.ID
		}
	} else if _, ok := world.Scene(sceneID); !ok {
		sceneID = firstScene(world)
	}
	v.setScene(sceneID)
	if v.draft != nil {
		if m, ok := world.Map(v.draft.MapID()); ok {
			v.draft.Sync(m)
		}
	}
}

// FocusScene switches the GM's view to another scene.
func (v *Viewport) FocusScene(sceneID string) {
	v.setScene(sceneID)
}

func (v *Viewport) setScene(sceneID string) {
	if sceneID != v.sceneID {
		v.log.Info("scene focused", "scene", sceneID)
		v.focus.Clear()
	}
	v.sceneID = sceneID
	v.engine.Sync(v.world, sceneID)
	v.fit()
}

func firstScene(world game.State) string {
	ids := make([]string, 0, len(world.Scenes))
	for id := range world.Scenes {
		ids = append(ids, id)
	}
	if len(ids) == 0 {
		return ""
	}
	sort.Strings(ids)
	return ids[0]
}

// fit frames the focused map's terrain once per map, like a refresh after the map changes.
func (v *Viewport) fit() {
	if v.width <= 0 || v.height <= 0 {
		return
	}
	m, ok := v.currentMap()
	if !ok || m.ID == v.fittedMap {
		return
	}
	var bounds grid.Rect
	for _, c := range m.Terrain {
		bounds = bounds.Union(grid.TileRect(c, game.Footprint{}))
	}
	v.camera.Fit(bounds, v.width, v.height)
	v.fittedMap = m.ID
}

func (v *Viewport) currentMap() (game.Map, bool) {
	if v.draft != nil {
		return v.world.Map(v.draft.MapID())
	}
	scene, ok := v.world.Scene(v.sceneID)
	if !ok {
		return game.Map{}, false
	}
	return v.world.Map(scene.MapID)
}

// Frame is the element list for the current state.
func (v *Viewport) Frame() []render.Element {
	if v.draft != nil {
		var bg game.Background
		if m, ok := v.world.Map(v.draft.MapID()); ok {
			bg = m.Background
		}
		return render.RenderEditor(render.EditorFrame{Background: bg, Draft: v.draft})
	}
	f := render.Frame{
		World:     v.world,
		SceneID:   v.sceneID,
		PlayerID:  v.playerID,
		Focus:     v.focus.Current(),
		MenuItems: v.MenuActions(),
	}
	if mv, ok := v.engine.Movement(); ok {
		f.Movement = &mv
	}
	if tg, ok := v.engine.Targeting(); ok {
		f.Targeting = &tg
	}
	return render.Render(f)
}

func (v *Viewport) PointerDown(p grid.Point) {
	v.gestures.PointerDown()
	v.pressed = true
	v.dragged = false
	v.downAt = p
}

// PointerMove drags the camera while the button is held.
func (v *Viewport) PointerMove(p grid.Point) {
	if !v.pressed {
		return
	}
	if !v.dragged {
		v.dragged = true
		v.gestures.PanStart()
	}
	v.gestures.PointerMove()
	v.gestures.PanMove(p.X-v.downAt.X, p.Y-v.downAt.Y)
}

// PointerUp ends a press and, when the press was a click, routes it to whatever is under p.
func (v *Viewport) PointerUp(p grid.Point) {
	v.pressed = false
	v.dragged = false
	if v.gestures.PointerUp() {
		v.click(p)
	}
}

func (v *Viewport) PinchStart(focal grid.Point, scale float64) { v.gestures.PinchStart(focal, scale) }
func (v *Viewport) PinchMove(focal grid.Point, scale float64)  { v.gestures.PinchMove(focal, scale) }
func (v *Viewport) GestureEnd()                                { v.gestures.GestureEnd() }
func (v *Viewport) Wheel(focal grid.Point, notches int)        { v.gestures.Wheel(focal, notches) }

func (v *Viewport) click(p grid.Point) {
	world := v.camera.ScreenToWorld(p)
	el, ok := render.HitTest(v.Frame(), world)

	if v.draft != nil {
		if ok && (el.Kind == render.KindTerrain || el.Kind == render.KindClosedTile) {
			v.draft.Paint(el.Coord)
		}
		return
	}
	if !ok {
		v.focus.Clear()
		return
	}
	anchor := grid.Anchor(el.Rect, v.camera.Matrix())
	switch el.Kind {
	case render.KindDestination:
		v.engine.Confirm(el.Coord)
	case render.KindCreature:
		if v.engine.ClickCreature(el.CreatureID) {
			return
		}
		v.focus.ClickCreature(el.CreatureID, anchor)
	case render.KindAnnotation:
		v.focus.ClickAnnotation(el.Coord, anchor)
	}
}

// Cancel closes the popover and drops any overlay.
func (v *Viewport) Cancel() {
	v.engine.Cancel()
	v.focus.Clear()
}

type action struct {
	label string
	run   func(creatureID string)
}

func (v *Viewport) menuActions() []action {
	menu, ok := v.focus.Current().(focus.Menu)
	if !ok {
		return nil
	}
	id := menu.CreatureID
	controls := v.playerID == ""
	if !controls {
		if p, ok := v.world.Players[v.playerID]; ok {
			for _, c := range p.Creatures {
				controls = controls || c == id
			}
		}
	}
	if !controls {
		return nil
	}

	acts := []action{{ActionWalk, func(cid string) { v.engine.RequestWalk(v.ctx, cid) }}}
	if v.playerID == "" {
		acts = append(acts, action{ActionTeleport, v.engine.RequestTeleport})
	}
	combat := v.world.Combat
	if actor, ok := v.world.CombatActor(); ok && actor == id && combat.SceneID == v.sceneID {
		acts = append(acts, action{ActionCombatMove, func(string) { v.engine.RequestCombatMove(v.ctx) }})
		c, _ := v.world.Creature(id)
		for _, abilityID := range c.Abilities {
			ability, ok := v.world.Ability(abilityID)
			if !ok {
				continue
			}
			acts = append(acts, action{ability.Name, func(cid string) {
				v.engine.RequestCombatAbilityTarget(cid, ability.ID)
			}})
		}
	}
	return acts
}

// MenuActions labels the entries of the open creature menu.
func (v *Viewport) MenuActions() []string {
	acts := v.menuActions()
	if len(acts) == 0 {
		return nil
	}
	labels := make([]string, len(acts))
	for i, a := range acts {
		labels[i] = a.label
	}
	return labels
}

// Activate runs the menu entry with the given label and closes the menu.
func (v *Viewport) Activate(label string) bool {
	menu, ok := v.focus.Current().(focus.Menu)
	if !ok {
		return false
	}
	for _, a := range v.menuActions() {
		if a.label == label {
			v.focus.Clear()
			a.run(menu.CreatureID)
			return true
		}
	}
	return false
}

// OpenEditor starts a terrain draft of mapID. Only the GM edits maps.
func (v *Viewport) OpenEditor(mapID string) bool {
	if v.playerID != "" {
		return false
	}
	m, ok := v.world.Map(mapID)
	if !ok {
		v.log.Warn("cannot edit unknown map", "map", mapID)
		return false
	}
	v.Cancel()
	v.draft = draft.New(m, v.editWindow, v.log)
	v.fittedMap = ""
	v.fit()
	return true
}

// CloseEditor drops the draft without saving.
func (v *Viewport) CloseEditor() {
	v.draft = nil
	v.fittedMap = ""
	v.fit()
}

func (v *Viewport) SaveEditor() {
	if v.draft == nil {
		return
	}
	v.draft.Save(v.dispatcher)
}
