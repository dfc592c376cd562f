package viewport_test

import (
	"context"
	"math"
	"testing"
	"time"

	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"

	"tactical-grid/focus"
	"tactical-grid/game"
	"tactical-grid/gesture"
	"tactical-grid/grid"
	"tactical-grid/mocks"
	"tactical-grid/viewport"
)

const sceneID = "common-room"

// at is the screen centre of a tile under the default camera.
func at(x, y int) grid.Point {
	return grid.Point{X: float64(x)*grid.TileSize + grid.TileSize/2, Y: float64(y) * grid.TileSize}
}

type ViewportTestSuite struct {
	suite.Suite
	ctrl       *gomock.Controller
	query      *mocks.MockMovementQuery
	dispatcher *mocks.MockDispatcher
	sched      *gesture.ManualScheduler
	posted     chan func()
	world      game.State
}

func (s *ViewportTestSuite) SetupTest() {
	s.ctrl = gomock.NewController(s.T())
	s.query = mocks.NewMockMovementQuery(s.ctrl)
	s.dispatcher = mocks.NewMockDispatcher(s.ctrl)
	s.sched = gesture.NewManualScheduler()
	s.posted = make(chan func(), 8)

	s.world = game.NewState()
	s.world.Abilities["punch"] = game.Ability{ID: "punch", Name: "Punch", Target: game.TargetSpec{Kind: game.TargetCreature, Range: 1}}
	s.world.Abilities["shout"] = game.Ability{ID: "shout", Name: "Shout", Target: game.TargetSpec{Kind: game.TargetActor}}
	m := s.world.Maps["tavern"]
	m.Specials = []game.SpecialTile{
		{Coord: game.Pt(3, 0, 0), Color: "red", Note: "trap", Visibility: game.AllPlayers},
		{Coord: game.Pt(4, 0, 0), Color: "blue", Note: "secret", Visibility: game.GMOnly},
	}
	s.world.Maps["tavern"] = m
	s.Require().NoError(s.world.AddCreature(sceneID, game.Creature{ID: "c1", Name: "Goblin", Speed: 3, Abilities: []string{"punch", "shout"}}, game.Pt(1, 1, 0), game.AllPlayers))
	s.Require().NoError(s.world.AddCreature(sceneID, game.Creature{ID: "c2", Name: "Orc", Speed: 2}, game.Pt(6, 3, 0), game.AllPlayers))
}

func (s *ViewportTestSuite) TearDownTest() {
	s.ctrl.Finish()
}

func (s *ViewportTestSuite) newViewport(playerID string) *viewport.Viewport {
	v := viewport.New(context.Background(), viewport.Config{
		PlayerID:   playerID,
		Query:      s.query,
		Dispatcher: s.dispatcher,
		Scheduler:  s.sched,
		Post:       func(f func()) { s.posted <- f },
	})
	v.SetSnapshot(s.world)
	return v
}

func (s *ViewportTestSuite) click(v *viewport.Viewport, p grid.Point) {
	v.PointerDown(p)
	s.sched.Advance(10 * time.Millisecond)
	v.PointerUp(p)
}

func (s *ViewportTestSuite) drain() {
	select {
	case f := <-s.posted:
		f()
	case <-time.After(2 * time.Second):
		s.FailNow("timed out waiting for posted callback")
	}
}

func (s *ViewportTestSuite) TestFocusScenario() {
	v := s.newViewport("")
	s.Equal(sceneID, v.SceneID())

	s.click(v, at(1, 1))
	s.Equal(focus.Menu{CreatureID: "c1", Anchor: grid.Rect{X: 100, Y: 50, W: 100, H: 100}.Corners()}, v.Focus())

	s.click(v, at(1, 1))
	s.Equal(focus.None{}, v.Focus())

	s.click(v, at(6, 3))
	s.Equal("c2", v.Focus().(focus.Menu).CreatureID)

	s.click(v, at(3, 0))
	s.Equal(focus.Annotation{Coord: game.Pt(3, 0, 0), Anchor: grid.Rect{X: 300, Y: -50, W: 100, H: 100}.Corners()}, v.Focus())
}

func (s *ViewportTestSuite) TestDragOverTokenIsNotAClick() {
	v := s.newViewport("")

	v.PointerDown(at(0, 0))
	v.PointerMove(grid.Point{X: 100, Y: 50})
	v.PointerMove(at(1, 1))
	v.PointerUp(at(1, 1))

	s.Equal(focus.None{}, v.Focus())
	s.InDelta(100, v.Camera().PanX, 1e-9)
	s.InDelta(100, v.Camera().PanY, 1e-9)
}

func (s *ViewportTestSuite) TestLongPressIsNotAClick() {
	v := s.newViewport("")

	v.PointerDown(at(1, 1))
	s.sched.Advance(gesture.DefaultClickWindow)
	s.Equal(gesture.Allowed, v.GestureState())
	v.PointerUp(at(1, 1))

	s.Equal(focus.None{}, v.Focus())
	s.Equal(gesture.Idle, v.GestureState())
}

func (s *ViewportTestSuite) TestClickAwayClosesMenu() {
	v := s.newViewport("")

	s.click(v, at(1, 1))
	s.click(v, at(0, 0))

	s.Equal(focus.None{}, v.Focus())
}

func (s *ViewportTestSuite) TestWalkFromMenu() {
	v := s.newViewport("")
	s.query.EXPECT().MovementOptions(gomock.Any(), sceneID, "c1").Return([]game.TileCoordinate{game.Pt(2, 1, 0)}, nil)
	s.dispatcher.EXPECT().Dispatch(game.MoveCreature(sceneID, "c1", game.Pt(2, 1, 0)))

	s.click(v, at(1, 1))
	s.Equal([]string{viewport.ActionWalk, viewport.ActionTeleport}, v.MenuActions())
	s.True(v.Activate(viewport.ActionWalk))
	s.Equal(focus.None{}, v.Focus(), "choosing an action closes the menu")
	s.drain()

	s.click(v, at(2, 1))

	_, shown := v.Engine().Movement()
	s.False(shown)
}

func (s *ViewportTestSuite) TestTeleportFromMenu() {
	v := s.newViewport("")
	s.dispatcher.EXPECT().Dispatch(game.SetCreaturePos(sceneID, "c1", game.Pt(9, 7, 0)))

	s.click(v, at(1, 1))
	s.True(v.Activate(viewport.ActionTeleport))
	s.click(v, at(9, 7))
}

func (s *ViewportTestSuite) TestUnknownActionIsRejected() {
	v := s.newViewport("")

	s.False(v.Activate(viewport.ActionWalk), "no menu open")
	s.click(v, at(1, 1))
	s.False(v.Activate("Dance"))
}

func (s *ViewportTestSuite) TestPlayerView() {
	s.world.Players["alice"] = game.Player{ID: "alice", SceneID: sceneID, Creatures: []string{"c1"}}
	v := s.newViewport("alice")
	s.Equal(sceneID, v.SceneID())

	s.click(v, at(4, 0))
	s.Equal(focus.None{}, v.Focus(), "GM notes are not clickable for players")

	s.click(v, at(1, 1))
	s.Equal([]string{viewport.ActionWalk}, v.MenuActions())

	s.click(v, at(6, 3))
	s.Empty(v.MenuActions(), "players only command their own creatures")

	s.False(v.OpenEditor("tavern"))
}

func (s *ViewportTestSuite) TestCombatAbilityTargeting() {
	scene := s.world.Scenes[sceneID]
	scene.Creatures["c2"] = game.Placement{Pos: game.Pt(2, 1, 0), Visibility: game.AllPlayers}
	s.world.Combat = &game.Combat{SceneID: sceneID, Combatants: []game.Combatant{{CreatureID: "c1"}, {CreatureID: "c2"}}}
	v := s.newViewport("")
	s.dispatcher.EXPECT().Dispatch(game.CombatAct("punch", game.DecidedTarget{Kind: game.TargetCreature, CreatureID: "c2"}))

	s.click(v, at(1, 1))
	s.Equal([]string{viewport.ActionWalk, viewport.ActionTeleport, viewport.ActionCombatMove, "Punch", "Shout"}, v.MenuActions())
	s.True(v.Activate("Punch"))
	tg, ok := v.Engine().Targeting()
	s.Require().True(ok)
	s.Equal(map[string]bool{"c1": true, "c2": true}, tg.Eligible)

	s.click(v, at(2, 1))

	s.Equal(focus.None{}, v.Focus(), "the targeting click does not open a menu")
	_, ok = v.Engine().Targeting()
	s.False(ok)
}

func (s *ViewportTestSuite) TestActorAbilityFiresImmediately() {
	s.world.Combat = &game.Combat{SceneID: sceneID, Combatants: []game.Combatant{{CreatureID: "c1"}}}
	v := s.newViewport("")
	s.dispatcher.EXPECT().Dispatch(game.CombatAct("shout", game.DecidedTarget{Kind: game.TargetActor}))

	s.click(v, at(1, 1))
	s.True(v.Activate("Shout"))
}

func (s *ViewportTestSuite) TestCombatMove() {
	s.world.Combat = &game.Combat{SceneID: sceneID, Combatants: []game.Combatant{{CreatureID: "c1"}}}
	v := s.newViewport("")
	s.query.EXPECT().MovementOptions(gomock.Any(), sceneID, "").Return([]game.TileCoordinate{game.Pt(1, 2, 0)}, nil)
	s.dispatcher.EXPECT().Dispatch(game.MoveCombatCreature(game.Pt(1, 2, 0)))

	s.click(v, at(1, 1))
	s.True(v.Activate(viewport.ActionCombatMove))
	s.drain()
	s.click(v, at(1, 2))
}

func (s *ViewportTestSuite) TestSceneChangeDropsOverlays() {
	s.world.Scenes["yard"] = game.Scene{ID: "yard", MapID: "tavern", Creatures: map[string]game.Placement{}}
	v := s.newViewport("")
	s.Equal(sceneID, v.SceneID())

	s.click(v, at(1, 1))
	v.Engine().RequestTeleport("c1")
	s.Equal("c1", v.Focus().(focus.Menu).CreatureID)
	v.FocusScene("yard")

	_, shown := v.Engine().Movement()
	s.False(shown)
	s.Equal(focus.None{}, v.Focus())
}

func (s *ViewportTestSuite) TestEditor() {
	v := s.newViewport("")
	s.Require().True(v.OpenEditor("tavern"))

	s.click(v, at(15, 0))
	d, ok := v.Draft()
	s.Require().True(ok)
	s.True(d.IsOpen(game.Pt(15, 0, 0)))

	s.click(v, at(1, 1))
	s.False(d.IsOpen(game.Pt(1, 1, 0)), "creatures are not drawn in the editor")

	s.dispatcher.EXPECT().Dispatch(gomock.Any()).Do(func(cmd game.Command) {
		s.Equal(game.CmdEditMapTerrain, cmd.Type)
		p := cmd.Payload.(game.EditMapTerrainPayload)
		s.Equal("tavern", p.MapID)
		s.Len(p.Terrain, 96)
		s.Len(p.Specials, 2)
	})
	v.SaveEditor()

	m := s.world.Maps["tavern"]
	m.Terrain = append(m.Terrain, game.Pt(20, 20, 0))
	s.world.Maps["tavern"] = m
	v.SetSnapshot(s.world)
	s.False(d.IsOpen(game.Pt(15, 0, 0)), "a server change replaces the draft")
	s.True(d.IsOpen(game.Pt(20, 20, 0)))

	v.CloseEditor()
	_, ok = v.Draft()
	s.False(ok)
}

func (s *ViewportTestSuite) TestWheelZoomsAboutPointer() {
	v := s.newViewport("")
	p := at(1, 1)
	before := v.Camera().ScreenToWorld(p)

	v.Wheel(p, 1)

	cam := v.Camera()
	s.InDelta(1.3, cam.Zoom, 1e-9)
	after := cam.ScreenToWorld(p)
	s.InDelta(before.X, after.X, 1e-9)
	s.InDelta(before.Y, after.Y, 1e-9)
}

func (s *ViewportTestSuite) TestResizeFitsMap() {
	v := s.newViewport("")

	v.Resize(1200, 800)

	cam := v.Camera()
	s.InDelta(1/1.3, cam.Zoom, 1e-9)
	centre := cam.WorldToScreen(grid.Point{X: 600, Y: 350})
	s.InDelta(600, centre.X, 1e-9)
	s.InDelta(400, centre.Y, 1e-9)
	s.False(math.IsNaN(cam.PanX))
}

func TestViewportTestSuite(t *testing.T) {
	suite.Run(t, new(ViewportTestSuite))
}
