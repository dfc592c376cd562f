package focus

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"

	"tactical-grid/game"
	"tactical-grid/grid"
)

var anchor = grid.Rect{X: 1, Y: 2, W: 3, H: 4}.Corners()

func TestStartsEmpty(t *testing.T) {
	m := NewMachine(nil)
	assert.Equal(t, None{}, m.Current())
}

func TestCreatureToggleLaw(t *testing.T) {
	m := NewMachine(nil)

	m.ClickCreature("c1", anchor)
	assert.Equal(t, Menu{CreatureID: "c1", Anchor: anchor}, m.Current())

	m.ClickCreature("c1", anchor)
	assert.Equal(t, None{}, m.Current(), "re-click closes")

	m.ClickCreature("d1", anchor)
	m.ClickCreature("c1", anchor)
	assert.Equal(t, Menu{CreatureID: "c1", Anchor: anchor}, m.Current(), "different creature replaces")
}

func TestMenuAnchorIsRecapturedOnReplace(t *testing.T) {
	m := NewMachine(nil)
	other := grid.Rect{X: 10, Y: 10, W: 1, H: 1}.Corners()

	m.ClickCreature("c1", anchor)
	m.ClickCreature("c2", other)

	assert.Equal(t, Menu{CreatureID: "c2", Anchor: other}, m.Current())
}

func TestAnnotationToggle(t *testing.T) {
	m := NewMachine(nil)
	pt := game.Pt(3, 0, 0)

	m.ClickAnnotation(pt, anchor)
	assert.Equal(t, Annotation{Coord: pt, Anchor: anchor}, m.Current())
	m.ClickAnnotation(pt, anchor)
	assert.Equal(t, None{}, m.Current())
}

func TestAnnotationReplacesMenu(t *testing.T) {
	m := NewMachine(nil)

	m.ClickCreature("c1", anchor)
	m.ClickAnnotation(game.Pt(3, 0, 0), anchor)
	assert.Equal(t, Annotation{Coord: game.Pt(3, 0, 0), Anchor: anchor}, m.Current())

	m.ClickCreature("c1", anchor)
	assert.Equal(t, Menu{CreatureID: "c1", Anchor: anchor}, m.Current())
}

func TestScenario(t *testing.T) {
	m := NewMachine(nil)

	m.ClickCreature("c1", anchor)
	assert.Equal(t, "c1", m.Current().(Menu).CreatureID)
	m.ClickCreature("c1", anchor)
	assert.Equal(t, None{}, m.Current())
	m.ClickCreature("c2", anchor)
	assert.Equal(t, "c2", m.Current().(Menu).CreatureID)
	m.ClickAnnotation(game.Pt(3, 0, 0), anchor)
	assert.Equal(t, game.Pt(3, 0, 0), m.Current().(Annotation).Coord)
}

// Focus is a single value, so exclusivity holds by construction; this walks random click
// sequences to make sure every transition still lands on a known variant.
func TestRandomSequencesStayExclusive(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	m := NewMachine(nil)
	creatures := []string{"c1", "c2", "c3"}
	tiles := []game.TileCoordinate{game.Pt(0, 0, 0), game.Pt(3, 0, 0)}

	for i := 0; i < 500; i++ {
		switch rng.Intn(3) {
		case 0:
			m.ClickCreature(creatures[rng.Intn(len(creatures))], anchor)
		case 1:
			m.ClickAnnotation(tiles[rng.Intn(len(tiles))], anchor)
		default:
			m.Clear()
		}
		switch m.Current().(type) {
		case None, Menu, Annotation:
		default:
			t.Fatalf("unexpected focus %T", m.Current())
		}
	}
}
