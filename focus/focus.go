// Package focus tracks the single open popover on the grid: either a creature's action
// menu or a special tile's annotation, never both.
package focus

import (
	"log/slog"

	"tactical-grid/game"
	"tactical-grid/grid"
)

// Focus is one of None, Menu or Annotation.
type Focus interface {
	isFocus()
}

type None struct{}

// Menu is an open creature action menu anchored at the token's screen quad.
type Menu struct {
	CreatureID string
	Anchor     grid.Quad
}

// Annotation is an open note popover for a special tile.
type Annotation struct {
	Coord  game.TileCoordinate
	Anchor grid.Quad
}

func (None) isFocus()       {}
func (Menu) isFocus()       {}
func (Annotation) isFocus() {}

type Machine struct {
	current Focus
	log     *slog.Logger
}

func NewMachine(log *slog.Logger) *Machine {
	if log == nil {
		log = slog.Default()
	}
	return &Machine{current: None{}, log: log}
}

func (m *Machine) Current() Focus { return m.current }

// ClickCreature closes the menu if it already belongs to creatureID, otherwise opens a menu
// for creatureID in place of whatever was open.
func (m *Machine) ClickCreature(creatureID string, anchor grid.Quad) {
	if cur, ok := m.current.(Menu); ok && cur.CreatureID == creatureID {
		m.set(None{})
		return
	}
	m.set(Menu{CreatureID: creatureID, Anchor: anchor})
}

// ClickAnnotation toggles the note popover for coord the same way ClickCreature toggles menus.
func (m *Machine) ClickAnnotation(coord game.TileCoordinate, anchor grid.Quad) {
	if cur, ok := m.current.(Annotation); ok && cur.Coord == coord {
		m.set(None{})
		return
	}
	m.set(Annotation{Coord: coord, Anchor: anchor})
}

// Clear closes whatever is open.
func (m *Machine) Clear() {
	m.set(None{})
}

func (m *Machine) set(f Focus) {
	m.log.Debug("focus changed", "from", describe(m.current), "to", describe(f))
	m.current = f
}

func describe(f Focus) string {
	switch f := f.(type) {
	case Menu:
		return "menu:" + f.CreatureID
	case Annotation:
		return "annotation:" + f.Coord.String()
	}
	return "none"
}
