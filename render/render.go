// Package render projects a game snapshot and the grid's interaction state onto an ordered
// list of drawable elements. It keeps no state; drawing backends walk the list in order.
package render

import (
	"sort"

	"tactical-grid/draft"
	"tactical-grid/focus"
	"tactical-grid/game"
	"tactical-grid/grid"
	"tactical-grid/targeting"
)

// Layer fixes the draw order. Elements of a lower layer are always drawn first.
type Layer int

const (
	LayerBackground Layer = iota
	LayerTerrain
	LayerSpecial
	LayerAnnotation
	LayerCreature
	LayerMovement
	LayerOverlay
)

type Kind int

const (
	KindBackground Kind = iota
	KindTerrain
	KindClosedTile
	KindSpecial
	KindAnnotation
	KindCreature
	KindDestination
	KindMenu
	KindPopover
	KindPlaceholder
)

func (k Kind) String() string {
	switch k {
	case KindBackground:
		return "background"
	case KindTerrain:
		return "terrain"
	case KindClosedTile:
		return "closed"
	case KindSpecial:
		return "special"
	case KindAnnotation:
		return "annotation"
	case KindCreature:
		return "creature"
	case KindDestination:
		return "destination"
	case KindMenu:
		return "menu"
	case KindPopover:
		return "popover"
	case KindPlaceholder:
		return "placeholder"
	}
	return "unknown"
}

const (
	strokeThin  = 1
	strokeThick = 3

	gmOnlyOpacity = 0.4
	noClassColor  = "grey"
)

// Element is one drawable. Rect is in world units except for overlay elements, which are
// positioned in screen space by Anchor.
type Element struct {
	Layer Layer
	Kind  Kind
	Key   string

	Coord  game.TileCoordinate
	Rect   grid.Rect
	Anchor grid.Quad

	Fill        string
	FillOpacity float64
	Opacity     float64
	Stroke      string
	StrokeWidth float64

	Label string
	Image string
	Items []string

	CreatureID string
	Clickable  bool
}

// Frame is everything the play view draws. An empty PlayerID renders for the GM.
type Frame struct {
	World     game.State
	SceneID   string
	PlayerID  string
	Movement  *targeting.MovementOverlay
	Targeting *targeting.TargetingOverlay
	Focus     focus.Focus
	// MenuItems labels the entries of the open creature menu, if any.
	MenuItems []string
}

func (f Frame) gm() bool { return f.PlayerID == "" }

// Render lays out the scene. A scene or map that does not resolve yields a single placeholder.
func Render(f Frame) []Element {
	scene, ok := f.World.Scene(f.SceneID)
	if !ok {
		return []Element{placeholder("scene-missing", "Couldn't find scene")}
	}
	m, ok := f.World.Map(scene.MapID)
	if !ok {
		return []Element{placeholder("map-missing", "Couldn't find map")}
	}

	var out []Element
	if scene.Background != "" {
		out = append(out, Element{Layer: LayerBackground, Kind: KindBackground, Key: "scene-background", Image: scene.Background, Opacity: 1})
	}
	out = append(out, mapBackground(m.Background)...)

	openFill := "white"
	if m.Background.ImgPath != "" {
		openFill = "transparent"
	}
	for _, c := range m.Terrain {
		out = append(out, tile(LayerTerrain, KindTerrain, "terrain", c, openFill, 1))
	}
	out = append(out, specials(m.Specials, f.gm(), true)...)
	out = append(out, creatures(f, scene)...)

	if mv := f.Movement; mv != nil {
		for _, c := range mv.Destinations {
			el := tile(LayerMovement, KindDestination, "move", c, "cyan", 0.4)
			el.CreatureID = mv.Subject
			el.Clickable = true
			out = append(out, el)
		}
	}
	out = append(out, overlays(f, scene, m)...)
	return out
}

// EditorFrame is what the terrain editor draws: the draft instead of the server's map.
type EditorFrame struct {
	Background game.Background
	Draft      *draft.Draft
}

// RenderEditor lays out a terrain draft. Every open tile and every closed tile in the editing
// window is clickable; specials and annotations are shown but inert.
func RenderEditor(f EditorFrame) []Element {
	out := mapBackground(f.Background)
	for _, c := range f.Draft.Terrain() {
		el := tile(LayerTerrain, KindTerrain, "open", c, "white", 0)
		el.Clickable = true
		out = append(out, el)
	}
	for _, c := range f.Draft.ClosedTiles() {
		el := tile(LayerTerrain, KindClosedTile, "closed", c, "black", 0.5)
		el.Clickable = true
		out = append(out, el)
	}
	out = append(out, specials(f.Draft.Specials(), true, false)...)
	return out
}

// HitTest finds the topmost clickable world element containing p.
func HitTest(elements []Element, p grid.Point) (Element, bool) {
	for i := len(elements) - 1; i >= 0; i-- {
		el := elements[i]
		if !el.Clickable || el.Layer == LayerOverlay {
			continue
		}
		if el.Rect.Contains(p) {
			return el, true
		}
	}
	return Element{}, false
}

func placeholder(key, label string) Element {
	return Element{Layer: LayerOverlay, Kind: KindPlaceholder, Key: key, Label: label, Opacity: 1}
}

func mapBackground(bg game.Background) []Element {
	if bg.ImgPath == "" {
		return nil
	}
	return []Element{{
		Layer:   LayerBackground,
		Kind:    KindBackground,
		Key:     "map-background",
		Rect:    grid.Rect{X: bg.Offset[0], Y: bg.Offset[1], W: bg.Scale[0], H: bg.Scale[1]},
		Image:   bg.ImgPath,
		Opacity: 1,
	}}
}

func tile(layer Layer, kind Kind, prefix string, c game.TileCoordinate, fill string, fillOpacity float64) Element {
	return Element{
		Layer:       layer,
		Kind:        kind,
		Key:         prefix + "-" + c.String(),
		Coord:       c,
		Rect:        grid.TileRect(c, game.Footprint{}),
		Fill:        fill,
		FillOpacity: fillOpacity,
		Opacity:     1,
		Stroke:      "black",
		StrokeWidth: strokeThin,
	}
}

// specials draws special tiles and, one layer up, the markers of those carrying a note.
// GM-only tiles are left out entirely unless gm is set.
func specials(ss []game.SpecialTile, gm, clickableNotes bool) []Element {
	var tiles, notes []Element
	for _, s := range ss {
		hidden := s.Visibility == game.GMOnly
		if hidden && !gm {
			continue
		}
		el := tile(LayerSpecial, KindSpecial, "special", s.Coord, s.Color, 0.5)
		if hidden {
			el.Label = "GM"
		}
		tiles = append(tiles, el)
		if s.Note == "" {
			continue
		}
		note := tile(LayerAnnotation, KindAnnotation, "note", s.Coord, "white", 0)
		note.Stroke = ""
		note.StrokeWidth = 0
		note.Label = "*"
		note.Clickable = clickableNotes
		notes = append(notes, note)
	}
	return append(tiles, notes...)
}

func creatures(f Frame, scene game.Scene) []Element {
	ids := make([]string, 0, len(scene.Creatures))
	for id := range scene.Creatures {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	actor, inCombat := "", false
	if f.World.Combat != nil && f.World.Combat.SceneID == scene.ID {
		actor, inCombat = f.World.CombatActor()
	}

	var out []Element
	for _, id := range ids {
		p := scene.Creatures[id]
		hidden := p.Visibility == game.GMOnly
		if hidden && !f.gm() {
			continue
		}
		c, ok := f.World.Creature(id)
		if !ok {
			el := tile(LayerCreature, KindPlaceholder, "missing", p.Pos, "white", 0)
			el.Label = "?"
			el.CreatureID = id
			out = append(out, el)
			continue
		}
		el := Element{
			Layer:       LayerCreature,
			Kind:        KindCreature,
			Key:         "creature-" + id,
			Coord:       p.Pos,
			Rect:        grid.TileRect(p.Pos, c.Size),
			FillOpacity: 1,
			Opacity:     1,
			Stroke:      "black",
			StrokeWidth: strokeThin,
			CreatureID:  id,
			Clickable:   true,
		}
		if c.Portrait != "" {
			el.Image = c.Portrait
			el.Fill = "white"
		} else {
			el.Fill = noClassColor
			if class, ok := f.World.Class(c.ClassID); ok && class.Color != "" {
				el.Fill = class.Color
			}
			el.Label = c.Initials()
		}
		if hidden {
			el.Opacity = gmOnlyOpacity
		}
		if inCombat && actor == id {
			el.StrokeWidth = strokeThick
		}
		if t := f.Targeting; t != nil && t.Eligible[id] {
			el.Stroke = "red"
			el.StrokeWidth = strokeThick
		}
		out = append(out, el)
	}
	return out
}

func overlays(f Frame, scene game.Scene, m game.Map) []Element {
	switch cur := f.Focus.(type) {
	case focus.Menu:
		if _, inScene := scene.Creatures[cur.CreatureID]; !inScene {
			return nil
		}
		c, ok := f.World.Creature(cur.CreatureID)
		if !ok {
			return nil
		}
		return []Element{{
			Layer:      LayerOverlay,
			Kind:       KindMenu,
			Key:        "menu-" + c.ID,
			Anchor:     cur.Anchor,
			Label:      c.Name,
			Items:      f.MenuItems,
			CreatureID: c.ID,
			Opacity:    1,
			Clickable:  true,
		}}
	case focus.Annotation:
		s, ok := m.Special(cur.Coord)
		if !ok || s.Note == "" || (s.Visibility == game.GMOnly && !f.gm()) {
			return nil
		}
		return []Element{{
			Layer:     LayerOverlay,
			Kind:      KindPopover,
			Key:       "popover-" + s.Coord.String(),
			Coord:     s.Coord,
			Anchor:    cur.Anchor,
			Label:     s.Note,
			Opacity:   1,
			Clickable: true,
		}}
	}
	return nil
}
