// Package draft holds uncommitted terrain and special-tile edits for one map.
package draft

import (
	"log/slog"
	"reflect"
	"sort"

	"tactical-grid/game"
)

// DefaultWindow is the edge, in tiles, of the square around the origin in which closed
// tiles are offered for painting. Open tiles are always editable wherever they are.
// TODO: follow the camera instead of the origin so large maps can be edited past ±20.
const DefaultWindow = 40

type Mode int

const (
	PaintTerrain Mode = iota
	PaintSpecial
)

func (m Mode) String() string {
	if m == PaintSpecial {
		return "special"
	}
	return "terrain"
}

// Brush is what PaintSpecial lays down.
type Brush struct {
	Color      string
	Note       string
	Visibility game.Visibility
}

func DefaultBrush() Brush {
	return Brush{Color: "white", Visibility: game.AllPlayers}
}

type Draft struct {
	mapID  string
	synced game.Map
	window int
	log    *slog.Logger

	terrain  map[game.TileCoordinate]struct{}
	specials map[game.TileCoordinate]game.SpecialTile

	mode  Mode
	brush Brush
}

func New(m game.Map, window int, log *slog.Logger) *Draft {
	if window <= 0 {
		window = DefaultWindow
	}
	if log == nil {
		log = slog.Default()
	}
	d := &Draft{window: window, log: log, brush: DefaultBrush()}
	d.reset(m)
	return d
}

func (d *Draft) reset(m game.Map) {
	d.mapID = m.ID
	d.synced = m
	d.terrain = make(map[game.TileCoordinate]struct{}, len(m.Terrain))
	for _, t := range m.Terrain {
		d.terrain[t] = struct{}{}
	}
	d.specials = make(map[game.TileCoordinate]game.SpecialTile, len(m.Specials))
	for _, s := range m.Specials {
		d.specials[s.Coord] = s
	}
}

// Sync throws away local edits whenever the server's copy of the map is a different map or
// has changed since the draft was taken. Edits are never merged. The paint mode and brush
// are editor settings, not edits, and survive a reset.
func (d *Draft) Sync(m game.Map) {
	if m.ID == d.mapID && reflect.DeepEqual(m, d.synced) {
		return
	}
	d.log.Debug("terrain draft reset", "map", m.ID, "previous", d.mapID)
	d.reset(m)
}

func (d *Draft) MapID() string { return d.mapID }
func (d *Draft) Mode() Mode    { return d.mode }
func (d *Draft) Brush() Brush  { return d.brush }

func (d *Draft) SetMode(m Mode)   { d.mode = m }
func (d *Draft) SetBrush(b Brush) { d.brush = b }

func (d *Draft) IsOpen(c game.TileCoordinate) bool {
	_, ok := d.terrain[c]
	return ok
}

// ToggleOpen flips whether c is open terrain.
func (d *Draft) ToggleOpen(c game.TileCoordinate) {
	if d.IsOpen(c) {
		delete(d.terrain, c)
		return
	}
	d.terrain[c] = struct{}{}
}

// ToggleSpecial adds a special tile painted with the current brush, or removes the one at c.
// It does nothing outside special-painting mode.
func (d *Draft) ToggleSpecial(c game.TileCoordinate) {
	if d.mode != PaintSpecial {
		return
	}
	if _, ok := d.specials[c]; ok {
		delete(d.specials, c)
		return
	}
	d.specials[c] = game.SpecialTile{Coord: c, Color: d.brush.Color, Note: d.brush.Note, Visibility: d.brush.Visibility}
}

// Paint applies a click on c according to the paint mode.
func (d *Draft) Paint(c game.TileCoordinate) {
	if d.mode == PaintSpecial {
		d.ToggleSpecial(c)
		return
	}
	d.ToggleOpen(c)
}

// Terrain is the draft's open tiles in row order.
func (d *Draft) Terrain() []game.TileCoordinate {
	out := make([]game.TileCoordinate, 0, len(d.terrain))
	for c := range d.terrain {
		out = append(out, c)
	}
	sortCoords(out)
	return out
}

// Specials is the draft's special tiles in row order.
func (d *Draft) Specials() []game.SpecialTile {
	coords := make([]game.TileCoordinate, 0, len(d.specials))
	for c := range d.specials {
		coords = append(coords, c)
	}
	sortCoords(coords)
	out := make([]game.SpecialTile, 0, len(coords))
	for _, c := range coords {
		out = append(out, d.specials[c])
	}
	return out
}

// ClosedTiles lists the closed tiles in the fixed editing window centred on the origin.
func (d *Draft) ClosedTiles() []game.TileCoordinate {
	half := d.window / 2
	var out []game.TileCoordinate
	for y := -half; y < d.window-half; y++ {
		for x := -half; x < d.window-half; x++ {
			c := game.Pt(x, y, 0)
			if !d.IsOpen(c) {
				out = append(out, c)
			}
		}
	}
	return out
}

// Save sends the whole draft as one terrain edit. The draft is left as is; the next Sync
// with the server's answer replaces it.
func (d *Draft) Save(dispatcher game.Dispatcher) {
	dispatcher.Dispatch(game.EditMapTerrain(d.mapID, d.Terrain(), d.Specials()))
}

func sortCoords(cs []game.TileCoordinate) {
	sort.Slice(cs, func(i, j int) bool {
		if cs[i].Z != cs[j].Z {
			return cs[i].Z < cs[j].Z
		}
		if cs[i].Y != cs[j].Y {
			return cs[i].Y < cs[j].Y
		}
		return cs[i].X < cs[j].X
	})
}
