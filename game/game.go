package game

import (
	"encoding/json"
	"fmt"
)

// TileCoordinate identifies one grid cell. It is comparable and used directly as a map key.
// On the wire it is a three-element array, [x, y, layer].
type TileCoordinate struct {
	X int
	Y int
	Z int
}

func Pt(x, y, z int) TileCoordinate {
	return TileCoordinate{X: x, Y: y, Z: z}
}

func (c TileCoordinate) String() string {
	return fmt.Sprintf("%d/%d/%d", c.X, c.Y, c.Z)
}

// Add offsets c by dx, dy on the same layer.
func (c TileCoordinate) Add(dx, dy int) TileCoordinate {
	return TileCoordinate{X: c.X + dx, Y: c.Y + dy, Z: c.Z}
}

// Chebyshev returns the king-move distance between two tiles, or -1 across layers.
func (c TileCoordinate) Chebyshev(o TileCoordinate) int {
	if c.Z != o.Z {
		return -1
	}
	return max(abs(c.X-o.X), abs(c.Y-o.Y))
}

func (c TileCoordinate) MarshalJSON() ([]byte, error) {
	return json.Marshal([3]int{c.X, c.Y, c.Z})
}

func (c *TileCoordinate) UnmarshalJSON(data []byte) error {
	var raw [3]int
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("tile coordinate: %w", err)
	}
	*c = TileCoordinate{X: raw[0], Y: raw[1], Z: raw[2]}
	return nil
}

func abs(n int) int {
	if n < 0 {
		return -n
	}
	return n
}

// Footprint is the width and height in tiles a token occupies.
type Footprint struct {
	W int `json:"w"`
	H int `json:"h"`
}

// Normalize treats a zero footprint as a single tile.
func (f Footprint) Normalize() Footprint {
	if f.W <= 0 {
		f.W = 1
	}
	if f.H <= 0 {
		f.H = 1
	}
	return f
}

// Covers lists every tile a footprint anchored at origin occupies.
func (f Footprint) Covers(origin TileCoordinate) []TileCoordinate {
	f = f.Normalize()
	tiles := make([]TileCoordinate, 0, f.W*f.H)
	for dx := 0; dx < f.W; dx++ {
		for dy := 0; dy < f.H; dy++ {
			tiles = append(tiles, origin.Add(dx, dy))
		}
	}
	return tiles
}

type Visibility string

const (
	AllPlayers Visibility = "AllPlayers"
	GMOnly     Visibility = "GMOnly"
)

type SpecialTile struct {
	Coord      TileCoordinate `json:"coord"`
	Color      string         `json:"color"`
	Note       string         `json:"note"`
	Visibility Visibility     `json:"visibility"`
}

type Background struct {
	ImgPath string     `json:"imgPath"`
	Scale   [2]float64 `json:"scale"`
	Offset  [2]float64 `json:"offset"`
}

type Map struct {
	ID         string           `json:"id"`
	Name       string           `json:"name"`
	Terrain    []TileCoordinate `json:"terrain"`
	Specials   []SpecialTile    `json:"specials"`
	Background Background       `json:"background"`
}

// IsOpen reports whether the tile is walkable terrain.
func (m Map) IsOpen(c TileCoordinate) bool {
	for _, t := range m.Terrain {
		if t == c {
			return true
		}
	}
	return false
}

func (m Map) Special(c TileCoordinate) (SpecialTile, bool) {
	for _, s := range m.Specials {
		if s.Coord == c {
			return s, true
		}
	}
	return SpecialTile{}, false
}

type Class struct {
	ID    string `json:"id"`
	Color string `json:"color"`
}

type Creature struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	ClassID   string    `json:"classId"`
	Portrait  string    `json:"portrait"`
	Size      Footprint `json:"size"`
	Speed     int       `json:"speed"`
	Abilities []string  `json:"abilities"`
}

// Initials is the short label drawn on tokens without a portrait.
func (c Creature) Initials() string {
	r := []rune(c.Name)
	if len(r) > 4 {
		r = r[:4]
	}
	return string(r)
}

type TargetKind string

const (
	TargetActor    TargetKind = "Actor"
	TargetCreature TargetKind = "Creature"
)

type TargetSpec struct {
	Kind  TargetKind `json:"kind"`
	Range int        `json:"range"`
}

type Ability struct {
	ID     string     `json:"id"`
	Name   string     `json:"name"`
	Target TargetSpec `json:"target"`
}

type Placement struct {
	Pos        TileCoordinate `json:"pos"`
	Visibility Visibility     `json:"visibility"`
}

type Scene struct {
	ID         string               `json:"id"`
	Name       string               `json:"name"`
	MapID      string               `json:"mapId"`
	Background string               `json:"background"`
	Creatures  map[string]Placement `json:"creatures"`
}

type Player struct {
	ID        string   `json:"id"`
	SceneID   string   `json:"sceneId"`
	Creatures []string `json:"creatures"`
}

type Combatant struct {
	CreatureID string `json:"creatureId"`
	Initiative int    `json:"initiative"`
}

type Combat struct {
	SceneID      string      `json:"sceneId"`
	Combatants   []Combatant `json:"combatants"`
	Cursor       int         `json:"cursor"`
	MovementUsed int         `json:"movementUsed"`
}

// Actor returns the creature holding the current turn.
func (c *Combat) Actor() (string, bool) {
	if c == nil || len(c.Combatants) == 0 {
		return "", false
	}
	return c.Combatants[c.Cursor%len(c.Combatants)].CreatureID, true
}

// NextTurn advances the cursor circularly and resets spent movement.
func (c *Combat) NextTurn() {
	if len(c.Combatants) == 0 {
		return
	}
	c.Cursor = (c.Cursor + 1) % len(c.Combatants)
	c.MovementUsed = 0
}
