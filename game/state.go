package game

import (
	"encoding/json"
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrIllegalMove = errors.New("illegal move")
	ErrNoCombat    = errors.New("no combat in progress")
	ErrOutOfRange  = errors.New("target out of range")
)

// State is the authoritative game snapshot. The server owns and mutates it;
// clients only ever read a copy and send Commands.
type State struct {
	Maps      map[string]Map      `json:"maps"`
	Scenes    map[string]Scene    `json:"scenes"`
	Creatures map[string]Creature `json:"creatures"`
	Classes   map[string]Class    `json:"classes"`
	Abilities map[string]Ability  `json:"abilities"`
	Players   map[string]Player   `json:"players"`
	Combat    *Combat             `json:"combat,omitempty"`
}

// NewState returns a session's starting state: one open 12x8 map with a single scene on it.
func NewState() State {
	terrain := make([]TileCoordinate, 0, 12*8)
	for x := 0; x < 12; x++ {
		for y := 0; y < 8; y++ {
			terrain = append(terrain, Pt(x, y, 0))
		}
	}
	return State{
		Maps: map[string]Map{
			"tavern": {
				ID:      "tavern",
				Name:    "Tavern",
				Terrain: terrain,
				Background: Background{
					ImgPath: "/assets/default/maps/tavern.jpg",
					Scale:   [2]float64{1200, 800},
					Offset:  [2]float64{0, -50},
				},
			},
		},
		Scenes: map[string]Scene{
			"common-room": {
				ID:        "common-room",
				Name:      "Common Room",
				MapID:     "tavern",
				Creatures: map[string]Placement{},
			},
		},
		Creatures: map[string]Creature{},
		Classes:   map[string]Class{},
		Abilities: map[string]Ability{},
		Players:   map[string]Player{},
	}
}

// DecodeState reads a JSON snapshot into a State that is safe to mutate.
func DecodeState(data []byte) (State, error) {
	var s State
	if err := json.Unmarshal(data, &s); err != nil {
		return State{}, fmt.Errorf("decode state: %w", err)
	}
	s.ensureMaps()
	for id, scene := range s.Scenes {
		if scene.Creatures == nil {
			scene.Creatures = map[string]Placement{}
			s.Scenes[id] = scene
		}
	}
	return s, nil
}

// ensureMaps initialises nil collections so that a decoded snapshot can be mutated safely.
func (s *State) ensureMaps() {
	if s.Maps == nil {
		s.Maps = map[string]Map{}
	}
	if s.Scenes == nil {
		s.Scenes = map[string]Scene{}
	}
	if s.Creatures == nil {
		s.Creatures = map[string]Creature{}
	}
	if s.Classes == nil {
		s.Classes = map[string]Class{}
	}
	if s.Abilities == nil {
		s.Abilities = map[string]Ability{}
	}
	if s.Players == nil {
		s.Players = map[string]Player{}
	}
}

func (s State) Creature(id string) (Creature, bool) {
	c, ok := s.Creatures[id]
	return c, ok
}

func (s State) Scene(id string) (Scene, bool) {
	sc, ok := s.Scenes[id]
	return sc, ok
}

func (s State) Map(id string) (Map, bool) {
	m, ok := s.Maps[id]
	return m, ok
}

func (s State) Ability(id string) (Ability, bool) {
	a, ok := s.Abilities[id]
	return a, ok
}

func (s State) Class(id string) (Class, bool) {
	c, ok := s.Classes[id]
	return c, ok
}

// CombatActor is the creature whose turn it is, if a combat is running.
func (s State) CombatActor() (string, bool) {
	return s.Combat.Actor()
}

// PlayerScene is the scene a player is currently looking at.
func (s State) PlayerScene(playerID string) (Scene, bool) {
	p, ok := s.Players[playerID]
	if !ok || p.SceneID == "" {
		return Scene{}, false
	}
	return s.Scene(p.SceneID)
}

// AddCreature registers a creature and places it in a scene.
func (s *State) AddCreature(sceneID string, c Creature, pos TileCoordinate, vis Visibility) error {
	s.ensureMaps()
	scene, ok := s.Scenes[sceneID]
	if !ok {
		return ErrNotFound
	}
	if scene.Creatures == nil {
		scene.Creatures = map[string]Placement{}
	}
	if vis == "" {
		vis = AllPlayers
	}
	s.Creatures[c.ID] = c
	scene.Creatures[c.ID] = Placement{Pos: pos, Visibility: vis}
	s.Scenes[sceneID] = scene
	return nil
}

func (s *State) setPos(sceneID, creatureID string, pos TileCoordinate) {
	scene := s.Scenes[sceneID]
	p := scene.Creatures[creatureID]
	p.Pos = pos
	scene.Creatures[creatureID] = p
	s.Scenes[sceneID] = scene
}
