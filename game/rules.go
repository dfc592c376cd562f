package game

import (
	"fmt"
	"sort"
)

// kingMoves are the 8-connected neighbour offsets.
var kingMoves = [8][2]int{{-1, -1}, {0, -1}, {1, -1}, {-1, 0}, {1, 0}, {-1, 1}, {0, 1}, {1, 1}}

// MovementOptions lists the tiles a creature can walk to this turn: a breadth-first search
// over open terrain, one tile per step, bounded by the creature's speed. The footprint must
// fit on open tiles not occupied by another creature.
func (s State) MovementOptions(sceneID, creatureID string) ([]TileCoordinate, error) {
	creature, ok := s.Creature(creatureID)
	if !ok {
		return nil, fmt.Errorf("creature %q: %w", creatureID, ErrNotFound)
	}
	opts, _, err := s.reachable(sceneID, creature, creature.Speed)
	return opts, err
}

// CombatMovementOptions is MovementOptions for the combat actor, bounded by its remaining movement.
func (s State) CombatMovementOptions() ([]TileCoordinate, error) {
	opts, _, err := s.combatReachable()
	return opts, err
}

func (s State) combatReachable() ([]TileCoordinate, map[TileCoordinate]int, error) {
	actorID, ok := s.CombatActor()
	if !ok {
		return nil, nil, ErrNoCombat
	}
	creature, ok := s.Creature(actorID)
	if !ok {
		return nil, nil, fmt.Errorf("combat actor %q: %w", actorID, ErrNotFound)
	}
	return s.reachable(s.Combat.SceneID, creature, max(creature.Speed-s.Combat.MovementUsed, 0))
}

// reachable also returns the walking distance to every tile it lists.
func (s State) reachable(sceneID string, creature Creature, budget int) ([]TileCoordinate, map[TileCoordinate]int, error) {
	scene, ok := s.Scene(sceneID)
	if !ok {
		return nil, nil, fmt.Errorf("scene %q: %w", sceneID, ErrNotFound)
	}
	placement, ok := scene.Creatures[creature.ID]
	if !ok {
		return nil, nil, fmt.Errorf("creature %q in scene %q: %w", creature.ID, sceneID, ErrNotFound)
	}
	m, ok := s.Map(scene.MapID)
	if !ok {
		return nil, nil, fmt.Errorf("map %q: %w", scene.MapID, ErrNotFound)
	}

	open := make(map[TileCoordinate]bool, len(m.Terrain))
	for _, t := range m.Terrain {
		open[t] = true
	}
	for id, p := range scene.Creatures {
		if id == creature.ID {
			continue
		}
		other := Footprint{W: 1, H: 1}
		if c, ok := s.Creature(id); ok {
			other = c.Size
		}
		for _, t := range other.Covers(p.Pos) {
			delete(open, t)
		}
	}
	fits := func(origin TileCoordinate) bool {
		for _, t := range creature.Size.Covers(origin) {
			if !open[t] {
				return false
			}
		}
		return true
	}

	start := placement.Pos
	dist := map[TileCoordinate]int{start: 0}
	queue := []TileCoordinate{start}
	var result []TileCoordinate
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		if dist[cur] == budget {
			continue
		}
		for _, mv := range kingMoves {
			next := cur.Add(mv[0], mv[1])
			if _, seen := dist[next]; seen || !fits(next) {
				continue
			}
			dist[next] = dist[cur] + 1
			queue = append(queue, next)
			result = append(result, next)
		}
	}
	sortCoords(result)
	return result, dist, nil
}

func sortCoords(cs []TileCoordinate) {
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

func contains(cs []TileCoordinate, c TileCoordinate) bool {
	for _, x := range cs {
		if x == c {
			return true
		}
	}
	return false
}

// MoveCreature walks a creature to dest; dest must be one of its movement options.
func (s *State) MoveCreature(sceneID, creatureID string, dest TileCoordinate) error {
	opts, err := s.MovementOptions(sceneID, creatureID)
	if err != nil {
		return err
	}
	if !contains(opts, dest) {
		return fmt.Errorf("%s to %s: %w", creatureID, dest, ErrIllegalMove)
	}
	s.setPos(sceneID, creatureID, dest)
	return nil
}

// SetCreaturePos teleports a creature. Only the creature's presence in the scene is checked.
func (s *State) SetCreaturePos(sceneID, creatureID string, dest TileCoordinate) error {
	scene, ok := s.Scene(sceneID)
	if !ok {
		return fmt.Errorf("scene %q: %w", sceneID, ErrNotFound)
	}
	if _, ok := scene.Creatures[creatureID]; !ok {
		return fmt.Errorf("creature %q in scene %q: %w", creatureID, sceneID, ErrNotFound)
	}
	s.setPos(sceneID, creatureID, dest)
	return nil
}

// MoveCombatCreature walks the combat actor to dest and spends the length of the
// shortest walk, which is longer than the straight line when terrain is in the way.
func (s *State) MoveCombatCreature(dest TileCoordinate) error {
	_, dist, err := s.combatReachable()
	if err != nil {
		return err
	}
	steps, ok := dist[dest]
	if !ok || steps == 0 {
		return fmt.Errorf("combat move to %s: %w", dest, ErrIllegalMove)
	}
	actorID, _ := s.CombatActor()
	s.setPos(s.Combat.SceneID, actorID, dest)
	s.Combat.MovementUsed += steps
	return nil
}

// CombatAct checks that the combat actor may use an ability against target.
// Effects of abilities are resolved elsewhere; this only validates the intent.
func (s *State) CombatAct(abilityID string, target DecidedTarget) error {
	actorID, ok := s.CombatActor()
	if !ok {
		return ErrNoCombat
	}
	ability, ok := s.Ability(abilityID)
	if !ok {
		return fmt.Errorf("ability %q: %w", abilityID, ErrNotFound)
	}
	if ability.Target.Kind == TargetActor {
		return nil
	}
	scene := s.Scenes[s.Combat.SceneID]
	from, ok := scene.Creatures[actorID]
	if !ok {
		return fmt.Errorf("combat actor %q: %w", actorID, ErrNotFound)
	}
	to, ok := scene.Creatures[target.CreatureID]
	if !ok {
		return fmt.Errorf("target %q: %w", target.CreatureID, ErrNotFound)
	}
	if d := from.Pos.Chebyshev(to.Pos); d < 0 || d > ability.Target.Range {
		return fmt.Errorf("%s on %s: %w", abilityID, target.CreatureID, ErrOutOfRange)
	}
	return nil
}

// EditMapTerrain replaces a map's terrain and specials wholesale.
func (s *State) EditMapTerrain(p EditMapTerrainPayload) error {
	m, ok := s.Maps[p.MapID]
	if !ok {
		return fmt.Errorf("map %q: %w", p.MapID, ErrNotFound)
	}
	m.Terrain = p.Terrain
	m.Specials = p.Specials
	s.Maps[p.MapID] = m
	return nil
}

// Done ends the combat actor's turn.
func (s *State) Done() error {
	if s.Combat == nil {
		return ErrNoCombat
	}
	s.Combat.NextTurn()
	return nil
}

// RegisterPlayer adds or replaces a player. The player's scene, if set, must exist.
func (s *State) RegisterPlayer(p Player) error {
	s.ensureMaps()
	if p.ID == "" {
		return fmt.Errorf("player id is required")
	}
	if p.SceneID != "" {
		if _, ok := s.Scenes[p.SceneID]; !ok {
			return fmt.Errorf("scene %q: %w", p.SceneID, ErrNotFound)
		}
	}
	s.Players[p.ID] = p
	return nil
}

// StartCombat begins a combat in sceneID with the given creatures in turn order.
func (s *State) StartCombat(sceneID string, creatureIDs []string) error {
	scene, ok := s.Scene(sceneID)
	if !ok {
		return fmt.Errorf("scene %q: %w", sceneID, ErrNotFound)
	}
	if len(creatureIDs) == 0 {
		return fmt.Errorf("combat in scene %q needs at least one creature", sceneID)
	}
	combatants := make([]Combatant, 0, len(creatureIDs))
	for _, id := range creatureIDs {
		if _, ok := scene.Creatures[id]; !ok {
			return fmt.Errorf("creature %q in scene %q: %w", id, sceneID, ErrNotFound)
		}
		combatants = append(combatants, Combatant{CreatureID: id})
	}
	s.Combat = &Combat{SceneID: sceneID, Combatants: combatants}
	return nil
}

func (s *State) StopCombat() error {
	if s.Combat == nil {
		return ErrNoCombat
	}
	s.Combat = nil
	return nil
}
