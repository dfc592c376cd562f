package game

// Command types understood by the session server.
const (
	CmdMoveCreature       = "move_creature"
	CmdSetCreaturePos     = "set_creature_pos"
	CmdMoveCombatCreature = "path_current_combat_creature"
	CmdCombatAct          = "combat_act"
	CmdEditMapTerrain     = "edit_map_terrain"
	CmdDone               = "done"

	CmdAddCreature    = "add_creature"
	CmdRegisterPlayer = "register_player"
	CmdStartCombat    = "start_combat"
	CmdStopCombat     = "stop_combat"
)

// Command is a structured intent sent to the authoritative state owner.
type Command struct {
	Type    string `json:"type"`
	Payload any    `json:"payload,omitempty"`
}

//go:generate mockgen -destination=../mocks/dispatcher.go -package=mocks tactical-grid/game Dispatcher

// Dispatcher delivers commands. Delivery is fire-and-forget: nothing waits on a reply.
type Dispatcher interface {
	Dispatch(cmd Command)
}

// DispatcherFunc adapts a function to Dispatcher.
type DispatcherFunc func(cmd Command)

func (f DispatcherFunc) Dispatch(cmd Command) { f(cmd) }

type MoveCreaturePayload struct {
	SceneID    string         `json:"sceneId"`
	CreatureID string         `json:"creatureId"`
	Dest       TileCoordinate `json:"dest"`
}

type MoveCombatCreaturePayload struct {
	Dest TileCoordinate `json:"dest"`
}

// DecidedTarget is the target an ability is used against.
type DecidedTarget struct {
	Kind       TargetKind `json:"kind"`
	CreatureID string     `json:"creatureId,omitempty"`
}

type CombatActPayload struct {
	AbilityID string        `json:"abilityId"`
	Target    DecidedTarget `json:"target"`
}

type EditMapTerrainPayload struct {
	MapID    string           `json:"mapId"`
	Terrain  []TileCoordinate `json:"terrain"`
	Specials []SpecialTile    `json:"specials"`
}

type AddCreaturePayload struct {
	SceneID    string         `json:"sceneId"`
	Creature   Creature       `json:"creature"`
	Pos        TileCoordinate `json:"pos"`
	Visibility Visibility     `json:"visibility"`
}

type RegisterPlayerPayload struct {
	Player Player `json:"player"`
}

type StartCombatPayload struct {
	SceneID     string   `json:"sceneId"`
	CreatureIDs []string `json:"creatureIds"`
}

func MoveCreature(sceneID, creatureID string, dest TileCoordinate) Command {
	return Command{Type: CmdMoveCreature, Payload: MoveCreaturePayload{SceneID: sceneID, CreatureID: creatureID, Dest: dest}}
}

func SetCreaturePos(sceneID, creatureID string, dest TileCoordinate) Command {
	return Command{Type: CmdSetCreaturePos, Payload: MoveCreaturePayload{SceneID: sceneID, CreatureID: creatureID, Dest: dest}}
}

func MoveCombatCreature(dest TileCoordinate) Command {
	return Command{Type: CmdMoveCombatCreature, Payload: MoveCombatCreaturePayload{Dest: dest}}
}

func CombatAct(abilityID string, target DecidedTarget) Command {
	return Command{Type: CmdCombatAct, Payload: CombatActPayload{AbilityID: abilityID, Target: target}}
}

func EditMapTerrain(mapID string, terrain []TileCoordinate, specials []SpecialTile) Command {
	return Command{Type: CmdEditMapTerrain, Payload: EditMapTerrainPayload{MapID: mapID, Terrain: terrain, Specials: specials}}
}

func Done() Command {
	return Command{Type: CmdDone}
}

func AddCreature(sceneID string, c Creature, pos TileCoordinate, vis Visibility) Command {
	return Command{Type: CmdAddCreature, Payload: AddCreaturePayload{SceneID: sceneID, Creature: c, Pos: pos, Visibility: vis}}
}

func RegisterPlayer(p Player) Command {
	return Command{Type: CmdRegisterPlayer, Payload: RegisterPlayerPayload{Player: p}}
}

func StartCombat(sceneID string, creatureIDs ...string) Command {
	return Command{Type: CmdStartCombat, Payload: StartCombatPayload{SceneID: sceneID, CreatureIDs: creatureIDs}}
}

func StopCombat() Command {
	return Command{Type: CmdStopCombat}
}
