package game

import (
	"encoding/json"
	"fmt"
)

// DecodeCommand builds a Command from its wire type and raw JSON payload.
func DecodeCommand(typ string, payload json.RawMessage) (Command, error) {
	switch typ {
	case CmdMoveCreature, CmdSetCreaturePos:
		return decodePayload[MoveCreaturePayload](typ, payload)
	case CmdMoveCombatCreature:
		return decodePayload[MoveCombatCreaturePayload](typ, payload)
	case CmdCombatAct:
		return decodePayload[CombatActPayload](typ, payload)
	case CmdEditMapTerrain:
		return decodePayload[EditMapTerrainPayload](typ, payload)
	case CmdAddCreature:
		return decodePayload[AddCreaturePayload](typ, payload)
	case CmdRegisterPlayer:
		return decodePayload[RegisterPlayerPayload](typ, payload)
	case CmdStartCombat:
		return decodePayload[StartCombatPayload](typ, payload)
	case CmdDone, CmdStopCombat:
		return Command{Type: typ}, nil
	}
	return Command{}, fmt.Errorf("unknown command type %q", typ)
}

func decodePayload[T any](typ string, raw json.RawMessage) (Command, error) {
	var p T
	if err := json.Unmarshal(raw, &p); err != nil {
		return Command{}, fmt.Errorf("%s payload: %w", typ, err)
	}
	return Command{Type: typ, Payload: p}, nil
}

// Apply validates cmd against the state and mutates it. A rejected command leaves s unchanged.
func (s *State) Apply(cmd Command) error {
	switch cmd.Type {
	case CmdMoveCreature, CmdSetCreaturePos:
		p, ok := cmd.Payload.(MoveCreaturePayload)
		if !ok {
			return payloadError(cmd)
		}
		if cmd.Type == CmdSetCreaturePos {
			return s.SetCreaturePos(p.SceneID, p.CreatureID, p.Dest)
		}
		return s.MoveCreature(p.SceneID, p.CreatureID, p.Dest)
	case CmdMoveCombatCreature:
		p, ok := cmd.Payload.(MoveCombatCreaturePayload)
		if !ok {
			return payloadError(cmd)
		}
		return s.MoveCombatCreature(p.Dest)
	case CmdCombatAct:
		p, ok := cmd.Payload.(CombatActPayload)
		if !ok {
			return payloadError(cmd)
		}
		return s.CombatAct(p.AbilityID, p.Target)
	case CmdEditMapTerrain:
		p, ok := cmd.Payload.(EditMapTerrainPayload)
		if !ok {
			return payloadError(cmd)
		}
		return s.EditMapTerrain(p)
	case CmdAddCreature:
		p, ok := cmd.Payload.(AddCreaturePayload)
		if !ok {
			return payloadError(cmd)
		}
		return s.AddCreature(p.SceneID, p.Creature, p.Pos, p.Visibility)
	case CmdRegisterPlayer:
		p, ok := cmd.Payload.(RegisterPlayerPayload)
		if !ok {
			return payloadError(cmd)
		}
		return s.RegisterPlayer(p.Player)
	case CmdStartCombat:
		p, ok := cmd.Payload.(StartCombatPayload)
		if !ok {
			return payloadError(cmd)
		}
		return s.StartCombat(p.SceneID, p.CreatureIDs)
	case CmdDone:
		return s.Done()
	case CmdStopCombat:
		return s.StopCombat()
	}
	return fmt.Errorf("unknown command type %q", cmd.Type)
}

func payloadError(cmd Command) error {
	return fmt.Errorf("%s: unexpected payload %T", cmd.Type, cmd.Payload)
}
