package transport

import (
	"encoding/json"
	"errors"

	"github.com/lab1702/arena-server/internal/game"
)

// dispatch decodes one inbound envelope and applies it to the StateStore.
// Any validation failure leaves state untouched and sends an "error"
// message to the originating session, except not-alive rejections, which
// are ignored (see reportActionError).
func (s *Server) dispatch(c *Session, env inboundEnvelope) {
	switch env.Type {
	case TypePlayerAction:
		s.dispatchPlayerAction(c, env.Payload)
	case TypeSetName:
		s.dispatchSetName(c, env.Payload)
	case TypeHeal:
		s.dispatchHeal(c, env.Payload)
	case TypePing:
		// No effect; exists only to defeat idle timeouts.
	default:
		s.sendError(c, CodeInvalidActionType, "unknown message type: "+env.Type)
	}
}

func (s *Server) sendError(c *Session, code, message string) {
	c.send.enqueue(outboundEnvelope{
		Type:    TypeError,
		Payload: errorPayload{Code: code, Message: message},
	}, true)
}

func toVec3(v *vec3) *game.Vec3 {
	if v == nil {
		return nil
	}
	gv := game.Vec3{X: v.X, Y: v.Y, Z: v.Z}
	return &gv
}

func (s *Server) dispatchPlayerAction(c *Session, raw json.RawMessage) {
	var action playerActionPayload
	if err := json.Unmarshal(raw, &action); err != nil {
		s.sendError(c, CodeInvalidPayload, "malformed playerAction payload")
		return
	}

	switch action.Type {
	case "move", "jump":
		s.dispatchMove(c, action)
	case "shoot":
		s.dispatchShoot(c, action.Data)
	case "reload":
		s.applyAction(c, game.Action{Type: game.ActionReload})
	default:
		s.sendError(c, CodeInvalidActionType, "unknown player action type: "+action.Type)
	}
}

func (s *Server) dispatchMove(c *Session, action playerActionPayload) {
	var data moveData
	if len(action.Data) > 0 {
		if err := json.Unmarshal(action.Data, &data); err != nil {
			s.sendError(c, CodeInvalidPayload, "malformed move payload")
			return
		}
	}

	var actionType game.ActionType = game.ActionMove
	if action.Type == "jump" {
		actionType = game.ActionJump
	}

	s.applyAction(c, game.Action{
		Type:     actionType,
		Position: toVec3(data.Position),
		Rotation: toVec3(data.Rotation),
	})
}

func (s *Server) dispatchShoot(c *Session, raw json.RawMessage) {
	var data shootData
	if len(raw) > 0 {
		if err := json.Unmarshal(raw, &data); err != nil {
			s.sendError(c, CodeInvalidPayload, "malformed shoot payload")
			return
		}
	}

	if data.Target == nil && data.Direction == nil {
		s.sendError(c, CodeInvalidPayload, "shoot requires target or direction")
		return
	}
	if data.Target != nil && data.Direction != nil {
		s.sendError(c, CodeInvalidPayload, "shoot accepts exactly one of target or direction")
		return
	}

	target := toVec3(data.Target)
	direction := toVec3(data.Direction)

	if err := s.store.HandleShot(c.id, target, direction); err != nil {
		s.reportActionError(c, err)
	}
}

func (s *Server) applyAction(c *Session, action game.Action) {
	if err := s.store.HandleAction(c.id, action); err != nil {
		s.reportActionError(c, err)
	}
}

// reportActionError surfaces a store error through the per-session error
// channel, except not-alive errors, which are silently ignored: a late
// action against a player that died moments ago is routine, not a fault.
func (s *Server) reportActionError(c *Session, err error) {
	switch {
	case errors.Is(err, game.ErrNotAlive):
		return
	case errors.Is(err, game.ErrNotFound):
		s.sendError(c, CodeIdentity, err.Error())
	default:
		s.sendError(c, CodeInvalidPayload, err.Error())
	}
}

func (s *Server) dispatchSetName(c *Session, raw json.RawMessage) {
	var data setNamePayload
	if err := json.Unmarshal(raw, &data); err != nil {
		s.sendError(c, CodeInvalidPayload, "malformed setName payload")
		return
	}

	if err := s.store.UpdatePlayerName(c.id, data.DisplayName); err != nil {
		s.sendError(c, CodeInvalidPayload, "invalid display name")
	}
}

func (s *Server) dispatchHeal(c *Session, raw json.RawMessage) {
	var data healPayload
	if err := json.Unmarshal(raw, &data); err != nil {
		s.sendError(c, CodeInvalidPayload, "malformed heal payload")
		return
	}
	if data.Amount == nil || data.NewHealth == nil || *data.Amount < 0 {
		s.sendError(c, CodeInvalidPayload, "heal requires non-negative amount and newHealth")
		return
	}

	s.applyAction(c, game.Action{Type: game.ActionHeal, Amount: *data.Amount, NewHealth: *data.NewHealth})
}
