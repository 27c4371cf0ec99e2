package orch

import (
	"context"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dardasha/relay/internal/core"
	"github.com/dardasha/relay/internal/domain"
	"github.com/dardasha/relay/internal/protocol"
)

// ErrNoSession rejects an operation referencing a connection that is not
// in the registry.
var ErrNoSession = errors.New("no such session")

// ErrNotInRoom rejects a chat message for a room the sender has not
// joined.
var ErrNotInRoom = errors.New("sender is not a member of the room")

// SendChat runs the full accepted-message pipeline, in order: permission
// check, moderation gate, persistence, fan-out. A persistence failure
// means no broadcast; members that miss the live delivery recover from
// history on their next join.
func (o *Orchestrator) SendChat(ctx context.Context, sid core.SessionID, roomID domain.RoomID, text string) (*domain.Message, error) {
	sess, ok := o.Registry.Get(sid)
	if !ok {
		return nil, ErrNoSession
	}
	ident := sess.Identity()

	if err := domain.Require(ident.Role, domain.CapSendMessages); err != nil {
		return nil, err
	}

	current, inRoom := o.Registry.RoomOf(sid)
	if !inRoom || current != roomID {
		return nil, ErrNotInRoom
	}

	if err := o.Gate.CheckMessage(ctx, roomID, ident.ID, text); err != nil {
		return nil, err
	}

	msg, err := o.Store.CreateMessage(ctx, roomID, ident.ID, text)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Str("room", string(roomID)).Msg("persist message")
		return nil, &domain.StorageError{Op: "create message", Err: err}
	}

	if o.Audit != nil {
		ev := domain.ModerationEvent{
			Action: domain.ActionSendMessage,
			RoomID: roomID,
			UserID: ident.ID,
			Detail: text,
			At:     msg.CreatedAt,
		}
		if err := o.Audit.Record(ctx, ev); err != nil {
			log.Error().Err(err).Str("module", "app.orch").Msg("record sent message")
		}
	}

	frame, err := protocol.Encode(protocol.ChatMessage{
		Type:    protocol.TypeChatMessage,
		Message: msg,
		User:    ident,
	})
	if err != nil {
		return nil, err
	}
	room := o.Rooms.GetOrCreate(roomID)
	// Deliver to every member, the sender included; the echo doubles as the
	// delivery confirmation.
	room.Broadcast("", frame)
	return msg, nil
}
