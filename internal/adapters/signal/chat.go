package signal

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/rs/zerolog/log"

	"github.com/dardasha/relay/internal/app/orch"
	"github.com/dardasha/relay/internal/core"
	"github.com/dardasha/relay/internal/domain"
	"github.com/dardasha/relay/internal/protocol"
)

func (ctl *Controller) handleChat(ctx context.Context, sid core.SessionID, c *wsSignalConn, data []byte) {
	var p protocol.ChatMessage
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" || p.Text == "" {
		ctl.sendErr(c, protocol.CodeBadPayload, "chat-message needs room and text")
		return
	}

	if sess, ok := ctl.Orch.Registry.Get(sid); ok {
		if !ctl.limiter.Allow(sess.Identity().ID) {
			ctl.sendErr(c, protocol.CodeRateLimited, "slow down")
			return
		}
	}

	if _, err := ctl.Orch.SendChat(ctx, sid, p.Room, p.Text); err != nil {
		ctl.replyChatError(sid, c, err)
	}
}

// replyChatError maps pipeline failures onto the wire. Every class here is
// a local, recoverable rejection of one message; the connection stays
// open.
func (ctl *Controller) replyChatError(sid core.SessionID, c *wsSignalConn, err error) {
	var forbidden *domain.ForbiddenError
	var filtered *domain.FilteredError
	var storageErr *domain.StorageError

	switch {
	case errors.As(err, &filtered):
		ctl.sendJSON(c, protocol.MessageFiltered{Type: protocol.TypeMessageFiltered, Reason: "your message was filtered"})
	case errors.As(err, &forbidden):
		ctl.sendErr(c, protocol.CodeForbidden, forbidden.Error())
	case errors.As(err, &storageErr):
		ctl.sendErr(c, protocol.CodeStorageUnavailable, "message not delivered, try again")
	case errors.Is(err, orch.ErrNotInRoom):
		ctl.sendErr(c, protocol.CodeForbidden, "join the room first")
	default:
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("chat pipeline")
		ctl.sendErr(c, protocol.CodeBadPayload, "message rejected")
	}
}
