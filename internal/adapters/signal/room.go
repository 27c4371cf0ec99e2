package signal

import (
	"encoding/json"

	"github.com/rs/zerolog/log"

	"github.com/dardasha/relay/internal/core"
	"github.com/dardasha/relay/internal/protocol"
)

func (ctl *Controller) handleJoin(sid core.SessionID, c *wsSignalConn, data []byte) {
	var p protocol.JoinRoom
	if err := json.Unmarshal(data, &p); err != nil || p.Room == "" {
		ctl.sendErr(c, protocol.CodeBadPayload, "join-room needs a room")
		return
	}

	room, err := ctl.Orch.Join(sid, p.Room)
	if err != nil {
		log.Error().Err(err).Str("module", "signal").Str("sid", string(sid)).Msg("join failed")
		ctl.sendErr(c, protocol.CodeBadPayload, err.Error())
		return
	}

	ctl.sendJSON(c, protocol.RoomState{
		Type:    protocol.TypeRoomState,
		Room:    room.ID(),
		Members: room.MembersInfo(),
		Count:   room.MemberCount(),
	})
}

// handleLeave detaches from the current room; the connection itself stays
// up.
func (ctl *Controller) handleLeave(sid core.SessionID, c *wsSignalConn) {
	room, _ := ctl.Orch.Registry.RoomOf(sid)
	ctl.Orch.Leave(sid)
	ctl.sendJSON(c, protocol.Left{Type: protocol.TypeLeft, Room: room})
}

func (ctl *Controller) handleMediaState(sid core.SessionID, c *wsSignalConn, data []byte) {
	var p protocol.MediaState
	if err := json.Unmarshal(data, &p); err != nil {
		ctl.sendErr(c, protocol.CodeBadPayload, "bad media-state payload")
		return
	}
	ctl.Orch.MediaState(sid, p.Mic, p.Video)
}
