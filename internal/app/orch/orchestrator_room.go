package orch

import (
	"github.com/rs/zerolog/log"

	"github.com/dardasha/relay/internal/core"
	"github.com/dardasha/relay/internal/domain"
	"github.com/dardasha/relay/internal/protocol"
)

// Join attaches the session to roomID. A session holds at most one room
// membership, so any prior room is left first.
func (o *Orchestrator) Join(sid core.SessionID, roomID domain.RoomID) (*core.Room, error) {
	sess, ok := o.Registry.Get(sid)
	if !ok {
		return nil, ErrNoSession
	}

	if prev, inRoom := o.Registry.RoomOf(sid); inRoom {
		if prev == roomID {
			return o.Rooms.GetOrCreate(roomID), nil
		}
		o.leaveRoom(sid, sess, prev)
	}

	room := o.Rooms.GetOrCreate(roomID)
	room.Add(sess)
	o.Registry.SetRoom(sid, roomID)
	o.announceMember(protocol.TypeMemberJoined, room, sess)
	o.BroadcastRoster()
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("joined room")
	return room, nil
}

// Leave detaches the session from its current room. No-op for a session
// not in a room.
func (o *Orchestrator) Leave(sid core.SessionID) {
	sess, ok := o.Registry.Get(sid)
	if !ok {
		return
	}
	if o.leaveCurrentRoom(sid, sess) {
		o.BroadcastRoster()
	}
}

func (o *Orchestrator) leaveCurrentRoom(sid core.SessionID, sess *core.MemberSession) bool {
	roomID, ok := o.Registry.RoomOf(sid)
	if !ok {
		return false
	}
	o.leaveRoom(sid, sess, roomID)
	return true
}

func (o *Orchestrator) leaveRoom(sid core.SessionID, sess *core.MemberSession, roomID domain.RoomID) {
	if room, ok := o.Rooms.Get(roomID); ok {
		room.Remove(sid)
		o.announceMember(protocol.TypeMemberLeft, room, sess)
		if room.MemberCount() == 0 {
			o.Rooms.Drop(roomID)
		}
	}
	o.Registry.ClearRoom(sid)
	log.Info().Str("module", "app.orch").Str("sid", string(sid)).Str("room", string(roomID)).Msg("left room")
}

// announceMember tells the remaining room members about a join or leave.
func (o *Orchestrator) announceMember(eventType string, room *core.Room, sess *core.MemberSession) {
	frame, err := protocol.Encode(protocol.MemberEvent{
		Type: eventType,
		Room: room.ID(),
		User: sess.Identity(),
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("encode member event")
		return
	}
	room.Broadcast(sess.ID(), frame)
}

// MediaState records the local mic/video toggle and rebroadcasts it to the
// session's room mates as a status update.
func (o *Orchestrator) MediaState(sid core.SessionID, mic, video bool) {
	sess, ok := o.Registry.Get(sid)
	if !ok {
		return
	}
	sess.SetMedia(mic, video)
	roomID, inRoom := o.Registry.RoomOf(sid)
	if !inRoom {
		return
	}
	room, ok := o.Rooms.Get(roomID)
	if !ok {
		return
	}
	frame, err := protocol.Encode(protocol.MediaState{
		Type:  protocol.TypeMediaState,
		User:  sess.Identity().ID,
		Mic:   mic,
		Video: video,
	})
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("encode media state")
		return
	}
	room.Broadcast(sid, frame)
}
