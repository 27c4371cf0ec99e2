// Package app holds the shared realtime state tables: the presence
// registry, the room manager, the moderation gate, and the peer signaling
// broker. All of them are mutex-guarded; locks are held for in-memory
// bookkeeping only, never across I/O.
package app

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dardasha/relay/internal/core"
	"github.com/dardasha/relay/internal/domain"
	"github.com/dardasha/relay/internal/protocol"
)

type regEntry struct {
	Session *core.MemberSession
	Room    domain.RoomID
	Cancel  context.CancelFunc
}

// Registry is the authoritative roster of live connections. Sessions are
// admitted only after the moderation gate cleared them; a banned identity
// never appears here.
type Registry struct {
	mu       sync.RWMutex
	sessions map[core.SessionID]*regEntry
	byUser   map[domain.UserID]core.SessionID
}

func NewRegistry() *Registry {
	return &Registry{
		sessions: make(map[core.SessionID]*regEntry),
		byUser:   make(map[domain.UserID]core.SessionID),
	}
}

// Admit adds a cleared session to the roster.
func (r *Registry) Admit(sess *core.MemberSession, cancel context.CancelFunc) {
	r.mu.Lock()
	r.sessions[sess.ID()] = &regEntry{Session: sess, Cancel: cancel}
	r.byUser[sess.Identity().ID] = sess.ID()
	r.mu.Unlock()
	log.Info().Str("module", "app.registry").Str("sid", string(sess.ID())).
		Int64("user", int64(sess.Identity().ID)).Msg("session admitted")
}

// Remove drops a session from the roster. Idempotent: duplicate disconnect
// signals are no-ops.
func (r *Registry) Remove(sid core.SessionID) bool {
	r.mu.Lock()
	e, ok := r.sessions[sid]
	if ok {
		delete(r.sessions, sid)
		uid := e.Session.Identity().ID
		if r.byUser[uid] == sid {
			delete(r.byUser, uid)
		}
	}
	r.mu.Unlock()
	if ok {
		log.Info().Str("module", "app.registry").Str("sid", string(sid)).Msg("session removed")
	}
	return ok
}

func (r *Registry) Get(sid core.SessionID) (*core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if e, ok := r.sessions[sid]; ok {
		return e.Session, true
	}
	return nil, false
}

// Resolve maps a user id to its live session, if any.
func (r *Registry) Resolve(uid domain.UserID) (*core.MemberSession, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	sid, ok := r.byUser[uid]
	if !ok {
		return nil, false
	}
	e, ok := r.sessions[sid]
	if !ok {
		return nil, false
	}
	return e.Session, true
}

// RoomOf returns the room the session is currently joined to, if any.
func (r *Registry) RoomOf(sid core.SessionID) (domain.RoomID, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.sessions[sid]
	if !ok || e.Room == "" {
		return "", false
	}
	return e.Room, true
}

// SetRoom records the session's room membership. The single-room invariant
// is enforced by the orchestrator, which leaves the old room first.
func (r *Registry) SetRoom(sid core.SessionID, room domain.RoomID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()
	e, ok := r.sessions[sid]
	if !ok {
		return false
	}
	e.Room = room
	return true
}

func (r *Registry) ClearRoom(sid core.SessionID) {
	r.mu.Lock()
	if e, ok := r.sessions[sid]; ok {
		e.Room = ""
	}
	r.mu.Unlock()
}

// Cancel fires the session's context cancel, tearing down its pumps.
func (r *Registry) Cancel(sid core.SessionID) bool {
	r.mu.RLock()
	e, ok := r.sessions[sid]
	r.mu.RUnlock()
	if !ok {
		return false
	}
	if e.Cancel != nil {
		e.Cancel()
	}
	return true
}

// Snapshot returns the roster and the sessions to notify, taken under one
// lock so a roster broadcast after a mutation is never stale with respect
// to that mutation.
func (r *Registry) Snapshot() ([]protocol.RosterEntry, []*core.MemberSession) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	roster := make([]protocol.RosterEntry, 0, len(r.sessions))
	targets := make([]*core.MemberSession, 0, len(r.sessions))
	for _, e := range r.sessions {
		info := e.Session.Info()
		roster = append(roster, protocol.RosterEntry{
			ID:    info.ID,
			Name:  info.Name,
			Role:  info.Role,
			Room:  e.Room,
			Mic:   info.Mic,
			Video: info.Video,
		})
		targets = append(targets, e.Session)
	}
	return roster, targets
}
