package core

import (
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dardasha/relay/internal/domain"
)

// PublishResult reports delivery stats and backpressure to the caller.
type PublishResult struct {
	SentTo  int
	Dropped []*MemberSession
}

// Room is a threadsafe in-memory member set. It never closes
// adapter-owned resources.
type Room struct {
	id domain.RoomID

	mu      sync.RWMutex
	members map[SessionID]*MemberSession
}

func NewRoom(id domain.RoomID) *Room {
	return &Room{id: id, members: make(map[SessionID]*MemberSession)}
}

func (r *Room) ID() domain.RoomID { return r.id }

func (r *Room) MemberCount() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.members)
}

func (r *Room) Has(sid SessionID) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.members[sid]
	return ok
}

func (r *Room) Add(ms *MemberSession) {
	r.mu.Lock()
	r.members[ms.ID()] = ms
	r.mu.Unlock()
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(ms.ID())).Msg("member added")
}

// Remove is a no-op for non-members.
func (r *Room) Remove(sid SessionID) bool {
	r.mu.Lock()
	_, ok := r.members[sid]
	delete(r.members, sid)
	r.mu.Unlock()
	if ok {
		log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("sid", string(sid)).Msg("member removed")
	}
	return ok
}

// Snapshot returns the member set at call time. Broadcasts iterate the
// snapshot, so membership churn cannot affect an in-flight delivery.
func (r *Room) Snapshot() []*MemberSession {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]*MemberSession, 0, len(r.members))
	for _, ms := range r.members {
		out = append(out, ms)
	}
	return out
}

func (r *Room) MembersInfo() []MemberInfo {
	members := r.Snapshot()
	out := make([]MemberInfo, 0, len(members))
	for _, ms := range members {
		out = append(out, ms.Info())
	}
	return out
}

// Broadcast delivers the frame to every member except from. Delivery runs
// outside the membership lock on a snapshot.
func (r *Room) Broadcast(from SessionID, data Frame) PublishResult {
	members := r.Snapshot()
	res := PublishResult{}
	for _, ms := range members {
		if ms.ID() == from {
			continue
		}
		if err := ms.Signal().TrySend(data); err != nil {
			res.Dropped = append(res.Dropped, ms)
			continue
		}
		res.SentTo++
	}
	log.Debug().Str("module", "core.room").Str("room", string(r.id)).Str("from", string(from)).
		Int("sent_to", res.SentTo).Int("dropped", len(res.Dropped)).Msg("broadcast result")
	return res
}
