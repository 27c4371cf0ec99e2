// Package orch wires the shared tables into the connect, join, chat, and
// disconnect pipelines. It owns event fan-out ordering; transports stay in
// the adapters.
package orch

import (
	"context"
	"sync"

	"github.com/rs/zerolog/log"

	"github.com/dardasha/relay/internal/app"
	"github.com/dardasha/relay/internal/app/audit"
	"github.com/dardasha/relay/internal/core"
	"github.com/dardasha/relay/internal/protocol"
	"github.com/dardasha/relay/internal/storage"
)

type Orchestrator struct {
	Registry *app.Registry
	Rooms    *app.RoomManager
	Gate     *app.Gate
	Broker   *app.Broker
	Store    storage.Store
	Audit    audit.Recorder

	// rosterMu serializes roster broadcasts so every send channel sees
	// rosters in snapshot order.
	rosterMu sync.Mutex
}

// Connect admits a session that already cleared the ban check and pushes
// the updated roster to everyone.
func (o *Orchestrator) Connect(sess *core.MemberSession, cancel context.CancelFunc) {
	o.Registry.Admit(sess, cancel)
	o.BroadcastRoster()
}

// Disconnect runs the coordinated cleanup exactly once per session:
// membership removal, peer session closure, roster removal, context
// cancellation. Safe to call from every teardown path.
func (o *Orchestrator) Disconnect(sid core.SessionID) {
	sess, ok := o.Registry.Get(sid)
	if !ok {
		return
	}
	sess.Teardown(func() {
		o.leaveCurrentRoom(sid, sess)
		o.Broker.CloseAllFor(sid, "peer disconnected")
		o.Registry.Cancel(sid)
		o.Registry.Remove(sid)
		o.BroadcastRoster()
		log.Info().Str("module", "app.orch").Str("sid", string(sid)).Msg("session cleaned up")
	})
}

// BroadcastRoster sends the presence roster to every live connection. The
// snapshot and target list come from one registry lock acquisition, and
// rosterMu keeps concurrent broadcasts from delivering an older snapshot
// after a newer one.
func (o *Orchestrator) BroadcastRoster() {
	o.rosterMu.Lock()
	defer o.rosterMu.Unlock()
	roster, targets := o.Registry.Snapshot()
	frame, err := protocol.Encode(protocol.PresenceRoster{Type: protocol.TypePresenceRoster, Users: roster})
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("encode roster")
		return
	}
	for _, sess := range targets {
		_ = sess.Signal().TrySend(frame)
	}
}

// send encodes one event for one session. Failed live deliveries are
// accepted and only logged.
func (o *Orchestrator) send(sess *core.MemberSession, v any) {
	frame, err := protocol.Encode(v)
	if err != nil {
		log.Error().Err(err).Str("module", "app.orch").Msg("encode event")
		return
	}
	if err := sess.Signal().TrySend(frame); err != nil {
		log.Debug().Err(err).Str("module", "app.orch").Str("sid", string(sess.ID())).Msg("send dropped")
	}
}
