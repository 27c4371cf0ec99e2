package orch

import (
	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dardasha/relay/internal/app"
	"github.com/dardasha/relay/internal/core"
	"github.com/dardasha/relay/internal/domain"
	"github.com/dardasha/relay/internal/protocol"
)

// resolvePeer maps the wire-level peer user id to its live session.
func (o *Orchestrator) resolvePeer(uid domain.UserID) (*core.MemberSession, error) {
	sess, ok := o.Registry.Resolve(uid)
	if !ok {
		return nil, ErrNoSession
	}
	return sess, nil
}

// RelayOffer forwards an SDP offer to peer verbatim, creating or advancing
// the pair's session.
func (o *Orchestrator) RelayOffer(sid core.SessionID, peer domain.UserID, sdp string) error {
	from, ok := o.Registry.Get(sid)
	if !ok {
		return ErrNoSession
	}
	target, err := o.resolvePeer(peer)
	if err != nil {
		return err
	}
	if _, err := o.Broker.RelayOffer(sid, target.ID(), sdp); err != nil {
		return err
	}
	o.send(target, protocol.Signal{Type: protocol.TypeOffer, Peer: from.Identity().ID, SDP: sdp})
	return nil
}

// RelayAnswer forwards an SDP answer to peer verbatim.
func (o *Orchestrator) RelayAnswer(sid core.SessionID, peer domain.UserID, sdp string) error {
	from, ok := o.Registry.Get(sid)
	if !ok {
		return ErrNoSession
	}
	target, err := o.resolvePeer(peer)
	if err != nil {
		return err
	}
	if _, err := o.Broker.RelayAnswer(sid, target.ID(), sdp); err != nil {
		return err
	}
	o.send(target, protocol.Signal{Type: protocol.TypeAnswer, Peer: from.Identity().ID, SDP: sdp})
	return nil
}

// RelayCandidate forwards one ICE candidate to peer verbatim.
func (o *Orchestrator) RelayCandidate(sid core.SessionID, peer domain.UserID, ev protocol.ICECandidate) error {
	from, ok := o.Registry.Get(sid)
	if !ok {
		return ErrNoSession
	}
	target, err := o.resolvePeer(peer)
	if err != nil {
		return err
	}
	cand := webrtc.ICECandidateInit{
		Candidate:     ev.Candidate,
		SDPMid:        ev.SDPMid,
		SDPMLineIndex: ev.SDPMLineIndex,
	}
	if _, err := o.Broker.RelayCandidate(sid, target.ID(), cand); err != nil {
		return err
	}
	ev.Peer = from.Identity().ID
	ev.Type = protocol.TypeICECandidate
	o.send(target, ev)
	return nil
}

// Hangup closes the pair's session on explicit request. Both sides are
// notified through PeerEnded.
func (o *Orchestrator) Hangup(sid core.SessionID, peer domain.UserID) error {
	target, err := o.resolvePeer(peer)
	if err != nil {
		return err
	}
	o.Broker.Close(sid, target.ID(), "hangup")
	return nil
}

// PeerEnded is the broker's terminal-transition callback. Each endpoint
// still connected learns the session is over and which peer it concerned.
func (o *Orchestrator) PeerEnded(s *app.PeerSession, state app.PeerState, reason string) {
	o.notifyPeerEnd(s.A, s.B, reason)
	o.notifyPeerEnd(s.B, s.A, reason)
	log.Info().Str("module", "app.orch").Str("a", string(s.A)).Str("b", string(s.B)).
		Str("state", string(state)).Str("reason", reason).Msg("peer session ended")
}

func (o *Orchestrator) notifyPeerEnd(to, other core.SessionID, reason string) {
	toSess, ok := o.Registry.Get(to)
	if !ok {
		return
	}
	var peer domain.UserID
	if otherSess, ok := o.Registry.Get(other); ok {
		peer = otherSess.Identity().ID
	}
	o.send(toSess, protocol.Hangup{Type: protocol.TypeHangup, Peer: peer, Reason: reason})
}
