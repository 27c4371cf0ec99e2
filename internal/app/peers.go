package app

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4"
	"github.com/rs/zerolog/log"

	"github.com/dardasha/relay/internal/core"
	"github.com/dardasha/relay/internal/domain"
)

// PeerState is the negotiation state of a peer session.
type PeerState string

const (
	StateIdle           PeerState = "idle"
	StateOfferSent      PeerState = "offer-sent"
	StateAnswerReceived PeerState = "answer-received"
	StateConnected      PeerState = "connected"
	StateFailed         PeerState = "failed"
	StateClosed         PeerState = "closed"
)

// ErrInvalidTransition rejects a relay that the current negotiation state
// does not permit. Request-scoped; the session is untouched.
var ErrInvalidTransition = errors.New("invalid signaling transition")

// ReasonGlare closes the losing session when both peers offered at once.
const ReasonGlare = "glare"

type pairKey string

// key orders the pair so both directions address the same session.
func key(a, b core.SessionID) pairKey {
	if b < a {
		a, b = b, a
	}
	return pairKey(string(a) + "|" + string(b))
}

// PeerSession is the 1:1 negotiation context for one unordered pair of
// connections. Fields are guarded by the owning Broker; after a terminal
// transition the session is out of the table and safe to read.
type PeerSession struct {
	A, B      core.SessionID
	Initiator core.SessionID

	state      PeerState
	Offer      *webrtc.SessionDescription
	Answer     *webrtc.SessionDescription
	Candidates []webrtc.ICECandidateInit

	fromInitiator int
	fromResponder int
	timer         *time.Timer
}

// Other returns the counterpart of sid within the pair.
func (s *PeerSession) Other(sid core.SessionID) core.SessionID {
	if s.A == sid {
		return s.B
	}
	return s.A
}

func (s *PeerSession) has(sid core.SessionID) bool {
	return s.A == sid || s.B == sid
}

// Broker owns the peer session table and relays negotiation between
// exactly two connections without interpreting media. onEnd fires once per
// session on every terminal transition (failed, closed), outside the lock.
type Broker struct {
	mu       sync.Mutex
	sessions map[pairKey]*PeerSession
	timeout  time.Duration
	onEnd    func(s *PeerSession, state PeerState, reason string)
}

// NewBroker builds a broker. timeout bounds how long a negotiation may sit
// in offer-sent or answer-received before it is failed; zero disables the
// timer. onEnd may be nil.
func NewBroker(timeout time.Duration, onEnd func(*PeerSession, PeerState, string)) *Broker {
	return &Broker{
		sessions: make(map[pairKey]*PeerSession),
		timeout:  timeout,
		onEnd:    onEnd,
	}
}

// Create allocates an idle session for the pair. A session already keyed
// by the pair, in any state, is a conflict and stays untouched.
func (b *Broker) Create(local, remote core.SessionID) (*PeerSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key(local, remote)
	if _, ok := b.sessions[k]; ok {
		return nil, &domain.SessionConflictError{Local: string(local), Remote: string(remote)}
	}
	s := &PeerSession{A: local, B: remote, Initiator: local, state: StateIdle}
	if remote < local {
		s.A, s.B = remote, local
	}
	b.sessions[k] = s
	return s, nil
}

// RelayOffer records an offer from one side and returns the session so the
// caller can forward the payload verbatim.
//
// Glare rule: when both peers offer simultaneously, the lower session id
// initiates. The higher id's session, still unanswered, is closed with
// ReasonGlare and replaced; the higher id's competing offer is rejected
// with a SessionConflictError.
func (b *Broker) RelayOffer(from, to core.SessionID, sdp string) (*PeerSession, error) {
	var ended *PeerSession

	b.mu.Lock()
	k := key(from, to)
	s, ok := b.sessions[k]
	switch {
	case !ok:
		s = &PeerSession{A: from, B: to, Initiator: from, state: StateIdle}
		if to < from {
			s.A, s.B = to, from
		}
		b.sessions[k] = s
	case s.state == StateIdle:
		s.Initiator = from
	case s.state == StateOfferSent && s.Initiator == from:
		// renegotiated offer from the same side, relay again
	case s.state == StateOfferSent && from < s.Initiator:
		// glare, lower id preempts the unanswered session
		ended = s
		b.endLocked(k, s, StateClosed)
		s = &PeerSession{A: s.A, B: s.B, Initiator: from, state: StateIdle}
		b.sessions[k] = s
	default:
		conflict := s.state == StateOfferSent
		b.mu.Unlock()
		if conflict {
			return nil, &domain.SessionConflictError{Local: string(from), Remote: string(to)}
		}
		return nil, ErrInvalidTransition
	}

	s.state = StateOfferSent
	s.Offer = &webrtc.SessionDescription{Type: webrtc.SDPTypeOffer, SDP: sdp}
	b.armTimerLocked(k, s)
	b.mu.Unlock()

	if ended != nil && b.onEnd != nil {
		b.onEnd(ended, StateClosed, ReasonGlare)
	}
	log.Debug().Str("module", "app.peers").Str("from", string(from)).Str("to", string(to)).Msg("offer relayed")
	return s, nil
}

// RelayAnswer moves offer-sent to answer-received. Only the non-initiator
// may answer.
func (b *Broker) RelayAnswer(from, to core.SessionID, sdp string) (*PeerSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[key(from, to)]
	if !ok || s.state != StateOfferSent || s.Initiator == from {
		return nil, ErrInvalidTransition
	}
	s.state = StateAnswerReceived
	s.Answer = &webrtc.SessionDescription{Type: webrtc.SDPTypeAnswer, SDP: sdp}
	s.fromInitiator, s.fromResponder = 0, 0
	b.armTimerLocked(key(from, to), s)
	return s, nil
}

// RelayCandidate accumulates an ICE candidate and returns the session. Once
// both directions have exchanged candidates after the answer, the session
// counts as connected and the negotiation timer stops.
func (b *Broker) RelayCandidate(from, to core.SessionID, cand webrtc.ICECandidateInit) (*PeerSession, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	k := key(from, to)
	s, ok := b.sessions[k]
	if !ok {
		return nil, ErrInvalidTransition
	}
	switch s.state {
	case StateOfferSent, StateAnswerReceived, StateConnected:
	default:
		return nil, ErrInvalidTransition
	}
	s.Candidates = append(s.Candidates, cand)
	// Only post-answer exchanges count toward the connected transition;
	// candidates trickled during offer-sent are accumulated but not counted.
	if s.state == StateAnswerReceived {
		if from == s.Initiator {
			s.fromInitiator++
		} else {
			s.fromResponder++
		}
		if s.fromInitiator > 0 && s.fromResponder > 0 {
			s.state = StateConnected
			if s.timer != nil {
				s.timer.Stop()
				s.timer = nil
			}
			log.Debug().Str("module", "app.peers").Str("a", string(s.A)).Str("b", string(s.B)).Msg("peer session connected")
		}
	}
	return s, nil
}

// Close ends the session for the pair, if any, and reports whether one
// existed. Reachable from every state.
func (b *Broker) Close(from, to core.SessionID, reason string) (*PeerSession, bool) {
	b.mu.Lock()
	k := key(from, to)
	s, ok := b.sessions[k]
	if ok {
		b.endLocked(k, s, StateClosed)
	}
	b.mu.Unlock()
	if ok && b.onEnd != nil {
		b.onEnd(s, StateClosed, reason)
	}
	return s, ok
}

// CloseAllFor ends every session the connection participates in. Invoked
// on disconnect so no peer session outlives its endpoints.
func (b *Broker) CloseAllFor(sid core.SessionID, reason string) []*PeerSession {
	var ended []*PeerSession
	b.mu.Lock()
	for k, s := range b.sessions {
		if s.has(sid) {
			b.endLocked(k, s, StateClosed)
			ended = append(ended, s)
		}
	}
	b.mu.Unlock()
	if b.onEnd != nil {
		for _, s := range ended {
			b.onEnd(s, StateClosed, "peer disconnected")
		}
	}
	return ended
}

// State reports the current state of the pair's session, if one exists.
func (b *Broker) State(a, bID core.SessionID) (PeerState, bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	s, ok := b.sessions[key(a, bID)]
	if !ok {
		return "", false
	}
	return s.state, true
}

// SessionCount is exposed for tests and metrics logging.
func (b *Broker) SessionCount() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.sessions)
}

// endLocked finalizes a session under the lock: terminal state, timer
// stopped, entry released.
func (b *Broker) endLocked(k pairKey, s *PeerSession, state PeerState) {
	s.state = state
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	delete(b.sessions, k)
}

// armTimerLocked (re)starts the negotiation deadline for s.
func (b *Broker) armTimerLocked(k pairKey, s *PeerSession) {
	if b.timeout <= 0 {
		return
	}
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(b.timeout, func() { b.expire(k, s) })
}

// expire fails a negotiation that never completed. The session pointer is
// compared so a timer outliving its session is a no-op.
func (b *Broker) expire(k pairKey, s *PeerSession) {
	b.mu.Lock()
	cur, ok := b.sessions[k]
	if !ok || cur != s || (s.state != StateOfferSent && s.state != StateAnswerReceived) {
		b.mu.Unlock()
		return
	}
	b.endLocked(k, s, StateFailed)
	b.mu.Unlock()
	log.Info().Str("module", "app.peers").Str("a", string(s.A)).Str("b", string(s.B)).Msg("negotiation timed out")
	if b.onEnd != nil {
		b.onEnd(s, StateFailed, "negotiation timeout")
	}
}
