package app

import (
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/dardasha/relay/internal/domain"
)

type peerEnd struct {
	session *PeerSession
	state   PeerState
	reason  string
}

type endCollector struct {
	mu   sync.Mutex
	ends []peerEnd
}

func (c *endCollector) onEnd(s *PeerSession, state PeerState, reason string) {
	c.mu.Lock()
	c.ends = append(c.ends, peerEnd{session: s, state: state, reason: reason})
	c.mu.Unlock()
}

func (c *endCollector) all() []peerEnd {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]peerEnd(nil), c.ends...)
}

func TestOfferAnswerCandidateFlow(t *testing.T) {
	b := NewBroker(0, nil)

	if _, err := b.RelayOffer("a", "b", "sdp-offer"); err != nil {
		t.Fatalf("offer: %v", err)
	}
	if state, _ := b.State("a", "b"); state != StateOfferSent {
		t.Fatalf("state after offer = %s", state)
	}

	if _, err := b.RelayAnswer("b", "a", "sdp-answer"); err != nil {
		t.Fatalf("answer: %v", err)
	}
	if state, _ := b.State("a", "b"); state != StateAnswerReceived {
		t.Fatalf("state after answer = %s", state)
	}

	if _, err := b.RelayCandidate("a", "b", webrtc.ICECandidateInit{Candidate: "c1"}); err != nil {
		t.Fatalf("candidate a->b: %v", err)
	}
	if state, _ := b.State("a", "b"); state != StateAnswerReceived {
		t.Fatal("one-way candidates must not connect yet")
	}
	if _, err := b.RelayCandidate("b", "a", webrtc.ICECandidateInit{Candidate: "c2"}); err != nil {
		t.Fatalf("candidate b->a: %v", err)
	}
	if state, _ := b.State("a", "b"); state != StateConnected {
		t.Fatalf("state after bidirectional candidates = %s", state)
	}
}

func TestPreAnswerCandidatesDoNotCountTowardConnected(t *testing.T) {
	b := NewBroker(0, nil)

	if _, err := b.RelayOffer("a", "b", "sdp-offer"); err != nil {
		t.Fatalf("offer: %v", err)
	}
	// Trickled before the answer: accumulated but not counted.
	if _, err := b.RelayCandidate("a", "b", webrtc.ICECandidateInit{Candidate: "early"}); err != nil {
		t.Fatalf("early candidate: %v", err)
	}
	if _, err := b.RelayAnswer("b", "a", "sdp-answer"); err != nil {
		t.Fatalf("answer: %v", err)
	}

	if _, err := b.RelayCandidate("b", "a", webrtc.ICECandidateInit{Candidate: "c1"}); err != nil {
		t.Fatalf("candidate b->a: %v", err)
	}
	if state, _ := b.State("a", "b"); state != StateAnswerReceived {
		t.Fatalf("pre-answer candidate counted, state = %s", state)
	}
	if _, err := b.RelayCandidate("a", "b", webrtc.ICECandidateInit{Candidate: "c2"}); err != nil {
		t.Fatalf("candidate a->b: %v", err)
	}
	if state, _ := b.State("a", "b"); state != StateConnected {
		t.Fatalf("state after post-answer exchange = %s", state)
	}
}

func TestAnswerRequiresOfferFirst(t *testing.T) {
	b := NewBroker(0, nil)
	if _, err := b.RelayAnswer("b", "a", "sdp"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

func TestInitiatorCannotAnswerItself(t *testing.T) {
	b := NewBroker(0, nil)
	if _, err := b.RelayOffer("a", "b", "sdp"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.RelayAnswer("a", "b", "sdp"); !errors.Is(err, ErrInvalidTransition) {
		t.Fatalf("want ErrInvalidTransition, got %v", err)
	}
}

func TestCreateRejectsDuplicatePair(t *testing.T) {
	b := NewBroker(0, nil)
	if _, err := b.Create("a", "b"); err != nil {
		t.Fatal(err)
	}
	// Same pair addressed from the other side is still the same session.
	_, err := b.Create("b", "a")
	var conflict *domain.SessionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("want SessionConflictError, got %v", err)
	}
}

func TestGlareLowerIDWins(t *testing.T) {
	ends := &endCollector{}
	b := NewBroker(0, ends.onEnd)

	// Higher id offers first, lower id's simultaneous offer preempts it.
	if _, err := b.RelayOffer("b", "a", "sdp-from-b"); err != nil {
		t.Fatal(err)
	}
	s, err := b.RelayOffer("a", "b", "sdp-from-a")
	if err != nil {
		t.Fatalf("lower id's offer must win glare, got %v", err)
	}
	if s.Initiator != "a" {
		t.Errorf("initiator = %s, want a", s.Initiator)
	}

	closed := ends.all()
	if len(closed) != 1 || closed[0].reason != ReasonGlare {
		t.Fatalf("the losing session must be closed with the glare reason, got %+v", closed)
	}

	// The reverse race: lower id holds the session, higher id is rejected.
	b2 := NewBroker(0, nil)
	if _, err := b2.RelayOffer("a", "b", "sdp-from-a"); err != nil {
		t.Fatal(err)
	}
	_, err = b2.RelayOffer("b", "a", "sdp-from-b")
	var conflict *domain.SessionConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("higher id's competing offer must conflict, got %v", err)
	}
	if state, _ := b2.State("a", "b"); state != StateOfferSent {
		t.Errorf("existing session must stay untouched, state = %s", state)
	}
}

func TestCloseAllForEndsEverySession(t *testing.T) {
	ends := &endCollector{}
	b := NewBroker(0, ends.onEnd)

	if _, err := b.RelayOffer("a", "b", "sdp"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.RelayOffer("a", "c", "sdp"); err != nil {
		t.Fatal(err)
	}

	closed := b.CloseAllFor("a", "peer disconnected")
	if len(closed) != 2 {
		t.Fatalf("closed = %d, want 2", len(closed))
	}
	if b.SessionCount() != 0 {
		t.Errorf("sessions remaining = %d", b.SessionCount())
	}
	for _, e := range ends.all() {
		if e.state != StateClosed || e.reason != "peer disconnected" {
			t.Errorf("end = %+v", e)
		}
	}
}

func TestHangupFromAnyState(t *testing.T) {
	b := NewBroker(0, nil)
	if _, err := b.Create("a", "b"); err != nil {
		t.Fatal(err)
	}
	if _, ok := b.Close("b", "a", "hangup"); !ok {
		t.Fatal("close must find the idle session")
	}
	if _, ok := b.Close("a", "b", "hangup"); ok {
		t.Error("second close finds nothing")
	}
}

func TestNegotiationTimeoutFails(t *testing.T) {
	ends := &endCollector{}
	b := NewBroker(20*time.Millisecond, ends.onEnd)

	if _, err := b.RelayOffer("a", "b", "sdp"); err != nil {
		t.Fatal(err)
	}

	deadline := time.After(time.Second)
	for {
		if len(ends.all()) > 0 {
			break
		}
		select {
		case <-deadline:
			t.Fatal("timer never fired")
		case <-time.After(5 * time.Millisecond):
		}
	}

	got := ends.all()[0]
	if got.state != StateFailed || got.reason != "negotiation timeout" {
		t.Fatalf("end = %+v", got)
	}
	if b.SessionCount() != 0 {
		t.Error("failed session must be released")
	}
}

func TestConnectedSessionOutlivesTimeout(t *testing.T) {
	ends := &endCollector{}
	b := NewBroker(30*time.Millisecond, ends.onEnd)

	if _, err := b.RelayOffer("a", "b", "o"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.RelayAnswer("b", "a", "an"); err != nil {
		t.Fatal(err)
	}
	if _, err := b.RelayCandidate("a", "b", webrtc.ICECandidateInit{Candidate: "c"}); err != nil {
		t.Fatal(err)
	}
	if _, err := b.RelayCandidate("b", "a", webrtc.ICECandidateInit{Candidate: "c"}); err != nil {
		t.Fatal(err)
	}

	time.Sleep(80 * time.Millisecond)
	if len(ends.all()) != 0 {
		t.Fatalf("connected session must not time out, got %+v", ends.all())
	}
	if state, _ := b.State("a", "b"); state != StateConnected {
		t.Errorf("state = %s", state)
	}
}
