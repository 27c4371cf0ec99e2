package core

import (
	"errors"
	"sync"
	"testing"

	"github.com/dardasha/relay/internal/domain"
)

type stubConn struct {
	mu     sync.Mutex
	frames []Frame
	fail   bool
}

func (c *stubConn) TrySend(f Frame) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.fail {
		return errors.New("buffer full")
	}
	c.frames = append(c.frames, f)
	return nil
}

func (c *stubConn) Close() {}

func (c *stubConn) count() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.frames)
}

func member(sid string, uid int64) (*MemberSession, *stubConn) {
	conn := &stubConn{}
	ident := &domain.Identity{ID: domain.UserID(uid), Name: sid, Role: domain.RoleMember}
	return NewMemberSession(SessionID(sid), ident, conn), conn
}

func TestRoomBroadcastSkipsSender(t *testing.T) {
	r := NewRoom("r1")
	a, connA := member("a", 1)
	b, connB := member("b", 2)
	r.Add(a)
	r.Add(b)

	res := r.Broadcast("a", Frame(`hello`))
	if res.SentTo != 1 {
		t.Fatalf("sent_to = %d", res.SentTo)
	}
	if connA.count() != 0 || connB.count() != 1 {
		t.Errorf("a got %d, b got %d", connA.count(), connB.count())
	}
}

func TestRoomBroadcastReportsDropped(t *testing.T) {
	r := NewRoom("r1")
	a, _ := member("a", 1)
	b, connB := member("b", 2)
	connB.fail = true
	r.Add(a)
	r.Add(b)

	res := r.Broadcast("a", Frame(`x`))
	if res.SentTo != 0 || len(res.Dropped) != 1 {
		t.Fatalf("result = %+v", res)
	}
	if res.Dropped[0].ID() != "b" {
		t.Errorf("dropped = %s", res.Dropped[0].ID())
	}
}

func TestRoomRemoveIsNoOpForNonMember(t *testing.T) {
	r := NewRoom("r1")
	if r.Remove("ghost") {
		t.Error("removing a non-member reports nothing removed")
	}
	a, _ := member("a", 1)
	r.Add(a)
	if !r.Remove("a") {
		t.Error("removing a member reports the removal")
	}
	if r.MemberCount() != 0 {
		t.Errorf("count = %d", r.MemberCount())
	}
}

func TestSnapshotIsStable(t *testing.T) {
	r := NewRoom("r1")
	a, _ := member("a", 1)
	b, _ := member("b", 2)
	r.Add(a)
	r.Add(b)

	snap := r.Snapshot()
	r.Remove("b")
	if len(snap) != 2 {
		t.Errorf("snapshot must not see later membership changes, len = %d", len(snap))
	}
}

func TestTeardownRunsOnce(t *testing.T) {
	a, _ := member("a", 1)
	n := 0
	a.Teardown(func() { n++ })
	a.Teardown(func() { n++ })
	if n != 1 {
		t.Fatalf("teardown ran %d times", n)
	}
}

func TestMemberInfoCarriesMediaState(t *testing.T) {
	a, _ := member("a", 1)
	a.SetMedia(true, false)
	info := a.Info()
	if !info.Mic || info.Video {
		t.Errorf("info = %+v", info)
	}
}
