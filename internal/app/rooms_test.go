package app

import "testing"

func TestRoomManagerListAndDrop(t *testing.T) {
	m := NewRoomManager()
	r1 := m.GetOrCreate("r1")
	m.GetOrCreate("r2")

	sess, _ := newSession("a", 1, "alice", "member")
	r1.Add(sess)

	infos := m.List()
	if len(infos) != 2 {
		t.Fatalf("listed %d rooms", len(infos))
	}
	counts := map[string]int{}
	for _, info := range infos {
		counts[string(info.ID)] = info.MemberCount
	}
	if counts["r1"] != 1 || counts["r2"] != 0 {
		t.Errorf("counts = %v", counts)
	}

	m.Drop("r1")
	if _, ok := m.Get("r1"); ok {
		t.Error("dropped room still listed")
	}
	if same := m.GetOrCreate("r1"); same == r1 {
		t.Error("recreate after drop must build a fresh room")
	}
}
