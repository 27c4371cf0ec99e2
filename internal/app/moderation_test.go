package app

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/dardasha/relay/internal/domain"
	"github.com/dardasha/relay/internal/storage"
)

// fakeStore is the in-memory storage collaborator used across the package
// tests.
type fakeStore struct {
	mu        sync.Mutex
	ban       *domain.Ban
	banErr    error
	words     []string
	createErr error
	nextID    int64
	messages  []domain.Message
	events    []domain.ModerationEvent
}

func (s *fakeStore) FindBan(ctx context.Context, fingerprint, addr string) (*domain.Ban, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.banErr != nil {
		return nil, s.banErr
	}
	if s.ban != nil && s.ban.Matches(fingerprint, addr) && s.ban.ActiveAt(time.Now()) {
		return s.ban, nil
	}
	return nil, storage.ErrNotFound
}

func (s *fakeStore) FilteredWords(ctx context.Context) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.words...), nil
}

func (s *fakeStore) CreateMessage(ctx context.Context, roomID domain.RoomID, userID domain.UserID, text string) (*domain.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.createErr != nil {
		return nil, s.createErr
	}
	s.nextID++
	m := domain.Message{ID: s.nextID, RoomID: roomID, UserID: userID, Text: text, CreatedAt: time.Now()}
	s.messages = append(s.messages, m)
	return &m, nil
}

func (s *fakeStore) FindUserByID(ctx context.Context, id domain.UserID) (*domain.Identity, error) {
	return nil, storage.ErrNotFound
}

func (s *fakeStore) RecordModerationEvent(ctx context.Context, ev domain.ModerationEvent) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, ev)
	return nil
}

func (s *fakeStore) recorded() []domain.ModerationEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]domain.ModerationEvent(nil), s.events...)
}

// syncRecorder routes events straight back into the fake store.
type syncRecorder struct{ store *fakeStore }

func (r syncRecorder) Record(ctx context.Context, ev domain.ModerationEvent) error {
	return r.store.RecordModerationEvent(ctx, ev)
}

func newTestGate(t *testing.T, store *fakeStore) *Gate {
	t.Helper()
	g := NewGate(store, syncRecorder{store: store})
	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("load gate: %v", err)
	}
	return g
}

func TestCheckBanBlocksActiveBan(t *testing.T) {
	store := &fakeStore{ban: &domain.Ban{Fingerprint: "fp-bad", Reason: "spam"}}
	g := newTestGate(t, store)

	err := g.CheckBan(context.Background(), "fp-bad", "1.2.3.4")
	var banned *domain.BannedError
	if !errors.As(err, &banned) {
		t.Fatalf("want BannedError, got %v", err)
	}
	if banned.Reason != "spam" {
		t.Errorf("reason = %q", banned.Reason)
	}
}

func TestCheckBanRecordsAuditEvent(t *testing.T) {
	store := &fakeStore{ban: &domain.Ban{Fingerprint: "fp-bad", Reason: "spam"}}
	g := newTestGate(t, store)

	if err := g.CheckBan(context.Background(), "fp-bad", "1.2.3.4"); err == nil {
		t.Fatal("active ban must block")
	}
	events := store.recorded()
	if len(events) != 1 || events[0].Action != domain.ActionBannedConnect {
		t.Fatalf("audit events = %+v", events)
	}
	if !strings.Contains(events[0].Detail, "1.2.3.4") || !strings.Contains(events[0].Detail, "spam") {
		t.Errorf("detail = %q", events[0].Detail)
	}
}

func TestCheckBanMatchesAddress(t *testing.T) {
	store := &fakeStore{ban: &domain.Ban{Addr: "10.0.0.9", Reason: "abuse"}}
	g := newTestGate(t, store)

	if err := g.CheckBan(context.Background(), "fp-clean", "10.0.0.9"); err == nil {
		t.Fatal("address-only ban must still block")
	}
}

func TestCheckBanIgnoresExpired(t *testing.T) {
	past := time.Now().Add(-time.Minute)
	store := &fakeStore{ban: &domain.Ban{Fingerprint: "fp-old", Reason: "spam", ExpiresAt: &past}}
	g := newTestGate(t, store)

	if err := g.CheckBan(context.Background(), "fp-old", "1.2.3.4"); err != nil {
		t.Fatalf("expired ban must not block reconnection, got %v", err)
	}
}

func TestCheckBanStorageFailureRefusesAdmission(t *testing.T) {
	store := &fakeStore{banErr: errors.New("db down")}
	g := newTestGate(t, store)

	err := g.CheckBan(context.Background(), "fp", "addr")
	var storageErr *domain.StorageError
	if !errors.As(err, &storageErr) {
		t.Fatalf("want StorageError, got %v", err)
	}
}

func TestCheckMessageFiltersSubstring(t *testing.T) {
	store := &fakeStore{words: []string{"badword"}}
	g := newTestGate(t, store)

	err := g.CheckMessage(context.Background(), "r1", 5, "well badword indeed")
	var filtered *domain.FilteredError
	if !errors.As(err, &filtered) {
		t.Fatalf("want FilteredError, got %v", err)
	}

	events := store.recorded()
	if len(events) != 1 {
		t.Fatalf("want one moderation event, got %d", len(events))
	}
	ev := events[0]
	if ev.Action != domain.ActionFilteredMessage || ev.RoomID != "r1" || ev.UserID != 5 {
		t.Errorf("event = %+v", ev)
	}
	if ev.Detail != "well badword indeed" {
		t.Errorf("event must carry the original text, got %q", ev.Detail)
	}
}

func TestCheckMessageIsExactContainment(t *testing.T) {
	store := &fakeStore{words: []string{"BadWord"}}
	g := newTestGate(t, store)

	// No normalization: case differences pass through.
	if err := g.CheckMessage(context.Background(), "r1", 5, "badword"); err != nil {
		t.Fatalf("containment is case-exact, got %v", err)
	}
	if err := g.CheckMessage(context.Background(), "r1", 5, "xBadWordy"); err == nil {
		t.Fatal("substring inside a longer token must still match")
	}
}

func TestReloadPicksUpAdditions(t *testing.T) {
	store := &fakeStore{}
	g := newTestGate(t, store)

	if err := g.CheckMessage(context.Background(), "r1", 5, "fresh slur"); err != nil {
		t.Fatalf("no words loaded yet, got %v", err)
	}

	store.mu.Lock()
	store.words = []string{"slur"}
	store.mu.Unlock()
	if err := g.Load(context.Background()); err != nil {
		t.Fatalf("reload: %v", err)
	}

	if err := g.CheckMessage(context.Background(), "r1", 5, "fresh slur"); err == nil {
		t.Fatal("reloaded word must filter without restart")
	}
	if g.WordCount() != 1 {
		t.Errorf("word count = %d", g.WordCount())
	}
}
