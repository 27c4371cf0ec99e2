package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/dardasha/relay/internal/app/audit"
	"github.com/dardasha/relay/internal/domain"
	"github.com/dardasha/relay/internal/storage"
)

// Gate rejects banned connections at handshake and filters message content
// at send time. The word list is a snapshot loaded at startup and replaced
// wholesale on Reload, so additions apply to live connections without a
// restart.
type Gate struct {
	store    storage.Store
	recorder audit.Recorder

	mu    sync.RWMutex
	words []string
}

func NewGate(store storage.Store, recorder audit.Recorder) *Gate {
	return &Gate{store: store, recorder: recorder}
}

// Load reads the filtered-word list. Called once at startup and again on
// every reload signal.
func (g *Gate) Load(ctx context.Context) error {
	words, err := g.store.FilteredWords(ctx)
	if err != nil {
		return fmt.Errorf("moderation: load filtered words: %w", err)
	}
	g.mu.Lock()
	g.words = words
	g.mu.Unlock()
	log.Info().Str("module", "app.moderation").Int("count", len(words)).Msg("filtered words loaded")
	return nil
}

// WordCount is exposed for startup logging and tests.
func (g *Gate) WordCount() int {
	g.mu.RLock()
	defer g.mu.RUnlock()
	return len(g.words)
}

// CheckBan returns a BannedError when an unexpired ban matches the
// fingerprint or address. The caller must refuse the connection before any
// roster admission. A storage failure here refuses admission too: a
// connection that cannot be checked is not admitted.
func (g *Gate) CheckBan(ctx context.Context, fingerprint, addr string) error {
	ban, err := g.store.FindBan(ctx, fingerprint, addr)
	if errors.Is(err, storage.ErrNotFound) {
		return nil
	}
	if err != nil {
		return &domain.StorageError{Op: "find ban", Err: err}
	}
	if !ban.ActiveAt(time.Now()) {
		return nil
	}
	log.Info().Str("module", "app.moderation").Str("addr", addr).Str("reason", ban.Reason).Msg("banned connection refused")
	ev := domain.ModerationEvent{
		Action: domain.ActionBannedConnect,
		Detail: fmt.Sprintf("addr: %s, reason: %s", addr, ban.Reason),
		At:     time.Now(),
	}
	if err := g.recorder.Record(ctx, ev); err != nil {
		log.Error().Err(err).Str("module", "app.moderation").Msg("record banned connect")
	}
	return &domain.BannedError{Reason: ban.Reason, ExpiresAt: ban.ExpiresAt}
}

// match returns the first blocked substring contained in text. Exact
// containment, no normalization.
func (g *Gate) match(text string) (string, bool) {
	g.mu.RLock()
	defer g.mu.RUnlock()
	for _, w := range g.words {
		if w != "" && strings.Contains(text, w) {
			return w, true
		}
	}
	return "", false
}

// CheckMessage rejects text containing a filtered word. The rejection is
// recorded as a moderation event carrying the room, sender, and original
// text; the returned FilteredError is reported to the sender only.
func (g *Gate) CheckMessage(ctx context.Context, roomID domain.RoomID, sender domain.UserID, text string) error {
	word, hit := g.match(text)
	if !hit {
		return nil
	}
	ev := domain.ModerationEvent{
		Action: domain.ActionFilteredMessage,
		RoomID: roomID,
		UserID: sender,
		Detail: text,
		At:     time.Now(),
	}
	if err := g.recorder.Record(ctx, ev); err != nil {
		log.Error().Err(err).Str("module", "app.moderation").Msg("record filtered message")
	}
	return &domain.FilteredError{RoomID: roomID, Word: word}
}
