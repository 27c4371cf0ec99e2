// Package storage is the boundary to the durable chat database. The core
// consumes the Store interface; the pgx adapter here is the production
// implementation.
package storage

import (
	"context"
	"errors"

	"github.com/dardasha/relay/internal/domain"
)

// ErrNotFound is returned when a lookup matches no row.
var ErrNotFound = errors.New("storage: not found")

// Store is the query/command surface the realtime core needs. Everything
// else about persistence (schema, migrations, CRUD endpoints) lives
// elsewhere.
type Store interface {
	// FindBan returns the first ban matching fingerprint or address whose
	// expiry is absent or in the future, or ErrNotFound.
	FindBan(ctx context.Context, fingerprint, addr string) (*domain.Ban, error)

	// FilteredWords returns the current blocked-substring list.
	FilteredWords(ctx context.Context) ([]string, error)

	// CreateMessage persists a chat message and returns it with its id and
	// timestamp assigned.
	CreateMessage(ctx context.Context, roomID domain.RoomID, userID domain.UserID, text string) (*domain.Message, error)

	// FindUserByID resolves a durable account to a connection identity.
	FindUserByID(ctx context.Context, id domain.UserID) (*domain.Identity, error)

	// RecordModerationEvent appends to the audit trail.
	RecordModerationEvent(ctx context.Context, ev domain.ModerationEvent) error
}
