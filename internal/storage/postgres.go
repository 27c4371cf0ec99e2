package storage

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/dardasha/relay/internal/domain"
)

// PgStore implements Store on a pgx connection pool.
type PgStore struct {
	pool *pgxpool.Pool
}

var _ Store = (*PgStore)(nil)

// Connect builds a pgx pool from the DSN, verifies it with a ping, and
// wraps it in a PgStore.
func Connect(ctx context.Context, dsn string) (*PgStore, error) {
	cfg, err := pgxpool.ParseConfig(dsn)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}
	if cfg.MaxConns == 0 {
		cfg.MaxConns = 4
	}
	if cfg.MaxConnIdleTime == 0 {
		cfg.MaxConnIdleTime = 5 * time.Minute
	}
	if cfg.HealthCheckPeriod == 0 {
		cfg.HealthCheckPeriod = time.Minute
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return &PgStore{pool: pool}, nil
}

func NewPgStore(pool *pgxpool.Pool) *PgStore { return &PgStore{pool: pool} }

func (s *PgStore) Close() { s.pool.Close() }

func (s *PgStore) FindBan(ctx context.Context, fingerprint, addr string) (*domain.Ban, error) {
	const q = `
		SELECT fingerprint, ip_address, reason, expires_at
		FROM bans
		WHERE (fingerprint = $1 OR ip_address = $2)
		  AND (expires_at IS NULL OR expires_at > now())
		LIMIT 1`
	var b domain.Ban
	err := s.pool.QueryRow(ctx, q, fingerprint, addr).Scan(&b.Fingerprint, &b.Addr, &b.Reason, &b.ExpiresAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find ban: %w", err)
	}
	return &b, nil
}

func (s *PgStore) FilteredWords(ctx context.Context) ([]string, error) {
	rows, err := s.pool.Query(ctx, `SELECT word FROM filtered_words ORDER BY word`)
	if err != nil {
		return nil, fmt.Errorf("postgres: filtered words: %w", err)
	}
	defer rows.Close()

	var words []string
	for rows.Next() {
		var w string
		if err := rows.Scan(&w); err != nil {
			return nil, fmt.Errorf("postgres: filtered words scan: %w", err)
		}
		words = append(words, w)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: filtered words rows: %w", err)
	}
	return words, nil
}

func (s *PgStore) CreateMessage(ctx context.Context, roomID domain.RoomID, userID domain.UserID, text string) (*domain.Message, error) {
	const q = `
		INSERT INTO messages (room_id, user_id, text)
		VALUES ($1, $2, $3)
		RETURNING id, created_at`
	m := domain.Message{RoomID: roomID, UserID: userID, Text: text}
	if err := s.pool.QueryRow(ctx, q, string(roomID), int64(userID), text).Scan(&m.ID, &m.CreatedAt); err != nil {
		return nil, fmt.Errorf("postgres: create message: %w", err)
	}
	return &m, nil
}

func (s *PgStore) FindUserByID(ctx context.Context, id domain.UserID) (*domain.Identity, error) {
	const q = `SELECT id, name, role FROM users WHERE id = $1`
	var (
		uid  int64
		name string
		role string
	)
	err := s.pool.QueryRow(ctx, q, int64(id)).Scan(&uid, &name, &role)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("postgres: find user: %w", err)
	}
	ident, err := domain.NewIdentity(domain.UserID(uid), name, domain.Role(role))
	if err != nil {
		return nil, fmt.Errorf("postgres: find user: %w", err)
	}
	return ident, nil
}

func (s *PgStore) RecordModerationEvent(ctx context.Context, ev domain.ModerationEvent) error {
	at := ev.At
	if at.IsZero() {
		at = time.Now()
	}
	const q = `
		INSERT INTO moderation_events (action, room_id, user_id, detail, created_at)
		VALUES ($1, $2, $3, $4, $5)`
	if _, err := s.pool.Exec(ctx, q, ev.Action, string(ev.RoomID), int64(ev.UserID), ev.Detail, at); err != nil {
		return fmt.Errorf("postgres: record moderation event: %w", err)
	}
	return nil
}
