// Package directory persists a write-only record of which tables exist
// and who is seated at them, adapted from the teacher's
// SessionPostgresStorage (player-session rows repurposed to table-
// directory rows). Per §4.6, the registry is the source of truth for
// live gameplay; this store is written to fire-and-forget so an
// operator can query "what tables exist" without the hard core ever
// reading it back.
package directory

import (
	"context"
	"database/sql"
	"time"

	_ "github.com/lib/pq"
)

// TableRecord is one row describing a table's current shape.
type TableRecord struct {
	TableID     string
	MaxPlayers  int
	SmallBlind  int64
	BigBlind    int64
	CreatedAt   time.Time
	ClosedAt    *time.Time
	SeatsTaken  int
	HandsPlayed int64
}

// Store is the write side of the table directory. Nothing in the
// engine, controller, or session packages depends on it for
// correctness; it exists purely so an operator or a lobby service can
// ask "what tables exist" without touching a live table actor.
type Store interface {
	CreateTable(ctx context.Context, rec TableRecord) error
	CloseTable(ctx context.Context, tableID string) error
	RecordHandPlayed(ctx context.Context, tableID string, seatsTaken int) error
	ListOpenTables(ctx context.Context) ([]TableRecord, error)
}

// PostgresStore implements Store over a *sql.DB opened with the lib/pq
// driver, following the teacher's SessionPostgresStorage shape: plain
// ExecContext/QueryContext calls, no ORM, ON CONFLICT upserts where the
// teacher's fingerprint table also used them.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore wraps an already-opened database handle.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// CreateTableDirectory creates the backing table if it doesn't exist.
func (s *PostgresStore) CreateTableDirectory(ctx context.Context) error {
	query := `
		CREATE TABLE IF NOT EXISTS table_directory (
			table_id VARCHAR(64) PRIMARY KEY,
			max_players INTEGER NOT NULL,
			small_blind BIGINT NOT NULL,
			big_blind BIGINT NOT NULL,
			created_at TIMESTAMP NOT NULL,
			closed_at TIMESTAMP,
			seats_taken INTEGER DEFAULT 0,
			hands_played BIGINT DEFAULT 0
		);

		CREATE INDEX IF NOT EXISTS idx_table_directory_closed_at ON table_directory(closed_at);
	`
	_, err := s.db.ExecContext(ctx, query)
	return err
}

// CreateTable inserts a new row, or revives a closed one under the same
// id (a table id reused after GC and re-creation).
func (s *PostgresStore) CreateTable(ctx context.Context, rec TableRecord) error {
	query := `
		INSERT INTO table_directory (
			table_id, max_players, small_blind, big_blind,
			created_at, closed_at, seats_taken, hands_played
		) VALUES ($1, $2, $3, $4, $5, NULL, 0, 0)
		ON CONFLICT (table_id) DO UPDATE SET
			max_players = EXCLUDED.max_players,
			small_blind = EXCLUDED.small_blind,
			big_blind = EXCLUDED.big_blind,
			created_at = EXCLUDED.created_at,
			closed_at = NULL
	`
	_, err := s.db.ExecContext(ctx, query,
		rec.TableID, rec.MaxPlayers, rec.SmallBlind, rec.BigBlind, rec.CreatedAt,
	)
	return err
}

// CloseTable marks a table as gone, e.g. on empty-table GC.
func (s *PostgresStore) CloseTable(ctx context.Context, tableID string) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE table_directory SET closed_at = $1 WHERE table_id = $2 AND closed_at IS NULL
	`, time.Now(), tableID)
	return err
}

// RecordHandPlayed bumps the hands-played counter and refreshes the
// current seat count, called once per EventHandComplete.
func (s *PostgresStore) RecordHandPlayed(ctx context.Context, tableID string, seatsTaken int) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE table_directory
		SET hands_played = hands_played + 1, seats_taken = $1
		WHERE table_id = $2
	`, seatsTaken, tableID)
	return err
}

// ListOpenTables returns every table that hasn't been closed.
func (s *PostgresStore) ListOpenTables(ctx context.Context) ([]TableRecord, error) {
	query := `
		SELECT table_id, max_players, small_blind, big_blind,
			   created_at, closed_at, seats_taken, hands_played
		FROM table_directory
		WHERE closed_at IS NULL
		ORDER BY created_at DESC
	`
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []TableRecord
	for rows.Next() {
		var rec TableRecord
		var closedAt sql.NullTime
		if err := rows.Scan(
			&rec.TableID, &rec.MaxPlayers, &rec.SmallBlind, &rec.BigBlind,
			&rec.CreatedAt, &closedAt, &rec.SeatsTaken, &rec.HandsPlayed,
		); err != nil {
			return nil, err
		}
		if closedAt.Valid {
			rec.ClosedAt = &closedAt.Time
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

var _ Store = (*PostgresStore)(nil)
