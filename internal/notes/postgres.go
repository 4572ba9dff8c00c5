package notes

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Schema is the SQL DDL for the session_notes table. Execute it via
// [PostgresStore.Migrate] or apply it manually during deployment.
const Schema = `
CREATE TABLE IF NOT EXISTS session_notes (
    id         TEXT PRIMARY KEY,
    session_id TEXT NOT NULL,
    markdown   TEXT NOT NULL DEFAULT '',
    created_at TIMESTAMPTZ NOT NULL DEFAULT now()
);
CREATE INDEX IF NOT EXISTS idx_session_notes_session ON session_notes(session_id, created_at DESC);
`

// DB is the database interface used by [PostgresStore]. Both *pgxpool.Pool
// and *pgx.Conn satisfy this interface.
type DB interface {
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
}

// PostgresStore is a [Store] backed by a PostgreSQL database.
type PostgresStore struct {
	db DB
}

// Compile-time interface check.
var _ Store = (*PostgresStore)(nil)

// NewPostgresStore creates a new [PostgresStore] that uses the given database
// connection or pool. The caller is responsible for calling
// [PostgresStore.Migrate] to ensure the schema exists before issuing queries.
func NewPostgresStore(db DB) *PostgresStore {
	return &PostgresStore{db: db}
}

// Migrate executes the [Schema] DDL against the database, creating the
// session_notes table and index if they do not already exist.
func (s *PostgresStore) Migrate(ctx context.Context) error {
	_, err := s.db.Exec(ctx, Schema)
	if err != nil {
		return fmt.Errorf("notes: migrate: %w", err)
	}
	return nil
}

// Save implements Store. Saving an existing id overwrites the stored note.
func (s *PostgresStore) Save(ctx context.Context, n *Note) (*Note, error) {
	stored := *n
	if stored.ID == "" {
		stored.ID = uuid.NewString()
	}

	const query = `
		INSERT INTO session_notes (id, session_id, markdown, created_at)
		VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			session_id = EXCLUDED.session_id,
			markdown   = EXCLUDED.markdown
		RETURNING created_at`

	err := s.db.QueryRow(ctx, query,
		stored.ID, stored.SessionID, stored.Markdown, stored.CreatedAt,
	).Scan(&stored.CreatedAt)
	if err != nil {
		return nil, fmt.Errorf("notes: save %q: %w", stored.ID, err)
	}
	return &stored, nil
}

// Get implements Store.
func (s *PostgresStore) Get(ctx context.Context, id string) (*Note, error) {
	const query = `
		SELECT id, session_id, markdown, created_at
		FROM session_notes
		WHERE id = $1`

	var n Note
	err := s.db.QueryRow(ctx, query, id).Scan(&n.ID, &n.SessionID, &n.Markdown, &n.CreatedAt)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("notes: get %q: %w", id, err)
	}
	return &n, nil
}

// ListBySession implements Store.
func (s *PostgresStore) ListBySession(ctx context.Context, sessionID string) ([]*Note, error) {
	const query = `
		SELECT id, session_id, markdown, created_at
		FROM session_notes
		WHERE session_id = $1
		ORDER BY created_at DESC`

	rows, err := s.db.Query(ctx, query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("notes: list session %q: %w", sessionID, err)
	}
	defer rows.Close()

	var out []*Note
	for rows.Next() {
		var n Note
		if err := rows.Scan(&n.ID, &n.SessionID, &n.Markdown, &n.CreatedAt); err != nil {
			return nil, fmt.Errorf("notes: list session %q: scan: %w", sessionID, err)
		}
		out = append(out, &n)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("notes: list session %q: %w", sessionID, err)
	}
	return out, nil
}
