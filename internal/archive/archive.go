package archive

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/edulive/collab/internal/collab"
	"github.com/edulive/collab/internal/room"
)

// Store writes closed-session records into the platform's relational
// store. It is a sink only: the engine never reads session state back
// from it.
type Store struct {
	db *sql.DB
}

func InitDB(databaseURL string) (*sql.DB, error) {
	db, err := sql.Open("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(25)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(5 * time.Minute)
	if err := db.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return db, nil
}

const schema = `
CREATE TABLE IF NOT EXISTS session_archive (
    id           UUID PRIMARY KEY,
    name         VARCHAR(100) NOT NULL DEFAULT '',
    course_id    UUID,
    creator_id   UUID,
    kind         VARCHAR(20) NOT NULL,
    parent_id    UUID,
    capacity     INT NOT NULL,
    message_count INT NOT NULL DEFAULT 0,
    created_at   TIMESTAMPTZ NOT NULL,
    closed_at    TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE TABLE IF NOT EXISTS message_archive (
    id          UUID PRIMARY KEY,
    session_id  UUID NOT NULL REFERENCES session_archive(id) ON DELETE CASCADE,
    author_id   UUID NOT NULL,
    author_name VARCHAR(50) NOT NULL DEFAULT '',
    body        TEXT NOT NULL,
    kind        VARCHAR(20) NOT NULL DEFAULT 'text',
    reply_to    UUID,
    created_at  TIMESTAMPTZ NOT NULL,
    edited_at   TIMESTAMPTZ
);
CREATE INDEX IF NOT EXISTS idx_message_archive_session ON message_archive (session_id, created_at);
`

func RunMigrations(db *sql.DB) error {
	_, err := db.Exec(schema)
	return err
}

func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// SaveSession archives a closed room together with its surviving
// history in one transaction.
func (s *Store) SaveSession(ctx context.Context, rec collab.ArchiveRecord, history []room.Message) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin archive tx: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.ExecContext(ctx,
		`INSERT INTO session_archive (id, name, course_id, creator_id, kind, parent_id, capacity, message_count, created_at)
		 VALUES ($1, $2, NULLIF($3, ''), NULLIF($4, ''), $5, NULLIF($6, ''), $7, $8, $9)
		 ON CONFLICT (id) DO NOTHING`,
		rec.ID, rec.Name, rec.CourseID, rec.CreatorID, string(rec.Kind), rec.ParentID,
		rec.Capacity, rec.MessageCount, rec.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to archive session: %w", err)
	}

	for _, m := range history {
		_, err = tx.ExecContext(ctx,
			`INSERT INTO message_archive (id, session_id, author_id, author_name, body, kind, reply_to, created_at, edited_at)
			 VALUES ($1, $2, $3, $4, $5, $6, NULLIF($7, ''), $8, $9)
			 ON CONFLICT (id) DO NOTHING`,
			m.ID, rec.ID, m.AuthorID, m.AuthorName, m.Body, m.Kind, m.ReplyTo, m.CreatedAt, m.EditedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to archive message %s: %w", m.ID, err)
		}
	}

	return tx.Commit()
}
