package transcript

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	_ "modernc.org/sqlite"

	"voice-call-orchestrator/internal/pipeline"
)

const schema = `
CREATE TABLE IF NOT EXISTS transcripts (
	session      TEXT NOT NULL,
	persisted_at TEXT NOT NULL,
	turn_index   INTEGER NOT NULL,
	role         TEXT NOT NULL,
	text         TEXT NOT NULL,
	confidence   REAL,
	spoken_at    TEXT NOT NULL,
	PRIMARY KEY (session, turn_index)
);`

// SQLiteStore persists transcripts into a local SQLite database, one row
// per turn.
type SQLiteStore struct {
	db *sql.DB
}

// OpenSQLite opens (and migrates) the transcript database.
func OpenSQLite(path string) (*SQLiteStore, error) {
	dsn := fmt.Sprintf("file:%s?cache=shared&_pragma=foreign_keys(1)", path)
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open transcript db %s: %w", path, err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("migrate transcript db: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Persist writes all turns of a session in one transaction and returns a
// sqlite:<session> reference. Re-persisting a session replaces its rows.
func (s *SQLiteStore) Persist(ctx context.Context, sessionName string, turns []pipeline.Turn) (string, error) {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return "", fmt.Errorf("begin transcript tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM transcripts WHERE session=?`, sessionName); err != nil {
		return "", fmt.Errorf("clear transcript %s: %w", sessionName, err)
	}

	now := time.Now().UTC().Format(time.RFC3339Nano)
	for i, turn := range turns {
		_, err := tx.ExecContext(ctx,
			`INSERT INTO transcripts(session,persisted_at,turn_index,role,text,confidence,spoken_at) VALUES (?,?,?,?,?,?,?)`,
			sessionName, now, i, string(turn.Role), turn.Text, nullableFloat(turn.Confidence), turn.Timestamp.UTC().Format(time.RFC3339Nano))
		if err != nil {
			return "", fmt.Errorf("insert transcript turn %d: %w", i, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return "", fmt.Errorf("commit transcript %s: %w", sessionName, err)
	}

	log.Info().
		Str("component", "transcript").
		Str("room", sessionName).
		Int("turns", len(turns)).
		Msg("Transcript persisted")
	return "sqlite:" + sessionName, nil
}

// Load returns a session's turns in spoken order.
func (s *SQLiteStore) Load(ctx context.Context, sessionName string) ([]pipeline.Turn, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT role,text,COALESCE(confidence,0),spoken_at FROM transcripts WHERE session=? ORDER BY turn_index`, sessionName)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []pipeline.Turn
	for rows.Next() {
		var (
			role, text, spokenAt string
			confidence           float64
		)
		if err := rows.Scan(&role, &text, &confidence, &spokenAt); err != nil {
			return nil, err
		}
		ts, err := time.Parse(time.RFC3339Nano, spokenAt)
		if err != nil {
			return nil, fmt.Errorf("parse spoken_at %q: %w", spokenAt, err)
		}
		turns = append(turns, pipeline.Turn{
			Role:       pipeline.Role(role),
			Text:       text,
			Confidence: confidence,
			Timestamp:  ts,
		})
	}
	return turns, rows.Err()
}

// Close closes the underlying database.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

func nullableFloat(f float64) any {
	if f == 0 {
		return nil
	}
	return f
}
