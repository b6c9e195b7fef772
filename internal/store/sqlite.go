package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/jiecut42/Hearthstone-Image-Recognition/internal/types"
)

// SQLiteStore keeps one row per streamer
type SQLiteStore struct {
	db *sql.DB
}

// NewSQLiteStore opens (creating if needed) the database at dbPath
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	dbPath = strings.TrimSpace(dbPath)
	if dbPath == "" {
		return nil, fmt.Errorf("empty sqlite database path")
	}
	if dbPath != ":memory:" {
		if parent := filepath.Dir(dbPath); parent != "" && parent != "." {
			if err := os.MkdirAll(parent, 0o755); err != nil {
				return nil, err
			}
		}
	}

	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	for _, pragma := range []string{
		`PRAGMA busy_timeout = 5000;`,
		`PRAGMA journal_mode = WAL;`,
	} {
		if _, err := db.ExecContext(ctx, pragma); err != nil {
			_ = db.Close()
			return nil, err
		}
	}
	if err := ensureStateSchema(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}

	slog.Info("state store opened", "backend", "sqlite", "path", dbPath)
	return &SQLiteStore{db: db}, nil
}

func ensureStateSchema(ctx context.Context, db *sql.DB) error {
	_, err := db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS streamer_state (
    streamer TEXT PRIMARY KEY,
    deck_msg TEXT,
    internal_state INTEGER,
    current_wins INTEGER,
    current_losses INTEGER,
    deck TEXT,
    updated_at_ms INTEGER NOT NULL
)`)
	return err
}

// Load reads the streamer row
func (s *SQLiteStore) Load(ctx context.Context, streamer string) (State, error) {
	row := s.db.QueryRowContext(ctx, `
SELECT deck_msg, internal_state, current_wins, current_losses, deck
FROM streamer_state
WHERE streamer = ?
`, streamer)

	var (
		deckMsg  sql.NullString
		internal sql.NullInt64
		wins     sql.NullInt64
		losses   sql.NullInt64
		deck     sql.NullString
	)
	if err := row.Scan(&deckMsg, &internal, &wins, &losses, &deck); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return State{}, ErrNotFound
		}
		return State{}, fmt.Errorf("failed to read state row: %w", err)
	}

	var st State
	if deckMsg.Valid {
		st.DeckMsg = ptr(deckMsg.String)
	}
	if internal.Valid && internal.Int64 >= 0 {
		st.InternalState = ptr(types.Feature(internal.Int64))
	}
	if wins.Valid && validCount(int(wins.Int64)) {
		st.Wins = ptr(int(wins.Int64))
	}
	if losses.Valid && validCount(int(losses.Int64)) {
		st.Losses = ptr(int(losses.Int64))
	}
	if deck.Valid {
		st.EncodedDeck = ptr(deck.String)
	}
	return st, nil
}

// Save upserts the row. Absent fields keep their stored value.
func (s *SQLiteStore) Save(ctx context.Context, streamer string, st State) error {
	var internal *int64
	if st.InternalState != nil {
		internal = ptr(int64(*st.InternalState))
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO streamer_state (
    streamer, deck_msg, internal_state, current_wins, current_losses, deck, updated_at_ms
)
VALUES (?, ?, ?, ?, ?, ?, ?)
ON CONFLICT(streamer) DO UPDATE SET
    deck_msg = COALESCE(excluded.deck_msg, deck_msg),
    internal_state = COALESCE(excluded.internal_state, internal_state),
    current_wins = COALESCE(excluded.current_wins, current_wins),
    current_losses = COALESCE(excluded.current_losses, current_losses),
    deck = COALESCE(excluded.deck, deck),
    updated_at_ms = excluded.updated_at_ms
`, streamer, nullable(st.DeckMsg), nullable(internal), nullable(st.Wins), nullable(st.Losses),
		nullable(st.EncodedDeck), time.Now().UTC().UnixMilli())
	if err != nil {
		return fmt.Errorf("failed to write state row: %w", err)
	}

	slog.Debug("state saved", "backend", "sqlite", "streamer", streamer)
	return nil
}

// Close closes the database
func (s *SQLiteStore) Close() error {
	if s == nil || s.db == nil {
		return nil
	}
	return s.db.Close()
}

func nullable[T any](v *T) any {
	if v == nil {
		return nil
	}
	return *v
}
