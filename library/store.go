// Package library tracks known games and play sessions in SQLite.
package library

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"
)

// Timestamps are stored as unix seconds so aggregates stay scannable.
const schema = `
CREATE TABLE IF NOT EXISTS games (
	crc32    TEXT PRIMARY KEY,
	path     TEXT NOT NULL,
	system   TEXT NOT NULL,
	name     TEXT NOT NULL,
	added_at INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS sessions (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	game_crc32 TEXT NOT NULL REFERENCES games(crc32),
	started_at INTEGER NOT NULL,
	seconds    INTEGER NOT NULL
);

CREATE INDEX IF NOT EXISTS sessions_by_game ON sessions(game_crc32);
`

// Game is one known ROM, identified by the CRC32 of its image.
type Game struct {
	CRC    string
	Path   string
	System string
	Name   string
}

// Entry is a library row with play aggregates.
type Entry struct {
	Game
	Plays      int
	PlayTime   time.Duration
	LastPlayed time.Time // zero when never played
}

// Store wraps the library database.
type Store struct {
	db *sql.DB
}

// Open opens or creates the library database at path, applying the
// schema on first use.
func Open(path string) (*Store, error) {
	if strings.HasPrefix(path, "~/") {
		if home, err := os.UserHomeDir(); err == nil {
			path = filepath.Join(home, path[2:])
		}
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping database: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

// Close releases the database handle.
func (s *Store) Close() error { return s.db.Close() }

// SaveGame inserts a game or refreshes its path, system, and name.
func (s *Store) SaveGame(g Game) error {
	_, err := s.db.Exec(`
		INSERT INTO games (crc32, path, system, name, added_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(crc32) DO UPDATE SET
			path = excluded.path, system = excluded.system, name = excluded.name`,
		g.CRC, g.Path, g.System, g.Name, time.Now().Unix())
	if err != nil {
		return fmt.Errorf("save game: %w", err)
	}
	return nil
}

// RecordSession appends one play session.
func (s *Store) RecordSession(crc string, started time.Time, played time.Duration) error {
	_, err := s.db.Exec(`
		INSERT INTO sessions (game_crc32, started_at, seconds) VALUES (?, ?, ?)`,
		crc, started.Unix(), int64(played.Seconds()))
	if err != nil {
		return fmt.Errorf("record session: %w", err)
	}
	return nil
}

// Games lists every known game with play aggregates, sorted by name.
func (s *Store) Games() ([]Entry, error) {
	rows, err := s.db.Query(`
		SELECT g.crc32, g.path, g.system, g.name,
		       COUNT(s.id), COALESCE(SUM(s.seconds), 0), MAX(s.started_at)
		FROM games g
		LEFT JOIN sessions s ON s.game_crc32 = g.crc32
		GROUP BY g.crc32
		ORDER BY g.name COLLATE NOCASE`)
	if err != nil {
		return nil, fmt.Errorf("list games: %w", err)
	}
	defer rows.Close()

	var out []Entry
	for rows.Next() {
		var e Entry
		var seconds int64
		var last sql.NullInt64
		if err := rows.Scan(&e.CRC, &e.Path, &e.System, &e.Name, &e.Plays, &seconds, &last); err != nil {
			return nil, fmt.Errorf("scan game: %w", err)
		}
		e.PlayTime = time.Duration(seconds) * time.Second
		if last.Valid {
			e.LastPlayed = time.Unix(last.Int64, 0)
		}
		out = append(out, e)
	}
	return out, rows.Err()
}
