// Package persistence provides SQLite-based storage for auth tokens, the
// play journal, and roster snapshots.
package persistence

import (
	"database/sql"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
	_ "modernc.org/sqlite"

	"github.com/talgya/pokebot/internal/gateway"
	"github.com/talgya/pokebot/internal/session"
)

// DB wraps a SQLite connection.
type DB struct {
	conn *sqlx.DB
}

// Open opens or creates a SQLite database at the given path.
func Open(path string) (*DB, error) {
	conn, err := sqlx.Open("sqlite", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("open db: %w", err)
	}

	db := &DB{conn: conn}
	if err := db.migrate(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("migrate: %w", err)
	}

	return db, nil
}

// Close closes the database connection.
func (db *DB) Close() error {
	return db.conn.Close()
}

func (db *DB) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS auth_tokens (
		provider TEXT NOT NULL,
		username TEXT NOT NULL,
		token TEXT NOT NULL,
		saved_at INTEGER NOT NULL,
		PRIMARY KEY (provider, username)
	);

	CREATE TABLE IF NOT EXISTS journal (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		at INTEGER NOT NULL,
		kind TEXT NOT NULL,
		detail TEXT NOT NULL
	);

	CREATE TABLE IF NOT EXISTS roster (
		id INTEGER PRIMARY KEY,
		species_id INTEGER NOT NULL,
		cp INTEGER NOT NULL,
		max_cp REAL NOT NULL,
		level REAL NOT NULL,
		iv_attack INTEGER NOT NULL,
		iv_defense INTEGER NOT NULL,
		iv_stamina INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS bag (
		item_id INTEGER PRIMARY KEY,
		count INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS meta (
		key TEXT PRIMARY KEY,
		value TEXT NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_journal_at ON journal(at);
	CREATE INDEX IF NOT EXISTS idx_roster_species ON roster(species_id);
	`
	_, err := db.conn.Exec(schema)
	return err
}

// SaveToken stores an access token for a provider account.
func (db *DB) SaveToken(provider, username, token string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO auth_tokens (provider, username, token, saved_at) VALUES (?, ?, ?, ?)",
		provider, username, token, time.Now().Unix(),
	)
	return err
}

// Token retrieves a stored access token. A missing row is not an error;
// it returns the empty string.
func (db *DB) Token(provider, username string) (string, error) {
	var token string
	err := db.conn.Get(&token,
		"SELECT token FROM auth_tokens WHERE provider = ? AND username = ?",
		provider, username,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", err
	}
	return token, nil
}

// ClearToken discards a stored access token, typically after the server
// rejected it.
func (db *DB) ClearToken(provider, username string) error {
	_, err := db.conn.Exec(
		"DELETE FROM auth_tokens WHERE provider = ? AND username = ?",
		provider, username,
	)
	return err
}

// JournalEntry is one recorded play event.
type JournalEntry struct {
	At     int64  `db:"at"`
	Kind   string `db:"kind"`
	Detail string `db:"detail"`
}

// Journal appends one event to the play journal.
func (db *DB) Journal(kind, detail string) error {
	_, err := db.conn.Exec(
		"INSERT INTO journal (at, kind, detail) VALUES (?, ?, ?)",
		time.Now().Unix(), kind, detail,
	)
	return err
}

// RecentJournal returns the most recent N journal entries.
func (db *DB) RecentJournal(limit int) ([]JournalEntry, error) {
	var entries []JournalEntry
	err := db.conn.Select(&entries,
		"SELECT at, kind, detail FROM journal ORDER BY id DESC LIMIT ?",
		limit,
	)
	return entries, err
}

// SaveRoster writes the owned creatures to the database (full replace).
func (db *DB) SaveRoster(creatures []*session.Creature) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM roster"); err != nil {
		return err
	}

	stmt, err := tx.Preparex(`INSERT INTO roster
		(id, species_id, cp, max_cp, level, iv_attack, iv_defense, iv_stamina)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return err
	}
	defer stmt.Close()

	for _, c := range creatures {
		_, err := stmt.Exec(
			c.ID, c.SpeciesID, c.CP, c.MaxCP, c.Level,
			c.IVAttack, c.IVDefense, c.IVStamina,
		)
		if err != nil {
			return fmt.Errorf("insert creature %d: %w", c.ID, err)
		}
	}

	return tx.Commit()
}

// SaveBag writes the held item counts to the database (full replace).
func (db *DB) SaveBag(items map[gateway.ItemID]int) error {
	tx, err := db.conn.Beginx()
	if err != nil {
		return err
	}
	defer tx.Rollback()

	if _, err := tx.Exec("DELETE FROM bag"); err != nil {
		return err
	}

	for id, count := range items {
		if _, err := tx.Exec("INSERT INTO bag (item_id, count) VALUES (?, ?)", id, count); err != nil {
			return fmt.Errorf("insert item %d: %w", id, err)
		}
	}

	return tx.Commit()
}

// SaveMeta stores a key-value pair.
func (db *DB) SaveMeta(key, value string) error {
	_, err := db.conn.Exec(
		"INSERT OR REPLACE INTO meta (key, value) VALUES (?, ?)",
		key, value,
	)
	return err
}

// GetMeta retrieves a metadata value.
func (db *DB) GetMeta(key string) (string, error) {
	var value string
	err := db.conn.Get(&value, "SELECT value FROM meta WHERE key = ?", key)
	return value, err
}

// SaveSnapshot performs a full save of the session state.
func (db *DB) SaveSnapshot(s *session.Session) error {
	slog.Info("saving snapshot", "creatures", s.CreatureCount(), "items", s.TotalItems())

	var roster []*session.Creature
	for _, group := range s.Lineages() {
		roster = append(roster, group...)
	}
	if err := db.SaveRoster(roster); err != nil {
		return fmt.Errorf("save roster: %w", err)
	}
	if err := db.SaveBag(s.Items()); err != nil {
		return fmt.Errorf("save bag: %w", err)
	}
	if err := db.SaveMeta("level", fmt.Sprintf("%d", s.Profile.Level)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}
	if err := db.SaveMeta("experience", fmt.Sprintf("%d", s.Profile.Experience)); err != nil {
		return fmt.Errorf("save meta: %w", err)
	}

	slog.Info("snapshot saved")
	return nil
}
