package storage

import (
	"database/sql"
	"errors"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"

	"github.com/starford/kalendar/internal/checksum"
)

const schemaSQL = `
CREATE TABLE IF NOT EXISTS snapshots (
	key        TEXT PRIMARY KEY,
	data       BLOB NOT NULL,
	checksum   TEXT NOT NULL DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// SQLite implements Provider on a single key/value table.
type SQLite struct {
	conn *sql.DB
}

// OpenSQLite opens (or creates) the database and applies the schema.
func OpenSQLite(dsn string) (*SQLite, error) {
	conn, err := sql.Open("sqlite3", dsn+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("storage: open db: %w", err)
	}
	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: ping: %w", err)
	}
	if _, err := conn.Exec(schemaSQL); err != nil {
		conn.Close()
		return nil, fmt.Errorf("storage: apply schema: %w", err)
	}
	return &SQLite{conn: conn}, nil
}

// Load returns the snapshot stored under key.
func (s *SQLite) Load(key string) ([]byte, error) {
	var data []byte
	err := s.conn.QueryRow(`SELECT data FROM snapshots WHERE key = ?`, key).Scan(&data)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotExist
		}
		return nil, fmt.Errorf("storage: load %s: %w", key, err)
	}
	return data, nil
}

// Save upserts the snapshot under key.
func (s *SQLite) Save(key string, data []byte) error {
	if key == "" {
		return fmt.Errorf("storage: empty key")
	}
	_, err := s.conn.Exec(`
		INSERT INTO snapshots (key, data, checksum, updated_at)
		VALUES (?, ?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			data       = excluded.data,
			checksum   = excluded.checksum,
			updated_at = excluded.updated_at
	`, key, data, checksum.Sum(data), time.Now().UTC())
	if err != nil {
		return fmt.Errorf("storage: save %s: %w", key, err)
	}
	return nil
}

// Checksum returns the stored checksum for key, or "" if absent.
func (s *SQLite) Checksum(key string) (string, error) {
	var cs string
	err := s.conn.QueryRow(`SELECT checksum FROM snapshots WHERE key = ?`, key).Scan(&cs)
	if errors.Is(err, sql.ErrNoRows) {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("storage: checksum %s: %w", key, err)
	}
	return cs, nil
}

// Close closes the underlying database connection.
func (s *SQLite) Close() error {
	return s.conn.Close()
}

// Open builds the provider for backend rooted at path: a directory for the
// file backend, a database file for SQLite.
func Open(backend, path string) (Provider, error) {
	switch backend {
	case "", BackendFS:
		return NewFS(path)
	case BackendSQLite:
		return OpenSQLite(path)
	default:
		return nil, fmt.Errorf("storage: unknown backend %q", backend)
	}
}
