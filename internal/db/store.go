package db

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Document keys for the persisted JSON documents.
const (
	DocWalletConnection = "wallet-connection"
	DocCache            = "subspace-cache"
	DocUIState          = "global-ui-state"
)

// Store is the client-side local storage: a small sqlite database holding
// independently-serialized JSON documents keyed by name.
type Store struct {
	db *sql.DB
}

// NewStore opens or creates the client database.
func NewStore(path string) (*Store, error) {
	db, err := sql.Open("sqlite3", path+"?_fk=on")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	s := &Store{db: db}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to migrate database: %w", err)
	}

	return s, nil
}

// Close closes the database connection.
func (s *Store) Close() error {
	return s.db.Close()
}

func (s *Store) migrate() error {
	schema := `
		CREATE TABLE IF NOT EXISTS documents (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL,
			updated_at DATETIME NOT NULL
		);

		CREATE TABLE IF NOT EXISTS preferences (
			key TEXT PRIMARY KEY,
			value TEXT NOT NULL
		);
	`
	_, err := s.db.Exec(schema)
	return err
}

// GetDocument retrieves a stored document, or nil if absent.
func (s *Store) GetDocument(key string) ([]byte, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM documents WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return []byte(value), nil
}

// SetDocument stores or replaces a document.
func (s *Store) SetDocument(key string, data []byte) error {
	_, err := s.db.Exec(`
		INSERT INTO documents (key, value, updated_at) VALUES (?, ?, ?)
		ON CONFLICT(key) DO UPDATE SET
			value = excluded.value,
			updated_at = excluded.updated_at
	`, key, string(data), time.Now().UTC())
	return err
}

// DeleteDocument removes a document.
func (s *Store) DeleteDocument(key string) error {
	_, err := s.db.Exec(`DELETE FROM documents WHERE key = ?`, key)
	return err
}

// GetPreference retrieves a preference value.
func (s *Store) GetPreference(key string) (string, error) {
	var value string
	err := s.db.QueryRow(`SELECT value FROM preferences WHERE key = ?`, key).Scan(&value)
	if err == sql.ErrNoRows {
		return "", nil
	}
	return value, err
}

// SetPreference sets a preference value.
func (s *Store) SetPreference(key, value string) error {
	_, err := s.db.Exec(`
		INSERT INTO preferences (key, value) VALUES (?, ?)
		ON CONFLICT(key) DO UPDATE SET value = excluded.value
	`, key, value)
	return err
}
