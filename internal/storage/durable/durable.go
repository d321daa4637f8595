// Package durable is the transactional tier of the progress store. It
// wraps the sqlite database behind the same table/key/value surface the
// browser build gets from IndexedDB, so the reconciler never sees SQL.
package durable

import (
	"database/sql"
	"fmt"

	"github.com/chronochess/progress/internal/database"
)

// Known logical tables. Save rejects anything else so a typo cannot
// silently create an orphan table the init merge never reads.
const (
	TableAchievements = "achievements"
	TableStatistics   = "statistics"
	TableCombinations = "combinations"
	TableContent      = "unlocked_content"
)

var knownTables = map[string]bool{
	TableAchievements: true,
	TableStatistics:   true,
	TableCombinations: true,
	TableContent:      true,
}

// ListOptions mirrors the query shape of the browser store: order by key
// or by write time, either direction, optionally limited.
type ListOptions struct {
	Index     string // "key" (default) or "updated_at"
	Direction string // "asc" (default) or "desc"
	Limit     int
}

type Store struct {
	db          *database.DB
	initialized bool
}

func NewStore(db *database.DB) *Store {
	return &Store{db: db}
}

// Initialize verifies the backing database is reachable. Kept separate
// from construction so the reconciler's init protocol can retry it.
func (s *Store) Initialize() error {
	if s.initialized {
		return nil
	}
	if err := s.db.Ping(); err != nil {
		return fmt.Errorf("durable store unavailable: %w", err)
	}
	s.initialized = true
	return nil
}

func (s *Store) Save(table, key string, value []byte) error {
	if !knownTables[table] {
		return fmt.Errorf("unknown table %q", table)
	}
	query := `
		INSERT INTO progress_records (tbl, key, value, updated_at)
		VALUES (?, ?, ?, CURRENT_TIMESTAMP)
		ON CONFLICT(tbl, key) DO UPDATE SET
			value = excluded.value,
			updated_at = CURRENT_TIMESTAMP
	`
	if _, err := s.db.Exec(query, table, key, value); err != nil {
		return fmt.Errorf("failed to save %s/%s: %w", table, key, err)
	}
	return nil
}

// Load returns nil (not an error) when the key is absent, matching the
// load(table,key) -> value|null contract.
func (s *Store) Load(table, key string) ([]byte, error) {
	var value []byte
	err := s.db.Get(&value, `SELECT value FROM progress_records WHERE tbl = ? AND key = ?`, table, key)
	if err == sql.ErrNoRows {
		return nil, nil
	} else if err != nil {
		return nil, fmt.Errorf("failed to load %s/%s: %w", table, key, err)
	}
	return value, nil
}

func (s *Store) List(table string, opts ListOptions) ([]string, error) {
	order := "key"
	if opts.Index == "updated_at" {
		order = "updated_at"
	}
	dir := "ASC"
	if opts.Direction == "desc" {
		dir = "DESC"
	}

	query := fmt.Sprintf(`SELECT key FROM progress_records WHERE tbl = ? ORDER BY %s %s`, order, dir)
	args := []interface{}{table}
	if opts.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, opts.Limit)
	}

	var keys []string
	if err := s.db.Select(&keys, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", table, err)
	}
	return keys, nil
}

func (s *Store) Count(table string) (int, error) {
	var count int
	err := s.db.Get(&count, `SELECT COUNT(*) FROM progress_records WHERE tbl = ?`, table)
	if err != nil {
		return 0, fmt.Errorf("failed to count %s: %w", table, err)
	}
	return count, nil
}

func (s *Store) Delete(table, key string) error {
	if _, err := s.db.Exec(`DELETE FROM progress_records WHERE tbl = ? AND key = ?`, table, key); err != nil {
		return fmt.Errorf("failed to delete %s/%s: %w", table, key, err)
	}
	return nil
}
