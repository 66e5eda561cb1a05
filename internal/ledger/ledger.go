// Package ledger is the durable dedup record preventing the same track
// from being queued twice across runs and concurrent invocations.
//
// A reservation is held from the moment a track is selected for download
// until the transfer is confirmed complete or failed permanently. Entries
// never expire on their own; stale reservations are surfaced, not cleared.
package ledger

import (
	"database/sql"
	"fmt"
	"time"
)

// Entry is one active reservation.
type Entry struct {
	Key        string // normalized artist|title, see match.TrackKey
	Artist     string
	Title      string
	Source     string // which stage or script reserved it
	RemotePath string // the enqueued remote file, used to match transfers
	QueuedAt   time.Time
}

// querier abstracts *sql.DB and *sql.Tx for shared query logic.
type querier interface {
	QueryRow(query string, args ...any) *sql.Row
	Query(query string, args ...any) (*sql.Rows, error)
	Exec(query string, args ...any) (sql.Result, error)
}

// Store provides access to ledger data.
type Store struct {
	db *sql.DB
}

// NewStore creates a new ledger store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Begin starts a transaction.
func (s *Store) Begin() (*Tx, error) {
	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	return &Tx{tx: tx}, nil
}

// Tx wraps a database transaction with the same methods as Store.
type Tx struct {
	tx *sql.Tx
}

// Commit commits the transaction.
func (t *Tx) Commit() error {
	return t.tx.Commit()
}

// Rollback aborts the transaction.
func (t *Tx) Rollback() error {
	return t.tx.Rollback()
}

func reserve(q querier, e Entry) (bool, error) {
	if e.QueuedAt.IsZero() {
		e.QueuedAt = time.Now().UTC()
	}
	// Single INSERT with conflict handling: the check-and-set is one
	// atomic statement, so two concurrent callers can never both win.
	result, err := q.Exec(`
		INSERT INTO ledger (track_key, artist, title, source, remote_path, queued_at)
		VALUES (?, ?, ?, ?, ?, ?)
		ON CONFLICT(track_key) DO NOTHING`,
		e.Key, e.Artist, e.Title, e.Source, e.RemotePath, e.QueuedAt,
	)
	if err != nil {
		return false, fmt.Errorf("reserve %s: %w", e.Key, mapSQLiteError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return n == 1, nil
}

// Reserve atomically claims the track key. Returns true when the key was
// newly reserved, false when another caller already holds it.
func (s *Store) Reserve(e Entry) (bool, error) { return reserve(s.db, e) }

// Reserve claims the track key within a transaction.
func (t *Tx) Reserve(e Entry) (bool, error) { return reserve(t.tx, e) }

func release(q querier, key string) error {
	result, err := q.Exec(`DELETE FROM ledger WHERE track_key = ?`, key)
	if err != nil {
		return fmt.Errorf("release %s: %w", key, mapSQLiteError(err))
	}
	n, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}

// Release removes the reservation for the given key.
// Returns ErrNotFound if no reservation is held.
func (s *Store) Release(key string) error { return release(s.db, key) }

// Release removes the reservation within a transaction.
func (t *Tx) Release(key string) error { return release(t.tx, key) }

func isReserved(q querier, key string) (bool, error) {
	var one int
	err := q.QueryRow(`SELECT 1 FROM ledger WHERE track_key = ?`, key).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("check reservation %s: %w", key, err)
	}
	return true, nil
}

// IsReserved reports whether a reservation is held for the key.
func (s *Store) IsReserved(key string) (bool, error) { return isReserved(s.db, key) }

// IsReserved reports reservation state within a transaction.
func (t *Tx) IsReserved(key string) (bool, error) { return isReserved(t.tx, key) }

func get(q querier, key string) (*Entry, error) {
	e := &Entry{}
	err := q.QueryRow(`
		SELECT track_key, artist, title, source, remote_path, queued_at
		FROM ledger WHERE track_key = ?`, key,
	).Scan(&e.Key, &e.Artist, &e.Title, &e.Source, &e.RemotePath, &e.QueuedAt)
	if err != nil {
		return nil, fmt.Errorf("get reservation %s: %w", key, mapSQLiteError(err))
	}
	return e, nil
}

// Get retrieves a reservation by key.
// Returns ErrNotFound if no reservation is held.
func (s *Store) Get(key string) (*Entry, error) { return get(s.db, key) }

func list(q querier) ([]*Entry, error) {
	rows, err := q.Query(`
		SELECT track_key, artist, title, source, remote_path, queued_at
		FROM ledger ORDER BY queued_at ASC, track_key ASC`)
	if err != nil {
		return nil, fmt.Errorf("list reservations: %w", err)
	}
	defer rows.Close()

	var entries []*Entry
	for rows.Next() {
		e := &Entry{}
		if err := rows.Scan(&e.Key, &e.Artist, &e.Title, &e.Source, &e.RemotePath, &e.QueuedAt); err != nil {
			return nil, fmt.Errorf("scan reservation: %w", err)
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// List returns all active reservations, oldest first.
func (s *Store) List() ([]*Entry, error) { return list(s.db) }

// List returns all active reservations within a transaction.
func (t *Tx) List() ([]*Entry, error) { return list(t.tx) }

// Stale returns reservations older than the threshold whose remote path
// appears in none of the given active transfer paths. These indicate a
// download the daemon has forgotten about; they are reported, never
// auto-cleared, since the original may still be in flight on a slow peer.
func (s *Store) Stale(activePaths map[string]bool, olderThan time.Duration) ([]*Entry, error) {
	entries, err := list(s.db)
	if err != nil {
		return nil, err
	}
	cutoff := time.Now().Add(-olderThan)

	var stale []*Entry
	for _, e := range entries {
		if e.QueuedAt.After(cutoff) {
			continue
		}
		if activePaths[e.RemotePath] {
			continue
		}
		stale = append(stale, e)
	}
	return stale, nil
}
