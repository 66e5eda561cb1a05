// Package expiry tracks how long Not-Owned and Incomplete albums have
// been sitting in the library, and deletes the ones nobody starred
// before the retention period ran out. First-detected timestamps live in
// SQLite so age survives filesystem timestamp churn from moves.
package expiry

import (
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// Record statuses.
const (
	StatusPending = "pending" // aging, still within retention
	StatusDeleted = "deleted"
)

// ErrNotFound indicates the requested record doesn't exist.
var ErrNotFound = errors.New("expiry record not found")

// Record is the aging state of one album directory.
type Record struct {
	ID            int64
	AlbumKey      string // match.AlbumKey(artist, album)
	Artist        string
	Album         string
	Directory     string
	FileCount     int
	TotalSize     int64
	FirstDetected time.Time
	LastSeen      time.Time
	Status        string
	DeletedAt     sql.NullTime
}

// AgeDays returns whole days since the album was first detected.
func (r Record) AgeDays() int {
	return int(time.Since(r.FirstDetected).Hours() / 24)
}

// TrackFile is one audio file recorded under an album.
type TrackFile struct {
	ID       int64
	AlbumID  int64
	FilePath string
	Title    string
	Number   int
	Size     int64
}

// Store provides access to expiry records.
type Store struct {
	db *sql.DB
}

// NewStore creates a new expiry store.
func NewStore(db *sql.DB) *Store {
	return &Store{db: db}
}

// Observe upserts an album sighting. The first call sets first_detected;
// later calls only refresh last_seen and the size figures, so age keeps
// accumulating across scans. Sighting an album whose record is deleted
// means it was re-downloaded: the row flips back to pending with a fresh
// first_detected, not the old one. Track files are replaced wholesale to
// match the directory's current contents.
func (s *Store) Observe(rec Record, files []TrackFile) (*Record, error) {
	if rec.FirstDetected.IsZero() {
		rec.FirstDetected = time.Now().UTC()
	}
	if rec.LastSeen.IsZero() {
		rec.LastSeen = rec.FirstDetected
	}
	if rec.Status == "" {
		rec.Status = StatusPending
	}

	tx, err := s.db.Begin()
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	_, err = tx.Exec(`
		INSERT INTO expiring_albums
			(album_key, artist, album, directory, file_count, total_size_bytes,
			 first_detected, last_seen, status)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(album_key) DO UPDATE SET
			directory        = excluded.directory,
			file_count       = excluded.file_count,
			total_size_bytes = excluded.total_size_bytes,
			last_seen        = excluded.last_seen,
			first_detected   = CASE WHEN expiring_albums.status = ?
			                        THEN excluded.first_detected
			                        ELSE expiring_albums.first_detected END,
			deleted_at       = CASE WHEN expiring_albums.status = ?
			                        THEN NULL
			                        ELSE expiring_albums.deleted_at END,
			status           = excluded.status`,
		rec.AlbumKey, rec.Artist, rec.Album, rec.Directory,
		rec.FileCount, rec.TotalSize, rec.FirstDetected, rec.LastSeen, rec.Status,
		StatusDeleted, StatusDeleted,
	)
	if err != nil {
		return nil, fmt.Errorf("upsert album %s: %w", rec.AlbumKey, err)
	}

	got, err := getByKey(tx, rec.AlbumKey)
	if err != nil {
		return nil, err
	}

	if _, err := tx.Exec(`DELETE FROM album_tracks WHERE album_id = ?`, got.ID); err != nil {
		return nil, fmt.Errorf("clear tracks for %s: %w", rec.AlbumKey, err)
	}
	for _, f := range files {
		_, err := tx.Exec(`
			INSERT INTO album_tracks (album_id, file_path, track_title, track_number, size_bytes)
			VALUES (?, ?, ?, ?, ?)`,
			got.ID, f.FilePath, f.Title, f.Number, f.Size,
		)
		if err != nil {
			return nil, fmt.Errorf("insert track %s: %w", f.FilePath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}
	return got, nil
}

type rowQuerier interface {
	QueryRow(query string, args ...any) *sql.Row
}

func getByKey(q rowQuerier, albumKey string) (*Record, error) {
	rec := &Record{}
	err := q.QueryRow(`
		SELECT id, album_key, artist, album, directory, file_count,
		       total_size_bytes, first_detected, last_seen, status, deleted_at
		FROM expiring_albums WHERE album_key = ?`, albumKey,
	).Scan(&rec.ID, &rec.AlbumKey, &rec.Artist, &rec.Album, &rec.Directory,
		&rec.FileCount, &rec.TotalSize, &rec.FirstDetected, &rec.LastSeen,
		&rec.Status, &rec.DeletedAt)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get album %s: %w", albumKey, err)
	}
	return rec, nil
}

// Get retrieves one record by album key. Returns ErrNotFound when the
// album has never been observed.
func (s *Store) Get(albumKey string) (*Record, error) {
	return getByKey(s.db, albumKey)
}

// Tracks returns the recorded files for an album, in track order.
func (s *Store) Tracks(albumID int64) ([]TrackFile, error) {
	rows, err := s.db.Query(`
		SELECT id, album_id, file_path, track_title, track_number, size_bytes
		FROM album_tracks WHERE album_id = ?
		ORDER BY track_number ASC, file_path ASC`, albumID)
	if err != nil {
		return nil, fmt.Errorf("list tracks for album %d: %w", albumID, err)
	}
	defer rows.Close()

	var files []TrackFile
	for rows.Next() {
		var f TrackFile
		if err := rows.Scan(&f.ID, &f.AlbumID, &f.FilePath, &f.Title, &f.Number, &f.Size); err != nil {
			return nil, fmt.Errorf("scan track: %w", err)
		}
		files = append(files, f)
	}
	return files, rows.Err()
}

// Expired returns pending albums first detected before the cutoff,
// oldest first.
func (s *Store) Expired(olderThan time.Duration) ([]*Record, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	rows, err := s.db.Query(`
		SELECT id, album_key, artist, album, directory, file_count,
		       total_size_bytes, first_detected, last_seen, status, deleted_at
		FROM expiring_albums
		WHERE status = ? AND first_detected < ?
		ORDER BY first_detected ASC`, StatusPending, cutoff)
	if err != nil {
		return nil, fmt.Errorf("list expired albums: %w", err)
	}
	defer rows.Close()

	var records []*Record
	for rows.Next() {
		rec := &Record{}
		if err := rows.Scan(&rec.ID, &rec.AlbumKey, &rec.Artist, &rec.Album,
			&rec.Directory, &rec.FileCount, &rec.TotalSize, &rec.FirstDetected,
			&rec.LastSeen, &rec.Status, &rec.DeletedAt); err != nil {
			return nil, fmt.Errorf("scan expired album: %w", err)
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// MarkDeleted records the album as deleted. The row is kept: if the
// album comes back, Observe flips it to pending with a fresh clock.
func (s *Store) MarkDeleted(albumKey string) error {
	result, err := s.db.Exec(`
		UPDATE expiring_albums SET status = ?, deleted_at = ?
		WHERE album_key = ?`,
		StatusDeleted, time.Now().UTC(), albumKey)
	if err != nil {
		return fmt.Errorf("mark deleted %s: %w", albumKey, err)
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

// Forget removes an album's record entirely, e.g. when it was promoted
// to Owned or starred. Cascades to its track rows. Forgetting an unknown
// key is a no-op.
func (s *Store) Forget(albumKey string) error {
	_, err := s.db.Exec(`DELETE FROM expiring_albums WHERE album_key = ?`, albumKey)
	if err != nil {
		return fmt.Errorf("forget %s: %w", albumKey, err)
	}
	return nil
}

// Prune removes deleted records older than the given duration, keeping
// the table from growing without bound.
func (s *Store) Prune(olderThan time.Duration) (int64, error) {
	cutoff := time.Now().UTC().Add(-olderThan)
	result, err := s.db.Exec(`
		DELETE FROM expiring_albums WHERE status = ? AND deleted_at < ?`,
		StatusDeleted, cutoff)
	if err != nil {
		return 0, fmt.Errorf("prune expiry records: %w", err)
	}
	return result.RowsAffected()
}
