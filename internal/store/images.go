package store

import (
	"database/sql"
	"time"
)

// ImageDescription returns the cached description for a media URL and when it
// was written, or ErrNotFound on a cache miss.
func (s *Store) ImageDescription(url string) (string, time.Time, error) {
	var desc string
	var createdAt time.Time

	err := s.db.QueryRow(`
		SELECT description, created_at FROM image_descriptions WHERE url = ?
	`, url).Scan(&desc, &createdAt)
	if err == sql.ErrNoRows {
		return "", time.Time{}, ErrNotFound
	}
	if err != nil {
		return "", time.Time{}, err
	}

	return desc, createdAt, nil
}

// SaveImageDescription caches a description keyed by media URL. Last write
// wins: two callers racing on the same fresh URL produce equivalent
// descriptions, so the overwrite is benign.
func (s *Store) SaveImageDescription(url, description string) error {
	_, err := s.db.Exec(`
		INSERT INTO image_descriptions (url, description, created_at)
		VALUES (?, ?, ?)
		ON CONFLICT(url) DO UPDATE SET
			description = excluded.description,
			created_at = excluded.created_at
	`, url, description, time.Now())
	return err
}
