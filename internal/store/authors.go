package store

import (
	"database/sql"

	"github.com/ibeckermayer/reply4me/internal/types"
)

// SaveAuthor inserts or updates an author record.
func (s *Store) SaveAuthor(a *types.Author) error {
	_, err := s.db.Exec(`
		INSERT INTO authors (id, name, handle, followers, post_count, prompt, last_fetched)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			name = excluded.name,
			handle = excluded.handle,
			followers = excluded.followers,
			post_count = excluded.post_count,
			prompt = excluded.prompt,
			last_fetched = excluded.last_fetched
	`, a.ID, a.Name, a.Handle, a.Followers, a.PostCount, a.Prompt, a.LastFetched)

	return err
}

// GetAuthor returns the author with the given id, or ErrNotFound.
func (s *Store) GetAuthor(id string) (*types.Author, error) {
	var a types.Author
	var followers, postCount sql.NullInt64
	var prompt sql.NullString
	var lastFetched sql.NullTime

	err := s.db.QueryRow(`
		SELECT id, name, handle, followers, post_count, prompt, last_fetched
		FROM authors WHERE id = ?
	`, id).Scan(&a.ID, &a.Name, &a.Handle, &followers, &postCount, &prompt, &lastFetched)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if followers.Valid {
		a.Followers = intPtr(int(followers.Int64))
	}
	if postCount.Valid {
		a.PostCount = intPtr(int(postCount.Int64))
	}
	if prompt.Valid {
		a.Prompt = prompt.String
	}
	if lastFetched.Valid {
		a.LastFetched = lastFetched.Time
	}

	return &a, nil
}
