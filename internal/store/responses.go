package store

import (
	"database/sql"
	"time"

	"github.com/ibeckermayer/reply4me/internal/types"
)

// UpsertContext creates or refreshes the response record for a post. The
// record is keyed by post id, so repeated runs never create duplicates. Only
// the context-side fields are written: response, posted and response_id belong
// to the generation and publishing collaborators and are left untouched.
func (s *Store) UpsertContext(rec *types.ResponseRecord) error {
	_, err := s.db.Exec(`
		INSERT INTO responses (post_id, author_id, context, processed_by, processed_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(post_id) DO UPDATE SET
			author_id = excluded.author_id,
			context = excluded.context,
			processed_by = excluded.processed_by,
			processed_at = excluded.processed_at
	`, rec.PostID, rec.AuthorID, rec.Context, rec.ProcessedBy, rec.ProcessedAt)

	return err
}

// GetResponse returns the response record for a post, or ErrNotFound.
func (s *Store) GetResponse(postID string) (*types.ResponseRecord, error) {
	var rec types.ResponseRecord
	var processedBy, response, responseID sql.NullString
	var generatedAt sql.NullTime
	var posted sql.NullBool

	err := s.db.QueryRow(`
		SELECT post_id, author_id, context, processed_by, processed_at,
			response, response_generated_at, posted, response_id
		FROM responses WHERE post_id = ?
	`, postID).Scan(
		&rec.PostID, &rec.AuthorID, &rec.Context, &processedBy, &rec.ProcessedAt,
		&response, &generatedAt, &posted, &responseID,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}

	if processedBy.Valid {
		rec.ProcessedBy = processedBy.String
	}
	if response.Valid {
		v := response.String
		rec.Response = &v
	}
	if generatedAt.Valid {
		t := generatedAt.Time
		rec.ResponseGeneratedAt = &t
	}
	if posted.Valid {
		v := posted.Bool
		rec.Posted = &v
	}
	if responseID.Valid {
		v := responseID.String
		rec.ResponseID = &v
	}

	return &rec, nil
}

// SaveResponseText writes the drafted reply onto an existing response record.
// This is the generation collaborator's side of the record; the core itself
// never calls it outside of tests.
func (s *Store) SaveResponseText(postID, text string, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE responses SET response = ?, response_generated_at = ?
		WHERE post_id = ?
	`, text, at, postID)
	return err
}

// RecentResponses returns up to limit prior exchanges with an author since the
// given time, newest first. Only records that already carry a drafted reply
// count: a context-only record is not an interaction yet.
func (s *Store) RecentResponses(authorID string, since time.Time, limit int) ([]types.Interaction, error) {
	rows, err := s.db.Query(`
		SELECT COALESCE(p.text, ''), r.response, r.response_generated_at, r.processed_at
		FROM responses r
		LEFT JOIN posts p ON p.id = r.post_id
		WHERE r.author_id = ?
			AND r.response IS NOT NULL AND r.response != ''
			AND COALESCE(r.response_generated_at, r.processed_at) > ?
		ORDER BY COALESCE(r.response_generated_at, r.processed_at) DESC
		LIMIT ?
	`, authorID, since, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var interactions []types.Interaction
	for rows.Next() {
		var in types.Interaction
		var generatedAt, processedAt sql.NullTime

		if err := rows.Scan(&in.PostText, &in.Response, &generatedAt, &processedAt); err != nil {
			return nil, err
		}
		if generatedAt.Valid {
			in.At = generatedAt.Time
		} else if processedAt.Valid {
			in.At = processedAt.Time
		}
		interactions = append(interactions, in)
	}

	return interactions, rows.Err()
}

// InteractionCounts returns the number of response records per author id.
func (s *Store) InteractionCounts() (map[string]int, error) {
	rows, err := s.db.Query(`SELECT author_id, COUNT(*) FROM responses GROUP BY author_id`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var id string
		var n int
		if err := rows.Scan(&id, &n); err != nil {
			return nil, err
		}
		counts[id] = n
	}

	return counts, rows.Err()
}

// AuthorsWithResponseSince returns the distinct set of author ids that have at
// least one response record newer than since.
func (s *Store) AuthorsWithResponseSince(since time.Time) (map[string]bool, error) {
	rows, err := s.db.Query(`
		SELECT DISTINCT author_id FROM responses WHERE processed_at > ?
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	authors := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, err
		}
		authors[id] = true
	}

	return authors, rows.Err()
}
