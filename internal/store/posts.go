package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/reply4me/internal/types"
)

const postColumns = `id, author_id, text, created_at, references_json, media_json,
	likes, reshares, replies, engagement_score, context_built, context_built_at`

// SavePost inserts or updates a post. On conflict only the volatile engagement
// counters are refreshed; the computed score and processing flags are owned by
// this core and left alone.
func (s *Store) SavePost(p *types.Post) error {
	refsJSON, _ := json.Marshal(p.References)
	mediaJSON, _ := json.Marshal(p.Media)

	createdAt := p.CreatedAt
	if createdAt.IsZero() {
		createdAt = time.Now()
	}

	_, err := s.db.Exec(`
		INSERT INTO posts (id, author_id, text, created_at, in_reply_to,
			references_json, media_json, likes, reshares, replies, engagement_score)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			likes = excluded.likes,
			reshares = excluded.reshares,
			replies = excluded.replies
	`, p.ID, p.AuthorID, p.Text, createdAt, nullString(p.RepliedTo()),
		string(refsJSON), string(mediaJSON), p.Likes, p.Reshares, p.Replies, p.EngagementScore)

	return err
}

// GetPost returns the post with the given id, or ErrNotFound.
func (s *Store) GetPost(id string) (*types.Post, error) {
	row := s.db.QueryRow(`SELECT `+postColumns+` FROM posts WHERE id = ?`, id)
	p, err := s.scanPost(row)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return p, nil
}

// UnscoredPosts returns posts newer than since that have at least one raw
// engagement counter but no computed score yet.
func (s *Store) UnscoredPosts(since time.Time) ([]types.Post, error) {
	rows, err := s.db.Query(`
		SELECT `+postColumns+` FROM posts
		WHERE engagement_score IS NULL
			AND (likes IS NOT NULL OR reshares IS NOT NULL OR replies IS NOT NULL)
			AND created_at > ?
		ORDER BY created_at DESC
	`, since)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanPosts(rows)
}

// SetEngagementScore writes a computed score. Posts that already carry a score
// are never rescored, so concurrent or repeated enrichment passes are no-ops.
func (s *Store) SetEngagementScore(id string, score float64) error {
	_, err := s.db.Exec(`
		UPDATE posts SET engagement_score = ?
		WHERE id = ? AND engagement_score IS NULL
	`, score, id)
	return err
}

// MarkContextBuilt records the processed flag on a post. The transition is
// one-way: repeated calls keep the original timestamp.
func (s *Store) MarkContextBuilt(id string, at time.Time) error {
	_, err := s.db.Exec(`
		UPDATE posts SET
			context_built = 1,
			context_built_at = COALESCE(context_built_at, ?)
		WHERE id = ?
	`, at, id)
	return err
}

// candidateTail is the common filter and ordering shared by all candidate
// queries: not our own post, not yet processed, best engagement first, then
// recency. Unscored posts sort after scored ones.
const candidateTail = `
	AND p.author_id != ?
	AND p.context_built = 0
	ORDER BY (p.engagement_score IS NULL), p.engagement_score DESC, p.created_at DESC
	LIMIT ?`

// MentionCandidates returns unprocessed posts whose text mentions the given
// handle, matched case-insensitively.
func (s *Store) MentionCandidates(handle, excludeAuthorID string, limit int) ([]types.Post, error) {
	mention := "@" + strings.ToLower(strings.TrimPrefix(handle, "@"))
	rows, err := s.db.Query(`
		SELECT `+prefixColumns("p")+` FROM posts p
		WHERE instr(lower(p.text), ?) > 0
	`+candidateTail, mention, excludeAuthorID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanPosts(rows)
}

// ReplyCandidates returns unprocessed posts that are direct replies to a post
// authored by the operating account.
func (s *Store) ReplyCandidates(accountID string, limit int) ([]types.Post, error) {
	rows, err := s.db.Query(`
		SELECT `+prefixColumns("p")+` FROM posts p
		JOIN posts parent ON parent.id = p.in_reply_to
		WHERE parent.author_id = ?
	`+candidateTail, accountID, accountID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanPosts(rows)
}

// KeywordCandidates returns unprocessed posts whose text contains any of the
// given keywords, matched case-insensitively.
func (s *Store) KeywordCandidates(keywords []string, excludeAuthorID string, limit int) ([]types.Post, error) {
	if len(keywords) == 0 {
		return nil, nil
	}

	clauses := make([]string, 0, len(keywords))
	args := make([]any, 0, len(keywords)+2)
	for _, kw := range keywords {
		clauses = append(clauses, "instr(lower(p.text), ?) > 0")
		args = append(args, strings.ToLower(kw))
	}
	args = append(args, excludeAuthorID, limit)

	query := `SELECT ` + prefixColumns("p") + ` FROM posts p
		WHERE (` + strings.Join(clauses, " OR ") + `)` + candidateTail

	rows, err := s.db.Query(query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	return s.scanPosts(rows)
}

func prefixColumns(alias string) string {
	cols := strings.Split(postColumns, ",")
	for i, c := range cols {
		cols[i] = alias + "." + strings.TrimSpace(c)
	}
	return strings.Join(cols, ", ")
}

type rowScanner interface {
	Scan(dest ...any) error
}

func (s *Store) scanPost(row rowScanner) (*types.Post, error) {
	var p types.Post
	var refsJSON, mediaJSON sql.NullString
	var likes, reshares, replies sql.NullInt64
	var score sql.NullFloat64
	var builtAt sql.NullTime

	err := row.Scan(
		&p.ID, &p.AuthorID, &p.Text, &p.CreatedAt, &refsJSON, &mediaJSON,
		&likes, &reshares, &replies, &score, &p.ContextBuilt, &builtAt,
	)
	if err != nil {
		return nil, err
	}

	// A corrupted JSON column degrades that field to empty rather than losing
	// the row, but never silently.
	if refsJSON.Valid && refsJSON.String != "" {
		if err := json.Unmarshal([]byte(refsJSON.String), &p.References); err != nil {
			s.log.Warn("corrupt references_json on post",
				zap.String("post_id", p.ID), zap.Error(err))
		}
	}
	if mediaJSON.Valid && mediaJSON.String != "" {
		if err := json.Unmarshal([]byte(mediaJSON.String), &p.Media); err != nil {
			s.log.Warn("corrupt media_json on post",
				zap.String("post_id", p.ID), zap.Error(err))
		}
	}
	if likes.Valid {
		p.Likes = intPtr(int(likes.Int64))
	}
	if reshares.Valid {
		p.Reshares = intPtr(int(reshares.Int64))
	}
	if replies.Valid {
		p.Replies = intPtr(int(replies.Int64))
	}
	if score.Valid {
		v := score.Float64
		p.EngagementScore = &v
	}
	if builtAt.Valid {
		t := builtAt.Time
		p.ContextBuiltAt = &t
	}

	return &p, nil
}

func (s *Store) scanPosts(rows *sql.Rows) ([]types.Post, error) {
	var posts []types.Post
	for rows.Next() {
		p, err := s.scanPost(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan post: %w", err)
		}
		posts = append(posts, *p)
	}
	return posts, rows.Err()
}

func intPtr(v int) *int { return &v }

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
