// Package selector picks the unprocessed posts worth building context for.
package selector

import (
	"context"

	"go.uber.org/zap"

	"github.com/ibeckermayer/reply4me/internal/types"
)

// Store is the persistence surface the selector needs. Each query returns
// posts already filtered to other authors and unprocessed status, sorted by
// engagement score then recency, capped at limit.
type Store interface {
	MentionCandidates(handle, excludeAuthorID string, limit int) ([]types.Post, error)
	ReplyCandidates(accountID string, limit int) ([]types.Post, error)
	KeywordCandidates(keywords []string, excludeAuthorID string, limit int) ([]types.Post, error)
}

// Selector unions the mention, reply and keyword predicates into one
// deduplicated candidate list.
type Selector struct {
	store     Store
	accountID string
	handle    string
	keywords  []string
	limit     int
	log       *zap.Logger
}

// New creates a new Selector for the given operating account.
func New(store Store, accountID, handle string, keywords []string, perPredicateLimit int, log *zap.Logger) *Selector {
	if perPredicateLimit <= 0 {
		perPredicateLimit = 50
	}

	return &Selector{
		store:     store,
		accountID: accountID,
		handle:    handle,
		keywords:  keywords,
		limit:     perPredicateLimit,
		log:       log,
	}
}

// Select returns the candidate posts, deduplicated by id with the first
// occurrence winning. Predicate order is mentions, replies, keywords. A
// failing predicate is logged and skipped so a single bad query cannot empty
// the whole pass. An empty result is not an error.
func (s *Selector) Select(ctx context.Context) ([]types.Post, error) {
	type predicate struct {
		name  string
		query func() ([]types.Post, error)
	}

	predicates := []predicate{
		{"mentions", func() ([]types.Post, error) {
			return s.store.MentionCandidates(s.handle, s.accountID, s.limit)
		}},
		{"replies", func() ([]types.Post, error) {
			return s.store.ReplyCandidates(s.accountID, s.limit)
		}},
		{"keywords", func() ([]types.Post, error) {
			return s.store.KeywordCandidates(s.keywords, s.accountID, s.limit)
		}},
	}

	seen := make(map[string]bool)
	var candidates []types.Post

	for _, p := range predicates {
		if err := ctx.Err(); err != nil {
			return candidates, err
		}

		posts, err := p.query()
		if err != nil {
			s.log.Warn("candidate query failed", zap.String("predicate", p.name), zap.Error(err))
			continue
		}

		for _, post := range posts {
			if seen[post.ID] {
				continue
			}
			seen[post.ID] = true
			candidates = append(candidates, post)
		}
	}

	return candidates, nil
}
