// Package scorer computes weighted engagement scores for posts and enriches
// stored posts that are missing one.
package scorer

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/reply4me/internal/types"
)

// Weights are the multipliers applied to each raw engagement counter.
type Weights struct {
	Like    float64
	Reshare float64
	Reply   float64
}

// DefaultWeights returns the standard scoring weights.
func DefaultWeights() Weights {
	return Weights{Like: 2.0, Reshare: 1.5, Reply: 1.0}
}

// Store is the persistence surface the scorer needs.
type Store interface {
	UnscoredPosts(since time.Time) ([]types.Post, error)
	SetEngagementScore(id string, score float64) error
}

// Scorer computes and persists engagement scores.
type Scorer struct {
	store   Store
	weights Weights
	log     *zap.Logger
}

// New creates a new Scorer.
func New(store Store, weights Weights, log *zap.Logger) *Scorer {
	return &Scorer{store: store, weights: weights, log: log}
}

// Score returns the weighted engagement score for a post. Missing counters
// count as zero.
func (s *Scorer) Score(p *types.Post) float64 {
	return float64(counter(p.Likes))*s.weights.Like +
		float64(counter(p.Reshares))*s.weights.Reshare +
		float64(counter(p.Replies))*s.weights.Reply
}

// EnrichMissing finds posts newer than since that carry raw counters but no
// score, computes the score and writes it back. Individual write failures are
// logged and skipped; the rest of the batch proceeds. Posts that already have
// a score are never rescored. Returns the number of posts updated.
func (s *Scorer) EnrichMissing(ctx context.Context, since time.Time) (int, error) {
	posts, err := s.store.UnscoredPosts(since)
	if err != nil {
		return 0, err
	}

	updated := 0
	for i := range posts {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		p := &posts[i]
		score := s.Score(p)
		if err := s.store.SetEngagementScore(p.ID, score); err != nil {
			s.log.Warn("failed to write engagement score",
				zap.String("post_id", p.ID), zap.Error(err))
			continue
		}
		updated++
	}

	if updated > 0 {
		s.log.Info("enriched engagement scores", zap.Int("updated", updated))
	}
	return updated, nil
}

func counter(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
