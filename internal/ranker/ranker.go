// Package ranker scores authors by priority and classifies them into
// engagement tiers.
package ranker

import (
	"sort"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/reply4me/internal/types"
)

// Weights are the multipliers applied to each author signal.
type Weights struct {
	Follower    float64
	Post        float64
	Interaction float64
}

// DefaultWeights returns the standard ranking weights.
func DefaultWeights() Weights {
	return Weights{Follower: 0.5, Post: 0.3, Interaction: 0.2}
}

// Store is the persistence surface the ranker needs.
type Store interface {
	InteractionCounts() (map[string]int, error)
	AuthorsWithResponseSince(since time.Time) (map[string]bool, error)
}

// Classification partitions authors into engagement tiers. Every input author
// lands in exactly one of the three buckets.
type Classification struct {
	Priority []types.Author // handle on the configured allow-list
	Frequent []types.Author // responded to within the trailing window
	New      []types.Author // everyone else
}

// Ranker computes author priority scores and tiers.
type Ranker struct {
	store          Store
	weights        Weights
	priority       map[string]bool // lowercased allow-list handles
	frequentWindow time.Duration
	log            *zap.Logger
}

// New creates a new Ranker. priorityHandles are matched case-insensitively.
func New(store Store, weights Weights, priorityHandles []string, frequentWindow time.Duration, log *zap.Logger) *Ranker {
	allow := make(map[string]bool, len(priorityHandles))
	for _, h := range priorityHandles {
		allow[strings.ToLower(strings.TrimPrefix(h, "@"))] = true
	}

	return &Ranker{
		store:          store,
		weights:        weights,
		priority:       allow,
		frequentWindow: frequentWindow,
		log:            log,
	}
}

// Rank returns the authors paired with their priority score, descending.
// Equal scores keep the original input order. If the interaction join fails,
// every author's interaction count is treated as zero and the failure is
// logged; ranking still completes.
func (r *Ranker) Rank(authors []types.Author) []types.RankedAuthor {
	counts, err := r.store.InteractionCounts()
	if err != nil {
		r.log.Warn("interaction count query failed, treating counts as zero", zap.Error(err))
		counts = map[string]int{}
	}

	ranked := make([]types.RankedAuthor, len(authors))
	for i, a := range authors {
		ranked[i] = types.RankedAuthor{
			Author: a,
			Score: float64(counter(a.Followers))*r.weights.Follower +
				float64(counter(a.PostCount))*r.weights.Post +
				float64(counts[a.ID])*r.weights.Interaction,
		}
	}

	sort.SliceStable(ranked, func(i, j int) bool {
		return ranked[i].Score > ranked[j].Score
	})

	return ranked
}

// Classify partitions authors into priority, frequent and new tiers. Priority
// wins over frequent for allow-listed authors. A failed window query demotes
// nobody: the affected authors simply classify as new.
func (r *Ranker) Classify(authors []types.Author) Classification {
	frequent, err := r.store.AuthorsWithResponseSince(time.Now().Add(-r.frequentWindow))
	if err != nil {
		r.log.Warn("recent-response query failed, frequent tier will be empty", zap.Error(err))
		frequent = map[string]bool{}
	}

	var c Classification
	for _, a := range authors {
		switch {
		case r.priority[strings.ToLower(a.Handle)]:
			c.Priority = append(c.Priority, a)
		case frequent[a.ID]:
			c.Frequent = append(c.Frequent, a)
		default:
			c.New = append(c.New, a)
		}
	}

	return c
}

func counter(v *int) int {
	if v == nil {
		return 0
	}
	return *v
}
