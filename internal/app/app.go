// Package app orchestrates one batch pass of the pipeline: score enrichment,
// candidate selection and context assembly.
package app

import (
	"context"
	"errors"
	"sort"
	"sync/atomic"
	"time"

	"go.uber.org/zap"

	"github.com/ibeckermayer/reply4me/internal/assembler"
	"github.com/ibeckermayer/reply4me/internal/ranker"
	"github.com/ibeckermayer/reply4me/internal/scorer"
	"github.com/ibeckermayer/reply4me/internal/selector"
	"github.com/ibeckermayer/reply4me/internal/store"
	"github.com/ibeckermayer/reply4me/internal/types"
)

// App wires the pipeline components for scheduled runs.
type App struct {
	store    *store.Store
	scorer   *scorer.Scorer
	selector *selector.Selector
	ranker   *ranker.Ranker
	builder  *assembler.Builder
	lookback time.Duration // how far back the enrichment pass reaches
	log      *zap.Logger

	running atomic.Bool
}

// New creates a new App.
func New(st *store.Store, sc *scorer.Scorer, sel *selector.Selector, rk *ranker.Ranker, b *assembler.Builder, lookback time.Duration, log *zap.Logger) *App {
	if lookback <= 0 {
		lookback = 24 * time.Hour
	}

	return &App{
		store:    st,
		scorer:   sc,
		selector: sel,
		ranker:   rk,
		builder:  b,
		lookback: lookback,
		log:      log,
	}
}

// RunEnrich computes engagement scores for recent posts that lack one.
func (a *App) RunEnrich(ctx context.Context) error {
	_, err := a.scorer.EnrichMissing(ctx, time.Now().Add(-a.lookback))
	return err
}

// RunContextPass selects candidate posts and builds context for each, one
// post at a time. Candidates are processed priority-tier authors first, then
// frequently-engaged, then cold, ranked within each tier. If a previous pass
// is still in progress the new one is skipped; every write below is idempotent
// so an overlapping run would be harmless, just wasteful.
func (a *App) RunContextPass(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		a.log.Info("previous context pass still running, skipping")
		return nil
	}
	defer a.running.Store(false)

	candidates, err := a.selector.Select(ctx)
	if err != nil {
		return err
	}
	if len(candidates) == 0 {
		a.log.Info("no candidate posts")
		return nil
	}

	authors := a.loadAuthors(candidates)
	a.orderByAuthorTier(candidates, authors)

	built := 0
	for i := range candidates {
		if err := ctx.Err(); err != nil {
			return err
		}

		p := &candidates[i]
		if _, err := a.builder.BuildContext(ctx, p, authors[p.AuthorID]); err != nil {
			a.log.Warn("context build failed",
				zap.String("post_id", p.ID), zap.Error(err))
			continue
		}
		built++
	}

	a.log.Info("context pass complete",
		zap.Int("candidates", len(candidates)), zap.Int("built", built))
	return nil
}

// loadAuthors fetches the author record for each candidate once. A missing
// author maps to nil; the assembler substitutes a placeholder identity.
func (a *App) loadAuthors(posts []types.Post) map[string]*types.Author {
	authors := make(map[string]*types.Author)
	for _, p := range posts {
		if _, ok := authors[p.AuthorID]; ok {
			continue
		}

		author, err := a.store.GetAuthor(p.AuthorID)
		if errors.Is(err, store.ErrNotFound) {
			a.log.Info("author record missing, will use placeholder",
				zap.String("author_id", p.AuthorID))
			author = nil
		} else if err != nil {
			a.log.Warn("author lookup failed, will use placeholder",
				zap.String("author_id", p.AuthorID), zap.Error(err))
			author = nil
		}
		authors[p.AuthorID] = author
	}
	return authors
}

// orderByAuthorTier stably sorts candidates so allow-listed authors come
// first, then frequently-engaged, then everyone else, with higher-ranked
// authors first within a tier. The selector's engagement ordering breaks the
// remaining ties.
func (a *App) orderByAuthorTier(posts []types.Post, authors map[string]*types.Author) {
	var list []types.Author
	for _, author := range authors {
		if author != nil {
			list = append(list, *author)
		}
	}

	tiers := make(map[string]int)
	for id := range authors {
		tiers[id] = 2
	}
	c := a.ranker.Classify(list)
	for _, author := range c.Priority {
		tiers[author.ID] = 0
	}
	for _, author := range c.Frequent {
		tiers[author.ID] = 1
	}

	scores := make(map[string]float64)
	for _, ra := range a.ranker.Rank(list) {
		scores[ra.Author.ID] = ra.Score
	}

	sort.SliceStable(posts, func(i, j int) bool {
		ti, tj := tiers[posts[i].AuthorID], tiers[posts[j].AuthorID]
		if ti != tj {
			return ti < tj
		}
		return scores[posts[i].AuthorID] > scores[posts[j].AuthorID]
	})
}
