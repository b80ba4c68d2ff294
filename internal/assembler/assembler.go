// Package assembler builds the generation prompt for a candidate post and
// performs the idempotent mark-processed transition.
package assembler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/ibeckermayer/reply4me/internal/thread"
	"github.com/ibeckermayer/reply4me/internal/types"
)

// Store is the persistence surface the assembler needs.
type Store interface {
	RecentResponses(authorID string, since time.Time, limit int) ([]types.Interaction, error)
	UpsertContext(rec *types.ResponseRecord) error
	MarkContextBuilt(id string, at time.Time) error
}

// ThreadBuilder reconstructs the conversation leading to a post.
type ThreadBuilder interface {
	Build(ctx context.Context, postID string) ([]thread.Entry, error)
}

// ImageDescriber returns one description per media URL and never fails.
type ImageDescriber interface {
	Describe(ctx context.Context, urls []string) []string
}

// Config holds the assembler settings.
type Config struct {
	AccountID     string
	AccountHandle string
	RecentLimit   int           // prior exchanges included in the digest
	RecentWindow  time.Duration // trailing window for prior exchanges
}

// Builder assembles reply contexts.
type Builder struct {
	store   Store
	threads ThreadBuilder
	vision  ImageDescriber
	cfg     Config
	tag     string // processed_by marker, unique per process
	log     *zap.Logger
}

// New creates a Builder.
func New(store Store, threads ThreadBuilder, vision ImageDescriber, cfg Config, log *zap.Logger) *Builder {
	if cfg.RecentLimit <= 0 {
		cfg.RecentLimit = 3
	}
	if cfg.RecentWindow <= 0 {
		cfg.RecentWindow = 7 * 24 * time.Hour
	}

	return &Builder{
		store:   store,
		threads: threads,
		vision:  vision,
		cfg:     cfg,
		tag:     "context-builder/" + uuid.NewString()[:8],
		log:     log,
	}
}

// BuildContext gathers the conversation thread, the recent-interaction digest
// and image descriptions for a post, composes the prompt, upserts the response
// record and marks the post processed. The three gathers run concurrently and
// fail independently: a failed gather degrades its section rather than losing
// the post, so the returned prompt always contains at least the post text.
// author may be nil; a placeholder identity is substituted.
func (b *Builder) BuildContext(ctx context.Context, post *types.Post, author *types.Author) (string, error) {
	if author == nil {
		id := post.AuthorID
		if id == "" {
			id = "unknown"
		}
		author = &types.Author{ID: id, Name: "Unknown", Handle: "unknown"}
	}

	var (
		wg      sync.WaitGroup
		entries []thread.Entry
		recent  []types.Interaction
		descs   []string
	)

	wg.Add(3)
	go func() {
		defer wg.Done()
		var err error
		entries, err = b.threads.Build(ctx, post.ID)
		if err != nil {
			b.log.Warn("thread reconstruction failed, continuing without it",
				zap.String("post_id", post.ID), zap.Error(err))
			entries = nil
		}
	}()
	go func() {
		defer wg.Done()
		var err error
		recent, err = b.store.RecentResponses(author.ID, time.Now().Add(-b.cfg.RecentWindow), b.cfg.RecentLimit)
		if err != nil {
			b.log.Warn("recent-interaction lookup failed, continuing without it",
				zap.String("author_id", author.ID), zap.Error(err))
			recent = nil
		}
	}()
	go func() {
		defer wg.Done()
		descs = b.vision.Describe(ctx, post.PhotoURLs())
	}()
	wg.Wait()

	prompt := b.compose(post, author, entries, recent, descs)

	now := time.Now()
	rec := &types.ResponseRecord{
		PostID:      post.ID,
		AuthorID:    author.ID,
		Context:     prompt,
		ProcessedBy: b.tag,
		ProcessedAt: now,
	}
	if err := b.store.UpsertContext(rec); err != nil {
		return prompt, fmt.Errorf("failed to save response record for post %s: %w", post.ID, err)
	}

	if err := b.store.MarkContextBuilt(post.ID, now); err != nil {
		return prompt, fmt.Errorf("failed to mark post %s processed: %w", post.ID, err)
	}

	b.log.Info("context built",
		zap.String("post_id", post.ID),
		zap.String("author", author.Handle),
		zap.Int("thread_len", len(entries)),
		zap.Int("images", len(descs)))

	return prompt, nil
}
