// Package thread reconstructs bounded conversation threads from reply-chain
// references stored as flat post records.
package thread

import (
	"context"
	"errors"
	"fmt"

	"go.uber.org/zap"

	"github.com/ibeckermayer/reply4me/internal/store"
	"github.com/ibeckermayer/reply4me/internal/types"
)

// Store is the persistence surface the walker needs.
type Store interface {
	GetPost(id string) (*types.Post, error)
}

// Entry is one element of a reconstructed thread: either a post or a
// separator standing in for trimmed middle posts.
type Entry struct {
	Post    *types.Post // nil on separator entries
	Omitted int         // number of posts the separator stands in for
}

// IsSeparator reports whether the entry is a trimming separator.
func (e Entry) IsSeparator() bool {
	return e.Post == nil
}

// SeparatorText returns the literal text rendered for a separator entry.
func (e Entry) SeparatorText() string {
	return fmt.Sprintf("... (%d tweets omitted) ...", e.Omitted)
}

// Walker rebuilds conversation threads.
type Walker struct {
	store    Store
	maxKept  int
	maxDepth int
	log      *zap.Logger
}

// New creates a Walker. maxKept bounds the returned thread length (separator
// included); maxDepth is the hard walk cap and defaults to maxKept+10.
func New(s Store, maxKept, maxDepth int, log *zap.Logger) *Walker {
	if maxKept <= 0 {
		maxKept = 5
	}
	if maxDepth <= 0 {
		maxDepth = maxKept + 10
	}

	return &Walker{store: s, maxKept: maxKept, maxDepth: maxDepth, log: log}
}

// Build walks the reply chain backward from postID and returns the thread in
// conversation order, oldest first. The walk stops on a missing post, a post
// with no replied_to reference, a repeated id (cycle) or the depth cap; none
// of these is an error. Threads longer than maxKept keep their bookends and
// collapse the middle into a single separator entry.
func (w *Walker) Build(ctx context.Context, postID string) ([]Entry, error) {
	visited := make(map[string]bool)
	var chain []*types.Post // newest first while walking

	cur := postID
	for len(chain) < w.maxDepth {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if visited[cur] {
			w.log.Warn("reply chain cycle detected, stopping walk",
				zap.String("post_id", cur), zap.String("root", postID))
			break
		}
		visited[cur] = true

		p, err := w.store.GetPost(cur)
		if errors.Is(err, store.ErrNotFound) {
			break
		}
		if err != nil {
			// Transient store failure: keep whatever part of the thread we
			// already have rather than losing the post.
			w.log.Warn("thread lookup failed, returning partial thread",
				zap.String("post_id", cur), zap.Error(err))
			break
		}

		chain = append(chain, p)

		next := p.RepliedTo()
		if next == "" {
			break
		}
		cur = next
	}

	// Reverse into conversation order, oldest first.
	entries := make([]Entry, len(chain))
	for i, p := range chain {
		entries[len(chain)-1-i] = Entry{Post: p}
	}

	return w.trim(entries), nil
}

// trim collapses the middle of a long thread into one separator entry so the
// result is exactly maxKept entries long, keeping the conversational bookends.
func (w *Walker) trim(entries []Entry) []Entry {
	if len(entries) <= w.maxKept {
		return entries
	}

	head := w.maxKept / 2
	tail := w.maxKept - 1 - head
	omitted := len(entries) - w.maxKept

	trimmed := make([]Entry, 0, w.maxKept)
	trimmed = append(trimmed, entries[:head]...)
	trimmed = append(trimmed, Entry{Omitted: omitted})
	trimmed = append(trimmed, entries[len(entries)-tail:]...)

	return trimmed
}
