package thread

import (
	"context"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/reply4me/internal/store"
	"github.com/ibeckermayer/reply4me/internal/types"
)

func newTestStore(t *testing.T) *store.Store {
	t.Helper()
	s, err := store.New(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s
}

func savePost(t *testing.T, st *store.Store, id, repliedTo string) {
	t.Helper()
	p := &types.Post{ID: id, AuthorID: "a-" + id, Text: "text of " + id, CreatedAt: time.Now()}
	if repliedTo != "" {
		p.References = []types.Reference{{Type: types.ReferenceRepliedTo, PostID: repliedTo}}
	}
	require.NoError(t, st.SavePost(p))
}

func TestBuild_ShortThreadUntrimmed(t *testing.T) {
	st := newTestStore(t)
	savePost(t, st, "root", "")
	savePost(t, st, "mid", "root")
	savePost(t, st, "leaf", "mid")

	w := New(st, 5, 0, zap.NewNop())
	entries, err := w.Build(context.Background(), "leaf")
	require.NoError(t, err)

	require.Len(t, entries, 3)
	assert.Equal(t, "root", entries[0].Post.ID)
	assert.Equal(t, "mid", entries[1].Post.ID)
	assert.Equal(t, "leaf", entries[2].Post.ID)
	for _, e := range entries {
		assert.False(t, e.IsSeparator())
	}
}

func TestBuild_TrimsLongThreadKeepingBookends(t *testing.T) {
	st := newTestStore(t)
	savePost(t, st, "post0", "")
	for i := 1; i < 9; i++ {
		savePost(t, st, fmt.Sprintf("post%d", i), fmt.Sprintf("post%d", i-1))
	}

	w := New(st, 5, 20, zap.NewNop())
	entries, err := w.Build(context.Background(), "post8")
	require.NoError(t, err)

	require.Len(t, entries, 5)
	assert.Equal(t, "post0", entries[0].Post.ID)
	assert.Equal(t, "post1", entries[1].Post.ID)
	require.True(t, entries[2].IsSeparator())
	assert.Equal(t, "... (4 tweets omitted) ...", entries[2].SeparatorText())
	assert.Equal(t, "post7", entries[3].Post.ID)
	assert.Equal(t, "post8", entries[4].Post.ID)
}

func TestBuild_CycleTerminates(t *testing.T) {
	st := newTestStore(t)
	savePost(t, st, "a", "b")
	savePost(t, st, "b", "a")

	w := New(st, 5, 0, zap.NewNop())
	entries, err := w.Build(context.Background(), "a")
	require.NoError(t, err)

	// The visited guard stops the walk after each post is seen once.
	require.GreaterOrEqual(t, len(entries), 1)
	assert.Len(t, entries, 2)
	assert.Equal(t, "b", entries[0].Post.ID)
	assert.Equal(t, "a", entries[1].Post.ID)
}

func TestBuild_MissingParentStopsWalk(t *testing.T) {
	st := newTestStore(t)
	savePost(t, st, "orphan", "gone")

	w := New(st, 5, 0, zap.NewNop())
	entries, err := w.Build(context.Background(), "orphan")
	require.NoError(t, err)

	require.Len(t, entries, 1)
	assert.Equal(t, "orphan", entries[0].Post.ID)
}

func TestBuild_MissingTargetReturnsEmpty(t *testing.T) {
	st := newTestStore(t)

	w := New(st, 5, 0, zap.NewNop())
	entries, err := w.Build(context.Background(), "nope")
	require.NoError(t, err)
	assert.Empty(t, entries)
}

func TestBuild_DepthCap(t *testing.T) {
	st := newTestStore(t)
	savePost(t, st, "p0", "")
	for i := 1; i < 30; i++ {
		savePost(t, st, fmt.Sprintf("p%d", i), fmt.Sprintf("p%d", i-1))
	}

	w := New(st, 5, 10, zap.NewNop())
	entries, err := w.Build(context.Background(), "p29")
	require.NoError(t, err)

	// 10 walked, trimmed down to maxKept entries.
	require.Len(t, entries, 5)
	require.True(t, entries[2].IsSeparator())
	assert.Equal(t, 5, entries[2].Omitted)
}
