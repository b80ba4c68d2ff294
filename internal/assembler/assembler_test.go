package assembler

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/ibeckermayer/reply4me/internal/store"
	"github.com/ibeckermayer/reply4me/internal/thread"
	"github.com/ibeckermayer/reply4me/internal/types"
	"github.com/ibeckermayer/reply4me/internal/vision"
)

const (
	accountID = "acct-me"
	handle    = "ourbot"
)

type stubDescriber struct {
	err error
}

func (d *stubDescriber) Describe(_ context.Context, url string) (string, error) {
	if d.err != nil {
		return "", d.err
	}
	return "a photo attached to the post", nil
}

func newFixture(t *testing.T, describerErr error) (*store.Store, *Builder) {
	t.Helper()

	st, err := store.New(filepath.Join(t.TempDir(), "test.db"), zap.NewNop())
	require.NoError(t, err)
	t.Cleanup(func() { st.Close() })

	walker := thread.New(st, 5, 0, zap.NewNop())
	cache := vision.New(st, &stubDescriber{err: describerErr}, 5, time.Hour, zap.NewNop())

	b := New(st, walker, cache, Config{
		AccountID:     accountID,
		AccountHandle: handle,
		RecentLimit:   3,
		RecentWindow:  7 * 24 * time.Hour,
	}, zap.NewNop())

	return st, b
}

func TestBuildContext_ComposesAllSections(t *testing.T) {
	st, b := newFixture(t, nil)
	now := time.Now()

	author := &types.Author{ID: "u1", Name: "Alice", Handle: "alice", Prompt: "Likes distributed systems."}
	require.NoError(t, st.SaveAuthor(author))

	// Prior exchange with this author.
	require.NoError(t, st.SavePost(&types.Post{
		ID: "old", AuthorID: "u1", Text: "what about raft?", CreatedAt: now.Add(-24 * time.Hour),
	}))
	require.NoError(t, st.UpsertContext(&types.ResponseRecord{
		PostID: "old", AuthorID: "u1", Context: "ctx", ProcessedAt: now.Add(-24 * time.Hour),
	}))
	require.NoError(t, st.SaveResponseText("old", "raft is fine", now.Add(-23*time.Hour)))

	// Conversation: our post, then the target reply with a photo.
	require.NoError(t, st.SavePost(&types.Post{
		ID: "parent", AuthorID: accountID, Text: "consensus is hard", CreatedAt: now.Add(-time.Hour),
	}))
	target := &types.Post{
		ID: "target", AuthorID: "u1", Text: "here is my diagram", CreatedAt: now,
		References: []types.Reference{{Type: types.ReferenceRepliedTo, PostID: "parent"}},
		Media:      []types.Media{{Type: types.MediaPhoto, URL: "http://img/diagram.png"}},
	}
	require.NoError(t, st.SavePost(target))

	prompt, err := b.BuildContext(context.Background(), target, author)
	require.NoError(t, err)

	// Sections appear in the fixed order.
	idxAuthor := strings.Index(prompt, "## Author")
	idxRecent := strings.Index(prompt, "## Recent interactions")
	idxConv := strings.Index(prompt, "## Conversation")
	idxImages := strings.Index(prompt, "## Images")
	idxTarget := strings.Index(prompt, "## Target post")
	require.True(t, idxAuthor >= 0 && idxRecent > idxAuthor && idxConv > idxRecent &&
		idxImages > idxConv && idxTarget > idxImages, "unexpected section order:\n%s", prompt)

	assert.Contains(t, prompt, "@alice (Alice)")
	assert.Contains(t, prompt, "Likes distributed systems.")
	assert.Contains(t, prompt, "They posted: what about raft?")
	assert.Contains(t, prompt, "You replied: raft is fine")
	assert.Contains(t, prompt, "@ourbot (you): consensus is hard")
	assert.Contains(t, prompt, "@alice: here is my diagram")
	assert.Contains(t, prompt, "a photo attached to the post")
	assert.Contains(t, prompt, "here is my diagram")
}

func TestBuildContext_MarksProcessedIdempotently(t *testing.T) {
	st, b := newFixture(t, nil)

	target := &types.Post{ID: "t1", AuthorID: "u1", Text: "hello", CreatedAt: time.Now()}
	require.NoError(t, st.SavePost(target))

	_, err := b.BuildContext(context.Background(), target, nil)
	require.NoError(t, err)

	first, err := st.GetPost("t1")
	require.NoError(t, err)
	require.True(t, first.ContextBuilt)
	require.NotNil(t, first.ContextBuiltAt)

	rec, err := st.GetResponse("t1")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(rec.ProcessedBy, "context-builder/"), rec.ProcessedBy)

	// Second run: still exactly one response record (keyed by post id) and
	// the processed timestamp does not move.
	_, err = b.BuildContext(context.Background(), target, nil)
	require.NoError(t, err)

	second, err := st.GetPost("t1")
	require.NoError(t, err)
	require.NotNil(t, second.ContextBuiltAt)
	assert.True(t, second.ContextBuiltAt.Equal(*first.ContextBuiltAt))

	_, err = st.GetResponse("t1")
	require.NoError(t, err)
}

func TestBuildContext_DegradedStillContainsPostText(t *testing.T) {
	st, b := newFixture(t, errors.New("vision down"))

	// Target post is not even stored: thread lookup finds nothing, there are
	// no prior interactions, and every image description fails.
	target := &types.Post{
		ID: "ghost", AuthorID: "u1", Text: "the literal post text", CreatedAt: time.Now(),
		Media: []types.Media{{Type: types.MediaPhoto, URL: "http://img/x.png"}},
	}
	require.NoError(t, st.SavePost(target))

	prompt, err := b.BuildContext(context.Background(), target, nil)
	require.NoError(t, err)

	assert.NotEmpty(t, prompt)
	assert.Contains(t, prompt, "the literal post text")
	assert.Contains(t, prompt, vision.FallbackDescription)
}

func TestBuildContext_NilAuthorUsesPlaceholder(t *testing.T) {
	st, b := newFixture(t, nil)

	target := &types.Post{ID: "t2", AuthorID: "missing-author", Text: "hi", CreatedAt: time.Now()}
	require.NoError(t, st.SavePost(target))

	prompt, err := b.BuildContext(context.Background(), target, nil)
	require.NoError(t, err)

	assert.Contains(t, prompt, "@unknown")

	rec, err := st.GetResponse("t2")
	require.NoError(t, err)
	assert.Equal(t, "missing-author", rec.AuthorID)
}

func TestBuildContext_ThreadSeparatorRendered(t *testing.T) {
	st, b := newFixture(t, nil)
	now := time.Now()

	require.NoError(t, st.SavePost(&types.Post{ID: "p0", AuthorID: "u9", Text: "start", CreatedAt: now}))
	prev := "p0"
	for i := 1; i < 9; i++ {
		id := "p" + strings.Repeat("x", i) // distinct ids
		require.NoError(t, st.SavePost(&types.Post{
			ID: id, AuthorID: "u9", Text: "mid", CreatedAt: now,
			References: []types.Reference{{Type: types.ReferenceRepliedTo, PostID: prev}},
		}))
		prev = id
	}

	target, err := st.GetPost(prev)
	require.NoError(t, err)

	prompt, err := b.BuildContext(context.Background(), target, nil)
	require.NoError(t, err)

	assert.Contains(t, prompt, "... (4 tweets omitted) ...")
}
