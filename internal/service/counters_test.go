package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quillpress/internal/domain"
)

func TestCounters_FailureIsLoggedNotReturned(t *testing.T) {
	e := newEnv(t, CommentPolicy{})
	c := NewCounters(e.store.Posts(), e.store.Tags(), NewRetrier(0, 0, 0, nil), e.recon.log)

	c.Post(context.Background(), "missing", domain.CounterComments, 1)

	entries := e.logs.FilterMessage("consistency repair needed").All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "post", fields["entity"])
	assert.Equal(t, "comment_count", fields["field"])
	assert.Equal(t, "missing", fields["id"])
}

func TestCounters_IgnoresCallerCancel(t *testing.T) {
	e := newEnv(t, CommentPolicy{})
	author := e.member(t, "a@example.com")
	post := e.publishedPost(t, author, "P")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	e.posts.counters.Post(ctx, post.ID, domain.CounterLikes, 1)
	assert.Empty(t, e.logs.FilterMessage("consistency repair needed").All())

	p, err := e.store.Posts().FindByID(context.Background(), post.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), p.LikeCount)
}

func TestDiff(t *testing.T) {
	added, removed := diff([]string{"a", "b"}, []string{"b", "c"})
	assert.Equal(t, []string{"c"}, added)
	assert.Equal(t, []string{"a"}, removed)

	added, removed = diff(nil, nil)
	assert.Empty(t, added)
	assert.Empty(t, removed)
}
