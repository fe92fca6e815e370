package service

import (
	"context"
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"quillpress/internal/domain"
)

func commentCount(t *testing.T, e *env, postID string) int64 {
	t.Helper()
	p, err := e.store.Posts().FindByID(context.Background(), postID)
	require.NoError(t, err)
	return p.CommentCount
}

func TestComments_ConcurrentTopLevelCreatesConverge(t *testing.T) {
	e := newEnv(t, CommentPolicy{AutoApprove: true})
	ctx := context.Background()
	author := e.member(t, "a@example.com")
	post := e.publishedPost(t, author, "Busy")

	const n = 64
	var wg sync.WaitGroup
	errs := make(chan error, n)
	for i := 0; i < n; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := e.comments.Create(ctx, author, post.ID, CommentInput{Content: "hi"})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		require.NoError(t, err)
	}
	assert.Equal(t, int64(n), commentCount(t, e, post.ID))
}

func TestComments_RepliesDoNotCount(t *testing.T) {
	e := newEnv(t, CommentPolicy{AutoApprove: true})
	ctx := context.Background()
	author := e.member(t, "a@example.com")
	post := e.publishedPost(t, author, "P")

	top, err := e.comments.Create(ctx, author, post.ID, CommentInput{Content: "top"})
	require.NoError(t, err)
	_, err = e.comments.Create(ctx, author, post.ID, CommentInput{Content: "reply", ParentID: &top.ID})
	require.NoError(t, err)
	assert.Equal(t, int64(1), commentCount(t, e, post.ID))

	parent, err := e.store.Comments().FindByID(ctx, top.ID)
	require.NoError(t, err)
	assert.Len(t, parent.Replies, 1)
}

func TestComments_ReplyMustShareParentPost(t *testing.T) {
	e := newEnv(t, CommentPolicy{AutoApprove: true})
	ctx := context.Background()
	author := e.member(t, "a@example.com")
	p1 := e.publishedPost(t, author, "One")
	p2 := e.publishedPost(t, author, "Two")

	top, err := e.comments.Create(ctx, author, p1.ID, CommentInput{Content: "top"})
	require.NoError(t, err)

	_, err = e.comments.Create(ctx, author, p2.ID, CommentInput{Content: "x", ParentID: &top.ID})
	var ve *domain.ValidationError
	require.ErrorAs(t, err, &ve)
	assert.Equal(t, "parentId", ve.Fields[0].Field)

	_, err = e.comments.Create(ctx, author, p1.ID, CommentInput{Content: "x", ParentID: strp("missing")})
	assert.ErrorIs(t, err, domain.ErrNotFound)

	_, err = e.comments.Create(ctx, author, p1.ID, CommentInput{Content: "   "})
	require.ErrorAs(t, err, &ve)
}

func TestComments_CascadeDelete(t *testing.T) {
	e := newEnv(t, CommentPolicy{AutoApprove: true})
	ctx := context.Background()
	author := e.member(t, "a@example.com")
	post := e.publishedPost(t, author, "P")

	root, err := e.comments.Create(ctx, author, post.ID, CommentInput{Content: "root"})
	require.NoError(t, err)
	r1, err := e.comments.Create(ctx, author, post.ID, CommentInput{Content: "r1", ParentID: &root.ID})
	require.NoError(t, err)
	r2, err := e.comments.Create(ctx, author, post.ID, CommentInput{Content: "r2", ParentID: &r1.ID})
	require.NoError(t, err)
	other, err := e.comments.Create(ctx, author, post.ID, CommentInput{Content: "other"})
	require.NoError(t, err)
	require.Equal(t, int64(2), commentCount(t, e, post.ID))

	n, err := e.comments.Delete(ctx, author, root.ID)
	require.NoError(t, err)
	assert.Equal(t, 3, n)
	assert.Equal(t, int64(1), commentCount(t, e, post.ID))

	for _, id := range []string{root.ID, r1.ID, r2.ID} {
		_, err := e.store.Comments().FindByID(ctx, id)
		assert.ErrorIs(t, err, domain.ErrNotFound)
	}
	left, err := e.store.Comments().ListByPost(ctx, post.ID, nil)
	require.NoError(t, err)
	require.Len(t, left, 1)
	assert.Equal(t, other.ID, left[0].ID)
	for _, c := range left {
		if c.ParentID != nil {
			_, err := e.store.Comments().FindByID(ctx, *c.ParentID)
			assert.NoError(t, err)
		}
	}
}

func TestComments_DeletingReplyLeavesCounter(t *testing.T) {
	e := newEnv(t, CommentPolicy{AutoApprove: true})
	ctx := context.Background()
	author := e.member(t, "a@example.com")
	post := e.publishedPost(t, author, "P")

	root, _ := e.comments.Create(ctx, author, post.ID, CommentInput{Content: "root"})
	reply, _ := e.comments.Create(ctx, author, post.ID, CommentInput{Content: "r", ParentID: &root.ID})

	_, err := e.comments.Delete(ctx, author, reply.ID)
	require.NoError(t, err)
	assert.Equal(t, int64(1), commentCount(t, e, post.ID))
	parent, _ := e.store.Comments().FindByID(ctx, root.ID)
	assert.Empty(t, parent.Replies)
}

func TestComments_ConcurrentDeletesNeverGoNegative(t *testing.T) {
	e := newEnv(t, CommentPolicy{AutoApprove: true})
	ctx := context.Background()
	author := e.member(t, "a@example.com")
	post := e.publishedPost(t, author, "P")

	const n = 20
	ids := make([]string, n)
	for i := range ids {
		c, err := e.comments.Create(ctx, author, post.ID, CommentInput{Content: "c"})
		require.NoError(t, err)
		ids[i] = c.ID
	}
	// 人为制造漂移：计数比真实值小
	e.setCommentCount(t, post.ID, 5)

	var wg sync.WaitGroup
	for _, id := range ids {
		wg.Add(1)
		go func(id string) {
			defer wg.Done()
			_, _ = e.comments.Delete(ctx, author, id)
		}(id)
	}
	wg.Wait()
	assert.Equal(t, int64(0), commentCount(t, e, post.ID))
}

func TestComments_Moderation(t *testing.T) {
	e := newEnv(t, CommentPolicy{})
	ctx := context.Background()
	author := e.member(t, "a@example.com")
	_, admin := e.withRole(t, "admin@example.com", domain.RoleAdmin)
	post := e.publishedPost(t, author, "P")

	c, err := e.comments.Create(ctx, author, post.ID, CommentInput{Content: "hello"})
	require.NoError(t, err)
	assert.Equal(t, domain.CommentPending, c.Status)

	_, err = e.comments.Approve(ctx, author, c.ID)
	assert.ErrorIs(t, err, domain.ErrForbidden)

	queue, total, err := e.comments.Queue(ctx, admin, "", 0, 10)
	require.NoError(t, err)
	assert.Equal(t, int64(1), total)
	assert.Equal(t, c.ID, queue[0].ID)

	got, err := e.comments.Approve(ctx, admin, c.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CommentApproved, got.Status)

	_, err = e.comments.MarkSpam(ctx, admin, c.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	spam, err := e.comments.Create(ctx, author, post.ID, CommentInput{Content: "buy now"})
	require.NoError(t, err)
	got, err = e.comments.MarkSpam(ctx, admin, spam.ID)
	require.NoError(t, err)
	assert.Equal(t, domain.CommentSpam, got.Status)
	_, err = e.comments.Approve(ctx, admin, spam.ID)
	assert.ErrorIs(t, err, domain.ErrInvalidTransition)

	// 删除对任何状态都允许
	_, err = e.comments.Delete(ctx, admin, spam.ID)
	assert.NoError(t, err)
}

func TestComments_ThreadVisibility(t *testing.T) {
	e := newEnv(t, CommentPolicy{})
	ctx := context.Background()
	author := e.member(t, "a@example.com")
	reader := e.member(t, "r@example.com")
	_, admin := e.withRole(t, "admin@example.com", domain.RoleAdmin)
	post := e.publishedPost(t, author, "P")

	approved, _ := e.comments.Create(ctx, author, post.ID, CommentInput{Content: "approved"})
	_, err := e.comments.Approve(ctx, admin, approved.ID)
	require.NoError(t, err)
	pendingReply, _ := e.comments.Create(ctx, reader, post.ID, CommentInput{Content: "pending reply", ParentID: &approved.ID})
	_, _ = e.comments.Create(ctx, author, post.ID, CommentInput{Content: "pending top"})

	anon, err := e.comments.Thread(ctx, domain.Principal{}, post.ID)
	require.NoError(t, err)
	require.Len(t, anon, 1)
	assert.Empty(t, anon[0].Children)

	mine, err := e.comments.Thread(ctx, reader, post.ID)
	require.NoError(t, err)
	require.Len(t, mine, 1)
	require.Len(t, mine[0].Children, 1)
	assert.Equal(t, pendingReply.ID, mine[0].Children[0].ID)

	all, err := e.comments.Thread(ctx, admin, post.ID)
	require.NoError(t, err)
	assert.Len(t, all, 2)
}

func TestComments_OnDeletedPostAreRemoved(t *testing.T) {
	e := newEnv(t, CommentPolicy{AutoApprove: true})
	ctx := context.Background()
	author := e.member(t, "a@example.com")
	post := e.publishedPost(t, author, "P")
	_, err := e.comments.Create(ctx, author, post.ID, CommentInput{Content: "c"})
	require.NoError(t, err)

	require.NoError(t, e.posts.Delete(ctx, author, post.ID))
	left, err := e.store.Comments().ListByPost(ctx, post.ID, nil)
	require.NoError(t, err)
	assert.Empty(t, left)

	_, err = e.comments.Create(ctx, author, post.ID, CommentInput{Content: "late"})
	assert.ErrorIs(t, err, domain.ErrNotFound)
}
