package service

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"quillpress/internal/content"
	"quillpress/internal/core/auth"
	"quillpress/internal/domain"
	"quillpress/internal/repo/memory"
)

type env struct {
	store    *memory.Store
	users    *UserService
	posts    *PostService
	tags     *TagService
	comments *CommentService
	recon    *Reconciler
	logs     *observer.ObservedLogs
}

func newEnv(t *testing.T, policy CommentPolicy) *env {
	t.Helper()
	core, logs := observer.New(zapcore.DebugLevel)
	l := zap.New(core)
	st := memory.New()
	r := NewRetrier(time.Second, 2, time.Millisecond, l)
	hasher := &auth.PasswordHasher{Memory: 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32}
	tokens := auth.NewTokenService([]byte("test-secret"), "quillpress", time.Hour)
	counters := NewCounters(st.Posts(), st.Tags(), r, l)
	tags := NewTagService(st.Tags(), st.Posts(), r, l)
	return &env{
		store:    st,
		users:    NewUserService(st.Users(), hasher, tokens, r, l),
		tags:     tags,
		posts:    NewPostService(st.Posts(), st.Comments(), tags, content.NewDeriver(content.Options{}), counters, nil, r, l),
		comments: NewCommentService(st.Comments(), st.Posts(), counters, policy, r, l),
		recon:    NewReconciler(st.Posts(), st.Tags(), st.Comments(), r, l),
		logs:     logs,
	}
}

func (e *env) member(t *testing.T, email string) domain.Principal {
	t.Helper()
	res, err := e.users.Register(context.Background(), RegisterInput{Name: "M", Email: email, Password: "password123"})
	require.NoError(t, err)
	return domain.Principal{UserID: res.User.ID, Role: res.User.Role}
}

func (e *env) withRole(t *testing.T, email string, role domain.Role) (*domain.User, domain.Principal) {
	t.Helper()
	p := e.member(t, email)
	u, err := e.store.Users().Patch(context.Background(), p.UserID, domain.UserPatch{Role: &role})
	require.NoError(t, err)
	return u, domain.Principal{UserID: u.ID, Role: role}
}

func (e *env) publishedPost(t *testing.T, author domain.Principal, title string) *domain.Post {
	t.Helper()
	p, err := e.posts.Create(context.Background(), author, PostInput{Title: title, Content: "body text", Status: domain.PostPublished})
	require.NoError(t, err)
	return p
}

func strp(s string) *string { return &s }

// setCommentCount 直接改写计数，用来制造漂移
func (e *env) setCommentCount(t *testing.T, postID string, value int64) {
	t.Helper()
	p, err := e.store.Posts().FindByID(context.Background(), postID)
	require.NoError(t, err)
	require.NoError(t, e.store.Posts().SetCounter(context.Background(), postID, domain.CounterComments, p.CommentCount, value))
}
