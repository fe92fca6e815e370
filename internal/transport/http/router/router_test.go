package router

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"quillpress/internal/content"
	"quillpress/internal/core/auth"
	"quillpress/internal/core/config"
	"quillpress/internal/repo/memory"
	"quillpress/internal/service"
	"quillpress/internal/upload"
)

func init() { gin.SetMode(gin.TestMode) }

type envelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type testEnv struct {
	api, admin *gin.Engine
	users      *service.UserService
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	l := zap.NewNop()
	st := memory.New()
	r := service.NewRetrier(time.Second, 1, time.Millisecond, l)
	tokens := auth.NewTokenService([]byte("router-secret"), "quillpress", time.Hour)
	hasher := &auth.PasswordHasher{Memory: 1024, Time: 1, Threads: 1, SaltLen: 16, KeyLen: 32}
	counters := service.NewCounters(st.Posts(), st.Tags(), r, l)
	tags := service.NewTagService(st.Tags(), st.Posts(), r, l)
	users := service.NewUserService(st.Users(), hasher, tokens, r, l)
	uploads, err := upload.NewStore(upload.Options{Dir: t.TempDir(), PublicPrefix: "/uploads", MaxFileBytes: 1 << 20, MaxFiles: 2}, l)
	require.NoError(t, err)

	d := Deps{
		Log:        l,
		Limits:     config.Limits{RPS: 1000, Burst: 1000, MaxConcurrency: 64, MaxBodyBytes: 1 << 20, TimeoutSec: 5},
		Tokens:     tokens,
		Users:      users,
		Tags:       tags,
		Posts:      service.NewPostService(st.Posts(), st.Comments(), tags, content.NewDeriver(content.Options{}), counters, nil, r, l),
		Comments:   service.NewCommentService(st.Comments(), st.Posts(), counters, service.CommentPolicy{MaxLength: 1000}, r, l),
		Reconciler: service.NewReconciler(st.Posts(), st.Tags(), st.Comments(), r, l),
		Uploads:    uploads,
	}
	return &testEnv{api: NewAPIEngine(d), admin: NewAdminEngine(d), users: users}
}

func do(t *testing.T, h http.Handler, method, path, token string, body any) (int, envelope) {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)

	var env envelope
	if w.Body.Len() > 0 && w.Header().Get("Content-Type") != "" {
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env), w.Body.String())
	}
	return w.Code, env
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v), string(raw))
	return v
}

type authData struct {
	Token string `json:"token"`
	User  struct {
		ID    string `json:"id"`
		Email string `json:"email"`
		Role  string `json:"role"`
	} `json:"user"`
}

func (e *testEnv) register(t *testing.T, email string) authData {
	t.Helper()
	code, env := do(t, e.api, http.MethodPost, "/api/v1/auth/register", "",
		map[string]string{"name": "Reader", "email": email, "password": "password123"})
	require.Equal(t, http.StatusCreated, code, env.Msg)
	return decode[authData](t, env.Data)
}

func (e *testEnv) superAdmin(t *testing.T) string {
	t.Helper()
	_, err := e.users.EnsureSuperAdmin(context.Background(), service.RegisterInput{Name: "Root", Email: "root@example.com", Password: "password123"})
	require.NoError(t, err)
	code, env := do(t, e.api, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": "root@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	return decode[authData](t, env.Data).Token
}

func TestHealthAndMetrics(t *testing.T) {
	e := newTestEnv(t)
	for _, h := range []http.Handler{e.api, e.admin} {
		w := httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/health", nil))
		assert.Equal(t, http.StatusOK, w.Code)

		w = httptest.NewRecorder()
		h.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/metrics", nil))
		assert.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), "http_requests_total")
	}
}

func TestAuthFlow(t *testing.T) {
	e := newTestEnv(t)
	reg := e.register(t, "Reader@Example.com")
	assert.Equal(t, "reader@example.com", reg.User.Email)
	assert.Equal(t, "member", reg.User.Role)

	code, env := do(t, e.api, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": "READER@example.com", "password": "password123"})
	require.Equal(t, http.StatusOK, code)
	login := decode[authData](t, env.Data)
	assert.NotEmpty(t, login.Token)

	code, env = do(t, e.api, http.MethodGet, "/api/v1/me", login.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 0, env.Code)
	assert.Equal(t, reg.User.ID, decode[struct{ ID string }](t, env.Data).ID)

	code, _ = do(t, e.api, http.MethodPatch, "/api/v1/me", login.Token, map[string]string{"password": "short"})
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, e.api, http.MethodPost, "/api/v1/auth/login", "",
		map[string]string{"email": "reader@example.com", "password": "wrong-password"})
	assert.Equal(t, http.StatusUnauthorized, code)
	assert.Equal(t, 401, env.Code)
}

func TestErrorEnvelope(t *testing.T) {
	e := newTestEnv(t)
	e.register(t, "dup@example.com")

	t.Run("missing token", func(t *testing.T) {
		code, env := do(t, e.api, http.MethodGet, "/api/v1/me", "", nil)
		assert.Equal(t, http.StatusUnauthorized, code)
		assert.Equal(t, 401, env.Code)
	})

	t.Run("garbage token on optional route", func(t *testing.T) {
		code, _ := do(t, e.api, http.MethodGet, "/api/v1/posts", "not-a-jwt", nil)
		assert.Equal(t, http.StatusUnauthorized, code)
	})

	t.Run("binding field errors", func(t *testing.T) {
		code, env := do(t, e.api, http.MethodPost, "/api/v1/auth/register", "",
			map[string]string{"email": "x@example.com"})
		require.Equal(t, http.StatusBadRequest, code)
		fields := decode[[]struct{ Field string }](t, env.Data)
		var names []string
		for _, f := range fields {
			names = append(names, f.Field)
		}
		assert.ElementsMatch(t, []string{"name", "password"}, names)
	})

	t.Run("binding rules", func(t *testing.T) {
		code, env := do(t, e.api, http.MethodPost, "/api/v1/auth/register", "",
			map[string]string{"name": "A", "email": "a@example.com", "password": "short"})
		require.Equal(t, http.StatusBadRequest, code)
		fields := decode[[]struct{ Field string }](t, env.Data)
		require.Len(t, fields, 1)
		assert.Equal(t, "password", fields[0].Field)

		code, _ = do(t, e.api, http.MethodPost, "/api/v1/auth/login", "",
			map[string]string{"email": "nobody", "password": "password123"})
		assert.Equal(t, http.StatusBadRequest, code)
	})

	t.Run("domain validation", func(t *testing.T) {
		code, env := do(t, e.api, http.MethodPost, "/api/v1/auth/register", "",
			map[string]string{"name": "A", "email": "not-an-email", "password": "password123"})
		require.Equal(t, http.StatusBadRequest, code)
		assert.Contains(t, string(env.Data), `"email"`)
	})

	t.Run("duplicate email", func(t *testing.T) {
		code, env := do(t, e.api, http.MethodPost, "/api/v1/auth/register", "",
			map[string]string{"name": "A", "email": "DUP@example.com", "password": "password123"})
		assert.Equal(t, http.StatusBadRequest, code)
		assert.Equal(t, 400, env.Code)
	})

	t.Run("not found", func(t *testing.T) {
		code, env := do(t, e.api, http.MethodGet, "/api/v1/posts/slug/nope", "", nil)
		assert.Equal(t, http.StatusNotFound, code)
		assert.Equal(t, 404, env.Code)
	})

	t.Run("body too large", func(t *testing.T) {
		big := map[string]string{"name": string(make([]byte, 2<<20)), "email": "a@b.co", "password": "password123"}
		code, _ := do(t, e.api, http.MethodPost, "/api/v1/auth/register", "", big)
		assert.Equal(t, http.StatusRequestEntityTooLarge, code)
	})
}

type postData struct {
	ID           string `json:"id"`
	Slug         string `json:"slug"`
	Status       string `json:"status"`
	CommentCount int64  `json:"commentCount"`
	TagIDs       []string
}

func TestPostsAndComments(t *testing.T) {
	e := newTestEnv(t)
	author := e.register(t, "author@example.com")
	reader := e.register(t, "reader@example.com")
	root := e.superAdmin(t)

	code, env := do(t, e.api, http.MethodPost, "/api/v1/posts", author.Token, map[string]any{
		"title": "Hello World", "content": "some words here", "status": "published", "tags": []string{"Go"},
	})
	require.Equal(t, http.StatusCreated, code, env.Msg)
	post := decode[postData](t, env.Data)
	assert.Equal(t, "hello-world", post.Slug)

	code, env = do(t, e.api, http.MethodPost, "/api/v1/posts", author.Token, map[string]any{"title": "Draft", "content": "x"})
	require.Equal(t, http.StatusCreated, code)
	draft := decode[postData](t, env.Data)
	assert.Equal(t, "draft", draft.Status)

	// 草稿对他人不可见
	code, _ = do(t, e.api, http.MethodGet, "/api/v1/posts/"+draft.ID, reader.Token, nil)
	assert.Equal(t, http.StatusNotFound, code)
	code, _ = do(t, e.api, http.MethodGet, "/api/v1/posts/"+draft.ID, author.Token, nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, e.api, http.MethodGet, "/api/v1/posts/slug/hello-world", "", nil)
	assert.Equal(t, http.StatusOK, code)

	code, _ = do(t, e.api, http.MethodPatch, "/api/v1/posts/"+post.ID, reader.Token, map[string]any{"title": "Hijack"})
	assert.Equal(t, http.StatusForbidden, code)

	code, env = do(t, e.api, http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", "", map[string]any{"content": "anon"})
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = do(t, e.api, http.MethodPost, "/api/v1/posts/"+post.ID+"/comments", reader.Token, map[string]any{"content": "nice post"})
	require.Equal(t, http.StatusCreated, code, env.Msg)
	comment := decode[struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}](t, env.Data)
	assert.Equal(t, "pending", comment.Status)

	// 审核：普通成员进不了管理端
	code, _ = do(t, e.admin, http.MethodPost, "/admin/v1/comments/"+comment.ID+"/approve", reader.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)
	code, _ = do(t, e.admin, http.MethodGet, "/admin/v1/comments", "", nil)
	assert.Equal(t, http.StatusUnauthorized, code)

	code, env = do(t, e.admin, http.MethodGet, "/admin/v1/comments?status=pending", root, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), decode[struct{ Total int64 }](t, env.Data).Total)

	code, _ = do(t, e.admin, http.MethodPost, "/admin/v1/comments/"+comment.ID+"/approve", root, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, e.admin, http.MethodPost, "/admin/v1/comments/"+comment.ID+"/spam", root, nil)
	assert.Equal(t, http.StatusBadRequest, code)

	code, env = do(t, e.api, http.MethodGet, "/api/v1/posts/"+post.ID+"/comments", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Len(t, decode[[]json.RawMessage](t, env.Data), 1)

	code, env = do(t, e.api, http.MethodGet, "/api/v1/posts/"+post.ID, "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, int64(1), decode[postData](t, env.Data).CommentCount)

	code, env = do(t, e.api, http.MethodDelete, "/api/v1/comments/"+comment.ID, reader.Token, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Equal(t, 1, decode[struct{ Removed int }](t, env.Data).Removed)

	code, env = do(t, e.api, http.MethodGet, "/api/v1/tags/go", "", nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), `"slug":"go"`)
}

func TestAdminUsersAndMaintenance(t *testing.T) {
	e := newTestEnv(t)
	member := e.register(t, "m@example.com")
	root := e.superAdmin(t)

	code, env := do(t, e.admin, http.MethodGet, "/admin/v1/users?q=m@", root, nil)
	require.Equal(t, http.StatusOK, code)
	assert.GreaterOrEqual(t, decode[struct{ Total int64 }](t, env.Data).Total, int64(1))

	code, env = do(t, e.admin, http.MethodPatch, "/admin/v1/users/"+member.User.ID+"/role", root, map[string]string{"role": "admin"})
	require.Equal(t, http.StatusOK, code, env.Msg)
	assert.Contains(t, string(env.Data), `"role":"admin"`)

	// 角色按账号实时记录生效，旧 token 也能进管理端
	code, _ = do(t, e.admin, http.MethodGet, "/admin/v1/users", member.Token, nil)
	assert.Equal(t, http.StatusOK, code)
	code, _ = do(t, e.admin, http.MethodPost, "/admin/v1/maintenance/reconcile", member.Token, nil)
	assert.Equal(t, http.StatusForbidden, code)

	code, env = do(t, e.admin, http.MethodPost, "/admin/v1/maintenance/reconcile", root, nil)
	require.Equal(t, http.StatusOK, code)
	assert.Contains(t, string(env.Data), "postsScanned")

	code, _ = do(t, e.admin, http.MethodPost, "/admin/v1/users/"+member.User.ID+"/deactivate", root, nil)
	require.Equal(t, http.StatusOK, code)
	code, _ = do(t, e.api, http.MethodGet, "/api/v1/me", member.Token, nil)
	assert.Equal(t, http.StatusUnauthorized, code)
}
