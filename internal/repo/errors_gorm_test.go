package repo

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"gorm.io/gorm"

	"quillpress/internal/domain"
)

var (
	_ domain.UserRepository    = (*UserRepo)(nil)
	_ domain.PostRepository    = (*PostRepo)(nil)
	_ domain.TagRepository     = (*TagRepo)(nil)
	_ domain.CommentRepository = (*CommentRepo)(nil)
)

type timeoutErr struct{}

func (timeoutErr) Error() string   { return "i/o timeout" }
func (timeoutErr) Timeout() bool   { return true }
func (timeoutErr) Temporary() bool { return true }

func TestTranslate(t *testing.T) {
	assert.NoError(t, translate(nil, "post"))
	assert.ErrorIs(t, translate(gorm.ErrRecordNotFound, "post"), domain.ErrNotFound)
	assert.ErrorIs(t, translate(gorm.ErrForeignKeyViolated, "post"), domain.ErrNotFound)
	assert.ErrorIs(t, translate(context.DeadlineExceeded, "post"), domain.ErrTransient)
	assert.ErrorIs(t, translate(fmt.Errorf("dial: %w", timeoutErr{}), "post"), domain.ErrTransient)

	other := errors.New("syntax error")
	assert.Equal(t, other, translate(other, "post"))
}

func TestDup(t *testing.T) {
	err := dup(gorm.ErrDuplicatedKey, "post", "slug")
	var de *domain.DuplicateKeyError
	assert.ErrorAs(t, err, &de)
	assert.Equal(t, "slug", de.Field)
	assert.ErrorIs(t, err, domain.ErrDuplicateKey)

	assert.ErrorIs(t, dup(gorm.ErrRecordNotFound, "post", "slug"), domain.ErrNotFound)
}

func TestModelMapping(t *testing.T) {
	p := &domain.Post{ID: "p1", Title: "T", Status: domain.PostPublished, TagIDs: []string{"a"}, CommentCount: 3}
	got := postFromModel(postToModel(p), nil)
	assert.Equal(t, "p1", got.ID)
	assert.Equal(t, domain.PostPublished, got.Status)
	assert.Equal(t, int64(3), got.CommentCount)
	assert.NotNil(t, got.TagIDs)

	u := userFromModel(userToModel(&domain.User{ID: "u1", Role: domain.RoleAdmin, Active: true}))
	assert.Equal(t, domain.RoleAdmin, u.Role)
	assert.True(t, u.Active)

	assert.Equal(t, "go lang", nameKey("  Go Lang "))
}
