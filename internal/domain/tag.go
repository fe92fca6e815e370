package domain

import (
	"context"
	"time"
)

type Tag struct {
	ID        string    `json:"id"`
	Name      string    `json:"name"`
	Slug      string    `json:"slug"`
	PostCount int64     `json:"postCount"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

type TagRepository interface {
	// Insert name 或 slug 冲突返回 *DuplicateKeyError
	Insert(ctx context.Context, t *Tag) error
	FindByID(ctx context.Context, id string) (*Tag, error)
	FindBySlug(ctx context.Context, slug string) (*Tag, error)
	FindByName(ctx context.Context, name string) (*Tag, error)
	SlugsWithPrefix(ctx context.Context, base string) ([]string, error)
	// Update 只改 name / slug
	Update(ctx context.Context, t *Tag) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context) ([]Tag, error)

	AddPostCount(ctx context.Context, id string, delta int64) error
	// SetPostCount 仅当当前值仍为 was 时写入，否则返回 ErrCounterMoved
	SetPostCount(ctx context.Context, id string, was, value int64) error
}
