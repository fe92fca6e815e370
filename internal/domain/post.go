package domain

import (
	"context"
	"time"
)

type PostStatus string

const (
	PostDraft     PostStatus = "draft"
	PostPublished PostStatus = "published"
)

func (s PostStatus) Valid() bool { return s == PostDraft || s == PostPublished }

type Post struct {
	ID              string     `json:"id"`
	Title           string     `json:"title"`
	Content         string     `json:"content"`
	Slug            string     `json:"slug"`
	Excerpt         string     `json:"excerpt"`
	ExcerptExplicit bool       `json:"-"`
	ReadingTime     int        `json:"readingTime"`
	AuthorID        string     `json:"authorId"`
	TagIDs          []string   `json:"tagIds"`
	Status          PostStatus `json:"status"`
	PublishedAt     *time.Time `json:"publishedAt,omitempty"`
	CoverImage      string     `json:"coverImage,omitempty"`
	ViewCount       int64      `json:"viewCount"`
	LikeCount       int64      `json:"likeCount"`
	CommentCount    int64      `json:"commentCount"`
	CreatedAt       time.Time  `json:"createdAt"`
	UpdatedAt       time.Time  `json:"updatedAt"`
}

// PostCounter 反范式计数字段，只能通过 AddCounter / SetCounter 修改
type PostCounter string

const (
	CounterViews    PostCounter = "view_count"
	CounterLikes    PostCounter = "like_count"
	CounterComments PostCounter = "comment_count"
)

func (c PostCounter) Valid() bool {
	return c == CounterViews || c == CounterLikes || c == CounterComments
}

type PostFilter struct {
	Status   PostStatus
	AuthorID string
	TagID    string
	Offset   int
	Limit    int
}

type PostRepository interface {
	// Insert 违反 slug 唯一约束时返回 *DuplicateKeyError，不覆盖
	Insert(ctx context.Context, p *Post) error
	FindByID(ctx context.Context, id string) (*Post, error)
	FindBySlug(ctx context.Context, slug string) (*Post, error)
	SlugsWithPrefix(ctx context.Context, base string) ([]string, error)
	// Update 只写内容与派生字段及标签关联，计数字段不动
	Update(ctx context.Context, p *Post) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, f PostFilter) ([]Post, int64, error)

	// AddCounter 原子增量，结果下限为 0；目标不存在返回 ErrNotFound
	AddCounter(ctx context.Context, id string, c PostCounter, delta int64) error
	// SetCounter 仅当当前值仍为 was 时写入 value，否则返回 ErrCounterMoved
	SetCounter(ctx context.Context, id string, c PostCounter, was, value int64) error
	CountWithTag(ctx context.Context, tagID string) (int64, error)
}
