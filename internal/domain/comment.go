package domain

import (
	"context"
	"time"
)

// CommentStatus 审核状态；删除是终态，实体直接移除
type CommentStatus string

const (
	CommentPending  CommentStatus = "pending"
	CommentApproved CommentStatus = "approved"
	CommentSpam     CommentStatus = "spam"
)

func (s CommentStatus) Valid() bool {
	return s == CommentPending || s == CommentApproved || s == CommentSpam
}

// Comment 平铺存储（按 id 索引），父子关系只存 ParentID；
// Replies 读取时由子评论反查得到，不单独持久化
type Comment struct {
	ID        string        `json:"id"`
	PostID    string        `json:"postId"`
	AuthorID  string        `json:"authorId"`
	ParentID  *string       `json:"parentId,omitempty"`
	Content   string        `json:"content"`
	Status    CommentStatus `json:"status"`
	LikeCount int64         `json:"likeCount"`
	Replies   []string      `json:"replies"`
	CreatedAt time.Time     `json:"createdAt"`
	UpdatedAt time.Time     `json:"updatedAt"`
}

func (c *Comment) IsTopLevel() bool { return c.ParentID == nil }

func (c *Comment) IsApproved() bool { return c.Status == CommentApproved }

type CommentRepository interface {
	// Create 有 ParentID 时父评论存在性检查与插入是同一个原子操作；父评论不存在返回 ErrNotFound。
	// 同样要求所属文章仍存在。
	Create(ctx context.Context, c *Comment) error
	FindByID(ctx context.Context, id string) (*Comment, error)
	// ListByPost statuses 为空表示全部状态，按创建时间升序
	ListByPost(ctx context.Context, postID string, statuses []CommentStatus) ([]Comment, error)
	Children(ctx context.Context, parentID string) ([]Comment, error)
	ListByStatus(ctx context.Context, status CommentStatus, offset, limit int) ([]Comment, int64, error)

	// Transition 比较并设置：当前状态不在 from 中返回 ErrInvalidTransition
	Transition(ctx context.Context, id string, from []CommentStatus, to CommentStatus) error
	// DeleteTree 删除 root 及其全部后代，返回被删的 root 与删除总数
	DeleteTree(ctx context.Context, rootID string) (*Comment, int, error)
	DeleteByPost(ctx context.Context, postID string) (int64, error)

	AddLikes(ctx context.Context, id string, delta int64) error
	CountTopLevel(ctx context.Context, postID string) (int64, error)
}
