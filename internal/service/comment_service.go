package service

import (
	"context"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"quillpress/internal/domain"
	"quillpress/pkg/utils"
)

type CommentInput struct {
	Content  string
	ParentID *string
}

// CommentNode 读取时组装的评论树节点
type CommentNode struct {
	domain.Comment
	Children []*CommentNode `json:"children"`
}

type CommentPolicy struct {
	AutoApprove bool
	MaxLength   int
}

type CommentService struct {
	comments domain.CommentRepository
	posts    domain.PostRepository
	counters *Counters
	policy   CommentPolicy
	r        *Retrier
	log      *zap.Logger
}

func NewCommentService(comments domain.CommentRepository, posts domain.PostRepository, counters *Counters, policy CommentPolicy, r *Retrier, l *zap.Logger) *CommentService {
	if policy.MaxLength <= 0 {
		policy.MaxLength = 5000
	}
	return &CommentService{comments: comments, posts: posts, counters: counters, policy: policy, r: r, log: l}
}

func (s *CommentService) find(ctx context.Context, id string) (*domain.Comment, error) {
	return Get(ctx, s.r, "comment.find", func(ctx context.Context) (*domain.Comment, error) { return s.comments.FindByID(ctx, id) })
}

// Create 回复与父评论必须属于同一篇文章；只有顶层评论计入 post.commentCount
func (s *CommentService) Create(ctx context.Context, actor domain.Principal, postID string, in CommentInput) (*domain.Comment, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthenticated
	}
	body := strings.TrimSpace(in.Content)
	if n := len([]rune(body)); n == 0 || n > s.policy.MaxLength {
		return nil, domain.NewValidationError("content", fmt.Sprintf("content must be between 1 and %d characters", s.policy.MaxLength))
	}
	post, err := Get(ctx, s.r, "post.find", func(ctx context.Context) (*domain.Post, error) { return s.posts.FindByID(ctx, postID) })
	if err != nil {
		return nil, err
	}
	if !visible(actor, post) {
		return nil, domain.NotFound("post")
	}
	if in.ParentID != nil {
		parent, err := s.find(ctx, *in.ParentID)
		if err != nil {
			return nil, err
		}
		if parent.PostID != postID {
			return nil, domain.NewValidationError("parentId", "parent comment belongs to a different post")
		}
	}

	status := domain.CommentPending
	if s.policy.AutoApprove {
		status = domain.CommentApproved
	}
	c := &domain.Comment{
		ID:       utils.NewID(),
		PostID:   postID,
		AuthorID: actor.UserID,
		ParentID: in.ParentID,
		Content:  body,
		Status:   status,
	}
	// 父评论存在性在存储层与插入原子完成
	if err := s.r.Once(ctx, "comment.create", func(ctx context.Context) error { return s.comments.Create(ctx, c) }); err != nil {
		return nil, err
	}
	if c.IsTopLevel() {
		s.counters.Post(ctx, postID, domain.CounterComments, 1)
	}
	return c, nil
}

// Delete 作者或 admin；级联删除整棵子树
func (s *CommentService) Delete(ctx context.Context, actor domain.Principal, id string) (int, error) {
	if actor.Anonymous() {
		return 0, domain.ErrUnauthenticated
	}
	c, err := s.find(ctx, id)
	if err != nil {
		return 0, err
	}
	if !actor.CanModify(c.AuthorID) {
		return 0, domain.ErrForbidden
	}
	var (
		root *domain.Comment
		n    int
	)
	err = s.r.Do(ctx, "comment.delete_tree", func(ctx context.Context) error {
		var err error
		root, n, err = s.comments.DeleteTree(ctx, id)
		return err
	})
	if err != nil {
		return 0, err
	}
	if root.IsTopLevel() {
		s.counters.Post(ctx, root.PostID, domain.CounterComments, -1)
	}
	s.log.Info("comment deleted", zap.String("id", id), zap.String("actor", actor.UserID), zap.Int("removed", n))
	return n, nil
}

func (s *CommentService) moderate(ctx context.Context, actor domain.Principal, id string, to domain.CommentStatus) (*domain.Comment, error) {
	if !actor.Role.AtLeast(domain.RoleAdmin) {
		return nil, domain.ErrForbidden
	}
	err := s.r.Do(ctx, "comment.transition", func(ctx context.Context) error {
		return s.comments.Transition(ctx, id, []domain.CommentStatus{domain.CommentPending}, to)
	})
	if err != nil {
		return nil, err
	}
	s.log.Info("comment moderated", zap.String("id", id), zap.String("status", string(to)), zap.String("actor", actor.UserID))
	return s.find(ctx, id)
}

// Approve pending -> approved
func (s *CommentService) Approve(ctx context.Context, actor domain.Principal, id string) (*domain.Comment, error) {
	return s.moderate(ctx, actor, id, domain.CommentApproved)
}

// MarkSpam pending -> spam
func (s *CommentService) MarkSpam(ctx context.Context, actor domain.Principal, id string) (*domain.Comment, error) {
	return s.moderate(ctx, actor, id, domain.CommentSpam)
}

func (s *CommentService) Like(ctx context.Context, actor domain.Principal, id string) (*domain.Comment, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthenticated
	}
	c, err := s.find(ctx, id)
	if err != nil {
		return nil, err
	}
	if !c.IsApproved() {
		return nil, domain.NotFound("comment")
	}
	if err := s.r.Once(ctx, "comment.like", func(ctx context.Context) error { return s.comments.AddLikes(ctx, id, 1) }); err != nil {
		return nil, err
	}
	c.LikeCount++
	return c, nil
}

// Queue admin 审核队列，默认 pending
func (s *CommentService) Queue(ctx context.Context, actor domain.Principal, status domain.CommentStatus, offset, limit int) ([]domain.Comment, int64, error) {
	if !actor.Role.AtLeast(domain.RoleAdmin) {
		return nil, 0, domain.ErrForbidden
	}
	if status == "" {
		status = domain.CommentPending
	}
	if !status.Valid() {
		return nil, 0, domain.NewValidationError("status", "status must be pending, approved or spam")
	}
	offset, limit = clampPage(offset, limit)
	var (
		items []domain.Comment
		total int64
	)
	err := s.r.Do(ctx, "comment.list_by_status", func(ctx context.Context) error {
		var err error
		items, total, err = s.comments.ListByStatus(ctx, status, offset, limit)
		return err
	})
	return items, total, err
}

// Thread 文章评论树。admin 看全部状态；其他人看已通过的以及自己的评论。
// 不可见节点的子树一并隐藏。
func (s *CommentService) Thread(ctx context.Context, viewer domain.Principal, postID string) ([]*CommentNode, error) {
	post, err := Get(ctx, s.r, "post.find", func(ctx context.Context) (*domain.Post, error) { return s.posts.FindByID(ctx, postID) })
	if err != nil {
		return nil, err
	}
	if !visible(viewer, post) {
		return nil, domain.NotFound("post")
	}
	all, err := Get(ctx, s.r, "comment.list_by_post", func(ctx context.Context) ([]domain.Comment, error) {
		return s.comments.ListByPost(ctx, postID, nil)
	})
	if err != nil {
		return nil, err
	}
	admin := viewer.Role.AtLeast(domain.RoleAdmin)
	return buildTree(all, func(c *domain.Comment) bool {
		return admin || c.IsApproved() || (!viewer.Anonymous() && c.AuthorID == viewer.UserID)
	}), nil
}

// buildTree all 已按创建时间升序
func buildTree(all []domain.Comment, show func(*domain.Comment) bool) []*CommentNode {
	nodes := make(map[string]*CommentNode, len(all))
	for i := range all {
		if show(&all[i]) {
			nodes[all[i].ID] = &CommentNode{Comment: all[i], Children: []*CommentNode{}}
		}
	}
	roots := []*CommentNode{}
	for i := range all {
		n, ok := nodes[all[i].ID]
		if !ok {
			continue
		}
		if n.ParentID == nil {
			roots = append(roots, n)
			continue
		}
		if parent, ok := nodes[*n.ParentID]; ok {
			parent.Children = append(parent.Children, n)
		}
	}
	return roots
}
