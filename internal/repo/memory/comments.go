package memory

import (
	"context"
	"slices"
	"sort"

	"quillpress/internal/domain"
)

type CommentRepo struct{ s *Store }

var _ domain.CommentRepository = (*CommentRepo)(nil)

// view 复制并填充派生的 Replies，调用方需持有读锁
func (r *CommentRepo) view(c *domain.Comment) *domain.Comment {
	cp := *c
	if c.ParentID != nil {
		pid := *c.ParentID
		cp.ParentID = &pid
	}
	cp.Replies = append([]string{}, r.s.children[c.ID]...)
	return &cp
}

func (r *CommentRepo) Create(_ context.Context, c *domain.Comment) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.posts[c.PostID]; !ok {
		return domain.NotFound("post")
	}
	if c.ParentID != nil {
		parent, ok := r.s.comments[*c.ParentID]
		if !ok || parent.PostID != c.PostID {
			return domain.NotFound("parent comment")
		}
	}
	r.s.stamp(&c.CreatedAt, &c.UpdatedAt)
	cp := *c
	cp.Replies = nil
	r.s.comments[c.ID] = &cp
	if c.ParentID != nil {
		r.s.children[*c.ParentID] = append(r.s.children[*c.ParentID], c.ID)
	}
	c.Replies = []string{}
	return nil
}

func (r *CommentRepo) FindByID(_ context.Context, id string) (*domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	c, ok := r.s.comments[id]
	if !ok {
		return nil, domain.NotFound("comment")
	}
	return r.view(c), nil
}

func byCreated(out []domain.Comment) {
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
}

func (r *CommentRepo) ListByPost(_ context.Context, postID string, statuses []domain.CommentStatus) ([]domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var out []domain.Comment
	for _, c := range r.s.comments {
		if c.PostID != postID {
			continue
		}
		if len(statuses) > 0 && !slices.Contains(statuses, c.Status) {
			continue
		}
		out = append(out, *r.view(c))
	}
	byCreated(out)
	return out, nil
}

func (r *CommentRepo) Children(_ context.Context, parentID string) ([]domain.Comment, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	ids := r.s.children[parentID]
	out := make([]domain.Comment, 0, len(ids))
	for _, id := range ids {
		out = append(out, *r.view(r.s.comments[id]))
	}
	return out, nil
}

func (r *CommentRepo) ListByStatus(_ context.Context, status domain.CommentStatus, offset, limit int) ([]domain.Comment, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []domain.Comment
	for _, c := range r.s.comments {
		if c.Status == status {
			all = append(all, *r.view(c))
		}
	}
	byCreated(all)
	return page(all, offset, limit), int64(len(all)), nil
}

func (r *CommentRepo) Transition(_ context.Context, id string, from []domain.CommentStatus, to domain.CommentStatus) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.comments[id]
	if !ok {
		return domain.NotFound("comment")
	}
	if !slices.Contains(from, c.Status) {
		return domain.ErrInvalidTransition
	}
	c.Status = to
	c.UpdatedAt = r.s.now()
	return nil
}

// DeleteTree 从 root 出发做可达性遍历，一次性删除整棵子树
func (r *CommentRepo) DeleteTree(_ context.Context, rootID string) (*domain.Comment, int, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	root, ok := r.s.comments[rootID]
	if !ok {
		return nil, 0, domain.NotFound("comment")
	}
	removed := r.view(root)

	queue := []string{rootID}
	n := 0
	for len(queue) > 0 {
		id := queue[0]
		queue = queue[1:]
		queue = append(queue, r.s.children[id]...)
		delete(r.s.children, id)
		delete(r.s.comments, id)
		n++
	}
	if root.ParentID != nil {
		pid := *root.ParentID
		r.s.children[pid] = slices.DeleteFunc(r.s.children[pid], func(id string) bool { return id == rootID })
		if len(r.s.children[pid]) == 0 {
			delete(r.s.children, pid)
		}
	}
	return removed, n, nil
}

func (r *CommentRepo) DeleteByPost(_ context.Context, postID string) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	var n int64
	for id, c := range r.s.comments {
		if c.PostID == postID {
			delete(r.s.comments, id)
			delete(r.s.children, id)
			n++
		}
	}
	return n, nil
}

func (r *CommentRepo) AddLikes(_ context.Context, id string, delta int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	c, ok := r.s.comments[id]
	if !ok {
		return domain.NotFound("comment")
	}
	c.LikeCount = floorAdd(c.LikeCount, delta)
	return nil
}

func (r *CommentRepo) CountTopLevel(_ context.Context, postID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, c := range r.s.comments {
		if c.PostID == postID && c.ParentID == nil {
			n++
		}
	}
	return n, nil
}
