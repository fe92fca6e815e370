package memory

import (
	"context"
	"sort"

	"quillpress/internal/domain"
)

type PostRepo struct{ s *Store }

var _ domain.PostRepository = (*PostRepo)(nil)

func clonePost(p *domain.Post) *domain.Post {
	cp := *p
	cp.TagIDs = append([]string(nil), p.TagIDs...)
	if p.PublishedAt != nil {
		t := *p.PublishedAt
		cp.PublishedAt = &t
	}
	return &cp
}

func (r *PostRepo) Insert(_ context.Context, p *domain.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.postSlug[p.Slug]; ok {
		return &domain.DuplicateKeyError{Field: "slug"}
	}
	r.s.stamp(&p.CreatedAt, &p.UpdatedAt)
	r.s.posts[p.ID] = clonePost(p)
	r.s.postSlug[p.Slug] = p.ID
	return nil
}

func (r *PostRepo) FindByID(_ context.Context, id string) (*domain.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	p, ok := r.s.posts[id]
	if !ok {
		return nil, domain.NotFound("post")
	}
	return clonePost(p), nil
}

func (r *PostRepo) FindBySlug(_ context.Context, slug string) (*domain.Post, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.postSlug[slug]
	if !ok {
		return nil, domain.NotFound("post")
	}
	return clonePost(r.s.posts[id]), nil
}

func (r *PostRepo) SlugsWithPrefix(_ context.Context, base string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return slugsWithPrefix(r.s.postSlug, base), nil
}

func (r *PostRepo) Update(_ context.Context, p *domain.Post) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.posts[p.ID]
	if !ok {
		return domain.NotFound("post")
	}
	if owner, ok := r.s.postSlug[p.Slug]; ok && owner != p.ID {
		return &domain.DuplicateKeyError{Field: "slug"}
	}
	next := clonePost(p)
	next.ViewCount, next.LikeCount, next.CommentCount = cur.ViewCount, cur.LikeCount, cur.CommentCount
	next.CreatedAt = cur.CreatedAt
	next.UpdatedAt = r.s.now()
	p.UpdatedAt = next.UpdatedAt

	delete(r.s.postSlug, cur.Slug)
	r.s.postSlug[next.Slug] = next.ID
	r.s.posts[next.ID] = next
	return nil
}

func (r *PostRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return domain.NotFound("post")
	}
	delete(r.s.postSlug, p.Slug)
	delete(r.s.posts, id)
	return nil
}

func (r *PostRepo) List(_ context.Context, f domain.PostFilter) ([]domain.Post, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var all []domain.Post
	for _, p := range r.s.posts {
		if f.Status != "" && p.Status != f.Status {
			continue
		}
		if f.AuthorID != "" && p.AuthorID != f.AuthorID {
			continue
		}
		if f.TagID != "" && !hasTag(p, f.TagID) {
			continue
		}
		all = append(all, *clonePost(p))
	}
	sort.Slice(all, func(i, j int) bool {
		if all[i].CreatedAt.Equal(all[j].CreatedAt) {
			return all[i].ID > all[j].ID
		}
		return all[i].CreatedAt.After(all[j].CreatedAt)
	})
	return page(all, f.Offset, f.Limit), int64(len(all)), nil
}

func hasTag(p *domain.Post, tagID string) bool {
	for _, t := range p.TagIDs {
		if t == tagID {
			return true
		}
	}
	return false
}

func (r *PostRepo) AddCounter(_ context.Context, id string, c domain.PostCounter, delta int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return domain.NotFound("post")
	}
	f, err := counterField(p, c)
	if err != nil {
		return err
	}
	*f = floorAdd(*f, delta)
	return nil
}

func (r *PostRepo) SetCounter(_ context.Context, id string, c domain.PostCounter, was, value int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	p, ok := r.s.posts[id]
	if !ok {
		return domain.NotFound("post")
	}
	f, err := counterField(p, c)
	if err != nil {
		return err
	}
	if *f != was {
		return domain.ErrCounterMoved
	}
	*f = max(0, value)
	return nil
}

func (r *PostRepo) CountWithTag(_ context.Context, tagID string) (int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	var n int64
	for _, p := range r.s.posts {
		if hasTag(p, tagID) {
			n++
		}
	}
	return n, nil
}

func counterField(p *domain.Post, c domain.PostCounter) (*int64, error) {
	switch c {
	case domain.CounterViews:
		return &p.ViewCount, nil
	case domain.CounterLikes:
		return &p.LikeCount, nil
	case domain.CounterComments:
		return &p.CommentCount, nil
	}
	return nil, domain.NewValidationError("counter", "unknown counter "+string(c))
}
