package memory

import (
	"context"
	"sort"
	"strings"

	"quillpress/internal/domain"
)

type TagRepo struct{ s *Store }

var _ domain.TagRepository = (*TagRepo)(nil)

func nameKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

func (r *TagRepo) Insert(_ context.Context, t *domain.Tag) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	if _, ok := r.s.tagName[nameKey(t.Name)]; ok {
		return &domain.DuplicateKeyError{Field: "name"}
	}
	if _, ok := r.s.tagSlug[t.Slug]; ok {
		return &domain.DuplicateKeyError{Field: "slug"}
	}
	r.s.stamp(&t.CreatedAt, &t.UpdatedAt)
	cp := *t
	r.s.tags[t.ID] = &cp
	r.s.tagName[nameKey(t.Name)] = t.ID
	r.s.tagSlug[t.Slug] = t.ID
	return nil
}

func (r *TagRepo) FindByID(_ context.Context, id string) (*domain.Tag, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	t, ok := r.s.tags[id]
	if !ok {
		return nil, domain.NotFound("tag")
	}
	cp := *t
	return &cp, nil
}

func (r *TagRepo) find(idx map[string]string, key string) (*domain.Tag, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := idx[key]
	if !ok {
		return nil, domain.NotFound("tag")
	}
	cp := *r.s.tags[id]
	return &cp, nil
}

func (r *TagRepo) FindBySlug(_ context.Context, slug string) (*domain.Tag, error) {
	return r.find(r.s.tagSlug, slug)
}

func (r *TagRepo) FindByName(_ context.Context, name string) (*domain.Tag, error) {
	return r.find(r.s.tagName, nameKey(name))
}

func (r *TagRepo) SlugsWithPrefix(_ context.Context, base string) ([]string, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	return slugsWithPrefix(r.s.tagSlug, base), nil
}

func (r *TagRepo) Update(_ context.Context, t *domain.Tag) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	cur, ok := r.s.tags[t.ID]
	if !ok {
		return domain.NotFound("tag")
	}
	if owner, ok := r.s.tagName[nameKey(t.Name)]; ok && owner != t.ID {
		return &domain.DuplicateKeyError{Field: "name"}
	}
	if owner, ok := r.s.tagSlug[t.Slug]; ok && owner != t.ID {
		return &domain.DuplicateKeyError{Field: "slug"}
	}
	delete(r.s.tagName, nameKey(cur.Name))
	delete(r.s.tagSlug, cur.Slug)
	cur.Name, cur.Slug = t.Name, t.Slug
	cur.UpdatedAt = r.s.now()
	r.s.tagName[nameKey(cur.Name)] = cur.ID
	r.s.tagSlug[cur.Slug] = cur.ID
	*t = *cur
	return nil
}

func (r *TagRepo) Delete(_ context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tags[id]
	if !ok {
		return domain.NotFound("tag")
	}
	delete(r.s.tagName, nameKey(t.Name))
	delete(r.s.tagSlug, t.Slug)
	delete(r.s.tags, id)
	return nil
}

func (r *TagRepo) List(_ context.Context) ([]domain.Tag, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	out := make([]domain.Tag, 0, len(r.s.tags))
	for _, t := range r.s.tags {
		out = append(out, *t)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (r *TagRepo) AddPostCount(_ context.Context, id string, delta int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tags[id]
	if !ok {
		return domain.NotFound("tag")
	}
	t.PostCount = floorAdd(t.PostCount, delta)
	return nil
}

func (r *TagRepo) SetPostCount(_ context.Context, id string, was, value int64) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	t, ok := r.s.tags[id]
	if !ok {
		return domain.NotFound("tag")
	}
	if t.PostCount != was {
		return domain.ErrCounterMoved
	}
	t.PostCount = max(0, value)
	return nil
}
