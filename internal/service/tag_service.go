package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"quillpress/internal/domain"
	"quillpress/pkg/utils"
)

const msgTagTaken = "Tag with this name already exists"

type TagService struct {
	tags  domain.TagRepository
	posts domain.PostRepository
	r     *Retrier
	log   *zap.Logger
}

func NewTagService(tags domain.TagRepository, posts domain.PostRepository, r *Retrier, l *zap.Logger) *TagService {
	return &TagService{tags: tags, posts: posts, r: r, log: l}
}

func normalizeTagName(name string) (string, error) {
	name = strings.Join(strings.Fields(name), " ")
	if n := len([]rune(name)); n == 0 || n > 50 {
		return "", domain.NewValidationError("name", "tag name must be between 1 and 50 characters")
	}
	return name, nil
}

// tagSlugs 让 slug 查询也走重试
type tagSlugs struct{ s *TagService }

func (t tagSlugs) SlugsWithPrefix(ctx context.Context, base string) ([]string, error) {
	return Get(ctx, t.s.r, "tag.slugs", func(ctx context.Context) ([]string, error) {
		return t.s.tags.SlugsWithPrefix(ctx, base)
	})
}

func (s *TagService) Create(ctx context.Context, name string) (*domain.Tag, error) {
	name, err := normalizeTagName(name)
	if err != nil {
		return nil, err
	}
	t := &domain.Tag{ID: utils.NewID(), Name: name}
	err = withUniqueSlug(ctx, tagSlugs{s}, name, "tag", "", func(slug string) error {
		t.Slug = slug
		return s.r.Once(ctx, "tag.insert", func(ctx context.Context) error { return s.tags.Insert(ctx, t) })
	})
	if isDup(err, "name") {
		return nil, &domain.ConflictError{Field: "name", Msg: msgTagTaken}
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (s *TagService) Rename(ctx context.Context, id, name string) (*domain.Tag, error) {
	name, err := normalizeTagName(name)
	if err != nil {
		return nil, err
	}
	t, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	if t.Name == name {
		return t, nil
	}
	t.Name = name
	err = withUniqueSlug(ctx, tagSlugs{s}, name, "tag", t.Slug, func(slug string) error {
		t.Slug = slug
		return s.r.Do(ctx, "tag.update", func(ctx context.Context) error { return s.tags.Update(ctx, t) })
	})
	if isDup(err, "name") {
		return nil, &domain.ConflictError{Field: "name", Msg: msgTagTaken}
	}
	if err != nil {
		return nil, err
	}
	return t, nil
}

// Delete 仍被文章引用时拒绝；以实际引用数为准而非反范式计数
func (s *TagService) Delete(ctx context.Context, id string) error {
	if _, err := s.Get(ctx, id); err != nil {
		return err
	}
	n, err := Get(ctx, s.r, "post.count_with_tag", func(ctx context.Context) (int64, error) {
		return s.posts.CountWithTag(ctx, id)
	})
	if err != nil {
		return err
	}
	if n > 0 {
		return domain.NewValidationError("id", fmt.Sprintf("tag is still used by %d post(s)", n))
	}
	return s.r.Do(ctx, "tag.delete", func(ctx context.Context) error { return s.tags.Delete(ctx, id) })
}

func (s *TagService) Get(ctx context.Context, id string) (*domain.Tag, error) {
	return Get(ctx, s.r, "tag.find", func(ctx context.Context) (*domain.Tag, error) { return s.tags.FindByID(ctx, id) })
}

func (s *TagService) GetBySlug(ctx context.Context, slug string) (*domain.Tag, error) {
	return Get(ctx, s.r, "tag.find_by_slug", func(ctx context.Context) (*domain.Tag, error) { return s.tags.FindBySlug(ctx, slug) })
}

func (s *TagService) List(ctx context.Context) ([]domain.Tag, error) {
	return Get(ctx, s.r, "tag.list", func(ctx context.Context) ([]domain.Tag, error) { return s.tags.List(ctx) })
}

// Resolve 校验标签 id 并按名称查找或创建，返回去重后的 id 列表
func (s *TagService) Resolve(ctx context.Context, ids, names []string) ([]string, error) {
	seen := map[string]struct{}{}
	out := make([]string, 0, len(ids)+len(names))
	add := func(id string) {
		if _, ok := seen[id]; !ok {
			seen[id] = struct{}{}
			out = append(out, id)
		}
	}
	for _, id := range ids {
		if _, err := s.Get(ctx, id); err != nil {
			if errors.Is(err, domain.ErrNotFound) {
				return nil, domain.NewValidationError("tagIds", "unknown tag "+id)
			}
			return nil, err
		}
		add(id)
	}
	for _, name := range names {
		t, err := s.ensure(ctx, name)
		if err != nil {
			return nil, err
		}
		add(t.ID)
	}
	return out, nil
}

func (s *TagService) ensure(ctx context.Context, name string) (*domain.Tag, error) {
	name, err := normalizeTagName(name)
	if err != nil {
		return nil, domain.NewValidationError("tags", err.(*domain.ValidationError).Fields[0].Message)
	}
	find := func() (*domain.Tag, error) {
		return Get(ctx, s.r, "tag.find_by_name", func(ctx context.Context) (*domain.Tag, error) {
			return s.tags.FindByName(ctx, name)
		})
	}
	t, err := find()
	if !errors.Is(err, domain.ErrNotFound) {
		return t, err
	}
	t, err = s.Create(ctx, name)
	var conflict *domain.ConflictError
	if errors.As(err, &conflict) && conflict.Field == "name" {
		// 并发创建了同名标签
		return find()
	}
	return t, err
}

func isDup(err error, field string) bool {
	var dup *domain.DuplicateKeyError
	return errors.As(err, &dup) && dup.Field == field
}
