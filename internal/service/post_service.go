package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"quillpress/internal/content"
	"quillpress/internal/domain"
	"quillpress/pkg/utils"
)

// PostCache 已发布文章按 slug 的读缓存，可为空
type PostCache interface {
	BySlug(ctx context.Context, slug string, load func(context.Context) (*domain.Post, error)) (*domain.Post, error)
	Invalidate(ctx context.Context, slugs ...string)
}

type noCache struct{}

func (noCache) BySlug(ctx context.Context, _ string, load func(context.Context) (*domain.Post, error)) (*domain.Post, error) {
	return load(ctx)
}
func (noCache) Invalidate(context.Context, ...string) {}

type TagRefs struct {
	IDs   []string
	Names []string
}

type PostInput struct {
	Title      string
	Content    string
	Excerpt    *string
	Status     domain.PostStatus
	Tags       TagRefs
	CoverImage string
}

// PostPatch nil 表示不修改；Excerpt 传空串恢复自动摘要
type PostPatch struct {
	Title      *string
	Content    *string
	Excerpt    *string
	Status     *domain.PostStatus
	Tags       *TagRefs
	CoverImage *string
}

type PostService struct {
	posts    domain.PostRepository
	comments domain.CommentRepository
	tags     *TagService
	derive   *content.Deriver
	counters *Counters
	cache    PostCache
	r        *Retrier
	log      *zap.Logger
}

func NewPostService(
	posts domain.PostRepository,
	comments domain.CommentRepository,
	tags *TagService,
	derive *content.Deriver,
	counters *Counters,
	cache PostCache,
	r *Retrier,
	l *zap.Logger,
) *PostService {
	if cache == nil {
		cache = noCache{}
	}
	return &PostService{posts: posts, comments: comments, tags: tags, derive: derive, counters: counters, cache: cache, r: r, log: l}
}

type postSlugs struct{ s *PostService }

func (p postSlugs) SlugsWithPrefix(ctx context.Context, base string) ([]string, error) {
	return Get(ctx, p.s.r, "post.slugs", func(ctx context.Context) ([]string, error) {
		return p.s.posts.SlugsWithPrefix(ctx, base)
	})
}

func validatePost(p *domain.Post) error {
	ve := &domain.ValidationError{}
	if n := len([]rune(strings.TrimSpace(p.Title))); n == 0 || n > 200 {
		ve.Fields = append(ve.Fields, domain.FieldError{Field: "title", Message: "title must be between 1 and 200 characters"})
	}
	if strings.TrimSpace(p.Content) == "" {
		ve.Fields = append(ve.Fields, domain.FieldError{Field: "content", Message: "content is required"})
	}
	if !p.Status.Valid() {
		ve.Fields = append(ve.Fields, domain.FieldError{Field: "status", Message: "status must be draft or published"})
	}
	if len(ve.Fields) > 0 {
		return ve
	}
	return nil
}

func (s *PostService) Create(ctx context.Context, actor domain.Principal, in PostInput) (*domain.Post, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthenticated
	}
	if in.Status == "" {
		in.Status = domain.PostDraft
	}
	p := &domain.Post{
		ID:         utils.NewID(),
		Title:      strings.TrimSpace(in.Title),
		Content:    in.Content,
		AuthorID:   actor.UserID,
		Status:     in.Status,
		CoverImage: in.CoverImage,
	}
	if in.Excerpt != nil && strings.TrimSpace(*in.Excerpt) != "" {
		p.Excerpt, p.ExcerptExplicit = strings.TrimSpace(*in.Excerpt), true
	}
	if err := validatePost(p); err != nil {
		return nil, err
	}
	tagIDs, err := s.tags.Resolve(ctx, in.Tags.IDs, in.Tags.Names)
	if err != nil {
		return nil, err
	}
	p.TagIDs = tagIDs
	s.derive.Apply(p)

	err = withUniqueSlug(ctx, postSlugs{s}, p.Title, "post", "", func(slug string) error {
		p.Slug = slug
		return s.r.Once(ctx, "post.insert", func(ctx context.Context) error { return s.posts.Insert(ctx, p) })
	})
	if err != nil {
		return nil, err
	}
	s.counters.TagDiff(ctx, nil, p.TagIDs)
	s.log.Debug("post created", zap.String("id", p.ID), zap.String("slug", p.Slug))
	return p, nil
}

func (s *PostService) load(ctx context.Context, id string) (*domain.Post, error) {
	return Get(ctx, s.r, "post.find", func(ctx context.Context) (*domain.Post, error) { return s.posts.FindByID(ctx, id) })
}

// editable 只有作者或 admin 可改；看不到的草稿按不存在处理
func (s *PostService) editable(ctx context.Context, actor domain.Principal, id string) (*domain.Post, error) {
	if actor.Anonymous() {
		return nil, domain.ErrUnauthenticated
	}
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !actor.CanModify(p.AuthorID) {
		if p.Status != domain.PostPublished {
			return nil, domain.NotFound("post")
		}
		return nil, domain.ErrForbidden
	}
	return p, nil
}

func (s *PostService) Update(ctx context.Context, actor domain.Principal, id string, in PostPatch) (*domain.Post, error) {
	p, err := s.editable(ctx, actor, id)
	if err != nil {
		return nil, err
	}
	oldSlug, oldTags := p.Slug, p.TagIDs
	titleChanged := false

	if in.Title != nil && strings.TrimSpace(*in.Title) != p.Title {
		p.Title = strings.TrimSpace(*in.Title)
		titleChanged = true
	}
	if in.Content != nil {
		p.Content = *in.Content
	}
	if in.Excerpt != nil {
		ex := strings.TrimSpace(*in.Excerpt)
		p.Excerpt, p.ExcerptExplicit = ex, ex != ""
	}
	if in.Status != nil {
		p.Status = *in.Status
	}
	if in.CoverImage != nil {
		p.CoverImage = *in.CoverImage
	}
	if err := validatePost(p); err != nil {
		return nil, err
	}
	if in.Tags != nil {
		if p.TagIDs, err = s.tags.Resolve(ctx, in.Tags.IDs, in.Tags.Names); err != nil {
			return nil, err
		}
	}
	s.derive.Apply(p)

	save := func(ctx context.Context) error { return s.posts.Update(ctx, p) }
	if titleChanged {
		err = withUniqueSlug(ctx, postSlugs{s}, p.Title, "post", oldSlug, func(slug string) error {
			p.Slug = slug
			return s.r.Do(ctx, "post.update", save)
		})
	} else {
		err = s.r.Do(ctx, "post.update", save)
	}
	if err != nil {
		return nil, err
	}
	s.counters.TagDiff(ctx, oldTags, p.TagIDs)
	s.cache.Invalidate(ctx, oldSlug, p.Slug)
	return p, nil
}

// Delete 先删文章再删评论：文章不在后新评论写不进来，随后的 DeleteByPost 能扫净；标签计数随文章回收
func (s *PostService) Delete(ctx context.Context, actor domain.Principal, id string) error {
	p, err := s.editable(ctx, actor, id)
	if err != nil {
		return err
	}
	if err := s.r.Do(ctx, "post.delete", func(ctx context.Context) error { return s.posts.Delete(ctx, id) }); err != nil {
		return err
	}
	s.counters.TagDiff(ctx, p.TagIDs, nil)
	s.cache.Invalidate(ctx, p.Slug)

	removed, err := Get(ctx, s.r, "comment.delete_by_post", func(ctx context.Context) (int64, error) {
		return s.comments.DeleteByPost(ctx, id)
	})
	if err != nil {
		s.log.Error("post deleted but comments remain", zap.String("id", id), zap.Error(err))
		return err
	}
	s.log.Info("post deleted", zap.String("id", id), zap.String("actor", actor.UserID), zap.Int64("comments", removed))
	return nil
}

func visible(viewer domain.Principal, p *domain.Post) bool {
	return p.Status == domain.PostPublished || viewer.CanModify(p.AuthorID)
}

func (s *PostService) Get(ctx context.Context, viewer domain.Principal, id string) (*domain.Post, error) {
	p, err := s.load(ctx, id)
	if err != nil {
		return nil, err
	}
	if !visible(viewer, p) {
		return nil, domain.NotFound("post")
	}
	return p, nil
}

// View 按 slug 阅读：已发布文章走缓存并累加浏览数；草稿只对作者与 admin 可见且不计数
func (s *PostService) View(ctx context.Context, viewer domain.Principal, slug string) (*domain.Post, error) {
	p, err := s.cache.BySlug(ctx, slug, func(ctx context.Context) (*domain.Post, error) {
		p, err := Get(ctx, s.r, "post.find_by_slug", func(ctx context.Context) (*domain.Post, error) {
			return s.posts.FindBySlug(ctx, slug)
		})
		if err != nil {
			return nil, err
		}
		if p.Status != domain.PostPublished {
			return nil, domain.NotFound("post")
		}
		return p, nil
	})
	if errors.Is(err, domain.ErrNotFound) && !viewer.Anonymous() {
		draft, derr := Get(ctx, s.r, "post.find_by_slug", func(ctx context.Context) (*domain.Post, error) {
			return s.posts.FindBySlug(ctx, slug)
		})
		if derr == nil && visible(viewer, draft) {
			return draft, nil
		}
	}
	if err != nil {
		return nil, err
	}
	s.counters.Post(ctx, p.ID, domain.CounterViews, 1)
	p.ViewCount++
	return p, nil
}

// List 非 admin 只能看已发布文章，以及自己名下的全部文章
func (s *PostService) List(ctx context.Context, viewer domain.Principal, f domain.PostFilter) ([]domain.Post, int64, error) {
	f.Offset, f.Limit = clampPage(f.Offset, f.Limit)
	if f.Status != "" && !f.Status.Valid() {
		return nil, 0, domain.NewValidationError("status", "status must be draft or published")
	}
	own := !viewer.Anonymous() && f.AuthorID == viewer.UserID
	if !viewer.Role.AtLeast(domain.RoleAdmin) && !own {
		f.Status = domain.PostPublished
	}
	var (
		items []domain.Post
		total int64
	)
	err := s.r.Do(ctx, "post.list", func(ctx context.Context) error {
		var err error
		items, total, err = s.posts.List(ctx, f)
		return err
	})
	return items, total, err
}

// Like 点赞是主写本身，失败直接返回
func (s *PostService) Like(ctx context.Context, viewer domain.Principal, id string) (*domain.Post, error) {
	if viewer.Anonymous() {
		return nil, domain.ErrUnauthenticated
	}
	p, err := s.Get(ctx, viewer, id)
	if err != nil {
		return nil, err
	}
	err = s.r.Once(ctx, "post.like", func(ctx context.Context) error {
		return s.posts.AddCounter(ctx, id, domain.CounterLikes, 1)
	})
	if err != nil {
		return nil, err
	}
	p.LikeCount++
	return p, nil
}
