package repo

import (
	"context"
	"time"

	"gorm.io/gorm"

	"quillpress/internal/domain"
)

type PostRepo struct{ db *gorm.DB }

func NewPostRepo(db *gorm.DB) *PostRepo { return &PostRepo{db: db} }

func writeTags(tx *gorm.DB, postID string, tagIDs []string) error {
	if err := tx.Where("post_id = ?", postID).Delete(&PostTagModel{}).Error; err != nil {
		return err
	}
	if len(tagIDs) == 0 {
		return nil
	}
	rows := make([]PostTagModel, 0, len(tagIDs))
	for _, id := range tagIDs {
		rows = append(rows, PostTagModel{PostID: postID, TagID: id})
	}
	return tx.Create(&rows).Error
}

// tagsOf 一次查询装载多篇文章的标签
func (r *PostRepo) tagsOf(ctx context.Context, postIDs []string) (map[string][]string, error) {
	out := make(map[string][]string, len(postIDs))
	if len(postIDs) == 0 {
		return out, nil
	}
	var rows []PostTagModel
	if err := r.db.WithContext(ctx).Where("post_id IN ?", postIDs).Order("tag_id").Find(&rows).Error; err != nil {
		return nil, err
	}
	for _, pt := range rows {
		out[pt.PostID] = append(out[pt.PostID], pt.TagID)
	}
	return out, nil
}

func (r *PostRepo) Insert(ctx context.Context, p *domain.Post) error {
	m := postToModel(p)
	m.ViewCount, m.LikeCount, m.CommentCount = 0, 0, 0
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Create(m).Error; err != nil {
			return err
		}
		return writeTags(tx, p.ID, p.TagIDs)
	})
	if err != nil {
		return dup(err, "post", "slug")
	}
	p.CreatedAt, p.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *PostRepo) first(ctx context.Context, query string, arg any) (*domain.Post, error) {
	var m PostModel
	if err := r.db.WithContext(ctx).First(&m, query, arg).Error; err != nil {
		return nil, translate(err, "post")
	}
	tags, err := r.tagsOf(ctx, []string{m.ID})
	if err != nil {
		return nil, translate(err, "post")
	}
	return postFromModel(&m, tags[m.ID]), nil
}

func (r *PostRepo) FindByID(ctx context.Context, id string) (*domain.Post, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *PostRepo) FindBySlug(ctx context.Context, slug string) (*domain.Post, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *PostRepo) SlugsWithPrefix(ctx context.Context, base string) ([]string, error) {
	var slugs []string
	err := r.db.WithContext(ctx).Model(&PostModel{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Order("slug").Pluck("slug", &slugs).Error
	return slugs, translate(err, "post")
}

// Update 计数列不在更新列表里
func (r *PostRepo) Update(ctx context.Context, p *domain.Post) error {
	p.UpdatedAt = time.Now()
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&PostModel{}).Where("id = ?", p.ID).Updates(map[string]any{
			"title":            p.Title,
			"content":          p.Content,
			"slug":             p.Slug,
			"excerpt":          p.Excerpt,
			"excerpt_explicit": p.ExcerptExplicit,
			"reading_time":     p.ReadingTime,
			"status":           string(p.Status),
			"published_at":     p.PublishedAt,
			"cover_image":      p.CoverImage,
			"updated_at":       p.UpdatedAt,
		})
		if err := mustAffect(res, &PostModel{}, p.ID, "post"); err != nil {
			return err
		}
		return writeTags(tx, p.ID, p.TagIDs)
	})
	return dup(err, "post", "slug")
}

func (r *PostRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("post_id = ?", id).Delete(&PostTagModel{}).Error; err != nil {
			return translate(err, "post")
		}
		res := tx.Where("id = ?", id).Delete(&PostModel{})
		if res.Error != nil {
			return translate(res.Error, "post")
		}
		if res.RowsAffected == 0 {
			return domain.NotFound("post")
		}
		return nil
	})
}

func (r *PostRepo) List(ctx context.Context, f domain.PostFilter) ([]domain.Post, int64, error) {
	tx := r.db.WithContext(ctx).Model(&PostModel{})
	if f.Status != "" {
		tx = tx.Where("status = ?", string(f.Status))
	}
	if f.AuthorID != "" {
		tx = tx.Where("author_id = ?", f.AuthorID)
	}
	if f.TagID != "" {
		tx = tx.Where("id IN (?)", r.db.Model(&PostTagModel{}).Select("post_id").Where("tag_id = ?", f.TagID))
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "post")
	}
	var rows []PostModel
	if err := tx.Offset(f.Offset).Limit(f.Limit).Order("created_at desc, id desc").Find(&rows).Error; err != nil {
		return nil, 0, translate(err, "post")
	}
	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.ID)
	}
	tags, err := r.tagsOf(ctx, ids)
	if err != nil {
		return nil, 0, translate(err, "post")
	}
	out := make([]domain.Post, 0, len(rows))
	for i := range rows {
		out = append(out, *postFromModel(&rows[i], tags[rows[i].ID]))
	}
	return out, total, nil
}

func (r *PostRepo) AddCounter(ctx context.Context, id string, c domain.PostCounter, delta int64) error {
	if !c.Valid() {
		return domain.NewValidationError("counter", "unknown counter "+string(c))
	}
	col := string(c)
	tx := r.db.WithContext(ctx).Model(&PostModel{}).Where("id = ?", id).UpdateColumn(col, counterExpr(col, delta))
	return mustAffect(tx, &PostModel{}, id, "post")
}

func (r *PostRepo) SetCounter(ctx context.Context, id string, c domain.PostCounter, was, value int64) error {
	if !c.Valid() {
		return domain.NewValidationError("counter", "unknown counter "+string(c))
	}
	col := string(c)
	value = max(value, 0)
	if value == was {
		return nil
	}
	tx := r.db.WithContext(ctx).Model(&PostModel{}).Where("id = ? AND "+col+" = ?", id, was).UpdateColumn(col, value)
	return mustSwap(tx, &PostModel{}, id, "post")
}

func (r *PostRepo) CountWithTag(ctx context.Context, tagID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&PostTagModel{}).Where("tag_id = ?", tagID).Count(&n).Error
	return n, translate(err, "post")
}
