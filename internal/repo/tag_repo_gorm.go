package repo

import (
	"context"
	"errors"
	"strings"
	"time"

	"gorm.io/gorm"

	"quillpress/internal/domain"
)

type TagRepo struct{ db *gorm.DB }

func NewTagRepo(db *gorm.DB) *TagRepo { return &TagRepo{db: db} }

func nameKey(name string) string { return strings.ToLower(strings.TrimSpace(name)) }

// dupField 冲突后回查是 name 还是 slug
func (r *TagRepo) dupField(ctx context.Context, t *domain.Tag, err error) error {
	if !errors.Is(err, gorm.ErrDuplicatedKey) {
		return translate(err, "tag")
	}
	var n int64
	r.db.WithContext(ctx).Model(&TagModel{}).Where("name_key = ? AND id <> ?", nameKey(t.Name), t.ID).Count(&n)
	if n > 0 {
		return &domain.DuplicateKeyError{Field: "name", Err: err}
	}
	return &domain.DuplicateKeyError{Field: "slug", Err: err}
}

func (r *TagRepo) Insert(ctx context.Context, t *domain.Tag) error {
	m := &TagModel{ID: t.ID, Name: t.Name, NameKey: nameKey(t.Name), Slug: t.Slug}
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return r.dupField(ctx, t, err)
	}
	t.PostCount, t.CreatedAt, t.UpdatedAt = 0, m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *TagRepo) first(ctx context.Context, query string, arg any) (*domain.Tag, error) {
	var m TagModel
	if err := r.db.WithContext(ctx).First(&m, query, arg).Error; err != nil {
		return nil, translate(err, "tag")
	}
	return tagFromModel(&m), nil
}

func (r *TagRepo) FindByID(ctx context.Context, id string) (*domain.Tag, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *TagRepo) FindBySlug(ctx context.Context, slug string) (*domain.Tag, error) {
	return r.first(ctx, "slug = ?", slug)
}

func (r *TagRepo) FindByName(ctx context.Context, name string) (*domain.Tag, error) {
	return r.first(ctx, "name_key = ?", nameKey(name))
}

func (r *TagRepo) SlugsWithPrefix(ctx context.Context, base string) ([]string, error) {
	var slugs []string
	err := r.db.WithContext(ctx).Model(&TagModel{}).
		Where("slug = ? OR slug LIKE ?", base, base+"-%").
		Order("slug").Pluck("slug", &slugs).Error
	return slugs, translate(err, "tag")
}

func (r *TagRepo) Update(ctx context.Context, t *domain.Tag) error {
	t.UpdatedAt = time.Now()
	tx := r.db.WithContext(ctx).Model(&TagModel{}).Where("id = ?", t.ID).Updates(map[string]any{
		"name":       t.Name,
		"name_key":   nameKey(t.Name),
		"slug":       t.Slug,
		"updated_at": t.UpdatedAt,
	})
	if tx.Error != nil {
		return r.dupField(ctx, t, tx.Error)
	}
	return mustAffect(tx, &TagModel{}, t.ID, "tag")
}

func (r *TagRepo) Delete(ctx context.Context, id string) error {
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("tag_id = ?", id).Delete(&PostTagModel{}).Error; err != nil {
			return translate(err, "tag")
		}
		res := tx.Where("id = ?", id).Delete(&TagModel{})
		if res.Error != nil {
			return translate(res.Error, "tag")
		}
		if res.RowsAffected == 0 {
			return domain.NotFound("tag")
		}
		return nil
	})
}

func (r *TagRepo) List(ctx context.Context) ([]domain.Tag, error) {
	var rows []TagModel
	if err := r.db.WithContext(ctx).Order("name_key").Find(&rows).Error; err != nil {
		return nil, translate(err, "tag")
	}
	out := make([]domain.Tag, 0, len(rows))
	for i := range rows {
		out = append(out, *tagFromModel(&rows[i]))
	}
	return out, nil
}

func (r *TagRepo) AddPostCount(ctx context.Context, id string, delta int64) error {
	tx := r.db.WithContext(ctx).Model(&TagModel{}).Where("id = ?", id).UpdateColumn("post_count", counterExpr("post_count", delta))
	return mustAffect(tx, &TagModel{}, id, "tag")
}

func (r *TagRepo) SetPostCount(ctx context.Context, id string, was, value int64) error {
	value = max(value, 0)
	if value == was {
		return nil
	}
	tx := r.db.WithContext(ctx).Model(&TagModel{}).Where("id = ? AND post_count = ?", id, was).UpdateColumn("post_count", value)
	return mustSwap(tx, &TagModel{}, id, "tag")
}
