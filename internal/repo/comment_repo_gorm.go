package repo

import (
	"context"
	"time"

	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"quillpress/internal/domain"
)

type CommentRepo struct{ db *gorm.DB }

func NewCommentRepo(db *gorm.DB) *CommentRepo { return &CommentRepo{db: db} }

// withReplies 一次查询填充直接子评论 id
func (r *CommentRepo) withReplies(ctx context.Context, rows []CommentModel) ([]domain.Comment, error) {
	out := make([]domain.Comment, 0, len(rows))
	if len(rows) == 0 {
		return out, nil
	}
	ids := make([]string, 0, len(rows))
	for _, m := range rows {
		ids = append(ids, m.ID)
	}
	var kids []CommentModel
	err := r.db.WithContext(ctx).Select("id", "parent_id").
		Where("parent_id IN ?", ids).Order("created_at, id").Find(&kids).Error
	if err != nil {
		return nil, err
	}
	replies := make(map[string][]string, len(rows))
	for _, k := range kids {
		replies[*k.ParentID] = append(replies[*k.ParentID], k.ID)
	}
	for i := range rows {
		c := commentFromModel(&rows[i])
		if ids := replies[c.ID]; ids != nil {
			c.Replies = ids
		}
		out = append(out, *c)
	}
	return out, nil
}

// Create 事务内共享锁住文章与父评论，与并发删除串行化
func (r *CommentRepo) Create(ctx context.Context, c *domain.Comment) error {
	m := &CommentModel{
		ID:       c.ID,
		PostID:   c.PostID,
		AuthorID: c.AuthorID,
		ParentID: c.ParentID,
		Content:  c.Content,
		Status:   string(c.Status),
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		share := tx.Clauses(clause.Locking{Strength: "SHARE"})
		var post PostModel
		if err := share.Select("id").First(&post, "id = ?", c.PostID).Error; err != nil {
			return translate(err, "post")
		}
		if c.ParentID != nil {
			var parent CommentModel
			err := share.Select("id", "post_id").First(&parent, "id = ? AND post_id = ?", *c.ParentID, c.PostID).Error
			if err != nil {
				return translate(err, "parent comment")
			}
		}
		return tx.Create(m).Error
	})
	if err != nil {
		return translate(err, "comment")
	}
	c.CreatedAt, c.UpdatedAt, c.Replies = m.CreatedAt, m.UpdatedAt, []string{}
	return nil
}

func (r *CommentRepo) FindByID(ctx context.Context, id string) (*domain.Comment, error) {
	var m CommentModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err, "comment")
	}
	out, err := r.withReplies(ctx, []CommentModel{m})
	if err != nil {
		return nil, translate(err, "comment")
	}
	return &out[0], nil
}

func statusStrings(ss []domain.CommentStatus) []string {
	out := make([]string, 0, len(ss))
	for _, s := range ss {
		out = append(out, string(s))
	}
	return out
}

func (r *CommentRepo) ListByPost(ctx context.Context, postID string, statuses []domain.CommentStatus) ([]domain.Comment, error) {
	tx := r.db.WithContext(ctx).Where("post_id = ?", postID)
	if len(statuses) > 0 {
		tx = tx.Where("status IN ?", statusStrings(statuses))
	}
	var rows []CommentModel
	if err := tx.Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, translate(err, "comment")
	}
	out, err := r.withReplies(ctx, rows)
	return out, translate(err, "comment")
}

func (r *CommentRepo) Children(ctx context.Context, parentID string) ([]domain.Comment, error) {
	var rows []CommentModel
	if err := r.db.WithContext(ctx).Where("parent_id = ?", parentID).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, translate(err, "comment")
	}
	out, err := r.withReplies(ctx, rows)
	return out, translate(err, "comment")
}

func (r *CommentRepo) ListByStatus(ctx context.Context, status domain.CommentStatus, offset, limit int) ([]domain.Comment, int64, error) {
	tx := r.db.WithContext(ctx).Model(&CommentModel{}).Where("status = ?", string(status))
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "comment")
	}
	var rows []CommentModel
	if err := tx.Offset(offset).Limit(limit).Order("created_at, id").Find(&rows).Error; err != nil {
		return nil, 0, translate(err, "comment")
	}
	out, err := r.withReplies(ctx, rows)
	return out, total, translate(err, "comment")
}

// Transition 条件更新；未命中时区分不存在与状态不符
func (r *CommentRepo) Transition(ctx context.Context, id string, from []domain.CommentStatus, to domain.CommentStatus) error {
	res := r.db.WithContext(ctx).Model(&CommentModel{}).
		Where("id = ? AND status IN ?", id, statusStrings(from)).
		Updates(map[string]any{"status": string(to), "updated_at": time.Now()})
	if res.Error != nil {
		return translate(res.Error, "comment")
	}
	if res.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := r.db.WithContext(ctx).Model(&CommentModel{}).Where("id = ?", id).Count(&n).Error; err != nil {
		return translate(err, "comment")
	}
	if n == 0 {
		return domain.NotFound("comment")
	}
	return domain.ErrInvalidTransition
}

// DeleteTree 逐层锁住并收集后代，再一次删除
func (r *CommentRepo) DeleteTree(ctx context.Context, rootID string) (*domain.Comment, int, error) {
	var (
		root *domain.Comment
		n    int
	)
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		lock := tx.Clauses(clause.Locking{Strength: "UPDATE"})
		var m CommentModel
		if err := lock.First(&m, "id = ?", rootID).Error; err != nil {
			return translate(err, "comment")
		}
		root = commentFromModel(&m)

		all := []string{rootID}
		frontier := []string{rootID}
		for len(frontier) > 0 {
			var next []string
			if err := lock.Model(&CommentModel{}).Where("parent_id IN ?", frontier).Pluck("id", &next).Error; err != nil {
				return err
			}
			all = append(all, next...)
			frontier = next
		}
		res := tx.Where("id IN ?", all).Delete(&CommentModel{})
		if res.Error != nil {
			return res.Error
		}
		n = int(res.RowsAffected)
		return nil
	})
	if err != nil {
		return nil, 0, translate(err, "comment")
	}
	return root, n, nil
}

func (r *CommentRepo) DeleteByPost(ctx context.Context, postID string) (int64, error) {
	res := r.db.WithContext(ctx).Where("post_id = ?", postID).Delete(&CommentModel{})
	return res.RowsAffected, translate(res.Error, "comment")
}

func (r *CommentRepo) AddLikes(ctx context.Context, id string, delta int64) error {
	tx := r.db.WithContext(ctx).Model(&CommentModel{}).Where("id = ?", id).UpdateColumn("like_count", counterExpr("like_count", delta))
	return mustAffect(tx, &CommentModel{}, id, "comment")
}

func (r *CommentRepo) CountTopLevel(ctx context.Context, postID string) (int64, error) {
	var n int64
	err := r.db.WithContext(ctx).Model(&CommentModel{}).Where("post_id = ? AND parent_id IS NULL", postID).Count(&n).Error
	return n, translate(err, "comment")
}
