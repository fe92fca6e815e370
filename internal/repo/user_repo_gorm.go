package repo

import (
	"context"
	"strings"
	"time"

	"gorm.io/gorm"

	"quillpress/internal/domain"
)

type UserRepo struct{ db *gorm.DB }

func NewUserRepo(db *gorm.DB) *UserRepo { return &UserRepo{db: db} }

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	u.Email = domain.NormalizeEmail(u.Email)
	m := userToModel(u)
	if err := r.db.WithContext(ctx).Create(m).Error; err != nil {
		return dup(err, "user", "email")
	}
	u.CreatedAt, u.UpdatedAt = m.CreatedAt, m.UpdatedAt
	return nil
}

func (r *UserRepo) FindByID(ctx context.Context, id string) (*domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).First(&m, "id = ?", id).Error; err != nil {
		return nil, translate(err, "user")
	}
	return userFromModel(&m), nil
}

func (r *UserRepo) FindByEmail(ctx context.Context, email string) (*domain.User, error) {
	var m UserModel
	if err := r.db.WithContext(ctx).First(&m, "email = ?", domain.NormalizeEmail(email)).Error; err != nil {
		return nil, translate(err, "user")
	}
	return userFromModel(&m), nil
}

func (r *UserRepo) List(ctx context.Context, f domain.UserFilter) ([]domain.User, int64, error) {
	tx := r.db.WithContext(ctx).Model(&UserModel{})
	if q := strings.ToLower(strings.TrimSpace(f.Q)); q != "" {
		like := "%" + q + "%"
		tx = tx.Where("LOWER(name) LIKE ? OR email LIKE ?", like, like)
	}
	var total int64
	if err := tx.Count(&total).Error; err != nil {
		return nil, 0, translate(err, "user")
	}
	var rows []UserModel
	if err := tx.Offset(f.Offset).Limit(f.Limit).Order("created_at desc, id desc").Find(&rows).Error; err != nil {
		return nil, 0, translate(err, "user")
	}
	out := make([]domain.User, 0, len(rows))
	for i := range rows {
		out = append(out, *userFromModel(&rows[i]))
	}
	return out, total, nil
}

// Patch 只更新给出的列，并发的其它字段修改不会被旧值覆盖
func (r *UserRepo) Patch(ctx context.Context, id string, p domain.UserPatch) (*domain.User, error) {
	cols := map[string]any{"updated_at": time.Now()}
	if p.Name != nil {
		cols["name"] = *p.Name
	}
	if p.PasswordHash != nil {
		cols["password_hash"] = *p.PasswordHash
	}
	if p.Role != nil {
		cols["role"] = *p.Role
	}
	if p.Active != nil {
		cols["active"] = *p.Active
	}
	tx := r.db.WithContext(ctx).Model(&UserModel{}).Where("id = ?", id).Updates(cols)
	if err := mustAffect(tx, &UserModel{}, id, "user"); err != nil {
		return nil, err
	}
	return r.FindByID(ctx, id)
}
