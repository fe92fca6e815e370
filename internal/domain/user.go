package domain

import (
	"context"
	"strings"
	"time"
)

type User struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	Email        string    `json:"email"`
	PasswordHash string    `json:"-"`
	Role         Role      `json:"role"`
	Active       bool      `json:"active"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// NormalizeEmail 邮箱唯一性大小写不敏感，统一存小写
func NormalizeEmail(email string) string { return strings.ToLower(strings.TrimSpace(email)) }

type UserFilter struct {
	Q      string
	Offset int
	Limit  int
}

// UserPatch 字段级更新，只写非 nil 字段；邮箱不可改
type UserPatch struct {
	Name         *string
	PasswordHash *string
	Role         *Role
	Active       *bool
}

func (p UserPatch) Empty() bool {
	return p.Name == nil && p.PasswordHash == nil && p.Role == nil && p.Active == nil
}

type UserRepository interface {
	Create(ctx context.Context, u *User) error
	FindByID(ctx context.Context, id string) (*User, error)
	FindByEmail(ctx context.Context, email string) (*User, error)
	List(ctx context.Context, f UserFilter) ([]User, int64, error)
	// Patch 只覆盖 p 中给出的列，返回更新后的记录
	Patch(ctx context.Context, id string, p UserPatch) (*User, error)
}
