package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"quillpress/internal/core/auth"
	"quillpress/internal/domain"
	"quillpress/pkg/utils"
)

const msgEmailTaken = "User with this email already exists"

var errInvalidCredentials = domain.Unauthenticated("invalid email or password")

type RegisterInput struct {
	Name     string
	Email    string
	Password string
}

// ProfilePatch nil 表示不修改
type ProfilePatch struct {
	Name     *string
	Password *string
}

type AuthResult struct {
	Token     string       `json:"token"`
	ExpiresAt time.Time    `json:"expiresAt"`
	User      *domain.User `json:"user"`
}

type UserService struct {
	users  domain.UserRepository
	hasher *auth.PasswordHasher
	tokens *auth.TokenService
	r      *Retrier
	log    *zap.Logger
}

func NewUserService(users domain.UserRepository, hasher *auth.PasswordHasher, tokens *auth.TokenService, r *Retrier, l *zap.Logger) *UserService {
	return &UserService{users: users, hasher: hasher, tokens: tokens, r: r, log: l}
}

// 服务层自己的校验器：引导账号等不经过 HTTP 绑定的入口也走同一套规则
var validate = validator.New()

// checkVar 单字段规则；字符串长度按字符数计
func checkVar(field string, v any, tag, msg string) error {
	if err := validate.Var(v, tag); err != nil {
		return domain.NewValidationError(field, msg)
	}
	return nil
}

func validatePassword(pw string) error {
	if len(pw) > auth.MaxPasswordLen {
		return domain.NewValidationError("password", auth.ErrPasswordTooLong.Error())
	}
	return checkVar("password", pw, "min=8", "password must be at least 8 characters")
}

func validateName(name string) error {
	return checkVar("name", name, "min=1,max=64", "name must be between 1 and 64 characters")
}

func validateEmail(email string) error {
	return checkVar("email", email, "required,email,max=254", "email is not a valid address")
}

func (s *UserService) Register(ctx context.Context, in RegisterInput) (*AuthResult, error) {
	u, err := s.create(ctx, in, domain.RoleMember)
	if err != nil {
		return nil, err
	}
	return s.issue(u)
}

func (s *UserService) create(ctx context.Context, in RegisterInput, role domain.Role) (*domain.User, error) {
	name := strings.TrimSpace(in.Name)
	email := domain.NormalizeEmail(in.Email)
	if err := validateName(name); err != nil {
		return nil, err
	}
	if err := validateEmail(email); err != nil {
		return nil, err
	}
	if err := validatePassword(in.Password); err != nil {
		return nil, err
	}

	hash, err := s.hasher.Hash(in.Password)
	if err != nil {
		return nil, err
	}
	u := &domain.User{
		ID:           utils.NewID(),
		Name:         name,
		Email:        email,
		PasswordHash: hash,
		Role:         role,
		Active:       true,
	}
	err = s.r.Once(ctx, "user.create", func(ctx context.Context) error { return s.users.Create(ctx, u) })
	if errors.Is(err, domain.ErrDuplicateKey) {
		return nil, &domain.ConflictError{Field: "email", Msg: msgEmailTaken}
	}
	if err != nil {
		return nil, err
	}
	return u, nil
}

func (s *UserService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	u, err := Get(ctx, s.r, "user.find_by_email", func(ctx context.Context) (*domain.User, error) {
		return s.users.FindByEmail(ctx, email)
	})
	if errors.Is(err, domain.ErrNotFound) {
		return nil, errInvalidCredentials
	}
	if err != nil {
		return nil, err
	}
	if !s.hasher.Verify(password, u.PasswordHash) {
		return nil, errInvalidCredentials
	}
	if !u.Active {
		return nil, domain.Forbidden("account is deactivated")
	}
	return s.issue(u)
}

func (s *UserService) issue(u *domain.User) (*AuthResult, error) {
	exp := time.Now().Add(s.tokens.TTL())
	tok, err := s.tokens.IssueUntil(u.ID, u.Role, exp)
	if err != nil {
		return nil, err
	}
	return &AuthResult{Token: tok, ExpiresAt: exp, User: u}, nil
}

func (s *UserService) Get(ctx context.Context, id string) (*domain.User, error) {
	return Get(ctx, s.r, "user.find", func(ctx context.Context) (*domain.User, error) {
		return s.users.FindByID(ctx, id)
	})
}

// Live 按 token 中的 uid 取当前用户记录，停用账号视为未认证
func (s *UserService) Live(ctx context.Context, uid string) (*domain.User, error) {
	u, err := s.Get(ctx, uid)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.ErrUnauthenticated
	}
	if err != nil {
		return nil, err
	}
	if !u.Active {
		return nil, domain.Unauthenticated("account is deactivated")
	}
	return u, nil
}

// UpdateProfile 只有提交了新密码才重新哈希；只写提交的字段
func (s *UserService) UpdateProfile(ctx context.Context, uid string, p ProfilePatch) (*domain.User, error) {
	var patch domain.UserPatch
	if p.Name != nil {
		name := strings.TrimSpace(*p.Name)
		if err := validateName(name); err != nil {
			return nil, err
		}
		patch.Name = &name
	}
	if p.Password != nil {
		if err := validatePassword(*p.Password); err != nil {
			return nil, err
		}
		hash, err := s.hasher.Hash(*p.Password)
		if err != nil {
			return nil, err
		}
		patch.PasswordHash = &hash
	}
	if patch.Empty() {
		return s.Get(ctx, uid)
	}
	return s.patch(ctx, uid, patch)
}

// patch 字段级写入，重复执行结果相同，可以重试
func (s *UserService) patch(ctx context.Context, id string, p domain.UserPatch) (*domain.User, error) {
	return Get(ctx, s.r, "user.patch", func(ctx context.Context) (*domain.User, error) {
		return s.users.Patch(ctx, id, p)
	})
}

func (s *UserService) List(ctx context.Context, f domain.UserFilter) ([]domain.User, int64, error) {
	f.Offset, f.Limit = clampPage(f.Offset, f.Limit)
	var (
		items []domain.User
		total int64
	)
	err := s.r.Do(ctx, "user.list", func(ctx context.Context) error {
		var err error
		items, total, err = s.users.List(ctx, f)
		return err
	})
	return items, total, err
}

// ChangeRole 仅 super_admin；不能修改自己的角色
func (s *UserService) ChangeRole(ctx context.Context, actor *domain.User, targetID string, role domain.Role) (*domain.User, error) {
	if err := auth.Authorize(actor.Role, domain.RoleSuperAdmin); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, domain.NewValidationError("role", "role must be one of member, admin, super_admin")
	}
	if actor.ID == targetID {
		return nil, domain.NewValidationError("id", "cannot change your own role")
	}
	u, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if u.Role == role {
		return u, nil
	}
	old := u.Role
	if u, err = s.patch(ctx, targetID, domain.UserPatch{Role: &role}); err != nil {
		return nil, err
	}
	s.log.Info("user role changed",
		zap.String("actor", actor.ID), zap.String("user", u.ID),
		zap.Stringer("from", old), zap.Stringer("to", role))
	return u, nil
}

// SetActive admin 起；只能操作严格低于自己的角色（super_admin 除外），不能停用自己
func (s *UserService) SetActive(ctx context.Context, actor *domain.User, targetID string, active bool) (*domain.User, error) {
	if err := auth.Authorize(actor.Role, domain.RoleAdmin); err != nil {
		return nil, err
	}
	if actor.ID == targetID {
		return nil, domain.NewValidationError("id", "cannot change your own activation")
	}
	u, err := s.Get(ctx, targetID)
	if err != nil {
		return nil, err
	}
	if !auth.CanManage(actor.Role, u.Role) {
		return nil, domain.ErrForbidden
	}
	if u.Active == active {
		return u, nil
	}
	if u, err = s.patch(ctx, targetID, domain.UserPatch{Active: &active}); err != nil {
		return nil, err
	}
	s.log.Info("user activation changed",
		zap.String("actor", actor.ID), zap.String("user", u.ID), zap.Bool("active", active))
	return u, nil
}

// EnsureSuperAdmin 启动时种子账号：已存在则只保证角色与激活状态
func (s *UserService) EnsureSuperAdmin(ctx context.Context, in RegisterInput) (*domain.User, error) {
	u, err := s.users.FindByEmail(ctx, in.Email)
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return s.create(ctx, in, domain.RoleSuperAdmin)
	case err != nil:
		return nil, err
	}
	if u.Role == domain.RoleSuperAdmin && u.Active {
		return u, nil
	}
	role, active := domain.RoleSuperAdmin, true
	return s.patch(ctx, u.ID, domain.UserPatch{Role: &role, Active: &active})
}

func clampPage(offset, limit int) (int, int) {
	if offset < 0 {
		offset = 0
	}
	if limit <= 0 || limit > 100 {
		limit = 20
	}
	return offset, limit
}
