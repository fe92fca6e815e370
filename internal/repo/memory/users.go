package memory

import (
	"context"
	"sort"
	"strings"

	"quillpress/internal/domain"
)

type UserRepo struct{ s *Store }

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(_ context.Context, u *domain.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	email := domain.NormalizeEmail(u.Email)
	if _, ok := r.s.userEmail[email]; ok {
		return &domain.DuplicateKeyError{Field: "email"}
	}
	u.Email = email
	r.s.stamp(&u.CreatedAt, &u.UpdatedAt)
	cp := *u
	r.s.users[u.ID] = &cp
	r.s.userEmail[email] = u.ID
	return nil
}

func (r *UserRepo) FindByID(_ context.Context, id string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.NotFound("user")
	}
	cp := *u
	return &cp, nil
}

func (r *UserRepo) FindByEmail(_ context.Context, email string) (*domain.User, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	id, ok := r.s.userEmail[domain.NormalizeEmail(email)]
	if !ok {
		return nil, domain.NotFound("user")
	}
	cp := *r.s.users[id]
	return &cp, nil
}

func (r *UserRepo) List(_ context.Context, f domain.UserFilter) ([]domain.User, int64, error) {
	r.s.mu.RLock()
	defer r.s.mu.RUnlock()
	q := strings.ToLower(strings.TrimSpace(f.Q))
	var all []domain.User
	for _, u := range r.s.users {
		if q != "" && !strings.Contains(u.Email, q) && !strings.Contains(strings.ToLower(u.Name), q) {
			continue
		}
		all = append(all, *u)
	}
	sort.Slice(all, func(i, j int) bool { return all[i].CreatedAt.After(all[j].CreatedAt) })
	return page(all, f.Offset, f.Limit), int64(len(all)), nil
}

func (r *UserRepo) Patch(_ context.Context, id string, p domain.UserPatch) (*domain.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()
	u, ok := r.s.users[id]
	if !ok {
		return nil, domain.NotFound("user")
	}
	if p.Name != nil {
		u.Name = *p.Name
	}
	if p.PasswordHash != nil {
		u.PasswordHash = *p.PasswordHash
	}
	if p.Role != nil {
		u.Role = *p.Role
	}
	if p.Active != nil {
		u.Active = *p.Active
	}
	r.s.stamp(&u.CreatedAt, &u.UpdatedAt)
	cp := *u
	return &cp, nil
}
