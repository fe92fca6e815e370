// Package memory 进程内存储，开发环境与测试使用。
// 所有实体平铺在 map 中，一把锁保证跨实体检查与写入的原子性。
package memory

import (
	"sort"
	"strings"
	"sync"
	"time"

	"quillpress/internal/domain"
)

type Store struct {
	mu sync.RWMutex

	users     map[string]*domain.User
	userEmail map[string]string

	posts    map[string]*domain.Post
	postSlug map[string]string

	tags    map[string]*domain.Tag
	tagName map[string]string
	tagSlug map[string]string

	comments map[string]*domain.Comment
	children map[string][]string // parentID -> 子评论 id，按插入顺序

	now func() time.Time
}

func New() *Store {
	return &Store{
		users:     map[string]*domain.User{},
		userEmail: map[string]string{},
		posts:     map[string]*domain.Post{},
		postSlug:  map[string]string{},
		tags:      map[string]*domain.Tag{},
		tagName:   map[string]string{},
		tagSlug:   map[string]string{},
		comments:  map[string]*domain.Comment{},
		children:  map[string][]string{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (s *Store) Users() *UserRepo       { return &UserRepo{s} }
func (s *Store) Posts() *PostRepo       { return &PostRepo{s} }
func (s *Store) Tags() *TagRepo         { return &TagRepo{s} }
func (s *Store) Comments() *CommentRepo { return &CommentRepo{s} }

func (s *Store) stamp(created, updated *time.Time) {
	t := s.now()
	if created.IsZero() {
		*created = t
	}
	*updated = t
}

// slugsWithPrefix 返回 base 本身以及 base-N 形式的 slug
func slugsWithPrefix(idx map[string]string, base string) []string {
	var out []string
	for s := range idx {
		if s == base || strings.HasPrefix(s, base+"-") {
			out = append(out, s)
		}
	}
	sort.Strings(out)
	return out
}

func page[T any](items []T, offset, limit int) []T {
	if offset < 0 {
		offset = 0
	}
	if offset >= len(items) {
		return []T{}
	}
	end := len(items)
	if limit > 0 && offset+limit < end {
		end = offset + limit
	}
	return items[offset:end]
}

func floorAdd(v, delta int64) int64 {
	if v+delta < 0 {
		return 0
	}
	return v + delta
}
