package repo

import (
	"time"

	"gorm.io/gorm"

	"quillpress/internal/domain"
)

type UserModel struct {
	ID           string      `gorm:"primaryKey;type:varchar(32)"`
	Email        string      `gorm:"uniqueIndex;size:255;not null"`
	Name         string      `gorm:"size:64;not null"`
	PasswordHash string      `gorm:"size:255;not null"`
	Role         domain.Role `gorm:"type:varchar(16);not null"`
	Active       bool        `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (UserModel) TableName() string { return "users" }

type PostModel struct {
	ID              string `gorm:"primaryKey;type:varchar(32)"`
	Title           string `gorm:"size:200;not null"`
	Content         string `gorm:"type:text;not null"`
	Slug            string `gorm:"uniqueIndex;size:255;not null"`
	Excerpt         string `gorm:"type:text"`
	ExcerptExplicit bool   `gorm:"not null"`
	ReadingTime     int    `gorm:"not null"`
	AuthorID        string `gorm:"type:varchar(32);index;not null"`
	Status          string `gorm:"size:16;index;not null"`
	PublishedAt     *time.Time
	CoverImage      string `gorm:"size:512"`
	ViewCount       int64  `gorm:"not null"`
	LikeCount       int64  `gorm:"not null"`
	CommentCount    int64  `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (PostModel) TableName() string { return "posts" }

// PostTagModel 文章与标签多对多
type PostTagModel struct {
	PostID string `gorm:"primaryKey;type:varchar(32)"`
	TagID  string `gorm:"primaryKey;type:varchar(32);index"`
}

func (PostTagModel) TableName() string { return "post_tags" }

type TagModel struct {
	ID   string `gorm:"primaryKey;type:varchar(32)"`
	Name string `gorm:"size:64;not null"`
	// NameKey 小写名，唯一性大小写不敏感
	NameKey   string `gorm:"uniqueIndex;size:64;not null"`
	Slug      string `gorm:"uniqueIndex;size:128;not null"`
	PostCount int64  `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (TagModel) TableName() string { return "tags" }

type CommentModel struct {
	ID        string  `gorm:"primaryKey;type:varchar(32)"`
	PostID    string  `gorm:"type:varchar(32);index;not null"`
	AuthorID  string  `gorm:"type:varchar(32);not null"`
	ParentID  *string `gorm:"type:varchar(32);index"`
	Content   string  `gorm:"type:text;not null"`
	Status    string  `gorm:"size:16;index;not null"`
	LikeCount int64   `gorm:"not null"`

	CreatedAt time.Time `gorm:"autoCreateTime;index"`
	UpdatedAt time.Time `gorm:"autoUpdateTime"`
}

func (CommentModel) TableName() string { return "comments" }

// AutoMigrate 建表与索引
func AutoMigrate(db *gorm.DB) error {
	return db.AutoMigrate(&UserModel{}, &PostModel{}, &PostTagModel{}, &TagModel{}, &CommentModel{})
}

func userFromModel(m *UserModel) *domain.User {
	return &domain.User{
		ID:           m.ID,
		Name:         m.Name,
		Email:        m.Email,
		PasswordHash: m.PasswordHash,
		Role:         m.Role,
		Active:       m.Active,
		CreatedAt:    m.CreatedAt,
		UpdatedAt:    m.UpdatedAt,
	}
}

func userToModel(u *domain.User) *UserModel {
	return &UserModel{
		ID:           u.ID,
		Email:        u.Email,
		Name:         u.Name,
		PasswordHash: u.PasswordHash,
		Role:         u.Role,
		Active:       u.Active,
		CreatedAt:    u.CreatedAt,
		UpdatedAt:    u.UpdatedAt,
	}
}

func postFromModel(m *PostModel, tagIDs []string) *domain.Post {
	if tagIDs == nil {
		tagIDs = []string{}
	}
	return &domain.Post{
		ID:              m.ID,
		Title:           m.Title,
		Content:         m.Content,
		Slug:            m.Slug,
		Excerpt:         m.Excerpt,
		ExcerptExplicit: m.ExcerptExplicit,
		ReadingTime:     m.ReadingTime,
		AuthorID:        m.AuthorID,
		TagIDs:          tagIDs,
		Status:          domain.PostStatus(m.Status),
		PublishedAt:     m.PublishedAt,
		CoverImage:      m.CoverImage,
		ViewCount:       m.ViewCount,
		LikeCount:       m.LikeCount,
		CommentCount:    m.CommentCount,
		CreatedAt:       m.CreatedAt,
		UpdatedAt:       m.UpdatedAt,
	}
}

func postToModel(p *domain.Post) *PostModel {
	return &PostModel{
		ID:              p.ID,
		Title:           p.Title,
		Content:         p.Content,
		Slug:            p.Slug,
		Excerpt:         p.Excerpt,
		ExcerptExplicit: p.ExcerptExplicit,
		ReadingTime:     p.ReadingTime,
		AuthorID:        p.AuthorID,
		Status:          string(p.Status),
		PublishedAt:     p.PublishedAt,
		CoverImage:      p.CoverImage,
		ViewCount:       p.ViewCount,
		LikeCount:       p.LikeCount,
		CommentCount:    p.CommentCount,
		CreatedAt:       p.CreatedAt,
		UpdatedAt:       p.UpdatedAt,
	}
}

func tagFromModel(m *TagModel) *domain.Tag {
	return &domain.Tag{ID: m.ID, Name: m.Name, Slug: m.Slug, PostCount: m.PostCount, CreatedAt: m.CreatedAt, UpdatedAt: m.UpdatedAt}
}

func commentFromModel(m *CommentModel) *domain.Comment {
	return &domain.Comment{
		ID:        m.ID,
		PostID:    m.PostID,
		AuthorID:  m.AuthorID,
		ParentID:  m.ParentID,
		Content:   m.Content,
		Status:    domain.CommentStatus(m.Status),
		LikeCount: m.LikeCount,
		Replies:   []string{},
		CreatedAt: m.CreatedAt,
		UpdatedAt: m.UpdatedAt,
	}
}
