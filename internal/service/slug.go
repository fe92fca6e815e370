package service

import (
	"context"
	"errors"

	"quillpress/internal/content"
	"quillpress/internal/domain"
)

const maxSlugAttempts = 8

// withUniqueSlug 计算最小可用 slug 并写入；存储报 slug 冲突（并发抢占）时重新计算，不覆盖
func withUniqueSlug(ctx context.Context, lister content.SlugLister, title, fallback, own string, write func(slug string) error) error {
	for i := 0; i < maxSlugAttempts; i++ {
		slug, err := content.UniqueSlug(ctx, lister, title, fallback, own)
		if err != nil {
			return err
		}
		err = write(slug)
		var dup *domain.DuplicateKeyError
		if errors.As(err, &dup) && dup.Field == "slug" {
			continue
		}
		return err
	}
	return &domain.ConflictError{Field: "slug", Msg: "could not allocate a unique slug, please retry"}
}
