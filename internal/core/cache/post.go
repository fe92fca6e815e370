package cache

import (
	"context"
	"encoding/json"
	"time"

	"go.uber.org/zap"

	"quillpress/internal/domain"
)

const postSlugPrefix = "post:slug:"

// getJSON 值按 JSON 存；缓存内容无法解码时删掉该 key 直接回源
func getJSON[T any](ctx context.Context, c *Cache, key string, ttl time.Duration, load func(context.Context) (*T, error)) (*T, error) {
	b, err := c.GetOrLoad(ctx, key, ttl, func(ctx context.Context) ([]byte, error) {
		v, err := load(ctx)
		if err != nil {
			return nil, err
		}
		return json.Marshal(v)
	})
	if err != nil {
		return nil, err
	}
	out := new(T)
	if err := json.Unmarshal(b, out); err != nil {
		_ = c.Del(ctx, key)
		return load(ctx)
	}
	return out, nil
}

// PostCache 已发布文章按 slug 读缓存；写路径通过 Invalidate 失效
type PostCache struct {
	c   *Cache
	log *zap.Logger
}

func NewPostCache(c *Cache, l *zap.Logger) *PostCache { return &PostCache{c: c, log: l} }

func (p *PostCache) BySlug(ctx context.Context, slug string, load func(context.Context) (*domain.Post, error)) (*domain.Post, error) {
	return getJSON(ctx, p.c, postSlugPrefix+slug, p.c.TTL, load)
}

func (p *PostCache) Invalidate(ctx context.Context, slugs ...string) {
	keys := make([]string, 0, len(slugs))
	for _, s := range slugs {
		if s != "" {
			keys = append(keys, postSlugPrefix+s)
		}
	}
	if err := p.c.Del(ctx, keys...); err != nil {
		// TTL 兜底，旧内容最多存活一个 TTL
		p.log.Warn("post cache invalidate failed", zap.Strings("keys", keys), zap.Error(err))
	}
}
