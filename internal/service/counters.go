package service

import (
	"context"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"quillpress/internal/domain"
)

var repairNeeded = prometheus.NewCounterVec(
	prometheus.CounterOpts{
		Name: "consistency_repair_needed_total",
		Help: "Denormalized counter updates that failed after their primary write succeeded",
	},
	[]string{"entity", "field"},
)

func init() { prometheus.MustRegister(repairNeeded) }

// Counters 主写成功后的计数副作用：原子增量，失败只记日志和指标，不回滚主写，由对账修复
type Counters struct {
	posts domain.PostRepository
	tags  domain.TagRepository
	r     *Retrier
	log   *zap.Logger
}

func NewCounters(posts domain.PostRepository, tags domain.TagRepository, r *Retrier, l *zap.Logger) *Counters {
	return &Counters{posts: posts, tags: tags, r: r, log: l}
}

func (c *Counters) Post(ctx context.Context, postID string, field domain.PostCounter, delta int64) {
	// 客户端断开不影响已提交主写的副作用
	ctx = context.WithoutCancel(ctx)
	err := c.r.Once(ctx, "post.add_counter", func(ctx context.Context) error {
		return c.posts.AddCounter(ctx, postID, field, delta)
	})
	if err != nil {
		c.repair("post", string(field), postID, delta, err)
	}
}

func (c *Counters) Tag(ctx context.Context, tagID string, delta int64) {
	ctx = context.WithoutCancel(ctx)
	err := c.r.Once(ctx, "tag.add_post_count", func(ctx context.Context) error {
		return c.tags.AddPostCount(ctx, tagID, delta)
	})
	if err != nil {
		c.repair("tag", "post_count", tagID, delta, err)
	}
}

// TagDiff 文章标签集合变化对应的增减
func (c *Counters) TagDiff(ctx context.Context, before, after []string) {
	added, removed := diff(before, after)
	for _, id := range added {
		c.Tag(ctx, id, 1)
	}
	for _, id := range removed {
		c.Tag(ctx, id, -1)
	}
}

func (c *Counters) repair(entity, field, id string, delta int64, err error) {
	repairNeeded.WithLabelValues(entity, field).Inc()
	c.log.Warn("consistency repair needed",
		zap.String("entity", entity),
		zap.String("field", field),
		zap.String("id", id),
		zap.Int64("delta", delta),
		zap.Error(err),
	)
}

func diff(before, after []string) (added, removed []string) {
	old := make(map[string]struct{}, len(before))
	for _, id := range before {
		old[id] = struct{}{}
	}
	cur := make(map[string]struct{}, len(after))
	for _, id := range after {
		cur[id] = struct{}{}
		if _, ok := old[id]; !ok {
			added = append(added, id)
		}
	}
	for _, id := range before {
		if _, ok := cur[id]; !ok {
			removed = append(removed, id)
		}
	}
	return added, removed
}
