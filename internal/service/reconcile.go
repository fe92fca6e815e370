package service

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"quillpress/internal/domain"
)

var (
	reconcileFixed = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "reconcile_fixed_total", Help: "Denormalized counters corrected by reconciliation"},
		[]string{"entity"},
	)
	reconcileRuns = prometheus.NewCounterVec(
		prometheus.CounterOpts{Name: "reconcile_runs_total", Help: "Reconciliation passes by result"},
		[]string{"result"},
	)
)

func init() { prometheus.MustRegister(reconcileFixed, reconcileRuns) }

var ErrReconcileRunning = errors.New("reconciliation already running")

type ReconcileReport struct {
	PostsScanned int           `json:"postsScanned"`
	PostsFixed   int           `json:"postsFixed"`
	TagsScanned  int           `json:"tagsScanned"`
	TagsFixed    int           `json:"tagsFixed"`
	Took         time.Duration `json:"took"`
}

// Reconciler 从权威子数据重算 post.commentCount 与 tag.postCount 并修正漂移
type Reconciler struct {
	posts    domain.PostRepository
	tags     domain.TagRepository
	comments domain.CommentRepository
	r        *Retrier
	log      *zap.Logger
	pageSize int
	running  sync.Mutex
}

func NewReconciler(posts domain.PostRepository, tags domain.TagRepository, comments domain.CommentRepository, r *Retrier, l *zap.Logger) *Reconciler {
	return &Reconciler{posts: posts, tags: tags, comments: comments, r: r, log: l, pageSize: 100}
}

// Run 同一时间只允许一个 pass
func (rc *Reconciler) Run(ctx context.Context) (ReconcileReport, error) {
	if !rc.running.TryLock() {
		return ReconcileReport{}, ErrReconcileRunning
	}
	defer rc.running.Unlock()

	start := time.Now()
	var rep ReconcileReport
	err := rc.reconcilePosts(ctx, &rep)
	if err == nil {
		err = rc.reconcileTags(ctx, &rep)
	}
	rep.Took = time.Since(start)
	if err != nil {
		reconcileRuns.WithLabelValues("error").Inc()
		rc.log.Error("reconcile failed", zap.Error(err), zap.Any("report", rep))
		return rep, err
	}
	reconcileRuns.WithLabelValues("ok").Inc()
	rc.log.Info("reconcile done",
		zap.Int("posts_scanned", rep.PostsScanned), zap.Int("posts_fixed", rep.PostsFixed),
		zap.Int("tags_scanned", rep.TagsScanned), zap.Int("tags_fixed", rep.TagsFixed),
		zap.Duration("took", rep.Took))
	return rep, nil
}

func (rc *Reconciler) reconcilePosts(ctx context.Context, rep *ReconcileReport) error {
	for offset := 0; ; offset += rc.pageSize {
		var page []domain.Post
		err := rc.r.Do(ctx, "post.list", func(ctx context.Context) error {
			var err error
			page, _, err = rc.posts.List(ctx, domain.PostFilter{Offset: offset, Limit: rc.pageSize})
			return err
		})
		if err != nil {
			return err
		}
		for _, p := range page {
			rep.PostsScanned++
			want, err := Get(ctx, rc.r, "comment.count_top_level", func(ctx context.Context) (int64, error) {
				return rc.comments.CountTopLevel(ctx, p.ID)
			})
			if err != nil {
				return err
			}
			if want == p.CommentCount {
				continue
			}
			err = rc.r.Do(ctx, "post.set_counter", func(ctx context.Context) error {
				return rc.posts.SetCounter(ctx, p.ID, domain.CounterComments, p.CommentCount, want)
			})
			if errors.Is(err, domain.ErrNotFound) {
				continue
			}
			if errors.Is(err, domain.ErrCounterMoved) {
				// 读计数之后有并发写入，留给下一轮
				rc.log.Debug("comment count moved during reconcile", zap.String("post", p.ID))
				continue
			}
			if err != nil {
				return err
			}
			rep.PostsFixed++
			reconcileFixed.WithLabelValues("post").Inc()
			rc.log.Warn("comment count drift fixed", zap.String("post", p.ID), zap.Int64("was", p.CommentCount), zap.Int64("now", want))
		}
		if len(page) < rc.pageSize {
			return nil
		}
	}
}

func (rc *Reconciler) reconcileTags(ctx context.Context, rep *ReconcileReport) error {
	tags, err := Get(ctx, rc.r, "tag.list", func(ctx context.Context) ([]domain.Tag, error) { return rc.tags.List(ctx) })
	if err != nil {
		return err
	}
	for _, t := range tags {
		rep.TagsScanned++
		want, err := Get(ctx, rc.r, "post.count_with_tag", func(ctx context.Context) (int64, error) {
			return rc.posts.CountWithTag(ctx, t.ID)
		})
		if err != nil {
			return err
		}
		if want == t.PostCount {
			continue
		}
		err = rc.r.Do(ctx, "tag.set_post_count", func(ctx context.Context) error {
			return rc.tags.SetPostCount(ctx, t.ID, t.PostCount, want)
		})
		if errors.Is(err, domain.ErrNotFound) {
			continue
		}
		if errors.Is(err, domain.ErrCounterMoved) {
			rc.log.Debug("tag post count moved during reconcile", zap.String("tag", t.ID))
			continue
		}
		if err != nil {
			return err
		}
		rep.TagsFixed++
		reconcileFixed.WithLabelValues("tag").Inc()
		rc.log.Warn("tag post count drift fixed", zap.String("tag", t.ID), zap.Int64("was", t.PostCount), zap.Int64("now", want))
	}
	return nil
}

// cronLogger robfig/cron 的日志接口接到 zap
type cronLogger struct{ s *zap.SugaredLogger }

func (l cronLogger) Info(msg string, kv ...any)             { l.s.Debugw(msg, kv...) }
func (l cronLogger) Error(err error, msg string, kv ...any) { l.s.Errorw(msg, append(kv, "error", err)...) }

// Schedule 按 cron 表达式周期执行，返回已启动的调度器，调用方负责 Stop
func (rc *Reconciler) Schedule(spec string, timeout time.Duration) (*cron.Cron, error) {
	lg := cronLogger{rc.log.Named("cron").Sugar()}
	c := cron.New(cron.WithLogger(lg), cron.WithChain(cron.Recover(lg), cron.SkipIfStillRunning(lg)))
	_, err := c.AddFunc(spec, func() {
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if _, err := rc.Run(ctx); err != nil && !errors.Is(err, ErrReconcileRunning) {
			rc.log.Warn("scheduled reconcile failed", zap.Error(err))
		}
	})
	if err != nil {
		return nil, err
	}
	c.Start()
	return c, nil
}
