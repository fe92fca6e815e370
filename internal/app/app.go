// Package app 按配置组装存储、服务与 HTTP 依赖，两个入口共用
package app

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"quillpress/internal/content"
	"quillpress/internal/core/auth"
	"quillpress/internal/core/cache"
	"quillpress/internal/core/config"
	"quillpress/internal/core/database"
	"quillpress/internal/domain"
	"quillpress/internal/repo"
	"quillpress/internal/repo/memory"
	"quillpress/internal/repo/mongostore"
	"quillpress/internal/service"
	"quillpress/internal/transport/http/router"
	"quillpress/internal/upload"
)

// Repos 一种存储实现的四个仓储
type Repos struct {
	Users    domain.UserRepository
	Posts    domain.PostRepository
	Tags     domain.TagRepository
	Comments domain.CommentRepository
}

// App 组装结果；Close 释放连接
type App struct {
	Cfg        *config.Config
	Log        *zap.Logger
	Users      *service.UserService
	Posts      *service.PostService
	Tags       *service.TagService
	Comments   *service.CommentService
	Reconciler *service.Reconciler
	Uploads    *upload.Store
	Tokens     *auth.TokenService

	closers []func() error
}

// OpenRepos 按 db.driver 打开存储
func OpenRepos(ctx context.Context, cfg *config.Config, l *zap.Logger) (Repos, []func() error, error) {
	switch cfg.DB.Driver {
	case "memory":
		s := memory.New()
		l.Warn("using in-memory store, data is lost on restart")
		return Repos{Users: s.Users(), Posts: s.Posts(), Tags: s.Tags(), Comments: s.Comments()}, nil, nil

	case "postgres", "mysql":
		db, err := database.NewGorm(database.Opts{
			Driver:             cfg.DB.Driver,
			DSN:                cfg.DB.DSN,
			Username:           cfg.DB.Username,
			Password:           cfg.DB.Password,
			MaxOpenConns:       cfg.DB.MaxOpenConns,
			MaxIdleConns:       cfg.DB.MaxIdleConns,
			ConnMaxLifetimeMin: cfg.DB.ConnMaxLifetimeMin,
			LogLevel:           cfg.DB.LogLevel,
			Logger:             l,
		})
		if err != nil {
			return Repos{}, nil, fmt.Errorf("open %s: %w", cfg.DB.Driver, err)
		}
		if cfg.DB.AutoMigrate {
			if err := repo.AutoMigrate(db.WithContext(ctx)); err != nil {
				return Repos{}, nil, fmt.Errorf("automigrate: %w", err)
			}
			l.Info("automigrate done")
		}
		sqlDB, err := db.DB()
		if err != nil {
			return Repos{}, nil, err
		}
		return Repos{
			Users:    repo.NewUserRepo(db),
			Posts:    repo.NewPostRepo(db),
			Tags:     repo.NewTagRepo(db),
			Comments: repo.NewCommentRepo(db),
		}, []func() error{sqlDB.Close}, nil

	case "mongo":
		client, mdb, err := database.NewMongo(ctx, database.MongoOpts{
			URI:      cfg.Mongo.URI,
			Database: cfg.Mongo.Database,
			Logger:   l,
		})
		if err != nil {
			return Repos{}, nil, fmt.Errorf("open mongo: %w", err)
		}
		s := mongostore.New(mdb)
		if err := s.EnsureIndexes(ctx); err != nil {
			_ = database.DisconnectMongo(client)
			return Repos{}, nil, fmt.Errorf("mongo indexes: %w", err)
		}
		return Repos{Users: s.Users(), Posts: s.Posts(), Tags: s.Tags(), Comments: s.Comments()},
			[]func() error{func() error { return database.DisconnectMongo(client) }}, nil
	}
	return Repos{}, nil, fmt.Errorf("unsupported db.driver %q", cfg.DB.Driver)
}

// New 打开存储并组装全部服务；redis 不可用时退化为无缓存
func New(ctx context.Context, cfg *config.Config, l *zap.Logger) (*App, error) {
	repos, closers, err := OpenRepos(ctx, cfg, l)
	if err != nil {
		return nil, err
	}
	a := &App{Cfg: cfg, Log: l, closers: closers}

	var pc service.PostCache
	if cfg.Redis.Enabled() {
		c := cache.New(cfg.Redis.Addr, cfg.Redis.Password, cfg.Redis.DB, time.Duration(cfg.Redis.TTLSec)*time.Second)
		if err := c.Ping(ctx); err != nil {
			l.Warn("redis unavailable, post cache disabled", zap.Error(err))
			_ = c.Close()
		} else {
			pc = cache.NewPostCache(c, l)
			a.closers = append(a.closers, c.Close)
		}
	}

	uploads, err := upload.NewStore(upload.Options{
		Dir:          cfg.Upload.Dir,
		PublicPrefix: cfg.Upload.PublicPrefix,
		MaxFileBytes: cfg.Upload.MaxFileBytes,
		MaxFiles:     cfg.Upload.MaxFiles,
	}, l)
	if err != nil {
		a.Close()
		return nil, err
	}
	a.Uploads = uploads

	r := service.NewRetrier(cfg.Store.OpTimeout(), cfg.Store.MaxRetries, cfg.Store.Backoff(), l)
	counters := service.NewCounters(repos.Posts, repos.Tags, r, l)
	a.Tokens = auth.NewTokenService([]byte(cfg.JWT.Secret), cfg.JWT.Issuer, cfg.JWT.TTL())
	a.Users = service.NewUserService(repos.Users, auth.DefaultHasher(), a.Tokens, r, l)
	a.Tags = service.NewTagService(repos.Tags, repos.Posts, r, l)
	a.Posts = service.NewPostService(repos.Posts, repos.Comments, a.Tags,
		content.NewDeriver(content.Options{ExcerptLength: cfg.Content.ExcerptLength, WordsPerMinute: cfg.Content.WordsPerMinute}),
		counters, pc, r, l)
	a.Comments = service.NewCommentService(repos.Comments, repos.Posts, counters,
		service.CommentPolicy{AutoApprove: cfg.Comments.AutoApprove, MaxLength: cfg.Comments.MaxLength}, r, l)
	a.Reconciler = service.NewReconciler(repos.Posts, repos.Tags, repos.Comments, r, l)
	return a, nil
}

// Bootstrap 配置了种子邮箱时确保超级管理员存在
func (a *App) Bootstrap(ctx context.Context) error {
	b := a.Cfg.Bootstrap
	if b.Email == "" {
		return nil
	}
	u, err := a.Users.EnsureSuperAdmin(ctx, service.RegisterInput{Name: b.Name, Email: b.Email, Password: b.Password})
	if err != nil {
		return fmt.Errorf("bootstrap super admin: %w", err)
	}
	a.Log.Info("super admin ready", zap.String("uid", u.ID))
	return nil
}

// Deps 路由层依赖
func (a *App) Deps() router.Deps {
	return router.Deps{
		Log:        a.Log,
		Limits:     a.Cfg.Limits,
		Tokens:     a.Tokens,
		Users:      a.Users,
		Posts:      a.Posts,
		Tags:       a.Tags,
		Comments:   a.Comments,
		Reconciler: a.Reconciler,
		Uploads:    a.Uploads,
	}
}

func (a *App) Close() {
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			a.Log.Warn("close", zap.Error(err))
		}
	}
}
