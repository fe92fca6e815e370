package router

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"quillpress/internal/core/auth"
	"quillpress/internal/core/config"
	"quillpress/internal/core/server"
	"quillpress/internal/service"
	mdw "quillpress/internal/transport/http/middleware"
	"quillpress/internal/upload"
)

// Deps 两个引擎共用的依赖
type Deps struct {
	Log        *zap.Logger
	Limits     config.Limits
	Tokens     *auth.TokenService
	Users      *service.UserService
	Posts      *service.PostService
	Tags       *service.TagService
	Comments   *service.CommentService
	Reconciler *service.Reconciler
	Uploads    *upload.Store
}

// baseEngine 公共中间件链 + /health + /metrics
func baseEngine(d Deps) *gin.Engine {
	r := server.NewRouter(d.Log)

	r.Use(
		mdw.RequestID(),
		mdw.Metrics(),
		mdw.AccessLog(d.Log),
		mdw.Recovery(d.Log),
		mdw.RateLimit(rate.Limit(d.Limits.RPS), d.Limits.Burst),
		mdw.ConcurrencyLimit(d.Limits.MaxConcurrency),
		mdw.MaxBodyBytes(d.Limits.MaxBodyBytes),
		mdw.Timeout(time.Duration(d.Limits.TimeoutSec)*time.Second),
	)

	// 健康检查
	r.GET("/health", func(c *gin.Context) { c.JSON(http.StatusOK, gin.H{"ok": 1}) })
	r.GET("/metrics", mdw.MetricsHandler())
	return r
}
