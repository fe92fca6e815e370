package router

import (
	"time"

	"github.com/gin-gonic/gin"

	"quillpress/internal/domain"
	"quillpress/internal/transport/http/handler"
	mdw "quillpress/internal/transport/http/middleware"
)

// 登录/注册按 IP 限速，防撞库
const (
	authRPS   = 1
	authBurst = 10
	authIdle  = 10 * time.Minute
)

func NewAPIEngine(d Deps) *gin.Engine {
	r := baseEngine(d)

	uploads := handler.NewUploadHandler(d.Uploads)
	uploads.Static(r)

	// 前缀；可选鉴权，具体动作按 MinRole 再校验
	api := r.Group("/api/v1")
	api.Use(mdw.AuthJWT(d.Tokens, d.Users, domain.RoleNone))

	var reg Registry
	reg.Register(
		handler.NewAuthHandler(d.Users, mdw.RateLimitPerIP(authRPS, authBurst, authIdle)),
		handler.NewPostHandler(d.Posts, d.Comments),
		handler.NewCommentHandler(d.Comments),
		handler.NewTagHandler(d.Tags),
		uploads,
	)
	reg.MountAPI(api)
	return r
}
