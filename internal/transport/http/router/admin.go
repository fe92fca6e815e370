package router

import (
	"github.com/gin-gonic/gin"

	"quillpress/internal/domain"
	"quillpress/internal/transport/http/handler"
	mdw "quillpress/internal/transport/http/middleware"
)

func NewAdminEngine(d Deps) *gin.Engine {
	r := baseEngine(d)

	// 管理端 v1（统一要求 admin 角色，个别动作要求 super_admin）
	admin := r.Group("/admin/v1")
	admin.Use(mdw.AuthJWT(d.Tokens, d.Users, domain.RoleAdmin))

	var reg Registry
	reg.Register(
		handler.NewAdminHandler(d.Users, d.Reconciler),
		handler.NewCommentHandler(d.Comments),
		handler.NewTagHandler(d.Tags),
	)
	reg.MountAdmin(admin)
	return r
}
