package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"quillpress/internal/core/auth"
	"quillpress/internal/domain"
	"quillpress/internal/transport/http/ez"
)

// LiveUsers 按 id 取当前有效账号；停用或不存在返回未认证
type LiveUsers interface {
	Live(ctx context.Context, uid string) (*domain.User, error)
}

func bearer(c *gin.Context) (string, bool) {
	ah := c.GetHeader("Authorization")
	if !strings.HasPrefix(ah, "Bearer ") {
		return "", false
	}
	tok := strings.TrimSpace(strings.TrimPrefix(ah, "Bearer "))
	return tok, tok != ""
}

// AuthJWT 校验 token 后回查账号，角色以账号当前记录为准（token 里的角色可能已过期）。
// required 为 RoleNone 时是可选鉴权：无 token 按匿名放行，带了错误 token 仍然拒绝。
func AuthJWT(ts *auth.TokenService, users LiveUsers, required domain.Role) gin.HandlerFunc {
	return func(c *gin.Context) {
		tok, ok := bearer(c)
		if !ok {
			if required == domain.RoleNone {
				c.Next()
				return
			}
			ez.Fail(c, domain.Unauthenticated("missing token"))
			return
		}
		claims, err := ts.Verify(tok)
		if err != nil {
			ez.Fail(c, err)
			return
		}
		u, err := users.Live(c.Request.Context(), claims.UserID())
		if err != nil {
			ez.Fail(c, err)
			return
		}
		if required != domain.RoleNone {
			if err := auth.Authorize(u.Role, required); err != nil {
				ez.Fail(c, err)
				return
			}
		}
		ez.SetUser(c, u)
		c.Next()
	}
}
