package ez

import (
	"github.com/gin-gonic/gin"

	"quillpress/internal/core/auth"
	"quillpress/internal/domain"
)

const (
	keyPrincipal = "principal"
	keyUser      = "user"
)

// SetUser 鉴权中间件写入当前用户（已核对账号状态）
func SetUser(c *gin.Context, u *domain.User) {
	c.Set(keyUser, u)
	c.Set(keyPrincipal, domain.Principal{UserID: u.ID, Role: u.Role})
}

// PrincipalOf 未登录返回零值（匿名）
func PrincipalOf(c *gin.Context) domain.Principal {
	if v, ok := c.Get(keyPrincipal); ok {
		if p, ok := v.(domain.Principal); ok {
			return p
		}
	}
	return domain.Principal{}
}

func UserOf(c *gin.Context) *domain.User {
	if v, ok := c.Get(keyUser); ok {
		if u, ok := v.(*domain.User); ok {
			return u
		}
	}
	return nil
}

// Require 当前调用者至少具备 role
func Require(c *gin.Context, role domain.Role) error {
	return auth.Authorize(PrincipalOf(c).Role, role)
}
