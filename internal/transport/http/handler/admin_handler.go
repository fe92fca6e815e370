package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quillpress/internal/domain"
	"quillpress/internal/service"
	"quillpress/internal/transport/http/ez"
)

// AdminHandler 账号管理与运维接口
type AdminHandler struct {
	users      *service.UserService
	reconciler *service.Reconciler
}

func NewAdminHandler(users *service.UserService, reconciler *service.Reconciler) *AdminHandler {
	return &AdminHandler{users: users, reconciler: reconciler}
}

func (h *AdminHandler) Priority() int { return 10 }

type userListQ struct {
	pageQ
	Q string `form:"q" binding:"omitempty,max=128"`
}

type roleIn struct {
	Role domain.Role `json:"role" binding:"required"`
}

func (h *AdminHandler) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin)

	// --- GET /admin/v1/users  用户列表（按 email/name 模糊搜） ---
	ez.RegisterAction(e, ez.Action[userListQ, listOut[domain.User]]{
		Method:  http.MethodGet,
		Path:    "/users",
		Binder:  ez.BindQuery,
		MinRole: domain.RoleAdmin,
		Handler: func(c *gin.Context, in *userListQ) (listOut[domain.User], error) {
			items, total, err := h.users.List(c.Request.Context(), domain.UserFilter{Q: in.Q, Offset: in.Offset, Limit: in.Limit})
			return list(items, total), err
		},
	})

	// --- PATCH /admin/v1/users/:id/role ---
	ez.RegisterAction(e, ez.Action[roleIn, *domain.User]{
		Method:  http.MethodPatch,
		Path:    "/users/:id/role",
		Binder:  ez.BindJSON,
		MinRole: domain.RoleSuperAdmin,
		Handler: func(c *gin.Context, in *roleIn) (*domain.User, error) {
			return h.users.ChangeRole(c.Request.Context(), ez.UserOf(c), param(c, "id"), in.Role)
		},
	})

	// --- POST /admin/v1/users/:id/deactivate | activate ---
	for path, active := range map[string]bool{"/users/:id/deactivate": false, "/users/:id/activate": true} {
		ez.RegisterAction(e, ez.Action[struct{}, *domain.User]{
			Method:  http.MethodPost,
			Path:    path,
			Binder:  ez.BindNone,
			MinRole: domain.RoleAdmin,
			Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
				return h.users.SetActive(c.Request.Context(), ez.UserOf(c), param(c, "id"), active)
			},
		})
	}

	// --- POST /admin/v1/maintenance/reconcile  手动触发计数校正 ---
	ez.RegisterAction(e, ez.Action[struct{}, service.ReconcileReport]{
		Method:  http.MethodPost,
		Path:    "/maintenance/reconcile",
		Binder:  ez.BindNone,
		MinRole: domain.RoleSuperAdmin,
		Handler: func(c *gin.Context, _ *struct{}) (service.ReconcileReport, error) {
			return h.reconciler.Run(c.Request.Context())
		},
	})
}
