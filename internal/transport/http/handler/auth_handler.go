package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quillpress/internal/domain"
	"quillpress/internal/service"
	"quillpress/internal/transport/http/ez"
)

// AuthHandler 注册、登录与个人资料
type AuthHandler struct {
	users *service.UserService
	// guard 挂在 /auth 分组上的额外中间件（按 IP 限速）
	guard []gin.HandlerFunc
}

func NewAuthHandler(users *service.UserService, guard ...gin.HandlerFunc) *AuthHandler {
	return &AuthHandler{users: users, guard: guard}
}

func (h *AuthHandler) Priority() int { return 10 }

type registerIn struct {
	Name     string `json:"name" binding:"required,max=64"`
	Email    string `json:"email" binding:"required,email,max=254"`
	Password string `json:"password" binding:"required,min=8,max=128"`
}

type loginIn struct {
	Email    string `json:"email" binding:"required,email"`
	Password string `json:"password" binding:"required,max=128"`
}

type profileIn struct {
	Name     *string `json:"name" binding:"omitempty,min=1,max=64"`
	Password *string `json:"password" binding:"omitempty,min=8,max=128"`
}

func (h *AuthHandler) MountAPI(api *gin.RouterGroup) {
	pub := ez.New(api.Group("/auth", h.guard...))

	ez.RegisterAction(pub, ez.Action[registerIn, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/register",
		Binder: ez.BindJSON,
		Status: http.StatusCreated,
		Handler: func(c *gin.Context, in *registerIn) (*service.AuthResult, error) {
			return h.users.Register(c.Request.Context(), service.RegisterInput{Name: in.Name, Email: in.Email, Password: in.Password})
		},
	})

	ez.RegisterAction(pub, ez.Action[loginIn, *service.AuthResult]{
		Method: http.MethodPost,
		Path:   "/login",
		Binder: ez.BindJSON,
		Handler: func(c *gin.Context, in *loginIn) (*service.AuthResult, error) {
			return h.users.Login(c.Request.Context(), in.Email, in.Password)
		},
	})

	me := ez.New(api)
	ez.RegisterAction(me, ez.Action[struct{}, *domain.User]{
		Method:  http.MethodGet,
		Path:    "/me",
		Binder:  ez.BindNone,
		MinRole: domain.RoleMember,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.User, error) {
			return ez.UserOf(c), nil
		},
	})

	ez.RegisterAction(me, ez.Action[profileIn, *domain.User]{
		Method:  http.MethodPatch,
		Path:    "/me",
		Binder:  ez.BindJSON,
		MinRole: domain.RoleMember,
		Handler: func(c *gin.Context, in *profileIn) (*domain.User, error) {
			return h.users.UpdateProfile(c.Request.Context(), ez.PrincipalOf(c).UserID, service.ProfilePatch{Name: in.Name, Password: in.Password})
		},
	})
}
