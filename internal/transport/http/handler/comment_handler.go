package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quillpress/internal/domain"
	"quillpress/internal/service"
	"quillpress/internal/transport/http/ez"
)

// CommentHandler 用户端删除/点赞，管理端审核队列
type CommentHandler struct {
	comments *service.CommentService
}

func NewCommentHandler(comments *service.CommentService) *CommentHandler {
	return &CommentHandler{comments: comments}
}

type deletedOut struct {
	ID      string `json:"id"`
	Removed int    `json:"removed"`
}

type queueQ struct {
	pageQ
	Status domain.CommentStatus `form:"status" binding:"omitempty,oneof=pending approved spam"`
}

func (h *CommentHandler) deleteAction() ez.Action[struct{}, deletedOut] {
	return ez.Action[struct{}, deletedOut]{
		Method:  http.MethodDelete,
		Path:    "/comments/:id",
		Binder:  ez.BindNone,
		MinRole: domain.RoleMember,
		Handler: func(c *gin.Context, _ *struct{}) (deletedOut, error) {
			id := param(c, "id")
			n, err := h.comments.Delete(c.Request.Context(), ez.PrincipalOf(c), id)
			return deletedOut{ID: id, Removed: n}, err
		},
	}
}

func (h *CommentHandler) MountAPI(api *gin.RouterGroup) {
	e := ez.New(api)
	ez.RegisterAction(e, h.deleteAction())
	ez.RegisterAction(e, ez.Action[struct{}, *domain.Comment]{
		Method:  http.MethodPost,
		Path:    "/comments/:id/like",
		Binder:  ez.BindNone,
		MinRole: domain.RoleMember,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Comment, error) {
			return h.comments.Like(c.Request.Context(), ez.PrincipalOf(c), param(c, "id"))
		},
	})
}

func (h *CommentHandler) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin)

	ez.RegisterAction(e, ez.Action[queueQ, listOut[domain.Comment]]{
		Method:  http.MethodGet,
		Path:    "/comments",
		Binder:  ez.BindQuery,
		MinRole: domain.RoleAdmin,
		Handler: func(c *gin.Context, in *queueQ) (listOut[domain.Comment], error) {
			items, total, err := h.comments.Queue(c.Request.Context(), ez.PrincipalOf(c), in.Status, in.Offset, in.Limit)
			return list(items, total), err
		},
	})

	moderate := func(path string, fn func(*gin.Context, domain.Principal, string) (*domain.Comment, error)) {
		ez.RegisterAction(e, ez.Action[struct{}, *domain.Comment]{
			Method:  http.MethodPost,
			Path:    path,
			Binder:  ez.BindNone,
			MinRole: domain.RoleAdmin,
			Handler: func(c *gin.Context, _ *struct{}) (*domain.Comment, error) {
				return fn(c, ez.PrincipalOf(c), param(c, "id"))
			},
		})
	}
	moderate("/comments/:id/approve", func(c *gin.Context, p domain.Principal, id string) (*domain.Comment, error) {
		return h.comments.Approve(c.Request.Context(), p, id)
	})
	moderate("/comments/:id/spam", func(c *gin.Context, p domain.Principal, id string) (*domain.Comment, error) {
		return h.comments.MarkSpam(c.Request.Context(), p, id)
	})

	ez.RegisterAction(e, h.deleteAction())
}
