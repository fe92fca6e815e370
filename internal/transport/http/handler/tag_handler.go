package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quillpress/internal/domain"
	"quillpress/internal/service"
	"quillpress/internal/transport/http/ez"
)

type TagHandler struct {
	tags *service.TagService
}

func NewTagHandler(tags *service.TagService) *TagHandler { return &TagHandler{tags: tags} }

type tagIn struct {
	Name string `json:"name" binding:"required"`
}

func (h *TagHandler) MountAPI(api *gin.RouterGroup) {
	e := ez.New(api)
	ez.RegisterAction(e, ez.Action[struct{}, []domain.Tag]{
		Method: http.MethodGet,
		Path:   "/tags",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]domain.Tag, error) {
			tags, err := h.tags.List(c.Request.Context())
			if tags == nil {
				tags = []domain.Tag{}
			}
			return tags, err
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, *domain.Tag]{
		Method: http.MethodGet,
		Path:   "/tags/:slug",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Tag, error) {
			return h.tags.GetBySlug(c.Request.Context(), param(c, "slug"))
		},
	})
}

func (h *TagHandler) MountAdmin(admin *gin.RouterGroup) {
	e := ez.New(admin)
	ez.RegisterAction(e, ez.Action[tagIn, *domain.Tag]{
		Method:  http.MethodPost,
		Path:    "/tags",
		Binder:  ez.BindJSON,
		MinRole: domain.RoleAdmin,
		Status:  http.StatusCreated,
		Handler: func(c *gin.Context, in *tagIn) (*domain.Tag, error) {
			return h.tags.Create(c.Request.Context(), in.Name)
		},
	})
	ez.RegisterAction(e, ez.Action[tagIn, *domain.Tag]{
		Method:  http.MethodPatch,
		Path:    "/tags/:id",
		Binder:  ez.BindJSON,
		MinRole: domain.RoleAdmin,
		Handler: func(c *gin.Context, in *tagIn) (*domain.Tag, error) {
			return h.tags.Rename(c.Request.Context(), param(c, "id"), in.Name)
		},
	})
	ez.RegisterAction(e, ez.Action[struct{}, idOut]{
		Method:  http.MethodDelete,
		Path:    "/tags/:id",
		Binder:  ez.BindNone,
		MinRole: domain.RoleAdmin,
		Handler: func(c *gin.Context, _ *struct{}) (idOut, error) {
			id := param(c, "id")
			return idOut{ID: id}, h.tags.Delete(c.Request.Context(), id)
		},
	})
}
