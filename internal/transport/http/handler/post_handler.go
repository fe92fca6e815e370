package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"quillpress/internal/domain"
	"quillpress/internal/service"
	"quillpress/internal/transport/http/ez"
)

type PostHandler struct {
	posts    *service.PostService
	comments *service.CommentService
}

func NewPostHandler(posts *service.PostService, comments *service.CommentService) *PostHandler {
	return &PostHandler{posts: posts, comments: comments}
}

type postIn struct {
	Title      string            `json:"title" binding:"required"`
	Content    string            `json:"content" binding:"required"`
	Excerpt    *string           `json:"excerpt"`
	Status     domain.PostStatus `json:"status" binding:"omitempty,oneof=draft published"`
	CoverImage string            `json:"coverImage" binding:"omitempty,max=512"`
	TagIDs     []string          `json:"tagIds"`
	Tags       []string          `json:"tags" binding:"omitempty,dive,required,max=64"`
}

type postPatchIn struct {
	Title      *string            `json:"title"`
	Content    *string            `json:"content"`
	Excerpt    *string            `json:"excerpt"`
	Status     *domain.PostStatus `json:"status" binding:"omitempty,oneof=draft published"`
	CoverImage *string            `json:"coverImage" binding:"omitempty,max=512"`
	TagIDs     []string           `json:"tagIds"`
	Tags       []string           `json:"tags" binding:"omitempty,dive,required,max=64"`
}

type postListQ struct {
	pageQ
	Status   domain.PostStatus `form:"status" binding:"omitempty,oneof=draft published"`
	AuthorID string            `form:"authorId"`
	TagID    string            `form:"tagId"`
}

type commentIn struct {
	Content  string  `json:"content" binding:"required"`
	ParentID *string `json:"parentId"`
}

func (h *PostHandler) MountAPI(api *gin.RouterGroup) {
	e := ez.New(api)

	ez.RegisterAction(e, ez.Action[postListQ, listOut[domain.Post]]{
		Method: http.MethodGet,
		Path:   "/posts",
		Binder: ez.BindQuery,
		Handler: func(c *gin.Context, in *postListQ) (listOut[domain.Post], error) {
			items, total, err := h.posts.List(c.Request.Context(), ez.PrincipalOf(c), domain.PostFilter{
				Status: in.Status, AuthorID: in.AuthorID, TagID: in.TagID, Offset: in.Offset, Limit: in.Limit,
			})
			return list(items, total), err
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Post]{
		Method: http.MethodGet,
		Path:   "/posts/slug/:slug",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Post, error) {
			return h.posts.View(c.Request.Context(), ez.PrincipalOf(c), param(c, "slug"))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Post]{
		Method: http.MethodGet,
		Path:   "/posts/:id",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Post, error) {
			return h.posts.Get(c.Request.Context(), ez.PrincipalOf(c), param(c, "id"))
		},
	})

	ez.RegisterAction(e, ez.Action[postIn, *domain.Post]{
		Method:  http.MethodPost,
		Path:    "/posts",
		Binder:  ez.BindJSON,
		MinRole: domain.RoleMember,
		Status:  http.StatusCreated,
		Handler: func(c *gin.Context, in *postIn) (*domain.Post, error) {
			return h.posts.Create(c.Request.Context(), ez.PrincipalOf(c), service.PostInput{
				Title: in.Title, Content: in.Content, Excerpt: in.Excerpt, Status: in.Status,
				CoverImage: in.CoverImage, Tags: service.TagRefs{IDs: in.TagIDs, Names: in.Tags},
			})
		},
	})

	ez.RegisterAction(e, ez.Action[postPatchIn, *domain.Post]{
		Method:  http.MethodPatch,
		Path:    "/posts/:id",
		Binder:  ez.BindJSON,
		MinRole: domain.RoleMember,
		Handler: func(c *gin.Context, in *postPatchIn) (*domain.Post, error) {
			patch := service.PostPatch{
				Title: in.Title, Content: in.Content, Excerpt: in.Excerpt, Status: in.Status, CoverImage: in.CoverImage,
			}
			if in.TagIDs != nil || in.Tags != nil {
				patch.Tags = &service.TagRefs{IDs: in.TagIDs, Names: in.Tags}
			}
			return h.posts.Update(c.Request.Context(), ez.PrincipalOf(c), param(c, "id"), patch)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, idOut]{
		Method:  http.MethodDelete,
		Path:    "/posts/:id",
		Binder:  ez.BindNone,
		MinRole: domain.RoleMember,
		Handler: func(c *gin.Context, _ *struct{}) (idOut, error) {
			id := param(c, "id")
			return idOut{ID: id}, h.posts.Delete(c.Request.Context(), ez.PrincipalOf(c), id)
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, *domain.Post]{
		Method:  http.MethodPost,
		Path:    "/posts/:id/like",
		Binder:  ez.BindNone,
		MinRole: domain.RoleMember,
		Handler: func(c *gin.Context, _ *struct{}) (*domain.Post, error) {
			return h.posts.Like(c.Request.Context(), ez.PrincipalOf(c), param(c, "id"))
		},
	})

	ez.RegisterAction(e, ez.Action[struct{}, []*service.CommentNode]{
		Method: http.MethodGet,
		Path:   "/posts/:id/comments",
		Binder: ez.BindNone,
		Handler: func(c *gin.Context, _ *struct{}) ([]*service.CommentNode, error) {
			nodes, err := h.comments.Thread(c.Request.Context(), ez.PrincipalOf(c), param(c, "id"))
			if err == nil && nodes == nil {
				nodes = []*service.CommentNode{}
			}
			return nodes, err
		},
	})

	ez.RegisterAction(e, ez.Action[commentIn, *domain.Comment]{
		Method:  http.MethodPost,
		Path:    "/posts/:id/comments",
		Binder:  ez.BindJSON,
		MinRole: domain.RoleMember,
		Status:  http.StatusCreated,
		Handler: func(c *gin.Context, in *commentIn) (*domain.Comment, error) {
			return h.comments.Create(c.Request.Context(), ez.PrincipalOf(c), param(c, "id"), service.CommentInput{
				Content: in.Content, ParentID: in.ParentID,
			})
		},
	})
}
