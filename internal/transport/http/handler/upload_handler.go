package handler

import (
	"mime/multipart"

	"github.com/gin-gonic/gin"

	"quillpress/internal/domain"
	"quillpress/internal/transport/http/ez"
	"quillpress/internal/upload"
)

// UploadHandler 图片上传，落盘目录同时作为静态资源对外提供
type UploadHandler struct {
	store *upload.Store
}

func NewUploadHandler(store *upload.Store) *UploadHandler { return &UploadHandler{store: store} }

type uploadOut struct {
	URLs []string `json:"urls"`
}

func (h *UploadHandler) MountAPI(api *gin.RouterGroup) {
	ez.Files(ez.New(api), "/uploads", "images", domain.RoleMember, func(c *gin.Context, files []*multipart.FileHeader) (any, error) {
		urls, err := h.store.SaveAll(c.Request.Context(), files)
		if err != nil {
			return nil, err
		}
		return uploadOut{URLs: urls}, nil
	})
}

// Static 挂在引擎根上，路径与返回的 URL 前缀一致
func (h *UploadHandler) Static(r *gin.Engine) {
	r.Static(h.store.PublicPrefix(), h.store.Dir())
}
