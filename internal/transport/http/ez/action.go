package ez

import (
	"context"
	"errors"
	"mime/multipart"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"quillpress/internal/domain"
	"quillpress/internal/service"
	resp "quillpress/internal/transport/http/response"
)

type EZ struct{ g *gin.RouterGroup }

func New(g *gin.RouterGroup) EZ {
	setupValidator()
	return EZ{g: g}
}

// 绑定方式
type Binder string

const (
	BindJSON  Binder = "json"  // 从 JSON 绑定
	BindQuery Binder = "query" // 从 URL ?a=b 绑定
	BindNone  Binder = "none"  // 不绑定，自己从 c.Param 取
)

// AErr 传输层自身的错误（参数缺失等），领域错误直接返回即可
type AErr struct {
	Code int
	Msg  string
	Err  error
}

func (e *AErr) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	if e.Err != nil {
		return e.Err.Error()
	}
	return "action error"
}

func (e *AErr) Unwrap() error { return e.Err }

func BadRequest(msg string) error { return &AErr{Code: resp.CodeBadRequest, Msg: msg} }
func NotFound(msg string) error   { return &AErr{Code: resp.CodeNotFound, Msg: msg} }

// 动作定义：I 入参，O 出参
type Action[I any, O any] struct {
	Method string // "GET" | "POST" | "PUT" | "PATCH" | "DELETE"
	Path   string // 例："/auth/login"、"/posts/:id/like"
	Binder Binder
	// MinRole 非 RoleNone 时要求登录且角色不低于它
	MinRole domain.Role
	// Status 成功时的 HTTP 状态码，默认 200
	Status  int
	Handler func(c *gin.Context, in *I) (O, error)
}

// RegisterAction 在当前 EZ 下注册动作接口
func RegisterAction[I any, O any](e EZ, a Action[I, O]) {
	status := a.Status
	if status == 0 {
		status = http.StatusOK
	}
	h := func(c *gin.Context) {
		if a.MinRole != domain.RoleNone {
			if err := Require(c, a.MinRole); err != nil {
				Fail(c, err)
				return
			}
		}

		var in I
		var bindErr error
		switch a.Binder {
		case BindJSON:
			bindErr = c.ShouldBindJSON(&in)
		case BindQuery:
			bindErr = c.ShouldBindQuery(&in)
		}
		if bindErr != nil {
			var mbe *http.MaxBytesError
			if errors.As(bindErr, &mbe) {
				Fail(c, &AErr{Code: resp.CodeTooLarge, Msg: "request body too large", Err: bindErr})
				return
			}
			Fail(c, bindError(bindErr))
			return
		}

		out, err := a.Handler(c, &in)
		if err != nil {
			Fail(c, err)
			return
		}
		c.JSON(status, resp.OK(out))
	}
	e.g.Handle(strings.ToUpper(a.Method), a.Path, h)
}

// Files 处理 multipart/form-data 多文件上传
func Files(e EZ, path, fieldName string, minRole domain.Role, h func(c *gin.Context, files []*multipart.FileHeader) (any, error)) {
	e.g.POST(path, func(c *gin.Context) {
		if err := Require(c, minRole); err != nil {
			Fail(c, err)
			return
		}
		form, err := c.MultipartForm()
		if err != nil {
			var mbe *http.MaxBytesError
			if errors.As(err, &mbe) {
				Fail(c, &AErr{Code: resp.CodeTooLarge, Msg: "request body too large", Err: err})
				return
			}
			Fail(c, domain.NewValidationError(fieldName, "invalid multipart form: "+err.Error()))
			return
		}
		data, err := h(c, form.File[fieldName])
		if err != nil {
			Fail(c, err)
			return
		}
		c.JSON(http.StatusCreated, resp.OK(data))
	})
}

// classify 错误到 code 与对外消息
func classify(err error) (code int, msg string, data any) {
	var (
		ae *AErr
		ve *domain.ValidationError
		ce *domain.ConflictError
	)
	switch {
	case errors.As(err, &ae):
		return ae.Code, ae.Error(), nil
	case errors.As(err, &ve):
		return resp.CodeBadRequest, "validation failed", ve.Fields
	case errors.As(err, &ce):
		return resp.CodeBadRequest, ce.Msg, nil
	case errors.Is(err, domain.ErrUnauthenticated):
		return resp.CodeUnauthorized, err.Error(), nil
	case errors.Is(err, domain.ErrForbidden):
		return resp.CodeForbidden, err.Error(), nil
	case errors.Is(err, domain.ErrNotFound):
		return resp.CodeNotFound, err.Error(), nil
	case errors.Is(err, domain.ErrInvalidTransition), errors.Is(err, service.ErrReconcileRunning):
		return resp.CodeBadRequest, err.Error(), nil
	case errors.Is(err, domain.ErrServiceUnavailable):
		return resp.CodeUnavailable, "service temporarily unavailable, retry later", nil
	case errors.Is(err, context.DeadlineExceeded):
		return resp.CodeTimeout, "timeout", nil
	}
	return resp.CodeServerError, "internal error", nil
}

// Fail 统一错误出口：HTTP 状态码与 code 一致；5xx 记到 gin 错误链由访问日志输出
func Fail(c *gin.Context, err error) {
	code, msg, data := classify(err)
	if code >= 500 {
		_ = c.Error(err)
	}
	c.AbortWithStatusJSON(resp.Status(code), resp.Fail(code, msg, data))
}
