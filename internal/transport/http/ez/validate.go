package ez

import (
	"errors"
	"reflect"
	"strings"
	"sync"

	"github.com/gin-gonic/gin/binding"
	"github.com/go-playground/locales/en"
	ut "github.com/go-playground/universal-translator"
	"github.com/go-playground/validator/v10"
	entrans "github.com/go-playground/validator/v10/translations/en"

	"quillpress/internal/domain"
)

var (
	transOnce sync.Once
	trans     ut.Translator
)

// setupValidator 给 gin 的校验器挂英文翻译，字段名取 json/form tag
func setupValidator() {
	transOnce.Do(func() {
		v, ok := binding.Validator.Engine().(*validator.Validate)
		if !ok {
			return
		}
		v.RegisterTagNameFunc(func(f reflect.StructField) string {
			for _, tag := range []string{"json", "form", "uri"} {
				name := strings.SplitN(f.Tag.Get(tag), ",", 2)[0]
				if name == "-" {
					return ""
				}
				if name != "" {
					return name
				}
			}
			return f.Name
		})
		uni := ut.New(en.New())
		trans, _ = uni.GetTranslator("en")
		_ = entrans.RegisterDefaultTranslations(v, trans)
	})
}

// bindError 绑定错误转成领域校验错误；非校验类错误（JSON 语法等）按单条 body 错误处理
func bindError(err error) *domain.ValidationError {
	var ves validator.ValidationErrors
	if errors.As(err, &ves) {
		out := &domain.ValidationError{Fields: make([]domain.FieldError, 0, len(ves))}
		for _, fe := range ves {
			msg := fe.Error()
			if trans != nil {
				msg = fe.Translate(trans)
			}
			out.Fields = append(out.Fields, domain.FieldError{Field: fe.Field(), Message: msg})
		}
		return out
	}
	return domain.NewValidationError("body", err.Error())
}
