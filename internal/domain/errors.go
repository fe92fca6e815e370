package domain

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrUnauthenticated = errors.New("unauthenticated")
	ErrForbidden       = errors.New("forbidden")
	ErrNotFound        = errors.New("not found")
	ErrConflict        = errors.New("conflict")

	// token 校验失败的三种原因，都属于未认证
	ErrExpiredToken     = fmt.Errorf("%w: token expired", ErrUnauthenticated)
	ErrInvalidSignature = fmt.Errorf("%w: invalid signature", ErrUnauthenticated)
	ErrMalformedToken   = fmt.Errorf("%w: malformed token", ErrUnauthenticated)

	// 存储层：唯一键冲突 / 可重试的超时或网络错误
	ErrDuplicateKey = errors.New("duplicate key")
	ErrTransient    = errors.New("transient store error")

	// 重试耗尽后对外暴露
	ErrServiceUnavailable = errors.New("service unavailable")

	// 状态机不允许的迁移
	ErrInvalidTransition = errors.New("invalid state transition")

	// 条件写计数时当前值已不是读到的值
	ErrCounterMoved = fmt.Errorf("%w: counter changed concurrently", ErrConflict)
)

type FieldError struct {
	Field   string `json:"field"`
	Message string `json:"message"`
}

// ValidationError 字段级校验错误，可直接回给调用方
type ValidationError struct {
	Fields []FieldError
}

func (e *ValidationError) Error() string {
	parts := make([]string, 0, len(e.Fields))
	for _, f := range e.Fields {
		parts = append(parts, f.Field+": "+f.Message)
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func NewValidationError(field, message string) *ValidationError {
	return &ValidationError{Fields: []FieldError{{Field: field, Message: message}}}
}

// ConflictError 唯一约束冲突，Msg 是面向用户的业务描述
type ConflictError struct {
	Field string
	Msg   string
}

func (e *ConflictError) Error() string { return e.Msg }
func (e *ConflictError) Unwrap() error { return ErrConflict }

// DuplicateKeyError 存储层返回，Field 为违反唯一约束的字段
type DuplicateKeyError struct {
	Field string
	Err   error
}

func (e *DuplicateKeyError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("duplicate %s: %v", e.Field, e.Err)
	}
	return "duplicate " + e.Field
}
func (e *DuplicateKeyError) Unwrap() error { return ErrDuplicateKey }

// NotFound 带实体名的 404
func NotFound(entity string) error { return fmt.Errorf("%s %w", entity, ErrNotFound) }

// reasonError 带面向调用方的说明，errors.Is 仍匹配对应哨兵错误
type reasonError struct {
	kind error
	msg  string
}

func (e *reasonError) Error() string { return e.msg }
func (e *reasonError) Unwrap() error { return e.kind }

func Unauthenticated(msg string) error { return &reasonError{kind: ErrUnauthenticated, msg: msg} }
func Forbidden(msg string) error       { return &reasonError{kind: ErrForbidden, msg: msg} }
