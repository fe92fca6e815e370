package repo

import (
	"context"
	"database/sql/driver"
	"errors"
	"fmt"
	"net"

	"gorm.io/gorm"

	"quillpress/internal/domain"
)

// translate gorm / 驱动错误映射到领域错误；需开启 gorm.Config.TranslateError
func translate(err error, entity string) error {
	if err == nil {
		return nil
	}
	var ne net.Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		return domain.NotFound(entity)
	case errors.Is(err, gorm.ErrForeignKeyViolated):
		return domain.NotFound(entity)
	case errors.Is(err, context.DeadlineExceeded),
		errors.Is(err, driver.ErrBadConn),
		errors.As(err, &ne) && ne.Timeout():
		return fmt.Errorf("%w: %w", domain.ErrTransient, err)
	}
	return err
}

// dup 唯一约束冲突转成 DuplicateKeyError，其余走 translate
func dup(err error, entity, field string) error {
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return &domain.DuplicateKeyError{Field: field, Err: err}
	}
	return translate(err, entity)
}

// counterExpr 原子增量并截断到 0
func counterExpr(col string, delta int64) any {
	return gorm.Expr("CASE WHEN "+col+" + ? < 0 THEN 0 ELSE "+col+" + ? END", delta, delta)
}

// mustSwap 条件更新没命中时区分“不存在”与“值已被别人改过”
func mustSwap(tx *gorm.DB, model any, id, entity string) error {
	if tx.Error != nil {
		return translate(tx.Error, entity)
	}
	if tx.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := tx.Session(&gorm.Session{NewDB: true}).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return translate(err, entity)
	}
	if n == 0 {
		return domain.NotFound(entity)
	}
	return domain.ErrCounterMoved
}

// mustAffect RowsAffected 为 0 时区分“不存在”与“值未变化”（MySQL 不计未变化行）
func mustAffect(tx *gorm.DB, model any, id, entity string) error {
	if tx.Error != nil {
		return translate(tx.Error, entity)
	}
	if tx.RowsAffected > 0 {
		return nil
	}
	var n int64
	if err := tx.Session(&gorm.Session{NewDB: true}).Model(model).Where("id = ?", id).Count(&n).Error; err != nil {
		return translate(err, entity)
	}
	if n == 0 {
		return domain.NotFound(entity)
	}
	return nil
}
