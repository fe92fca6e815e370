package database

import (
	"errors"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/mysql"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var ErrUnsupportedDriver = errors.New("unsupported gorm driver")

type Opts struct {
	Driver             string
	DSN                string
	Username           string
	Password           string
	MaxOpenConns       int
	MaxIdleConns       int
	ConnMaxLifetimeMin int
	LogLevel           string
	Logger             *zap.Logger
}

// gormWriter 把 gorm 日志接到 zap
type gormWriter struct{ s *zap.SugaredLogger }

func (w gormWriter) Printf(format string, args ...any) { w.s.Infof(format, args...) }

var gormLevels = map[string]logger.LogLevel{
	"silent": logger.Silent,
	"error":  logger.Error,
	"warn":   logger.Warn,
	"info":   logger.Info,
}

func dialector(o Opts, zl *zap.Logger) (gorm.Dialector, error) {
	switch o.Driver {
	case "postgres":
		return postgres.Open(o.DSN), nil
	case "mysql":
		dsn := normalizeMySQLDSN(o.DSN, o.Username, o.Password)
		zl.Info("mysql dsn normalized", zap.String("dsn", maskDSN(dsn)))
		return mysql.Open(dsn), nil
	}
	return nil, ErrUnsupportedDriver
}

// NewGorm 慢查询阈值 200ms；唯一冲突由 TranslateError 统一成 gorm.ErrDuplicatedKey
func NewGorm(o Opts) (*gorm.DB, error) {
	zl := o.Logger
	if zl == nil {
		zl = zap.NewNop()
	}
	dial, err := dialector(o, zl)
	if err != nil {
		return nil, err
	}
	lvl, ok := gormLevels[o.LogLevel]
	if !ok {
		lvl = logger.Warn
	}
	db, err := gorm.Open(dial, &gorm.Config{
		Logger: logger.New(gormWriter{zl.Named("gorm").Sugar()}, logger.Config{
			SlowThreshold:             200 * time.Millisecond,
			LogLevel:                  lvl,
			IgnoreRecordNotFoundError: true,
		}),
		TranslateError:         true,
		SkipDefaultTransaction: true, // 多表写入在仓储里显式开事务
		PrepareStmt:            true,
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(o.MaxOpenConns)
	sqlDB.SetMaxIdleConns(o.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(o.ConnMaxLifetimeMin) * time.Minute)
	return db, nil
}
