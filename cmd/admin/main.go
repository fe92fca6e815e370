package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	_ "go.uber.org/automaxprocs"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"quillpress/internal/app"
	"quillpress/internal/core/config"
	"quillpress/internal/core/logger"
	"quillpress/internal/core/server"
	"quillpress/internal/transport/http/router"
)

// 单次校正的最长耗时
const reconcileTimeout = 5 * time.Minute

func main() {
	_ = godotenv.Load()
	cfg := config.Load(os.Getenv("CONFIG_PATH"))
	log, cleanup := logger.FromConfig(cfg.Log)
	defer cleanup()
	defer logger.RedirectStdLog(log, zapcore.InfoLevel)()
	if cfg.App.Env != "local" {
		gin.SetMode(gin.ReleaseMode)
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, log)
	if err != nil {
		log.Fatal("app init failed", zap.Error(err))
	}
	defer a.Close()

	if err := a.Bootstrap(ctx); err != nil {
		log.Fatal("bootstrap failed", zap.Error(err))
	}

	// 计数定时校正只在管理端进程跑，避免多实例重复
	if cfg.Reconcile.Enabled {
		c, err := a.Reconciler.Schedule(cfg.Reconcile.Cron, reconcileTimeout)
		if err != nil {
			log.Fatal("reconcile schedule", zap.Error(err))
		}
		defer func() { <-c.Stop().Done() }()
		log.Info("reconcile scheduled", zap.String("cron", cfg.Reconcile.Cron))
	}

	r := router.NewAdminEngine(a.Deps())

	addr := server.Addr(cfg.App.Admin.Host, cfg.App.Admin.Port)
	srv := server.BuildServer(
		addr, r,
		time.Duration(cfg.App.HTTP.ReadTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.WriteTimeoutSec)*time.Second,
		time.Duration(cfg.App.HTTP.IdleTimeoutSec)*time.Second,
	)

	host4human := cfg.App.Admin.Host
	if host4human == "" || host4human == "0.0.0.0" {
		host4human = "127.0.0.1"
	}
	baseURL := "http://" + host4human + ":" + fmt.Sprint(cfg.App.Admin.Port)
	log.Info("admin api starting",
		zap.String("addr", addr),
		zap.String("health", baseURL+"/health"),
		zap.String("admin_v1", baseURL+"/admin/v1"),
	)

	go func() {
		if err := server.StartHTTP(srv, log); err != nil {
			log.Error("admin api start FAILED", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	server.Shutdown(srv, 10*time.Second, log)
}
