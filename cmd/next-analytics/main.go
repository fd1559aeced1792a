package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/redis/go-redis/v9"

	"github.com/ashwinyue/next-analytics/internal/config"
	"github.com/ashwinyue/next-analytics/internal/database"
	"github.com/ashwinyue/next-analytics/internal/handler"
	"github.com/ashwinyue/next-analytics/internal/logger"
	"github.com/ashwinyue/next-analytics/internal/repository"
	"github.com/ashwinyue/next-analytics/internal/router"
	"github.com/ashwinyue/next-analytics/internal/service"
	"github.com/ashwinyue/next-analytics/internal/service/file"
)

func main() {
	// 加载配置
	configPath := os.Getenv("CONFIG_PATH")
	if configPath == "" {
		configPath = "./configs/config.yaml"
	}

	cfg, err := config.Load(configPath)
	if err != nil {
		log.Fatalf("Failed to load config: %v", err)
	}

	sugar, err := logger.New(cfg.Log)
	if err != nil {
		log.Fatalf("Failed to init logger: %v", err)
	}
	defer func() { _ = sugar.Sync() }()

	// 设置 Gin 模式
	gin.SetMode(cfg.Server.Mode)

	// 初始化数据库
	db, err := database.New(cfg, sugar.Named("database"))
	if err != nil {
		sugar.Fatalf("Failed to init database: %v", err)
	}
	defer db.Close()

	// 初始化 Redis（可选二级缓存）
	var redisClient *redis.Client
	if cfg.Redis.Enabled {
		redisClient = redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.GetAddr(),
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		defer redisClient.Close()
		ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		if err := redisClient.Ping(ctx).Err(); err != nil {
			sugar.Warnf("Redis unreachable at %s, continuing with in-process cache only: %v", cfg.Redis.GetAddr(), err)
			redisClient = nil
		}
		cancel()
	}

	// 初始化 Blob 存储
	storage, err := file.NewStorage(cfg.Storage)
	if err != nil {
		sugar.Fatalf("Failed to init storage: %v", err)
	}

	// 初始化各层
	repos := repository.NewRepositories(db.DB)
	services := service.NewServices(repos, storage, cfg, redisClient, sugar)
	defer services.Close()
	handlers := handler.NewHandlers(services, db)

	// 初始化路由
	r := router.SetupRouter(handlers, sugar.Named("http"))

	// 创建 HTTP 服务器
	srv := &http.Server{
		Addr:         cfg.Server.GetAddr(),
		Handler:      r,
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
	}

	// 启动服务器
	go func() {
		sugar.Infof("Server starting on %s", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			sugar.Fatalf("Server error: %v", err)
		}
	}()

	// 等待中断信号
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	sugar.Info("Shutting down server...")

	// 优雅关闭
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		sugar.Errorf("Server forced to shutdown: %v", err)
	}

	sugar.Info("Server exited")
}
