// Package database 管理 PostgreSQL 连接与表结构迁移
package database

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"
	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/ashwinyue/next-analytics/internal/config"
	"github.com/ashwinyue/next-analytics/internal/model"
)

const (
	connectTimeout = 5 * time.Second
	// pingTimeout 调用方未设置截止时间时单次探测的上限
	pingTimeout = 2 * time.Second
)

// DB 数据库封装
type DB struct {
	*gorm.DB
}

// New 连接数据库、配置连接池并迁移分析相关的表
func New(cfg *config.Config, logger *zap.SugaredLogger) (*DB, error) {
	level := gormlogger.Warn
	if cfg.App.Debug {
		level = gormlogger.Info
	}

	gdb, err := gorm.Open(postgres.Open(cfg.Database.GetDSN()), &gorm.Config{
		Logger:  gormlogger.Default.LogMode(level),
		NowFunc: func() time.Time { return time.Now().Local() },
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect database: %w", err)
	}

	sqlDB, err := gdb.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get database: %w", err)
	}
	sqlDB.SetMaxOpenConns(cfg.Database.MaxOpenConns)
	sqlDB.SetMaxIdleConns(cfg.Database.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(time.Duration(cfg.Database.MaxLifetime) * time.Second)

	db := &DB{DB: gdb}
	ctx, cancel := context.WithTimeout(context.Background(), connectTimeout)
	defer cancel()
	if err := db.Ping(ctx); err != nil {
		return nil, err
	}

	if err := gdb.AutoMigrate(model.AllModels...); err != nil {
		return nil, fmt.Errorf("failed to auto migrate: %w", err)
	}
	logger.Infof("database %s@%s:%d ready, %d tables migrated",
		cfg.Database.DBName, cfg.Database.Host, cfg.Database.Port, len(model.AllModels))
	return db, nil
}

// Close 关闭数据库连接
func (db *DB) Close() error {
	sqlDB, err := db.DB.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}

// Ping 探测数据库连通性，供启动与健康检查使用
func (db *DB) Ping(ctx context.Context) error {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, pingTimeout)
		defer cancel()
	}

	sqlDB, err := db.DB.DB()
	if err != nil {
		return fmt.Errorf("failed to get database: %w", err)
	}
	if err := sqlDB.PingContext(ctx); err != nil {
		return fmt.Errorf("failed to ping database: %w", err)
	}
	return nil
}
