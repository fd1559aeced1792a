// Package dfcache 缓存已加载的数据帧
// 一级缓存为进程内 LRU（带 TTL），二级缓存为可选的 Redis，未命中时从数据集存储加载
package dfcache

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/ashwinyue/next-analytics/internal/apperr"
	"github.com/ashwinyue/next-analytics/internal/metrics"
	"github.com/ashwinyue/next-analytics/internal/model"
	"github.com/ashwinyue/next-analytics/internal/repository"
	"github.com/ashwinyue/next-analytics/internal/service/file"
	"github.com/ashwinyue/next-analytics/internal/service/table"
)

const (
	// Redis key 前缀
	cacheKeyPrefix = "dfcache:"

	DefaultTTL  = 30 * time.Minute
	DefaultSize = 100
)

// Options 缓存配置
type Options struct {
	TTL  time.Duration
	Size int
	// Redis 为空时只使用进程内缓存
	Redis *redis.Client
}

// Cache 数据帧缓存
type Cache struct {
	lru      *expirable.LRU[string, *table.Table]
	redis    *redis.Client
	ttl      time.Duration
	size     int
	datasets repository.DatasetStore
	storage  file.Storage
	logger   *zap.SugaredLogger
}

// redisEntry Redis 中的缓存格式
type redisEntry struct {
	DTypes map[string]string `json:"dtypes"`
	Table  json.RawMessage   `json:"table"`
}

// New 创建缓存
func New(datasets repository.DatasetStore, storage file.Storage, opts Options, logger *zap.SugaredLogger) *Cache {
	if opts.TTL <= 0 {
		opts.TTL = DefaultTTL
	}
	if opts.Size <= 0 {
		opts.Size = DefaultSize
	}
	return &Cache{
		lru:      expirable.NewLRU[string, *table.Table](opts.Size, nil, opts.TTL),
		redis:    opts.Redis,
		ttl:      opts.TTL,
		size:     opts.Size,
		datasets: datasets,
		storage:  storage,
		logger:   logger,
	}
}

// Load 加载数据集，返回调用方可自由修改的副本
func (c *Cache) Load(ctx context.Context, datasetID string) (*table.Table, error) {
	if tb, ok := c.lru.Get(datasetID); ok {
		metrics.CacheLookups.WithLabelValues("memory", "hit").Inc()
		return tb.Clone(), nil
	}
	metrics.CacheLookups.WithLabelValues("memory", "miss").Inc()

	if c.redis != nil {
		if tb := c.loadFromRedis(ctx, datasetID); tb != nil {
			metrics.CacheLookups.WithLabelValues("redis", "hit").Inc()
			c.lru.Add(datasetID, tb)
			return tb.Clone(), nil
		}
		metrics.CacheLookups.WithLabelValues("redis", "miss").Inc()
	}

	ds, err := c.datasets.GetByID(ctx, datasetID)
	if err != nil {
		return nil, err
	}
	tb, err := c.loadRows(ctx, ds)
	if err != nil {
		return nil, err
	}
	if tb.NumRows() == 0 {
		return nil, apperr.Validation("dataset %s is empty", datasetID)
	}

	c.lru.Add(datasetID, tb)
	if c.redis != nil {
		if err := c.saveToRedis(ctx, datasetID, tb); err != nil {
			c.logger.Warnf("failed to write dataframe %s to redis: %v", datasetID, err)
		}
	}
	return tb.Clone(), nil
}

// Invalidate 移除缓存项
func (c *Cache) Invalidate(ctx context.Context, datasetID string) {
	c.lru.Remove(datasetID)
	if c.redis != nil {
		if err := c.redis.Del(ctx, cacheKeyPrefix+datasetID).Err(); err != nil {
			c.logger.Warnf("failed to delete dataframe %s from redis: %v", datasetID, err)
		}
	}
}

// Purge 清空进程内缓存
func (c *Cache) Purge() {
	c.lru.Purge()
}

// Len 进程内缓存条目数
func (c *Cache) Len() int {
	return c.lru.Len()
}

// Stats 缓存状态
type Stats struct {
	Entries  int      `json:"entries"`
	Capacity int      `json:"capacity"`
	TTL      string   `json:"ttl"`
	Redis    bool     `json:"redis"`
	Keys     []string `json:"keys"`
}

// Stats 返回进程内缓存状态
func (c *Cache) Stats() Stats {
	return Stats{
		Entries:  c.lru.Len(),
		Capacity: c.size,
		TTL:      c.ttl.String(),
		Redis:    c.redis != nil,
		Keys:     c.lru.Keys(),
	}
}

// Close 释放缓存
func (c *Cache) Close() {
	c.lru.Purge()
}

// loadRows 从内联数据或 Blob 读取行，并按类型提示恢复类型
func (c *Cache) loadRows(ctx context.Context, ds *model.Dataset) (*table.Table, error) {
	var raw []byte
	switch ds.StorageType {
	case model.StorageTypeBlob:
		if ds.BlobPath == "" {
			return nil, apperr.NotFound("blob for dataset %s not found", ds.ID)
		}
		data, err := file.ReadAll(ctx, c.storage, ds.BlobPath)
		if err != nil {
			return nil, apperr.Storage(err)
		}
		raw = data
	default:
		raw = ds.InlineData
	}
	if len(raw) == 0 {
		return nil, apperr.Validation("dataset %s is empty", ds.ID)
	}

	tb, err := table.Decode(raw, ds.ColumnTypes())
	if err != nil {
		return nil, apperr.Storage(fmt.Errorf("failed to decode dataset %s: %w", ds.ID, err))
	}
	return tb, nil
}

// loadFromRedis 从 Redis 加载，任何错误都视为未命中
func (c *Cache) loadFromRedis(ctx context.Context, datasetID string) *table.Table {
	data, err := c.redis.Get(ctx, cacheKeyPrefix+datasetID).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warnf("failed to read dataframe %s from redis: %v", datasetID, err)
		}
		return nil
	}

	var entry redisEntry
	if err := json.Unmarshal(data, &entry); err != nil {
		return nil
	}
	tb, err := table.Decode(entry.Table, entry.DTypes)
	if err != nil || tb.NumRows() == 0 {
		return nil
	}
	return tb
}

// saveToRedis 保存到 Redis
func (c *Cache) saveToRedis(ctx context.Context, datasetID string, tb *table.Table) error {
	encoded, err := tb.Encode()
	if err != nil {
		return err
	}
	data, err := json.Marshal(redisEntry{DTypes: tb.DTypeHints(), Table: encoded})
	if err != nil {
		return err
	}
	return c.redis.Set(ctx, cacheKeyPrefix+datasetID, data, c.ttl).Err()
}
