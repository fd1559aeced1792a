package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
type Config struct {
	App      AppConfig
	Server   ServerConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Storage  StorageConfig
	AI       AIConfig
	Analysis AnalysisConfig
	Log      LogConfig
}

// AppConfig 应用配置
type AppConfig struct {
	Name        string
	Environment string
	Version     string
	Debug       bool
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Host         string
	Port         int
	Mode         string
	ReadTimeout  int
	WriteTimeout int
	// 上传文件大小上限（MB）
	MaxUploadMB int
}

// DatabaseConfig 数据库配置
type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	DBName       string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
	MaxLifetime  int
}

// RedisConfig Redis配置
type RedisConfig struct {
	Enabled  bool
	Host     string
	Port     int
	Password string
	DB       int
}

// StorageConfig Blob 存储配置
type StorageConfig struct {
	Type  string // local, minio
	Local LocalStorageConfig
	MinIO MinIOStorageConfig
}

// LocalStorageConfig 本地存储配置
type LocalStorageConfig struct {
	BasePath  string
	URLPrefix string
}

// MinIOStorageConfig MinIO 配置
type MinIOStorageConfig struct {
	Endpoint  string
	AccessKey string
	SecretKey string
	Bucket    string
	UseSSL    bool
	URLPrefix string
}

// AIConfig AI配置
type AIConfig struct {
	Enabled  bool
	Provider string
	OpenAI   OpenAIConfig
	Alibaba  AlibabaConfig
	DeepSeek DeepSeekConfig
}

// OpenAIConfig OpenAI配置
type OpenAIConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int
}

// AlibabaConfig 阿里云配置
type AlibabaConfig struct {
	AccessKeySecret string
	Model           string
	Timeout         int
}

// DeepSeekConfig DeepSeek配置
type DeepSeekConfig struct {
	APIKey  string
	BaseURL string
	Model   string
	Timeout int
}

// AnalysisConfig 分析流水线配置
type AnalysisConfig struct {
	CacheTTL          time.Duration
	CacheSize         int
	MaxWorkers        int
	TaskTimeout       time.Duration
	SampleThreshold   int
	SampleSize        int
	SampleSeed        int64
	MaxCategories     int
	ClassThreshold    int
	InlineThresholdMB int
	ChatHistoryLimit  int
	// 数据集 SQL 查询
	QueryMaxRows int
	QueryTimeout time.Duration
}

// LogConfig 日志配置
type LogConfig struct {
	Level  string
	Format string // json, console
}

var globalConfig *Config

// Load 加载配置
func Load(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	// 环境变量
	v.SetEnvPrefix("NEXT_ANALYTICS")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	globalConfig = &cfg
	return &cfg, nil
}

// Default 返回默认配置（测试与本地开发使用）
func Default() *Config {
	v := viper.New()
	setDefaults(v)

	var cfg Config
	_ = v.Unmarshal(&cfg)
	return &cfg
}

// Get 获取全局配置
func Get() *Config {
	if globalConfig == nil {
		panic("config not loaded")
	}
	return globalConfig
}

// GetDSN 获取数据库连接字符串
func (c *DatabaseConfig) GetDSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// GetAddr 获取服务器地址
func (c *ServerConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// GetAddr 获取 Redis 地址
func (c *RedisConfig) GetAddr() string {
	return fmt.Sprintf("%s:%d", c.Host, c.Port)
}

// InlineThresholdBytes 内联存储阈值（字节）
func (c *AnalysisConfig) InlineThresholdBytes() int {
	return c.InlineThresholdMB * 1024 * 1024
}

func setDefaults(v *viper.Viper) {
	// App
	v.SetDefault("app.name", "next-analytics")
	v.SetDefault("app.environment", "development")
	v.SetDefault("app.version", "1.0.0")
	v.SetDefault("app.debug", true)

	// Server
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.readTimeout", 60)
	v.SetDefault("server.writeTimeout", 300)
	v.SetDefault("server.maxUploadMB", 200)

	// Database
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "postgres")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "next_analytics")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.maxOpenConns", 25)
	v.SetDefault("database.maxIdleConns", 5)
	v.SetDefault("database.maxLifetime", 300)

	// Redis
	v.SetDefault("redis.enabled", false)
	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)
	v.SetDefault("redis.db", 0)

	// Storage
	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local.basePath", "./data/blobs")
	v.SetDefault("storage.local.urlPrefix", "/blobs")
	v.SetDefault("storage.minio.bucket", "next-analytics")

	// AI
	v.SetDefault("ai.enabled", true)
	v.SetDefault("ai.provider", "openai")
	v.SetDefault("ai.openai.baseUrl", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", "gpt-4o-mini")
	v.SetDefault("ai.openai.timeout", 60)

	// Analysis
	v.SetDefault("analysis.cacheTTL", 30*time.Minute)
	v.SetDefault("analysis.cacheSize", 100)
	v.SetDefault("analysis.maxWorkers", 4)
	v.SetDefault("analysis.taskTimeout", 2*time.Minute)
	v.SetDefault("analysis.sampleThreshold", 10000)
	v.SetDefault("analysis.sampleSize", 5000)
	v.SetDefault("analysis.sampleSeed", 42)
	v.SetDefault("analysis.maxCategories", 50)
	v.SetDefault("analysis.classThreshold", 20)
	v.SetDefault("analysis.inlineThresholdMB", 2)
	v.SetDefault("analysis.chatHistoryLimit", 50)
	v.SetDefault("analysis.queryMaxRows", 1000)
	v.SetDefault("analysis.queryTimeout", 30*time.Second)

	// Log
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}
