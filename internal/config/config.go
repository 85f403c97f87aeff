package config

import (
	"fmt"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// AppConfig 聚合运行时配置，全部通过环境变量注入，避免硬编码。
type AppConfig struct {
	HTTPAddr string `env:"HTTP_ADDR" envDefault:":8080"`
	DBPath   string `env:"DB_PATH" envDefault:"book_pay.db"`
	LogLevel string `env:"LOG_LEVEL" envDefault:"info"`

	RedisAddr string `env:"REDIS_ADDR" envDefault:"localhost:6379"`
	RedisDB   int    `env:"REDIS_DB" envDefault:"0"`

	// Kafka 集群地址（逗号分隔）、通知 Topic、消费者组
	KafkaBrokers []string `env:"KAFKA_BROKERS" envDefault:"localhost:9092"`
	KafkaTopic   string   `env:"KAFKA_TOPIC" envDefault:"book-pay-notifications"`
	KafkaGroupID string   `env:"KAFKA_GROUP_ID" envDefault:"book-pay-notify-consumer"`

	// Redis Stream outbox（API 原子入流，Relay 异步转 Kafka）
	NotifyStream   string `env:"NOTIFY_STREAM" envDefault:"book_pay:notify_events"`
	NotifyGroup    string `env:"NOTIFY_GROUP" envDefault:"book-pay-relay-group"`
	NotifyConsumer string `env:"NOTIFY_CONSUMER" envDefault:"book-pay-relay-1"`

	// 对象存储 REST 端
	StorageBaseURL    string `env:"STORAGE_BASE_URL" envDefault:"http://localhost:54321/storage/v1"`
	StorageBucket     string `env:"STORAGE_BUCKET" envDefault:"receipts"`
	StorageServiceKey string `env:"STORAGE_SERVICE_KEY"`

	// 上传接口限流与签名下载链接有效期
	UploadRateLimit  int           `env:"UPLOAD_RATE_LIMIT" envDefault:"10"`
	UploadRateWindow time.Duration `env:"UPLOAD_RATE_WINDOW" envDefault:"1m"`
	SignedURLTTL     time.Duration `env:"SIGNED_URL_TTL" envDefault:"15m"`

	// 孤儿 blob 清扫：间隔为 0 时关闭
	OrphanSweepInterval time.Duration `env:"ORPHAN_SWEEP_INTERVAL" envDefault:"1h"`
	OrphanGracePeriod   time.Duration `env:"ORPHAN_GRACE_PERIOD" envDefault:"24h"`

	// 用户侧 JWT 签名密钥 + 管理端简单令牌
	JWTSecret  string `env:"JWT_SECRET"`
	AdminToken string `env:"ADMIN_TOKEN" envDefault:"dev-admin-token"`

	// SMTP 通知邮件
	SMTPHost   string `env:"SMTP_HOST"`
	SMTPPort   string `env:"SMTP_PORT" envDefault:"587"`
	SMTPUser   string `env:"SMTP_USER"`
	SMTPPass   string `env:"SMTP_PASSWORD"`
	MailFrom   string `env:"MAIL_FROM"`
	AdminEmail string `env:"ADMIN_EMAIL"`
}

// Load 读取并校验配置。本地开发下 .env 可选。
func Load() (AppConfig, error) {
	// .env 不存在不算错误
	_ = godotenv.Load()

	var cfg AppConfig
	if err := env.Parse(&cfg); err != nil {
		return AppConfig{}, fmt.Errorf("parse env: %w", err)
	}

	if cfg.JWTSecret == "" {
		return AppConfig{}, fmt.Errorf("JWT_SECRET must not be empty")
	}
	if cfg.UploadRateLimit <= 0 {
		return AppConfig{}, fmt.Errorf("UPLOAD_RATE_LIMIT must be > 0")
	}
	if cfg.UploadRateWindow <= 0 {
		return AppConfig{}, fmt.Errorf("UPLOAD_RATE_WINDOW must be > 0")
	}
	if cfg.SignedURLTTL <= 0 {
		return AppConfig{}, fmt.Errorf("SIGNED_URL_TTL must be > 0")
	}
	if cfg.OrphanSweepInterval < 0 {
		return AppConfig{}, fmt.Errorf("ORPHAN_SWEEP_INTERVAL must be >= 0")
	}
	if cfg.OrphanSweepInterval > 0 && cfg.OrphanGracePeriod <= 0 {
		return AppConfig{}, fmt.Errorf("ORPHAN_GRACE_PERIOD must be > 0 when sweep is enabled")
	}
	if len(cfg.KafkaBrokers) == 0 {
		return AppConfig{}, fmt.Errorf("KAFKA_BROKERS must not be empty")
	}
	if cfg.KafkaTopic == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_TOPIC must not be empty")
	}
	if cfg.KafkaGroupID == "" {
		return AppConfig{}, fmt.Errorf("KAFKA_GROUP_ID must not be empty")
	}
	if cfg.NotifyStream == "" {
		return AppConfig{}, fmt.Errorf("NOTIFY_STREAM must not be empty")
	}
	if cfg.NotifyGroup == "" {
		return AppConfig{}, fmt.Errorf("NOTIFY_GROUP must not be empty")
	}
	if cfg.NotifyConsumer == "" {
		return AppConfig{}, fmt.Errorf("NOTIFY_CONSUMER must not be empty")
	}
	if cfg.StorageBaseURL == "" {
		return AppConfig{}, fmt.Errorf("STORAGE_BASE_URL must not be empty")
	}
	if cfg.StorageBucket == "" {
		return AppConfig{}, fmt.Errorf("STORAGE_BUCKET must not be empty")
	}

	return cfg, nil
}
