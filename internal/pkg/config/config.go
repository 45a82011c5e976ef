package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config 全局配置结构体
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	Redis     RedisConfig     `mapstructure:"redis"`
	Auth      AuthConfig      `mapstructure:"auth"`
	App       AppConfig       `mapstructure:"app"`
	Log       LogConfig       `mapstructure:"log"`
	Coupon    CouponConfig    `mapstructure:"coupon"`
	Archive   ArchiveConfig   `mapstructure:"archive"`
	Push      PushConfig      `mapstructure:"push"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
	CORSOrigins     []string      `mapstructure:"cors_origins"`
}

type DatabaseConfig struct {
	Host         string `mapstructure:"host"`
	User         string `mapstructure:"user"`
	Password     string `mapstructure:"password"`
	DBName       string `mapstructure:"dbname"`
	Port         string `mapstructure:"port"`
	SSLMode      string `mapstructure:"sslmode"`
	TimeZone     string `mapstructure:"timezone"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	LogSQL       bool   `mapstructure:"log_sql"`
}

// DSN gorm 使用的 key=value 连接串
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s TimeZone=%s",
		c.Host, c.User, c.Password, c.DBName, c.Port, c.SSLMode, c.TimeZone)
}

// URL golang-migrate 使用的 URL 连接串
func (c DatabaseConfig) URL() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%s/%s?sslmode=%s",
		c.User, c.Password, c.Host, c.Port, c.DBName, c.SSLMode)
}

type RedisConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// AuthConfig 外部身份提供方 (Keycloak 等) 的令牌校验配置
type AuthConfig struct {
	Issuer       string        `mapstructure:"issuer"`
	Audience     string        `mapstructure:"audience"`
	ClientID     string        `mapstructure:"client_id"`
	PublicKeyPEM string        `mapstructure:"public_key_pem"`
	HMACSecret   string        `mapstructure:"hmac_secret"`
	CacheTTL     time.Duration `mapstructure:"cache_ttl"`
}

type AppConfig struct {
	Env string `mapstructure:"env"`
}

type LogConfig struct {
	Level    string `mapstructure:"level"`
	Encoding string `mapstructure:"encoding"`
}

// CouponConfig 优惠券生成策略
type CouponConfig struct {
	DefaultDiscountType  string  `mapstructure:"default_discount_type"`
	DefaultDiscountValue float64 `mapstructure:"default_discount_value"`
	MaxGenerate          int     `mapstructure:"max_generate"`
	CodeSuffixLen        int     `mapstructure:"code_suffix_len"`
}

// ArchiveConfig 导入文件归档
type ArchiveConfig struct {
	Provider string    `mapstructure:"provider"` // none | oss | s3
	Prefix   string    `mapstructure:"prefix"`
	OSS      OSSConfig `mapstructure:"oss"`
	S3       S3Config  `mapstructure:"s3"`
}

type OSSConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	BucketName      string `mapstructure:"bucket_name"`
}

type S3Config struct {
	Endpoint        string        `mapstructure:"endpoint"`
	Region          string        `mapstructure:"region"`
	AccessKeyID     string        `mapstructure:"access_key_id"`
	AccessKeySecret string        `mapstructure:"access_key_secret"`
	BucketName      string        `mapstructure:"bucket_name"`
	PublicURL       string        `mapstructure:"public_url"`
	UploadTimeout   time.Duration `mapstructure:"upload_timeout"`
}

type PushConfig struct {
	AccessKeyID     string `mapstructure:"access_key_id"`
	AccessKeySecret string `mapstructure:"access_key_secret"`
	AppKey          int64  `mapstructure:"app_key"`
	RegionID        string `mapstructure:"region_id"` // e.g., "cn-hangzhou"
	Workers         int    `mapstructure:"workers"`
	QueueSize       int    `mapstructure:"queue_size"`
}

type RateLimitConfig struct {
	RPS   float64 `mapstructure:"rps"`
	Burst int     `mapstructure:"burst"`
}

var GlobalConfig Config

// IsProduction 是否生产环境
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.App.Env, "prod") || strings.EqualFold(c.App.Env, "production")
}

// Validate 验证配置
func (c *Config) Validate() error {
	// 数据库配置验证
	if c.Database.Host == "" || c.Database.User == "" || c.Database.DBName == "" {
		return errors.New("database configuration is incomplete")
	}

	// 令牌校验至少需要一种密钥
	if c.Auth.PublicKeyPEM == "" && c.Auth.HMACSecret == "" {
		return errors.New("auth requires public_key_pem or hmac_secret")
	}
	if c.Auth.HMACSecret != "" && len(c.Auth.HMACSecret) < 32 {
		return errors.New("auth hmac_secret should be at least 32 characters")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return errors.New("redis address is required")
	}

	switch c.Archive.Provider {
	case "", "none", "oss", "s3":
	default:
		return fmt.Errorf("unknown archive provider %q", c.Archive.Provider)
	}

	switch c.Coupon.DefaultDiscountType {
	case "percentage", "fixed":
	default:
		return fmt.Errorf("coupon default_discount_type must be percentage or fixed, got %q", c.Coupon.DefaultDiscountType)
	}
	if c.Coupon.DefaultDiscountValue < 0 {
		return errors.New("coupon default_discount_value must not be negative")
	}
	if c.Coupon.MaxGenerate <= 0 {
		return errors.New("coupon max_generate must be positive")
	}

	return nil
}

var envOnlyKeys = []string{
	"database.host", "database.user", "database.password", "database.dbname", "database.log_sql",
	"redis.password",
	"auth.issuer", "auth.audience", "auth.client_id", "auth.public_key_pem", "auth.hmac_secret",
	"archive.oss.endpoint", "archive.oss.access_key_id", "archive.oss.access_key_secret", "archive.oss.bucket_name",
	"archive.s3.endpoint", "archive.s3.access_key_id", "archive.s3.access_key_secret", "archive.s3.bucket_name", "archive.s3.public_url",
	"push.access_key_id", "push.access_key_secret", "push.app_key", "push.region_id",
}

// setDefaults 设置默认值
func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.read_timeout", 15*time.Second)
	v.SetDefault("server.write_timeout", 30*time.Second)
	v.SetDefault("server.shutdown_timeout", 10*time.Second)
	v.SetDefault("server.cors_origins", []string{"*"})
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.timezone", "UTC")
	v.SetDefault("database.max_open_conns", 50)
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("redis.enabled", true)
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("redis.db", 0)
	v.SetDefault("auth.cache_ttl", 5*time.Minute)
	v.SetDefault("app.env", "dev")
	v.SetDefault("log.level", "info")
	v.SetDefault("coupon.default_discount_type", "percentage")
	v.SetDefault("coupon.default_discount_value", 10.0)
	v.SetDefault("coupon.max_generate", 10000)
	v.SetDefault("coupon.code_suffix_len", 8)
	v.SetDefault("archive.provider", "none")
	v.SetDefault("archive.prefix", "coupon-imports")
	v.SetDefault("archive.s3.region", "auto")
	v.SetDefault("archive.s3.upload_timeout", 30*time.Second)
	v.SetDefault("push.workers", 4)
	v.SetDefault("push.queue_size", 1024)
	v.SetDefault("rate_limit.rps", 200)
	v.SetDefault("rate_limit.burst", 400)
}

// Load 加载配置：.env -> 配置文件 -> 环境变量
func Load() (*Config, error) {
	// .env 可选，不存在时忽略
	_ = godotenv.Load()

	// 获取环境变量，默认为dev
	env := os.Getenv("APP_ENV")
	if env == "" {
		env = "dev"
	}

	// 根据环境选择配置文件
	configName := "config"
	if env != "dev" {
		configName = "config." + env
	}

	v := viper.New()
	v.SetConfigName(configName)
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	setDefaults(v)

	// 绑定环境变量: DATABASE_HOST -> database.host
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 没有默认值的键需要显式绑定，否则 Unmarshal 读不到环境变量
	for _, key := range envOnlyKeys {
		_ = v.BindEnv(key)
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if cfg.App.Env == "" {
		cfg.App.Env = env
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &cfg, nil
}

// LoadConfig 加载配置到 GlobalConfig
func LoadConfig() error {
	cfg, err := Load()
	if err != nil {
		return err
	}
	GlobalConfig = *cfg
	return nil
}
