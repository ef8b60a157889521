package config

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Server    ServerConfig
	Backend   BackendConfig
	Database  DatabaseConfig
	Redis     RedisConfig
	Session   SessionConfig
	Catalog   CatalogConfig
	JWT       JWTConfig
	Storage   StorageConfig
	AI        AIConfig
	Tracing   TracingConfig   `mapstructure:"tracing"`
	Broker    BrokerConfig    `mapstructure:"broker"`
	CORS      CORSConfig      `mapstructure:"cors"`
	RateLimit RateLimitConfig `mapstructure:"rate_limit"`

	// 运行时标志（非配置文件，通过命令行参数设置）
	ForceMigrate bool `mapstructure:"-"`
	MigrateOnly  bool `mapstructure:"-"`
}

type ServerConfig struct {
	Port    string
	Mode    string
	LogFile string `mapstructure:"log_file"`
}

// BackendConfig selects the quiz backend collaborator.
// Mode "remote" talks to the external REST API, "local" uses the database.
type BackendConfig struct {
	Mode    string        `mapstructure:"mode"`
	BaseURL string        `mapstructure:"base_url"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DatabaseConfig struct {
	Driver    string
	Host      string
	Port      int
	User      string
	Password  string
	DBName    string
	Charset   string
	ParseTime bool
	SSLMode   string `mapstructure:"ssl_mode"`
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type SessionConfig struct {
	TickInterval time.Duration `mapstructure:"tick_interval"`
	// RecordGrace 附加在测验时长之后的缓存保留时间
	RecordGrace   time.Duration `mapstructure:"record_grace"`
	PayloadTTL    time.Duration `mapstructure:"payload_ttl"`
	SubmitTimeout time.Duration `mapstructure:"submit_timeout"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
}

type CatalogConfig struct {
	PasscodeLength int `mapstructure:"passcode_length"`
	PageSize       int `mapstructure:"page_size"`
}

type JWTConfig struct {
	Secret     string        `mapstructure:"secret"`
	ExpireTime time.Duration `mapstructure:"expire_hours"`
}

type StorageConfig struct {
	Type          string `mapstructure:"type"`
	LocalPath     string `mapstructure:"local_path"`
	MinioEndpoint string `mapstructure:"minio_endpoint"`
	MinioAccessID string `mapstructure:"minio_access_key"`
	MinioSecret   string `mapstructure:"minio_secret_key"`
	MinioBucket   string `mapstructure:"minio_bucket"`
	MinioUseSSL   bool   `mapstructure:"minio_use_ssl"`
	OSSEndpoint   string `mapstructure:"oss_endpoint"`
	OSSAccessKey  string `mapstructure:"oss_access_key"`
	OSSSecretKey  string `mapstructure:"oss_secret_key"`
	OSSBucket     string `mapstructure:"oss_bucket"`
}

type AIConfig struct {
	BaseURL      string        `mapstructure:"base_url"`
	APIKey       string        `mapstructure:"api_key"`
	Model        string        `mapstructure:"model"`
	Timeout      time.Duration `mapstructure:"timeout"`
	MaxQuestions int           `mapstructure:"max_questions"`
}

type TracingConfig struct {
	Enabled           bool   `mapstructure:"enabled"`
	CollectorEndpoint string `mapstructure:"collector_endpoint"`
	ServiceName       string `mapstructure:"service_name"`
}

type BrokerConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	URL      string `mapstructure:"url"`
	Exchange string `mapstructure:"exchange"`
}

type CORSConfig struct {
	AllowedOrigins []string `mapstructure:"allowed_origins"`
}

type RateLimitConfig struct {
	MaxRequests   int `mapstructure:"max_requests"`
	WindowMinutes int `mapstructure:"window_minutes"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.log_file", "logs/app.log")

	v.SetDefault("backend.mode", "local")
	v.SetDefault("backend.timeout", 10*time.Second)

	v.SetDefault("database.driver", "mysql")
	v.SetDefault("database.charset", "utf8mb4")
	v.SetDefault("database.parsetime", true)
	v.SetDefault("database.ssl_mode", "disable")

	v.SetDefault("redis.host", "localhost")
	v.SetDefault("redis.port", 6379)

	v.SetDefault("session.tick_interval", time.Second)
	v.SetDefault("session.record_grace", 24*time.Hour)
	v.SetDefault("session.payload_ttl", 24*time.Hour)
	v.SetDefault("session.submit_timeout", 15*time.Second)
	v.SetDefault("session.key_prefix", "quiz_portal")

	v.SetDefault("catalog.passcode_length", 5)
	v.SetDefault("catalog.page_size", 20)

	v.SetDefault("jwt.expire_hours", 72)

	v.SetDefault("storage.type", "local")
	v.SetDefault("storage.local_path", "uploads")

	v.SetDefault("ai.timeout", 120*time.Second)
	v.SetDefault("ai.max_questions", 50)

	v.SetDefault("tracing.service_name", "quiz-portal")

	v.SetDefault("broker.exchange", "quiz_portal.events")

	v.SetDefault("rate_limit.max_requests", 6000)
	v.SetDefault("rate_limit.window_minutes", 1)
}

// LoadConfig 从 path 目录读取 config.yaml，并叠加环境变量。
// 传入的 v 可以预先绑定命令行参数；为 nil 时使用新的实例。
func LoadConfig(path string, v *viper.Viper) (*Config, error) {
	if v == nil {
		v = viper.New()
	}
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	v.SetEnvPrefix("QUIZ_PORTAL")
	v.AutomaticEnv()

	setDefaults(v)

	// Backend
	v.BindEnv("backend.mode", "BACKEND_MODE")
	v.BindEnv("backend.base_url", "BACKEND_BASE_URL")

	// Database
	v.BindEnv("database.driver", "DATABASE_DRIVER")
	v.BindEnv("database.host", "DATABASE_HOST")
	v.BindEnv("database.port", "DATABASE_PORT")
	v.BindEnv("database.user", "DATABASE_USER")
	v.BindEnv("database.password", "DATABASE_PASSWORD")
	v.BindEnv("database.dbname", "DATABASE_NAME")

	// JWT
	v.BindEnv("jwt.secret", "JWT_SECRET")

	// Redis
	v.BindEnv("redis.host", "REDIS_HOST")
	v.BindEnv("redis.port", "REDIS_PORT")
	v.BindEnv("redis.password", "REDIS_PASSWORD")

	// Server
	v.BindEnv("server.mode", "SERVER_MODE")

	// AI
	v.BindEnv("ai.base_url", "AI_BASE_URL")
	v.BindEnv("ai.api_key", "AI_API_KEY")
	v.BindEnv("ai.model", "AI_MODEL")

	// Storage
	v.BindEnv("storage.type", "STORAGE_TYPE")
	v.BindEnv("storage.minio_endpoint", "MINIO_ENDPOINT")
	v.BindEnv("storage.minio_access_key", "MINIO_ACCESS_KEY")
	v.BindEnv("storage.minio_secret_key", "MINIO_SECRET_KEY")
	v.BindEnv("storage.minio_bucket", "MINIO_BUCKET")
	v.BindEnv("storage.oss_endpoint", "OSS_ENDPOINT")
	v.BindEnv("storage.oss_access_key", "OSS_ACCESS_KEY")
	v.BindEnv("storage.oss_secret_key", "OSS_SECRET_KEY")
	v.BindEnv("storage.oss_bucket", "OSS_BUCKET")

	// Tracing
	v.BindEnv("tracing.enabled", "TRACING_ENABLED")
	v.BindEnv("tracing.collector_endpoint", "TRACING_COLLECTOR_ENDPOINT")

	// Broker
	v.BindEnv("broker.enabled", "BROKER_ENABLED")
	v.BindEnv("broker.url", "BROKER_URL")

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, err
	}

	cfg.JWT.ExpireTime = cfg.JWT.ExpireTime * time.Hour

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	if cfg.Storage.Type == "local" {
		if _, err := os.Stat(cfg.Storage.LocalPath); os.IsNotExist(err) {
			os.MkdirAll(cfg.Storage.LocalPath, 0755)
		}
	}

	return &cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Mode == "release" && len(c.JWT.Secret) < 32 {
		return fmt.Errorf("JWT secret is too short (%d chars), must be at least 32 characters in release mode", len(c.JWT.Secret))
	}

	switch c.Backend.Mode {
	case "local":
	case "remote":
		if c.Backend.BaseURL == "" {
			return fmt.Errorf("backend.base_url is required in remote mode")
		}
	default:
		return fmt.Errorf("unknown backend.mode %q", c.Backend.Mode)
	}

	if c.Catalog.PasscodeLength <= 0 {
		return fmt.Errorf("catalog.passcode_length must be positive")
	}

	return nil
}
