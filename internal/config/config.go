package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for the relay service.
// The values are read by viper from a config file or environment variables.
type Config struct {
	AppName    string         `mapstructure:"APP_NAME"`
	AppVersion string         `mapstructure:"APP_VERSION"`
	LogLevel   string         `mapstructure:"LOG_LEVEL"`
	Server     ServerConfig   `mapstructure:"SERVER"`
	WhatsApp   WhatsAppConfig `mapstructure:"WHATSAPP"`
	Auth       AuthConfig     `mapstructure:"AUTH"`
	Cache      CacheConfig    `mapstructure:"CACHE"`
	Database   DatabaseConfig `mapstructure:"DATABASE"`
	Redis      RedisConfig    `mapstructure:"REDIS"`
	Kafka      KafkaConfig    `mapstructure:"KAFKA"`
	Storage    StorageConfig  `mapstructure:"STORAGE"`
}

// ServerConfig holds configuration for the HTTP server.
type ServerConfig struct {
	Host           string        `mapstructure:"HOST"`
	Port           string        `mapstructure:"PORT"`
	ReadTimeout    time.Duration `mapstructure:"READ_TIMEOUT"`
	WriteTimeout   time.Duration `mapstructure:"WRITE_TIMEOUT"`
	MaxHeaderBytes int           `mapstructure:"MAX_HEADER_BYTES"`
	CORS           CORSConfig    `mapstructure:"CORS"`
}

// CORSConfig holds configuration for CORS.
type CORSConfig struct {
	AllowedOrigins   []string `mapstructure:"ALLOWED_ORIGINS"`
	AllowedMethods   []string `mapstructure:"ALLOWED_METHODS"`
	AllowedHeaders   []string `mapstructure:"ALLOWED_HEADERS"`
	ExposedHeaders   []string `mapstructure:"EXPOSED_HEADERS"`
	AllowCredentials bool     `mapstructure:"ALLOW_CREDENTIALS"`
	MaxAge           int      `mapstructure:"MAX_AGE"`
}

// WhatsAppConfig holds credentials and endpoints for the WhatsApp Cloud API.
// 这些值允许为空启动；Validate 在每次请求时检查，缺失时以 500 报告
// 而不是在进程启动时直接崩溃。
type WhatsAppConfig struct {
	APIBaseURL    string        `mapstructure:"API_BASE_URL"`
	APIVersion    string        `mapstructure:"API_VERSION"`
	AccessToken   string        `mapstructure:"ACCESS_TOKEN"`
	PhoneNumberID string        `mapstructure:"PHONE_NUMBER_ID"`
	HTTPTimeout   time.Duration `mapstructure:"HTTP_TIMEOUT"`
}

// Validate 检查必需的 Cloud API 凭证是否齐全。
// 缺失时返回 *ConfigError，列出所有缺失项。
func (c WhatsAppConfig) Validate() error {
	var missing []string
	if c.AccessToken == "" {
		missing = append(missing, "WHATSAPP.ACCESS_TOKEN")
	}
	if c.PhoneNumberID == "" {
		missing = append(missing, "WHATSAPP.PHONE_NUMBER_ID")
	}
	if len(missing) > 0 {
		return &ConfigError{Missing: missing}
	}
	return nil
}

// AuthConfig holds configuration for inbound authentication.
type AuthConfig struct {
	// RelaySecret 是 CRM 后端调用本服务时携带的预共享 Bearer 密钥。
	RelaySecret string `mapstructure:"RELAY_SECRET"`
}

// CacheConfig selects the media cache backend.
type CacheConfig struct {
	Type string `mapstructure:"TYPE"` // "postgres" or "redis"
}

// DatabaseConfig holds configuration for the database.
type DatabaseConfig struct {
	Type     string `mapstructure:"TYPE"`
	Host     string `mapstructure:"HOST"`
	Port     int    `mapstructure:"PORT"`
	User     string `mapstructure:"USER"`
	Password string `mapstructure:"PASSWORD"`
	DBName   string `mapstructure:"DB_NAME"`
	SSLMode  string `mapstructure:"SSL_MODE"`
}

// RedisConfig holds configuration for Redis.
type RedisConfig struct {
	Addr     string `mapstructure:"ADDR"`
	Password string `mapstructure:"PASSWORD"`
	DB       int    `mapstructure:"DB"`
}

// KafkaConfig holds configuration for Kafka.
type KafkaConfig struct {
	Brokers        []string `mapstructure:"BROKERS"`
	ClientID       string   `mapstructure:"CLIENT_ID"`
	BatchJobsTopic string   `mapstructure:"BATCH_JOBS_TOPIC"` // 异步批量投递任务
	ConsumerGroup  string   `mapstructure:"CONSUMER_GROUP"`   // relayworker 消费者组
	Protocol       string   `mapstructure:"PROTOCOL"`
}

// StorageConfig holds configuration for the local file store.
type StorageConfig struct {
	LocalPath     string `mapstructure:"LOCAL_PATH"`
	MaxFileSizeMB int64  `mapstructure:"MAX_FILE_SIZE_MB"`
}

// LoadConfig reads configuration from file or environment variables.
func LoadConfig(path string) (config Config, err error) {
	v := viper.New()

	v.SetDefault("APP_NAME", "Relay-Go")
	v.SetDefault("APP_VERSION", "0.0.1")
	v.SetDefault("LOG_LEVEL", "info")

	// Server Defaults
	v.SetDefault("SERVER.HOST", "0.0.0.0")
	v.SetDefault("SERVER.PORT", "8090")
	v.SetDefault("SERVER.READ_TIMEOUT", 30*time.Second)
	v.SetDefault("SERVER.WRITE_TIMEOUT", 5*time.Minute) // 一个批次可能串行做多次上传，放宽写超时
	v.SetDefault("SERVER.MAX_HEADER_BYTES", 1<<20)      // 1 MB
	v.SetDefault("SERVER.CORS.ALLOWED_ORIGINS", []string{"*"})
	v.SetDefault("SERVER.CORS.ALLOWED_METHODS", []string{"GET", "POST", "OPTIONS"})
	v.SetDefault("SERVER.CORS.ALLOWED_HEADERS", []string{"Accept", "Authorization", "Content-Type"})
	v.SetDefault("SERVER.CORS.EXPOSED_HEADERS", []string{"Content-Length"})
	v.SetDefault("SERVER.CORS.ALLOW_CREDENTIALS", false)
	v.SetDefault("SERVER.CORS.MAX_AGE", 300)

	// WhatsApp Defaults
	// ACCESS_TOKEN / PHONE_NUMBER_ID 故意没有默认值，见 WhatsAppConfig.Validate。
	v.SetDefault("WHATSAPP.API_BASE_URL", "https://graph.facebook.com")
	v.SetDefault("WHATSAPP.API_VERSION", "v20.0")
	v.SetDefault("WHATSAPP.HTTP_TIMEOUT", 30*time.Second)

	// Cache Defaults
	v.SetDefault("CACHE.TYPE", "postgres")

	// Database Defaults
	v.SetDefault("DATABASE.TYPE", "postgres")
	v.SetDefault("DATABASE.HOST", "localhost")
	v.SetDefault("DATABASE.PORT", 5432)
	v.SetDefault("DATABASE.USER", "postgres")
	v.SetDefault("DATABASE.PASSWORD", "password")
	v.SetDefault("DATABASE.DB_NAME", "relay_go_db")
	v.SetDefault("DATABASE.SSL_MODE", "disable")

	// Redis Defaults
	v.SetDefault("REDIS.ADDR", "localhost:6379")
	v.SetDefault("REDIS.PASSWORD", "")
	v.SetDefault("REDIS.DB", 0)

	// Kafka Defaults
	v.SetDefault("KAFKA.BROKERS", []string{"localhost:9092"})
	v.SetDefault("KAFKA.CLIENT_ID", "relay-go-client")
	v.SetDefault("KAFKA.BATCH_JOBS_TOPIC", "relay-batch-jobs")
	v.SetDefault("KAFKA.CONSUMER_GROUP", "relay-worker-group")

	// Storage Defaults
	v.SetDefault("STORAGE.LOCAL_PATH", "./uploads")
	v.SetDefault("STORAGE.MAX_FILE_SIZE_MB", 100) // WhatsApp 文档类媒体的上限

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath("./config")
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	v.AutomaticEnv() // Read in environment variables that match
	// Example: WHATSAPP_ACCESS_TOKEN overrides WhatsApp.AccessToken
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err = v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			// Config file was found but another error was produced
			return
		}
		// Config file not found; we have defaults, so this is acceptable
	}

	err = v.Unmarshal(&config)
	return
}
