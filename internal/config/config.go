package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"

	pkglogger "github.com/damoang/angple-messenger/pkg/logger"
	"gopkg.in/yaml.v3"
)

// Config 전체 설정
type Config struct {
	Server        ServerConfig        `yaml:"server"`
	Database      DatabaseConfig      `yaml:"database"`
	Redis         RedisConfig         `yaml:"redis"`
	JWT           JWTConfig           `yaml:"jwt"`
	CORS          CORSConfig          `yaml:"cors"`
	Storage       StorageConfig       `yaml:"storage"`
	Elasticsearch ElasticsearchConfig `yaml:"elasticsearch"`
	Messenger     MessengerConfig     `yaml:"messenger"`
}

// ServerConfig 서버 설정
type ServerConfig struct {
	Port int    `yaml:"port"`
	Mode string `yaml:"mode"` // gin mode: debug, release, test
	Env  string `yaml:"env"`
}

// DatabaseConfig 데이터베이스 설정
type DatabaseConfig struct {
	Driver          string `yaml:"driver"` // mysql | sqlite
	Host            string `yaml:"host"`
	Port            int    `yaml:"port"`
	User            string `yaml:"user"`
	Password        string `yaml:"password"`
	DBName          string `yaml:"dbname"`
	Path            string `yaml:"path"` // sqlite file
	MaxIdleConns    int    `yaml:"max_idle_conns"`
	MaxOpenConns    int    `yaml:"max_open_conns"`
	ConnMaxLifetime int    `yaml:"conn_max_lifetime"` // seconds
}

// GetDSN returns the driver DSN
func (d DatabaseConfig) GetDSN() string {
	if d.Driver == "sqlite" {
		return d.Path
	}
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		d.User, d.Password, d.Host, d.Port, d.DBName)
}

// RedisConfig Redis 설정
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

// JWTConfig JWT 설정
type JWTConfig struct {
	Secret    string `yaml:"secret"`
	ExpiresIn int    `yaml:"expires_in"` // seconds
	RefreshIn int    `yaml:"refresh_in"` // seconds
}

// CORSConfig CORS 설정
type CORSConfig struct {
	AllowOrigins string `yaml:"allow_origins"` // comma separated
}

// StorageConfig S3 호환 스토리지 설정
type StorageConfig struct {
	Enabled         bool   `yaml:"enabled"`
	Endpoint        string `yaml:"endpoint"`
	Region          string `yaml:"region"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	CDNURL          string `yaml:"cdn_url"`
	BasePath        string `yaml:"base_path"`
	ForcePathStyle  bool   `yaml:"force_path_style"`
	MaxFileSize     int64  `yaml:"max_file_size"` // bytes
}

// ElasticsearchConfig 검색 인덱스 설정
type ElasticsearchConfig struct {
	Enabled   bool     `yaml:"enabled"`
	Addresses []string `yaml:"addresses"`
	Username  string   `yaml:"username"`
	Password  string   `yaml:"password"`
}

// MessengerConfig 메신저 동작 설정
type MessengerConfig struct {
	MessageWindow int `yaml:"message_window"`
	MaxRetries    int `yaml:"max_retries"` // tree transaction retries
}

// Load reads the YAML file at path (a missing file is fine), applies env
// overrides, then fills defaults.
func Load(path string) (*Config, error) {
	cfg := &Config{}

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("config parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// env + defaults only
	default:
		return nil, fmt.Errorf("config read %s: %w", path, err)
	}

	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	setString(&cfg.Server.Env, "APP_ENV")
	setString(&cfg.Server.Mode, "GIN_MODE")
	setInt(&cfg.Server.Port, "PORT")

	setString(&cfg.Database.Driver, "DB_DRIVER")
	setString(&cfg.Database.Host, "DB_HOST")
	setInt(&cfg.Database.Port, "DB_PORT")
	setString(&cfg.Database.User, "DB_USER")
	setString(&cfg.Database.Password, "DB_PASSWORD")
	setString(&cfg.Database.DBName, "DB_NAME")
	setString(&cfg.Database.Path, "DB_PATH")

	setBool(&cfg.Redis.Enabled, "REDIS_ENABLED")
	setString(&cfg.Redis.Host, "REDIS_HOST")
	setInt(&cfg.Redis.Port, "REDIS_PORT")
	setString(&cfg.Redis.Password, "REDIS_PASSWORD")
	setInt(&cfg.Redis.DB, "REDIS_DB")

	setString(&cfg.JWT.Secret, "JWT_SECRET")
	setString(&cfg.CORS.AllowOrigins, "CORS_ALLOW_ORIGINS")

	setBool(&cfg.Storage.Enabled, "S3_ENABLED")
	setString(&cfg.Storage.Endpoint, "S3_ENDPOINT")
	setString(&cfg.Storage.Region, "S3_REGION")
	setString(&cfg.Storage.AccessKeyID, "S3_ACCESS_KEY_ID")
	setString(&cfg.Storage.SecretAccessKey, "S3_SECRET_ACCESS_KEY")
	setString(&cfg.Storage.Bucket, "S3_BUCKET")
	setString(&cfg.Storage.CDNURL, "S3_CDN_URL")

	setBool(&cfg.Elasticsearch.Enabled, "ES_ENABLED")
	if v := os.Getenv("ES_ADDRESSES"); v != "" {
		cfg.Elasticsearch.Addresses = splitAndTrim(v)
	}
	setString(&cfg.Elasticsearch.Username, "ES_USERNAME")
	setString(&cfg.Elasticsearch.Password, "ES_PASSWORD")
}

func applyDefaults(cfg *Config) {
	if cfg.Server.Port == 0 {
		cfg.Server.Port = 8082
	}
	if cfg.Server.Env == "" {
		cfg.Server.Env = "local"
	}
	if cfg.Server.Mode == "" {
		cfg.Server.Mode = "debug"
	}
	if cfg.Database.Driver == "" {
		cfg.Database.Driver = "sqlite"
	}
	if cfg.Database.Driver == "sqlite" && cfg.Database.Path == "" {
		cfg.Database.Path = "messenger.db"
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 3306
	}
	if cfg.Database.MaxIdleConns == 0 {
		cfg.Database.MaxIdleConns = 10
	}
	if cfg.Database.MaxOpenConns == 0 {
		cfg.Database.MaxOpenConns = 50
	}
	if cfg.Database.ConnMaxLifetime == 0 {
		cfg.Database.ConnMaxLifetime = 300
	}
	if cfg.Redis.Host == "" {
		cfg.Redis.Host = "localhost"
	}
	if cfg.Redis.Port == 0 {
		cfg.Redis.Port = 6379
	}
	if cfg.Redis.PoolSize == 0 {
		cfg.Redis.PoolSize = 10
	}
	if cfg.JWT.ExpiresIn == 0 {
		cfg.JWT.ExpiresIn = 900
	}
	if cfg.JWT.RefreshIn == 0 {
		cfg.JWT.RefreshIn = 604800
	}
	if cfg.Storage.Region == "" {
		cfg.Storage.Region = "auto"
	}
	if cfg.Messenger.MessageWindow == 0 {
		cfg.Messenger.MessageWindow = 50
	}
	if cfg.Messenger.MaxRetries == 0 {
		cfg.Messenger.MaxRetries = 10
	}
}

// IsDevelopment reports a local or development environment
func (c *Config) IsDevelopment() bool {
	switch c.Server.Env {
	case "local", "dev", "development":
		return true
	}
	return false
}

// AllowOrigins splits the CORS origin list
func (c *Config) AllowOrigins() []string {
	origins := splitAndTrim(c.CORS.AllowOrigins)
	if len(origins) == 0 {
		return []string{"http://localhost:3000"}
	}
	return origins
}

// LogResolved logs the effective settings without secrets
func LogResolved(cfg *Config) {
	pkglogger.GetLogger().Info().
		Str("env", cfg.Server.Env).
		Int("port", cfg.Server.Port).
		Str("db_driver", cfg.Database.Driver).
		Bool("redis", cfg.Redis.Enabled).
		Bool("storage", cfg.Storage.Enabled).
		Bool("elasticsearch", cfg.Elasticsearch.Enabled).
		Bool("jwt_secret_set", cfg.JWT.Secret != "").
		Msg("config resolved")
}

func setString(dst *string, key string) {
	if v := os.Getenv(key); v != "" {
		*dst = v
	}
}

func setInt(dst *int, key string) {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			*dst = n
		}
	}
}

func setBool(dst *bool, key string) {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			*dst = b
		}
	}
}

func splitAndTrim(s string) []string {
	parts := []string{}
	for _, p := range strings.Split(s, ",") {
		if p = strings.TrimSpace(p); p != "" {
			parts = append(parts, p)
		}
	}
	return parts
}
