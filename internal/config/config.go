package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config 应用配置
// 读取顺序：默认值 < config.yaml < 环境变量 (server.port → SERVER_PORT)
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	JWT      JWTConfig      `mapstructure:"jwt"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Geocoder GeocoderConfig `mapstructure:"geocoder"`
	Wizard   WizardConfig   `mapstructure:"wizard"`
	Task     TaskConfig     `mapstructure:"task"`
	Log      LogConfig      `mapstructure:"log"`
}

type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"` // gin 模式: debug | release | test
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

type DatabaseConfig struct {
	DSN          string `mapstructure:"dsn"`
	LogLevel     string `mapstructure:"log_level"` // silent | error | warn | info
	MaxIdleConns int    `mapstructure:"max_idle_conns"`
	MaxOpenConns int    `mapstructure:"max_open_conns"`
}

type JWTConfig struct {
	Secret string        `mapstructure:"secret"`
	TTL    time.Duration `mapstructure:"ttl"`
	Issuer string        `mapstructure:"issuer"`
}

type StorageConfig struct {
	Provider    string `mapstructure:"provider"` // s3 | local
	Bucket      string `mapstructure:"bucket"`
	Region      string `mapstructure:"region"`
	AccessKey   string `mapstructure:"access_key"`
	SecretKey   string `mapstructure:"secret_key"`
	Endpoint    string `mapstructure:"endpoint"`
	CDNDomain   string `mapstructure:"cdn_domain"`
	BasePath    string `mapstructure:"base_path"`
	Concurrency int    `mapstructure:"concurrency"`
}

type GeocoderConfig struct {
	Enabled   bool          `mapstructure:"enabled"`
	BaseURL   string        `mapstructure:"base_url"`
	UserAgent string        `mapstructure:"user_agent"`
	Timeout   time.Duration `mapstructure:"timeout"`
}

type WizardConfig struct {
	SubmitTimeout time.Duration `mapstructure:"submit_timeout"` // 附属记录同步超时
	SessionTTL    time.Duration `mapstructure:"session_ttl"`
}

type TaskConfig struct {
	ExpiryEnabled  bool   `mapstructure:"expiry_enabled"`
	ExpirySpec     string `mapstructure:"expiry_spec"`
	CleanupEnabled bool   `mapstructure:"cleanup_enabled"`
	CleanupSpec    string `mapstructure:"cleanup_spec"`
}

type LogConfig struct {
	Env   string `mapstructure:"env"` // development | production
	Level string `mapstructure:"level"`
}

// ==================== 加载 ====================

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.shutdown_timeout", 30*time.Second)

	v.SetDefault("database.dsn", "host=localhost user=postgres password=postgres dbname=listing_wizard port=5432 sslmode=disable")
	v.SetDefault("database.log_level", "warn")
	v.SetDefault("database.max_idle_conns", 10)
	v.SetDefault("database.max_open_conns", 100)

	v.SetDefault("jwt.secret", "listing-wizard-secret-key-change-in-production")
	v.SetDefault("jwt.ttl", 2*time.Hour)
	v.SetDefault("jwt.issuer", "listing-wizard")

	v.SetDefault("storage.provider", "local")
	v.SetDefault("storage.base_path", "uploads")
	v.SetDefault("storage.endpoint", "http://localhost:8080/uploads")
	v.SetDefault("storage.concurrency", 4)

	v.SetDefault("geocoder.enabled", true)
	v.SetDefault("geocoder.base_url", "https://nominatim.openstreetmap.org")
	v.SetDefault("geocoder.user_agent", "listing-wizard/1.0")
	v.SetDefault("geocoder.timeout", 5*time.Second)

	v.SetDefault("wizard.submit_timeout", 15*time.Second)
	v.SetDefault("wizard.session_ttl", 2*time.Hour)

	v.SetDefault("task.expiry_enabled", true)
	v.SetDefault("task.expiry_spec", "0 0/10 * * * *")
	v.SetDefault("task.cleanup_enabled", true)
	v.SetDefault("task.cleanup_spec", "0 0/5 * * * *")

	v.SetDefault("log.env", "development")
	v.SetDefault("log.level", "debug")
}

// Load 加载配置，configPath 为空时在当前目录查找 config.yaml
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		// 未指定路径且文件不存在时只用默认值和环境变量
		if configPath != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("解析配置失败: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate 校验配置
func (c *Config) Validate() error {
	if c.Database.DSN == "" {
		return errors.New("database.dsn 不能为空")
	}
	if c.JWT.Secret == "" {
		return errors.New("jwt.secret 不能为空")
	}
	switch c.Storage.Provider {
	case "s3":
		if c.Storage.Bucket == "" {
			return errors.New("storage.bucket 不能为空")
		}
	case "local":
	default:
		return fmt.Errorf("不支持的存储类型: %s", c.Storage.Provider)
	}
	if c.Wizard.SubmitTimeout <= 0 {
		return errors.New("wizard.submit_timeout 必须大于 0")
	}
	return nil
}

// IsProduction 是否生产环境
func (c *Config) IsProduction() bool {
	return c.Log.Env == "production"
}
