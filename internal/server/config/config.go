package config

import (
	"errors"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const DevJWTSecret = "dev-secret-change"

type Config struct {
	HTTPAddr         string        `mapstructure:"http_addr"`
	DBDriver         string        `mapstructure:"db_driver"`
	DatabaseDSN      string        `mapstructure:"db_dsn"`
	JWTSecret        string        `mapstructure:"jwt_secret"`
	SessionTTL       time.Duration `mapstructure:"session_ttl"`
	CodeTTL          time.Duration `mapstructure:"code_ttl"`
	SweepInterval    time.Duration `mapstructure:"sweep_interval"`
	ExpiredRetention time.Duration `mapstructure:"expired_retention"`
	MaxRequestBytes  int64         `mapstructure:"max_request_bytes"`
	RedisAddr        string        `mapstructure:"redis_addr"`
	Seed             bool          `mapstructure:"seed"`
	SeedFile         string        `mapstructure:"seed_file"`
	LogLevel         string        `mapstructure:"log_level"`
	LogFormat        string        `mapstructure:"log_format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("http_addr", ":5000")
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("db_dsn", "file:blik_users.db?cache=shared&mode=rwc")
	v.SetDefault("jwt_secret", DevJWTSecret)
	v.SetDefault("session_ttl", 24*time.Hour)
	v.SetDefault("code_ttl", 90*time.Second)
	v.SetDefault("sweep_interval", 30*time.Second)
	v.SetDefault("max_request_bytes", 1<<16)
	v.SetDefault("redis_addr", "")
	v.SetDefault("expired_retention", 24*time.Hour)
	v.SetDefault("seed", true)
	v.SetDefault("seed_file", "")
	v.SetDefault("log_level", "info")
	v.SetDefault("log_format", "json")
}

// Load reads defaults, an optional config.yaml from ./configs or the working
// directory, and BLIK_* environment overrides, in increasing precedence.
func Load() (Config, error) {
	v := viper.New()
	setDefaults(v)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.SetEnvPrefix("BLIK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return Config{}, err
		}
	}
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, err
	}
	if cfg.CodeTTL <= 0 {
		return Config{}, errors.New("code_ttl must be positive")
	}
	return cfg, nil
}

// UsesDevSecret reports whether the built-in development JWT secret is active.
func (c Config) UsesDevSecret() bool {
	return c.JWTSecret == DevJWTSecret
}
