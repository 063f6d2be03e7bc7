package config

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	HTTPPort        string
	GinMode         string
	DBDriver        string
	DBHost          string
	DBPort          string
	DBUser          string
	DBPassword      string
	DBName          string
	DBPath          string
	RedisHost       string
	RedisPort       string
	RedisPassword   string
	SessionStore    string
	SessionSecret   string
	CacheEnabled    bool
	CacheTTL        time.Duration
	LogLevel        string
	LogFormat       string
	OpenAIAPIKey    string
	ShutdownTimeout time.Duration
}

// RedisAddr returns host:port of the Redis server used for sessions and caching.
func (c *Config) RedisAddr() string {
	return c.RedisHost + ":" + c.RedisPort
}

// Load reads configs/config.yaml when present and lets environment variables
// override every key.
func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath("./configs")
	v.AddConfigPath(".")
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("error reading config file: %w", err)
		}
	}

	cfg := &Config{
		HTTPPort:        v.GetString("HTTP_PORT"),
		GinMode:         v.GetString("GIN_MODE"),
		DBDriver:        v.GetString("DB_DRIVER"),
		DBHost:          v.GetString("DB_HOST"),
		DBPort:          v.GetString("DB_PORT"),
		DBUser:          v.GetString("DB_USER"),
		DBPassword:      v.GetString("DB_PASSWORD"),
		DBName:          v.GetString("DB_NAME"),
		DBPath:          v.GetString("DB_PATH"),
		RedisHost:       v.GetString("REDIS_HOST"),
		RedisPort:       v.GetString("REDIS_PORT"),
		RedisPassword:   v.GetString("REDIS_PASSWORD"),
		SessionStore:    v.GetString("SESSION_STORE"),
		SessionSecret:   v.GetString("SESSION_SECRET"),
		CacheEnabled:    v.GetBool("CACHE_ENABLED"),
		CacheTTL:        v.GetDuration("CACHE_TTL"),
		LogLevel:        v.GetString("LOG_LEVEL"),
		LogFormat:       v.GetString("LOG_FORMAT"),
		OpenAIAPIKey:    v.GetString("OPENAI_API_KEY"),
		ShutdownTimeout: v.GetDuration("SHUTDOWN_TIMEOUT"),
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("HTTP_PORT", "8080")
	v.SetDefault("GIN_MODE", "debug")
	v.SetDefault("DB_DRIVER", "sqlite")
	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", "3306")
	v.SetDefault("DB_USER", "taskuser")
	v.SetDefault("DB_PASSWORD", "taskpassword")
	v.SetDefault("DB_NAME", "tasks")
	v.SetDefault("DB_PATH", "tasks.db")
	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", "6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("SESSION_STORE", "cookie")
	v.SetDefault("SESSION_SECRET", "default-secret-key-change-me")
	v.SetDefault("CACHE_ENABLED", false)
	v.SetDefault("CACHE_TTL", 5*time.Minute)
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "text")
	v.SetDefault("OPENAI_API_KEY", "")
	v.SetDefault("SHUTDOWN_TIMEOUT", 30*time.Second)
}

func (c *Config) validate() error {
	switch c.DBDriver {
	case "sqlite", "mysql", "postgres":
	default:
		return fmt.Errorf("unsupported DB_DRIVER %q", c.DBDriver)
	}

	switch c.SessionStore {
	case "cookie", "redis":
	default:
		return fmt.Errorf("unsupported SESSION_STORE %q", c.SessionStore)
	}

	return nil
}
