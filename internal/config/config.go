package config

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

// Config is the service configuration. Values come from the environment,
// optionally layered over a config file.
type Config struct {
	Port                string
	AppEnv              string
	DBDriver            string
	DatabaseDSN         string
	RedisAddr           string
	QuestionServiceURL  string
	JWTSecret           string
	AllowedOrigins      []string
	ExpirySweepSchedule string
}

// Development reports whether verbose development logging is wanted.
func (c *Config) Development() bool {
	return c.AppEnv == EnvDevelopment
}

// Load reads configuration. configFile may be empty; when set it must exist
// and may be any format viper understands (yaml, json, toml, env).
func Load(configFile string) (*Config, error) {
	v := viper.New()

	v.SetDefault("port", "8080")
	v.SetDefault("app_env", EnvProduction)
	v.SetDefault("db_driver", "sqlite")
	v.SetDefault("database_dsn", "file:interview.db?cache=shared")
	v.SetDefault("redis_addr", "")
	v.SetDefault("question_service_url", "http://question:8080")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("allowed_origins", "*")
	v.SetDefault("expiry_sweep_schedule", "@every 5s")

	for _, key := range []string{
		"port", "app_env", "db_driver", "database_dsn", "redis_addr",
		"question_service_url", "jwt_secret", "allowed_origins", "expiry_sweep_schedule",
	} {
		if err := v.BindEnv(key, strings.ToUpper(key)); err != nil {
			return nil, fmt.Errorf("bind %s: %w", key, err)
		}
	}

	if configFile != "" {
		v.SetConfigFile(configFile)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config file: %w", err)
		}
	}

	cfg := &Config{
		Port:                v.GetString("port"),
		AppEnv:              strings.ToLower(v.GetString("app_env")),
		DBDriver:            strings.ToLower(v.GetString("db_driver")),
		DatabaseDSN:         v.GetString("database_dsn"),
		RedisAddr:           v.GetString("redis_addr"),
		QuestionServiceURL:  strings.TrimRight(v.GetString("question_service_url"), "/"),
		JWTSecret:           v.GetString("jwt_secret"),
		AllowedOrigins:      splitOrigins(v.GetString("allowed_origins")),
		ExpirySweepSchedule: v.GetString("expiry_sweep_schedule"),
	}
	if err := validateConfig(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

func validateConfig(cfg *Config) error {
	if cfg.JWTSecret == "" {
		return errors.New("JWT_SECRET is required")
	}
	if cfg.DBDriver != "postgres" && cfg.DBDriver != "sqlite" {
		return errors.New("unsupported DB_DRIVER: " + cfg.DBDriver + ". Currently supported: postgres, sqlite")
	}
	if cfg.DatabaseDSN == "" {
		return errors.New("DATABASE_DSN is required")
	}
	if cfg.Port == "" {
		return errors.New("PORT is required")
	}
	if cfg.ExpirySweepSchedule == "" {
		return errors.New("EXPIRY_SWEEP_SCHEDULE is required")
	}
	return nil
}

func splitOrigins(raw string) []string {
	origins := []string{}
	for _, o := range strings.Split(raw, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}
