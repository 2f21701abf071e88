package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"radiochild/odatatable"
)

// Config is the CLI configuration read from odatatable.yaml and ODATATABLE_* variables.
type Config struct {
	Table  TableConfig  `mapstructure:"table"`
	Query  QueryConfig  `mapstructure:"query"`
	Cache  CacheConfig  `mapstructure:"cache"`
	HTTP   HTTPConfig   `mapstructure:"http"`
	Log    LogConfig    `mapstructure:"log"`
	Output OutputConfig `mapstructure:"output"`
}

type TableConfig struct {
	PageSize int `mapstructure:"page_size"`
}

type QueryConfig struct {
	IncludeNavigation bool `mapstructure:"include_navigation"`
	SelectAll         bool `mapstructure:"select_all"`
	NavigationDepth   int  `mapstructure:"navigation_depth"`
}

type CacheConfig struct {
	Backend     string        `mapstructure:"backend"`
	Prefix      string        `mapstructure:"prefix"`
	DataTTL     time.Duration `mapstructure:"data_ttl"`
	MetadataTTL time.Duration `mapstructure:"metadata_ttl"`
	Redis       RedisConfig   `mapstructure:"redis"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type HTTPConfig struct {
	RetryMax int           `mapstructure:"retry_max"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type LogConfig struct {
	Level string `mapstructure:"level"`
}

type OutputConfig struct {
	Format string `mapstructure:"format"`
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("table.page_size", odatatable.DefaultPageSize)
	v.SetDefault("query.include_navigation", true)
	v.SetDefault("query.select_all", false)
	v.SetDefault("query.navigation_depth", odatatable.DefaultNavigationDepth)
	v.SetDefault("cache.backend", "memory")
	v.SetDefault("cache.prefix", "odatatable:")
	v.SetDefault("cache.data_ttl", odatatable.DefaultStaleTime)
	v.SetDefault("cache.metadata_ttl", odatatable.DefaultMetadataStaleTime)
	v.SetDefault("cache.redis.addr", "localhost:6379")
	v.SetDefault("cache.redis.password", "")
	v.SetDefault("cache.redis.db", 0)
	v.SetDefault("http.retry_max", 3)
	v.SetDefault("http.timeout", 30*time.Second)
	v.SetDefault("log.level", "info")
	v.SetDefault("output.format", "text")
}

// LoadConfig reads path when given, otherwise an optional odatatable.yaml
// in the working directory.
func LoadConfig(path string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.SetConfigName("odatatable")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
	}

	v.SetEnvPrefix("ODATATABLE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok || path != "" {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var config Config
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := validateConfig(&config); err != nil {
		return nil, err
	}
	return &config, nil
}

func validateConfig(cfg *Config) error {
	switch cfg.Cache.Backend {
	case "memory", "redis":
	default:
		return fmt.Errorf("cache.backend must be memory or redis, got: %s", cfg.Cache.Backend)
	}
	if _, err := odatatable.ParseOutputType(cfg.Output.Format); err != nil {
		return fmt.Errorf("output.format: %w", err)
	}
	if cfg.Table.PageSize < 1 {
		return fmt.Errorf("table.page_size must be positive, got: %d", cfg.Table.PageSize)
	}
	if cfg.Query.NavigationDepth < 0 {
		return fmt.Errorf("query.navigation_depth must not be negative, got: %d", cfg.Query.NavigationDepth)
	}
	return nil
}
