package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

type Config struct {
	Environment string         `mapstructure:"environment"`
	LogLevel    string         `mapstructure:"log_level"`
	Cache       CacheConfig    `mapstructure:"cache"`
	Redis       RedisConfig    `mapstructure:"redis"`
	Database    DatabaseConfig `mapstructure:"database"`
	Analysis    AnalysisConfig `mapstructure:"analysis"`
}

type CacheConfig struct {
	TTL           string `mapstructure:"ttl"`
	MemoryEnabled bool   `mapstructure:"memory_enabled"`
	RedisEnabled  bool   `mapstructure:"redis_enabled"`
}

type RedisConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

type DatabaseConfig struct {
	Host      string `mapstructure:"host"`
	Port      int    `mapstructure:"port"`
	User      string `mapstructure:"user"`
	Password  string `mapstructure:"password"`
	DBName    string `mapstructure:"dbname"`
	SSLMode   string `mapstructure:"sslmode"`
	ZoneTable string `mapstructure:"zone_table"`
}

type AnalysisConfig struct {
	MinDuration          int `mapstructure:"min_duration"`
	ClusterCount         int `mapstructure:"cluster_count"`
	RegressionMinSamples int `mapstructure:"regression_min_samples"`
}

func Load() (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	viper.AddConfigPath("./configs")
	viper.AddConfigPath(".")

	setDefaults()

	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file not found, use defaults and environment variables
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, err
		}
	}

	var config Config
	if err := viper.Unmarshal(&config); err != nil {
		return nil, err
	}

	config.Environment = strings.ToLower(config.Environment)

	if config.Cache.TTL != "" {
		if _, err := time.ParseDuration(config.Cache.TTL); err != nil {
			return nil, fmt.Errorf("invalid cache TTL: %w", err)
		}
	}
	if config.Analysis.MinDuration < 1 {
		return nil, fmt.Errorf("analysis min_duration must be >= 1, got %d", config.Analysis.MinDuration)
	}
	if config.Analysis.ClusterCount < 1 {
		return nil, fmt.Errorf("analysis cluster_count must be >= 1, got %d", config.Analysis.ClusterCount)
	}

	return &config, nil
}

// CacheTTL returns the parsed cache TTL. Load has already validated it.
func (c *Config) CacheTTL() time.Duration {
	d, err := time.ParseDuration(c.Cache.TTL)
	if err != nil {
		return time.Hour
	}
	return d
}

// RedisAddr returns the host:port address of the Redis cache tier.
func (c *Config) RedisAddr() string {
	return fmt.Sprintf("%s:%d", c.Redis.Host, c.Redis.Port)
}

// DatabaseDSN returns the connection string for the zone source database.
func (c *Config) DatabaseDSN() string {
	return c.Database.DSN()
}

// DSN renders the pgx connection string for this database.
func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode)
}

func setDefaults() {
	viper.SetDefault("environment", "development")
	viper.SetDefault("log_level", "info")

	// Cache
	viper.SetDefault("cache.ttl", "1h")
	viper.SetDefault("cache.memory_enabled", true)
	viper.SetDefault("cache.redis_enabled", false)

	// Redis
	viper.SetDefault("redis.host", "localhost")
	viper.SetDefault("redis.port", 6379)
	viper.SetDefault("redis.password", "")
	viper.SetDefault("redis.db", 0)

	// Database (preloaded zone source)
	viper.SetDefault("database.host", "localhost")
	viper.SetDefault("database.port", 5432)
	viper.SetDefault("database.user", "postgres")
	viper.SetDefault("database.password", "postgres")
	viper.SetDefault("database.dbname", "zonekit")
	viper.SetDefault("database.sslmode", "disable")
	viper.SetDefault("database.zone_table", "external_zones")

	// Analysis
	viper.SetDefault("analysis.min_duration", 1)
	viper.SetDefault("analysis.cluster_count", 3)
	viper.SetDefault("analysis.regression_min_samples", 10)
}
