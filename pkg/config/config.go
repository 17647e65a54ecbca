package config

import (
	"errors"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	Env       string
	Port      int
	APIPrefix string

	Database    DatabaseConfig
	Redis       RedisConfig
	JWT         JWTConfig
	CORS        CORSConfig
	Log         LogConfig
	Leaderboard LeaderboardConfig
	Reconcile   ReconcileConfig
	AwardRetry  AwardRetryConfig
	Internal    InternalConfig
}

type DatabaseConfig struct {
	Host         string
	Port         int
	User         string
	Password     string
	Name         string
	SSLMode      string
	MaxOpenConns int
	MaxIdleConns int
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
}

type JWTConfig struct {
	Secret string
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// LeaderboardConfig governs leaderboard caching and paging.
type LeaderboardConfig struct {
	CacheEnabled bool
	CacheTTL     time.Duration
	DefaultLimit int
}

// ReconcileConfig controls the scheduled drift audit.
type ReconcileConfig struct {
	Enabled     bool
	Interval    time.Duration
	AutoRepair  bool
	RepairGrace time.Duration
}

// AwardRetryConfig sizes the in-memory retry queue for failed awards.
type AwardRetryConfig struct {
	Workers    int
	BufferSize int
	MaxRetries int
	RetryDelay time.Duration
}

// InternalConfig guards service-to-service endpoints.
type InternalConfig struct {
	Token string
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	v := viper.New()
	v.SetConfigFile(".env")
	v.SetConfigType("env")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) && !isMissingFile(err) {
			return nil, err
		}
	}

	return fromViper(v), nil
}

func fromViper(v *viper.Viper) *Config {
	cfg := &Config{}

	cfg.Env = v.GetString("ENV")
	cfg.Port = v.GetInt("PORT")
	cfg.APIPrefix = v.GetString("API_PREFIX")

	cfg.Database = DatabaseConfig{
		Host:         v.GetString("DB_HOST"),
		Port:         v.GetInt("DB_PORT"),
		User:         v.GetString("DB_USER"),
		Password:     v.GetString("DB_PASSWORD"),
		Name:         v.GetString("DB_NAME"),
		SSLMode:      v.GetString("DB_SSL_MODE"),
		MaxOpenConns: v.GetInt("DB_MAX_OPEN_CONNS"),
		MaxIdleConns: v.GetInt("DB_MAX_IDLE_CONNS"),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
	}

	cfg.JWT = JWTConfig{Secret: v.GetString("JWT_SECRET")}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	limit := v.GetInt("LEADERBOARD_DEFAULT_LIMIT")
	if limit <= 0 {
		limit = 50
	}
	cfg.Leaderboard = LeaderboardConfig{
		CacheEnabled: v.GetBool("LEADERBOARD_CACHE_ENABLED"),
		CacheTTL:     parseDuration(v.GetString("LEADERBOARD_CACHE_TTL"), time.Minute),
		DefaultLimit: limit,
	}

	cfg.Reconcile = ReconcileConfig{
		Enabled:     v.GetBool("RECONCILE_ENABLED"),
		Interval:    parseDuration(v.GetString("RECONCILE_INTERVAL"), time.Hour),
		AutoRepair:  v.GetBool("RECONCILE_AUTO_REPAIR"),
		RepairGrace: parseDuration(v.GetString("RECONCILE_REPAIR_GRACE"), 30*time.Second),
	}

	cfg.AwardRetry = AwardRetryConfig{
		Workers:    v.GetInt("AWARD_RETRY_WORKERS"),
		BufferSize: v.GetInt("AWARD_RETRY_BUFFER"),
		MaxRetries: v.GetInt("AWARD_RETRY_MAX"),
		RetryDelay: parseDuration(v.GetString("AWARD_RETRY_DELAY"), 2*time.Second),
	}

	cfg.Internal = InternalConfig{Token: v.GetString("INTERNAL_API_TOKEN")}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("ENV", EnvDevelopment)
	v.SetDefault("PORT", 8080)
	v.SetDefault("API_PREFIX", "/api/v1")

	v.SetDefault("DB_HOST", "localhost")
	v.SetDefault("DB_PORT", 5432)
	v.SetDefault("DB_USER", "postgres")
	v.SetDefault("DB_PASSWORD", "postgres")
	v.SetDefault("DB_NAME", "chapter_points")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)

	v.SetDefault("JWT_SECRET", "dev_secret")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("LEADERBOARD_CACHE_ENABLED", false)
	v.SetDefault("LEADERBOARD_CACHE_TTL", "1m")
	v.SetDefault("LEADERBOARD_DEFAULT_LIMIT", 50)

	v.SetDefault("RECONCILE_ENABLED", false)
	v.SetDefault("RECONCILE_INTERVAL", "1h")
	v.SetDefault("RECONCILE_AUTO_REPAIR", false)
	v.SetDefault("RECONCILE_REPAIR_GRACE", "30s")

	v.SetDefault("AWARD_RETRY_WORKERS", 2)
	v.SetDefault("AWARD_RETRY_BUFFER", 256)
	v.SetDefault("AWARD_RETRY_MAX", 5)
	v.SetDefault("AWARD_RETRY_DELAY", "2s")

	v.SetDefault("INTERNAL_API_TOKEN", "")
}

func isMissingFile(err error) bool {
	return strings.Contains(err.Error(), "no such file or directory")
}

func parseDuration(raw string, fallback time.Duration) time.Duration {
	if raw == "" {
		return fallback
	}

	d, err := time.ParseDuration(raw)
	if err != nil {
		return fallback
	}

	return d
}

func splitAndTrim(raw string) []string {
	if raw == "" {
		return nil
	}

	parts := strings.Split(raw, ",")
	result := make([]string, 0, len(parts))
	for _, part := range parts {
		trimmed := strings.TrimSpace(part)
		if trimmed != "" {
			result = append(result, trimmed)
		}
	}

	return result
}
