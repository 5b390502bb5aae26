package config

import (
	"errors"
	"io/fs"
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

	Database DatabaseConfig
	Redis    RedisConfig
	Cache    CacheConfig
	JWT      JWTConfig
	CORS     CORSConfig
	Log      LogConfig
	Dispatch DispatchConfig
	Export   ExportConfig
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
	// ConnectRetries is the number of extra pings tried at startup.
	ConnectRetries int
	ConnectTimeout time.Duration
}

type RedisConfig struct {
	Host     string
	Port     int
	Password string
	DB       int
	PoolSize int
}

// CacheConfig toggles the redis-backed read cache.
type CacheConfig struct {
	Enabled   bool
	WorkerTTL time.Duration
}

type JWTConfig struct {
	Secret     string
	Issuer     string
	Expiration time.Duration
}

type CORSConfig struct {
	AllowedOrigins []string
}

type LogConfig struct {
	Level  string
	Format string
}

// ExportConfig locates rendered plan exports and signs their download links.
type ExportConfig struct {
	Dir             string
	Secret          string
	TTL             time.Duration
	CleanupInterval time.Duration
}

// WeightsConfig holds the per-factor scoring weights.
type WeightsConfig struct {
	Skill      float64
	Distance   float64
	Workload   float64
	Experience float64
	Rating     float64
}

// DispatchConfig tunes the assignment engine.
type DispatchConfig struct {
	AutoAssignThreshold  float64
	MaxDistanceKm        float64
	ExperienceSaturation int
	DefaultCapacity      int
	DefaultRating        float64
	TopCandidates        int
	MaxBatchDays         int
	Weights              WeightsConfig
	LookupFile           string
	BatchRunTTL          time.Duration
	BatchWorkers         int
	BatchRetries         int
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
		var pathErr *fs.PathError
		if !errors.As(err, &notFound) && !errors.As(err, &pathErr) {
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

		ConnectRetries: v.GetInt("DB_CONNECT_RETRIES"),
		ConnectTimeout: parseDuration(v.GetString("DB_CONNECT_TIMEOUT"), 5*time.Second),
	}

	cfg.Redis = RedisConfig{
		Host:     v.GetString("REDIS_HOST"),
		Port:     v.GetInt("REDIS_PORT"),
		Password: v.GetString("REDIS_PASSWORD"),
		DB:       v.GetInt("REDIS_DB"),
		PoolSize: v.GetInt("REDIS_POOL_SIZE"),
	}

	cfg.Cache = CacheConfig{
		Enabled:   v.GetBool("ENABLE_CACHE"),
		WorkerTTL: parseDuration(v.GetString("DISPATCH_WORKER_CACHE_TTL"), time.Minute),
	}

	cfg.JWT = JWTConfig{
		Secret:     v.GetString("JWT_SECRET"),
		Issuer:     v.GetString("JWT_ISSUER"),
		Expiration: parseDuration(v.GetString("JWT_EXPIRATION"), 24*time.Hour),
	}

	cfg.CORS = CORSConfig{AllowedOrigins: splitAndTrim(v.GetString("ALLOWED_ORIGINS"))}

	cfg.Log = LogConfig{
		Level:  v.GetString("LOG_LEVEL"),
		Format: v.GetString("LOG_FORMAT"),
	}

	cfg.Dispatch = DispatchConfig{
		AutoAssignThreshold:  v.GetFloat64("DISPATCH_AUTO_ASSIGN_THRESHOLD"),
		MaxDistanceKm:        v.GetFloat64("DISPATCH_MAX_DISTANCE_KM"),
		ExperienceSaturation: v.GetInt("DISPATCH_EXPERIENCE_SATURATION"),
		DefaultCapacity:      v.GetInt("DISPATCH_DEFAULT_CAPACITY"),
		DefaultRating:        v.GetFloat64("DISPATCH_DEFAULT_RATING"),
		TopCandidates:        v.GetInt("DISPATCH_TOP_CANDIDATES"),
		MaxBatchDays:         v.GetInt("DISPATCH_MAX_BATCH_DAYS"),
		Weights: WeightsConfig{
			Skill:      v.GetFloat64("DISPATCH_WEIGHT_SKILL"),
			Distance:   v.GetFloat64("DISPATCH_WEIGHT_DISTANCE"),
			Workload:   v.GetFloat64("DISPATCH_WEIGHT_WORKLOAD"),
			Experience: v.GetFloat64("DISPATCH_WEIGHT_EXPERIENCE"),
			Rating:     v.GetFloat64("DISPATCH_WEIGHT_RATING"),
		},
		LookupFile:   v.GetString("DISPATCH_LOOKUP_FILE"),
		BatchRunTTL:  parseDuration(v.GetString("DISPATCH_BATCH_RUN_TTL"), 30*time.Minute),
		BatchWorkers: v.GetInt("DISPATCH_BATCH_WORKERS"),
		BatchRetries: v.GetInt("DISPATCH_BATCH_RETRIES"),
	}

	cfg.Export = ExportConfig{
		Dir:             v.GetString("DISPATCH_EXPORT_DIR"),
		Secret:          v.GetString("DISPATCH_EXPORT_SECRET"),
		TTL:             parseDuration(v.GetString("DISPATCH_EXPORT_TTL"), 24*time.Hour),
		CleanupInterval: parseDuration(v.GetString("DISPATCH_EXPORT_CLEANUP_INTERVAL"), time.Hour),
	}
	if cfg.Export.Secret == "" {
		cfg.Export.Secret = cfg.JWT.Secret
	}

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
	v.SetDefault("DB_NAME", "dispatch")
	v.SetDefault("DB_SSL_MODE", "disable")
	v.SetDefault("DB_MAX_OPEN_CONNS", 10)
	v.SetDefault("DB_MAX_IDLE_CONNS", 5)
	v.SetDefault("DB_CONNECT_RETRIES", 5)
	v.SetDefault("DB_CONNECT_TIMEOUT", "5s")

	v.SetDefault("REDIS_HOST", "localhost")
	v.SetDefault("REDIS_PORT", 6379)
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_POOL_SIZE", 10)
	v.SetDefault("ENABLE_CACHE", false)
	v.SetDefault("DISPATCH_WORKER_CACHE_TTL", "1m")

	v.SetDefault("JWT_SECRET", "dev_secret")
	v.SetDefault("JWT_ISSUER", "dispatch-api")
	v.SetDefault("JWT_EXPIRATION", "24h")

	v.SetDefault("ALLOWED_ORIGINS", "")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")

	v.SetDefault("DISPATCH_AUTO_ASSIGN_THRESHOLD", 0.70)
	v.SetDefault("DISPATCH_MAX_DISTANCE_KM", 50)
	v.SetDefault("DISPATCH_EXPERIENCE_SATURATION", 100)
	v.SetDefault("DISPATCH_DEFAULT_CAPACITY", 3)
	v.SetDefault("DISPATCH_DEFAULT_RATING", 3)
	v.SetDefault("DISPATCH_TOP_CANDIDATES", 5)
	v.SetDefault("DISPATCH_MAX_BATCH_DAYS", 31)
	v.SetDefault("DISPATCH_WEIGHT_SKILL", 0.35)
	v.SetDefault("DISPATCH_WEIGHT_DISTANCE", 0.25)
	v.SetDefault("DISPATCH_WEIGHT_WORKLOAD", 0.20)
	v.SetDefault("DISPATCH_WEIGHT_EXPERIENCE", 0.10)
	v.SetDefault("DISPATCH_WEIGHT_RATING", 0.10)
	v.SetDefault("DISPATCH_LOOKUP_FILE", "")
	v.SetDefault("DISPATCH_BATCH_RUN_TTL", "30m")
	v.SetDefault("DISPATCH_BATCH_WORKERS", 2)
	v.SetDefault("DISPATCH_BATCH_RETRIES", 1)
	v.SetDefault("DISPATCH_EXPORT_DIR", "./exports")
	v.SetDefault("DISPATCH_EXPORT_SECRET", "")
	v.SetDefault("DISPATCH_EXPORT_TTL", "24h")
	v.SetDefault("DISPATCH_EXPORT_CLEANUP_INTERVAL", "1h")
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
