package config

import (
	"os"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// Store drivers
const (
	StoreDriverMongo  = "mongo"
	StoreDriverMemory = "memory"
)

type Config struct {
	Environment string
	Port        string
	StoreDriver string
	DatabaseURL string
	RedisURL    string
	JWTSecret   string

	// Emergency lifecycle
	BystanderTimeoutMinutes int
	DefaultLanguage         string

	// Batch jobs
	BystanderSweepInterval time.Duration
	BadgeSweepInterval     time.Duration
	AreaSweepInterval      time.Duration

	// Seed catalogue override
	SeedFile string

	// SOS trigger rate limiting
	SOSRateLimit         int
	SOSRateWindowMinutes int
}

func Load() *Config {
	return &Config{
		Environment: getEnv("ENVIRONMENT", "development"),
		Port:        getEnv("PORT", "8080"),
		StoreDriver: getEnv("STORE_DRIVER", StoreDriverMongo),
		DatabaseURL: getEnv("DATABASE_URL", "mongodb://localhost:27017/goldenminutes"),
		RedisURL:    os.Getenv("REDIS_URL"),
		JWTSecret:   getEnv("JWT_SECRET", "your-super-secret-jwt-key"),

		BystanderTimeoutMinutes: getEnvAsInt("BYSTANDER_TIMEOUT_MINUTES", 5),
		DefaultLanguage:         getEnv("DEFAULT_LANGUAGE", "en"),

		BystanderSweepInterval: getEnvAsDuration("BYSTANDER_SWEEP_INTERVAL", time.Minute),
		BadgeSweepInterval:     getEnvAsDuration("BADGE_SWEEP_INTERVAL", time.Hour),
		AreaSweepInterval:      getEnvAsDuration("AREA_SWEEP_INTERVAL", 6*time.Hour),

		SeedFile: getEnv("SEED_FILE", ""),

		SOSRateLimit:         getEnvAsInt("SOS_RATE_LIMIT", 5),
		SOSRateWindowMinutes: getEnvAsInt("SOS_RATE_WINDOW_MINUTES", 1),
	}
}

func (c *Config) IsDevelopment() bool {
	return c.Environment == "development"
}

// BystanderTimeout is the unattended time after which bystander mode starts.
func (c *Config) BystanderTimeout() time.Duration {
	return time.Duration(c.BystanderTimeoutMinutes) * time.Minute
}

// InitRedis returns nil when REDIS_URL is empty; callers fall back to
// in-process locking and rate limiting.
func InitRedis(cfg *Config) *redis.Client {
	if cfg.RedisURL == "" {
		logrus.Info("REDIS_URL not set, using in-process locks and rate limits")
		return nil
	}

	opt, err := redis.ParseURL(cfg.RedisURL)
	if err != nil {
		logrus.Warnf("Invalid REDIS_URL, falling back to localhost: %v", err)
		opt = &redis.Options{
			Addr:     "localhost:6379",
			Password: "",
			DB:       0,
		}
	}

	client := redis.NewClient(opt)
	return client
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvAsInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}
