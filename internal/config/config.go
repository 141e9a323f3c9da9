package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

type DBConfig struct {
	Driver   string
	Host     string
	Port     string
	User     string
	Password string
	Name     string
	MaxOpen  int
	MaxIdle  int
}

type AppConfig struct {
	Port     string
	GRPCPort string
	GinMode  string

	DB DBConfig

	RedisAddr     string
	RedisPassword string

	JWTSecret string

	ApprovalTimeout    time.Duration
	ApprovalLockTTL    time.Duration
	RatesAPIURL        string
	RatesCacheTTL      time.Duration
	GatewayAPIURL      string
	GatewayAPIKey      string
	GatewayPayCurrency string

	PlunkAPIKey string
	PlunkFrom   string

	GatewayPollSpec string
	MaturitySpec    string

	LogLevel  string
	LogFormat string
}

// LoadEnv reads .env from the working directory, then its parent. Missing files are not an error.
func LoadEnv() {
	if err := godotenv.Load(); err != nil {
		logrus.Debug("No .env file found in current directory, trying parent")
		if err := godotenv.Load("../.env"); err != nil {
			logrus.Debug("No .env file found, using system environment variables")
		}
	}
}

func Load() AppConfig {
	return AppConfig{
		Port:     getEnv("PORT", "8080"),
		GRPCPort: getEnv("GRPC_PORT", "50051"),
		GinMode:  getEnv("GIN_MODE", ""),
		DB: DBConfig{
			Driver:   getEnv("DB_DRIVER", "mysql"),
			Host:     getEnv("DB_HOST", "localhost"),
			Port:     getEnv("DB_PORT", "3306"),
			User:     getEnv("DB_USER", "root"),
			Password: getEnv("DB_PASSWORD", ""),
			Name:     getEnv("DB_NAME", "invest"),
			MaxOpen:  getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdle:  getEnvInt("DB_MAX_IDLE_CONNS", 5),
		},
		RedisAddr:          getEnv("REDIS_URL", "localhost:6379"),
		RedisPassword:      getEnv("REDIS_PASSWORD", ""),
		JWTSecret:          getEnv("JWT_SECRET", ""),
		ApprovalTimeout:    getEnvDuration("APPROVAL_TIMEOUT", 10*time.Second),
		ApprovalLockTTL:    getEnvDuration("APPROVAL_LOCK_TTL", 30*time.Second),
		RatesAPIURL:        getEnv("RATES_API_URL", "https://open.er-api.com/v6"),
		RatesCacheTTL:      getEnvDuration("RATES_CACHE_TTL", time.Hour),
		GatewayAPIURL:      getEnv("GATEWAY_API_URL", "https://api.nowpayments.io/v1"),
		GatewayAPIKey:      getEnv("GATEWAY_API_KEY", ""),
		GatewayPayCurrency: getEnv("GATEWAY_PAY_CURRENCY", "usdttrc20"),
		PlunkAPIKey:        getEnv("PLUNK_API_KEY", ""),
		PlunkFrom:          getEnv("PLUNK_FROM", ""),
		GatewayPollSpec:    getEnv("CRON_GATEWAY_POLL", "*/5 * * * *"),
		MaturitySpec:       getEnv("CRON_INVESTMENT_MATURITY", "*/15 * * * *"),
		LogLevel:           getEnv("LOG_LEVEL", "info"),
		LogFormat:          getEnv("LOG_FORMAT", "text"),
	}
}

// ConfigureLogging applies level and formatter to the standard logrus logger.
func ConfigureLogging(cfg AppConfig) {
	level, err := logrus.ParseLevel(cfg.LogLevel)
	if err != nil {
		level = logrus.InfoLevel
	}
	logrus.SetLevel(level)
	if strings.EqualFold(cfg.LogFormat, "json") {
		logrus.SetFormatter(&logrus.JSONFormatter{})
	} else {
		logrus.SetFormatter(&logrus.TextFormatter{FullTimestamp: true})
	}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		logrus.Warnf("invalid %s=%q, using %d", key, v, fallback)
		return fallback
	}
	return n
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		logrus.Warnf("invalid %s=%q, using %s", key, v, fallback)
		return fallback
	}
	return d
}
