package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store backends
const (
	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

// Config holds all runtime configuration values
type Config struct {
	Env       string
	Port      string
	LogLevel  string
	LogFormat string

	StoreBackend string
	DBUser       string
	DBPass       string
	DBHost       string
	DBPort       string
	DBName       string

	RedisAddr     string
	RedisPassword string
	RedisDB       int

	RabbitMQURL string
	JWTSecret   string

	BidLockTimeout      time.Duration
	BidMaxAttempts      int
	BidRetryBackoff     time.Duration
	ExtendTriggerWindow time.Duration

	SweepInterval  time.Duration
	SweepBatchSize int
	ResolveTimeout time.Duration

	SeedDemoAuctions bool
}

// Load reads an optional .env file and then the environment. Unset
// variables fall back to defaults suitable for local development.
func Load() Config {
	_ = godotenv.Load()

	return Config{
		Env:       envStr("APP_ENV", "dev"),
		Port:      envStr("PORT", "8080"),
		LogLevel:  envStr("LOG_LEVEL", "info"),
		LogFormat: envStr("LOG_FORMAT", "json"),

		StoreBackend: strings.ToLower(envStr("STORE_BACKEND", StoreMemory)),
		DBUser:       envStr("DB_USER", "root"),
		DBPass:       os.Getenv("DB_PASS"),
		DBHost:       envStr("DB_HOST", "localhost"),
		DBPort:       envStr("DB_PORT", "3306"),
		DBName:       envStr("DB_NAME", "auctions"),

		RedisAddr:     os.Getenv("REDIS_ADDR"),
		RedisPassword: os.Getenv("REDIS_PASSWORD"),
		RedisDB:       envInt("REDIS_DB", 0),

		RabbitMQURL: os.Getenv("RABBITMQ_URL"),
		JWTSecret:   os.Getenv("JWT_SECRET"),

		BidLockTimeout:      envDur("BID_LOCK_TIMEOUT", 5*time.Second),
		BidMaxAttempts:      envInt("BID_MAX_ATTEMPTS", 3),
		BidRetryBackoff:     envDur("BID_RETRY_BACKOFF", 50*time.Millisecond),
		ExtendTriggerWindow: envDur("AUCTION_EXTEND_TRIGGER_WINDOW", 5*time.Minute),

		SweepInterval:  envDur("SWEEP_INTERVAL", time.Minute),
		SweepBatchSize: envInt("SWEEP_BATCH_SIZE", 500),
		ResolveTimeout: envDur("RESOLVE_TIMEOUT", 30*time.Second),

		SeedDemoAuctions: envBool("SEED_DEMO_AUCTIONS", false),
	}
}

// Addr returns the HTTP listen address
func (c Config) Addr() string { return ":" + c.Port }

func envStr(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

func envBool(k string, d bool) bool {
	switch os.Getenv(k) {
	case "1", "true", "TRUE", "True", "yes", "YES", "on", "ON":
		return true
	case "0", "false", "FALSE", "False", "no", "NO", "off", "OFF":
		return false
	}
	return d
}

func envInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if n, err := strconv.Atoi(v); err == nil {
		return n
	}
	return d
}

func envDur(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	return d
}
