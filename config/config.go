// Package config reads process settings from .env and the environment.
package config

import (
	"log"
	"os"
	"strconv"
	"time"

	"github.com/joho/godotenv"
)

// Backends for held-state persistence.
const (
	BackendMemory = "memory"
	BackendRedis  = "redis"
	BackendMongo  = "mongo"
)

type Config struct {
	Port           string
	StoreBackend   string
	MongoURI       string
	MongoDB        string
	RedisAddr      string
	RedisPassword  string
	JWTSecret      string
	ObfuscationKey string

	CrashGrace     time.Duration
	DiagnoseEvery  time.Duration
	CleanupEvery   time.Duration
	HeartbeatEvery time.Duration
	MaintIdle      time.Duration
	MaintMaxDefer  time.Duration

	RatePerSec float64
	RateBurst  int
}

// Load reads .env if present, then the environment. Unparseable values fall
// back to their defaults.
func Load() Config {
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found; using system environment")
	}
	return FromEnv(os.Getenv)
}

// FromEnv builds a Config from a lookup function.
func FromEnv(getenv func(string) string) Config {
	c := Config{
		Port:           Port(getenv("PORT")),
		StoreBackend:   str(getenv, "STORE_BACKEND", BackendMemory),
		MongoURI:       str(getenv, "MONGO_URI", "mongodb://localhost:27017"),
		MongoDB:        str(getenv, "MONGO_DB", "bazaar"),
		RedisAddr:      str(getenv, "REDIS_ADDR", "localhost:6379"),
		RedisPassword:  getenv("REDIS_PASSWORD"),
		JWTSecret:      str(getenv, "JWT_SECRET", "your_secret_key"),
		ObfuscationKey: str(getenv, "OBFUSCATION_KEY", "bazaar"),

		CrashGrace:     dur(getenv, "CRASH_GRACE", 30*time.Second),
		DiagnoseEvery:  dur(getenv, "DIAGNOSE_EVERY", 24*time.Hour),
		CleanupEvery:   dur(getenv, "CLEANUP_EVERY", 7*24*time.Hour),
		HeartbeatEvery: dur(getenv, "HEARTBEAT_EVERY", time.Minute),
		MaintIdle:      dur(getenv, "MAINT_IDLE", 5*time.Second),
		MaintMaxDefer:  dur(getenv, "MAINT_MAX_DEFER", 10*time.Minute),

		RatePerSec: float(getenv, "RATE_PER_SEC", 5),
		RateBurst:  integer(getenv, "RATE_BURST", 10),
	}
	switch c.StoreBackend {
	case BackendMemory, BackendRedis, BackendMongo:
	default:
		log.Printf("[config] unknown STORE_BACKEND %q, using %s", c.StoreBackend, BackendMemory)
		c.StoreBackend = BackendMemory
	}
	return c
}

// Port normalises a listen port to the ":N" form, defaulting to :8080.
func Port(v string) string {
	if v == "" {
		return ":8080"
	}
	if v[0] != ':' {
		return ":" + v
	}
	return v
}

func str(getenv func(string) string, key, def string) string {
	if v := getenv(key); v != "" {
		return v
	}
	return def
}

func dur(getenv func(string) string, key string, def time.Duration) time.Duration {
	v := getenv(key)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		log.Printf("[config] bad %s=%q, using %s", key, v, def)
		return def
	}
	return d
}

func float(getenv func(string) string, key string, def float64) float64 {
	v := getenv(key)
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil || f <= 0 {
		log.Printf("[config] bad %s=%q, using %v", key, v, def)
		return def
	}
	return f
}

func integer(getenv func(string) string, key string, def int) int {
	v := getenv(key)
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("[config] bad %s=%q, using %d", key, v, def)
		return def
	}
	return n
}
