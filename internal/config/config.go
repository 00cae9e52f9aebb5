package config

import (
	"log"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// Config holds all configuration values for the application.
// Values come from a .env file, an optional config file and the environment,
// in increasing order of precedence.
type Config struct {
	// ServerPort is the port the HTTP server listens on
	ServerPort string

	// CORSOrigins are the browser origins allowed to call the API
	CORSOrigins []string

	LogLevel  string
	LogFormat string

	// UpstreamBaseURL is the root of the third-party REST backend, without /api/v1
	UpstreamBaseURL string

	// UpstreamServiceToken authorizes server-initiated calls such as closing a
	// channel after its host timed out. It should never be exposed to clients.
	UpstreamServiceToken string

	UpstreamTimeout      time.Duration
	UpstreamRetries      int
	UpstreamRetryBackoff time.Duration

	// PresenceBackend selects the heartbeat registry: "memory" or "redis"
	PresenceBackend string
	RedisAddr       string
	RedisPassword   string
	RedisDB         int
	RedisKeyPrefix  string

	HeartbeatTimeout time.Duration
	SweepInterval    time.Duration
	ShutdownTimeout  time.Duration
}

// Load reads configuration and returns a populated Config struct.
// It will load from a .env file if present, then from CONFIG_FILE if set,
// then from environment variables. Falls back to sensible defaults.
func Load() *Config {
	// Not an error if .env is missing, production uses real environment variables
	if err := godotenv.Load(); err != nil {
		log.Println("No .env file found, using environment variables")
	}

	v := viper.New()
	setDefaults(v)
	v.AutomaticEnv()

	if file := v.GetString("CONFIG_FILE"); file != "" {
		v.SetConfigFile(file)
		if err := v.ReadInConfig(); err != nil {
			log.Printf("WARNING: failed to read config file %s: %v", file, err)
		}
	}

	cfg := fromViper(v)

	if cfg.UpstreamBaseURL == "" {
		log.Println("WARNING: UPSTREAM_BASE_URL is not set")
	}
	if cfg.UpstreamServiceToken == "" {
		log.Println("WARNING: UPSTREAM_SERVICE_TOKEN is not set, host timeouts will not close channels upstream")
	}

	return cfg
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("PORT", "8080")
	v.SetDefault("CORS_ORIGINS", "http://localhost:3000,http://localhost:5173")
	v.SetDefault("LOG_LEVEL", "info")
	v.SetDefault("LOG_FORMAT", "json")
	v.SetDefault("UPSTREAM_BASE_URL", "")
	v.SetDefault("UPSTREAM_SERVICE_TOKEN", "")
	v.SetDefault("UPSTREAM_TIMEOUT", 15*time.Second)
	v.SetDefault("UPSTREAM_RETRIES", 2)
	v.SetDefault("UPSTREAM_RETRY_BACKOFF", 500*time.Millisecond)
	v.SetDefault("PRESENCE_BACKEND", "memory")
	v.SetDefault("REDIS_ADDR", "127.0.0.1:6379")
	v.SetDefault("REDIS_PASSWORD", "")
	v.SetDefault("REDIS_DB", 0)
	v.SetDefault("REDIS_KEY_PREFIX", "conexmeet:")
	v.SetDefault("HEARTBEAT_TIMEOUT", 45*time.Second)
	v.SetDefault("SWEEP_INTERVAL", 60*time.Second)
	v.SetDefault("SHUTDOWN_TIMEOUT", 10*time.Second)
}

func fromViper(v *viper.Viper) *Config {
	return &Config{
		ServerPort:           v.GetString("PORT"),
		CORSOrigins:          splitOrigins(v.GetString("CORS_ORIGINS")),
		LogLevel:             v.GetString("LOG_LEVEL"),
		LogFormat:            v.GetString("LOG_FORMAT"),
		UpstreamBaseURL:      strings.TrimRight(v.GetString("UPSTREAM_BASE_URL"), "/"),
		UpstreamServiceToken: v.GetString("UPSTREAM_SERVICE_TOKEN"),
		UpstreamTimeout:      v.GetDuration("UPSTREAM_TIMEOUT"),
		UpstreamRetries:      v.GetInt("UPSTREAM_RETRIES"),
		UpstreamRetryBackoff: v.GetDuration("UPSTREAM_RETRY_BACKOFF"),
		PresenceBackend:      strings.ToLower(v.GetString("PRESENCE_BACKEND")),
		RedisAddr:            v.GetString("REDIS_ADDR"),
		RedisPassword:        v.GetString("REDIS_PASSWORD"),
		RedisDB:              v.GetInt("REDIS_DB"),
		RedisKeyPrefix:       v.GetString("REDIS_KEY_PREFIX"),
		HeartbeatTimeout:     v.GetDuration("HEARTBEAT_TIMEOUT"),
		SweepInterval:        v.GetDuration("SWEEP_INTERVAL"),
		ShutdownTimeout:      v.GetDuration("SHUTDOWN_TIMEOUT"),
	}
}

// splitOrigins splits a comma-separated origin list and trims whitespace
func splitOrigins(raw string) []string {
	var origins []string
	for _, origin := range strings.Split(raw, ",") {
		if origin = strings.TrimSpace(origin); origin != "" {
			origins = append(origins, origin)
		}
	}
	return origins
}
