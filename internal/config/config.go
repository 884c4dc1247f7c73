package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ServerConfig captures all tunable parameters for the API process. Values
// are loaded from environment variables with defaults that let the binary run
// locally against nothing but a Yelp key.
type ServerConfig struct {
	HTTPAddr        string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration

	// PublicBaseURL is used to build invite links handed to hosts.
	PublicBaseURL string

	YelpAPIKey     string
	YelpBaseURL    string
	OpenCageAPIKey string
	OpenCageURL    string
	FetchTimeout   time.Duration
	GeocodeTimeout time.Duration
	CandidateLimit int

	RedisAddr      string
	RedisPassword  string
	SearchCacheTTL time.Duration

	KafkaBrokers []string
	KafkaTopic   string

	PGDSN         string
	RunMigrations bool

	WebhookURL string

	// SessionTTL > 0 enables the idle-session sweeper.
	SessionTTL    time.Duration
	SoloAutoStart bool

	LogLevel string
}

func defaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPAddr:        ":8080",
		ReadTimeout:     5 * time.Second,
		WriteTimeout:    10 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		PublicBaseURL:   "http://localhost:8080",
		YelpBaseURL:     "https://api.yelp.com/v3",
		OpenCageURL:     "https://api.opencagedata.com/geocode/v1/json",
		FetchTimeout:    10 * time.Second,
		GeocodeTimeout:  8 * time.Second,
		CandidateLimit:  20,
		SearchCacheTTL:  5 * time.Minute,
		KafkaTopic:      "session-events",
		SoloAutoStart:   true,
		LogLevel:        "info",
	}
}

func LoadServerConfig() (ServerConfig, error) {
	cfg := defaultServerConfig()
	var errs []error

	setStringFromEnv(&cfg.HTTPAddr, "HTTP_ADDR")
	setDurationFromEnv(&cfg.ReadTimeout, "HTTP_READ_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.WriteTimeout, "HTTP_WRITE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.IdleTimeout, "HTTP_IDLE_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.ShutdownTimeout, "HTTP_SHUTDOWN_TIMEOUT", &errs)
	setStringFromEnv(&cfg.PublicBaseURL, "PUBLIC_BASE_URL")

	cfg.YelpAPIKey = strings.TrimSpace(os.Getenv("YELP_API_KEY"))
	setStringFromEnv(&cfg.YelpBaseURL, "YELP_BASE_URL")
	cfg.OpenCageAPIKey = strings.TrimSpace(os.Getenv("OPENCAGE_API_KEY"))
	setStringFromEnv(&cfg.OpenCageURL, "OPENCAGE_URL")
	setDurationFromEnv(&cfg.FetchTimeout, "FETCH_TIMEOUT", &errs)
	setDurationFromEnv(&cfg.GeocodeTimeout, "GEOCODE_TIMEOUT", &errs)
	setIntFromEnv(&cfg.CandidateLimit, "CANDIDATE_LIMIT", &errs)

	cfg.RedisAddr = strings.TrimSpace(os.Getenv("REDIS_ADDR"))
	cfg.RedisPassword = os.Getenv("REDIS_PASSWORD")
	setDurationFromEnv(&cfg.SearchCacheTTL, "SEARCH_CACHE_TTL", &errs)

	if brokers := os.Getenv("KAFKA_BROKERS"); brokers != "" {
		cfg.KafkaBrokers = splitAndTrim(brokers)
	}
	setStringFromEnv(&cfg.KafkaTopic, "KAFKA_TOPIC")

	cfg.PGDSN = os.Getenv("PG_DSN")
	cfg.RunMigrations = strings.EqualFold(os.Getenv("MIGRATE"), "true")

	setStringFromEnv(&cfg.WebhookURL, "WEBHOOK_URL")

	setDurationFromEnv(&cfg.SessionTTL, "SESSION_TTL", &errs)
	if v := os.Getenv("SOLO_AUTO_START"); v != "" {
		cfg.SoloAutoStart = strings.EqualFold(v, "true")
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.LogLevel = strings.ToLower(v)
	}

	if cfg.CandidateLimit <= 0 || cfg.CandidateLimit > 50 {
		errs = append(errs, fmt.Errorf("CANDIDATE_LIMIT must be in 1..50"))
	}

	return cfg, errors.Join(errs...)
}

func setDurationFromEnv(target *time.Duration, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		d, err := time.ParseDuration(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = d
	}
}

func setIntFromEnv(target *int, key string, errs *[]error) {
	if v := os.Getenv(key); v != "" {
		i, err := strconv.Atoi(v)
		if err != nil {
			*errs = append(*errs, fmt.Errorf("invalid %s: %w", key, err))
			return
		}
		*target = i
	}
}

func setStringFromEnv(target *string, key string) {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		*target = v
	}
}

func splitAndTrim(v string) []string {
	raw := strings.Split(v, ",")
	out := make([]string, 0, len(raw))
	for _, r := range raw {
		r = strings.TrimSpace(r)
		if r == "" {
			continue
		}
		out = append(out, r)
	}
	return out
}
