// Package config reads service settings from the environment.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type InvalidationCfg struct {
	Enabled    bool
	Brokers    string
	Topic      string
	GroupID    string
	QueueSize  int
	DedupeSize int
	InstanceID string
}

type Config struct {
	Addr           string
	LogLevel       string
	LogConsole     bool
	LogSampleN     int
	MetricsEnabled bool
	MetricsPath    string

	KVDriver    string
	RedisAddr   string
	RedisDB     int
	RedisPass   string
	KVOpTimeout time.Duration

	RecordStore      string
	PropertyAPIURL   string
	PropertyAPIToken string
	HTTPTimeout      time.Duration
	HTTPRetries      int

	ListingTTL time.Duration
	MemoSize   int
	H3Res      int

	CORSOrigins []string

	Invalidation InvalidationCfg
}

// Load reads an optional .env file (path defaults to ".env") and then the
// environment. Variables already set in the environment win.
func Load(path string) (Config, error) {
	if path == "" {
		path = ".env"
	}
	if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return Config{}, fmt.Errorf("load %s: %w", path, err)
	}
	return FromEnv(), nil
}

func FromEnv() Config {
	res := getint("H3_RES", 8)
	if res < 0 || res > 15 {
		res = 8
	}
	memo := getint("MEMO_SIZE", 256)
	if memo <= 0 {
		memo = 256
	}

	return Config{
		Addr:           getenv("ADDR", ":8090"),
		LogLevel:       getenv("LOG_LEVEL", "info"),
		LogConsole:     getbool("LOG_CONSOLE", false),
		LogSampleN:     getint("LOG_SAMPLE_N", 0),
		MetricsEnabled: getbool("METRICS_ENABLED", true),
		MetricsPath:    getenv("METRICS_PATH", "/metrics"),

		KVDriver:    strings.ToLower(getenv("KV_DRIVER", "redis")),
		RedisAddr:   getenv("REDIS_ADDR", "localhost:6379"),
		RedisDB:     getint("REDIS_DB", 0),
		RedisPass:   os.Getenv("REDIS_PASSWORD"),
		KVOpTimeout: getduration("KV_OP_TIMEOUT", 500*time.Millisecond),

		RecordStore:      strings.ToLower(getenv("RECORD_STORE", "auto")),
		PropertyAPIURL:   os.Getenv("PROPERTY_API_URL"),
		PropertyAPIToken: os.Getenv("PROPERTY_API_TOKEN"),
		HTTPTimeout:      getduration("HTTP_TIMEOUT", 10*time.Second),
		HTTPRetries:      getint("HTTP_RETRIES", 0),

		ListingTTL: getduration("LISTING_TTL", 30*time.Second),
		MemoSize:   memo,
		H3Res:      res,

		CORSOrigins: splitCSV(getenv("CORS_ORIGINS", "*")),

		Invalidation: InvalidationCfg{
			Enabled:    getbool("INVALIDATION_ENABLED", false),
			Brokers:    getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:      getenv("KAFKA_TOPIC", "property-changes"),
			GroupID:    getenv("KAFKA_GROUP_ID", "estate-search"),
			QueueSize:  getint("KAFKA_PUBLISH_QUEUE", 256),
			DedupeSize: getint("KAFKA_DEDUPE_SIZE", 4096),
			InstanceID: getenv("INSTANCE_ID", hostname()),
		},
	}
}

func hostname() string {
	h, err := os.Hostname()
	if err != nil || h == "" {
		return "estate-search"
	}
	return h
}

func getenv(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getint(k string, def int) int {
	if v := os.Getenv(k); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return def
}

func getbool(k string, def bool) bool {
	if v := os.Getenv(k); v != "" {
		switch strings.ToLower(strings.TrimSpace(v)) {
		case "1", "t", "true", "y", "yes":
			return true
		case "0", "f", "false", "n", "no":
			return false
		}
	}
	return def
}

func getduration(k string, def time.Duration) time.Duration {
	if v := os.Getenv(k); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitCSV(s string) []string {
	var out []string
	for p := range strings.SplitSeq(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
