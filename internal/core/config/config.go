// Package config loads service configuration from the environment.
package config

import (
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"
)

type IngestCfg struct {
	Enabled  bool
	Brokers  string
	Topic    string
	GroupID  string
	Capacity int
}

type Config struct {
	Addr     string
	LogLevel string

	// H3Res is the default grid resolution when the request omits one.
	H3Res int

	Feeds     []string
	IDColumn  string
	LatColumn string
	LngColumn string

	RedisAddr         string
	CacheEnabled      bool
	CacheTTL          time.Duration
	BoundaryCacheSize int

	Ingest IngestCfg
}

func FromEnv() Config {
	const defaultRes = 9
	res := getint("H3_RES", defaultRes)
	if res < 0 || res > 15 {
		slog.Warn("H3_RES out of range, using default", "value", res, "default", defaultRes)
		res = defaultRes
	}

	return Config{
		Addr:     getenv("ADDR", ":8090"),
		LogLevel: getenv("LOG_LEVEL", "info"),
		H3Res:    res,

		Feeds:     splitCSV(getenv("GBFS_FEEDS", "")),
		IDColumn:  getenv("ID_COLUMN", "bike_id"),
		LatColumn: getenv("LAT_COLUMN", "lat"),
		LngColumn: getenv("LNG_COLUMN", "lon"),

		RedisAddr:         getenv("REDIS_ADDR", "localhost:6379"),
		CacheEnabled:      getbool("CACHE_ENABLED", false),
		CacheTTL:          getduration("CACHE_TTL", 60*time.Second),
		BoundaryCacheSize: getint("BOUNDARY_CACHE_SIZE", 4096),

		Ingest: IngestCfg{
			Enabled:  getbool("INGEST_ENABLED", false),
			Brokers:  getenv("KAFKA_BROKERS", "localhost:9092"),
			Topic:    getenv("KAFKA_TOPIC", "location-records"),
			GroupID:  getenv("KAFKA_GROUP_ID", "density-ingest"),
			Capacity: getint("INGEST_CAPACITY", 100_000),
		},
	}
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
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p != "" {
			out = append(out, p)
		}
	}
	return out
}
