// Package config reads the process configuration from the environment.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type (
	// Storage selects the saved design backend.
	Storage struct {
		Type           string
		LocalPath      string
		DataSourceName string
		BucketName     string
		MaxSnapshots   int
	}

	Config struct {
		StaticBase    string
		OrderEndpoint string
		OrderTimeout  time.Duration
		LoadTimeout   time.Duration
		BaseWidth     int
		BaseHeight    int
		FontDir       string
		DesignsFile   string
		SessionSecret string
		SessionTTL    time.Duration
		CORSOrigins   []string
		Storage       Storage
	}
)

// Load reads the configuration, applying defaults for unset variables.
// Malformed values are reported rather than silently replaced.
func Load() (*Config, error) {
	c := &Config{
		StaticBase:    getenv("STATIC_BASE", "./static/"),
		OrderEndpoint: strings.TrimSpace(os.Getenv("ORDER_ENDPOINT")),
		FontDir:       os.Getenv("FONT_DIR"),
		DesignsFile:   strings.TrimSpace(os.Getenv("READY_DESIGNS_FILE")),
		SessionSecret: os.Getenv("SESSION_SECRET"),
		CORSOrigins:   splitList(getenv("CORS_ORIGINS", "http://localhost:*,http://127.0.0.1:*")),
		Storage: Storage{
			Type:           os.Getenv("STORAGE_TYPE"),
			LocalPath:      getenv("LOCAL_STORAGE_PATH", "./data"),
			DataSourceName: getenv("DATA_SOURCE_NAME", "designs.db"),
			BucketName:     os.Getenv("S3_BUCKET_NAME"),
		},
	}

	var err error
	if c.OrderTimeout, err = duration("ORDER_TIMEOUT", 30*time.Second); err != nil {
		return nil, err
	}
	if c.LoadTimeout, err = duration("LOAD_TIMEOUT", 15*time.Second); err != nil {
		return nil, err
	}
	if c.SessionTTL, err = duration("SESSION_TTL", 2*time.Hour); err != nil {
		return nil, err
	}
	if c.BaseWidth, err = positive("BASE_WIDTH", 420); err != nil {
		return nil, err
	}
	if c.BaseHeight, err = positive("BASE_HEIGHT", 780); err != nil {
		return nil, err
	}
	if c.Storage.MaxSnapshots, err = positive("MAX_SNAPSHOTS", 10); err != nil {
		return nil, err
	}
	return c, nil
}

func getenv(key, fallback string) string {
	if v := strings.TrimSpace(os.Getenv(key)); v != "" {
		return v
	}
	return fallback
}

func duration(key string, fallback time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive duration such as 30s", key, v)
	}
	return d, nil
}

func positive(key string, fallback int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: want a positive integer", key, v)
	}
	return n, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}
