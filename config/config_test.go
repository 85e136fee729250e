package config

import (
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	for _, key := range []string{"STATIC_BASE", "ORDER_ENDPOINT", "ORDER_TIMEOUT", "LOAD_TIMEOUT", "BASE_WIDTH", "BASE_HEIGHT",
		"SESSION_TTL", "STORAGE_TYPE", "LOCAL_STORAGE_PATH", "DATA_SOURCE_NAME", "MAX_SNAPSHOTS", "CORS_ORIGINS", "READY_DESIGNS_FILE"} {
		t.Setenv(key, "")
	}

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if c.StaticBase != "./static/" {
		t.Errorf("Expected ./static/, got %s", c.StaticBase)
	}
	if c.OrderTimeout != 30*time.Second {
		t.Errorf("Expected 30s order timeout, got %s", c.OrderTimeout)
	}
	if c.BaseWidth != 420 || c.BaseHeight != 780 {
		t.Errorf("Expected 420x780, got %dx%d", c.BaseWidth, c.BaseHeight)
	}
	if c.SessionTTL != 2*time.Hour {
		t.Errorf("Expected 2h ttl, got %s", c.SessionTTL)
	}
	if c.Storage.MaxSnapshots != 10 || c.Storage.LocalPath != "./data" {
		t.Errorf("Unexpected storage defaults: %+v", c.Storage)
	}
	if len(c.CORSOrigins) != 2 {
		t.Errorf("Expected two default origins, got %v", c.CORSOrigins)
	}
	if c.DesignsFile != "" {
		t.Errorf("Expected no designs file, got %q", c.DesignsFile)
	}
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("STATIC_BASE", "https://cdn.example.com/")
	t.Setenv("ORDER_ENDPOINT", " https://orders.example.com ")
	t.Setenv("ORDER_TIMEOUT", "5s")
	t.Setenv("BASE_WIDTH", "300")
	t.Setenv("STORAGE_TYPE", "sqlite")
	t.Setenv("MAX_SNAPSHOTS", "3")
	t.Setenv("CORS_ORIGINS", "https://a.example, ,https://b.example")

	c, err := Load()
	if err != nil {
		t.Fatalf("Load() failed: %v", err)
	}
	if c.StaticBase != "https://cdn.example.com/" || c.OrderEndpoint != "https://orders.example.com" {
		t.Errorf("Unexpected endpoints: %s %s", c.StaticBase, c.OrderEndpoint)
	}
	if c.OrderTimeout != 5*time.Second || c.BaseWidth != 300 {
		t.Errorf("Unexpected values: %s %d", c.OrderTimeout, c.BaseWidth)
	}
	if c.Storage.Type != "sqlite" || c.Storage.MaxSnapshots != 3 {
		t.Errorf("Unexpected storage: %+v", c.Storage)
	}
	if len(c.CORSOrigins) != 2 || c.CORSOrigins[1] != "https://b.example" {
		t.Errorf("Expected blank origins dropped, got %v", c.CORSOrigins)
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct{ key, value string }{
		{"ORDER_TIMEOUT", "soon"},
		{"ORDER_TIMEOUT", "-1s"},
		{"BASE_WIDTH", "0"},
		{"MAX_SNAPSHOTS", "ten"},
	}
	for _, tt := range tests {
		t.Run(tt.key+"="+tt.value, func(t *testing.T) {
			t.Setenv(tt.key, tt.value)
			if _, err := Load(); err == nil {
				t.Errorf("Expected error for %s=%s", tt.key, tt.value)
			}
		})
	}
}
