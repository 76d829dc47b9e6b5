package redisstream

import (
	"fmt"
	"time"
)

// Config for the Redis Streams exporter.
type Config struct {
	// Connection
	Addr          string
	Username      string
	Password      string
	DB            int
	TLS           bool
	TLSServerName string

	// Stream management
	Stream       string
	MaxLenApprox int64
	Codec        string

	// Dispatch
	Workers       int
	BufferSize    int
	ExportTimeout time.Duration
}

// Defaults returns a Config with production-safe defaults.
func Defaults() Config {
	return Config{
		Addr:          "127.0.0.1:6379",
		Stream:        "xtap",
		Codec:         "json",
		Workers:       4,
		BufferSize:    4096,
		ExportTimeout: 2 * time.Second,
	}
}

// Validate checks Config for production readiness.
func (c Config) Validate() error {
	if c.Addr == "" {
		return fmt.Errorf("config: addr required")
	}
	if c.Stream == "" {
		return fmt.Errorf("config: stream required")
	}
	if c.Workers < 1 {
		return fmt.Errorf("config: workers must be >= 1, got %d", c.Workers)
	}
	if c.BufferSize < 1 {
		return fmt.Errorf("config: buffer_size must be >= 1, got %d", c.BufferSize)
	}
	if c.ExportTimeout <= 0 {
		return fmt.Errorf("config: export_timeout must be > 0, got %v", c.ExportTimeout)
	}
	if c.MaxLenApprox < 0 {
		return fmt.Errorf("config: max_len_approx must be >= 0, got %d", c.MaxLenApprox)
	}
	return nil
}

// toMap converts Config to generic map for the exporter factory.
func (c Config) toMap() map[string]any {
	return map[string]any{
		"addr":            c.Addr,
		"username":        c.Username,
		"password":        c.Password,
		"db":              c.DB,
		"tls":             c.TLS,
		"tls_server_name": c.TLSServerName,
		"stream":          c.Stream,
		"max_len_approx":  c.MaxLenApprox,
		"codec":           c.Codec,
		"workers":         c.Workers,
		"buffer_size":     c.BufferSize,
		"export_timeout":  c.ExportTimeout,
	}
}

// ConfigFromMap safely converts generic map to Config with defaults.
func ConfigFromMap(m map[string]any) Config {
	c := Defaults()

	if v, ok := m["addr"].(string); ok && v != "" {
		c.Addr = v
	}
	if v, ok := m["username"].(string); ok {
		c.Username = v
	}
	if v, ok := m["password"].(string); ok {
		c.Password = v
	}
	if v, ok := m["db"].(int); ok {
		c.DB = v
	}
	if v, ok := m["tls"].(bool); ok {
		c.TLS = v
	}
	if v, ok := m["tls_server_name"].(string); ok {
		c.TLSServerName = v
	}
	if v, ok := m["stream"].(string); ok && v != "" {
		c.Stream = v
	}
	if v, ok := m["max_len_approx"].(int64); ok && v > 0 {
		c.MaxLenApprox = v
	}
	if v, ok := m["codec"].(string); ok && v != "" {
		c.Codec = v
	}
	if v, ok := m["workers"].(int); ok && v > 0 {
		c.Workers = v
	}
	if v, ok := m["buffer_size"].(int); ok && v > 0 {
		c.BufferSize = v
	}
	switch v := m["export_timeout"].(type) {
	case time.Duration:
		if v > 0 {
			c.ExportTimeout = v
		}
	case string:
		if d, err := time.ParseDuration(v); err == nil && d > 0 {
			c.ExportTimeout = d
		}
	}

	return c
}
