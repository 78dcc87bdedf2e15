package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/BaSui01/parley/invoker"
	"github.com/BaSui01/parley/store"
)

// Config is the full server configuration.
type Config struct {
	Server    ServerConfig          `yaml:"server" env:"SERVER"`
	Engine    EngineConfig          `yaml:"engine" env:"ENGINE"`
	Gateway   invoker.GatewayConfig `yaml:"gateway" env:"GATEWAY"`
	Store     store.Config          `yaml:"store" env:"STORE"`
	Log       LogConfig             `yaml:"log" env:"LOG"`
	Telemetry TelemetryConfig       `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig configures the HTTP listener and its middleware.
type ServerConfig struct {
	Addr string `yaml:"addr" env:"ADDR"`
	// MetricsAddr is the separate Prometheus listener. Empty disables it.
	MetricsAddr     string        `yaml:"metrics_addr" env:"METRICS_ADDR"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	IdleTimeout     time.Duration `yaml:"idle_timeout" env:"IDLE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	MaxHeaderBytes  int           `yaml:"max_header_bytes" env:"MAX_HEADER_BYTES"`
	// MaxConns caps concurrently accepted connections; 0 means unlimited.
	MaxConns       int      `yaml:"max_conns" env:"MAX_CONNS"`
	RateLimitRPS   float64  `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int      `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
	CORSOrigins    []string `yaml:"cors_origins" env:"CORS_ORIGINS"`
	// APIKeys enables key auth when non-empty; JWTSecret enables bearer
	// auth. Both empty leaves the API open.
	APIKeys     []string `yaml:"api_keys" env:"API_KEYS"`
	JWTSecret   string   `yaml:"jwt_secret" env:"JWT_SECRET"`
	TLSCertFile string   `yaml:"tls_cert_file" env:"TLS_CERT_FILE"`
	TLSKeyFile  string   `yaml:"tls_key_file" env:"TLS_KEY_FILE"`
}

// EngineConfig supplies server-side defaults applied to run requests that
// leave the corresponding knob unset.
type EngineConfig struct {
	MaxParallel     int           `yaml:"max_parallel" env:"MAX_PARALLEL"`
	DispatchTimeout time.Duration `yaml:"dispatch_timeout" env:"DISPATCH_TIMEOUT"`
	// EventBuffer sizes each WebSocket subscriber's queue.
	EventBuffer int `yaml:"event_buffer" env:"EVENT_BUFFER"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	// Level is debug, info, warn, or error.
	Level string `yaml:"level" env:"LEVEL"`
	// Format is json or console.
	Format           string   `yaml:"format" env:"FORMAT"`
	OutputPaths      []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
	EnableCaller     bool     `yaml:"enable_caller" env:"ENABLE_CALLER"`
	EnableStacktrace bool     `yaml:"enable_stacktrace" env:"ENABLE_STACKTRACE"`
}

// TelemetryConfig configures OTLP export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// DefaultConfig returns a runnable default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Engine:    DefaultEngineConfig(),
		Gateway:   DefaultGatewayConfig(),
		Store:     store.DefaultConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns the default listener configuration.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		Addr:            ":8080",
		MetricsAddr:     ":9091",
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    30 * time.Second,
		IdleTimeout:     120 * time.Second,
		ShutdownTimeout: 30 * time.Second,
		MaxHeaderBytes:  1 << 20,
		MaxConns:        0,
		RateLimitRPS:    100,
		RateLimitBurst:  200,
	}
}

// DefaultEngineConfig returns the default per-request knob defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxParallel:     8,
		DispatchTimeout: 120 * time.Second,
		EventBuffer:     256,
	}
}

// DefaultGatewayConfig returns the default model gateway configuration.
func DefaultGatewayConfig() invoker.GatewayConfig {
	return invoker.GatewayConfig{
		BaseURL: "http://localhost:4000/v1/chat/completions",
		Timeout: 120 * time.Second,
	}
}

// DefaultLogConfig returns the default logging configuration.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:        "info",
		Format:       "json",
		OutputPaths:  []string{"stdout"},
		EnableCaller: true,
	}
}

// DefaultTelemetryConfig returns the default telemetry configuration.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "parley",
		SampleRate:   0.1,
	}
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Validate checks the configuration for values that would fail at runtime.
func (c *Config) Validate() error {
	var errs []string

	if strings.TrimSpace(c.Server.Addr) == "" {
		errs = append(errs, "server.addr is required")
	}
	if c.Server.ReadTimeout < 0 || c.Server.WriteTimeout < 0 || c.Server.IdleTimeout < 0 {
		errs = append(errs, "server timeouts must not be negative")
	}
	if c.Server.ShutdownTimeout <= 0 {
		errs = append(errs, "server.shutdown_timeout must be positive")
	}
	if c.Server.MaxConns < 0 {
		errs = append(errs, "server.max_conns must not be negative")
	}
	if c.Server.RateLimitRPS < 0 || c.Server.RateLimitBurst < 0 {
		errs = append(errs, "server rate limits must not be negative")
	}
	if (c.Server.TLSCertFile == "") != (c.Server.TLSKeyFile == "") {
		errs = append(errs, "server TLS needs both cert and key files")
	}

	if c.Engine.MaxParallel < 0 {
		errs = append(errs, "engine.max_parallel must not be negative")
	}
	if c.Engine.DispatchTimeout < 0 {
		errs = append(errs, "engine.dispatch_timeout must not be negative")
	}
	if c.Engine.EventBuffer < 0 {
		errs = append(errs, "engine.event_buffer must not be negative")
	}

	switch c.Store.Type {
	case store.TypeMemory, store.TypeFile, store.TypeRedis, store.TypeDatabase, store.TypeMongo:
	default:
		errs = append(errs, fmt.Sprintf("unknown store type: %s", c.Store.Type))
	}

	if !logLevels[c.Log.Level] {
		errs = append(errs, fmt.Sprintf("unknown log level: %s", c.Log.Level))
	}
	if c.Log.Format != "json" && c.Log.Format != "console" {
		errs = append(errs, fmt.Sprintf("unknown log format: %s", c.Log.Format))
	}

	if c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1 {
		errs = append(errs, "telemetry.sample_rate must be within [0,1]")
	}
	if c.Telemetry.Enabled && strings.TrimSpace(c.Telemetry.OTLPEndpoint) == "" {
		errs = append(errs, "telemetry.otlp_endpoint is required when telemetry is enabled")
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation errors: %s", strings.Join(errs, "; "))
	}
	return nil
}
