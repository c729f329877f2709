package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all runtime configuration shared by odin-server and
// odin-client (SPEC_FULL.md §2 "Configuration").
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	WebSocket WebSocketConfig `mapstructure:"websocket"`
	Metrics   MetricsConfig   `mapstructure:"metrics"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Auth      AuthConfig      `mapstructure:"auth"`
	Client    ClientConfig    `mapstructure:"client"`
	Docstore  DocstoreConfig  `mapstructure:"docstore"`
	Fanout    FanoutConfig    `mapstructure:"fanout"`
}

// ServerConfig contains network level settings for the HTTP/WebSocket
// listener (spec.md §6.1, §6.3).
type ServerConfig struct {
	Host            string        `mapstructure:"host"`
	Port            int           `mapstructure:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout"`
	IdleTimeout     time.Duration `mapstructure:"idle_timeout"`
	ReadBufferSize  int           `mapstructure:"read_buffer_size"`
	WriteBufferSize int           `mapstructure:"write_buffer_size"`
}

// WebSocketConfig controls the session layer's per-connection limits.
type WebSocketConfig struct {
	Path               string `mapstructure:"path"`
	MaxConnections     int    `mapstructure:"max_connections"`
	SendQueueSize      int    `mapstructure:"send_queue_size"`
	MaxMessageBytes    int    `mapstructure:"max_message_bytes"`
	EnableCompression  bool   `mapstructure:"enable_compression"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	ListenAddr  string `mapstructure:"listen_addr"`
	Endpoint    string `mapstructure:"endpoint"`
	ServiceName string `mapstructure:"service_name"`
}

// LoggingConfig controls zap logger level/encoding.
type LoggingConfig struct {
	Level       string `mapstructure:"level"`
	Development bool   `mapstructure:"development"`
}

// AuthConfig controls JWT issuance/verification for the meta-queue
// Authenticate flow (spec.md §7 Open Question).
type AuthConfig struct {
	SecretKey           string        `mapstructure:"secret_key"`
	TokenDuration       time.Duration `mapstructure:"token_duration"`
	RequireVerifiedToken bool         `mapstructure:"require_verified_token"`
}

// ClientConfig controls the client-side connection state machine
// (spec.md §4.4 "Reconnect backoff").
type ClientConfig struct {
	ServerURL       string        `mapstructure:"server_url"`
	InitialBackoff  time.Duration `mapstructure:"initial_backoff"`
	MaxBackoff      time.Duration `mapstructure:"max_backoff"`
	HandshakeTimeout time.Duration `mapstructure:"handshake_timeout"`
}

// DocstoreConfig names the external document-store path/field-name
// mapping convention (spec.md §6.2); no concrete backend is configured,
// matching the Non-goal that rules out a durable-persistence
// implementation.
type DocstoreConfig struct {
	Enabled     bool   `mapstructure:"enabled"`
	RootCollection string `mapstructure:"root_collection"`
}

// FanoutConfig controls the optional cross-process NATS relay
// (SPEC_FULL.md §3 "internal/fanout"); disabled by default, since a
// single odin-server process needs no relay.
type FanoutConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
	Subject string `mapstructure:"subject"`
}

// Load reads configuration from environment variables and an optional
// config file (SPEC_FULL.md §2 "Configuration").
func Load() (Config, error) {
	v := viper.New()

	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10*time.Second)
	v.SetDefault("server.write_timeout", 10*time.Second)
	v.SetDefault("server.idle_timeout", 120*time.Second)
	v.SetDefault("server.read_buffer_size", 16<<10)
	v.SetDefault("server.write_buffer_size", 16<<10)

	v.SetDefault("websocket.path", "/data")
	v.SetDefault("websocket.max_connections", 100000)
	v.SetDefault("websocket.send_queue_size", 256)
	v.SetDefault("websocket.max_message_bytes", 1<<20)
	v.SetDefault("websocket.enable_compression", false)

	v.SetDefault("metrics.enabled", true)
	v.SetDefault("metrics.listen_addr", ":9095")
	v.SetDefault("metrics.endpoint", "/metrics")
	v.SetDefault("metrics.service_name", "odin")

	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.development", false)

	v.SetDefault("auth.token_duration", 24*time.Hour)
	v.SetDefault("auth.require_verified_token", false)

	v.SetDefault("client.server_url", "ws://127.0.0.1:8080/data")
	v.SetDefault("client.initial_backoff", 1*time.Second)
	v.SetDefault("client.max_backoff", 512*time.Second)
	v.SetDefault("client.handshake_timeout", 10*time.Second)

	v.SetDefault("docstore.enabled", false)
	v.SetDefault("docstore.root_collection", "objects")

	v.SetDefault("fanout.enabled", false)
	v.SetDefault("fanout.url", "nats://127.0.0.1:4222")
	v.SetDefault("fanout.subject", "odin.deltas")

	v.SetConfigName("odin")
	v.AddConfigPath(".")
	v.AddConfigPath("./config")
	v.SetEnvPrefix("ODIN")
	v.AutomaticEnv()

	// spec.md §6.3: the listen port is also read directly from HTTP_PORT,
	// outside the ODIN_ prefix, to match deployment platforms that inject
	// that variable unconditionally.
	if err := v.BindEnv("server.port", "HTTP_PORT"); err != nil {
		return Config{}, fmt.Errorf("bind HTTP_PORT: %w", err)
	}

	// Attempt to read a config file; absence is not an error.
	_ = v.ReadInConfig()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("config unmarshal: %w", err)
	}

	if cfg.WebSocket.SendQueueSize <= 0 {
		cfg.WebSocket.SendQueueSize = 256
	}

	return cfg, nil
}
