// Package config defines the configuration surface recognized by every
// Aether component (spec §6). It is read either from a YAML file (the
// Go analogue of the original Rust implementation's serde_yaml-backed
// config.rs) or from the environment via go-envconfig, falling back to
// compiled-in defaults — the same load_or_default shape as the
// original's Config::get_config().
package config

import (
	"context"
	"os"
	"time"

	"github.com/sethvargo/go-envconfig"
	"gopkg.in/yaml.v3"

	"github.com/aethernet/aether/pkg/alog"
)

// Aether holds the orchestration-layer knobs: tracker polling and the
// jitter added to the authentication step timeout.
type Aether struct {
	ServerRetryDelay    time.Duration `yaml:"server_retry_delay" env:"AETHER_SERVER_RETRY_DELAY,default=1s"`
	ServerPollTime      time.Duration `yaml:"server_poll_time" env:"AETHER_SERVER_POLL_TIME,default=1s"`
	HandshakeRetryDelay time.Duration `yaml:"handshake_retry_delay" env:"AETHER_HANDSHAKE_RETRY_DELAY,default=5s"`
	ConnectionCheckDelay time.Duration `yaml:"connection_check_delay" env:"AETHER_CONNECTION_CHECK_DELAY,default=1s"`
	DeltaTime           time.Duration `yaml:"delta_time" env:"AETHER_DELTA_TIME,default=100ms"`
	PollTimeUS          time.Duration `yaml:"poll_time_us" env:"AETHER_POLL_TIME_US,default=100us"`
}

// Handshake holds the 3-way handshake timing (spec §4.5).
type Handshake struct {
	PeerPollTime     time.Duration `yaml:"peer_poll_time" env:"AETHER_HANDSHAKE_PEER_POLL_TIME,default=500ms"`
	HandshakeTimeout time.Duration `yaml:"handshake_timeout" env:"AETHER_HANDSHAKE_TIMEOUT,default=30s"`
}

// Link holds the send/receive loop timing (spec §4.7–§4.8).
type Link struct {
	WindowSize  int           `yaml:"window_size" env:"AETHER_LINK_WINDOW_SIZE,default=32"`
	AckWaitTime time.Duration `yaml:"ack_wait_time" env:"AETHER_LINK_ACK_WAIT_TIME,default=200ms"`
	PollTimeUS  time.Duration `yaml:"poll_time_us" env:"AETHER_LINK_POLL_TIME_US,default=100us"`
	Timeout     time.Duration `yaml:"timeout" env:"AETHER_LINK_TIMEOUT,default=10s"`
	RetryDelay  time.Duration `yaml:"retry_delay" env:"AETHER_LINK_RETRY_DELAY,default=500ms"`
	AckOnlyTime time.Duration `yaml:"ack_only_time" env:"AETHER_LINK_ACK_ONLY_TIME,default=2s"`
	MaxRetries  int           `yaml:"max_retries" env:"AETHER_LINK_MAX_RETRIES,default=8"`
}

// Config is the full configuration tree passed to Link.New and the
// handshake/auth helpers.
type Config struct {
	Aether    Aether    `yaml:"aether"`
	Handshake Handshake `yaml:"handshake"`
	Link      Link      `yaml:"link"`
}

// Default returns the compiled-in configuration, matching the defaults
// of the original implementation's AetherConfig::default().
func Default() Config {
	return Config{
		Aether: Aether{
			ServerRetryDelay:     time.Second,
			ServerPollTime:       time.Second,
			HandshakeRetryDelay:  5 * time.Second,
			ConnectionCheckDelay: time.Second,
			DeltaTime:            100 * time.Millisecond,
			PollTimeUS:           100 * time.Microsecond,
		},
		Handshake: Handshake{
			PeerPollTime:     500 * time.Millisecond,
			HandshakeTimeout: 30 * time.Second,
		},
		Link: Link{
			WindowSize:  32,
			AckWaitTime: 200 * time.Millisecond,
			PollTimeUS:  100 * time.Microsecond,
			Timeout:     10 * time.Second,
			RetryDelay:  500 * time.Millisecond,
			AckOnlyTime: 2 * time.Second,
			MaxRetries:  8,
		},
	}
}

// FromEnv loads configuration from the process environment, falling
// back to Default()'s values for anything unset.
func FromEnv(ctx context.Context) (Config, error) {
	c := Default()
	if err := envconfig.Process(ctx, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// FromFile loads configuration from a YAML file at path.
func FromFile(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	c := Default()
	if err := yaml.Unmarshal(data, &c); err != nil {
		return Config{}, err
	}
	return c, nil
}

// Load mirrors the original Config::get_config(): try the given path,
// and fall back to environment-derived defaults without failing. An
// absent file falls back silently; a file that exists but cannot be
// read or parsed logs a warning first.
func Load(path string) Config {
	if path != "" {
		if c, err := FromFile(path); err == nil {
			return c
		} else if !os.IsNotExist(err) {
			alog.For("config").WithError(err).Warn("failed to parse config file, using defaults")
		}
	}
	c, err := FromEnv(context.Background())
	if err != nil {
		alog.For("config").WithError(err).Warn("failed to read config from environment, using compiled-in defaults")
		return Default()
	}
	return c
}
