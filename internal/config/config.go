package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Config represents the complete gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Auth      AuthConfig      `yaml:"auth"`
	Bots      []BotConfig     `yaml:"bots"`
	Transport TransportConfig `yaml:"transport"`
	Media     MediaConfig     `yaml:"media"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig contains HTTP server configuration
type ServerConfig struct {
	Port         int    `yaml:"port"`
	Address      string `yaml:"address"`
	PublicDir    string `yaml:"public_dir"`
	ReadTimeout  int    `yaml:"read_timeout"`  // seconds
	WriteTimeout int    `yaml:"write_timeout"` // seconds
	IdleTimeout  int    `yaml:"idle_timeout"`  // seconds
}

// AuthConfig contains the access-token gate for protected routes.
// Token issuance and user credential storage live in an external service;
// the gateway only compares the shared token.
type AuthConfig struct {
	Token  string `yaml:"token"`
	Header string `yaml:"header"`
}

// BotConfig describes one tenant bot session
type BotConfig struct {
	Name           string `yaml:"name"`
	BridgeEndpoint string `yaml:"bridge_endpoint"` // overrides transport.bridge_endpoint
	DataDir        string `yaml:"data_dir"`        // overrides transport.data_dir
}

// TransportConfig contains messaging bridge client configuration
type TransportConfig struct {
	BridgeEndpoint  string `yaml:"bridge_endpoint"`
	APIKey          string `yaml:"api_key"`
	RecipientSuffix string `yaml:"recipient_suffix"`
	DataDir         string `yaml:"data_dir"`
	Timeout         int    `yaml:"timeout"` // seconds
	MaxRetries      int    `yaml:"max_retries"`
	MaxConcurrent   int    `yaml:"max_concurrent"`
}

// MediaConfig contains upload storage and audio conversion parameters
type MediaConfig struct {
	UploadDir         string `yaml:"upload_dir"`
	FFmpegPath        string `yaml:"ffmpeg_path"`
	OutputFormat      string `yaml:"output_format"`
	ConversionTimeout int    `yaml:"conversion_timeout"` // seconds
	MaxUploadSize     int64  `yaml:"max_upload_size"`    // bytes
}

// LoggingConfig contains logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
	Output string `yaml:"output"`
}

// Load reads and parses the configuration file. PORT and AUTH_TOKEN
// environment variables override their file counterparts so a .env-driven
// deployment keeps working.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var config Config
	if err := yaml.Unmarshal(data, &config); err != nil {
		return nil, fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	config.applyEnvOverrides()
	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) applyEnvOverrides() {
	if v := os.Getenv("PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			c.Server.Port = port
		}
	}
	if v := os.Getenv("AUTH_TOKEN"); v != "" {
		c.Auth.Token = v
	}
}

func (c *Config) applyDefaults() {
	if c.Server.Address == "" {
		c.Server.Address = "0.0.0.0"
	}
	if c.Server.PublicDir == "" {
		c.Server.PublicDir = "public"
	}
	if c.Server.ReadTimeout == 0 {
		c.Server.ReadTimeout = 30
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 30
	}
	if c.Server.IdleTimeout == 0 {
		c.Server.IdleTimeout = 60
	}
	if c.Auth.Header == "" {
		c.Auth.Header = "x-access-token"
	}
	if c.Transport.RecipientSuffix == "" {
		c.Transport.RecipientSuffix = "@c.us"
	}
	if c.Transport.DataDir == "" {
		c.Transport.DataDir = "."
	}
	if c.Transport.Timeout == 0 {
		c.Transport.Timeout = 30
	}
	if c.Transport.MaxConcurrent == 0 {
		c.Transport.MaxConcurrent = 10
	}
	if c.Media.UploadDir == "" {
		c.Media.UploadDir = "public/uploads"
	}
	if c.Media.FFmpegPath == "" {
		c.Media.FFmpegPath = "ffmpeg"
	}
	if c.Media.OutputFormat == "" {
		c.Media.OutputFormat = "opus"
	}
	if c.Media.ConversionTimeout == 0 {
		c.Media.ConversionTimeout = 120
	}
	if c.Media.MaxUploadSize == 0 {
		c.Media.MaxUploadSize = 32 << 20 // 32 MiB
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
}

// Validate performs comprehensive validation of the configuration
func (c *Config) Validate() error {
	if err := c.Server.Validate(); err != nil {
		return fmt.Errorf("server config: %w", err)
	}

	if err := c.Auth.Validate(); err != nil {
		return fmt.Errorf("auth config: %w", err)
	}

	if err := c.ValidateBots(); err != nil {
		return fmt.Errorf("bots config: %w", err)
	}

	if err := c.Transport.Validate(); err != nil {
		return fmt.Errorf("transport config: %w", err)
	}

	if err := c.Media.Validate(); err != nil {
		return fmt.Errorf("media config: %w", err)
	}

	if err := c.Logging.Validate(); err != nil {
		return fmt.Errorf("logging config: %w", err)
	}

	return nil
}

// Validate validates server configuration. A missing or out-of-range port is
// the fatal startup condition: no session can be reached without it.
func (s *ServerConfig) Validate() error {
	if s.Port < 1 || s.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", s.Port)
	}

	if s.Address == "" {
		return fmt.Errorf("address cannot be empty")
	}

	if s.ReadTimeout < 1 || s.WriteTimeout < 1 || s.IdleTimeout < 1 {
		return fmt.Errorf("timeouts must be at least 1 second")
	}

	return nil
}

// Validate validates auth configuration
func (a *AuthConfig) Validate() error {
	if a.Token == "" {
		return fmt.Errorf("token cannot be empty")
	}

	if a.Header == "" {
		return fmt.Errorf("header cannot be empty")
	}

	return nil
}

// ValidateBots validates the tenant list: at least one bot, unique non-empty names
func (c *Config) ValidateBots() error {
	if len(c.Bots) == 0 {
		return fmt.Errorf("at least one bot must be configured")
	}

	seen := make(map[string]bool, len(c.Bots))
	for i, bot := range c.Bots {
		if bot.Name == "" {
			return fmt.Errorf("bot %d: name cannot be empty", i)
		}
		if seen[bot.Name] {
			return fmt.Errorf("duplicate bot name '%s'", bot.Name)
		}
		seen[bot.Name] = true
	}

	return nil
}

// Validate validates transport configuration
func (t *TransportConfig) Validate() error {
	if t.BridgeEndpoint == "" {
		return fmt.Errorf("bridge_endpoint cannot be empty")
	}

	if t.Timeout < 1 {
		return fmt.Errorf("timeout must be at least 1 second, got %d", t.Timeout)
	}

	if t.MaxRetries < 0 {
		return fmt.Errorf("max_retries cannot be negative, got %d", t.MaxRetries)
	}

	if t.MaxConcurrent < 1 {
		return fmt.Errorf("max_concurrent must be at least 1, got %d", t.MaxConcurrent)
	}

	return nil
}

// Validate validates media configuration
func (m *MediaConfig) Validate() error {
	if m.UploadDir == "" {
		return fmt.Errorf("upload_dir cannot be empty")
	}

	if m.FFmpegPath == "" {
		return fmt.Errorf("ffmpeg_path cannot be empty")
	}

	validFormats := map[string]bool{"mp3": true, "ogg": true, "wav": true, "opus": true}
	if !validFormats[m.OutputFormat] {
		return fmt.Errorf("output_format must be one of [mp3, ogg, wav, opus], got '%s'", m.OutputFormat)
	}

	if m.ConversionTimeout < 1 {
		return fmt.Errorf("conversion_timeout must be at least 1 second, got %d", m.ConversionTimeout)
	}

	if m.MaxUploadSize < 1 {
		return fmt.Errorf("max_upload_size must be positive, got %d", m.MaxUploadSize)
	}

	return nil
}

// Validate validates logging configuration
func (l *LoggingConfig) Validate() error {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true,
	}
	if !validLevels[l.Level] {
		return fmt.Errorf("level must be one of [debug, info, warn, error], got '%s'", l.Level)
	}

	validFormats := map[string]bool{"json": true, "text": true}
	if !validFormats[l.Format] {
		return fmt.Errorf("format must be 'json' or 'text', got '%s'", l.Format)
	}

	return nil
}

// BridgeEndpoint returns the bridge endpoint for a bot, falling back to the
// transport default
func (c *Config) BridgeEndpoint(bot BotConfig) string {
	if bot.BridgeEndpoint != "" {
		return bot.BridgeEndpoint
	}
	return c.Transport.BridgeEndpoint
}

// DataDir returns the pairing-artifact directory for a bot, falling back to
// the transport default
func (c *Config) DataDir(bot BotConfig) string {
	if bot.DataDir != "" {
		return bot.DataDir
	}
	return c.Transport.DataDir
}

// GetTimeoutDuration returns the transport timeout as a time.Duration
func (t *TransportConfig) GetTimeoutDuration() time.Duration {
	return time.Duration(t.Timeout) * time.Second
}

// GetConversionTimeoutDuration returns the conversion timeout as a time.Duration
func (m *MediaConfig) GetConversionTimeoutDuration() time.Duration {
	return time.Duration(m.ConversionTimeout) * time.Second
}

// GetReadTimeoutDuration returns the HTTP read timeout as a time.Duration
func (s *ServerConfig) GetReadTimeoutDuration() time.Duration {
	return time.Duration(s.ReadTimeout) * time.Second
}

// GetWriteTimeoutDuration returns the HTTP write timeout as a time.Duration
func (s *ServerConfig) GetWriteTimeoutDuration() time.Duration {
	return time.Duration(s.WriteTimeout) * time.Second
}

// GetIdleTimeoutDuration returns the HTTP idle timeout as a time.Duration
func (s *ServerConfig) GetIdleTimeoutDuration() time.Duration {
	return time.Duration(s.IdleTimeout) * time.Second
}
