/*
Package configs loads the relay's configuration.

Values are resolved with viper in increasing precedence: built-in defaults, an optional
YAML config file, then environment variables (PORT, ENVIRONMENT, ALLOWED_ORIGINS, ...).
*/
package configs

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/viper"
)

const (
	// DefaultMaxRoomSize is the member limit of a room.
	DefaultMaxRoomSize = 10

	developmentSecret = "voicerelay_insecure_development_secret_change_me"
)

// AppConfig contains all configuration parameters required for the application to run.
type AppConfig struct {
	// General Server Settings
	Environment string `mapstructure:"environment"`
	Port        int    `mapstructure:"port"`
	LogLevel    string `mapstructure:"log_level"`
	StaticDir   string `mapstructure:"static_dir"`

	// Relay Settings
	MaxRoomSize     int   `mapstructure:"max_room_size"`
	MaxMessageBytes int64 `mapstructure:"max_message_bytes"`
	SendQueueSize   int   `mapstructure:"send_queue_size"`

	// Security Settings
	AllowedOrigins []string `mapstructure:"-"`
	JWTSecret      string   `mapstructure:"jwt_secret"`
	JoinRate       float64  `mapstructure:"join_rate"`
	JoinBurst      int      `mapstructure:"join_burst"`

	// Database Settings (optional; empty disables the activity log)
	DatabaseDSN string `mapstructure:"database_url"`
}

// IsDevelopment reports whether the server runs in the development environment.
func (c *AppConfig) IsDevelopment() bool {
	return c.Environment == "development"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("environment", "development")
	v.SetDefault("port", 3000)
	v.SetDefault("log_level", "")
	v.SetDefault("static_dir", "./public")
	v.SetDefault("max_room_size", DefaultMaxRoomSize)
	v.SetDefault("max_message_bytes", 64*1024)
	v.SetDefault("send_queue_size", 256)
	v.SetDefault("allowed_origins", "")
	v.SetDefault("jwt_secret", "")
	v.SetDefault("join_rate", 1.0)
	v.SetDefault("join_burst", 10)
	v.SetDefault("database_url", "")
}

// LoadConfig resolves the configuration. configPath may be empty, in which case
// only defaults and the environment are used. A named file that does not exist is an error.
func LoadConfig(configPath string) (*AppConfig, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if errors.As(err, &notFound) || errors.Is(err, os.ErrNotExist) {
				return nil, fmt.Errorf("config file %s not found: %w", configPath, err)
			}
			return nil, fmt.Errorf("read config %s: %w", configPath, err)
		}
	}

	cfg := &AppConfig{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	cfg.AllowedOrigins = splitList(v.Get("allowed_origins"))

	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *AppConfig) validate() error {
	if c.Port < 1024 || c.Port > 65535 {
		return fmt.Errorf("port number %d is outside the recommended range (%d-%d) to avoid privileged ports", c.Port, 1024, 65535)
	}

	if c.MaxRoomSize < 1 {
		return fmt.Errorf("max_room_size must be at least 1, got %d", c.MaxRoomSize)
	}

	if c.MaxMessageBytes < 1024 {
		return fmt.Errorf("max_message_bytes must be at least 1024, got %d", c.MaxMessageBytes)
	}

	if c.SendQueueSize < 1 {
		return fmt.Errorf("send_queue_size must be at least 1, got %d", c.SendQueueSize)
	}

	if c.JoinRate <= 0 || c.JoinBurst < 1 {
		return fmt.Errorf("join_rate and join_burst must be positive, got %v/%d", c.JoinRate, c.JoinBurst)
	}

	if c.JWTSecret == "" {
		if !c.IsDevelopment() {
			return fmt.Errorf("JWT_SECRET environment variable is required in %s environment for security", c.Environment)
		}
		c.JWTSecret = developmentSecret
	}

	return nil
}

// splitList accepts either a comma separated string (environment) or a YAML list.
func splitList(raw any) []string {
	var parts []string

	switch val := raw.(type) {
	case string:
		parts = strings.Split(val, ",")
	case []string:
		parts = val
	case []any:
		for _, item := range val {
			if s, ok := item.(string); ok {
				parts = append(parts, s)
			}
		}
	}

	out := []string{}
	for _, p := range parts {
		if trimmed := strings.TrimSpace(p); trimmed != "" {
			out = append(out, trimmed)
		}
	}
	return out
}
