package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	APIBaseURL      string `mapstructure:"API_BASE_URL"`
	Env             string `mapstructure:"ENV"`
	StateDir        string `mapstructure:"SMARTLAB_STATE_DIR"`
	ActivityEnabled bool   `mapstructure:"ACTIVITY_ENABLED"`
	HTTPTimeoutSecs int    `mapstructure:"HTTP_TIMEOUT_SECONDS"`
	SandboxPort     string `mapstructure:"SANDBOX_PORT"`
}

func Load() (*Config, error) {
	v := viper.New()
	v.SetConfigFile(".env")
	v.AutomaticEnv()

	// Defaults
	v.SetDefault("API_BASE_URL", "http://localhost:5000/api")
	v.SetDefault("ENV", "development")
	v.SetDefault("ACTIVITY_ENABLED", false)
	v.SetDefault("HTTP_TIMEOUT_SECONDS", 0)
	v.SetDefault("SANDBOX_PORT", "5000")

	// Bind env vars explicitly so Unmarshal picks them up
	v.BindEnv("API_BASE_URL")
	v.BindEnv("ENV")
	v.BindEnv("SMARTLAB_STATE_DIR")
	v.BindEnv("ACTIVITY_ENABLED")
	v.BindEnv("HTTP_TIMEOUT_SECONDS")
	v.BindEnv("SANDBOX_PORT")

	// Try reading .env file, but don't fail if missing
	_ = v.ReadInConfig()

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if cfg.StateDir == "" {
		base, err := os.UserConfigDir()
		if err != nil {
			return nil, fmt.Errorf("resolving state dir: %w", err)
		}
		cfg.StateDir = filepath.Join(base, "smartlab")
	}

	return cfg, nil
}

func (c *Config) IsDev() bool {
	return c.Env == "development"
}

// IsProduction returns true when the client is configured for production mode.
func (c *Config) IsProduction() bool {
	return c.Env == "production"
}

// ActivityLoggingEnabled reports whether the activity audit pipeline should
// emit events. ENV=production enables it unconditionally.
func (c *Config) ActivityLoggingEnabled() bool {
	return c.IsProduction() || c.ActivityEnabled
}

// Validate checks that the configuration is safe to run with.
func (c *Config) Validate() error {
	if c.Env != "development" && c.Env != "production" && c.Env != "test" {
		return fmt.Errorf("ENV must be \"development\", \"production\", or \"test\", got %q", c.Env)
	}
	u, err := url.Parse(c.APIBaseURL)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return fmt.Errorf("API_BASE_URL %q is not an absolute URL", c.APIBaseURL)
	}
	if c.HTTPTimeoutSecs < 0 {
		return fmt.Errorf("HTTP_TIMEOUT_SECONDS must not be negative, got %d", c.HTTPTimeoutSecs)
	}
	return nil
}
