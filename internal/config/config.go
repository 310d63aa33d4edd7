// Package config loads daemon and CLI settings from YAML, the environment and .env files.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"github.com/awaistahir/cheapest-period/internal/card"
)

// EnvPrefix is prepended to every environment override, e.g. CHEAPEST_SOURCE_TOKEN
const EnvPrefix = "CHEAPEST"

// Source kinds
const (
	SourceREST    = "rest"
	SourceMQTT    = "mqtt"
	SourceOctopus = "octopus"
	SourceFile    = "file"
)

// Source selects where entity states come from
type Source struct {
	Kind string `mapstructure:"kind"`

	// rest
	URL   string `mapstructure:"url"`
	Token string `mapstructure:"token"`

	// mqtt
	Broker    string `mapstructure:"broker"`
	ClientID  string `mapstructure:"client_id"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	BaseTopic string `mapstructure:"base_topic"`

	// octopus
	Region  string `mapstructure:"region"`
	Product string `mapstructure:"product"`
	Cache   bool   `mapstructure:"cache"`

	// file
	Path string `mapstructure:"path"`
}

// Config is the full application configuration
type Config struct {
	Listen          string        `mapstructure:"listen"`
	DBPath          string        `mapstructure:"db"`
	RefreshInterval time.Duration `mapstructure:"refresh_interval"`
	LogLevel        string        `mapstructure:"log_level"`
	LogDevelopment  bool          `mapstructure:"log_development"`
	Source          Source        `mapstructure:"source"`
	Cards           []card.Config `mapstructure:"cards"`
}

// DefaultDir is where the config file and database live when no path is given
func DefaultDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".cheapest-period")
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("listen", ":8080")
	v.SetDefault("db", filepath.Join(DefaultDir(), "cheapest.db"))
	v.SetDefault("refresh_interval", 10*time.Second)
	v.SetDefault("log_level", "info")
	v.SetDefault("log_development", false)

	v.SetDefault("source.kind", SourceREST)
	v.SetDefault("source.url", "http://homeassistant.local:8123")
	v.SetDefault("source.token", "")
	v.SetDefault("source.broker", "")
	v.SetDefault("source.client_id", "cheapest-period")
	v.SetDefault("source.username", "")
	v.SetDefault("source.password", "")
	v.SetDefault("source.base_topic", "homeassistant")
	v.SetDefault("source.region", "C")
	v.SetDefault("source.product", "")
	v.SetDefault("source.cache", true)
	v.SetDefault("source.path", "")
}

// Load reads .env from the working directory, then the YAML config at path
// (or config.yaml in DefaultDir and the working directory), then CHEAPEST_*
// environment overrides. A missing config file is not an error.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("loading .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		if _, err := os.Stat(path); err != nil {
			return nil, fmt.Errorf("reading config: %w", err)
		}
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(DefaultDir())
		v.AddConfigPath(".")
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}

	if err := cfg.Source.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks that the selected source has what it needs
func (s Source) Validate() error {
	switch s.Kind {
	case SourceREST:
		if s.URL == "" {
			return errors.New("source.url is required for the rest source")
		}
	case SourceMQTT:
		if s.Broker == "" {
			return errors.New("source.broker is required for the mqtt source")
		}
	case SourceOctopus:
		if s.Region == "" {
			return errors.New("source.region is required for the octopus source")
		}
	case SourceFile:
		if s.Path == "" {
			return errors.New("source.path is required for the file source")
		}
	default:
		return fmt.Errorf("unknown source kind %q (want rest, mqtt, octopus or file)", s.Kind)
	}
	return nil
}
