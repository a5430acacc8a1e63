package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/ariel-frischer/alerter/internal/launch"
	"github.com/ariel-frischer/alerter/internal/notify"
	"github.com/ariel-frischer/alerter/internal/registry"
	"github.com/go-playground/validator/v10"
	"github.com/knadh/koanf/parsers/json"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix prefixes every environment variable override.
const EnvPrefix = "ALERTER_"

// Configuration represents the alerter configuration
type Configuration struct {
	Sender       string        `koanf:"sender"`
	Title        string        `koanf:"title" validate:"required"`
	JSON         bool          `koanf:"json"`
	Sound        string        `koanf:"sound"`
	PollInterval time.Duration `koanf:"poll_interval" validate:"min=10ms,max=5s"`
	StateDir     string        `koanf:"state_dir"`
	AppDir       string        `koanf:"app_dir"`
	Relaunch     bool          `koanf:"relaunch"`
	Debug        bool          `koanf:"debug"`
}

// Load loads configuration from the user config file, the explicit config
// file and environment sources.
// Priority: Environment variables > Explicit config > User config > Defaults
// Errors caused by bad values wrap notify.ErrValidation.
func Load(configPath string) (*Configuration, error) {
	k := koanf.New(".")

	// Apply defaults first
	for key, value := range GetDefaults() {
		k.Set(key, value)
	}

	if configPath == "" {
		if userPath, err := UserConfigPath(); err == nil {
			if _, err := os.Stat(userPath); err == nil {
				configPath = userPath
			}
		}
	} else if _, err := os.Stat(configPath); err != nil {
		return nil, fmt.Errorf("%w: config file %s: %v", notify.ErrValidation, configPath, err)
	}

	if configPath != "" {
		if err := k.Load(file.Provider(configPath), json.Parser()); err != nil {
			return nil, fmt.Errorf("%w: loading config %s: %v", notify.ErrValidation, configPath, err)
		}
	}

	// Override with environment variables (highest priority)
	if err := k.Load(env.Provider(EnvPrefix, ".", envTransform), nil); err != nil {
		return nil, fmt.Errorf("loading environment: %w", err)
	}

	var cfg Configuration
	if err := k.Unmarshal("", &cfg); err != nil {
		return nil, fmt.Errorf("%w: unmarshal config: %v", notify.ErrValidation, err)
	}

	if err := validator.New().Struct(cfg); err != nil {
		return nil, fmt.Errorf("%w: %s", notify.ErrValidation, describe(err))
	}

	if err := cfg.resolveDirs(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// UserConfigPath returns the per-user config file location.
func UserConfigPath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", fmt.Errorf("getting config directory: %w", err)
	}
	return filepath.Join(dir, "alerter", "config.json"), nil
}

func (c *Configuration) resolveDirs() error {
	c.StateDir = expandHomePath(c.StateDir)
	c.AppDir = expandHomePath(c.AppDir)

	if c.StateDir == "" {
		dir, err := registry.DefaultStateDir()
		if err != nil {
			return err
		}
		c.StateDir = dir
	}
	if c.AppDir == "" {
		dir, err := launch.DefaultAppDir()
		if err != nil {
			return err
		}
		c.AppDir = dir
	}
	return nil
}

func describe(err error) string {
	var verrs validator.ValidationErrors
	if !errors.As(err, &verrs) || len(verrs) == 0 {
		return err.Error()
	}
	fe := verrs[0]
	switch fe.Field() {
	case "PollInterval":
		return fmt.Sprintf("poll_interval must be between 10ms and 5s, got %v", fe.Value())
	case "Title":
		return "title cannot be empty"
	}
	return fmt.Sprintf("%s failed %q", fe.Field(), fe.Tag())
}

// envTransform converts environment variable names to config keys
// Example: ALERTER_POLL_INTERVAL -> poll_interval
func envTransform(s string) string {
	return strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
}

// expandHomePath expands ~ to the user's home directory
func expandHomePath(path string) string {
	if strings.HasPrefix(path, "~/") {
		homeDir, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(homeDir, path[2:])
		}
	}
	return path
}
