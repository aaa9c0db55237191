package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// Settings holds the runtime settings of the widget host.
type Settings struct {
	Storage StorageSettings
	Render  RenderSettings
	Debug   DebugSettings
	Session SessionSettings
}

// StorageSettings holds sqlite settings.
type StorageSettings struct {
	Path string
}

// RenderSettings bounds render work per flush.
type RenderSettings struct {
	MaxPasses   int `mapstructure:"max_passes"`
	Concurrency int
}

// DebugSettings configures the inspection server. An empty Addr disables it.
type DebugSettings struct {
	Addr string
}

// SessionSettings names the local session. An empty Name gets a random id.
type SessionSettings struct {
	Name string
}

// LoadSettings reads settings from file and env. Env var overrides use
// prefix WIDGETKIT_. path selects the settings file; when empty,
// WIDGETKIT_CONFIG is used, then widgethost.yaml in the working directory
// and the user config directory.
func LoadSettings(path string) (Settings, error) {
	v := viper.New()

	// default values
	v.SetDefault("storage.path", filepath.Join(dataHome(), "widgetkit", "widgets.db"))
	v.SetDefault("render.max_passes", 32)
	v.SetDefault("render.concurrency", 4)
	v.SetDefault("debug.addr", "")
	v.SetDefault("session.name", "")

	v.SetConfigType("yaml")

	if path == "" {
		path = os.Getenv("WIDGETKIT_CONFIG")
	}
	if path != "" {
		v.SetConfigFile(path)
	} else {
		v.AddConfigPath(".")
		if dir, err := os.UserConfigDir(); err == nil {
			v.AddConfigPath(filepath.Join(dir, "widgetkit"))
		}
		v.SetConfigName("widgethost")
	}

	v.SetEnvPrefix("WIDGETKIT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if path != "" || !errors.As(err, &notFound) {
			return Settings{}, fmt.Errorf("read settings: %w", err)
		}
	}

	var s Settings
	if err := v.Unmarshal(&s); err != nil {
		return Settings{}, fmt.Errorf("unmarshal settings: %w", err)
	}
	if err := s.Validate(); err != nil {
		return Settings{}, err
	}
	return s, nil
}

// Validate checks setting ranges.
func (s Settings) Validate() error {
	if s.Render.MaxPasses < 1 {
		return fmt.Errorf("render.max_passes must be positive (got %d)", s.Render.MaxPasses)
	}
	if s.Render.Concurrency < 1 {
		return fmt.Errorf("render.concurrency must be positive (got %d)", s.Render.Concurrency)
	}
	if strings.TrimSpace(s.Storage.Path) == "" {
		return errors.New("storage.path must not be empty")
	}
	return nil
}

// SaveSettings writes s to path, creating the directory if needed.
func SaveSettings(path string, s Settings) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("mkdir config dir: %w", err)
	}

	v := viper.New()
	v.SetConfigType("yaml")
	v.Set("storage.path", s.Storage.Path)
	v.Set("render.max_passes", s.Render.MaxPasses)
	v.Set("render.concurrency", s.Render.Concurrency)
	v.Set("debug.addr", s.Debug.Addr)
	v.Set("session.name", s.Session.Name)

	if err := v.WriteConfigAs(path); err != nil {
		return fmt.Errorf("write settings: %w", err)
	}
	return nil
}

func dataHome() string {
	if dir := os.Getenv("XDG_DATA_HOME"); dir != "" {
		return dir
	}
	if home, err := os.UserHomeDir(); err == nil {
		return filepath.Join(home, ".local", "share")
	}
	return os.TempDir()
}
