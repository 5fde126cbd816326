// Package settings loads keg's configuration.
//
// Values are layered, later layers winning:
//
//  1. built-in defaults, with directories placed under the XDG base directories
//  2. the TOML file named by KEG_CONFIG, or $XDG_CONFIG_HOME/keg/config.toml
//  3. KEG_* environment variables (KEG_BIN_DIR, KEG_DOWNLOAD_TIMEOUT, ...)
package settings

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"github.com/knadh/koanf/parsers/toml"
	"github.com/knadh/koanf/providers/confmap"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

const (
	AppName   = "keg"
	EnvPrefix = "KEG_"
	// EnvConfig names an explicit config file.
	EnvConfig = "KEG_CONFIG"
)

// Settings is keg's resolved configuration.
type Settings struct {
	BinDir   string   `koanf:"bin_dir"`
	CacheDir string   `koanf:"cache_dir"`
	StateDir string   `koanf:"state_dir"`
	TapDir   string   `koanf:"tap_dir"`
	Keyring  string   `koanf:"keyring"`
	Download Download `koanf:"download"`
	Debug    bool     `koanf:"debug"`

	// Source is the config file that was loaded, empty when none was.
	Source string `koanf:"-"`
}

// Download configures artifact fetching.
type Download struct {
	Timeout   time.Duration `koanf:"timeout"`
	Retries   int           `koanf:"retries"`
	UserAgent string        `koanf:"user_agent"`
}

// Defaults returns the built-in configuration layer.
func Defaults() map[string]interface{} {
	return map[string]interface{}{
		"bin_dir":             filepath.Join(xdg.Home, ".local", "bin"),
		"cache_dir":           filepath.Join(xdg.CacheHome, AppName),
		"state_dir":           filepath.Join(xdg.StateHome, AppName),
		"tap_dir":             filepath.Join(xdg.DataHome, AppName, "tap"),
		"keyring":             "",
		"download.timeout":    "5m",
		"download.retries":    3,
		"download.user_agent": "keg/1.0",
		"debug":               false,
	}
}

// ConfigPath returns the config file location: KEG_CONFIG when set,
// otherwise keg/config.toml under the XDG config home.
func ConfigPath() string {
	if p := os.Getenv(EnvConfig); p != "" {
		return p
	}
	return filepath.Join(xdg.ConfigHome, AppName, "config.toml")
}

// Load reads the configuration from ConfigPath. A missing default config
// file is not an error; a missing KEG_CONFIG file is.
func Load() (*Settings, error) {
	return LoadFrom("")
}

// LoadFrom reads the configuration using path as the config file, which
// must then exist. An empty path means ConfigPath.
func LoadFrom(path string) (*Settings, error) {
	required := path != "" || os.Getenv(EnvConfig) != ""
	if path == "" {
		path = ConfigPath()
	}

	k := koanf.New(".")

	if err := k.Load(confmap.Provider(Defaults(), "."), nil); err != nil {
		return nil, fmt.Errorf("failed to load defaults: %w", err)
	}

	source := ""
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), toml.Parser()); err != nil {
			return nil, fmt.Errorf("failed to load config from %s: %w", path, err)
		}
		source = path
	} else if required {
		return nil, fmt.Errorf("config file %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("failed to load env vars: %w", err)
	}

	var s Settings
	if err := k.UnmarshalWithConf("", &s, koanf.UnmarshalConf{Tag: "koanf"}); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	s.Source = source

	s.expand()
	if err := s.Validate(); err != nil {
		return nil, err
	}
	return &s, nil
}

// envKey maps KEG_DOWNLOAD_USER_AGENT to download.user_agent and
// KEG_BIN_DIR to bin_dir. KEG_CONFIG and KEG_GIT_* are not settings.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	switch {
	case key == "config", strings.HasPrefix(key, "git_"):
		return ""
	case strings.HasPrefix(key, "download_"):
		return "download." + strings.TrimPrefix(key, "download_")
	}
	return key
}

// expand resolves a leading ~ in directory settings.
func (s *Settings) expand() {
	for _, p := range []*string{&s.BinDir, &s.CacheDir, &s.StateDir, &s.TapDir, &s.Keyring} {
		if *p == "~" || strings.HasPrefix(*p, "~/") {
			*p = filepath.Join(xdg.Home, strings.TrimPrefix(*p, "~"))
		}
	}
}

// Validate checks that the configuration is usable.
func (s *Settings) Validate() error {
	dirs := map[string]string{
		"bin_dir":   s.BinDir,
		"cache_dir": s.CacheDir,
		"state_dir": s.StateDir,
	}
	for key, dir := range dirs {
		if dir == "" {
			return fmt.Errorf("invalid config: %s is empty", key)
		}
		if !filepath.IsAbs(dir) {
			return fmt.Errorf("invalid config: %s must be absolute, got %q", key, dir)
		}
	}
	if s.Download.Timeout <= 0 {
		return fmt.Errorf("invalid config: download.timeout must be positive, got %s", s.Download.Timeout)
	}
	if s.Download.Retries < 1 {
		return fmt.Errorf("invalid config: download.retries must be at least 1, got %d", s.Download.Retries)
	}
	return nil
}
