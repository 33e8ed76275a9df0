package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// ErrInvalid marks configuration that could not be read or is unusable.
var ErrInvalid = errors.New("invalid configuration")

// Config holds all configuration for pkgsync
type Config struct {
	WritePath string        `mapstructure:"write_path" yaml:"write_path" json:"write_path" toml:"write_path"`
	Remote    RemoteConfig  `mapstructure:"remote" yaml:"remote" json:"remote" toml:"remote"`
	Cache     CacheConfig   `mapstructure:"cache" yaml:"cache" json:"cache" toml:"cache"`
	Patcher   PatcherConfig `mapstructure:"patcher" yaml:"patcher" json:"patcher" toml:"patcher"`
	Fetch     FetchConfig   `mapstructure:"fetch" yaml:"fetch" json:"fetch" toml:"fetch"`
	Legacy    LegacyConfig  `mapstructure:"legacy" yaml:"legacy" json:"legacy" toml:"legacy"`
	Metrics   MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics" toml:"metrics"`
}

// RemoteConfig names the content origins
type RemoteConfig struct {
	Primary  string `mapstructure:"primary" yaml:"primary" json:"primary" toml:"primary"`
	Fallback string `mapstructure:"fallback" yaml:"fallback" json:"fallback" toml:"fallback"`
}

// CacheConfig holds metadata cache lifetimes
type CacheConfig struct {
	PackageInfoTTL time.Duration `mapstructure:"package_info_ttl" yaml:"package_info_ttl" json:"package_info_ttl" toml:"package_info_ttl"`
	LatestTTL      time.Duration `mapstructure:"latest_ttl" yaml:"latest_ttl" json:"latest_ttl" toml:"latest_ttl"`
}

// PatcherConfig selects the download/apply engine
type PatcherConfig struct {
	ButlerPath  string        `mapstructure:"butler_path" yaml:"butler_path" json:"butler_path" toml:"butler_path"`
	Downloader  string        `mapstructure:"downloader" yaml:"downloader" json:"downloader" toml:"downloader"` // "butler" or "http"
	HTTPTimeout time.Duration `mapstructure:"http_timeout" yaml:"http_timeout" json:"http_timeout" toml:"http_timeout"`
}

// FetchConfig bounds parallel downloads; zero means unbounded
type FetchConfig struct {
	MaxParallel int `mapstructure:"max_parallel" yaml:"max_parallel" json:"max_parallel" toml:"max_parallel"`
}

// LegacyConfig controls maintenance of the rapid tag registry
type LegacyConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled" json:"enabled" toml:"enabled"`
	Host       string `mapstructure:"host" yaml:"host" json:"host" toml:"host"`
	TagSuffix  string `mapstructure:"tag_suffix" yaml:"tag_suffix" json:"tag_suffix" toml:"tag_suffix"`
	ArchiveExt string `mapstructure:"archive_ext" yaml:"archive_ext" json:"archive_ext" toml:"archive_ext"`
}

// MetricsConfig holds the optional Prometheus textfile target
type MetricsConfig struct {
	Textfile string `mapstructure:"textfile" yaml:"textfile" json:"textfile" toml:"textfile"`
}

// Downloader choices.
const (
	DownloaderButler = "butler"
	DownloaderHTTP   = "http"
)

func setDefaults(v *viper.Viper) {
	writePath := "."
	if home, err := GetHome(); err == nil {
		writePath = filepath.Join(home, "data")
	}
	v.SetDefault("write_path", writePath)
	v.SetDefault("remote.primary", "https://content.spring-launcher.com/pkg")
	v.SetDefault("remote.fallback", "https://spring-launcher.ams3.digitaloceanspaces.com/pkg")
	v.SetDefault("cache.package_info_ttl", time.Hour)
	v.SetDefault("cache.latest_ttl", 5*time.Minute)
	v.SetDefault("patcher.butler_path", "")
	v.SetDefault("patcher.downloader", DownloaderButler)
	v.SetDefault("patcher.http_timeout", time.Duration(0))
	v.SetDefault("fetch.max_parallel", 0)
	v.SetDefault("legacy.enabled", true)
	v.SetDefault("legacy.host", "repos.springrts.com")
	v.SetDefault("legacy.tag_suffix", ":test")
	v.SetDefault("legacy.archive_ext", ".sdz")
	v.SetDefault("metrics.textfile", "")
}

// flagKeys maps command-line flags onto configuration keys.
var flagKeys = map[string]string{
	"write-path":       "write_path",
	"butler":           "patcher.butler_path",
	"downloader":       "patcher.downloader",
	"max-parallel":     "fetch.max_parallel",
	"metrics-textfile": "metrics.textfile",
}

// Load resolves configuration from defaults, an optional config file, the
// environment (PKGSYNC_*) and any set flags, in increasing precedence. An
// explicit configFile must exist; otherwise pkgsync.yaml is searched in the
// working directory, $HOME and the pkgsync config directory.
func Load(configFile string, flags *pflag.FlagSet) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else {
		v.SetConfigName("pkgsync")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("$HOME")
		if home, err := GetHome(); err == nil {
			v.AddConfigPath(filepath.Join(home, "config"))
		}
	}

	v.SetEnvPrefix("PKGSYNC")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if configFile != "" || !errors.As(err, &notFound) {
			return nil, fmt.Errorf("%w: error reading config: %w", ErrInvalid, err)
		}
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("bind flag %s: %w", name, err)
				}
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("%w: error unmarshaling config: %w", ErrInvalid, err)
	}
	return &cfg, cfg.Validate()
}

// Validate rejects settings pkgsync cannot run with.
func (c *Config) Validate() error {
	var problems []string
	if strings.TrimSpace(c.WritePath) == "" {
		problems = append(problems, "write_path must not be empty")
	}
	for key, raw := range map[string]string{"remote.primary": c.Remote.Primary, "remote.fallback": c.Remote.Fallback} {
		if raw == "" && key == "remote.fallback" {
			continue
		}
		u, err := url.Parse(raw)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			problems = append(problems, fmt.Sprintf("%s must be an http(s) URL, got %q", key, raw))
		}
	}
	if c.Cache.PackageInfoTTL < 0 || c.Cache.LatestTTL < 0 {
		problems = append(problems, "cache TTLs must not be negative")
	}
	switch c.Patcher.Downloader {
	case DownloaderButler, DownloaderHTTP:
	default:
		problems = append(problems, fmt.Sprintf("patcher.downloader must be %q or %q, got %q",
			DownloaderButler, DownloaderHTTP, c.Patcher.Downloader))
	}
	if c.Fetch.MaxParallel < 0 {
		problems = append(problems, "fetch.max_parallel must not be negative")
	}
	if len(problems) == 0 {
		return nil
	}
	sort.Strings(problems)
	return fmt.Errorf("%w: %s", ErrInvalid, strings.Join(problems, "; "))
}

// GetHome returns the pkgsync home directory
func GetHome() (string, error) {
	if home := os.Getenv("PKGSYNC_HOME"); home != "" {
		return home, nil
	}
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("failed to get user home directory: %v", err)
	}
	return filepath.Join(homeDir, ".pkgsync"), nil
}

// GetBinDir returns the directory searched for a bundled butler binary
func GetBinDir() (string, error) {
	home, err := GetHome()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, "bin"), nil
}
