package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
)

// Config holds all reelstats configuration.
type Config struct {
	General    GeneralConfig    `toml:"general"`
	Store      StoreConfig      `toml:"store"`
	TMDB       TMDBConfig       `toml:"tmdb"`
	Cache      CacheConfig      `toml:"cache"`
	Batch      BatchConfig      `toml:"batch"`
	Daemon     DaemonConfig     `toml:"daemon"`
	Log        LogConfig        `toml:"log"`
	Appearance AppearanceConfig `toml:"appearance"`
}

// GeneralConfig holds general preferences.
type GeneralConfig struct {
	User          string `toml:"user,omitempty"`
	Language      string `toml:"language" validate:"required"`
	DefaultPeriod string `toml:"default_period" validate:"omitempty,oneof=all month last_month year"`
	Timezone      string `toml:"timezone,omitempty"`
}

// StoreConfig selects the watch record database.
type StoreConfig struct {
	Driver      string `toml:"driver" validate:"oneof=sqlite postgres"`
	Path        string `toml:"path,omitempty"`
	PostgresURL string `toml:"postgres_url,omitempty" validate:"required_if=Driver postgres"`
}

// TMDBConfig holds metadata provider settings.
type TMDBConfig struct {
	AccessToken       string  `toml:"access_token,omitempty"`
	BaseURL           string  `toml:"base_url,omitempty" validate:"omitempty,url"`
	RequestsPerSecond float64 `toml:"requests_per_second" validate:"gte=0"`
}

// CacheConfig selects the cache backend.
type CacheConfig struct {
	Backend       string `toml:"backend" validate:"oneof=memory sqlite redis"`
	RedisAddr     string `toml:"redis_addr,omitempty" validate:"required_if=Backend redis"`
	RedisPassword string `toml:"redis_password,omitempty"`
	RedisDB       int    `toml:"redis_db" validate:"gte=0"`
}

// BatchConfig bounds concurrent metadata lookups.
type BatchConfig struct {
	Size    int `toml:"size" validate:"gte=1,lte=50"`
	DelayMS int `toml:"delay_ms" validate:"gte=0"`
}

// DaemonConfig holds settings for the background server.
type DaemonConfig struct {
	Addr         string   `toml:"addr" validate:"required"`
	WarmInterval string   `toml:"warm_interval" validate:"required"`
	WarmUsers    []string `toml:"warm_users,omitempty"`
}

// LogConfig controls structured logging.
type LogConfig struct {
	Development bool   `toml:"development"`
	Level       string `toml:"level" validate:"omitempty,oneof=debug info warn error"`
}

// AppearanceConfig holds theme settings.
type AppearanceConfig struct {
	Theme string `toml:"theme"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() Config {
	return Config{
		General: GeneralConfig{
			Language:      "en-US",
			DefaultPeriod: "all",
		},
		Store: StoreConfig{
			Driver: "sqlite",
		},
		TMDB: TMDBConfig{
			RequestsPerSecond: 4,
		},
		Cache: CacheConfig{
			Backend: "sqlite",
		},
		Batch: BatchConfig{
			Size:    10,
			DelayMS: 250,
		},
		Daemon: DaemonConfig{
			Addr:         "127.0.0.1:8787",
			WarmInterval: "5m",
		},
		Log: LogConfig{
			Level: "warn",
		},
		Appearance: AppearanceConfig{
			Theme: "flexoki-dark",
		},
	}
}

// ConfigDir returns the XDG-compliant config directory.
func ConfigDir() string {
	if xdg := os.Getenv("XDG_CONFIG_HOME"); xdg != "" {
		return filepath.Join(xdg, "reelstats")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".config", "reelstats")
}

// ConfigPath returns the full path to the config file.
func ConfigPath() string {
	return filepath.Join(ConfigDir(), "config.toml")
}

// DataDir returns the XDG-compliant data directory.
func DataDir() string {
	if xdg := os.Getenv("XDG_DATA_HOME"); xdg != "" {
		return filepath.Join(xdg, "reelstats")
	}
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".local", "share", "reelstats")
}

// Load reads the config file, returning defaults if it doesn't exist.
// A .env file in the working directory is loaded first; environment
// variables override file values.
func Load() (Config, error) {
	_ = godotenv.Load()
	cfg := DefaultConfig()

	data, err := os.ReadFile(ConfigPath())
	if err != nil && !os.IsNotExist(err) {
		return cfg, fmt.Errorf("reading config: %w", err)
	}
	if err == nil {
		if err := toml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parsing config: %w", err)
		}
	}

	applyEnv(&cfg)
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("TMDB_ACCESS_TOKEN"); v != "" {
		cfg.TMDB.AccessToken = v
	}
	if v := os.Getenv("REELSTATS_REDIS_ADDR"); v != "" {
		cfg.Cache.Backend = "redis"
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("DATABASE_URL"); v != "" {
		cfg.Store.Driver = "postgres"
		cfg.Store.PostgresURL = v
	}
}

// Save writes the config to disk.
func Save(cfg Config) error {
	dir := ConfigDir()
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("creating config dir: %w", err)
	}

	f, err := os.OpenFile(ConfigPath(), os.O_WRONLY|os.O_CREATE|os.O_TRUNC, 0o600)
	if err != nil {
		return fmt.Errorf("creating config file: %w", err)
	}
	defer f.Close()

	enc := toml.NewEncoder(f)
	return enc.Encode(cfg)
}

// Exists returns true if a config file exists on disk.
func Exists() bool {
	_, err := os.Stat(ConfigPath())
	return err == nil
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks field constraints and derived values.
func (c Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid config: %w", err)
	}
	if _, err := c.Daemon.Interval(); err != nil {
		return fmt.Errorf("invalid config: daemon.warm_interval: %w", err)
	}
	if _, err := c.General.Location(); err != nil {
		return fmt.Errorf("invalid config: general.timezone: %w", err)
	}
	return nil
}

// Interval parses the warm interval.
func (d DaemonConfig) Interval() (time.Duration, error) {
	return time.ParseDuration(d.WarmInterval)
}

// Location returns the zone used for calendar bucketing, local time when unset.
func (g GeneralConfig) Location() (*time.Location, error) {
	if g.Timezone == "" {
		return time.Local, nil
	}
	return time.LoadLocation(g.Timezone)
}

// DatabasePath returns the SQLite file path, defaulting into DataDir.
func (s StoreConfig) DatabasePath() string {
	if s.Path != "" {
		return s.Path
	}
	return filepath.Join(DataDir(), "reelstats.db")
}

// Delay returns the pause between lookup windows.
func (b BatchConfig) Delay() time.Duration {
	return time.Duration(b.DelayMS) * time.Millisecond
}

// MaskToken hides all but the last four characters of a secret.
func MaskToken(s string) string {
	s = strings.TrimSpace(s)
	if len(s) <= 4 {
		return strings.Repeat("*", len(s))
	}
	return strings.Repeat("*", 8) + s[len(s)-4:]
}
