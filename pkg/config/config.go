package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

//go:embed config.toml.sample
var configTemplate string

const (
	DefaultCacheTTL  = 10 * time.Minute
	MinCacheTTL      = 5 * time.Second
	DefaultCacheSize = 512
	DefaultSchedule  = "@hourly"
	DatabaseFile     = "cardex.db"
)

type Config struct {
	StorageDir  string            `toml:"storage_dir"`
	CatalogDir  string            `toml:"catalog_dir"`
	Web         WebConfig         `toml:"web"`
	Search      SearchConfig      `toml:"search"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
}

type WebConfig struct {
	Host string `toml:"host"`
	Port string `toml:"port"`
}

type SearchConfig struct {
	// CacheTTL bounds how long a search result may be served from memory.
	// Zero disables the cache.
	CacheTTL  *Duration `toml:"cache_ttl,omitempty"`
	CacheSize int       `toml:"cache_size"`
}

type MaintenanceConfig struct {
	Schedule *string `toml:"schedule,omitempty"`
}

type Duration struct {
	time.Duration
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

func (d *Duration) UnmarshalText(text []byte) error {
	var err error
	d.Duration, err = time.ParseDuration(string(text))
	return err
}

func GetDefaultConfig() (*Config, error) {
	storageDir, err := GetDefaultStorageDir()
	if err != nil {
		return nil, fmt.Errorf("getting default storage directory: %w", err)
	}
	cfg := &Config{StorageDir: storageDir}
	cfg.applyDefaults()
	return cfg, nil
}

// LoadConfig reads the TOML file at configPath (a missing file yields the
// defaults), then applies .env and environment overrides.
func LoadConfig(configPath string) (*Config, error) {
	// A missing .env is the common case.
	_ = godotenv.Load()

	var cfg *Config
	if _, err := os.Stat(configPath); os.IsNotExist(err) {
		cfg, err = GetDefaultConfig()
		if err != nil {
			return nil, err
		}
	} else {
		data, err := os.ReadFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
		cfg = &Config{}
		if err := toml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("unmarshaling config: %w", err)
		}
	}

	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}

	if cfg.StorageDir == "" {
		storageDir, err := GetDefaultStorageDir()
		if err != nil {
			return nil, fmt.Errorf("getting default storage directory: %w", err)
		}
		cfg.StorageDir = storageDir
	}
	cfg.applyDefaults()

	return cfg, nil
}

func (c *Config) applyDefaults() {
	if c.Web.Host == "" {
		c.Web.Host = "localhost"
	}
	if c.Web.Port == "" {
		c.Web.Port = "8080"
	}
	if c.Search.CacheTTL == nil {
		c.Search.CacheTTL = &Duration{DefaultCacheTTL}
	}
	if c.Search.CacheSize <= 0 {
		c.Search.CacheSize = DefaultCacheSize
	}
	if c.Maintenance.Schedule == nil {
		s := DefaultSchedule
		c.Maintenance.Schedule = &s
	}
}

func (c *Config) applyEnv() error {
	if v := os.Getenv("CARDEX_STORAGE_DIR"); v != "" {
		c.StorageDir = v
	}
	if v := os.Getenv("CARDEX_CATALOG_DIR"); v != "" {
		c.CatalogDir = v
	}
	if v := os.Getenv("CARDEX_CACHE_TTL_SECONDS"); v != "" {
		secs, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("parsing CARDEX_CACHE_TTL_SECONDS: %w", err)
		}
		c.Search.CacheTTL = &Duration{time.Duration(secs) * time.Second}
	}
	return nil
}

// CacheTTL returns the effective result cache TTL. Non-zero values below
// MinCacheTTL are raised to it.
func (c *Config) CacheTTL() time.Duration {
	if c.Search.CacheTTL == nil {
		return DefaultCacheTTL
	}
	ttl := c.Search.CacheTTL.Duration
	if ttl <= 0 {
		return 0
	}
	if ttl < MinCacheTTL {
		return MinCacheTTL
	}
	return ttl
}

// MaintenanceSchedule returns the cron spec, or "" when maintenance is off.
func (c *Config) MaintenanceSchedule() string {
	if c.Maintenance.Schedule == nil {
		return DefaultSchedule
	}
	return strings.TrimSpace(*c.Maintenance.Schedule)
}

// DatabasePath is where the catalog database lives.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.StorageDir, DatabaseFile)
}

func (c *Config) SaveConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := toml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	return os.WriteFile(configPath, data, 0644)
}

func (c *Config) SaveTemplateConfig(configPath string) error {
	if err := os.MkdirAll(filepath.Dir(configPath), 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	template, err := c.generateConfigTemplate()
	if err != nil {
		return fmt.Errorf("generating config template: %w", err)
	}
	return os.WriteFile(configPath, []byte(template), 0644)
}

func (c *Config) generateConfigTemplate() (string, error) {
	storageDir := c.StorageDir
	if storageDir == "" {
		var err error
		storageDir, err = GetDefaultStorageDir()
		if err != nil {
			return "", fmt.Errorf("getting default storage directory: %w", err)
		}
	}

	template := strings.Replace(configTemplate, "/home/user/.local/share/cardex", storageDir, 1)
	return template, nil
}

// GetDefaultStorageDir returns the default storage directory for the database
func GetDefaultStorageDir() (string, error) {
	dataDir := os.Getenv("XDG_DATA_HOME")
	if dataDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		dataDir = filepath.Join(homeDir, ".local", "share")
	}

	dir := filepath.Join(dataDir, "cardex")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating storage directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetConfigDir returns the configuration directory for cardex
func GetConfigDir() (string, error) {
	configDir := os.Getenv("XDG_CONFIG_HOME")
	if configDir == "" {
		homeDir, err := os.UserHomeDir()
		if err != nil {
			return "", fmt.Errorf("getting user home directory: %w", err)
		}
		configDir = filepath.Join(homeDir, ".config")
	}

	dir := filepath.Join(configDir, "cardex")
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", fmt.Errorf("creating config directory %s: %w", dir, err)
	}

	return dir, nil
}

// GetDefaultConfigPath returns the default configuration file path
func GetDefaultConfigPath() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(configDir, "config.toml"), nil
}
