package config

import (
	_ "embed"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

type Config struct {
	Output   Output   `yaml:"output"`
	Server   Server   `yaml:"server"`
	Research Research `yaml:"research"`
	Secrets  Secrets  `yaml:"secrets"`
	Leads    Leads    `yaml:"leads"`
	Sources  Sources  `yaml:"sources"`
	Logging  Logging  `yaml:"logging"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
}

type Server struct {
	Port              int    `yaml:"port"`
	AdminKeyEnv       string `yaml:"admin_key_env"`
	ResearchPerMinute int    `yaml:"research_per_minute"`
}

type Research struct {
	ProviderTimeout time.Duration `yaml:"provider_timeout"`
	Fallback        Fallback      `yaml:"fallback"`
}

// Fallback is the provider used when none are stored in the database.
type Fallback struct {
	APIKeyEnv   string  `yaml:"api_key_env"`
	BaseURL     string  `yaml:"base_url"`
	Model       string  `yaml:"model"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
}

type Secrets struct {
	EncryptionKeyEnv string `yaml:"encryption_key_env"`
}

type Leads struct {
	Feeds    []Feed        `yaml:"feeds"`
	DaysBack int           `yaml:"days_back"`
	Watch    []string      `yaml:"watch"`
	NewsAPI  NewsAPIConfig `yaml:"newsapi"`
}

type Feed struct {
	URL  string `yaml:"url"`
	Name string `yaml:"name"`
}

type NewsAPIConfig struct {
	Enabled   bool   `yaml:"enabled"`
	APIKeyEnv string `yaml:"api_key_env"`
}

type Sources struct {
	Timeout time.Duration `yaml:"timeout"`
}

type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ConfigDir returns the XDG config directory for decayclock.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "decayclock")
}

// DataDir returns the XDG data directory for decayclock.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "decayclock")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/decayclock/config.yaml > ./config.yaml
func ResolveConfigPath(explicit string) (string, error) {
	if explicit != "" {
		if _, err := os.Stat(explicit); err != nil {
			return "", fmt.Errorf("config file not found: %s", explicit)
		}
		return explicit, nil
	}

	xdgConfig := filepath.Join(ConfigDir(), "config.yaml")
	if _, err := os.Stat(xdgConfig); err == nil {
		return xdgConfig, nil
	}

	cwdConfig := "config.yaml"
	if _, err := os.Stat(cwdConfig); err == nil {
		return cwdConfig, nil
	}

	return "", fmt.Errorf(
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'decayclock init' to create a default config",
		xdgConfig,
	)
}

// Load reads and parses a config YAML file.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	return parse(data)
}

// Default returns the configuration used when no file exists.
func Default() *Config {
	cfg, err := parse(nil)
	if err != nil {
		panic(err)
	}
	return cfg
}

// parse parses YAML bytes into a Config, applying defaults.
func parse(data []byte) (*Config, error) {
	cfg := &Config{
		Server: Server{
			Port:              8000,
			AdminKeyEnv:       "ADMIN_API_KEY",
			ResearchPerMinute: 6,
		},
		Research: Research{
			ProviderTimeout: 60 * time.Second,
			Fallback: Fallback{
				APIKeyEnv:   "ANTHROPIC_API_KEY",
				BaseURL:     "https://api.anthropic.com",
				Model:       "claude-sonnet-4-20250514",
				MaxTokens:   4096,
				Temperature: 0.7,
			},
		},
		Secrets: Secrets{EncryptionKeyEnv: "AI_PROVIDER_ENCRYPTION_KEY"},
		Leads: Leads{
			DaysBack: 14,
			NewsAPI:  NewsAPIConfig{APIKeyEnv: "NEWSAPI_KEY"},
		},
		Sources: Sources{Timeout: 15 * time.Second},
		Logging: Logging{Level: "info", Format: "auto"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Server.ResearchPerMinute <= 0 {
		return fmt.Errorf("server.research_per_minute must be positive")
	}
	if c.Research.ProviderTimeout <= 0 {
		return fmt.Errorf("research.provider_timeout must be positive")
	}
	switch c.Logging.Format {
	case "auto", "json", "console":
	default:
		return fmt.Errorf("logging.format must be auto, json or console, got %q", c.Logging.Format)
	}
	return nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// DBPath returns the SQLite database file path.
func (c *Config) DBPath() string {
	return filepath.Join(c.GetDataDir(), "decayclock.db")
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
