// Package config loads and validates the bot's YAML configuration.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// EnvPath is the environment variable consulted when no explicit config
// path is given.
const EnvPath = "GITBOT_CONFIG"

type Config struct {
	GitHub   GitHubConfig   `yaml:"github"`
	Policy   PolicyConfig   `yaml:"policy"`
	Repo     RepoConfig     `yaml:"repo"`
	Server   ServerConfig   `yaml:"server"`
	Renderer RendererConfig `yaml:"renderer"`
	Events   EventsConfig   `yaml:"events"`
}

type GitHubConfig struct {
	Username            string     `yaml:"username"`
	PersonalAccessToken string     `yaml:"personal_access_token"`
	Endpoint            string     `yaml:"endpoint"`
	Hostname            string     `yaml:"hostname"`
	App                 *AppConfig `yaml:"app"`
}

// AppConfig holds GitHub App credentials. When present it replaces
// username/token authentication entirely.
type AppConfig struct {
	ClientID       string `yaml:"client_id"`
	InstallationID int64  `yaml:"installation_id"`
	PrivateKeyPath string `yaml:"private_key_path"`
}

type PolicyConfig struct {
	// Domains is the allow-list of email domains for commit authors
	// and committers.
	Domains []string `yaml:"domains"`
}

type RepoConfig struct {
	// Path is the local git checkout holding the snapshot refs.
	Path string `yaml:"path"`
}

type ServerConfig struct {
	Addr string `yaml:"addr"`
	// URLRoot is the public base URL the bot's comment links point at.
	URLRoot string `yaml:"url_root"`
}

type RendererConfig struct {
	// Vim renders diffs through a vim subprocess instead of the
	// built-in renderer.
	Vim bool `yaml:"vim"`
}

type EventsConfig struct {
	// LogPath appends every delivery event as a JSON line when set.
	LogPath string `yaml:"log_path"`
}

// Load reads and parses a config file at the given path. Optional fields
// are filled with defaults before validation.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	cfg.applyDefaults()

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid config %s: %w", path, err)
	}

	return &cfg, nil
}

// Resolve tries the explicit path first, then falls back to the
// GITBOT_CONFIG environment variable.
func Resolve(explicitPath string) (*Config, error) {
	if explicitPath != "" {
		return Load(explicitPath)
	}
	if path := os.Getenv(EnvPath); path != "" {
		return Load(path)
	}
	return nil, fmt.Errorf("no config file given: pass -config or set %s", EnvPath)
}

func (c *Config) applyDefaults() {
	if c.GitHub.Endpoint == "" {
		c.GitHub.Endpoint = "https://api.github.com/"
	}
	if c.GitHub.Hostname == "" {
		c.GitHub.Hostname = "github.com"
	}
	if c.Server.Addr == "" {
		c.Server.Addr = ":8080"
	}
}

func (c *Config) validate() error {
	if c.GitHub.App != nil {
		if c.GitHub.App.ClientID == "" {
			return fmt.Errorf("missing required field: github.app.client_id")
		}
		if c.GitHub.App.InstallationID == 0 {
			return fmt.Errorf("missing required field: github.app.installation_id")
		}
		if c.GitHub.App.PrivateKeyPath == "" {
			return fmt.Errorf("missing required field: github.app.private_key_path")
		}
	} else {
		if c.GitHub.Username == "" {
			return fmt.Errorf("missing required field: github.username")
		}
		if c.GitHub.PersonalAccessToken == "" {
			return fmt.Errorf("missing required field: github.personal_access_token")
		}
	}
	if len(c.Policy.Domains) == 0 {
		return fmt.Errorf("missing required field: policy.domains")
	}
	if c.Repo.Path == "" {
		return fmt.Errorf("missing required field: repo.path")
	}
	if c.Server.URLRoot == "" {
		return fmt.Errorf("missing required field: server.url_root")
	}
	return nil
}
