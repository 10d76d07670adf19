// Package config loads the bridge configuration from config.yaml with
// environment-variable overrides. Credentials are expected to come from the
// environment in production; the file is for everything else.
package config

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// DefaultPath is where Load looks when no explicit path is given.
const DefaultPath = "config.yaml"

// Config is the full configuration surface of the sync bridge.
type Config struct {
	Linear  LinearConfig  `yaml:"linear" mapstructure:"linear"`
	Webhook WebhookConfig `yaml:"webhook" mapstructure:"webhook"`

	// Teams maps an organization slug to its remote team id, overriding
	// linear.team-id for that org.
	Teams map[string]string `yaml:"teams" mapstructure:"teams"`

	DBPath   string `yaml:"db-path" mapstructure:"db-path"`
	LogLevel string `yaml:"log-level" mapstructure:"log-level"`
}

// LinearConfig configures the outbound remote tracker client.
type LinearConfig struct {
	APIKey   string `yaml:"api-key" mapstructure:"api-key"`
	Endpoint string `yaml:"endpoint" mapstructure:"endpoint"`
	TeamID   string `yaml:"team-id" mapstructure:"team-id"` // default team for all orgs
}

// WebhookConfig configures the inbound receiver.
type WebhookConfig struct {
	ListenAddr string `yaml:"listen-addr" mapstructure:"listen-addr"`
	Secret     string `yaml:"secret" mapstructure:"secret"`
}

// Load reads the config file at path and applies environment overrides.
// A missing file is not an error; the environment alone can carry a complete
// configuration.
func Load(path string) (*Config, error) {
	if path == "" {
		path = DefaultPath
	}

	cfg := &Config{
		DBPath:   "deskhub.db",
		LogLevel: "info",
		Webhook:  WebhookConfig{ListenAddr: ":8080"},
	}

	data, err := os.ReadFile(path) // #nosec G304 - path comes from the operator
	if err == nil {
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv applies DESKHUB_* environment overrides. Environment variables take
// precedence over file values.
func (c *Config) applyEnv() {
	if v := os.Getenv("DESKHUB_LINEAR_API_KEY"); v != "" {
		c.Linear.APIKey = v
	}
	if v := os.Getenv("DESKHUB_LINEAR_ENDPOINT"); v != "" {
		c.Linear.Endpoint = v
	}
	if v := os.Getenv("DESKHUB_LINEAR_TEAM_ID"); v != "" {
		c.Linear.TeamID = v
	}
	if v := os.Getenv("DESKHUB_WEBHOOK_SECRET"); v != "" {
		c.Webhook.Secret = v
	}
	if v := os.Getenv("DESKHUB_WEBHOOK_LISTEN_ADDR"); v != "" {
		c.Webhook.ListenAddr = v
	}
	if v := os.Getenv("DESKHUB_DB_PATH"); v != "" {
		c.DBPath = v
	}
	if v := os.Getenv("DESKHUB_LOG_LEVEL"); v != "" {
		c.LogLevel = v
	}
}

// TeamForOrg resolves the remote team id for an organization: the per-org
// override if present, else the global default. Empty means unconfigured.
func (c *Config) TeamForOrg(org string) string {
	if teamID, ok := c.Teams[strings.ToLower(org)]; ok {
		return teamID
	}
	return c.Linear.TeamID
}

// InsecureWebhook reports whether the receiver will run without signature
// verification.
func (c *Config) InsecureWebhook() bool {
	return c.Webhook.Secret == ""
}

// ValidateOutbound checks the fields the outbound sync path cannot run
// without.
func (c *Config) ValidateOutbound() error {
	if c.Linear.APIKey == "" {
		return fmt.Errorf("no API key configured (set linear.api-key or DESKHUB_LINEAR_API_KEY)")
	}
	return nil
}
