package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration
type Config struct {
	BaseURL       string     `yaml:"base_url,omitempty"`       // Dashboard URL (fallback: kontrollrummet)
	RegionTab     string     `yaml:"region_tab,omitempty"`     // Visible label of the electricity-area tab
	DataDir       string     `yaml:"data_dir,omitempty"`       // Root for raw/ and processed/ output
	DaysToFetch   int        `yaml:"days_to_fetch,omitempty"`  // Days to walk backward (fallback: 3)
	WaitSeconds   int        `yaml:"wait_seconds,omitempty"`   // Per-wait timeout for page elements
	SettleSeconds int        `yaml:"settle_seconds,omitempty"` // Fixed delay after clicks and renders
	Months        []string   `yaml:"months,omitempty"`         // Month names as the calendar widget renders them
	MQTT          MQTTConfig `yaml:"mqtt,omitempty"`
}

// MQTTConfig holds broker settings for publishing records downstream
type MQTTConfig struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker"`       // e.g., "tcp://localhost:1883"
	TopicPrefix string `yaml:"topic_prefix"` // e.g., "svk/power"
	ClientID    string `yaml:"client_id,omitempty"`
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
}

// Load reads the config file
func Load(configPath string) (*Config, error) {
	data, err := os.ReadFile(configPath)
	if err != nil {
		if os.IsNotExist(err) {
			// Return empty config if file doesn't exist
			return &Config{}, nil
		}
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	return &cfg, nil
}

// Save writes the config to file
func Save(configPath string, cfg *Config) error {
	// Ensure directory exists
	dir := filepath.Dir(configPath)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	data, err := yaml.Marshal(cfg)
	if err != nil {
		return fmt.Errorf("marshaling config: %w", err)
	}

	if err := os.WriteFile(configPath, data, 0600); err != nil {
		return fmt.Errorf("writing config file: %w", err)
	}

	return nil
}

// DefaultConfigPath returns the default config file path (local directory)
func DefaultConfigPath() string {
	return "config.yaml"
}

// GetBaseURL returns the dashboard URL to scrape
func (c *Config) GetBaseURL() string {
	if c.BaseURL == "" {
		return "https://www.svk.se/om-kraftsystemet/kontrollrummet/"
	}
	return c.BaseURL
}

// GetRegionTab returns the visible label of the electricity-area tab to select
func (c *Config) GetRegionTab() string {
	if c.RegionTab == "" {
		return "Elområde Stockholm (SE3)"
	}
	return c.RegionTab
}

// GetDataDir returns the output directory root
func (c *Config) GetDataDir() string {
	if c.DataDir == "" {
		return "data"
	}
	return c.DataDir
}

// GetDaysToFetch returns the number of days to walk backward with a default of 3
func (c *Config) GetDaysToFetch() int {
	if c.DaysToFetch <= 0 {
		return 3
	}
	return c.DaysToFetch
}

// GetWaitTimeout returns the per-element wait bound with a default of 15s
func (c *Config) GetWaitTimeout() time.Duration {
	if c.WaitSeconds <= 0 {
		return 15 * time.Second
	}
	return time.Duration(c.WaitSeconds) * time.Second
}

// GetSettleDelay returns the fixed post-interaction delay with a default of 2s
func (c *Config) GetSettleDelay() time.Duration {
	if c.SettleSeconds <= 0 {
		return 2 * time.Second
	}
	return time.Duration(c.SettleSeconds) * time.Second
}

// GetMonths returns the calendar month names in display order. The site
// renders Swedish month names regardless of browser locale, so that is
// the default.
func (c *Config) GetMonths() []string {
	if len(c.Months) == 12 {
		return c.Months
	}
	return []string{
		"Januari", "Februari", "Mars", "April", "Maj", "Juni",
		"Juli", "Augusti", "September", "Oktober", "November", "December",
	}
}

// GetMQTTPassword returns the broker password, preferring the
// SVK_MQTT_PASSWORD environment variable over the config file so the
// secret can live in .env instead
func (c *Config) GetMQTTPassword() string {
	if v := os.Getenv("SVK_MQTT_PASSWORD"); v != "" {
		return v
	}
	return c.MQTT.Password
}
