package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds application configuration
type Config struct {
	APIToken   string `yaml:"api_token"`
	APIBaseURL string `yaml:"api_base_url"`
	BrandID    string `yaml:"brand_id"`
	Theme      string `yaml:"theme"`
	GuideMode  bool   `yaml:"guide_mode"`
}

// Load loads configuration from config file and environment variables
// Environment variables take precedence over config file values
func Load() (*Config, error) {
	cfg := &Config{}

	// Load from config file first
	if err := cfg.loadFromFile(); err != nil && !os.IsNotExist(err) {
		return nil, fmt.Errorf("failed to load config file: %w", err)
	}

	// Environment variables override config file
	cfg.loadFromEnv()

	return cfg, nil
}

func (c *Config) loadFromFile() error {
	configPath := getConfigPath()
	if configPath == "" {
		return os.ErrNotExist
	}

	data, err := os.ReadFile(configPath)
	if err != nil {
		return err
	}

	return yaml.Unmarshal(data, c)
}

func (c *Config) loadFromEnv() {
	if token := os.Getenv("BRANDFLOW_TOKEN"); token != "" {
		c.APIToken = token
	}
	if base := os.Getenv("BRANDFLOW_API_URL"); base != "" {
		c.APIBaseURL = base
	}
	if brand := os.Getenv("BRANDFLOW_BRAND"); brand != "" {
		c.BrandID = brand
	}
}

// getConfigPath returns the path to the config file
// Priority: $BRANDFLOW_CONFIG > ~/.config/brandflow/config.yaml
func getConfigPath() string {
	if configPath := os.Getenv("BRANDFLOW_CONFIG"); configPath != "" {
		return configPath
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}

	return filepath.Join(home, ".config", "brandflow", "config.yaml")
}

func GetConfigDir() (string, error) {
	configPath := getConfigPath()
	if configPath == "" {
		return "", fmt.Errorf("cannot determine config path")
	}
	return filepath.Dir(configPath), nil
}

// EnsureConfigDir ensures the config directory exists
func EnsureConfigDir() (string, error) {
	configDir, err := GetConfigDir()
	if err != nil {
		return "", err
	}

	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}

	return configDir, nil
}

// SaveExampleConfig creates an example config file
func SaveExampleConfig() error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.yaml")

	// Check if file already exists
	if _, err := os.Stat(configPath); err == nil {
		return nil // Already exists, don't overwrite
	}

	example := `# Brandflow Configuration
# Environment variables BRANDFLOW_TOKEN, BRANDFLOW_API_URL and BRANDFLOW_BRAND
# override the values in this file.

# Required: API token for the recommendation service
api_token: "your_token_here"

# Optional: override the service endpoint
# api_base_url: "https://api.example.com/v1"

# Required: the brand to load recommendations for
brand_id: ""

# Optional: color theme (default, catppuccin, dracula, nord, gruvbox)
theme: "default"

# Optional: cold-start guide mode (the content step produces an
# implementation guide instead of publishable content)
guide_mode: false
`

	return os.WriteFile(configPath, []byte(example), 0600)
}

func (c *Config) Save() error {
	configDir, err := EnsureConfigDir()
	if err != nil {
		return err
	}

	configPath := filepath.Join(configDir, "config.yaml")

	// Load existing config to preserve fields like tokens
	existing := &Config{}
	if data, err := os.ReadFile(configPath); err == nil {
		yaml.Unmarshal(data, existing)
	}

	// Update only the fields we manage (not tokens from env vars)
	existing.BrandID = c.BrandID
	existing.Theme = c.Theme
	existing.GuideMode = c.GuideMode
	// Note: We preserve existing.APIToken and existing.APIBaseURL

	data, err := yaml.Marshal(existing)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	header := []byte("# Brandflow Configuration\n# Note: Sensitive values (tokens) can be set via environment variables or this file\n\n")
	return os.WriteFile(configPath, append(header, data...), 0600)
}
