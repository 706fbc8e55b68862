package config

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Config holds the application configuration: credentials for LLM-backed
// capabilities plus the loaded analysis tables.
type Config struct {
	AnthropicAPIKey string
	OpenAIAPIKey    string
	GoogleAPIKey    string
	Analysis        *AnalysisConfig
	ConfigDir       string
}

// FileConfig represents the structure of ~/.routegate/config.yaml
type FileConfig struct {
	APIKeys APIKeysConfig `yaml:"api_keys"`
}

// APIKeysConfig holds API key configuration from file.
type APIKeysConfig struct {
	Anthropic string `yaml:"anthropic"`
	OpenAI    string `yaml:"openai"`
	Google    string `yaml:"google"`
}

// Load reads configuration from config files and environment variables.
// Environment variables take precedence over file configuration.
func Load() (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	cfg := baseConfig(configDir)

	analysisPath := filepath.Join(configDir, "analysis.yaml")
	if _, err := os.Stat(analysisPath); err == nil {
		analysis, err := LoadAnalysisConfig(analysisPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load analysis config: %w", err)
		}
		cfg.Analysis = analysis
	} else {
		cfg.Analysis = DefaultAnalysisConfig()
	}

	return cfg, nil
}

// LoadWithAnalysisFile loads config with a specific analysis tables file.
func LoadWithAnalysisFile(path string) (*Config, error) {
	configDir, err := getConfigDir()
	if err != nil {
		return nil, fmt.Errorf("failed to get config directory: %w", err)
	}

	cfg := baseConfig(configDir)

	analysis, err := LoadAnalysisConfig(path)
	if err != nil {
		return nil, fmt.Errorf("failed to load analysis config from %s: %w", path, err)
	}
	cfg.Analysis = analysis

	return cfg, nil
}

func baseConfig(configDir string) *Config {
	fileConfig := loadFileConfig(filepath.Join(configDir, "config.yaml"))
	return &Config{
		AnthropicAPIKey: getEnvOrDefault("ANTHROPIC_API_KEY", fileConfig.APIKeys.Anthropic),
		OpenAIAPIKey:    getEnvOrDefault("OPENAI_API_KEY", fileConfig.APIKeys.OpenAI),
		GoogleAPIKey:    getEnvOrDefault("GOOGLE_API_KEY", fileConfig.APIKeys.Google),
		ConfigDir:       configDir,
	}
}

// HasBackend returns true if the API key for the given capability backend
// is configured.
func (c *Config) HasBackend(kind string) bool {
	switch kind {
	case "anthropic":
		return c.AnthropicAPIKey != ""
	case "openai":
		return c.OpenAIAPIKey != ""
	case "google":
		return c.GoogleAPIKey != ""
	case "heuristic":
		return true
	default:
		return false
	}
}

// loadFileConfig reads the config file, returning empty config if not found.
func loadFileConfig(path string) *FileConfig {
	cfg := &FileConfig{}

	data, err := os.ReadFile(path)
	if err != nil {
		return cfg // Return empty config if file doesn't exist
	}

	_ = yaml.Unmarshal(data, cfg) // Ignore parse errors, use defaults
	return cfg
}

// getEnvOrDefault returns the environment variable value if set,
// otherwise returns the default value.
func getEnvOrDefault(envVar, defaultValue string) string {
	if val := os.Getenv(envVar); val != "" {
		return val
	}
	return defaultValue
}

func getConfigDir() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	configDir := filepath.Join(home, ".routegate")
	if err := os.MkdirAll(configDir, 0755); err != nil {
		return "", err
	}
	return configDir, nil
}
