package config

import (
	_ "embed"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/TobiSchelling/RouteFinder/internal/llm"
)

//go:embed default.yaml
var DefaultConfigYAML []byte

// ErrNoCredential means neither the environment nor the key file holds an
// API key.
var ErrNoCredential = errors.New("no API credential found")

type Config struct {
	Source         Source         `yaml:"source"`
	Classification Classification `yaml:"classification"`
	Pipeline       Pipeline       `yaml:"pipeline"`
	Output         Output         `yaml:"output"`
	Logging        Logging        `yaml:"logging"`
}

type Source struct {
	BaseURL      string        `yaml:"base_url"`
	UserAgent    string        `yaml:"user_agent"`
	Timeout      time.Duration `yaml:"timeout"`
	TicksPerPage int           `yaml:"ticks_per_page"`
	MaxTickPages int           `yaml:"max_tick_pages"`
}

type Classification struct {
	Provider    string `yaml:"provider"` // openai, ollama, gemini or none
	OpenAIModel string `yaml:"openai_model"`
	OpenAIURL   string `yaml:"openai_url"`
	OllamaModel string `yaml:"ollama_model"`
	OllamaURL   string `yaml:"ollama_url"`
	GeminiModel string `yaml:"gemini_model"`
	APIKeyEnv   string `yaml:"api_key_env"`
	KeyFile     string `yaml:"key_file"`
	MaxTokens   int    `yaml:"max_tokens"`
	TokenBudget int    `yaml:"token_budget"`
}

type Pipeline struct {
	OnRowError string `yaml:"on_row_error"` // abort or skip
	Workers    int    `yaml:"workers"`
}

type Output struct {
	DataDir string `yaml:"data_dir"`
	Record  bool   `yaml:"record"`
}

type Logging struct {
	Level string `yaml:"level"`
}

// ConfigDir returns the XDG config directory for routefinder.
func ConfigDir() string {
	return filepath.Join(homeDir(), ".config", "routefinder")
}

// DataDir returns the XDG data directory for routefinder.
func DataDir() string {
	return filepath.Join(homeDir(), ".local", "share", "routefinder")
}

// ResolveConfigPath finds the config file following priority:
// explicit path > ~/.config/routefinder/config.yaml > ./config.yaml
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
		"no config file found; searched:\n  %s\n  ./config.yaml\n\nRun 'routefinder init' to create a default config",
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

// Default returns the configuration used when no config file exists.
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
		Source: Source{
			BaseURL:      "https://www.mountainproject.com",
			UserAgent:    "RouteFinder/1.0",
			Timeout:      30 * time.Second,
			TicksPerPage: 250,
			MaxTickPages: 20,
		},
		Classification: Classification{
			Provider:    "openai",
			OpenAIModel: "gpt-4",
			OllamaModel: "qwen2.5:7b",
			OllamaURL:   "http://localhost:11434",
			GeminiModel: llm.DefaultGeminiModel,
			APIKeyEnv:   "OPENAI_API_KEY",
			KeyFile:     ".openai-key",
			MaxTokens:   300,
			TokenBudget: 8192,
		},
		Pipeline: Pipeline{OnRowError: "abort", Workers: 1},
		Output:   Output{Record: true},
		Logging:  Logging{Level: "INFO"},
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	switch cfg.Pipeline.OnRowError {
	case "abort", "skip":
	default:
		return nil, fmt.Errorf("parsing config: pipeline.on_row_error must be abort or skip, got %q", cfg.Pipeline.OnRowError)
	}
	if cfg.Pipeline.Workers < 1 {
		cfg.Pipeline.Workers = 1
	}

	return cfg, nil
}

// GetDataDir returns the effective data directory from config or XDG default.
func (c *Config) GetDataDir() string {
	if c.Output.DataDir != "" {
		return c.Output.DataDir
	}
	return DataDir()
}

// ResolveAPIKey returns the classifier credential: the environment variable
// first, then the key file. The key file holds either the bare key or
// dotenv lines.
func (c *Config) ResolveAPIKey() (string, error) {
	envName := c.Classification.APIKeyEnv
	if key := strings.TrimSpace(os.Getenv(envName)); key != "" {
		return key, nil
	}

	path := c.Classification.KeyFile
	if path == "" {
		return "", fmt.Errorf("%w: %s is not set", ErrNoCredential, envName)
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("%w: %s is not set and %s is unreadable", ErrNoCredential, envName, path)
	}

	if key := keyFromFile(string(data), envName); key != "" {
		return key, nil
	}
	return "", fmt.Errorf("%w: %s is empty", ErrNoCredential, path)
}

func keyFromFile(content, envName string) string {
	trimmed := strings.TrimSpace(content)
	if trimmed == "" {
		return ""
	}
	if !strings.Contains(trimmed, "=") {
		return trimmed
	}
	vars, err := godotenv.Unmarshal(trimmed)
	if err != nil {
		return ""
	}
	return strings.TrimSpace(vars[envName])
}

func homeDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return home
}
