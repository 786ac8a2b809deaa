// Package config loads and validates Autobot configuration from a YAML file
// with environment variable overrides.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	"gopkg.in/yaml.v3"
)

// Config holds all Autobot configuration.
type Config struct {
	// Core settings
	Name    string `yaml:"name"`
	Version string `yaml:"version"`

	// Completion capability
	LLM LLMConfig `yaml:"llm"`

	// Embedding capability
	Embedding EmbeddingConfig `yaml:"embedding"`

	// Orchestrator loop
	Agent AgentConfig `yaml:"agent"`

	// Project storage
	Projects ProjectsConfig `yaml:"projects"`

	// Task execution
	Execution ExecutionConfig `yaml:"execution"`

	// Logging
	Logging LoggingConfig `yaml:"logging"`
}

// LLMConfig configures the completion client.
type LLMConfig struct {
	APIKey      string  `yaml:"api_key"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Timeout     string  `yaml:"timeout"`
	MaxTokens   int     `yaml:"max_tokens"`
	Temperature float64 `yaml:"temperature"`
	MaxRetries  int     `yaml:"max_retries"`
}

// EmbeddingConfig configures the embedding engine.
type EmbeddingConfig struct {
	Provider string `yaml:"provider"` // ollama or genai

	OllamaEndpoint string `yaml:"ollama_endpoint"`
	OllamaModel    string `yaml:"ollama_model"`

	GenAIAPIKey string `yaml:"genai_api_key"`
	GenAIModel  string `yaml:"genai_model"`
	TaskType    string `yaml:"task_type"`
}

// AgentConfig configures the orchestrator control loop.
type AgentConfig struct {
	IdleWait          string `yaml:"idle_wait"`          // blocking wait when no work is pending
	ErrorBackoff      string `yaml:"error_backoff"`      // delay after a failed tick
	QueueCapacity     int    `yaml:"queue_capacity"`     // per-queue buffered capacity
	WorkLogCapacity   int    `yaml:"work_log_capacity"`  // narration ring size
	ReflectionCadence int    `yaml:"reflection_cadence"` // progress reflection every Nth task
	RecentChatLimit   int    `yaml:"recent_chat_limit"`  // chat turns included in prompts
	SearchLimit       int    `yaml:"search_limit"`       // retrieved context slots in prompts
}

// ProjectsConfig configures where projects live on disk.
type ProjectsConfig struct {
	Dir string `yaml:"dir"`
}

// ExecutionConfig configures the task execution engine.
type ExecutionConfig struct {
	CommandTimeout string `yaml:"command_timeout"`
}

// LoggingConfig configures the category file logger.
type LoggingConfig struct {
	DebugMode  bool            `yaml:"debug_mode" json:"debug_mode"`
	Categories map[string]bool `yaml:"categories" json:"categories"`
	Level      string          `yaml:"level" json:"level"`
	JSONFormat bool            `yaml:"json_format" json:"json_format"`
}

// DefaultConfig returns the default configuration.
func DefaultConfig() *Config {
	return &Config{
		Name:    "autobot",
		Version: "0.1.0",

		LLM: LLMConfig{
			Model:       "gpt-4o-mini",
			BaseURL:     "https://api.openai.com/v1",
			Timeout:     "60s",
			MaxTokens:   1000,
			Temperature: 0.7,
			MaxRetries:  3,
		},

		Embedding: EmbeddingConfig{
			Provider:       "ollama",
			OllamaEndpoint: "http://localhost:11434",
			OllamaModel:    "embeddinggemma",
			GenAIModel:     "gemini-embedding-001",
			TaskType:       "SEMANTIC_SIMILARITY",
		},

		Agent: AgentConfig{
			IdleWait:          "1s",
			ErrorBackoff:      "5s",
			QueueCapacity:     256,
			WorkLogCapacity:   500,
			ReflectionCadence: 5,
			RecentChatLimit:   5,
			SearchLimit:       5,
		},

		Projects: ProjectsConfig{
			Dir: "projects",
		},

		Execution: ExecutionConfig{
			CommandTimeout: "60s",
		},

		Logging: LoggingConfig{
			Level: "info",
		},
	}
}

// Load loads configuration from a YAML file. A missing file returns defaults.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			cfg.applyEnvOverrides()
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config: %w", err)
	}

	cfg.applyEnvOverrides()

	return cfg, nil
}

// Save saves configuration to a YAML file.
func (c *Config) Save(path string) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create config directory: %w", err)
	}

	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("failed to marshal config: %w", err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return fmt.Errorf("failed to write config: %w", err)
	}

	return nil
}

// applyEnvOverrides applies environment variable overrides.
func (c *Config) applyEnvOverrides() {
	if key := os.Getenv("OPENAI_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if key := os.Getenv("AUTOBOT_LLM_API_KEY"); key != "" {
		c.LLM.APIKey = key
	}
	if model := os.Getenv("AUTOBOT_LLM_MODEL"); model != "" {
		c.LLM.Model = model
	}
	if url := os.Getenv("AUTOBOT_LLM_BASE_URL"); url != "" {
		c.LLM.BaseURL = url
	}

	if key := os.Getenv("GEMINI_API_KEY"); key != "" {
		c.Embedding.GenAIAPIKey = key
		c.Embedding.Provider = "genai"
	}
	if endpoint := os.Getenv("OLLAMA_ENDPOINT"); endpoint != "" {
		c.Embedding.OllamaEndpoint = endpoint
	}

	if dir := os.Getenv("AUTOBOT_PROJECTS_DIR"); dir != "" {
		c.Projects.Dir = dir
	}
}

// GetLLMTimeout returns the completion timeout as a duration.
func (c *Config) GetLLMTimeout() time.Duration {
	d, err := time.ParseDuration(c.LLM.Timeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// GetIdleWait returns the loop idle wait as a duration.
func (c *Config) GetIdleWait() time.Duration {
	d, err := time.ParseDuration(c.Agent.IdleWait)
	if err != nil {
		return time.Second
	}
	return d
}

// GetErrorBackoff returns the failed-tick backoff as a duration.
func (c *Config) GetErrorBackoff() time.Duration {
	d, err := time.ParseDuration(c.Agent.ErrorBackoff)
	if err != nil {
		return 5 * time.Second
	}
	return d
}

// GetCommandTimeout returns the tool command timeout as a duration.
func (c *Config) GetCommandTimeout() time.Duration {
	d, err := time.ParseDuration(c.Execution.CommandTimeout)
	if err != nil {
		return 60 * time.Second
	}
	return d
}

// ValidEmbeddingProviders lists supported embedding providers.
var ValidEmbeddingProviders = []string{"ollama", "genai"}

// Validate validates the configuration.
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return fmt.Errorf("LLM API key not configured (set OPENAI_API_KEY or AUTOBOT_LLM_API_KEY)")
	}

	validProvider := false
	for _, p := range ValidEmbeddingProviders {
		if c.Embedding.Provider == p {
			validProvider = true
			break
		}
	}
	if !validProvider {
		return fmt.Errorf("invalid embedding provider: %s (valid: %v)", c.Embedding.Provider, ValidEmbeddingProviders)
	}

	if c.Agent.QueueCapacity <= 0 {
		return fmt.Errorf("agent queue capacity must be positive, got %d", c.Agent.QueueCapacity)
	}
	if c.Agent.WorkLogCapacity <= 0 {
		return fmt.Errorf("agent work log capacity must be positive, got %d", c.Agent.WorkLogCapacity)
	}
	if c.Agent.ReflectionCadence <= 0 {
		return fmt.Errorf("agent reflection cadence must be positive, got %d", c.Agent.ReflectionCadence)
	}

	return nil
}
