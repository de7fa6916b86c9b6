package engine

import (
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/germanamz/contentcrew/pkg/tools/serper"
	"gopkg.in/yaml.v3"
)

// Environment variables holding the API keys.
const (
	OpenAIKeyEnv = "OPENAI_API_KEY"
	SerperKeyEnv = "SERPER_API_KEY" //nolint:gosec // variable name, not a secret
)

// DefaultHistoryPath is where runs are recorded unless configured otherwise.
const DefaultHistoryPath = ".contentcrew/history.db"

// Config is the top-level engine configuration.
type Config struct {
	Provider   ProviderConfig `yaml:"provider"`
	Search     SearchConfig   `yaml:"search"`
	Crew       CrewConfig     `yaml:"crew"`
	MCPServers []MCPConfig    `yaml:"mcp_servers,omitempty"`
	History    HistoryConfig  `yaml:"history"`
	Server     ServerConfig   `yaml:"server"`
}

// ProviderConfig describes the LLM provider.
type ProviderConfig struct {
	Kind         string          `yaml:"kind"`
	BaseURL      string          `yaml:"base_url,omitempty"`
	APIKey       string          `yaml:"api_key,omitempty"` //nolint:gosec // configuration field, not a hardcoded secret
	Model        string          `yaml:"model"`
	MaxTokens    int             `yaml:"max_tokens,omitempty"`
	Organization string          `yaml:"organization,omitempty"`
	RateLimit    RateLimitConfig `yaml:"rate_limit,omitempty"`

	// Temperature is chosen per run, never read from YAML.
	Temperature float64 `yaml:"-"`
}

// RateLimitConfig controls client-side rate limiting of the provider.
type RateLimitConfig struct {
	InputTPM   int    `yaml:"input_tpm,omitempty"`   // Input tokens per minute (0 = no limit).
	OutputTPM  int    `yaml:"output_tpm,omitempty"`  // Output tokens per minute (0 = no limit).
	RPM        int    `yaml:"rpm,omitempty"`         // Requests per minute (0 = no limit).
	MaxRetries int    `yaml:"max_retries,omitempty"` // Max retries on 429 (default 3).
	BaseDelay  string `yaml:"base_delay,omitempty"`  // Initial backoff as a duration string (e.g. "1s").
}

// Enabled reports whether any rate limit setting is present.
func (r RateLimitConfig) Enabled() bool {
	return r.InputTPM > 0 || r.OutputTPM > 0 || r.RPM > 0 || r.MaxRetries > 0 || r.BaseDelay != ""
}

// SearchConfig configures the Serper search tool.
type SearchConfig struct {
	BaseURL string `yaml:"base_url,omitempty"`
	APIKey  string `yaml:"api_key,omitempty"` //nolint:gosec // configuration field, not a hardcoded secret
}

// CrewConfig tunes the agents.
type CrewConfig struct {
	MaxIterations int    `yaml:"max_iterations"`
	Timeout       string `yaml:"timeout,omitempty"` // Per task, as a duration string. Empty = none.
}

// MCPConfig describes an MCP server whose tools are given to the researcher.
type MCPConfig struct {
	Name    string            `yaml:"name"`
	Command string            `yaml:"command,omitempty"`
	Args    []string          `yaml:"args,omitempty"`
	Env     map[string]string `yaml:"env,omitempty"`
	URL     string            `yaml:"url,omitempty"`
}

// HistoryConfig controls the run log.
type HistoryConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// ServerConfig configures the web frontend.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// DefaultConfig returns a configuration that works with only the two API key
// environment variables set.
func DefaultConfig() Config {
	return Config{
		Provider: ProviderConfig{
			Kind:  "openai",
			Model: "gpt-4o-mini",
		},
		Search: SearchConfig{BaseURL: serper.DefaultBaseURL},
		Crew:   CrewConfig{MaxIterations: 20},
		History: HistoryConfig{
			Enabled: true,
			Path:    DefaultHistoryPath,
		},
		Server: ServerConfig{Addr: ":8501"},
	}
}

// LoadConfig reads a YAML file on top of DefaultConfig. ${VAR} and $VAR
// references are expanded from the environment before parsing, so secrets
// can stay in the environment or a .env file.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path) //nolint:gosec // path is caller-provided configuration, not user input
	if err != nil {
		return Config{}, fmt.Errorf("engine: load config: %w", err)
	}

	cfg := DefaultConfig()
	if err := yaml.Unmarshal([]byte(os.ExpandEnv(string(data))), &cfg); err != nil {
		return Config{}, fmt.Errorf("engine: parse config: %w", err)
	}

	return cfg, nil
}

// Marshal renders the configuration as YAML.
func (c Config) Marshal() ([]byte, error) {
	data, err := yaml.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("engine: marshal config: %w", err)
	}
	return data, nil
}

// ApplyEnv fills empty API keys from OPENAI_API_KEY and SERPER_API_KEY.
func (c *Config) ApplyEnv() {
	if c.Provider.APIKey == "" {
		c.Provider.APIKey = os.Getenv(OpenAIKeyEnv)
	}
	if c.Search.APIKey == "" {
		c.Search.APIKey = os.Getenv(SerperKeyEnv)
	}
}

// MissingSecrets returns the environment variable names of unset API keys.
func (c Config) MissingSecrets() []string {
	var missing []string
	if c.Provider.APIKey == "" {
		missing = append(missing, OpenAIKeyEnv)
	}
	if c.Search.APIKey == "" {
		missing = append(missing, SerperKeyEnv)
	}
	return missing
}

// Validate checks that the configuration is internally consistent. Missing
// API keys are not an error here; see MissingSecrets.
func (c Config) Validate() error {
	var errs []error

	if c.Provider.Kind == "" {
		errs = append(errs, errors.New("provider: kind is required"))
	} else if _, ok := getFactory(c.Provider.Kind); !ok {
		errs = append(errs, fmt.Errorf("provider: unknown kind %q", c.Provider.Kind))
	}

	if c.Provider.MaxTokens < 0 {
		errs = append(errs, errors.New("provider: max_tokens must not be negative"))
	}

	if d := c.Provider.RateLimit.BaseDelay; d != "" {
		if _, err := time.ParseDuration(d); err != nil {
			errs = append(errs, fmt.Errorf("provider: rate_limit: invalid base_delay %q", d))
		}
	}

	if c.Crew.MaxIterations < 0 {
		errs = append(errs, errors.New("crew: max_iterations must not be negative"))
	}

	if c.Crew.Timeout != "" {
		if d, err := time.ParseDuration(c.Crew.Timeout); err != nil || d < 0 {
			errs = append(errs, fmt.Errorf("crew: invalid timeout %q", c.Crew.Timeout))
		}
	}

	names := make(map[string]struct{}, len(c.MCPServers))
	for _, m := range c.MCPServers {
		switch {
		case m.Name == "":
			errs = append(errs, errors.New("mcp server: name is required"))
			continue
		case m.Command == "" && m.URL == "":
			errs = append(errs, fmt.Errorf("mcp server %q: command or url is required", m.Name))
		case m.Command != "" && m.URL != "":
			errs = append(errs, fmt.Errorf("mcp server %q: command and url are mutually exclusive", m.Name))
		}
		if _, dup := names[m.Name]; dup {
			errs = append(errs, fmt.Errorf("duplicate mcp server name %q", m.Name))
		}
		names[m.Name] = struct{}{}
	}

	if c.History.Enabled && c.History.Path == "" {
		errs = append(errs, errors.New("history: path is required when enabled"))
	}

	if err := errors.Join(errs...); err != nil {
		return fmt.Errorf("engine: config: %w", err)
	}
	return nil
}

// taskTimeout returns the parsed crew timeout. Validate guarantees it parses.
func (c Config) taskTimeout() time.Duration {
	d, _ := time.ParseDuration(c.Crew.Timeout)
	return d
}
