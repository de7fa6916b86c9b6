package engine

import (
	"fmt"
	"sync"
	"time"

	"github.com/germanamz/contentcrew/pkg/modeladapter"
	"github.com/germanamz/contentcrew/pkg/providers/openai"
)

// ProviderFactory creates a Completer from a ProviderConfig.
type ProviderFactory func(cfg ProviderConfig) (modeladapter.Completer, error)

var (
	factoryMu   sync.RWMutex
	factories   = map[string]ProviderFactory{}
	defaultsReg sync.Once
)

func ensureDefaults() {
	defaultsReg.Do(func() {
		factoryMu.Lock()
		defer factoryMu.Unlock()

		factories["openai"] = newOpenAI
	})
}

// RegisterProvider registers a provider factory under kind, replacing any
// previous one. Call it before New.
func RegisterProvider(kind string, factory ProviderFactory) {
	ensureDefaults()

	factoryMu.Lock()
	defer factoryMu.Unlock()

	factories[kind] = factory
}

func getFactory(kind string) (ProviderFactory, bool) {
	ensureDefaults()

	factoryMu.RLock()
	defer factoryMu.RUnlock()

	f, ok := factories[kind]
	return f, ok
}

func newOpenAI(cfg ProviderConfig) (modeladapter.Completer, error) {
	opts := []openai.Option{
		openai.WithTemperature(cfg.Temperature),
		openai.WithOrganization(cfg.Organization),
	}
	if cfg.MaxTokens > 0 {
		opts = append(opts, openai.WithMaxTokens(cfg.MaxTokens))
	}

	return openai.New(cfg.BaseURL, cfg.APIKey, cfg.Model, opts...), nil
}

// buildCompleter creates a Completer with the factory registered for the
// config's kind, wrapped with a RateLimitedCompleter when rate limiting is
// configured.
func buildCompleter(cfg ProviderConfig) (modeladapter.Completer, error) {
	factory, ok := getFactory(cfg.Kind)
	if !ok {
		return nil, fmt.Errorf("engine: unknown provider kind %q", cfg.Kind)
	}

	c, err := factory(cfg)
	if err != nil {
		return nil, fmt.Errorf("engine: provider %q: %w", cfg.Kind, err)
	}

	rl := cfg.RateLimit
	if !rl.Enabled() {
		return c, nil
	}

	var baseDelay time.Duration
	if rl.BaseDelay != "" {
		baseDelay, err = time.ParseDuration(rl.BaseDelay)
		if err != nil {
			return nil, fmt.Errorf("engine: provider %q: invalid base_delay %q: %w", cfg.Kind, rl.BaseDelay, err)
		}
	}

	return modeladapter.NewRateLimitedCompleter(c, modeladapter.RateLimitOpts{
		InputTPM:   rl.InputTPM,
		OutputTPM:  rl.OutputTPM,
		RPM:        rl.RPM,
		MaxRetries: rl.MaxRetries,
		BaseDelay:  baseDelay,
	}), nil
}
