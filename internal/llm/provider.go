// Package llm is the provider-agnostic completion client used by the task
// extraction pipeline and the pilot simulator. Providers speak each vendor's
// REST API directly.
package llm

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strings"
	"time"
)

// Provider is the interface for LLM completions.
type Provider interface {
	// Complete sends a prompt and returns the response text. Transport, auth
	// and quota failures are returned as errors; a reply with no text is "".
	Complete(ctx context.Context, prompt string, opts CompletionOpts) (string, error)
	// Name returns "provider/model", e.g. "anthropic/claude-3-5-sonnet-20241022".
	Name() string
}

// CompletionOpts configures a single completion request.
type CompletionOpts struct {
	MaxTokens   int     // 0 = provider default
	Temperature float64 // 0.0-2.0
	Model       string  // per-request model override
	Format      string  // "json" asks for structured output where supported
	System      string  // system prompt
}

// ErrNoAPIKey is returned by NewProvider when no key is configured.
var ErrNoAPIKey = errors.New("llm: no API key configured")

// Config holds provider configuration.
type Config struct {
	Provider string        // "anthropic", "google", "openrouter"
	Model    string        // e.g. "claude-3-5-sonnet-20241022"
	APIKey   string        // empty = read from env
	BaseURL  string        // optional URL override
	Timeout  time.Duration // per-request HTTP timeout, 0 = none
}

// DefaultProvider is used when no --llm flag or config value is given.
const DefaultProvider = "anthropic"

var defaultModels = map[string]string{
	"anthropic":  "claude-3-5-sonnet-20241022",
	"google":     "gemini-2.5-flash",
	"openrouter": "anthropic/claude-3.5-sonnet",
}

var defaultBaseURLs = map[string]string{
	"anthropic":  "https://api.anthropic.com/v1",
	"google":     "https://generativelanguage.googleapis.com/v1beta",
	"openrouter": "https://openrouter.ai/api/v1",
}

var keyEnvVars = map[string][]string{
	"anthropic":  {"ANTHROPIC_API_KEY"},
	"google":     {"GEMINI_API_KEY", "GOOGLE_API_KEY"},
	"openrouter": {"OPENROUTER_API_KEY"},
}

// NewProvider creates an LLM provider from the given config.
func NewProvider(cfg Config) (Provider, error) {
	name := strings.ToLower(strings.TrimSpace(cfg.Provider))
	if name == "" {
		name = DefaultProvider
	}
	envs, ok := keyEnvVars[name]
	if !ok {
		return nil, fmt.Errorf("unknown LLM provider: %q (supported: %s)", cfg.Provider, supportedList())
	}

	key := cfg.APIKey
	for _, env := range envs {
		if key != "" {
			break
		}
		key = os.Getenv(env)
	}
	if key == "" {
		return nil, fmt.Errorf("%s provider requires %s: %w", name, strings.Join(envs, " or "), ErrNoAPIKey)
	}

	model := cfg.Model
	if model == "" {
		model = defaultModels[name]
	}
	base := cfg.BaseURL
	if base == "" {
		base = defaultBaseURLs[name]
	}
	c := client{
		apiKey:  key,
		model:   model,
		baseURL: strings.TrimRight(base, "/"),
		http:    &http.Client{Timeout: cfg.Timeout},
	}

	switch name {
	case "anthropic":
		return &anthropicProvider{client: c}, nil
	case "google":
		return &googleProvider{client: c}, nil
	default:
		return &openrouterProvider{client: c}, nil
	}
}

// ParseLLMFlag parses a --llm flag value into a Config.
// Format: "provider/model", e.g. "google/gemini-2.5-flash" or
// "openrouter/openai/gpt-4o-mini". A bare provider name uses its default model.
func ParseLLMFlag(flag string) (Config, error) {
	flag = strings.TrimSpace(flag)
	if flag == "" {
		return Config{Provider: DefaultProvider, Model: defaultModels[DefaultProvider]}, nil
	}

	parts := strings.SplitN(flag, "/", 2)
	provider := strings.ToLower(parts[0])
	if _, ok := defaultModels[provider]; !ok {
		return Config{}, fmt.Errorf("unknown provider %q in --llm flag (supported: %s)", provider, supportedList())
	}
	if len(parts) < 2 || parts[1] == "" {
		return Config{Provider: provider, Model: defaultModels[provider]}, nil
	}
	return Config{Provider: provider, Model: parts[1]}, nil
}

func supportedList() string {
	return "anthropic, google, openrouter"
}
