// Package config resolves taskmine settings from built-in defaults, the YAML
// config file, environment variables and CLI flags, in that order of
// increasing precedence. Every value remembers where it came from.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// Duration parses the value as a Go duration, falling back to def when the
// value is empty or malformed.
func (v ResolvedValue) Duration(def time.Duration) time.Duration {
	d, err := time.ParseDuration(strings.TrimSpace(v.Value))
	if err != nil || d < 0 {
		return def
	}
	return d
}

// Int parses the value as an integer, falling back to def.
func (v ResolvedValue) Int(def int) int {
	n, err := strconv.Atoi(strings.TrimSpace(v.Value))
	if err != nil {
		return def
	}
	return n
}

// Float parses the value as a float, falling back to def.
func (v ResolvedValue) Float(def float64) float64 {
	f, err := strconv.ParseFloat(strings.TrimSpace(v.Value), 64)
	if err != nil {
		return def
	}
	return f
}

// Built-in defaults.
const (
	DefaultDBPath               = "~/.taskmine/taskmine.db"
	DefaultStore                = "sqlite"
	DefaultLLMTimeout           = 90 * time.Second
	DefaultAddr                 = ":8080"
	DefaultUploadLimitMB        = 10
	DefaultConcurrency          = 3
	DefaultTitleThreshold       = 0.75
	DefaultDescriptionThreshold = 0.6
)

type ResolveOptions struct {
	ConfigPath string
	CLILLM     string
	CLIDBPath  string
	CLIStore   string
	CLIAddr    string
}

type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	DBPath      ResolvedValue `json:"db_path"`
	Store       ResolvedValue `json:"store"`
	LLMProvider ResolvedValue `json:"llm_provider"`
	LLMTimeout  ResolvedValue `json:"llm_timeout"`
	Addr        ResolvedValue `json:"server_addr"`
	PromptPath  ResolvedValue `json:"prompt_path"`
	UploadLimit ResolvedValue `json:"upload_limit_mb"`
	Concurrency ResolvedValue `json:"concurrency"`

	TitleThreshold       ResolvedValue `json:"dedup_title_threshold"`
	DescriptionThreshold ResolvedValue `json:"dedup_description_threshold"`

	LLMKeys map[string]ResolvedValue `json:"llm_keys,omitempty"`
}

type fileConfig struct {
	DBPath        string `yaml:"db_path"`
	Store         string `yaml:"store"`
	PromptPath    string `yaml:"prompt_path"`
	UploadLimitMB string `yaml:"upload_limit_mb"`
	Concurrency   string `yaml:"concurrency"`
	LLM           struct {
		Provider string `yaml:"provider"`
		APIKey   string `yaml:"api_key"`
		Timeout  string `yaml:"timeout"`
	} `yaml:"llm"`
	Server struct {
		Addr string `yaml:"addr"`
	} `yaml:"server"`
	Dedup struct {
		TitleThreshold       string `yaml:"title_threshold"`
		DescriptionThreshold string `yaml:"description_threshold"`
	} `yaml:"dedup"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".taskmine", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{
		ConfigPath: path,
		LLMKeys:    map[string]ResolvedValue{},
	}
	def := func(dst *ResolvedValue, v string) {
		*dst = ResolvedValue{Value: v, Source: SourceDefault, From: "built-in default"}
	}
	def(&out.DBPath, DefaultDBPath)
	def(&out.Store, DefaultStore)
	def(&out.LLMTimeout, DefaultLLMTimeout.String())
	def(&out.Addr, DefaultAddr)
	def(&out.UploadLimit, strconv.Itoa(DefaultUploadLimitMB))
	def(&out.Concurrency, strconv.Itoa(DefaultConcurrency))
	def(&out.TitleThreshold, strconv.FormatFloat(DefaultTitleThreshold, 'f', -1, 64))
	def(&out.DescriptionThreshold, strconv.FormatFloat(DefaultDescriptionThreshold, 'f', -1, 64))

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.DBPath, cfg.DBPath, SourceConfig, path)
		apply(&out.Store, cfg.Store, SourceConfig, path)
		apply(&out.LLMProvider, cfg.LLM.Provider, SourceConfig, path)
		apply(&out.LLMTimeout, cfg.LLM.Timeout, SourceConfig, path)
		apply(&out.Addr, cfg.Server.Addr, SourceConfig, path)
		apply(&out.PromptPath, cfg.PromptPath, SourceConfig, path)
		apply(&out.UploadLimit, cfg.UploadLimitMB, SourceConfig, path)
		apply(&out.Concurrency, cfg.Concurrency, SourceConfig, path)
		apply(&out.TitleThreshold, cfg.Dedup.TitleThreshold, SourceConfig, path)
		apply(&out.DescriptionThreshold, cfg.Dedup.DescriptionThreshold, SourceConfig, path)

		if key := strings.TrimSpace(cfg.LLM.APIKey); key != "" {
			p := providerOf(cfg.LLM.Provider)
			if p == "" {
				p = "default"
			}
			out.LLMKeys[p] = ResolvedValue{Value: key, Source: SourceConfig, From: path}
		}
	}

	applyEnv(&out.DBPath, "TASKMINE_DB")
	applyEnv(&out.Store, "TASKMINE_STORE")
	applyEnv(&out.LLMProvider, "TASKMINE_LLM")
	applyEnv(&out.LLMTimeout, "TASKMINE_LLM_TIMEOUT")
	applyEnv(&out.Addr, "TASKMINE_ADDR")
	applyEnv(&out.PromptPath, "TASKMINE_PROMPT")

	// Later entries win, so GEMINI_API_KEY beats GOOGLE_API_KEY.
	for _, kv := range [][2]string{
		{"ANTHROPIC_API_KEY", "anthropic"},
		{"OPENROUTER_API_KEY", "openrouter"},
		{"GOOGLE_API_KEY", "google"},
		{"GEMINI_API_KEY", "google"},
	} {
		if v := strings.TrimSpace(os.Getenv(kv[0])); v != "" {
			out.LLMKeys[kv[1]] = ResolvedValue{Value: v, Source: SourceEnv, From: kv[0]}
		}
	}

	apply(&out.LLMProvider, opts.CLILLM, SourceCLI, "--llm")
	apply(&out.DBPath, opts.CLIDBPath, SourceCLI, "--db")
	apply(&out.Store, opts.CLIStore, SourceCLI, "--store")
	apply(&out.Addr, opts.CLIAddr, SourceCLI, "--addr")

	out.DBPath.Value = expandUserPath(out.DBPath.Value)
	out.PromptPath.Value = expandUserPath(out.PromptPath.Value)
	out.Store.Value = strings.ToLower(out.Store.Value)

	if err := out.validate(); err != nil {
		return out, err
	}
	return out, nil
}

func (r ResolvedConfig) validate() error {
	switch r.Store.Value {
	case "sqlite", "memory":
	default:
		return fmt.Errorf("store %q (from %s) must be sqlite or memory", r.Store.Value, r.Store.From)
	}
	if _, err := time.ParseDuration(r.LLMTimeout.Value); err != nil {
		return fmt.Errorf("llm timeout %q (from %s): %w", r.LLMTimeout.Value, r.LLMTimeout.From, err)
	}
	for _, th := range []ResolvedValue{r.TitleThreshold, r.DescriptionThreshold} {
		if f := th.Float(-1); f <= 0 || f > 1 {
			return fmt.Errorf("dedup threshold %q (from %s) must be in (0, 1]", th.Value, th.From)
		}
	}
	return nil
}

// APIKeyForProvider returns the key for a provider name or "provider/model"
// value. A key given in the config file without a provider applies to all.
func (r ResolvedConfig) APIKeyForProvider(providerOrModel string) ResolvedValue {
	provider := providerOf(providerOrModel)
	if provider == "" {
		return ResolvedValue{}
	}
	if v, ok := r.LLMKeys[provider]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	if v, ok := r.LLMKeys["default"]; ok && strings.TrimSpace(v.Value) != "" {
		return v
	}
	return ResolvedValue{}
}

func providerOf(providerOrModel string) string {
	v := strings.ToLower(strings.TrimSpace(providerOrModel))
	if v == "" {
		return ""
	}
	if idx := strings.Index(v, "/"); idx > 0 {
		return v[:idx]
	}
	return v
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
