// Package pipeline runs one task-extraction pass: normalize time phrases,
// render the prompt, call the model, then extract, validate and deduplicate
// the response.
//
// The Orchestrator holds no per-run state and is safe for concurrent use.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hurttlocker/taskmine/internal/dedup"
	"github.com/hurttlocker/taskmine/internal/extract"
	"github.com/hurttlocker/taskmine/internal/llm"
	"github.com/hurttlocker/taskmine/internal/task"
	"github.com/hurttlocker/taskmine/internal/timehint"
)

// Document is one named source text.
type Document struct {
	Name    string `json:"name"`
	Content string `json:"content"`
}

// Request is the input to one extraction run.
type Request struct {
	// DocumentText is free text treated as a single unnamed document.
	DocumentText string     `json:"documentText"`
	Documents    []Document `json:"documents,omitempty"`
	Domains      []string   `json:"domains"`
	ManualInput  string     `json:"manualInput,omitempty"`
}

func (r Request) documents() []Document {
	docs := make([]Document, 0, len(r.Documents)+1)
	if strings.TrimSpace(r.DocumentText) != "" {
		docs = append(docs, Document{Name: "입력 문서", Content: r.DocumentText})
	}
	for _, d := range r.Documents {
		if strings.TrimSpace(d.Content) != "" {
			docs = append(docs, d)
		}
	}
	return docs
}

// Rejected is the wire form of a candidate that failed validation.
type Rejected struct {
	Index  int               `json:"index"`
	Errors []task.FieldError `json:"errors"`
}

// Result is the outcome of a run that reached the model.
type Result struct {
	Tasks    []task.Task      `json:"tasks"`
	Rejected []Rejected       `json:"rejected"`
	Warnings []string         `json:"warnings"`
	Merged   []dedup.Merge    `json:"merged,omitempty"`
	TimeHint timehint.Hint    `json:"timeHint"`
	Strategy extract.Strategy `json:"strategy,omitempty"`
	Model    string           `json:"model,omitempty"`
}

// CompletionError wraps a failure of the model call itself: transport, auth,
// quota or timeout. It is never produced for a malformed response.
type CompletionError struct {
	Provider string
	Timeout  bool
	Err      error
}

func (e *CompletionError) Error() string {
	if e.Timeout {
		return fmt.Sprintf("llm completion via %s timed out: %v", e.Provider, e.Err)
	}
	return fmt.Sprintf("llm completion via %s: %v", e.Provider, e.Err)
}

func (e *CompletionError) Unwrap() error { return e.Err }

// Options configures an Orchestrator. Zero values take defaults.
type Options struct {
	// Timeout bounds the model call only. 0 means no extra bound.
	Timeout   time.Duration
	MaxTokens int
	// Temperature is sent with every model call. nil means
	// DefaultTemperature; point at 0 for deterministic output.
	Temperature *float64
	// Template overrides the embedded prompt.
	Template   string
	Dedup      dedup.Options
	Normalizer *timehint.Normalizer
	Validator  *task.Validator
	Logger     *zap.Logger
	// NewID generates IDs for tasks the model left without one.
	NewID func() string
}

// Default model call settings.
const (
	DefaultMaxTokens   = 8000
	DefaultTemperature = 0.3
)

// Orchestrator wires the extraction stages around an injected Provider.
type Orchestrator struct {
	provider llm.Provider
	opts     Options
	log      *zap.Logger
}

// New creates an Orchestrator.
func New(provider llm.Provider, opts Options) *Orchestrator {
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = DefaultMaxTokens
	}
	if opts.Temperature == nil {
		t := DefaultTemperature
		opts.Temperature = &t
	}
	if opts.Template == "" {
		opts.Template = defaultTemplate
	}
	if opts.Normalizer == nil {
		opts.Normalizer = timehint.New()
	}
	if opts.Validator == nil {
		opts.Validator = task.NewValidator()
	}
	if opts.NewID == nil {
		opts.NewID = uuid.NewString
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Orchestrator{provider: provider, opts: opts, log: log.Named("pipeline")}
}

// Extract runs the full pipeline. A failing model call is returned as a
// *CompletionError; a response with no usable array yields an empty task
// list and a warning, not an error.
func (o *Orchestrator) Extract(ctx context.Context, req Request) (*Result, error) {
	var text strings.Builder
	for _, d := range req.documents() {
		text.WriteString(d.Content)
		text.WriteString("\n")
	}
	text.WriteString(req.ManualInput)
	hint := o.opts.Normalizer.Normalize(text.String())

	prompt := renderPrompt(o.opts.Template, req, hint)
	o.log.Debug("prompt rendered",
		zap.Int("bytes", len(prompt)),
		zap.Int("documents", len(req.documents())),
		zap.Strings("domains", req.Domains),
		zap.Bool("time_hint", !hint.Empty()))

	raw, err := o.complete(ctx, prompt)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Tasks:    []task.Task{},
		Rejected: []Rejected{},
		Warnings: []string{},
		TimeHint: hint,
		Model:    o.provider.Name(),
	}

	ext := extract.Extract(raw)
	if !ext.OK() {
		o.log.Warn("model response has no task array",
			zap.String("kind", string(ext.Failure.Kind)),
			zap.String("detail", ext.Failure.ParseDetail),
			zap.Int("attempts", ext.Attempts),
			zap.String("sample", sample(ext.Failure.RawSample, 200)))
		res.Warnings = append(res.Warnings, fmt.Sprintf("no tasks extracted: model response was unusable (%s)", ext.Failure.Error()))
		return res, nil
	}
	res.Strategy = ext.Strategy

	report := o.opts.Validator.Validate(ext.Records)
	for _, rej := range report.Invalid {
		res.Rejected = append(res.Rejected, Rejected{Index: rej.Index, Errors: rej.Errors})
	}
	if n := len(report.Invalid); n > 0 {
		res.Warnings = append(res.Warnings, fmt.Sprintf("%d of %d records failed validation", n, len(ext.Records)))
	}

	valid := report.Valid
	for i := range valid {
		if valid[i].ID == "" {
			valid[i].ID = o.opts.NewID()
		}
	}

	out := dedup.Process(valid, req.Domains, o.opts.Dedup)
	res.Tasks = out.Tasks
	res.Merged = out.Merges
	res.Warnings = append(res.Warnings, out.Warnings...)

	o.log.Info("extraction complete",
		zap.String("model", res.Model),
		zap.String("strategy", string(ext.Strategy)),
		zap.Int("attempts", ext.Attempts),
		zap.Int("records", len(ext.Records)),
		zap.Int("tasks", len(res.Tasks)),
		zap.Int("rejected", len(res.Rejected)),
		zap.Int("merged", len(res.Merged)),
		zap.Int("warnings", len(res.Warnings)))
	return res, nil
}

func (o *Orchestrator) complete(ctx context.Context, prompt string) (string, error) {
	callCtx := ctx
	if o.opts.Timeout > 0 {
		var cancel context.CancelFunc
		callCtx, cancel = context.WithTimeout(ctx, o.opts.Timeout)
		defer cancel()
	}

	raw, err := o.provider.Complete(callCtx, userInstruction, llm.CompletionOpts{
		MaxTokens:   o.opts.MaxTokens,
		Temperature: *o.opts.Temperature,
		System:      prompt,
	})
	if err == nil && callCtx.Err() != nil {
		err = callCtx.Err()
	}
	if err != nil {
		timeout := errors.Is(err, context.DeadlineExceeded) || errors.Is(callCtx.Err(), context.DeadlineExceeded)
		return "", &CompletionError{Provider: o.provider.Name(), Timeout: timeout, Err: err}
	}
	return raw, nil
}

func sample(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
