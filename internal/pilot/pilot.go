// Package pilot runs scripted persona simulations against the extraction
// pipeline to try the workshop flow before real participants use it.
package pilot

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"gopkg.in/yaml.v3"

	"github.com/hurttlocker/taskmine/internal/extract"
	"github.com/hurttlocker/taskmine/internal/llm"
	"github.com/hurttlocker/taskmine/internal/pipeline"
)

// DefaultConcurrency is the number of personas simulated at once.
const DefaultConcurrency = 4

// DefaultTemperature keeps persona answers varied across runs.
const DefaultTemperature = 0.7

// Persona is one synthetic workshop participant.
type Persona struct {
	ID           string   `yaml:"id" json:"id"`
	Name         string   `yaml:"name" json:"name"`
	Role         string   `yaml:"role" json:"role"`
	Team         string   `yaml:"team" json:"team"`
	Domains      []string `yaml:"domains" json:"domains"`
	TechLiteracy string   `yaml:"techLiteracy" json:"techLiteracy"`
	WorkNotes    string   `yaml:"workNotes" json:"workNotes"`
	PainPoints   []string `yaml:"painPoints,omitempty" json:"painPoints,omitempty"`
	Expectations []string `yaml:"expectations,omitempty" json:"expectations,omitempty"`
}

type personaFile struct {
	Personas []Persona `yaml:"personas"`
}

// LoadPersonas reads a persona file from disk.
func LoadPersonas(path string) ([]Persona, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading personas: %w", err)
	}
	return ParsePersonas(data)
}

// ParsePersonas decodes a YAML document with a top-level personas list.
// Every persona needs an id, a name and at least one domain; ids must be
// unique.
func ParsePersonas(data []byte) ([]Persona, error) {
	var f personaFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing personas: %w", err)
	}
	if len(f.Personas) == 0 {
		return nil, errors.New("persona file lists no personas")
	}
	seen := map[string]bool{}
	for i, p := range f.Personas {
		switch {
		case strings.TrimSpace(p.ID) == "":
			return nil, fmt.Errorf("persona %d: id is required", i)
		case strings.TrimSpace(p.Name) == "":
			return nil, fmt.Errorf("persona %s: name is required", p.ID)
		case len(p.Domains) == 0:
			return nil, fmt.Errorf("persona %s: at least one domain is required", p.ID)
		case seen[p.ID]:
			return nil, fmt.Errorf("persona %s: duplicate id", p.ID)
		}
		seen[p.ID] = true
	}
	return f.Personas, nil
}

// Extractor runs one extraction request. *pipeline.Orchestrator satisfies it.
type Extractor interface {
	Extract(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Options configures a Runner. Zero values take defaults.
type Options struct {
	Concurrency int
	Temperature float64
	MaxTokens   int
	Logger      *zap.Logger
	Now         func() time.Time
}

// Runner drives personas through the extraction flow.
type Runner struct {
	provider  llm.Provider
	extractor Extractor
	opts      Options
	log       *zap.Logger
}

// NewRunner builds a Runner. The provider plays the personas; the extractor
// is the system under test.
func NewRunner(provider llm.Provider, ex Extractor, opts Options) *Runner {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.Temperature <= 0 {
		opts.Temperature = DefaultTemperature
	}
	if opts.MaxTokens <= 0 {
		opts.MaxTokens = 2048
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	log := opts.Logger
	if log == nil {
		log = zap.NewNop()
	}
	return &Runner{provider: provider, extractor: ex, opts: opts, log: log}
}

// Feedback is a persona's verdict on the extracted task list.
type Feedback struct {
	Satisfaction int      `json:"satisfaction"`
	PainPoints   []string `json:"painPoints"`
	Suggestions  []string `json:"suggestions"`
}

// Row is the outcome of one persona run. Error is set when any step
// failed; the steps completed before the failure are still reported.
type Row struct {
	Persona     Persona   `json:"persona"`
	ManualInput string    `json:"manualInput,omitempty"`
	Tasks       int       `json:"tasks"`
	Rejected    int       `json:"rejected"`
	Warnings    []string  `json:"warnings,omitempty"`
	Feedback    *Feedback `json:"feedback,omitempty"`
	Duration    float64   `json:"durationSeconds"`
	Error       string    `json:"error,omitempty"`
}

// Failed reports whether the run stopped before feedback was collected.
func (r Row) Failed() bool { return r.Error != "" }

// Run simulates every persona. A failing persona is recorded in its row and
// does not stop the others; only context cancellation aborts the run.
func (r *Runner) Run(ctx context.Context, personas []Persona) (*Report, error) {
	rows := make([]Row, len(personas))
	var mu sync.Mutex
	completed := 0

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.opts.Concurrency)
	for i, p := range personas {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			rows[i] = r.simulate(gctx, p)

			mu.Lock()
			completed++
			n := completed
			mu.Unlock()
			r.log.Info("persona simulated",
				zap.String("persona", p.ID),
				zap.Int("tasks", rows[i].Tasks),
				zap.Bool("failed", rows[i].Failed()),
				zap.Int("completed", n),
				zap.Int("total", len(personas)))
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return BuildReport(rows, r.opts.Now()), nil
}

func (r *Runner) simulate(ctx context.Context, p Persona) Row {
	start := time.Now()
	row := Row{Persona: p}
	elapsed := func() float64 { return math.Round(time.Since(start).Seconds()*100) / 100 }

	fail := func(step string, err error) Row {
		row.Error = fmt.Sprintf("%s: %v", step, err)
		row.Duration = elapsed()
		r.log.Warn("persona step failed", zap.String("persona", p.ID), zap.String("step", step), zap.Error(err))
		return row
	}

	input, err := r.complete(ctx, manualInputPrompt(p))
	if err != nil {
		return fail("writing manual input", err)
	}
	row.ManualInput = strings.TrimSpace(input)
	if row.ManualInput == "" {
		return fail("writing manual input", errors.New("model returned empty text"))
	}

	res, err := r.extractor.Extract(ctx, pipeline.Request{Domains: p.Domains, ManualInput: row.ManualInput})
	if err != nil {
		return fail("extracting tasks", err)
	}
	row.Tasks = len(res.Tasks)
	row.Rejected = len(res.Rejected)
	row.Warnings = res.Warnings

	raw, err := r.complete(ctx, feedbackPrompt(p, res))
	if err != nil {
		return fail("collecting feedback", err)
	}
	fb, err := parseFeedback(raw)
	if err != nil {
		return fail("collecting feedback", err)
	}
	row.Feedback = fb
	row.Duration = elapsed()
	return row
}

func (r *Runner) complete(ctx context.Context, prompt string) (string, error) {
	return r.provider.Complete(ctx, prompt, llm.CompletionOpts{
		MaxTokens:   r.opts.MaxTokens,
		Temperature: r.opts.Temperature,
	})
}

// parseFeedback reads the first element of the model's JSON array.
func parseFeedback(raw string) (*Feedback, error) {
	ext := extract.Extract(raw)
	if !ext.OK() {
		return nil, ext.Failure
	}
	if len(ext.Records) == 0 || ext.Records[0].Fields == nil {
		return nil, errors.New("feedback array has no object")
	}
	f := ext.Records[0].Fields

	fb := &Feedback{PainPoints: stringList(f["painPoints"]), Suggestions: stringList(f["suggestions"])}
	n, ok := f["satisfaction"].(float64)
	if !ok {
		return nil, errors.New("feedback satisfaction must be a number")
	}
	score := int(math.Round(n))
	if score < 1 || score > 5 {
		return nil, fmt.Errorf("feedback satisfaction %v outside 1-5", n)
	}
	fb.Satisfaction = score
	return fb, nil
}

func stringList(v any) []string {
	items, _ := v.([]any)
	out := make([]string, 0, len(items))
	for _, it := range items {
		if s, ok := it.(string); ok && strings.TrimSpace(s) != "" {
			out = append(out, strings.TrimSpace(s))
		}
	}
	return out
}
