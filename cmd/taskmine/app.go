package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hurttlocker/taskmine/internal/config"
	"github.com/hurttlocker/taskmine/internal/dedup"
	"github.com/hurttlocker/taskmine/internal/llm"
	"github.com/hurttlocker/taskmine/internal/pipeline"
	"github.com/hurttlocker/taskmine/internal/store"
	"github.com/hurttlocker/taskmine/internal/timehint"
	"github.com/hurttlocker/taskmine/internal/workshop"
)

// newProvider is swapped in tests.
var newProvider = llm.NewProvider

// app is the wired object graph shared by the subcommands.
type app struct {
	store      store.Store
	provider   llm.Provider
	extractor  workshop.Extractor
	workshops  *workshop.Service
	normalizer *timehint.Normalizer
}

func (a *app) Close() error {
	if a.store == nil {
		return nil
	}
	return a.store.Close()
}

// provider resolves the --llm value and its API key into a Provider.
func (c *cli) provider() (llm.Provider, error) {
	lc, err := llm.ParseLLMFlag(c.cfg.LLMProvider.Value)
	if err != nil {
		return nil, err
	}
	lc.APIKey = c.cfg.APIKeyForProvider(lc.Provider).Value
	lc.Timeout = c.cfg.LLMTimeout.Duration(config.DefaultLLMTimeout)
	return newProvider(lc)
}

func (c *cli) dedupOptions() dedup.Options {
	opts := dedup.DefaultOptions()
	opts.TitleThreshold = c.cfg.TitleThreshold.Float(opts.TitleThreshold)
	opts.DescriptionThreshold = c.cfg.DescriptionThreshold.Float(opts.DescriptionThreshold)
	return opts
}

// orchestrator builds the extraction pipeline over p.
func (c *cli) orchestrator(p llm.Provider, norm *timehint.Normalizer) (*pipeline.Orchestrator, error) {
	tmpl := pipeline.DefaultTemplate()
	if path := c.cfg.PromptPath.Value; path != "" {
		t, err := pipeline.LoadTemplate(path)
		if err != nil {
			return nil, err
		}
		tmpl = t
		c.logger.Info("prompt template loaded", zap.String("path", path))
	}
	return pipeline.New(p, pipeline.Options{
		Timeout:    c.cfg.LLMTimeout.Duration(config.DefaultLLMTimeout),
		Template:   tmpl,
		Dedup:      c.dedupOptions(),
		Normalizer: norm,
		Logger:     c.logger,
		NewID:      uuid.NewString,
	}), nil
}

// buildApp opens the store and wires the services. A missing API key is not
// fatal: the board stays usable and analysis reports the missing key.
func (c *cli) buildApp(withStore bool) (*app, error) {
	a := &app{normalizer: timehint.New()}

	p, err := c.provider()
	switch {
	case err == nil:
		a.provider = p
		orch, err := c.orchestrator(p, a.normalizer)
		if err != nil {
			return nil, err
		}
		a.extractor = orch
	case errors.Is(err, llm.ErrNoAPIKey):
		c.logger.Warn("no LLM API key configured; extraction is disabled", zap.Error(err))
		a.extractor = missingKeyExtractor{err: err}
	default:
		return nil, err
	}

	if !withStore {
		return a, nil
	}
	st, err := store.Open(store.Config{Driver: c.cfg.Store.Value, DBPath: c.cfg.DBPath.Value})
	if err != nil {
		return nil, fmt.Errorf("opening store: %w", err)
	}
	a.store = st
	a.workshops = workshop.New(st, a.extractor, workshop.Options{
		Concurrency:  c.cfg.Concurrency.Int(config.DefaultConcurrency),
		MaxFileBytes: int64(c.cfg.UploadLimit.Int(config.DefaultUploadLimitMB)) << 20,
		Dedup:        c.dedupOptions(),
		Logger:       c.logger,
		NewID:        uuid.NewString,
	})
	return a, nil
}

// missingKeyExtractor fails every extraction like an unreachable provider.
type missingKeyExtractor struct{ err error }

func (m missingKeyExtractor) Extract(context.Context, pipeline.Request) (*pipeline.Result, error) {
	return nil, &pipeline.CompletionError{Provider: "none", Err: m.err}
}
