// Package workshop manages the lifecycle of a task-discovery workshop:
// declaring domains, uploading documents, running the extraction pipeline
// over every document and curating the resulting task board.
package workshop

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/hurttlocker/taskmine/internal/dedup"
	"github.com/hurttlocker/taskmine/internal/ingest"
	"github.com/hurttlocker/taskmine/internal/pipeline"
	"github.com/hurttlocker/taskmine/internal/store"
	"github.com/hurttlocker/taskmine/internal/task"
)

// ErrInvalidInput marks requests rejected before touching the store.
var ErrInvalidInput = errors.New("invalid input")

// ErrBusy is returned when a workshop is already being analyzed.
var ErrBusy = errors.New("analysis already running")

// Workshop limits.
const (
	MaxDomains                = 5
	MaxNameLength             = 100
	DefaultConcurrency        = 3
	DefaultMaxFileBytes int64 = 10 << 20
)

// ValidationError carries the field errors of a rejected task edit.
type ValidationError struct {
	Errors []task.FieldError
}

func (e *ValidationError) Error() string {
	msgs := make([]string, len(e.Errors))
	for i, fe := range e.Errors {
		msgs[i] = fe.Message
	}
	return "task failed validation: " + strings.Join(msgs, "; ")
}

func (e *ValidationError) Unwrap() error { return ErrInvalidInput }

// Extractor runs one extraction pass. *pipeline.Orchestrator implements it.
type Extractor interface {
	Extract(ctx context.Context, req pipeline.Request) (*pipeline.Result, error)
}

// Options configures a Service. Zero values take defaults.
type Options struct {
	// Concurrency bounds how many documents are analyzed at once.
	Concurrency  int
	MaxFileBytes int64
	Dedup        dedup.Options
	Ingest       *ingest.Extractor
	Validator    *task.Validator
	Logger       *zap.Logger
	NewID        func() string
}

// Service coordinates the store, document ingestion and the pipeline.
type Service struct {
	store     store.Store
	extractor Extractor
	opts      Options
	log       *zap.Logger

	mu      sync.Mutex
	running map[string]bool
}

// New creates a Service.
func New(st store.Store, ex Extractor, opts Options) *Service {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	if opts.MaxFileBytes <= 0 {
		opts.MaxFileBytes = DefaultMaxFileBytes
	}
	if opts.Ingest == nil {
		opts.Ingest = ingest.New()
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
	return &Service{
		store:     st,
		extractor: ex,
		opts:      opts,
		log:       log.Named("workshop"),
		running:   map[string]bool{},
	}
}

// CreateInput describes a new workshop.
type CreateInput struct {
	Name             string   `json:"name"`
	Domains          []string `json:"domains"`
	ParticipantCount int      `json:"participantCount"`
}

// Create validates the input and stores a new workshop.
func (s *Service) Create(ctx context.Context, in CreateInput) (*store.Workshop, error) {
	name := strings.TrimSpace(in.Name)
	if name == "" {
		return nil, fmt.Errorf("workshop name is required: %w", ErrInvalidInput)
	}
	if len([]rune(name)) > MaxNameLength {
		return nil, fmt.Errorf("workshop name exceeds %d characters: %w", MaxNameLength, ErrInvalidInput)
	}
	domains, err := normalizeDomains(in.Domains)
	if err != nil {
		return nil, err
	}
	if in.ParticipantCount < 0 {
		return nil, fmt.Errorf("participantCount must not be negative: %w", ErrInvalidInput)
	}
	participants := in.ParticipantCount
	if participants == 0 {
		participants = 1
	}

	w := &store.Workshop{
		ID:               s.opts.NewID(),
		Name:             name,
		Domains:          domains,
		ParticipantCount: participants,
		Status:           store.WorkshopDomainDefined,
	}
	if err := s.store.CreateWorkshop(ctx, w); err != nil {
		return nil, fmt.Errorf("creating workshop: %w", err)
	}
	s.log.Info("workshop created", zap.String("workshop", w.ID), zap.Strings("domains", domains))
	return w, nil
}

func normalizeDomains(in []string) ([]string, error) {
	seen := make(map[string]bool, len(in))
	out := make([]string, 0, len(in))
	for _, d := range in {
		d = strings.TrimSpace(d)
		if d == "" {
			continue
		}
		if seen[d] {
			return nil, fmt.Errorf("domain %q is listed twice: %w", d, ErrInvalidInput)
		}
		seen[d] = true
		out = append(out, d)
	}
	if len(out) == 0 {
		return nil, fmt.Errorf("at least one domain is required: %w", ErrInvalidInput)
	}
	if len(out) > MaxDomains {
		return nil, fmt.Errorf("at most %d domains are allowed, got %d: %w", MaxDomains, len(out), ErrInvalidInput)
	}
	return out, nil
}

// Get returns one workshop.
func (s *Service) Get(ctx context.Context, id string) (*store.Workshop, error) {
	return s.store.GetWorkshop(ctx, id)
}

// List returns every workshop, newest first.
func (s *Service) List(ctx context.Context) ([]*store.Workshop, error) {
	return s.store.ListWorkshops(ctx)
}

// Delete removes a workshop with its files and tasks.
func (s *Service) Delete(ctx context.Context, id string) error {
	if s.isRunning(id) {
		return fmt.Errorf("workshop %s: %w", id, ErrBusy)
	}
	if err := s.store.DeleteWorkshop(ctx, id); err != nil {
		return err
	}
	s.log.Info("workshop deleted", zap.String("workshop", id))
	return nil
}

// Files lists a workshop's uploaded documents.
func (s *Service) Files(ctx context.Context, id string) ([]*store.File, error) {
	return s.store.ListFiles(ctx, id)
}

// AddFile extracts the document's text and stores it for the next analysis.
// Unsupported or unreadable documents are rejected and nothing is stored.
func (s *Service) AddFile(ctx context.Context, workshopID, filename, mimeType string, data []byte) (*store.File, error) {
	w, err := s.store.GetWorkshop(ctx, workshopID)
	if err != nil {
		return nil, err
	}
	if strings.TrimSpace(filename) == "" {
		return nil, fmt.Errorf("file name is required: %w", ErrInvalidInput)
	}
	if int64(len(data)) > s.opts.MaxFileBytes {
		return nil, fmt.Errorf("%s is %d bytes, limit is %d: %w", filename, len(data), s.opts.MaxFileBytes, ErrInvalidInput)
	}

	text, err := s.opts.Ingest.ExtractText(ctx, filename, mimeType, data)
	if err != nil {
		if errors.Is(err, ingest.ErrUnsupportedFormat) {
			return nil, err
		}
		return nil, fmt.Errorf("%w: %v", ErrInvalidInput, err)
	}

	f := &store.File{
		ID:           s.opts.NewID(),
		WorkshopID:   workshopID,
		OriginalName: filename,
		MimeType:     mimeType,
		Size:         int64(len(data)),
		Status:       store.FileParsed,
		Content:      text,
	}
	if err := s.store.AddFile(ctx, f); err != nil {
		return nil, fmt.Errorf("storing file: %w", err)
	}
	if w.Status != store.WorkshopAnalyzing {
		if err := s.store.SetWorkshopStatus(ctx, workshopID, store.WorkshopFilesUploaded, ""); err != nil {
			return nil, err
		}
	}
	s.log.Info("file added",
		zap.String("workshop", workshopID),
		zap.String("file", f.ID),
		zap.String("name", filename),
		zap.Int("chars", len([]rune(text))))
	return f, nil
}

func (s *Service) acquire(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.running[id] {
		return false
	}
	s.running[id] = true
	return true
}

func (s *Service) release(id string) {
	s.mu.Lock()
	delete(s.running, id)
	s.mu.Unlock()
}

func (s *Service) isRunning(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running[id]
}
