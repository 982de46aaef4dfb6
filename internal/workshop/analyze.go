package workshop

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hurttlocker/taskmine/internal/dedup"
	"github.com/hurttlocker/taskmine/internal/pipeline"
	"github.com/hurttlocker/taskmine/internal/store"
	"github.com/hurttlocker/taskmine/internal/task"
)

// EventType names an analysis progress event.
type EventType string

const (
	EventProgress     EventType = "progress"
	EventFileStart    EventType = "file_start"
	EventFileComplete EventType = "file_complete"
	EventDone         EventType = "done"
)

// Event reports analysis progress. Events for one run are delivered
// sequentially, never concurrently.
type Event struct {
	Type      EventType `json:"type"`
	Percent   float64   `json:"percent"`
	Message   string    `json:"message,omitempty"`
	FileID    string    `json:"fileId,omitempty"`
	FileName  string    `json:"fileName,omitempty"`
	TaskCount int       `json:"taskCount,omitempty"`
}

// manualSourceName labels the run over the team lead's own notes.
const manualSourceName = "팀장 직접 입력"

// AnalyzeInput carries optional extra text for an analysis.
type AnalyzeInput struct {
	ManualInput string `json:"manualInput,omitempty"`
}

// SourceSummary describes the outcome of one document run.
type SourceSummary struct {
	FileID   string   `json:"fileId,omitempty"`
	Name     string   `json:"name"`
	Tasks    int      `json:"tasks"`
	Rejected int      `json:"rejected"`
	Warnings []string `json:"warnings,omitempty"`
}

// Analysis is the result of analyzing a whole workshop.
type Analysis struct {
	WorkshopID string             `json:"workshopId"`
	Tasks      []store.StoredTask `json:"tasks"`
	Sources    []SourceSummary    `json:"sources"`
	Warnings   []string           `json:"warnings"`
	Merged     []dedup.Merge      `json:"merged"`
}

type source struct {
	fileID string
	name   string
	text   string
	manual bool
}

type sourceResult struct {
	src source
	res *pipeline.Result
}

// Analyze runs the pipeline over every parsed document, plus the manual
// input as its own run, then deduplicates across documents and replaces the
// workshop's task list. A failing model call fails the whole analysis and
// leaves the workshop in error status with its previous tasks intact.
func (s *Service) Analyze(ctx context.Context, workshopID string, in AnalyzeInput, onEvent func(Event)) (*Analysis, error) {
	w, err := s.store.GetWorkshop(ctx, workshopID)
	if err != nil {
		return nil, err
	}
	files, err := s.store.ListFiles(ctx, workshopID)
	if err != nil {
		return nil, err
	}

	var sources []source
	for _, f := range files {
		if f.Status == store.FileError || strings.TrimSpace(f.Content) == "" {
			continue
		}
		sources = append(sources, source{fileID: f.ID, name: f.OriginalName, text: f.Content})
	}
	if strings.TrimSpace(in.ManualInput) != "" {
		sources = append(sources, source{name: manualSourceName, text: in.ManualInput, manual: true})
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("workshop %s has no documents or manual input to analyze: %w", workshopID, ErrInvalidInput)
	}

	if !s.acquire(workshopID) {
		return nil, fmt.Errorf("workshop %s: %w", workshopID, ErrBusy)
	}
	defer s.release(workshopID)

	if err := s.store.SetWorkshopStatus(ctx, workshopID, store.WorkshopAnalyzing, ""); err != nil {
		return nil, err
	}

	var (
		emitMu sync.Mutex
		done   int
	)
	emit := func(ev Event) {
		if onEvent == nil {
			return
		}
		emitMu.Lock()
		defer emitMu.Unlock()
		onEvent(ev)
	}
	emit(Event{Type: EventProgress, Percent: 0, Message: fmt.Sprintf("분석 시작 (%d건)", len(sources))})

	results := make([]sourceResult, len(sources))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.opts.Concurrency)
	for i, src := range sources {
		g.Go(func() error {
			emit(Event{Type: EventFileStart, FileID: src.fileID, FileName: src.name})
			req := pipeline.Request{Domains: w.Domains}
			if src.manual {
				req.ManualInput = src.text
			} else {
				req.Documents = []pipeline.Document{{Name: src.name, Content: src.text}}
			}

			res, err := s.extractor.Extract(gctx, req)
			if err != nil {
				return fmt.Errorf("analyzing %s: %w", src.name, err)
			}
			results[i] = sourceResult{src: src, res: res}

			if src.fileID != "" {
				if err := s.store.SetFileStatus(gctx, src.fileID, store.FileAnalyzed, ""); err != nil {
					return err
				}
			}

			emitMu.Lock()
			done++
			n := done
			emitMu.Unlock()
			emit(Event{Type: EventFileComplete, FileID: src.fileID, FileName: src.name, TaskCount: len(res.Tasks)})
			emit(Event{
				Type:    EventProgress,
				Percent: float64(n) / float64(len(sources)) * 100,
				Message: fmt.Sprintf("%d/%d 분석 완료", n, len(sources)),
			})
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		s.fail(ctx, workshopID, err)
		return nil, err
	}

	analysis := s.merge(workshopID, w.Domains, results)
	if err := s.store.ReplaceTasks(ctx, workshopID, analysis.Tasks); err != nil {
		s.fail(ctx, workshopID, err)
		return nil, fmt.Errorf("saving tasks: %w", err)
	}
	if err := s.store.SetWorkshopStatus(ctx, workshopID, store.WorkshopAnalyzed, ""); err != nil {
		return nil, err
	}

	emit(Event{Type: EventDone, Percent: 100, Message: "분석 완료", TaskCount: len(analysis.Tasks)})
	s.log.Info("workshop analyzed",
		zap.String("workshop", workshopID),
		zap.Int("sources", len(sources)),
		zap.Int("tasks", len(analysis.Tasks)),
		zap.Int("merged", len(analysis.Merged)),
		zap.Int("warnings", len(analysis.Warnings)))
	return analysis, nil
}

func (s *Service) fail(ctx context.Context, workshopID string, cause error) {
	s.log.Error("workshop analysis failed", zap.String("workshop", workshopID), zap.Error(cause))
	if err := s.store.SetWorkshopStatus(context.WithoutCancel(ctx), workshopID, store.WorkshopError, cause.Error()); err != nil {
		s.log.Warn("recording analysis failure", zap.String("workshop", workshopID), zap.Error(err))
	}
}

// merge combines per-source results in source order, makes task IDs unique,
// deduplicates across sources and re-checks integration on the final set.
func (s *Service) merge(workshopID string, domains []string, results []sourceResult) *Analysis {
	type origin struct{ fileID, name string }

	var (
		all     []task.Task
		origins = map[string]origin{}
		sources = make([]SourceSummary, 0, len(results))
	)
	for _, r := range results {
		sum := SourceSummary{FileID: r.src.fileID, Name: r.src.name, Rejected: len(r.res.Rejected), Warnings: r.res.Warnings}
		for _, t := range r.res.Tasks {
			if _, taken := origins[t.ID]; taken || t.ID == "" {
				t.ID = s.opts.NewID()
			}
			if r.src.manual {
				t.Source = task.SourceManual
			} else {
				t.Source = task.SourceUploaded
			}
			origins[t.ID] = origin{fileID: r.src.fileID, name: r.src.name}
			all = append(all, t)
			sum.Tasks++
		}
		sources = append(sources, sum)
	}

	out := dedup.Process(all, domains, s.opts.Dedup)
	stored := make([]store.StoredTask, 0, len(out.Tasks))
	for _, t := range out.Tasks {
		o := origins[t.ID]
		stored = append(stored, store.StoredTask{
			Task:         t,
			WorkshopID:   workshopID,
			SourceFileID: o.fileID,
			SourceName:   o.name,
		})
	}
	return &Analysis{
		WorkshopID: workshopID,
		Tasks:      stored,
		Sources:    sources,
		Warnings:   out.Warnings,
		Merged:     out.Merges,
	}
}
