package workshop

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/hurttlocker/taskmine/internal/store"
	"github.com/hurttlocker/taskmine/internal/task"
)

// TaskFilter narrows ListTasks. Empty fields match everything.
type TaskFilter struct {
	Domain string
	Status task.Status
}

// ListTasks returns a workshop's tasks in board order.
func (s *Service) ListTasks(ctx context.Context, workshopID string, f TaskFilter) ([]store.StoredTask, error) {
	tasks, err := s.store.ListTasks(ctx, workshopID)
	if err != nil {
		return nil, err
	}
	if f.Domain == "" && f.Status == "" {
		return tasks, nil
	}
	out := tasks[:0]
	for _, t := range tasks {
		if f.Domain != "" && t.Domain != f.Domain {
			continue
		}
		if f.Status != "" && t.EstimatedStatus != f.Status {
			continue
		}
		out = append(out, t)
	}
	return out, nil
}

// GetTask returns one task.
func (s *Service) GetTask(ctx context.Context, workshopID, taskID string) (*store.StoredTask, error) {
	return s.store.GetTask(ctx, workshopID, taskID)
}

// AddTask validates a hand-written task and appends it to the board. A
// missing source defaults to Manual and a missing status to NotStarted.
func (s *Service) AddTask(ctx context.Context, workshopID string, raw json.RawMessage) (*store.StoredTask, error) {
	if _, err := s.store.GetWorkshop(ctx, workshopID); err != nil {
		return nil, err
	}
	fields := map[string]any{}
	if err := json.Unmarshal(raw, &fields); err != nil {
		return nil, fmt.Errorf("task body must be a JSON object: %w", ErrInvalidInput)
	}
	if _, ok := fields["source"]; !ok {
		fields["source"] = string(task.SourceManual)
	}
	if _, ok := fields["estimatedStatus"]; !ok {
		fields["estimatedStatus"] = string(task.StatusNotStarted)
	}

	t, err := s.validateFields(fields)
	if err != nil {
		return nil, err
	}
	if t.ID == "" {
		t.ID = s.opts.NewID()
	}
	st := store.StoredTask{Task: t, WorkshopID: workshopID, SourceName: manualSourceName}
	if err := s.store.AppendTasks(ctx, workshopID, []store.StoredTask{st}); err != nil {
		return nil, err
	}
	s.log.Info("task added", zap.String("workshop", workshopID), zap.String("task", t.ID))
	return s.store.GetTask(ctx, workshopID, t.ID)
}

// UpdateTask applies a partial JSON object over the stored task and
// re-validates the result. The task ID cannot be changed.
func (s *Service) UpdateTask(ctx context.Context, workshopID, taskID string, patch json.RawMessage) (*store.StoredTask, error) {
	current, err := s.store.GetTask(ctx, workshopID, taskID)
	if err != nil {
		return nil, err
	}
	var changes map[string]any
	if err := json.Unmarshal(patch, &changes); err != nil || changes == nil {
		return nil, fmt.Errorf("task patch must be a JSON object: %w", ErrInvalidInput)
	}

	base, err := json.Marshal(current.Task)
	if err != nil {
		return nil, fmt.Errorf("encoding task: %w", err)
	}
	fields := map[string]any{}
	if err := json.Unmarshal(base, &fields); err != nil {
		return nil, fmt.Errorf("decoding task: %w", err)
	}
	for k, v := range changes {
		fields[k] = v
	}
	fields["id"] = taskID

	t, err := s.validateFields(fields)
	if err != nil {
		return nil, err
	}
	current.Task = t
	if err := s.store.UpdateTask(ctx, *current); err != nil {
		return nil, err
	}
	return s.store.GetTask(ctx, workshopID, taskID)
}

// MoveTask changes a task's kanban column. Spelling variants such as
// "not started" are accepted.
func (s *Service) MoveTask(ctx context.Context, workshopID, taskID, status string) (*store.StoredTask, error) {
	st, ok := task.ParseStatus(status)
	if !ok {
		return nil, fmt.Errorf("unknown status %q: %w", status, ErrInvalidInput)
	}
	current, err := s.store.GetTask(ctx, workshopID, taskID)
	if err != nil {
		return nil, err
	}
	if current.EstimatedStatus == st {
		return current, nil
	}
	current.EstimatedStatus = st
	if err := s.store.UpdateTask(ctx, *current); err != nil {
		return nil, err
	}
	s.log.Debug("task moved", zap.String("workshop", workshopID), zap.String("task", taskID), zap.String("status", string(st)))
	return current, nil
}

// DeleteTask removes a task from the board.
func (s *Service) DeleteTask(ctx context.Context, workshopID, taskID string) error {
	return s.store.DeleteTask(ctx, workshopID, taskID)
}

func (s *Service) validateFields(fields map[string]any) (task.Task, error) {
	raw, err := json.Marshal(fields)
	if err != nil {
		return task.Task{}, fmt.Errorf("encoding task: %w", err)
	}
	t, errs := s.opts.Validator.ValidateOne(task.NewCandidate(raw))
	if len(errs) > 0 {
		return task.Task{}, &ValidationError{Errors: errs}
	}
	return t, nil
}

// DomainSummary aggregates the board for one domain.
type DomainSummary struct {
	Domain       string  `json:"domain"`
	Tasks        int     `json:"tasks"`
	HoursPerRun  float64 `json:"hoursPerRun"`
	SavingsHours float64 `json:"savingsHours"`
	HighPriority int     `json:"highPriority"`
}

// Summary is the board overview shown on the workshop dashboard.
type Summary struct {
	WorkshopID   string               `json:"workshopId"`
	Status       store.WorkshopStatus `json:"status"`
	Files        int                  `json:"files"`
	Tasks        int                  `json:"tasks"`
	SavingsHours float64              `json:"savingsHours"`
	ByStatus     map[task.Status]int  `json:"byStatus"`
	Domains      []DomainSummary      `json:"domains"`
}

// Summarize aggregates a workshop's board. Declared domains come first in
// declaration order, followed by any other domains the model used.
func (s *Service) Summarize(ctx context.Context, workshopID string) (*Summary, error) {
	w, err := s.store.GetWorkshop(ctx, workshopID)
	if err != nil {
		return nil, err
	}
	files, err := s.store.ListFiles(ctx, workshopID)
	if err != nil {
		return nil, err
	}
	tasks, err := s.store.ListTasks(ctx, workshopID)
	if err != nil {
		return nil, err
	}

	sum := &Summary{
		WorkshopID: workshopID,
		Status:     w.Status,
		Files:      len(files),
		Tasks:      len(tasks),
		ByStatus:   map[task.Status]int{},
	}
	for _, st := range task.Statuses {
		sum.ByStatus[st] = 0
	}

	byDomain := map[string]*DomainSummary{}
	order := append([]string(nil), w.Domains...)
	for _, d := range w.Domains {
		byDomain[d] = &DomainSummary{Domain: d}
	}
	var extra []string
	for _, t := range tasks {
		sum.ByStatus[t.EstimatedStatus]++
		sum.SavingsHours += t.EstimatedSavingsHours
		ds, ok := byDomain[t.Domain]
		if !ok {
			ds = &DomainSummary{Domain: t.Domain}
			byDomain[t.Domain] = ds
			extra = append(extra, t.Domain)
		}
		ds.Tasks++
		ds.HoursPerRun += t.TimeSpentHours
		ds.SavingsHours += t.EstimatedSavingsHours
		if t.Priority == task.LevelHigh {
			ds.HighPriority++
		}
	}
	sort.Strings(extra)
	for _, d := range append(order, extra...) {
		sum.Domains = append(sum.Domains, *byDomain[d])
	}
	return sum, nil
}
