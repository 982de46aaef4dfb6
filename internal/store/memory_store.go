package store

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore keeps everything in process memory behind one mutex.
type MemoryStore struct {
	mu        sync.RWMutex
	workshops map[string]*Workshop
	files     map[string]*File
	tasks     map[string][]StoredTask
	fileSeq   map[string]int
	seq       int
	now       func() time.Time
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		workshops: map[string]*Workshop{},
		files:     map[string]*File{},
		tasks:     map[string][]StoredTask{},
		fileSeq:   map[string]int{},
		now:       func() time.Time { return time.Now().UTC() },
	}
}

func (m *MemoryStore) Close() error { return nil }

func (m *MemoryStore) CreateWorkshop(_ context.Context, w *Workshop) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workshops[w.ID]; ok {
		return fmt.Errorf("workshop %s: %w", w.ID, ErrConflict)
	}
	now := m.now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = now
	}
	w.UpdatedAt = now
	if w.Status == "" {
		w.Status = WorkshopDomainDefined
	}
	m.workshops[w.ID] = cloneWorkshop(w)
	return nil
}

func (m *MemoryStore) GetWorkshop(_ context.Context, id string) (*Workshop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	w, ok := m.workshops[id]
	if !ok {
		return nil, fmt.Errorf("workshop %s: %w", id, ErrNotFound)
	}
	return cloneWorkshop(w), nil
}

func (m *MemoryStore) ListWorkshops(_ context.Context) ([]*Workshop, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]*Workshop, 0, len(m.workshops))
	for _, w := range m.workshops {
		out = append(out, cloneWorkshop(w))
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].CreatedAt.After(out[j].CreatedAt)
		}
		return out[i].ID < out[j].ID
	})
	return out, nil
}

func (m *MemoryStore) SetWorkshopStatus(_ context.Context, id string, status WorkshopStatus, lastError string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	w, ok := m.workshops[id]
	if !ok {
		return fmt.Errorf("workshop %s: %w", id, ErrNotFound)
	}
	now := m.now()
	w.Status = status
	w.LastError = lastError
	w.UpdatedAt = now
	if status == WorkshopAnalyzed {
		w.AnalyzedAt = &now
	}
	return nil
}

func (m *MemoryStore) DeleteWorkshop(_ context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workshops[id]; !ok {
		return fmt.Errorf("workshop %s: %w", id, ErrNotFound)
	}
	delete(m.workshops, id)
	delete(m.tasks, id)
	for fid, f := range m.files {
		if f.WorkshopID == id {
			delete(m.files, fid)
			delete(m.fileSeq, fid)
		}
	}
	return nil
}

func (m *MemoryStore) AppendTasks(_ context.Context, workshopID string, tasks []StoredTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workshops[workshopID]; !ok {
		return fmt.Errorf("workshop %s: %w", workshopID, ErrNotFound)
	}
	batch, err := m.prepareBatch(workshopID, m.tasks[workshopID], tasks)
	if err != nil {
		return err
	}
	m.tasks[workshopID] = append(m.tasks[workshopID], batch...)
	return nil
}

func (m *MemoryStore) ReplaceTasks(_ context.Context, workshopID string, tasks []StoredTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workshops[workshopID]; !ok {
		return fmt.Errorf("workshop %s: %w", workshopID, ErrNotFound)
	}
	batch, err := m.prepareBatch(workshopID, nil, tasks)
	if err != nil {
		return err
	}
	m.tasks[workshopID] = batch
	return nil
}

// prepareBatch validates IDs against existing and within the batch, and
// returns stamped copies. Nothing is written on error.
func (m *MemoryStore) prepareBatch(workshopID string, existing, tasks []StoredTask) ([]StoredTask, error) {
	ids := make(map[string]bool, len(existing)+len(tasks))
	for _, t := range existing {
		ids[t.ID] = true
	}
	now := m.now()
	batch := make([]StoredTask, 0, len(tasks))
	for _, t := range tasks {
		if t.ID == "" {
			return nil, fmt.Errorf("task %q has no id", t.Title)
		}
		if ids[t.ID] {
			return nil, fmt.Errorf("task %s: %w", t.ID, ErrConflict)
		}
		ids[t.ID] = true
		t = cloneStoredTask(t)
		t.WorkshopID = workshopID
		if t.CreatedAt.IsZero() {
			t.CreatedAt = now
		}
		batch = append(batch, t)
	}
	return batch, nil
}

func (m *MemoryStore) ListTasks(_ context.Context, workshopID string) ([]StoredTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.workshops[workshopID]; !ok {
		return nil, fmt.Errorf("workshop %s: %w", workshopID, ErrNotFound)
	}
	out := make([]StoredTask, 0, len(m.tasks[workshopID]))
	for _, t := range m.tasks[workshopID] {
		out = append(out, cloneStoredTask(t))
	}
	return out, nil
}

func (m *MemoryStore) GetTask(_ context.Context, workshopID, taskID string) (*StoredTask, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	for _, t := range m.tasks[workshopID] {
		if t.ID == taskID {
			c := cloneStoredTask(t)
			return &c, nil
		}
	}
	return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
}

func (m *MemoryStore) UpdateTask(_ context.Context, t StoredTask) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.tasks[t.WorkshopID]
	for i := range list {
		if list[i].ID == t.ID {
			t = cloneStoredTask(t)
			t.CreatedAt = list[i].CreatedAt
			list[i] = t
			return nil
		}
	}
	return fmt.Errorf("task %s: %w", t.ID, ErrNotFound)
}

func (m *MemoryStore) DeleteTask(_ context.Context, workshopID, taskID string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	list := m.tasks[workshopID]
	for i := range list {
		if list[i].ID == taskID {
			m.tasks[workshopID] = append(list[:i:i], list[i+1:]...)
			return nil
		}
	}
	return fmt.Errorf("task %s: %w", taskID, ErrNotFound)
}

func (m *MemoryStore) AddFile(_ context.Context, f *File) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.workshops[f.WorkshopID]; !ok {
		return fmt.Errorf("workshop %s: %w", f.WorkshopID, ErrNotFound)
	}
	if _, ok := m.files[f.ID]; ok {
		return fmt.Errorf("file %s: %w", f.ID, ErrConflict)
	}
	if f.UploadedAt.IsZero() {
		f.UploadedAt = m.now()
	}
	if f.Status == "" {
		f.Status = FileUploaded
	}
	c := *f
	m.files[f.ID] = &c
	m.seq++
	m.fileSeq[f.ID] = m.seq
	return nil
}

func (m *MemoryStore) GetFile(_ context.Context, workshopID, fileID string) (*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	f, ok := m.files[fileID]
	if !ok || f.WorkshopID != workshopID {
		return nil, fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	c := *f
	return &c, nil
}

func (m *MemoryStore) ListFiles(_ context.Context, workshopID string) ([]*File, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.workshops[workshopID]; !ok {
		return nil, fmt.Errorf("workshop %s: %w", workshopID, ErrNotFound)
	}
	out := []*File{}
	for _, f := range m.files {
		if f.WorkshopID == workshopID {
			c := *f
			out = append(out, &c)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		return m.fileSeq[out[i].ID] < m.fileSeq[out[j].ID]
	})
	return out, nil
}

func (m *MemoryStore) SetFileStatus(_ context.Context, fileID string, status FileStatus, errMsg string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	f, ok := m.files[fileID]
	if !ok {
		return fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	f.Status = status
	f.Error = errMsg
	return nil
}
