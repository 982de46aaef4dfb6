// Package store persists workshops, their uploaded files and the tasks the
// extraction pipeline produced for them.
//
// Two implementations share one contract: MemoryStore for tests and
// single-process demos, and SQLiteStore for anything that must survive a
// restart. Task appends for a workshop are all-or-nothing in both.
package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/hurttlocker/taskmine/internal/task"
)

// DefaultDBPath is the default database location.
const DefaultDBPath = "~/.taskmine/taskmine.db"

// ErrNotFound is returned when a workshop, file or task does not exist.
var ErrNotFound = errors.New("not found")

// ErrConflict is returned when an ID is already taken.
var ErrConflict = errors.New("already exists")

// WorkshopStatus is a workshop's position in its lifecycle.
type WorkshopStatus string

const (
	WorkshopDomainDefined WorkshopStatus = "domain_defined"
	WorkshopFilesUploaded WorkshopStatus = "files_uploaded"
	WorkshopAnalyzing     WorkshopStatus = "analyzing"
	WorkshopAnalyzed      WorkshopStatus = "analyzed"
	WorkshopError         WorkshopStatus = "error"
)

// FileStatus tracks one uploaded file through parsing and analysis.
type FileStatus string

const (
	FileUploaded FileStatus = "uploaded"
	FileParsed   FileStatus = "parsed"
	FileAnalyzed FileStatus = "analyzed"
	FileError    FileStatus = "error"
)

// Workshop groups the domains, files and tasks of one team session.
type Workshop struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Domains          []string       `json:"domains"`
	ParticipantCount int            `json:"participantCount"`
	Status           WorkshopStatus `json:"status"`
	LastError        string         `json:"lastError,omitempty"`
	CreatedAt        time.Time      `json:"createdAt"`
	UpdatedAt        time.Time      `json:"updatedAt"`
	AnalyzedAt       *time.Time     `json:"analyzedAt,omitempty"`
}

// File is an uploaded document and the text extracted from it.
type File struct {
	ID           string     `json:"id"`
	WorkshopID   string     `json:"workshopId"`
	OriginalName string     `json:"originalName"`
	MimeType     string     `json:"mimeType"`
	Size         int64      `json:"size"`
	Status       FileStatus `json:"status"`
	Error        string     `json:"error,omitempty"`
	Content      string     `json:"-"`
	UploadedAt   time.Time  `json:"uploadedAt"`
}

// StoredTask is a Task plus where it came from.
type StoredTask struct {
	task.Task
	WorkshopID   string    `json:"workshopId"`
	SourceFileID string    `json:"sourceFileId,omitempty"`
	SourceName   string    `json:"sourceName,omitempty"`
	CreatedAt    time.Time `json:"createdAt"`
}

// WorkshopStore persists workshops and their tasks.
type WorkshopStore interface {
	CreateWorkshop(ctx context.Context, w *Workshop) error
	GetWorkshop(ctx context.Context, id string) (*Workshop, error)
	ListWorkshops(ctx context.Context) ([]*Workshop, error)
	// SetWorkshopStatus also stamps AnalyzedAt when status is analyzed.
	SetWorkshopStatus(ctx context.Context, id string, status WorkshopStatus, lastError string) error
	// DeleteWorkshop removes the workshop with its files and tasks.
	DeleteWorkshop(ctx context.Context, id string) error

	// AppendTasks adds tasks in one atomic step. A duplicate task ID fails
	// the whole batch with ErrConflict.
	AppendTasks(ctx context.Context, workshopID string, tasks []StoredTask) error
	// ReplaceTasks swaps the workshop's whole task list atomically.
	ReplaceTasks(ctx context.Context, workshopID string, tasks []StoredTask) error
	ListTasks(ctx context.Context, workshopID string) ([]StoredTask, error)
	GetTask(ctx context.Context, workshopID, taskID string) (*StoredTask, error)
	UpdateTask(ctx context.Context, t StoredTask) error
	DeleteTask(ctx context.Context, workshopID, taskID string) error
}

// FileStore persists uploaded files.
type FileStore interface {
	AddFile(ctx context.Context, f *File) error
	GetFile(ctx context.Context, workshopID, fileID string) (*File, error)
	ListFiles(ctx context.Context, workshopID string) ([]*File, error)
	SetFileStatus(ctx context.Context, fileID string, status FileStatus, errMsg string) error
}

// Store is the full persistence surface.
type Store interface {
	WorkshopStore
	FileStore
	Close() error
}

// Config selects and configures a Store.
type Config struct {
	// Driver is "sqlite" (default) or "memory".
	Driver string
	// DBPath is the SQLite file; ":memory:" gives a private in-memory DB.
	DBPath string
}

// Open returns the Store selected by cfg.
func Open(cfg Config) (Store, error) {
	switch strings.ToLower(cfg.Driver) {
	case "", "sqlite":
		return NewSQLiteStore(cfg.DBPath)
	case "memory":
		return NewMemoryStore(), nil
	default:
		return nil, fmt.Errorf("unknown store driver %q (supported: sqlite, memory)", cfg.Driver)
	}
}

func cloneWorkshop(w *Workshop) *Workshop {
	out := *w
	out.Domains = append([]string(nil), w.Domains...)
	if w.AnalyzedAt != nil {
		t := *w.AnalyzedAt
		out.AnalyzedAt = &t
	}
	return &out
}

func cloneStoredTask(t StoredTask) StoredTask {
	t.Task = t.Task.Clone()
	return t
}

// ExpandPath expands a leading ~ to the home directory.
func ExpandPath(path string) string {
	if strings.HasPrefix(path, "~") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[1:])
	}
	return path
}
