package store

import (
	"context"
	"errors"
	"path/filepath"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"

	"github.com/hurttlocker/taskmine/internal/task"
)

// newTestSQLiteStore opens a file-backed store under t.TempDir.
func newTestSQLiteStore(t *testing.T) *SQLiteStore {
	t.Helper()
	s, err := NewSQLiteStore(filepath.Join(t.TempDir(), "taskmine.db"))
	if err != nil {
		t.Fatalf("failed to create test store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// eachStore runs fn against every Store implementation.
func eachStore(t *testing.T, fn func(t *testing.T, s Store)) {
	t.Run("memory", func(t *testing.T) { fn(t, NewMemoryStore()) })
	t.Run("sqlite", func(t *testing.T) { fn(t, newTestSQLiteStore(t)) })
}

func sampleTask(id, title, domain string) StoredTask {
	return StoredTask{Task: task.Task{
		ID:                    id,
		Title:                 title,
		Description:           "매주 반복되는 " + title + " 업무입니다.",
		Domain:                domain,
		EstimatedStatus:       task.StatusNotStarted,
		Frequency:             task.FrequencyWeekly,
		AutomationPotential:   task.LevelHigh,
		Source:                task.SourceUploaded,
		TimeSpentHours:        2,
		EstimatedSavingsHours: 80,
		Complexity:            task.ComplexitySimple,
		Priority:              task.LevelMedium,
		Tags:                  []string{"보고"},
	}}
}

func mustCreateWorkshop(t *testing.T, s Store, id string, created time.Time) *Workshop {
	t.Helper()
	w := &Workshop{ID: id, Name: "워크숍 " + id, Domains: []string{"영업", "운영"}, ParticipantCount: 6, CreatedAt: created}
	if err := s.CreateWorkshop(context.Background(), w); err != nil {
		t.Fatalf("CreateWorkshop(%s): %v", id, err)
	}
	return w
}

// --- Database initialization ---

func TestNewSQLiteStore_Schema(t *testing.T) {
	s := newTestSQLiteStore(t)
	for _, table := range []string{"meta", "workshops", "files", "tasks"} {
		var name string
		err := s.db.QueryRow("SELECT name FROM sqlite_master WHERE type='table' AND name=?", table).Scan(&name)
		if err != nil {
			t.Errorf("table %q not found: %v", table, err)
		}
	}
	v, err := s.SchemaVersion()
	if err != nil || v != schemaVersion {
		t.Errorf("schema version: got %q (%v), want %q", v, err, schemaVersion)
	}
}

func TestNewSQLiteStore_ReopenIsIdempotent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "taskmine.db")
	s, err := NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("first open: %v", err)
	}
	mustCreateWorkshop(t, s, "w1", time.Time{})
	s.Close()

	s, err = NewSQLiteStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	defer s.Close()
	if _, err := s.GetWorkshop(context.Background(), "w1"); err != nil {
		t.Errorf("workshop lost across reopen: %v", err)
	}
}

func TestNewSQLiteStore_InMemory(t *testing.T) {
	s, err := NewSQLiteStore(":memory:")
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	defer s.Close()
	mustCreateWorkshop(t, s, "w1", time.Time{})
	if _, err := s.GetWorkshop(context.Background(), "w1"); err != nil {
		t.Errorf("in-memory db should keep data on its single connection: %v", err)
	}
}

func TestOpen(t *testing.T) {
	s, err := Open(Config{Driver: "memory"})
	if err != nil {
		t.Fatalf("memory: %v", err)
	}
	if _, ok := s.(*MemoryStore); !ok {
		t.Errorf("memory driver gave %T", s)
	}

	s, err = Open(Config{DBPath: filepath.Join(t.TempDir(), "x.db")})
	if err != nil {
		t.Fatalf("sqlite: %v", err)
	}
	defer s.Close()
	if _, ok := s.(*SQLiteStore); !ok {
		t.Errorf("default driver gave %T", s)
	}

	if _, err := Open(Config{Driver: "postgres"}); err == nil {
		t.Error("unknown driver should fail")
	}
}

// --- Workshops ---

func TestWorkshopLifecycle(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		base := time.Date(2026, 3, 1, 9, 0, 0, 0, time.UTC)
		mustCreateWorkshop(t, s, "w1", base)
		mustCreateWorkshop(t, s, "w2", base.Add(time.Hour))

		if err := s.CreateWorkshop(ctx, &Workshop{ID: "w1", Name: "dup"}); !errors.Is(err, ErrConflict) {
			t.Errorf("duplicate id: got %v, want ErrConflict", err)
		}

		got, err := s.GetWorkshop(ctx, "w1")
		if err != nil {
			t.Fatalf("GetWorkshop: %v", err)
		}
		if got.Status != WorkshopDomainDefined {
			t.Errorf("initial status: %s", got.Status)
		}
		if diff := cmp.Diff([]string{"영업", "운영"}, got.Domains); diff != "" {
			t.Errorf("domains (-want +got):\n%s", diff)
		}
		if got.AnalyzedAt != nil {
			t.Error("AnalyzedAt set before analysis")
		}

		list, err := s.ListWorkshops(ctx)
		if err != nil {
			t.Fatalf("ListWorkshops: %v", err)
		}
		if len(list) != 2 || list[0].ID != "w2" || list[1].ID != "w1" {
			t.Errorf("list should be newest first, got %v", workshopIDs(list))
		}

		if err := s.SetWorkshopStatus(ctx, "w1", WorkshopError, "boom"); err != nil {
			t.Fatalf("SetWorkshopStatus: %v", err)
		}
		got, _ = s.GetWorkshop(ctx, "w1")
		if got.Status != WorkshopError || got.LastError != "boom" || got.AnalyzedAt != nil {
			t.Errorf("after error: %+v", got)
		}

		if err := s.SetWorkshopStatus(ctx, "w1", WorkshopAnalyzed, ""); err != nil {
			t.Fatalf("SetWorkshopStatus: %v", err)
		}
		got, _ = s.GetWorkshop(ctx, "w1")
		if got.Status != WorkshopAnalyzed || got.LastError != "" || got.AnalyzedAt == nil {
			t.Errorf("after analyzed: %+v", got)
		}

		if err := s.SetWorkshopStatus(ctx, "missing", WorkshopAnalyzing, ""); !errors.Is(err, ErrNotFound) {
			t.Errorf("missing workshop status: %v", err)
		}
		if _, err := s.GetWorkshop(ctx, "missing"); !errors.Is(err, ErrNotFound) {
			t.Errorf("missing workshop get: %v", err)
		}
	})
}

func TestDeleteWorkshopCascades(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		mustCreateWorkshop(t, s, "w1", time.Time{})
		if err := s.AddFile(ctx, &File{ID: "f1", WorkshopID: "w1", OriginalName: "a.txt", Content: "내용"}); err != nil {
			t.Fatalf("AddFile: %v", err)
		}
		if err := s.AppendTasks(ctx, "w1", []StoredTask{sampleTask("t1", "보고서 작성", "운영")}); err != nil {
			t.Fatalf("AppendTasks: %v", err)
		}

		if err := s.DeleteWorkshop(ctx, "w1"); err != nil {
			t.Fatalf("DeleteWorkshop: %v", err)
		}
		if _, err := s.GetFile(ctx, "w1", "f1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("file should be gone: %v", err)
		}
		if _, err := s.GetTask(ctx, "w1", "t1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("task should be gone: %v", err)
		}
		if err := s.DeleteWorkshop(ctx, "w1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("second delete: %v", err)
		}
	})
}

// --- Tasks ---

func TestAppendTasks_AtomicOnConflict(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		mustCreateWorkshop(t, s, "w1", time.Time{})
		if err := s.AppendTasks(ctx, "w1", []StoredTask{sampleTask("t1", "보고서 작성", "운영")}); err != nil {
			t.Fatalf("AppendTasks: %v", err)
		}

		batch := []StoredTask{sampleTask("t2", "메일 확인", "영업"), sampleTask("t1", "재고 확인", "운영")}
		if err := s.AppendTasks(ctx, "w1", batch); !errors.Is(err, ErrConflict) {
			t.Fatalf("conflicting batch: got %v, want ErrConflict", err)
		}
		tasks, _ := s.ListTasks(ctx, "w1")
		if len(tasks) != 1 {
			t.Errorf("failed batch must write nothing, have %d tasks", len(tasks))
		}

		inBatch := []StoredTask{sampleTask("t3", "a", "영업"), sampleTask("t3", "b", "영업")}
		if err := s.AppendTasks(ctx, "w1", inBatch); !errors.Is(err, ErrConflict) {
			t.Errorf("duplicate within batch: %v", err)
		}

		if err := s.AppendTasks(ctx, "w1", []StoredTask{sampleTask("", "no id", "영업")}); err == nil {
			t.Error("empty id should be rejected")
		}
		if err := s.AppendTasks(ctx, "missing", []StoredTask{sampleTask("t9", "x", "영업")}); !errors.Is(err, ErrNotFound) {
			t.Errorf("missing workshop: %v", err)
		}
	})
}

func TestAppendTasks_OrderAndRoundTrip(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		mustCreateWorkshop(t, s, "w1", time.Time{})

		first := sampleTask("t1", "보고서 작성", "운영")
		first.SourceFileID = "f1"
		first.SourceName = "회의록.txt"
		first.AutomationMethod = "RPA"
		if err := s.AppendTasks(ctx, "w1", []StoredTask{first, sampleTask("t2", "메일 확인", "영업")}); err != nil {
			t.Fatalf("AppendTasks: %v", err)
		}
		if err := s.AppendTasks(ctx, "w1", []StoredTask{sampleTask("t3", "재고 확인", "운영")}); err != nil {
			t.Fatalf("AppendTasks: %v", err)
		}

		tasks, err := s.ListTasks(ctx, "w1")
		if err != nil {
			t.Fatalf("ListTasks: %v", err)
		}
		var ids []string
		for _, tk := range tasks {
			ids = append(ids, tk.ID)
		}
		if diff := cmp.Diff([]string{"t1", "t2", "t3"}, ids); diff != "" {
			t.Errorf("order (-want +got):\n%s", diff)
		}

		first.WorkshopID = "w1"
		if diff := cmp.Diff(first, tasks[0], cmpopts.IgnoreFields(StoredTask{}, "CreatedAt")); diff != "" {
			t.Errorf("round trip (-want +got):\n%s", diff)
		}
		if tasks[0].CreatedAt.IsZero() {
			t.Error("CreatedAt should be stamped")
		}
	})
}

func TestReplaceTasks(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		mustCreateWorkshop(t, s, "w1", time.Time{})
		_ = s.AppendTasks(ctx, "w1", []StoredTask{sampleTask("t1", "a", "운영"), sampleTask("t2", "b", "운영")})

		if err := s.ReplaceTasks(ctx, "w1", []StoredTask{sampleTask("t1", "c", "영업")}); err != nil {
			t.Fatalf("ReplaceTasks: %v", err)
		}
		tasks, _ := s.ListTasks(ctx, "w1")
		if len(tasks) != 1 || tasks[0].Title != "c" {
			t.Errorf("after replace: %+v", tasks)
		}

		bad := []StoredTask{sampleTask("x", "a", "운영"), sampleTask("x", "b", "운영")}
		if err := s.ReplaceTasks(ctx, "w1", bad); !errors.Is(err, ErrConflict) {
			t.Fatalf("bad replace: %v", err)
		}
		tasks, _ = s.ListTasks(ctx, "w1")
		if len(tasks) != 1 || tasks[0].Title != "c" {
			t.Errorf("failed replace must keep old tasks: %+v", tasks)
		}
	})
}

func TestUpdateAndDeleteTask(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		mustCreateWorkshop(t, s, "w1", time.Time{})
		_ = s.AppendTasks(ctx, "w1", []StoredTask{sampleTask("t1", "a", "운영"), sampleTask("t2", "b", "운영")})

		got, err := s.GetTask(ctx, "w1", "t1")
		if err != nil {
			t.Fatalf("GetTask: %v", err)
		}
		created := got.CreatedAt
		got.EstimatedStatus = task.StatusCompleted
		got.Tags = append(got.Tags, "완료")
		got.CreatedAt = time.Time{}
		if err := s.UpdateTask(ctx, *got); err != nil {
			t.Fatalf("UpdateTask: %v", err)
		}

		again, _ := s.GetTask(ctx, "w1", "t1")
		if again.EstimatedStatus != task.StatusCompleted || len(again.Tags) != 2 {
			t.Errorf("update not applied: %+v", again)
		}
		if !again.CreatedAt.Equal(created) {
			t.Errorf("CreatedAt changed: %v -> %v", created, again.CreatedAt)
		}

		missing := sampleTask("nope", "x", "운영")
		missing.WorkshopID = "w1"
		if err := s.UpdateTask(ctx, missing); !errors.Is(err, ErrNotFound) {
			t.Errorf("update missing: %v", err)
		}

		if err := s.DeleteTask(ctx, "w1", "t1"); err != nil {
			t.Fatalf("DeleteTask: %v", err)
		}
		tasks, _ := s.ListTasks(ctx, "w1")
		if len(tasks) != 1 || tasks[0].ID != "t2" {
			t.Errorf("after delete: %+v", tasks)
		}
		if err := s.DeleteTask(ctx, "w1", "t1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("double delete: %v", err)
		}
	})
}

func TestMemoryStore_ReturnsCopies(t *testing.T) {
	s := NewMemoryStore()
	ctx := context.Background()
	mustCreateWorkshop(t, s, "w1", time.Time{})
	_ = s.AppendTasks(ctx, "w1", []StoredTask{sampleTask("t1", "a", "운영")})

	tasks, _ := s.ListTasks(ctx, "w1")
	tasks[0].Tags[0] = "changed"
	w, _ := s.GetWorkshop(ctx, "w1")
	w.Domains[0] = "changed"

	again, _ := s.ListTasks(ctx, "w1")
	if again[0].Tags[0] != "보고" {
		t.Error("task tags aliased store state")
	}
	w2, _ := s.GetWorkshop(ctx, "w1")
	if w2.Domains[0] != "영업" {
		t.Error("workshop domains aliased store state")
	}
}

// --- Files ---

func TestFiles(t *testing.T) {
	eachStore(t, func(t *testing.T, s Store) {
		ctx := context.Background()
		mustCreateWorkshop(t, s, "w1", time.Time{})
		mustCreateWorkshop(t, s, "w2", time.Time{})

		for _, f := range []*File{
			{ID: "f2", WorkshopID: "w1", OriginalName: "b.csv", MimeType: "text/csv", Size: 10, Content: "a,b"},
			{ID: "f1", WorkshopID: "w1", OriginalName: "a.txt", MimeType: "text/plain", Size: 5, Content: "hello"},
		} {
			if err := s.AddFile(ctx, f); err != nil {
				t.Fatalf("AddFile(%s): %v", f.ID, err)
			}
		}
		if err := s.AddFile(ctx, &File{ID: "f1", WorkshopID: "w1", OriginalName: "dup"}); !errors.Is(err, ErrConflict) {
			t.Errorf("duplicate file: %v", err)
		}
		if err := s.AddFile(ctx, &File{ID: "f3", WorkshopID: "missing", OriginalName: "x"}); !errors.Is(err, ErrNotFound) {
			t.Errorf("file for missing workshop: %v", err)
		}

		files, err := s.ListFiles(ctx, "w1")
		if err != nil {
			t.Fatalf("ListFiles: %v", err)
		}
		if len(files) != 2 || files[0].ID != "f2" || files[1].ID != "f1" {
			t.Errorf("files should keep upload order, got %+v", files)
		}
		if files[0].Status != FileUploaded || files[0].Content != "a,b" {
			t.Errorf("file fields: %+v", files[0])
		}

		if err := s.SetFileStatus(ctx, "f1", FileError, "unsupported"); err != nil {
			t.Fatalf("SetFileStatus: %v", err)
		}
		f, _ := s.GetFile(ctx, "w1", "f1")
		if f.Status != FileError || f.Error != "unsupported" {
			t.Errorf("after status: %+v", f)
		}

		if _, err := s.GetFile(ctx, "w2", "f1"); !errors.Is(err, ErrNotFound) {
			t.Errorf("file must not be visible through another workshop: %v", err)
		}
		if err := s.SetFileStatus(ctx, "missing", FileParsed, ""); !errors.Is(err, ErrNotFound) {
			t.Errorf("missing file status: %v", err)
		}
		if other, _ := s.ListFiles(ctx, "w2"); len(other) != 0 {
			t.Errorf("w2 files: %+v", other)
		}
	})
}

func TestExpandPath(t *testing.T) {
	if got := ExpandPath("/tmp/x.db"); got != "/tmp/x.db" {
		t.Errorf("absolute path changed: %s", got)
	}
	if got := ExpandPath("~/x.db"); got == "~/x.db" || filepath.Base(got) != "x.db" {
		t.Errorf("tilde not expanded: %s", got)
	}
}

func workshopIDs(ws []*Workshop) []string {
	out := make([]string, 0, len(ws))
	for _, w := range ws {
		out = append(out, w.ID)
	}
	return out
}
