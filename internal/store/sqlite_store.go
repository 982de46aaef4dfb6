package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	"github.com/hurttlocker/taskmine/internal/task"
)

// SQLiteStore implements Store on a single SQLite database file.
type SQLiteStore struct {
	db     *sql.DB
	dbPath string
}

// NewSQLiteStore opens (creating if needed) the database at path and brings
// the schema up to date. An empty path uses DefaultDBPath.
func NewSQLiteStore(path string) (*SQLiteStore, error) {
	if path == "" {
		path = DefaultDBPath
	}
	path = ExpandPath(path)

	if path != ":memory:" {
		if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
			return nil, fmt.Errorf("creating db directory: %w", err)
		}
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("opening database: %w", err)
	}
	// Every connection to ":memory:" is a separate database.
	if path == ":memory:" {
		db.SetMaxOpenConns(1)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("pinging database: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL",
		"PRAGMA foreign_keys=ON",
		"PRAGMA busy_timeout=5000",
	}
	for _, p := range pragmas {
		if _, err := db.Exec(p); err != nil {
			db.Close()
			return nil, fmt.Errorf("setting pragma %q: %w", p, err)
		}
	}

	s := &SQLiteStore{db: db, dbPath: path}
	if err := s.migrate(); err != nil {
		db.Close()
		return nil, fmt.Errorf("running migrations: %w", err)
	}
	return s, nil
}

// Close closes the database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// Path returns the database file location.
func (s *SQLiteStore) Path() string { return s.dbPath }

// timeLayout keeps a fixed fraction width so stored timestamps sort as text.
const timeLayout = "2006-01-02T15:04:05.000000000Z07:00"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) time.Time {
	t, err := time.Parse(time.RFC3339Nano, s)
	if err != nil {
		return time.Time{}
	}
	return t
}

func now() time.Time { return time.Now().UTC() }

// --- workshops ---

func (s *SQLiteStore) CreateWorkshop(ctx context.Context, w *Workshop) error {
	ts := now()
	if w.CreatedAt.IsZero() {
		w.CreatedAt = ts
	}
	w.UpdatedAt = ts
	if w.Status == "" {
		w.Status = WorkshopDomainDefined
	}
	domains, err := json.Marshal(nonNil(w.Domains))
	if err != nil {
		return fmt.Errorf("encoding domains: %w", err)
	}

	_, err = s.db.ExecContext(ctx,
		`INSERT INTO workshops (id, name, domains, participant_count, status, last_error, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		w.ID, w.Name, string(domains), w.ParticipantCount, string(w.Status), w.LastError,
		formatTime(w.CreatedAt), formatTime(w.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("workshop %s: %w", w.ID, ErrConflict)
		}
		return fmt.Errorf("inserting workshop: %w", err)
	}
	return nil
}

const workshopColumns = `id, name, domains, participant_count, status, last_error, created_at, updated_at, analyzed_at`

func scanWorkshop(row interface{ Scan(...any) error }) (*Workshop, error) {
	var (
		w                Workshop
		domains, status  string
		created, updated string
		analyzed         sql.NullString
	)
	if err := row.Scan(&w.ID, &w.Name, &domains, &w.ParticipantCount, &status, &w.LastError,
		&created, &updated, &analyzed); err != nil {
		return nil, err
	}
	if err := json.Unmarshal([]byte(domains), &w.Domains); err != nil {
		return nil, fmt.Errorf("decoding domains of workshop %s: %w", w.ID, err)
	}
	w.Status = WorkshopStatus(status)
	w.CreatedAt = parseTime(created)
	w.UpdatedAt = parseTime(updated)
	if analyzed.Valid && analyzed.String != "" {
		t := parseTime(analyzed.String)
		w.AnalyzedAt = &t
	}
	return &w, nil
}

func (s *SQLiteStore) GetWorkshop(ctx context.Context, id string) (*Workshop, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+workshopColumns+` FROM workshops WHERE id = ?`, id)
	w, err := scanWorkshop(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("workshop %s: %w", id, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting workshop: %w", err)
	}
	return w, nil
}

func (s *SQLiteStore) ListWorkshops(ctx context.Context) ([]*Workshop, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+workshopColumns+` FROM workshops ORDER BY created_at DESC, id ASC`)
	if err != nil {
		return nil, fmt.Errorf("listing workshops: %w", err)
	}
	defer rows.Close()

	out := []*Workshop{}
	for rows.Next() {
		w, err := scanWorkshop(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning workshop: %w", err)
		}
		out = append(out, w)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetWorkshopStatus(ctx context.Context, id string, status WorkshopStatus, lastError string) error {
	ts := formatTime(now())
	query := `UPDATE workshops SET status = ?, last_error = ?, updated_at = ? WHERE id = ?`
	args := []any{string(status), lastError, ts, id}
	if status == WorkshopAnalyzed {
		query = `UPDATE workshops SET status = ?, last_error = ?, updated_at = ?, analyzed_at = ? WHERE id = ?`
		args = []any{string(status), lastError, ts, ts, id}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("updating workshop status: %w", err)
	}
	return expectRow(res, "workshop", id)
}

func (s *SQLiteStore) DeleteWorkshop(ctx context.Context, id string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM workshops WHERE id = ?`, id)
	if err != nil {
		return fmt.Errorf("deleting workshop: %w", err)
	}
	return expectRow(res, "workshop", id)
}

// --- tasks ---

func (s *SQLiteStore) AppendTasks(ctx context.Context, workshopID string, tasks []StoredTask) error {
	return s.writeTasks(ctx, workshopID, tasks, false)
}

func (s *SQLiteStore) ReplaceTasks(ctx context.Context, workshopID string, tasks []StoredTask) error {
	return s.writeTasks(ctx, workshopID, tasks, true)
}

func (s *SQLiteStore) writeTasks(ctx context.Context, workshopID string, tasks []StoredTask, replace bool) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning task write: %w", err)
	}
	defer tx.Rollback()

	var exists int
	if err := tx.QueryRowContext(ctx, `SELECT COUNT(*) FROM workshops WHERE id = ?`, workshopID).Scan(&exists); err != nil {
		return fmt.Errorf("checking workshop: %w", err)
	}
	if exists == 0 {
		return fmt.Errorf("workshop %s: %w", workshopID, ErrNotFound)
	}

	if replace {
		if _, err := tx.ExecContext(ctx, `DELETE FROM tasks WHERE workshop_id = ?`, workshopID); err != nil {
			return fmt.Errorf("clearing tasks: %w", err)
		}
	}

	var next int
	if err := tx.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(position), -1) + 1 FROM tasks WHERE workshop_id = ?`, workshopID,
	).Scan(&next); err != nil {
		return fmt.Errorf("reading task position: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO tasks (workshop_id, id, position, domain, status, data, source_file_id, source_name, created_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("preparing task insert: %w", err)
	}
	defer stmt.Close()

	ts := now()
	for i, t := range tasks {
		if t.ID == "" {
			return fmt.Errorf("task %q has no id", t.Title)
		}
		if t.CreatedAt.IsZero() {
			t.CreatedAt = ts
		}
		data, err := json.Marshal(t.Task)
		if err != nil {
			return fmt.Errorf("encoding task %s: %w", t.ID, err)
		}
		if _, err := stmt.ExecContext(ctx, workshopID, t.ID, next+i, t.Domain, string(t.EstimatedStatus),
			string(data), t.SourceFileID, t.SourceName, formatTime(t.CreatedAt)); err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("task %s: %w", t.ID, ErrConflict)
			}
			return fmt.Errorf("inserting task %s: %w", t.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("committing tasks: %w", err)
	}
	return nil
}

const taskColumns = `workshop_id, data, source_file_id, source_name, created_at`

func scanTask(row interface{ Scan(...any) error }) (StoredTask, error) {
	var (
		st      StoredTask
		data    string
		created string
	)
	if err := row.Scan(&st.WorkshopID, &data, &st.SourceFileID, &st.SourceName, &created); err != nil {
		return st, err
	}
	var t task.Task
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return st, fmt.Errorf("decoding task: %w", err)
	}
	st.Task = t
	st.CreatedAt = parseTime(created)
	return st, nil
}

func (s *SQLiteStore) ListTasks(ctx context.Context, workshopID string) ([]StoredTask, error) {
	if _, err := s.GetWorkshop(ctx, workshopID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE workshop_id = ? ORDER BY position ASC`, workshopID)
	if err != nil {
		return nil, fmt.Errorf("listing tasks: %w", err)
	}
	defer rows.Close()

	out := []StoredTask{}
	for rows.Next() {
		st, err := scanTask(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning task: %w", err)
		}
		out = append(out, st)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) GetTask(ctx context.Context, workshopID, taskID string) (*StoredTask, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+taskColumns+` FROM tasks WHERE workshop_id = ? AND id = ?`, workshopID, taskID)
	st, err := scanTask(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("task %s: %w", taskID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting task: %w", err)
	}
	return &st, nil
}

func (s *SQLiteStore) UpdateTask(ctx context.Context, t StoredTask) error {
	data, err := json.Marshal(t.Task)
	if err != nil {
		return fmt.Errorf("encoding task %s: %w", t.ID, err)
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE tasks SET domain = ?, status = ?, data = ?, source_file_id = ?, source_name = ?
		 WHERE workshop_id = ? AND id = ?`,
		t.Domain, string(t.EstimatedStatus), string(data), t.SourceFileID, t.SourceName, t.WorkshopID, t.ID)
	if err != nil {
		return fmt.Errorf("updating task: %w", err)
	}
	return expectRow(res, "task", t.ID)
}

func (s *SQLiteStore) DeleteTask(ctx context.Context, workshopID, taskID string) error {
	res, err := s.db.ExecContext(ctx, `DELETE FROM tasks WHERE workshop_id = ? AND id = ?`, workshopID, taskID)
	if err != nil {
		return fmt.Errorf("deleting task: %w", err)
	}
	return expectRow(res, "task", taskID)
}

// --- files ---

func (s *SQLiteStore) AddFile(ctx context.Context, f *File) error {
	if f.UploadedAt.IsZero() {
		f.UploadedAt = now()
	}
	if f.Status == "" {
		f.Status = FileUploaded
	}
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO files (id, workshop_id, original_name, mime_type, size, status, error, content, uploaded_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		f.ID, f.WorkshopID, f.OriginalName, f.MimeType, f.Size, string(f.Status), f.Error, f.Content,
		formatTime(f.UploadedAt))
	if err != nil {
		switch {
		case isUniqueViolation(err):
			return fmt.Errorf("file %s: %w", f.ID, ErrConflict)
		case isForeignKeyViolation(err):
			return fmt.Errorf("workshop %s: %w", f.WorkshopID, ErrNotFound)
		}
		return fmt.Errorf("inserting file: %w", err)
	}
	return nil
}

const fileColumns = `id, workshop_id, original_name, mime_type, size, status, error, content, uploaded_at`

func scanFile(row interface{ Scan(...any) error }) (*File, error) {
	var (
		f        File
		status   string
		uploaded string
	)
	if err := row.Scan(&f.ID, &f.WorkshopID, &f.OriginalName, &f.MimeType, &f.Size, &status,
		&f.Error, &f.Content, &uploaded); err != nil {
		return nil, err
	}
	f.Status = FileStatus(status)
	f.UploadedAt = parseTime(uploaded)
	return &f, nil
}

func (s *SQLiteStore) GetFile(ctx context.Context, workshopID, fileID string) (*File, error) {
	row := s.db.QueryRowContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE workshop_id = ? AND id = ?`, workshopID, fileID)
	f, err := scanFile(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %s: %w", fileID, ErrNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("getting file: %w", err)
	}
	return f, nil
}

func (s *SQLiteStore) ListFiles(ctx context.Context, workshopID string) ([]*File, error) {
	if _, err := s.GetWorkshop(ctx, workshopID); err != nil {
		return nil, err
	}
	rows, err := s.db.QueryContext(ctx,
		`SELECT `+fileColumns+` FROM files WHERE workshop_id = ? ORDER BY rowid ASC`, workshopID)
	if err != nil {
		return nil, fmt.Errorf("listing files: %w", err)
	}
	defer rows.Close()

	out := []*File{}
	for rows.Next() {
		f, err := scanFile(rows)
		if err != nil {
			return nil, fmt.Errorf("scanning file: %w", err)
		}
		out = append(out, f)
	}
	return out, rows.Err()
}

func (s *SQLiteStore) SetFileStatus(ctx context.Context, fileID string, status FileStatus, errMsg string) error {
	res, err := s.db.ExecContext(ctx, `UPDATE files SET status = ?, error = ? WHERE id = ?`, string(status), errMsg, fileID)
	if err != nil {
		return fmt.Errorf("updating file status: %w", err)
	}
	return expectRow(res, "file", fileID)
}

// --- helpers ---

func expectRow(res sql.Result, kind, id string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("checking affected rows: %w", err)
	}
	if n == 0 {
		return fmt.Errorf("%s %s: %w", kind, id, ErrNotFound)
	}
	return nil
}

func isUniqueViolation(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "unique constraint") || strings.Contains(msg, "primary key")
}

func isForeignKeyViolation(err error) bool {
	return strings.Contains(strings.ToLower(err.Error()), "foreign key constraint")
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
