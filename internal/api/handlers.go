package api

import (
	"bufio"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/hurttlocker/taskmine/internal/pipeline"
	"github.com/hurttlocker/taskmine/internal/store"
	"github.com/hurttlocker/taskmine/internal/task"
	"github.com/hurttlocker/taskmine/internal/workshop"
)

func (s *Server) health(c *fiber.Ctx) error {
	return respond(c, fiber.StatusOK, fiber.Map{
		"status":  "healthy",
		"version": s.version,
		"uptime":  time.Since(s.started).Round(time.Second).String(),
	})
}

func (s *Server) extract(c *fiber.Ctx) error {
	var req pipeline.Request
	if err := c.BodyParser(&req); err != nil {
		return badRequest("request body must be a JSON object")
	}
	empty := strings.TrimSpace(req.DocumentText) == "" && strings.TrimSpace(req.ManualInput) == ""
	for _, d := range req.Documents {
		if strings.TrimSpace(d.Content) != "" {
			empty = false
		}
	}
	if empty {
		return badRequest("documentText, documents or manualInput is required")
	}
	res, err := s.extractor.Extract(c.UserContext(), req)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, res)
}

type timeHintRequest struct {
	Text string `json:"text"`
}

func (s *Server) timeHint(c *fiber.Ctx) error {
	var req timeHintRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("request body must be a JSON object")
	}
	if strings.TrimSpace(req.Text) == "" {
		return badRequest("text is required")
	}
	return respond(c, fiber.StatusOK, s.norm.Normalize(req.Text))
}

// --- workshops ---

func (s *Server) listWorkshops(c *fiber.Ctx) error {
	list, err := s.workshops.List(c.UserContext())
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, list)
}

func (s *Server) createWorkshop(c *fiber.Ctx) error {
	var in workshop.CreateInput
	if err := c.BodyParser(&in); err != nil {
		return badRequest("request body must be a JSON object")
	}
	w, err := s.workshops.Create(c.UserContext(), in)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, w)
}

func (s *Server) getWorkshop(c *fiber.Ctx) error {
	w, err := s.workshops.Get(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, w)
}

func (s *Server) deleteWorkshop(c *fiber.Ctx) error {
	if err := s.workshops.Delete(c.UserContext(), c.Params("id")); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{"deleted": c.Params("id")})
}

func (s *Server) summary(c *fiber.Ctx) error {
	sum, err := s.workshops.Summarize(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, sum)
}

// --- files ---

func (s *Server) listFiles(c *fiber.Ctx) error {
	files, err := s.workshops.Files(c.UserContext(), c.Params("id"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, files)
}

type uploadFailure struct {
	Name  string `json:"name"`
	Error string `json:"error"`
}

// uploadFiles stores every readable document in the "files" field. Bad
// documents are reported per file; the request fails only when none is
// accepted.
func (s *Server) uploadFiles(c *fiber.Ctx) error {
	id := c.Params("id")
	if _, err := s.workshops.Get(c.UserContext(), id); err != nil {
		return err
	}
	form, err := c.MultipartForm()
	if err != nil {
		return badRequest("expected a multipart form with a files field")
	}
	headers := form.File["files"]
	if len(headers) == 0 {
		return badRequest("no files uploaded")
	}
	if len(headers) > MaxUploadFiles {
		return badRequest(fmt.Sprintf("at most %d files per upload", MaxUploadFiles))
	}

	var (
		accepted []*store.File
		firstErr error
	)
	failed := []uploadFailure{}
	for _, fh := range headers {
		f, err := s.addPart(c.UserContext(), id, fh)
		if err == nil {
			accepted = append(accepted, f)
			continue
		}
		if firstErr == nil {
			firstErr = err
		}
		failed = append(failed, uploadFailure{Name: fh.Filename, Error: err.Error()})
		s.log.Info("upload rejected", zap.String("workshop", id), zap.String("name", fh.Filename), zap.Error(err))
	}
	if len(accepted) == 0 {
		return firstErr
	}
	return respond(c, fiber.StatusCreated, fiber.Map{"files": accepted, "failed": failed})
}

func (s *Server) addPart(ctx context.Context, workshopID string, fh *multipart.FileHeader) (*store.File, error) {
	r, err := fh.Open()
	if err != nil {
		return nil, err
	}
	defer r.Close()
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", fh.Filename, err)
	}
	return s.workshops.AddFile(ctx, workshopID, fh.Filename, fh.Header.Get(fiber.HeaderContentType), data)
}

// --- analysis ---

func wantsStream(c *fiber.Ctx) bool {
	return c.Query("stream") == "true" || strings.Contains(c.Get(fiber.HeaderAccept), "text/event-stream")
}

// analyze runs a full workshop analysis. With ?stream=true (or an
// event-stream Accept header) progress is sent as server-sent events and the
// final analysis arrives as a "result" event.
func (s *Server) analyze(c *fiber.Ctx) error {
	// fiber reuses the request buffer; the stream writer outlives the handler.
	id := strings.Clone(c.Params("id"))
	var in workshop.AnalyzeInput
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&in); err != nil {
			return badRequest("request body must be a JSON object")
		}
	}
	if _, err := s.workshops.Get(c.UserContext(), id); err != nil {
		return err
	}

	if !wantsStream(c) {
		an, err := s.workshops.Analyze(c.UserContext(), id, in, nil)
		if err != nil {
			return err
		}
		return respond(c, fiber.StatusOK, an)
	}

	ctx := context.WithoutCancel(c.UserContext())
	c.Set(fiber.HeaderContentType, "text/event-stream")
	c.Set(fiber.HeaderCacheControl, "no-cache")
	c.Context().SetBodyStreamWriter(func(w *bufio.Writer) {
		an, err := s.workshops.Analyze(ctx, id, in, func(ev workshop.Event) {
			writeEvent(w, string(ev.Type), ev)
		})
		if err != nil {
			writeEvent(w, "error", fiber.Map{"status": statusFor(err), "error": err.Error()})
			return
		}
		writeEvent(w, "result", an)
	})
	return nil
}

func writeEvent(w *bufio.Writer, name string, v any) {
	data, err := json.Marshal(v)
	if err != nil {
		data = []byte(`{}`)
	}
	fmt.Fprintf(w, "event: %s\ndata: %s\n\n", name, data)
	_ = w.Flush()
}

// --- tasks ---

func (s *Server) listTasks(c *fiber.Ctx) error {
	f := workshop.TaskFilter{Domain: c.Query("domain")}
	if raw := c.Query("status"); raw != "" {
		st, ok := task.ParseStatus(raw)
		if !ok {
			return badRequest(fmt.Sprintf("unknown status %q", raw))
		}
		f.Status = st
	}
	tasks, err := s.workshops.ListTasks(c.UserContext(), c.Params("id"), f)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, tasks)
}

func (s *Server) addTask(c *fiber.Ctx) error {
	t, err := s.workshops.AddTask(c.UserContext(), c.Params("id"), json.RawMessage(c.Body()))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusCreated, t)
}

func (s *Server) getTask(c *fiber.Ctx) error {
	t, err := s.workshops.GetTask(c.UserContext(), c.Params("id"), c.Params("taskId"))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, t)
}

func (s *Server) updateTask(c *fiber.Ctx) error {
	t, err := s.workshops.UpdateTask(c.UserContext(), c.Params("id"), c.Params("taskId"), json.RawMessage(c.Body()))
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, t)
}

type moveRequest struct {
	Status string `json:"status"`
}

func (s *Server) moveTask(c *fiber.Ctx) error {
	var req moveRequest
	if err := c.BodyParser(&req); err != nil {
		return badRequest("request body must be a JSON object")
	}
	t, err := s.workshops.MoveTask(c.UserContext(), c.Params("id"), c.Params("taskId"), req.Status)
	if err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, t)
}

func (s *Server) deleteTask(c *fiber.Ctx) error {
	if err := s.workshops.DeleteTask(c.UserContext(), c.Params("id"), c.Params("taskId")); err != nil {
		return err
	}
	return respond(c, fiber.StatusOK, fiber.Map{"deleted": c.Params("taskId")})
}
