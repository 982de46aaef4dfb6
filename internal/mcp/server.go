// Package mcp provides a Model Context Protocol server for taskmine.
//
// It exposes task extraction, time-phrase normalization and read access to
// workshop boards as MCP tools, and the workshop list as an MCP resource.
// Supports stdio transport (for Claude Desktop, Cursor) and optional
// HTTP+SSE transport for remote access.
package mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"

	"github.com/hurttlocker/taskmine/internal/pipeline"
	"github.com/hurttlocker/taskmine/internal/store"
	"github.com/hurttlocker/taskmine/internal/task"
	"github.com/hurttlocker/taskmine/internal/timehint"
	"github.com/hurttlocker/taskmine/internal/workshop"
)

// ServerConfig holds configuration for the MCP server.
type ServerConfig struct {
	Workshops *workshop.Service
	// Extractor is optional; without it taskmine_extract is not registered.
	Extractor  workshop.Extractor
	Normalizer *timehint.Normalizer
	Version    string // version string for MCP server info
	Logger     *zap.Logger
}

// NewServer creates a configured MCP server with all taskmine tools and resources.
func NewServer(cfg ServerConfig) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	norm := cfg.Normalizer
	if norm == nil {
		norm = timehint.New()
	}
	log := cfg.Logger
	if log == nil {
		log = zap.NewNop()
	}
	log = log.Named("mcp")

	s := server.NewMCPServer(
		"taskmine",
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(true, false),
	)

	registerTimeHintTool(s, norm)
	if cfg.Extractor != nil {
		registerExtractTool(s, cfg.Extractor, log)
	}
	if cfg.Workshops != nil {
		registerWorkshopsTool(s, cfg.Workshops)
		registerWorkshopTasksTool(s, cfg.Workshops)
		registerMoveTaskTool(s, cfg.Workshops)
		registerWorkshopsResource(s, cfg.Workshops)
	}
	return s
}

// ServeStdio serves s over stdin/stdout until the client disconnects.
func ServeStdio(s *server.MCPServer) error {
	return server.ServeStdio(s)
}

// ServeSSE serves s over HTTP+SSE on addr.
func ServeSSE(s *server.MCPServer, addr string) error {
	return server.NewSSEServer(s).Start(addr)
}

// --- Tools ---

func registerExtractTool(s *server.MCPServer, ex workshop.Extractor, log *zap.Logger) {
	tool := mcp.NewTool("taskmine_extract",
		mcp.WithDescription("Extract repetitive, automatable work tasks from a document using the configured LLM. Returns validated tasks, rejected records and integration warnings."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("document",
			mcp.Required(),
			mcp.Description("Document text to analyze (meeting notes, job descriptions, process docs)"),
		),
		mcp.WithString("domains",
			mcp.Required(),
			mcp.Description("Comma-separated work domains the tasks must belong to (e.g. '영업, 회계')"),
		),
		mcp.WithString("manual_input",
			mcp.Description("Extra notes written by the team lead, analyzed alongside the document"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		doc, err := req.RequireString("document")
		if err != nil || strings.TrimSpace(doc) == "" {
			return mcp.NewToolResultError("document is required"), nil
		}
		rawDomains, err := req.RequireString("domains")
		if err != nil {
			return mcp.NewToolResultError("domains is required"), nil
		}
		domains := splitList(rawDomains)
		if len(domains) == 0 {
			return mcp.NewToolResultError("at least one domain is required"), nil
		}
		manual, _ := req.RequireString("manual_input")

		res, err := ex.Extract(ctx, pipeline.Request{DocumentText: doc, Domains: domains, ManualInput: manual})
		if err != nil {
			log.Error("extract tool failed", zap.Error(err))
			return mcp.NewToolResultError(fmt.Sprintf("extraction failed: %v", err)), nil
		}
		return jsonResult(res)
	})
}

func registerTimeHintTool(s *server.MCPServer, norm *timehint.Normalizer) {
	tool := mcp.NewTool("taskmine_timehint",
		mcp.WithDescription("Find duration and frequency phrases in text (Korean or English) and normalize them to hours per occurrence and a frequency category."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("Free text such as '매일 30분' or '2 hours every week'"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		text, err := req.RequireString("text")
		if err != nil {
			return mcp.NewToolResultError("text is required"), nil
		}
		return jsonResult(norm.Normalize(text))
	})
}

func registerWorkshopsTool(s *server.MCPServer, svc *workshop.Service) {
	tool := mcp.NewTool("taskmine_workshops",
		mcp.WithDescription("List workshops, newest first, with their domains and analysis status."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithNumber("limit",
			mcp.Description("Maximum number of workshops (default: 20, max: 100)"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		limit := 20
		if v, err := req.RequireFloat("limit"); err == nil && v > 0 {
			limit = int(v)
			if limit > 100 {
				limit = 100
			}
		}
		list, err := svc.List(ctx)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("listing workshops: %v", err)), nil
		}
		if len(list) > limit {
			list = list[:limit]
		}
		return jsonResult(list)
	})
}

func registerWorkshopTasksTool(s *server.MCPServer, svc *workshop.Service) {
	tool := mcp.NewTool("taskmine_workshop_tasks",
		mcp.WithDescription("List the task board of one workshop, optionally filtered by domain or kanban status, plus a summary of hours and savings."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("workshop_id",
			mcp.Required(),
			mcp.Description("Workshop ID"),
		),
		mcp.WithString("domain",
			mcp.Description("Only tasks in this domain"),
		),
		mcp.WithString("status",
			mcp.Description("Only tasks in this column"),
			mcp.Enum("Progress", "Planned", "NotStarted", "Completed"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		id, err := req.RequireString("workshop_id")
		if err != nil {
			return mcp.NewToolResultError("workshop_id is required"), nil
		}
		var f workshop.TaskFilter
		if d, err := req.RequireString("domain"); err == nil {
			f.Domain = strings.TrimSpace(d)
		}
		if raw, err := req.RequireString("status"); err == nil && raw != "" {
			st, ok := task.ParseStatus(raw)
			if !ok {
				return mcp.NewToolResultError(fmt.Sprintf("unknown status %q", raw)), nil
			}
			f.Status = st
		}

		tasks, err := svc.ListTasks(ctx, id, f)
		if err != nil {
			return toolError(err), nil
		}
		sum, err := svc.Summarize(ctx, id)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(map[string]any{
			"tasks":   tasks,
			"count":   len(tasks),
			"summary": sum,
		})
	})
}

func registerMoveTaskTool(s *server.MCPServer, svc *workshop.Service) {
	tool := mcp.NewTool("taskmine_move_task",
		mcp.WithDescription("Move a workshop task to another kanban column."),
		mcp.WithReadOnlyHintAnnotation(false),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("workshop_id", mcp.Required(), mcp.Description("Workshop ID")),
		mcp.WithString("task_id", mcp.Required(), mcp.Description("Task ID")),
		mcp.WithString("status",
			mcp.Required(),
			mcp.Description("Target column"),
			mcp.Enum("Progress", "Planned", "NotStarted", "Completed"),
		),
	)

	s.AddTool(tool, func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		wid, err := req.RequireString("workshop_id")
		if err != nil {
			return mcp.NewToolResultError("workshop_id is required"), nil
		}
		tid, err := req.RequireString("task_id")
		if err != nil {
			return mcp.NewToolResultError("task_id is required"), nil
		}
		status, err := req.RequireString("status")
		if err != nil {
			return mcp.NewToolResultError("status is required"), nil
		}
		t, err := svc.MoveTask(ctx, wid, tid, status)
		if err != nil {
			return toolError(err), nil
		}
		return jsonResult(t)
	})
}

// --- Helpers ---

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("encoding result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func toolError(err error) *mcp.CallToolResult {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return mcp.NewToolResultError("not found: " + err.Error())
	case errors.Is(err, workshop.ErrInvalidInput):
		return mcp.NewToolResultError("invalid input: " + err.Error())
	default:
		return mcp.NewToolResultError(err.Error())
	}
}

// splitList splits a comma- or newline-separated list, dropping blanks.
func splitList(s string) []string {
	fields := strings.FieldsFunc(s, func(r rune) bool { return r == ',' || r == '\n' })
	out := make([]string, 0, len(fields))
	for _, f := range fields {
		if f = strings.TrimSpace(f); f != "" {
			out = append(out, f)
		}
	}
	return out
}
