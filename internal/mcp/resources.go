package mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"

	"github.com/hurttlocker/taskmine/internal/workshop"
)

type workshopEntry struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Domains    []string `json:"domains"`
	Status     string   `json:"status"`
	Tasks      int      `json:"tasks"`
	Savings    float64  `json:"savings_hours"`
	CreatedAt  string   `json:"created_at"`
	AnalyzedAt string   `json:"analyzed_at,omitempty"`
}

func registerWorkshopsResource(s *server.MCPServer, svc *workshop.Service) {
	resource := mcp.NewResource(
		"taskmine://workshops",
		"Workshops",
		mcp.WithResourceDescription("Every workshop with its domains, status, task count and estimated yearly savings."),
		mcp.WithMIMEType("application/json"),
	)

	s.AddResource(resource, func(ctx context.Context, req mcp.ReadResourceRequest) ([]mcp.ResourceContents, error) {
		list, err := svc.List(ctx)
		if err != nil {
			return nil, fmt.Errorf("listing workshops: %w", err)
		}

		entries := make([]workshopEntry, 0, len(list))
		for _, w := range list {
			sum, err := svc.Summarize(ctx, w.ID)
			if err != nil {
				return nil, fmt.Errorf("summarizing workshop %s: %w", w.ID, err)
			}
			e := workshopEntry{
				ID:        w.ID,
				Name:      w.Name,
				Domains:   w.Domains,
				Status:    string(w.Status),
				Tasks:     sum.Tasks,
				Savings:   sum.SavingsHours,
				CreatedAt: w.CreatedAt.Format(time.RFC3339),
			}
			if w.AnalyzedAt != nil {
				e.AnalyzedAt = w.AnalyzedAt.Format(time.RFC3339)
			}
			entries = append(entries, e)
		}

		payload := map[string]any{
			"workshops": entries,
			"count":     len(entries),
		}
		data, _ := json.MarshalIndent(payload, "", "  ")
		return []mcp.ResourceContents{
			mcp.TextResourceContents{URI: req.Params.URI, MIMEType: "application/json", Text: string(data)},
		}, nil
	})
}
