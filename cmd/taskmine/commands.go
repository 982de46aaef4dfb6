package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurttlocker/taskmine/internal/api"
	"github.com/hurttlocker/taskmine/internal/config"
	"github.com/hurttlocker/taskmine/internal/ingest"
	"github.com/hurttlocker/taskmine/internal/mcp"
	"github.com/hurttlocker/taskmine/internal/pilot"
	"github.com/hurttlocker/taskmine/internal/pipeline"
	"github.com/hurttlocker/taskmine/internal/timehint"
)

func (c *cli) serveCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the workshop REST API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.buildApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			limitMB := c.cfg.UploadLimit.Int(config.DefaultUploadLimitMB)
			srv := api.New(a.workshops, a.extractor, api.Options{
				Logger:     c.logger,
				BodyLimit:  api.MaxUploadFiles*limitMB<<20 + 1<<20,
				Version:    version,
				Normalizer: a.normalizer,
			})

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			errc := make(chan error, 1)
			go func() { errc <- srv.Listen(c.cfg.Addr.Value) }()

			select {
			case err := <-errc:
				return err
			case <-ctx.Done():
				c.logger.Info("shutting down")
				return srv.Shutdown()
			}
		},
	}
	cmd.Flags().StringVar(&c.addr, "addr", "", "Listen address (default :8080)")
	return cmd
}

func (c *cli) extractCmd() *cobra.Command {
	var (
		domains []string
		manual  string
	)
	cmd := &cobra.Command{
		Use:   "extract [file]...",
		Short: "Extract tasks from documents and print them as JSON",
		Long: `Extract reads each file (txt, md, csv, tsv, xlsx, html, docx, json, yaml),
sends the text together with the declared domains to the LLM and prints the
validated, deduplicated tasks as JSON.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 && strings.TrimSpace(manual) == "" {
				return errors.New("give at least one file or --manual text")
			}
			req := pipeline.Request{Domains: domains, ManualInput: manual}
			for _, path := range args {
				data, err := os.ReadFile(path)
				if err != nil {
					return err
				}
				text, err := ingest.ExtractText(cmd.Context(), filepath.Base(path), "", data)
				if err != nil {
					return fmt.Errorf("%s: %w", path, err)
				}
				req.Documents = append(req.Documents, pipeline.Document{Name: filepath.Base(path), Content: text})
			}

			a, err := c.buildApp(false)
			if err != nil {
				return err
			}
			res, err := a.extractor.Extract(cmd.Context(), req)
			if err != nil {
				return err
			}
			c.logger.Info("extraction finished",
				zap.Int("tasks", len(res.Tasks)),
				zap.Int("rejected", len(res.Rejected)),
				zap.Int("warnings", len(res.Warnings)))
			return writeJSON(cmd.OutOrStdout(), res)
		},
	}
	cmd.Flags().StringSliceVarP(&domains, "domains", "d", nil, "Declared business domains (comma-separated)")
	cmd.Flags().StringVarP(&manual, "manual", "m", "", "Team lead's own notes, analyzed with the documents")
	_ = cmd.MarkFlagRequired("domains")
	return cmd
}

func (c *cli) timeHintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "timehint <text>",
		Short: "Show the time and frequency hints found in text",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			hint := timehint.New().Normalize(strings.Join(args, " "))
			return writeJSON(cmd.OutOrStdout(), hint)
		},
	}
}

func (c *cli) mcpCmd() *cobra.Command {
	var sseAddr string
	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve taskmine tools over the Model Context Protocol",
		Long: `Start an MCP server on stdin/stdout, or over HTTP+SSE with --sse.
Logs go to stderr so stdout stays a clean protocol stream.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := c.buildApp(true)
			if err != nil {
				return err
			}
			defer a.Close()

			cfg := mcp.ServerConfig{
				Workshops:  a.workshops,
				Normalizer: a.normalizer,
				Version:    version,
				Logger:     c.logger,
			}
			if a.provider != nil {
				cfg.Extractor = a.extractor
			}
			s := mcp.NewServer(cfg)
			if sseAddr != "" {
				c.logger.Info("mcp sse listening", zap.String("addr", sseAddr))
				return mcp.ServeSSE(s, sseAddr)
			}
			return mcp.ServeStdio(s)
		},
	}
	cmd.Flags().StringVar(&sseAddr, "sse", "", "Serve over HTTP+SSE on this address instead of stdio")
	return cmd
}

func (c *cli) pilotCmd() *cobra.Command {
	var (
		outPath     string
		asJSON      bool
		concurrency int
	)
	cmd := &cobra.Command{
		Use:   "pilot <personas.yaml>",
		Short: "Run persona simulations against the extraction flow",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			personas, err := pilot.LoadPersonas(args[0])
			if err != nil {
				return err
			}
			a, err := c.buildApp(false)
			if err != nil {
				return err
			}
			if a.provider == nil {
				return errors.New("pilot needs an LLM API key to play the personas")
			}

			runner := pilot.NewRunner(a.provider, a.extractor, pilot.Options{
				Concurrency: concurrency,
				Logger:      c.logger,
			})
			report, err := runner.Run(cmd.Context(), personas)
			if err != nil {
				return err
			}

			var out io.Writer = cmd.OutOrStdout()
			if outPath != "" {
				f, err := os.Create(outPath)
				if err != nil {
					return err
				}
				defer f.Close()
				out = f
			}
			if asJSON {
				return writeJSON(out, report)
			}
			_, err = io.WriteString(out, pilot.RenderMarkdown(report))
			return err
		},
	}
	cmd.Flags().StringVarP(&outPath, "out", "o", "", "Write the report to a file instead of stdout")
	cmd.Flags().BoolVar(&asJSON, "json", false, "Write the report as JSON instead of Markdown")
	cmd.Flags().IntVar(&concurrency, "concurrency", pilot.DefaultConcurrency, "Personas simulated at once")
	return cmd
}

func writeJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
