// Command taskmine extracts automatable work tasks from workshop documents
// and serves the workshop board over HTTP and MCP.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/hurttlocker/taskmine/internal/config"
	"github.com/hurttlocker/taskmine/internal/logging"
)

const version = "0.3.0"

// cli holds the persistent flags and everything PersistentPreRunE resolves
// from them.
type cli struct {
	configPath string
	llmFlag    string
	dbPath     string
	storeFlag  string
	addr       string
	verbose    bool

	logger *zap.Logger
	cfg    config.ResolvedConfig
}

func newRootCmd() *cobra.Command {
	c := &cli{}
	root := &cobra.Command{
		Use:   "taskmine",
		Short: "Workshop task extraction",
		Long: `taskmine reads workshop documents and a team lead's notes, asks an LLM
to list the repetitive tasks worth automating, validates and deduplicates them,
and keeps them on a per-workshop kanban board.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			return c.setup()
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if c.logger != nil {
				_ = c.logger.Sync()
			}
		},
	}

	pf := root.PersistentFlags()
	pf.StringVar(&c.configPath, "config", "", "Config file (default ~/.taskmine/config.yaml)")
	pf.StringVar(&c.llmFlag, "llm", "", "LLM as provider/model, e.g. google/gemini-2.5-flash")
	pf.StringVar(&c.dbPath, "db", "", "SQLite database path")
	pf.StringVar(&c.storeFlag, "store", "", "Store backend: sqlite or memory")
	pf.BoolVarP(&c.verbose, "verbose", "v", false, "Enable debug logging")

	root.AddCommand(
		c.serveCmd(),
		c.extractCmd(),
		c.timeHintCmd(),
		c.mcpCmd(),
		c.pilotCmd(),
		versionCmd(),
	)
	return root
}

// setup builds the logger and resolves config from the parsed flags.
func (c *cli) setup() error {
	logger, err := logging.New(logging.Options{Verbose: c.verbose})
	if err != nil {
		return err
	}
	c.logger = logger

	cfg, err := config.ResolveConfig(config.ResolveOptions{
		ConfigPath: c.configPath,
		CLILLM:     c.llmFlag,
		CLIDBPath:  c.dbPath,
		CLIStore:   c.storeFlag,
		CLIAddr:    c.addr,
	})
	if err != nil {
		return fmt.Errorf("resolving config: %w", err)
	}
	c.cfg = cfg
	logger.Debug("config resolved",
		zap.String("config", cfg.ConfigPath),
		zap.String("store", cfg.Store.Value),
		zap.String("db", cfg.DBPath.Value),
		zap.String("llm", cfg.LLMProvider.Value),
		zap.String("llm_source", string(cfg.LLMProvider.Source)))
	return nil
}

func versionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the taskmine version",
		Args:  cobra.NoArgs,
		PersistentPreRun: func(cmd *cobra.Command, args []string) {},
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "taskmine %s\n", version)
		},
	}
}

func run(args []string, stdout, stderr io.Writer) error {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	return root.Execute()
}

func main() {
	if err := run(os.Args[1:], os.Stdout, os.Stderr); err != nil {
		os.Exit(1)
	}
}
