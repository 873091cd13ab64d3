package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"github.com/zappabad/tradinghall/internal/config"
	"github.com/zappabad/tradinghall/internal/game"
	"github.com/zappabad/tradinghall/internal/journal"
	"github.com/zappabad/tradinghall/tui"
)

type rootOptions struct {
	configPath string
	logLevel   string
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	rootCmd := &cobra.Command{
		Use:           "tradinghall",
		Short:         "Trading Hall - agents deciding on crypto markets",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVarP(&opts.configPath, "config", "c", "", "TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&opts.logLevel, "log-level", "", "override log level (debug, info, warn, error)")

	rootCmd.AddCommand(newRunCmd(opts))
	rootCmd.AddCommand(newTUICmd(opts))
	rootCmd.AddCommand(newJournalCmd(opts))

	return rootCmd
}

// hallFlags are the overrides shared by run and tui.
type hallFlags struct {
	symbol string
	stub   bool
	feed   bool
}

func (f *hallFlags) register(cmd *cobra.Command) {
	cmd.Flags().StringVarP(&f.symbol, "symbol", "s", "", "coin to start on")
	cmd.Flags().BoolVar(&f.stub, "stub", false, "use the offline decision source")
	cmd.Flags().BoolVar(&f.feed, "feed", false, "serve the HTTP and websocket feed")
}

func (f *hallFlags) apply(cmd *cobra.Command, cfg *config.Config) {
	if f.symbol != "" {
		cfg.Hall.Symbol = strings.ToLower(f.symbol)
	}
	if cmd.Flags().Changed("stub") {
		cfg.Decision.Stub = f.stub
	}
	if cmd.Flags().Changed("feed") {
		cfg.Feed.Enabled = f.feed
	}
}

func newRunCmd(opts *rootOptions) *cobra.Command {
	flags := &hallFlags{}
	cmd := &cobra.Command{
		Use:   "run",
		Short: "Run the hall headless, logging events and serving the feed",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, func(c *config.Config) { flags.apply(cmd, c) })
			if err != nil {
				return err
			}
			logger, closeLog, err := newLogger(cfg, os.Stdout)
			if err != nil {
				return err
			}
			defer closeLog()

			gameCfg, err := game.FromFile(cfg)
			if err != nil {
				return err
			}
			g, err := game.NewGame(gameCfg, logger)
			if err != nil {
				return err
			}
			defer g.Close()

			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			logger.Info("trading hall started",
				"symbol", cfg.Hall.Symbol,
				"stub", cfg.Decision.Stub,
				"feed", cfg.Feed.Enabled,
			)
			if err := g.Run(ctx); err != nil {
				return err
			}
			logger.Info("trading hall stopped")
			return nil
		},
	}
	flags.register(cmd)
	return cmd
}

func newTUICmd(opts *rootOptions) *cobra.Command {
	flags := &hallFlags{}
	cmd := &cobra.Command{
		Use:   "tui",
		Short: "Watch and steer the hall in the terminal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, func(c *config.Config) { flags.apply(cmd, c) })
			if err != nil {
				return err
			}
			// The screen belongs to the UI, so logs go to a file or nowhere.
			logger, closeLog, err := newLogger(cfg, io.Discard)
			if err != nil {
				return err
			}
			defer closeLog()

			gameCfg, err := game.FromFile(cfg)
			if err != nil {
				return err
			}
			g, err := game.NewGame(gameCfg, logger)
			if err != nil {
				return err
			}
			defer g.Close()

			ctx, cancel := context.WithCancel(cmd.Context())
			defer cancel()
			runErr := make(chan error, 1)
			go func() { runErr <- g.Run(ctx) }()

			model := tui.NewModel(g.Hall, gameCfg.HallConfig.Arena, nil)
			p := tea.NewProgram(model, tea.WithAltScreen())
			if _, err := p.Run(); err != nil {
				return fmt.Errorf("run TUI: %w", err)
			}

			cancel()
			return <-runErr
		},
	}
	flags.register(cmd)
	return cmd
}

func newJournalCmd(opts *rootOptions) *cobra.Command {
	var limit int
	cmd := &cobra.Command{
		Use:   "journal",
		Short: "Show recent decision outcomes from the journal",
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts, nil)
			if err != nil {
				return err
			}
			j, err := journal.Open(cfg.Journal.Path)
			if err != nil {
				return err
			}
			defer j.Close()

			ctx := cmd.Context()
			entries, err := j.Recent(ctx, limit)
			if err != nil {
				return fmt.Errorf("read journal: %w", err)
			}
			counts, err := j.CountByKind(ctx)
			if err != nil {
				return fmt.Errorf("count journal: %w", err)
			}
			printJournal(cmd.OutOrStdout(), entries, counts)
			return nil
		},
	}
	cmd.Flags().IntVarP(&limit, "limit", "n", 20, "number of entries to show")
	return cmd
}

func printJournal(out io.Writer, entries []journal.Entry, counts []journal.KindCount) {
	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "TIME\tGEN\tAGENT\tPAIR\tRESULT\tLATENCY")
	for _, e := range entries {
		result := e.Action
		if e.Failed() {
			result = e.ErrorKind + ": " + e.ErrorText
		} else if e.Price.Valid {
			result = fmt.Sprintf("%s @ %s (%.0f%%)", e.Action, e.Price.Decimal.StringFixed(2), e.Confidence*100)
		}
		fmt.Fprintf(w, "%s\t%d\t%s\t%s/%s\t%s\t%dms\n",
			e.RecordedAt().Format("2006-01-02 15:04:05"),
			e.Generation,
			e.AgentID,
			strings.ToUpper(e.Symbol), strings.ToUpper(e.Quote),
			result,
			e.LatencyMS,
		)
	}
	w.Flush()

	fmt.Fprintln(out)
	for _, c := range counts {
		kind := c.ErrorKind
		if kind == "" {
			kind = "ok"
		}
		fmt.Fprintf(out, "%-12s %d\n", kind, c.Count)
	}
}

func loadConfig(opts *rootOptions, override func(*config.Config)) (*config.Config, error) {
	cfg, err := config.Load(opts.configPath)
	if err != nil {
		return nil, err
	}
	if opts.logLevel != "" {
		cfg.LogLevel = opts.logLevel
	}
	if override != nil {
		override(cfg)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// newLogger builds the process logger. LogFile, when set, wins over out.
func newLogger(cfg *config.Config, out io.Writer) (*slog.Logger, func(), error) {
	var level slog.Level
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	closeFn := func() {}
	if cfg.LogFile != "" {
		f, err := os.OpenFile(cfg.LogFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, fmt.Errorf("open log file: %w", err)
		}
		out = f
		closeFn = func() { f.Close() }
	}

	logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	slog.SetDefault(logger)
	return logger, closeFn, nil
}
