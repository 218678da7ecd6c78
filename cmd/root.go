// Package cmd wires the cobra command tree for claude-alamode.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
	zone "github.com/lrstanley/bubblezone"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"claude-alamode/internal/app"
	"claude-alamode/internal/config"
	"claude-alamode/internal/history"
	"claude-alamode/internal/log"
	"claude-alamode/internal/tracing"
	"claude-alamode/internal/worktree"
)

func init() {
	// Force lipgloss/termenv to query the terminal background color BEFORE
	// any Bubble Tea program starts. This prevents the terminal's OSC 11
	// response from racing with Bubble Tea's input loop and appearing as
	// garbage text in input fields.
	//
	// See: https://github.com/charmbracelet/bubbletea/issues/1036
	_ = lipgloss.HasDarkBackground()
}

var (
	version = "dev"
	cfgFile string
	cfg     config.Config

	debugFlag    bool
	resumeFlag   bool
	sessionFlag  string
	modelFlag    string
	worktreeFlag string
	skipPermFlag bool
)

var rootCmd = &cobra.Command{
	Use:   "claude-alamode [prompt]",
	Short: "A terminal ui for Claude Code sessions",
	Long: `A terminal user interface wrapping the Claude Code CLI. Prompts run as
headless claude turns; the conversation, session picker, diff view, and
cost tracking live in one TUI.

Requires an authenticated claude binary on PATH (run 'claude /login' once).`,
	Version: version,
	Args:    cobra.MaximumNArgs(1),
	RunE:    runApp,
}

func init() {
	cobra.OnInitialize(initConfig)

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "",
		"config file (default: ~/.config/claude-alamode/config.yaml)")
	rootCmd.PersistentFlags().BoolVar(&debugFlag, "debug", false,
		"enable debug logging (also ALAMODE_DEBUG env)")

	rootCmd.Flags().BoolVar(&resumeFlag, "resume", false,
		"resume the most recently used session for this project")
	rootCmd.Flags().StringVarP(&sessionFlag, "session", "s", "",
		"resume a specific session by id")
	rootCmd.Flags().StringVar(&modelFlag, "model", "",
		"model for new turns (sonnet, opus, haiku, or a full model name)")
	rootCmd.Flags().StringVar(&worktreeFlag, "worktree", "",
		"run the session inside the named feature worktree, creating it if needed")
	rootCmd.Flags().BoolVar(&skipPermFlag, "skip-permissions", false,
		"pass --dangerously-skip-permissions on every turn")

	_ = viper.BindPFlag("claude.model", rootCmd.Flags().Lookup("model"))
}

func initConfig() {
	defaults := config.Defaults()
	viper.SetDefault("claude.model", defaults.Claude.Model)
	viper.SetDefault("claude.skip_permissions", defaults.Claude.SkipPermissions)
	viper.SetDefault("claude.turn_timeout_seconds", defaults.Claude.TurnTimeoutSeconds)
	viper.SetDefault("ui.show_status_bar", defaults.UI.ShowStatusBar)
	viper.SetDefault("ui.markdown_style", defaults.UI.MarkdownStyle)
	viper.SetDefault("ui.mouse_enabled", defaults.UI.MouseEnabled)
	viper.SetDefault("history.path", defaults.History.Path)
	viper.SetDefault("history.disabled", defaults.History.Disabled)
	viper.SetDefault("compact.keep_last_n", defaults.Compact.KeepLastN)
	viper.SetDefault("compact.min_result_size", defaults.Compact.MinResultSize)
	viper.SetDefault("compact.min_input_size", defaults.Compact.MinInputSize)
	viper.SetDefault("tracing.enabled", defaults.Tracing.Enabled)
	viper.SetDefault("tracing.exporter", defaults.Tracing.Exporter)
	viper.SetDefault("tracing.otlp_endpoint", defaults.Tracing.OTLPEndpoint)
	viper.SetDefault("tracing.sample_rate", defaults.Tracing.SampleRate)

	if cfgFile != "" {
		viper.SetConfigFile(cfgFile)
	} else {
		viper.AddConfigPath(config.ConfigDir())
		viper.SetConfigName("config")
		viper.SetConfigType("yaml")
	}

	if err := viper.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if errors.As(err, &notFound) {
			// First run - seed the default config so users have something
			// to edit.
			if path := config.DefaultConfigPath(); path != "" {
				if writeErr := config.WriteDefaultConfig(path); writeErr == nil {
					viper.SetConfigFile(path)
					_ = viper.ReadInConfig()
				}
			}
		}
	}

	_ = viper.Unmarshal(&cfg)
}

// initLogging enables the debug log when requested via flag or env.
// ALAMODE_LOG_LEVEL raises the minimum level (debug, info, warn, error).
func initLogging() (func(), error) {
	if !debugFlag && os.Getenv("ALAMODE_DEBUG") == "" {
		return func() {}, nil
	}

	logPath := os.Getenv("ALAMODE_LOG")
	if logPath == "" {
		logPath = "debug.log"
	}
	cleanup, err := log.InitWithTeaLog(logPath, "claude-alamode")
	if err != nil {
		return nil, err
	}

	if raw := os.Getenv("ALAMODE_LOG_LEVEL"); raw != "" {
		level, parseErr := log.ParseLevel(raw)
		if parseErr != nil {
			cleanup()
			return nil, fmt.Errorf("ALAMODE_LOG_LEVEL: %w", parseErr)
		}
		log.SetMinLevel(level)
	}
	return cleanup, nil
}

func runApp(cmd *cobra.Command, args []string) error {
	cleanup, err := initLogging()
	if err != nil {
		return fmt.Errorf("initializing logging: %w", err)
	}
	defer cleanup()

	if modelFlag != "" {
		cfg.Claude.Model = modelFlag
	}
	if skipPermFlag {
		cfg.Claude.SkipPermissions = true
	}
	if err := config.Validate(cfg); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	tracer, err := tracing.NewProvider(cfg.Tracing.ToTracing())
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		_ = tracer.Shutdown(ctx)
		cancel()
	}()

	if worktreeFlag != "" {
		workDir, err = enterWorktree(tracer, workDir, worktreeFlag)
		if err != nil {
			return err
		}
	}

	var launches history.LaunchRepository
	if !cfg.History.Disabled {
		dbPath := cfg.History.Path
		if dbPath == "" {
			dbPath = config.DefaultHistoryDBPath()
		}
		db, dbErr := history.NewDB(dbPath)
		if dbErr != nil {
			// History is a convenience; --resume falls back to file mtimes.
			log.Warn(log.CatHistory, "Launch history unavailable", "error", dbErr)
		} else {
			defer func() { _ = db.Close() }()
			launches = db.Launches()
		}
	}

	var prompt string
	if len(args) > 0 {
		prompt = args[0]
	}

	zone.NewGlobal()

	model, err := app.New(app.Options{
		Config:        cfg,
		WorkDir:       workDir,
		ResumeLatest:  resumeFlag && sessionFlag == "",
		SessionID:     sessionFlag,
		InitialPrompt: prompt,
		Launches:      launches,
		Tracer:        tracer,
	})
	if err != nil {
		return err
	}

	opts := []tea.ProgramOption{tea.WithAltScreen()}
	if cfg.UI.MouseEnabled {
		opts = append(opts, tea.WithMouseCellMotion())
	}

	final, err := tea.NewProgram(model, opts...).Run()
	if m, ok := final.(app.Model); ok {
		m.Close()
	} else {
		model.Close()
	}
	if err != nil {
		return fmt.Errorf("running program: %w", err)
	}
	return nil
}

// enterWorktree resolves --worktree to a working directory, creating the
// worktree when it does not exist yet.
func enterWorktree(tracer *tracing.Provider, workDir, name string) (string, error) {
	_, span := tracer.Tracer().Start(context.Background(), tracing.SpanWorktreeStart,
		trace.WithAttributes(attribute.String(tracing.AttrWorktreeBranch, name)))
	defer span.End()

	mgr := worktree.NewManager(workDir)

	result, err := mgr.Start(name)
	if err == nil {
		span.SetAttributes(attribute.String(tracing.AttrWorktreePath, result.Path))
		return result.Path, nil
	}
	if !errors.Is(err, worktree.ErrWorktreeExists) {
		return "", fmt.Errorf("starting worktree %s: %w", name, err)
	}

	// The worktree is already there; reuse it.
	infos, listErr := mgr.List()
	if listErr != nil {
		return "", fmt.Errorf("listing worktrees: %w", listErr)
	}
	for _, info := range infos {
		if info.Branch == name {
			span.SetAttributes(attribute.String(tracing.AttrWorktreePath, info.Path))
			return info.Path, nil
		}
	}
	return "", fmt.Errorf("starting worktree %s: %w", name, err)
}

// Execute runs the root command.
func Execute() error {
	return rootCmd.Execute()
}

// SetVersion sets the version string (called from main with ldflags).
func SetVersion(v string) {
	version = v
	rootCmd.Version = v
}
