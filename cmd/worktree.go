package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"claude-alamode/internal/tracing"
	"claude-alamode/internal/worktree"
)

var worktreeCmd = &cobra.Command{
	Use:   "worktree",
	Short: "Manage feature worktrees",
	Long: `Manage sibling git worktrees for feature work. 'start' creates
../<repo>-<name> on a new branch, 'finish' rebases the branch onto main,
merges it back, and cleans up, 'list' shows what exists.`,
}

var worktreeStartCmd = &cobra.Command{
	Use:   "start <name>",
	Short: "Create a feature worktree on a new branch",
	Args:  cobra.ExactArgs(1),
	RunE:  runWorktreeStart,
}

var worktreeFinishCmd = &cobra.Command{
	Use:   "finish",
	Short: "Rebase, merge back, and remove the current feature worktree",
	Args:  cobra.NoArgs,
	RunE:  runWorktreeFinish,
}

var worktreeListCmd = &cobra.Command{
	Use:   "list",
	Short: "List worktrees of the enclosing repository",
	Args:  cobra.NoArgs,
	RunE:  runWorktreeList,
}

func init() {
	rootCmd.AddCommand(worktreeCmd)
	worktreeCmd.AddCommand(worktreeStartCmd, worktreeFinishCmd, worktreeListCmd)
}

func newWorktreeManager() (*worktree.Manager, error) {
	workDir, err := os.Getwd()
	if err != nil {
		return nil, fmt.Errorf("getting current directory: %w", err)
	}
	return worktree.NewManager(workDir), nil
}

func runWorktreeStart(cmd *cobra.Command, args []string) error {
	mgr, err := newWorktreeManager()
	if err != nil {
		return err
	}

	tracer, err := tracing.NewProvider(cfg.Tracing.ToTracing())
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	_, span := tracer.Tracer().Start(context.Background(), tracing.SpanWorktreeStart,
		trace.WithAttributes(attribute.String(tracing.AttrWorktreeBranch, args[0])))
	defer span.End()

	result, err := mgr.Start(args[0])
	if err != nil {
		span.RecordError(err)
		return err
	}
	span.SetAttributes(attribute.String(tracing.AttrWorktreePath, result.Path))

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Created worktree %s\n", result.Path)
	fmt.Fprintf(out, "Branch %s (from %s)\n", result.Branch, result.BaseBranch)
	fmt.Fprintf(out, "\n  cd %s && claude-alamode\n", result.Path)
	return nil
}

func runWorktreeFinish(cmd *cobra.Command, _ []string) error {
	mgr, err := newWorktreeManager()
	if err != nil {
		return err
	}

	tracer, err := tracing.NewProvider(cfg.Tracing.ToTracing())
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	_, span := tracer.Tracer().Start(context.Background(), tracing.SpanWorktreeFinish)
	defer span.End()

	result, err := mgr.Finish()
	if err != nil {
		span.RecordError(err)
		return err
	}

	out := cmd.OutOrStdout()
	for _, step := range result.Steps {
		fmt.Fprintf(out, "✓ %s\n", step)
	}
	fmt.Fprintf(out, "\n  cd %s\n", result.MainPath)
	return nil
}

func runWorktreeList(cmd *cobra.Command, _ []string) error {
	mgr, err := newWorktreeManager()
	if err != nil {
		return err
	}

	infos, err := mgr.List()
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	for _, info := range infos {
		marker := " "
		if info.IsMain {
			marker = "*"
		}
		fmt.Fprintf(out, "%s %-30s %s\n", marker, info.Branch, info.Path)
	}
	return nil
}
