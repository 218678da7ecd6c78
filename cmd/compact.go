package cmd

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"

	"claude-alamode/internal/sessions"
	"claude-alamode/internal/tracing"
)

var (
	compactAggressive bool
	compactDryRun     bool
)

var compactCmd = &cobra.Command{
	Use:   "compact <session-id>",
	Short: "Remove old, large tool results from a session file",
	Long: `Rewrite a session JSONL, dropping tool_use/tool_result pairs that are
both old and large. The last N invocations per tool are always kept. A
.bak copy is written before the file is touched.

Unlike Claude's own context compaction this shrinks what --resume reads
from disk, so the next turn starts with a smaller context.`,
	Args: cobra.ExactArgs(1),
	RunE: runCompact,
}

func init() {
	rootCmd.AddCommand(compactCmd)

	compactCmd.Flags().BoolVar(&compactAggressive, "aggressive", false,
		"lower the size thresholds to 500/1000 bytes")
	compactCmd.Flags().BoolVar(&compactDryRun, "dry-run", false,
		"report what would be removed without touching the file")
}

func runCompact(cmd *cobra.Command, args []string) error {
	sessionID := args[0]

	tracer, err := tracing.NewProvider(cfg.Tracing.ToTracing())
	if err != nil {
		return fmt.Errorf("initializing tracing: %w", err)
	}
	defer func() { _ = tracer.Shutdown(context.Background()) }()

	_, span := tracer.Tracer().Start(context.Background(), tracing.SpanCompact,
		trace.WithAttributes(attribute.String(tracing.AttrSessionID, sessionID)))
	defer span.End()

	store := sessions.NewStore("")
	path, err := store.FindSessionPath(sessionID)
	if err != nil {
		return err
	}

	report, err := sessions.Compact(path, sessions.CompactOptions{
		KeepLastN:     cfg.Compact.KeepLastN,
		MinResultSize: cfg.Compact.MinResultSize,
		MinInputSize:  cfg.Compact.MinInputSize,
		Aggressive:    compactAggressive,
		DryRun:        compactDryRun,
	})
	if err != nil {
		span.RecordError(err)
		return fmt.Errorf("compacting session: %w", err)
	}

	out := cmd.OutOrStdout()
	if compactDryRun {
		fmt.Fprintln(out, "Dry run - file not modified.")
	}
	fmt.Fprintf(out, "Messages: %d -> %d (removed %d tool pairs)\n",
		report.MessagesBefore, report.MessagesAfter, report.RemovedPairs)
	fmt.Fprintf(out, "Estimated tokens: %d -> %d\n",
		report.EstTokensBefore, report.EstTokensAfter)
	if report.BackupPath != "" {
		fmt.Fprintf(out, "Backup written to %s\n", report.BackupPath)
	}
	return nil
}
