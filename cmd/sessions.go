package cmd

import (
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"claude-alamode/internal/sessions"
	"claude-alamode/internal/ui/textwidth"
)

var sessionsCmd = &cobra.Command{
	Use:   "sessions",
	Short: "List Claude Code sessions for the current project",
	Long: `List the sessions Claude Code has recorded for the current directory,
newest first. The short id shown here works with 'claude-alamode -s <id>'
and 'claude-alamode compact <id>'.`,
	RunE: runSessions,
}

func init() {
	rootCmd.AddCommand(sessionsCmd)
}

func runSessions(cmd *cobra.Command, _ []string) error {
	workDir, err := os.Getwd()
	if err != nil {
		return fmt.Errorf("getting current directory: %w", err)
	}

	store := sessions.NewStore("")
	metas, err := store.ListSessions(workDir)
	if err != nil {
		return fmt.Errorf("listing sessions: %w", err)
	}
	if len(metas) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No sessions for this project.")
		return nil
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "%-36s  %-8s  %5s  %s\n", "SESSION", "AGE", "MSGS", "FIRST PROMPT")
	for _, meta := range metas {
		prompt := meta.FirstPrompt
		if prompt == "" {
			prompt = meta.Summary
		}
		prompt = textwidth.TruncateWithTail(prompt, 60, "...")
		fmt.Fprintf(out, "%-36s  %-8s  %5d  %s\n",
			meta.SessionID, formatSessionAge(time.Since(meta.Modified)), meta.MessageCount, prompt)
	}
	return nil
}

func formatSessionAge(d time.Duration) string {
	switch {
	case d < time.Minute:
		return "now"
	case d < time.Hour:
		return fmt.Sprintf("%dm", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh", int(d.Hours()))
	default:
		return fmt.Sprintf("%dd", int(d.Hours()/24))
	}
}
