package cmd

import (
	"fmt"
	"strings"
	"text/tabwriter"
	"time"

	oplog "github.com/Digital-Shane/reelrunner/internal/log"
	"github.com/spf13/cobra"
)

var historyLimit int

var historyCmd = &cobra.Command{
	Use:   "history",
	Short: "List recent runs from the session logs",
	Args:  cobra.NoArgs,
	RunE:  runHistory,
}

func runHistory(cmd *cobra.Command, args []string) error {
	sessions, err := oplog.ReadSessions(historyLimit)
	if err != nil {
		return fmt.Errorf("failed to read log sessions: %w", err)
	}

	out := cmd.OutOrStdout()
	if len(sessions) == 0 {
		fmt.Fprintln(out, "No sessions recorded yet.")
		return nil
	}

	now := time.Now()
	tw := tabwriter.NewWriter(out, 0, 4, 2, ' ', 0)
	fmt.Fprintln(tw, "WHEN\tCOMMAND\tOK\tFAILED")
	for _, s := range sessions {
		meta := s.Metadata
		fmt.Fprintf(tw, "%s\t%s\t%d\t%d\n", relativeTime(now, meta.Timestamp), strings.Join(meta.CommandArgs, " "), meta.SuccessfulOps, meta.FailedOps)
	}
	return tw.Flush()
}

// relativeTime renders t as a coarse age relative to now.
func relativeTime(now, t time.Time) string {
	d := now.Sub(t)
	switch {
	case d < time.Minute:
		return "just now"
	case d < time.Hour:
		return fmt.Sprintf("%dm ago", int(d.Minutes()))
	case d < 24*time.Hour:
		return fmt.Sprintf("%dh ago", int(d.Hours()))
	case d < 7*24*time.Hour:
		return fmt.Sprintf("%dd ago", int(d.Hours()/24))
	}
	return t.Format("2006-01-02")
}

func init() {
	historyCmd.Flags().IntVarP(&historyLimit, "limit", "n", 10, "Number of sessions to show")
	rootCmd.AddCommand(historyCmd)
}
