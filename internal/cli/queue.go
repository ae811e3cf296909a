package cli

import (
	"encoding/json"
	"fmt"
	"strconv"

	"github.com/spf13/cobra"
)

var queueCmd = &cobra.Command{
	Use:   "queue",
	Short: "Inspect and control the outbound API queue",
}

var queueStatusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show pending items and recent history",
	RunE:  runQueueStatus,
}

var queuePauseCmd = &cobra.Command{
	Use:   "pause",
	Short: "Stop dispatching new items (running items finish)",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := ensureFacade()
		if err != nil {
			return err
		}
		f.Pause()
		fmt.Fprintln(cmd.OutOrStdout(), "paused")
		return nil
	},
}

var queueResumeCmd = &cobra.Command{
	Use:   "resume",
	Short: "Resume dispatch and enqueue a connectivity check",
	RunE: func(cmd *cobra.Command, args []string) error {
		f, err := ensureFacade()
		if err != nil {
			return err
		}
		f.Resume()
		fmt.Fprintln(cmd.OutOrStdout(), "resumed")
		return nil
	},
}

var queueSetRateCmd = &cobra.Command{
	Use:   "set-rate RATE",
	Short: "Change the client's requests-per-second budget",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		rate, err := strconv.ParseFloat(args[0], 64)
		if err != nil {
			return fmt.Errorf("invalid rate %q: %w", args[0], err)
		}
		f, err := ensureFacade()
		if err != nil {
			return err
		}
		f.SetRate(rate)
		fmt.Fprintf(cmd.OutOrStdout(), "rate set to %g req/s\n", rate)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(queueCmd)
	queueCmd.AddCommand(queueStatusCmd, queuePauseCmd, queueResumeCmd, queueSetRateCmd)
}

func runQueueStatus(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	snap := f.QueueSnapshot()
	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(snap)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "paused: %v\n", snap.Paused)
	fmt.Fprintf(cmd.OutOrStdout(), "pending (%d):\n", len(snap.Pending))
	for _, it := range snap.Pending {
		fmt.Fprintf(cmd.OutOrStdout(), "  #%d [%s] %s — %s\n", it.ID, it.Priority, it.Action, it.Status)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "recent history (%d):\n", len(snap.History))
	for _, it := range snap.History {
		fmt.Fprintf(cmd.OutOrStdout(), "  #%d %s — %s (%s)\n", it.ID, it.Action, it.Status, it.Duration())
	}
	return nil
}
