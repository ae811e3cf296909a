package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"desec-core/internal/model"
	"desec-core/internal/queue"
)

var versionsCmd = &cobra.Command{
	Use:   "versions",
	Short: "Browse and restore a zone's snapshot history",
}

var versionsListCmd = &cobra.Command{
	Use:   "list ZONE",
	Short: "List a zone's version history, newest first",
	Args:  cobra.ExactArgs(1),
	RunE:  runVersionsList,
}

var versionsRestoreCmd = &cobra.Command{
	Use:   "restore ZONE HASH",
	Short: "Replace a zone's RRsets with the state recorded at HASH",
	Args:  cobra.ExactArgs(2),
	RunE:  runVersionsRestore,
}

func init() {
	rootCmd.AddCommand(versionsCmd)
	versionsCmd.AddCommand(versionsListCmd, versionsRestoreCmd)
}

func runVersionsList(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	entries, err := f.Snapshots(args[0])
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(entries)
	}
	for _, e := range entries {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", e.Hash[:12], e.Timestamp.Format("2006-01-02 15:04:05"), e.Message)
	}
	return nil
}

func runVersionsRestore(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	done := make(chan queue.Item, 1)
	if _, err := f.Restore(args[0], args[1], func(it queue.Item) { done <- it }); err != nil {
		return err
	}
	item := <-done
	if item.Status != model.StatusOK {
		return fmt.Errorf("restore %s to %s: %s", args[0], args[1], item.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "restored %s to %s\n", args[0], args[1])
	return nil
}
