package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"
)

var onlineWaitCmd = &cobra.Command{
	Use:   "online-wait",
	Short: "Block until the service is reachable, retrying with exponential backoff",
	RunE:  runOnlineWait,
}

var onlineWaitTimeout time.Duration

func init() {
	rootCmd.AddCommand(onlineWaitCmd)
	onlineWaitCmd.Flags().DurationVar(&onlineWaitTimeout, "timeout", 5*time.Minute, "give up after this long")
}

func runOnlineWait(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(cmd.Context(), onlineWaitTimeout)
	defer cancel()
	if err := f.WaitForConnectivity(ctx); err != nil {
		return fmt.Errorf("still unreachable after %s: %w", onlineWaitTimeout, err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), "online")
	return nil
}
