package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"desec-core/internal/httpclient"
	"desec-core/internal/model"
	"desec-core/internal/queue"
)

var zonesCmd = &cobra.Command{
	Use:   "zones",
	Short: "List, create, and delete zones",
}

var zonesListCmd = &cobra.Command{
	Use:   "list",
	Short: "List zones, reading the cache first and refreshing it if stale",
	RunE:  runZonesList,
}

var zonesCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new zone",
	Args:  cobra.ExactArgs(1),
	RunE:  runZonesCreate,
}

var zonesDeleteCmd = &cobra.Command{
	Use:   "delete NAME",
	Short: "Delete a zone",
	Args:  cobra.ExactArgs(1),
	RunE:  runZonesDelete,
}

func init() {
	rootCmd.AddCommand(zonesCmd)
	zonesCmd.AddCommand(zonesListCmd, zonesCreateCmd, zonesDeleteCmd)
}

func runZonesList(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	zones, hit := f.Zones()
	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(zones)
	}
	if !hit {
		fmt.Fprintln(cmd.OutOrStdout(), "no cached zones yet; refresh enqueued")
		return nil
	}
	for _, z := range zones {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\tpublished=%v\tcreated=%s\n", z.Name, z.Published, z.Created.Format("2006-01-02"))
	}
	return nil
}

func runZonesCreate(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	item := submitAndWait(f, queue.Submission{
		Priority: model.PriorityHigh,
		Category: "zones",
		Action:   fmt.Sprintf("create zone %s", args[0]),
		Request:  httpclient.NewCreateZoneRequest(args[0]),
	})
	if item.Status != model.StatusOK {
		return fmt.Errorf("create zone %s: %s", args[0], item.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created %s\n", args[0])
	return nil
}

func runZonesDelete(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	item := submitAndWait(f, queue.Submission{
		Priority: model.PriorityHigh,
		Category: "zones",
		Action:   fmt.Sprintf("delete zone %s", args[0]),
		Request:  httpclient.NewDeleteZoneRequest(args[0]),
	})
	if item.Status != model.StatusOK {
		return fmt.Errorf("delete zone %s: %s", args[0], item.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s\n", args[0])
	return nil
}
