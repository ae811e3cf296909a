package cli

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/spf13/cobra"

	"desec-core/internal/catalogue"
	"desec-core/internal/httpclient"
	"desec-core/internal/model"
	"desec-core/internal/queue"
)

var recordsCmd = &cobra.Command{
	Use:   "records",
	Short: "List and edit RRsets within a zone",
}

var recordsListCmd = &cobra.Command{
	Use:   "list ZONE",
	Short: "List a zone's RRsets, reading the cache first and refreshing it if stale",
	Args:  cobra.ExactArgs(1),
	RunE:  runRecordsList,
}

var recordsSetCmd = &cobra.Command{
	Use:   "set ZONE SUBNAME TYPE TTL VALUE...",
	Short: "Create an RRset, validating against the record-type catalogue first; an existing RRset is not replaced",
	Args:  cobra.MinimumNArgs(4),
	RunE:  runRecordsSet,
}

var recordsDeleteCmd = &cobra.Command{
	Use:   "delete ZONE SUBNAME TYPE",
	Short: "Delete an RRset",
	Args:  cobra.ExactArgs(3),
	RunE:  runRecordsDelete,
}

var recordsBulkDeleteCmd = &cobra.Command{
	Use:   "bulk-delete ZONE SUBNAME/TYPE...",
	Short: "Delete several RRsets in one call, continuing past per-item failures",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runRecordsBulkDelete,
}

func init() {
	rootCmd.AddCommand(recordsCmd)
	recordsCmd.AddCommand(recordsListCmd, recordsSetCmd, recordsDeleteCmd, recordsBulkDeleteCmd)
}

func runRecordsList(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	rrsets, hit := f.Records(args[0])
	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(rrsets)
	}
	if !hit {
		fmt.Fprintln(cmd.OutOrStdout(), "no cached records yet; refresh enqueued")
		return nil
	}
	for _, rr := range rrsets {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tttl=%d\t%v\n", rr.Subname, rr.Type, rr.TTL, rr.Records)
	}
	return nil
}

func runRecordsSet(cmd *cobra.Command, args []string) error {
	zone, subname, typ, ttlArg := args[0], args[1], args[2], args[3]
	values := args[4:]

	ttl, err := strconv.Atoi(ttlArg)
	if err != nil {
		return fmt.Errorf("invalid ttl %q: %w", ttlArg, err)
	}
	if err := catalogue.ValidateTTL(ttl); err != nil {
		return fmt.Errorf("ttl out of range: %w", err)
	}
	if err := catalogue.Validate(typ, values); err != nil {
		return fmt.Errorf("invalid record values: %w", err)
	}

	f, err := ensureFacade()
	if err != nil {
		return err
	}
	rr := model.RRset{Zone: zone, Subname: subname, Type: typ, TTL: ttl, Records: values}
	item := mutateAndWait(f, zone, queue.Submission{
		Priority: model.PriorityNormal,
		Category: "records",
		Action:   fmt.Sprintf("set %s %s in %s", subname, typ, zone),
		Request:  httpclient.NewCreateRRsetRequest(zone, rr),
	}, fmt.Sprintf("set %s/%s", subname, typ))
	if item.Status != model.StatusOK {
		return fmt.Errorf("set %s %s: %s", subname, typ, item.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "set %s %s in %s\n", subname, typ, zone)
	return nil
}

func runRecordsDelete(cmd *cobra.Command, args []string) error {
	zone, subname, typ := args[0], args[1], args[2]
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	item := mutateAndWait(f, zone, queue.Submission{
		Priority: model.PriorityNormal,
		Category: "records",
		Action:   fmt.Sprintf("delete %s %s from %s", subname, typ, zone),
		Request:  httpclient.NewDeleteRRsetRequest(zone, subname, typ),
	}, fmt.Sprintf("deleted %s/%s", subname, typ))
	if item.Status != model.StatusOK {
		return fmt.Errorf("delete %s %s: %s", subname, typ, item.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted %s %s from %s\n", subname, typ, zone)
	return nil
}

func runRecordsBulkDelete(cmd *cobra.Command, args []string) error {
	zone := args[0]
	keys := make([]model.RRsetKey, 0, len(args)-1)
	for _, spec := range args[1:] {
		parts := strings.SplitN(spec, "/", 2)
		if len(parts) != 2 {
			return fmt.Errorf("invalid SUBNAME/TYPE %q, want e.g. www/A", spec)
		}
		keys = append(keys, model.RRsetKey{Subname: parts[0], Type: parts[1]})
	}

	f, err := ensureFacade()
	if err != nil {
		return err
	}
	result := f.BulkDeleteRecords(zone, keys)
	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(result)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "succeeded=%d failed=%d\n", result.Succeeded, len(result.Failed))
	for _, fi := range result.Failed {
		fmt.Fprintf(cmd.OutOrStdout(), "  %s: %v\n", fi.Description, fi.Err)
	}
	if len(result.Failed) > 0 {
		return fmt.Errorf("%d of %d deletions failed", len(result.Failed), len(keys))
	}
	return nil
}
