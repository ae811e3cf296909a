package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"desec-core/internal/httpclient"
	"desec-core/internal/model"
	"desec-core/internal/queue"
)

var policyCmd = &cobra.Command{
	Use:   "policy",
	Short: "Manage a token's RRset write policies (list_policies/create_policy/...)",
}

var policyListCmd = &cobra.Command{
	Use:   "list TOKEN_ID",
	Short: "List a token's RRset policies",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyList,
}

var (
	policyDomain    string
	policySubname   string
	policyType      string
	policyPermWrite bool
)

var policyCreateCmd = &cobra.Command{
	Use:   "create TOKEN_ID",
	Short: "Add a policy row to a token; omitted --domain/--subname/--type act as wildcards",
	Args:  cobra.ExactArgs(1),
	RunE:  runPolicyCreate,
}

var policyUpdateCmd = &cobra.Command{
	Use:   "update TOKEN_ID POLICY_ID",
	Short: "Change a policy's perm_write flag",
	Args:  cobra.ExactArgs(2),
	RunE:  runPolicyUpdate,
}

var policyDeleteCmd = &cobra.Command{
	Use:   "delete TOKEN_ID POLICY_ID",
	Short: "Remove a policy row",
	Args:  cobra.ExactArgs(2),
	RunE:  runPolicyDelete,
}

func init() {
	rootCmd.AddCommand(policyCmd)
	policyCmd.AddCommand(policyListCmd, policyCreateCmd, policyUpdateCmd, policyDeleteCmd)

	policyCreateCmd.Flags().StringVar(&policyDomain, "domain", "", "domain this policy scopes to, empty for wildcard")
	policyCreateCmd.Flags().StringVar(&policySubname, "subname", "", "subname this policy scopes to, empty for wildcard")
	policyCreateCmd.Flags().StringVar(&policyType, "type", "", "record type this policy scopes to, empty for wildcard")
	policyCreateCmd.Flags().BoolVar(&policyPermWrite, "perm-write", false, "grant write access")

	policyUpdateCmd.Flags().BoolVar(&policyPermWrite, "perm-write", false, "new perm_write value")
}

func runPolicyList(cmd *cobra.Command, args []string) error {
	tokenID := args[0]
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	item := submitAndWait(f, queue.Submission{
		Priority: model.PriorityNormal,
		Category: "policies",
		Action:   fmt.Sprintf("list policies for token %s", tokenID),
		Request:  httpclient.NewListPoliciesRequest(tokenID),
	})
	if item.Status != model.StatusOK {
		return fmt.Errorf("list policies for token %s: %s", tokenID, item.Err)
	}
	policies, err := httpclient.ParsePolicies(tokenID, item.Response.Body)
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(policies)
	}
	for _, p := range policies {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\tdomain=%s\tsubname=%s\ttype=%s\tperm_write=%v\n",
			p.ID, strPtr(p.Domain), strPtr(p.Subname), strPtr(p.Type), p.PermWrite)
	}
	return nil
}

func runPolicyCreate(cmd *cobra.Command, args []string) error {
	tokenID := args[0]
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	attrs := map[string]any{"perm_write": policyPermWrite}
	if policyDomain != "" {
		attrs["domain"] = policyDomain
	}
	if policySubname != "" {
		attrs["subname"] = policySubname
	}
	if policyType != "" {
		attrs["type"] = policyType
	}
	item := submitAndWait(f, queue.Submission{
		Priority: model.PriorityNormal,
		Category: "policies",
		Action:   fmt.Sprintf("create policy for token %s", tokenID),
		Request:  httpclient.NewCreatePolicyRequest(tokenID, attrs),
	})
	if item.Status != model.StatusOK {
		return fmt.Errorf("create policy for token %s: %s", tokenID, item.Err)
	}
	pol, err := httpclient.ParsePolicy(tokenID, item.Response.Body)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created policy %s for token %s\n", pol.ID, tokenID)
	return nil
}

func runPolicyUpdate(cmd *cobra.Command, args []string) error {
	tokenID, policyID := args[0], args[1]
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	item := submitAndWait(f, queue.Submission{
		Priority: model.PriorityNormal,
		Category: "policies",
		Action:   fmt.Sprintf("update policy %s for token %s", policyID, tokenID),
		Request:  httpclient.NewUpdatePolicyRequest(tokenID, policyID, map[string]any{"perm_write": policyPermWrite}),
	})
	if item.Status != model.StatusOK {
		return fmt.Errorf("update policy %s for token %s: %s", policyID, tokenID, item.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "updated policy %s for token %s\n", policyID, tokenID)
	return nil
}

func runPolicyDelete(cmd *cobra.Command, args []string) error {
	tokenID, policyID := args[0], args[1]
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	item := submitAndWait(f, queue.Submission{
		Priority: model.PriorityNormal,
		Category: "policies",
		Action:   fmt.Sprintf("delete policy %s for token %s", policyID, tokenID),
		Request:  httpclient.NewDeletePolicyRequest(tokenID, policyID),
	})
	if item.Status != model.StatusOK {
		return fmt.Errorf("delete policy %s for token %s: %s", policyID, tokenID, item.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted policy %s for token %s\n", policyID, tokenID)
	return nil
}

func strPtr(s *string) string {
	if s == nil {
		return "*"
	}
	return *s
}
