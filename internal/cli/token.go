package cli

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"desec-core/internal/httpclient"
	"desec-core/internal/model"
	"desec-core/internal/queue"
)

var tokenSetCmd = &cobra.Command{
	Use:   "token-set",
	Short: "Seal an API token under a password and store it in the active profile",
	Long: `Reads the API token from DESECCTL_TOKEN and the sealing password from
DESECCTL_PASSWORD, both supplied as environment variables so the secret
never appears in the shell's argument list or history.`,
	RunE: runTokenSet,
}

var tokenCmd = &cobra.Command{
	Use:   "token",
	Short: "Manage the account's API tokens (list_tokens/create_token/...)",
}

var tokenListCmd = &cobra.Command{
	Use:   "list",
	Short: "List the account's API tokens",
	RunE:  runTokenList,
}

var (
	tokenCreateDomain    bool
	tokenDeleteDomain    bool
	tokenManageTokens    bool
	tokenAutoPolicy      bool
	tokenMaxAge          int
	tokenMaxUnusedPeriod int
)

var tokenCreateCmd = &cobra.Command{
	Use:   "create NAME",
	Short: "Create a new API token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenCreate,
}

var tokenGetCmd = &cobra.Command{
	Use:   "get ID",
	Short: "Get a single token by id",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenGet,
}

var tokenUpdateNameCmd = &cobra.Command{
	Use:   "update ID NAME",
	Short: "Rename a token",
	Args:  cobra.ExactArgs(2),
	RunE:  runTokenUpdate,
}

var tokenDeleteCmd = &cobra.Command{
	Use:   "delete ID",
	Short: "Delete a token",
	Args:  cobra.ExactArgs(1),
	RunE:  runTokenDelete,
}

func init() {
	rootCmd.AddCommand(tokenSetCmd)
	rootCmd.AddCommand(tokenCmd)
	tokenCmd.AddCommand(tokenListCmd, tokenCreateCmd, tokenGetCmd, tokenUpdateNameCmd, tokenDeleteCmd)

	tokenCreateCmd.Flags().BoolVar(&tokenCreateDomain, "create-domain", false, "grant perm_create_domain")
	tokenCreateCmd.Flags().BoolVar(&tokenDeleteDomain, "delete-domain", false, "grant perm_delete_domain")
	tokenCreateCmd.Flags().BoolVar(&tokenManageTokens, "manage-tokens", false, "grant perm_manage_tokens")
	tokenCreateCmd.Flags().BoolVar(&tokenAutoPolicy, "auto-policy", false, "enable auto_policy")
	tokenCreateCmd.Flags().IntVar(&tokenMaxAge, "max-age", 0, "max_age in seconds, 0 for none")
	tokenCreateCmd.Flags().IntVar(&tokenMaxUnusedPeriod, "max-unused-period", 0, "max_unused_period in seconds, 0 for none")
}

func runTokenSet(cmd *cobra.Command, args []string) error {
	token := os.Getenv("DESECCTL_TOKEN")
	password := os.Getenv("DESECCTL_PASSWORD")
	if token == "" || password == "" {
		return fmt.Errorf("DESECCTL_TOKEN and DESECCTL_PASSWORD must both be set")
	}
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	if err := f.SetToken(password, token); err != nil {
		return err
	}
	fmt.Fprintln(cmd.OutOrStdout(), "token sealed and stored")
	return nil
}

func runTokenList(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	item := submitAndWait(f, queue.Submission{
		Priority: model.PriorityNormal,
		Category: "tokens",
		Action:   "list tokens",
		Request:  httpclient.NewListTokensRequest(),
	})
	if item.Status != model.StatusOK {
		return fmt.Errorf("list tokens: %s", item.Err)
	}
	tokens, err := httpclient.ParseTokens(item.Response.Body)
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(tokens)
	}
	for _, t := range tokens {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tcreated=%s\n", t.ID, t.Name, t.Created.Format("2006-01-02"))
	}
	return nil
}

func runTokenCreate(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	attrs := map[string]any{
		"name":               args[0],
		"perm_create_domain": tokenCreateDomain,
		"perm_delete_domain": tokenDeleteDomain,
		"perm_manage_tokens": tokenManageTokens,
		"auto_policy":        tokenAutoPolicy,
	}
	if tokenMaxAge > 0 {
		attrs["max_age"] = tokenMaxAge
	}
	if tokenMaxUnusedPeriod > 0 {
		attrs["max_unused_period"] = tokenMaxUnusedPeriod
	}
	item := submitAndWait(f, queue.Submission{
		Priority: model.PriorityNormal,
		Category: "tokens",
		Action:   fmt.Sprintf("create token %s", args[0]),
		Request:  httpclient.NewCreateTokenRequest(attrs),
	})
	if item.Status != model.StatusOK {
		return fmt.Errorf("create token %s: %s", args[0], item.Err)
	}
	tok, err := httpclient.ParseToken(item.Response.Body)
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created token %s (id=%s)\nsecret (shown once): %s\n", tok.Name, tok.ID, tok.Secret)
	return nil
}

func runTokenGet(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	item := submitAndWait(f, queue.Submission{
		Priority: model.PriorityNormal,
		Category: "tokens",
		Action:   fmt.Sprintf("get token %s", args[0]),
		Request:  httpclient.NewGetTokenRequest(args[0]),
	})
	if item.Status != model.StatusOK {
		return fmt.Errorf("get token %s: %s", args[0], item.Err)
	}
	tok, err := httpclient.ParseToken(item.Response.Body)
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(tok)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tcreated=%s\n", tok.ID, tok.Name, tok.Created.Format("2006-01-02"))
	return nil
}

func runTokenUpdate(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	id, name := args[0], args[1]
	item := submitAndWait(f, queue.Submission{
		Priority: model.PriorityNormal,
		Category: "tokens",
		Action:   fmt.Sprintf("rename token %s", id),
		Request:  httpclient.NewUpdateTokenRequest(id, map[string]any{"name": name}),
	})
	if item.Status != model.StatusOK {
		return fmt.Errorf("update token %s: %s", id, item.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "renamed token %s to %s\n", id, name)
	return nil
}

func runTokenDelete(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	item := submitAndWait(f, queue.Submission{
		Priority: model.PriorityNormal,
		Category: "tokens",
		Action:   fmt.Sprintf("delete token %s", args[0]),
		Request:  httpclient.NewDeleteTokenRequest(args[0]),
	})
	if item.Status != model.StatusOK {
		return fmt.Errorf("delete token %s: %s", args[0], item.Err)
	}
	fmt.Fprintf(cmd.OutOrStdout(), "deleted token %s\n", args[0])
	return nil
}
