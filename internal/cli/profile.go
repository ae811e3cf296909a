package cli

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"
)

var profileCmd = &cobra.Command{
	Use:   "profile",
	Short: "Manage desecctl profiles",
}

var profileListCmd = &cobra.Command{
	Use:   "list",
	Short: "List known profiles",
	RunE:  runProfileList,
}

var profileCreateCmd = &cobra.Command{
	Use:   "create NAME DISPLAY_NAME",
	Short: "Create a new profile",
	Args:  cobra.ExactArgs(2),
	RunE:  runProfileCreate,
}

var profileSwitchCmd = &cobra.Command{
	Use:   "switch NAME",
	Short: "Switch the active profile",
	Args:  cobra.ExactArgs(1),
	RunE:  runProfileSwitch,
}

func init() {
	rootCmd.AddCommand(profileCmd)
	profileCmd.AddCommand(profileListCmd, profileCreateCmd, profileSwitchCmd)
}

func runProfileList(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	profiles, err := f.Profiles()
	if err != nil {
		return err
	}
	if jsonOutput {
		return json.NewEncoder(cmd.OutOrStdout()).Encode(profiles)
	}
	for _, p := range profiles {
		fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\tlast_used=%s\n", p.Name, p.DisplayName, p.LastUsed.Format("2006-01-02 15:04"))
	}
	return nil
}

func runProfileCreate(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	meta, err := f.CreateProfile(args[0], args[1])
	if err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "created profile %s (%s)\n", meta.Name, meta.DisplayName)
	return nil
}

func runProfileSwitch(cmd *cobra.Command, args []string) error {
	f, err := ensureFacade()
	if err != nil {
		return err
	}
	if err := f.SwitchProfile(args[0], ""); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "switched to %s\n", args[0])
	return nil
}
