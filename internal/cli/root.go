// Package cli provides the desecctl command-line front end over the core
// façade. It is the non-UI harness for every façade operation: one flag
// set, one façade instance opened lazily from --profile-root, and one
// cobra command per façade capability.
package cli

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"desec-core/internal/facade"
)

var (
	profileRoot string
	profileName string
	jsonOutput  bool

	app *facade.Facade
)

var rootCmd = &cobra.Command{
	Use:           "desecctl",
	Short:         "Manage deSEC DNS zones, records, and tokens from the command line",
	Version:       "dev",
	SilenceErrors: true,
	SilenceUsage:  true,
}

// Execute runs the root command.
func Execute() error {
	defer func() {
		if app != nil {
			if err := app.Close(); err != nil {
				fmt.Fprintf(os.Stderr, "desecctl: %v\n", err)
			}
		}
	}()
	return rootCmd.Execute()
}

func init() {
	home, _ := os.UserHomeDir()
	defaultRoot := home + "/.config/desecctl"

	rootCmd.PersistentFlags().StringVar(&profileRoot, "profile-root", defaultRoot, "directory holding profiles.json and the profiles/ tree")
	rootCmd.PersistentFlags().StringVar(&profileName, "profile", "", "profile to switch to before running the command")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "emit machine-readable JSON instead of tables")
}

// ensureFacade opens the façade exactly once per process, optionally
// switching to --profile first. Most commands call this before doing
// anything else.
func ensureFacade() (*facade.Facade, error) {
	if app != nil {
		return app, nil
	}
	f, err := facade.Open(profileRoot, facade.Signals{
		RateLimited: func(retryAfter int) {
			fmt.Fprintf(os.Stderr, "rate limited, cooling down for %ds\n", retryAfter)
		},
		Notify: func(level, title, message string) {
			fmt.Fprintf(os.Stderr, "[%s] %s: %s\n", level, title, message)
		},
	})
	if err != nil {
		return nil, fmt.Errorf("open profile store at %s: %w", profileRoot, err)
	}
	if profileName != "" {
		if err := f.SwitchProfile(profileName, os.Getenv("DESECCTL_PASSWORD")); err != nil {
			return nil, fmt.Errorf("switch to profile %q: %w", profileName, err)
		}
	}
	app = f
	return app, nil
}
