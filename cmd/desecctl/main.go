// Command desecctl is the non-UI front end for the deSEC core façade:
// every operation the desktop client's UI would trigger is reachable
// here as a subcommand, for scripting and for exercising the façade
// without a GUI toolkit.
package main

import (
	"fmt"
	"os"

	"desec-core/internal/cli"
)

func main() {
	if err := cli.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "desecctl:", err)
		os.Exit(1)
	}
}
