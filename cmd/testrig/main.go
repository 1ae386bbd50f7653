// Command testrig runs the electrical testing training rig: an HTTP API over
// simulated sessions, a scripted walkthrough, and catalog tooling.
package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"
)

var exitFunc = os.Exit

func main() {
	exitFunc(cli(os.Args[1:], os.Stdout, os.Stderr))
}

func cli(args []string, stdout, stderr io.Writer) int {
	root := newRootCmd()
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)
	if err := root.Execute(); err != nil {
		if _, writeErr := fmt.Fprintf(stderr, "testrig: %v\n", err); writeErr != nil {
			return 1
		}
		return 1
	}
	return 0
}

type rootFlags struct {
	configPath string
	verbose    bool
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}
	root := &cobra.Command{
		Use:           "testrig",
		Short:         "Guided electrical installation testing simulator",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&flags.configPath, "config", "", "path to testrig YAML config")
	root.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "enable debug logging")
	root.AddCommand(newServeCmd(flags), newSimulateCmd(flags), newCatalogCmd(flags))
	return root
}
