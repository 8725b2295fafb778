// cumulus: cumulative clipboard daemon.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	if err := newRootCmd().Execute(); err != nil {
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "cumulus",
		Short: "Cumulative clipboard",
		Long: `cumulus merges successive clipboard copies into one growing buffer, so a
single paste yields everything copied since the last clear. It can empty the
buffer shortly after each paste.

Run "cumulus run" to start the daemon. The other commands talk to it over the
local IPC socket, or over TLS with --server when it was started with --listen.
Bind "cumulus paste-signal" to your paste hotkey (skhd, xbindkeys,
AutoHotkey) to enable clear-on-paste.

Config file search order (first found wins):
  /etc/cumulus/cumulus.toml
  $HOME/.config/cumulus/cumulus.toml
  path supplied via --config

All flags can be set via CUMULUS_<FLAG> env vars or config-file keys.
See "cumulus run --help" for the full flag reference.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newRunCmd(),
		newStatusCmd(),
		newBufferCmd(),
		newClearCmd(),
		newPasteSignalCmd(),
		newSetCmd(),
		newWatchCmd(),
		newConfigCmd(),
		newVersionCmd(),
	)
	return root
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, _ []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "cumulus %s\n", Version)
		},
	}
}
