// clipstash: clipboard history daemon and popup.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is set at build time via -ldflags "-X main.Version=x.y.z".
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "clipstash",
		Short: "Clipboard history with a terminal popup",
		Long: `clipstash keeps the last 50 things you copied.

Run "clipstash serve" once per login session. It owns the history, persists it,
and serves it on a local Unix socket (and optionally TCP). While
"clipstash popup" is open it watches the system clipboard and records every new
text or image; closing the popup stops the capture.

Config file search order (first found wins):
  /etc/clipstash/clipstash.toml
  $HOME/.config/clipstash/clipstash.toml
  path supplied via --config

All flags can be set via CLIPSTASH_<FLAG> env vars or config-file keys.`,
		SilenceUsage: true,
	}

	root.AddCommand(
		newServeCmd(),
		newPopupCmd(),
		newWatchCmd(),
		newListCmd(),
		newAddCmd(),
		newDeleteCmd(),
		newReloadCmd(),
		newStatusCmd(),
		newVersionCmd(),
	)

	if err := root.Execute(); err != nil {
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Args:  cobra.NoArgs,
		Run: func(_ *cobra.Command, _ []string) {
			fmt.Printf("clipstash %s\n", Version)
		},
	}
}
