// Command aether-peer is a thin client of the Link API: load an
// identity, handshake with one peer over UDP, optionally authenticate
// and enable encryption, then pipe stdin/stdout through the Link. It
// is explicitly not part of the core per spec §1 — the library never
// imports this package — but every repo this size ships an
// entrypoint, so this one exists and stays thin.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/aethernet/aether/pkg/alog"
)

const version = "0.1.0"

func main() {
	alog.Banner("aether-peer", version)

	root := newRootCommand()
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newRootCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "aether-peer",
		Short:   "Establish and drive one Aether link to a peer",
		Version: version,
	}
	cmd.AddCommand(newConnectCommand())
	return cmd
}
