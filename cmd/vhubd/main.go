// Command vhubd runs the hub server: an NMDC-protocol text/file-sharing
// hub listener plus its metrics and registration-store sidecars.
package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version is stamped at build time via -ldflags.
var Version = "dev"

func main() {
	root := &cobra.Command{
		Use:   "vhubd",
		Short: "NMDC hub server",
	}
	root.AddCommand(newServeCmd())
	root.AddCommand(newVersionCmd())
	root.AddCommand(newCheckConfigCmd())

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print the server version",
		RunE: func(cmd *cobra.Command, args []string) error {
			fmt.Println("vhubd " + Version)
			return nil
		},
	}
}
