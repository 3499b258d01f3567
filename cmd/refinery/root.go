package main

import (
	"github.com/spf13/cobra"
)

type rootFlags struct {
	verbose    bool
	noTUI      bool
	statusAddr string
}

func newRootCmd() *cobra.Command {
	flags := &rootFlags{}

	cmd := &cobra.Command{
		Use:           "refinery",
		Short:         "Refinery drives a fitting engine through a sequence of refinement steps",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().BoolVarP(&flags.verbose, "verbose", "v", false, "Enable verbose logging")
	cmd.PersistentFlags().BoolVar(&flags.noTUI, "no-tui", false, "Print plain progress even on a terminal")
	cmd.PersistentFlags().StringVar(&flags.statusAddr, "status-addr", "", "Serve run status and controls over HTTP on this address (e.g. 127.0.0.1:8089)")

	cmd.AddCommand(newRunCmd(flags))
	cmd.AddCommand(newBatchCmd(flags))
	cmd.AddCommand(newRenderCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}
