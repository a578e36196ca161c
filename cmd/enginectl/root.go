package main

import (
	"github.com/spf13/cobra"
)

var (
	tierFlag string
)

func newRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:           "enginectl",
		Short:         "Inspect, compile, and run statechart definitions",
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	root.PersistentFlags().StringVar(&tierFlag, "tier", "A", "compiler tier to use: A, B, or C")

	root.AddCommand(newValidateCmd())
	root.AddCommand(newCompileCmd())
	root.AddCommand(newRunCmd())
	root.AddCommand(newVisualizeCmd())

	return root
}
