package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waferflow/statechart/internal/compiler"
)

func newCompileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "compile <chart.yaml>",
		Short: "Validate and compile a chart, reporting its state count",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chart, err := loadChartFile(args[0])
			if err != nil {
				return err
			}
			tier, err := parseTier(tierFlag)
			if err != nil {
				return err
			}
			p, err := compiler.Compile(chart, tier)
			if err != nil {
				return fmt.Errorf("compile: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: compiled tier %s, %d states\n", chart.ID, p.Tier, len(p.AllPaths()))
			return nil
		},
	}
	return cmd
}

func parseTier(s string) (compiler.Tier, error) {
	switch s {
	case "A", "a":
		return compiler.TierA, nil
	case "B", "b":
		return compiler.TierB, nil
	case "C", "c":
		return compiler.TierC, nil
	default:
		return 0, fmt.Errorf("unknown tier %q: want A, B, or C", s)
	}
}
