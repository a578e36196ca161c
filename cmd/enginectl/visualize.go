package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/waferflow/statechart/internal/compiler"
	"github.com/waferflow/statechart/internal/production"
)

func newVisualizeCmd() *cobra.Command {
	var format string

	cmd := &cobra.Command{
		Use:   "visualize <chart.yaml>",
		Short: "Export a chart as Graphviz DOT or a JSON state listing",
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

			v := &production.DefaultVisualizer{}
			switch format {
			case "dot":
				fmt.Fprint(cmd.OutOrStdout(), v.ExportDOT(p, nil))
			case "json":
				data, err := v.ExportJSON(p)
				if err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), string(data))
			default:
				return fmt.Errorf("unknown --format %q: want dot or json", format)
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&format, "format", "dot", "output format: dot or json")
	return cmd
}
