package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/waferflow/statechart/internal/loader"
	"github.com/waferflow/statechart/internal/model"
)

func newValidateCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "validate <chart.yaml>",
		Short: "Load and structurally validate a chart definition",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			chart, err := loadChartFile(args[0])
			if err != nil {
				return err
			}
			if err := chart.Validate(); err != nil {
				return fmt.Errorf("invalid chart: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid\n", chart.ID)
			return nil
		},
	}
	return cmd
}

func loadChartFile(path string) (*model.Chart, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open %s: %w", path, err)
	}
	defer f.Close()

	id := chartIDFromPath(path)
	chart, err := loader.Load(f, id)
	if err != nil {
		return nil, fmt.Errorf("load %s: %w", path, err)
	}
	return chart, nil
}

// chartIDFromPath derives a default chart id from the filename when the
// chart source doesn't set its own id (the loader fills it in otherwise).
func chartIDFromPath(path string) string {
	base := filepath.Base(path)
	return strings.TrimSuffix(base, filepath.Ext(base))
}
