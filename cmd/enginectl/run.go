package main

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/waferflow/statechart/internal/compiler"
	"github.com/waferflow/statechart/internal/mailbox"
)

func newRunCmd() *cobra.Command {
	var sends []string
	var duration time.Duration

	cmd := &cobra.Command{
		Use:   "run <chart.yaml>",
		Short: "Compile a chart, spawn one instance, and send it a sequence of events",
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

			m := mailbox.New(chart.ID, p)

			notifications := make(chan mailbox.Notification, 64)
			m.Subscribe(notifications)
			defer m.Unsubscribe(notifications)

			m.Start()
			defer m.Stop()

			out := cmd.OutOrStdout()
			go func() {
				for n := range notifications {
					fmt.Fprintln(out, formatNotification(n))
				}
			}()

			for _, spec := range sends {
				name, payload := splitSendSpec(spec)
				m.Send(name, payload)
				time.Sleep(5 * time.Millisecond)
			}

			if duration > 0 {
				time.Sleep(duration)
			}

			final := m.AskState()
			fmt.Fprintf(out, "final: %s %v\n", strings.Join(final.CurrentStates, ", "), final.Status)
			return nil
		},
	}

	cmd.Flags().StringArrayVar(&sends, "send", nil, "event to send, as NAME or NAME=payload (repeatable)")
	cmd.Flags().DurationVar(&duration, "wait", 200*time.Millisecond, "time to let the instance settle after sends")

	return cmd
}

// splitSendSpec parses "NAME" or "NAME=payload" into an event name and an
// untyped payload (always a string; richer payloads aren't expressible on
// the command line).
func splitSendSpec(spec string) (name string, payload any) {
	if idx := strings.IndexByte(spec, '='); idx >= 0 {
		return spec[:idx], spec[idx+1:]
	}
	return spec, nil
}
