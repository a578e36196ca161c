package main

import (
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/waferflow/statechart/internal/mailbox"
)

var (
	colorCyan  = lipgloss.Color("14")
	colorGreen = lipgloss.Color("82")
	colorRed   = lipgloss.Color("196")
	colorDim   = lipgloss.Color("240")

	styleState = lipgloss.NewStyle().Foreground(colorCyan)
	styleOK    = lipgloss.NewStyle().Foreground(colorGreen)
	styleErr   = lipgloss.NewStyle().Foreground(colorRed).Bold(true)
	styleDim   = lipgloss.NewStyle().Foreground(colorDim)
)

func formatNotification(n mailbox.Notification) string {
	prefix := styleDim.Render(n.InstanceID + " ▸")
	switch n.Kind {
	case "Diagnostic":
		return prefix + " " + styleErr.Render(n.Kind) + " " + n.Detail
	case "StateChanged":
		return prefix + " " + styleOK.Render(n.Kind) + " " + styleState.Render(strings.Join(n.Snapshot.CurrentStates, ", "))
	default:
		return prefix + " " + n.Kind + " " + n.Detail
	}
}
