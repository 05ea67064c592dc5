// Package tui renders the ProductLens terminal UI with Charm libraries.
package tui

import (
	"slices"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Color palette
var (
	ColorPrimary   = lipgloss.AdaptiveColor{Light: "#7C3AED", Dark: "#A78BFA"} // Violet
	ColorSecondary = lipgloss.AdaptiveColor{Light: "#0EA5E9", Dark: "#38BDF8"} // Sky blue
	ColorAccent    = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"} // Amber

	ColorSuccess = lipgloss.AdaptiveColor{Light: "#10B981", Dark: "#34D399"}
	ColorWarning = lipgloss.AdaptiveColor{Light: "#F59E0B", Dark: "#FBBF24"}
	ColorError   = lipgloss.AdaptiveColor{Light: "#EF4444", Dark: "#F87171"}
	ColorInfo    = lipgloss.AdaptiveColor{Light: "#6366F1", Dark: "#818CF8"}

	ColorText   = lipgloss.AdaptiveColor{Light: "#1E293B", Dark: "#F1F5F9"}
	ColorSubtle = lipgloss.AdaptiveColor{Light: "#64748B", Dark: "#94A3B8"}
	ColorMuted  = lipgloss.AdaptiveColor{Light: "#94A3B8", Dark: "#64748B"}
	ColorBorder = lipgloss.AdaptiveColor{Light: "#CBD5E1", Dark: "#334155"}

	ColorBrand = lipgloss.AdaptiveColor{Light: "#DB2777", Dark: "#F472B6"}
)

// Base styles
var (
	TitleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorPrimary).
			MarginBottom(1)

	SubtitleStyle = lipgloss.NewStyle().
			Foreground(ColorSecondary).
			MarginBottom(1)

	BodyStyle = lipgloss.NewStyle().
			Foreground(ColorText)

	MutedStyle = lipgloss.NewStyle().
			Foreground(ColorMuted)

	LabelStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSubtle)

	SuccessStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorSuccess)

	ErrorStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(ColorError)

	WarningStyle = lipgloss.NewStyle().
			Foreground(ColorWarning)

	InfoStyle = lipgloss.NewStyle().
			Foreground(ColorInfo)

	BoxStyle = lipgloss.NewStyle().
			Border(lipgloss.RoundedBorder()).
			BorderForeground(ColorBorder).
			Padding(1, 2).
			MarginTop(1).
			MarginBottom(1)

	BadgeStyle = lipgloss.NewStyle().
			Padding(0, 1).
			Background(ColorPrimary).
			Foreground(lipgloss.Color("#FFFFFF"))

	BadgeWarningStyle = lipgloss.NewStyle().
				Padding(0, 1).
				Background(ColorWarning).
				Foreground(lipgloss.Color("#000000"))
)

var logo = `
  ___ ___  ___  ___  _   _  ___ _____ _    ___ _  _ ___
 | _ \ _ \/ _ \|   \| | | |/ __|_   _| |  | __| \| / __|
 |  _/   / (_) | |) | |_| | (__  | | | |__| _|| .' \__ \
 |_| |_|_\\___/|___/ \___/ \___| |_| |____|___|_|\_|___/
`

// Header returns the styled application banner.
func Header() string {
	return lipgloss.NewStyle().
		Foreground(ColorBrand).
		Bold(true).
		Render(logo)
}

// StepStatus colours status cards.
type StepStatus int

const (
	StepPending StepStatus = iota
	StepActive
	StepCompleted
	StepError
)

// Card renders a titled box.
func Card(title, content string, width int) string {
	titleStyle := lipgloss.NewStyle().
		Bold(true).
		Foreground(ColorPrimary).
		MarginBottom(1)

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(ColorBorder).
		Padding(1, 2).
		Width(width)

	return cardStyle.Render(titleStyle.Render(title) + "\n" + BodyStyle.Render(content))
}

// StatusCard renders a one or two line card whose border reflects status.
func StatusCard(icon, title, subtitle string, status StepStatus, width int) string {
	var borderColor lipgloss.AdaptiveColor
	var iconStyle lipgloss.Style

	switch status {
	case StepCompleted:
		borderColor = ColorSuccess
		iconStyle = lipgloss.NewStyle().Foreground(ColorSuccess)
	case StepActive:
		borderColor = ColorPrimary
		iconStyle = lipgloss.NewStyle().Foreground(ColorPrimary)
	case StepError:
		borderColor = ColorError
		iconStyle = lipgloss.NewStyle().Foreground(ColorError)
	default:
		borderColor = ColorBorder
		iconStyle = lipgloss.NewStyle().Foreground(ColorMuted)
	}

	cardStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		BorderForeground(borderColor).
		Padding(0, 2).
		Width(width)

	content := iconStyle.Render(icon) + " " + lipgloss.NewStyle().Bold(true).Foreground(ColorText).Render(title)
	if subtitle != "" {
		content += "\n   " + lipgloss.NewStyle().Foreground(ColorSubtle).Render(subtitle)
	}
	return cardStyle.Render(content)
}

// KeyHelp renders keyboard shortcut help sorted by key.
func KeyHelp(keys map[string]string) string {
	helpStyle := lipgloss.NewStyle().
		Foreground(ColorMuted).
		MarginTop(1)

	keyStyle := lipgloss.NewStyle().
		Foreground(ColorAccent).
		Bold(true)

	names := make([]string, 0, len(keys))
	for k := range keys {
		names = append(names, k)
	}
	slices.Sort(names)

	parts := make([]string, 0, len(names))
	for _, k := range names {
		parts = append(parts, keyStyle.Render(k)+MutedStyle.Render(" "+keys[k]))
	}

	sep := lipgloss.NewStyle().Foreground(ColorBorder).Render(" | ")
	return helpStyle.Render(strings.Join(parts, sep))
}
