package ui

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/bamsammich/rfile/internal/config"
)

// Catppuccin Mocha palette; mutable so config can override.
var (
	ColorGreen  = lipgloss.Color("#a6e3a1")
	ColorBlue   = lipgloss.Color("#89b4fa")
	ColorYellow = lipgloss.Color("#f9e2af")
	ColorRed    = lipgloss.Color("#f38ba8")
	ColorMuted  = lipgloss.Color("#5a6278")
	ColorBright = lipgloss.Color("#cdd6f4")
)

// Pre-built styles, rebuilt by rebuildStyles() after color changes.
var (
	styleLabel  lipgloss.Style
	styleValue  lipgloss.Style
	styleHeader lipgloss.Style
	styleActive lipgloss.Style
	styleStatic lipgloss.Style
	styleError  lipgloss.Style
	styleOK     lipgloss.Style
)

func init() {
	rebuildStyles()
}

func rebuildStyles() {
	styleLabel = lipgloss.NewStyle().Foreground(ColorMuted).Width(11)
	styleValue = lipgloss.NewStyle().Foreground(ColorBright)
	styleHeader = lipgloss.NewStyle().Bold(true).Foreground(ColorBlue)
	styleActive = lipgloss.NewStyle().Foreground(ColorYellow).Bold(true)
	styleStatic = lipgloss.NewStyle().Foreground(ColorGreen)
	styleError = lipgloss.NewStyle().Foreground(ColorRed)
	styleOK = lipgloss.NewStyle().Foreground(ColorGreen)
}

// ApplyTheme overrides colors from a config ThemeConfig and rebuilds all styles.
func ApplyTheme(tc config.ThemeConfig) {
	if tc.Green != nil {
		ColorGreen = lipgloss.Color(*tc.Green)
	}
	if tc.Blue != nil {
		ColorBlue = lipgloss.Color(*tc.Blue)
	}
	if tc.Yellow != nil {
		ColorYellow = lipgloss.Color(*tc.Yellow)
	}
	if tc.Red != nil {
		ColorRed = lipgloss.Color(*tc.Red)
	}
	if tc.Muted != nil {
		ColorMuted = lipgloss.Color(*tc.Muted)
	}
	if tc.Bright != nil {
		ColorBright = lipgloss.Color(*tc.Bright)
	}
	rebuildStyles()
}

// StatInfo describes a remote file for the stat command.
type StatInfo struct {
	Location  string
	Mode      string
	Available int64
	Total     int64
	Active    bool
	Digest    string
}

// RenderStat formats StatInfo as an aligned, styled block.
func RenderStat(info StatInfo) string {
	state := styleStatic.Render("complete")
	if info.Active {
		state = styleActive.Render("growing")
	}

	rows := []string{
		styleHeader.Render(info.Location),
		row("mode", styleValue.Render(info.Mode)),
		row("available", styleValue.Render(fmt.Sprintf("%s (%s bytes)",
			FormatBytes(info.Available), FormatCount(info.Available)))),
		row("total", styleValue.Render(fmt.Sprintf("%s (%s bytes)",
			FormatBytes(info.Total), FormatCount(info.Total)))),
		row("state", state),
	}
	if info.Digest != "" {
		rows = append(rows, row("digest", styleValue.Render(info.Digest)))
	}
	return lipgloss.JoinVertical(lipgloss.Left, rows...)
}

func row(label, value string) string {
	return lipgloss.JoinHorizontal(lipgloss.Top, styleLabel.Render(label), value)
}

// RenderError styles an error message for the terminal.
func RenderError(msg string) string {
	return styleError.Render("error: " + strings.TrimSpace(msg))
}

// RenderOK styles a success message for the terminal.
func RenderOK(msg string) string {
	return styleOK.Render(msg)
}
