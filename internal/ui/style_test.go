package ui_test

import (
	"testing"

	"github.com/charmbracelet/lipgloss"
	"github.com/stretchr/testify/assert"

	"github.com/bamsammich/rfile/internal/config"
	"github.com/bamsammich/rfile/internal/ui"
)

func TestRenderStat(t *testing.T) {
	out := ui.RenderStat(ui.StatInfo{
		Location:  "rfile://mythbox:7818/rec/show.ts",
		Mode:      "read-only",
		Available: 1500,
		Total:     3000,
		Active:    true,
		Digest:    "abc123",
	})

	assert.Contains(t, out, "rfile://mythbox:7818/rec/show.ts")
	assert.Contains(t, out, "1,500 bytes")
	assert.Contains(t, out, "3,000 bytes")
	assert.Contains(t, out, "growing")
	assert.Contains(t, out, "abc123")

	out = ui.RenderStat(ui.StatInfo{Location: "x", Available: 1, Total: 1})
	assert.Contains(t, out, "complete")
	assert.NotContains(t, out, "digest")
}

func TestApplyTheme(t *testing.T) {
	orig := ui.ColorRed
	t.Cleanup(func() {
		red := string(orig)
		ui.ApplyTheme(config.ThemeConfig{Red: &red})
	})

	red := "#ff0000"
	ui.ApplyTheme(config.ThemeConfig{Red: &red})
	assert.Equal(t, lipgloss.Color("#ff0000"), ui.ColorRed)
	assert.Contains(t, ui.RenderError("boom"), "error: boom")
}
