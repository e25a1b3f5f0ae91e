package ui

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSparkline(t *testing.T) {
	tests := []struct {
		name  string
		data  []float64
		width int
		want  string
	}{
		{"idle", []float64{0, 0, 0, 0, 0}, 5, "▁▁▁▁▁"},
		{"first sample padded left", []float64{100}, 5, "▁▁▁▁█"},
		{"ramp", []float64{1, 2, 3, 4, 5, 6, 7, 8}, 8, "▁▂▃▄▅▆▇█"},
		{"steady", []float64{5, 5, 5, 5}, 4, "████"},
		{"keeps newest samples", []float64{10, 20, 30, 40, 50}, 3, "▅▆█"},
		{"stall then resume", []float64{0, 0, 5}, 3, "▁▁█"},
		{"no width", []float64{1, 2, 3}, 0, ""},
		{"no data", nil, 2, "▁▁"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			assert.Equal(t, tt.want, Sparkline(tt.data, tt.width))
		})
	}
}
