package cmd

import (
	"testing"

	"github.com/harborml/skiff/internal/output"
)

func TestParseColorMode(t *testing.T) {
	tests := []struct {
		input string
		want  output.ColorMode
	}{
		{"auto", output.ColorAuto},
		{"always", output.ColorAlways},
		{"never", output.ColorNever},
		{"", output.ColorAuto},
		{"bogus", output.ColorAuto},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := parseColorMode(tt.input); got != tt.want {
				t.Errorf("parseColorMode(%q) = %v, want %v", tt.input, got, tt.want)
			}
		})
	}
}
