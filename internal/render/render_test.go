package render

import (
	"strings"
	"testing"
)

func TestHTML(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"heading", "# Warranty", []string{"<h1>Warranty</h1>"}},
		{"hard wraps", "line one\nline two", []string{"line one<br>\nline two"}},
		{"table", "| a | b |\n|---|---|\n| 1 | 2 |", []string{"<table>", "<td>1</td>"}},
		{"strikethrough", "~~old~~", []string{"<del>old</del>"}},
		{"raw html dropped", "<script>alert(1)</script>", []string{"<!-- raw HTML omitted -->"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := HTML(tt.in)
			if err != nil {
				t.Fatal(err)
			}
			for _, w := range tt.want {
				if !strings.Contains(got, w) {
					t.Errorf("HTML(%q) = %q, missing %q", tt.in, got, w)
				}
			}
			if strings.Contains(got, "<script>") {
				t.Errorf("raw script leaked: %q", got)
			}
		})
	}
}
