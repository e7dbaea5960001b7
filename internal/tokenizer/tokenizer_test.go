package tokenizer

import "testing"

func TestWhitespace_Count(t *testing.T) {
	tests := []struct {
		text string
		want int
	}{
		{"", 0},
		{"one", 1},
		{"  two   words\n", 2},
		{"a\tb\nc d", 4},
	}
	for _, tt := range tests {
		if got := (Whitespace{}).Count(tt.text); got != tt.want {
			t.Errorf("Count(%q)=%d, want %d", tt.text, got, tt.want)
		}
	}
}

func TestNew_unknownEncoding(t *testing.T) {
	if _, err := New("no-such-encoding"); err == nil {
		t.Error("expected error for unknown encoding")
	}
	tok := NewOrFallback("no-such-encoding")
	if _, ok := tok.(Whitespace); !ok {
		t.Errorf("expected whitespace fallback, got %T", tok)
	}
}
