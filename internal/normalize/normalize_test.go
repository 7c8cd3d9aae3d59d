package normalize

import (
	"strings"
	"testing"
)

func TestBoardName(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Living Room", "Living Room"},
		{"  Living   Room  ", "Living Room"},
		{"Nursery\tIdeas\n", "Nursery Ideas"},
		{"Cafe\u0301 Corner", "Caf\u00e9 Corner"}, // decomposed accent composes
		{"Bell\x07 Room", "Bell Room"},
		{"", ""},
		{"   ", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := BoardName(tt.input); got != tt.expected {
				t.Errorf("BoardName(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestBoardName_Truncates(t *testing.T) {
	long := strings.Repeat("é", MaxBoardNameLength+20)
	got := BoardName(long)
	if n := len([]rune(got)); n != MaxBoardNameLength {
		t.Errorf("BoardName length = %d runes, want %d", n, MaxBoardNameLength)
	}
}

func TestSlugify(t *testing.T) {
	tests := []struct {
		input    string
		expected string
	}{
		{"Living Room", "living-room"},
		{"Living Room (2nd)", "living-room-2nd"},
		{"Café Nook", "cafe-nook"},
		{"--Boho//Patio--", "boho-patio"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.input, func(t *testing.T) {
			if got := Slugify(tt.input); got != tt.expected {
				t.Errorf("Slugify(%q) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestSearchText(t *testing.T) {
	if got := SearchText("  ｒａｔｔａｎ   chair "); got != "rattan chair" {
		t.Errorf("SearchText = %q", got)
	}
}
