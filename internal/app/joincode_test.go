package app

import (
	"strings"
	"testing"
)

func TestNewJoinCodeShape(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code := NewJoinCode()
		if len(code) != joinCodeLength {
			t.Fatalf("expected %d characters, got %q", joinCodeLength, code)
		}
		for _, c := range code {
			if !strings.ContainsRune(joinCodeAlphabet, c) {
				t.Fatalf("code %q contains %q outside the alphabet", code, c)
			}
		}
		seen[code] = true
	}
	if len(seen) < 2 {
		t.Fatalf("codes should vary, got %d distinct of 100", len(seen))
	}
}
