package auth

import "testing"

func TestNewConnectionCode_Length(t *testing.T) {
	code, err := NewConnectionCode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(code) != CodeLength {
		t.Fatalf("expected %d digits, got %d (%q)", CodeLength, len(code), code)
	}
}

func TestNewConnectionCode_DigitsOnly(t *testing.T) {
	code, err := NewConnectionCode()
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i, r := range code {
		if r < '0' || r > '9' {
			t.Fatalf("position %d: expected digit, got %q", i, r)
		}
	}
}

func TestNewConnectionCode_Varies(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 20; i++ {
		code, err := NewConnectionCode()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		seen[code] = true
	}
	// 20 draws from a 10^10 space colliding down to one value would mean the
	// generator is broken.
	if len(seen) < 2 {
		t.Fatalf("expected varied codes, got %d distinct values", len(seen))
	}
}
