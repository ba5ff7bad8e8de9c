package security

import (
	"errors"
	"testing"
)

func TestHasher_HashAndCompare(t *testing.T) {
	h := NewHasher(4, 6)
	password := []byte("secret123")
	hash, err := h.Hash(password)
	if err != nil {
		t.Fatalf("Hash: %v", err)
	}
	if hash == "" {
		t.Fatal("Hash returned empty")
	}
	if err := h.Compare(hash, password); err != nil {
		t.Fatalf("Compare: %v", err)
	}
}

func TestHasher_CompareWrongPassword(t *testing.T) {
	h := NewHasher(4, 6)
	hash, _ := h.Hash([]byte("secret123"))
	if err := h.Compare(hash, []byte("wrong")); err == nil {
		t.Fatal("Compare with wrong password should fail")
	}
}

func TestHasher_CompareUnusable(t *testing.T) {
	h := NewHasher(4, 6)
	for _, hash := range []string{"", "!0123456789abcdef"} {
		if err := h.Compare(hash, []byte("")); !errors.Is(err, ErrUnusablePassword) {
			t.Errorf("Compare(%q) = %v, want ErrUnusablePassword", hash, err)
		}
	}
}

func TestHasher_Cost(t *testing.T) {
	h := NewHasher(12, 6)
	if h.Cost != 12 {
		t.Errorf("Cost want 12, got %d", h.Cost)
	}
	h0 := NewHasher(0, 0)
	if h0.Cost < 4 {
		t.Errorf("zero cost should be clamped to at least MinCost, got %d", h0.Cost)
	}
	if h0.MinLength != 6 {
		t.Errorf("MinLength want 6, got %d", h0.MinLength)
	}
	if hi := NewHasher(99, 6); hi.Cost != 31 {
		t.Errorf("cost should clamp to 31, got %d", hi.Cost)
	}
}

func TestHasher_Check(t *testing.T) {
	h := NewHasher(4, 6)
	tests := []struct {
		password string
		want     bool
	}{
		{"", false},
		{"abcde", false},
		{"abcdef", true},
		{"ééééé", false},
		{"éééééé", true},
		{"a much longer password", true},
	}
	for _, tt := range tests {
		if got := h.Check(tt.password); got != tt.want {
			t.Errorf("Check(%q) = %v, want %v", tt.password, got, tt.want)
		}
	}
}
