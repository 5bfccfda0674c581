package storage

import (
	"testing"
	"time"
)

func TestNewIDIsMonotonicWithinMillisecond(t *testing.T) {
	at := time.Date(2026, 1, 2, 3, 4, 5, 0, time.UTC)
	prev := NewID(at)
	for i := 0; i < 100; i++ {
		next := NewID(at)
		if next <= prev {
			t.Fatalf("id %s not greater than %s", next, prev)
		}
		if !ValidID(next) {
			t.Fatalf("invalid id %s", next)
		}
		prev = next
	}
}

func TestValidIDRejectsGarbage(t *testing.T) {
	for _, s := range []string{"", "abc", "01ARZ3NDEKTSV4RRFFQ69G5FA!"} {
		if ValidID(s) {
			t.Fatalf("ValidID(%q) = true", s)
		}
	}
}

func TestNormalizeSlug(t *testing.T) {
	if got := NormalizeSlug("  Acme.Example.COM "); got != "acme.example.com" {
		t.Fatalf("NormalizeSlug = %q", got)
	}
}
