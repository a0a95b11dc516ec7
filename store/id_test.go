package store

import "testing"

func TestNewRunID_ReturnsNonEmptyUnique(t *testing.T) {
	a := NewRunID()
	b := NewRunID()
	if a == "" || b == "" {
		t.Fatal("NewRunID() returned an empty id")
	}
	if a == b {
		t.Fatal("NewRunID() returned the same id twice")
	}
	if len(a) != 26 {
		t.Errorf("expected a 26-character ULID, got %d characters: %s", len(a), a)
	}
}
