package core

import "testing"

func TestRateLimiterEnforcesPerRoundCap(t *testing.T) {
	rl := NewRateLimiter(2)
	if err := rl.Enforce("rOwner", "1"); err != nil {
		t.Fatalf("first op in round should pass: %v", err)
	}
	if err := rl.Enforce("rOwner", "1"); err != nil {
		t.Fatalf("second op in round should pass: %v", err)
	}
	if err := rl.Enforce("rOwner", "1"); err == nil {
		t.Fatalf("third op in the same round should be rejected")
	}
}

func TestRateLimiterResetsOnNewRound(t *testing.T) {
	rl := NewRateLimiter(1)
	if err := rl.Enforce("rOwner", "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rl.Enforce("rOwner", "1"); err == nil {
		t.Fatalf("expected the limit to be hit within round 1")
	}
	if err := rl.Enforce("rOwner", "2"); err != nil {
		t.Fatalf("a new round should reset every owner's count: %v", err)
	}
}

func TestRateLimiterTracksOwnersIndependently(t *testing.T) {
	rl := NewRateLimiter(1)
	if err := rl.Enforce("rOwnerA", "1"); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if err := rl.Enforce("rOwnerB", "1"); err != nil {
		t.Fatalf("a different owner must have its own budget: %v", err)
	}
}
