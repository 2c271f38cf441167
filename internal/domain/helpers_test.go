package domain

import (
	"math"
	"math/rand"
	"testing"
)

func TestClamp(t *testing.T) {
	tests := []struct {
		name      string
		v, lo, hi float64
		want      float64
	}{
		{name: "inside", v: 5, lo: 0, hi: 10, want: 5},
		{name: "below", v: -1, lo: 0, hi: 10, want: 0},
		{name: "above", v: 11, lo: 0, hi: 10, want: 10},
		{name: "on lower bound", v: 0, lo: 0, hi: 10, want: 0},
		{name: "on upper bound", v: 10, lo: 0, hi: 10, want: 10},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Clamp(tt.v, tt.lo, tt.hi); got != tt.want {
				t.Fatalf("Clamp(%v, %v, %v) = %v, want %v", tt.v, tt.lo, tt.hi, got, tt.want)
			}
		})
	}
}

func TestServeVelocityIsDiagonal(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	seenLeft, seenRight := false, false
	for i := 0; i < 200; i++ {
		v := ServeVelocity(rng, 300)
		if speed := math.Hypot(v.X, v.Y); math.Abs(speed-300) > 1e-9 {
			t.Fatalf("speed = %v, want 300", speed)
		}
		if v.X == 0 || v.Y == 0 {
			t.Fatalf("serve must be diagonal, got %+v", v)
		}
		if math.Abs(v.Y) > math.Abs(v.X)+1e-9 {
			t.Fatalf("serve steeper than 45 degrees: %+v", v)
		}
		if v.X < 0 {
			seenLeft = true
		} else {
			seenRight = true
		}
	}
	if !seenLeft || !seenRight {
		t.Fatal("expected serves toward both sides")
	}
}

func TestUserIDValid(t *testing.T) {
	if UserID(0).Valid() || UserID(-1).Valid() {
		t.Fatal("non-positive ids must be invalid")
	}
	if !UserID(1).Valid() {
		t.Fatal("positive id must be valid")
	}
}

func TestNewIDsAreUnique(t *testing.T) {
	if NewInvitationID() == NewInvitationID() {
		t.Fatal("invitation ids must differ")
	}
	if NewSessionID() == NewSessionID() {
		t.Fatal("session ids must differ")
	}
}
