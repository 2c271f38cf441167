package domain

import (
	"testing"
	"time"
)

func TestInvitationStatusLabels(t *testing.T) {
	want := map[InvitationStatus]string{
		InvitationPending:   "pending",
		InvitationAccepted:  "accepted",
		InvitationDeclined:  "declined",
		InvitationExpired:   "expired",
		InvitationStatus(9): "unknown",
	}
	for status, label := range want {
		if got := status.String(); got != label {
			t.Fatalf("status %d: got label %q, want %q", int(status), got, label)
		}
	}
}

func TestInvitationStatusIsTerminal(t *testing.T) {
	if InvitationPending.IsTerminal() {
		t.Fatal("pending is not terminal")
	}
	for _, status := range []InvitationStatus{InvitationAccepted, InvitationDeclined, InvitationExpired} {
		if !status.IsTerminal() {
			t.Fatalf("%v must be terminal", status)
		}
	}
}

func TestInvitationPastExpiry(t *testing.T) {
	created := time.Date(2026, 1, 1, 12, 0, 0, 0, time.UTC)
	inv := Invitation{From: 1, To: 2, CreatedAt: created, ExpiresAt: created.Add(2 * time.Minute)}

	if inv.PastExpiry(inv.ExpiresAt) {
		t.Fatal("invitation is still valid exactly at expiry")
	}
	if !inv.PastExpiry(inv.ExpiresAt.Add(time.Nanosecond)) {
		t.Fatal("invitation must be past expiry after the deadline")
	}
	if !inv.Involves(1) || !inv.Involves(2) || inv.Involves(3) {
		t.Fatal("Involves must match exactly the two parties")
	}
}
