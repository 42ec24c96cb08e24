package model

import (
	"testing"
	"time"
)

func TestHoldExpiry(t *testing.T) {
	now := time.Date(2026, 2, 10, 18, 0, 0, 0, time.UTC)
	h := Hold{Status: HoldActive, ExpiresAt: now.Add(5 * time.Minute)}

	if h.ExpiredAt(now) {
		t.Fatal("hold should not be expired before its deadline")
	}
	if !h.ActiveAt(now) {
		t.Fatal("unexpired ACTIVE hold should be active")
	}

	// Expiry is inclusive at the boundary instant.
	if !h.ExpiredAt(now.Add(5 * time.Minute)) {
		t.Fatal("hold should be expired exactly at its deadline")
	}
	if h.ActiveAt(now.Add(6 * time.Minute)) {
		t.Fatal("lapsed hold should not be active")
	}
}

func TestHoldTerminalStatusNeverActive(t *testing.T) {
	now := time.Date(2026, 2, 10, 18, 0, 0, 0, time.UTC)
	for _, status := range []string{HoldReleased, HoldExpired, HoldConverted} {
		h := Hold{Status: status, ExpiresAt: now.Add(time.Hour)}
		if h.ActiveAt(now) {
			t.Errorf("%s hold should not be active even before expiry", status)
		}
	}
}

func TestRenewedUntilExtendsFromNow(t *testing.T) {
	created := time.Date(2026, 2, 10, 18, 0, 0, 0, time.UTC)
	ttl := 5 * time.Minute

	// Renewing two minutes in gives a full TTL from the renewal
	// instant, not from creation.
	renewAt := created.Add(2 * time.Minute)
	got := RenewedUntil(renewAt, ttl)
	want := renewAt.Add(ttl)
	if !got.Equal(want) {
		t.Fatalf("expected renewal until %v, got %v", want, got)
	}
	if !got.After(created.Add(ttl)) {
		t.Fatal("renewal should extend past the original expiry")
	}
}

func TestStatusForReason(t *testing.T) {
	cases := map[string]string{
		ReleaseUserCancelled: HoldReleased,
		ReleaseExpired:       HoldExpired,
		ReleaseSuperseded:    HoldConverted,
		"anything-else":      HoldReleased,
	}
	for reason, want := range cases {
		if got := StatusForReason(reason); got != want {
			t.Errorf("reason %q: expected %s, got %s", reason, want, got)
		}
	}
}

func TestHeldBy(t *testing.T) {
	holdID := "c7f2b2a4"
	other := "deadbeef"
	s := ShowtimeSeat{Status: SeatStateHeld, HoldID: &holdID}
	if !s.HeldBy(holdID) {
		t.Fatal("seat should report held by its own hold")
	}
	if s.HeldBy(other) {
		t.Fatal("seat should not report held by a different hold")
	}
	s.Status = SeatStateConfirmed
	if s.HeldBy(holdID) {
		t.Fatal("confirmed seat is no longer held")
	}
}
