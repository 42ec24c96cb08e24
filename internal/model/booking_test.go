package model

import "testing"

func TestCanTransition(t *testing.T) {
	allowed := []struct{ from, to string }{
		{BookingPending, BookingAwaitingPayment},
		{BookingPending, BookingCancelled},
		{BookingPending, BookingExpired},
		{BookingAwaitingPayment, BookingConfirmed},
		{BookingAwaitingPayment, BookingCancelled},
		{BookingAwaitingPayment, BookingExpired},
	}
	for _, e := range allowed {
		if !CanTransition(e.from, e.to) {
			t.Errorf("expected %s -> %s to be allowed", e.from, e.to)
		}
	}

	denied := []struct{ from, to string }{
		{BookingPending, BookingConfirmed}, // must pass through AWAITING_PAYMENT
		{BookingConfirmed, BookingCancelled},
		{BookingConfirmed, BookingPending},
		{BookingCancelled, BookingAwaitingPayment},
		{BookingExpired, BookingConfirmed},
		{BookingAwaitingPayment, BookingPending},
	}
	for _, e := range denied {
		if CanTransition(e.from, e.to) {
			t.Errorf("expected %s -> %s to be rejected", e.from, e.to)
		}
	}
}

func TestBookingTerminal(t *testing.T) {
	for _, s := range []string{BookingConfirmed, BookingCancelled, BookingExpired} {
		if !BookingTerminal(s) {
			t.Errorf("expected %s to be terminal", s)
		}
	}
	for _, s := range []string{BookingPending, BookingAwaitingPayment} {
		if BookingTerminal(s) {
			t.Errorf("expected %s to be non-terminal", s)
		}
	}
}

func TestSeatIDs(t *testing.T) {
	b := Booking{Seats: []SeatLine{{SeatID: 3}, {SeatID: 1}, {SeatID: 2}}}
	got := b.SeatIDs()
	want := []uint64{3, 1, 2}
	if len(got) != len(want) {
		t.Fatalf("expected %d seat ids, got %d", len(want), len(got))
	}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("seat id %d: expected %d, got %d", i, want[i], got[i])
		}
	}
}
