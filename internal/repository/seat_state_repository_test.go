package repository

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
)

func strp(s string) *string { return &s }

func TestCounterDelta(t *testing.T) {
	assert.Equal(t, -1, counterDelta(model.SeatStateAvailable, model.SeatStateHeld))
	assert.Equal(t, 1, counterDelta(model.SeatStateHeld, model.SeatStateAvailable))
	assert.Equal(t, 0, counterDelta(model.SeatStateHeld, model.SeatStateConfirmed))
	assert.Equal(t, 0, counterDelta(model.SeatStateAvailable, model.SeatStateAvailable))
}

func TestConflictSetMissingRow(t *testing.T) {
	got := conflictSet([]uint64{1, 2}, []model.ShowtimeSeat{
		{SeatID: 1, Status: model.SeatStateAvailable},
	}, Guard{Status: model.SeatStateAvailable}, Target{Status: model.SeatStateHeld, HoldID: strp("new")})
	assert.Equal(t, []uint64{2}, got)
}

func TestConflictSetStatusMismatch(t *testing.T) {
	got := conflictSet([]uint64{1, 2, 3}, []model.ShowtimeSeat{
		{SeatID: 1, Status: model.SeatStateAvailable},
		{SeatID: 2, Status: model.SeatStateHeld, HoldID: strp("h-1")},
		{SeatID: 3, Status: model.SeatStateConfirmed},
	}, Guard{Status: model.SeatStateAvailable}, Target{Status: model.SeatStateHeld, HoldID: strp("new")})
	assert.Equal(t, []uint64{2, 3}, got)
}

func TestConflictSetHolderGuard(t *testing.T) {
	states := []model.ShowtimeSeat{
		{SeatID: 1, Status: model.SeatStateHeld, HoldID: strp("mine")},
		{SeatID: 2, Status: model.SeatStateHeld, HoldID: strp("theirs")},
	}
	target := Target{Status: model.SeatStateConfirmed}

	got := conflictSet([]uint64{1, 2}, states, Guard{Status: model.SeatStateHeld, HoldID: strp("mine")}, target)
	assert.Equal(t, []uint64{2}, got, "foreign holder must conflict")

	got = conflictSet([]uint64{1, 2}, states, Guard{Status: model.SeatStateHeld, AnyOwn: true}, target)
	assert.Empty(t, got, "AnyOwn skips the holder check")
}

func TestConflictSetSkipsRowsAlreadyMoved(t *testing.T) {
	// After a partial UPDATE, seats the transition itself moved match
	// the target; only the genuinely contested seat may be reported.
	states := []model.ShowtimeSeat{
		{SeatID: 1, Status: model.SeatStateHeld, HoldID: strp("new")},
		{SeatID: 2, Status: model.SeatStateHeld, HoldID: strp("theirs")},
		{SeatID: 3, Status: model.SeatStateHeld, HoldID: strp("new")},
	}
	got := conflictSet([]uint64{1, 2, 3}, states,
		Guard{Status: model.SeatStateAvailable},
		Target{Status: model.SeatStateHeld, HoldID: strp("new")})
	assert.Equal(t, []uint64{2}, got)
}

func TestSameHolder(t *testing.T) {
	assert.True(t, sameHolder(nil, nil))
	assert.True(t, sameHolder(strp("a"), strp("a")))
	assert.False(t, sameHolder(strp("a"), strp("b")))
	assert.False(t, sameHolder(nil, strp("a")))
	assert.False(t, sameHolder(strp("a"), nil))
}

func TestPlaceholders(t *testing.T) {
	assert.Equal(t, "?", placeholders(1))
	assert.Equal(t, "?,?,?", placeholders(3))
}

func TestAsSeatConflict(t *testing.T) {
	base := &SeatConflictError{ShowtimeID: 7, SeatIDs: []uint64{4, 5}}
	wrapped := fmt.Errorf("transition failed: %w", base)

	sc, ok := AsSeatConflict(wrapped)
	assert.True(t, ok)
	assert.Equal(t, uint64(7), sc.ShowtimeID)
	assert.Equal(t, []uint64{4, 5}, sc.SeatIDs)
	assert.Contains(t, sc.Error(), "4,5")

	_, ok = AsSeatConflict(fmt.Errorf("plain"))
	assert.False(t, ok)
}
