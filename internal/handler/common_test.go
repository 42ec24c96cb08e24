package handler

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/dieuxuanhien/moviehub-SE-sub006/internal/model"
)

func TestDedupeSeatIDs(t *testing.T) {
	assert.Equal(t, []uint64{3, 1, 2}, dedupeSeatIDs([]uint64{3, 1, 3, 0, 2, 1}))
	assert.Empty(t, dedupeSeatIDs([]uint64{0, 0}))
	assert.Empty(t, dedupeSeatIDs(nil))
}

func TestSameSeatSet(t *testing.T) {
	assert.True(t, sameSeatSet([]uint64{1, 2, 3}, []uint64{3, 2, 1}))
	assert.False(t, sameSeatSet([]uint64{1, 2}, []uint64{1, 2, 3}))
	assert.False(t, sameSeatSet([]uint64{1, 2}, []uint64{1, 4}))
	assert.True(t, sameSeatSet(nil, nil))
}

func TestSeatLinesForDefaultsTicketType(t *testing.T) {
	hold := &model.Hold{SeatIDs: []uint64{10, 11}}
	lines, err := seatLinesFor(hold, []seatLineReq{
		{SeatID: 10},
		{SeatID: 11, TicketType: model.TicketChild},
	})
	assert.NoError(t, err)
	assert.Equal(t, []model.SeatLine{
		{SeatID: 10, TicketType: model.TicketAdult},
		{SeatID: 11, TicketType: model.TicketChild},
	}, lines)
}

func TestValidateConcessionsQuantityBound(t *testing.T) {
	assert.NoError(t, validateConcessions(nil))
	assert.NoError(t, validateConcessions([]concessionReq{{ConcessionID: 1, Quantity: maxConcessionQuantity}}))
	assert.Error(t, validateConcessions([]concessionReq{{ConcessionID: 1, Quantity: maxConcessionQuantity + 1}}))
}

func TestSeatLinesForMustCoverHold(t *testing.T) {
	hold := &model.Hold{SeatIDs: []uint64{10, 11}}

	_, err := seatLinesFor(hold, []seatLineReq{{SeatID: 10}})
	assert.Error(t, err, "fewer lines than held seats")

	_, err = seatLinesFor(hold, []seatLineReq{{SeatID: 10}, {SeatID: 99}})
	assert.Error(t, err, "seat outside the hold")

	_, err = seatLinesFor(hold, []seatLineReq{{SeatID: 10}, {SeatID: 10}})
	assert.Error(t, err, "duplicate seat")
}
