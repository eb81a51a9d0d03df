package service

import (
	"context"
	"testing"

	"github.com/samber/lo"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/turf-booking/internal/model"
)

func TestSlotCreateAndUpdate(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	sl, err := h.slots.Create(ctx, SlotInput{GameID: 1, StartHour: 23, EndHour: 24, Price: 70})
	require.NoError(t, err)
	assert.Equal(t, "11:00 PM - 12:00 AM", sl.Label)
	assert.True(t, sl.Active)

	_, err = h.slots.Create(ctx, SlotInput{GameID: 1, StartHour: 23, EndHour: 24, Price: 70})
	assert.ErrorIs(t, err, ErrSlotExists)
	_, err = h.slots.Create(ctx, SlotInput{GameID: 1, StartHour: 9, EndHour: 9})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = h.slots.Create(ctx, SlotInput{GameID: 1, StartHour: 9, EndHour: 10, Price: -1})
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = h.slots.Create(ctx, SlotInput{GameID: 9, StartHour: 9, EndHour: 10})
	assert.ErrorIs(t, err, ErrGameNotFound)

	off := false
	upd, err := h.slots.Update(ctx, sl.ID, nil, &off)
	require.NoError(t, err)
	assert.False(t, upd.Active)
	assert.Equal(t, int64(70), upd.Price)

	neg := int64(-5)
	_, err = h.slots.Update(ctx, sl.ID, &neg, nil)
	assert.ErrorIs(t, err, ErrInvalidInput)
	_, err = h.slots.Update(ctx, 999, nil, &off)
	assert.ErrorIs(t, err, ErrSlotNotFound)
}

func TestSlotDeleteGuardsBookings(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	sl := h.db.addSlot(1, 18, 19, 60, true)
	b, err := h.bookings.CreateBooking(ctx, NewBooking{Date: "2026-05-01", GameID: 1, SlotIDs: []uint64{sl.ID}})
	require.NoError(t, err)

	assert.ErrorIs(t, h.slots.Delete(ctx, sl.ID), ErrSlotInUse)
	_, err = h.slots.RemoveAll(ctx, 1)
	assert.ErrorIs(t, err, ErrSlotInUse)

	_, err = h.bookings.SetStatus(ctx, b.Code, model.BookingCancelled)
	require.NoError(t, err)
	assert.NoError(t, h.slots.Delete(ctx, sl.ID))
	assert.ErrorIs(t, h.slots.Delete(ctx, sl.ID), ErrSlotNotFound)
}

func TestGenerateSlots(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	created, err := h.slots.Generate(ctx, GenerateInput{GameID: 1, OpenHour: 6, CloseHour: 22, DurationMins: 60, DayPrice: 50, PeakPrice: 80})
	require.NoError(t, err)
	require.Len(t, created, 16)
	byStart := lo.KeyBy(created, func(s model.Slot) int { return s.StartHour })
	assert.Equal(t, int64(50), byStart[17].Price)
	assert.Equal(t, int64(80), byStart[18].Price)
	assert.Equal(t, "9:00 PM - 10:00 PM", byStart[21].Label)

	// Everything already exists.
	_, err = h.slots.Generate(ctx, GenerateInput{GameID: 1, OpenHour: 6, CloseHour: 22, DurationMins: 60})
	assert.ErrorIs(t, err, ErrNoSlotsCreated)

	// Only the missing starts are added.
	more, err := h.slots.Generate(ctx, GenerateInput{GameID: 1, OpenHour: 4, CloseHour: 8, DurationMins: 60, DayPrice: 40})
	require.NoError(t, err)
	assert.Len(t, more, 2)
}

func TestGenerateSlotsTwoHourAndReplace(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	h.db.addSlot(2, 6, 7, 10, true)

	created, err := h.slots.Generate(ctx, GenerateInput{
		GameID:          2,
		OpenHour:        6,
		CloseHour:       13,
		DurationMins:    120,
		DayPrice:        100,
		PeakPrice:       150,
		PeakStartHour:   intPtr(10),
		ReplaceExisting: true,
	})
	require.NoError(t, err)
	require.Len(t, created, 3)
	assert.Equal(t, 6, created[0].StartHour)
	assert.Equal(t, 8, created[0].EndHour)
	assert.Equal(t, int64(100), created[1].Price)
	assert.Equal(t, int64(150), created[2].Price)

	all, err := h.slots.List(ctx, 2, nil)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}

func TestGenerateSlotsValidation(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	cases := map[string]GenerateInput{
		"open after close": {GameID: 1, OpenHour: 22, CloseHour: 6, DurationMins: 60},
		"odd duration":     {GameID: 1, OpenHour: 6, CloseHour: 22, DurationMins: 90},
		"negative price":   {GameID: 1, OpenHour: 6, CloseHour: 22, DurationMins: 60, DayPrice: -1},
	}
	for name, in := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := h.slots.Generate(ctx, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}
	_, err := h.slots.Generate(ctx, GenerateInput{GameID: 7, OpenHour: 6, CloseHour: 22, DurationMins: 60})
	assert.ErrorIs(t, err, ErrGameNotFound)
}

func TestClosureService(t *testing.T) {
	h := newHarness()
	ctx := context.Background()

	full, err := h.closures.Create(ctx, ClosureInput{Date: "2026-05-10", Type: model.ClosureFull, StartHour: intPtr(3), Reason: " Maintenance "})
	require.NoError(t, err)
	assert.Nil(t, full.StartHour)
	assert.Equal(t, "Maintenance", full.Reason)

	_, err = h.closures.Create(ctx, ClosureInput{Date: "2026-05-10", Type: model.ClosureFull, Reason: "Again"})
	assert.ErrorIs(t, err, ErrClosureExists)

	part, err := h.closures.Create(ctx, ClosureInput{Date: "2026-05-10", Type: model.ClosurePartial, StartHour: intPtr(18), EndHour: intPtr(20), Reason: "Event", Note: "league"})
	require.NoError(t, err)
	require.NotNil(t, part.Note)
	assert.Equal(t, "league", *part.Note)

	bad := map[string]ClosureInput{
		"no reason":     {Date: "2026-05-10", Type: model.ClosureFull},
		"bad date":      {Date: "10/05/2026", Type: model.ClosureFull, Reason: "x"},
		"bad type":      {Date: "2026-05-10", Type: "weekly", Reason: "x"},
		"missing hours": {Date: "2026-05-10", Type: model.ClosurePartial, StartHour: intPtr(18), Reason: "x"},
		"reversed":      {Date: "2026-05-10", Type: model.ClosurePartial, StartHour: intPtr(20), EndHour: intPtr(18), Reason: "x"},
	}
	for name, in := range bad {
		t.Run(name, func(t *testing.T) {
			_, err := h.closures.Create(ctx, in)
			assert.ErrorIs(t, err, ErrInvalidInput)
		})
	}

	list, err := h.closures.List(ctx, "2026-05-10")
	require.NoError(t, err)
	assert.Len(t, list, 2)

	require.NoError(t, h.closures.Delete(ctx, full.ID))
	assert.ErrorIs(t, h.closures.Delete(ctx, full.ID), ErrClosureNotFound)
}
