package service

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/turf-booking/internal/model"
)

func TestAvailabilityRejectsInvalidSlots(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	ok := h.db.addSlot(1, 18, 19, 60, true)
	off := h.db.addSlot(1, 19, 20, 60, false)
	other := h.db.addSlot(2, 18, 19, 80, true)
	a := NewAvailability(fakeSlots{h.db}, fakeClosures{h.db})

	cases := map[string][]uint64{
		"missing":    {ok.ID, 9999},
		"inactive":   {off.ID},
		"other game": {other.ID},
		"repeated":   {ok.ID, ok.ID},
		"empty":      {},
	}
	for name, ids := range cases {
		t.Run(name, func(t *testing.T) {
			_, err := a.Check(ctx, "2026-05-01", 1, ids)
			assert.ErrorIs(t, err, ErrSlotInvalid)
		})
	}

	slots, err := a.Check(ctx, "2026-05-01", 1, []uint64{ok.ID})
	require.NoError(t, err)
	assert.Equal(t, ok.ID, slots[0].ID)

	_, err = a.Check(ctx, "01-05-2026", 1, []uint64{ok.ID})
	assert.ErrorIs(t, err, ErrInvalidInput)
}

func TestClosurePrecedence(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	a := NewAvailability(fakeSlots{h.db}, fakeClosures{h.db})
	s17 := h.db.addSlot(1, 17, 18, 50, true)
	s18 := h.db.addSlot(1, 18, 19, 60, true)
	s19 := h.db.addSlot(1, 19, 20, 60, true)
	s20 := h.db.addSlot(1, 20, 21, 60, true)
	cricket := h.db.addSlot(2, 6, 7, 40, true)

	h.db.addClosure(model.Closure{Date: "2026-05-02", Type: model.ClosureFull, Reason: "Maintenance"})
	h.db.addClosure(model.Closure{Date: "2026-05-03", Type: model.ClosurePartial, StartHour: intPtr(18), EndHour: intPtr(20), Reason: "Event"})

	t.Run("full closure blocks every game", func(t *testing.T) {
		for _, sl := range []model.Slot{s17, s18, s20} {
			_, err := a.Check(ctx, "2026-05-02", 1, []uint64{sl.ID})
			assert.ErrorIs(t, err, ErrClosureConflict)
		}
		_, err := a.Check(ctx, "2026-05-02", 2, []uint64{cricket.ID})
		assert.ErrorIs(t, err, ErrClosureConflict)
	})

	t.Run("partial closure blocks its window only", func(t *testing.T) {
		_, err := a.Check(ctx, "2026-05-03", 1, []uint64{s18.ID})
		assert.ErrorIs(t, err, ErrClosureConflict)
		_, err = a.Check(ctx, "2026-05-03", 1, []uint64{s19.ID})
		assert.ErrorIs(t, err, ErrClosureConflict)
		_, err = a.Check(ctx, "2026-05-03", 1, []uint64{s17.ID})
		assert.NoError(t, err)
		_, err = a.Check(ctx, "2026-05-03", 1, []uint64{s20.ID})
		assert.NoError(t, err)
		_, err = a.Check(ctx, "2026-05-03", 1, []uint64{s17.ID, s19.ID})
		assert.ErrorIs(t, err, ErrClosureConflict)
	})

	t.Run("other dates are open", func(t *testing.T) {
		_, err := a.Check(ctx, "2026-05-04", 1, []uint64{s18.ID, s19.ID})
		assert.NoError(t, err)
	})
}

func TestEveryClosureOnDateIsConsulted(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	a := NewAvailability(fakeSlots{h.db}, fakeClosures{h.db})
	morning := h.db.addSlot(1, 7, 8, 50, true)
	evening := h.db.addSlot(1, 21, 22, 50, true)

	h.db.addClosure(model.Closure{Date: "2026-06-01", Type: model.ClosurePartial, StartHour: intPtr(6), EndHour: intPtr(9), Reason: "Cleaning"})
	h.db.addClosure(model.Closure{Date: "2026-06-01", Type: model.ClosurePartial, StartHour: intPtr(21), EndHour: intPtr(24), Reason: "Lights"})

	_, err := a.Check(ctx, "2026-06-01", 1, []uint64{morning.ID})
	assert.ErrorIs(t, err, ErrClosureConflict)
	_, err = a.Check(ctx, "2026-06-01", 1, []uint64{evening.ID})
	assert.ErrorIs(t, err, ErrClosureConflict)
}

func TestClosureMissingBoundsDefaultToWholeDay(t *testing.T) {
	c := model.Closure{Type: model.ClosurePartial, StartHour: intPtr(10)}
	assert.False(t, c.Blocks(9))
	assert.True(t, c.Blocks(10))
	assert.True(t, c.Blocks(23))

	c = model.Closure{Type: model.ClosurePartial, EndHour: intPtr(10)}
	assert.True(t, c.Blocks(0))
	assert.False(t, c.Blocks(10))
}
