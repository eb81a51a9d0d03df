package service

import (
	"context"
	"fmt"
	"time"

	"github.com/samber/lo"

	"github.com/iliyamo/turf-booking/internal/model"
)

// DateLayout is the calendar date format used for bookings and closures.
const DateLayout = "2006-01-02"

// Availability decides whether a set of slots can be booked on a date.  It
// only reads; conflicts with other bookings are left to the storage
// constraint used by the allocator.
type Availability struct {
	slots    SlotStore
	closures ClosureStore
}

// NewAvailability returns a checker over the given stores.
func NewAvailability(slots SlotStore, closures ClosureStore) *Availability {
	return &Availability{slots: slots, closures: closures}
}

// Check resolves the requested slots and returns them in request order.
// It fails with ErrSlotInvalid when a slot is missing, inactive, repeated
// or belongs to another game, and with ErrClosureConflict when any closure
// on date blocks one of them.
func (a *Availability) Check(ctx context.Context, date string, gameID uint64, slotIDs []uint64) ([]model.Slot, error) {
	if err := validateDate(date); err != nil {
		return nil, err
	}
	if len(slotIDs) == 0 || len(lo.Uniq(slotIDs)) != len(slotIDs) {
		return nil, ErrSlotInvalid
	}
	found, err := a.slots.GetByIDs(ctx, slotIDs)
	if err != nil {
		return nil, err
	}
	byID := lo.KeyBy(found, func(s model.Slot) uint64 { return s.ID })
	slots := make([]model.Slot, 0, len(slotIDs))
	for _, id := range slotIDs {
		s, ok := byID[id]
		if !ok || s.GameID != gameID {
			return nil, ErrSlotInvalid
		}
		if !s.Active {
			return nil, fmt.Errorf("%w: slot %s is disabled", ErrSlotInvalid, s.Label)
		}
		slots = append(slots, s)
	}

	closures, err := a.closures.List(ctx, date)
	if err != nil {
		return nil, err
	}
	for _, c := range closures {
		if c.Type == model.ClosureFull {
			return nil, fmt.Errorf("%w: turf is closed: %s", ErrClosureConflict, c.Reason)
		}
		for _, s := range slots {
			if c.Blocks(s.StartHour) {
				return nil, fmt.Errorf("%w: %s", ErrClosureConflict, c.Reason)
			}
		}
	}
	return slots, nil
}

// closedHours reports, for each slot, whether a closure on the date blocks it.
func closedHours(closures []model.Closure, slots []model.Slot) map[uint64]bool {
	out := make(map[uint64]bool, len(slots))
	for _, s := range slots {
		out[s.ID] = lo.SomeBy(closures, func(c model.Closure) bool { return c.Blocks(s.StartHour) })
	}
	return out
}

func validateDate(date string) error {
	if _, err := time.Parse(DateLayout, date); err != nil {
		return fmt.Errorf("%w: date must be YYYY-MM-DD", ErrInvalidInput)
	}
	return nil
}
