package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/samber/lo"

	"github.com/iliyamo/turf-booking/internal/logging"
	"github.com/iliyamo/turf-booking/internal/model"
	"github.com/iliyamo/turf-booking/internal/repository"
	"github.com/iliyamo/turf-booking/internal/utils"
)

// DefaultPeakStartHour is used by GenerateSlots when no peak hour is given.
const DefaultPeakStartHour = 18

// SlotService administers slot definitions.
type SlotService struct {
	games GameStore
	slots SlotStore
}

func NewSlotService(games GameStore, slots SlotStore) *SlotService {
	return &SlotService{games: games, slots: slots}
}

// List returns slots of a game (all games when gameID is zero).
func (s *SlotService) List(ctx context.Context, gameID uint64, active *bool) ([]model.Slot, error) {
	return s.slots.List(ctx, gameID, active)
}

// SlotInput describes a new slot.  Active defaults to true.
type SlotInput struct {
	GameID    uint64
	StartHour int
	EndHour   int
	Price     int64
	Active    *bool
}

func (s *SlotService) Create(ctx context.Context, in SlotInput) (model.Slot, error) {
	if err := s.requireGame(ctx, in.GameID); err != nil {
		return model.Slot{}, err
	}
	if err := validHours(in.StartHour, in.EndHour); err != nil {
		return model.Slot{}, err
	}
	if in.Price < 0 {
		return model.Slot{}, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	sl := model.Slot{
		GameID:    in.GameID,
		StartHour: in.StartHour,
		EndHour:   in.EndHour,
		Label:     utils.FormatTimeRange(in.StartHour, in.EndHour),
		Price:     in.Price,
		Active:    in.Active == nil || *in.Active,
	}
	if err := s.slots.Create(ctx, &sl); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Slot{}, ErrSlotExists
		}
		return model.Slot{}, err
	}
	logging.FromContext(ctx).WithField("slot_id", sl.ID).Info("slot created")
	return sl, nil
}

// Update changes the price and/or the active flag.  Existing bookings keep
// the price they were made at.
func (s *SlotService) Update(ctx context.Context, id uint64, price *int64, active *bool) (model.Slot, error) {
	if price != nil && *price < 0 {
		return model.Slot{}, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	sl, err := s.slots.Update(ctx, id, price, active)
	if err != nil {
		if isNotFound(err) {
			return model.Slot{}, ErrSlotNotFound
		}
		return model.Slot{}, err
	}
	return sl, nil
}

// Delete removes a slot no active booking references.
func (s *SlotService) Delete(ctx context.Context, id uint64) error {
	err := s.slots.Delete(ctx, id)
	switch {
	case err == nil:
		logging.FromContext(ctx).WithField("slot_id", id).Info("slot deleted")
		return nil
	case isNotFound(err):
		return ErrSlotNotFound
	case errors.Is(err, repository.ErrConflict):
		return ErrSlotInUse
	}
	return err
}

// RemoveAll deletes every slot of a game that has no active bookings.
func (s *SlotService) RemoveAll(ctx context.Context, gameID uint64) (int64, error) {
	n, err := s.slots.DeleteByGame(ctx, gameID)
	if errors.Is(err, repository.ErrConflict) {
		return 0, fmt.Errorf("%w: game has active bookings", ErrSlotInUse)
	}
	return n, err
}

// GenerateInput describes a run of equally sized slots between opening and
// closing time.
type GenerateInput struct {
	GameID          uint64
	OpenHour        int
	CloseHour       int
	DurationMins    int // 60 or 120
	DayPrice        int64
	PeakPrice       int64
	PeakStartHour   *int // defaults to DefaultPeakStartHour
	ReplaceExisting bool
}

// Generate creates slots from OpenHour until CloseHour.  Slots starting at
// or after the peak hour get the peak price.  Starts that already exist
// are skipped unless ReplaceExisting, which first removes every slot of
// the game and is refused while the game has active bookings.
func (s *SlotService) Generate(ctx context.Context, in GenerateInput) ([]model.Slot, error) {
	if err := s.requireGame(ctx, in.GameID); err != nil {
		return nil, err
	}
	if err := validHours(in.OpenHour, in.CloseHour); err != nil {
		return nil, fmt.Errorf("%w: open time must be before close time", ErrInvalidInput)
	}
	if in.DurationMins != 60 && in.DurationMins != 120 {
		return nil, fmt.Errorf("%w: duration must be 60 or 120 minutes", ErrInvalidInput)
	}
	if in.DayPrice < 0 || in.PeakPrice < 0 {
		return nil, fmt.Errorf("%w: price must not be negative", ErrInvalidInput)
	}
	peak := DefaultPeakStartHour
	if in.PeakStartHour != nil {
		peak = *in.PeakStartHour
	}

	if in.ReplaceExisting {
		if _, err := s.RemoveAll(ctx, in.GameID); err != nil {
			return nil, err
		}
	}
	existing, err := s.slots.List(ctx, in.GameID, nil)
	if err != nil {
		return nil, err
	}
	taken := lo.SliceToMap(existing, func(sl model.Slot) (int, bool) { return sl.StartHour, true })

	step := in.DurationMins / 60
	var toCreate []model.Slot
	for h := in.OpenHour; h+step <= in.CloseHour; h += step {
		if taken[h] {
			continue
		}
		price := in.DayPrice
		if h >= peak {
			price = in.PeakPrice
		}
		toCreate = append(toCreate, model.Slot{
			GameID:    in.GameID,
			StartHour: h,
			EndHour:   h + step,
			Label:     utils.FormatTimeRange(h, h+step),
			Price:     price,
			Active:    true,
		})
	}
	if len(toCreate) == 0 {
		return nil, ErrNoSlotsCreated
	}
	created, err := s.slots.CreateMany(ctx, toCreate)
	if err != nil {
		return nil, err
	}
	if len(created) == 0 {
		return nil, ErrNoSlotsCreated
	}
	logging.FromContext(ctx).WithField("game_id", in.GameID).WithField("count", len(created)).Info("slots generated")
	return created, nil
}

func (s *SlotService) requireGame(ctx context.Context, id uint64) error {
	if _, err := s.games.GetByID(ctx, id); err != nil {
		if isNotFound(err) {
			return ErrGameNotFound
		}
		return err
	}
	return nil
}

func validHours(start, end int) error {
	if start < 0 || end > 24 || start >= end {
		return fmt.Errorf("%w: end time must be after start time", ErrInvalidInput)
	}
	return nil
}
