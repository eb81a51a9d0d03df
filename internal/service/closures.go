package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/iliyamo/turf-booking/internal/logging"
	"github.com/iliyamo/turf-booking/internal/model"
	"github.com/iliyamo/turf-booking/internal/repository"
)

// ClosureService administers calendar closures.
type ClosureService struct {
	closures ClosureStore
}

func NewClosureService(closures ClosureStore) *ClosureService {
	return &ClosureService{closures: closures}
}

// List returns the closures on date, or all closures when date is empty.
func (s *ClosureService) List(ctx context.Context, date string) ([]model.Closure, error) {
	if date != "" {
		if err := validateDate(date); err != nil {
			return nil, err
		}
	}
	return s.closures.List(ctx, date)
}

// ClosureInput describes a new closure.  Hours are required for partial
// closures and ignored for full ones.
type ClosureInput struct {
	Date      string
	Type      string
	StartHour *int
	EndHour   *int
	Reason    string
	Note      string
}

func (s *ClosureService) Create(ctx context.Context, in ClosureInput) (model.Closure, error) {
	if err := validateDate(in.Date); err != nil {
		return model.Closure{}, err
	}
	c := model.Closure{Date: in.Date, Type: in.Type, Reason: strings.TrimSpace(in.Reason)}
	if c.Reason == "" {
		return model.Closure{}, fmt.Errorf("%w: reason is required", ErrInvalidInput)
	}
	switch in.Type {
	case model.ClosureFull:
	case model.ClosurePartial:
		if in.StartHour == nil || in.EndHour == nil {
			return model.Closure{}, fmt.Errorf("%w: partial closure requires start and end hour", ErrInvalidInput)
		}
		if err := validHours(*in.StartHour, *in.EndHour); err != nil {
			return model.Closure{}, err
		}
		c.StartHour, c.EndHour = in.StartHour, in.EndHour
	default:
		return model.Closure{}, fmt.Errorf("%w: type must be full or partial", ErrInvalidInput)
	}
	if note := strings.TrimSpace(in.Note); note != "" {
		c.Note = &note
	}
	if err := s.closures.Create(ctx, &c); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return model.Closure{}, ErrClosureExists
		}
		return model.Closure{}, err
	}
	logging.FromContext(ctx).WithField("date", c.Date).WithField("type", c.Type).Info("closure created")
	return c, nil
}

func (s *ClosureService) Delete(ctx context.Context, id uint64) error {
	if err := s.closures.Delete(ctx, id); err != nil {
		if isNotFound(err) {
			return ErrClosureNotFound
		}
		return err
	}
	return nil
}
