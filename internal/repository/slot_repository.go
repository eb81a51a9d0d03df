package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/turf-booking/internal/model"
)

// SlotRepo provides access to the slots table.  Start hours are unique per
// game (uq_slots_game_start); a violation surfaces as ErrDuplicate.
type SlotRepo struct {
	db *sqlx.DB
}

// NewSlotRepo returns a SlotRepo bound to db.
func NewSlotRepo(db *sqlx.DB) *SlotRepo { return &SlotRepo{db: db} }

const slotColumns = `id, game_id, start_hour, end_hour, label, price, active, created_at`

// GetByID returns a single slot or ErrNotFound.
func (r *SlotRepo) GetByID(ctx context.Context, id uint64) (model.Slot, error) {
	var s model.Slot
	err := r.db.GetContext(ctx, &s, `SELECT `+slotColumns+` FROM slots WHERE id = ?`, id)
	if errors.Is(err, sql.ErrNoRows) {
		return model.Slot{}, ErrNotFound
	}
	return s, err
}

// GetByIDs returns the slots whose ids are listed.  Missing ids are simply
// absent from the result; callers compare lengths.
func (r *SlotRepo) GetByIDs(ctx context.Context, ids []uint64) ([]model.Slot, error) {
	if len(ids) == 0 {
		return []model.Slot{}, nil
	}
	q, args, err := sqlx.In(`SELECT `+slotColumns+` FROM slots WHERE id IN (?) ORDER BY start_hour`, ids)
	if err != nil {
		return nil, err
	}
	slots := []model.Slot{}
	err = r.db.SelectContext(ctx, &slots, r.db.Rebind(q), args...)
	return slots, err
}

// List returns the slots of a game (all games when gameID is zero),
// optionally filtered by the active flag, ordered by start hour.
func (r *SlotRepo) List(ctx context.Context, gameID uint64, active *bool) ([]model.Slot, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if gameID != 0 {
		where = append(where, "game_id = ?")
		args = append(args, gameID)
	}
	if active != nil {
		where = append(where, "active = ?")
		args = append(args, *active)
	}
	slots := []model.Slot{}
	q := `SELECT ` + slotColumns + ` FROM slots WHERE ` + strings.Join(where, " AND ") + ` ORDER BY game_id, start_hour`
	err := r.db.SelectContext(ctx, &slots, q, args...)
	return slots, err
}

// Create inserts a slot and fills in its id.
func (r *SlotRepo) Create(ctx context.Context, s *model.Slot) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO slots (game_id, start_hour, end_hour, label, price, active) VALUES (?, ?, ?, ?, ?, ?)`,
		s.GameID, s.StartHour, s.EndHour, s.Label, s.Price, s.Active)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicate
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	s.ID = uint64(id)
	return nil
}

// CreateMany inserts generated slots in one transaction.  Rows whose start
// hour already exists for the game are skipped, matching an unordered bulk
// insert that tolerates duplicates.  The inserted slots are returned.
func (r *SlotRepo) CreateMany(ctx context.Context, slots []model.Slot) ([]model.Slot, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return nil, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	out := make([]model.Slot, 0, len(slots))
	for _, s := range slots {
		res, err := tx.ExecContext(ctx,
			`INSERT IGNORE INTO slots (game_id, start_hour, end_hour, label, price, active) VALUES (?, ?, ?, ?, ?, ?)`,
			s.GameID, s.StartHour, s.EndHour, s.Label, s.Price, s.Active)
		if err != nil {
			return nil, err
		}
		if n, _ := res.RowsAffected(); n == 0 {
			continue
		}
		id, err := res.LastInsertId()
		if err != nil {
			return nil, err
		}
		s.ID = uint64(id)
		out = append(out, s)
	}
	if err := tx.Commit(); err != nil {
		return nil, err
	}
	committed = true
	return out, nil
}

// Update patches price and/or active and returns the updated slot.
func (r *SlotRepo) Update(ctx context.Context, id uint64, price *int64, active *bool) (model.Slot, error) {
	sets := []string{}
	args := []interface{}{}
	if price != nil {
		sets = append(sets, "price = ?")
		args = append(args, *price)
	}
	if active != nil {
		sets = append(sets, "active = ?")
		args = append(args, *active)
	}
	if len(sets) > 0 {
		args = append(args, id)
		if _, err := r.db.ExecContext(ctx, `UPDATE slots SET `+strings.Join(sets, ", ")+` WHERE id = ?`, args...); err != nil {
			return model.Slot{}, err
		}
	}
	return r.GetByID(ctx, id)
}

// Delete removes a slot unless a non-cancelled booking references it, in
// which case ErrConflict is returned.  The check and delete share a
// transaction and the referencing rows are locked.
func (r *SlotRepo) Delete(ctx context.Context, id uint64) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var inUse int
	err = tx.GetContext(ctx, &inUse,
		`SELECT COUNT(*) FROM booking_items i JOIN bookings b ON b.id = i.booking_id
         WHERE i.slot_id = ? AND b.status <> ? FOR UPDATE`, id, model.BookingCancelled)
	if err != nil {
		return err
	}
	if inUse > 0 {
		return ErrConflict
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	return nil
}

// DeleteByGame removes every slot of a game.  It refuses with ErrConflict
// while the game has non-cancelled bookings.
func (r *SlotRepo) DeleteByGame(ctx context.Context, gameID uint64) (int64, error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return 0, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()
	var active int
	err = tx.GetContext(ctx, &active,
		`SELECT COUNT(*) FROM bookings WHERE game_id = ? AND status <> ? FOR UPDATE`, gameID, model.BookingCancelled)
	if err != nil {
		return 0, err
	}
	if active > 0 {
		return 0, ErrConflict
	}
	res, err := tx.ExecContext(ctx, `DELETE FROM slots WHERE game_id = ?`, gameID)
	if err != nil {
		return 0, err
	}
	n, _ := res.RowsAffected()
	if err := tx.Commit(); err != nil {
		return 0, err
	}
	committed = true
	return n, nil
}
