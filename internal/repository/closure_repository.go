package repository

import (
	"context"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/turf-booking/internal/model"
)

// ClosureRepo stores calendar closures.  The (date, type, start, end) tuple
// is unique; a repeat insert returns ErrDuplicate.
type ClosureRepo struct {
	db *sqlx.DB
}

// NewClosureRepo returns a ClosureRepo bound to db.
func NewClosureRepo(db *sqlx.DB) *ClosureRepo { return &ClosureRepo{db: db} }

// List returns closures on date, or all closures when date is empty,
// ordered by date and start hour.
func (r *ClosureRepo) List(ctx context.Context, date string) ([]model.Closure, error) {
	const cols = `SELECT id, date, type, start_hour, end_hour, reason, note, created_at FROM closures`
	out := []model.Closure{}
	var err error
	if date != "" {
		err = r.db.SelectContext(ctx, &out, cols+` WHERE date = ? ORDER BY start_key`, date)
	} else {
		err = r.db.SelectContext(ctx, &out, cols+` ORDER BY date, start_key`)
	}
	return out, err
}

// Create inserts a closure and fills in its id.
func (r *ClosureRepo) Create(ctx context.Context, c *model.Closure) error {
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO closures (date, type, start_hour, end_hour, reason, note) VALUES (?, ?, ?, ?, ?, ?)`,
		c.Date, c.Type, c.StartHour, c.EndHour, c.Reason, c.Note)
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
	c.ID = uint64(id)
	return nil
}

// Delete removes a closure by id.
func (r *ClosureRepo) Delete(ctx context.Context, id uint64) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM closures WHERE id = ?`, id)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}
