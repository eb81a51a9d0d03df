package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/turf-booking/internal/model"
)

// BookingRepo persists bookings, their slot snapshot (booking_items) and the
// slot_claims rows that make double booking impossible.  A claim row exists
// for every (date, game, slot) held by a non-cancelled booking and its
// primary key rejects a second claim.
type BookingRepo struct {
	db *sqlx.DB
}

// NewBookingRepo returns a BookingRepo bound to db.
func NewBookingRepo(db *sqlx.DB) *BookingRepo { return &BookingRepo{db: db} }

// CodeExists reports whether a booking code is already in use.
func (r *BookingRepo) CodeExists(ctx context.Context, code string) (bool, error) {
	var n int
	err := r.db.GetContext(ctx, &n, `SELECT COUNT(*) FROM bookings WHERE code = ?`, code)
	return n > 0, err
}

// Create inserts the booking, its items and its slot claims in one
// transaction.  It returns ErrSlotTaken when any slot is already claimed for
// the date and game, and ErrDuplicateCode when the code collides.  On
// success b.ID and b.CreatedAt are populated.
func (r *BookingRepo) Create(ctx context.Context, b *model.Booking) error {
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

	now := time.Now().UTC().Truncate(time.Second)
	res, err := tx.ExecContext(ctx,
		`INSERT INTO bookings (code, play_date, game_id, total_price, status, user_id, guest_name, guest_email, checked_in_at, created_at)
         VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		b.Code, b.Date, b.GameID, b.TotalPrice, b.Status, b.UserID, b.GuestName, b.GuestEmail, b.CheckedInAt, now)
	if err != nil {
		if isDuplicate(err) {
			return ErrDuplicateCode
		}
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}

	if len(b.Items) > 0 {
		items := make([]string, 0, len(b.Items))
		claims := make([]string, 0, len(b.Items))
		itemArgs := make([]interface{}, 0, len(b.Items)*7)
		claimArgs := make([]interface{}, 0, len(b.Items)*4)
		for i, it := range b.Items {
			items = append(items, "(?, ?, ?, ?, ?, ?, ?)")
			itemArgs = append(itemArgs, id, i, it.SlotID, it.Label, it.StartHour, it.EndHour, it.Price)
			claims = append(claims, "(?, ?, ?, ?)")
			claimArgs = append(claimArgs, b.Date, b.GameID, it.SlotID, id)
		}
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO booking_items (booking_id, position, slot_id, label, start_hour, end_hour, price) VALUES `+strings.Join(items, ","),
			itemArgs...); err != nil {
			return err
		}
		if b.Status != model.BookingCancelled {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO slot_claims (play_date, game_id, slot_id, booking_id) VALUES `+strings.Join(claims, ","),
				claimArgs...); err != nil {
				if isDuplicate(err) {
					return ErrSlotTaken
				}
				return err
			}
		}
	}

	if err := tx.Commit(); err != nil {
		return err
	}
	committed = true
	b.ID = uint64(id)
	b.CreatedAt = now
	return nil
}

type bookingRow struct {
	ID          uint64         `db:"id"`
	Code        string         `db:"code"`
	Date        string         `db:"play_date"`
	GameID      uint64         `db:"game_id"`
	GameName    sql.NullString `db:"game_name"`
	TotalPrice  int64          `db:"total_price"`
	Status      string         `db:"status"`
	UserID      sql.NullInt64  `db:"user_id"`
	GuestName   string         `db:"guest_name"`
	GuestEmail  sql.NullString `db:"guest_email"`
	CheckedInAt sql.NullTime   `db:"checked_in_at"`
	CreatedAt   time.Time      `db:"created_at"`
}

func (row bookingRow) toModel() model.Booking {
	b := model.Booking{
		ID:         row.ID,
		Code:       row.Code,
		Date:       row.Date,
		GameID:     row.GameID,
		GameName:   row.GameName.String,
		TotalPrice: row.TotalPrice,
		Status:     row.Status,
		GuestName:  row.GuestName,
		CreatedAt:  row.CreatedAt,
		Items:      []model.BookingItem{},
	}
	if row.UserID.Valid {
		uid := uint64(row.UserID.Int64)
		b.UserID = &uid
	}
	if row.GuestEmail.Valid {
		email := row.GuestEmail.String
		b.GuestEmail = &email
	}
	if row.CheckedInAt.Valid {
		at := row.CheckedInAt.Time
		b.CheckedInAt = &at
	}
	return b
}

const bookingSelect = `SELECT b.id, b.code, b.play_date, b.game_id, g.name AS game_name, b.total_price, b.status,
       b.user_id, b.guest_name, b.guest_email, b.checked_in_at, b.created_at
  FROM bookings b LEFT JOIN games g ON g.id = b.game_id`

// GetByCode returns a booking with its items, or ErrNotFound.
func (r *BookingRepo) GetByCode(ctx context.Context, code string) (model.Booking, error) {
	var row bookingRow
	if err := r.db.GetContext(ctx, &row, bookingSelect+` WHERE b.code = ?`, code); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return model.Booking{}, ErrNotFound
		}
		return model.Booking{}, err
	}
	b := row.toModel()
	if err := r.loadItems(ctx, []*model.Booking{&b}); err != nil {
		return model.Booking{}, err
	}
	return b, nil
}

// List returns bookings matching the filter, newest play date first.
func (r *BookingRepo) List(ctx context.Context, f model.BookingFilter) ([]model.Booking, error) {
	where := []string{"1=1"}
	args := []interface{}{}
	if f.Date != "" {
		where = append(where, "b.play_date = ?")
		args = append(args, f.Date)
	}
	if f.Status != "" {
		where = append(where, "b.status = ?")
		args = append(args, f.Status)
	}
	if f.GameID != 0 {
		where = append(where, "b.game_id = ?")
		args = append(args, f.GameID)
	}
	var rows []bookingRow
	q := bookingSelect + ` WHERE ` + strings.Join(where, " AND ") + ` ORDER BY b.play_date DESC, b.created_at DESC, b.id DESC`
	if err := r.db.SelectContext(ctx, &rows, q, args...); err != nil {
		return nil, err
	}
	out := make([]model.Booking, len(rows))
	ptrs := make([]*model.Booking, len(rows))
	for i := range rows {
		out[i] = rows[i].toModel()
		ptrs[i] = &out[i]
	}
	if err := r.loadItems(ctx, ptrs); err != nil {
		return nil, err
	}
	return out, nil
}

func (r *BookingRepo) loadItems(ctx context.Context, bookings []*model.Booking) error {
	if len(bookings) == 0 {
		return nil
	}
	byID := make(map[uint64]*model.Booking, len(bookings))
	ids := make([]uint64, 0, len(bookings))
	for _, b := range bookings {
		byID[b.ID] = b
		ids = append(ids, b.ID)
	}
	q, args, err := sqlx.In(`SELECT booking_id, slot_id, label, start_hour, end_hour, price
        FROM booking_items WHERE booking_id IN (?) ORDER BY booking_id, position`, ids)
	if err != nil {
		return err
	}
	rows, err := r.db.QueryContext(ctx, r.db.Rebind(q), args...)
	if err != nil {
		return err
	}
	defer rows.Close()
	for rows.Next() {
		var bid uint64
		var it model.BookingItem
		if err := rows.Scan(&bid, &it.SlotID, &it.Label, &it.StartHour, &it.EndHour, &it.Price); err != nil {
			return err
		}
		if b, ok := byID[bid]; ok {
			b.Items = append(b.Items, it)
		}
	}
	return rows.Err()
}

// Transition moves a booking from one of the from statuses to the target
// status with a single conditional UPDATE.  It reports false when the
// booking was not in an allowed status (including when it does not exist),
// so concurrent callers racing the same transition see exactly one winner.
// Moving to Cancelled releases the booking's slot claims in the same
// transaction; moving to Checked In stamps checked_in_at with at.
func (r *BookingRepo) Transition(ctx context.Context, code string, from []string, to string, at *time.Time) (bool, error) {
	if len(from) == 0 {
		return false, nil
	}
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, err
	}
	committed := false
	defer func() {
		if !committed {
			_ = tx.Rollback()
		}
	}()

	var checkedIn interface{}
	if to == model.BookingCheckedIn {
		stamp := time.Now().UTC()
		if at != nil {
			stamp = at.UTC()
		}
		checkedIn = stamp
	}
	args := []interface{}{to, checkedIn, code}
	for _, st := range from {
		args = append(args, st)
	}
	q := `UPDATE bookings SET status = ?, checked_in_at = ? WHERE code = ? AND status IN (?` +
		strings.Repeat(", ?", len(from)-1) + `)`
	res, err := tx.ExecContext(ctx, q, args...)
	if err != nil {
		return false, err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return false, nil
	}
	if to == model.BookingCancelled {
		if _, err := tx.ExecContext(ctx,
			`DELETE c FROM slot_claims c JOIN bookings b ON b.id = c.booking_id WHERE b.code = ?`, code); err != nil {
			return false, err
		}
	}
	if err := tx.Commit(); err != nil {
		return false, err
	}
	committed = true
	return true, nil
}

// Delete removes a booking; items and claims cascade.
func (r *BookingRepo) Delete(ctx context.Context, code string) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM bookings WHERE code = ?`, code)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return ErrNotFound
	}
	return nil
}

// ClaimedSlotIDs returns the slots of a game already claimed on date.
func (r *BookingRepo) ClaimedSlotIDs(ctx context.Context, date string, gameID uint64) ([]uint64, error) {
	ids := []uint64{}
	err := r.db.SelectContext(ctx, &ids,
		`SELECT slot_id FROM slot_claims WHERE play_date = ? AND game_id = ?`, date, gameID)
	return ids, err
}
