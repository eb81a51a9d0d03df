package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"github.com/iliyamo/turf-booking/internal/model"
)

// ScanEventRepo appends check-in audit rows.  Rows are never updated.
type ScanEventRepo struct{ db *sqlx.DB }

func NewScanEventRepo(db *sqlx.DB) *ScanEventRepo { return &ScanEventRepo{db: db} }

// Create stores one scan attempt and sets ev.ID.
func (r *ScanEventRepo) Create(ctx context.Context, ev *model.ScanEvent) error {
	if ev.ScannedAt.IsZero() {
		ev.ScannedAt = time.Now().UTC()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO scan_events (booking_id, booking_code, admin_id, result, scanned_at, ip, user_agent)
		 VALUES (?, ?, ?, ?, ?, ?, ?)`,
		ev.BookingID, ev.BookingCode, ev.AdminID, ev.Result, ev.ScannedAt, truncate(ev.IP, 64), truncate(ev.UserAgent, 255))
	if err != nil {
		return err
	}
	id, err := res.LastInsertId()
	if err != nil {
		return err
	}
	ev.ID = uint64(id)
	return nil
}

// ListByBooking returns the scan history of a booking code, newest first.
func (r *ScanEventRepo) ListByBooking(ctx context.Context, code string) ([]model.ScanEvent, error) {
	rows := []struct {
		ID          uint64    `db:"id"`
		BookingID   *uint64   `db:"booking_id"`
		BookingCode *string   `db:"booking_code"`
		AdminID     uint64    `db:"admin_id"`
		Result      string    `db:"result"`
		ScannedAt   time.Time `db:"scanned_at"`
		IP          string    `db:"ip"`
		UserAgent   string    `db:"user_agent"`
	}{}
	if err := r.db.SelectContext(ctx, &rows,
		`SELECT id, booking_id, booking_code, admin_id, result, scanned_at, ip, user_agent
		   FROM scan_events WHERE booking_code = ? ORDER BY id DESC`, code); err != nil {
		return nil, err
	}
	out := make([]model.ScanEvent, 0, len(rows))
	for _, r := range rows {
		out = append(out, model.ScanEvent{
			ID:          r.ID,
			BookingID:   r.BookingID,
			BookingCode: r.BookingCode,
			AdminID:     r.AdminID,
			Result:      r.Result,
			ScannedAt:   r.ScannedAt,
			IP:          r.IP,
			UserAgent:   r.UserAgent,
		})
	}
	return out, nil
}

func truncate(s string, n int) string {
	if len(s) > n {
		return s[:n]
	}
	return s
}
