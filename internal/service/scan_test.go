package service

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/turf-booking/internal/model"
	"github.com/iliyamo/turf-booking/internal/utils"
)

var gate = ClientMeta{IP: "10.0.0.7", UserAgent: "scanner/1.0"}

// ticket books the 18-19 slot on date with status and returns its token.
func ticket(t *testing.T, h *harness, date, status string) (model.Booking, string) {
	t.Helper()
	ctx := context.Background()
	slot := h.db.addSlot(1, 18, 19, 60, true)
	initial := model.BookingConfirmed
	if status == model.BookingPaymentPending {
		initial = status
	}
	b, err := h.bookings.CreateBooking(ctx, NewBooking{Date: date, GameID: 1, SlotIDs: []uint64{slot.ID}, Status: initial})
	require.NoError(t, err)
	if status == model.BookingCancelled {
		_, err = h.bookings.SetStatus(ctx, b.Code, status)
		require.NoError(t, err)
	}
	tok, err := utils.NewScanToken(testScanSecret, b.Code, time.Hour)
	require.NoError(t, err)
	return h.db.booking(b.Code), tok
}

func TestScanValidThenReplay(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	b, tok := ticket(t, h, "2026-05-01", model.BookingConfirmed)

	res, err := h.scans.VerifyAndConsume(ctx, tok, 7, gate)
	require.NoError(t, err)
	assert.Equal(t, model.ScanValid, res.Status)
	require.NotNil(t, res.Booking)
	assert.Equal(t, model.BookingCheckedIn, res.Booking.Status)
	assert.Equal(t, model.BookingCheckedIn, h.db.booking(b.Code).Status)
	assert.NotNil(t, h.db.booking(b.Code).CheckedInAt)

	res, err = h.scans.VerifyAndConsume(ctx, tok, 7, gate)
	require.NoError(t, err)
	assert.Equal(t, model.ScanAlreadyUsed, res.Status)
	assert.Nil(t, res.Booking)

	events := h.db.scanEvents()
	require.Len(t, events, 2)
	assert.Equal(t, model.ScanValid, events[0].Result)
	assert.Equal(t, model.ScanAlreadyUsed, events[1].Result)
	require.NotNil(t, events[0].BookingID)
	assert.Equal(t, b.ID, *events[0].BookingID)
	assert.Equal(t, uint64(7), events[0].AdminID)
	assert.Equal(t, "10.0.0.7", events[0].IP)
	assert.Equal(t, "scanner/1.0", events[0].UserAgent)
}

func TestScanConcurrentSingleWinner(t *testing.T) {
	h := newHarness()
	_, tok := ticket(t, h, "2026-05-01", model.BookingConfirmed)

	const scanners = 20
	var wg sync.WaitGroup
	results := make([]string, scanners)
	for i := 0; i < scanners; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			res, err := h.scans.VerifyAndConsume(context.Background(), tok, 1, gate)
			if err != nil {
				t.Errorf("scan: %v", err)
				return
			}
			results[i] = res.Status
		}(i)
	}
	wg.Wait()

	counts := map[string]int{}
	for _, r := range results {
		counts[r]++
	}
	assert.Equal(t, 1, counts[model.ScanValid])
	assert.Equal(t, scanners-1, counts[model.ScanAlreadyUsed])
	assert.Len(t, h.db.scanEvents(), scanners)
}

func TestScanRejections(t *testing.T) {
	cases := []struct {
		name   string
		date   string
		status string
		now    time.Time
		want   string
	}{
		{"yesterday", "2026-04-30", model.BookingConfirmed, fixedNow, model.ScanExpired},
		{"tomorrow", "2026-05-02", model.BookingConfirmed, fixedNow, model.ScanExpired},
		{"before window", "2026-05-01", model.BookingConfirmed, fixedNow.Add(-time.Hour), model.ScanExpired},
		{"window end is exclusive", "2026-05-01", model.BookingConfirmed, fixedNow.Add(30 * time.Minute), model.ScanExpired},
		{"cancelled", "2026-05-01", model.BookingCancelled, fixedNow, model.ScanInvalid},
		{"pending", "2026-05-01", model.BookingPaymentPending, fixedNow, model.ScanInvalid},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness()
			b, tok := ticket(t, h, tc.date, tc.status)
			h.now = tc.now

			res, err := h.scans.VerifyAndConsume(context.Background(), tok, 1, gate)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Status)
			assert.Nil(t, res.Booking)
			assert.Equal(t, tc.status, h.db.booking(b.Code).Status)

			events := h.db.scanEvents()
			require.Len(t, events, 1)
			assert.Equal(t, tc.want, events[0].Result)
		})
	}
}

func TestScanUsesVenueDate(t *testing.T) {
	h := newHarness()
	_, tok := ticket(t, h, "2026-05-01", model.BookingConfirmed)
	// 13:00 UTC is 18:30 at the venue.
	h.now = time.Date(2026, 5, 1, 13, 0, 0, 0, time.UTC)

	res, err := h.scans.VerifyAndConsume(context.Background(), tok, 1, gate)
	require.NoError(t, err)
	assert.Equal(t, model.ScanValid, res.Status)
}

func TestScanBadTokens(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	b, _ := ticket(t, h, "2026-05-01", model.BookingConfirmed)

	expired, err := utils.NewScanToken(testScanSecret, b.Code, -time.Minute)
	require.NoError(t, err)
	forged, err := utils.NewScanToken("other-secret", b.Code, time.Hour)
	require.NoError(t, err)
	unknown, err := utils.NewScanToken(testScanSecret, "BK-0000", time.Hour)
	require.NoError(t, err)

	cases := map[string]struct {
		token string
		want  string
	}{
		"garbage":         {"not-a-token", model.ScanInvalid},
		"empty":           {"", model.ScanInvalid},
		"expired token":   {expired, model.ScanExpired},
		"wrong signature": {forged, model.ScanInvalid},
		"unknown booking": {unknown, model.ScanInvalid},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			res, err := h.scans.VerifyAndConsume(ctx, tc.token, 1, gate)
			require.NoError(t, err)
			assert.Equal(t, tc.want, res.Status)
		})
	}
	assert.Len(t, h.db.scanEvents(), len(cases))
	assert.Equal(t, model.BookingConfirmed, h.db.booking(b.Code).Status)
}

func TestScanEventWriteFailure(t *testing.T) {
	h := newHarness()
	ctx := context.Background()
	_, tok := ticket(t, h, "2026-05-01", model.BookingConfirmed)
	h.db.eventErr = errors.New("disk full")

	_, err := h.scans.VerifyAndConsume(ctx, "garbage", 1, gate)
	assert.Error(t, err)

	res, err := h.scans.VerifyAndConsume(ctx, tok, 1, gate)
	require.NoError(t, err)
	assert.Equal(t, model.ScanValid, res.Status)
}
