package repository

import (
	"context"
	"errors"
	"fmt"
	"math/rand"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/go-sql-driver/mysql"
	"github.com/jmoiron/sqlx"
	"github.com/lithammer/shortuuid/v3"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	tcmysql "github.com/testcontainers/testcontainers-go/modules/mysql"

	"github.com/iliyamo/turf-booking/internal/database"
	"github.com/iliyamo/turf-booking/internal/model"
)

func TestIsDuplicate(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"duplicate key", &mysql.MySQLError{Number: 1062, Message: "Duplicate entry"}, true},
		{"wrapped", fmt.Errorf("insert: %w", &mysql.MySQLError{Number: 1062}), true},
		{"deadlock", &mysql.MySQLError{Number: 1213}, false},
		{"plain", fmt.Errorf("connection refused"), false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, isDuplicate(tc.err))
		})
	}
}

var (
	dbOnce    sync.Once
	sharedDB  *sqlx.DB
	sharedErr error
	container testcontainers.Container
)

func TestMain(m *testing.M) {
	code := m.Run()
	if sharedDB != nil {
		_ = sharedDB.Close()
	}
	if container != nil {
		_ = container.Terminate(context.Background())
	}
	os.Exit(code)
}

// testDB returns a migrated MySQL database shared by the package's tests.
// TEST_MYSQL_DSN selects an existing server; otherwise a MySQL container is
// started once, and the test is skipped when no Docker daemon is reachable.
func testDB(t *testing.T) *sqlx.DB {
	t.Helper()
	dsn := os.Getenv("TEST_MYSQL_DSN")
	if dsn == "" {
		testcontainers.SkipIfProviderIsNotHealthy(t)
	}
	dbOnce.Do(func() {
		sharedDB, sharedErr = openTestDB(context.Background(), dsn)
	})
	require.NoError(t, sharedErr)
	return sharedDB
}

func openTestDB(ctx context.Context, dsn string) (*sqlx.DB, error) {
	if dsn == "" {
		c, err := tcmysql.RunContainer(ctx,
			testcontainers.WithImage("mysql:8.0.36"),
			tcmysql.WithDatabase("turf"),
			tcmysql.WithUsername("turf"),
			tcmysql.WithPassword("turf"),
		)
		if err != nil {
			return nil, fmt.Errorf("start mysql container: %w", err)
		}
		container = c
		if dsn, err = c.ConnectionString(ctx); err != nil {
			return nil, err
		}
	}
	cfg, err := mysql.ParseDSN(dsn)
	if err != nil {
		return nil, err
	}
	cfg.ParseTime = true
	cfg.MultiStatements = true
	cfg.Loc = time.UTC

	db, err := database.OpenDSN(cfg.FormatDSN())
	if err != nil {
		return nil, err
	}
	if err := database.Migrate(ctx, db); err != nil {
		_ = db.Close()
		return nil, err
	}
	return db, nil
}

func newBooking(date string, slotIDs ...uint64) *model.Booking {
	b := &model.Booking{
		Code:      "BK-T" + shortuuid.New()[:10],
		Date:      date,
		GameID:    1,
		Status:    model.BookingConfirmed,
		GuestName: model.DefaultGuestName,
	}
	for _, id := range slotIDs {
		b.Items = append(b.Items, model.BookingItem{SlotID: id, Label: "6:00 AM - 7:00 AM", StartHour: 6, EndHour: 7, Price: 500})
		b.TotalPrice += 500
	}
	return b
}

func TestBookingRepoSlotClaims(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepo(db)
	ctx := context.Background()

	date := "2099-01-01"
	slot := uint64(1_000_000 + rand.Intn(1_000_000))

	first := newBooking(date, slot)
	require.NoError(t, repo.Create(ctx, first))
	t.Cleanup(func() { _ = repo.Delete(ctx, first.Code) })
	assert.NotZero(t, first.ID)

	second := newBooking(date, slot)
	assert.ErrorIs(t, repo.Create(ctx, second), ErrSlotTaken)

	_, err := repo.GetByCode(ctx, second.Code)
	assert.ErrorIs(t, err, ErrNotFound, "rejected booking must not be persisted")

	claimed, err := repo.ClaimedSlotIDs(ctx, date, 1)
	require.NoError(t, err)
	assert.Contains(t, claimed, slot)

	ok, err := repo.Transition(ctx, first.Code, []string{model.BookingConfirmed}, model.BookingCancelled, nil)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = repo.Transition(ctx, first.Code, []string{model.BookingConfirmed}, model.BookingCancelled, nil)
	require.NoError(t, err)
	assert.False(t, ok)

	require.NoError(t, repo.Create(ctx, second), "cancellation releases the slot")
	t.Cleanup(func() { _ = repo.Delete(ctx, second.Code) })

	got, err := repo.GetByCode(ctx, second.Code)
	require.NoError(t, err)
	require.Len(t, got.Items, 1)
	assert.Equal(t, slot, got.Items[0].SlotID)
	assert.Equal(t, int64(500), got.TotalPrice)
}

func TestBookingRepoConcurrentClaims(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepo(db)
	ctx := context.Background()

	date := "2099-01-02"
	slot := uint64(2_000_000 + rand.Intn(1_000_000))

	const workers = 8
	var (
		wg    sync.WaitGroup
		mu    sync.Mutex
		wins  []string
		taken int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			b := newBooking(date, slot)
			err := repo.Create(ctx, b)
			mu.Lock()
			defer mu.Unlock()
			switch {
			case err == nil:
				wins = append(wins, b.Code)
			case errors.Is(err, ErrSlotTaken):
				taken++
			default:
				t.Errorf("unexpected error: %v", err)
			}
		}()
	}
	wg.Wait()
	for _, code := range wins {
		_ = repo.Delete(ctx, code)
	}
	assert.Len(t, wins, 1)
	assert.Equal(t, workers-1, taken)
}

func TestBookingRepoDuplicateCodeAndDelete(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepo(db)
	ctx := context.Background()

	b := newBooking("2099-01-03", uint64(3_000_000+rand.Intn(1_000_000)))
	require.NoError(t, repo.Create(ctx, b))

	dup := newBooking("2099-01-03", uint64(4_000_000+rand.Intn(1_000_000)))
	dup.Code = b.Code
	assert.ErrorIs(t, repo.Create(ctx, dup), ErrDuplicateCode)

	exists, err := repo.CodeExists(ctx, b.Code)
	require.NoError(t, err)
	assert.True(t, exists)

	require.NoError(t, repo.Delete(ctx, b.Code))
	assert.ErrorIs(t, repo.Delete(ctx, b.Code), ErrNotFound)
}

func TestBookingRepoConcurrentTransition(t *testing.T) {
	db := testDB(t)
	repo := NewBookingRepo(db)
	ctx := context.Background()

	date := "2099-01-04"
	slot := uint64(4_000_000 + rand.Intn(1_000_000))
	b := newBooking(date, slot)
	b.Status = model.BookingPaymentPending
	require.NoError(t, repo.Create(ctx, b))
	t.Cleanup(func() { _ = repo.Delete(ctx, b.Code) })

	const workers = 6
	var (
		wg   sync.WaitGroup
		mu   sync.Mutex
		wins int
	)
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			ok, err := repo.Transition(ctx, b.Code, []string{model.BookingPaymentPending}, model.BookingCancelled, nil)
			assert.NoError(t, err)
			mu.Lock()
			defer mu.Unlock()
			if ok {
				wins++
			}
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, wins)

	got, err := repo.GetByCode(ctx, b.Code)
	require.NoError(t, err)
	assert.Equal(t, model.BookingCancelled, got.Status)

	claimed, err := repo.ClaimedSlotIDs(ctx, date, 1)
	require.NoError(t, err)
	assert.NotContains(t, claimed, slot)
}
