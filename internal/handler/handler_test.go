package handler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/iliyamo/turf-booking/internal/model"
	"github.com/iliyamo/turf-booking/internal/repository"
	"github.com/iliyamo/turf-booking/internal/service"
)

func do(h echo.HandlerFunc, method, body string, setup func(echo.Context)) *httptest.ResponseRecorder {
	e := echo.New()
	req := httptest.NewRequest(method, "/", strings.NewReader(body))
	req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	if setup != nil {
		setup(c)
	}
	_ = h(c)
	return rec
}

func errorBody(t *testing.T, rec *httptest.ResponseRecorder) string {
	t.Helper()
	var m map[string]string
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &m))
	return m["error"]
}

func TestRespondErrorStatus(t *testing.T) {
	cases := map[error]int{
		service.ErrInvalidInput:                              http.StatusBadRequest,
		fmt.Errorf("%w: date", service.ErrInvalidInput):      http.StatusBadRequest,
		service.ErrInvalidSignature:                          http.StatusBadRequest,
		service.ErrBookingNotFound:                           http.StatusNotFound,
		service.ErrSlotAlreadyBooked:                         http.StatusConflict,
		fmt.Errorf("%w: closed", service.ErrClosureConflict): http.StatusConflict,
		service.ErrRefundInProgress:                          http.StatusConflict,
		service.ErrAmountMismatch:                            http.StatusConflict,
		service.ErrGatewayUnavailable:                        http.StatusBadGateway,
		service.ErrPaymentsDisabled:                          http.StatusServiceUnavailable,
		errors.New("connection refused"):                     http.StatusInternalServerError,
	}
	for err, want := range cases {
		rec := do(func(c echo.Context) error { return respondError(c, err) }, http.MethodGet, "", nil)
		assert.Equal(t, want, rec.Code, err.Error())
		if want == http.StatusInternalServerError {
			assert.Equal(t, "internal error", errorBody(t, rec))
		} else {
			assert.Equal(t, err.Error(), errorBody(t, rec))
		}
	}
}

func TestGetUserID(t *testing.T) {
	e := echo.New()
	c := e.NewContext(httptest.NewRequest(http.MethodGet, "/", nil), httptest.NewRecorder())

	_, ok := getUserID(c)
	assert.False(t, ok)
	assert.Nil(t, userIDPtr(c))

	for _, v := range []interface{}{uint64(7), float64(7), "7"} {
		c.Set("user_id", v)
		id, ok := getUserID(c)
		assert.True(t, ok)
		assert.Equal(t, uint64(7), id)
	}
}

func TestPaymentHandlerValidation(t *testing.T) {
	bookings := service.NewBookingService(nil, nil, nil, nil, service.BookingConfig{})
	h := NewPaymentHandler(service.NewPaymentService(bookings, nil, nil, nil, "INR"))

	cases := []struct {
		name string
		fn   echo.HandlerFunc
		body string
		want int
	}{
		{"malformed", h.CreateOrder, `{`, http.StatusBadRequest},
		{"missing slots", h.CreateOrder, `{"date":"2026-05-01","gameId":1}`, http.StatusBadRequest},
		{"missing email", h.CreateOrder, `{"date":"2026-05-01","gameId":1,"slotIds":[3],"guest":{"name":"A"}}`, http.StatusBadRequest},
		{"both shapes", h.CreateOrder, `{"bookingId":"BK-1234","date":"2026-05-01","slotIds":[3]}`, http.StatusBadRequest},
		{"disabled", h.CreateOrder, `{"bookingId":"BK-1234"}`, http.StatusServiceUnavailable},
		{"verify missing fields", h.Verify, `{"bookingId":"BK-1234"}`, http.StatusBadRequest},
		{"verify disabled", h.Verify, `{"bookingId":"BK-1","orderId":"o","paymentId":"p","signature":"s"}`, http.StatusServiceUnavailable},
		{"refund missing id", h.Refund, `{}`, http.StatusBadRequest},
		{"refund bad amount", h.Refund, `{"paymentId":"pay_1","amountRupees":"ten"}`, http.StatusBadRequest},
		{"refund disabled", h.Refund, `{"paymentId":"pay_1","amountRupees":10}`, http.StatusServiceUnavailable},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			rec := do(tc.fn, http.MethodPost, tc.body, nil)
			assert.Equal(t, tc.want, rec.Code, rec.Body.String())
		})
	}
}

func TestHealth(t *testing.T) {
	assert.Equal(t, http.StatusOK, do(Health(nil), http.MethodGet, "", nil).Code)
	assert.Equal(t, http.StatusOK, do(Health(pinger{}), http.MethodGet, "", nil).Code)
	assert.Equal(t, http.StatusServiceUnavailable, do(Health(pinger{err: errors.New("down")}), http.MethodGet, "", nil).Code)
}

type pinger struct{ err error }

func (p pinger) PingContext(context.Context) error { return p.err }

// ----- auth -----

type memUsers struct {
	mu    sync.Mutex
	users []model.User
}

func (m *memUsers) Create(_ context.Context, email, hash, role string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return 0, repository.ErrEmailExists
		}
	}
	u := model.User{ID: uint64(len(m.users) + 1), Email: email, PasswordHash: hash, Role: role, IsActive: true}
	m.users = append(m.users, u)
	return u.ID, nil
}

func (m *memUsers) GetByEmail(_ context.Context, email string) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.Email == email {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

func (m *memUsers) GetByID(_ context.Context, id uint64) (model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if u.ID == id {
			return u, nil
		}
	}
	return model.User{}, repository.ErrNotFound
}

type memTokens struct {
	mu     sync.Mutex
	tokens map[string]uint64
}

func (m *memTokens) StoreRefresh(_ context.Context, uid uint64, hash string, _ time.Time) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tokens[hash] = uid
	return nil
}

func (m *memTokens) ValidateRefresh(_ context.Context, hash string) (uint64, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	uid, ok := m.tokens[hash]
	if !ok {
		return 0, repository.ErrNotFound
	}
	return uid, nil
}

func (m *memTokens) RevokeByHash(_ context.Context, hash string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.tokens, hash)
	return nil
}

func TestAuthFlow(t *testing.T) {
	h := NewAuthHandler(AuthSettings{JWTSecret: "s", AccessTTL: time.Minute, RefreshTTL: time.Hour, BcryptCost: 4},
		&memUsers{}, &memTokens{tokens: map[string]uint64{}})

	rec := do(h.Register, http.MethodPost, `{"email":" Asha@Example.com ","password":"hunter22!"}`, nil)
	require.Equal(t, http.StatusCreated, rec.Code, rec.Body.String())
	var reg authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &reg))
	assert.Equal(t, "asha@example.com", reg.User.Email)
	assert.Equal(t, model.RoleCustomer, reg.User.Role)
	assert.NotEmpty(t, reg.Access.Token)

	assert.Equal(t, http.StatusConflict, do(h.Register, http.MethodPost, `{"email":"asha@example.com","password":"hunter22!"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(h.Register, http.MethodPost, `{"email":"b@example.com","password":"short"}`, nil).Code)
	assert.Equal(t, http.StatusBadRequest, do(h.Register, http.MethodPost, `{"email":"","password":"hunter22!"}`, nil).Code)

	assert.Equal(t, http.StatusUnauthorized, do(h.Login, http.MethodPost, `{"email":"asha@example.com","password":"wrong-pass"}`, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h.Login, http.MethodPost, `{"email":"nobody@example.com","password":"hunter22!"}`, nil).Code)
	rec = do(h.Login, http.MethodPost, `{"email":"asha@example.com","password":"hunter22!"}`, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	body := fmt.Sprintf(`{"refresh_token":%q}`, reg.Refresh.Token)
	rec = do(h.Refresh, http.MethodPost, body, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	var rotated authResp
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &rotated))
	assert.NotEqual(t, reg.Refresh.Token, rotated.Refresh.Token)

	// The old refresh token was rotated away.
	assert.Equal(t, http.StatusUnauthorized, do(h.Refresh, http.MethodPost, body, nil).Code)

	out := fmt.Sprintf(`{"refresh_token":%q}`, rotated.Refresh.Token)
	assert.Equal(t, http.StatusNoContent, do(h.Logout, http.MethodPost, out, nil).Code)
	assert.Equal(t, http.StatusUnauthorized, do(h.Logout, http.MethodPost, out, nil).Code)

	rec = do(h.Me, http.MethodGet, "", func(c echo.Context) { c.Set("user_id", reg.User.ID) })
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), "asha@example.com")
	assert.Equal(t, http.StatusUnauthorized, do(h.Me, http.MethodGet, "", nil).Code)
}
