package service

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/iliyamo/turf-booking/internal/model"
	"github.com/iliyamo/turf-booking/internal/repository"
	"github.com/iliyamo/turf-booking/internal/utils"
)

// fakeDB is an in-memory stand-in for MySQL.  It reproduces the unique keys
// and conditional updates the services rely on, under one mutex.
type fakeDB struct {
	mu sync.Mutex

	games    map[uint64]model.Game
	slots    map[uint64]model.Slot
	closures []model.Closure
	bookings map[string]*model.Booking
	claims   map[claimKey]string
	payments []*model.Payment
	refunds  []*model.Refund
	events   []model.ScanEvent

	eventErr error
	seq      uint64
}

type claimKey struct {
	date   string
	gameID uint64
	slotID uint64
}

func newFakeDB() *fakeDB {
	return &fakeDB{
		games: map[uint64]model.Game{
			1: {ID: 1, CategoryID: 1, Name: "Football"},
			2: {ID: 2, CategoryID: 1, Name: "Cricket"},
		},
		slots:    map[uint64]model.Slot{},
		bookings: map[string]*model.Booking{},
		claims:   map[claimKey]string{},
	}
}

func (db *fakeDB) next() uint64 {
	db.seq++
	return db.seq
}

func (db *fakeDB) addSlot(gameID uint64, start, end int, price int64, active bool) model.Slot {
	db.mu.Lock()
	defer db.mu.Unlock()
	s := model.Slot{ID: db.next(), GameID: gameID, StartHour: start, EndHour: end, Price: price, Active: active,
		Label: utils.FormatTimeRange(start, end)}
	db.slots[s.ID] = s
	return s
}

func (db *fakeDB) addClosure(c model.Closure) {
	db.mu.Lock()
	defer db.mu.Unlock()
	c.ID = db.next()
	db.closures = append(db.closures, c)
}

func (db *fakeDB) booking(code string) model.Booking {
	db.mu.Lock()
	defer db.mu.Unlock()
	return cloneBooking(db.bookings[code], db.games)
}

func (db *fakeDB) payment(orderID string) model.Payment {
	db.mu.Lock()
	defer db.mu.Unlock()
	for _, p := range db.payments {
		if p.OrderID == orderID {
			return *p
		}
	}
	return model.Payment{}
}

func (db *fakeDB) scanEvents() []model.ScanEvent {
	db.mu.Lock()
	defer db.mu.Unlock()
	return append([]model.ScanEvent(nil), db.events...)
}

func cloneBooking(b *model.Booking, games map[uint64]model.Game) model.Booking {
	if b == nil {
		return model.Booking{}
	}
	out := *b
	out.Items = append([]model.BookingItem(nil), b.Items...)
	out.GameName = games[b.GameID].Name
	return out
}

type (
	fakeGames    struct{ *fakeDB }
	fakeSlots    struct{ *fakeDB }
	fakeClosures struct{ *fakeDB }
	fakeBookings struct{ *fakeDB }
	fakePayments struct{ *fakeDB }
	fakeEvents   struct{ *fakeDB }
)

func (f fakeGames) GetByID(_ context.Context, id uint64) (model.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	g, ok := f.games[id]
	if !ok {
		return model.Game{}, repository.ErrNotFound
	}
	return g, nil
}

func (f fakeGames) List(context.Context) ([]model.Game, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Game{}
	for _, g := range f.games {
		out = append(out, g)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f fakeSlots) GetByID(_ context.Context, id uint64) (model.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return model.Slot{}, repository.ErrNotFound
	}
	return s, nil
}

func (f fakeSlots) GetByIDs(_ context.Context, ids []uint64) ([]model.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Slot{}
	seen := map[uint64]bool{}
	for _, id := range ids {
		if s, ok := f.slots[id]; ok && !seen[id] {
			seen[id] = true
			out = append(out, s)
		}
	}
	return out, nil
}

func (f fakeSlots) List(_ context.Context, gameID uint64, active *bool) ([]model.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Slot{}
	for _, s := range f.slots {
		if gameID != 0 && s.GameID != gameID {
			continue
		}
		if active != nil && s.Active != *active {
			continue
		}
		out = append(out, s)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].StartHour < out[j].StartHour })
	return out, nil
}

func (f fakeSlots) startTaken(gameID uint64, start int) bool {
	for _, s := range f.slots {
		if s.GameID == gameID && s.StartHour == start {
			return true
		}
	}
	return false
}

func (f fakeSlots) Create(_ context.Context, s *model.Slot) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startTaken(s.GameID, s.StartHour) {
		return repository.ErrDuplicate
	}
	s.ID = f.next()
	f.slots[s.ID] = *s
	return nil
}

func (f fakeSlots) CreateMany(_ context.Context, slots []model.Slot) ([]model.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Slot{}
	for _, s := range slots {
		if f.startTaken(s.GameID, s.StartHour) {
			continue
		}
		s.ID = f.next()
		f.slots[s.ID] = s
		out = append(out, s)
	}
	return out, nil
}

func (f fakeSlots) Update(_ context.Context, id uint64, price *int64, active *bool) (model.Slot, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.slots[id]
	if !ok {
		return model.Slot{}, repository.ErrNotFound
	}
	if price != nil {
		s.Price = *price
	}
	if active != nil {
		s.Active = *active
	}
	f.slots[id] = s
	return s, nil
}

func (f fakeSlots) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.slots[id]; !ok {
		return repository.ErrNotFound
	}
	for _, b := range f.bookings {
		if b.Status == model.BookingCancelled {
			continue
		}
		for _, it := range b.Items {
			if it.SlotID == id {
				return repository.ErrConflict
			}
		}
	}
	delete(f.slots, id)
	return nil
}

func (f fakeSlots) DeleteByGame(_ context.Context, gameID uint64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, b := range f.bookings {
		if b.GameID == gameID && b.Status != model.BookingCancelled {
			return 0, repository.ErrConflict
		}
	}
	var n int64
	for id, s := range f.slots {
		if s.GameID == gameID {
			delete(f.slots, id)
			n++
		}
	}
	return n, nil
}

func (f fakeClosures) List(_ context.Context, date string) ([]model.Closure, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Closure{}
	for _, c := range f.closures {
		if date == "" || c.Date == date {
			out = append(out, c)
		}
	}
	return out, nil
}

func hourKey(h *int) int {
	if h == nil {
		return -1
	}
	return *h
}

func (f fakeClosures) Create(_ context.Context, c *model.Closure) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, o := range f.closures {
		if o.Date == c.Date && o.Type == c.Type && hourKey(o.StartHour) == hourKey(c.StartHour) &&
			hourKey(o.EndHour) == hourKey(c.EndHour) {
			return repository.ErrDuplicate
		}
	}
	c.ID = f.next()
	f.closures = append(f.closures, *c)
	return nil
}

func (f fakeClosures) Delete(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, c := range f.closures {
		if c.ID == id {
			f.closures = append(f.closures[:i], f.closures[i+1:]...)
			return nil
		}
	}
	return repository.ErrNotFound
}

func (f fakeBookings) CodeExists(_ context.Context, code string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.bookings[code]
	return ok, nil
}

func (f fakeBookings) Create(_ context.Context, b *model.Booking) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[b.Code]; ok {
		return repository.ErrDuplicateCode
	}
	if b.Status != model.BookingCancelled {
		for _, it := range b.Items {
			if _, taken := f.claims[claimKey{b.Date, b.GameID, it.SlotID}]; taken {
				return repository.ErrSlotTaken
			}
		}
		for _, it := range b.Items {
			f.claims[claimKey{b.Date, b.GameID, it.SlotID}] = b.Code
		}
	}
	b.ID = f.next()
	b.CreatedAt = time.Now().UTC()
	stored := cloneBooking(b, f.games)
	f.bookings[b.Code] = &stored
	return nil
}

func (f fakeBookings) GetByCode(_ context.Context, code string) (model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[code]
	if !ok {
		return model.Booking{}, repository.ErrNotFound
	}
	return cloneBooking(b, f.games), nil
}

func (f fakeBookings) List(_ context.Context, flt model.BookingFilter) ([]model.Booking, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []model.Booking{}
	for _, b := range f.bookings {
		if flt.Date != "" && b.Date != flt.Date || flt.Status != "" && b.Status != flt.Status ||
			flt.GameID != 0 && b.GameID != flt.GameID {
			continue
		}
		out = append(out, cloneBooking(b, f.games))
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].Date != out[j].Date {
			return out[i].Date > out[j].Date
		}
		return out[i].ID > out[j].ID
	})
	return out, nil
}

func (f fakeBookings) Transition(_ context.Context, code string, from []string, to string, at *time.Time) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	b, ok := f.bookings[code]
	if !ok {
		return false, nil
	}
	allowed := false
	for _, st := range from {
		if b.Status == st {
			allowed = true
		}
	}
	if !allowed {
		return false, nil
	}
	b.Status = to
	b.CheckedInAt = nil
	if to == model.BookingCheckedIn {
		t := time.Now().UTC()
		if at != nil {
			t = *at
		}
		b.CheckedInAt = &t
	}
	if to == model.BookingCancelled {
		for k, owner := range f.claims {
			if owner == code {
				delete(f.claims, k)
			}
		}
	}
	return true, nil
}

func (f fakeBookings) Delete(_ context.Context, code string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.bookings[code]; !ok {
		return repository.ErrNotFound
	}
	delete(f.bookings, code)
	for k, owner := range f.claims {
		if owner == code {
			delete(f.claims, k)
		}
	}
	return nil
}

func (f fakeBookings) ClaimedSlotIDs(_ context.Context, date string, gameID uint64) ([]uint64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := []uint64{}
	for k := range f.claims {
		if k.date == date && k.gameID == gameID {
			out = append(out, k.slotID)
		}
	}
	return out, nil
}

func (f fakePayments) open(code string) *model.Payment {
	var found *model.Payment
	for _, p := range f.payments {
		if p.BookingCode == code && p.Status == model.PaymentCreated && p.GatewayPaymentID == nil {
			found = p
		}
	}
	return found
}

func (f fakePayments) OpenOrder(_ context.Context, code string) (model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p := f.open(code); p != nil {
		return *p, nil
	}
	return model.Payment{}, repository.ErrNotFound
}

func (f fakePayments) Create(_ context.Context, p *model.Payment) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p.Status == model.PaymentCreated && p.GatewayPaymentID == nil && f.open(p.BookingCode) != nil {
		return repository.ErrOpenOrderExists
	}
	p.ID = f.next()
	p.CreatedAt = time.Now().UTC()
	stored := *p
	f.payments = append(f.payments, &stored)
	return nil
}

func (f fakePayments) GetByOrder(_ context.Context, orderID, code string) (model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.OrderID == orderID && (code == "" || p.BookingCode == code) {
			return *p, nil
		}
	}
	return model.Payment{}, repository.ErrNotFound
}

func (f fakePayments) GetByGatewayID(_ context.Context, id string) (model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, p := range f.payments {
		if p.GatewayPaymentID != nil && *p.GatewayPaymentID == id {
			return *p, nil
		}
	}
	return model.Payment{}, repository.ErrNotFound
}

func (f fakePayments) byID(id uint64) *model.Payment {
	for _, p := range f.payments {
		if p.ID == id {
			return p
		}
	}
	return nil
}

func (f fakePayments) MarkFailed(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if p := f.byID(id); p != nil && p.Status == model.PaymentCreated {
		p.Status = model.PaymentFailed
	}
	return nil
}

func (f fakePayments) Confirm(_ context.Context, c repository.ConfirmParams) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.byID(c.PaymentID)
	if p == nil || p.Status != model.PaymentCreated || p.GatewayPaymentID != nil {
		return false, repository.ErrStateChanged
	}
	for _, o := range f.payments {
		if o.GatewayPaymentID != nil && *o.GatewayPaymentID == c.GatewayPaymentID {
			return false, repository.ErrStateChanged
		}
	}
	gid, method := c.GatewayPaymentID, c.Method
	p.Status = model.PaymentSuccess
	p.GatewayPaymentID = &gid
	p.Method = &method
	p.Currency = c.Currency
	b, ok := f.bookings[c.BookingCode]
	if !ok || b.Status != model.BookingPaymentPending {
		return false, nil
	}
	b.Status = model.BookingConfirmed
	return true, nil
}

func (f fakePayments) PendingRefundExists(_ context.Context, paymentID uint64) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.refunds {
		if r.PaymentID == paymentID && r.Status == model.RefundPending {
			return true, nil
		}
	}
	return false, nil
}

func (f fakePayments) BeginRefund(_ context.Context, paymentID uint64, amount int64) (model.Refund, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p := f.byID(paymentID)
	if p == nil {
		return model.Refund{}, repository.ErrNotFound
	}
	for _, r := range f.refunds {
		if r.PaymentID == paymentID && r.Status == model.RefundPending {
			return model.Refund{}, repository.ErrRefundPending
		}
	}
	if p.RefundedAmount+amount > p.Amount {
		return model.Refund{}, repository.ErrRefundExceeds
	}
	r := &model.Refund{ID: f.next(), PaymentID: paymentID, Amount: amount, Status: model.RefundPending, CreatedAt: time.Now().UTC()}
	f.refunds = append(f.refunds, r)
	return *r, nil
}

func (f fakePayments) AbortRefund(_ context.Context, id uint64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, r := range f.refunds {
		if r.ID == id && r.GatewayRefundID == nil {
			f.refunds = append(f.refunds[:i], f.refunds[i+1:]...)
			return nil
		}
	}
	return nil
}

func (f fakePayments) CompleteRefund(_ context.Context, rf model.Refund) (model.Payment, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, r := range f.refunds {
		if r.ID == rf.ID {
			*r = rf
		}
	}
	p := f.byID(rf.PaymentID)
	if p.RefundedAmount+rf.Amount > p.Amount {
		return model.Payment{}, repository.ErrRefundExceeds
	}
	p.RefundedAmount += rf.Amount
	if p.RefundedAmount >= p.Amount {
		p.Status = model.PaymentRefunded
	}
	return *p, nil
}

func (f fakePayments) refundCount(paymentID uint64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, r := range f.refunds {
		if r.PaymentID == paymentID {
			n++
		}
	}
	return n
}

func (f fakeEvents) Create(_ context.Context, ev *model.ScanEvent) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.eventErr != nil {
		return f.eventErr
	}
	ev.ID = f.next()
	f.events = append(f.events, *ev)
	return nil
}
