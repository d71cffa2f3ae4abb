package booking

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"carwash/internal/carwash"
	"carwash/internal/catalog"
	"carwash/pkg/logging"
)

var errTransient = errors.New("connection reset")

var testLoc = time.FixedZone("TRT", 3*60*60)

// memStore is an in-memory Store with the same conditional-update semantics as Repository.
type memStore struct {
	mu      sync.Mutex
	rows    map[int64]*Booking
	history map[int64][]HistoryEntry
	nextID  int64

	getCalls        int
	getFailures     int
	transitionCalls int
	failTransition  map[int64]error
	// beforeTransition runs under no lock just before a conditional update is applied.
	beforeTransition func(t Transition)
}

func newMemStore() *memStore {
	return &memStore{
		rows:           map[int64]*Booking{},
		history:        map[int64][]HistoryEntry{},
		failTransition: map[int64]error{},
	}
}

func (m *memStore) seed(b Booking) *Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	b.ID = m.nextID
	if b.BookingNumber == "" {
		b.BookingNumber = "BK000000-SEED" + string(rune('A'+b.ID%26))
	}
	if b.PaymentStatus == "" {
		b.PaymentStatus = PaymentPending
	}
	if b.Status == StatusCompleted && b.CompletedAt == nil {
		t := b.ScheduledAt
		b.CompletedAt = &t
	}
	m.rows[b.ID] = &b
	cp := b
	return &cp
}

func (m *memStore) row(id int64) Booking {
	m.mu.Lock()
	defer m.mu.Unlock()
	return *m.rows[id]
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.rows)
}

func (m *memStore) Get(ctx context.Context, id int64) (*Booking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.getCalls++
	if m.getFailures > 0 {
		m.getFailures--
		return nil, errTransient
	}
	b, ok := m.rows[id]
	if !ok {
		return nil, ErrNotFound
	}
	cp := *b
	return &cp, nil
}

func (m *memStore) Insert(ctx context.Context, b *Booking, actor string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.nextID++
	b.ID = m.nextID
	cp := *b
	m.rows[b.ID] = &cp
	m.history[b.ID] = append(m.history[b.ID], HistoryEntry{
		BookingID: b.ID, EventType: "BOOKING_CREATED", ToStatus: string(b.Status), Actor: actor, OccurredAt: b.CreatedAt,
	})
	return nil
}

func (m *memStore) Transition(ctx context.Context, t Transition) (*Booking, error) {
	if m.beforeTransition != nil {
		m.beforeTransition(t)
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.transitionCalls++
	if err := m.failTransition[t.BookingID]; err != nil {
		return nil, err
	}
	b, ok := m.rows[t.BookingID]
	if !ok || b.Status != t.Expected {
		return nil, ErrStale
	}

	at := t.At
	b.Status = t.To
	b.UpdatedAt = at
	switch t.To {
	case StatusConfirmed:
		b.ConfirmedAt = &at
	case StatusCompleted:
		b.CompletedAt = &at
	case StatusCancelled:
		b.CancelledAt = &at
		reason := t.Reason
		b.CancellationReason = &reason
		prior := b.PaymentStatus
		b.CancelledPaymentStatus = &prior
	}
	if t.PaymentStatus != nil {
		b.PaymentStatus = *t.PaymentStatus
	}
	m.history[b.ID] = append(m.history[b.ID], HistoryEntry{
		BookingID: b.ID, EventType: "STATUS_CHANGED", FromStatus: string(t.Expected), ToStatus: string(t.To), Actor: t.Actor, OccurredAt: at,
	})
	cp := *b
	return &cp, nil
}

func (m *memStore) ListDue(ctx context.Context, cutoff time.Time, after DueBooking, limit int) ([]DueBooking, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DueBooking
	for _, b := range m.rows {
		if b.Status != StatusConfirmed && b.Status != StatusInProgress {
			continue
		}
		if !b.ScheduledAt.Before(cutoff) {
			continue
		}
		if b.ScheduledAt.Before(after.ScheduledAt) || (b.ScheduledAt.Equal(after.ScheduledAt) && b.ID <= after.ID) {
			continue
		}
		out = append(out, DueBooking{ID: b.ID, Status: b.Status, ScheduledAt: b.ScheduledAt})
	}
	sort.Slice(out, func(i, j int) bool {
		if !out[i].ScheduledAt.Equal(out[j].ScheduledAt) {
			return out[i].ScheduledAt.Before(out[j].ScheduledAt)
		}
		return out[i].ID < out[j].ID
	})
	if len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) List(ctx context.Context, f ListFilter) ([]ListItem, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := []ListItem{}
	for _, b := range m.rows {
		if f.CarwashID > 0 && b.CarwashID != f.CarwashID {
			continue
		}
		if f.CustomerID > 0 && (b.CustomerID == nil || *b.CustomerID != f.CustomerID) {
			continue
		}
		if len(f.Statuses) > 0 {
			match := false
			for _, s := range f.Statuses {
				match = match || s == b.Status
			}
			if !match {
				continue
			}
		}
		out = append(out, ListItem{Booking: *b})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (m *memStore) History(ctx context.Context, bookingID int64) ([]HistoryEntry, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]HistoryEntry(nil), m.history[bookingID]...), nil
}

type fakeCarwashes map[int64]*carwash.Carwash

func (f fakeCarwashes) Get(ctx context.Context, id int64) (*carwash.Carwash, error) {
	c, ok := f[id]
	if !ok {
		return nil, carwash.ErrNotFound
	}
	return c, nil
}

type fakeServices map[int64]*catalog.Service

func (f fakeServices) Get(ctx context.Context, carwashID, serviceID int64) (*catalog.Service, error) {
	s, ok := f[serviceID]
	if !ok || s.CarwashID != carwashID {
		return nil, catalog.ErrNotFound
	}
	return s, nil
}

type hoursFunc func(carwashID int64, at time.Time) bool

func (f hoursFunc) Accepts(ctx context.Context, carwashID int64, at time.Time) (bool, error) {
	return f(carwashID, at), nil
}

type fakePublisher struct {
	mu     sync.Mutex
	events []StatusChanged
	err    error
}

func (p *fakePublisher) PublishStatusChanged(ctx context.Context, ev StatusChanged) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
	return p.err
}

func (p *fakePublisher) all() []StatusChanged {
	p.mu.Lock()
	defer p.mu.Unlock()
	return append([]StatusChanged(nil), p.events...)
}

const (
	openCarwashID   int64 = 7
	closedCarwashID int64 = 8
	otherCarwashID  int64 = 9
	washServiceID   int64 = 70
	customerID      int64 = 42
)

type fixture struct {
	actions *Actions
	store   *memStore
	pub     *fakePublisher
	now     time.Time
}

func newFixture() *fixture {
	f := &fixture{
		store: newMemStore(),
		pub:   &fakePublisher{},
		now:   time.Date(2026, 10, 16, 12, 0, 0, 0, testLoc),
	}
	f.actions = &Actions{
		Store: f.store,
		Carwashes: fakeCarwashes{
			openCarwashID:   {ID: openCarwashID, Name: "Köpük Oto Yıkama", Status: "Açık", IsActive: true},
			closedCarwashID: {ID: closedCarwashID, Name: "Closed Wash", Status: "Kapalı"},
			otherCarwashID:  {ID: otherCarwashID, Name: "Other Wash", Status: "open", IsActive: true},
		},
		Services: fakeServices{
			washServiceID: {ID: washServiceID, CarwashID: openCarwashID, Name: "Dış Yıkama", Price: decimal.RequireFromString("250.00"), IsActive: true},
		},
		Publisher: f.pub,
		Log:       logging.Discard(),
		Location:  testLoc,
		Now:       func() time.Time { return f.now },
	}
	return f
}

func (f *fixture) validInput() CreateInput {
	return CreateInput{
		CustomerID: customerID,
		CarwashID:  openCarwashID,
		ServiceID:  washServiceID,
		Vehicle:    Vehicle{Plate: "34 ABC 123", Model: "Corolla"},
		Date:       "2026-10-17",
		Time:       "10:00",
	}
}

func (f *fixture) seed(status Status, carwashID int64, scheduledAt time.Time) *Booking {
	cid := customerID
	return f.store.seed(Booking{
		CustomerID:  &cid,
		CarwashID:   carwashID,
		Status:      status,
		ScheduledAt: scheduledAt,
		CreatedAt:   f.now.Add(-time.Hour),
		UpdatedAt:   f.now.Add(-time.Hour),
	})
}
