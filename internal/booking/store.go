package booking

import (
	"context"
	"time"

	"carwash/internal/events"
)

// Transition is one conditional status change. It applies only while the row is still in
// Expected; otherwise the store returns ErrStale and writes nothing.
type Transition struct {
	BookingID int64
	Expected  Status
	To        Status
	At        time.Time
	Actor     string
	// Reason is stored when To is cancelled.
	Reason string
	// PaymentStatus, when set, replaces the payment status in the same write.
	PaymentStatus *PaymentStatus
}

// DueBooking is a sweep candidate. ScheduledAt and ID double as the paging cursor.
type DueBooking struct {
	ID          int64
	Status      Status
	ScheduledAt time.Time
}

// HistoryEntry is one row of a booking's status history.
type HistoryEntry = events.Event

type Store interface {
	Get(ctx context.Context, id int64) (*Booking, error)
	// Insert stores b, filling ID and timestamps, and records a creation history row.
	Insert(ctx context.Context, b *Booking, actor string) error
	Transition(ctx context.Context, t Transition) (*Booking, error)
	// ListDue returns sweepable bookings scheduled before cutoff, ordered by
	// (scheduled_at, id) and strictly after the cursor.
	ListDue(ctx context.Context, cutoff time.Time, after DueBooking, limit int) ([]DueBooking, error)
	List(ctx context.Context, f ListFilter) ([]ListItem, error)
	History(ctx context.Context, bookingID int64) ([]HistoryEntry, error)
}
