package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"carwash/internal/events"
	"carwash/pkg/db"
)

// Repository is the Postgres Store.
type Repository struct {
	db *pgxpool.Pool
}

func NewRepository(db *pgxpool.Pool) *Repository {
	return &Repository{db: db}
}

var _ Store = (*Repository)(nil)

const bookingColumns = `
b.id, b.booking_number, b.user_id, b.carwash_id, b.service_id,
b.vehicle_plate, COALESCE(b.vehicle_model, ''), COALESCE(b.vehicle_type, ''),
b.scheduled_at, b.status, b.total_price::text, b.payment_status, COALESCE(b.payment_method, ''),
COALESCE(b.notes, ''), COALESCE(b.customer_name, ''), COALESCE(b.customer_phone, ''),
b.cancellation_reason, b.cancelled_payment_status,
b.confirmed_at, b.completed_at, b.cancelled_at, b.created_at, b.updated_at
`

func scanBooking(row pgx.Row, extra ...any) (*Booking, error) {
	var (
		b                 Booking
		status, payStatus string
		price             string
		cancelledPay      *string
	)
	dest := []any{
		&b.ID, &b.BookingNumber, &b.CustomerID, &b.CarwashID, &b.ServiceID,
		&b.Vehicle.Plate, &b.Vehicle.Model, &b.Vehicle.Type,
		&b.ScheduledAt, &status, &price, &payStatus, &b.PaymentMethod,
		&b.Notes, &b.CustomerName, &b.CustomerPhone,
		&b.CancellationReason, &cancelledPay,
		&b.ConfirmedAt, &b.CompletedAt, &b.CancelledAt, &b.CreatedAt, &b.UpdatedAt,
	}
	if err := row.Scan(append(dest, extra...)...); err != nil {
		return nil, err
	}
	b.Status = Status(status)
	b.PaymentStatus = PaymentStatus(payStatus)
	if cancelledPay != nil {
		ps := PaymentStatus(*cancelledPay)
		b.CancelledPaymentStatus = &ps
	}
	p, err := decimal.NewFromString(price)
	if err != nil {
		return nil, fmt.Errorf("total_price: %w", err)
	}
	b.TotalPrice = p
	return &b, nil
}

func (r *Repository) Get(ctx context.Context, id int64) (*Booking, error) {
	q := `SELECT ` + bookingColumns + ` FROM bookings b WHERE b.id = $1`
	b, err := scanBooking(r.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, ErrNotFound
	}
	return b, err
}

func (r *Repository) Insert(ctx context.Context, b *Booking, actor string) error {
	q := `
INSERT INTO bookings AS b (
  booking_number, user_id, carwash_id, service_id,
  vehicle_plate, vehicle_model, vehicle_type, scheduled_at,
  customer_name, customer_phone, notes, total_price,
  status, payment_status, confirmed_at, created_at, updated_at
) VALUES (
  $1, $2, $3, $4,
  $5, NULLIF($6, ''), NULLIF($7, ''), $8,
  NULLIF($9, ''), NULLIF($10, ''), NULLIF($11, ''), CAST($12 AS numeric),
  $13, $14, $15, $16, $16
)
RETURNING ` + bookingColumns

	return db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		created, err := scanBooking(tx.QueryRow(ctx, q,
			b.BookingNumber, b.CustomerID, b.CarwashID, b.ServiceID,
			b.Vehicle.Plate, b.Vehicle.Model, b.Vehicle.Type, b.ScheduledAt,
			b.CustomerName, b.CustomerPhone, b.Notes, b.TotalPrice.StringFixed(2),
			string(b.Status), string(b.PaymentStatus), b.ConfirmedAt, b.CreatedAt,
		))
		if err != nil {
			return err
		}
		*b = *created
		return events.Insert(ctx, tx, b.ID, events.TypeCreated, "", string(b.Status), actor, b.CreatedAt, map[string]any{
			"bookingNumber": b.BookingNumber,
			"scheduledAt":   b.ScheduledAt,
		})
	})
}

// Transition applies one conditional update. Side-effect columns are derived from the target
// status inside the same statement, so completed_at is written exactly when status becomes
// completed and the pre-cancel payment status is captured from the row itself.
func (r *Repository) Transition(ctx context.Context, t Transition) (*Booking, error) {
	q := `
UPDATE bookings AS b SET
  status = $3::text,
  updated_at = $4::timestamptz,
  confirmed_at = CASE WHEN $3::text = 'confirmed' THEN $4::timestamptz ELSE b.confirmed_at END,
  completed_at = CASE WHEN $3::text = 'completed' THEN $4::timestamptz ELSE b.completed_at END,
  cancelled_at = CASE WHEN $3::text = 'cancelled' THEN $4::timestamptz ELSE b.cancelled_at END,
  cancellation_reason = CASE WHEN $3::text = 'cancelled' THEN $5::text ELSE b.cancellation_reason END,
  cancelled_payment_status = CASE WHEN $3::text = 'cancelled' THEN b.payment_status ELSE b.cancelled_payment_status END,
  payment_status = COALESCE($6::text, b.payment_status)
WHERE b.id = $1 AND b.status = $2::text
RETURNING ` + bookingColumns

	var pay *string
	if t.PaymentStatus != nil {
		s := string(*t.PaymentStatus)
		pay = &s
	}

	var out *Booking
	err := db.WithTx(ctx, r.db, func(tx pgx.Tx) error {
		updated, err := scanBooking(tx.QueryRow(ctx, q, t.BookingID, string(t.Expected), string(t.To), t.At, t.Reason, pay))
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return ErrStale
			}
			return err
		}
		out = updated

		data := map[string]any{}
		if t.To == StatusCancelled {
			data["reason"] = t.Reason
			if updated.CancelledPaymentStatus != nil {
				data["paymentStatusAtCancel"] = *updated.CancelledPaymentStatus
			}
		}
		if t.PaymentStatus != nil {
			data["paymentStatus"] = *t.PaymentStatus
		}
		return events.Insert(ctx, tx, t.BookingID, events.TypeStatusChanged, string(t.Expected), string(t.To), t.Actor, t.At, data)
	})
	if err != nil {
		return nil, err
	}
	return out, nil
}

func (r *Repository) ListDue(ctx context.Context, cutoff time.Time, after DueBooking, limit int) ([]DueBooking, error) {
	const q = `
SELECT b.id, b.status, b.scheduled_at
FROM bookings b
WHERE b.status = ANY($1::text[])
  AND b.scheduled_at < $2
  AND (b.scheduled_at, b.id) > ($3::timestamptz, $4::bigint)
ORDER BY b.scheduled_at ASC, b.id ASC
LIMIT $5
`
	states := make([]string, 0, len(sweepable))
	for _, s := range sweepable {
		states = append(states, string(s))
	}
	rows, err := r.db.Query(ctx, q, states, cutoff, after.ScheduledAt, after.ID, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []DueBooking
	for rows.Next() {
		var (
			d      DueBooking
			status string
		)
		if err := rows.Scan(&d.ID, &status, &d.ScheduledAt); err != nil {
			return nil, err
		}
		d.Status = Status(status)
		out = append(out, d)
	}
	return out, rows.Err()
}

func (r *Repository) List(ctx context.Context, f ListFilter) ([]ListItem, error) {
	q := `
SELECT ` + bookingColumns + `, COALESCE(s.name, ''), c.name
FROM bookings b
JOIN carwashes c ON c.id = b.carwash_id
LEFT JOIN services s ON s.id = b.service_id
WHERE ($1::bigint = 0 OR b.user_id = $1)
  AND ($2::bigint = 0 OR b.carwash_id = $2)
  AND (cardinality($3::text[]) = 0 OR b.status = ANY($3::text[]))
ORDER BY b.scheduled_at DESC, b.id DESC
LIMIT $4 OFFSET $5
`
	states := make([]string, 0, len(f.Statuses))
	for _, s := range f.Statuses {
		states = append(states, string(s))
	}
	rows, err := r.db.Query(ctx, q, f.CustomerID, f.CarwashID, states, f.Limit, f.Offset)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []ListItem{}
	for rows.Next() {
		var item ListItem
		b, err := scanBooking(rows, &item.ServiceName, &item.CarwashName)
		if err != nil {
			return nil, err
		}
		item.Booking = *b
		out = append(out, item)
	}
	return out, rows.Err()
}

func (r *Repository) History(ctx context.Context, bookingID int64) ([]HistoryEntry, error) {
	return events.ListByBooking(ctx, r.db, bookingID)
}
