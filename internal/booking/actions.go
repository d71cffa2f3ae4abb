package booking

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"carwash/internal/carwash"
	"carwash/internal/catalog"
)

// CarwashReader resolves the business a booking is made against.
type CarwashReader interface {
	Get(ctx context.Context, id int64) (*carwash.Carwash, error)
}

// ServiceReader resolves an active service of one carwash.
type ServiceReader interface {
	Get(ctx context.Context, carwashID, serviceID int64) (*catalog.Service, error)
}

// HoursChecker decides whether a carwash takes bookings at a given instant.
type HoursChecker interface {
	Accepts(ctx context.Context, carwashID int64, at time.Time) (bool, error)
}

const (
	defaultRejectReason         = "rejected by business"
	defaultCarwashCancelReason  = "cancelled by business"
	defaultCustomerCancelReason = "cancelled by customer"

	maxNotesLen  = 500
	maxReasonLen = 500
)

// Actions are the booking operations callers invoke. The acting user is always an explicit
// argument; nothing is read from ambient request state.
type Actions struct {
	Store     Store
	Carwashes CarwashReader
	Services  ServiceReader
	// Hours is optional. When nil every future slot is accepted.
	Hours     HoursChecker
	Publisher Publisher
	Log       logrus.FieldLogger
	// Location interprets the date and time a booking is requested for.
	Location *time.Location
	Now      func() time.Time
}

func (a *Actions) now() time.Time {
	if a.Now != nil {
		return a.Now()
	}
	return time.Now()
}

func (a *Actions) location() *time.Location {
	if a.Location != nil {
		return a.Location
	}
	return time.UTC
}

func (a *Actions) log() logrus.FieldLogger {
	if a.Log != nil {
		return a.Log
	}
	return logrus.StandardLogger()
}

func carwashActor(carwashID int64) string {
	return "carwash:" + strconv.FormatInt(carwashID, 10)
}

func customerActor(customerID int64) string {
	return "customer:" + strconv.FormatInt(customerID, 10)
}

// Approve confirms a pending booking of the acting carwash.
func (a *Actions) Approve(ctx context.Context, bookingID, carwashID int64) (*Booking, error) {
	b, err := a.loadOwned(ctx, bookingID, Owner{CarwashID: carwashID}, msgUnmodifiable)
	if err != nil {
		return nil, err
	}
	return a.transition(ctx, b, StatusConfirmed, carwashActor(carwashID), "", nil)
}

// Reject cancels a booking that is still awaiting approval.
func (a *Actions) Reject(ctx context.Context, bookingID, carwashID int64, reason string) (*Booking, error) {
	reason, err := cancelReason(reason, defaultRejectReason)
	if err != nil {
		return nil, err
	}
	b, err := a.loadOwned(ctx, bookingID, Owner{CarwashID: carwashID}, msgUnmodifiable)
	if err != nil {
		return nil, err
	}
	if b.Status != StatusPending {
		return nil, invalidTransition(b.Status, StatusCancelled)
	}
	return a.transition(ctx, b, StatusCancelled, carwashActor(carwashID), reason, nil)
}

// Start marks work as begun on a confirmed booking.
func (a *Actions) Start(ctx context.Context, bookingID, carwashID int64) (*Booking, error) {
	b, err := a.loadOwned(ctx, bookingID, Owner{CarwashID: carwashID}, msgUnmodifiable)
	if err != nil {
		return nil, err
	}
	return a.transition(ctx, b, StatusInProgress, carwashActor(carwashID), "", nil)
}

// Complete finishes a booking. Payment status is only touched when the caller supplies one.
func (a *Actions) Complete(ctx context.Context, bookingID, carwashID int64, payment *PaymentStatus) (*Booking, error) {
	if payment != nil && *payment != PaymentPending && *payment != PaymentPaid {
		return nil, validation(map[string]string{"payment_status": "Payment status must be pending or paid"})
	}
	b, err := a.loadOwned(ctx, bookingID, Owner{CarwashID: carwashID}, msgUnmodifiable)
	if err != nil {
		return nil, err
	}
	return a.transition(ctx, b, StatusCompleted, carwashActor(carwashID), "", payment)
}

// CarwashCancel cancels a pending or confirmed booking from the business side.
func (a *Actions) CarwashCancel(ctx context.Context, bookingID, carwashID int64, reason string) (*Booking, error) {
	reason, err := cancelReason(reason, defaultCarwashCancelReason)
	if err != nil {
		return nil, err
	}
	b, err := a.loadOwned(ctx, bookingID, Owner{CarwashID: carwashID}, msgUnmodifiable)
	if err != nil {
		return nil, err
	}
	return a.transition(ctx, b, StatusCancelled, carwashActor(carwashID), reason, nil)
}

// CustomerCancel cancels one of the customer's own bookings while it is pending or confirmed.
func (a *Actions) CustomerCancel(ctx context.Context, bookingID, customerID int64, reason string) (*Booking, error) {
	reason, err := cancelReason(reason, defaultCustomerCancelReason)
	if err != nil {
		return nil, err
	}
	b, err := a.loadOwned(ctx, bookingID, Owner{CustomerID: customerID}, msgUnmodifiable)
	if err != nil {
		return nil, err
	}
	return a.transition(ctx, b, StatusCancelled, customerActor(customerID), reason, nil)
}

// Get returns a booking visible to owner.
func (a *Actions) Get(ctx context.Context, bookingID int64, owner Owner) (*Booking, error) {
	return a.loadOwned(ctx, bookingID, owner, "booking not found")
}

// List returns one customer's or one carwash's bookings, newest slot first.
func (a *Actions) List(ctx context.Context, f ListFilter) ([]ListItem, error) {
	if (f.CustomerID > 0) == (f.CarwashID > 0) {
		return nil, validation(map[string]string{"owner": "Exactly one of customer or carwash is required"})
	}
	if f.Limit <= 0 || f.Limit > 200 {
		f.Limit = 50
	}
	if f.Offset < 0 {
		f.Offset = 0
	}
	items, err := retryRead(ctx, func() ([]ListItem, error) { return a.Store.List(ctx, f) })
	if err != nil {
		return nil, storage("list bookings", err)
	}
	return items, nil
}

// History returns the status history of a booking visible to owner.
func (a *Actions) History(ctx context.Context, bookingID int64, owner Owner) ([]HistoryEntry, error) {
	if _, err := a.loadOwned(ctx, bookingID, owner, "booking not found"); err != nil {
		return nil, err
	}
	evs, err := retryRead(ctx, func() ([]HistoryEntry, error) { return a.Store.History(ctx, bookingID) })
	if err != nil {
		return nil, storage("load booking history", err)
	}
	return evs, nil
}

// loadOwned fetches a booking and hides both absence and foreign ownership behind one
// NOT_FOUND error.
func (a *Actions) loadOwned(ctx context.Context, bookingID int64, owner Owner, msg string) (*Booking, error) {
	b, err := retryRead(ctx, func() (*Booking, error) { return a.Store.Get(ctx, bookingID) })
	if errors.Is(err, ErrNotFound) {
		return nil, notFound(msg)
	}
	if err != nil {
		return nil, storage("load booking", err)
	}
	if !owner.owns(b) {
		return nil, notFound(msg)
	}
	return b, nil
}

// transition applies from b's observed status to `to` as one conditional write. Losing a race
// to another writer surfaces as INVALID_TRANSITION, never as a blind overwrite.
func (a *Actions) transition(ctx context.Context, b *Booking, to Status, actor, reason string, payment *PaymentStatus) (*Booking, error) {
	if !CanTransition(b.Status, to) {
		return nil, invalidTransition(b.Status, to)
	}
	updated, err := a.Store.Transition(ctx, Transition{
		BookingID:     b.ID,
		Expected:      b.Status,
		To:            to,
		At:            a.now(),
		Actor:         actor,
		Reason:        reason,
		PaymentStatus: payment,
	})
	if errors.Is(err, ErrStale) {
		return nil, invalidTransition(b.Status, to)
	}
	if err != nil {
		return nil, storage("update booking", err)
	}

	a.log().WithFields(logrus.Fields{
		"booking_id": updated.ID,
		"from":       b.Status,
		"to":         updated.Status,
		"actor":      actor,
	}).Info("booking: status changed")
	publish(ctx, a.Publisher, a.log(), newStatusChanged(updated, b.Status, actor))
	return updated, nil
}

func cancelReason(reason, fallback string) (string, error) {
	reason = strings.TrimSpace(reason)
	if reason == "" {
		return fallback, nil
	}
	if len([]rune(reason)) > maxReasonLen {
		return "", validation(map[string]string{"reason": "Reason must be at most 500 characters"})
	}
	return reason, nil
}

const readAttempts = 3

// retryRead retries transient read failures. Not-found and context errors are final.
func retryRead[T any](ctx context.Context, fn func() (T, error)) (T, error) {
	var (
		v   T
		err error
	)
	for attempt := 1; attempt <= readAttempts; attempt++ {
		v, err = fn()
		if err == nil || permanent(err) || ctx.Err() != nil {
			return v, err
		}
		if attempt == readAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return v, err
		case <-time.After(time.Duration(attempt) * 20 * time.Millisecond):
		}
	}
	return v, err
}

func permanent(err error) bool {
	return errors.Is(err, ErrNotFound) ||
		errors.Is(err, carwash.ErrNotFound) ||
		errors.Is(err, catalog.ErrNotFound) ||
		errors.Is(err, context.Canceled) ||
		errors.Is(err, context.DeadlineExceeded)
}
