package booking

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"carwash/internal/carwash"
	"carwash/internal/catalog"
)

// CreateInput is a booking request from the customer app or the carwash dashboard.
type CreateInput struct {
	// CustomerID is zero for walk-in bookings the carwash enters itself.
	CustomerID int64   `json:"-"`
	CarwashID  int64   `json:"carwashId"`
	ServiceID  int64   `json:"serviceId"`
	Vehicle    Vehicle `json:"vehicle"`
	// Date is YYYY-MM-DD and Time is HH:MM, both in the configured business location.
	Date          string `json:"date"`
	Time          string `json:"time"`
	Notes         string `json:"notes"`
	CustomerName  string `json:"customerName"`
	CustomerPhone string `json:"customerPhone"`
	// Manual bookings are created by the carwash and start confirmed.
	Manual bool   `json:"-"`
	Actor  string `json:"-"`
}

var timeOfDay = regexp.MustCompile(`^(?:[01]\d|2[0-3]):[0-5]\d$`)

// Create validates in and stores a new booking. Field problems are reported together before
// any lookup; the carwash must exist and be visible, and the slot must be in the future.
func (a *Actions) Create(ctx context.Context, in CreateInput) (*Booking, error) {
	in.Vehicle.Plate = strings.TrimSpace(in.Vehicle.Plate)
	in.Vehicle.Model = strings.TrimSpace(in.Vehicle.Model)
	in.Vehicle.Type = strings.TrimSpace(in.Vehicle.Type)
	in.CustomerName = strings.TrimSpace(in.CustomerName)
	in.CustomerPhone = strings.TrimSpace(in.CustomerPhone)
	in.Notes = strings.TrimSpace(in.Notes)

	scheduledAt, fields := a.validateCreate(in)
	if len(fields) > 0 {
		return nil, validation(fields)
	}

	cw, err := retryRead(ctx, func() (*carwash.Carwash, error) { return a.Carwashes.Get(ctx, in.CarwashID) })
	if errors.Is(err, carwash.ErrNotFound) {
		return nil, notFound("carwash not found")
	}
	if err != nil {
		return nil, storage("load carwash", err)
	}
	if !cw.Visible() {
		return nil, &Error{Kind: KindCarwashClosed, Message: "this carwash is not accepting bookings right now"}
	}

	now := a.now()
	if !scheduledAt.After(now) {
		return nil, invalidSchedule("the selected date and time is in the past")
	}
	if a.Hours != nil {
		ok, err := a.Hours.Accepts(ctx, cw.ID, scheduledAt)
		if err != nil {
			return nil, storage("check opening hours", err)
		}
		if !ok {
			return nil, invalidSchedule("the carwash is closed at the selected time")
		}
	}

	svc, err := retryRead(ctx, func() (*catalog.Service, error) { return a.Services.Get(ctx, cw.ID, in.ServiceID) })
	if errors.Is(err, catalog.ErrNotFound) {
		return nil, validation(map[string]string{"service_id": "Please select a service"})
	}
	if err != nil {
		return nil, storage("load service", err)
	}

	b := &Booking{
		BookingNumber: newBookingNumber(now),
		CarwashID:     cw.ID,
		ServiceID:     &svc.ID,
		Vehicle:       in.Vehicle,
		ScheduledAt:   scheduledAt,
		Status:        StatusPending,
		TotalPrice:    svc.Price,
		PaymentStatus: PaymentPending,
		Notes:         in.Notes,
		CustomerName:  in.CustomerName,
		CustomerPhone: in.CustomerPhone,
		CreatedAt:     now,
		UpdatedAt:     now,
	}
	if in.CustomerID > 0 {
		id := in.CustomerID
		b.CustomerID = &id
	}
	if in.Manual {
		b.Status = StatusConfirmed
		b.ConfirmedAt = &now
	}

	actor := in.Actor
	if actor == "" {
		actor = customerActor(in.CustomerID)
	}
	if err := a.Store.Insert(ctx, b, actor); err != nil {
		return nil, storage("create booking", err)
	}

	a.log().WithFields(logrus.Fields{
		"booking_id":     b.ID,
		"booking_number": b.BookingNumber,
		"carwash_id":     b.CarwashID,
		"status":         b.Status,
	}).Info("booking: created")
	publish(ctx, a.Publisher, a.log(), newStatusChanged(b, "", actor))
	return b, nil
}

func (a *Actions) validateCreate(in CreateInput) (time.Time, map[string]string) {
	fields := map[string]string{}
	if in.CarwashID <= 0 {
		fields["carwash_id"] = "Please select a carwash"
	}
	if in.CustomerID <= 0 && !in.Manual {
		fields["customer_id"] = "Customer is required"
	}
	if in.ServiceID <= 0 {
		fields["service_id"] = "Please select a service"
	}
	if in.Vehicle.Plate == "" {
		fields["vehicle.plate"] = "Vehicle plate is required"
	}

	var scheduledAt time.Time
	day, err := time.ParseInLocation("2006-01-02", strings.TrimSpace(in.Date), a.location())
	if err != nil {
		fields["date"] = "Invalid date format"
	}
	clock := strings.TrimSpace(in.Time)
	if !timeOfDay.MatchString(clock) {
		fields["time"] = "Invalid time format"
	} else if err == nil {
		hh := int(clock[0]-'0')*10 + int(clock[1]-'0')
		mm := int(clock[3]-'0')*10 + int(clock[4]-'0')
		scheduledAt = time.Date(day.Year(), day.Month(), day.Day(), hh, mm, 0, 0, a.location())
	}

	// Walk-ins have no account to take a name from.
	if in.Manual && in.CustomerID <= 0 && in.CustomerName == "" {
		fields["name"] = "Name is required"
	}
	if n := len([]rune(in.CustomerName)); in.CustomerName != "" && (n < 2 || n > 100) {
		fields["name"] = "Name must be between 2 and 100 characters"
	}
	if n := len([]rune(in.CustomerPhone)); in.CustomerPhone != "" && (n < 5 || n > 20) {
		fields["phone"] = "Please enter a valid phone number"
	}
	if len([]rune(in.Notes)) > maxNotesLen {
		fields["notes"] = "Notes must be at most 500 characters"
	}
	return scheduledAt, fields
}

// newBookingNumber returns e.g. BK261016-3FA2C1.
func newBookingNumber(now time.Time) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	return "BK" + now.Format("060102") + "-" + strings.ToUpper(id[:6])
}
