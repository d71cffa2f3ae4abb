package booking

import (
	"time"

	"github.com/shopspring/decimal"
)

// Vehicle is stored inline on the booking row.
type Vehicle struct {
	Plate string `json:"plate"`
	Model string `json:"model,omitempty"`
	Type  string `json:"type,omitempty"`
}

type Booking struct {
	ID            int64  `json:"id"`
	BookingNumber string `json:"bookingNumber"`
	// CustomerID is nil for walk-in bookings entered by the carwash.
	CustomerID *int64 `json:"customerId,omitempty"`
	CarwashID  int64  `json:"carwashId"`
	ServiceID  *int64 `json:"serviceId,omitempty"`

	Vehicle     Vehicle   `json:"vehicle"`
	ScheduledAt time.Time `json:"scheduledAt"`

	Status        Status          `json:"status"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	PaymentStatus PaymentStatus   `json:"paymentStatus"`
	PaymentMethod string          `json:"paymentMethod,omitempty"`

	Notes         string `json:"notes,omitempty"`
	CustomerName  string `json:"customerName,omitempty"`
	CustomerPhone string `json:"customerPhone,omitempty"`

	CancellationReason *string `json:"cancellationReason,omitempty"`
	// CancelledPaymentStatus is the payment status observed when the booking was cancelled,
	// kept for the refund flow.
	CancelledPaymentStatus *PaymentStatus `json:"cancelledPaymentStatus,omitempty"`

	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
	CancelledAt *time.Time `json:"cancelledAt,omitempty"`
	CreatedAt   time.Time  `json:"createdAt"`
	UpdatedAt   time.Time  `json:"updatedAt"`
}

// ListItem adds the display names the dashboards join in.
type ListItem struct {
	Booking
	ServiceName string `json:"serviceName"`
	CarwashName string `json:"carwashName"`
}

// ListFilter scopes a listing to one customer or one carwash. Exactly one of the ids is set.
type ListFilter struct {
	CustomerID int64
	CarwashID  int64
	Statuses   []Status
	Limit      int
	Offset     int
}

// Owner is who a caller acts as when touching a booking.
type Owner struct {
	CustomerID int64
	CarwashID  int64
}

func (o Owner) owns(b *Booking) bool {
	if o.CarwashID > 0 {
		return b.CarwashID == o.CarwashID
	}
	if o.CustomerID > 0 {
		return b.CustomerID != nil && *b.CustomerID == o.CustomerID
	}
	return false
}
