package booking

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// StatusChanged is published after a booking status change has committed.
type StatusChanged struct {
	ID            string        `json:"id"`
	BookingID     int64         `json:"bookingId"`
	BookingNumber string        `json:"bookingNumber"`
	CarwashID     int64         `json:"carwashId"`
	CustomerID    *int64        `json:"customerId,omitempty"`
	From          Status        `json:"from,omitempty"`
	To            Status        `json:"to"`
	Actor         string        `json:"actor"`
	Reason        string        `json:"reason,omitempty"`
	PaymentStatus PaymentStatus `json:"paymentStatus"`
	// PaymentStatusAtCancel lets the payment side decide on a refund.
	PaymentStatusAtCancel *PaymentStatus `json:"paymentStatusAtCancel,omitempty"`
	OccurredAt            time.Time      `json:"occurredAt"`
}

// Publisher delivers status changes to downstream consumers.
type Publisher interface {
	PublishStatusChanged(ctx context.Context, ev StatusChanged) error
}

func newStatusChanged(b *Booking, from Status, actor string) StatusChanged {
	ev := StatusChanged{
		ID:                    uuid.NewString(),
		BookingID:             b.ID,
		BookingNumber:         b.BookingNumber,
		CarwashID:             b.CarwashID,
		CustomerID:            b.CustomerID,
		From:                  from,
		To:                    b.Status,
		Actor:                 actor,
		PaymentStatus:         b.PaymentStatus,
		PaymentStatusAtCancel: b.CancelledPaymentStatus,
		OccurredAt:            b.UpdatedAt,
	}
	if b.CancellationReason != nil {
		ev.Reason = *b.CancellationReason
	}
	return ev
}

// publish never fails the caller: the row is already committed.
func publish(ctx context.Context, p Publisher, log logrus.FieldLogger, ev StatusChanged) {
	if p == nil {
		return
	}
	if err := p.PublishStatusChanged(ctx, ev); err != nil {
		log.WithError(err).WithFields(logrus.Fields{
			"booking_id": ev.BookingID,
			"to":         ev.To,
		}).Warn("booking: publish status change failed")
	}
}
