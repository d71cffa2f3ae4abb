package booking

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"carwash/internal/api"
	"carwash/pkg/session"
)

type Handlers struct {
	Actions *Actions
	Log     logrus.FieldLogger
}

type CancelRequest struct {
	Reason string `json:"reason"`
}

type CompleteRequest struct {
	PaymentStatus string `json:"paymentStatus"`
}

// Create handles both surfaces: customers book for themselves, carwashes enter manual bookings
// for their own business which start confirmed.
func (h Handlers) Create(w http.ResponseWriter, r *http.Request) {
	id := api.IdentityFromContext(r.Context())
	if id == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session")
		return
	}

	var in CreateInput
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}

	switch id.Role {
	case session.RoleCarwash:
		in.CarwashID = id.CarwashID
		in.Manual = true
		in.Actor = carwashActor(id.CarwashID)
	default:
		in.CustomerID = id.UserID
		in.Manual = false
		in.Actor = customerActor(id.UserID)
	}

	b, err := h.Actions.Create(r.Context(), in)
	if err != nil {
		h.writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusCreated, b)
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	f := ListFilter{CustomerID: owner.CustomerID, CarwashID: owner.CarwashID}
	f.Limit, _ = strconv.Atoi(q.Get("limit"))
	f.Offset, _ = strconv.Atoi(q.Get("offset"))
	if raw := q.Get("status"); raw != "" {
		for _, part := range strings.Split(raw, ",") {
			st, err := ParseStatus(strings.TrimSpace(part))
			if err != nil {
				api.WriteValidation(w, "invalid status filter", map[string]string{"status": err.Error()})
				return
			}
			f.Statuses = append(f.Statuses, st)
		}
	}

	items, err := h.Actions.List(r.Context(), f)
	if err != nil {
		h.writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) Get(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	b, err := h.Actions.Get(r.Context(), bookingID, owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, b)
}

func (h Handlers) Events(w http.ResponseWriter, r *http.Request) {
	owner, ok := ownerOf(w, r)
	if !ok {
		return
	}
	bookingID, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	items, err := h.Actions.History(r.Context(), bookingID, owner)
	if err != nil {
		h.writeError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) CustomerCancel(w http.ResponseWriter, r *http.Request) {
	id := api.IdentityFromContext(r.Context())
	if id == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session")
		return
	}
	bookingID, ok := bookingIDParam(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	h.respond(w)(h.Actions.CustomerCancel(r.Context(), bookingID, id.UserID, req.Reason))
}

func (h Handlers) Approve(w http.ResponseWriter, r *http.Request) {
	carwashID, bookingID, ok := businessTarget(w, r)
	if !ok {
		return
	}
	h.respond(w)(h.Actions.Approve(r.Context(), bookingID, carwashID))
}

func (h Handlers) Reject(w http.ResponseWriter, r *http.Request) {
	carwashID, bookingID, ok := businessTarget(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	h.respond(w)(h.Actions.Reject(r.Context(), bookingID, carwashID, req.Reason))
}

func (h Handlers) Start(w http.ResponseWriter, r *http.Request) {
	carwashID, bookingID, ok := businessTarget(w, r)
	if !ok {
		return
	}
	h.respond(w)(h.Actions.Start(r.Context(), bookingID, carwashID))
}

func (h Handlers) Complete(w http.ResponseWriter, r *http.Request) {
	carwashID, bookingID, ok := businessTarget(w, r)
	if !ok {
		return
	}
	var req CompleteRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	var payment *PaymentStatus
	if req.PaymentStatus != "" {
		ps, err := ParsePaymentStatus(req.PaymentStatus)
		if err != nil {
			api.WriteValidation(w, "invalid payment status", map[string]string{"payment_status": err.Error()})
			return
		}
		payment = &ps
	}
	h.respond(w)(h.Actions.Complete(r.Context(), bookingID, carwashID, payment))
}

func (h Handlers) CarwashCancel(w http.ResponseWriter, r *http.Request) {
	carwashID, bookingID, ok := businessTarget(w, r)
	if !ok {
		return
	}
	var req CancelRequest
	if !decodeOptional(w, r, &req) {
		return
	}
	h.respond(w)(h.Actions.CarwashCancel(r.Context(), bookingID, carwashID, req.Reason))
}

func (h Handlers) respond(w http.ResponseWriter) func(*Booking, error) {
	return func(b *Booking, err error) {
		if err != nil {
			h.writeError(w, err)
			return
		}
		api.WriteJSON(w, http.StatusOK, b)
	}
}

// writeError maps booking error kinds to the API envelope. NOT_FOUND and INVALID_TRANSITION
// share the generic message the dashboards show.
func (h Handlers) writeError(w http.ResponseWriter, err error) {
	var e *Error
	if !errors.As(err, &e) {
		h.Log.WithError(err).Error("booking: unexpected error")
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	switch e.Kind {
	case KindNotFound:
		api.WriteError(w, http.StatusNotFound, string(e.Kind), e.Message)
	case KindInvalidTransition:
		api.WriteError(w, http.StatusConflict, string(e.Kind), e.Message)
	case KindValidation:
		api.WriteValidation(w, e.Message, e.Fields)
	case KindInvalidSchedule:
		api.WriteError(w, http.StatusUnprocessableEntity, string(e.Kind), e.Message)
	case KindCarwashClosed:
		api.WriteError(w, http.StatusConflict, string(e.Kind), e.Message)
	default:
		h.Log.WithError(err).Error("booking: storage error")
		api.WriteError(w, http.StatusServiceUnavailable, string(KindStorage), "please try again")
	}
}

func ownerOf(w http.ResponseWriter, r *http.Request) (Owner, bool) {
	id := api.IdentityFromContext(r.Context())
	if id == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session")
		return Owner{}, false
	}
	if id.Role == session.RoleCarwash {
		return Owner{CarwashID: id.CarwashID}, true
	}
	return Owner{CustomerID: id.UserID}, true
}

func businessTarget(w http.ResponseWriter, r *http.Request) (carwashID, bookingID int64, ok bool) {
	id := api.IdentityFromContext(r.Context())
	if id == nil || id.Role != session.RoleCarwash {
		api.WriteError(w, http.StatusForbidden, "FORBIDDEN", "business session required")
		return 0, 0, false
	}
	bookingID, ok = bookingIDParam(w, r)
	return id.CarwashID, bookingID, ok
}

func bookingIDParam(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || id <= 0 {
		api.WriteError(w, http.StatusNotFound, string(KindNotFound), "booking not found")
		return 0, false
	}
	return id, true
}

// decodeOptional accepts an empty body.
func decodeOptional(w http.ResponseWriter, r *http.Request, v any) bool {
	if r.Body == nil || r.ContentLength == 0 {
		return true
	}
	if err := json.NewDecoder(r.Body).Decode(v); err != nil && !errors.Is(err, io.EOF) {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return false
	}
	return true
}
