package carwash

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"carwash/internal/api"
	"carwash/internal/audit"
)

type Handlers struct {
	DB   *pgxpool.Pool
	Repo *Repository
	Log  logrus.FieldLogger
}

// List is the customer-facing search listing: only carwashes open for booking.
func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	items, err := h.Repo.ListVisible(r.Context())
	if err != nil {
		h.Log.WithError(err).Error("carwash: list visible failed")
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

type statusResponse struct {
	Status   string `json:"status"`
	IsActive bool   `json:"isActive"`
	Open     bool   `json:"open"`
}

func (h Handlers) GetStatus(w http.ResponseWriter, r *http.Request) {
	id := api.IdentityFromContext(r.Context())
	if id == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session")
		return
	}
	c, err := h.Repo.Get(r.Context(), id.CarwashID)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	api.WriteJSON(w, http.StatusOK, statusResponse{Status: c.Status, IsActive: c.IsActive, Open: c.Visible()})
}

// PutStatusRequest accepts either a status token ("Açık", "closed", ...) or an is_active flag.
type PutStatusRequest struct {
	Status   string `json:"status"`
	IsActive *bool  `json:"isActive"`
}

func (h Handlers) PutStatus(w http.ResponseWriter, r *http.Request) {
	id := api.IdentityFromContext(r.Context())
	if id == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session")
		return
	}

	var req PutStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid json")
		return
	}

	var st OpenState
	switch {
	case req.IsActive != nil && *req.IsActive:
		st = StateOpen
	case req.IsActive != nil:
		st = StateClosed
	case strings.TrimSpace(req.Status) == "":
		api.WriteValidation(w, "status is required", map[string]string{"status": "Empty status"})
		return
	default:
		var err error
		st, err = ParseToggle(req.Status)
		if err != nil {
			api.WriteValidation(w, "invalid status token", map[string]string{"status": "Invalid status token"})
			return
		}
	}

	actor := "carwash:" + strconv.FormatInt(id.UserID, 10)
	c, err := h.Repo.SetStatus(r.Context(), id.CarwashID, st, actor)
	if err != nil {
		h.writeLookupError(w, err)
		return
	}
	h.Log.WithFields(logrus.Fields{"carwash_id": c.ID, "status": c.Status, "is_active": c.IsActive}).Info("carwash: status toggled")
	api.WriteJSON(w, http.StatusOK, statusResponse{Status: c.Status, IsActive: c.IsActive, Open: c.Visible()})
}

func (h Handlers) Audit(w http.ResponseWriter, r *http.Request) {
	id := api.IdentityFromContext(r.Context())
	if id == nil {
		api.WriteError(w, http.StatusUnauthorized, "UNAUTHORIZED", "missing session")
		return
	}
	limit, _ := strconv.Atoi(r.URL.Query().Get("limit"))
	items, err := audit.ListByCarwash(r.Context(), h.DB, id.CarwashID, limit)
	if err != nil {
		h.Log.WithError(err).Error("carwash: audit list failed")
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}

func (h Handlers) writeLookupError(w http.ResponseWriter, err error) {
	if errors.Is(err, ErrNotFound) {
		api.WriteError(w, http.StatusNotFound, "NOT_FOUND", "carwash not found")
		return
	}
	h.Log.WithError(err).Error("carwash: storage error")
	api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
}
