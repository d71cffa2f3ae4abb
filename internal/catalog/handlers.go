package catalog

import (
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/sirupsen/logrus"

	"carwash/internal/api"
)

type Handlers struct {
	Repo *Repository
	Log  logrus.FieldLogger
}

func (h Handlers) List(w http.ResponseWriter, r *http.Request) {
	carwashID, err := strconv.ParseInt(chi.URLParam(r, "id"), 10, 64)
	if err != nil || carwashID <= 0 {
		api.WriteError(w, http.StatusBadRequest, "VALIDATION_FAILED", "invalid carwash id")
		return
	}
	items, err := h.Repo.ListByCarwash(r.Context(), carwashID)
	if err != nil {
		h.Log.WithError(err).WithField("carwash_id", carwashID).Error("catalog: list failed")
		api.WriteError(w, http.StatusInternalServerError, "INTERNAL", "internal error")
		return
	}
	api.WriteJSON(w, http.StatusOK, map[string]any{"items": items})
}
