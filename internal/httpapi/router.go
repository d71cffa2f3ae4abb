package httpapi

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/sirupsen/logrus"

	"carwash/internal/api"
	"carwash/internal/booking"
	"carwash/internal/carwash"
	"carwash/internal/catalog"
	"carwash/pkg/config"
	"carwash/pkg/session"
)

type Dependencies struct {
	Cfg config.Config
	DB  *pgxpool.Pool
	Log logrus.FieldLogger
	// Publisher is nil when no broker is configured.
	Publisher booking.Publisher
}

func NewRouter(deps Dependencies) http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})

	carwashRepo := carwash.NewRepository(deps.DB)
	catalogRepo := catalog.NewRepository(deps.DB)
	actions := &booking.Actions{
		Store:     booking.NewRepository(deps.DB),
		Carwashes: carwashRepo,
		Services:  catalogRepo,
		Publisher: deps.Publisher,
		Log:       deps.Log,
		Location:  deps.Cfg.Location,
	}

	carwashHandlers := carwash.Handlers{DB: deps.DB, Repo: carwashRepo, Log: deps.Log}
	catalogHandlers := catalog.Handlers{Repo: catalogRepo, Log: deps.Log}
	bookingHandlers := booking.Handlers{Actions: actions, Log: deps.Log}

	// v1
	r.Route("/v1", func(r chi.Router) {
		// Browser clients live on a separate origin.
		r.Use(api.CORSMiddleware(api.CORSOptions{
			AllowedOrigins: deps.Cfg.AllowedOrigins,
			AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type", "Authorization"},
			MaxAgeSeconds:  600,
		}))

		// Public search listing
		r.Get("/carwashes", carwashHandlers.List)
		r.Get("/carwashes/{id}/services", catalogHandlers.List)

		r.Group(func(r chi.Router) {
			r.Use(api.SessionAuth(deps.Cfg.Session, deps.Log))

			// Customer app
			r.Group(func(r chi.Router) {
				r.Use(api.RequireRole(session.RoleCustomer))

				r.Post("/bookings", bookingHandlers.Create)
				r.Get("/bookings", bookingHandlers.List)
				r.Get("/bookings/{id}", bookingHandlers.Get)
				r.Get("/bookings/{id}/events", bookingHandlers.Events)
				r.Post("/bookings/{id}/cancel", bookingHandlers.CustomerCancel)
			})

			// Business dashboard (carwash-scoped)
			r.Route("/business", func(r chi.Router) {
				r.Use(api.RequireRole(session.RoleCarwash))

				r.Get("/status", carwashHandlers.GetStatus)
				r.Put("/status", carwashHandlers.PutStatus)
				r.Get("/audit", carwashHandlers.Audit)

				r.Get("/bookings", bookingHandlers.List)
				r.Post("/bookings", bookingHandlers.Create)
				r.Get("/bookings/{id}", bookingHandlers.Get)
				r.Get("/bookings/{id}/events", bookingHandlers.Events)
				r.Post("/bookings/{id}/approve", bookingHandlers.Approve)
				r.Post("/bookings/{id}/reject", bookingHandlers.Reject)
				r.Post("/bookings/{id}/start", bookingHandlers.Start)
				r.Post("/bookings/{id}/complete", bookingHandlers.Complete)
				r.Post("/bookings/{id}/cancel", bookingHandlers.CarwashCancel)
			})
		})
	})

	return r
}
