package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	custommiddleware "github.com/mmeshcher/ticketing-system/internal/middleware"
)

// SetupRouter настраивает HTTP-маршруты и middleware сервиса.
func (h *Handler) SetupRouter(allowedOrigins []string) *chi.Mux {
	r := chi.NewRouter()

	r.Use(chimw.RequestID)
	r.Use(chimw.RealIP)
	r.Use(custommiddleware.CorrelationID)
	r.Use(custommiddleware.RequestLogger(h.logger))
	r.Use(chimw.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   allowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", custommiddleware.CorrelationIDHeader},
		ExposedHeaders:   []string{custommiddleware.CorrelationIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	r.Use(custommiddleware.GzipMiddleware)

	auth := h.authMiddleware.Middleware

	r.Get("/health", h.Health)

	r.Post("/register", h.Register)
	r.Route("/login", func(r chi.Router) {
		r.Post("/", h.Login)
		r.Post("/refresh", h.Refresh)
	})

	r.Route("/users", func(r chi.Router) {
		r.Use(auth)

		r.Get("/profile", h.GetProfile)
		r.Delete("/profile", h.DeleteProfile)
		r.Get("/balance", h.GetBalance)
		r.Post("/balance", h.CreditBalance)
	})

	r.Route("/events", func(r chi.Router) {
		r.Get("/", h.ListEvents)
		r.Get("/{id}", h.GetEvent)
		r.Get("/{id}/image", h.GetEventImage)

		r.Group(func(r chi.Router) {
			r.Use(auth)

			r.Post("/", h.CreateEvent)
			r.Put("/{id}", h.UpdateEvent)
			r.Delete("/{id}", h.CancelEvent)
			r.Post("/{id}/image", h.UploadEventImage)
			r.Delete("/{id}/image", h.DeleteEventImage)
			r.Get("/user/my-events", h.MyEvents)
			r.Get("/user/my-attendances", h.MyAttendances)
		})
	})

	r.Route("/attendance", func(r chi.Router) {
		r.Use(auth)

		r.Post("/{eventId}", h.ConfirmAttendance)
		r.Delete("/{eventId}", h.CancelAttendance)
	})

	r.Route("/purchases", func(r chi.Router) {
		r.Use(auth)

		r.Post("/", h.PurchaseTickets)
		r.Get("/my-purchases", h.MyPurchases)
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusNotFound, response{Error: http.StatusText(http.StatusNotFound)})
	})

	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusMethodNotAllowed, response{Error: http.StatusText(http.StatusMethodNotAllowed)})
	})

	return r
}
