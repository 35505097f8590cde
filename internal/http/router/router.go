// Package router assembles the API's chi tree.
package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"

	"github.com/diagnosis/rsvp-events/internal/http/handlers"
	"github.com/diagnosis/rsvp-events/internal/http/handlers/guest"
	httpmw "github.com/diagnosis/rsvp-events/internal/http/middleware"
	"github.com/diagnosis/rsvp-events/internal/service"
	mw "github.com/diagnosis/rsvp-events/pkg/middleware"
)

type Deps struct {
	Auth   service.AuthService
	Events service.EventService
	RSVPs  service.RSVPService

	BaseURL        string
	AllowedOrigins []string

	Idempotency    mw.IdempotencyStore
	IdempotencyTTL time.Duration
	RSVPLimiter    httpmw.Limiter
	Ready          map[string]mw.Pinger

	// TrustProxyHeaders enables chimw.RealIP; leave off unless a proxy
	// in front overwrites X-Forwarded-For.
	TrustProxyHeaders bool
}

func New(d Deps) http.Handler {
	eventsHandler := handlers.NewEventsHandler(d.Events, d.RSVPs)
	rsvpHandler := guest.NewRSVPHandler(d.Events, d.RSVPs, d.BaseURL)
	authHandler := handlers.NewAuthHandler(d.Auth)

	idempotent := mw.IdempotencyMiddleware(d.Idempotency, d.IdempotencyTTL)
	rsvpLimit := httpmw.RateLimit(d.RSVPLimiter, httpmw.RateLimitConfig{KeyFunc: httpmw.ClientIPKeyFunc})
	requireSession := httpmw.RequireSession(d.Auth)

	r := chi.NewRouter()
	if d.TrustProxyHeaders {
		r.Use(chimw.RealIP)
	}
	r.Use(mw.RequestID)
	r.Use(mw.ServiceName("rsvp-api"))
	r.Use(mw.Logging)
	r.Use(chimw.Recoverer)
	r.Use(mw.CORS(d.AllowedOrigins))
	r.Use(mw.Health)
	r.Use(mw.Ready(d.Ready))

	r.Mount("/auth", authHandler.Routes())

	r.Route("/events", func(r chi.Router) {
		r.Use(httpmw.OptionalSession(d.Auth))

		// host
		r.With(requireSession, idempotent).Post("/", eventsHandler.Create)
		r.With(requireSession).Get("/", eventsHandler.List)
		r.Get("/{id}", eventsHandler.Get)
		r.Put("/{id}", eventsHandler.Update)
		r.Delete("/{id}", eventsHandler.Delete)
		r.Post("/{id}/tokens/rotate", eventsHandler.RotateTokens)
		r.Get("/{id}/guests", eventsHandler.ListGuests)
		r.Get("/{id}/guests/export", eventsHandler.ExportGuests)
		r.Delete("/{id}/guests/{guestId}", eventsHandler.DeleteGuest)

		// guest
		r.With(rsvpLimit, idempotent).Post("/{id}/guests", rsvpHandler.Submit)
		r.Get("/{id}/public", rsvpHandler.Public)
		r.Get("/{id}/qr", rsvpHandler.QR)
	})

	return r
}
