package router

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/diagnosis/rsvp-events/internal/cache"
	httpmw "github.com/diagnosis/rsvp-events/internal/http/middleware"
	"github.com/diagnosis/rsvp-events/internal/repo/memory"
	"github.com/diagnosis/rsvp-events/internal/service"
	"github.com/diagnosis/rsvp-events/pkg/config"
	"github.com/diagnosis/rsvp-events/pkg/events"
)

func newTestRouter(trustProxy bool) http.Handler {
	store := memory.New()
	bus := events.NewLocalEventBus()
	kv := cache.NewMemory(time.Minute)
	return New(Deps{
		Auth:              service.NewAuthService(store, config.AuthConfig{JWTSecret: "test-secret", Issuer: "rsvp-test", SessionTTL: time.Hour}),
		Events:            service.NewEventService(store, kv.PublicEvents(), bus),
		RSVPs:             service.NewRSVPService(store, bus),
		BaseURL:           "https://rsvp.example.com",
		AllowedOrigins:    []string{"*"},
		Idempotency:       kv,
		IdempotencyTTL:    time.Hour,
		RSVPLimiter:       httpmw.NewTokenBucketLimiter(0.001, 1),
		TrustProxyHeaders: trustProxy,
	})
}

// submitFrom posts an RSVP for an unknown event, so an allowed request is a
// 404 and a limited one a 429.
func submitFrom(h http.Handler, realIP string) int {
	body := []byte(`{"name":"Jane Doe","email":"jane@example.com","response":"declined"}`)
	req := httptest.NewRequest(http.MethodPost, "/events/missing/guests", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.RemoteAddr = "10.1.1.1:4000"
	req.Header.Set("X-Real-IP", realIP)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	return rec.Code
}

func TestRSVPLimit_ProxyHeaders(t *testing.T) {
	t.Run("untrusted by default", func(t *testing.T) {
		h := newTestRouter(false)
		if code := submitFrom(h, "203.0.113.1"); code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", code)
		}
		if code := submitFrom(h, "203.0.113.2"); code != http.StatusTooManyRequests {
			t.Fatalf("Expected spoofed X-Real-IP to be ignored, got %d", code)
		}
	})

	t.Run("trusted behind proxy", func(t *testing.T) {
		h := newTestRouter(true)
		if code := submitFrom(h, "203.0.113.1"); code != http.StatusNotFound {
			t.Fatalf("Expected 404, got %d", code)
		}
		if code := submitFrom(h, "203.0.113.2"); code != http.StatusNotFound {
			t.Fatalf("Expected a separate bucket per forwarded client, got %d", code)
		}
		if code := submitFrom(h, "203.0.113.1"); code != http.StatusTooManyRequests {
			t.Fatalf("Expected 429 for repeat client, got %d", code)
		}
	})
}
