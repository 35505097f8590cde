package middleware

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type mapStore struct {
	mu sync.Mutex
	m  map[string]string
}

func (s *mapStore) Get(_ context.Context, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.m[key], nil
}

func (s *mapStore) Set(_ context.Context, key, value string, _ time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.m[key]; !ok {
		s.m[key] = value
	}
	return nil
}

func TestIdempotencyMiddleware_ReplaysStatusAndBody(t *testing.T) {
	calls := 0
	h := IdempotencyMiddleware(&mapStore{m: map[string]string{}}, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"n":1}`))
	}))

	send := func(key, authz string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/events/1/guests", strings.NewReader("{}"))
		req.Header.Set("Idempotency-Key", key)
		if authz != "" {
			req.Header.Set("Authorization", authz)
		}
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	first := send("k1", "")
	require.Equal(t, http.StatusCreated, first.Code)

	second := send("k1", "")
	assert.Equal(t, http.StatusCreated, second.Code)
	assert.Equal(t, `{"n":1}`, second.Body.String())
	assert.Equal(t, "true", second.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, "application/json", second.Header().Get("Content-Type"))
	assert.Equal(t, 1, calls)

	send("k1", "Bearer someone-else")
	assert.Equal(t, 2, calls)

	send("k2", "")
	assert.Equal(t, 3, calls)
}

func TestIdempotencyMiddleware_KeyIncludesBody(t *testing.T) {
	var seen []string
	h := IdempotencyMiddleware(&mapStore{m: map[string]string{}}, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		seen = append(seen, string(b))
		w.WriteHeader(http.StatusCreated)
		w.Write(b)
	}))

	send := func(body string) *httptest.ResponseRecorder {
		req := httptest.NewRequest(http.MethodPost, "/events/1/guests", strings.NewReader(body))
		req.Header.Set("Idempotency-Key", "rsvp-form")
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		return rec
	}

	ann := send(`{"email":"ann@example.com"}`)
	bob := send(`{"email":"bob@example.com"}`)
	assert.Equal(t, `{"email":"ann@example.com"}`, ann.Body.String())
	assert.Equal(t, `{"email":"bob@example.com"}`, bob.Body.String())
	assert.Empty(t, bob.Header().Get("Idempotent-Replayed"))

	again := send(`{"email":"ann@example.com"}`)
	assert.Equal(t, "true", again.Header().Get("Idempotent-Replayed"))
	assert.Equal(t, `{"email":"ann@example.com"}`, again.Body.String())

	// the handler still sees the full body
	assert.Equal(t, []string{`{"email":"ann@example.com"}`, `{"email":"bob@example.com"}`}, seen)
}

func TestIdempotencyMiddleware_SkipsFailures(t *testing.T) {
	calls := 0
	h := IdempotencyMiddleware(&mapStore{m: map[string]string{}}, time.Hour)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		calls++
		w.WriteHeader(http.StatusBadRequest)
	}))

	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodPost, "/events", nil)
		req.Header.Set("Idempotency-Key", "k1")
		h.ServeHTTP(httptest.NewRecorder(), req)
	}
	assert.Equal(t, 2, calls)
}

type pingFunc func(ctx context.Context) error

func (f pingFunc) Ping(ctx context.Context) error { return f(ctx) }

func TestReady(t *testing.T) {
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(http.StatusTeapot) })

	ok := Ready(map[string]Pinger{"store": pingFunc(func(context.Context) error { return nil })})(next)
	rec := httptest.NewRecorder()
	ok.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)

	down := Ready(map[string]Pinger{"store": pingFunc(func(context.Context) error { return errors.New("down") })})(next)
	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)
	assert.Contains(t, rec.Body.String(), `"store":"unavailable"`)

	rec = httptest.NewRecorder()
	down.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/other", nil))
	assert.Equal(t, http.StatusTeapot, rec.Code)
}
