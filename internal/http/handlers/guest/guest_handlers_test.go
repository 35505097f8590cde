package guest_test

import (
	"bytes"
	"context"
	"encoding/csv"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/diagnosis/rsvp-events/internal/cache"
	"github.com/diagnosis/rsvp-events/internal/domain"
	httpmw "github.com/diagnosis/rsvp-events/internal/http/middleware"
	"github.com/diagnosis/rsvp-events/internal/http/router"
	"github.com/diagnosis/rsvp-events/internal/repo/memory"
	"github.com/diagnosis/rsvp-events/internal/service"
	"github.com/diagnosis/rsvp-events/pkg/config"
	"github.com/diagnosis/rsvp-events/pkg/events"
)

// ---------- Test Setup ----------

type testEnv struct {
	server *httptest.Server
	store  *memory.Store
	bus    *events.LocalEventBus
}

func setupTestServer(t *testing.T, limiter httpmw.Limiter) *testEnv {
	t.Helper()
	store := memory.New()
	bus := events.NewLocalEventBus()
	kv := cache.NewMemory(time.Minute)
	if limiter == nil {
		limiter = httpmw.NewTokenBucketLimiter(1000, 1000)
	}

	authSvc := service.NewAuthService(store, config.AuthConfig{JWTSecret: "test-secret", Issuer: "rsvp-test", SessionTTL: time.Hour})
	h := router.New(router.Deps{
		Auth:           authSvc,
		Events:         service.NewEventService(store, kv.PublicEvents(), bus),
		RSVPs:          service.NewRSVPService(store, bus),
		BaseURL:        "https://rsvp.example.com",
		AllowedOrigins: []string{"*"},
		Idempotency:    kv,
		IdempotencyTTL: time.Hour,
		RSVPLimiter:    limiter,
	})

	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	return &testEnv{server: srv, store: store, bus: bus}
}

func (e *testEnv) url(path string) string { return e.server.URL + path }

// registerHost signs up a host and returns the bearer token.
func (e *testEnv) registerHost(t *testing.T, email string) string {
	t.Helper()
	resp := postJSON(t, e.url("/auth/register"), map[string]string{
		"name": "Hank Host", "email": email, "password": "correct-horse",
	}, http.StatusCreated)
	defer resp.Body.Close()

	var sess domain.SessionResponse
	if err := json.NewDecoder(resp.Body).Decode(&sess); err != nil {
		t.Fatalf("decode session: %v", err)
	}
	if sess.Token == "" {
		t.Fatal("Expected session token")
	}
	return sess.Token
}

func (e *testEnv) createEvent(t *testing.T, bearer string) *domain.Event {
	t.Helper()
	resp := do(t, http.MethodPost, e.url("/events"), map[string]string{"Authorization": "Bearer " + bearer}, map[string]any{
		"name":      "Summer Party",
		"date":      time.Now().Add(72 * time.Hour).UTC().Format(time.RFC3339),
		"location":  "Backyard",
		"hostName":  "Hank Host",
		"hostEmail": "hank@example.com",
	}, http.StatusCreated)
	defer resp.Body.Close()

	var ev domain.Event
	if err := json.NewDecoder(resp.Body).Decode(&ev); err != nil {
		t.Fatalf("decode event: %v", err)
	}
	if ev.AdminToken == "" || ev.AccessToken == "" {
		t.Fatal("Expected owner to receive both tokens")
	}
	return &ev
}

func rsvpBody(name, email, response string, n int, extra ...string) map[string]any {
	body := map[string]any{"name": name, "email": email, "response": response}
	if n > 0 {
		body["numberOfGuests"] = n
	}
	if len(extra) > 0 {
		body["additionalGuestNames"] = extra
	}
	return body
}

// ---------- Tests ----------

func TestRSVPFlow_EndToEnd(t *testing.T) {
	env := setupTestServer(t, nil)
	host := env.registerHost(t, "hank@example.com")
	ev := env.createEvent(t, host)
	base := env.url("/events/" + ev.ID)

	// public page
	resp := get(t, base+"/public", http.StatusOK)
	raw := readAll(t, resp)
	if strings.Contains(raw, "adminToken") || strings.Contains(raw, "accessToken") || strings.Contains(raw, "hostEmail") {
		t.Fatalf("public projection leaks private fields: %s", raw)
	}

	// first RSVP creates, second updates the same guest
	resp = postJSON(t, base+"/guests", rsvpBody("Jane Doe", "Jane@Example.com", "attending", 2, "John Doe"), http.StatusCreated)
	first := decodeGuest(t, resp)
	resp = postJSON(t, base+"/guests", rsvpBody("Jane Doe", "jane@example.com", "attending", 2, "John Doe"), http.StatusOK)
	again := decodeGuest(t, resp)
	if first.ID != again.ID {
		t.Fatalf("Expected re-RSVP to keep guest id %s, got %s", first.ID, again.ID)
	}

	postJSON(t, base+"/guests", rsvpBody("Sam Smith", "sam@example.com", "declined", 0), http.StatusCreated).Body.Close()

	// guest list with stats
	resp = get(t, base+"/guests?token="+ev.AccessToken, http.StatusOK)
	var list struct {
		Guests []domain.Guest    `json:"guests"`
		Stats  domain.GuestStats `json:"stats"`
	}
	decode(t, resp, &list)
	if len(list.Guests) != 2 {
		t.Fatalf("Expected 2 guests, got %d", len(list.Guests))
	}
	if list.Stats.AttendingHeadcount != 2 || list.Stats.DeclinedCount != 1 || list.Stats.ResponseRate != 100 {
		t.Fatalf("Unexpected stats: %+v", list.Stats)
	}

	// reader view has the counter but no tokens
	resp = do(t, http.MethodGet, base, map[string]string{"X-Event-Token": ev.AccessToken}, nil, http.StatusOK)
	var readerView domain.Event
	decode(t, resp, &readerView)
	if readerView.GuestCount != 2 {
		t.Fatalf("Expected guestCount 2, got %d", readerView.GuestCount)
	}
	if readerView.AdminToken != "" || readerView.AccessToken != "" {
		t.Fatal("Reader must not see tokens")
	}

	// switching to declined drops the count
	postJSON(t, base+"/guests", rsvpBody("Jane Doe", "jane@example.com", "declined", 0), http.StatusOK).Body.Close()
	resp = do(t, http.MethodGet, base, map[string]string{"X-Event-Token": ev.AccessToken}, nil, http.StatusOK)
	decode(t, resp, &readerView)
	if readerView.GuestCount != 0 {
		t.Fatalf("Expected guestCount 0 after decline, got %d", readerView.GuestCount)
	}

	if got := len(env.bus.Messages(events.RSVPCreated)); got != 2 {
		t.Fatalf("Expected 2 rsvp.created messages, got %d", got)
	}
}

func TestAccessGate(t *testing.T) {
	env := setupTestServer(t, nil)
	host := env.registerHost(t, "hank@example.com")
	ev := env.createEvent(t, host)
	other := env.registerHost(t, "other@example.com")
	base := env.url("/events/" + ev.ID)

	resp := postJSON(t, base+"/guests", rsvpBody("Jane Doe", "jane@example.com", "attending", 1), http.StatusCreated)
	g := decodeGuest(t, resp)

	tests := []struct {
		name    string
		method  string
		path    string
		headers map[string]string
		want    int
	}{
		{"guests without credentials", http.MethodGet, "/guests", nil, http.StatusUnauthorized},
		{"guests with wrong token", http.MethodGet, "/guests?token=nope", nil, http.StatusUnauthorized},
		{"guests as another host", http.MethodGet, "/guests", map[string]string{"Authorization": "Bearer " + other}, http.StatusForbidden},
		{"guests with access token", http.MethodGet, "/guests", map[string]string{"X-Event-Token": ev.AccessToken}, http.StatusOK},
		{"guests as owner", http.MethodGet, "/guests", map[string]string{"Authorization": "Bearer " + host}, http.StatusOK},
		{"event with wrong token", http.MethodGet, "", map[string]string{"X-Event-Token": "nope"}, http.StatusUnauthorized},
		{"event anonymously", http.MethodGet, "", nil, http.StatusOK},
		{"delete guest with access token", http.MethodDelete, "/guests/" + g.ID, map[string]string{"X-Event-Token": ev.AccessToken}, http.StatusForbidden},
		{"rotate with access token", http.MethodPost, "/tokens/rotate", map[string]string{"X-Event-Token": ev.AccessToken}, http.StatusForbidden},
		{"delete guest with admin token", http.MethodDelete, "/guests/" + g.ID, map[string]string{"X-Event-Token": ev.AdminToken}, http.StatusNoContent},
		{"delete missing guest", http.MethodDelete, "/guests/" + g.ID, map[string]string{"X-Event-Token": ev.AdminToken}, http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			do(t, tt.method, base+tt.path, tt.headers, nil, tt.want).Body.Close()
		})
	}

	get(t, env.url("/events/does-not-exist/public"), http.StatusNotFound).Body.Close()
	do(t, http.MethodPost, env.url("/events"), nil, map[string]string{"name": "x"}, http.StatusUnauthorized).Body.Close()
}

func TestSubmitRSVP_InvalidInput_BadRequest(t *testing.T) {
	env := setupTestServer(t, nil)
	ev := env.createEvent(t, env.registerHost(t, "hank@example.com"))
	url := env.url("/events/" + ev.ID + "/guests")

	tests := []struct {
		name  string
		body  map[string]any
		field string
	}{
		{"single name", rsvpBody("Madonna", "m@example.com", "attending", 1), "name"},
		{"bad email", rsvpBody("Jane Doe", "not-an-email", "attending", 1), "email"},
		{"bad response", rsvpBody("Jane Doe", "jane@example.com", "maybe", 1), "response"},
		{"missing additional names", rsvpBody("Jane Doe", "jane@example.com", "attending", 3, "John Doe"), "additionalGuestNames"},
		{"party too large", map[string]any{"name": "Jane Doe", "email": "jane@example.com", "response": "declined", "numberOfGuests": int64(5000000000)}, "numberOfGuests"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, url, tt.body, http.StatusBadRequest)
			var body struct {
				Error string `json:"error"`
				Field string `json:"field"`
			}
			decode(t, resp, &body)
			if body.Field != tt.field || body.Error == "" {
				t.Fatalf("Expected error on %q, got %+v", tt.field, body)
			}
		})
	}

	resp, err := http.Post(url, "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST failed: %v", err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusBadRequest {
		t.Fatalf("Expected 400 for malformed json, got %d", resp.StatusCode)
	}
}

func TestSubmitRSVP_IdempotencyKeyReplays(t *testing.T) {
	env := setupTestServer(t, nil)
	ev := env.createEvent(t, env.registerHost(t, "hank@example.com"))
	url := env.url("/events/" + ev.ID + "/guests")
	headers := map[string]string{"Idempotency-Key": "rsvp-123"}

	resp := do(t, http.MethodPost, url, headers, rsvpBody("Jane Doe", "jane@example.com", "attending", 1), http.StatusCreated)
	first := decodeGuest(t, resp)

	resp = do(t, http.MethodPost, url, headers, rsvpBody("Jane Doe", "jane@example.com", "attending", 1), http.StatusCreated)
	if resp.Header.Get("Idempotent-Replayed") != "true" {
		t.Fatal("Expected replayed response")
	}
	replayed := decodeGuest(t, resp)
	if replayed.ID != first.ID {
		t.Fatalf("Expected replay of %s, got %s", first.ID, replayed.ID)
	}
	if got := len(env.bus.Messages(events.RSVPUpdated)); got != 0 {
		t.Fatalf("Replay must not reach the service, got %d updates", got)
	}
}

func TestSubmitRSVP_SharedIdempotencyKeyKeepsEachGuest(t *testing.T) {
	env := setupTestServer(t, nil)
	ev := env.createEvent(t, env.registerHost(t, "hank@example.com"))
	url := env.url("/events/" + ev.ID + "/guests")
	headers := map[string]string{"Idempotency-Key": "rsvp-form"}

	resp := do(t, http.MethodPost, url, headers, rsvpBody("Ann Lee", "ann@example.com", "attending", 1), http.StatusCreated)
	ann := decodeGuest(t, resp)

	resp = do(t, http.MethodPost, url, headers, rsvpBody("Bob Stone", "bob@example.com", "attending", 2), http.StatusCreated)
	if resp.Header.Get("Idempotent-Replayed") != "" {
		t.Fatal("Expected a fresh response for a different guest")
	}
	bob := decodeGuest(t, resp)
	if bob.ID == ann.ID || bob.Email != "bob@example.com" {
		t.Fatalf("Expected Bob's own RSVP, got %+v", bob)
	}

	guests, err := env.store.ListGuests(context.Background(), ev.ID)
	if err != nil {
		t.Fatalf("list guests: %v", err)
	}
	if len(guests) != 2 {
		t.Fatalf("Expected 2 guests, got %d", len(guests))
	}
	if got := len(env.bus.Messages(events.RSVPCreated)); got != 2 {
		t.Fatalf("Expected 2 created messages, got %d", got)
	}
}

func TestSubmitRSVP_RateLimited(t *testing.T) {
	env := setupTestServer(t, httpmw.NewTokenBucketLimiter(0.001, 2))
	ev := env.createEvent(t, env.registerHost(t, "hank@example.com"))
	url := env.url("/events/" + ev.ID + "/guests")

	postJSON(t, url, rsvpBody("Jane Doe", "jane@example.com", "declined", 0), http.StatusCreated).Body.Close()
	postJSON(t, url, rsvpBody("Jane Doe", "jane@example.com", "declined", 0), http.StatusOK).Body.Close()
	postJSON(t, url, rsvpBody("Jane Doe", "jane@example.com", "declined", 0), http.StatusTooManyRequests).Body.Close()

	// reads are not limited
	get(t, env.url("/events/"+ev.ID+"/public"), http.StatusOK).Body.Close()
}

func TestExportGuests_CSV(t *testing.T) {
	env := setupTestServer(t, nil)
	ev := env.createEvent(t, env.registerHost(t, "hank@example.com"))
	base := env.url("/events/" + ev.ID)

	postJSON(t, base+"/guests", rsvpBody("Jane Doe", "jane@example.com", "attending", 3, "John Doe", "Baby Doe"), http.StatusCreated).Body.Close()

	resp := get(t, base+"/guests/export?token="+ev.AccessToken, http.StatusOK)
	defer resp.Body.Close()
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "text/csv") {
		t.Fatalf("Expected text/csv, got %s", ct)
	}
	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}
	if len(rows) != 2 {
		t.Fatalf("Expected header plus 1 row, got %d rows", len(rows))
	}
	if rows[0][0] != "name" || rows[1][0] != "Jane Doe" || rows[1][3] != "3" || rows[1][4] != "John Doe; Baby Doe" {
		t.Fatalf("Unexpected csv: %v", rows)
	}

	get(t, base+"/guests/export", http.StatusUnauthorized).Body.Close()
}

func TestExportGuests_NeutralizesFormulas(t *testing.T) {
	env := setupTestServer(t, nil)
	ev := env.createEvent(t, env.registerHost(t, "hank@example.com"))
	base := env.url("/events/" + ev.ID)

	body := rsvpBody("=Jane Doe", "jane@example.com", "attending", 2, "@John Doe")
	body["message"] = "+1 can't wait"
	body["dietaryRestrictions"] = "-vegan"
	postJSON(t, base+"/guests", body, http.StatusCreated).Body.Close()
	postJSON(t, base+"/guests", rsvpBody("Jim Beam", "jim@example.com", "declined", 0), http.StatusCreated).Body.Close()

	resp := get(t, base+"/guests/export?token="+ev.AccessToken, http.StatusOK)
	defer resp.Body.Close()
	rows, err := csv.NewReader(resp.Body).ReadAll()
	if err != nil {
		t.Fatalf("read csv: %v", err)
	}

	byEmail := map[string][]string{}
	for _, row := range rows[1:] {
		byEmail[row[1]] = row
	}
	jane, ok := byEmail["jane@example.com"]
	if !ok {
		t.Fatalf("Expected jane in export, got %v", rows)
	}
	want := map[int]string{0: "'=Jane Doe", 4: "'@John Doe", 5: "'-vegan", 6: "'+1 can't wait"}
	for col, v := range want {
		if jane[col] != v {
			t.Fatalf("Column %s: expected %q, got %q", rows[0][col], v, jane[col])
		}
	}
	if jim := byEmail["jim@example.com"]; len(jim) == 0 || jim[0] != "Jim Beam" {
		t.Fatalf("Plain text must be unchanged, got %v", jim)
	}
}

func TestQR_PNGAndSizeClamp(t *testing.T) {
	env := setupTestServer(t, nil)
	ev := env.createEvent(t, env.registerHost(t, "hank@example.com"))
	base := env.url("/events/" + ev.ID)

	resp := get(t, base+"/qr?size=5000", http.StatusOK)
	if ct := resp.Header.Get("Content-Type"); ct != "image/png" {
		t.Fatalf("Expected image/png, got %s", ct)
	}
	body := readAll(t, resp)
	if !strings.HasPrefix(body, "\x89PNG") {
		t.Fatal("Expected PNG payload")
	}

	get(t, base+"/qr?size=big", http.StatusBadRequest).Body.Close()
	get(t, env.url("/events/missing/qr"), http.StatusNotFound).Body.Close()
}

// ---------- Helpers ----------

func do(t *testing.T, method, url string, headers map[string]string, data interface{}, expectedStatus int) *http.Response {
	t.Helper()

	var body io.Reader
	if data != nil {
		body = bytes.NewBuffer(jsonBytes(data))
	}
	req, err := http.NewRequest(method, url, body)
	if err != nil {
		t.Fatalf("build %s %s: %v", method, url, err)
	}
	if data != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for k, v := range headers {
		req.Header.Set(k, v)
	}

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("%s %s failed: %v", method, url, err)
	}
	if resp.StatusCode != expectedStatus {
		b, _ := io.ReadAll(resp.Body)
		resp.Body.Close()
		t.Fatalf("%s %s: expected status %d, got %d: %s", method, url, expectedStatus, resp.StatusCode, b)
	}
	return resp
}

func postJSON(t *testing.T, url string, data interface{}, expectedStatus int) *http.Response {
	t.Helper()
	return do(t, http.MethodPost, url, nil, data, expectedStatus)
}

func get(t *testing.T, url string, expectedStatus int) *http.Response {
	t.Helper()
	return do(t, http.MethodGet, url, nil, nil, expectedStatus)
}

func decode(t *testing.T, resp *http.Response, v interface{}) {
	t.Helper()
	defer resp.Body.Close()
	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		t.Fatalf("decode response: %v", err)
	}
}

func decodeGuest(t *testing.T, resp *http.Response) domain.Guest {
	t.Helper()
	var g domain.Guest
	decode(t, resp, &g)
	if g.ID == "" {
		t.Fatal("Expected guest id")
	}
	return g
}

func readAll(t *testing.T, resp *http.Response) string {
	t.Helper()
	defer resp.Body.Close()
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatalf("read body: %v", err)
	}
	return string(b)
}

func jsonBytes(data interface{}) []byte {
	b, _ := json.Marshal(data)
	return b
}
