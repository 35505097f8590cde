// Package memory is an in-process Store used for local runs and tests.
package memory

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/diagnosis/rsvp-events/internal/domain"
	"github.com/diagnosis/rsvp-events/internal/repo"
)

type Store struct {
	mu     sync.Mutex
	events map[string]*domain.Event
	guests map[string]*domain.Guest
	users  map[string]*domain.User
	now    func() time.Time
}

func New() *Store {
	return &Store{
		events: make(map[string]*domain.Event),
		guests: make(map[string]*domain.Guest),
		users:  make(map[string]*domain.User),
		now:    time.Now,
	}
}

var (
	_ repo.Store = (*Store)(nil)
	_ repo.Tx    = (*txView)(nil)
)

// txView runs against a Store whose mutex is already held by WithinTx.
type txView struct{ s *Store }

// WithinTx holds the store lock for the whole of fn and restores the
// previous state if fn fails.
func (s *Store) WithinTx(ctx context.Context, fn func(tx repo.Tx) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	events, guests := s.snapshot()
	if err := fn(&txView{s: s}); err != nil {
		s.events, s.guests = events, guests
		return err
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error { return nil }

func (s *Store) snapshot() (map[string]*domain.Event, map[string]*domain.Guest) {
	events := make(map[string]*domain.Event, len(s.events))
	for k, v := range s.events {
		events[k] = cloneEvent(v)
	}
	guests := make(map[string]*domain.Guest, len(s.guests))
	for k, v := range s.guests {
		guests[k] = cloneGuest(v)
	}
	return events, guests
}

func cloneEvent(e *domain.Event) *domain.Event {
	c := *e
	return &c
}

func cloneGuest(g *domain.Guest) *domain.Guest {
	c := *g
	c.AdditionalGuestNames = append([]string(nil), g.AdditionalGuestNames...)
	if c.AdditionalGuestNames == nil {
		c.AdditionalGuestNames = []string{}
	}
	return &c
}

func cloneUser(u *domain.User) *domain.User {
	c := *u
	return &c
}

// Events

func (s *Store) createEvent(e *domain.Event) error {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	now := s.now().UTC()
	e.CreatedAt, e.UpdatedAt = now, now
	s.events[e.ID] = cloneEvent(e)
	return nil
}

func (s *Store) getEvent(id string) (*domain.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return nil, domain.NotFound("event")
	}
	return cloneEvent(e), nil
}

func (s *Store) listEventsByOwner(ownerID string, limit, offset int) []*domain.Event {
	limit, offset = repo.ClampPage(limit, offset)
	var out []*domain.Event
	for _, e := range s.events {
		if e.OwnerID == ownerID {
			out = append(out, cloneEvent(e))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID > out[j].ID
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if offset >= len(out) {
		return []*domain.Event{}
	}
	out = out[offset:]
	if len(out) > limit {
		out = out[:limit]
	}
	return out
}

func (s *Store) updateEvent(e *domain.Event) error {
	cur, ok := s.events[e.ID]
	if !ok {
		return domain.NotFound("event")
	}
	e.UpdatedAt = s.now().UTC()

	next := cloneEvent(e)
	next.OwnerID = cur.OwnerID
	next.AdminToken = cur.AdminToken
	next.AccessToken = cur.AccessToken
	next.GuestCount = cur.GuestCount
	next.CreatedAt = cur.CreatedAt
	s.events[e.ID] = next

	e.OwnerID = cur.OwnerID
	e.AdminToken = cur.AdminToken
	e.AccessToken = cur.AccessToken
	e.GuestCount = cur.GuestCount
	e.CreatedAt = cur.CreatedAt
	return nil
}

func (s *Store) setEventTokens(id, adminToken, accessToken string) (*domain.Event, error) {
	e, ok := s.events[id]
	if !ok {
		return nil, domain.NotFound("event")
	}
	e.AdminToken = adminToken
	e.AccessToken = accessToken
	e.UpdatedAt = s.now().UTC()
	return cloneEvent(e), nil
}

func (s *Store) adjustGuestCount(id string, delta int) (int, error) {
	e, ok := s.events[id]
	if !ok {
		return 0, domain.NotFound("event")
	}
	e.GuestCount = max(e.GuestCount+delta, 0)
	return e.GuestCount, nil
}

func (s *Store) deleteEvent(id string) error {
	if _, ok := s.events[id]; !ok {
		return domain.NotFound("event")
	}
	s.deleteGuestsByEvent(id)
	delete(s.events, id)
	return nil
}

// Guests

func (s *Store) findGuestByEmail(eventID, email string) *domain.Guest {
	email = strings.ToLower(email)
	for _, g := range s.guests {
		if g.EventID == eventID && g.Email == email {
			return cloneGuest(g)
		}
	}
	return nil
}

func (s *Store) getGuest(eventID, guestID string) (*domain.Guest, error) {
	g, ok := s.guests[guestID]
	if !ok || g.EventID != eventID {
		return nil, domain.NotFound("guest")
	}
	return cloneGuest(g), nil
}

func (s *Store) listGuests(eventID string) []*domain.Guest {
	out := []*domain.Guest{}
	for _, g := range s.guests {
		if g.EventID == eventID {
			out = append(out, cloneGuest(g))
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

func (s *Store) insertGuest(g *domain.Guest) error {
	if _, ok := s.events[g.EventID]; !ok {
		return domain.NotFound("event")
	}
	if s.findGuestByEmail(g.EventID, g.Email) != nil {
		return &domain.ConflictError{Message: "guest already responded"}
	}
	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	s.guests[g.ID] = cloneGuest(g)
	return nil
}

func (s *Store) updateGuest(g *domain.Guest) error {
	cur, ok := s.guests[g.ID]
	if !ok || cur.EventID != g.EventID {
		return domain.NotFound("guest")
	}
	s.guests[g.ID] = cloneGuest(g)
	return nil
}

func (s *Store) deleteGuest(eventID, guestID string) error {
	g, ok := s.guests[guestID]
	if !ok || g.EventID != eventID {
		return domain.NotFound("guest")
	}
	delete(s.guests, guestID)
	return nil
}

func (s *Store) deleteGuestsByEvent(eventID string) int64 {
	var n int64
	for id, g := range s.guests {
		if g.EventID == eventID {
			delete(s.guests, id)
			n++
		}
	}
	return n
}

// Locked entry points.

func (s *Store) CreateEvent(ctx context.Context, e *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.createEvent(e)
}

func (s *Store) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getEvent(id)
}

// GetEventForUpdate outside a transaction is a plain read.
func (s *Store) GetEventForUpdate(ctx context.Context, id string) (*domain.Event, error) {
	return s.GetEvent(ctx, id)
}

func (s *Store) ListEventsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listEventsByOwner(ownerID, limit, offset), nil
}

func (s *Store) UpdateEvent(ctx context.Context, e *domain.Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateEvent(e)
}

func (s *Store) SetEventTokens(ctx context.Context, id, adminToken, accessToken string) (*domain.Event, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.setEventTokens(id, adminToken, accessToken)
}

func (s *Store) AdjustGuestCount(ctx context.Context, id string, delta int) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.adjustGuestCount(id, delta)
}

func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteEvent(id)
}

func (s *Store) FindGuestByEmail(ctx context.Context, eventID, email string) (*domain.Guest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.findGuestByEmail(eventID, email), nil
}

func (s *Store) GetGuest(ctx context.Context, eventID, guestID string) (*domain.Guest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.getGuest(eventID, guestID)
}

func (s *Store) ListGuests(ctx context.Context, eventID string) ([]*domain.Guest, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.listGuests(eventID), nil
}

func (s *Store) InsertGuest(ctx context.Context, g *domain.Guest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.insertGuest(g)
}

func (s *Store) UpdateGuest(ctx context.Context, g *domain.Guest) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.updateGuest(g)
}

func (s *Store) DeleteGuest(ctx context.Context, eventID, guestID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteGuest(eventID, guestID)
}

func (s *Store) DeleteGuestsByEvent(ctx context.Context, eventID string) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.deleteGuestsByEvent(eventID), nil
}

// Transaction-scoped entry points. The caller holds s.mu.

func (t *txView) CreateEvent(ctx context.Context, e *domain.Event) error {
	return t.s.createEvent(e)
}

func (t *txView) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	return t.s.getEvent(id)
}

func (t *txView) GetEventForUpdate(ctx context.Context, id string) (*domain.Event, error) {
	return t.s.getEvent(id)
}

func (t *txView) ListEventsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Event, error) {
	return t.s.listEventsByOwner(ownerID, limit, offset), nil
}

func (t *txView) UpdateEvent(ctx context.Context, e *domain.Event) error {
	return t.s.updateEvent(e)
}

func (t *txView) SetEventTokens(ctx context.Context, id, adminToken, accessToken string) (*domain.Event, error) {
	return t.s.setEventTokens(id, adminToken, accessToken)
}

func (t *txView) AdjustGuestCount(ctx context.Context, id string, delta int) (int, error) {
	return t.s.adjustGuestCount(id, delta)
}

func (t *txView) DeleteEvent(ctx context.Context, id string) error {
	return t.s.deleteEvent(id)
}

func (t *txView) FindGuestByEmail(ctx context.Context, eventID, email string) (*domain.Guest, error) {
	return t.s.findGuestByEmail(eventID, email), nil
}

func (t *txView) GetGuest(ctx context.Context, eventID, guestID string) (*domain.Guest, error) {
	return t.s.getGuest(eventID, guestID)
}

func (t *txView) ListGuests(ctx context.Context, eventID string) ([]*domain.Guest, error) {
	return t.s.listGuests(eventID), nil
}

func (t *txView) InsertGuest(ctx context.Context, g *domain.Guest) error {
	return t.s.insertGuest(g)
}

func (t *txView) UpdateGuest(ctx context.Context, g *domain.Guest) error {
	return t.s.updateGuest(g)
}

func (t *txView) DeleteGuest(ctx context.Context, eventID, guestID string) error {
	return t.s.deleteGuest(eventID, guestID)
}

func (t *txView) DeleteGuestsByEvent(ctx context.Context, eventID string) (int64, error) {
	return t.s.deleteGuestsByEvent(eventID), nil
}
