// Package repo declares the storage contracts shared by the Postgres and
// in-memory stores.
package repo

import (
	"context"

	"github.com/diagnosis/rsvp-events/internal/domain"
)

const (
	DefaultListLimit = 20
	MaxListLimit     = 100
)

// ClampPage applies the list defaults used by every paginated query.
func ClampPage(limit, offset int) (int, int) {
	if limit <= 0 || limit > MaxListLimit {
		limit = DefaultListLimit
	}
	if offset < 0 {
		offset = 0
	}
	return limit, offset
}

type EventRepo interface {
	CreateEvent(ctx context.Context, e *domain.Event) error
	// GetEvent returns a domain.NotFoundError when the event does not exist.
	GetEvent(ctx context.Context, id string) (*domain.Event, error)
	// GetEventForUpdate is GetEvent plus a row lock held until the
	// surrounding transaction ends.
	GetEventForUpdate(ctx context.Context, id string) (*domain.Event, error)
	ListEventsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Event, error)
	// UpdateEvent writes the editable fields of e. The fields it does not
	// write (owner, tokens, guestCount, timestamps) are reloaded into e
	// from the stored row.
	UpdateEvent(ctx context.Context, e *domain.Event) error
	SetEventTokens(ctx context.Context, id, adminToken, accessToken string) (*domain.Event, error)
	// AdjustGuestCount adds delta to the event's guest count, never going
	// below zero, and returns the new value.
	AdjustGuestCount(ctx context.Context, id string, delta int) (int, error)
	DeleteEvent(ctx context.Context, id string) error
}

type GuestRepo interface {
	// FindGuestByEmail returns nil, nil when the event has no guest with that email.
	FindGuestByEmail(ctx context.Context, eventID, email string) (*domain.Guest, error)
	// GetGuest returns a domain.NotFoundError unless the guest belongs to eventID.
	GetGuest(ctx context.Context, eventID, guestID string) (*domain.Guest, error)
	ListGuests(ctx context.Context, eventID string) ([]*domain.Guest, error)
	// InsertGuest assigns g.ID when it is empty.
	InsertGuest(ctx context.Context, g *domain.Guest) error
	UpdateGuest(ctx context.Context, g *domain.Guest) error
	DeleteGuest(ctx context.Context, eventID, guestID string) error
	DeleteGuestsByEvent(ctx context.Context, eventID string) (int64, error)
}

type UserRepo interface {
	// EnsureUser inserts the user or refreshes its profile fields.
	EnsureUser(ctx context.Context, u *domain.User) (*domain.User, error)
	// CreateUser returns a domain.ConflictError when the email is taken.
	CreateUser(ctx context.Context, u *domain.User) error
	FindUserByID(ctx context.Context, id string) (*domain.User, error)
	FindUserByEmail(ctx context.Context, email string) (*domain.User, error)
}

// Tx is the subset of the store available inside WithinTx.
type Tx interface {
	EventRepo
	GuestRepo
}

type Store interface {
	EventRepo
	GuestRepo
	UserRepo
	// WithinTx runs fn atomically. Any error from fn rolls back every write
	// made through tx.
	WithinTx(ctx context.Context, fn func(tx Tx) error) error
	Ping(ctx context.Context) error
}
