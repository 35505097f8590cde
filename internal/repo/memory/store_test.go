package memory

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/diagnosis/rsvp-events/internal/domain"
	"github.com/diagnosis/rsvp-events/internal/repo"
)

func seedEvent(t *testing.T, s *Store, id string) *domain.Event {
	t.Helper()
	e := &domain.Event{ID: id, OwnerID: "owner", Name: "Party", Date: time.Now(), Location: "Here", AdminToken: "a-" + id, AccessToken: "r-" + id}
	require.NoError(t, s.CreateEvent(context.Background(), e))
	return e
}

func TestWithinTx_RollsBackOnError(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedEvent(t, s, "e1")

	boom := errors.New("boom")
	err := s.WithinTx(ctx, func(tx repo.Tx) error {
		if err := tx.InsertGuest(ctx, &domain.Guest{ID: "g1", EventID: "e1", Name: "Jane Doe", Email: "jane@example.com", Response: domain.ResponseAttending, NumberOfGuests: 2}); err != nil {
			return err
		}
		if _, err := tx.AdjustGuestCount(ctx, "e1", 2); err != nil {
			return err
		}
		return boom
	})
	require.ErrorIs(t, err, boom)

	e, err := s.GetEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, 0, e.GuestCount)
	guests, err := s.ListGuests(ctx, "e1")
	require.NoError(t, err)
	assert.Empty(t, guests)
}

func TestAdjustGuestCount_NeverNegative(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedEvent(t, s, "e1")

	n, err := s.AdjustGuestCount(ctx, "e1", 3)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	n, err = s.AdjustGuestCount(ctx, "e1", -10)
	require.NoError(t, err)
	assert.Equal(t, 0, n)

	_, err = s.AdjustGuestCount(ctx, "missing", 1)
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestInsertGuest_DuplicateEmailConflicts(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedEvent(t, s, "e1")
	seedEvent(t, s, "e2")

	g := &domain.Guest{EventID: "e1", Name: "Jane Doe", Email: "jane@example.com", Response: domain.ResponseDeclined}
	require.NoError(t, s.InsertGuest(ctx, g))
	assert.NotEmpty(t, g.ID)

	err := s.InsertGuest(ctx, &domain.Guest{EventID: "e1", Name: "Jane Doe", Email: "jane@example.com", Response: domain.ResponseDeclined})
	assert.ErrorIs(t, err, domain.ErrConflict)

	// Same address on another event is a different guest.
	require.NoError(t, s.InsertGuest(ctx, &domain.Guest{EventID: "e2", Name: "Jane Doe", Email: "jane@example.com", Response: domain.ResponseDeclined}))

	found, err := s.FindGuestByEmail(ctx, "e1", "JANE@example.com")
	require.NoError(t, err)
	require.NotNil(t, found)
	assert.Equal(t, g.ID, found.ID)

	none, err := s.FindGuestByEmail(ctx, "e1", "other@example.com")
	require.NoError(t, err)
	assert.Nil(t, none)
}

func TestUpdateEvent_PreservesServerFields(t *testing.T) {
	s := New()
	ctx := context.Background()
	orig := seedEvent(t, s, "e1")
	_, err := s.AdjustGuestCount(ctx, "e1", 5)
	require.NoError(t, err)

	edit := &domain.Event{ID: "e1", OwnerID: "intruder", Name: "Renamed", Date: orig.Date, Location: "There", AdminToken: "x", AccessToken: "y"}
	require.NoError(t, s.UpdateEvent(ctx, edit))
	assert.Equal(t, 5, edit.GuestCount)
	assert.Equal(t, "owner", edit.OwnerID)
	assert.Equal(t, "a-e1", edit.AdminToken)

	got, err := s.GetEvent(ctx, "e1")
	require.NoError(t, err)
	assert.Equal(t, "Renamed", got.Name)
	assert.Equal(t, "owner", got.OwnerID)
	assert.Equal(t, "a-e1", got.AdminToken)
	assert.Equal(t, "r-e1", got.AccessToken)
	assert.Equal(t, 5, got.GuestCount)
}

func TestDeleteEvent_RemovesGuests(t *testing.T) {
	s := New()
	ctx := context.Background()
	seedEvent(t, s, "e1")
	require.NoError(t, s.InsertGuest(ctx, &domain.Guest{EventID: "e1", Name: "Jane Doe", Email: "jane@example.com", Response: domain.ResponseDeclined}))

	require.NoError(t, s.DeleteEvent(ctx, "e1"))
	guests, err := s.ListGuests(ctx, "e1")
	require.NoError(t, err)
	assert.Empty(t, guests)
	assert.ErrorIs(t, s.DeleteEvent(ctx, "e1"), domain.ErrNotFound)
}

func TestUsers_PasswordAccountsOnly(t *testing.T) {
	s := New()
	ctx := context.Background()

	_, err := s.EnsureUser(ctx, &domain.User{ID: "ext-1", Name: "Ext User", Email: "jane@example.com"})
	require.NoError(t, err)

	_, err = s.FindUserByEmail(ctx, "jane@example.com")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	require.NoError(t, s.CreateUser(ctx, &domain.User{ID: "u-1", Name: "Jane Doe", Email: "jane@example.com", PasswordHash: "hash"}))
	err = s.CreateUser(ctx, &domain.User{ID: "u-2", Name: "Jane Two", Email: "JANE@example.com", PasswordHash: "hash"})
	assert.ErrorIs(t, err, domain.ErrConflict)

	u, err := s.FindUserByEmail(ctx, "jane@example.com")
	require.NoError(t, err)
	assert.Equal(t, "u-1", u.ID)
}
