package service

import (
	"context"
	"time"

	"github.com/diagnosis/rsvp-events/internal/domain"
	"github.com/diagnosis/rsvp-events/internal/repo"
	"github.com/diagnosis/rsvp-events/internal/utils"
	"github.com/diagnosis/rsvp-events/pkg/events"
	"github.com/diagnosis/rsvp-events/pkg/logger"
)

type RSVPService interface {
	// Submit inserts or updates the guest matched by (eventID, email) and
	// moves the event's guest count by the resulting headcount delta.
	Submit(ctx context.Context, eventID string, req *domain.RSVPRequest) (*RSVPResult, error)
	ListGuests(ctx context.Context, eventID string, cred domain.Credential) (*GuestList, error)
	DeleteGuest(ctx context.Context, eventID, guestID string, cred domain.Credential) error
}

type RSVPResult struct {
	Guest      *domain.Guest
	Created    bool
	Delta      int
	GuestCount int
}

type GuestList struct {
	Guests []*domain.Guest   `json:"guests"`
	Stats  domain.GuestStats `json:"stats"`
}

type rsvpService struct {
	store    repo.Store
	eventBus events.Publisher
	now      func() time.Time
}

func NewRSVPService(store repo.Store, eventBus events.Publisher) RSVPService {
	return &rsvpService{store: store, eventBus: eventBus, now: time.Now}
}

func (s *rsvpService) Submit(ctx context.Context, eventID string, req *domain.RSVPRequest) (*RSVPResult, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	var (
		res   RSVPResult
		event *domain.Event
	)
	err := s.store.WithinTx(ctx, func(tx repo.Tx) error {
		e, err := tx.GetEventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		event = e

		prev, err := tx.FindGuestByEmail(ctx, eventID, req.Email)
		if err != nil {
			return err
		}

		next := req.ToGuest(eventID, prev, s.now().UTC())
		if prev == nil {
			err = tx.InsertGuest(ctx, next)
		} else {
			err = tx.UpdateGuest(ctx, next)
		}
		if err != nil {
			return err
		}

		res = RSVPResult{Guest: next, Created: prev == nil, Delta: domain.GuestCountDelta(prev, next), GuestCount: e.GuestCount}
		if res.Delta != 0 {
			count, err := tx.AdjustGuestCount(ctx, eventID, res.Delta)
			if err != nil {
				return err
			}
			res.GuestCount = count
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	ctx = logger.WithEventID(ctx, eventID)
	logger.InfoContext(ctx, "RSVP recorded",
		"guest_id", res.Guest.ID,
		"created", res.Created,
		"response", res.Guest.Response,
		"delta", res.Delta,
		"guest_count", res.GuestCount,
	)

	subject := events.RSVPUpdated
	if res.Created {
		subject = events.RSVPCreated
	}
	payload := events.RSVPEvent{
		EventID:        event.ID,
		EventName:      event.Name,
		EventDate:      event.Date,
		EventLocation:  event.Location,
		HostName:       utils.StringValue(event.HostName),
		HostEmail:      utils.StringValue(event.HostEmail),
		GuestID:        res.Guest.ID,
		GuestName:      res.Guest.Name,
		GuestEmail:     res.Guest.Email,
		Response:       string(res.Guest.Response),
		NumberOfGuests: res.Guest.NumberOfGuests,
		Message:        utils.StringValue(res.Guest.Message),
		GuestCount:     res.GuestCount,
		Delta:          res.Delta,
		RespondedAt:    res.Guest.UpdatedAt,
	}
	if err := s.eventBus.Publish(ctx, subject, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish RSVP event", "error", err, "subject", subject, "guest_id", res.Guest.ID)
	}

	return &res, nil
}

func (s *rsvpService) ListGuests(ctx context.Context, eventID string, cred domain.Credential) (*GuestList, error) {
	e, err := s.store.GetEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}
	if _, err := domain.Require(e, cred, domain.AccessReader); err != nil {
		return nil, err
	}

	guests, err := s.store.ListGuests(ctx, eventID)
	if err != nil {
		return nil, err
	}
	return &GuestList{Guests: guests, Stats: domain.ComputeStats(guests)}, nil
}

func (s *rsvpService) DeleteGuest(ctx context.Context, eventID, guestID string, cred domain.Credential) error {
	var (
		removed *domain.Guest
		delta   int
		count   int
	)
	err := s.store.WithinTx(ctx, func(tx repo.Tx) error {
		e, err := tx.GetEventForUpdate(ctx, eventID)
		if err != nil {
			return err
		}
		if _, err := domain.Require(e, cred, domain.AccessAdmin); err != nil {
			return err
		}

		g, err := tx.GetGuest(ctx, eventID, guestID)
		if err != nil {
			return err
		}
		if err := tx.DeleteGuest(ctx, eventID, guestID); err != nil {
			return err
		}

		removed, count = g, e.GuestCount
		delta = domain.GuestCountDelta(g, nil)
		if delta != 0 {
			count, err = tx.AdjustGuestCount(ctx, eventID, delta)
			if err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	ctx = logger.WithEventID(ctx, eventID)
	logger.InfoContext(ctx, "Guest deleted", "guest_id", guestID, "delta", delta, "guest_count", count)

	payload := events.GuestDeletedEvent{
		EventID:    eventID,
		GuestID:    guestID,
		GuestEmail: removed.Email,
		Delta:      delta,
		GuestCount: count,
		DeletedAt:  s.now().UTC(),
	}
	if err := s.eventBus.Publish(ctx, events.GuestDeleted, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish guest deleted event", "error", err, "guest_id", guestID)
	}
	return nil
}
