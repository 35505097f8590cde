package service

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/diagnosis/rsvp-events/internal/cache"
	"github.com/diagnosis/rsvp-events/internal/domain"
	"github.com/diagnosis/rsvp-events/internal/repo"
	"github.com/diagnosis/rsvp-events/pkg/events"
	"github.com/diagnosis/rsvp-events/pkg/logger"
)

type EventService interface {
	Create(ctx context.Context, ownerID string, in *domain.EventInput) (*domain.Event, error)
	List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Event, error)
	// Get returns the full event when cred can read it and the public
	// projection otherwise. A presented token that grants nothing is an error.
	Get(ctx context.Context, id string, cred domain.Credential) (*EventView, error)
	Public(ctx context.Context, id string) (*domain.PublicEvent, error)
	// Authorize loads the event and checks cred reaches min.
	Authorize(ctx context.Context, id string, cred domain.Credential, min domain.Access) (*domain.Event, domain.Access, error)
	Update(ctx context.Context, id string, cred domain.Credential, in *domain.EventInput) (*domain.Event, error)
	Delete(ctx context.Context, id string, cred domain.Credential) error
	RotateTokens(ctx context.Context, id string, cred domain.Credential) (*domain.Event, error)
}

// EventView holds exactly one of Event or Public.
type EventView struct {
	Access domain.Access
	Event  *domain.Event
	Public *domain.PublicEvent
}

type eventService struct {
	store    repo.Store
	cache    cache.PublicEvents
	eventBus events.Publisher
}

func NewEventService(store repo.Store, publicCache cache.PublicEvents, eventBus events.Publisher) EventService {
	return &eventService{store: store, cache: publicCache, eventBus: eventBus}
}

func (s *eventService) Create(ctx context.Context, ownerID string, in *domain.EventInput) (*domain.Event, error) {
	if ownerID == "" {
		return nil, domain.Unauthorized("authentication required")
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	e := &domain.Event{
		ID:          uuid.NewString(),
		OwnerID:     ownerID,
		AdminToken:  uuid.NewString(),
		AccessToken: uuid.NewString(),
	}
	in.Apply(e)
	if err := s.store.CreateEvent(ctx, e); err != nil {
		return nil, err
	}

	ctx = logger.WithEventID(ctx, e.ID)
	logger.InfoContext(ctx, "Event created", "owner_id", ownerID)

	payload := events.EventCreatedEvent{
		EventID:   e.ID,
		OwnerID:   e.OwnerID,
		Name:      e.Name,
		Date:      e.Date,
		CreatedAt: e.CreatedAt,
	}
	if err := s.eventBus.Publish(ctx, events.EventCreated, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event created event", "error", err)
	}
	return e, nil
}

func (s *eventService) List(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Event, error) {
	if ownerID == "" {
		return nil, domain.Unauthorized("authentication required")
	}
	return s.store.ListEventsByOwner(ctx, ownerID, limit, offset)
}

func (s *eventService) Get(ctx context.Context, id string, cred domain.Credential) (*EventView, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}

	access := domain.Authorize(e, cred)
	if access.CanRead() {
		return &EventView{Access: access, Event: e.ViewFor(access)}, nil
	}
	if cred.HasToken() {
		_, err := domain.Require(e, cred, domain.AccessReader)
		return nil, err
	}
	p := e.Public()
	return &EventView{Access: access, Public: &p}, nil
}

// Public reads through the projection cache. Cache failures fall back to the store.
func (s *eventService) Public(ctx context.Context, id string) (*domain.PublicEvent, error) {
	if cached, err := s.cache.Get(ctx, id); err != nil {
		logger.WarnContext(ctx, "Public event cache read failed", "error", err, "event_id", id)
	} else if cached != nil {
		return cached, nil
	}

	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, err
	}
	p := e.Public()
	if err := s.cache.Set(ctx, &p); err != nil {
		logger.WarnContext(ctx, "Public event cache write failed", "error", err, "event_id", id)
	}
	return &p, nil
}

func (s *eventService) Authorize(ctx context.Context, id string, cred domain.Credential, min domain.Access) (*domain.Event, domain.Access, error) {
	e, err := s.store.GetEvent(ctx, id)
	if err != nil {
		return nil, domain.AccessPublic, err
	}
	access, err := domain.Require(e, cred, min)
	if err != nil {
		return nil, access, err
	}
	return e, access, nil
}

func (s *eventService) Update(ctx context.Context, id string, cred domain.Credential, in *domain.EventInput) (*domain.Event, error) {
	e, access, err := s.Authorize(ctx, id, cred, domain.AccessAdmin)
	if err != nil {
		return nil, err
	}
	if err := in.Validate(); err != nil {
		return nil, err
	}

	in.Apply(e)
	if err := s.store.UpdateEvent(ctx, e); err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	ctx = logger.WithEventID(ctx, id)
	logger.InfoContext(ctx, "Event updated", "access", access.String())
	s.publishUpdated(ctx, e, "edited")
	return e.ViewFor(access), nil
}

func (s *eventService) RotateTokens(ctx context.Context, id string, cred domain.Credential) (*domain.Event, error) {
	_, access, err := s.Authorize(ctx, id, cred, domain.AccessAdmin)
	if err != nil {
		return nil, err
	}

	e, err := s.store.SetEventTokens(ctx, id, uuid.NewString(), uuid.NewString())
	if err != nil {
		return nil, err
	}
	s.invalidate(ctx, id)

	ctx = logger.WithEventID(ctx, id)
	logger.InfoContext(ctx, "Event tokens rotated", "access", access.String())
	s.publishUpdated(ctx, e, "tokens_rotated")

	// The caller's old token no longer matches, so show the new ones at the
	// level they held before rotating.
	return e.ViewFor(access), nil
}

func (s *eventService) Delete(ctx context.Context, id string, cred domain.Credential) error {
	var removed int64
	err := s.store.WithinTx(ctx, func(tx repo.Tx) error {
		e, err := tx.GetEventForUpdate(ctx, id)
		if err != nil {
			return err
		}
		if _, err := domain.Require(e, cred, domain.AccessAdmin); err != nil {
			return err
		}
		if removed, err = tx.DeleteGuestsByEvent(ctx, id); err != nil {
			return err
		}
		return tx.DeleteEvent(ctx, id)
	})
	if err != nil {
		return err
	}
	s.invalidate(ctx, id)

	ctx = logger.WithEventID(ctx, id)
	logger.InfoContext(ctx, "Event deleted", "guests_removed", removed)

	payload := events.EventDeletedEvent{EventID: id, GuestsRemoved: removed, DeletedAt: time.Now().UTC()}
	if err := s.eventBus.Publish(ctx, events.EventDeleted, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event deleted event", "error", err)
	}
	return nil
}

func (s *eventService) invalidate(ctx context.Context, id string) {
	if err := s.cache.Invalidate(ctx, id); err != nil {
		logger.WarnContext(ctx, "Public event cache invalidation failed", "error", err, "event_id", id)
	}
}

func (s *eventService) publishUpdated(ctx context.Context, e *domain.Event, reason string) {
	payload := events.EventUpdatedEvent{EventID: e.ID, Name: e.Name, Reason: reason, UpdatedAt: e.UpdatedAt}
	if err := s.eventBus.Publish(ctx, events.EventUpdated, payload); err != nil {
		logger.ErrorContext(ctx, "Failed to publish event updated event", "error", err)
	}
}
