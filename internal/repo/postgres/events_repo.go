package postgres

import (
	"context"
	"errors"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/rsvp-events/internal/domain"
	"github.com/diagnosis/rsvp-events/internal/repo"
)

type EventsRepoImpl struct{ db querier }

func NewEventsRepo(pool *pgxpool.Pool) *EventsRepoImpl { return &EventsRepoImpl{db: pool} }

var _ repo.EventRepo = (*EventsRepoImpl)(nil)

const eventCols = `id, owner_id, name, date, end_date, location,
venue, description, image_url, dress_code, instructions,
host_name, host_email, admin_token, access_token, guest_count,
created_at, updated_at`

func scanEvent(row pgx.Row) (*domain.Event, error) {
	var e domain.Event
	var id uuid.UUID
	err := row.Scan(
		&id, &e.OwnerID, &e.Name, &e.Date, &e.EndDate, &e.Location,
		&e.Venue, &e.Description, &e.ImageURL, &e.DressCode, &e.Instructions,
		&e.HostName, &e.HostEmail, &e.AdminToken, &e.AccessToken, &e.GuestCount,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	e.ID = id.String()
	return &e, nil
}

// parseID rejects ids that cannot exist so that malformed paths read as
// not found instead of a driver error.
func parseID(resource, id string) (uuid.UUID, error) {
	u, err := uuid.Parse(id)
	if err != nil {
		return uuid.Nil, domain.NotFound(resource)
	}
	return u, nil
}

func (r *EventsRepoImpl) CreateEvent(ctx context.Context, e *domain.Event) error {
	const q = `INSERT INTO events (
    id, owner_id, name, date, end_date, location,
    venue, description, image_url, dress_code, instructions,
    host_name, host_email, admin_token, access_token, guest_count
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,0)
  RETURNING guest_count, created_at, updated_at`

	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	uid, err := parseID("event", e.ID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err = r.db.QueryRow(ctx, q,
		uid, e.OwnerID, e.Name, e.Date, e.EndDate, e.Location,
		e.Venue, e.Description, e.ImageURL, e.DressCode, e.Instructions,
		e.HostName, e.HostEmail, e.AdminToken, e.AccessToken,
	).Scan(&e.GuestCount, &e.CreatedAt, &e.UpdatedAt)
	if err != nil {
		return domain.WrapStore("create event", err)
	}
	return nil
}

func (r *EventsRepoImpl) getEvent(ctx context.Context, q, id string) (*domain.Event, error) {
	uid, err := parseID("event", id)
	if err != nil {
		return nil, err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	e, err := scanEvent(r.db.QueryRow(ctx, q, uid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("event")
	}
	if err != nil {
		return nil, domain.WrapStore("get event", err)
	}
	return e, nil
}

func (r *EventsRepoImpl) GetEvent(ctx context.Context, id string) (*domain.Event, error) {
	return r.getEvent(ctx, `SELECT `+eventCols+` FROM events WHERE id=$1`, id)
}

func (r *EventsRepoImpl) GetEventForUpdate(ctx context.Context, id string) (*domain.Event, error) {
	return r.getEvent(ctx, `SELECT `+eventCols+` FROM events WHERE id=$1 FOR UPDATE`, id)
}

func (r *EventsRepoImpl) ListEventsByOwner(ctx context.Context, ownerID string, limit, offset int) ([]*domain.Event, error) {
	limit, offset = repo.ClampPage(limit, offset)
	const q = `
		SELECT ` + eventCols + `
		FROM events
		WHERE owner_id = $1
		ORDER BY created_at DESC, id DESC
		LIMIT $2 OFFSET $3
	`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, q, ownerID, limit, offset)
	if err != nil {
		return nil, domain.WrapStore("list events", err)
	}
	defer rows.Close()

	es := make([]*domain.Event, 0, limit)
	for rows.Next() {
		e, err := scanEvent(rows)
		if err != nil {
			return nil, domain.WrapStore("list events", err)
		}
		es = append(es, e)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStore("list events", err)
	}
	return es, nil
}

func (r *EventsRepoImpl) UpdateEvent(ctx context.Context, e *domain.Event) error {
	uid, err := parseID("event", e.ID)
	if err != nil {
		return err
	}
	const q = `UPDATE events SET
    name=$2, date=$3, end_date=$4, location=$5,
    venue=$6, description=$7, image_url=$8, dress_code=$9, instructions=$10,
    host_name=$11, host_email=$12, updated_at=now()
  WHERE id=$1
  RETURNING owner_id, admin_token, access_token, guest_count, created_at, updated_at`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err = r.db.QueryRow(ctx, q, uid,
		e.Name, e.Date, e.EndDate, e.Location,
		e.Venue, e.Description, e.ImageURL, e.DressCode, e.Instructions,
		e.HostName, e.HostEmail,
	).Scan(&e.OwnerID, &e.AdminToken, &e.AccessToken, &e.GuestCount, &e.CreatedAt, &e.UpdatedAt)
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.NotFound("event")
	}
	if err != nil {
		return domain.WrapStore("update event", err)
	}
	return nil
}

func (r *EventsRepoImpl) SetEventTokens(ctx context.Context, id, adminToken, accessToken string) (*domain.Event, error) {
	uid, err := parseID("event", id)
	if err != nil {
		return nil, err
	}
	const q = `UPDATE events SET admin_token=$2, access_token=$3, updated_at=now()
  WHERE id=$1 RETURNING ` + eventCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	e, err := scanEvent(r.db.QueryRow(ctx, q, uid, adminToken, accessToken))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("event")
	}
	if err != nil {
		return nil, domain.WrapStore("rotate tokens", err)
	}
	return e, nil
}

func (r *EventsRepoImpl) AdjustGuestCount(ctx context.Context, id string, delta int) (int, error) {
	uid, err := parseID("event", id)
	if err != nil {
		return 0, err
	}
	const q = `UPDATE events SET guest_count = GREATEST(guest_count + $2, 0), updated_at=now()
  WHERE id=$1 RETURNING guest_count`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	var count int
	err = r.db.QueryRow(ctx, q, uid, delta).Scan(&count)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, domain.NotFound("event")
	}
	if err != nil {
		return 0, domain.WrapStore("adjust guest count", err)
	}
	return count, nil
}

func (r *EventsRepoImpl) DeleteEvent(ctx context.Context, id string) error {
	uid, err := parseID("event", id)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := r.db.Exec(ctx, `DELETE FROM events WHERE id=$1`, uid)
	if err != nil {
		return domain.WrapStore("delete event", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.NotFound("event")
	}
	return nil
}
