package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/rsvp-events/internal/domain"
	"github.com/diagnosis/rsvp-events/internal/repo"
)

type GuestsRepoImpl struct{ db querier }

func NewGuestsRepo(pool *pgxpool.Pool) *GuestsRepoImpl { return &GuestsRepoImpl{db: pool} }

var _ repo.GuestRepo = (*GuestsRepoImpl)(nil)

const guestCols = `id, event_id, name, email, response, number_of_guests,
additional_guest_names, dietary_restrictions, message, created_at, updated_at`

func scanGuest(row pgx.Row) (*domain.Guest, error) {
	var g domain.Guest
	var id, eventID uuid.UUID
	var response string
	err := row.Scan(
		&id, &eventID, &g.Name, &g.Email, &response, &g.NumberOfGuests,
		&g.AdditionalGuestNames, &g.DietaryRestrictions, &g.Message, &g.CreatedAt, &g.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	g.ID = id.String()
	g.EventID = eventID.String()
	resp, ok := domain.ParseResponse(response)
	if !ok {
		return nil, fmt.Errorf("guest %s: unknown response %q", g.ID, response)
	}
	g.Response = resp
	if g.AdditionalGuestNames == nil {
		g.AdditionalGuestNames = []string{}
	}
	return &g, nil
}

func (r *GuestsRepoImpl) FindGuestByEmail(ctx context.Context, eventID, email string) (*domain.Guest, error) {
	uid, err := uuid.Parse(eventID)
	if err != nil {
		return nil, nil
	}
	const q = `SELECT ` + guestCols + ` FROM guests WHERE event_id=$1 AND email=lower($2)`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	g, err := scanGuest(r.db.QueryRow(ctx, q, uid, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, domain.WrapStore("find guest", err)
	}
	return g, nil
}

func (r *GuestsRepoImpl) GetGuest(ctx context.Context, eventID, guestID string) (*domain.Guest, error) {
	eid, err := parseID("event", eventID)
	if err != nil {
		return nil, err
	}
	gid, err := parseID("guest", guestID)
	if err != nil {
		return nil, err
	}
	const q = `SELECT ` + guestCols + ` FROM guests WHERE id=$1 AND event_id=$2`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	g, err := scanGuest(r.db.QueryRow(ctx, q, gid, eid))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("guest")
	}
	if err != nil {
		return nil, domain.WrapStore("get guest", err)
	}
	return g, nil
}

func (r *GuestsRepoImpl) ListGuests(ctx context.Context, eventID string) ([]*domain.Guest, error) {
	uid, err := uuid.Parse(eventID)
	if err != nil {
		return []*domain.Guest{}, nil
	}
	const q = `SELECT ` + guestCols + ` FROM guests WHERE event_id=$1 ORDER BY created_at, id`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	rows, err := r.db.Query(ctx, q, uid)
	if err != nil {
		return nil, domain.WrapStore("list guests", err)
	}
	defer rows.Close()

	gs := []*domain.Guest{}
	for rows.Next() {
		g, err := scanGuest(rows)
		if err != nil {
			return nil, domain.WrapStore("list guests", err)
		}
		gs = append(gs, g)
	}
	if err := rows.Err(); err != nil {
		return nil, domain.WrapStore("list guests", err)
	}
	return gs, nil
}

func (r *GuestsRepoImpl) InsertGuest(ctx context.Context, g *domain.Guest) error {
	const q = `INSERT INTO guests (
    id, event_id, name, email, response, number_of_guests,
    additional_guest_names, dietary_restrictions, message, created_at, updated_at
  ) VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`

	if g.ID == "" {
		g.ID = uuid.NewString()
	}
	gid, err := parseID("guest", g.ID)
	if err != nil {
		return err
	}
	eid, err := parseID("event", g.EventID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	_, err = r.db.Exec(ctx, q,
		gid, eid, g.Name, g.Email, string(g.Response), g.NumberOfGuests,
		g.AdditionalGuestNames, g.DietaryRestrictions, g.Message, g.CreatedAt, g.UpdatedAt,
	)
	if isUniqueViolation(err) {
		return &domain.ConflictError{Message: "guest already responded"}
	}
	if err != nil {
		return domain.WrapStore("insert guest", err)
	}
	return nil
}

func (r *GuestsRepoImpl) UpdateGuest(ctx context.Context, g *domain.Guest) error {
	const q = `UPDATE guests SET
    name=$3, email=$4, response=$5, number_of_guests=$6,
    additional_guest_names=$7, dietary_restrictions=$8, message=$9, updated_at=$10
  WHERE id=$1 AND event_id=$2`
	gid, err := parseID("guest", g.ID)
	if err != nil {
		return err
	}
	eid, err := parseID("event", g.EventID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := r.db.Exec(ctx, q, gid, eid,
		g.Name, g.Email, string(g.Response), g.NumberOfGuests,
		g.AdditionalGuestNames, g.DietaryRestrictions, g.Message, g.UpdatedAt,
	)
	if err != nil {
		return domain.WrapStore("update guest", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.NotFound("guest")
	}
	return nil
}

func (r *GuestsRepoImpl) DeleteGuest(ctx context.Context, eventID, guestID string) error {
	eid, err := parseID("event", eventID)
	if err != nil {
		return err
	}
	gid, err := parseID("guest", guestID)
	if err != nil {
		return err
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := r.db.Exec(ctx, `DELETE FROM guests WHERE id=$1 AND event_id=$2`, gid, eid)
	if err != nil {
		return domain.WrapStore("delete guest", err)
	}
	if ct.RowsAffected() == 0 {
		return domain.NotFound("guest")
	}
	return nil
}

func (r *GuestsRepoImpl) DeleteGuestsByEvent(ctx context.Context, eventID string) (int64, error) {
	uid, err := uuid.Parse(eventID)
	if err != nil {
		return 0, nil
	}
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	ct, err := r.db.Exec(ctx, `DELETE FROM guests WHERE event_id=$1`, uid)
	if err != nil {
		return 0, domain.WrapStore("delete guests", err)
	}
	return ct.RowsAffected(), nil
}
