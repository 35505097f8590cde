package postgres

import (
	"context"
	"errors"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/rsvp-events/internal/domain"
	"github.com/diagnosis/rsvp-events/internal/repo"
)

type UsersRepoImpl struct{ db querier }

func NewUsersRepo(pool *pgxpool.Pool) *UsersRepoImpl { return &UsersRepoImpl{db: pool} }

var _ repo.UserRepo = (*UsersRepoImpl)(nil)

const userCols = `id, name, email, image, COALESCE(password_hash, ''), created_at, updated_at`

func scanUser(row pgx.Row) (*domain.User, error) {
	var u domain.User
	if err := row.Scan(&u.ID, &u.Name, &u.Email, &u.Image, &u.PasswordHash, &u.CreatedAt, &u.UpdatedAt); err != nil {
		return nil, err
	}
	return &u, nil
}

// EnsureUser keeps existing profile fields when the session carries blanks.
func (r *UsersRepoImpl) EnsureUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	const q = `
INSERT INTO users (id, name, email, image)
VALUES ($1,$2,$3,$4)
ON CONFLICT (id) DO UPDATE SET
  name       = COALESCE(NULLIF(EXCLUDED.name, ''), users.name),
  email      = COALESCE(NULLIF(EXCLUDED.email, ''), users.email),
  image      = COALESCE(EXCLUDED.image, users.image),
  updated_at = now()
RETURNING ` + userCols
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	out, err := scanUser(r.db.QueryRow(ctx, q, u.ID, u.Name, u.Email, u.Image))
	if err != nil {
		return nil, domain.WrapStore("ensure user", err)
	}
	return out, nil
}

func (r *UsersRepoImpl) CreateUser(ctx context.Context, u *domain.User) error {
	const q = `
INSERT INTO users (id, name, email, image, password_hash)
VALUES ($1,$2,$3,$4,NULLIF($5, ''))
RETURNING created_at, updated_at`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	err := r.db.QueryRow(ctx, q, u.ID, u.Name, u.Email, u.Image, u.PasswordHash).Scan(&u.CreatedAt, &u.UpdatedAt)
	if isUniqueViolation(err) {
		return &domain.ConflictError{Message: "email already registered"}
	}
	if err != nil {
		return domain.WrapStore("create user", err)
	}
	return nil
}

func (r *UsersRepoImpl) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE id=$1`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	u, err := scanUser(r.db.QueryRow(ctx, q, id))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("user")
	}
	if err != nil {
		return nil, domain.WrapStore("find user", err)
	}
	return u, nil
}

// FindUserByEmail only matches credentials accounts.
func (r *UsersRepoImpl) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	const q = `SELECT ` + userCols + ` FROM users WHERE lower(email)=lower($1) AND password_hash IS NOT NULL`
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()

	u, err := scanUser(r.db.QueryRow(ctx, q, email))
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, domain.NotFound("user")
	}
	if err != nil {
		return nil, domain.WrapStore("find user", err)
	}
	return u, nil
}
