package postgres

import (
	"context"
	"errors"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"

	"github.com/diagnosis/rsvp-events/internal/domain"
	"github.com/diagnosis/rsvp-events/internal/repo"
)

const queryTimeout = 3 * time.Second

// querier is satisfied by both *pgxpool.Pool and pgx.Tx.
type querier interface {
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
}

// Store is the Postgres implementation of repo.Store.
type Store struct {
	*EventsRepoImpl
	*GuestsRepoImpl
	*UsersRepoImpl
	pool *pgxpool.Pool
}

func NewStore(pool *pgxpool.Pool) *Store {
	return &Store{
		EventsRepoImpl: NewEventsRepo(pool),
		GuestsRepoImpl: NewGuestsRepo(pool),
		UsersRepoImpl:  NewUsersRepo(pool),
		pool:           pool,
	}
}

var _ repo.Store = (*Store)(nil)

type txStore struct {
	*EventsRepoImpl
	*GuestsRepoImpl
}

var _ repo.Tx = (*txStore)(nil)

func (s *Store) WithinTx(ctx context.Context, fn func(tx repo.Tx) error) error {
	tx, err := s.pool.BeginTx(ctx, pgx.TxOptions{IsoLevel: pgx.ReadCommitted})
	if err != nil {
		return domain.WrapStore("begin", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	if err := fn(&txStore{EventsRepoImpl: &EventsRepoImpl{db: tx}, GuestsRepoImpl: &GuestsRepoImpl{db: tx}}); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return domain.WrapStore("commit", err)
	}
	return nil
}

func (s *Store) Ping(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, queryTimeout)
	defer cancel()
	return s.pool.Ping(ctx)
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
