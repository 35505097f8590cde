package memory

import (
	"context"
	"strings"

	"github.com/diagnosis/rsvp-events/internal/domain"
)

func (s *Store) EnsureUser(ctx context.Context, u *domain.User) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := s.now().UTC()
	cur, ok := s.users[u.ID]
	if !ok {
		next := cloneUser(u)
		next.CreatedAt, next.UpdatedAt = now, now
		s.users[u.ID] = next
		return cloneUser(next), nil
	}
	if u.Name != "" {
		cur.Name = u.Name
	}
	if u.Email != "" {
		cur.Email = u.Email
	}
	if u.Image != nil {
		cur.Image = u.Image
	}
	cur.UpdatedAt = now
	return cloneUser(cur), nil
}

func (s *Store) CreateUser(ctx context.Context, u *domain.User) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.users[u.ID]; ok {
		return &domain.ConflictError{Message: "user already exists"}
	}
	if u.PasswordHash != "" {
		for _, other := range s.users {
			if other.PasswordHash != "" && strings.EqualFold(other.Email, u.Email) {
				return &domain.ConflictError{Message: "email already registered"}
			}
		}
	}
	now := s.now().UTC()
	u.CreatedAt, u.UpdatedAt = now, now
	s.users[u.ID] = cloneUser(u)
	return nil
}

func (s *Store) FindUserByID(ctx context.Context, id string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	u, ok := s.users[id]
	if !ok {
		return nil, domain.NotFound("user")
	}
	return cloneUser(u), nil
}

// FindUserByEmail only matches credentials accounts.
func (s *Store) FindUserByEmail(ctx context.Context, email string) (*domain.User, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, u := range s.users {
		if u.PasswordHash != "" && strings.EqualFold(u.Email, email) {
			return cloneUser(u), nil
		}
	}
	return nil, domain.NotFound("user")
}
