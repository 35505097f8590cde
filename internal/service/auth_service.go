package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/alexedwards/argon2id"
	"github.com/google/uuid"

	"github.com/diagnosis/rsvp-events/internal/domain"
	"github.com/diagnosis/rsvp-events/internal/repo"
	"github.com/diagnosis/rsvp-events/pkg/auth"
	"github.com/diagnosis/rsvp-events/pkg/config"
	"github.com/diagnosis/rsvp-events/pkg/logger"
)

type AuthService interface {
	Register(ctx context.Context, req *domain.RegisterRequest) (*domain.SessionResponse, error)
	Login(ctx context.Context, req *domain.LoginRequest) (*domain.SessionResponse, error)
	Me(ctx context.Context, userID string) (*domain.User, error)
	// ParseSession validates a bearer token.
	ParseSession(token string) (*auth.Claims, error)
	// EnsureUser creates or refreshes the account behind a valid session.
	EnsureUser(ctx context.Context, claims *auth.Claims) (*domain.User, error)
}

type authService struct {
	users  repo.UserRepo
	config config.AuthConfig
}

func NewAuthService(users repo.UserRepo, cfg config.AuthConfig) AuthService {
	return &authService{users: users, config: cfg}
}

func (s *authService) Register(ctx context.Context, req *domain.RegisterRequest) (*domain.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	hash, err := argon2id.CreateHash(req.Password, argon2id.DefaultParams)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	u := &domain.User{
		ID:           uuid.NewString(),
		Name:         req.Name,
		Email:        req.Email,
		PasswordHash: hash,
	}
	if err := s.users.CreateUser(ctx, u); err != nil {
		return nil, err
	}

	logger.InfoContext(logger.WithUserID(ctx, u.ID), "User registered")
	return s.session(u)
}

func (s *authService) Login(ctx context.Context, req *domain.LoginRequest) (*domain.SessionResponse, error) {
	if err := req.Validate(); err != nil {
		return nil, err
	}

	u, err := s.users.FindUserByEmail(ctx, req.Email)
	if errors.Is(err, domain.ErrNotFound) {
		return nil, domain.Unauthorized("invalid credentials")
	}
	if err != nil {
		return nil, err
	}

	ok, err := argon2id.ComparePasswordAndHash(req.Password, u.PasswordHash)
	if err != nil {
		return nil, fmt.Errorf("failed to verify password: %w", err)
	}
	if !ok {
		return nil, domain.Unauthorized("invalid credentials")
	}
	return s.session(u)
}

func (s *authService) Me(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, domain.Unauthorized("authentication required")
	}
	return s.users.FindUserByID(ctx, userID)
}

func (s *authService) ParseSession(token string) (*auth.Claims, error) {
	return auth.Parse(token, s.config.JWTSecret)
}

func (s *authService) EnsureUser(ctx context.Context, claims *auth.Claims) (*domain.User, error) {
	return s.users.EnsureUser(ctx, &domain.User{
		ID:    claims.UserID(),
		Name:  claims.Name,
		Email: claims.Email,
	})
}

func (s *authService) session(u *domain.User) (*domain.SessionResponse, error) {
	token, err := auth.NewSessionToken(u.ID, u.Email, u.Name, s.config.Issuer, s.config.JWTSecret, s.config.SessionTTL)
	if err != nil {
		return nil, fmt.Errorf("failed to create session token: %w", err)
	}
	return &domain.SessionResponse{
		Token:     token,
		ExpiresIn: int64(s.config.SessionTTL.Seconds()),
		User:      u,
	}, nil
}
