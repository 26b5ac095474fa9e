package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/vovakirdan/wirechat-client/internal/store"
	"github.com/vovakirdan/wirechat-client/internal/utils"
)

// ErrInvalidToken is returned when a session token does not verify.
var ErrInvalidToken = errors.New("invalid token")

// Service issues and resolves session tokens.
type Service struct {
	store     store.UserStore
	jwtConfig *JWTConfig
}

// NewService creates a new authentication service.
func NewService(userStore store.UserStore, jwtConfig *JWTConfig) *Service {
	return &Service{
		store:     userStore,
		jwtConfig: jwtConfig,
	}
}

// CreateGuestUser creates a user with a fresh id and returns its token.
func (s *Service) CreateGuestUser(ctx context.Context) (string, *store.User, error) {
	user, err := s.store.CreateUser(ctx, utils.NewID())
	if err != nil {
		return "", nil, fmt.Errorf("create guest user: %w", err)
	}

	token, err := GenerateToken(s.jwtConfig, user.ID, true)
	if err != nil {
		return "", nil, fmt.Errorf("generate token: %w", err)
	}
	return token, user, nil
}

// Authenticate resolves a token to its user. A valid token whose user is
// missing (the dev database was wiped) gets the user recreated.
func (s *Service) Authenticate(ctx context.Context, token string) (*store.User, error) {
	claims, err := s.ValidateToken(token)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	user, err := s.store.GetUser(ctx, claims.UserID)
	if errors.Is(err, store.ErrNotFound) {
		user, err = s.store.CreateUser(ctx, claims.UserID)
	}
	if err != nil {
		return nil, fmt.Errorf("load user: %w", err)
	}
	return user, nil
}

// ValidateToken validates a JWT token and returns the claims.
func (s *Service) ValidateToken(tokenString string) (*Claims, error) {
	return ValidateToken(s.jwtConfig, tokenString)
}
