package auth

import (
	"context"

	"golang.org/x/crypto/bcrypt"

	"github.com/alexandreseverogh/netimobiliaria/internal/shared"
	"github.com/alexandreseverogh/netimobiliaria/internal/users"
)

// UserPort exposes the account lookups the service needs.
type UserPort interface {
	FindByUsername(ctx context.Context, username string) (*users.User, error)
	TouchLastLogin(ctx context.Context, id string) error
}

// Service wraps authentication business rules.
type Service struct {
	repo UserPort
}

// NewService constructs a new Service.
func NewService(repo UserPort) *Service {
	return &Service{repo: repo}
}

// Authenticate validates username/password credentials. Inactive
// accounts are rejected with the same error as a wrong password.
func (s *Service) Authenticate(ctx context.Context, username, password string) (*users.User, error) {
	user, err := s.repo.FindByUsername(ctx, username)
	if err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	if !user.Ativo {
		return nil, shared.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)); err != nil {
		return nil, shared.ErrInvalidCredentials
	}
	return user, nil
}

// StampLogin records the successful login time.
func (s *Service) StampLogin(ctx context.Context, userID string) error {
	return s.repo.TouchLastLogin(ctx, userID)
}
