package users

import (
	"context"
	"errors"
	"log/slog"
	"strings"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"github.com/alexandreseverogh/netimobiliaria/internal/roles"
)

// ErrUserExists indicates a username or email collision.
var ErrUserExists = errors.New("users: username or email already taken")

// ErrInvalidInput indicates the payload failed validation.
var ErrInvalidInput = errors.New("users: invalid input")

// RolePort exposes the role lookups the service needs.
type RolePort interface {
	GetRole(ctx context.Context, id int64) (roles.Role, error)
}

// Service handles user business logic.
type Service struct {
	logger    *slog.Logger
	repo      RepositoryPort
	rolesRepo RolePort
	validator *validator.Validate
}

// NewService builds Service instance.
func NewService(logger *slog.Logger, repo RepositoryPort, rolesRepo RolePort) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		logger:    logger,
		repo:      repo,
		rolesRepo: rolesRepo,
		validator: validator.New(),
	}
}

// CreateUserInput is the payload for CreateUser.
type CreateUserInput struct {
	Username string `validate:"required,min=3,max=50"`
	Email    string `validate:"required,email"`
	Nome     string `validate:"required,min=2,max=100"`
	Telefone string `validate:"omitempty,max=20"`
	Password string `validate:"required,min=8"`
	RoleID   int64  `validate:"required,gt=0"`
}

// CreateUser registers a new account with its initial role. When the
// role demands elevated verification the account is created with the
// flag already enabled.
func (s *Service) CreateUser(ctx context.Context, input CreateUserInput, createdBy string) (*User, error) {
	input.Username = strings.TrimSpace(input.Username)
	input.Email = strings.TrimSpace(strings.ToLower(input.Email))
	input.Nome = strings.TrimSpace(input.Nome)
	if err := s.validator.Struct(input); err != nil {
		return nil, errors.Join(ErrInvalidInput, err)
	}

	if existing, err := s.repo.FindByUsername(ctx, input.Username); err == nil && existing != nil {
		return nil, ErrUserExists
	}

	role, err := s.rolesRepo.GetRole(ctx, input.RoleID)
	if err != nil {
		return nil, err
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}

	user := User{
		ID:           uuid.NewString(),
		Username:     input.Username,
		Email:        input.Email,
		Nome:         input.Nome,
		Telefone:     input.Telefone,
		PasswordHash: string(hash),
		Ativo:        true,
		TwoFAEnabled: role.RequiresTwoFA,
		RoleID:       role.ID,
		RoleName:     role.Name,
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.InsertUser(ctx, user); err != nil {
			return err
		}
		return tx.InsertAssignment(ctx, user.ID, role.ID, createdBy)
	})
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ReassignRole replaces the user's current role with roleID in one
// transaction: the old assignment is removed and the new one inserted
// so the user never holds two roles. When the target role demands
// elevated verification the user's flag is switched on; it is never
// switched off here, even when moving to a role without the demand.
func (s *Service) ReassignRole(ctx context.Context, userID string, roleID int64, assignedBy string) (*User, error) {
	user, err := s.repo.GetUser(ctx, userID)
	if err != nil {
		return nil, err
	}
	role, err := s.rolesRepo.GetRole(ctx, roleID)
	if err != nil {
		return nil, err
	}

	err = s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.DeleteAssignments(ctx, userID); err != nil {
			return err
		}
		if err := tx.InsertAssignment(ctx, userID, roleID, assignedBy); err != nil {
			return err
		}
		if role.RequiresTwoFA && !user.TwoFAEnabled {
			return tx.SetTwoFAEnabled(ctx, userID)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	user.RoleID = role.ID
	user.RoleName = role.Name
	if role.RequiresTwoFA {
		user.TwoFAEnabled = true
	}
	return user, nil
}

// GetUser returns a single user.
func (s *Service) GetUser(ctx context.Context, id string) (*User, error) {
	return s.repo.GetUser(ctx, id)
}

// ListUsers returns all users with their role names.
func (s *Service) ListUsers(ctx context.Context) ([]User, error) {
	return s.repo.ListUsersWithRoles(ctx)
}

// Deactivate soft-deletes the account. Resolution treats inactive
// accounts as having no permissions.
func (s *Service) Deactivate(ctx context.Context, id string) error {
	return s.repo.SetAtivo(ctx, id, false)
}

// Reactivate restores a soft-deleted account.
func (s *Service) Reactivate(ctx context.Context, id string) error {
	return s.repo.SetAtivo(ctx, id, true)
}

// Delete removes the account permanently. The audit trail and the
// role assignment are purged in the same transaction so a failure
// leaves everything in place.
func (s *Service) Delete(ctx context.Context, id string) error {
	if _, err := s.repo.GetUser(ctx, id); err != nil {
		return err
	}
	return s.repo.WithTx(ctx, func(ctx context.Context, tx TxRepository) error {
		if err := tx.PurgeAuditTrail(ctx, id); err != nil {
			return err
		}
		if err := tx.DeleteAssignments(ctx, id); err != nil {
			return err
		}
		return tx.DeleteUser(ctx, id)
	})
}
