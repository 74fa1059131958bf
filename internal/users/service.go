package users

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/crypto/bcrypt"

	"github.com/tokoberas/tokoberas/internal/shared"
)

// RepositoryPort abstracts repository usage for the service.
type RepositoryPort interface {
	Insert(ctx context.Context, u User) (int64, error)
	Get(ctx context.Context, id int64) (User, error)
	GetByEmail(ctx context.Context, email string) (User, error)
	List(ctx context.Context, filter ListFilter) ([]User, int, error)
	Update(ctx context.Context, u User) error
}

// RoleAssigner grants and revokes roles.
type RoleAssigner interface {
	AssignRole(ctx context.Context, userID int64, roleName string) error
	RevokeRole(ctx context.Context, userID int64, roleName string) error
	RolesForUser(ctx context.Context, userID int64) ([]string, error)
}

// AuditPort abstracts audit logging functionality.
type AuditPort interface {
	Record(ctx context.Context, log shared.AuditLog) error
}

// Service owns account management.
type Service struct {
	repo   RepositoryPort
	roles  RoleAssigner
	audit  AuditPort
	logger *slog.Logger
}

// NewService builds Service.
func NewService(repo RepositoryPort, roles RoleAssigner, audit AuditPort, logger *slog.Logger) *Service {
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, roles: roles, audit: audit, logger: logger}
}

// Create registers an account and grants its initial roles.
func (s *Service) Create(ctx context.Context, input CreateInput) (User, error) {
	if len(input.Password) < 8 {
		return User{}, ErrWeakPassword
	}
	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return User{}, err
	}
	now := time.Now().UTC()
	u := User{
		Email:        input.Email,
		FullName:     input.FullName,
		Phone:        input.Phone,
		IsActive:     true,
		PasswordHash: string(hash),
		CreatedAt:    now,
		UpdatedAt:    now,
	}
	id, err := s.repo.Insert(ctx, u)
	if err != nil {
		return User{}, err
	}
	u.ID = id

	for _, role := range input.Roles {
		if err := s.roles.AssignRole(ctx, id, role); err != nil {
			s.logger.Warn("assign role", slog.Int64("user_id", id), slog.String("role", role), slog.Any("error", err))
		}
	}
	s.auditUser(ctx, input.ActorID, "users:create", id, map[string]any{"email": u.Email})
	return u, nil
}

// Get returns one account.
func (s *Service) Get(ctx context.Context, id int64) (User, error) {
	return s.repo.Get(ctx, id)
}

// List returns accounts matching the filter.
func (s *Service) List(ctx context.Context, filter ListFilter) ([]User, int, error) {
	return s.repo.List(ctx, filter)
}

// Roles returns the role names held by an account.
func (s *Service) Roles(ctx context.Context, id int64) ([]string, error) {
	return s.roles.RolesForUser(ctx, id)
}

// Update changes account fields.
func (s *Service) Update(ctx context.Context, id int64, input UpdateInput) (User, error) {
	u, err := s.repo.Get(ctx, id)
	if err != nil {
		return User{}, err
	}
	if input.FullName != nil {
		u.FullName = *input.FullName
	}
	if input.Phone != nil {
		u.Phone = *input.Phone
	}
	if input.IsActive != nil {
		u.IsActive = *input.IsActive
	}
	if input.Password != nil {
		if len(*input.Password) < 8 {
			return User{}, ErrWeakPassword
		}
		hash, err := bcrypt.GenerateFromPassword([]byte(*input.Password), bcrypt.DefaultCost)
		if err != nil {
			return User{}, err
		}
		u.PasswordHash = string(hash)
	}
	if err := s.repo.Update(ctx, u); err != nil {
		return User{}, err
	}
	s.auditUser(ctx, input.ActorID, "users:update", id, nil)
	return u, nil
}

// AssignRole grants a role to an account.
func (s *Service) AssignRole(ctx context.Context, userID int64, role string, actorID int64) error {
	if _, err := s.repo.Get(ctx, userID); err != nil {
		return err
	}
	if err := s.roles.AssignRole(ctx, userID, role); err != nil {
		return err
	}
	s.auditUser(ctx, actorID, "users:assign_role", userID, map[string]any{"role": role})
	return nil
}

// RevokeRole removes a role from an account.
func (s *Service) RevokeRole(ctx context.Context, userID int64, role string, actorID int64) error {
	if err := s.roles.RevokeRole(ctx, userID, role); err != nil {
		return err
	}
	s.auditUser(ctx, actorID, "users:revoke_role", userID, map[string]any{"role": role})
	return nil
}

func (s *Service) auditUser(ctx context.Context, actorID int64, action string, userID int64, meta map[string]any) {
	if s.audit == nil {
		return
	}
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  actorID,
		Action:   action,
		Entity:   "user",
		EntityID: fmt.Sprintf("%d", userID),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit user", slog.Int64("user_id", userID), slog.Any("error", err))
	}
}
