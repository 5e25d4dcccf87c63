package users

import (
	"context"
	"log/slog"
	"strconv"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/kuma-mall/kuma-admin/internal/shared"
)

// Service handles user business logic.
type Service struct {
	repo       RepositoryPort
	audit      shared.AuditPort
	logger     *slog.Logger
	bcryptCost int
}

// NewService builds Service instance. audit and logger may be nil.
func NewService(repo RepositoryPort, audit shared.AuditPort, logger *slog.Logger) *Service {
	if audit == nil {
		audit = shared.NopAudit{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{repo: repo, audit: audit, logger: logger, bcryptCost: bcrypt.DefaultCost}
}

// ListUsers returns a page of users.
func (s *Service) ListUsers(ctx context.Context, filters shared.ListFilters) ([]User, shared.Pagination, error) {
	filters.Page, filters.Limit = shared.NormalizePage(filters.Page, filters.Limit)
	users, total, err := s.repo.ListUsers(ctx, filters)
	if err != nil {
		return nil, shared.Pagination{}, err
	}
	return users, shared.NewPagination(filters.Page, filters.Limit, total), nil
}

// CreateUser registers an admin with a bcrypt hashed password.
func (s *Service) CreateUser(ctx context.Context, in CreateInput) (User, error) {
	hash, err := s.hash(in.Password)
	if err != nil {
		return User{}, err
	}
	user := User{
		Email: strings.ToLower(strings.TrimSpace(in.Email)),
		Name:  strings.TrimSpace(in.Name),
	}
	created, err := s.repo.CreateUser(ctx, user, hash)
	if err != nil {
		return User{}, err
	}
	s.record(ctx, "user.create", created.ID, map[string]any{"email": created.Email})
	return created, nil
}

// SetActive activates or deactivates an account. Admins cannot deactivate
// themselves.
func (s *Service) SetActive(ctx context.Context, id int64, active bool) (User, error) {
	if id <= 0 {
		return User{}, ErrNotFound
	}
	if !active && shared.ActorID(ctx) == id {
		return User{}, ErrSelfDeactivate
	}
	user, err := s.repo.SetActive(ctx, id, active)
	if err != nil {
		return User{}, err
	}
	action := "user.deactivate"
	if active {
		action = "user.activate"
	}
	s.record(ctx, action, id, nil)
	return user, nil
}

// ChangePassword replaces the account password.
func (s *Service) ChangePassword(ctx context.Context, id int64, in PasswordInput) error {
	if id <= 0 {
		return ErrNotFound
	}
	hash, err := s.hash(in.Password)
	if err != nil {
		return err
	}
	if err := s.repo.UpdatePassword(ctx, id, hash); err != nil {
		return err
	}
	s.record(ctx, "user.password", id, nil)
	return nil
}

func (s *Service) hash(password string) (string, error) {
	if len(password) < 8 || len(password) > 72 {
		return "", ErrWeakPassword
	}
	hashed, err := bcrypt.GenerateFromPassword([]byte(password), s.bcryptCost)
	if err != nil {
		return "", err
	}
	return string(hashed), nil
}

func (s *Service) record(ctx context.Context, action string, id int64, meta map[string]any) {
	err := s.audit.Record(ctx, shared.AuditLog{
		ActorID:  shared.ActorID(ctx),
		Action:   action,
		Entity:   "user",
		EntityID: strconv.FormatInt(id, 10),
		Meta:     meta,
	})
	if err != nil {
		s.logger.Warn("audit user", slog.String("action", action), slog.Any("error", err))
	}
}
