package repository

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/hiroki-koketsu/taskboard/internal/storage"
	"github.com/hiroki-koketsu/taskboard/internal/validation"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/text/cases"
	"golang.org/x/text/language"
)

// UserRepository is the user directory.
type UserRepository struct {
	mu      sync.RWMutex
	users   []model.User
	gateway storage.Gateway
	logger  *slog.Logger
	now     func() time.Time
}

// NewUserRepository creates an empty UserRepository. Call Load to read the
// persisted snapshot.
func NewUserRepository(gateway storage.Gateway, logger *slog.Logger, opts ...Option) *UserRepository {
	o := buildOptions(opts)
	return &UserRepository{
		gateway: gateway,
		logger:  logger,
		now:     o.now,
	}
}

// Load replaces the in-memory users with the persisted snapshot.
func (r *UserRepository) Load(ctx context.Context) error {
	users, err := r.gateway.LoadUsers(ctx)
	if err != nil {
		return fmt.Errorf("load users: %w", err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.users = users
	r.logger.InfoContext(ctx, "users loaded", slog.Int("count", len(users)))
	return nil
}

// Create validates and registers a new user. Emails are unique regardless of
// case.
func (r *UserRepository) Create(ctx context.Context, req *model.CreateUserRequest) (*model.User, error) {
	ctx, span := tracer.Start(ctx, "UserRepository.Create")
	defer span.End()

	name, err := validation.UserName(req.Name)
	if err != nil {
		return nil, err
	}
	email, err := validation.Email(req.Email)
	if err != nil {
		return nil, err
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	for _, u := range r.users {
		if strings.EqualFold(u.Email, email) {
			span.SetAttributes(attribute.Bool("user.duplicate_email", true))
			return nil, model.NewError(model.KindDuplicateEmail, "email %s already in use", email)
		}
	}

	user := model.User{
		ID:        uuid.New().String(),
		Name:      name,
		Email:     email,
		CreatedAt: r.now().UTC(),
	}
	r.users = append(r.users, user)
	r.persist(ctx)

	span.SetAttributes(attribute.String("user.id", user.ID))
	return &user, nil
}

// GetByID retrieves a user by exact id.
func (r *UserRepository) GetByID(ctx context.Context, id string) (*model.User, error) {
	_, span := tracer.Start(ctx, "UserRepository.GetByID",
		trace.WithAttributes(attribute.String("user.id", id)),
	)
	defer span.End()

	r.mu.RLock()
	defer r.mu.RUnlock()

	for _, u := range r.users {
		if u.ID == id {
			span.SetAttributes(attribute.Bool("user.found", true))
			return &u, nil
		}
	}
	span.SetAttributes(attribute.Bool("user.found", false))
	return nil, model.NewError(model.KindUserNotFound, "user %s not found", id)
}

// Exists reports whether a user with id is registered.
func (r *UserRepository) Exists(id string) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.ContainsFunc(r.users, func(u model.User) bool { return u.ID == id })
}

// List returns users ordered by name, case-insensitively, one page at a time.
func (r *UserRepository) List(ctx context.Context, page, size int) (*model.Page[model.User], error) {
	_, span := tracer.Start(ctx, "UserRepository.List")
	defer span.End()

	if err := model.ValidatePagination(page, size); err != nil {
		return nil, err
	}

	r.mu.RLock()
	sorted := slices.Clone(r.users)
	r.mu.RUnlock()

	lower := cases.Lower(language.Und)
	slices.SortStableFunc(sorted, func(a, b model.User) int {
		return strings.Compare(lower.String(a.Name), lower.String(b.Name))
	})

	span.SetAttributes(attribute.Int("user.count", len(sorted)))
	return model.Paginate(sorted, page, size)
}

// Count returns the current number of users.
func (r *UserRepository) Count() int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return int64(len(r.users))
}

// persist must be called with the write lock held. Failures are logged and
// swallowed; the in-memory state stays authoritative.
func (r *UserRepository) persist(ctx context.Context) {
	if err := r.gateway.SaveUsers(ctx, slices.Clone(r.users)); err != nil {
		r.logger.WarnContext(ctx, "failed to save users", slog.Any("error", err))
	}
}
