package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/hiroki-koketsu/taskboard/internal/repository"
	"github.com/hiroki-koketsu/taskboard/internal/telemetry"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
)

// UserHandler handles HTTP requests for users.
type UserHandler struct {
	base
	repo     *repository.UserRepository
	pageSize int
}

// NewUserHandler creates a new UserHandler.
func NewUserHandler(repo *repository.UserRepository, logger *slog.Logger, metrics *telemetry.Metrics, pageSize int) *UserHandler {
	if pageSize < 1 {
		pageSize = model.DefaultPageSize
	}
	return &UserHandler{
		base:     base{logger: logger, metrics: metrics},
		repo:     repo,
		pageSize: pageSize,
	}
}

// Routes returns the chi router with user routes.
func (h *UserHandler) Routes() chi.Router {
	r := chi.NewRouter()

	r.Get("/", h.List)
	r.Post("/", h.Create)
	r.Get("/{id}", h.GetByID)

	return r
}

// Create registers a new user.
func (h *UserHandler) Create(w http.ResponseWriter, r *http.Request) {
	c := newCall("POST", "/api/v1/users")
	ctx, span := tracer.Start(r.Context(), "UserHandler.Create")
	defer span.End()

	var req model.CreateUserRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		h.badRequest(ctx, w, c, "invalid request body", err)
		return
	}

	user, err := h.repo.Create(ctx, &req)
	if err != nil {
		h.fail(ctx, w, c, err)
		return
	}

	span.SetAttributes(attribute.String("user.id", user.ID))
	h.logger.InfoContext(ctx, "user created", slog.String("id", user.ID))
	h.metrics.RecordMutation(ctx, "user.create")

	h.ok(ctx, w, c, http.StatusCreated, user)
}

// List returns one page of users sorted by name.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	c := newCall("GET", "/api/v1/users")
	ctx, span := tracer.Start(r.Context(), "UserHandler.List")
	defer span.End()

	page, size, err := parsePage(r.URL.Query(), h.pageSize)
	if err != nil {
		h.fail(ctx, w, c, err)
		return
	}

	users, err := h.repo.List(ctx, page, size)
	if err != nil {
		h.fail(ctx, w, c, err)
		return
	}

	h.ok(ctx, w, c, http.StatusOK, users)
}

// GetByID returns a user by ID.
func (h *UserHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	c := newCall("GET", "/api/v1/users/{id}")
	id := chi.URLParam(r, "id")
	ctx, span := tracer.Start(r.Context(), "UserHandler.GetByID",
		trace.WithAttributes(attribute.String("user.id", id)),
	)
	defer span.End()

	user, err := h.repo.GetByID(ctx, id)
	if err != nil {
		h.fail(ctx, w, c, err)
		return
	}

	h.ok(ctx, w, c, http.StatusOK, user)
}
