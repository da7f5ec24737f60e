package handler

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
)

// NewRouter mounts the task and user routes under /api/v1 behind the
// standard middleware stack.
func NewRouter(tasks *TaskHandler, users *UserHandler) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middleware.CleanPath)
	r.Use(middleware.Timeout(60 * time.Second))

	r.Get("/health", tasks.Health)

	r.Route("/api/v1", func(r chi.Router) {
		r.Mount("/tasks", tasks.Routes())
		r.Mount("/users", users.Routes())
	})

	return r
}
