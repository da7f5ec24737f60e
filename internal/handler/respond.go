package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hiroki-koketsu/taskboard/internal/model"
	"github.com/hiroki-koketsu/taskboard/internal/telemetry"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/taskboard/internal/handler")

// ErrorResponse is the body of every non-2xx response.
type ErrorResponse struct {
	Error string `json:"error"`
	Kind  string `json:"kind,omitempty"`
}

// base carries what every handler needs to answer and observe a request.
type base struct {
	logger  *slog.Logger
	metrics *telemetry.Metrics
}

// call describes one in-flight request for logging and metrics.
type call struct {
	method string
	route  string
	start  time.Time
}

func newCall(method, route string) call {
	return call{method: method, route: route, start: time.Now()}
}

func (b *base) respondJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if data != nil {
		json.NewEncoder(w).Encode(data)
	}
}

func (b *base) respondError(w http.ResponseWriter, status int, kind, message string) {
	b.respondJSON(w, status, ErrorResponse{Error: message, Kind: kind})
}

// ok writes a successful response and records its metrics.
func (b *base) ok(ctx context.Context, w http.ResponseWriter, c call, status int, data any) {
	if status == http.StatusNoContent {
		w.WriteHeader(status)
	} else {
		b.respondJSON(w, status, data)
	}
	b.recordMetrics(ctx, c, status)
}

// badRequest answers a request that never reached the repository.
func (b *base) badRequest(ctx context.Context, w http.ResponseWriter, c call, message string, err error) {
	b.logger.WarnContext(ctx, message, slog.Any("error", err))
	b.respondError(w, http.StatusBadRequest, string(model.KindValidation), message)
	b.recordMetrics(ctx, c, http.StatusBadRequest)
}

// fail maps a repository error to its HTTP status and writes it.
func (b *base) fail(ctx context.Context, w http.ResponseWriter, c call, err error) {
	span := trace.SpanFromContext(ctx)
	status := statusFor(err)

	var domainErr *model.Error
	if !errors.As(err, &domainErr) {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		b.logger.ErrorContext(ctx, "request failed", slog.String("route", c.route), slog.Any("error", err))
		b.respondError(w, status, "", "internal error")
		b.recordMetrics(ctx, c, status)
		return
	}

	span.SetAttributes(attribute.String("error.kind", string(domainErr.Kind)))
	b.logger.WarnContext(ctx, "request rejected",
		slog.String("route", c.route),
		slog.String("kind", string(domainErr.Kind)),
		slog.String("error", domainErr.Message),
	)
	b.respondError(w, status, string(domainErr.Kind), domainErr.Message)
	b.recordMetrics(ctx, c, status)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, model.ErrTaskNotFound), errors.Is(err, model.ErrUserNotFound):
		return http.StatusNotFound
	case errors.Is(err, model.ErrDuplicateEmail):
		return http.StatusConflict
	case errors.Is(err, model.ErrValidation),
		errors.Is(err, model.ErrInvalidPagination),
		errors.Is(err, model.ErrInvalidIDFormat):
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

func (b *base) recordMetrics(ctx context.Context, c call, status int) {
	duration := time.Since(c.start).Seconds()

	attrs := metric.WithAttributes(
		attribute.String("http.method", c.method),
		attribute.String("http.route", c.route),
		attribute.Int("http.status_code", status),
	)

	b.metrics.RequestCounter.Add(ctx, 1, attrs)
	b.metrics.RequestDuration.Record(ctx, duration, attrs)
}
