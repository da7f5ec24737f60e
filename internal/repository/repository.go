// Package repository holds the in-memory task and user collections, the
// history recorder and the query engine. Every successful mutation writes a
// full snapshot through a storage.Gateway.
package repository

import (
	"time"

	"go.opentelemetry.io/otel"
)

var tracer = otel.Tracer("github.com/hiroki-koketsu/taskboard/internal/repository")

// Option configures a repository.
type Option func(*options)

type options struct {
	now func() time.Time
}

// WithClock overrides the time source used for timestamps and overdue checks.
func WithClock(now func() time.Time) Option {
	return func(o *options) {
		o.now = now
	}
}

func buildOptions(opts []Option) options {
	o := options{now: time.Now}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}
