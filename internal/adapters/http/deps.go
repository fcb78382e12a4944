package http

import (
	"context"
	"time"

	"github.com/nats-io/nats.go"

	"github.com/samirrijal/rentalscope/internal/core/usecases"
)

// Pinger is a backing service that can report its health.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Listings *usecases.ListingService
	Jobs     *usecases.JobService
	NATS     *nats.Conn
	DB       Pinger
	JobStore Pinger

	// CallTimeout is used when a request does not carry timeout_ms.
	CallTimeout time.Duration
	// PipelineTimeout bounds a whole synchronous listings lookup.
	PipelineTimeout time.Duration
	// OpenAPIPath is served at /docs/openapi.yaml.
	OpenAPIPath string
}

func (d *Dependencies) callTimeout() time.Duration {
	if d.CallTimeout > 0 {
		return d.CallTimeout
	}
	return 15 * time.Second
}

func (d *Dependencies) pipelineTimeout() time.Duration {
	if d.PipelineTimeout > 0 {
		return d.PipelineTimeout
	}
	return 2 * time.Minute
}

func (d *Dependencies) openAPIPath() string {
	if d.OpenAPIPath != "" {
		return d.OpenAPIPath
	}
	return "api/openapi.yaml"
}
