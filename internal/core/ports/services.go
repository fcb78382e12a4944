package ports

import (
	"context"
	"time"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// Geocoder resolves a free-text address to a coordinate.
type Geocoder interface {
	ForwardGeocode(ctx context.Context, address string, timeout time.Duration) (domain.GeoPoint, error)
}

// RentalSearch returns the listing ids visible in a viewport. An empty,
// non-error result means the viewport held no listings.
type RentalSearch interface {
	FindListingIDs(ctx context.Context, flags domain.ResolvedSearchFlags, timeout time.Duration) ([]string, error)
}

// DetailFetcher fetches one listing's detail payload. Retries are safe.
type DetailFetcher interface {
	Fetch(ctx context.Context, listingID string, timeout time.Duration) (*domain.DerivedRecord, error)
}

// EventPublisher publishes domain events to a message broker.
type EventPublisher interface {
	PublishListingsFetched(ctx context.Context, report *domain.ListingsReport) error
	PublishJobUpdate(ctx context.Context, job *domain.Job) error
}

// EventSubscriber subscribes to domain events from a message broker.
type EventSubscriber interface {
	SubscribeListingsFetched(ctx context.Context, handler func(ctx context.Context, report *domain.ListingsReport) error) error
}

// JobRunner schedules the asynchronous execution of a listings job.
type JobRunner interface {
	Start(ctx context.Context, job *domain.Job) error
}
