package ports

import (
	"context"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// ListingRepository persists fetched listings and the searches that found them.
type ListingRepository interface {
	SaveReport(ctx context.Context, report *domain.ListingsReport) error
	List(ctx context.Context, offset, limit int) ([]domain.ListingSummary, int, error)
	GetByID(ctx context.Context, listingID string) (*domain.ListingSummary, error)
}

// JobStore keeps asynchronous job state. Get returns domain.ErrNotFound for
// unknown or expired ids.
type JobStore interface {
	Save(ctx context.Context, job *domain.Job) error
	Get(ctx context.Context, id string) (*domain.Job, error)
}
