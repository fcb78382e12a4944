package workflows

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.temporal.io/sdk/activity"
	"go.temporal.io/sdk/temporal"

	"github.com/samirrijal/rentalscope/internal/core/domain"
	"github.com/samirrijal/rentalscope/internal/core/usecases"
)

// ListingsActivities holds the activity implementations for the listings
// workflow.
type ListingsActivities struct {
	Listings *usecases.ListingService
	Jobs     *usecases.JobService
}

// MarkJobRunning moves the job to running.
func (a *ListingsActivities) MarkJobRunning(ctx context.Context, jobID string) error {
	if _, err := a.Jobs.MarkRunning(ctx, jobID); err != nil {
		if errors.Is(err, domain.ErrNotFound) {
			return temporal.NewNonRetryableApplicationError(err.Error(), "JobNotFound", err)
		}
		return err
	}
	return nil
}

// FindListings runs the full lookup. Failures are returned as application
// errors typed with the pipeline error kind; only transient kinds are
// retried by Temporal.
func (a *ListingsActivities) FindListings(ctx context.Context, address string, timeoutMs int64) (*domain.ListingsReport, error) {
	activity.GetLogger(ctx).Info("finding listings", "address", address)

	report, err := a.Listings.FindListings(ctx, address, time.Duration(timeoutMs)*time.Millisecond)
	if err == nil {
		return report, nil
	}

	kind := string(domain.KindOf(err))
	if kind == "" {
		return nil, fmt.Errorf("find listings: %w", err)
	}
	if domain.IsTransient(err) {
		return nil, temporal.NewApplicationError(err.Error(), kind, err)
	}
	return nil, temporal.NewNonRetryableApplicationError(err.Error(), kind, err)
}

// CompleteJob records the run outcome on the job.
func (a *ListingsActivities) CompleteJob(ctx context.Context, outcome Outcome) error {
	var runErr error
	if outcome.Error != "" || outcome.ErrorKind != "" {
		runErr = &domain.AppError{Kind: outcome.ErrorKind, Message: outcome.Error}
		if outcome.ErrorKind == "" {
			runErr = errors.New(outcome.Error)
		}
	}
	if _, err := a.Jobs.Complete(ctx, outcome.JobID, outcome.Report, runErr); err != nil {
		return fmt.Errorf("complete job %s: %w", outcome.JobID, err)
	}
	return nil
}
