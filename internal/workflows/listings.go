package workflows

import (
	"errors"
	"time"

	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/workflow"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// TaskQueue is the default Temporal task queue for listings jobs.
const TaskQueue = "rentalscope-listings"

// ListingsInput is the input for the listings workflow.
type ListingsInput struct {
	JobID     string
	Address   string
	TimeoutMs int64
}

// Outcome is what CompleteJob records for a finished run.
type Outcome struct {
	JobID     string
	Report    *domain.ListingsReport
	ErrorKind domain.ErrorKind
	Error     string
}

// ListingsWorkflow marks the job running, runs the lookup and records the
// result. A failed lookup is still recorded on the job before the workflow
// returns the error.
func ListingsWorkflow(ctx workflow.Context, input ListingsInput) error {
	logger := workflow.GetLogger(ctx)
	logger.Info("Starting listings workflow", "jobID", input.JobID)

	bookkeeping := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 30 * time.Second,
		RetryPolicy: &temporal.RetryPolicy{
			MaximumAttempts: 5,
		},
	})
	// The lookup retries transient detail failures itself.
	lookup := workflow.WithActivityOptions(ctx, workflow.ActivityOptions{
		StartToCloseTimeout: 5 * time.Minute,
		RetryPolicy: &temporal.RetryPolicy{
			InitialInterval: 5 * time.Second,
			MaximumAttempts: 2,
		},
	})

	if err := workflow.ExecuteActivity(bookkeeping, "MarkJobRunning", input.JobID).Get(ctx, nil); err != nil {
		return err
	}

	var report domain.ListingsReport
	runErr := workflow.ExecuteActivity(lookup, "FindListings", input.Address, input.TimeoutMs).Get(ctx, &report)

	outcome := Outcome{JobID: input.JobID}
	if runErr != nil {
		logger.Warn("listings lookup failed", "jobID", input.JobID, "error", runErr)
		outcome.ErrorKind, outcome.Error = describe(runErr)
	} else {
		outcome.Report = &report
	}

	if err := workflow.ExecuteActivity(bookkeeping, "CompleteJob", outcome).Get(ctx, nil); err != nil {
		return err
	}
	if runErr != nil {
		return runErr
	}
	logger.Info("Listings workflow finished", "jobID", input.JobID, "listings", len(report.Listings))
	return nil
}

// describe recovers the pipeline error kind and message carried by an
// activity failure.
func describe(err error) (domain.ErrorKind, string) {
	var appErr *temporal.ApplicationError
	if errors.As(err, &appErr) {
		return domain.ErrorKind(appErr.Type()), appErr.Message()
	}
	var timeoutErr *temporal.TimeoutError
	if errors.As(err, &timeoutErr) {
		return domain.KindTimeout, "Request timed out"
	}
	return "", err.Error()
}
