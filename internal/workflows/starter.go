package workflows

import (
	"context"
	"fmt"
	"log/slog"

	"go.temporal.io/sdk/client"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

// Starter implements ports.JobRunner by starting a ListingsWorkflow per job.
type Starter struct {
	client    client.Client
	taskQueue string
}

// NewStarter creates a Starter. An empty taskQueue uses TaskQueue.
func NewStarter(c client.Client, taskQueue string) *Starter {
	if taskQueue == "" {
		taskQueue = TaskQueue
	}
	return &Starter{client: c, taskQueue: taskQueue}
}

// Start launches the workflow; the workflow id is derived from the job id so
// a job is never run twice.
func (s *Starter) Start(ctx context.Context, job *domain.Job) error {
	opts := client.StartWorkflowOptions{
		ID:        WorkflowID(job.ID),
		TaskQueue: s.taskQueue,
	}
	run, err := s.client.ExecuteWorkflow(ctx, opts, ListingsWorkflow, ListingsInput{
		JobID:     job.ID,
		Address:   job.Address,
		TimeoutMs: job.TimeoutMs,
	})
	if err != nil {
		return fmt.Errorf("start workflow: %w", err)
	}
	slog.Info("listings workflow started", "job_id", job.ID, "run_id", run.GetRunID())
	return nil
}

// WorkflowID is the Temporal workflow id for a job.
func WorkflowID(jobID string) string {
	return "listings-" + jobID
}
