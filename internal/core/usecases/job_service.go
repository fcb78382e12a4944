package usecases

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/samirrijal/rentalscope/internal/core/domain"
	"github.com/samirrijal/rentalscope/internal/core/ports"
	"github.com/samirrijal/rentalscope/internal/pkg/metrics"
)

// JobService manages asynchronous listings lookups.
type JobService struct {
	store     ports.JobStore
	runner    ports.JobRunner
	publisher ports.EventPublisher
	now       func() time.Time
}

// NewJobService creates a new JobService. runner and publisher may be nil;
// without a runner, jobs are stored but never started.
func NewJobService(store ports.JobStore, runner ports.JobRunner, publisher ports.EventPublisher) *JobService {
	return &JobService{store: store, runner: runner, publisher: publisher, now: time.Now}
}

// Submit queues a lookup for address and hands it to the runner.
func (s *JobService) Submit(ctx context.Context, address string, timeout time.Duration) (*domain.Job, error) {
	addr, err := domain.ParseAddress(address)
	if err != nil {
		return nil, domain.FromDomainError(err)
	}
	if timeout <= 0 {
		return nil, domain.NewInvalidInputError("timeout_ms must be positive")
	}

	now := s.now().UTC()
	job := &domain.Job{
		ID:        uuid.NewString(),
		Address:   addr,
		TimeoutMs: timeout.Milliseconds(),
		Status:    domain.JobQueued,
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job: %w", err)
	}

	if s.runner == nil {
		return job, nil
	}
	if err := s.runner.Start(ctx, job); err != nil {
		slog.Error("start job", "job_id", job.ID, "error", err)
		if ferr := s.finish(ctx, job, nil, err); ferr != nil {
			slog.Warn("record failed job start", "job_id", job.ID, "error", ferr)
		}
		return job, fmt.Errorf("start job %s: %w", job.ID, err)
	}
	return job, nil
}

// Get returns a job by id.
func (s *JobService) Get(ctx context.Context, id string) (*domain.Job, error) {
	if _, err := uuid.Parse(id); err != nil {
		return nil, domain.ErrNotFound
	}
	return s.store.Get(ctx, id)
}

// MarkRunning moves a queued job to running. Finished jobs are left as is.
func (s *JobService) MarkRunning(ctx context.Context, id string) (*domain.Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	if job.Done() {
		return job, nil
	}
	job.Status = domain.JobRunning
	job.UpdatedAt = s.now().UTC()
	if err := s.store.Save(ctx, job); err != nil {
		return nil, fmt.Errorf("save job %s: %w", id, err)
	}
	s.publish(ctx, job)
	return job, nil
}

// Complete records the outcome of a job run. runErr nil means success.
func (s *JobService) Complete(ctx context.Context, id string, report *domain.ListingsReport, runErr error) (*domain.Job, error) {
	job, err := s.store.Get(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("load job %s: %w", id, err)
	}
	if err := s.finish(ctx, job, report, runErr); err != nil {
		return nil, err
	}
	return job, nil
}

func (s *JobService) finish(ctx context.Context, job *domain.Job, report *domain.ListingsReport, runErr error) error {
	job.UpdatedAt = s.now().UTC()
	if runErr != nil {
		job.Status = domain.JobFailed
		job.Error = runErr.Error()
		job.ErrorKind = domain.KindOf(runErr)
		job.Report = nil
	} else {
		job.Status = domain.JobSucceeded
		job.Error = ""
		job.ErrorKind = ""
		job.Report = report
	}
	metrics.JobRuns.WithLabelValues(string(job.Status)).Inc()

	if err := s.store.Save(ctx, job); err != nil {
		return fmt.Errorf("save job %s: %w", job.ID, err)
	}
	s.publish(ctx, job)
	return nil
}

func (s *JobService) publish(ctx context.Context, job *domain.Job) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.PublishJobUpdate(ctx, job); err != nil {
		slog.Warn("publish job update", "job_id", job.ID, "error", err)
	}
}
