package workflows_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.temporal.io/sdk/temporal"
	"go.temporal.io/sdk/testsuite"

	"github.com/samirrijal/rentalscope/internal/core/domain"
	"github.com/samirrijal/rentalscope/internal/core/usecases"
	"github.com/samirrijal/rentalscope/internal/workflows"
)

type memJobStore struct {
	mu   sync.Mutex
	jobs map[string]domain.Job
}

func (m *memJobStore) Save(ctx context.Context, job *domain.Job) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.jobs == nil {
		m.jobs = map[string]domain.Job{}
	}
	m.jobs[job.ID] = *job
	return nil
}

func (m *memJobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	j, ok := m.jobs[id]
	if !ok {
		return nil, domain.ErrNotFound
	}
	return &j, nil
}

func TestListingsWorkflow_Success(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterActivity(&workflows.ListingsActivities{})

	report := &domain.ListingsReport{Address: "1 Main St", Listings: []domain.ListingSummary{{ListingID: "1"}}}
	env.OnActivity("MarkJobRunning", mock.Anything, "job-1").Return(nil).Once()
	env.OnActivity("FindListings", mock.Anything, "1 Main St", int64(5000)).Return(report, nil).Once()
	env.OnActivity("CompleteJob", mock.Anything, mock.MatchedBy(func(o workflows.Outcome) bool {
		return o.JobID == "job-1" && o.Error == "" && o.Report != nil && len(o.Report.Listings) == 1
	})).Return(nil).Once()

	env.ExecuteWorkflow(workflows.ListingsWorkflow, workflows.ListingsInput{JobID: "job-1", Address: "1 Main St", TimeoutMs: 5000})

	require.True(t, env.IsWorkflowCompleted())
	require.NoError(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestListingsWorkflow_FailureIsRecorded(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestWorkflowEnvironment()
	env.RegisterActivity(&workflows.ListingsActivities{})

	lookupErr := temporal.NewNonRetryableApplicationError("No listings found in viewport", string(domain.KindInvalidResponse), nil)
	env.OnActivity("MarkJobRunning", mock.Anything, "job-2").Return(nil)
	env.OnActivity("FindListings", mock.Anything, "nowhere", int64(1000)).Return(nil, lookupErr).Once()
	env.OnActivity("CompleteJob", mock.Anything, mock.MatchedBy(func(o workflows.Outcome) bool {
		return o.JobID == "job-2" && o.Report == nil &&
			o.ErrorKind == domain.KindInvalidResponse && o.Error == "No listings found in viewport"
	})).Return(nil).Once()

	env.ExecuteWorkflow(workflows.ListingsWorkflow, workflows.ListingsInput{JobID: "job-2", Address: "nowhere", TimeoutMs: 1000})

	require.True(t, env.IsWorkflowCompleted())
	require.Error(t, env.GetWorkflowError())
	env.AssertExpectations(t)
}

func TestActivities_FindListingsInvalidInputIsNotRetried(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()

	resolver := usecases.NewViewportService(nil, nil, usecases.DefaultViewportConfig())
	fetcher := usecases.NewBatchFetchService(nil, usecases.DefaultBatchConfig())
	env.RegisterActivity(&workflows.ListingsActivities{
		Listings: usecases.NewListingService(resolver, fetcher, nil, nil),
	})

	_, err := env.ExecuteActivity("FindListings", "   ", int64(1000))
	require.Error(t, err)

	var appErr *temporal.ApplicationError
	require.True(t, errors.As(err, &appErr), "expected application error, got %v", err)
	require.Equal(t, string(domain.KindInvalidInput), appErr.Type())
	require.True(t, appErr.NonRetryable())
	require.Equal(t, "Address cannot be empty", appErr.Message())
}

func TestActivities_JobLifecycle(t *testing.T) {
	var ts testsuite.WorkflowTestSuite
	env := ts.NewTestActivityEnvironment()

	store := &memJobStore{}
	jobs := usecases.NewJobService(store, nil, nil)
	env.RegisterActivity(&workflows.ListingsActivities{Jobs: jobs})

	job, err := jobs.Submit(context.Background(), "1 Main St", time.Second)
	require.NoError(t, err)

	_, err = env.ExecuteActivity("MarkJobRunning", job.ID)
	require.NoError(t, err)
	got, _ := store.Get(context.Background(), job.ID)
	require.Equal(t, domain.JobRunning, got.Status)

	_, err = env.ExecuteActivity("CompleteJob", workflows.Outcome{
		JobID:     job.ID,
		ErrorKind: domain.KindTimeout,
		Error:     "Request timed out",
	})
	require.NoError(t, err)
	got, _ = store.Get(context.Background(), job.ID)
	require.Equal(t, domain.JobFailed, got.Status)
	require.Equal(t, domain.KindTimeout, got.ErrorKind)
	require.Equal(t, "Request timed out", got.Error)

	_, err = env.ExecuteActivity("MarkJobRunning", "00000000-0000-4000-8000-000000000000")
	require.Error(t, err)
}

func TestWorkflowID(t *testing.T) {
	require.Equal(t, "listings-abc", workflows.WorkflowID("abc"))
}
