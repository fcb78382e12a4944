package valkey

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/valkey-io/valkey-go"

	"github.com/samirrijal/rentalscope/internal/core/domain"
)

const jobKeyPrefix = "rentalscope:job:"

// JobStore implements ports.JobStore using Valkey (Redis-compatible).
type JobStore struct {
	client valkey.Client
	ttl    time.Duration
}

// New connects to addr. Jobs expire ttl after their last update.
func New(addr string, ttl time.Duration) (*JobStore, error) {
	client, err := valkey.NewClient(valkey.ClientOption{
		InitAddress:  []string{addr},
		DisableCache: true,
	})
	if err != nil {
		return nil, fmt.Errorf("valkey connect: %w", err)
	}
	return &JobStore{client: client, ttl: ttl}, nil
}

// Save stores the job, replacing any previous state.
func (s *JobStore) Save(ctx context.Context, job *domain.Job) error {
	data, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("encode job: %w", err)
	}
	cmd := s.client.B().Set().Key(jobKeyPrefix + job.ID).Value(string(data))
	if s.ttl > 0 {
		return s.client.Do(ctx, cmd.Ex(s.ttl).Build()).Error()
	}
	return s.client.Do(ctx, cmd.Build()).Error()
}

// Get loads a job. Unknown or expired ids return domain.ErrNotFound.
func (s *JobStore) Get(ctx context.Context, id string) (*domain.Job, error) {
	b, err := s.client.Do(ctx, s.client.B().Get().Key(jobKeyPrefix+id).Build()).AsBytes()
	if valkey.IsValkeyNil(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	var job domain.Job
	if err := json.Unmarshal(b, &job); err != nil {
		return nil, fmt.Errorf("decode job %s: %w", id, err)
	}
	return &job, nil
}

// Ping checks connectivity for readiness probes.
func (s *JobStore) Ping(ctx context.Context) error {
	if err := s.client.Do(ctx, s.client.B().Ping().Build()).Error(); err != nil {
		return errors.Join(errors.New("valkey ping"), err)
	}
	return nil
}

// Close releases the client.
func (s *JobStore) Close() {
	s.client.Close()
}
