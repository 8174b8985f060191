package bunstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	arena "github.com/lemon-tea-ai/arena"
	"github.com/lemon-tea-ai/arena/id"
	"github.com/lemon-tea-ai/arena/job"
)

// PutJob upserts the record for the job's id. The statement is atomic, so
// a concurrent reader sees either the previous record or the new one.
func (s *Store) PutJob(ctx context.Context, j *job.Job) error {
	m := toJobModel(j)
	_, err := s.db.NewInsert().Model(m).
		On("CONFLICT (id) DO UPDATE").
		Set("kind = EXCLUDED.kind").
		Set("status = EXCLUDED.status").
		Set("progress = EXCLUDED.progress").
		Set("progress_message = EXCLUDED.progress_message").
		Set("payload = EXCLUDED.payload").
		Set("result = EXCLUDED.result").
		Set("error = EXCLUDED.error").
		Set("started_at = EXCLUDED.started_at").
		Set("completed_at = EXCLUDED.completed_at").
		Set("updated_at = EXCLUDED.updated_at").
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("arena/bun: put job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	m := new(jobModel)
	err := s.db.NewSelect().Model(m).
		Where("id = ?", jobID.String()).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, arena.ErrJobNotFound
		}
		return nil, fmt.Errorf("arena/bun: get job: %w", err)
	}
	return fromJobModel(m)
}

// ListJobs returns all job records ordered by creation time.
func (s *Store) ListJobs(ctx context.Context) ([]*job.Job, error) {
	var models []jobModel
	err := s.db.NewSelect().Model(&models).
		Order("created_at ASC").
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("arena/bun: list jobs: %w", err)
	}

	jobs := make([]*job.Job, 0, len(models))
	for i := range models {
		j, convErr := fromJobModel(&models[i])
		if convErr != nil {
			return nil, fmt.Errorf("arena/bun: list jobs convert: %w", convErr)
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// DeleteJob removes a job by ID. Deleting a missing id is not an error.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	_, err := s.db.NewDelete().
		TableExpr("arena_jobs").
		Where("id = ?", jobID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("arena/bun: delete job: %w", err)
	}
	return nil
}
