// Package redis implements job.Store on Redis for deployments where job
// records must outlive a single process but a relational database is
// overkill. Each record is a msgpack blob under arena:job:{id}, with a Set
// tracking all ids for enumeration.
//
// Usage:
//
//	client := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
//	s := redisstore.New(client)
//	if err := s.Ping(ctx); err != nil { ... }
package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	goredis "github.com/redis/go-redis/v9"
	"github.com/vmihailenco/msgpack/v5"

	arena "github.com/lemon-tea-ai/arena"
	"github.com/lemon-tea-ai/arena/id"
	"github.com/lemon-tea-ai/arena/job"
)

var _ job.Store = (*Store)(nil)

// Key naming: everything is prefixed with "arena:" to avoid collisions.
const keyPrefix = "arena:"

// jobIDsKey is the Set tracking all job ids for enumeration.
const jobIDsKey = keyPrefix + "job_ids"

// jobKey returns the key for a job record: arena:job:{id}
func jobKey(id string) string { return keyPrefix + "job:" + id }

// Option configures the Store.
type Option func(*Store)

// WithLogger sets a custom logger.
func WithLogger(l *slog.Logger) Option {
	return func(s *Store) { s.logger = l }
}

// Store implements job.Store backed by Redis.
type Store struct {
	client goredis.Cmdable
	logger *slog.Logger
}

// record is the wire representation of a job. Ids travel as strings because
// msgpack cannot see inside the opaque id type.
type record struct {
	ID              string     `msgpack:"id"`
	Kind            string     `msgpack:"kind"`
	Status          string     `msgpack:"status"`
	Progress        int        `msgpack:"progress"`
	ProgressMessage string     `msgpack:"progress_message"`
	Payload         []byte     `msgpack:"payload"`
	Result          []byte     `msgpack:"result"`
	Error           string     `msgpack:"error"`
	CreatedAt       time.Time  `msgpack:"created_at"`
	StartedAt       *time.Time `msgpack:"started_at"`
	CompletedAt     *time.Time `msgpack:"completed_at"`
	UpdatedAt       time.Time  `msgpack:"updated_at"`
}

func toRecord(j *job.Job) *record {
	return &record{
		ID:              j.ID.String(),
		Kind:            string(j.Kind),
		Status:          string(j.Status),
		Progress:        j.Progress,
		ProgressMessage: j.ProgressMessage,
		Payload:         []byte(j.Payload),
		Result:          []byte(j.Result),
		Error:           j.Error,
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

func fromRecord(r *record) (*job.Job, error) {
	jID, err := id.ParseJobID(r.ID)
	if err != nil {
		return nil, fmt.Errorf("arena/redis: parse job id: %w", err)
	}
	return &job.Job{
		ID:              jID,
		Kind:            job.Kind(r.Kind),
		Status:          job.Status(r.Status),
		Progress:        r.Progress,
		ProgressMessage: r.ProgressMessage,
		Payload:         json.RawMessage(r.Payload),
		Result:          json.RawMessage(r.Result),
		Error:           r.Error,
		CreatedAt:       r.CreatedAt,
		StartedAt:       r.StartedAt,
		CompletedAt:     r.CompletedAt,
		UpdatedAt:       r.UpdatedAt,
	}, nil
}

// New creates a Redis-backed store. The caller owns the Redis client
// lifecycle.
func New(client goredis.Cmdable, opts ...Option) *Store {
	s := &Store{client: client, logger: slog.Default()}
	for _, o := range opts {
		o(s)
	}
	return s
}

// Client returns the underlying Redis client.
func (s *Store) Client() goredis.Cmdable { return s.client }

// Ping verifies the Redis connection is alive.
func (s *Store) Ping(ctx context.Context) error {
	return s.client.Ping(ctx).Err()
}

// Close is a no-op, the caller owns the Redis client lifecycle.
func (s *Store) Close() error { return nil }

// PutJob stores the record as a msgpack blob and tracks its id. SET is
// atomic, so a concurrent reader sees either the old record or the new one.
func (s *Store) PutJob(ctx context.Context, j *job.Job) error {
	blob, err := msgpack.Marshal(toRecord(j))
	if err != nil {
		return fmt.Errorf("arena/redis: marshal job: %w", err)
	}

	jID := j.ID.String()
	pipe := s.client.TxPipeline()
	pipe.Set(ctx, jobKey(jID), blob, 0)
	pipe.SAdd(ctx, jobIDsKey, jID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("arena/redis: put job: %w", err)
	}
	return nil
}

// GetJob retrieves a job by ID.
func (s *Store) GetJob(ctx context.Context, jobID id.JobID) (*job.Job, error) {
	blob, err := s.client.Get(ctx, jobKey(jobID.String())).Bytes()
	if err != nil {
		if errors.Is(err, goredis.Nil) {
			return nil, arena.ErrJobNotFound
		}
		return nil, fmt.Errorf("arena/redis: get job: %w", err)
	}

	var r record
	if err := msgpack.Unmarshal(blob, &r); err != nil {
		return nil, fmt.Errorf("arena/redis: decode job %s: %w", jobID, err)
	}
	return fromRecord(&r)
}

// ListJobs enumerates the id Set and fetches each record. Ids whose record
// vanished between SMEMBERS and GET are skipped.
func (s *Store) ListJobs(ctx context.Context) ([]*job.Job, error) {
	ids, err := s.client.SMembers(ctx, jobIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("arena/redis: list job ids: %w", err)
	}

	jobs := make([]*job.Job, 0, len(ids))
	for _, jID := range ids {
		blob, gErr := s.client.Get(ctx, jobKey(jID)).Bytes()
		if gErr != nil {
			if errors.Is(gErr, goredis.Nil) {
				continue
			}
			return nil, fmt.Errorf("arena/redis: list get job %s: %w", jID, gErr)
		}
		var r record
		if uErr := msgpack.Unmarshal(blob, &r); uErr != nil {
			s.logger.Warn("skipping undecodable job record", "id", jID, "error", uErr)
			continue
		}
		j, cErr := fromRecord(&r)
		if cErr != nil {
			s.logger.Warn("skipping job record with bad id", "id", jID, "error", cErr)
			continue
		}
		jobs = append(jobs, j)
	}
	return jobs, nil
}

// DeleteJob removes the record and its id-set entry. Deleting a missing id
// is not an error.
func (s *Store) DeleteJob(ctx context.Context, jobID id.JobID) error {
	jID := jobID.String()
	pipe := s.client.TxPipeline()
	pipe.Del(ctx, jobKey(jID))
	pipe.SRem(ctx, jobIDsKey, jID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("arena/redis: delete job: %w", err)
	}
	return nil
}
