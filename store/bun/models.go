package bunstore

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/uptrace/bun"

	"github.com/lemon-tea-ai/arena/id"
	"github.com/lemon-tea-ai/arena/job"
)

type jobModel struct {
	bun.BaseModel `bun:"table:arena_jobs"`

	ID              string     `bun:"id,pk"`
	Kind            string     `bun:"kind,notnull"`
	Status          string     `bun:"status,notnull,default:'pending'"`
	Progress        int        `bun:"progress,notnull,default:0"`
	ProgressMessage string     `bun:"progress_message"`
	Payload         []byte     `bun:"payload,notnull,type:bytea"`
	Result          []byte     `bun:"result,type:bytea"`
	Error           string     `bun:"error"`
	CreatedAt       time.Time  `bun:"created_at,notnull,default:current_timestamp"`
	StartedAt       *time.Time `bun:"started_at"`
	CompletedAt     *time.Time `bun:"completed_at"`
	UpdatedAt       time.Time  `bun:"updated_at,notnull,default:current_timestamp"`
}

func toJobModel(j *job.Job) *jobModel {
	return &jobModel{
		ID:              j.ID.String(),
		Kind:            string(j.Kind),
		Status:          string(j.Status),
		Progress:        j.Progress,
		ProgressMessage: j.ProgressMessage,
		Payload:         j.Payload,
		Result:          j.Result,
		Error:           j.Error,
		CreatedAt:       j.CreatedAt,
		StartedAt:       j.StartedAt,
		CompletedAt:     j.CompletedAt,
		UpdatedAt:       j.UpdatedAt,
	}
}

func fromJobModel(m *jobModel) (*job.Job, error) {
	parsedID, err := id.ParseJobID(m.ID)
	if err != nil {
		return nil, fmt.Errorf("arena/bun: parse job id %q: %w", m.ID, err)
	}

	return &job.Job{
		ID:              parsedID,
		Kind:            job.Kind(m.Kind),
		Status:          job.Status(m.Status),
		Progress:        m.Progress,
		ProgressMessage: m.ProgressMessage,
		Payload:         json.RawMessage(m.Payload),
		Result:          json.RawMessage(m.Result),
		Error:           m.Error,
		CreatedAt:       m.CreatedAt,
		StartedAt:       m.StartedAt,
		CompletedAt:     m.CompletedAt,
		UpdatedAt:       m.UpdatedAt,
	}, nil
}
