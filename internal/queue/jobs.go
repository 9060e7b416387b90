package queue

import (
	"context"
	"time"

	"github.com/codebuildervaibhav/speaker-diarization/internal/types"
)

// Job represents a diarization job
type Job struct {
	ID        string
	FilePath  string
	Status    string
	Error     error
	Result    *types.Result
	CreatedAt time.Time

	ctx  context.Context
	done chan struct{}
}

// NewJob creates a new job with default values
func NewJob(id, filePath string) *Job {
	return &Job{
		ID:        id,
		FilePath:  filePath,
		Status:    types.StatusQueued,
		CreatedAt: time.Now(),
		done:      make(chan struct{}),
	}
}

func (j *Job) context() context.Context {
	if j.ctx == nil {
		return context.Background()
	}
	return j.ctx
}
