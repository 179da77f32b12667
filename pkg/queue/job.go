package queue

import "context"

// Job defines a unit of background work.
type Job interface {
	// Name returns the identifier of the job, used in logs.
	Name() string

	// Run executes the job.
	Run(ctx context.Context) error
}

// JobFunc adapts a function to the Job interface.
type JobFunc struct {
	JobName string
	Fn      func(ctx context.Context) error
}

func (j JobFunc) Name() string                  { return j.JobName }
func (j JobFunc) Run(ctx context.Context) error { return j.Fn(ctx) }
