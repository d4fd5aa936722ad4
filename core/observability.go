package core

import (
	"time"

	"github.com/google/uuid"
)

// TaskID uniquely identifies a single task execution in history records and
// logs.
type TaskID uuid.UUID

// GenerateTaskID returns a new random TaskID.
func GenerateTaskID() TaskID {
	return TaskID(uuid.New())
}

func (id TaskID) String() string {
	return uuid.UUID(id).String()
}

// TaskExecutionRecord captures one completed task execution on a worker
// thread.
type TaskExecutionRecord struct {
	TaskID     TaskID
	Name       string
	Thread     string
	StartedAt  time.Time
	FinishedAt time.Time
	Duration   time.Duration
	Panicked   bool
}

// ThreadStats is a point-in-time snapshot of an executor's runtime state.
type ThreadStats struct {
	Name         string
	Tag          Tag
	QueueLen     int
	Executed     int64
	Panicked     int64
	Rejected     int64
	Delayed      int
	Closed       bool
	LastTaskName string
	LastTaskAt   time.Time
}
