package buildqueue

import (
	"errors"
	"time"
)

// Status represents the lifecycle state of a build job.
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusFailed     Status = "failed"
	StatusCompleted  Status = "completed"
)

// Terminal reports whether a status is final. Terminal jobs are never
// mutated again.
func (s Status) Terminal() bool {
	return s == StatusFailed || s == StatusCompleted
}

// Active reports whether the job still occupies the per-game build slot.
func (s Status) Active() bool {
	return s == StatusPending || s == StatusProcessing
}

var (
	// ErrActiveJobExists is returned when a game already has a pending or
	// processing job. At most one active job per game may exist.
	ErrActiveJobExists = errors.New("an active build job already exists for this game")
	// ErrNoJobs distinguishes "no build history" from lookup failures.
	ErrNoJobs = errors.New("no build jobs for this game")
	// ErrJobNotFound is returned for unknown job identifiers.
	ErrJobNotFound = errors.New("build job not found")
	// ErrTerminal is returned on attempts to mutate a finished job.
	ErrTerminal = errors.New("build job already reached a terminal state")
)

// Job is one build attempt for a game.
type Job struct {
	ID           string     `json:"id"`
	GameID       string     `json:"game_id"`
	UserID       string     `json:"user_id"`
	Status       Status     `json:"status"`
	ErrorMessage string     `json:"error_message,omitempty"`
	CreatedAt    time.Time  `json:"created_at"`
	StartedAt    *time.Time `json:"started_at,omitempty"`
	CompletedAt  *time.Time `json:"completed_at,omitempty"`
}
