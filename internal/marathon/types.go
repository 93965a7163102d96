// Package marathon owns the lifecycle of a long-running task: a unit of work
// spanning multiple commands and sessions, tracked via immutable checkpoints
// until completed or transferred to a fresh session.
package marathon

import (
	"errors"
	"time"
)

// State is the marathon lifecycle state.
type State string

const (
	StateIdle         State = "/idle"         // No active task
	StateActive       State = "/active"       // Task running
	StateCheckpointed State = "/checkpointed" // Active, most recent checkpoint recorded
	StateTransferred  State = "/transferred"  // Handed off to a new session
	StateRestored     State = "/restored"     // Re-activated from a prior checkpoint
	StateCompleted    State = "/completed"    // Explicitly ended
)

// Sentinel errors for expected lifecycle conditions.
var (
	ErrTaskActive        = errors.New("marathon task already active")
	ErrNoActiveTask      = errors.New("no active marathon task")
	ErrUnknownCheckpoint = errors.New("unknown checkpoint id")
)

// Checkpoint is an immutable, timestamped snapshot of marathon progress.
// Automatic distinguishes system-triggered checkpoints from user-triggered
// ones.
type Checkpoint struct {
	ID          string                 `json:"id"`
	TaskID      string                 `json:"task_id"`
	Description string                 `json:"description"`
	Payload     map[string]interface{} `json:"payload,omitempty"`
	CreatedAt   time.Time              `json:"created_at"`
	Automatic   bool                   `json:"automatic"`
}

// Task describes the currently active long-running task. Exactly one task
// may be in the active family of states per Machine at any time.
type Task struct {
	ID               string    `json:"id"`
	Description      string    `json:"description"`
	SessionID        string    `json:"session_id"`
	State            State     `json:"state"`
	LastCheckpointID string    `json:"last_checkpoint_id,omitempty"`
	StartedAt        time.Time `json:"started_at"`
}

// Continuation is the serializable handoff payload produced by Transfer,
// intended for a follow-up process. The machine does not perform the handoff
// I/O itself; that is the caller's job.
type Continuation struct {
	TaskID          string      `json:"task_id"`
	TaskDescription string      `json:"task_description"`
	SessionID       string      `json:"session_id"`
	LastCheckpoint  *Checkpoint `json:"last_checkpoint,omitempty"`
	TransferredAt   time.Time   `json:"transferred_at"`
}

// CheckpointStore is the durable persistence collaborator for checkpoints.
// Appends must survive process restart and be retrievable by id.
type CheckpointStore interface {
	AppendCheckpoint(cp Checkpoint) error
	GetCheckpoint(id string) (Checkpoint, error)
	ListCheckpoints(taskID string, limit int) ([]Checkpoint, error)
}
