package marathon

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"

	"longhaul/internal/logging"
)

// event is an input to the transition function.
type event string

const (
	eventStart      event = "start"
	eventCheckpoint event = "checkpoint"
	eventTransfer   event = "transfer"
	eventRestore    event = "restore"
	eventComplete   event = "complete"
)

// transition is the single place lifecycle legality is decided:
// (current state, event) -> new state, or an error when the event is not
// legal in the current state. Idle and completed are equivalent start
// points; transferred also accepts start since the old task has left the
// process.
func transition(s State, ev event) (State, error) {
	switch ev {
	case eventStart:
		switch s {
		case StateIdle, StateCompleted, StateTransferred:
			return StateActive, nil
		case StateActive, StateCheckpointed:
			return s, ErrTaskActive
		}
	case eventCheckpoint:
		switch s {
		case StateActive, StateCheckpointed:
			return StateCheckpointed, nil
		}
		return s, ErrNoActiveTask
	case eventTransfer:
		switch s {
		case StateActive, StateCheckpointed:
			return StateTransferred, nil
		}
		return s, ErrNoActiveTask
	case eventRestore:
		switch s {
		case StateIdle, StateCompleted, StateTransferred:
			return StateRestored, nil
		case StateActive, StateCheckpointed:
			return s, ErrTaskActive
		}
	case eventComplete:
		switch s {
		case StateActive, StateCheckpointed, StateRestored:
			return StateCompleted, nil
		}
		return s, ErrNoActiveTask
	}
	return s, fmt.Errorf("illegal transition: %s on %s", ev, s)
}

// Machine is the marathon state machine. All lifecycle mutations go through
// the transition function above, which makes the "exactly one active task"
// invariant enforceable in one place.
type Machine struct {
	mu        sync.Mutex
	state     State
	task      *Task
	store     CheckpointStore
	statePath string // optional descriptor persistence across processes
}

// NewMachine creates an idle machine backed by the given checkpoint
// persistence collaborator.
func NewMachine(store CheckpointStore) *Machine {
	return &Machine{state: StateIdle, store: store}
}

// NewMachineWithStatePath creates a machine that persists its task
// descriptor to the given JSON file on every lifecycle change, and reloads
// it on creation so an active task survives process restarts.
func NewMachineWithStatePath(store CheckpointStore, path string) *Machine {
	m := &Machine{state: StateIdle, store: store, statePath: path}
	m.loadDescriptor()
	return m
}

// descriptor is the on-disk shape of the machine's lifecycle state.
type descriptor struct {
	State State `json:"state"`
	Task  *Task `json:"task,omitempty"`
}

func (m *Machine) loadDescriptor() {
	data, err := os.ReadFile(m.statePath)
	if err != nil {
		return
	}
	var d descriptor
	if err := json.Unmarshal(data, &d); err != nil {
		logging.MarathonWarn("ignoring corrupt marathon descriptor %s: %v", m.statePath, err)
		return
	}
	if d.State == "" {
		return
	}
	m.state = d.State
	m.task = d.Task
	logging.Marathon("marathon descriptor loaded: state=%s", m.state)
}

// persistLocked writes the descriptor. Best-effort: a write failure is
// logged, never surfaced, since lifecycle transitions must not depend on it.
func (m *Machine) persistLocked() {
	if m.statePath == "" {
		return
	}
	d := descriptor{State: m.state, Task: m.task}
	data, err := json.MarshalIndent(d, "", "  ")
	if err != nil {
		logging.MarathonWarn("failed to marshal marathon descriptor: %v", err)
		return
	}
	if err := os.MkdirAll(filepath.Dir(m.statePath), 0755); err != nil {
		logging.MarathonWarn("failed to create marathon state dir: %v", err)
		return
	}
	if err := os.WriteFile(m.statePath, data, 0644); err != nil {
		logging.MarathonWarn("failed to write marathon descriptor: %v", err)
	}
}

// State returns the current lifecycle state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Active reports whether a task is in the active family of states.
func (m *Machine) Active() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state == StateActive || m.state == StateCheckpointed
}

// CurrentTask returns a copy of the active task, or nil when idle.
func (m *Machine) CurrentTask() *Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.task == nil {
		return nil
	}
	t := *m.task
	return &t
}

// Start begins a new marathon task bound to the given session. Fails with
// ErrTaskActive while a task is active; callers wanting to switch tasks must
// use SaveAndSwitch instead.
func (m *Machine) Start(description, sessionID string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.startLocked(description, sessionID)
}

func (m *Machine) startLocked(description, sessionID string) (*Task, error) {
	next, err := transition(m.state, eventStart)
	if err != nil {
		logging.MarathonWarn("start rejected in state %s: %v", m.state, err)
		return nil, err
	}

	m.state = next
	m.task = &Task{
		ID:          uuid.New().String(),
		Description: description,
		SessionID:   sessionID,
		State:       next,
		StartedAt:   time.Now(),
	}

	m.persistLocked()
	logging.Marathon("task started: id=%s session=%s desc=%q", m.task.ID, sessionID, description)
	t := *m.task
	return &t, nil
}

// Checkpoint appends an immutable checkpoint record for the active task.
// Always legal while active.
func (m *Machine) Checkpoint(description string, payload map[string]interface{}, automatic bool) (Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.checkpointLocked(description, payload, automatic)
}

func (m *Machine) checkpointLocked(description string, payload map[string]interface{}, automatic bool) (Checkpoint, error) {
	next, err := transition(m.state, eventCheckpoint)
	if err != nil {
		return Checkpoint{}, err
	}

	cp := Checkpoint{
		ID:          uuid.New().String(),
		TaskID:      m.task.ID,
		Description: description,
		Payload:     payload,
		CreatedAt:   time.Now(),
		Automatic:   automatic,
	}

	if m.store != nil {
		if err := m.store.AppendCheckpoint(cp); err != nil {
			return Checkpoint{}, fmt.Errorf("failed to persist checkpoint: %w", err)
		}
	}

	m.state = next
	m.task.State = next
	m.task.LastCheckpointID = cp.ID
	m.persistLocked()

	logging.Marathon("checkpoint recorded: id=%s task=%s automatic=%v", cp.ID, cp.TaskID, automatic)
	return cp, nil
}

// SaveAndSwitch closes out the current task with a final checkpoint and
// starts a new task in its place. Used when marathon is invoked while one is
// already active: the old task is never silently overwritten.
func (m *Machine) SaveAndSwitch(newDescription, sessionID string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.task == nil {
		return nil, ErrNoActiveTask
	}

	closing := fmt.Sprintf("task closed for switch to: %s", newDescription)
	if _, err := m.checkpointLocked(closing, map[string]interface{}{
		"previous_task": m.task.Description,
		"next_task":     newDescription,
	}, false); err != nil {
		return nil, err
	}

	// The closing checkpoint leaves us in /checkpointed; retire the task so
	// the start transition is legal.
	m.state = StateCompleted
	m.task.State = StateCompleted
	logging.Marathon("task retired for switch: id=%s", m.task.ID)

	return m.startLocked(newDescription, sessionID)
}

// Transfer hands the active task off for a follow-up process and returns the
// serializable continuation payload. The machine performs no handoff I/O.
func (m *Machine) Transfer() (Continuation, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := transition(m.state, eventTransfer)
	if err != nil {
		return Continuation{}, err
	}

	cont := Continuation{
		TaskID:          m.task.ID,
		TaskDescription: m.task.Description,
		SessionID:       m.task.SessionID,
		TransferredAt:   time.Now(),
	}
	if m.task.LastCheckpointID != "" && m.store != nil {
		if cp, err := m.store.GetCheckpoint(m.task.LastCheckpointID); err == nil {
			cont.LastCheckpoint = &cp
		}
	}

	m.state = next
	m.task.State = next
	m.persistLocked()

	logging.Marathon("task transferred: id=%s last_checkpoint=%s", cont.TaskID, m.task.LastCheckpointID)
	return cont, nil
}

// Restore re-activates a task from a prior checkpoint in a fresh process,
// rebinding it to the restoring session. Fails with ErrUnknownCheckpoint if
// the id cannot be found in the persistence collaborator.
func (m *Machine) Restore(checkpointID, sessionID string) (*Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if _, err := transition(m.state, eventRestore); err != nil {
		return nil, err
	}

	if m.store == nil {
		return nil, ErrUnknownCheckpoint
	}
	cp, err := m.store.GetCheckpoint(checkpointID)
	if err != nil {
		return nil, fmt.Errorf("%w: %s", ErrUnknownCheckpoint, checkpointID)
	}

	// Pass through /restored and land active with the restored checkpoint as
	// the last reference.
	m.state = StateRestored
	m.task = &Task{
		ID:               cp.TaskID,
		Description:      cp.Description,
		SessionID:        sessionID,
		State:            StateRestored,
		LastCheckpointID: cp.ID,
		StartedAt:        time.Now(),
	}

	m.state = StateActive
	m.task.State = StateActive
	m.persistLocked()

	logging.Marathon("task restored: id=%s from checkpoint=%s session=%s", cp.TaskID, cp.ID, sessionID)
	t := *m.task
	return &t, nil
}

// Complete explicitly ends the active task.
func (m *Machine) Complete() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	next, err := transition(m.state, eventComplete)
	if err != nil {
		return err
	}

	m.state = next
	if m.task != nil {
		m.task.State = next
		logging.Marathon("task completed: id=%s", m.task.ID)
	}
	m.persistLocked()
	return nil
}

// History lists persisted checkpoints for the active task, newest first.
func (m *Machine) History(limit int) ([]Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.task == nil {
		return nil, ErrNoActiveTask
	}
	if m.store == nil {
		return nil, nil
	}
	return m.store.ListCheckpoints(m.task.ID, limit)
}
