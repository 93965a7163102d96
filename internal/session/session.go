// Package session holds the in-process record of one run's commands and
// results, from orchestrator start-up to shutdown. A Session is created once
// per process, mutated only by the orchestrator, persisted at shutdown, and
// never reused afterward.
package session

import (
	"encoding/json"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"longhaul/internal/command"
	"longhaul/internal/logging"
)

// StepKind identifies a pipeline step that can produce a result.
type StepKind string

const (
	StepLoad    StepKind = "/load"
	StepExecute StepKind = "/execute"
	StepUpdate  StepKind = "/update"
)

// StepResult is the outcome of one pipeline step. Results are appended to
// the session in step order and never mutated once recorded.
type StepResult struct {
	Step      StepKind      `json:"step"`
	Payload   interface{}   `json:"payload,omitempty"`
	Success   bool          `json:"success"`
	Duration  time.Duration `json:"duration"`
	Timestamp time.Time     `json:"timestamp"`
}

// CommandExecution is one processed command in the session history.
// Duration and Success are back-filled after the step pipeline finishes.
type CommandExecution struct {
	Raw         string           `json:"raw"`
	Timestamp   time.Time        `json:"timestamp"`
	Symbols     []command.Symbol `json:"symbols"`
	Description string           `json:"description"`
	Duration    time.Duration    `json:"duration"`
	Success     bool             `json:"success"`
}

// ContextSnapshot summarizes what the session currently knows.
type ContextSnapshot struct {
	KnowledgeLoaded bool     `json:"knowledge_loaded"`
	MarathonActive  bool     `json:"marathon_active"`
	Integrations    []string `json:"integrations,omitempty"`
	RecentSummaries []string `json:"recent_summaries,omitempty"`
}

// Session is the in-memory state for the lifetime of the process.
// Appends are serialized behind a mutex so concurrent command submission
// preserves submission order.
type Session struct {
	mu sync.Mutex

	ID             string             `json:"id"`
	StartTime      time.Time          `json:"start_time"`
	EndTime        time.Time          `json:"end_time,omitempty"`
	Commands       []CommandExecution `json:"commands"`
	Results        []StepResult       `json:"results"`
	MarathonActive bool               `json:"marathon_active"`
	Context        ContextSnapshot    `json:"context"`
}

// New creates a session with a fresh identifier.
func New() *Session {
	s := &Session{
		ID:        uuid.New().String(),
		StartTime: time.Now(),
	}
	logging.Session("session created: %s", s.ID)
	return s
}

// RecordCommand appends a command-execution entry to the history.
func (s *Session) RecordCommand(exec CommandExecution) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Commands = append(s.Commands, exec)
	logging.SessionDebug("command recorded: session=%s count=%d success=%v",
		s.ID, len(s.Commands), exec.Success)
}

// AppendResults appends step results in the given order.
func (s *Session) AppendResults(results []StepResult) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Results = append(s.Results, results...)
}

// SetMarathonActive flips the marathon flag on both the session and its
// context snapshot.
func (s *Session) SetMarathonActive(active bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.MarathonActive = active
	s.Context.MarathonActive = active
}

// UpdateContext replaces the context snapshot.
func (s *Session) UpdateContext(ctx ContextSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Context = ctx
}

// AddRecentSummary pushes an interaction summary onto the context snapshot,
// keeping the most recent entries last.
func (s *Session) AddRecentSummary(summary string, keep int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.Context.RecentSummaries = append(s.Context.RecentSummaries, summary)
	if keep > 0 && len(s.Context.RecentSummaries) > keep {
		s.Context.RecentSummaries = s.Context.RecentSummaries[len(s.Context.RecentSummaries)-keep:]
	}
}

// Finalize sets the end time once. Subsequent calls are no-ops.
func (s *Session) Finalize() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.EndTime.IsZero() {
		s.EndTime = time.Now()
		logging.Session("session finalized: %s (%d commands, %d results)",
			s.ID, len(s.Commands), len(s.Results))
	}
}

// CommandHistory returns a copy of the command history.
func (s *Session) CommandHistory() []CommandExecution {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]CommandExecution, len(s.Commands))
	copy(out, s.Commands)
	return out
}

// StepResults returns a copy of the accumulated step results.
func (s *Session) StepResults() []StepResult {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]StepResult, len(s.Results))
	copy(out, s.Results)
	return out
}

// Snapshot returns a copy of the context snapshot.
func (s *Session) Snapshot() ContextSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap := s.Context
	snap.Integrations = append([]string(nil), s.Context.Integrations...)
	snap.RecentSummaries = append([]string(nil), s.Context.RecentSummaries...)
	return snap
}

// MarshalRecord serializes the session for persistence. The encoding is
// content-preserving: UnmarshalRecord reconstructs an identical ordered
// history.
func (s *Session) MarshalRecord() ([]byte, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	data, err := json.Marshal(struct {
		ID             string             `json:"id"`
		StartTime      time.Time          `json:"start_time"`
		EndTime        time.Time          `json:"end_time,omitempty"`
		Commands       []CommandExecution `json:"commands"`
		Results        []StepResult       `json:"results"`
		MarathonActive bool               `json:"marathon_active"`
		Context        ContextSnapshot    `json:"context"`
	}{s.ID, s.StartTime, s.EndTime, s.Commands, s.Results, s.MarathonActive, s.Context})
	if err != nil {
		return nil, fmt.Errorf("failed to marshal session: %w", err)
	}
	return data, nil
}

// UnmarshalRecord reconstructs a persisted session record.
func UnmarshalRecord(data []byte) (*Session, error) {
	var s Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("failed to parse session record: %w", err)
	}
	return &s, nil
}
