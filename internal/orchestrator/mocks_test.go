package orchestrator

import (
	"context"
	"fmt"
	"sync"
	"time"

	"longhaul/internal/command"
	"longhaul/internal/integrations"
	"longhaul/internal/marathon"
	"longhaul/internal/store"
)

// mockKnowledge is an in-memory KnowledgeStore with injectable failures.
type mockKnowledge struct {
	mu sync.Mutex

	items       []store.Item
	memories    []string
	snapshots   []string
	searchErr   error
	storeErr    error
	snapshotErr error
}

func (m *mockKnowledge) Search(query string, limit int, threshold float64) ([]store.Item, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.searchErr != nil {
		return nil, m.searchErr
	}
	return m.items, nil
}

func (m *mockKnowledge) GetSnapshot() (store.Snapshot, error) {
	return store.Snapshot{}, nil
}

func (m *mockKnowledge) StoreMemory(content, category string, relevance float64, metadata map[string]interface{}) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.storeErr != nil {
		return "", m.storeErr
	}
	m.memories = append(m.memories, content)
	return fmt.Sprintf("mem-%d", len(m.memories)), nil
}

func (m *mockKnowledge) UpdateSnapshot(category string, data map[string]interface{}) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.snapshotErr != nil {
		return m.snapshotErr
	}
	m.snapshots = append(m.snapshots, category)
	return nil
}

func (m *mockKnowledge) memoryCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.memories)
}

func (m *mockKnowledge) snapshotCategories() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string(nil), m.snapshots...)
}

// mockArchive captures session persistence calls.
type mockArchive struct {
	mu      sync.Mutex
	saved   map[string][]byte
	saveErr error
}

func newMockArchive() *mockArchive {
	return &mockArchive{saved: make(map[string][]byte)}
}

func (m *mockArchive) SaveSession(id string, record []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.saveErr != nil {
		return m.saveErr
	}
	m.saved[id] = record
	return nil
}

func (m *mockArchive) LoadSession(id string) ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	record, ok := m.saved[id]
	if !ok {
		return nil, fmt.Errorf("session not found: %s", id)
	}
	return record, nil
}

// mockTools is a Manager whose per-capability outcomes are scripted.
type mockTools struct {
	mu         sync.Mutex
	dispatched []command.CapabilityKind
	failing    map[command.CapabilityKind]bool
}

func newMockTools() *mockTools {
	return &mockTools{failing: make(map[command.CapabilityKind]bool)}
}

func (m *mockTools) outcome(kind command.CapabilityKind) (integrations.Outcome, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.dispatched = append(m.dispatched, kind)
	if m.failing[kind] {
		return integrations.Outcome{Capability: kind, Error: "scripted failure"}, nil
	}
	return integrations.Outcome{Capability: kind, Success: true}, nil
}

func (m *mockTools) GetSystemHealth(ctx context.Context) (integrations.Health, error) {
	return integrations.Health{Healthy: true, CheckedAt: time.Now()}, nil
}

func (m *mockTools) GetAvailableIntegrations() map[string]integrations.Status {
	return map[string]integrations.Status{"structured_store": integrations.StatusReady}
}

func (m *mockTools) TriggerWorkflow(ctx context.Context, workflowID string, payload map[string]interface{}) (integrations.Outcome, error) {
	return m.outcome(command.CapabilityWorkflow)
}

func (m *mockTools) CaptureScreenshot(ctx context.Context, url string, fullPage bool) (integrations.Outcome, error) {
	return m.outcome(command.CapabilityBrowserCapture)
}

func (m *mockTools) ScrapePage(ctx context.Context, url, selector string) (integrations.Outcome, error) {
	return m.outcome(command.CapabilityBrowserScrape)
}

func (m *mockTools) StoreStructured(ctx context.Context, table string, payload map[string]interface{}) (integrations.Outcome, error) {
	return m.outcome(command.CapabilityStructuredStore)
}

func (m *mockTools) FetchBusinessData(ctx context.Context, doctype string) (integrations.Outcome, error) {
	return m.outcome(command.CapabilityBusinessData)
}

func (m *mockTools) dispatchedKinds() []command.CapabilityKind {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]command.CapabilityKind(nil), m.dispatched...)
}

// memCheckpoints is an in-memory marathon.CheckpointStore.
type memCheckpoints struct {
	mu          sync.Mutex
	checkpoints []marathon.Checkpoint
}

func (m *memCheckpoints) AppendCheckpoint(cp marathon.Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.checkpoints = append(m.checkpoints, cp)
	return nil
}

func (m *memCheckpoints) GetCheckpoint(id string) (marathon.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, cp := range m.checkpoints {
		if cp.ID == id {
			return cp, nil
		}
	}
	return marathon.Checkpoint{}, fmt.Errorf("checkpoint not found: %s", id)
}

func (m *memCheckpoints) ListCheckpoints(taskID string, limit int) ([]marathon.Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []marathon.Checkpoint
	for _, cp := range m.checkpoints {
		if cp.TaskID == taskID {
			out = append(out, cp)
		}
	}
	return out, nil
}

func (m *memCheckpoints) all() []marathon.Checkpoint {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]marathon.Checkpoint(nil), m.checkpoints...)
}

// fixture bundles an orchestrator with its mocked collaborators.
type fixture struct {
	orch        *Orchestrator
	knowledge   *mockKnowledge
	archive     *mockArchive
	tools       *mockTools
	checkpoints *memCheckpoints
	machine     *marathon.Machine
}

func newFixture() *fixture {
	knowledge := &mockKnowledge{}
	archive := newMockArchive()
	tools := newMockTools()
	checkpoints := &memCheckpoints{}
	machine := marathon.NewMachine(checkpoints)

	return &fixture{
		orch:        New(nil, knowledge, archive, tools, machine),
		knowledge:   knowledge,
		archive:     archive,
		tools:       tools,
		checkpoints: checkpoints,
		machine:     machine,
	}
}
