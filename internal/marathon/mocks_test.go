package marathon

import (
	"fmt"
	"sort"
	"sync"
)

// memStore is an in-memory CheckpointStore for lifecycle tests.
type memStore struct {
	mu          sync.Mutex
	checkpoints map[string]Checkpoint
	appendErr   error
}

func newMemStore() *memStore {
	return &memStore{checkpoints: make(map[string]Checkpoint)}
}

func (m *memStore) AppendCheckpoint(cp Checkpoint) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.appendErr != nil {
		return m.appendErr
	}
	m.checkpoints[cp.ID] = cp
	return nil
}

func (m *memStore) GetCheckpoint(id string) (Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp, ok := m.checkpoints[id]
	if !ok {
		return Checkpoint{}, fmt.Errorf("checkpoint %s not found", id)
	}
	return cp, nil
}

func (m *memStore) ListCheckpoints(taskID string, limit int) ([]Checkpoint, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []Checkpoint
	for _, cp := range m.checkpoints {
		if cp.TaskID == taskID {
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.After(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *memStore) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.checkpoints)
}
