package store

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"longhaul/internal/marathon"
)

func newTestStore(t *testing.T) *LocalStore {
	t.Helper()
	s, err := NewLocalStore(filepath.Join(t.TempDir(), "knowledge.db"))
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestLocalStore_MemorySearch(t *testing.T) {
	s := newTestStore(t)

	_, err := s.StoreMemory("deployed the api gateway to staging", "infrastructure", 0.9, nil)
	require.NoError(t, err)
	_, err = s.StoreMemory("customer asked about invoice totals", "interactions", 0.6,
		map[string]interface{}{"channel": "email"})
	require.NoError(t, err)
	_, err = s.StoreMemory("unrelated grocery list", "general", 0.9, nil)
	require.NoError(t, err)

	t.Run("matches by keyword", func(t *testing.T) {
		items, err := s.Search("api gateway", 10, 0.1)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Contains(t, items[0].Content, "api gateway")
		assert.Equal(t, "infrastructure", items[0].Category)
	})

	t.Run("threshold filters low-relevance matches", func(t *testing.T) {
		items, err := s.Search("invoice", 10, 0.7)
		require.NoError(t, err)
		assert.Empty(t, items)

		items, err = s.Search("invoice", 10, 0.5)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("partial term match lowers rank", func(t *testing.T) {
		// "api" matches, "nonexistent" does not: rank halves to 0.45.
		items, err := s.Search("api nonexistent", 10, 0.5)
		require.NoError(t, err)
		assert.Empty(t, items)

		items, err = s.Search("api nonexistent", 10, 0.4)
		require.NoError(t, err)
		assert.Len(t, items, 1)
	})

	t.Run("metadata round-trips", func(t *testing.T) {
		items, err := s.Search("invoice", 10, 0.1)
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.Equal(t, "email", items[0].Metadata["channel"])
	})

	t.Run("empty query matches nothing", func(t *testing.T) {
		items, err := s.Search("   ", 10, 0)
		require.NoError(t, err)
		assert.Empty(t, items)
	})
}

func TestLocalStore_Snapshot(t *testing.T) {
	s := newTestStore(t)

	snap, err := s.GetSnapshot()
	require.NoError(t, err)
	assert.Empty(t, snap.Interactions)

	require.NoError(t, s.UpdateSnapshot("interactions", map[string]interface{}{"summary": "first run"}))
	require.NoError(t, s.UpdateSnapshot("infrastructure", map[string]interface{}{"host": "staging-1"}))
	require.NoError(t, s.UpdateSnapshot("interactions", map[string]interface{}{"summary": "second run"}))

	snap, err = s.GetSnapshot()
	require.NoError(t, err)
	require.Len(t, snap.Interactions, 2)
	assert.Equal(t, "first run", snap.Interactions[0]["summary"])
	assert.Equal(t, "second run", snap.Interactions[1]["summary"])
	require.Len(t, snap.Infrastructure, 1)
	assert.False(t, snap.LastUpdated.IsZero())
}

func TestLocalStore_Checkpoints(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "knowledge.db")

	s, err := NewLocalStore(path)
	require.NoError(t, err)

	taskID := uuid.New().String()
	first := marathon.Checkpoint{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		Description: "phase one",
		Payload:     map[string]interface{}{"step": "migrate"},
		CreatedAt:   time.Now().Add(-time.Minute),
	}
	second := marathon.Checkpoint{
		ID:          uuid.New().String(),
		TaskID:      taskID,
		Description: "phase two",
		CreatedAt:   time.Now(),
		Automatic:   true,
	}
	require.NoError(t, s.AppendCheckpoint(first))
	require.NoError(t, s.AppendCheckpoint(second))

	t.Run("get by id", func(t *testing.T) {
		cp, err := s.GetCheckpoint(first.ID)
		require.NoError(t, err)
		assert.Equal(t, "phase one", cp.Description)
		assert.Equal(t, "migrate", cp.Payload["step"])
		assert.False(t, cp.Automatic)
	})

	t.Run("unknown id fails", func(t *testing.T) {
		_, err := s.GetCheckpoint("no-such-checkpoint")
		assert.Error(t, err)
	})

	t.Run("list newest first", func(t *testing.T) {
		cps, err := s.ListCheckpoints(taskID, 10)
		require.NoError(t, err)
		require.Len(t, cps, 2)
		assert.Equal(t, second.ID, cps[0].ID)
		assert.Equal(t, first.ID, cps[1].ID)
		assert.True(t, cps[0].Automatic)
	})

	t.Run("replayed append is idempotent", func(t *testing.T) {
		require.NoError(t, s.AppendCheckpoint(first))
		cps, err := s.ListCheckpoints(taskID, 10)
		require.NoError(t, err)
		assert.Len(t, cps, 2)
	})

	t.Run("survives reopen", func(t *testing.T) {
		require.NoError(t, s.Close())

		reopened, err := NewLocalStore(path)
		require.NoError(t, err)
		defer reopened.Close()

		cp, err := reopened.GetCheckpoint(second.ID)
		require.NoError(t, err)
		assert.Equal(t, "phase two", cp.Description)
	})
}

func TestLocalStore_Records(t *testing.T) {
	s := newTestStore(t)

	id, err := s.StoreRecord("tasks", map[string]interface{}{"task": "scrape the report"})
	require.NoError(t, err)
	assert.Greater(t, id, int64(0))

	next, err := s.StoreRecord("tasks", map[string]interface{}{"task": "another"})
	require.NoError(t, err)
	assert.Greater(t, next, id)
}

func TestLocalStore_SessionArchive(t *testing.T) {
	s := newTestStore(t)

	record := []byte(`{"id":"sess-1","commands":[]}`)
	require.NoError(t, s.SaveSession("sess-1", record))

	loaded, err := s.LoadSession("sess-1")
	require.NoError(t, err)
	assert.Equal(t, record, loaded)

	t.Run("save is an upsert", func(t *testing.T) {
		updated := []byte(`{"id":"sess-1","commands":[{"raw":"--- x"}]}`)
		require.NoError(t, s.SaveSession("sess-1", updated))

		loaded, err := s.LoadSession("sess-1")
		require.NoError(t, err)
		assert.Equal(t, updated, loaded)
	})

	t.Run("missing session fails", func(t *testing.T) {
		_, err := s.LoadSession("nope")
		assert.Error(t, err)
	})
}
