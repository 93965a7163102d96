// Package store defines the knowledge-store contracts the orchestrator
// consumes and provides a local SQLite implementation of them. The local
// store is a reference collaborator, not a mandated engine: any backend
// honoring these interfaces can replace it.
package store

import (
	"time"
)

// Item is one ranked memory item returned from a search.
type Item struct {
	ID        string                 `json:"id"`
	Content   string                 `json:"content"`
	Category  string                 `json:"category"`
	Relevance float64                `json:"relevance"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	CreatedAt time.Time              `json:"created_at"`
}

// Snapshot is the knowledge-base summary grouped by category.
type Snapshot struct {
	Infrastructure []map[string]interface{} `json:"infrastructure,omitempty"`
	Projects       []map[string]interface{} `json:"projects,omitempty"`
	Interactions   []map[string]interface{} `json:"interactions,omitempty"`
	Workflows      []map[string]interface{} `json:"workflows,omitempty"`
	Insights       []map[string]interface{} `json:"insights,omitempty"`
	LastUpdated    time.Time                `json:"last_updated"`
}

// KnowledgeStore is the persistence collaborator contract from the
// orchestrator's point of view. Implementations must be safe for concurrent
// use from multiple orchestrator steps.
type KnowledgeStore interface {
	// Search returns items relevant to the query, ranked by relevance,
	// filtered to relevance >= threshold and capped at limit.
	Search(query string, limit int, threshold float64) ([]Item, error)

	// GetSnapshot returns the current knowledge-base summary.
	GetSnapshot() (Snapshot, error)

	// StoreMemory persists a memory item and returns its id.
	StoreMemory(content, category string, relevance float64, metadata map[string]interface{}) (string, error)

	// UpdateSnapshot appends data under the given snapshot category.
	UpdateSnapshot(category string, data map[string]interface{}) error
}

// SessionArchive persists finalized session records at shutdown.
type SessionArchive interface {
	SaveSession(id string, record []byte) error
	LoadSession(id string) ([]byte, error)
}
