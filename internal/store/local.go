package store

import (
	"database/sql"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	_ "github.com/mattn/go-sqlite3"

	"longhaul/internal/logging"
	"longhaul/internal/marathon"
)

// LocalStore implements KnowledgeStore, SessionArchive, and
// marathon.CheckpointStore over a single SQLite database.
type LocalStore struct {
	db     *sql.DB
	mu     sync.RWMutex
	dbPath string
}

// NewLocalStore initializes the SQLite database at the given path.
func NewLocalStore(path string) (*LocalStore, error) {
	timer := logging.StartTimer(logging.CategoryStore, "NewLocalStore")
	defer timer.Stop()

	logging.Store("Initializing LocalStore at path: %s", path)

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	db, err := sql.Open("sqlite3", path)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	if _, err := db.Exec("PRAGMA busy_timeout = 5000"); err != nil {
		logging.StoreDebug("Failed to set sqlite busy_timeout: %v", err)
	}
	if _, err := db.Exec("PRAGMA journal_mode = WAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite journal_mode=WAL: %v", err)
	}
	// synchronous=NORMAL is safe under WAL and much faster than FULL.
	if _, err := db.Exec("PRAGMA synchronous = NORMAL"); err != nil {
		logging.StoreDebug("Failed to set sqlite synchronous=NORMAL: %v", err)
	}

	s := &LocalStore{db: db, dbPath: path}
	if err := s.initialize(); err != nil {
		db.Close()
		return nil, err
	}
	logging.StoreDebug("Database schema initialized")

	return s, nil
}

// initialize creates the schema if missing.
func (s *LocalStore) initialize() error {
	schema := []string{
		`CREATE TABLE IF NOT EXISTS memory_items (
			id TEXT PRIMARY KEY,
			content TEXT NOT NULL,
			category TEXT NOT NULL DEFAULT 'general',
			relevance REAL NOT NULL DEFAULT 0.5,
			metadata TEXT,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_memory_category ON memory_items(category)`,
		`CREATE TABLE IF NOT EXISTS kb_snapshot (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			category TEXT NOT NULL,
			data TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE INDEX IF NOT EXISTS idx_snapshot_category ON kb_snapshot(category)`,
		`CREATE TABLE IF NOT EXISTS checkpoints (
			id TEXT PRIMARY KEY,
			task_id TEXT NOT NULL,
			description TEXT NOT NULL,
			payload TEXT,
			automatic INTEGER NOT NULL DEFAULT 0,
			created_at TIMESTAMP NOT NULL
		)`,
		`CREATE INDEX IF NOT EXISTS idx_checkpoints_task ON checkpoints(task_id, created_at)`,
		`CREATE TABLE IF NOT EXISTS records (
			id INTEGER PRIMARY KEY AUTOINCREMENT,
			table_name TEXT NOT NULL,
			payload TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
		`CREATE TABLE IF NOT EXISTS sessions (
			id TEXT PRIMARY KEY,
			record TEXT NOT NULL,
			created_at TIMESTAMP DEFAULT CURRENT_TIMESTAMP
		)`,
	}

	for _, stmt := range schema {
		if _, err := s.db.Exec(stmt); err != nil {
			return fmt.Errorf("failed to create schema: %w", err)
		}
	}
	return nil
}

// Close closes the underlying database.
func (s *LocalStore) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.db.Close()
}

// =============================================================================
// KNOWLEDGE STORE
// =============================================================================

// Search performs a keyword LIKE match over memory items. This is a local
// stand-in for the external semantic-search collaborator: same contract,
// simpler ranking (stored relevance, boosted when every term matches).
func (s *LocalStore) Search(query string, limit int, threshold float64) ([]Item, error) {
	timer := logging.StartTimer(logging.CategoryStore, "Search")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 10
	}

	terms := strings.Fields(strings.ToLower(query))
	if len(terms) == 0 {
		return nil, nil
	}

	// Match any term in SQL, rank in Go by fraction of terms present.
	clauses := make([]string, len(terms))
	args := make([]interface{}, 0, len(terms))
	for i, term := range terms {
		clauses[i] = "lower(content) LIKE ?"
		args = append(args, "%"+term+"%")
	}

	rows, err := s.db.Query(
		`SELECT id, content, category, relevance, metadata, created_at
		 FROM memory_items WHERE `+strings.Join(clauses, " OR ")+`
		 ORDER BY relevance DESC, created_at DESC LIMIT ?`,
		append(args, limit*4)...,
	)
	if err != nil {
		return nil, fmt.Errorf("search query failed: %w", err)
	}
	defer rows.Close()

	var items []Item
	for rows.Next() {
		var it Item
		var metadata sql.NullString
		if err := rows.Scan(&it.ID, &it.Content, &it.Category, &it.Relevance, &metadata, &it.CreatedAt); err != nil {
			continue
		}
		if metadata.Valid && metadata.String != "" {
			_ = json.Unmarshal([]byte(metadata.String), &it.Metadata)
		}

		matched := 0
		lower := strings.ToLower(it.Content)
		for _, term := range terms {
			if strings.Contains(lower, term) {
				matched++
			}
		}
		it.Relevance = it.Relevance * float64(matched) / float64(len(terms))

		if it.Relevance >= threshold {
			items = append(items, it)
		}
		if len(items) >= limit {
			break
		}
	}

	logging.StoreDebug("search %q matched %d item(s)", query, len(items))
	return items, rows.Err()
}

// StoreMemory persists a memory item and returns its id.
func (s *LocalStore) StoreMemory(content, category string, relevance float64, metadata map[string]interface{}) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if category == "" {
		category = "general"
	}

	id := uuid.New().String()
	var metaJSON []byte
	if metadata != nil {
		var err error
		metaJSON, err = json.Marshal(metadata)
		if err != nil {
			return "", fmt.Errorf("failed to marshal metadata: %w", err)
		}
	}

	_, err := s.db.Exec(
		`INSERT INTO memory_items (id, content, category, relevance, metadata) VALUES (?, ?, ?, ?, ?)`,
		id, content, category, relevance, string(metaJSON),
	)
	if err != nil {
		return "", fmt.Errorf("failed to store memory item: %w", err)
	}

	logging.StoreDebug("memory item stored: id=%s category=%s relevance=%.2f", id, category, relevance)
	return id, nil
}

// GetSnapshot returns the knowledge-base summary grouped by category.
func (s *LocalStore) GetSnapshot() (Snapshot, error) {
	timer := logging.StartTimer(logging.CategoryStore, "GetSnapshot")
	defer timer.Stop()

	s.mu.RLock()
	defer s.mu.RUnlock()

	rows, err := s.db.Query(
		`SELECT category, data, created_at FROM kb_snapshot ORDER BY created_at ASC`,
	)
	if err != nil {
		return Snapshot{}, fmt.Errorf("snapshot query failed: %w", err)
	}
	defer rows.Close()

	var snap Snapshot
	for rows.Next() {
		var category, data string
		var createdAt time.Time
		if err := rows.Scan(&category, &data, &createdAt); err != nil {
			continue
		}

		var entry map[string]interface{}
		if err := json.Unmarshal([]byte(data), &entry); err != nil {
			continue
		}

		switch category {
		case "infrastructure":
			snap.Infrastructure = append(snap.Infrastructure, entry)
		case "projects":
			snap.Projects = append(snap.Projects, entry)
		case "interactions":
			snap.Interactions = append(snap.Interactions, entry)
		case "workflows":
			snap.Workflows = append(snap.Workflows, entry)
		case "insights":
			snap.Insights = append(snap.Insights, entry)
		}
		if createdAt.After(snap.LastUpdated) {
			snap.LastUpdated = createdAt
		}
	}

	return snap, rows.Err()
}

// UpdateSnapshot appends data under the given snapshot category.
func (s *LocalStore) UpdateSnapshot(category string, data map[string]interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(data)
	if err != nil {
		return fmt.Errorf("failed to marshal snapshot data: %w", err)
	}

	_, err = s.db.Exec(
		`INSERT INTO kb_snapshot (category, data, created_at) VALUES (?, ?, ?)`,
		category, string(blob), time.Now().UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to update snapshot: %w", err)
	}

	logging.StoreDebug("snapshot updated: category=%s", category)
	return nil
}

// =============================================================================
// CHECKPOINT PERSISTENCE (marathon.CheckpointStore)
// =============================================================================

// AppendCheckpoint durably appends a checkpoint record.
// Uses INSERT OR IGNORE so a replayed append is idempotent.
func (s *LocalStore) AppendCheckpoint(cp marathon.Checkpoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var payload []byte
	if cp.Payload != nil {
		var err error
		payload, err = json.Marshal(cp.Payload)
		if err != nil {
			return fmt.Errorf("failed to marshal checkpoint payload: %w", err)
		}
	}

	automatic := 0
	if cp.Automatic {
		automatic = 1
	}

	_, err := s.db.Exec(
		`INSERT OR IGNORE INTO checkpoints (id, task_id, description, payload, automatic, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		cp.ID, cp.TaskID, cp.Description, string(payload), automatic, cp.CreatedAt.UTC(),
	)
	if err != nil {
		return fmt.Errorf("failed to append checkpoint: %w", err)
	}

	logging.StoreDebug("checkpoint persisted: id=%s task=%s", cp.ID, cp.TaskID)
	return nil
}

// GetCheckpoint retrieves a checkpoint by id.
func (s *LocalStore) GetCheckpoint(id string) (marathon.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	row := s.db.QueryRow(
		`SELECT id, task_id, description, payload, automatic, created_at FROM checkpoints WHERE id = ?`,
		id,
	)
	return scanCheckpoint(row)
}

// ListCheckpoints returns checkpoints for a task ordered newest first.
func (s *LocalStore) ListCheckpoints(taskID string, limit int) ([]marathon.Checkpoint, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if limit <= 0 {
		limit = 50
	}

	rows, err := s.db.Query(
		`SELECT id, task_id, description, payload, automatic, created_at
		 FROM checkpoints WHERE task_id = ? ORDER BY created_at DESC LIMIT ?`,
		taskID, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("checkpoint list query failed: %w", err)
	}
	defer rows.Close()

	var cps []marathon.Checkpoint
	for rows.Next() {
		cp, err := scanCheckpoint(rows)
		if err != nil {
			continue
		}
		cps = append(cps, cp)
	}
	return cps, rows.Err()
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

func scanCheckpoint(row rowScanner) (marathon.Checkpoint, error) {
	var cp marathon.Checkpoint
	var payload sql.NullString
	var automatic int
	if err := row.Scan(&cp.ID, &cp.TaskID, &cp.Description, &payload, &automatic, &cp.CreatedAt); err != nil {
		if err == sql.ErrNoRows {
			return cp, fmt.Errorf("checkpoint not found: %w", err)
		}
		return cp, err
	}
	if payload.Valid && payload.String != "" {
		_ = json.Unmarshal([]byte(payload.String), &cp.Payload)
	}
	cp.Automatic = automatic != 0
	return cp, nil
}

// =============================================================================
// STRUCTURED RECORDS + SESSION ARCHIVE
// =============================================================================

// StoreRecord appends a structured record into the named logical table.
func (s *LocalStore) StoreRecord(table string, payload map[string]interface{}) (int64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	blob, err := json.Marshal(payload)
	if err != nil {
		return 0, fmt.Errorf("failed to marshal record: %w", err)
	}

	res, err := s.db.Exec(
		`INSERT INTO records (table_name, payload) VALUES (?, ?)`,
		table, string(blob),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to store record: %w", err)
	}
	return res.LastInsertId()
}

// SaveSession persists a finalized session record.
func (s *LocalStore) SaveSession(id string, record []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	_, err := s.db.Exec(
		`INSERT OR REPLACE INTO sessions (id, record) VALUES (?, ?)`,
		id, string(record),
	)
	if err != nil {
		return fmt.Errorf("failed to save session: %w", err)
	}

	logging.Store("session persisted: %s (%d bytes)", id, len(record))
	return nil
}

// LoadSession retrieves a persisted session record by id.
func (s *LocalStore) LoadSession(id string) ([]byte, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	var record string
	err := s.db.QueryRow(`SELECT record FROM sessions WHERE id = ?`, id).Scan(&record)
	if err != nil {
		if err == sql.ErrNoRows {
			return nil, fmt.Errorf("session not found: %s", id)
		}
		return nil, err
	}
	return []byte(record), nil
}
