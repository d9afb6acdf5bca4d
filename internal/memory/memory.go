// Package memory keeps a bounded, persisted record of conversation turns.
//
// History is stored as a JSON array on disk and reloaded at startup, so
// conversational context survives process restarts. The store is safe
// for concurrent use.
package memory

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"

	"go.uber.org/zap"
)

// NoHistory is the sentinel returned when no turns are recorded. Prompt
// builders include it verbatim so the model sees an explicit statement
// instead of an empty block.
const NoHistory = "No conversation history."

// Turn is one query/response exchange.
type Turn struct {
	Query    string `json:"query"`
	Response string `json:"response"`
}

// Memory is a bounded FIFO of conversation turns persisted to a JSON file.
type Memory struct {
	mu         sync.Mutex
	turns      []Turn
	maxHistory int
	path       string
	logger     *zap.Logger
}

// New creates a Memory backed by the file at path, loading any existing
// history. A corrupt or unreadable file is logged and treated as empty
// rather than failing startup. An empty path disables persistence and
// keeps history in memory only.
func New(path string, maxHistory int, logger *zap.Logger) *Memory {
	if maxHistory <= 0 {
		maxHistory = 10
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	m := &Memory{
		maxHistory: maxHistory,
		path:       path,
		logger:     logger,
	}
	m.load()
	return m
}

func (m *Memory) load() {
	if m.path == "" {
		return
	}

	data, err := os.ReadFile(m.path)
	if err != nil {
		if !os.IsNotExist(err) {
			m.logger.Warn("failed to read conversation history, starting empty",
				zap.String("path", m.path), zap.Error(err))
		}
		return
	}

	var turns []Turn
	if err := json.Unmarshal(data, &turns); err != nil {
		m.logger.Warn("corrupt conversation history, starting empty",
			zap.String("path", m.path), zap.Error(err))
		return
	}

	if len(turns) > m.maxHistory {
		turns = turns[len(turns)-m.maxHistory:]
	}
	m.turns = turns
}

// AddInteraction records a query/response turn, evicting the oldest
// turns beyond the history limit, and persists the result. Persistence
// failures are logged; the in-memory history is still updated.
func (m *Memory) AddInteraction(query, response string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = append(m.turns, Turn{Query: query, Response: response})
	if len(m.turns) > m.maxHistory {
		m.turns = m.turns[len(m.turns)-m.maxHistory:]
	}

	if err := m.persist(); err != nil {
		m.logger.Warn("failed to persist conversation history",
			zap.String("path", m.path), zap.Error(err))
	}
}

// persist writes the history atomically via a temp file rename, or does
// nothing when persistence is disabled. Caller must hold m.mu.
func (m *Memory) persist() error {
	if m.path == "" {
		return nil
	}

	data, err := json.MarshalIndent(m.turns, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding history: %w", err)
	}

	dir := filepath.Dir(m.path)
	if err := os.MkdirAll(dir, 0700); err != nil {
		return fmt.Errorf("creating history directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".history-*.json")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("writing history: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Rename(tmpName, m.path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("replacing history file: %w", err)
	}
	return nil
}

// HistoryText renders the history as numbered query/response pairs for
// prompt inclusion. Returns NoHistory when empty.
func (m *Memory) HistoryText() string {
	m.mu.Lock()
	defer m.mu.Unlock()

	if len(m.turns) == 0 {
		return NoHistory
	}

	var b strings.Builder
	for i, t := range m.turns {
		fmt.Fprintf(&b, "User Query %d: %s\n", i+1, t.Query)
		fmt.Fprintf(&b, "Assistant Response %d: %s\n\n", i+1, t.Response)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Clear discards all history and removes the backing file. Clearing an
// already empty memory is a no-op.
func (m *Memory) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.turns = nil
	if m.path == "" {
		return
	}
	if err := os.Remove(m.path); err != nil && !os.IsNotExist(err) {
		m.logger.Warn("failed to remove conversation history file",
			zap.String("path", m.path), zap.Error(err))
	}
}

// Len returns the number of recorded turns.
func (m *Memory) Len() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.turns)
}

// Turns returns a copy of the recorded turns, oldest first.
func (m *Memory) Turns() []Turn {
	m.mu.Lock()
	defer m.mu.Unlock()
	out := make([]Turn, len(m.turns))
	copy(out, m.turns)
	return out
}
