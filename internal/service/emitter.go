package service

import (
	"context"
	"sync"
)

// ─────────────────────────────────────────────────────────────
// EventEmitter: decouples services from the transport
// ─────────────────────────────────────────────────────────────

// EventDatabaseChanged is emitted after every committed mutation.
const EventDatabaseChanged = "tablestore/database-changed"

// DatabaseChange is the payload of EventDatabaseChanged.
type DatabaseChange struct {
	DatabaseID string   `json:"databaseId"`
	Operation  string   `json:"operation"`
	RowIDs     []string `json:"rowIds,omitempty"`
}

// EventEmitter pushes change events to connected clients. The MCP server
// implements it with client notifications; tests use MockEmitter.
type EventEmitter interface {
	Emit(ctx context.Context, event string, data any)
}

type nopEmitter struct{}

func (nopEmitter) Emit(context.Context, string, any) {}

// MockEmitter is a test-friendly EventEmitter that records all calls.
type MockEmitter struct {
	mu     sync.Mutex
	Events []EmittedEvent
}

// EmittedEvent holds a single recorded emission for test assertions.
type EmittedEvent struct {
	Event string
	Data  any
}

func (m *MockEmitter) Emit(_ context.Context, event string, data any) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.Events = append(m.Events, EmittedEvent{Event: event, Data: data})
}

// Changes returns the DatabaseChange payloads recorded so far.
func (m *MockEmitter) Changes() []DatabaseChange {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []DatabaseChange
	for _, e := range m.Events {
		if c, ok := e.Data.(DatabaseChange); ok {
			out = append(out, c)
		}
	}
	return out
}
