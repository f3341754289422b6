package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"
)

// MemoryStore is the in-memory reference backend. It is safe for concurrent
// use and intended for tests and embedded usage.
type MemoryStore struct {
	IDGen

	mu       sync.RWMutex
	sessions map[string]Session
	messages map[string]map[string]Message // session id -> message id -> message
	order    map[string][]string           // session id -> ordered message ids
	parts    map[string]map[string]Part    // message id -> part id -> part
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		sessions: make(map[string]Session),
		messages: make(map[string]map[string]Message),
		order:    make(map[string][]string),
		parts:    make(map[string]map[string]Part),
	}
}

func (m *MemoryStore) PutSession(ctx context.Context, session Session) error {
	if session.ID == "" {
		return fmt.Errorf("session id is required")
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if existing, ok := m.sessions[session.ID]; ok {
		session.CreatedAt = existing.CreatedAt
	} else if session.CreatedAt.IsZero() {
		session.CreatedAt = time.Now().UTC()
	}
	session.UpdatedAt = time.Now().UTC()
	m.sessions[session.ID] = session
	return nil
}

func (m *MemoryStore) GetSession(ctx context.Context, id string) (Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	session, ok := m.sessions[id]
	if !ok {
		return Session{}, fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	return session, nil
}

func (m *MemoryStore) ListSessions(ctx context.Context, limit int) ([]Session, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := make([]Session, 0, len(m.sessions))
	for _, session := range m.sessions {
		out = append(out, session)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].CreatedAt.Before(out[j].CreatedAt) })
	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func (m *MemoryStore) DeleteSession(ctx context.Context, id string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[id]; !ok {
		return fmt.Errorf("session %s: %w", id, ErrNotFound)
	}
	for msgID := range m.messages[id] {
		delete(m.parts, msgID)
	}
	delete(m.messages, id)
	delete(m.order, id)
	delete(m.sessions, id)
	return nil
}

func (m *MemoryStore) PutUserMessage(ctx context.Context, msg Message, parts []Part) error {
	return m.putMessage(msg, parts)
}

func (m *MemoryStore) PutAssistantMessage(ctx context.Context, msg Message, parts []Part) error {
	return m.putMessage(msg, parts)
}

func (m *MemoryStore) putMessage(msg Message, parts []Part) error {
	if msg.ID == "" || msg.SessionID == "" {
		return fmt.Errorf("message requires id and session id")
	}
	if len(msg.PartIDs) != len(parts) {
		return fmt.Errorf("message %s: part_ids and parts length mismatch", msg.ID)
	}
	for i, part := range parts {
		if part.ID != msg.PartIDs[i] {
			return fmt.Errorf("message %s: part_ids order mismatch at %d", msg.ID, i)
		}
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.sessions[msg.SessionID]; !ok {
		return fmt.Errorf("session %s: %w", msg.SessionID, ErrNotFound)
	}
	if msg.CreatedAt.IsZero() {
		msg.CreatedAt = time.Now().UTC()
	}

	byID := m.messages[msg.SessionID]
	if byID == nil {
		byID = make(map[string]Message)
		m.messages[msg.SessionID] = byID
	}
	if _, exists := byID[msg.ID]; !exists {
		m.order[msg.SessionID] = append(m.order[msg.SessionID], msg.ID)
	}
	byID[msg.ID] = msg

	stored := make(map[string]Part, len(parts))
	for _, part := range parts {
		if part.CreatedAt.IsZero() {
			part.CreatedAt = msg.CreatedAt
		}
		stored[part.ID] = part
	}
	m.parts[msg.ID] = stored

	session := m.sessions[msg.SessionID]
	session.UpdatedAt = time.Now().UTC()
	m.sessions[msg.SessionID] = session
	return nil
}

func (m *MemoryStore) ListMessages(ctx context.Context, sessionID string, limit int) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	if _, ok := m.sessions[sessionID]; !ok {
		return nil, fmt.Errorf("session %s: %w", sessionID, ErrNotFound)
	}
	order := m.order[sessionID]
	out := append([]string(nil), order...)
	if limit > 0 && len(out) > limit {
		out = out[len(out)-limit:]
	}
	return out, nil
}

func (m *MemoryStore) GetMessage(ctx context.Context, sessionID, messageID string) (Message, []Part, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	msg, ok := m.messages[sessionID][messageID]
	if !ok {
		return Message{}, nil, fmt.Errorf("message %s in session %s: %w", messageID, sessionID, ErrNotFound)
	}
	stored := m.parts[messageID]
	parts := make([]Part, 0, len(msg.PartIDs))
	for _, id := range msg.PartIDs {
		part, ok := stored[id]
		if !ok {
			return Message{}, nil, fmt.Errorf("message %s references missing part %s", messageID, id)
		}
		parts = append(parts, part)
	}
	return msg, parts, nil
}
