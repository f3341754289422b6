// Package storage defines the persistence contract the orchestrator uses for
// conversation history: sessions own messages, messages own parts by id.
package storage

import (
	"context"
	"errors"
	"time"

	"github.com/harmonia-ai/loom/core"
	"github.com/harmonia-ai/loom/internal/ids"
)

// ErrNotFound reports a missing session or message. Backends wrap it so
// callers can distinguish absence from read failures.
var ErrNotFound = errors.New("not found")

// SessionMetadata carries caller-defined session attributes.
type SessionMetadata struct {
	UserID string         `json:"user_id,omitempty"`
	Tags   []string       `json:"tags,omitempty"`
	Custom map[string]any `json:"custom,omitempty"`
}

// Session groups the messages of one conversation.
type Session struct {
	ID        string          `json:"id"`
	Title     string          `json:"title,omitempty"`
	Metadata  SessionMetadata `json:"metadata"`
	CreatedAt time.Time       `json:"created_at"`
	UpdatedAt time.Time       `json:"updated_at"`
}

// MessageMetadata records generation context for assistant messages.
type MessageMetadata struct {
	ModelID      string            `json:"model_id,omitempty"`
	Provider     string            `json:"provider,omitempty"`
	Usage        core.Usage        `json:"usage,omitempty"`
	FinishReason core.FinishReason `json:"finish_reason,omitempty"`
	Custom       map[string]any    `json:"custom,omitempty"`
}

// Message references its session and owns its parts by ordered id list.
type Message struct {
	ID        string          `json:"id"`
	SessionID string          `json:"session_id"`
	Role      core.Role       `json:"role"`
	PartIDs   []string        `json:"part_ids"`
	Metadata  MessageMetadata `json:"metadata,omitempty"`
	CreatedAt time.Time       `json:"created_at"`
}

// Part wraps one typed content part with a stable id.
type Part struct {
	ID        string    `json:"id"`
	CreatedAt time.Time `json:"created_at"`
	Content   core.Part `json:"content"`
}

// Store is the persistence contract. Message writes are atomic with their
// parts. Deleting a session cascades to its messages and parts.
// PutUserMessage covers caller-side turns, which carry the user or tool role.
type Store interface {
	NewSessionID() string
	NewMessageID() string
	NewPartID() string

	PutSession(ctx context.Context, session Session) error
	GetSession(ctx context.Context, id string) (Session, error)
	ListSessions(ctx context.Context, limit int) ([]Session, error)
	DeleteSession(ctx context.Context, id string) error

	PutUserMessage(ctx context.Context, msg Message, parts []Part) error
	PutAssistantMessage(ctx context.Context, msg Message, parts []Part) error

	ListMessages(ctx context.Context, sessionID string, limit int) ([]string, error)
	GetMessage(ctx context.Context, sessionID, messageID string) (Message, []Part, error)
}

// IDGen provides the default prefixed-uuid id scheme. Backends embed it to
// inherit the generators.
type IDGen struct{}

func (IDGen) NewSessionID() string { return ids.NewPrefixed("ses_") }
func (IDGen) NewMessageID() string { return ids.NewPrefixed("msg_") }
func (IDGen) NewPartID() string    { return ids.NewPrefixed("prt_") }
