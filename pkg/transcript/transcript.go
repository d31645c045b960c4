// Package transcript owns chat sessions and their message history. The
// orchestrator only appends and reads; deletion cascades to messages so no
// orphaned rows survive a session removal.
package transcript

import (
	"context"
	"time"
)

// Roles recorded in a transcript.
const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Session is one conversation.
type Session struct {
	ID        string
	CreatedAt time.Time
}

// Message is one transcript entry, ordered by CreatedAt within a session.
type Message struct {
	ID        string
	SessionID string
	Role      string
	Text      string
	CreatedAt time.Time
}

// Store is the transcript collaborator interface.
type Store interface {
	// EnsureSession creates the session if absent; idempotent.
	EnsureSession(ctx context.Context, sessionID string) error
	AppendMessage(ctx context.Context, sessionID, role, text string, at time.Time) (*Message, error)
	// GetHistory returns the session's messages, oldest first.
	GetHistory(ctx context.Context, sessionID string) ([]Message, error)
	ListSessions(ctx context.Context) ([]Session, error)
	// DeleteSession removes the session and all of its messages.
	DeleteSession(ctx context.Context, sessionID string) error
}
