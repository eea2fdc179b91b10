package domain

import (
	"context"
	"time"
)

// Message is one entry of a session's append-only log
type Message struct {
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

// ChatSession is a support conversation between one user and one assigned agent.
// The agent is fixed at creation; only Messages grows afterwards.
type ChatSession struct {
	ID        string    `json:"id"`
	User      string    `json:"user"`
	Agent     string    `json:"agent"`
	Messages  []Message `json:"messages"`
	CreatedAt time.Time `json:"createdAt"`
	UpdatedAt time.Time `json:"updatedAt"`
}

// AgentLoad is the number of sessions currently assigned to an agent
type AgentLoad struct {
	Agent    string `json:"agent"`
	Sessions int64  `json:"sessions"`
}

// StartResult is returned when a user requests a support session
type StartResult struct {
	Session *ChatSession `json:"-"`
	Agent   string       `json:"agent"`
	Reused  bool         `json:"reused"`
}

// StartSessionRequest is the body of POST /start-session
type StartSessionRequest struct {
	User         string `json:"user" validate:"required,max=255"`
	ConnectionID string `json:"connectionId,omitempty" validate:"max=64"`
}

// SendMessageRequest is the body of POST /send-message
type SendMessageRequest struct {
	SessionID string `json:"sessionId" validate:"required,max=64"`
	Sender    string `json:"sender" validate:"required,max=255"`
	Text      string `json:"text" validate:"required"`
}

// SessionRepository is the chat session store
type SessionRepository interface {
	// Create persists a new session with an empty log and sets its ID.
	Create(ctx context.Context, session *ChatSession) error

	// AppendMessage pushes msg onto the session log.
	// Returns ErrSessionNotFound without mutating anything if the id is unknown.
	AppendMessage(ctx context.Context, sessionID string, msg Message) error

	Get(ctx context.Context, id string) (*ChatSession, error)

	// LatestByUser returns the most recently created session for user, or nil.
	LatestByUser(ctx context.Context, user string) (*ChatSession, error)

	List(ctx context.Context) ([]ChatSession, error)
	ListByAgent(ctx context.Context, agentEmail string) ([]ChatSession, error)

	// CountByAgent returns the number of sessions assigned to each given agent.
	// Agents with no sessions may be missing from the result.
	CountByAgent(ctx context.Context, agentEmails []string) (map[string]int64, error)

	Ping(ctx context.Context) error
}
