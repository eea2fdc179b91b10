package domain

import "time"

// EventType discriminates realtime frames
type EventType string

const (
	EventConnected      EventType = "connected"
	EventJoinRoom       EventType = "joinRoom"
	EventJoined         EventType = "joined"
	EventMessage        EventType = "message"
	EventStartSession   EventType = "startSession"
	EventSessionStarted EventType = "sessionStarted"
	EventPing           EventType = "ping"
	EventPong           EventType = "pong"
	EventError          EventType = "error"
)

// Event is a realtime frame, in either direction
type Event struct {
	Type         EventType  `json:"type"`
	SessionID    string     `json:"sessionId,omitempty"`
	ConnectionID string     `json:"connectionId,omitempty"`
	User         string     `json:"user,omitempty"`
	Agent        string     `json:"agent,omitempty"`
	Sender       string     `json:"sender,omitempty"`
	Text         string     `json:"text,omitempty"`
	Timestamp    *time.Time `json:"timestamp,omitempty"`
	Error        string     `json:"error,omitempty"`
}

// MessageEvent builds the broadcast frame for a persisted message
func MessageEvent(sessionID string, msg Message) Event {
	ts := msg.Timestamp
	return Event{
		Type:      EventMessage,
		SessionID: sessionID,
		Sender:    msg.Sender,
		Text:      msg.Text,
		Timestamp: &ts,
	}
}
