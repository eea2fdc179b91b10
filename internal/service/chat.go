package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/metrics"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/rs/zerolog/log"
)

// Hub is the realtime fan-out the chat service joins connections to
type Hub interface {
	JoinRoom(connID, sessionID string) error
	Broadcast(ctx context.Context, event domain.Event) error
}

// Locker serializes session start for one user
type Locker interface {
	Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error)
}

// ChatService handles session start, message send and history reads
type ChatService struct {
	sessions  domain.SessionRepository
	counter   *LoadCounter
	policy    *LeastLoadedPolicy
	hub       Hub
	locker    Locker
	validator *security.TextValidator
	lockTTL   time.Duration
	now       func() time.Time
}

// NewChatService creates a new chat service. A nil locker disables the per-user start lock.
func NewChatService(
	sessions domain.SessionRepository,
	counter *LoadCounter,
	policy *LeastLoadedPolicy,
	hub Hub,
	locker Locker,
	validator *security.TextValidator,
	lockTTL time.Duration,
) *ChatService {
	return &ChatService{
		sessions:  sessions,
		counter:   counter,
		policy:    policy,
		hub:       hub,
		locker:    locker,
		validator: validator,
		lockTTL:   lockTTL,
		now:       func() time.Time { return time.Now().UTC().Truncate(time.Millisecond) },
	}
}

// Start returns the user's latest session or assigns a new one to the least loaded agent.
// A non-empty connID is joined to the session's room.
func (s *ChatService) Start(ctx context.Context, user, connID string) (*domain.StartResult, error) {
	user = strings.TrimSpace(user)
	if user == "" {
		return nil, fmt.Errorf("%w: user is required", domain.ErrInvalidInput)
	}

	release := s.acquire(ctx, user)
	defer release()

	existing, err := s.sessions.LatestByUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to look up session: %w", err)
	}
	if existing != nil {
		s.join(connID, existing.ID)
		metrics.SessionsStarted.WithLabelValues("reused").Inc()
		return &domain.StartResult{Session: existing, Agent: existing.Agent, Reused: true}, nil
	}

	loads, err := s.counter.Count(ctx)
	if err != nil {
		return nil, err
	}

	agent, err := s.policy.Pick(loads)
	if err != nil {
		if errors.Is(err, domain.ErrNoAgentsAvailable) {
			metrics.SessionsStarted.WithLabelValues("no_agents").Inc()
		}
		return nil, err
	}

	now := s.now()
	session := &domain.ChatSession{
		User:      user,
		Agent:     agent,
		Messages:  []domain.Message{},
		CreatedAt: now,
		UpdatedAt: now,
	}
	if err := s.sessions.Create(ctx, session); err != nil {
		return nil, fmt.Errorf("failed to create session: %w", err)
	}

	log.Info().
		Str("session_id", session.ID).
		Str("user", user).
		Str("agent", agent).
		Msg("Chat session assigned")

	s.join(connID, session.ID)
	metrics.SessionsStarted.WithLabelValues("created").Inc()

	return &domain.StartResult{Session: session, Agent: agent}, nil
}

// acquire takes the per-user start lock; on failure start proceeds unlocked
func (s *ChatService) acquire(ctx context.Context, user string) func() {
	if s.locker == nil {
		return func() {}
	}

	lockCtx, cancel := context.WithTimeout(ctx, s.lockTTL)
	defer cancel()

	release, err := s.locker.Acquire(lockCtx, user, s.lockTTL)
	if err != nil {
		metrics.StartLockFailures.Inc()
		log.Warn().Err(err).Str("user", user).Msg("Start lock unavailable, continuing without it")
		return func() {}
	}
	return release
}

// join attaches a live connection to a room. A vanished connection does not fail the start.
func (s *ChatService) join(connID, sessionID string) {
	if connID == "" {
		return
	}
	if err := s.hub.JoinRoom(connID, sessionID); err != nil {
		log.Warn().Err(err).Str("connection_id", connID).Str("session_id", sessionID).Msg("Failed to join room")
	}
}

// Send persists a message and then broadcasts it to the session's room
func (s *ChatService) Send(ctx context.Context, sessionID, sender, text string) (*domain.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, domain.ErrSessionNotFound
	}
	text, err := s.prepare(sender, text)
	if err != nil {
		// an unknown session outranks a bad body
		if _, getErr := s.sessions.Get(ctx, sessionID); getErr != nil {
			return nil, getErr
		}
		return nil, err
	}
	sender = strings.TrimSpace(sender)

	msg := domain.Message{Sender: sender, Text: text, Timestamp: s.now()}
	if err := s.sessions.AppendMessage(ctx, sessionID, msg); err != nil {
		return nil, fmt.Errorf("failed to append message: %w", err)
	}
	metrics.MessagesPersisted.Inc()

	// persisted already; a failed broadcast is not the sender's error
	if err := s.hub.Broadcast(ctx, domain.MessageEvent(sessionID, msg)); err != nil {
		log.Warn().Err(err).Str("session_id", sessionID).Msg("Broadcast failed")
	}

	return &msg, nil
}

func (s *ChatService) prepare(sender, text string) (string, error) {
	if strings.TrimSpace(sender) == "" {
		return "", fmt.Errorf("%w: sender is required", domain.ErrInvalidInput)
	}
	return s.validator.Prepare(text)
}

// Join attaches connID to an existing session's room
func (s *ChatService) Join(ctx context.Context, connID, sessionID string) error {
	if _, err := s.sessions.Get(ctx, sessionID); err != nil {
		return err
	}
	return s.hub.JoinRoom(connID, sessionID)
}

// ListSessions returns every session, newest first
func (s *ChatService) ListSessions(ctx context.Context) ([]domain.ChatSession, error) {
	sessions, err := s.sessions.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// LatestSession returns the user's most recent session or ErrSessionNotFound
func (s *ChatService) LatestSession(ctx context.Context, user string) (*domain.ChatSession, error) {
	session, err := s.sessions.LatestByUser(ctx, user)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	if session == nil {
		return nil, domain.ErrSessionNotFound
	}
	return session, nil
}

// GetSession returns one session with its history
func (s *ChatService) GetSession(ctx context.Context, id string) (*domain.ChatSession, error) {
	return s.sessions.Get(ctx, id)
}

// ListAgentSessions returns the sessions assigned to an agent
func (s *ChatService) ListAgentSessions(ctx context.Context, agentEmail string) ([]domain.ChatSession, error) {
	sessions, err := s.sessions.ListByAgent(ctx, agentEmail)
	if err != nil {
		return nil, fmt.Errorf("failed to list agent sessions: %w", err)
	}
	return sessions, nil
}
