package realtime

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/metrics"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/rs/zerolog/log"
)

// SessionService is the chat façade the WebSocket handler drives
type SessionService interface {
	Start(ctx context.Context, user, connID string) (*domain.StartResult, error)
	Send(ctx context.Context, sessionID, sender, text string) (*domain.Message, error)
	Join(ctx context.Context, connID, sessionID string) error
}

// Handler upgrades HTTP requests to WebSocket connections registered with the hub
type Handler struct {
	hub            *Hub
	chat           SessionService
	cfg            config.ChatConfig
	originPatterns []string
	opTimeout      time.Duration
}

// NewHandler creates a new WebSocket handler
func NewHandler(hub *Hub, chat SessionService, cfg config.ChatConfig, allowedOrigins []string, opTimeout time.Duration) *Handler {
	return &Handler{
		hub:            hub,
		chat:           chat,
		cfg:            cfg,
		originPatterns: originPatterns(allowedOrigins),
		opTimeout:      opTimeout,
	}
}

// originPatterns turns configured CORS origins into host patterns for websocket.Accept
func originPatterns(origins []string) []string {
	patterns := make([]string, 0, len(origins))
	for _, o := range origins {
		o = strings.TrimPrefix(o, "https://")
		o = strings.TrimPrefix(o, "http://")
		if o != "" {
			patterns = append(patterns, o)
		}
	}
	return patterns
}

// ServeHTTP implements http.Handler
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ws, err := websocket.Accept(w, r, &websocket.AcceptOptions{
		OriginPatterns: h.originPatterns,
	})
	if err != nil {
		log.Warn().Err(err).Str("remote_addr", r.RemoteAddr).Msg("Failed to accept WebSocket")
		return
	}
	defer ws.Close(websocket.StatusNormalClosure, "")

	// r.Context() is not used: the connection outlives the timeout middleware's deadline
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	c := newClient(ws, h.cfg.SendBuffer, h.cfg.MessagesPerSec, h.cfg.MessageBurst, h.cfg.WriteTimeout)
	h.hub.Register(c)
	defer h.hub.OnDisconnect(c.id)

	log.Debug().Str("connection_id", c.id).Str("remote_addr", r.RemoteAddr).Msg("WebSocket connected")

	c.Send(domain.Event{Type: domain.EventConnected, ConnectionID: c.id})

	go func() {
		defer cancel()
		c.writeLoop(ctx)
	}()

	h.readLoop(ctx, c)
	log.Debug().Str("connection_id", c.id).Msg("WebSocket disconnected")
}

func (h *Handler) readLoop(ctx context.Context, c *client) {
	for {
		var in domain.Event
		if err := wsjson.Read(ctx, c.ws, &in); err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				log.Debug().Err(err).Str("connection_id", c.id).Msg("WebSocket read ended")
			}
			return
		}

		if !c.limiter.Allow() {
			metrics.RateLimitHits.WithLabelValues("ws").Inc()
			c.Send(errorEvent(in.SessionID, "rate limit exceeded"))
			continue
		}

		if out, ok := h.dispatch(ctx, c, in); ok {
			c.Send(out)
		}
	}
}

// dispatch handles one inbound frame and returns the reply to queue, if any
func (h *Handler) dispatch(ctx context.Context, c *client, in domain.Event) (domain.Event, bool) {
	opCtx, cancel := context.WithTimeout(ctx, h.opTimeout)
	defer cancel()

	switch in.Type {
	case domain.EventPing:
		return domain.Event{Type: domain.EventPong}, true

	case domain.EventJoinRoom:
		if in.SessionID == "" {
			return errorEvent("", "sessionId is required"), true
		}
		if err := h.chat.Join(opCtx, c.id, in.SessionID); err != nil {
			return errorEvent(in.SessionID, errorMessage(err)), true
		}
		return domain.Event{Type: domain.EventJoined, SessionID: in.SessionID}, true

	case domain.EventMessage:
		if in.SessionID == "" {
			return errorEvent("", "sessionId is required"), true
		}
		// the sender receives its own message through the room broadcast
		if _, err := h.chat.Send(opCtx, in.SessionID, in.Sender, in.Text); err != nil {
			return errorEvent(in.SessionID, errorMessage(err)), true
		}
		return domain.Event{}, false

	case domain.EventStartSession:
		res, err := h.chat.Start(opCtx, in.User, c.id)
		if err != nil {
			return errorEvent("", errorMessage(err)), true
		}
		return domain.Event{
			Type:      domain.EventSessionStarted,
			SessionID: res.Session.ID,
			Agent:     res.Agent,
		}, true

	default:
		return errorEvent(in.SessionID, "unknown event type"), true
	}
}

func errorEvent(sessionID, msg string) domain.Event {
	return domain.Event{Type: domain.EventError, SessionID: sessionID, Error: msg}
}

// errorMessage exposes validation errors and domain sentinels; anything else stays generic
func errorMessage(err error) string {
	var validationErr *security.ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Message
	}
	for _, sentinel := range []error{
		domain.ErrSessionNotFound,
		domain.ErrNoAgentsAvailable,
		domain.ErrStoreUnavailable,
		domain.ErrInvalidInput,
	} {
		if errors.Is(err, sentinel) {
			return sentinel.Error()
		}
	}
	return "internal error"
}
