package handler

import (
	"net/http"
	"strings"

	"github.com/Rrens/support-chat/internal/api/middleware"
	"github.com/Rrens/support-chat/internal/api/response"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/Rrens/support-chat/internal/service"
	"github.com/go-chi/chi/v5"
)

// ChatHandler handles support session endpoints
type ChatHandler struct {
	chatService *service.ChatService
}

// NewChatHandler creates a new chat handler
func NewChatHandler(chatService *service.ChatService) *ChatHandler {
	return &ChatHandler{chatService: chatService}
}

type startSessionResponse struct {
	SessionID string `json:"sessionId"`
	Agent     string `json:"agent"`
	Reused    bool   `json:"reused"`
}

type messageResponse struct {
	SessionID string `json:"sessionId"`
	domain.Message
}

// StartSession assigns or reuses a session for a user
func (h *ChatHandler) StartSession(w http.ResponseWriter, r *http.Request) {
	var input domain.StartSessionRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	res, err := h.chatService.Start(r.Context(), input.User, input.ConnectionID)
	if err != nil {
		response.FromError(w, err)
		return
	}

	status := http.StatusCreated
	if res.Reused {
		status = http.StatusOK
	}
	response.JSON(w, status, startSessionResponse{
		SessionID: res.Session.ID,
		Agent:     res.Agent,
		Reused:    res.Reused,
	})
}

// SendMessage persists a message and broadcasts it to the session room
func (h *ChatHandler) SendMessage(w http.ResponseWriter, r *http.Request) {
	var input domain.SendMessageRequest
	if !decodeJSON(w, r, &input) {
		return
	}

	msg, err := h.chatService.Send(r.Context(), input.SessionID, input.Sender, input.Text)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, messageResponse{SessionID: input.SessionID, Message: *msg})
}

// ListSessions returns every session
func (h *ChatHandler) ListSessions(w http.ResponseWriter, r *http.Request) {
	sessions, err := h.chatService.ListSessions(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, sessions)
}

// LatestSession returns the most recent session for ?user=
func (h *ChatHandler) LatestSession(w http.ResponseWriter, r *http.Request) {
	user := strings.TrimSpace(r.URL.Query().Get("user"))
	if user == "" {
		response.BadRequest(w, map[string]string{"user": "field is required"})
		return
	}

	session, err := h.chatService.LatestSession(r.Context(), user)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, session)
}

// GetSession returns one session. Agents may only read sessions assigned to them.
func (h *ChatHandler) GetSession(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	session, err := h.chatService.GetSession(r.Context(), chi.URLParam(r, "sessionID"))
	if err != nil {
		response.FromError(w, err)
		return
	}

	if claims.Role == security.RoleAgent && session.Agent != claims.Email {
		response.Forbidden(w, "session is assigned to another agent")
		return
	}

	response.OK(w, session)
}

// MySessions returns the sessions assigned to the authenticated agent
func (h *ChatHandler) MySessions(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	sessions, err := h.chatService.ListAgentSessions(r.Context(), claims.Email)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, sessions)
}
