package handler

import (
	"net/http"

	"github.com/Rrens/support-chat/internal/api/middleware"
	"github.com/Rrens/support-chat/internal/api/response"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/service"
	"github.com/go-chi/chi/v5"
)

// AgentHandler handles console authentication and agent directory endpoints
type AgentHandler struct {
	agentService *service.AgentService
}

// NewAgentHandler creates a new agent handler
func NewAgentHandler(agentService *service.AgentService) *AgentHandler {
	return &AgentHandler{agentService: agentService}
}

// Login handles agent login
func (h *AgentHandler) Login(w http.ResponseWriter, r *http.Request) {
	var input domain.AgentLogin
	if !decodeJSON(w, r, &input) {
		return
	}

	token, err := h.agentService.Login(r.Context(), input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, token)
}

// AdminLogin handles admin login
func (h *AgentHandler) AdminLogin(w http.ResponseWriter, r *http.Request) {
	var input domain.AgentLogin
	if !decodeJSON(w, r, &input) {
		return
	}

	token, err := h.agentService.AdminLogin(input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, token)
}

// Me returns the authenticated agent
func (h *AgentHandler) Me(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	agent, err := h.agentService.Profile(r.Context(), claims.Subject)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, agent)
}

// ChangeMyPassword rotates the authenticated agent's password
func (h *AgentHandler) ChangeMyPassword(w http.ResponseWriter, r *http.Request) {
	claims, ok := middleware.GetClaims(r.Context())
	if !ok {
		response.Unauthorized(w, "unauthorized")
		return
	}

	var input domain.PasswordChange
	if !decodeJSON(w, r, &input) {
		return
	}

	if err := h.agentService.RotatePassword(r.Context(), claims.Subject, input.Password); err != nil {
		response.FromError(w, err)
		return
	}

	response.NoContent(w)
}

// List returns all agents
func (h *AgentHandler) List(w http.ResponseWriter, r *http.Request) {
	agents, err := h.agentService.List(r.Context())
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.OK(w, agents)
}

// Create provisions an agent
func (h *AgentHandler) Create(w http.ResponseWriter, r *http.Request) {
	var input domain.AgentCreate
	if !decodeJSON(w, r, &input) {
		return
	}

	agent, err := h.agentService.Create(r.Context(), input)
	if err != nil {
		response.FromError(w, err)
		return
	}

	response.Created(w, agent)
}

// Delete removes an agent
func (h *AgentHandler) Delete(w http.ResponseWriter, r *http.Request) {
	if err := h.agentService.Delete(r.Context(), chi.URLParam(r, "agentID")); err != nil {
		response.FromError(w, err)
		return
	}

	response.NoContent(w)
}

// ResetPassword sets a new password for any agent
func (h *AgentHandler) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var input domain.PasswordChange
	if !decodeJSON(w, r, &input) {
		return
	}

	if err := h.agentService.RotatePassword(r.Context(), chi.URLParam(r, "agentID"), input.Password); err != nil {
		response.FromError(w, err)
		return
	}

	response.NoContent(w)
}
