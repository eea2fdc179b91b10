package service

import (
	"context"
	"crypto/subtle"
	"fmt"
	"strings"
	"time"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/rs/zerolog/log"
	"golang.org/x/crypto/bcrypt"
)

const adminSubject = "admin"

// AgentService handles agent accounts and console authentication
type AgentService struct {
	agentRepo  domain.AgentRepository
	jwtManager *security.JWTManager
	authCfg    config.AuthConfig
}

// NewAgentService creates a new agent service
func NewAgentService(
	agentRepo domain.AgentRepository,
	jwtManager *security.JWTManager,
	authCfg config.AuthConfig,
) *AgentService {
	return &AgentService{
		agentRepo:  agentRepo,
		jwtManager: jwtManager,
		authCfg:    authCfg,
	}
}

// Login authenticates an agent and returns a bearer token
func (s *AgentService) Login(ctx context.Context, input domain.AgentLogin) (*domain.Token, error) {
	agent, err := s.agentRepo.GetByEmail(ctx, normalizeEmail(input.Email))
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if agent == nil {
		return nil, domain.ErrInvalidCredentials
	}

	if err := bcrypt.CompareHashAndPassword([]byte(agent.PasswordHash), []byte(input.Password)); err != nil {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issue(agent.ID, agent.Email, security.RoleAgent)
}

// AdminLogin checks the configured admin credentials.
// Admin login is disabled when either credential is unset.
func (s *AgentService) AdminLogin(input domain.AgentLogin) (*domain.Token, error) {
	if s.authCfg.AdminEmail == "" || s.authCfg.AdminPassword == "" {
		return nil, domain.ErrInvalidCredentials
	}

	emailOK := subtle.ConstantTimeCompare([]byte(normalizeEmail(input.Email)), []byte(normalizeEmail(s.authCfg.AdminEmail)))
	passOK := subtle.ConstantTimeCompare([]byte(input.Password), []byte(s.authCfg.AdminPassword))
	if emailOK&passOK != 1 {
		return nil, domain.ErrInvalidCredentials
	}

	return s.issue(adminSubject, s.authCfg.AdminEmail, security.RoleAdmin)
}

func (s *AgentService) issue(subject, email, role string) (*domain.Token, error) {
	token, err := s.jwtManager.Generate(subject, email, role)
	if err != nil {
		return nil, fmt.Errorf("failed to generate token: %w", err)
	}

	return &domain.Token{
		AccessToken: token,
		ExpiresIn:   int64(s.jwtManager.TTL().Seconds()),
		Role:        role,
	}, nil
}

// Profile returns the agent with the given id
func (s *AgentService) Profile(ctx context.Context, agentID string) (*domain.Agent, error) {
	agent, err := s.agentRepo.GetByID(ctx, agentID)
	if err != nil {
		return nil, fmt.Errorf("failed to get agent: %w", err)
	}
	if agent == nil {
		return nil, domain.ErrAgentNotFound
	}
	return agent, nil
}

// List returns the agent directory
func (s *AgentService) List(ctx context.Context) ([]domain.Agent, error) {
	agents, err := s.agentRepo.List(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list agents: %w", err)
	}
	return agents, nil
}

// Create provisions a new agent account
func (s *AgentService) Create(ctx context.Context, input domain.AgentCreate) (*domain.Agent, error) {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}

	now := time.Now().UTC()
	agent := &domain.Agent{
		Name:         strings.TrimSpace(input.Name),
		Email:        normalizeEmail(input.Email),
		PasswordHash: string(hashedPassword),
		CreatedAt:    now,
		UpdatedAt:    now,
	}

	if err := s.agentRepo.Create(ctx, agent); err != nil {
		return nil, fmt.Errorf("failed to create agent: %w", err)
	}

	log.Info().Str("agent_id", agent.ID).Str("email", agent.Email).Msg("Agent created")
	return agent, nil
}

// RotatePassword replaces an agent's credential
func (s *AgentService) RotatePassword(ctx context.Context, agentID, password string) error {
	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return fmt.Errorf("failed to hash password: %w", err)
	}

	if err := s.agentRepo.UpdatePassword(ctx, agentID, string(hashedPassword), time.Now().UTC()); err != nil {
		return fmt.Errorf("failed to update password: %w", err)
	}
	return nil
}

// Delete removes an agent from the directory. Existing sessions keep the agent's email.
func (s *AgentService) Delete(ctx context.Context, agentID string) error {
	if err := s.agentRepo.Delete(ctx, agentID); err != nil {
		return fmt.Errorf("failed to delete agent: %w", err)
	}
	log.Info().Str("agent_id", agentID).Msg("Agent deleted")
	return nil
}

func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
