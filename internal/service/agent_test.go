package service

import (
	"context"
	"testing"
	"time"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/security"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

func newAgentService(repo *MockAgentRepository) (*AgentService, *security.JWTManager) {
	jwtManager := security.NewJWTManager("test-secret", time.Hour)
	svc := NewAgentService(repo, jwtManager, config.AuthConfig{
		AdminEmail:    "admin@shop.test",
		AdminPassword: "admin-pass",
	})
	return svc, jwtManager
}

func TestAgentService_Login(t *testing.T) {
	ctx := context.Background()
	hash, err := bcrypt.GenerateFromPassword([]byte("correct-horse"), bcrypt.MinCost)
	require.NoError(t, err)
	agent := &domain.Agent{ID: "ag-1", Email: "ann@shop.test", PasswordHash: string(hash)}

	t.Run("success", func(t *testing.T) {
		repo := new(MockAgentRepository)
		svc, jwtManager := newAgentService(repo)
		repo.On("GetByEmail", ctx, "ann@shop.test").Return(agent, nil)

		token, err := svc.Login(ctx, domain.AgentLogin{Email: " Ann@Shop.test ", Password: "correct-horse"})
		require.NoError(t, err)
		assert.Equal(t, security.RoleAgent, token.Role)
		assert.Equal(t, int64(3600), token.ExpiresIn)

		claims, err := jwtManager.Validate(token.AccessToken)
		require.NoError(t, err)
		assert.Equal(t, "ag-1", claims.Subject)
	})

	t.Run("wrong password", func(t *testing.T) {
		repo := new(MockAgentRepository)
		svc, _ := newAgentService(repo)
		repo.On("GetByEmail", ctx, "ann@shop.test").Return(agent, nil)

		_, err := svc.Login(ctx, domain.AgentLogin{Email: "ann@shop.test", Password: "nope"})
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})

	t.Run("unknown email", func(t *testing.T) {
		repo := new(MockAgentRepository)
		svc, _ := newAgentService(repo)
		repo.On("GetByEmail", ctx, "ghost@shop.test").Return(nil, nil)

		_, err := svc.Login(ctx, domain.AgentLogin{Email: "ghost@shop.test", Password: "x"})
		assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
	})
}

func TestAgentService_AdminLogin(t *testing.T) {
	svc, jwtManager := newAgentService(new(MockAgentRepository))

	token, err := svc.AdminLogin(domain.AgentLogin{Email: "ADMIN@shop.test", Password: "admin-pass"})
	require.NoError(t, err)
	claims, err := jwtManager.Validate(token.AccessToken)
	require.NoError(t, err)
	assert.Equal(t, security.RoleAdmin, claims.Role)

	_, err = svc.AdminLogin(domain.AgentLogin{Email: "admin@shop.test", Password: "wrong"})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)

	disabled := NewAgentService(new(MockAgentRepository), jwtManager, config.AuthConfig{})
	_, err = disabled.AdminLogin(domain.AgentLogin{})
	assert.ErrorIs(t, err, domain.ErrInvalidCredentials)
}

func TestAgentService_Create(t *testing.T) {
	ctx := context.Background()

	t.Run("hashes password", func(t *testing.T) {
		repo := new(MockAgentRepository)
		svc, _ := newAgentService(repo)
		repo.On("Create", ctx, mock.AnythingOfType("*domain.Agent")).Return(nil)

		agent, err := svc.Create(ctx, domain.AgentCreate{Name: " Ann ", Email: "Ann@Shop.test", Password: "correct-horse"})
		require.NoError(t, err)

		assert.Equal(t, "Ann", agent.Name)
		assert.Equal(t, "ann@shop.test", agent.Email)
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(agent.PasswordHash), []byte("correct-horse")))
	})

	t.Run("email taken", func(t *testing.T) {
		repo := new(MockAgentRepository)
		svc, _ := newAgentService(repo)
		repo.On("Create", ctx, mock.AnythingOfType("*domain.Agent")).Return(domain.ErrEmailTaken)

		_, err := svc.Create(ctx, domain.AgentCreate{Name: "Ann", Email: "ann@shop.test", Password: "correct-horse"})
		assert.ErrorIs(t, err, domain.ErrEmailTaken)
	})
}

func TestAgentService_ProfileAndMutations(t *testing.T) {
	ctx := context.Background()
	repo := new(MockAgentRepository)
	svc, _ := newAgentService(repo)

	repo.On("GetByID", ctx, "missing").Return(nil, nil)
	repo.On("UpdatePassword", ctx, "ag-1", mock.AnythingOfType("string"), mock.AnythingOfType("time.Time")).Return(nil)
	repo.On("Delete", ctx, "missing").Return(domain.ErrAgentNotFound)

	_, err := svc.Profile(ctx, "missing")
	assert.ErrorIs(t, err, domain.ErrAgentNotFound)

	assert.NoError(t, svc.RotatePassword(ctx, "ag-1", "new-password"))
	assert.ErrorIs(t, svc.Delete(ctx, "missing"), domain.ErrAgentNotFound)

	hash := repo.Calls[1].Arguments.String(2)
	assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(hash), []byte("new-password")))
}
