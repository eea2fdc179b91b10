package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAgentRepository_CRUD(t *testing.T) {
	repo := NewAgentRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now().UTC().Truncate(time.Millisecond)

	agent := &domain.Agent{Name: "Ann", Email: "ann@x", PasswordHash: "h1", CreatedAt: now, UpdatedAt: now}
	require.NoError(t, repo.Create(ctx, agent))
	assert.NotEmpty(t, agent.ID)

	byEmail, err := repo.GetByEmail(ctx, "ann@x")
	require.NoError(t, err)
	require.NotNil(t, byEmail)
	assert.Equal(t, agent.ID, byEmail.ID)
	assert.Equal(t, "h1", byEmail.PasswordHash)

	byID, err := repo.GetByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "Ann", byID.Name)

	require.NoError(t, repo.UpdatePassword(ctx, agent.ID, "h2", now.Add(time.Hour)))
	byID, err = repo.GetByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.Equal(t, "h2", byID.PasswordHash)

	require.NoError(t, repo.Delete(ctx, agent.ID))
	missing, err := repo.GetByID(ctx, agent.ID)
	require.NoError(t, err)
	assert.Nil(t, missing)
}

func TestAgentRepository_DuplicateEmail(t *testing.T) {
	repo := NewAgentRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	require.NoError(t, repo.Create(ctx, &domain.Agent{Name: "A", Email: "dup@x", PasswordHash: "h", CreatedAt: now, UpdatedAt: now}))
	err := repo.Create(ctx, &domain.Agent{Name: "B", Email: "dup@x", PasswordHash: "h", CreatedAt: now, UpdatedAt: now})
	assert.ErrorIs(t, err, domain.ErrEmailTaken)
}

func TestAgentRepository_ListOrder(t *testing.T) {
	repo := NewAgentRepository(newTestDB(t))
	ctx := context.Background()
	now := time.Now()

	for i, email := range []string{"a@x", "b@x", "c@x"} {
		at := now.Add(time.Duration(i) * time.Second)
		require.NoError(t, repo.Create(ctx, &domain.Agent{Name: email, Email: email, PasswordHash: "h", CreatedAt: at, UpdatedAt: at}))
	}

	agents, err := repo.List(ctx)
	require.NoError(t, err)
	require.Len(t, agents, 3)
	assert.Equal(t, "a@x", agents[0].Email)
	assert.Equal(t, "c@x", agents[2].Email)
}

func TestAgentRepository_MissingTargets(t *testing.T) {
	repo := NewAgentRepository(newTestDB(t))
	ctx := context.Background()

	assert.ErrorIs(t, repo.UpdatePassword(ctx, "nope", "h", time.Now()), domain.ErrAgentNotFound)
	assert.ErrorIs(t, repo.Delete(ctx, "nope"), domain.ErrAgentNotFound)
}
