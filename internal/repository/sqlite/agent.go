package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/google/uuid"
)

// AgentRepository implements domain.AgentRepository
type AgentRepository struct {
	db *DB
}

// NewAgentRepository creates a new agent repository
func NewAgentRepository(db *DB) *AgentRepository {
	return &AgentRepository{db: db}
}

func (r *AgentRepository) Create(ctx context.Context, agent *domain.Agent) error {
	id := uuid.NewString()
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO agents (id, name, email, password, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		id, agent.Name, agent.Email, agent.PasswordHash,
		toMillis(agent.CreatedAt), toMillis(agent.UpdatedAt),
	)
	if err != nil {
		if isUniqueViolation(err) {
			return domain.ErrEmailTaken
		}
		return wrapErr("create agent", err)
	}
	agent.ID = id
	return nil
}

func (r *AgentRepository) GetByID(ctx context.Context, id string) (*domain.Agent, error) {
	return r.getOne(ctx, `WHERE id = ?`, id)
}

func (r *AgentRepository) GetByEmail(ctx context.Context, email string) (*domain.Agent, error) {
	return r.getOne(ctx, `WHERE email = ?`, email)
}

func (r *AgentRepository) getOne(ctx context.Context, where string, arg any) (*domain.Agent, error) {
	row := r.db.conn.QueryRowContext(ctx, `
		SELECT id, name, email, password, created_at, updated_at
		FROM agents `+where, arg)

	agent, err := scanAgent(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("get agent", err)
	}
	return agent, nil
}

func (r *AgentRepository) List(ctx context.Context) ([]domain.Agent, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT id, name, email, password, created_at, updated_at
		FROM agents
		ORDER BY created_at ASC, rowid ASC`)
	if err != nil {
		return nil, wrapErr("list agents", err)
	}
	defer rows.Close()

	agents := []domain.Agent{}
	for rows.Next() {
		agent, err := scanAgent(rows)
		if err != nil {
			return nil, wrapErr("scan agent", err)
		}
		agents = append(agents, *agent)
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("list agents", err)
	}
	return agents, nil
}

func (r *AgentRepository) UpdatePassword(ctx context.Context, id, passwordHash string, updatedAt time.Time) error {
	res, err := r.db.conn.ExecContext(ctx,
		`UPDATE agents SET password = ?, updated_at = ? WHERE id = ?`,
		passwordHash, toMillis(updatedAt), id,
	)
	if err != nil {
		return wrapErr("update agent password", err)
	}
	return expectOne(res, domain.ErrAgentNotFound)
}

func (r *AgentRepository) Delete(ctx context.Context, id string) error {
	res, err := r.db.conn.ExecContext(ctx, `DELETE FROM agents WHERE id = ?`, id)
	if err != nil {
		return wrapErr("delete agent", err)
	}
	return expectOne(res, domain.ErrAgentNotFound)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanAgent(s scanner) (*domain.Agent, error) {
	var a domain.Agent
	var createdAt, updatedAt int64
	if err := s.Scan(&a.ID, &a.Name, &a.Email, &a.PasswordHash, &createdAt, &updatedAt); err != nil {
		return nil, err
	}
	a.CreatedAt = fromMillis(createdAt)
	a.UpdatedAt = fromMillis(updatedAt)
	return &a, nil
}

func expectOne(res sql.Result, notFound error) error {
	n, err := res.RowsAffected()
	if err != nil {
		return wrapErr("read affected rows", err)
	}
	if n == 0 {
		return notFound
	}
	return nil
}
