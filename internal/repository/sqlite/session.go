package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"strings"

	"github.com/Rrens/support-chat/internal/domain"
	"github.com/google/uuid"
)

// SessionRepository implements domain.SessionRepository
type SessionRepository struct {
	db *DB
}

// NewSessionRepository creates a new session repository
func NewSessionRepository(db *DB) *SessionRepository {
	return &SessionRepository{db: db}
}

func (r *SessionRepository) Create(ctx context.Context, session *domain.ChatSession) error {
	id := uuid.NewString()
	_, err := r.db.conn.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, user_id, agent, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)`,
		id, session.User, session.Agent,
		toMillis(session.CreatedAt), toMillis(session.UpdatedAt),
	)
	if err != nil {
		return wrapErr("create session", err)
	}
	session.ID = id
	session.Messages = []domain.Message{}
	return nil
}

func (r *SessionRepository) AppendMessage(ctx context.Context, sessionID string, msg domain.Message) error {
	tx, err := r.db.conn.BeginTx(ctx, nil)
	if err != nil {
		return wrapErr("begin append", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`,
		toMillis(msg.Timestamp), sessionID,
	)
	if err != nil {
		return wrapErr("touch session", err)
	}
	if err := expectOne(res, domain.ErrSessionNotFound); err != nil {
		return err
	}

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO chat_messages (session_id, sender, text, timestamp)
		VALUES (?, ?, ?, ?)`,
		sessionID, msg.Sender, msg.Text, toMillis(msg.Timestamp),
	); err != nil {
		return wrapErr("append message", err)
	}

	if err := tx.Commit(); err != nil {
		return wrapErr("commit append", err)
	}
	return nil
}

func (r *SessionRepository) Get(ctx context.Context, id string) (*domain.ChatSession, error) {
	sessions, err := r.query(ctx, `WHERE s.id = ?`, id)
	if err != nil {
		return nil, err
	}
	if len(sessions) == 0 {
		return nil, domain.ErrSessionNotFound
	}
	return &sessions[0], nil
}

func (r *SessionRepository) LatestByUser(ctx context.Context, user string) (*domain.ChatSession, error) {
	var id string
	err := r.db.conn.QueryRowContext(ctx, `
		SELECT id FROM chat_sessions
		WHERE user_id = ?
		ORDER BY created_at DESC, rowid DESC
		LIMIT 1`, user).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, wrapErr("get latest session", err)
	}
	return r.Get(ctx, id)
}

func (r *SessionRepository) List(ctx context.Context) ([]domain.ChatSession, error) {
	return r.query(ctx, ``)
}

func (r *SessionRepository) ListByAgent(ctx context.Context, agentEmail string) ([]domain.ChatSession, error) {
	return r.query(ctx, `WHERE s.agent = ?`, agentEmail)
}

// query loads sessions matching where (aliased s) and their messages in two statements
func (r *SessionRepository) query(ctx context.Context, where string, args ...any) ([]domain.ChatSession, error) {
	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT s.id, s.user_id, s.agent, s.created_at, s.updated_at
		FROM chat_sessions s `+where+`
		ORDER BY s.created_at DESC, s.rowid DESC`, args...)
	if err != nil {
		return nil, wrapErr("list sessions", err)
	}

	sessions := []domain.ChatSession{}
	index := map[string]int{}
	for rows.Next() {
		var s domain.ChatSession
		var createdAt, updatedAt int64
		if err := rows.Scan(&s.ID, &s.User, &s.Agent, &createdAt, &updatedAt); err != nil {
			rows.Close()
			return nil, wrapErr("scan session", err)
		}
		s.CreatedAt = fromMillis(createdAt)
		s.UpdatedAt = fromMillis(updatedAt)
		s.Messages = []domain.Message{}
		index[s.ID] = len(sessions)
		sessions = append(sessions, s)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, wrapErr("list sessions", err)
	}
	rows.Close()

	if len(sessions) == 0 {
		return sessions, nil
	}

	msgRows, err := r.db.conn.QueryContext(ctx, `
		SELECT m.session_id, m.sender, m.text, m.timestamp
		FROM chat_messages m
		JOIN chat_sessions s ON s.id = m.session_id `+where+`
		ORDER BY m.seq ASC`, args...)
	if err != nil {
		return nil, wrapErr("list messages", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var sessionID string
		var m domain.Message
		var ts int64
		if err := msgRows.Scan(&sessionID, &m.Sender, &m.Text, &ts); err != nil {
			return nil, wrapErr("scan message", err)
		}
		m.Timestamp = fromMillis(ts)
		if i, ok := index[sessionID]; ok {
			sessions[i].Messages = append(sessions[i].Messages, m)
		}
	}
	if err := msgRows.Err(); err != nil {
		return nil, wrapErr("list messages", err)
	}

	return sessions, nil
}

func (r *SessionRepository) CountByAgent(ctx context.Context, agentEmails []string) (map[string]int64, error) {
	counts := make(map[string]int64, len(agentEmails))
	if len(agentEmails) == 0 {
		return counts, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(agentEmails)), ",")
	args := make([]any, len(agentEmails))
	for i, e := range agentEmails {
		args[i] = e
	}

	rows, err := r.db.conn.QueryContext(ctx, `
		SELECT agent, COUNT(*)
		FROM chat_sessions
		WHERE agent IN (`+placeholders+`)
		GROUP BY agent`, args...)
	if err != nil {
		return nil, wrapErr("count sessions by agent", err)
	}
	defer rows.Close()

	for rows.Next() {
		var agent string
		var n int64
		if err := rows.Scan(&agent, &n); err != nil {
			return nil, wrapErr("scan session count", err)
		}
		counts[agent] = n
	}
	if err := rows.Err(); err != nil {
		return nil, wrapErr("count sessions by agent", err)
	}
	return counts, nil
}

func (r *SessionRepository) Ping(ctx context.Context) error {
	return r.db.Ping(ctx)
}
