package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/Rrens/support-chat/internal/config"
	"github.com/Rrens/support-chat/internal/domain"
	"github.com/Rrens/support-chat/internal/realtime"
	"github.com/Rrens/support-chat/internal/repository/sqlite"
	"github.com/coder/websocket"
	"github.com/coder/websocket/wsjson"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type envelope struct {
	Success bool            `json:"success"`
	Data    json.RawMessage `json:"data"`
	Error   any             `json:"error"`
}

type testServer struct {
	*httptest.Server
	agents *sqlite.AgentRepository
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			MiddlewareTimeout: 5 * time.Second,
			AllowedOrigins:    []string{"*"},
		},
		Auth: config.AuthConfig{
			JWTSecret:     "test-secret",
			TokenTTL:      time.Hour,
			AdminEmail:    "admin@shop.test",
			AdminPassword: "admin-pass",
		},
		Chat: config.ChatConfig{
			StartLockTTL:     time.Second,
			MaxMessageLength: 200,
			SendBuffer:       8,
			WriteTimeout:     time.Second,
			MessagesPerSec:   100,
			MessageBurst:     100,
		},
	}
}

func newTestServer(t *testing.T, agentEmails ...string) *testServer {
	t.Helper()
	ctx := context.Background()

	db, err := sqlite.NewDB(ctx, sqlite.MemoryPath)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })

	agents := sqlite.NewAgentRepository(db)
	now := time.Now().UTC()
	for i, email := range agentEmails {
		at := now.Add(time.Duration(i) * time.Millisecond)
		require.NoError(t, agents.Create(ctx, &domain.Agent{
			Name: email, Email: email, PasswordHash: "x", CreatedAt: at, UpdatedAt: at,
		}))
	}

	router := NewRouter(testConfig(), Dependencies{
		Agents:   agents,
		Sessions: sqlite.NewSessionRepository(db),
		Hub:      realtime.NewHub(nil),
	})

	srv := httptest.NewServer(router)
	t.Cleanup(srv.Close)
	return &testServer{Server: srv, agents: agents}
}

func (s *testServer) do(t *testing.T, method, path, token string, body any) (int, envelope) {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req, err := http.NewRequest(method, s.URL+path, &buf)
	require.NoError(t, err)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()

	var env envelope
	if resp.StatusCode != http.StatusNoContent {
		require.NoError(t, json.NewDecoder(resp.Body).Decode(&env))
	}
	return resp.StatusCode, env
}

func (s *testServer) dial(t *testing.T) (*websocket.Conn, string) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	conn, _, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(s.URL, "http")+"/ws", nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close(websocket.StatusNormalClosure, "") })

	connected := readEvent(t, conn)
	require.Equal(t, domain.EventConnected, connected.Type)
	require.NotEmpty(t, connected.ConnectionID)
	return conn, connected.ConnectionID
}

func readEvent(t *testing.T, conn *websocket.Conn) domain.Event {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	var event domain.Event
	require.NoError(t, wsjson.Read(ctx, conn, &event))
	return event
}

func decode[T any](t *testing.T, raw json.RawMessage) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(raw, &v))
	return v
}

type startData struct {
	SessionID string `json:"sessionId"`
	Agent     string `json:"agent"`
	Reused    bool   `json:"reused"`
}

type messageData struct {
	SessionID string    `json:"sessionId"`
	Sender    string    `json:"sender"`
	Text      string    `json:"text"`
	Timestamp time.Time `json:"timestamp"`
}

func TestSupportChatFlow(t *testing.T) {
	srv := newTestServer(t, "a@x", "b@x")
	ws, connID := srv.dial(t)

	status, env := srv.do(t, http.MethodPost, "/api/v1/start-session", "", map[string]string{
		"user": "alice", "connectionId": connID,
	})
	require.Equal(t, http.StatusCreated, status)
	started := decode[startData](t, env.Data)
	assert.Contains(t, []string{"a@x", "b@x"}, started.Agent)
	assert.False(t, started.Reused)

	status, env = srv.do(t, http.MethodPost, "/api/v1/send-message", "", map[string]string{
		"sessionId": started.SessionID, "sender": "alice", "text": "hi",
	})
	require.Equal(t, http.StatusCreated, status)
	sent := decode[messageData](t, env.Data)
	assert.Equal(t, "hi", sent.Text)

	pushed := readEvent(t, ws)
	assert.Equal(t, domain.EventMessage, pushed.Type)
	assert.Equal(t, started.SessionID, pushed.SessionID)
	assert.Equal(t, "alice", pushed.Sender)
	assert.Equal(t, "hi", pushed.Text)
	require.NotNil(t, pushed.Timestamp)
	assert.True(t, sent.Timestamp.Equal(*pushed.Timestamp))

	// same user again reuses the session
	status, env = srv.do(t, http.MethodPost, "/api/v1/start-session", "", map[string]string{"user": "alice"})
	require.Equal(t, http.StatusOK, status)
	again := decode[startData](t, env.Data)
	assert.Equal(t, started.SessionID, again.SessionID)
	assert.Equal(t, started.Agent, again.Agent)
	assert.True(t, again.Reused)

	status, env = srv.do(t, http.MethodGet, "/api/v1/session?user=alice", "", nil)
	require.Equal(t, http.StatusOK, status)
	history := decode[domain.ChatSession](t, env.Data)
	require.Len(t, history.Messages, 1)
	assert.Equal(t, "hi", history.Messages[0].Text)

	// unknown session: 404 and nothing pushed
	status, _ = srv.do(t, http.MethodPost, "/api/v1/send-message", "", map[string]string{
		"sessionId": "does-not-exist", "sender": "alice", "text": "lost",
	})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = srv.do(t, http.MethodPost, "/api/v1/send-message", "", map[string]string{
		"sessionId": "does-not-exist", "sender": "alice", "text": "   ",
	})
	assert.Equal(t, http.StatusNotFound, status)

	status, _ = srv.do(t, http.MethodGet, "/api/v1/session?user=bob", "", nil)
	assert.Equal(t, http.StatusNotFound, status)

	ctx, cancel := context.WithTimeout(context.Background(), 200*time.Millisecond)
	defer cancel()
	var extra domain.Event
	assert.Error(t, wsjson.Read(ctx, ws, &extra))
}

func TestLateJoinerSeesHistoryOnly(t *testing.T) {
	srv := newTestServer(t, "a@x")
	early, earlyID := srv.dial(t)

	_, env := srv.do(t, http.MethodPost, "/api/v1/start-session", "", map[string]string{
		"user": "alice", "connectionId": earlyID,
	})
	sessionID := decode[startData](t, env.Data).SessionID

	srv.do(t, http.MethodPost, "/api/v1/send-message", "", map[string]string{
		"sessionId": sessionID, "sender": "alice", "text": "first",
	})
	assert.Equal(t, "first", readEvent(t, early).Text)

	late, _ := srv.dial(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	require.NoError(t, wsjson.Write(ctx, late, domain.Event{Type: domain.EventJoinRoom, SessionID: sessionID}))
	joined := readEvent(t, late)
	assert.Equal(t, domain.EventJoined, joined.Type)

	require.NoError(t, wsjson.Write(ctx, late, domain.Event{
		Type: domain.EventMessage, SessionID: sessionID, Sender: "a@x", Text: "second",
	}))

	assert.Equal(t, "second", readEvent(t, early).Text)
	assert.Equal(t, "second", readEvent(t, late).Text)
}

func TestWebSocketStartSessionAndErrors(t *testing.T) {
	srv := newTestServer(t, "a@x")
	ws, _ := srv.dial(t)
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()

	require.NoError(t, wsjson.Write(ctx, ws, domain.Event{Type: domain.EventStartSession, User: "carol"}))
	started := readEvent(t, ws)
	assert.Equal(t, domain.EventSessionStarted, started.Type)
	assert.Equal(t, "a@x", started.Agent)
	assert.NotEmpty(t, started.SessionID)

	require.NoError(t, wsjson.Write(ctx, ws, domain.Event{Type: domain.EventJoinRoom, SessionID: "missing"}))
	failed := readEvent(t, ws)
	assert.Equal(t, domain.EventError, failed.Type)
	assert.Equal(t, "session not found", failed.Error)

	require.NoError(t, wsjson.Write(ctx, ws, domain.Event{Type: domain.EventPing}))
	assert.Equal(t, domain.EventPong, readEvent(t, ws).Type)
}

func TestStartSessionWithoutAgents(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, http.MethodPost, "/api/v1/start-session", "", map[string]string{"user": "alice"})
	assert.Equal(t, http.StatusServiceUnavailable, status)
	assert.Equal(t, "no agents available", env.Error)

	status, _ = srv.do(t, http.MethodGet, "/api/v1/session?user=alice", "", nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestRequestValidation(t *testing.T) {
	srv := newTestServer(t, "a@x")

	status, env := srv.do(t, http.MethodPost, "/api/v1/start-session", "", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, map[string]any{"User": "field is required"}, env.Error)

	_, env = srv.do(t, http.MethodPost, "/api/v1/start-session", "", map[string]string{"user": "alice"})
	sessionID := decode[startData](t, env.Data).SessionID

	status, env = srv.do(t, http.MethodPost, "/api/v1/send-message", "", map[string]string{
		"sessionId": sessionID, "sender": "alice", "text": strings.Repeat("x", 201),
	})
	assert.Equal(t, http.StatusBadRequest, status)
	assert.Equal(t, "message text exceeds 200 characters", env.Error)
}

func TestConsoleFlow(t *testing.T) {
	srv := newTestServer(t)

	status, _ := srv.do(t, http.MethodGet, "/api/v1/sessions", "", nil)
	assert.Equal(t, http.StatusUnauthorized, status)

	status, env := srv.do(t, http.MethodPost, "/api/v1/admin/login", "", map[string]string{
		"email": "admin@shop.test", "password": "admin-pass",
	})
	require.Equal(t, http.StatusOK, status)
	adminToken := decode[domain.Token](t, env.Data).AccessToken

	status, env = srv.do(t, http.MethodPost, "/api/v1/agents", adminToken, map[string]string{
		"name": "Ann", "email": "ann@shop.test", "password": "correct-horse",
	})
	require.Equal(t, http.StatusCreated, status)
	agent := decode[domain.Agent](t, env.Data)

	status, _ = srv.do(t, http.MethodPost, "/api/v1/agents", adminToken, map[string]string{
		"name": "Ann again", "email": "ann@shop.test", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusConflict, status)

	// the only agent receives the new session
	_, env = srv.do(t, http.MethodPost, "/api/v1/start-session", "", map[string]string{"user": "alice"})
	started := decode[startData](t, env.Data)
	assert.Equal(t, "ann@shop.test", started.Agent)

	status, env = srv.do(t, http.MethodPost, "/api/v1/agents/login", "", map[string]string{
		"email": "ann@shop.test", "password": "correct-horse",
	})
	require.Equal(t, http.StatusOK, status)
	agentToken := decode[domain.Token](t, env.Data).AccessToken

	status, env = srv.do(t, http.MethodGet, "/api/v1/agents/me", agentToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Equal(t, agent.ID, decode[domain.Agent](t, env.Data).ID)

	status, env = srv.do(t, http.MethodGet, "/api/v1/agents/me/sessions", agentToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.ChatSession](t, env.Data), 1)

	status, _ = srv.do(t, http.MethodGet, "/api/v1/sessions/"+started.SessionID, agentToken, nil)
	assert.Equal(t, http.StatusOK, status)

	status, _ = srv.do(t, http.MethodGet, "/api/v1/sessions", agentToken, nil)
	assert.Equal(t, http.StatusForbidden, status)

	status, env = srv.do(t, http.MethodGet, "/api/v1/sessions", adminToken, nil)
	require.Equal(t, http.StatusOK, status)
	assert.Len(t, decode[[]domain.ChatSession](t, env.Data), 1)

	status, _ = srv.do(t, http.MethodPut, "/api/v1/agents/me/password", agentToken, map[string]string{"password": "battery-staple"})
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = srv.do(t, http.MethodPost, "/api/v1/agents/login", "", map[string]string{
		"email": "ann@shop.test", "password": "correct-horse",
	})
	assert.Equal(t, http.StatusUnauthorized, status)

	status, _ = srv.do(t, http.MethodDelete, "/api/v1/agents/"+agent.ID, adminToken, nil)
	assert.Equal(t, http.StatusNoContent, status)

	status, _ = srv.do(t, http.MethodDelete, "/api/v1/agents/"+agent.ID, adminToken, nil)
	assert.Equal(t, http.StatusNotFound, status)
}

func TestHealthAndReady(t *testing.T) {
	srv := newTestServer(t)

	status, env := srv.do(t, http.MethodGet, "/api/v1/health", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.True(t, env.Success)

	status, env = srv.do(t, http.MethodGet, "/api/v1/ready", "", nil)
	assert.Equal(t, http.StatusOK, status)
	assert.Equal(t, map[string]string{"store": "ok", "status": "ready"}, decode[map[string]string](t, env.Data))
}
