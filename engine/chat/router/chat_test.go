package chatrouter

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskchat/taskchat/engine/agent"
	"github.com/taskchat/taskchat/engine/auth"
	"github.com/taskchat/taskchat/engine/conversation"
	"github.com/taskchat/taskchat/engine/infra/server/appstate"
	authmw "github.com/taskchat/taskchat/engine/infra/server/middleware/auth"
	"github.com/taskchat/taskchat/engine/infra/server/middleware/size"
	"github.com/taskchat/taskchat/engine/infra/sqlite"
	"github.com/taskchat/taskchat/engine/item"
	llmadapter "github.com/taskchat/taskchat/engine/llm/adapter"
	"github.com/taskchat/taskchat/engine/tool"
	"github.com/taskchat/taskchat/pkg/config"
)

const testBodyLimit = 64 << 10

type testServer struct {
	engine   *gin.Engine
	verifier *auth.Verifier
	items    *item.Service
}

func newTestServer(t *testing.T, steps ...llmadapter.ScriptedStep) *testServer {
	t.Helper()
	ctx := context.Background()
	db, err := sqlite.NewStore(ctx, &sqlite.Config{Path: filepath.Join(t.TempDir(), "chat.db")})
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close(ctx) })
	require.NoError(t, sqlite.ApplyMigrations(ctx, db.DB()))
	convs := conversation.NewStore(sqlite.NewConversationRepo(db.DB()))
	items := item.NewService(sqlite.NewItemRepo(db.DB()))
	registry, err := tool.NewRegistry(items)
	require.NoError(t, err)
	disp, err := agent.NewDispatcher(convs, registry, llmadapter.NewScriptedClient(steps...), agent.Config{
		MaxToolRounds:    5,
		RoundTimeout:     time.Second,
		RetryBackoff:     time.Millisecond,
		MaxMessageLength: 5000,
	})
	require.NoError(t, err)
	state, err := appstate.NewState(appstate.NewBaseDeps(nil, convs, disp))
	require.NoError(t, err)
	verifier, err := auth.NewVerifier(&config.AuthConfig{JWTSecret: "chat-secret", UserClaim: "sub"})
	require.NoError(t, err)
	gin.SetMode(gin.TestMode)
	r := gin.New()
	r.Use(appstate.StateMiddleware(state))
	api := r.Group("/api/v1")
	api.Use(size.BodyLimit(testBodyLimit))
	api.Use(authmw.NewManager(verifier).Middleware())
	Register(api)
	return &testServer{engine: r, verifier: verifier, items: items}
}

func (s *testServer) do(t *testing.T, user, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(method, path, strings.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	if user != "" {
		token, err := s.verifier.Issue(user, time.Hour)
		require.NoError(t, err)
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	s.engine.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.NewDecoder(bytes.NewReader(w.Body.Bytes())).Decode(&out))
	return out
}

func call(id, name, args string) llmadapter.ToolCall {
	return llmadapter.ToolCall{ID: id, Name: name, Arguments: json.RawMessage(args)}
}

func TestSendMessage(t *testing.T) {
	t.Run("Should create an item and report the invocation", func(t *testing.T) {
		s := newTestServer(t,
			llmadapter.CallTools(call("c1", tool.CreateItem, `{"title":"Buy milk"}`)),
			llmadapter.Reply("Added buy milk."),
		)
		w := s.do(t, "alice", http.MethodPost, "/api/v1/chat", `{"message":"add buy milk"}`)
		require.Equal(t, http.StatusOK, w.Code, w.Body.String())
		res := decode[ChatResponse](t, w)
		assert.NotEmpty(t, res.ConversationID)
		assert.NotEmpty(t, res.MessageID)
		assert.Equal(t, "Added buy milk.", res.AgentReply)
		require.Len(t, res.ToolInvocations, 1)
		assert.Equal(t, tool.CreateItem, res.ToolInvocations[0].ToolName)
		assert.True(t, res.ToolInvocations[0].Success)
		list, err := s.items.List(context.Background(), "alice", item.ListFilter{})
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.Equal(t, "Buy milk", list[0].Title)
	})
	t.Run("Should return an empty invocation list for plain replies", func(t *testing.T) {
		s := newTestServer(t, llmadapter.Reply("Which item?"))
		w := s.do(t, "alice", http.MethodPost, "/api/v1/chat", `{"message":"update it"}`)
		require.Equal(t, http.StatusOK, w.Code)
		assert.Contains(t, w.Body.String(), `"tool_invocations":[]`)
	})
	t.Run("Should reject missing credentials with 401", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, "", http.MethodPost, "/api/v1/chat", `{"message":"hi"}`)
		assert.Equal(t, http.StatusUnauthorized, w.Code)
	})
	t.Run("Should reject whitespace messages with 422", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, "alice", http.MethodPost, "/api/v1/chat", `{"message":"   "}`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
	})
	t.Run("Should reject oversized messages with 422", func(t *testing.T) {
		s := newTestServer(t)
		body, err := json.Marshal(ChatRequest{Message: strings.Repeat("a", 5001)})
		require.NoError(t, err)
		w := s.do(t, "alice", http.MethodPost, "/api/v1/chat", string(body))
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
	t.Run("Should reject bodies over the transport limit with 413", func(t *testing.T) {
		s := newTestServer(t)
		body, err := json.Marshal(ChatRequest{Message: strings.Repeat("a", testBodyLimit)})
		require.NoError(t, err)
		w := s.do(t, "alice", http.MethodPost, "/api/v1/chat", string(body))
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
		assert.Contains(t, w.Body.String(), "REQUEST_TOO_LARGE")
	})
	t.Run("Should reject unsized bodies over the transport limit with 413", func(t *testing.T) {
		s := newTestServer(t)
		token, err := s.verifier.Issue("alice", time.Hour)
		require.NoError(t, err)
		body := `{"message":"` + strings.Repeat("a", testBodyLimit) + `"}`
		req := httptest.NewRequest(http.MethodPost, "/api/v1/chat", strings.NewReader(body))
		req.ContentLength = -1
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+token)
		w := httptest.NewRecorder()
		s.engine.ServeHTTP(w, req)
		assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
	})
	t.Run("Should reject malformed bodies with 422", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, "alice", http.MethodPost, "/api/v1/chat", `{"message":`)
		assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	})
	t.Run("Should return 404 for unknown conversations", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, "alice", http.MethodPost, "/api/v1/chat",
			`{"conversation_id":"2mHqW1a3pTzZ8C8e8fF4cQb0xYv","message":"hi"}`)
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
	t.Run("Should return 403 for another user's conversation", func(t *testing.T) {
		s := newTestServer(t, llmadapter.Reply("hello"))
		first := decode[ChatResponse](t, s.do(t, "alice", http.MethodPost, "/api/v1/chat", `{"message":"hi"}`))
		body := `{"conversation_id":"` + first.ConversationID + `","message":"hi"}`
		w := s.do(t, "mallory", http.MethodPost, "/api/v1/chat", body)
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
	t.Run("Should return 502 with the fallback reply when the agent is unavailable", func(t *testing.T) {
		failure := errors.New("connection refused")
		s := newTestServer(t, llmadapter.Fail(failure), llmadapter.Fail(failure))
		w := s.do(t, "alice", http.MethodPost, "/api/v1/chat", `{"message":"hi"}`)
		require.Equal(t, http.StatusBadGateway, w.Code)
		body := decode[map[string]any](t, w)
		assert.Equal(t, agent.FallbackReply, body["agent_reply"])
		assert.NotEmpty(t, body["conversation_id"])
		assert.NotEmpty(t, body["user_message_id"])
		assert.NotContains(t, body, "message_id")
		assert.Equal(t, agent.ErrCodeAgentUnavailable, body["code"])
	})
}

func TestGetHistory(t *testing.T) {
	t.Run("Should return messages in order with invocations on request", func(t *testing.T) {
		s := newTestServer(t,
			llmadapter.CallTools(call("c1", tool.CreateItem, `{"title":"Call mom"}`)),
			llmadapter.Reply("Done."),
		)
		turn := decode[ChatResponse](t, s.do(t, "alice", http.MethodPost, "/api/v1/chat", `{"message":"remind me to call mom"}`))
		path := "/api/v1/chat/" + turn.ConversationID

		plain := decode[HistoryResponse](t, s.do(t, "alice", http.MethodGet, path, ""))
		require.Len(t, plain.Messages, 2)
		assert.Equal(t, "user", plain.Messages[0].Role)
		assert.Equal(t, "agent", plain.Messages[1].Role)
		assert.Nil(t, plain.Messages[1].ToolInvocations)

		w := s.do(t, "alice", http.MethodGet, path+"?include=tool_invocations", "")
		require.Equal(t, http.StatusOK, w.Code)
		full := decode[HistoryResponse](t, w)
		require.Len(t, full.Messages[1].ToolInvocations, 1)
		assert.Equal(t, tool.CreateItem, full.Messages[1].ToolInvocations[0].ToolName)
		assert.Equal(t, turn.ConversationID, full.Conversation.ID)
	})
	t.Run("Should return 403 for foreign conversations", func(t *testing.T) {
		s := newTestServer(t, llmadapter.Reply("hello"))
		turn := decode[ChatResponse](t, s.do(t, "alice", http.MethodPost, "/api/v1/chat", `{"message":"hi"}`))
		w := s.do(t, "bob", http.MethodGet, "/api/v1/chat/"+turn.ConversationID, "")
		assert.Equal(t, http.StatusForbidden, w.Code)
	})
	t.Run("Should return 404 for malformed ids", func(t *testing.T) {
		s := newTestServer(t)
		w := s.do(t, "alice", http.MethodGet, "/api/v1/chat/nope", "")
		assert.Equal(t, http.StatusNotFound, w.Code)
	})
}

func TestListConversations(t *testing.T) {
	t.Run("Should list only the caller's conversations", func(t *testing.T) {
		s := newTestServer(t, llmadapter.Reply("a"), llmadapter.Reply("b"), llmadapter.Reply("c"))
		for _, user := range []string{"alice", "alice", "bob"} {
			require.Equal(t, http.StatusOK, s.do(t, user, http.MethodPost, "/api/v1/chat", `{"message":"hi"}`).Code)
		}
		w := s.do(t, "alice", http.MethodGet, "/api/v1/conversations?limit=1", "")
		require.Equal(t, http.StatusOK, w.Code)
		page := decode[ConversationListResponse](t, w)
		assert.Equal(t, 2, page.Total)
		assert.Len(t, page.Conversations, 1)
	})
}
