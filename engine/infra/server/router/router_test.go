package router

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRespondProblem(t *testing.T) {
	gin.SetMode(gin.TestMode)
	t.Run("Should write a problem document with code", func(t *testing.T) {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) {
			RespondProblemWithCode(c, http.StatusForbidden, ErrForbiddenCode, "conversation belongs to another user")
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", http.NoBody))
		assert.Equal(t, http.StatusForbidden, w.Code)
		assert.Equal(t, "application/problem+json", w.Header().Get("Content-Type"))
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, float64(http.StatusForbidden), body["status"])
		assert.Equal(t, "Forbidden", body["error"])
		assert.Equal(t, ErrForbiddenCode, body["code"])
		assert.Equal(t, "conversation belongs to another user", body["details"])
	})
	t.Run("Should merge extras without overriding reserved members", func(t *testing.T) {
		r := gin.New()
		r.GET("/x", func(c *gin.Context) {
			RespondProblemWithExtras(c, http.StatusBadGateway, ErrBadGatewayCode, "upstream failed", map[string]any{
				"agent_reply": "sorry",
				"status":      999,
			})
		})
		w := httptest.NewRecorder()
		r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/x", http.NoBody))
		var body map[string]any
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
		assert.Equal(t, float64(http.StatusBadGateway), body["status"])
		assert.Equal(t, "sorry", body["agent_reply"])
		assert.Equal(t, ErrBadGatewayCode, body["code"])
	})
}

func TestLimitOrDefault(t *testing.T) {
	t.Run("Should fall back to default for malformed values", func(t *testing.T) {
		assert.Equal(t, 20, LimitOrDefault("abc", 0, 0))
		assert.Equal(t, 10, LimitOrDefault("-1", 10, 100))
	})
	t.Run("Should cap at the maximum", func(t *testing.T) {
		assert.Equal(t, 100, LimitOrDefault("500", 20, 100))
		assert.Equal(t, 7, LimitOrDefault(" 7 ", 20, 100))
	})
	t.Run("Should parse offsets", func(t *testing.T) {
		assert.Equal(t, 0, OffsetOrZero("-3"))
		assert.Equal(t, 0, OffsetOrZero(""))
		assert.Equal(t, 40, OffsetOrZero("40"))
	})
}

func TestParseExpandQuery(t *testing.T) {
	t.Run("Should lowercase and trim entries", func(t *testing.T) {
		got := ParseExpandQuery(" Tool_Invocations , ,foo")
		assert.True(t, got["tool_invocations"])
		assert.True(t, got["foo"])
		assert.Len(t, got, 2)
	})
}
