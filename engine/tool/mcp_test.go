package tool

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskchat/taskchat/engine/item"
)

func TestNewMCPServer(t *testing.T) {
	t.Run("Should require a user id", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		_, err := NewMCPServer(r, "", "test")
		assert.Error(t, err)
	})
	t.Run("Should build a server for a user", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		s, err := NewMCPServer(r, "user-1", "test")
		require.NoError(t, err)
		assert.NotNil(t, s)
	})
}

func callRequest(name string, args map[string]any) mcp.CallToolRequest {
	req := mcp.CallToolRequest{}
	req.Params.Name = name
	req.Params.Arguments = args
	return req
}

func resultText(t *testing.T, res *mcp.CallToolResult) string {
	t.Helper()
	require.NotNil(t, res)
	require.Len(t, res.Content, 1)
	text, ok := res.Content[0].(mcp.TextContent)
	require.True(t, ok, "expected text content")
	return text.Text
}

func TestMCPHandler(t *testing.T) {
	ctx := context.Background()

	t.Run("Should run the tool for the bound user", func(t *testing.T) {
		r, items := newTestRegistry(t)
		res, err := mcpHandler(r, "user-1", CreateItem)(ctx, callRequest(CreateItem, map[string]any{"title": "buy milk"}))
		require.NoError(t, err)
		assert.False(t, res.IsError)
		var out struct {
			Success bool `json:"success"`
			Item    struct {
				Title string `json:"title"`
			} `json:"item"`
		}
		require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
		assert.True(t, out.Success)
		assert.Equal(t, "buy milk", out.Item.Title)
		require.Len(t, items.items, 1)
		for _, it := range items.items {
			assert.Equal(t, "user-1", it.UserID)
		}
	})
	t.Run("Should report another user's item as not found", func(t *testing.T) {
		r, items := newTestRegistry(t)
		foreign, err := items.Create(ctx, "user-2", item.CreateInput{Title: "secret"})
		require.NoError(t, err)
		args := map[string]any{"item_id": foreign.ID.String()}
		res, err := mcpHandler(r, "user-1", DeleteItem)(ctx, callRequest(DeleteItem, args))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		var out struct {
			Success bool `json:"success"`
			Error   struct {
				Code string `json:"code"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal([]byte(resultText(t, res)), &out))
		assert.False(t, out.Success)
		assert.Equal(t, CodeNotFound, out.Error.Code)
		assert.Contains(t, items.items, foreign.ID)
	})
	t.Run("Should return invalid input as a tool error", func(t *testing.T) {
		r, items := newTestRegistry(t)
		res, err := mcpHandler(r, "user-1", CreateItem)(ctx, callRequest(CreateItem, map[string]any{}))
		require.NoError(t, err)
		assert.True(t, res.IsError)
		assert.Contains(t, resultText(t, res), CodeInvalidToolInput)
		assert.Empty(t, items.items)
	})
}
