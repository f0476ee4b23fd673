package sqlite

import (
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskchat/taskchat/engine/conversation"
	"github.com/taskchat/taskchat/engine/core"
)

func TestConversationRepo(t *testing.T) {
	ctx := context.Background()

	t.Run("Should persist a full turn and read it back in order", func(t *testing.T) {
		s := newTestStore(t)
		store := conversation.NewStore(NewConversationRepo(s.DB()))
		conv, err := store.GetOrCreate(ctx, "user-1", "")
		require.NoError(t, err)
		userMsg, err := store.AppendMessage(ctx, conv.ID, conversation.RoleUser, "add buy milk")
		require.NoError(t, err)
		turn, err := store.CommitTurn(ctx, conv.ID, "Added 'buy milk'.", []conversation.ToolInvocationInput{
			{
				ToolName: "create_item",
				Input:    json.RawMessage(`{"title":"buy milk"}`),
				Output:   json.RawMessage(`{"title":"buy milk"}`),
				Success:  true,
			},
		})
		require.NoError(t, err)
		history, err := store.LoadHistory(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, history, 2)
		assert.Equal(t, userMsg.ID, history[0].ID)
		assert.Equal(t, conversation.RoleUser, history[0].Role)
		assert.Equal(t, turn.Message.ID, history[1].ID)
		assert.True(t, history[0].CreatedAt.Before(history[1].CreatedAt))
		invs, err := store.ListToolInvocations(ctx, []core.ID{turn.Message.ID})
		require.NoError(t, err)
		require.Len(t, invs, 1)
		assert.True(t, invs[0].Success)
		assert.JSONEq(t, `{"title":"buy milk"}`, string(invs[0].Output))
		assert.Nil(t, invs[0].Error)
		got, err := store.GetOwned(ctx, "user-1", conv.ID)
		require.NoError(t, err)
		assert.True(t, got.UpdatedAt.Equal(turn.Message.CreatedAt))
	})

	t.Run("Should read invocations back in execution order", func(t *testing.T) {
		s := newTestStore(t)
		store := conversation.NewStore(NewConversationRepo(s.DB()))
		conv, err := store.GetOrCreate(ctx, "user-1", "")
		require.NoError(t, err)
		for trial := range 10 {
			inputs := make([]conversation.ToolInvocationInput, 0, 4)
			for step := range 4 {
				inputs = append(inputs, conversation.ToolInvocationInput{
					ToolName: fmt.Sprintf("step_%d", step),
					Input:    json.RawMessage(`{}`),
					Output:   json.RawMessage(`{}`),
					Success:  true,
				})
			}
			turn, err := store.CommitTurn(ctx, conv.ID, fmt.Sprintf("reply %d", trial), inputs)
			require.NoError(t, err)
			invs, err := store.ListToolInvocations(ctx, []core.ID{turn.Message.ID})
			require.NoError(t, err)
			names := make([]string, 0, len(invs))
			for _, inv := range invs {
				names = append(names, inv.ToolName)
			}
			assert.Equal(t, []string{"step_0", "step_1", "step_2", "step_3"}, names)
		}
	})

	t.Run("Should keep failed invocations with error and no output", func(t *testing.T) {
		s := newTestStore(t)
		store := conversation.NewStore(NewConversationRepo(s.DB()))
		conv, err := store.GetOrCreate(ctx, "user-1", "")
		require.NoError(t, err)
		turn, err := store.CommitTurn(ctx, conv.ID, "I couldn't find that task.", []conversation.ToolInvocationInput{
			{ToolName: "delete_item", Input: json.RawMessage(`{"item_id":"nope"}`), Error: "item does not exist"},
		})
		require.NoError(t, err)
		invs, err := store.ListToolInvocations(ctx, []core.ID{turn.Message.ID})
		require.NoError(t, err)
		require.Len(t, invs, 1)
		assert.False(t, invs[0].Success)
		assert.Nil(t, invs[0].Output)
		require.NotNil(t, invs[0].Error)
		assert.Equal(t, "item does not exist", *invs[0].Error)
	})

	t.Run("Should enforce output and error exclusivity in the schema", func(t *testing.T) {
		s := newTestStore(t)
		repo := NewConversationRepo(s.DB())
		store := conversation.NewStore(repo)
		conv, err := store.GetOrCreate(ctx, "user-1", "")
		require.NoError(t, err)
		msg, err := store.AppendMessage(ctx, conv.ID, conversation.RoleAgent, "ok")
		require.NoError(t, err)
		errText := "boom"
		err = repo.InsertToolInvocation(ctx, &conversation.ToolInvocation{
			ID:        core.MustNewID(),
			MessageID: msg.ID,
			ToolName:  "list_items",
			Input:     json.RawMessage(`{}`),
			Output:    json.RawMessage(`{}`),
			Success:   true,
			Error:     &errText,
			CreatedAt: time.Now(),
		})
		require.Error(t, err)
	})

	t.Run("Should map missing conversations to not found", func(t *testing.T) {
		s := newTestStore(t)
		repo := NewConversationRepo(s.DB())
		_, err := repo.GetConversation(ctx, core.MustNewID())
		require.ErrorIs(t, err, conversation.ErrNotFound)
		err = repo.TouchConversation(ctx, core.MustNewID(), time.Now())
		require.ErrorIs(t, err, conversation.ErrNotFound)
	})

	t.Run("Should refuse row locks outside a transaction", func(t *testing.T) {
		s := newTestStore(t)
		_, err := NewConversationRepo(s.DB()).LockConversation(ctx, core.MustNewID())
		require.Error(t, err)
	})

	t.Run("Should page conversations newest first with total", func(t *testing.T) {
		s := newTestStore(t)
		store := conversation.NewStore(NewConversationRepo(s.DB()))
		var ids []core.ID
		for range 3 {
			conv, err := store.GetOrCreate(ctx, "user-1", "")
			require.NoError(t, err)
			ids = append(ids, conv.ID)
		}
		_, err := store.AppendMessage(ctx, ids[0], conversation.RoleUser, "bump")
		require.NoError(t, err)
		_, err = store.GetOrCreate(ctx, "user-2", "")
		require.NoError(t, err)
		page, err := store.ListConversations(ctx, "user-1", 2, 0)
		require.NoError(t, err)
		assert.Equal(t, 3, page.Total)
		require.Len(t, page.Conversations, 2)
		assert.Equal(t, ids[0], page.Conversations[0].ID)
	})

	t.Run("Should survive a process restart", func(t *testing.T) {
		path := filepath.Join(t.TempDir(), "restart.db")
		first, err := NewStore(ctx, &Config{Path: path})
		require.NoError(t, err)
		require.NoError(t, ApplyMigrations(ctx, first.DB()))
		store := conversation.NewStore(NewConversationRepo(first.DB()))
		conv, err := store.GetOrCreate(ctx, "user-1", "")
		require.NoError(t, err)
		_, err = store.AppendMessage(ctx, conv.ID, conversation.RoleUser, "remember me")
		require.NoError(t, err)
		require.NoError(t, first.Close(ctx))

		second, err := NewStore(ctx, &Config{Path: path})
		require.NoError(t, err)
		defer second.Close(ctx)
		history, err := conversation.NewStore(NewConversationRepo(second.DB())).LoadHistory(ctx, conv.ID)
		require.NoError(t, err)
		require.Len(t, history, 1)
		assert.Equal(t, "remember me", history[0].Content)
	})
}
