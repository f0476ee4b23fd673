package tool

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/taskchat/taskchat/engine/core"
	"github.com/taskchat/taskchat/engine/item"
)

type fakeItems struct {
	items      map[core.ID]*item.Item
	lastFilter item.ListFilter
	lastUpdate item.UpdateInput
}

func newFakeItems() *fakeItems {
	return &fakeItems{items: make(map[core.ID]*item.Item)}
}

func (f *fakeItems) Create(_ context.Context, userID string, in item.CreateInput) (*item.Item, error) {
	it := &item.Item{
		ID:          core.MustNewID(),
		UserID:      userID,
		Title:       in.Title,
		Description: in.Description,
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
	}
	f.items[it.ID] = it
	return it, nil
}

func (f *fakeItems) List(_ context.Context, userID string, filter item.ListFilter) ([]*item.Item, error) {
	f.lastFilter = filter
	var out []*item.Item
	for _, it := range f.items {
		if it.UserID != userID {
			continue
		}
		if filter.Completed != nil && it.Completed != *filter.Completed {
			continue
		}
		out = append(out, it)
	}
	return out, nil
}

func (f *fakeItems) Update(_ context.Context, userID string, id core.ID, in item.UpdateInput) (*item.Item, error) {
	f.lastUpdate = in
	it, ok := f.items[id]
	if !ok || it.UserID != userID {
		return nil, item.ErrNotFound
	}
	if in.Title != nil {
		it.Title = *in.Title
	}
	if in.Completed != nil {
		it.Completed = *in.Completed
	}
	return it, nil
}

func (f *fakeItems) Delete(_ context.Context, userID string, id core.ID) (*item.Item, error) {
	it, ok := f.items[id]
	if !ok || it.UserID != userID {
		return nil, item.ErrNotFound
	}
	delete(f.items, id)
	return it, nil
}

func newTestRegistry(t *testing.T) (*Registry, *fakeItems) {
	t.Helper()
	items := newFakeItems()
	r, err := NewRegistry(items)
	require.NoError(t, err)
	return r, items
}

func TestRegistry_Definitions(t *testing.T) {
	t.Run("Should expose the four item tools in order", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		assert.Equal(t, []string{CreateItem, ListItems, UpdateItem, DeleteItem}, r.Names())
		defs, err := r.Definitions()
		require.NoError(t, err)
		require.Len(t, defs, 4)
		var params map[string]any
		require.NoError(t, json.Unmarshal(defs[0].Parameters, &params))
		assert.Equal(t, "object", params["type"])
		assert.Equal(t, false, params["additionalProperties"])
	})
	t.Run("Should report known tools", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		assert.True(t, r.Has(DeleteItem))
		assert.False(t, r.Has("drop_table"))
	})
}

func TestRegistry_Invoke(t *testing.T) {
	ctx := context.Background()

	t.Run("Should create an item for the calling user", func(t *testing.T) {
		r, items := newTestRegistry(t)
		res, err := r.Invoke(ctx, "user-1", CreateItem, json.RawMessage(`{"title":"buy milk"}`))
		require.NoError(t, err)
		assert.Equal(t, CreateItem, res.Tool)
		assert.Equal(t, `created item "buy milk"`, res.Summary)
		require.Len(t, items.items, 1)
		for _, it := range items.items {
			assert.Equal(t, "user-1", it.UserID)
		}
		var out map[string]any
		require.NoError(t, json.Unmarshal(res.Output, &out))
		assert.Equal(t, "created", out["status"])
	})
	t.Run("Should return an empty list as an empty array", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		res, err := r.Invoke(ctx, "user-1", ListItems, nil)
		require.NoError(t, err)
		assert.JSONEq(t, `{"success":true,"items":[],"count":0}`, string(res.Output))
		assert.Equal(t, "listed 0 items", res.Summary)
	})
	t.Run("Should apply the default list limit and pass filters", func(t *testing.T) {
		r, items := newTestRegistry(t)
		_, err := r.Invoke(ctx, "user-1", ListItems, json.RawMessage(`{"completed":true}`))
		require.NoError(t, err)
		assert.Equal(t, item.DefaultListLimit, items.lastFilter.Limit)
		require.NotNil(t, items.lastFilter.Completed)
		assert.True(t, *items.lastFilter.Completed)

		_, err = r.Invoke(ctx, "user-1", ListItems, json.RawMessage(`{"limit":25}`))
		require.NoError(t, err)
		assert.Equal(t, 25, items.lastFilter.Limit)
	})
	t.Run("Should mark an item completed", func(t *testing.T) {
		r, items := newTestRegistry(t)
		created, err := items.Create(ctx, "user-1", item.CreateInput{Title: "pay rent"})
		require.NoError(t, err)
		args := json.RawMessage(`{"item_id":"` + created.ID.String() + `","completed":true}`)
		res, err := r.Invoke(ctx, "user-1", UpdateItem, args)
		require.NoError(t, err)
		assert.Equal(t, `marked item "pay rent" as completed`, res.Summary)
		assert.Nil(t, items.lastUpdate.Title)
		assert.True(t, items.items[created.ID].Completed)
	})
	t.Run("Should delete an item and echo its title", func(t *testing.T) {
		r, items := newTestRegistry(t)
		created, err := items.Create(ctx, "user-1", item.CreateInput{Title: "old task"})
		require.NoError(t, err)
		res, err := r.Invoke(ctx, "user-1", DeleteItem, json.RawMessage(`{"item_id":"`+created.ID.String()+`"}`))
		require.NoError(t, err)
		assert.Equal(t, `deleted item "old task"`, res.Summary)
		assert.Empty(t, items.items)
	})
	t.Run("Should fail with unknown tool", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		_, err := r.Invoke(ctx, "user-1", "drop_table", nil)
		assert.ErrorIs(t, err, ErrUnknownTool)
		assert.Equal(t, CodeUnknownTool, core.ErrorCode(err))
	})
	t.Run("Should reject arguments that violate the schema", func(t *testing.T) {
		r, items := newTestRegistry(t)
		cases := map[string]json.RawMessage{
			"missing title":  json.RawMessage(`{}`),
			"empty title":    json.RawMessage(`{"title":""}`),
			"unknown field":  json.RawMessage(`{"title":"x","priority":1}`),
			"wrong type":     json.RawMessage(`{"title":42}`),
			"not an object":  json.RawMessage(`["x"]`),
			"malformed JSON": json.RawMessage(`{"title":`),
		}
		for name, args := range cases {
			_, err := r.Invoke(ctx, "user-1", CreateItem, args)
			assert.ErrorIs(t, err, ErrInvalidToolInput, name)
			assert.Equal(t, CodeInvalidToolInput, core.ErrorCode(err), name)
		}
		assert.Empty(t, items.items)
	})
	t.Run("Should reject out of range list limits", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		_, err := r.Invoke(ctx, "user-1", ListItems, json.RawMessage(`{"limit":0}`))
		assert.ErrorIs(t, err, ErrInvalidToolInput)
		_, err = r.Invoke(ctx, "user-1", ListItems, json.RawMessage(`{"limit":101}`))
		assert.ErrorIs(t, err, ErrInvalidToolInput)
	})
	t.Run("Should require a field to change on update", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		_, err := r.Invoke(ctx, "user-1", UpdateItem, json.RawMessage(`{"item_id":"abc"}`))
		assert.ErrorIs(t, err, ErrInvalidToolInput)
	})
	t.Run("Should report items of another user as not found", func(t *testing.T) {
		r, items := newTestRegistry(t)
		created, err := items.Create(ctx, "user-2", item.CreateInput{Title: "theirs"})
		require.NoError(t, err)
		_, err = r.Invoke(ctx, "user-1", DeleteItem, json.RawMessage(`{"item_id":"`+created.ID.String()+`"}`))
		assert.ErrorIs(t, err, ErrToolExecution)
		assert.ErrorIs(t, err, item.ErrNotFound)
		assert.Equal(t, CodeNotFound, core.ErrorCode(err))
		assert.Len(t, items.items, 1)
	})
	t.Run("Should report malformed item ids as not found", func(t *testing.T) {
		r, _ := newTestRegistry(t)
		_, err := r.Invoke(ctx, "user-1", DeleteItem, json.RawMessage(`{"item_id":"not-a-ksuid"}`))
		assert.ErrorIs(t, err, item.ErrNotFound)
	})
}

func TestErrorPayload(t *testing.T) {
	t.Run("Should render the code and underlying reason", func(t *testing.T) {
		err := executionFailed(DeleteItem, item.ErrNotFound)
		var payload struct {
			Success bool `json:"success"`
			Error   struct {
				Code    string `json:"code"`
				Message string `json:"message"`
			} `json:"error"`
		}
		require.NoError(t, json.Unmarshal(ErrorPayload(err), &payload))
		assert.False(t, payload.Success)
		assert.Equal(t, CodeNotFound, payload.Error.Code)
		assert.Equal(t, item.ErrNotFound.Error(), payload.Error.Message)
	})
	t.Run("Should default to the execution code for plain errors", func(t *testing.T) {
		raw := ErrorPayload(assert.AnError)
		assert.Contains(t, string(raw), CodeToolExecution)
	})
	t.Run("Should treat item validation failures as invalid input", func(t *testing.T) {
		err := executionFailed(CreateItem, item.ErrInvalidInput)
		assert.ErrorIs(t, err, ErrInvalidToolInput)
		assert.Equal(t, CodeInvalidToolInput, core.ErrorCode(err))
	})
}
