package tool

import (
	"context"
	"fmt"

	"github.com/taskchat/taskchat/engine/core"
	"github.com/taskchat/taskchat/engine/item"
	"github.com/taskchat/taskchat/engine/schema"
)

// ItemService is the item surface the built-in tools operate on.
type ItemService interface {
	Create(ctx context.Context, userID string, in item.CreateInput) (*item.Item, error)
	List(ctx context.Context, userID string, filter item.ListFilter) ([]*item.Item, error)
	Update(ctx context.Context, userID string, id core.ID, in item.UpdateInput) (*item.Item, error)
	Delete(ctx context.Context, userID string, id core.ID) (*item.Item, error)
}

type toolSpec struct {
	name        string
	description string
	params      schema.Schema
	handler     handlerFunc
}

type createArgs struct {
	Title       string  `json:"title"`
	Description *string `json:"description"`
}

type listArgs struct {
	Completed *bool `json:"completed"`
	Limit     *int  `json:"limit"`
}

type updateArgs struct {
	ItemID      string  `json:"item_id"`
	Title       *string `json:"title"`
	Description *string `json:"description"`
	Completed   *bool   `json:"completed"`
}

type deleteArgs struct {
	ItemID string `json:"item_id"`
}

func builtinSpecs(items ItemService) []toolSpec {
	return []toolSpec{
		{
			name:        CreateItem,
			description: "Create a new todo item for the user. Use when the user asks to add, create or remember a task.",
			params: schema.Schema{
				"type": "object",
				"properties": map[string]any{
					"title": map[string]any{
						"type":        "string",
						"description": "Short title of the item",
						"minLength":   1,
						"maxLength":   item.MaxTitleLength,
					},
					"description": map[string]any{
						"type":        "string",
						"description": "Optional longer description",
						"maxLength":   item.MaxDescriptionLength,
					},
				},
				"required":             []any{"title"},
				"additionalProperties": false,
			},
			handler: createHandler(items),
		},
		{
			name:        ListItems,
			description: "List the user's todo items, newest first. Optionally filter by completion status.",
			params: schema.Schema{
				"type": "object",
				"properties": map[string]any{
					"completed": map[string]any{
						"type":        "boolean",
						"description": "Only return items with this completion status",
					},
					"limit": map[string]any{
						"type":        "integer",
						"description": "Maximum number of items to return",
						"minimum":     1,
						"maximum":     item.MaxListLimit,
					},
				},
				"additionalProperties": false,
			},
			handler: listHandler(items),
		},
		{
			name: UpdateItem,
			description: "Update an existing todo item. Provide item_id and at least one field to change. " +
				"Use completed=true to mark an item as done.",
			params: schema.Schema{
				"type": "object",
				"properties": map[string]any{
					"item_id": map[string]any{
						"type":        "string",
						"description": "Identifier of the item to update",
						"minLength":   1,
					},
					"title": map[string]any{
						"type":      "string",
						"minLength": 1,
						"maxLength": item.MaxTitleLength,
					},
					"description": map[string]any{
						"type":      "string",
						"maxLength": item.MaxDescriptionLength,
					},
					"completed": map[string]any{
						"type": "boolean",
					},
				},
				"required":             []any{"item_id"},
				"minProperties":        2,
				"additionalProperties": false,
			},
			handler: updateHandler(items),
		},
		{
			name:        DeleteItem,
			description: "Permanently delete a todo item. Only call after the user confirmed the deletion.",
			params: schema.Schema{
				"type": "object",
				"properties": map[string]any{
					"item_id": map[string]any{
						"type":        "string",
						"description": "Identifier of the item to delete",
						"minLength":   1,
					},
				},
				"required":             []any{"item_id"},
				"additionalProperties": false,
			},
			handler: deleteHandler(items),
		},
	}
}

func createHandler(items ItemService) handlerFunc {
	return func(ctx context.Context, userID string, args map[string]any) (any, string, error) {
		var in createArgs
		if err := bindArgs(args, &in); err != nil {
			return nil, "", invalidInput(CreateItem, err)
		}
		created, err := items.Create(ctx, userID, item.CreateInput{Title: in.Title, Description: in.Description})
		if err != nil {
			return nil, "", executionFailed(CreateItem, err)
		}
		out := map[string]any{"success": true, "status": "created", "item": created}
		return out, fmt.Sprintf("created item %q", created.Title), nil
	}
}

func listHandler(items ItemService) handlerFunc {
	return func(ctx context.Context, userID string, args map[string]any) (any, string, error) {
		var in listArgs
		if err := bindArgs(args, &in); err != nil {
			return nil, "", invalidInput(ListItems, err)
		}
		filter := item.ListFilter{Completed: in.Completed, Limit: item.DefaultListLimit}
		if in.Limit != nil {
			filter.Limit = *in.Limit
		}
		found, err := items.List(ctx, userID, filter)
		if err != nil {
			return nil, "", executionFailed(ListItems, err)
		}
		if found == nil {
			found = []*item.Item{}
		}
		out := map[string]any{"success": true, "items": found, "count": len(found)}
		return out, listSummary(len(found)), nil
	}
}

func updateHandler(items ItemService) handlerFunc {
	return func(ctx context.Context, userID string, args map[string]any) (any, string, error) {
		var in updateArgs
		if err := bindArgs(args, &in); err != nil {
			return nil, "", invalidInput(UpdateItem, err)
		}
		id, err := parseItemID(in.ItemID)
		if err != nil {
			return nil, "", executionFailed(UpdateItem, err)
		}
		patch := item.UpdateInput{Title: in.Title, Description: in.Description, Completed: in.Completed}
		updated, err := items.Update(ctx, userID, id, patch)
		if err != nil {
			return nil, "", executionFailed(UpdateItem, err)
		}
		out := map[string]any{"success": true, "status": "updated", "item": updated}
		return out, updateSummary(updated, patch), nil
	}
}

func deleteHandler(items ItemService) handlerFunc {
	return func(ctx context.Context, userID string, args map[string]any) (any, string, error) {
		var in deleteArgs
		if err := bindArgs(args, &in); err != nil {
			return nil, "", invalidInput(DeleteItem, err)
		}
		id, err := parseItemID(in.ItemID)
		if err != nil {
			return nil, "", executionFailed(DeleteItem, err)
		}
		deleted, err := items.Delete(ctx, userID, id)
		if err != nil {
			return nil, "", executionFailed(DeleteItem, err)
		}
		out := map[string]any{
			"success": true,
			"status":  "deleted",
			"item_id": deleted.ID,
			"title":   deleted.Title,
		}
		return out, fmt.Sprintf("deleted item %q", deleted.Title), nil
	}
}

// parseItemID reports malformed identifiers as not found.
func parseItemID(raw string) (core.ID, error) {
	id, err := core.ParseID(raw)
	if err != nil {
		return "", item.ErrNotFound
	}
	return id, nil
}

func listSummary(n int) string {
	if n == 1 {
		return "listed 1 item"
	}
	return fmt.Sprintf("listed %d items", n)
}

func updateSummary(it *item.Item, patch item.UpdateInput) string {
	if patch.Completed != nil && patch.Title == nil && patch.Description == nil {
		if *patch.Completed {
			return fmt.Sprintf("marked item %q as completed", it.Title)
		}
		return fmt.Sprintf("marked item %q as not completed", it.Title)
	}
	return fmt.Sprintf("updated item %q", it.Title)
}
