package tool

import (
	"context"
	"encoding/json"

	"github.com/taskchat/taskchat/engine/schema"
)

const (
	CreateItem = "create_item"
	ListItems  = "list_items"
	UpdateItem = "update_item"
	DeleteItem = "delete_item"
)

// Definition is the model-facing description of a tool.
type Definition struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Parameters  json.RawMessage `json:"parameters"`
}

// Result is the outcome of a successful tool call.
type Result struct {
	Tool    string          `json:"tool"`
	Output  json.RawMessage `json:"output"`
	Summary string          `json:"summary"`
}

type handlerFunc func(ctx context.Context, userID string, args map[string]any) (output any, summary string, err error)

type Tool struct {
	name        string
	description string
	params      *schema.Compiled
	handler     handlerFunc
}

func (t *Tool) Name() string {
	return t.name
}

func (t *Tool) Description() string {
	return t.description
}

func (t *Tool) Definition() (Definition, error) {
	src := t.params.Source()
	raw, err := src.JSON()
	if err != nil {
		return Definition{}, err
	}
	return Definition{Name: t.name, Description: t.description, Parameters: raw}, nil
}
