package item

import (
	"context"

	"github.com/taskchat/taskchat/engine/core"
)

// Repository persists items. Every lookup is scoped by owner so foreign items read as missing.
type Repository interface {
	CreateItem(ctx context.Context, it *Item) error
	GetItem(ctx context.Context, userID string, id core.ID) (*Item, error)
	ListItems(ctx context.Context, userID string, filter ListFilter) ([]*Item, error)
	UpdateItem(ctx context.Context, it *Item) error
	DeleteItem(ctx context.Context, userID string, id core.ID) error
}
