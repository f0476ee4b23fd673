package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/georgysavva/scany/v2/pgxscan"
	"github.com/jackc/pgx/v5"
	"github.com/taskchat/taskchat/engine/core"
	"github.com/taskchat/taskchat/engine/item"
)

var itemColumns = []string{"id", "user_id", "title", "description", "completed", "created_at", "updated_at"}

// ItemRepo implements item.Repository backed by a pgx-compatible pool.
type ItemRepo struct {
	db DB
}

func NewItemRepo(db DB) *ItemRepo {
	return &ItemRepo{db: db}
}

func (r *ItemRepo) CreateItem(ctx context.Context, it *item.Item) error {
	const query = `INSERT INTO items (id, user_id, title, description, completed, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7)`
	if _, err := r.db.Exec(
		ctx, query, it.ID, it.UserID, it.Title, it.Description, it.Completed, it.CreatedAt, it.UpdatedAt,
	); err != nil {
		return fmt.Errorf("inserting item: %w", err)
	}
	return nil
}

func (r *ItemRepo) GetItem(ctx context.Context, userID string, id core.ID) (*item.Item, error) {
	sql, args, err := squirrel.Select(itemColumns...).
		From("items").
		Where(squirrel.Eq{"id": id.String()}).
		Where(squirrel.Eq{"user_id": userID}).
		PlaceholderFormat(squirrel.Dollar).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	var it item.Item
	if err := pgxscan.Get(ctx, r.db, &it, sql, args...); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, item.ErrNotFound
		}
		return nil, fmt.Errorf("scanning item: %w", err)
	}
	return &it, nil
}

func (r *ItemRepo) ListItems(ctx context.Context, userID string, filter item.ListFilter) ([]*item.Item, error) {
	sb := squirrel.Select(itemColumns...).
		From("items").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC").
		PlaceholderFormat(squirrel.Dollar)
	if filter.Completed != nil {
		sb = sb.Where(squirrel.Eq{"completed": *filter.Completed})
	}
	if filter.Limit > 0 {
		sb = sb.Limit(uint64(filter.Limit))
	}
	sql, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("building query: %w", err)
	}
	items := make([]*item.Item, 0)
	if err := pgxscan.Select(ctx, r.db, &items, sql, args...); err != nil {
		return nil, fmt.Errorf("scanning items: %w", err)
	}
	return items, nil
}

func (r *ItemRepo) UpdateItem(ctx context.Context, it *item.Item) error {
	const query = `UPDATE items SET title = $1, description = $2, completed = $3, updated_at = $4
		WHERE id = $5 AND user_id = $6`
	tag, err := r.db.Exec(ctx, query, it.Title, it.Description, it.Completed, it.UpdatedAt, it.ID, it.UserID)
	if err != nil {
		return fmt.Errorf("updating item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return item.ErrNotFound
	}
	return nil
}

func (r *ItemRepo) DeleteItem(ctx context.Context, userID string, id core.ID) error {
	tag, err := r.db.Exec(ctx, `DELETE FROM items WHERE id = $1 AND user_id = $2`, id, userID)
	if err != nil {
		return fmt.Errorf("deleting item: %w", err)
	}
	if tag.RowsAffected() == 0 {
		return item.ErrNotFound
	}
	return nil
}
