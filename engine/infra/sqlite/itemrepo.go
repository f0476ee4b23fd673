package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/Masterminds/squirrel"
	"github.com/taskchat/taskchat/engine/core"
	"github.com/taskchat/taskchat/engine/item"
)

var itemColumns = []string{"id", "user_id", "title", "description", "completed", "created_at", "updated_at"}

// ItemRepo implements item.Repository on top of a SQLite *sql.DB.
type ItemRepo struct{ db *sql.DB }

func NewItemRepo(db *sql.DB) *ItemRepo { return &ItemRepo{db: db} }

func (r *ItemRepo) CreateItem(ctx context.Context, it *item.Item) error {
	const q = `INSERT INTO items (id, user_id, title, description, completed, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?)`
	if _, err := r.db.ExecContext(
		ctx, q,
		it.ID, it.UserID, it.Title, nullableString(it.Description), it.Completed,
		encodeTime(it.CreatedAt), encodeTime(it.UpdatedAt),
	); err != nil {
		return fmt.Errorf("sqlite: create item: %w", err)
	}
	return nil
}

func (r *ItemRepo) GetItem(ctx context.Context, userID string, id core.ID) (*item.Item, error) {
	q, args, err := squirrel.Select(itemColumns...).
		From("items").
		Where(squirrel.Eq{"id": id.String(), "user_id": userID}).
		ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build item query: %w", err)
	}
	it, err := scanItem(r.db.QueryRowContext(ctx, q, args...))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, item.ErrNotFound
		}
		return nil, fmt.Errorf("sqlite: get item: %w", err)
	}
	return it, nil
}

func (r *ItemRepo) ListItems(ctx context.Context, userID string, filter item.ListFilter) ([]*item.Item, error) {
	sb := squirrel.Select(itemColumns...).
		From("items").
		Where(squirrel.Eq{"user_id": userID}).
		OrderBy("created_at DESC", "id DESC")
	if filter.Completed != nil {
		sb = sb.Where(squirrel.Eq{"completed": *filter.Completed})
	}
	if filter.Limit > 0 {
		sb = sb.Limit(uint64(filter.Limit))
	}
	q, args, err := sb.ToSql()
	if err != nil {
		return nil, fmt.Errorf("sqlite: build item list query: %w", err)
	}
	rows, err := r.db.QueryContext(ctx, q, args...)
	if err != nil {
		return nil, fmt.Errorf("sqlite: list items: %w", err)
	}
	defer rows.Close()
	out := make([]*item.Item, 0)
	for rows.Next() {
		it, err := scanItem(rows)
		if err != nil {
			return nil, fmt.Errorf("sqlite: scan item: %w", err)
		}
		out = append(out, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("sqlite: iter items: %w", err)
	}
	return out, nil
}

func (r *ItemRepo) UpdateItem(ctx context.Context, it *item.Item) error {
	const q = `UPDATE items SET title = ?, description = ?, completed = ?, updated_at = ?
		WHERE id = ? AND user_id = ?`
	res, err := r.db.ExecContext(
		ctx, q,
		it.Title, nullableString(it.Description), it.Completed, encodeTime(it.UpdatedAt), it.ID, it.UserID,
	)
	if err != nil {
		return fmt.Errorf("sqlite: update item: %w", err)
	}
	return requireAffected(res, "update item")
}

func (r *ItemRepo) DeleteItem(ctx context.Context, userID string, id core.ID) error {
	res, err := r.db.ExecContext(ctx, `DELETE FROM items WHERE id = ? AND user_id = ?`, id, userID)
	if err != nil {
		return fmt.Errorf("sqlite: delete item: %w", err)
	}
	return requireAffected(res, "delete item")
}

func requireAffected(res sql.Result, op string) error {
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("sqlite: rows affected (%s): %w", op, err)
	}
	if n == 0 {
		return item.ErrNotFound
	}
	return nil
}

func scanItem(row rowScanner) (*item.Item, error) {
	var (
		it               item.Item
		desc             sql.NullString
		created, updated string
	)
	if err := row.Scan(&it.ID, &it.UserID, &it.Title, &desc, &it.Completed, &created, &updated); err != nil {
		return nil, err
	}
	it.Description = stringPtr(desc)
	var err error
	if it.CreatedAt, err = decodeTime(created); err != nil {
		return nil, err
	}
	if it.UpdatedAt, err = decodeTime(updated); err != nil {
		return nil, err
	}
	return &it, nil
}
