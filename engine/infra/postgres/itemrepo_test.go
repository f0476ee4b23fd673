package postgres

import (
	"context"
	"testing"
	"time"

	"github.com/pashagolub/pgxmock/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/taskchat/taskchat/engine/core"
	"github.com/taskchat/taskchat/engine/item"
)

func TestItemRepo(t *testing.T) {
	t.Run("Should insert items with all columns", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewItemRepo(mockPool)
		now := time.Now().UTC()
		it := &item.Item{ID: core.MustNewID(), UserID: "user-1", Title: "milk", CreatedAt: now, UpdatedAt: now}
		mockPool.ExpectExec("INSERT INTO items").
			WithArgs(it.ID, it.UserID, it.Title, it.Description, it.Completed, it.CreatedAt, it.UpdatedAt).
			WillReturnResult(pgxmock.NewResult("INSERT", 1))
		require.NoError(t, repo.CreateItem(context.Background(), it))
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should scope lookups by owner", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewItemRepo(mockPool)
		id := core.MustNewID()
		mockPool.ExpectQuery("SELECT (.+) FROM items WHERE id = \\$1 AND user_id = \\$2").
			WithArgs(id.String(), "user-2").
			WillReturnRows(mockPool.NewRows(itemColumns))
		_, err = repo.GetItem(context.Background(), "user-2", id)
		require.ErrorIs(t, err, item.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should apply the completion filter and limit", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewItemRepo(mockPool)
		now := time.Now().UTC()
		done := true
		mockPool.ExpectQuery("SELECT (.+) FROM items WHERE user_id = \\$1 AND completed = \\$2 ORDER BY created_at DESC, id DESC LIMIT 5").
			WithArgs("user-1", true).
			WillReturnRows(mockPool.NewRows(itemColumns).
				AddRow(core.MustNewID(), "user-1", "milk", (*string)(nil), true, now, now))
		items, err := repo.ListItems(context.Background(), "user-1", item.ListFilter{Completed: &done, Limit: 5})
		require.NoError(t, err)
		require.Len(t, items, 1)
		assert.True(t, items[0].Completed)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})

	t.Run("Should report missing rows on update and delete", func(t *testing.T) {
		mockPool, err := pgxmock.NewPool()
		require.NoError(t, err)
		defer mockPool.Close()
		repo := NewItemRepo(mockPool)
		id := core.MustNewID()
		mockPool.ExpectExec("UPDATE items SET").WillReturnResult(pgxmock.NewResult("UPDATE", 0))
		mockPool.ExpectExec("DELETE FROM items").
			WithArgs(id, "user-1").
			WillReturnResult(pgxmock.NewResult("DELETE", 0))
		err = repo.UpdateItem(context.Background(), &item.Item{ID: id, UserID: "user-1", Title: "x"})
		require.ErrorIs(t, err, item.ErrNotFound)
		err = repo.DeleteItem(context.Background(), "user-1", id)
		require.ErrorIs(t, err, item.ErrNotFound)
		assert.NoError(t, mockPool.ExpectationsWereMet())
	})
}

func TestConfig_DSN(t *testing.T) {
	t.Run("Should prefer the explicit connection string", func(t *testing.T) {
		cfg := &Config{ConnString: "postgres://a@b/c", Host: "ignored"}
		assert.Equal(t, "postgres://a@b/c", cfg.DSN())
	})

	t.Run("Should synthesize a DSN from components", func(t *testing.T) {
		cfg := &Config{Host: "db", Port: "5432", User: "app", Password: "p@ss", DBName: "taskchat"}
		assert.Equal(t, "postgres://app:p%40ss@db:5432/taskchat?sslmode=disable", cfg.DSN())
	})
}
