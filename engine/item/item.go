package item

import (
	"time"

	"github.com/taskchat/taskchat/engine/core"
)

const (
	MaxTitleLength       = 255
	MaxDescriptionLength = 2000
	DefaultListLimit     = 10
	MaxListLimit         = 100
)

// Item is a todo entry owned by a single user.
type Item struct {
	ID          core.ID   `json:"id"                    db:"id"`
	UserID      string    `json:"-"                     db:"user_id"`
	Title       string    `json:"title"                 db:"title"`
	Description *string   `json:"description,omitempty" db:"description"`
	Completed   bool      `json:"completed"             db:"completed"`
	CreatedAt   time.Time `json:"created_at"            db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"            db:"updated_at"`
}

type CreateInput struct {
	Title       string
	Description *string
}

// UpdateInput holds a partial update; nil fields are left unchanged.
type UpdateInput struct {
	Title       *string
	Description *string
	Completed   *bool
}

func (u UpdateInput) IsEmpty() bool {
	return u.Title == nil && u.Description == nil && u.Completed == nil
}

type ListFilter struct {
	Completed *bool
	Limit     int
}
