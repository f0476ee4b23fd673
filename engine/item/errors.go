package item

import "errors"

var (
	ErrNotFound     = errors.New("item does not exist or does not belong to user")
	ErrInvalidInput = errors.New("invalid item input")
)
