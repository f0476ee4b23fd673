package item

import (
	"context"
	"fmt"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/taskchat/taskchat/engine/core"
	"github.com/taskchat/taskchat/pkg/logger"
)

// Service applies validation and ownership rules on top of a Repository.
type Service struct {
	repo Repository
	now  func() time.Time
}

func NewService(repo Repository) *Service {
	return &Service{repo: repo, now: time.Now}
}

func (s *Service) Create(ctx context.Context, userID string, in CreateInput) (*Item, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	title, err := normalizeTitle(in.Title)
	if err != nil {
		return nil, err
	}
	desc, err := normalizeDescription(in.Description)
	if err != nil {
		return nil, err
	}
	id, err := core.NewID()
	if err != nil {
		return nil, err
	}
	now := s.stamp()
	it := &Item{
		ID:          id,
		UserID:      userID,
		Title:       title,
		Description: desc,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
	if err := s.repo.CreateItem(ctx, it); err != nil {
		return nil, fmt.Errorf("failed to create item: %w", err)
	}
	logger.FromContext(ctx).Debug("Item created", "item_id", it.ID, "user_id", userID)
	return it, nil
}

// List returns the user's items, newest first.
func (s *Service) List(ctx context.Context, userID string, filter ListFilter) ([]*Item, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if filter.Limit == 0 {
		filter.Limit = DefaultListLimit
	}
	if filter.Limit < 1 || filter.Limit > MaxListLimit {
		return nil, fmt.Errorf("%w: limit must be between 1 and %d", ErrInvalidInput, MaxListLimit)
	}
	items, err := s.repo.ListItems(ctx, userID, filter)
	if err != nil {
		return nil, fmt.Errorf("failed to list items: %w", err)
	}
	if items == nil {
		items = []*Item{}
	}
	return items, nil
}

func (s *Service) Get(ctx context.Context, userID string, id core.ID) (*Item, error) {
	if err := requireUser(userID); err != nil {
		return nil, err
	}
	if id.IsZero() {
		return nil, fmt.Errorf("%w: item id is required", ErrInvalidInput)
	}
	return s.repo.GetItem(ctx, userID, id)
}

func (s *Service) Update(ctx context.Context, userID string, id core.ID, in UpdateInput) (*Item, error) {
	if in.IsEmpty() {
		return nil, fmt.Errorf("%w: at least one field must be updated", ErrInvalidInput)
	}
	it, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if in.Title != nil {
		title, err := normalizeTitle(*in.Title)
		if err != nil {
			return nil, err
		}
		it.Title = title
	}
	if in.Description != nil {
		desc, err := normalizeDescription(in.Description)
		if err != nil {
			return nil, err
		}
		it.Description = desc
	}
	if in.Completed != nil {
		it.Completed = *in.Completed
	}
	it.UpdatedAt = s.stamp()
	if err := s.repo.UpdateItem(ctx, it); err != nil {
		return nil, fmt.Errorf("failed to update item: %w", err)
	}
	return it, nil
}

// Delete removes the item and returns its last state.
func (s *Service) Delete(ctx context.Context, userID string, id core.ID) (*Item, error) {
	it, err := s.Get(ctx, userID, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.DeleteItem(ctx, userID, id); err != nil {
		return nil, fmt.Errorf("failed to delete item: %w", err)
	}
	return it, nil
}

func (s *Service) stamp() time.Time {
	return s.now().UTC().Truncate(time.Microsecond)
}

func requireUser(userID string) error {
	if strings.TrimSpace(userID) == "" {
		return fmt.Errorf("%w: user id is required", ErrInvalidInput)
	}
	return nil
}

func normalizeTitle(raw string) (string, error) {
	title := strings.TrimSpace(raw)
	if title == "" {
		return "", fmt.Errorf("%w: title cannot be empty", ErrInvalidInput)
	}
	if utf8.RuneCountInString(title) > MaxTitleLength {
		return "", fmt.Errorf("%w: title exceeds %d characters", ErrInvalidInput, MaxTitleLength)
	}
	return title, nil
}

// normalizeDescription maps blank descriptions to nil.
func normalizeDescription(raw *string) (*string, error) {
	if raw == nil {
		return nil, nil
	}
	desc := strings.TrimSpace(*raw)
	if desc == "" {
		return nil, nil
	}
	if utf8.RuneCountInString(desc) > MaxDescriptionLength {
		return nil, fmt.Errorf("%w: description exceeds %d characters", ErrInvalidInput, MaxDescriptionLength)
	}
	return &desc, nil
}
