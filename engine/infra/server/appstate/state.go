package appstate

import (
	"context"
	"fmt"

	"github.com/gin-gonic/gin"
	"github.com/taskchat/taskchat/engine/agent"
	"github.com/taskchat/taskchat/engine/conversation"
	"github.com/taskchat/taskchat/engine/infra/repo"
)

type contextKey string

const (
	stateKey contextKey = "app_state"
)

// BaseDeps are the request-independent services handlers read from.
type BaseDeps struct {
	Store         *repo.Provider
	Conversations *conversation.Store
	Dispatcher    *agent.Dispatcher
}

func NewBaseDeps(store *repo.Provider, conversations *conversation.Store, dispatcher *agent.Dispatcher) BaseDeps {
	return BaseDeps{
		Store:         store,
		Conversations: conversations,
		Dispatcher:    dispatcher,
	}
}

type State struct {
	BaseDeps
}

func NewState(deps BaseDeps) (*State, error) {
	if deps.Conversations == nil {
		return nil, fmt.Errorf("conversation store is required")
	}
	if deps.Dispatcher == nil {
		return nil, fmt.Errorf("dispatcher is required")
	}
	return &State{BaseDeps: deps}, nil
}

func WithState(ctx context.Context, state *State) context.Context {
	return context.WithValue(ctx, stateKey, state)
}

func GetState(ctx context.Context) (*State, error) {
	state, ok := ctx.Value(stateKey).(*State)
	if !ok {
		return nil, fmt.Errorf("app state not found in context")
	}
	return state, nil
}

func StateMiddleware(state *State) gin.HandlerFunc {
	return func(c *gin.Context) {
		ctx := WithState(c.Request.Context(), state)
		c.Request = c.Request.WithContext(ctx)
		c.Next()
	}
}
