package tool

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
)

// NewMCPServer exposes the registry over the Model Context Protocol with
// every call scoped to userID.
func NewMCPServer(r *Registry, userID, version string) (*server.MCPServer, error) {
	if userID == "" {
		return nil, fmt.Errorf("mcp server requires a user id")
	}
	s := server.NewMCPServer(
		"taskchat",
		version,
		server.WithToolCapabilities(false),
		server.WithRecovery(),
	)
	for _, t := range r.Tools() {
		def, err := t.Definition()
		if err != nil {
			return nil, err
		}
		s.AddTool(
			mcp.NewToolWithRawSchema(def.Name, def.Description, def.Parameters),
			mcpHandler(r, userID, def.Name),
		)
	}
	return s, nil
}

func mcpHandler(r *Registry, userID, name string) server.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		raw, err := json.Marshal(req.GetArguments())
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("failed to encode arguments: %v", err)), nil
		}
		res, err := r.Invoke(ctx, userID, name, raw)
		if err != nil {
			return mcp.NewToolResultError(string(ErrorPayload(err))), nil
		}
		return mcp.NewToolResultText(string(res.Output)), nil
	}
}
