package inbox_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/tools/common"
)

// notSignedIn is returned by every backend tool when the session has no credential.
const notSignedIn = "Not signed in. Run `inboxchat login` and try again."

// RegisterInboxTools registers all inbox tools with the MCP server.
func RegisterInboxTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) error {
	if s == nil {
		return fmt.Errorf("mcp server is required")
	}
	if sc == nil {
		return fmt.Errorf("server context is required")
	}

	registerAccountTools(s, sc)
	registerEmailTools(s, sc, readOnly)
	registerChatTools(s, sc)
	return nil
}

func registerAccountTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	whoamiTool := mcp.NewTool("inbox_whoami",
		mcp.WithDescription("Show the Google account the inbox session is signed in as"),
	)
	s.AddTool(whoamiTool, common.InstrumentedToolHandler("inbox_whoami", true, sc, signedIn(sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleWhoami(ctx, request, sc)
	})))

	healthTool := mcp.NewTool("backend_health",
		mcp.WithDescription("Check whether the inbox backend is reachable and healthy"),
	)
	s.AddTool(healthTool, common.InstrumentedToolHandler("backend_health", true, sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleHealth(ctx, request, sc)
	}))
}

func handleWhoami(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	user, err := sc.Client().CurrentUser(ctx)
	if err != nil {
		return common.ErrorResult("get current user", err), nil
	}
	return common.JSONResult(user)
}

func handleHealth(ctx context.Context, _ mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	status, err := sc.Client().Health(ctx)
	if err != nil {
		return common.ErrorResult("reach backend", err), nil
	}
	return common.JSONResult(map[string]any{
		"backend":       sc.Client().BaseURL(),
		"status":        status,
		"authenticated": sc.Session().Authenticated(),
	})
}

// signedIn rejects calls made without a session credential before they reach
// the backend.
func signedIn(sc *server.ServerContext, handler common.ToolHandler) common.ToolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		if !sc.Session().Authenticated() {
			return mcp.NewToolResultError(notSignedIn), nil
		}
		return handler(ctx, request)
	}
}
