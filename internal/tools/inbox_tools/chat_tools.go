package inbox_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/tools/common"
)

// chatResult is the JSON shape of a chat or digest reply.
type chatResult struct {
	Kind                  string                `json:"kind"`
	Message               string                `json:"message,omitempty"`
	Intent                string                `json:"intent,omitempty"`
	Confidence            float64               `json:"confidence,omitempty"`
	Emails                []gateway.Email       `json:"emails,omitempty"`
	Categories            *gateway.Categories   `json:"categories,omitempty"`
	Digest                string                `json:"digest,omitempty"`
	DeletedEmail          *gateway.DeletedEmail `json:"deletedEmail,omitempty"`
	RequiresClarification bool                  `json:"requiresClarification,omitempty"`
}

func newChatResult(reply gateway.ChatReply) chatResult {
	out := chatResult{
		Kind:                  reply.Kind.String(),
		Message:               reply.Message,
		Intent:                reply.Intent,
		Confidence:            reply.Confidence,
		DeletedEmail:          reply.DeletedEmail,
		RequiresClarification: reply.RequiresClarification,
	}
	switch reply.Kind {
	case gateway.EmailList:
		out.Emails = reply.Emails
		if out.Emails == nil {
			out.Emails = []gateway.Email{}
		}
	case gateway.CategorizedBundle:
		categories := reply.Categories
		out.Categories = &categories
		out.Digest = reply.Digest
	}
	return out
}

func registerChatTools(s *mcpserver.MCPServer, sc *server.ServerContext) {
	chatTool := mcp.NewTool("inbox_chat",
		mcp.WithDescription("Send a natural-language instruction to the inbox assistant, e.g. 'show my unread emails'. "+
			"The assistant may list emails, summarize them, or trash a message it was asked to delete."),
		mcp.WithString("message",
			mcp.Required(),
			mcp.Description("The instruction for the assistant"),
		),
		mcp.WithArray("history",
			mcp.Description("Prior turns as objects with 'role' (user or assistant) and 'content'"),
		),
	)
	s.AddTool(chatTool, common.InstrumentedToolHandler("inbox_chat", true, sc, signedIn(sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleChat(ctx, request, sc)
	})))

	digestTool := mcp.NewTool("inbox_digest",
		mcp.WithDescription("Categorize recent emails into Work, Personal, Promotions and Urgent and summarize them in a daily digest"),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Number of recent emails to categorize, 1 to %d (default: %d)", gateway.MaxLimit, sc.CategorizeLimit())),
		),
	)
	s.AddTool(digestTool, common.InstrumentedToolHandler("inbox_digest", true, sc, signedIn(sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleDigest(ctx, request, sc)
	})))
}

func handleChat(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	message, err := common.RequiredStringArg(args, "message")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	history, err := parseHistory(args["history"])
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	reply, err := sc.Client().Chat(ctx, message, history)
	if err != nil {
		return common.ErrorResult("chat", err), nil
	}
	return common.JSONResult(newChatResult(reply))
}

func handleDigest(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	limit, err := common.IntArg(request.GetArguments(), "limit", sc.CategorizeLimit(), gateway.MaxLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	reply, err := sc.Client().Categorize(ctx, limit)
	if err != nil {
		return common.ErrorResult("categorize emails", err), nil
	}
	return common.JSONResult(newChatResult(reply))
}

// parseHistory reads the optional history argument. Only user and assistant
// turns are accepted.
func parseHistory(param any) ([]gateway.Turn, error) {
	if param == nil {
		return nil, nil
	}
	items, ok := param.([]any)
	if !ok {
		return nil, fmt.Errorf("history must be an array")
	}

	turns := make([]gateway.Turn, 0, len(items))
	for i, item := range items {
		obj, ok := item.(map[string]any)
		if !ok {
			return nil, fmt.Errorf("history[%d] must be an object", i)
		}
		role := common.StringArg(obj, "role")
		if role != "user" && role != "assistant" {
			return nil, fmt.Errorf("history[%d].role must be 'user' or 'assistant'", i)
		}
		turns = append(turns, gateway.Turn{Role: role, Content: common.StringArg(obj, "content")})
	}
	return turns, nil
}
