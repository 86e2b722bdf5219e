package inbox_tools

import (
	"context"
	"errors"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/inboxchat/internal/actions"
	"github.com/teemow/inboxchat/internal/gateway"
	"github.com/teemow/inboxchat/internal/server"
	"github.com/teemow/inboxchat/internal/tools/batch"
	"github.com/teemow/inboxchat/internal/tools/common"
)

// replyLookupLimit is how many recent emails inbox_send_reply searches when
// the caller leaves out the recipient or subject.
const replyLookupLimit = 50

func registerEmailTools(s *mcpserver.MCPServer, sc *server.ServerContext, readOnly bool) {
	listTool := mcp.NewTool("inbox_list_emails",
		mcp.WithDescription("List the most recent emails with their AI summaries"),
		mcp.WithNumber("limit",
			mcp.Description(fmt.Sprintf("Maximum number of emails to return, 1 to %d (default: %d)", gateway.MaxLimit, sc.EmailLimit())),
		),
	)
	s.AddTool(listTool, common.InstrumentedToolHandler("inbox_list_emails", true, sc, signedIn(sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleListEmails(ctx, request, sc)
	})))

	generateTool := mcp.NewTool("inbox_generate_reply",
		mcp.WithDescription("Draft an AI reply to an email. Nothing is sent."),
		mcp.WithString(common.ArgEmailID,
			mcp.Required(),
			mcp.Description("The ID of the email to reply to"),
		),
		mcp.WithString("customContext",
			mcp.Description("Extra instructions for the draft, e.g. 'decline politely'"),
		),
	)
	s.AddTool(generateTool, common.InstrumentedToolHandler("inbox_generate_reply", true, sc, signedIn(sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleGenerateReply(ctx, request, sc)
	})))

	if readOnly {
		return
	}

	sendReplyTool := mcp.NewTool("inbox_send_reply",
		mcp.WithDescription("Send a reply to an email. The subject gets a 'Re: ' prefix and the reply stays in the email's thread."),
		mcp.WithString(common.ArgEmailID,
			mcp.Required(),
			mcp.Description("The ID of the email being answered"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("The reply text"),
		),
		mcp.WithString("to",
			mcp.Description("Recipient address (default: the original sender)"),
		),
		mcp.WithString("subject",
			mcp.Description("Subject of the email being answered (default: looked up from recent emails)"),
		),
		mcp.WithString("threadId",
			mcp.Description("Thread of the email being answered (default: looked up from recent emails)"),
		),
	)
	s.AddTool(sendReplyTool, common.InstrumentedToolHandler("inbox_send_reply", false, sc, signedIn(sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSendReply(ctx, request, sc)
	})))

	sendTool := mcp.NewTool("inbox_send_email",
		mcp.WithDescription("Send a new email from the signed-in account"),
		mcp.WithString("to",
			mcp.Required(),
			mcp.Description("Recipient address"),
		),
		mcp.WithString("subject",
			mcp.Required(),
			mcp.Description("Email subject"),
		),
		mcp.WithString("body",
			mcp.Required(),
			mcp.Description("Email body (plain text)"),
		),
		mcp.WithString("threadId",
			mcp.Description("Thread to add the email to"),
		),
	)
	s.AddTool(sendTool, common.InstrumentedToolHandler("inbox_send_email", false, sc, signedIn(sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleSendEmail(ctx, request, sc)
	})))

	deleteTool := mcp.NewTool("inbox_delete_emails",
		mcp.WithDescription("Move one or more emails to the trash"),
		mcp.WithString(common.ArgEmailIDs,
			mcp.Required(),
			mcp.Description("Email ID (string) or array of email IDs to trash"),
		),
	)
	s.AddTool(deleteTool, common.InstrumentedToolHandler("inbox_delete_emails", false, sc, signedIn(sc, func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleDeleteEmails(ctx, request, sc)
	})))
}

func handleListEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	limit, err := common.IntArg(request.GetArguments(), "limit", sc.EmailLimit(), gateway.MaxLimit)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	emails, err := sc.Client().ListEmails(ctx, limit)
	if err != nil {
		return common.ErrorResult("list emails", err), nil
	}
	if emails == nil {
		emails = []gateway.Email{}
	}
	return common.JSONResult(map[string]any{"emails": emails, "count": len(emails)})
}

func handleGenerateReply(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	emailID, err := common.RequiredStringArg(args, common.ArgEmailID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	reply, err := sc.Client().GenerateReply(ctx, emailID, common.StringArg(args, "customContext"))
	if err != nil {
		return common.ErrorResult("generate reply", err), nil
	}
	return common.JSONResult(reply)
}

func handleSendReply(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()
	emailID, err := common.RequiredStringArg(args, common.ArgEmailID)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	body, err := common.RequiredStringArg(args, "body")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	original := gateway.Email{
		ID:          emailID,
		SenderEmail: common.StringArg(args, "to"),
		Subject:     common.StringArg(args, "subject"),
		ThreadID:    common.StringArg(args, "threadId"),
	}
	if original.SenderEmail == "" || original.Subject == "" {
		found, err := findRecentEmail(ctx, sc.Client(), emailID)
		if err != nil {
			return common.ErrorResult("look up email", err), nil
		}
		if found == nil {
			return mcp.NewToolResultError(fmt.Sprintf(
				"Email %s is not among the %d most recent emails. Pass 'to' and 'subject' explicitly.", emailID, replyLookupLimit)), nil
		}
		if original.SenderEmail != "" {
			found.SenderEmail = original.SenderEmail
		}
		if original.Subject != "" {
			found.Subject = original.Subject
		}
		if original.ThreadID != "" {
			found.ThreadID = original.ThreadID
		}
		original = *found
	}

	req := actions.BuildReply(original, body)
	if req.To == "" {
		return mcp.NewToolResultError("Could not determine the reply address. Pass 'to' explicitly."), nil
	}
	res, err := sc.Client().SendEmail(ctx, req)
	if err != nil {
		return common.ErrorResult("send reply", err), nil
	}
	return common.JSONResult(res)
}

func findRecentEmail(ctx context.Context, client *gateway.Client, emailID string) (*gateway.Email, error) {
	emails, err := client.ListEmails(ctx, replyLookupLimit)
	if err != nil {
		return nil, err
	}
	for _, e := range emails {
		if e.ID == emailID {
			return &e, nil
		}
	}
	return nil, nil
}

func handleSendEmail(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	var req gateway.SendRequest
	var err error
	if req.To, err = common.RequiredStringArg(args, "to"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.Subject, err = common.RequiredStringArg(args, "subject"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	if req.Body, err = common.RequiredStringArg(args, "body"); err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	req.ThreadID = common.StringArg(args, "threadId")

	res, err := sc.Client().SendEmail(ctx, req)
	if err != nil {
		return common.ErrorResult("send email", err), nil
	}
	return common.JSONResult(res)
}

func handleDeleteEmails(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	ids, err := batch.ParseIDs(request.GetArguments()[common.ArgEmailIDs], common.ArgEmailIDs)
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	results := batch.Process(ctx, ids, func(ctx context.Context, id string) (string, error) {
		if err := sc.Client().DeleteEmail(ctx, id); err != nil {
			return "", detailError{err}
		}
		return "moved to trash", nil
	}, isUnauthorized)

	return mcp.NewToolResultText(batch.FormatResults(results)), nil
}

// detailError reports the backend's detail text in batch results.
type detailError struct{ err error }

func (e detailError) Error() string { return gateway.ErrorDetail(e.err) }
func (e detailError) Unwrap() error { return e.err }

// isUnauthorized stops a batch once the session is gone; every later call
// would fail the same way.
func isUnauthorized(err error) bool {
	return errors.Is(err, gateway.ErrUnauthorized)
}
