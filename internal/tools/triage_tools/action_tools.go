package triage_tools

import (
	"context"
	"fmt"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/replydesk/internal/engine"
	"github.com/teemow/replydesk/internal/instrumentation"
	"github.com/teemow/replydesk/internal/server"
)

// RegisterActionTools registers the tools that mutate triage state.
func RegisterActionTools(s *mcpserver.MCPServer, sc *server.ServerContext, metrics *instrumentation.Metrics) error {
	processTool := mcp.NewTool("triage_process_inbox",
		mcp.WithDescription("Run one inbox pass: fetch unseen messages, classify them, negotiate meeting slots, and queue drafts for human review"),
	)
	s.AddTool(processTool, instrument(metrics, "triage_process_inbox", func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleProcessInbox(ctx, sc)
	}))

	resolveTool := mcp.NewTool("triage_resolve_review",
		mcp.WithDescription("Resolve a pending human review item by sending the (optionally edited) drafted reply or skipping it"),
		mcp.WithString("messageId",
			mcp.Required(),
			mcp.Description("The message identifier of the review item (from triage_list_review_queue)"),
		),
		mcp.WithString("action",
			mcp.Required(),
			mcp.Description("Decision: 'send' to send the reply, 'skip' to drop it"),
		),
		mcp.WithString("replyText",
			mcp.Description("The reply text to send. Required for 'send'; defaults to the stored draft when omitted"),
		),
	)
	s.AddTool(resolveTool, instrument(metrics, "triage_resolve_review", func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleResolveReview(ctx, request, sc)
	}))

	clearTool := mcp.NewTool("triage_clear_dashboard",
		mcp.WithDescription("Clear the dashboard records. Review queue, threads, proposals, confirmed events, and sent history are retained"),
	)
	s.AddTool(clearTool, instrument(metrics, "triage_clear_dashboard", func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return handleClearDashboard(sc)
	}))

	return nil
}

func handleProcessInbox(ctx context.Context, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	summary, err := sc.Engine().ProcessInbox(ctx)
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Inbox pass failed: %v", err)), nil
	}
	return jsonResult(summary)
}

func handleResolveReview(ctx context.Context, request mcp.CallToolRequest, sc *server.ServerContext) (*mcp.CallToolResult, error) {
	args := request.GetArguments()

	messageID, err := requiredStringArg(args, "messageId")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}
	action, err := requiredStringArg(args, "action")
	if err != nil {
		return mcp.NewToolResultError(err.Error()), nil
	}

	replyText := optionalStringArg(args, "replyText", "")
	if action == engine.ActionSend && replyText == "" {
		// Sending without edits falls back to the stored draft.
		for _, item := range sc.Store().ReviewItems() {
			if item.Message.UID == messageID {
				replyText = item.DraftReply
				break
			}
		}
	}

	if err := sc.Engine().Resolve(ctx, messageID, action, replyText); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to resolve review item: %v", err)), nil
	}

	return mcp.NewToolResultText(fmt.Sprintf("Review item %s resolved with action %q", messageID, action)), nil
}

func handleClearDashboard(sc *server.ServerContext) (*mcp.CallToolResult, error) {
	sc.Store().ClearDashboard()
	if err := sc.Store().Save(); err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Dashboard cleared but snapshot failed: %v", err)), nil
	}
	return mcp.NewToolResultText("Dashboard cleared"), nil
}
