package triage_tools

import (
	"context"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/replydesk/internal/instrumentation"
	"github.com/teemow/replydesk/internal/server"
)

// RegisterReportTools registers the read-only reporting tools.
func RegisterReportTools(s *mcpserver.MCPServer, sc *server.ServerContext, metrics *instrumentation.Metrics) error {
	dashboardTool := mcp.NewTool("triage_list_dashboard",
		mcp.WithDescription("List the dashboard records: one audit row per processed message with intent, confidence, reply, and outcome status"),
	)
	s.AddTool(dashboardTool, instrument(metrics, "triage_list_dashboard", func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(sc.Store().DashboardRecords())
	}))

	reviewQueueTool := mcp.NewTool("triage_list_review_queue",
		mcp.WithDescription("List messages waiting for human review together with their drafted replies"),
	)
	s.AddTool(reviewQueueTool, instrument(metrics, "triage_list_review_queue", func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(sc.Store().ReviewItems())
	}))

	threadsTool := mcp.NewTool("triage_list_threads",
		mcp.WithDescription("List per-thread message histories with replies and outcome statuses"),
	)
	s.AddTool(threadsTool, instrument(metrics, "triage_list_threads", func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(sc.Store().Threads())
	}))

	proposalsTool := mcp.NewTool("triage_list_proposals",
		mcp.WithDescription("List the open meeting proposals, one per negotiating thread"),
	)
	s.AddTool(proposalsTool, instrument(metrics, "triage_list_proposals", func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(sc.Store().Proposals())
	}))

	confirmedTool := mcp.NewTool("triage_list_confirmed_events",
		mcp.WithDescription("List confirmed meetings with slot, participants, and who confirmed"),
	)
	s.AddTool(confirmedTool, instrument(metrics, "triage_list_confirmed_events", func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(sc.Store().ConfirmedEvents())
	}))

	sentTool := mcp.NewTool("triage_list_sent_history",
		mcp.WithDescription("List the outbound replies the system has sent"),
	)
	s.AddTool(sentTool, instrument(metrics, "triage_list_sent_history", func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(sc.Store().SentHistory())
	}))

	statisticsTool := mcp.NewTool("triage_get_statistics",
		mcp.WithDescription("Aggregate dashboard records by intent, confidence, and outcome status"),
	)
	s.AddTool(statisticsTool, instrument(metrics, "triage_get_statistics", func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return jsonResult(sc.Store().GetStatistics())
	}))

	return nil
}
