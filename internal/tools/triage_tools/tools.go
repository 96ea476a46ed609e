package triage_tools

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"

	"github.com/teemow/replydesk/internal/instrumentation"
	"github.com/teemow/replydesk/internal/server"
)

// toolHandler is the raw handler shape before instrumentation wrapping.
type toolHandler = mcpserver.ToolHandlerFunc

// RegisterTriageTools registers all triage tools with the MCP server.
// metrics may be nil when instrumentation is disabled.
func RegisterTriageTools(s *mcpserver.MCPServer, sc *server.ServerContext, metrics *instrumentation.Metrics) error {
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}

	if err := RegisterActionTools(s, sc, metrics); err != nil {
		return fmt.Errorf("failed to register action tools: %w", err)
	}
	if err := RegisterReportTools(s, sc, metrics); err != nil {
		return fmt.Errorf("failed to register report tools: %w", err)
	}
	return nil
}

// instrument wraps a handler so every invocation is timed and counted.
func instrument(metrics *instrumentation.Metrics, name string, handler toolHandler) toolHandler {
	return func(ctx context.Context, request mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		start := time.Now()
		result, err := handler(ctx, request)

		status := instrumentation.StatusSuccess
		if err != nil || (result != nil && result.IsError) {
			status = instrumentation.StatusError
		}
		metrics.RecordToolInvocation(ctx, name, status, time.Since(start))

		return result, err
	}
}

// requiredStringArg extracts a required string argument.
func requiredStringArg(args map[string]interface{}, key string) (string, error) {
	val, ok := args[key].(string)
	if !ok || val == "" {
		return "", fmt.Errorf("%s is required", key)
	}
	return val, nil
}

// optionalStringArg extracts an optional string argument, returning the
// default when absent or empty.
func optionalStringArg(args map[string]interface{}, key, defaultValue string) string {
	if val, ok := args[key].(string); ok && val != "" {
		return val
	}
	return defaultValue
}

// jsonResult renders a value as an indented JSON tool result.
func jsonResult(v interface{}) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("Failed to serialize result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}
