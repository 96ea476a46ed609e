// Package cmd implements the command-line interface for replydesk.
//
// This package provides the following commands:
//   - process: Run inbox triage passes over unseen Gmail messages
//   - review: List the human review queue and resolve pending items
//   - serve: Start the MCP server to provide triage tools for AI assistants
//   - auth: Authorize Google API access and store the OAuth token
//   - version: Display version information
//
// The process command is the default command when no subcommand is specified.
package cmd
