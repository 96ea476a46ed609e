// Package triage_tools provides MCP (Model Context Protocol) tools for
// the email triage service.
//
// This is the service's reporting and control surface: AI assistants and
// other MCP clients can trigger inbox passes, inspect the dashboard,
// thread histories, confirmed events, and sent history, and resolve
// pending human review items. All tools operate on the single triage
// system owned by the server context; decisions go through the engine so
// they serialize with running passes.
package triage_tools
