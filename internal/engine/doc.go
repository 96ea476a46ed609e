// Package engine implements the negotiation core: it consumes inbound
// messages one at a time, consults the classifier, the calendar, and the
// thread-scoped proposal state, and produces exactly one outcome per
// message (auto-reply and close, auto-reply and keep pending, escalate to
// human review, or confirm and record).
//
// The engine owns all state mutations. Inbox passes and human review
// resolution share one mutex, so concurrent surfaces (CLI, MCP tools)
// serialize on the same gate. Adapter failures are absorbed per message;
// a single bad classification, calendar lookup, or send never aborts a
// pass.
package engine
