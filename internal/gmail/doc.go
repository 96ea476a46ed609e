// Package gmail provides the mailbox adapter for the triage engine.
//
// It wraps the Gmail API for three concerns: listing unseen inbox messages
// as typed Message values, sending threaded replies that preserve the
// In-Reply-To/References chain, and best-effort labeling of messages that
// were routed to human review.
package gmail
