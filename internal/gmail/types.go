package gmail

import (
	"strings"
	"time"
)

// Message is an inbound mail message as seen by the triage engine.
// It is immutable once fetched.
type Message struct {
	// UID is the Gmail message id, used as the dashboard/review key.
	UID string

	// ThreadKey is the conversation identity: the In-Reply-To header,
	// falling back to the message's own Message-ID, falling back to UID.
	ThreadKey string

	// GmailThreadID is the provider-side thread id, needed to reply
	// in-thread through the API.
	GmailThreadID string

	From     string // sender address only
	FromName string // sender display name, may be empty
	Subject  string
	Body     string
	Date     time.Time

	// To and Cc hold the bare recipient addresses, lowercased.
	To []string
	Cc []string

	// MessageID and References are the raw threading headers, carried so a
	// reply can extend the chain.
	MessageID  string
	References string
}

// SenderName returns a short name to greet the sender with: the first word
// of the display name if present, otherwise the capitalized localpart of
// the address.
func (m *Message) SenderName() string {
	if m.FromName != "" {
		if fields := strings.Fields(m.FromName); len(fields) > 0 {
			return fields[0]
		}
	}
	local, _, found := strings.Cut(m.From, "@")
	if !found || local == "" {
		return m.From
	}
	return strings.ToUpper(local[:1]) + local[1:]
}

// ReplySubject returns the subject for a reply in this thread, prefixing
// "Re: " unless one is already present.
func (m *Message) ReplySubject() string {
	if strings.HasPrefix(strings.ToLower(m.Subject), "re:") {
		return m.Subject
	}
	return "Re: " + m.Subject
}

// replyReferences returns the References header for a reply to this
// message, extending the existing chain with the message's own id.
func (m *Message) replyReferences() string {
	if m.MessageID == "" {
		return m.References
	}
	if m.References == "" {
		return m.MessageID
	}
	return m.References + " " + m.MessageID
}
