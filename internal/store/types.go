package store

import (
	"time"

	"github.com/teemow/replydesk/internal/gmail"
)

// Proposal is the open negotiation state of one thread: the slot the
// system last put forward and is waiting to have confirmed. At most one
// exists per thread.
type Proposal struct {
	ThreadKey    string    `json:"thread_key"`
	Slot         time.Time `json:"slot"`
	Subject      string    `json:"subject"`
	Participants []string  `json:"participants"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// DashboardRecord is the audit row for one processed message. Exactly one
// is appended per message; only Status may change afterwards, on a human
// decision.
type DashboardRecord struct {
	UID        string    `json:"uid"`
	From       string    `json:"from"`
	Subject    string    `json:"subject"`
	Intent     string    `json:"intent"`
	Confidence string    `json:"confidence"`
	Sensitive  bool      `json:"sensitive"`
	Date       time.Time `json:"date"`
	Reply      string    `json:"reply"`
	Status     string    `json:"status"`
}

// ReviewItem is a message held for human review together with its drafted
// reply. Removed exactly once, by exactly one decision.
type ReviewItem struct {
	Message    gmail.Message `json:"message"`
	DraftReply string        `json:"draft_reply"`
	QueuedAt   time.Time     `json:"queued_at"`
}

// ThreadMessage is one entry in a thread's message history.
type ThreadMessage struct {
	From    string    `json:"from"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	Reply   string    `json:"reply"`
	Status  string    `json:"status"`
	Date    time.Time `json:"date"`
}

// ConfirmedEvent records a meeting the negotiation closed on.
type ConfirmedEvent struct {
	Subject      string    `json:"subject"`
	Slot         time.Time `json:"slot"`
	Participants []string  `json:"participants"`
	ConfirmedBy  string    `json:"confirmed_by"`
	ConfirmedAt  time.Time `json:"confirmed_at"`
}

// SentRecord is one entry in the outbound send history.
type SentRecord struct {
	To      string    `json:"to"`
	Subject string    `json:"subject"`
	Body    string    `json:"body"`
	SentAt  time.Time `json:"sent_at"`
}

// Statistics aggregates dashboard records for the reporting surface.
type Statistics struct {
	Total        int            `json:"total"`
	ByIntent     map[string]int `json:"by_intent"`
	ByStatus     map[string]int `json:"by_status"`
	ByConfidence map[string]int `json:"by_confidence"`
}
