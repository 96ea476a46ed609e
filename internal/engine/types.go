package engine

import (
	"context"
	"time"

	"github.com/teemow/replydesk/internal/assistant"
	"github.com/teemow/replydesk/internal/calendar"
	"github.com/teemow/replydesk/internal/gmail"
)

// Outcome status values. These form a fixed enum; dashboards and metrics
// rely on the exact strings.
const (
	StatusAutoRepliedConfirmation = "auto-replied (confirmation)"
	StatusSkippedIntent           = "skipped (intent)"
	StatusSkippedRecipientFilter  = "skipped (recipient filter)"
	StatusAutoRepliedBusy         = "auto-replied (busy, alternatives sent)"
	StatusReviewSlotFree          = "sent for human review (slot free)"
	StatusReviewUnknownCalendar   = "sent for human review (unknown calendar status)"
	StatusReviewNoTimeFound       = "sent for human review (no time found)"
	StatusHumanReviewedSent       = "human-reviewed: sent"
	StatusSkipped                 = "skipped"
)

// AckText is the fixed acknowledgement sent when a confirmation closes a
// negotiation.
const AckText = "Okay, thank you! Meet you then."

// Human review decision actions.
const (
	ActionSend = "send"
	ActionSkip = "skip"
)

// Mailbox is the mail transport the engine drives.
type Mailbox interface {
	// Address returns the mailbox's own email address, used by the
	// recipient filter and as a proposal participant.
	Address() string
	FetchUnseen(ctx context.Context) ([]gmail.Message, error)
	Reply(msg *gmail.Message, body string) error
	MarkRead(messageID string) error
	ApplyNeedsReviewLabel(messageID string) error
}

// Scheduler answers free/busy questions and records confirmed meetings.
type Scheduler interface {
	CheckAvailability(ctx context.Context, requestedTime string) (calendar.Availability, error)
	CreateEvent(ctx context.Context, summary string, slot time.Time, participants []string) error
}

// Assistant classifies messages and drafts replies. Classify returns a
// usable analysis even on failure; the error reports that the fallback
// was taken.
type Assistant interface {
	Classify(ctx context.Context, subject, body string) (assistant.Analysis, error)
	DraftReply(ctx context.Context, req assistant.DraftRequest) string
}

// PassSummary reports what one inbox pass did.
type PassSummary struct {
	// Fetched is the number of unseen messages the pass consumed.
	Fetched int

	// Outcomes counts messages per outcome status.
	Outcomes map[string]int
}

// outcome is the per-message result the single record mapping consumes.
type outcome struct {
	analysis assistant.Analysis
	status   string
	reply    string
}
