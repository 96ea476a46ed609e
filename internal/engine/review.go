package engine

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/teemow/replydesk/internal/instrumentation"
	"github.com/teemow/replydesk/internal/logging"
	"github.com/teemow/replydesk/internal/store"
)

// Resolve applies a human decision to a pending review item.
//
// The item is removed exactly once; a messageID with no pending item is a
// silent no-op, so a stale surface retrying a decision does nothing. For
// "send" the edited reply text must be non-empty; it is sent in the
// original thread and, if the thread has an open proposal, human approval
// counts as confirmation and pops it into a confirmed event. Send
// failures are logged, not rolled back. For "skip" the item is dropped
// and the dashboard row marked skipped.
func (e *Engine) Resolve(ctx context.Context, messageID, action, editedReply string) error {
	switch action {
	case ActionSend:
		if strings.TrimSpace(editedReply) == "" {
			return fmt.Errorf("reply text is required for action %q", ActionSend)
		}
	case ActionSkip:
	default:
		return fmt.Errorf("unknown action %q, must be %q or %q", action, ActionSend, ActionSkip)
	}

	e.mu.Lock()
	defer e.mu.Unlock()

	item, ok := e.store.TakeReview(messageID)
	if !ok {
		e.logger.Info("no pending review item, ignoring decision",
			logging.Operation("resolve_review"), logging.UID(messageID))
		return nil
	}

	if action == ActionSkip {
		e.store.SetDashboardStatus(messageID, StatusSkipped)
		e.metrics.RecordReviewDecision(ctx, ActionSkip)
		e.saveSnapshot()

		e.logger.Info("review item skipped",
			logging.Operation("resolve_review"), logging.UID(messageID))
		return nil
	}

	msg := item.Message

	sendStart := time.Now()
	if err := e.mailbox.Reply(&msg, editedReply); err != nil {
		e.metrics.RecordAdapterOperation(ctx, instrumentation.AdapterMailbox, "reply", instrumentation.StatusError, time.Since(sendStart))
		e.logger.Error("failed to send reviewed reply",
			logging.Operation("resolve_review"), logging.UID(messageID), logging.Err(err))
	} else {
		e.metrics.RecordAdapterOperation(ctx, instrumentation.AdapterMailbox, "reply", instrumentation.StatusSuccess, time.Since(sendStart))
		e.store.AppendSent(store.SentRecord{
			To:      msg.From,
			Subject: msg.ReplySubject(),
			Body:    editedReply,
			SentAt:  time.Now(),
		})
	}

	e.store.SetDashboardStatus(messageID, StatusHumanReviewedSent)

	// Approving the drafted reply is itself a confirmation of the open
	// proposal.
	if p, ok := e.store.PopProposal(msg.ThreadKey); ok {
		e.store.AppendConfirmed(store.ConfirmedEvent{
			Subject:      p.Subject,
			Slot:         p.Slot,
			Participants: p.Participants,
			ConfirmedBy:  msg.From,
			ConfirmedAt:  msg.Date,
		})
		if err := e.scheduler.CreateEvent(ctx, p.Subject, p.Slot, p.Participants); err != nil {
			e.logger.Error("failed to create calendar event for confirmed meeting",
				logging.Thread(msg.ThreadKey), logging.Err(err))
		}
	}

	e.metrics.RecordReviewDecision(ctx, ActionSend)
	e.saveSnapshot()

	e.logger.Info("review item sent",
		logging.Operation("resolve_review"),
		logging.UID(messageID), logging.Thread(msg.ThreadKey))
	return nil
}
