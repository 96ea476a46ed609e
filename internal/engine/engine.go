package engine

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/teemow/replydesk/internal/assistant"
	"github.com/teemow/replydesk/internal/calendar"
	"github.com/teemow/replydesk/internal/gmail"
	"github.com/teemow/replydesk/internal/instrumentation"
	"github.com/teemow/replydesk/internal/logging"
	"github.com/teemow/replydesk/internal/store"
)

// Engine drives the meeting negotiation over the store's state.
type Engine struct {
	// mu is the single gate shared by inbox passes and review resolution.
	mu sync.Mutex

	mailbox   Mailbox
	scheduler Scheduler
	assistant Assistant
	store     *store.Store

	metrics *instrumentation.Metrics
	logger  *slog.Logger
}

// New creates an engine over the given adapters and store. metrics and
// logger may be nil.
func New(mailbox Mailbox, scheduler Scheduler, assistant Assistant, st *store.Store, metrics *instrumentation.Metrics, logger *slog.Logger) *Engine {
	if metrics == nil {
		metrics = &instrumentation.Metrics{}
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Engine{
		mailbox:   mailbox,
		scheduler: scheduler,
		assistant: assistant,
		store:     st,
		metrics:   metrics,
		logger:    logger,
	}
}

// ProcessInbox runs one pass: fetch every unseen message, process each in
// arrival order, record one dashboard row per message, and snapshot the
// state. Only the initial fetch can fail the pass; per-message adapter
// errors are absorbed.
func (e *Engine) ProcessInbox(ctx context.Context) (PassSummary, error) {
	e.mu.Lock()
	defer e.mu.Unlock()

	start := time.Now()

	fetchStart := time.Now()
	msgs, err := e.mailbox.FetchUnseen(ctx)
	if err != nil {
		e.metrics.RecordAdapterOperation(ctx, instrumentation.AdapterMailbox, "fetch", instrumentation.StatusError, time.Since(fetchStart))
		e.metrics.RecordInboxPass(ctx, instrumentation.StatusError, 0, time.Since(start))
		return PassSummary{}, fmt.Errorf("failed to fetch unseen messages: %w", err)
	}
	e.metrics.RecordAdapterOperation(ctx, instrumentation.AdapterMailbox, "fetch", instrumentation.StatusSuccess, time.Since(fetchStart))

	summary := PassSummary{
		Fetched:  len(msgs),
		Outcomes: make(map[string]int),
	}

	for i := range msgs {
		msg := &msgs[i]
		out := e.process(ctx, msg)
		e.record(msg, out)

		summary.Outcomes[out.status]++
		e.metrics.RecordMessageOutcome(ctx, out.analysis.Intent, out.status)

		// The message is recorded; it must not be fetched again even if
		// marking fails on a later pass.
		if err := e.mailbox.MarkRead(msg.UID); err != nil {
			e.logger.Warn("failed to mark message read",
				logging.UID(msg.UID), logging.Err(err))
		}

		e.logger.Info("message processed",
			logging.Operation("process"),
			logging.UID(msg.UID),
			logging.Thread(msg.ThreadKey),
			logging.Intent(out.analysis.Intent),
			slog.String("status", out.status))
	}

	e.saveSnapshot()
	e.metrics.RecordInboxPass(ctx, instrumentation.StatusSuccess, len(msgs), time.Since(start))

	return summary, nil
}

// process maps one message to its outcome, mutating proposals, the review
// queue, sent history, and confirmed events along the way. The dashboard
// and thread history are written by record, never here.
func (e *Engine) process(ctx context.Context, msg *gmail.Message) outcome {
	classifyStart := time.Now()
	analysis, err := e.assistant.Classify(ctx, msg.Subject, msg.Body)
	if err != nil {
		// The fallback analysis still routes the message; the failure only
		// shows up in logs and metrics.
		e.metrics.RecordAdapterOperation(ctx, instrumentation.AdapterClassifier, "classify", instrumentation.StatusError, time.Since(classifyStart))
		e.logger.Error("classification failed",
			logging.UID(msg.UID), logging.Thread(msg.ThreadKey), logging.Err(err))
	} else {
		e.metrics.RecordAdapterOperation(ctx, instrumentation.AdapterClassifier, "classify", instrumentation.StatusSuccess, time.Since(classifyStart))
	}

	if analysis.IsConfirmation() {
		return e.handleConfirmation(ctx, msg, analysis)
	}

	if !analysis.IsMeetingRequest() {
		return outcome{analysis: analysis, status: StatusSkippedIntent}
	}

	if !recipientAllowed(msg, e.mailbox.Address()) {
		return outcome{analysis: analysis, status: StatusSkippedRecipientFilter}
	}

	return e.negotiate(ctx, msg, analysis)
}

// handleConfirmation closes the thread's negotiation: send the fixed
// acknowledgement and, if a proposal is open, pop it into a confirmed
// event and create the calendar entry.
func (e *Engine) handleConfirmation(ctx context.Context, msg *gmail.Message, analysis assistant.Analysis) outcome {
	e.send(ctx, msg, AckText)

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

	return outcome{analysis: analysis, status: StatusAutoRepliedConfirmation, reply: AckText}
}

// negotiate handles a meeting request that passed the recipient filter.
func (e *Engine) negotiate(ctx context.Context, msg *gmail.Message, analysis assistant.Analysis) outcome {
	firstInThread := !e.store.ThreadSeen(msg.ThreadKey)
	openProposal, followUp := e.store.Proposal(msg.ThreadKey)

	req := assistant.DraftRequest{
		Subject:       msg.Subject,
		Body:          msg.Body,
		SenderName:    msg.SenderName(),
		Analysis:      analysis,
		FirstInThread: firstInThread,
	}

	if analysis.MeetingTime == "" {
		draft := e.assistant.DraftReply(ctx, req)
		e.queueForReview(msg, draft)
		return outcome{analysis: analysis, status: StatusReviewNoTimeFound, reply: draft}
	}

	availStart := time.Now()
	av, err := e.scheduler.CheckAvailability(ctx, analysis.MeetingTime)
	if err != nil {
		// A broken calendar lookup must not abort the pass; escalate the
		// message instead.
		e.metrics.RecordAdapterOperation(ctx, instrumentation.AdapterCalendar, "check_availability", instrumentation.StatusError, time.Since(availStart))
		e.logger.Error("availability check failed",
			logging.Thread(msg.ThreadKey), logging.Err(err))
		av = calendar.Availability{Status: calendar.StatusUnknown}
	} else {
		e.metrics.RecordAdapterOperation(ctx, instrumentation.AdapterCalendar, "check_availability", instrumentation.StatusSuccess, time.Since(availStart))
	}

	switch av.Status {
	case calendar.StatusBusy:
		req.AvailabilityChecked = true
		req.Alternatives = av.Alternatives
		draft := e.assistant.DraftReply(ctx, req)
		e.send(ctx, msg, draft)

		if len(av.Alternatives) > 0 {
			slot := av.Alternatives[0]
			if followUp {
				openProposal.Slot = slot
				e.store.PutProposal(openProposal)
			} else {
				e.store.PutProposal(store.Proposal{
					ThreadKey:    msg.ThreadKey,
					Slot:         slot,
					Subject:      msg.Subject,
					Participants: []string{msg.From, e.mailbox.Address()},
				})
			}
		}
		return outcome{analysis: analysis, status: StatusAutoRepliedBusy, reply: draft}

	case calendar.StatusFree:
		req.AvailabilityChecked = true
		req.SlotFree = true
		req.Requested = av.Requested
		draft := e.assistant.DraftReply(ctx, req)
		e.queueForReview(msg, draft)

		if followUp {
			openProposal.Slot = av.Requested
			e.store.PutProposal(openProposal)
		} else {
			e.store.PutProposal(store.Proposal{
				ThreadKey:    msg.ThreadKey,
				Slot:         av.Requested,
				Subject:      msg.Subject,
				Participants: []string{msg.From, e.mailbox.Address()},
			})
		}
		return outcome{analysis: analysis, status: StatusReviewSlotFree, reply: draft}

	default:
		// Unknown calendar status: escalate without touching proposals.
		draft := e.assistant.DraftReply(ctx, req)
		e.queueForReview(msg, draft)
		return outcome{analysis: analysis, status: StatusReviewUnknownCalendar, reply: draft}
	}
}

// send replies in-thread and records the sent history on success. Send
// failures are logged, never propagated.
func (e *Engine) send(ctx context.Context, msg *gmail.Message, body string) {
	start := time.Now()
	if err := e.mailbox.Reply(msg, body); err != nil {
		e.metrics.RecordAdapterOperation(ctx, instrumentation.AdapterMailbox, "reply", instrumentation.StatusError, time.Since(start))
		e.logger.Error("failed to send reply",
			logging.UID(msg.UID), logging.Thread(msg.ThreadKey), logging.Err(err))
		return
	}
	e.metrics.RecordAdapterOperation(ctx, instrumentation.AdapterMailbox, "reply", instrumentation.StatusSuccess, time.Since(start))
	e.store.AppendSent(store.SentRecord{
		To:      msg.From,
		Subject: msg.ReplySubject(),
		Body:    body,
		SentAt:  time.Now(),
	})
}

// queueForReview holds a drafted reply for human review and labels the
// message, best-effort.
func (e *Engine) queueForReview(msg *gmail.Message, draft string) {
	e.store.QueueReview(store.ReviewItem{
		Message:    *msg,
		DraftReply: draft,
		QueuedAt:   time.Now(),
	})
	if err := e.mailbox.ApplyNeedsReviewLabel(msg.UID); err != nil {
		e.logger.Warn("failed to apply review label",
			logging.UID(msg.UID), logging.Err(err))
	}
}

// record writes the single dashboard row and thread-history entry for a
// processed message. Every message gets exactly one of each, whatever the
// outcome.
func (e *Engine) record(msg *gmail.Message, out outcome) {
	e.store.AppendDashboard(store.DashboardRecord{
		UID:        msg.UID,
		From:       msg.From,
		Subject:    msg.Subject,
		Intent:     out.analysis.Intent,
		Confidence: out.analysis.Confidence,
		Sensitive:  out.analysis.Sensitive,
		Date:       msg.Date,
		Reply:      out.reply,
		Status:     out.status,
	})
	e.store.AppendThreadMessage(msg.ThreadKey, store.ThreadMessage{
		From:    msg.From,
		Subject: msg.Subject,
		Body:    msg.Body,
		Reply:   out.reply,
		Status:  out.status,
		Date:    msg.Date,
	})
}

// saveSnapshot persists the store, logging instead of failing: losing a
// snapshot is recoverable, aborting a pass over it is not.
func (e *Engine) saveSnapshot() {
	if err := e.store.Save(); err != nil {
		e.logger.Error("failed to save state snapshot", logging.Err(err))
	}
}

// recipientAllowed implements the direct-mail filter: the mailbox address
// must be in To, and the distinct case-folded To+Cc set must not exceed
// two addresses.
func recipientAllowed(msg *gmail.Message, mailbox string) bool {
	mailbox = strings.ToLower(mailbox)

	inTo := false
	distinct := make(map[string]struct{})
	for _, addr := range msg.To {
		addr = strings.ToLower(addr)
		distinct[addr] = struct{}{}
		if addr == mailbox {
			inTo = true
		}
	}
	for _, addr := range msg.Cc {
		distinct[strings.ToLower(addr)] = struct{}{}
	}

	return inTo && len(distinct) <= 2
}
