package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/teemow/replydesk/internal/assistant"
	"github.com/teemow/replydesk/internal/calendar"
	"github.com/teemow/replydesk/internal/gmail"
	"github.com/teemow/replydesk/internal/store"
)

const mailboxAddr = "me@example.com"

type sentReply struct {
	uid  string
	body string
}

type fakeMailbox struct {
	unseen   []gmail.Message
	fetchErr error
	replyErr error

	sent    []sentReply
	marked  []string
	labeled []string
}

func (f *fakeMailbox) Address() string { return mailboxAddr }

func (f *fakeMailbox) FetchUnseen(ctx context.Context) ([]gmail.Message, error) {
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.unseen, nil
}

func (f *fakeMailbox) Reply(msg *gmail.Message, body string) error {
	if f.replyErr != nil {
		return f.replyErr
	}
	f.sent = append(f.sent, sentReply{uid: msg.UID, body: body})
	return nil
}

func (f *fakeMailbox) MarkRead(messageID string) error {
	f.marked = append(f.marked, messageID)
	return nil
}

func (f *fakeMailbox) ApplyNeedsReviewLabel(messageID string) error {
	f.labeled = append(f.labeled, messageID)
	return nil
}

type createdEvent struct {
	summary      string
	slot         time.Time
	participants []string
}

type fakeScheduler struct {
	availability map[string]calendar.Availability
	checkErr     error
	createErr    error

	checked []string
	created []createdEvent
}

func (f *fakeScheduler) CheckAvailability(ctx context.Context, requestedTime string) (calendar.Availability, error) {
	f.checked = append(f.checked, requestedTime)
	if f.checkErr != nil {
		return calendar.Availability{}, f.checkErr
	}
	av, ok := f.availability[requestedTime]
	if !ok {
		return calendar.Availability{Status: calendar.StatusUnknown}, nil
	}
	return av, nil
}

func (f *fakeScheduler) CreateEvent(ctx context.Context, summary string, slot time.Time, participants []string) error {
	if f.createErr != nil {
		return f.createErr
	}
	f.created = append(f.created, createdEvent{summary: summary, slot: slot, participants: participants})
	return nil
}

type fakeAssistant struct {
	// analyses maps message subject to the classification to return.
	analyses map[string]assistant.Analysis

	// classifyErr makes every classification fail with the fallback.
	classifyErr error

	drafted []assistant.DraftRequest
}

func (f *fakeAssistant) Classify(ctx context.Context, subject, body string) (assistant.Analysis, error) {
	if f.classifyErr != nil {
		return assistant.DefaultAnalysis(), f.classifyErr
	}
	if a, ok := f.analyses[subject]; ok {
		return a, nil
	}
	return assistant.DefaultAnalysis(), nil
}

func (f *fakeAssistant) DraftReply(ctx context.Context, req assistant.DraftRequest) string {
	f.drafted = append(f.drafted, req)
	return fmt.Sprintf("drafted reply %d", len(f.drafted))
}

func newTestEngine(t *testing.T, mb *fakeMailbox, sched *fakeScheduler, ai *fakeAssistant) (*Engine, *store.Store) {
	t.Helper()
	st, err := store.Open("", slog.Default())
	require.NoError(t, err)
	return New(mb, sched, ai, st, nil, nil), st
}

func newMsg(uid, threadKey, from, subject string) gmail.Message {
	return gmail.Message{
		UID:       uid,
		ThreadKey: threadKey,
		From:      from,
		FromName:  "Alice Example",
		Subject:   subject,
		Body:      "body of " + subject,
		Date:      time.Date(2025, 6, 9, 9, 0, 0, 0, time.UTC),
		To:        []string{mailboxAddr},
	}
}

func TestConfirmationPopsProposalExactlyOnce(t *testing.T) {
	slot := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	msg := newMsg("m1", "<t1@mail>", "alice@example.com", "Re: Sync")

	mb := &fakeMailbox{unseen: []gmail.Message{msg}}
	sched := &fakeScheduler{}
	ai := &fakeAssistant{analyses: map[string]assistant.Analysis{
		"Re: Sync": {Intent: assistant.IntentConfirmation, Confidence: assistant.ConfidenceHigh},
	}}
	e, st := newTestEngine(t, mb, sched, ai)

	st.PutProposal(store.Proposal{
		ThreadKey:    "<t1@mail>",
		Slot:         slot,
		Subject:      "Sync",
		Participants: []string{"alice@example.com", mailboxAddr},
	})

	summary, err := e.ProcessInbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Outcomes[StatusAutoRepliedConfirmation])

	// Acknowledgement went out in-thread and was recorded.
	require.Len(t, mb.sent, 1)
	assert.Equal(t, AckText, mb.sent[0].body)
	require.Len(t, st.SentHistory(), 1)

	// The proposal was popped into exactly one confirmed event.
	assert.Empty(t, st.Proposals())
	events := st.ConfirmedEvents()
	require.Len(t, events, 1)
	assert.Equal(t, "alice@example.com", events[0].ConfirmedBy)
	assert.True(t, events[0].ConfirmedAt.Equal(msg.Date))
	assert.True(t, events[0].Slot.Equal(slot))

	// The confirmed meeting reached the calendar.
	require.Len(t, sched.created, 1)
	assert.Equal(t, "Sync", sched.created[0].summary)

	assert.Equal(t, []string{"m1"}, mb.marked)
}

func TestConfirmationWithoutProposal(t *testing.T) {
	msg := newMsg("m1", "<t1@mail>", "alice@example.com", "Re: Sync")

	mb := &fakeMailbox{unseen: []gmail.Message{msg}}
	sched := &fakeScheduler{}
	ai := &fakeAssistant{analyses: map[string]assistant.Analysis{
		"Re: Sync": {Intent: assistant.IntentConfirmation},
	}}
	e, st := newTestEngine(t, mb, sched, ai)

	_, err := e.ProcessInbox(context.Background())
	require.NoError(t, err)

	require.Len(t, mb.sent, 1)
	assert.Empty(t, st.ConfirmedEvents())
	assert.Empty(t, sched.created)
}

func TestNonMeetingIntentSkipped(t *testing.T) {
	msg := newMsg("m1", "<t1@mail>", "alice@example.com", "Newsletter")

	mb := &fakeMailbox{unseen: []gmail.Message{msg}}
	ai := &fakeAssistant{analyses: map[string]assistant.Analysis{
		"Newsletter": {Intent: assistant.IntentOther, Confidence: assistant.ConfidenceHigh},
	}}
	e, st := newTestEngine(t, mb, &fakeScheduler{}, ai)

	summary, err := e.ProcessInbox(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Outcomes[StatusSkippedIntent])
	assert.Empty(t, mb.sent)
	assert.Empty(t, ai.drafted)

	recs := st.DashboardRecords()
	require.Len(t, recs, 1)
	assert.Equal(t, StatusSkippedIntent, recs[0].Status)
	assert.Empty(t, recs[0].Reply)

	// Thread history records every processed message, whatever the outcome.
	assert.True(t, st.ThreadSeen("<t1@mail>"))
}

func TestClassifierFailureFallsBackToDefault(t *testing.T) {
	msg := newMsg("m1", "<t1@mail>", "alice@example.com", "Quick sync?")

	mb := &fakeMailbox{unseen: []gmail.Message{msg}}
	ai := &fakeAssistant{classifyErr: errors.New("model unavailable")}
	e, st := newTestEngine(t, mb, &fakeScheduler{}, ai)

	summary, err := e.ProcessInbox(context.Background())
	require.NoError(t, err)

	// The fallback analysis is a non-meeting intent, so the message is
	// skipped rather than auto-answered or escalated.
	assert.Equal(t, 1, summary.Outcomes[StatusSkippedIntent])
	assert.Empty(t, mb.sent)
	assert.Empty(t, ai.drafted)

	recs := st.DashboardRecords()
	require.Len(t, recs, 1)
	assert.Equal(t, StatusSkippedIntent, recs[0].Status)
	assert.Equal(t, assistant.IntentOther, recs[0].Intent)
	assert.Equal(t, []string{"m1"}, mb.marked)
}

func TestRecipientFilterSkipsWideDistribution(t *testing.T) {
	tests := []struct {
		name string
		to   []string
		cc   []string
		want string
	}{
		{
			name: "mailbox in To, two recipients total",
			to:   []string{mailboxAddr, "alice@example.com"},
			want: StatusReviewNoTimeFound,
		},
		{
			name: "three distinct recipients",
			to:   []string{mailboxAddr, "alice@example.com"},
			cc:   []string{"bob@example.com"},
			want: StatusSkippedRecipientFilter,
		},
		{
			name: "mailbox only in Cc",
			to:   []string{"alice@example.com"},
			cc:   []string{mailboxAddr},
			want: StatusSkippedRecipientFilter,
		},
		{
			name: "duplicate addresses count once",
			to:   []string{mailboxAddr, "ME@example.com"},
			cc:   []string{"alice@example.com"},
			want: StatusReviewNoTimeFound,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := newMsg("m1", "<t1@mail>", "alice@example.com", "Quick chat?")
			msg.To = tt.to
			msg.Cc = tt.cc

			mb := &fakeMailbox{unseen: []gmail.Message{msg}}
			ai := &fakeAssistant{analyses: map[string]assistant.Analysis{
				"Quick chat?": {Intent: assistant.IntentMeetingRequest},
			}}
			e, _ := newTestEngine(t, mb, &fakeScheduler{}, ai)

			summary, err := e.ProcessInbox(context.Background())
			require.NoError(t, err)
			assert.Equal(t, 1, summary.Outcomes[tt.want])
			assert.Empty(t, mb.sent)
		})
	}
}

func TestBusySlotAutoRepliesAndOpensProposal(t *testing.T) {
	alt1 := time.Date(2025, 6, 10, 15, 0, 0, 0, time.UTC)
	alt2 := alt1.Add(time.Hour)
	msg := newMsg("m1", "<t1@mail>", "alice@example.com", "Sync")

	mb := &fakeMailbox{unseen: []gmail.Message{msg}}
	sched := &fakeScheduler{availability: map[string]calendar.Availability{
		"2025-06-10 14:00": {Status: calendar.StatusBusy, Alternatives: []time.Time{alt1, alt2}},
	}}
	ai := &fakeAssistant{analyses: map[string]assistant.Analysis{
		"Sync": {Intent: assistant.IntentMeetingRequest, MeetingTime: "2025-06-10 14:00"},
	}}
	e, st := newTestEngine(t, mb, sched, ai)

	summary, err := e.ProcessInbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Outcomes[StatusAutoRepliedBusy])

	// The reply went out automatically; nothing waits on a human.
	require.Len(t, mb.sent, 1)
	assert.Empty(t, st.ReviewItems())

	// The proposal holds the first alternative.
	p, ok := st.Proposal("<t1@mail>")
	require.True(t, ok)
	assert.True(t, p.Slot.Equal(alt1))
	assert.Equal(t, []string{"alice@example.com", mailboxAddr}, p.Participants)

	// The drafter saw the alternatives.
	require.Len(t, ai.drafted, 1)
	assert.True(t, ai.drafted[0].AvailabilityChecked)
	require.Len(t, ai.drafted[0].Alternatives, 2)
}

func TestBusySlotWithoutAlternativesLeavesNoProposal(t *testing.T) {
	msg := newMsg("m1", "<t1@mail>", "alice@example.com", "Sync")

	mb := &fakeMailbox{unseen: []gmail.Message{msg}}
	sched := &fakeScheduler{availability: map[string]calendar.Availability{
		"2025-06-10 14:00": {Status: calendar.StatusBusy},
	}}
	ai := &fakeAssistant{analyses: map[string]assistant.Analysis{
		"Sync": {Intent: assistant.IntentMeetingRequest, MeetingTime: "2025-06-10 14:00"},
	}}
	e, st := newTestEngine(t, mb, sched, ai)

	summary, err := e.ProcessInbox(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Outcomes[StatusAutoRepliedBusy])
	require.Len(t, mb.sent, 1)
	assert.Empty(t, st.Proposals())
}

func TestFreeSlotEscalatesToHumanReview(t *testing.T) {
	requested := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	msg := newMsg("m1", "<t1@mail>", "alice@example.com", "Sync")

	mb := &fakeMailbox{unseen: []gmail.Message{msg}}
	sched := &fakeScheduler{availability: map[string]calendar.Availability{
		"2025-06-10 14:00": {Status: calendar.StatusFree, Requested: requested},
	}}
	ai := &fakeAssistant{analyses: map[string]assistant.Analysis{
		"Sync": {Intent: assistant.IntentMeetingRequest, MeetingTime: "2025-06-10 14:00"},
	}}
	e, st := newTestEngine(t, mb, sched, ai)

	summary, err := e.ProcessInbox(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 1, summary.Outcomes[StatusReviewSlotFree])

	// No mail sent; the drafted reply waits in the review queue.
	assert.Empty(t, mb.sent)
	items := st.ReviewItems()
	require.Len(t, items, 1)
	assert.Equal(t, "m1", items[0].Message.UID)
	assert.NotEmpty(t, items[0].DraftReply)
	assert.Equal(t, []string{"m1"}, mb.labeled)

	// The proposal carries the requested slot.
	p, ok := st.Proposal("<t1@mail>")
	require.True(t, ok)
	assert.True(t, p.Slot.Equal(requested))

	// The dashboard row records the drafted reply, not an empty string.
	recs := st.DashboardRecords()
	require.Len(t, recs, 1)
	assert.Equal(t, items[0].DraftReply, recs[0].Reply)
}

func TestFollowUpUpdatesProposalInPlace(t *testing.T) {
	oldSlot := time.Date(2025, 6, 10, 14, 0, 0, 0, time.UTC)
	newAlt := time.Date(2025, 6, 11, 10, 0, 0, 0, time.UTC)
	msg := newMsg("m2", "<t1@mail>", "alice@example.com", "Re: Sync")

	mb := &fakeMailbox{unseen: []gmail.Message{msg}}
	sched := &fakeScheduler{availability: map[string]calendar.Availability{
		"2025-06-11 09:00": {Status: calendar.StatusBusy, Alternatives: []time.Time{newAlt}},
	}}
	ai := &fakeAssistant{analyses: map[string]assistant.Analysis{
		"Re: Sync": {Intent: assistant.IntentMeetingRequest, MeetingTime: "2025-06-11 09:00"},
	}}
	e, st := newTestEngine(t, mb, sched, ai)

	st.PutProposal(store.Proposal{
		ThreadKey:    "<t1@mail>",
		Slot:         oldSlot,
		Subject:      "Sync",
		Participants: []string{"alice@example.com", mailboxAddr},
	})
	st.AppendThreadMessage("<t1@mail>", store.ThreadMessage{From: "alice@example.com"})

	_, err := e.ProcessInbox(context.Background())
	require.NoError(t, err)

	// Still one proposal for the thread, now holding the new alternative.
	proposals := st.Proposals()
	require.Len(t, proposals, 1)
	assert.True(t, proposals["<t1@mail>"].Slot.Equal(newAlt))
	assert.Equal(t, "Sync", proposals["<t1@mail>"].Subject)

	// Follow-up replies carry no greeting.
	require.Len(t, ai.drafted, 1)
	assert.False(t, ai.drafted[0].FirstInThread)
	require.Len(t, mb.sent, 1)
}

func TestUnknownCalendarStatusEscalatesWithoutProposal(t *testing.T) {
	msg := newMsg("m1", "<t1@mail>", "alice@example.com", "Sync")

	mb := &fakeMailbox{unseen: []gmail.Message{msg}}
	// No entry for the requested time: the scheduler answers unknown.
	sched := &fakeScheduler{availability: map[string]calendar.Availability{}}
	ai := &fakeAssistant{analyses: map[string]assistant.Analysis{
		"Sync": {Intent: assistant.IntentMeetingRequest, MeetingTime: "sometime next week"},
	}}
	e, st := newTestEngine(t, mb, sched, ai)

	summary, err := e.ProcessInbox(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Outcomes[StatusReviewUnknownCalendar])
	assert.Empty(t, mb.sent)
	assert.Len(t, st.ReviewItems(), 1)
	assert.Empty(t, st.Proposals())
}

func TestSchedulerErrorTreatedAsUnknown(t *testing.T) {
	msg := newMsg("m1", "<t1@mail>", "alice@example.com", "Sync")

	mb := &fakeMailbox{unseen: []gmail.Message{msg}}
	sched := &fakeScheduler{checkErr: fmt.Errorf("calendar unavailable")}
	ai := &fakeAssistant{analyses: map[string]assistant.Analysis{
		"Sync": {Intent: assistant.IntentMeetingRequest, MeetingTime: "2025-06-10 14:00"},
	}}
	e, st := newTestEngine(t, mb, sched, ai)

	summary, err := e.ProcessInbox(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Outcomes[StatusReviewUnknownCalendar])
	assert.Len(t, st.ReviewItems(), 1)
	assert.Empty(t, st.Proposals())
}

func TestNoTimeFoundSkipsScheduler(t *testing.T) {
	msg := newMsg("m1", "<t1@mail>", "alice@example.com", "Sync")

	mb := &fakeMailbox{unseen: []gmail.Message{msg}}
	sched := &fakeScheduler{}
	ai := &fakeAssistant{analyses: map[string]assistant.Analysis{
		"Sync": {Intent: assistant.IntentMeetingRequest},
	}}
	e, st := newTestEngine(t, mb, sched, ai)

	summary, err := e.ProcessInbox(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 1, summary.Outcomes[StatusReviewNoTimeFound])
	assert.Empty(t, sched.checked)
	assert.Len(t, st.ReviewItems(), 1)
	assert.Empty(t, st.Proposals())
}

func TestOneDashboardRecordPerMessage(t *testing.T) {
	msgs := []gmail.Message{
		newMsg("m1", "<t1@mail>", "alice@example.com", "Newsletter"),
		newMsg("m2", "<t2@mail>", "bob@example.com", "Sync"),
		newMsg("m3", "<t3@mail>", "carol@example.com", "Re: Sync"),
	}

	mb := &fakeMailbox{unseen: msgs}
	ai := &fakeAssistant{analyses: map[string]assistant.Analysis{
		"Newsletter": {Intent: assistant.IntentOther},
		"Sync":       {Intent: assistant.IntentMeetingRequest},
		"Re: Sync":   {Intent: assistant.IntentConfirmation},
	}}
	e, st := newTestEngine(t, mb, &fakeScheduler{}, ai)

	summary, err := e.ProcessInbox(context.Background())
	require.NoError(t, err)

	assert.Equal(t, 3, summary.Fetched)
	assert.Len(t, st.DashboardRecords(), 3)
	assert.Len(t, mb.marked, 3)
}

func TestFetchFailureFailsPass(t *testing.T) {
	mb := &fakeMailbox{fetchErr: fmt.Errorf("imap down")}
	e, st := newTestEngine(t, mb, &fakeScheduler{}, &fakeAssistant{})

	_, err := e.ProcessInbox(context.Background())

	assert.Error(t, err)
	assert.Empty(t, st.DashboardRecords())
}

func TestGreetingOnlyOnFirstThreadMessage(t *testing.T) {
	first := newMsg("m1", "<t1@mail>", "alice@example.com", "Sync")
	followUp := newMsg("m2", "<t1@mail>", "alice@example.com", "Re: Sync")

	mb := &fakeMailbox{unseen: []gmail.Message{first, followUp}}
	ai := &fakeAssistant{analyses: map[string]assistant.Analysis{
		"Sync":     {Intent: assistant.IntentMeetingRequest},
		"Re: Sync": {Intent: assistant.IntentMeetingRequest},
	}}
	e, _ := newTestEngine(t, mb, &fakeScheduler{}, ai)

	_, err := e.ProcessInbox(context.Background())
	require.NoError(t, err)

	require.Len(t, ai.drafted, 2)
	assert.True(t, ai.drafted[0].FirstInThread)
	assert.False(t, ai.drafted[1].FirstInThread)
}

func TestRecipientAllowed(t *testing.T) {
	tests := []struct {
		name     string
		to       []string
		cc       []string
		expected bool
	}{
		{name: "direct mail", to: []string{mailboxAddr}, expected: true},
		{name: "one other recipient", to: []string{mailboxAddr, "a@b.c"}, expected: true},
		{name: "case insensitive match", to: []string{"ME@Example.com"}, expected: true},
		{name: "not addressed", to: []string{"a@b.c"}, expected: false},
		{name: "too many recipients", to: []string{mailboxAddr, "a@b.c"}, cc: []string{"d@e.f"}, expected: false},
		{name: "no recipients", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			msg := gmail.Message{To: tt.to, Cc: tt.cc}
			assert.Equal(t, tt.expected, recipientAllowed(&msg, mailboxAddr))
		})
	}
}
