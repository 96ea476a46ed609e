package store

import (
	"log/slog"
	"sync"
	"time"
)

// Store is the in-memory state of the triage system, guarded by a single
// mutex shared by inbox passes and interactive review resolution.
type Store struct {
	mu sync.Mutex

	dashboard   []DashboardRecord
	reviewQueue []ReviewItem
	threads     map[string][]ThreadMessage
	proposals   map[string]Proposal
	confirmed   []ConfirmedEvent
	sent        []SentRecord

	db     *snapshotDB
	logger *slog.Logger
}

// Open creates a store backed by the snapshot file at path and loads the
// previous snapshot. A missing or empty snapshot yields empty state. An
// empty path keeps the store in-memory only.
func Open(path string, logger *slog.Logger) (*Store, error) {
	if logger == nil {
		logger = slog.Default()
	}

	s := &Store{
		threads:   make(map[string][]ThreadMessage),
		proposals: make(map[string]Proposal),
		logger:    logger,
	}

	if path == "" {
		return s, nil
	}

	db, err := openSnapshotDB(path)
	if err != nil {
		return nil, err
	}
	s.db = db

	if err := s.load(); err != nil {
		db.Close()
		return nil, err
	}
	return s, nil
}

// Close releases the snapshot file.
func (s *Store) Close() error {
	if s.db == nil {
		return nil
	}
	return s.db.Close()
}

// Save writes the current state as a wholesale snapshot. No-op for
// in-memory stores.
func (s *Store) Save() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.saveLocked()
}

// AppendDashboard appends the audit record for one processed message.
func (s *Store) AppendDashboard(rec DashboardRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dashboard = append(s.dashboard, rec)
}

// SetDashboardStatus updates the status of the dashboard record for uid.
// A miss is a no-op; the decision handler tolerates stale identifiers.
func (s *Store) SetDashboardStatus(uid, status string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.dashboard {
		if s.dashboard[i].UID == uid {
			s.dashboard[i].Status = status
		}
	}
}

// DashboardRecords returns a copy of the dashboard.
func (s *Store) DashboardRecords() []DashboardRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]DashboardRecord, len(s.dashboard))
	copy(out, s.dashboard)
	return out
}

// ClearDashboard wipes the dashboard records only. Review queue, threads,
// proposals, events and history are retained.
func (s *Store) ClearDashboard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dashboard = nil
}

// GetStatistics aggregates dashboard records by intent, confidence and
// status.
func (s *Store) GetStatistics() Statistics {
	s.mu.Lock()
	defer s.mu.Unlock()

	stats := Statistics{
		Total:        len(s.dashboard),
		ByIntent:     make(map[string]int),
		ByStatus:     make(map[string]int),
		ByConfidence: make(map[string]int),
	}
	for _, rec := range s.dashboard {
		stats.ByIntent[rec.Intent]++
		stats.ByStatus[rec.Status]++
		stats.ByConfidence[rec.Confidence]++
	}
	return stats
}

// QueueReview adds a drafted reply to the human review queue.
func (s *Store) QueueReview(item ReviewItem) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if item.QueuedAt.IsZero() {
		item.QueuedAt = time.Now()
	}
	s.reviewQueue = append(s.reviewQueue, item)
}

// TakeReview removes and returns the review item for the message uid.
// Returns false when no such item exists; the item is gone either way a
// second caller asks.
func (s *Store) TakeReview(uid string) (ReviewItem, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, item := range s.reviewQueue {
		if item.Message.UID == uid {
			s.reviewQueue = append(s.reviewQueue[:i], s.reviewQueue[i+1:]...)
			return item, true
		}
	}
	return ReviewItem{}, false
}

// ReviewItems returns a copy of the pending review queue.
func (s *Store) ReviewItems() []ReviewItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ReviewItem, len(s.reviewQueue))
	copy(out, s.reviewQueue)
	return out
}

// Proposal returns the open proposal for a thread, if any.
func (s *Store) Proposal(threadKey string) (Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[threadKey]
	return p, ok
}

// PutProposal creates or replaces the thread's proposal. Last writer
// wins; a thread never holds more than one.
func (s *Store) PutProposal(p Proposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p.UpdatedAt = time.Now()
	s.proposals[p.ThreadKey] = p
}

// PopProposal removes and returns the thread's proposal. Only a
// confirmation may pop; returns false when the thread has none.
func (s *Store) PopProposal(threadKey string) (Proposal, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.proposals[threadKey]
	if ok {
		delete(s.proposals, threadKey)
	}
	return p, ok
}

// Proposals returns a copy of the open proposals keyed by thread.
func (s *Store) Proposals() map[string]Proposal {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string]Proposal, len(s.proposals))
	for k, v := range s.proposals {
		out[k] = v
	}
	return out
}

// AppendThreadMessage records a processed message in its thread history.
func (s *Store) AppendThreadMessage(threadKey string, msg ThreadMessage) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.threads[threadKey] = append(s.threads[threadKey], msg)
}

// ThreadSeen reports whether the thread already has recorded history.
// Used to decide greeting personalization.
func (s *Store) ThreadSeen(threadKey string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.threads[threadKey]) > 0
}

// Threads returns a copy of all thread histories.
func (s *Store) Threads() map[string][]ThreadMessage {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(map[string][]ThreadMessage, len(s.threads))
	for k, v := range s.threads {
		msgs := make([]ThreadMessage, len(v))
		copy(msgs, v)
		out[k] = msgs
	}
	return out
}

// AppendConfirmed records a confirmed meeting.
func (s *Store) AppendConfirmed(ev ConfirmedEvent) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.confirmed = append(s.confirmed, ev)
}

// ConfirmedEvents returns a copy of the confirmed meetings.
func (s *Store) ConfirmedEvents() []ConfirmedEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]ConfirmedEvent, len(s.confirmed))
	copy(out, s.confirmed)
	return out
}

// AppendSent records a successful outbound send.
func (s *Store) AppendSent(rec SentRecord) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if rec.SentAt.IsZero() {
		rec.SentAt = time.Now()
	}
	s.sent = append(s.sent, rec)
}

// SentHistory returns a copy of the outbound send history.
func (s *Store) SentHistory() []SentRecord {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]SentRecord, len(s.sent))
	copy(out, s.sent)
	return out
}
