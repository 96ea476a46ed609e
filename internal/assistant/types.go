package assistant

import (
	"strings"
	"time"
)

// Intent labels returned by classification.
const (
	IntentMeetingRequest = "meeting_request"
	IntentConfirmation   = "confirmation"
	IntentOther          = "other"
)

// Confidence labels returned by classification.
const (
	ConfidenceHigh   = "high"
	ConfidenceMedium = "medium"
	ConfidenceLow    = "low"
)

// SlotFormat is how meeting slots are rendered in reply text.
const SlotFormat = "2006-01-02 15:04"

// Analysis is the classifier's verdict on one message. Produced once per
// message and never mutated.
type Analysis struct {
	Intent      string `json:"intent"`
	Sensitive   bool   `json:"sensitive"`
	MeetingTime string `json:"meeting_time"`
	Confidence  string `json:"confidence"`

	// Raw carries the model's raw JSON for the dashboard. Empty for the
	// defensive default.
	Raw string `json:"raw,omitempty"`
}

// IsMeetingRequest reports whether the intent asks for a meeting.
func (a Analysis) IsMeetingRequest() bool {
	return strings.HasPrefix(strings.ToLower(a.Intent), "meeting")
}

// IsConfirmation reports whether the sender accepted a proposed slot.
func (a Analysis) IsConfirmation() bool {
	return strings.EqualFold(a.Intent, IntentConfirmation)
}

// DefaultAnalysis is the defensive fallback used when classification
// fails. Sensitive is set so nothing is auto-replied on a bad response.
func DefaultAnalysis() Analysis {
	return Analysis{
		Intent:     IntentOther,
		Sensitive:  true,
		Confidence: ConfidenceLow,
	}
}

// DraftRequest carries everything reply drafting needs about a message.
type DraftRequest struct {
	Subject    string
	Body       string
	SenderName string

	Analysis Analysis

	// Alternatives holds the free slots found near a busy requested time.
	// Only meaningful when AvailabilityChecked is set.
	Alternatives []time.Time

	// AvailabilityChecked distinguishes "calendar answered" from
	// "calendar was never consulted".
	AvailabilityChecked bool

	// SlotFree is set when the calendar reported the requested slot open.
	// Requested carries the parsed slot for the acceptance text.
	SlotFree  bool
	Requested time.Time

	// FirstInThread selects whether the reply opens with a greeting.
	FirstInThread bool
}

// greeting returns the personalized opening for a first reply in a
// thread, empty otherwise.
func (r DraftRequest) greeting() string {
	if !r.FirstInThread || r.SenderName == "" {
		return ""
	}
	return "Hi " + r.SenderName + ", "
}
