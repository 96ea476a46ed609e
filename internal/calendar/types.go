package calendar

import (
	"strings"
	"time"
)

// Availability status values.
const (
	StatusFree    = "free"
	StatusBusy    = "busy"
	StatusUnknown = "unknown"
)

// MeetingDuration is the assumed length of a negotiated meeting.
const MeetingDuration = time.Hour

// maxAlternatives caps how many alternative slots a busy answer carries.
const maxAlternatives = 3

// Availability is the result of checking a requested meeting time.
type Availability struct {
	// Status is one of StatusFree, StatusBusy, StatusUnknown.
	Status string

	// Requested is the parsed requested slot. Zero when Status is
	// StatusUnknown.
	Requested time.Time

	// Alternatives holds up to three free slots near the requested time.
	// Only populated when Status is StatusBusy.
	Alternatives []time.Time
}

// TimeRange represents a busy interval on the calendar.
type TimeRange struct {
	Start time.Time
	End   time.Time
}

// Overlaps reports whether the range intersects [start, end).
func (r TimeRange) Overlaps(start, end time.Time) bool {
	return r.Start.Before(end) && r.End.After(start)
}

// meetingTimeLayouts are the formats the classifier is known to emit for
// extracted meeting times, most specific first.
var meetingTimeLayouts = []string{
	time.RFC3339,
	"2006-01-02T15:04:05",
	"2006-01-02T15:04",
	"2006-01-02 15:04:05",
	"2006-01-02 15:04",
}

// ParseMeetingTime parses a classifier-extracted meeting time string.
// Layouts without a zone are interpreted in loc. Returns a zero time and
// false when the string is empty or matches no known layout.
func ParseMeetingTime(s string, loc *time.Location) (time.Time, bool) {
	s = strings.TrimSpace(s)
	if s == "" {
		return time.Time{}, false
	}
	if loc == nil {
		loc = time.Local
	}
	for _, layout := range meetingTimeLayouts {
		if t, err := time.ParseInLocation(layout, s, loc); err == nil {
			return t, true
		}
	}
	return time.Time{}, false
}
