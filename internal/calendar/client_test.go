package calendar

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	calendar "google.golang.org/api/calendar/v3"
)

func mustParse(t *testing.T, s string) time.Time {
	t.Helper()
	ts, err := time.Parse(time.RFC3339, s)
	require.NoError(t, err)
	return ts
}

func TestParseMeetingTime(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name     string
		input    string
		expected string
		ok       bool
	}{
		{name: "rfc3339", input: "2025-06-10T14:00:00Z", expected: "2025-06-10T14:00:00Z", ok: true},
		{name: "date and time", input: "2025-06-10 14:00", expected: "2025-06-10T14:00:00Z", ok: true},
		{name: "t separator", input: "2025-06-10T14:00", expected: "2025-06-10T14:00:00Z", ok: true},
		{name: "with seconds", input: "2025-06-10 14:00:30", expected: "2025-06-10T14:00:30Z", ok: true},
		{name: "surrounding whitespace", input: "  2025-06-10 14:00 ", expected: "2025-06-10T14:00:00Z", ok: true},
		{name: "surrounding newlines", input: "\n2025-06-10 14:00\n", expected: "2025-06-10T14:00:00Z", ok: true},
		{name: "empty", input: "", ok: false},
		{name: "prose", input: "tomorrow afternoon", ok: false},
		{name: "date only", input: "2025-06-10", ok: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			parsed, ok := ParseMeetingTime(tt.input, loc)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, parsed.Equal(mustParse(t, tt.expected)))
			}
		})
	}
}

func TestOverlaps(t *testing.T) {
	r := TimeRange{
		Start: mustParse(t, "2025-06-10T14:00:00Z"),
		End:   mustParse(t, "2025-06-10T15:00:00Z"),
	}

	tests := []struct {
		name     string
		start    string
		end      string
		expected bool
	}{
		{name: "identical", start: "2025-06-10T14:00:00Z", end: "2025-06-10T15:00:00Z", expected: true},
		{name: "partial overlap", start: "2025-06-10T14:30:00Z", end: "2025-06-10T15:30:00Z", expected: true},
		{name: "contains range", start: "2025-06-10T13:00:00Z", end: "2025-06-10T16:00:00Z", expected: true},
		{name: "back to back after", start: "2025-06-10T15:00:00Z", end: "2025-06-10T16:00:00Z", expected: false},
		{name: "back to back before", start: "2025-06-10T13:00:00Z", end: "2025-06-10T14:00:00Z", expected: false},
		{name: "disjoint", start: "2025-06-10T18:00:00Z", end: "2025-06-10T19:00:00Z", expected: false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, r.Overlaps(mustParse(t, tt.start), mustParse(t, tt.end)))
		})
	}
}

func TestAvailabilityForFreeSlot(t *testing.T) {
	requested := mustParse(t, "2025-06-10T14:00:00Z")
	busy := []TimeRange{
		{Start: mustParse(t, "2025-06-10T15:00:00Z"), End: mustParse(t, "2025-06-10T16:00:00Z")},
	}

	av := availabilityFor(requested, busy)

	assert.Equal(t, StatusFree, av.Status)
	assert.True(t, av.Requested.Equal(requested))
	assert.Empty(t, av.Alternatives)
}

func TestAvailabilityForBusySlot(t *testing.T) {
	requested := mustParse(t, "2025-06-10T14:00:00Z")
	// Requested and the first probe hour are blocked; 16:00 onwards is free.
	busy := []TimeRange{
		{Start: mustParse(t, "2025-06-10T14:00:00Z"), End: mustParse(t, "2025-06-10T16:00:00Z")},
	}

	av := availabilityFor(requested, busy)

	assert.Equal(t, StatusBusy, av.Status)
	require.Len(t, av.Alternatives, 3)
	assert.True(t, av.Alternatives[0].Equal(mustParse(t, "2025-06-10T16:00:00Z")))
	assert.True(t, av.Alternatives[1].Equal(mustParse(t, "2025-06-10T17:00:00Z")))
	assert.True(t, av.Alternatives[2].Equal(mustParse(t, "2025-06-10T18:00:00Z")))
}

func TestAvailabilityForFullyBookedWindow(t *testing.T) {
	requested := mustParse(t, "2025-06-10T14:00:00Z")
	busy := []TimeRange{
		{Start: mustParse(t, "2025-06-10T13:00:00Z"), End: mustParse(t, "2025-06-10T21:00:00Z")},
	}

	av := availabilityFor(requested, busy)

	assert.Equal(t, StatusBusy, av.Status)
	assert.Empty(t, av.Alternatives)
}

func TestAvailabilityForSkipsBlockedProbes(t *testing.T) {
	requested := mustParse(t, "2025-06-10T14:00:00Z")
	// 14:00 busy, 15:00 free, 16:00 busy, 17:00 and 18:00 free.
	busy := []TimeRange{
		{Start: mustParse(t, "2025-06-10T14:00:00Z"), End: mustParse(t, "2025-06-10T15:00:00Z")},
		{Start: mustParse(t, "2025-06-10T16:00:00Z"), End: mustParse(t, "2025-06-10T17:00:00Z")},
	}

	av := availabilityFor(requested, busy)

	assert.Equal(t, StatusBusy, av.Status)
	require.Len(t, av.Alternatives, 3)
	assert.True(t, av.Alternatives[0].Equal(mustParse(t, "2025-06-10T15:00:00Z")))
	assert.True(t, av.Alternatives[1].Equal(mustParse(t, "2025-06-10T17:00:00Z")))
	assert.True(t, av.Alternatives[2].Equal(mustParse(t, "2025-06-10T18:00:00Z")))
}

func TestEventRange(t *testing.T) {
	loc := time.UTC

	tests := []struct {
		name  string
		event *calendar.Event
		start string
		end   string
		ok    bool
	}{
		{
			name: "timed event",
			event: &calendar.Event{
				Start: &calendar.EventDateTime{DateTime: "2025-06-10T14:00:00Z"},
				End:   &calendar.EventDateTime{DateTime: "2025-06-10T15:00:00Z"},
			},
			start: "2025-06-10T14:00:00Z",
			end:   "2025-06-10T15:00:00Z",
			ok:    true,
		},
		{
			name: "all-day event",
			event: &calendar.Event{
				Start: &calendar.EventDateTime{Date: "2025-06-10"},
				End:   &calendar.EventDateTime{Date: "2025-06-11"},
			},
			start: "2025-06-10T00:00:00Z",
			end:   "2025-06-11T00:00:00Z",
			ok:    true,
		},
		{
			name:  "missing times",
			event: &calendar.Event{Start: &calendar.EventDateTime{}, End: &calendar.EventDateTime{}},
			ok:    false,
		},
		{
			name:  "nil event",
			event: nil,
			ok:    false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, ok := eventRange(tt.event, loc)
			assert.Equal(t, tt.ok, ok)
			if tt.ok {
				assert.True(t, r.Start.Equal(mustParse(t, tt.start)))
				assert.True(t, r.End.Equal(mustParse(t, tt.end)))
			}
		})
	}
}
