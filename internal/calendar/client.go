package calendar

import (
	"context"
	"fmt"
	"strings"
	"time"

	calendar "google.golang.org/api/calendar/v3"
	"google.golang.org/api/option"

	"github.com/teemow/replydesk/internal/google"
)

// alternativeProbeHours is how far past the requested slot alternative
// slots are probed, in whole hours.
const alternativeProbeHours = 5

// Client wraps the Calendar events service for availability checks and
// event creation.
type Client struct {
	svc        *calendar.EventsService
	account    string
	calendarID string
	location   *time.Location
}

// Account returns the account name this client is associated with.
func (c *Client) Account() string {
	return c.account
}

// HasTokenForAccount checks if a valid OAuth token exists for the account.
func HasTokenForAccount(account string) bool {
	return google.HasTokenForAccount(account)
}

// NewClientForAccount creates a new Calendar client with OAuth2
// authentication for a specific account. calendarID selects the calendar to
// check and insert into; empty means the primary calendar.
func NewClientForAccount(ctx context.Context, account, calendarID string) (*Client, error) {
	httpClient, err := google.GetHTTPClientForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found for account %s: %w", account, err)
	}

	svc, err := calendar.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Calendar service: %w", err)
	}

	if calendarID == "" {
		calendarID = "primary"
	}

	return &Client{
		svc:        svc.Events,
		account:    account,
		calendarID: calendarID,
		location:   time.Local,
	}, nil
}

// NewClient creates a new Calendar client for the default account and the
// primary calendar.
func NewClient(ctx context.Context) (*Client, error) {
	return NewClientForAccount(ctx, "default", "primary")
}

// CheckAvailability parses the requested meeting time and reports whether
// the slot is free. Unparsable times yield StatusUnknown with a nil error;
// only calendar lookups themselves can fail.
func (c *Client) CheckAvailability(ctx context.Context, requestedTime string) (Availability, error) {
	requested, ok := ParseMeetingTime(requestedTime, c.location)
	if !ok {
		return Availability{Status: StatusUnknown}, nil
	}

	// One window fetch covers the requested slot and every probe slot.
	windowEnd := requested.Add(time.Duration(alternativeProbeHours)*time.Hour + MeetingDuration)
	busy, err := c.busyRanges(ctx, requested, windowEnd)
	if err != nil {
		return Availability{}, fmt.Errorf("failed to check availability: %w", err)
	}

	return availabilityFor(requested, busy), nil
}

// CreateEvent inserts a confirmed meeting as a calendar event with the
// given participants as attendees.
func (c *Client) CreateEvent(ctx context.Context, summary string, slot time.Time, participants []string) error {
	attendees := make([]*calendar.EventAttendee, 0, len(participants))
	for _, p := range participants {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		attendees = append(attendees, &calendar.EventAttendee{Email: p})
	}

	event := &calendar.Event{
		Summary:     summary,
		Description: "Scheduled automatically from an email confirmation.",
		Start:       &calendar.EventDateTime{DateTime: slot.Format(time.RFC3339)},
		End:         &calendar.EventDateTime{DateTime: slot.Add(MeetingDuration).Format(time.RFC3339)},
		Attendees:   attendees,
	}

	if _, err := c.svc.Insert(c.calendarID, event).Context(ctx).Do(); err != nil {
		return fmt.Errorf("failed to create event %q: %w", summary, err)
	}
	return nil
}

// busyRanges lists the busy intervals on the calendar between start and end.
// All-day events block the whole day they cover.
func (c *Client) busyRanges(ctx context.Context, start, end time.Time) ([]TimeRange, error) {
	var ranges []TimeRange
	pageToken := ""
	for {
		req := c.svc.List(c.calendarID).
			TimeMin(start.Format(time.RFC3339)).
			TimeMax(end.Format(time.RFC3339)).
			SingleEvents(true).
			OrderBy("startTime")
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		res, err := req.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list events: %w", err)
		}
		for _, e := range res.Items {
			if e.Status == "cancelled" {
				continue
			}
			r, ok := eventRange(e, c.location)
			if !ok {
				continue
			}
			ranges = append(ranges, r)
		}
		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}
	return ranges, nil
}

// eventRange extracts the occupied interval of an event. Returns false for
// events without usable start/end data.
func eventRange(e *calendar.Event, loc *time.Location) (TimeRange, bool) {
	if e == nil || e.Start == nil || e.End == nil {
		return TimeRange{}, false
	}
	if e.Start.DateTime != "" && e.End.DateTime != "" {
		start, err1 := time.Parse(time.RFC3339, e.Start.DateTime)
		end, err2 := time.Parse(time.RFC3339, e.End.DateTime)
		if err1 != nil || err2 != nil {
			return TimeRange{}, false
		}
		return TimeRange{Start: start, End: end}, true
	}
	if e.Start.Date != "" && e.End.Date != "" {
		start, err1 := time.ParseInLocation("2006-01-02", e.Start.Date, loc)
		end, err2 := time.ParseInLocation("2006-01-02", e.End.Date, loc)
		if err1 != nil || err2 != nil {
			return TimeRange{}, false
		}
		return TimeRange{Start: start, End: end}, true
	}
	return TimeRange{}, false
}

// availabilityFor decides the status of the requested slot against the busy
// intervals and, when busy, probes the following hours for up to three free
// alternative slots.
func availabilityFor(requested time.Time, busy []TimeRange) Availability {
	if slotFree(requested, busy) {
		return Availability{Status: StatusFree, Requested: requested}
	}

	av := Availability{Status: StatusBusy, Requested: requested}
	for i := 1; i <= alternativeProbeHours; i++ {
		candidate := requested.Add(time.Duration(i) * time.Hour)
		if slotFree(candidate, busy) {
			av.Alternatives = append(av.Alternatives, candidate)
			if len(av.Alternatives) == maxAlternatives {
				break
			}
		}
	}
	return av
}

// slotFree reports whether a meeting-length slot starting at t is clear of
// every busy interval.
func slotFree(t time.Time, busy []TimeRange) bool {
	end := t.Add(MeetingDuration)
	for _, r := range busy {
		if r.Overlaps(t, end) {
			return false
		}
	}
	return true
}
