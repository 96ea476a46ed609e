package assistant

import (
	"context"
	"encoding/json"
	"fmt"
	"regexp"
	"strings"

	"google.golang.org/genai"

	"github.com/teemow/replydesk/internal/logging"
)

// DefaultModel is the Gemini model used when none is configured.
const DefaultModel = "gemini-2.0-flash"

// classifyPromptTemplate asks for a strict JSON verdict. The JSON block is
// extracted with jsonPattern, so surrounding prose is tolerated.
const classifyPromptTemplate = `You are an email triage assistant for a busy professional. Classify the following email as one of:
- "meeting_request"
- "confirmation"
- "other"
Respond ONLY in this JSON format:
{
  "intent": "meeting_request" or "confirmation" or "other",
  "sensitive": <true/false>,
  "meeting_time": "<meeting time or empty string, in ISO 8601 format if possible, otherwise best guess>",
  "confidence": "high/medium/low"
}

Email:
Subject: %s
Body: %s
`

var jsonPattern = regexp.MustCompile(`(?s)\{.*\}`)

// Client talks to the Gemini API for classification and reply drafting.
type Client struct {
	genai  *genai.Client
	model  string
	logger logging.Logger
}

// NewClient creates a Gemini-backed assistant client. model may be empty
// to use DefaultModel.
func NewClient(ctx context.Context, apiKey, model string, logger logging.Logger) (*Client, error) {
	if apiKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY is required")
	}
	if model == "" {
		model = DefaultModel
	}
	if logger == nil {
		logger = logging.DefaultLogger()
	}

	gc, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  apiKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}

	return &Client{genai: gc, model: model, logger: logger}, nil
}

// Classify maps a message to an intent analysis. The returned analysis is
// always usable: API failures and malformed responses yield
// DefaultAnalysis alongside the error, so a single bad classification
// cannot abort a pass.
func (c *Client) Classify(ctx context.Context, subject, body string) (Analysis, error) {
	prompt := fmt.Sprintf(classifyPromptTemplate, subject, body)

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		return DefaultAnalysis(), fmt.Errorf("classification request failed: %w", err)
	}

	analysis, err := parseAnalysis(resp.Text())
	if err != nil {
		return DefaultAnalysis(), fmt.Errorf("classification response unusable: %w", err)
	}
	return analysis, nil
}

// DraftReply produces the reply text for a message. Meeting negotiation
// replies are deterministic; everything else is model-generated with a
// deterministic fallback, so the returned text is never empty.
func (c *Client) DraftReply(ctx context.Context, req DraftRequest) string {
	if req.Analysis.IsMeetingRequest() {
		return meetingReply(req)
	}
	return c.generatedReply(ctx, req)
}

// generatedReply asks the model for a polite reply and normalizes the
// greeting. Falls back to fallbackReply on any error or empty response.
func (c *Client) generatedReply(ctx context.Context, req DraftRequest) string {
	greeting := req.greeting()
	prompt := "Write a polite and concise reply to this email."
	if greeting != "" {
		prompt = fmt.Sprintf("Write a polite and concise reply to this email. Start with %q.", greeting)
	}
	prompt += fmt.Sprintf("\nSubject: %s\nBody: %s", req.Subject, req.Body)

	resp, err := c.genai.Models.GenerateContent(ctx, c.model, genai.Text(prompt), nil)
	if err != nil {
		c.logger.Error("reply drafting failed",
			logging.Operation("draft_reply"), logging.Err(err))
		return fallbackReply(req)
	}

	reply := strings.TrimSpace(resp.Text())
	if reply == "" {
		return fallbackReply(req)
	}
	return withGreeting(reply, greeting)
}

// parseAnalysis extracts and normalizes the JSON verdict from the model's
// response text.
func parseAnalysis(text string) (Analysis, error) {
	raw := jsonPattern.FindString(text)
	if raw == "" {
		return Analysis{}, fmt.Errorf("no JSON object in response")
	}

	var a Analysis
	if err := json.Unmarshal([]byte(raw), &a); err != nil {
		return Analysis{}, fmt.Errorf("failed to parse analysis JSON: %w", err)
	}

	a.Intent = normalizeLabel(a.Intent, []string{IntentMeetingRequest, IntentConfirmation, IntentOther}, IntentOther)
	a.Confidence = normalizeLabel(a.Confidence, []string{ConfidenceHigh, ConfidenceMedium, ConfidenceLow}, ConfidenceLow)
	a.MeetingTime = strings.TrimSpace(a.MeetingTime)
	a.Raw = raw
	return a, nil
}

// normalizeLabel lowercases a model-emitted label and snaps it to the
// known set, using fallback for anything unexpected.
func normalizeLabel(v string, known []string, fallback string) string {
	v = strings.ToLower(strings.TrimSpace(v))
	for _, k := range known {
		if v == k {
			return k
		}
	}
	return fallback
}

// meetingReply builds the deterministic negotiation reply.
func meetingReply(req DraftRequest) string {
	greeting := req.greeting()

	if req.Analysis.MeetingTime != "" && req.AvailabilityChecked {
		if req.SlotFree {
			return greeting + "I'm available at " + req.Requested.Format(SlotFormat) +
				". Looking forward to our meeting!"
		}
		if len(req.Alternatives) > 0 {
			first := req.Alternatives[0].Format(SlotFormat)
			return greeting + "I'm not available at that particular time slot. Can we have the meeting at " +
				first + "? Let me know if that works for you, or I can suggest more options."
		}
		return greeting + "I'm not available at the requested time. Please suggest another time."
	}

	return greeting + "thank you for your meeting request. Let me check my calendar and get back to you."
}

// fallbackReply is the deterministic text used when the model cannot
// produce a reply. A drafted reply must never be empty.
func fallbackReply(req DraftRequest) string {
	return req.greeting() + "Thank you for your email. I will get back to you shortly."
}

// withGreeting ensures a generated reply starts with the expected
// greeting exactly once.
func withGreeting(reply, greeting string) string {
	if greeting == "" {
		return reply
	}
	if strings.HasPrefix(strings.ToLower(reply), strings.ToLower(greeting)) {
		return reply
	}
	return greeting + reply
}
