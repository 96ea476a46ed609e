package gmail

import (
	"context"
	"encoding/base64"
	"fmt"
	"mime"
	"net/mail"
	"strings"
	"time"

	gmail "google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"

	"github.com/teemow/replydesk/internal/google"
)

// NeedsReviewLabel is the Gmail label applied to messages that were queued
// for human review.
const NeedsReviewLabel = "Needs Review"

// Client wraps the Gmail Users service for the triage mailbox.
type Client struct {
	svc     *gmail.UsersService
	account string

	address string // the mailbox address, resolved once at construction

	// needsReviewLabelID caches the label id after EnsureNeedsReviewLabel.
	needsReviewLabelID string
}

// Account returns the account name this client is associated with.
func (c *Client) Account() string {
	return c.account
}

// Address returns the mailbox email address.
func (c *Client) Address() string {
	return c.address
}

// HasTokenForAccount checks if a valid OAuth token exists for the account.
func HasTokenForAccount(account string) bool {
	return google.HasTokenForAccount(account)
}

// NewClientForAccount creates a new Gmail client with OAuth2 authentication
// for a specific account and resolves the mailbox address.
func NewClientForAccount(ctx context.Context, account string) (*Client, error) {
	httpClient, err := google.GetHTTPClientForAccount(ctx, account)
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found for account %s: %w", account, err)
	}

	svc, err := gmail.NewService(ctx, option.WithHTTPClient(httpClient))
	if err != nil {
		return nil, fmt.Errorf("failed to create Gmail service: %w", err)
	}

	profile, err := svc.Users.GetProfile("me").Do()
	if err != nil {
		return nil, fmt.Errorf("failed to resolve mailbox address: %w", err)
	}

	return &Client{
		svc:     svc.Users,
		account: account,
		address: strings.ToLower(profile.EmailAddress),
	}, nil
}

// NewClient creates a new Gmail client for the default account.
func NewClient(ctx context.Context) (*Client, error) {
	return NewClientForAccount(ctx, "default")
}

// FetchUnseen lists the unread inbox messages in oldest-first order.
// Listing does not mark anything as read; callers mark messages read once
// they have been recorded.
func (c *Client) FetchUnseen(ctx context.Context) ([]Message, error) {
	var ids []string
	pageToken := ""
	for {
		req := c.svc.Messages.List("me").Q("in:inbox is:unread")
		if pageToken != "" {
			req = req.PageToken(pageToken)
		}
		res, err := req.Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to list unseen messages: %w", err)
		}
		for _, m := range res.Messages {
			ids = append(ids, m.Id)
		}
		if res.NextPageToken == "" {
			break
		}
		pageToken = res.NextPageToken
	}

	// The list endpoint returns newest first; process in arrival order.
	msgs := make([]Message, 0, len(ids))
	for i := len(ids) - 1; i >= 0; i-- {
		full, err := c.svc.Messages.Get("me", ids[i]).Format("full").Context(ctx).Do()
		if err != nil {
			return nil, fmt.Errorf("failed to get message %s: %w", ids[i], err)
		}
		msgs = append(msgs, toMessage(full))
	}

	return msgs, nil
}

// MarkRead removes the UNREAD label from a message. Best-effort; callers
// treat failure as non-fatal.
func (c *Client) MarkRead(messageID string) error {
	_, err := c.svc.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Do()
	return err
}

// EnsureNeedsReviewLabel creates the needs-review label if it does not
// exist and caches its id.
func (c *Client) EnsureNeedsReviewLabel() error {
	if c.needsReviewLabelID != "" {
		return nil
	}

	labels, err := c.svc.Labels.List("me").Do()
	if err != nil {
		return fmt.Errorf("failed to list labels: %w", err)
	}
	for _, l := range labels.Labels {
		if l.Name == NeedsReviewLabel {
			c.needsReviewLabelID = l.Id
			return nil
		}
	}

	created, err := c.svc.Labels.Create("me", &gmail.Label{
		Name:                  NeedsReviewLabel,
		LabelListVisibility:   "labelShow",
		MessageListVisibility: "show",
	}).Do()
	if err != nil {
		return fmt.Errorf("failed to create label %q: %w", NeedsReviewLabel, err)
	}
	c.needsReviewLabelID = created.Id
	return nil
}

// ApplyNeedsReviewLabel applies the needs-review label to a message.
// Best-effort; callers treat failure as non-fatal.
func (c *Client) ApplyNeedsReviewLabel(messageID string) error {
	if err := c.EnsureNeedsReviewLabel(); err != nil {
		return err
	}
	_, err := c.svc.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		AddLabelIds: []string{c.needsReviewLabelID},
	}).Do()
	return err
}

// Reply sends body as a threaded reply to msg, preserving the
// In-Reply-To/References chain.
func (c *Client) Reply(msg *Message, body string) error {
	if body == "" {
		return fmt.Errorf("body is required")
	}

	var b strings.Builder
	b.WriteString("To: ")
	b.WriteString(msg.From)
	b.WriteString("\r\n")
	b.WriteString("Subject: ")
	b.WriteString(encodeRFC2047(msg.ReplySubject()))
	b.WriteString("\r\n")
	if msg.MessageID != "" {
		b.WriteString("In-Reply-To: ")
		b.WriteString(msg.MessageID)
		b.WriteString("\r\n")
	}
	if refs := msg.replyReferences(); refs != "" {
		b.WriteString("References: ")
		b.WriteString(refs)
		b.WriteString("\r\n")
	}
	b.WriteString("Content-Type: text/plain; charset=\"UTF-8\"\r\n")
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("\r\n")
	b.WriteString(body)

	gmailMsg := &gmail.Message{
		Raw:      base64.URLEncoding.EncodeToString([]byte(b.String())),
		ThreadId: msg.GmailThreadID,
	}

	if _, err := c.svc.Messages.Send("me", gmailMsg).Do(); err != nil {
		return fmt.Errorf("failed to send reply: %w", err)
	}
	return nil
}

// encodeRFC2047 encodes a string for use in email headers according to
// RFC 2047. Necessary for non-ASCII characters in subjects.
func encodeRFC2047(s string) string {
	for _, r := range s {
		if r > 127 {
			return mime.BEncoding.Encode("UTF-8", s)
		}
	}
	return s
}

// toMessage converts a full-format Gmail message to a Message.
func toMessage(m *gmail.Message) Message {
	msg := Message{
		UID:           m.Id,
		GmailThreadID: m.ThreadId,
		Subject:       decodeHeader(headerValue(m, "Subject")),
		Body:          extractBody(m.Payload),
		MessageID:     headerValue(m, "Message-ID"),
		References:    headerValue(m, "References"),
	}

	if addr, err := mail.ParseAddress(headerValue(m, "From")); err == nil {
		msg.From = strings.ToLower(addr.Address)
		msg.FromName = addr.Name
	} else {
		msg.From = strings.ToLower(strings.TrimSpace(headerValue(m, "From")))
	}

	msg.To = parseAddressList(headerValue(m, "To"))
	msg.Cc = parseAddressList(headerValue(m, "Cc"))

	if d, err := mail.ParseDate(headerValue(m, "Date")); err == nil {
		msg.Date = d
	} else if m.InternalDate > 0 {
		msg.Date = time.UnixMilli(m.InternalDate)
	}

	msg.ThreadKey = threadKey(m)
	return msg
}

// threadKey derives the conversation identity from the reply-chain headers,
// falling back to the message's own identity.
func threadKey(m *gmail.Message) string {
	if v := headerValue(m, "In-Reply-To"); v != "" {
		return v
	}
	if v := headerValue(m, "Message-ID"); v != "" {
		return v
	}
	return m.Id
}

// headerValue extracts a header value from a Gmail message payload.
func headerValue(m *gmail.Message, header string) string {
	if m == nil || m.Payload == nil {
		return ""
	}
	for _, h := range m.Payload.Headers {
		if strings.EqualFold(h.Name, header) {
			return h.Value
		}
	}
	return ""
}

// decodeHeader decodes RFC 2047 encoded words, returning the input
// unchanged when it is plain ASCII or malformed.
func decodeHeader(s string) string {
	dec := new(mime.WordDecoder)
	decoded, err := dec.DecodeHeader(s)
	if err != nil {
		return s
	}
	return decoded
}

// parseAddressList parses a recipient header into bare lowercase addresses.
// Malformed headers yield a nil slice rather than an error; the recipient
// filter treats that as "no recipients".
func parseAddressList(header string) []string {
	if strings.TrimSpace(header) == "" {
		return nil
	}
	addrs, err := mail.ParseAddressList(header)
	if err != nil {
		return nil
	}
	out := make([]string, 0, len(addrs))
	for _, a := range addrs {
		out = append(out, strings.ToLower(a.Address))
	}
	return out
}

// extractBody walks the payload for the first text/plain part, matching how
// the message body is presented to the classifier.
func extractBody(p *gmail.MessagePart) string {
	if p == nil {
		return ""
	}
	if p.MimeType == "text/plain" && p.Body != nil && p.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(p.Body.Data); err == nil {
			return string(data)
		}
		return ""
	}
	for _, part := range p.Parts {
		if body := extractBody(part); body != "" {
			return body
		}
	}
	// Single-part non-multipart messages carry the body directly.
	if len(p.Parts) == 0 && p.Body != nil && p.Body.Data != "" {
		if data, err := base64.URLEncoding.DecodeString(p.Body.Data); err == nil {
			return string(data)
		}
	}
	return ""
}
