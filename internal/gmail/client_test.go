package gmail

import (
	"encoding/base64"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	gmail "google.golang.org/api/gmail/v1"
)

func rawPart(mimeType, body string) *gmail.MessagePart {
	return &gmail.MessagePart{
		MimeType: mimeType,
		Body:     &gmail.MessagePartBody{Data: base64.URLEncoding.EncodeToString([]byte(body))},
	}
}

func TestToMessage(t *testing.T) {
	m := &gmail.Message{
		Id:       "msg-1",
		ThreadId: "thread-1",
		Payload: &gmail.MessagePart{
			MimeType: "multipart/alternative",
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "Alice Example <Alice@Example.com>"},
				{Name: "To", Value: "Prof <prof@uni.edu>"},
				{Name: "Cc", Value: "bob@example.com"},
				{Name: "Subject", Value: "Meeting request"},
				{Name: "Message-ID", Value: "<abc@mail>"},
				{Name: "Date", Value: "Mon, 02 Jan 2006 15:04:05 -0700"},
			},
			Parts: []*gmail.MessagePart{
				rawPart("text/html", "<p>hello</p>"),
				rawPart("text/plain", "Can we meet tomorrow at 10?"),
			},
		},
	}

	msg := toMessage(m)

	assert.Equal(t, "msg-1", msg.UID)
	assert.Equal(t, "thread-1", msg.GmailThreadID)
	assert.Equal(t, "alice@example.com", msg.From)
	assert.Equal(t, "Alice Example", msg.FromName)
	assert.Equal(t, []string{"prof@uni.edu"}, msg.To)
	assert.Equal(t, []string{"bob@example.com"}, msg.Cc)
	assert.Equal(t, "Meeting request", msg.Subject)
	assert.Equal(t, "Can we meet tomorrow at 10?", msg.Body)
	assert.Equal(t, "<abc@mail>", msg.MessageID)
	assert.Equal(t, 2006, msg.Date.Year())
}

func TestThreadKeyDerivation(t *testing.T) {
	tests := []struct {
		name     string
		headers  []*gmail.MessagePartHeader
		expected string
	}{
		{
			name: "reply uses In-Reply-To",
			headers: []*gmail.MessagePartHeader{
				{Name: "In-Reply-To", Value: "<root@mail>"},
				{Name: "Message-ID", Value: "<child@mail>"},
			},
			expected: "<root@mail>",
		},
		{
			name: "new thread uses own Message-ID",
			headers: []*gmail.MessagePartHeader{
				{Name: "Message-ID", Value: "<fresh@mail>"},
			},
			expected: "<fresh@mail>",
		},
		{
			name:     "no headers falls back to id",
			headers:  nil,
			expected: "msg-9",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := &gmail.Message{Id: "msg-9", Payload: &gmail.MessagePart{Headers: tt.headers}}
			assert.Equal(t, tt.expected, threadKey(m))
		})
	}
}

func TestSenderName(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		expected string
	}{
		{name: "display name", msg: Message{From: "alice@example.com", FromName: "Alice Example"}, expected: "Alice"},
		{name: "localpart fallback", msg: Message{From: "bob@example.com"}, expected: "Bob"},
		{name: "no at sign", msg: Message{From: "weird"}, expected: "weird"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.msg.SenderName())
		})
	}
}

func TestReplySubject(t *testing.T) {
	assert.Equal(t, "Re: Hello", (&Message{Subject: "Hello"}).ReplySubject())
	assert.Equal(t, "Re: Hello", (&Message{Subject: "Re: Hello"}).ReplySubject())
	assert.Equal(t, "RE: Hello", (&Message{Subject: "RE: Hello"}).ReplySubject())
}

func TestReplyReferences(t *testing.T) {
	tests := []struct {
		name     string
		msg      Message
		expected string
	}{
		{
			name:     "extends existing chain",
			msg:      Message{MessageID: "<b@mail>", References: "<a@mail>"},
			expected: "<a@mail> <b@mail>",
		},
		{
			name:     "starts chain from message id",
			msg:      Message{MessageID: "<a@mail>"},
			expected: "<a@mail>",
		},
		{
			name:     "no message id keeps references",
			msg:      Message{References: "<a@mail>"},
			expected: "<a@mail>",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.expected, tt.msg.replyReferences())
		})
	}
}

func TestParseAddressList(t *testing.T) {
	addrs := parseAddressList(`"Prof" <Prof@Uni.edu>, alice@example.com`)
	require.Len(t, addrs, 2)
	assert.Equal(t, "prof@uni.edu", addrs[0])
	assert.Equal(t, "alice@example.com", addrs[1])

	assert.Nil(t, parseAddressList(""))
	assert.Nil(t, parseAddressList("not an address <<<"))
}

func TestExtractBodySinglePart(t *testing.T) {
	p := rawPart("text/plain", "plain body")
	assert.Equal(t, "plain body", extractBody(p))
}

func TestExtractBodyMissing(t *testing.T) {
	assert.Equal(t, "", extractBody(nil))
	assert.Equal(t, "", extractBody(&gmail.MessagePart{MimeType: "text/html"}))
}

func TestEncodeRFC2047(t *testing.T) {
	assert.Equal(t, "plain subject", encodeRFC2047("plain subject"))

	encoded := encodeRFC2047("Grüße")
	assert.NotEqual(t, "Grüße", encoded)
	assert.Contains(t, encoded, "=?UTF-8?")
}

func TestToMessageFallsBackToInternalDate(t *testing.T) {
	internal := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	m := &gmail.Message{
		Id:           "msg-2",
		InternalDate: internal.UnixMilli(),
		Payload: &gmail.MessagePart{
			Headers: []*gmail.MessagePartHeader{
				{Name: "From", Value: "alice@example.com"},
			},
		},
	}

	msg := toMessage(m)
	assert.True(t, msg.Date.Equal(internal))
}
