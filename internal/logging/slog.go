package logging

import (
	"crypto/sha256"
	"encoding/hex"
	"log/slog"
	"strings"
)

// Common log attribute keys for consistent naming across the codebase.
const (
	KeyOperation = "operation"
	KeyThread    = "thread"
	KeyUID       = "uid"
	KeyIntent    = "intent"
	KeyStatus    = "status"
	KeyError     = "error"
	KeyTool      = "tool"
	KeyUserHash  = "user_hash"
)

// Status values for consistent logging.
const (
	StatusSuccess = "success"
	StatusError   = "error"
)

// WithOperation returns a logger with the operation attribute set.
func WithOperation(logger *slog.Logger, operation string) *slog.Logger {
	return logger.With(slog.String(KeyOperation, operation))
}

// WithThread returns a logger with the thread attribute set.
func WithThread(logger *slog.Logger, threadID string) *slog.Logger {
	return logger.With(slog.String(KeyThread, threadID))
}

// Operation returns a slog attribute for the operation name.
func Operation(op string) slog.Attr {
	return slog.String(KeyOperation, op)
}

// Thread returns a slog attribute for the conversation thread identity.
func Thread(threadID string) slog.Attr {
	return slog.String(KeyThread, threadID)
}

// UID returns a slog attribute for a message identifier.
func UID(uid string) slog.Attr {
	return slog.String(KeyUID, uid)
}

// Intent returns a slog attribute for the classified intent.
func Intent(intent string) slog.Attr {
	return slog.String(KeyIntent, intent)
}

// Status returns a slog attribute for the status.
func Status(status string) slog.Attr {
	return slog.String(KeyStatus, status)
}

// Tool returns a slog attribute for the tool name.
func Tool(tool string) slog.Attr {
	return slog.String(KeyTool, tool)
}

// Err returns a slog attribute for an error.
// If err is nil, returns an empty Group attribute that will be omitted from
// output, so Err(maybeNilErr) is always safe to pass.
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Group("")
	}
	return slog.String(KeyError, err.Error())
}

// AnonymizeEmail returns a hashed representation of an email for logging
// purposes. This allows correlation of log entries without exposing PII.
func AnonymizeEmail(email string) string {
	if email == "" {
		return ""
	}
	hash := sha256.Sum256([]byte(email))
	return "user:" + hex.EncodeToString(hash[:8])
}

// UserHash returns a slog attribute with the anonymized sender email.
func UserHash(email string) slog.Attr {
	return slog.String(KeyUserHash, AnonymizeEmail(email))
}

// ExtractDomain extracts the domain part from an email address.
// Useful for lower-cardinality logging where the full address would create
// too many unique values.
func ExtractDomain(email string) string {
	if email == "" {
		return ""
	}
	parts := strings.Split(email, "@")
	if len(parts) != 2 {
		return ""
	}
	return parts[1]
}

// Domain returns a slog attribute for the email domain.
func Domain(email string) slog.Attr {
	return slog.String("user_domain", ExtractDomain(email))
}
