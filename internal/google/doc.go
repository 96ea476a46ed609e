// Package google provides shared Google OAuth2 authentication for the
// Gmail and Calendar clients.
//
// Tokens are stored per account under the user cache directory. The
// TokenProvider interface abstracts the token source so tests and
// alternative storage backends can be substituted.
package google
