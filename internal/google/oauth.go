package google

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"runtime"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendar "google.golang.org/api/calendar/v3"
	gmail "google.golang.org/api/gmail/v1"
)

// tokenFileForAccount returns the token file path for the given account.
func tokenFileForAccount(account string) string {
	if account == "" {
		account = "default"
	}
	name := "google.token"
	if account != "default" {
		name = fmt.Sprintf("google-%s.token", account)
	}
	return filepath.Join(userCacheDir(), "replydesk", name)
}

// HasTokenForAccount checks if a valid OAuth token exists for the account.
func HasTokenForAccount(account string) bool {
	return NewFileTokenProvider().HasTokenForAccount(account)
}

// HasToken checks if a valid OAuth token exists for the default account.
func HasToken() bool {
	return HasTokenForAccount("default")
}

// GetAuthURLForAccount returns the OAuth URL for user authorization.
func GetAuthURLForAccount(account string) string {
	conf := GetOAuthConfig()
	return conf.AuthCodeURL("state")
}

// SaveTokenForAccount exchanges an authorization code for tokens and saves
// them for the given account.
func SaveTokenForAccount(ctx context.Context, account, authCode string) error {
	conf := GetOAuthConfig()

	t, err := conf.Exchange(ctx, authCode)
	if err != nil {
		return fmt.Errorf("failed to exchange auth code: %w", err)
	}

	tokenFile := tokenFileForAccount(account)
	if err := os.MkdirAll(filepath.Dir(tokenFile), 0700); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	tokenData := t.AccessToken + " " + t.RefreshToken
	if err := os.WriteFile(tokenFile, []byte(tokenData), 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}

	return nil
}

// GetOAuthConfig returns the OAuth2 configuration shared by the Gmail and
// Calendar services.
func GetOAuthConfig() *oauth2.Config {
	const OOB = "urn:ietf:wg:oauth:2.0:oob"
	return &oauth2.Config{
		ClientID:     os.Getenv("GOOGLE_CLIENT_ID"),
		ClientSecret: os.Getenv("GOOGLE_CLIENT_SECRET"),
		Endpoint:     google.Endpoint,
		RedirectURL:  OOB,
		Scopes: []string{
			gmail.MailGoogleComScope,     // Gmail access (includes send)
			calendar.CalendarScope,       // Calendar read/write for conflict checks and event creation
			calendar.CalendarEventsScope, // Event-level access
		},
	}
}

// TokenSourceFor returns an auto-refreshing OAuth2 token source seeded
// from the provider's stored token. Returns an error if no valid token
// exists for the account.
func TokenSourceFor(ctx context.Context, provider TokenProvider, account string) (oauth2.TokenSource, error) {
	token, err := provider.GetTokenForAccount(ctx, account)
	if err != nil {
		return nil, err
	}

	ts := GetOAuthConfig().TokenSource(ctx, token)

	// Validate the token
	if _, err := ts.Token(); err != nil {
		return nil, fmt.Errorf("cached token is invalid: %w", err)
	}

	return ts, nil
}

// GetTokenSourceForAccount returns an OAuth2 token source for the stored
// token of the given account.
func GetTokenSourceForAccount(ctx context.Context, account string) (oauth2.TokenSource, error) {
	return TokenSourceFor(ctx, NewFileTokenProvider(), account)
}

// HTTPClientFor returns an HTTP client authenticated from the provider's
// token for the given account. The client is configured to use HTTP/1.1
// to avoid HTTP/2 protocol errors.
func HTTPClientFor(ctx context.Context, provider TokenProvider, account string) (*http.Client, error) {
	ts, err := TokenSourceFor(ctx, provider, account)
	if err != nil {
		return nil, err
	}

	client := oauth2.NewClient(ctx, ts)

	// Force HTTP/1.1 by disabling HTTP/2
	transport := client.Transport.(*oauth2.Transport)
	baseTransport := &http.Transport{
		ForceAttemptHTTP2: false,
	}
	transport.Base = baseTransport

	return client, nil
}

// GetHTTPClientForAccount returns an HTTP client authenticated with the
// stored token for the given account.
func GetHTTPClientForAccount(ctx context.Context, account string) (*http.Client, error) {
	return HTTPClientFor(ctx, NewFileTokenProvider(), account)
}

func userCacheDir() string {
	switch runtime.GOOS {
	case "darwin":
		return filepath.Join(homeDir(), "Library", "Caches")
	case "windows":
		for _, ev := range []string{"TEMP", "TMP"} {
			if v := os.Getenv(ev); v != "" {
				return v
			}
		}
		panic("No Windows TEMP or TMP environment variables found")
	}
	if xdg := os.Getenv("XDG_CACHE_HOME"); xdg != "" {
		return xdg
	}
	return filepath.Join(homeDir(), ".cache")
}

func homeDir() string {
	if runtime.GOOS == "windows" {
		return os.Getenv("HOMEDRIVE") + os.Getenv("HOMEPATH")
	}
	return os.Getenv("HOME")
}
