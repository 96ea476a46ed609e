package google

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// TokenProvider supplies the stored OAuth token that backs the Gmail and
// Calendar clients. Production uses the file provider; tests inject fakes
// so client construction never touches the filesystem.
type TokenProvider interface {
	// GetTokenForAccount returns the stored OAuth token for the account.
	GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error)

	// HasTokenForAccount reports whether a token is stored for the account.
	HasTokenForAccount(account string) bool
}

// FileTokenProvider reads tokens saved by SaveTokenForAccount from the
// user cache directory.
type FileTokenProvider struct{}

// NewFileTokenProvider creates a file-based token provider.
func NewFileTokenProvider() *FileTokenProvider {
	return &FileTokenProvider{}
}

// GetTokenForAccount reads and parses the account's token file. The expiry
// is set in the past so the first use refreshes the access token.
func (p *FileTokenProvider) GetTokenForAccount(ctx context.Context, account string) (*oauth2.Token, error) {
	slurp, err := os.ReadFile(tokenFileForAccount(account))
	if err != nil {
		return nil, fmt.Errorf("no valid Google OAuth token found for account %s", account)
	}

	f := strings.Fields(strings.TrimSpace(string(slurp)))
	if len(f) != 2 {
		return nil, fmt.Errorf("invalid token format")
	}

	return &oauth2.Token{
		AccessToken:  f[0],
		TokenType:    "Bearer",
		RefreshToken: f[1],
		Expiry:       time.Unix(1, 0),
	}, nil
}

// HasTokenForAccount reports whether a token file exists for the account.
func (p *FileTokenProvider) HasTokenForAccount(account string) bool {
	_, err := os.ReadFile(tokenFileForAccount(account))
	return err == nil
}
