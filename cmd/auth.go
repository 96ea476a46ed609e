package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/teemow/replydesk/internal/google"
)

func newAuthCmd() *cobra.Command {
	var account string

	cmd := &cobra.Command{
		Use:   "auth [code]",
		Short: "Authorize Google API access for Gmail and Calendar",
		Long: `Without arguments, print the Google OAuth authorization URL. Open it in
a browser, grant access, and run the command again with the resulting
authorization code to store the token.

Requires GOOGLE_CLIENT_ID and GOOGLE_CLIENT_SECRET in the environment.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 0 {
				if google.HasTokenForAccount(account) {
					fmt.Printf("A token for account %q already exists; completing the flow will replace it.\n\n", account)
				}
				fmt.Println("Open the following URL in a browser, grant access, and re-run")
				fmt.Println("this command with the authorization code:")
				fmt.Printf("\n  %s\n\n  replydesk auth --account %s <code>\n", google.GetAuthURLForAccount(account), account)
				return nil
			}

			if err := google.SaveTokenForAccount(cmd.Context(), account, args[0]); err != nil {
				return err
			}
			fmt.Printf("Token stored for account %q\n", account)
			return nil
		},
	}

	cmd.Flags().StringVar(&account, "account", "default", "Google account name to use (default: 'default')")
	return cmd
}
