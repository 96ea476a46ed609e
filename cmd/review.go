package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/replydesk/internal/engine"
	"github.com/teemow/replydesk/internal/logging"
	"github.com/teemow/replydesk/internal/store"
)

func newReviewCmd() *cobra.Command {
	var (
		account    string
		calendarID string
		stateFile  string
		model      string
		replyFile  string
	)

	cmd := &cobra.Command{
		Use:   "review [messageId] [send|skip] [reply text...]",
		Short: "List the human review queue and resolve pending items",
		Long: `Without arguments, list the messages waiting for human review together
with their drafted replies.

With a message ID and an action, resolve that item: 'send' sends the
drafted reply (or your edited text, given as trailing arguments or via
--reply-file) in the original thread, 'skip' drops the item without
replying. Sending a reply that proposed a meeting slot confirms the
slot and puts it on the calendar.`,
		Args: cobra.ArbitraryArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, cancel := signal.NotifyContext(context.Background(),
				os.Interrupt, syscall.SIGTERM)
			defer cancel()

			provider, sc, err := newTriageContext(ctx, account, calendarID, stateFile, model)
			if err != nil {
				return err
			}
			defer func() {
				if err := sc.Shutdown(); err != nil {
					slog.Error("failed to shut down triage system", logging.Err(err))
				}
				shutdownProvider(ctx, provider)
			}()

			if len(args) == 0 {
				return listReviewQueue(sc.Store().ReviewItems())
			}
			if len(args) < 2 {
				return fmt.Errorf("resolve requires a message ID and an action (send or skip)")
			}

			messageID, action := args[0], args[1]
			replyText := strings.Join(args[2:], " ")
			if replyFile != "" {
				data, err := os.ReadFile(replyFile)
				if err != nil {
					return fmt.Errorf("failed to read reply file: %w", err)
				}
				replyText = string(data)
			}
			if action == engine.ActionSend && strings.TrimSpace(replyText) == "" {
				replyText = storedDraft(sc.Store().ReviewItems(), messageID)
			}

			if err := sc.Engine().Resolve(ctx, messageID, action, replyText); err != nil {
				return err
			}
			fmt.Printf("Review item %s resolved with action %q\n", messageID, action)
			return nil
		},
	}

	addTriageFlags(cmd, &account, &calendarID, &stateFile, &model)
	cmd.Flags().StringVar(&replyFile, "reply-file", "", "Read the reply text from this file instead of the command line")
	return cmd
}

func listReviewQueue(items []store.ReviewItem) error {
	if len(items) == 0 {
		fmt.Println("Review queue is empty")
		return nil
	}
	for _, item := range items {
		fmt.Printf("%s  %s\n", item.Message.UID, item.Message.Subject)
		fmt.Printf("  From:   %s\n", item.Message.From)
		fmt.Printf("  Queued: %s\n", item.QueuedAt.Format(time.RFC3339))
		fmt.Printf("  Draft:  %s\n\n", item.DraftReply)
	}
	fmt.Printf("%d item(s) waiting for review\n", len(items))
	return nil
}

func storedDraft(items []store.ReviewItem, messageID string) string {
	for _, item := range items {
		if item.Message.UID == messageID {
			return item.DraftReply
		}
	}
	return ""
}
