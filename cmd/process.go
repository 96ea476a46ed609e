package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/teemow/replydesk/internal/instrumentation"
	"github.com/teemow/replydesk/internal/logging"
	"github.com/teemow/replydesk/internal/server"
)

func newProcessCmd() *cobra.Command {
	var (
		account    string
		calendarID string
		stateFile  string
		model      string
		interval   time.Duration
	)

	cmd := &cobra.Command{
		Use:   "process",
		Short: "Run triage passes over unseen inbox messages",
		Long: `Fetch unseen messages from the Gmail inbox, classify them, and act on
each one: confirmations are acknowledged and put on the calendar,
conflicting meeting requests get an automatic counter-proposal, and
everything that needs judgement is drafted and queued for human review.

Runs a single pass by default. With --interval the command keeps
running and repeats the pass until interrupted.

Requires GEMINI_API_KEY for the classifier and a stored Google OAuth
token (see 'replydesk auth').`,
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
				if err := provider.Shutdown(ctx); err != nil {
					slog.Error("failed to shut down instrumentation", logging.Err(err))
				}
			}()

			if err := runPass(ctx, provider, sc); err != nil {
				return err
			}
			if interval <= 0 {
				return nil
			}

			ticker := time.NewTicker(interval)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return nil
				case <-ticker.C:
					if err := runPass(ctx, provider, sc); err != nil {
						slog.Error("inbox pass failed", logging.Err(err))
					}
				}
			}
		},
	}

	addTriageFlags(cmd, &account, &calendarID, &stateFile, &model)
	cmd.Flags().DurationVar(&interval, "interval", 0, "Repeat the pass at this interval (e.g. 5m). Zero runs a single pass")
	return cmd
}

// addTriageFlags registers the flags shared by the process, review, and
// serve commands, with env-var fallbacks as flag defaults.
func addTriageFlags(cmd *cobra.Command, account, calendarID, stateFile, model *string) {
	cmd.Flags().StringVar(account, "account", envOrDefault("REPLYDESK_MAILBOX", "default"), "Google account name to use. Can also use REPLYDESK_MAILBOX env var")
	cmd.Flags().StringVar(calendarID, "calendar", os.Getenv("REPLYDESK_CALENDAR_ID"), "Calendar ID to check and book against (default: primary). Can also use REPLYDESK_CALENDAR_ID env var")
	cmd.Flags().StringVar(stateFile, "state-file", "", "Path to the state snapshot file (default: $REPLYDESK_STATE_FILE or the user cache dir)")
	cmd.Flags().StringVar(model, "model", "", "Gemini model for classification and drafting (default: assistant default)")
}

func envOrDefault(key, defaultValue string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultValue
}

// newTriageContext builds the instrumentation provider and the triage
// system shared by the process, review, and serve commands.
func newTriageContext(ctx context.Context, account, calendarID, stateFile, model string) (*instrumentation.Provider, *server.ServerContext, error) {
	instrConfig := instrumentation.DefaultConfig()
	instrConfig.ServiceVersion = version

	provider, err := instrumentation.NewProvider(ctx, instrConfig)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create instrumentation provider: %w", err)
	}

	geminiKey := os.Getenv("GEMINI_API_KEY")
	if geminiKey == "" {
		shutdownProvider(ctx, provider)
		return nil, nil, fmt.Errorf("GEMINI_API_KEY environment variable is required")
	}

	sc, err := server.NewServerContext(ctx, server.Config{
		Account:      account,
		CalendarID:   calendarID,
		StateFile:    resolveStateFile(stateFile),
		GeminiAPIKey: geminiKey,
		GeminiModel:  model,
		Metrics:      provider.Metrics(),
		Logger:       slog.Default(),
	})
	if err != nil {
		shutdownProvider(ctx, provider)
		return nil, nil, err
	}

	return provider, sc, nil
}

func shutdownProvider(ctx context.Context, provider *instrumentation.Provider) {
	if err := provider.Shutdown(ctx); err != nil {
		slog.Error("failed to shut down instrumentation", logging.Err(err))
	}
}

// resolveStateFile picks the snapshot path: the flag wins, then
// REPLYDESK_STATE_FILE, then a file in the user cache directory. An
// unresolvable cache directory falls back to in-memory state.
func resolveStateFile(flagValue string) string {
	if flagValue != "" {
		return flagValue
	}
	if env := os.Getenv("REPLYDESK_STATE_FILE"); env != "" {
		return env
	}
	cache, err := os.UserCacheDir()
	if err != nil {
		slog.Warn("no user cache directory, state will not be persisted", logging.Err(err))
		return ""
	}
	return filepath.Join(cache, "replydesk", "state.db")
}

func runPass(ctx context.Context, provider *instrumentation.Provider, sc *server.ServerContext) error {
	tracer := provider.Tracer("replydesk/cmd")
	ctx, span := tracer.Start(ctx, "process_inbox")
	defer span.End()

	summary, err := sc.Engine().ProcessInbox(ctx)
	if err != nil {
		return fmt.Errorf("inbox pass failed: %w", err)
	}

	slog.Info("inbox pass complete", "fetched", summary.Fetched)
	for status, count := range summary.Outcomes {
		slog.Info("pass outcome", logging.Status(status), "count", count)
	}
	return nil
}
