package server

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/teemow/replydesk/internal/assistant"
	"github.com/teemow/replydesk/internal/calendar"
	"github.com/teemow/replydesk/internal/engine"
	"github.com/teemow/replydesk/internal/gmail"
	"github.com/teemow/replydesk/internal/instrumentation"
	"github.com/teemow/replydesk/internal/logging"
	"github.com/teemow/replydesk/internal/store"
)

// Config holds what the ServerContext needs to build the triage system.
type Config struct {
	// Account selects the Google OAuth token set (default: "default").
	Account string

	// CalendarID selects the calendar to check and insert into
	// (default: primary).
	CalendarID string

	// StateFile is the snapshot path. Empty keeps state in memory only.
	StateFile string

	// GeminiAPIKey authenticates the classifier; required.
	GeminiAPIKey string

	// GeminiModel may be empty to use the assistant default.
	GeminiModel string

	// Metrics may be nil when instrumentation is disabled.
	Metrics *instrumentation.Metrics

	Logger *slog.Logger
}

// ServerContext holds the constructed triage system for the lifetime of
// the process.
type ServerContext struct {
	ctx    context.Context
	cancel context.CancelFunc

	mailbox   *gmail.Client
	scheduler *calendar.Client
	assistant *assistant.Client
	store     *store.Store
	engine    *engine.Engine

	logger *slog.Logger

	mu       sync.RWMutex
	shutdown bool
}

// NewServerContext builds the triage system. Construction order is fixed:
// mailbox first, then classifier, then calendar, then state load, so that
// a missing credential fails fast before any snapshot is opened.
func NewServerContext(ctx context.Context, cfg Config) (*ServerContext, error) {
	if cfg.Account == "" {
		cfg.Account = "default"
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	shutdownCtx, cancel := context.WithCancel(ctx)

	mailbox, err := gmail.NewClientForAccount(shutdownCtx, cfg.Account)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create mailbox client: %w", err)
	}
	if err := mailbox.EnsureNeedsReviewLabel(); err != nil {
		// The label is a convenience; triage works without it.
		cfg.Logger.Warn("failed to ensure review label", logging.Err(err))
	}

	analyst, err := assistant.NewClient(shutdownCtx, cfg.GeminiAPIKey, cfg.GeminiModel, logging.NewSlogAdapter(cfg.Logger))
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create classifier client: %w", err)
	}

	scheduler, err := calendar.NewClientForAccount(shutdownCtx, cfg.Account, cfg.CalendarID)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to create calendar client: %w", err)
	}

	st, err := store.Open(cfg.StateFile, cfg.Logger)
	if err != nil {
		cancel()
		return nil, fmt.Errorf("failed to load state: %w", err)
	}

	eng := engine.New(mailbox, scheduler, analyst, st, cfg.Metrics, cfg.Logger)

	return &ServerContext{
		ctx:       shutdownCtx,
		cancel:    cancel,
		mailbox:   mailbox,
		scheduler: scheduler,
		assistant: analyst,
		store:     st,
		engine:    eng,
		logger:    cfg.Logger,
	}, nil
}

// Context returns the server context.
func (sc *ServerContext) Context() context.Context {
	return sc.ctx
}

// Engine returns the negotiation engine.
func (sc *ServerContext) Engine() *engine.Engine {
	return sc.engine
}

// Store returns the state store.
func (sc *ServerContext) Store() *store.Store {
	return sc.store
}

// Mailbox returns the mailbox client.
func (sc *ServerContext) Mailbox() *gmail.Client {
	return sc.mailbox
}

// IsShutdown returns whether the server has been shutdown.
func (sc *ServerContext) IsShutdown() bool {
	sc.mu.RLock()
	defer sc.mu.RUnlock()
	return sc.shutdown
}

// Shutdown tears the triage system down, flushing a final state snapshot
// before releasing the store. Safe to call more than once.
func (sc *ServerContext) Shutdown() error {
	sc.mu.Lock()
	defer sc.mu.Unlock()

	if sc.shutdown {
		return nil
	}
	sc.shutdown = true
	sc.cancel()

	if err := sc.store.Save(); err != nil {
		sc.logger.Error("failed to flush state snapshot on shutdown", logging.Err(err))
	}
	if err := sc.store.Close(); err != nil {
		return fmt.Errorf("failed to close state store: %w", err)
	}
	return nil
}
