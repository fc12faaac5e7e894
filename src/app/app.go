// Package app assembles the relay's services from a loaded configuration.
package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/elee1766/chatrelay/src/aisdk"
	"github.com/elee1766/chatrelay/src/chat"
	"github.com/elee1766/chatrelay/src/config"
	"github.com/elee1766/chatrelay/src/oaiclient"
	"github.com/elee1766/chatrelay/src/provider"
	"github.com/elee1766/chatrelay/src/server"
	"github.com/elee1766/chatrelay/src/storage"
)

// App holds every long-lived service of a running relay.
type App struct {
	Config       *config.Config
	Store        *storage.DB
	Client       *oaiclient.Client
	Orchestrator *chat.Orchestrator
	Server       *server.Server
	Logger       *slog.Logger
}

// New opens storage, builds the model client and wires the orchestrator and
// HTTP server. The caller owns the returned App and must Close it.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	if cfg == nil {
		return nil, errors.New("config is required")
	}
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := chat.PolicyFromName(cfg.Chat.HistoryPolicy, cfg.Chat.HistoryLimit)
	if err != nil {
		return nil, err
	}

	db, err := storage.Open(ctx, cfg.Storage.Path)
	if err != nil {
		return nil, fmt.Errorf("failed to open storage: %w", err)
	}
	logger.Debug("storage ready", "path", cfg.Storage.Path)

	client := NewClient(cfg, logger)
	model, err := resolveModel(ctx, client, cfg.Provider)
	if err != nil {
		db.Close()
		return nil, err
	}

	temperature := cfg.Provider.Temperature
	opts := provider.Options{
		Temperature: &temperature,
		Logger:      logger,
	}
	if cfg.Provider.MaxTokens > 0 {
		maxTokens := cfg.Provider.MaxTokens
		opts.MaxTokens = &maxTokens
	}

	stats := &server.TurnStats{}
	orch, err := chat.New(chat.Config{
		Store:           storage.NewChatStore(db),
		Provider:        provider.New(model, opts),
		Policy:          policy,
		SystemPrompt:    cfg.Chat.SystemPrompt,
		MaxMessageBytes: cfg.Chat.MaxMessageBytes,
		FinalizeTimeout: cfg.Chat.FinalizeTimeout,
		OnTransition:    stats.Observe,
		Logger:          logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	srv, err := server.New(server.Config{
		Orchestrator:    orch,
		Addr:            cfg.Server.Addr,
		IdentityHeader:  cfg.Auth.IdentityHeader,
		RequireIdentity: cfg.Auth.RequireIdentity,
		AllowedOrigins:  cfg.Server.AllowedOrigins,
		MaxBodyBytes:    cfg.Server.MaxBodyBytes,
		MaxMessageBytes: cfg.Chat.MaxMessageBytes,
		ShutdownTimeout: cfg.Server.ShutdownTimeout,
		Ping:            db.DB().PingContext,
		Stats:           stats,
		Logger:          logger,
	})
	if err != nil {
		db.Close()
		return nil, err
	}

	return &App{
		Config:       cfg,
		Store:        db,
		Client:       client,
		Orchestrator: orch,
		Server:       srv,
		Logger:       logger,
	}, nil
}

// NewClient builds the OpenAI-compatible client described by cfg.Provider.
func NewClient(cfg *config.Config, logger *slog.Logger) *oaiclient.Client {
	return oaiclient.NewClient(oaiclient.Config{
		APIKey:       cfg.Provider.APIKey,
		BaseURL:      cfg.Provider.BaseURL,
		Organization: cfg.Provider.Organization,
		Logger:       logger,
		Timeout:      cfg.Provider.Timeout,
		RetryCount:   cfg.Provider.RetryCount,
		RetryDelay:   cfg.Provider.RetryDelay,
	})
}

// resolveModel binds the configured model, asking the provider's model list
// first when verify_model is set.
func resolveModel(ctx context.Context, client *oaiclient.Client, cfg config.ProviderConfig) (aisdk.ModelClient, error) {
	if !cfg.VerifyModel {
		return client.Bind(cfg.Model), nil
	}
	model, err := client.Model(ctx, cfg.Model)
	if err != nil {
		return nil, fmt.Errorf("failed to verify model %q: %w", cfg.Model, err)
	}
	return model, nil
}

// Run serves HTTP until ctx is cancelled.
func (a *App) Run(ctx context.Context) error {
	a.Logger.Info("starting chatrelay",
		"addr", a.Config.Server.Addr,
		"model", a.Config.Provider.Model,
		"base_url", a.Client.BaseURL(),
		"history_policy", a.Config.Chat.HistoryPolicy)
	return a.Server.Run(ctx)
}

// Close releases the resources held by the app.
func (a *App) Close() error {
	if a.Store != nil {
		return a.Store.Close()
	}
	return nil
}
