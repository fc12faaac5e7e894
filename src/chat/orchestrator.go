// Package chat coordinates a single chat turn: it resolves the conversation,
// records the user's message, streams the model's reply and records that
// reply once the stream ends.
package chat

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"
)

const (
	// DefaultSystemPrompt is prepended to every provider call. It is never stored.
	DefaultSystemPrompt = "你是一个友好且专业的中文 AI 助手。"

	// DefaultFinalizeTimeout bounds the assistant turn write after the stream ends.
	DefaultFinalizeTimeout = 10 * time.Second

	// DefaultMaxMessageBytes caps the size of one user message.
	DefaultMaxMessageBytes = 32 << 10

	// EmptyReplyPlaceholder replaces an empty single-shot reply.
	EmptyReplyPlaceholder = "（未生成回复）"
)

// Config holds the collaborators and tunables of an Orchestrator.
type Config struct {
	Store    Store
	Provider Provider

	// Policy selects the history window. Defaults to FullHistory.
	Policy ContextPolicy

	SystemPrompt    string
	MaxMessageBytes int
	FinalizeTimeout time.Duration

	// OnTransition, when set, observes every state change of every turn.
	// It is called synchronously from the request goroutine.
	OnTransition func(Transition)

	Logger *slog.Logger
}

// Orchestrator runs chat turns. It holds no per-request state and is safe for
// concurrent use.
type Orchestrator struct {
	store           Store
	provider        Provider
	policy          ContextPolicy
	systemPrompt    string
	maxMessageBytes int
	finalizeTimeout time.Duration
	onTransition    func(Transition)
	logger          *slog.Logger
}

// New creates an Orchestrator.
func New(cfg Config) (*Orchestrator, error) {
	if cfg.Store == nil {
		return nil, ErrStoreRequired
	}
	if cfg.Provider == nil {
		return nil, ErrProviderRequired
	}
	if cfg.Policy == nil {
		cfg.Policy = FullHistory{}
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = DefaultSystemPrompt
	}
	if cfg.MaxMessageBytes <= 0 {
		cfg.MaxMessageBytes = DefaultMaxMessageBytes
	}
	if cfg.FinalizeTimeout <= 0 {
		cfg.FinalizeTimeout = DefaultFinalizeTimeout
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}

	return &Orchestrator{
		store:           cfg.Store,
		provider:        cfg.Provider,
		policy:          cfg.Policy,
		systemPrompt:    cfg.SystemPrompt,
		maxMessageBytes: cfg.MaxMessageBytes,
		finalizeTimeout: cfg.FinalizeTimeout,
		onTransition:    cfg.OnTransition,
		logger:          cfg.Logger.With("component", "orchestrator"),
	}, nil
}

// Request is one inbound user utterance.
type Request struct {
	Identity Identity
	// ChatID continues an existing conversation. Empty starts a new one.
	ChatID  string
	Message string
}

// Handle validates the request, resolves the conversation, stores the user
// turn, assembles the history and opens the provider stream. The returned
// Reply must be relayed or closed.
func (o *Orchestrator) Handle(ctx context.Context, req Request) (*Reply, error) {
	run := o.newRun(req.ChatID)

	if err := o.validate(req.Message); err != nil {
		return nil, run.abort(newError(ErrValidation, "validate", err))
	}

	chatID, created, err := o.resolve(ctx, run, req)
	if err != nil {
		return nil, run.abort(err)
	}
	run.bind(chatID)

	run.advance(StatePersistingUserTurn)
	if err := o.store.AppendTurn(ctx, chatID, Turn{Role: RoleUser, Content: req.Message}); err != nil {
		return nil, run.abort(newError(ErrUpstream, "append user turn", err))
	}

	run.advance(StateLoadingHistory)
	history, err := o.store.ListTurns(ctx, chatID)
	if err != nil {
		return nil, run.abort(newError(ErrUpstream, "list turns", err))
	}
	messages := o.assemble(history)

	run.advance(StateStreamingProvider)
	stream, err := o.provider.StreamCompletion(ctx, messages)
	if err != nil {
		return nil, run.abort(newError(ErrUpstream, "open provider stream", providerFailure(err)))
	}

	run.logger.Debug("provider stream opened", "messages", len(messages), "created", created)

	return &Reply{
		ChatID:  chatID,
		Created: created,
		o:       o,
		run:     run,
		ctx:     ctx,
		stream:  stream,
	}, nil
}

// History returns the stored turns of a conversation the identity may read.
func (o *Orchestrator) History(ctx context.Context, identity Identity, chatID string) ([]Turn, error) {
	if chatID == "" {
		return nil, newError(ErrValidation, "history", errors.New("chat id is required"))
	}
	if err := o.authorize(ctx, identity, chatID); err != nil {
		return nil, err
	}
	turns, err := o.store.ListTurns(ctx, chatID)
	if err != nil {
		return nil, newError(ErrUpstream, "list turns", err)
	}
	return turns, nil
}

// Ask answers a single message without a conversation. Nothing is stored.
func (o *Orchestrator) Ask(ctx context.Context, message string) (string, error) {
	if err := o.validate(message); err != nil {
		return "", newError(ErrValidation, "validate", err)
	}
	reply, err := o.provider.Complete(ctx, []Turn{
		{Role: RoleSystem, Content: o.systemPrompt},
		{Role: RoleUser, Content: message},
	})
	if err != nil {
		return "", newError(ErrUpstream, "complete", providerFailure(err))
	}
	reply = strings.TrimSpace(reply)
	if reply == "" {
		return EmptyReplyPlaceholder, nil
	}
	return reply, nil
}

func providerFailure(err error) error {
	return fmt.Errorf("%w: %w", ErrProviderFailed, err)
}

func (o *Orchestrator) validate(message string) error {
	if strings.TrimSpace(message) == "" {
		return ErrEmptyMessage
	}
	if len(message) > o.maxMessageBytes {
		return ErrMessageTooLong
	}
	return nil
}

func (o *Orchestrator) resolve(ctx context.Context, run *turnRun, req Request) (string, bool, error) {
	if req.ChatID == "" {
		run.advance(StateCreatingConversation)
		chatID, err := o.store.CreateConversation(ctx, req.Identity)
		if err != nil {
			return "", false, newError(ErrUpstream, "create conversation", err)
		}
		return chatID, true, nil
	}

	run.advance(StateLocatingConversation)
	if err := o.authorize(ctx, req.Identity, req.ChatID); err != nil {
		return "", false, err
	}
	return req.ChatID, false, nil
}

func (o *Orchestrator) authorize(ctx context.Context, identity Identity, chatID string) error {
	owner, err := o.store.GetOwner(ctx, chatID)
	if errors.Is(err, ErrConversationNotFound) {
		return newError(ErrAccessDenied, "locate conversation", nil)
	}
	if err != nil {
		return newError(ErrUpstream, "locate conversation", err)
	}
	if !owner.IsAnonymous() && owner != identity {
		o.logger.Debug("conversation owner mismatch", "chat_id", chatID)
		return newError(ErrAccessDenied, "locate conversation", nil)
	}
	return nil
}

func (o *Orchestrator) assemble(history []Turn) []Turn {
	window := o.policy.Select(history)
	messages := make([]Turn, 0, len(window)+1)
	messages = append(messages, Turn{Role: RoleSystem, Content: o.systemPrompt})
	return append(messages, window...)
}
