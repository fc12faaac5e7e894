// Package provider adapts an OpenAI-style model client to the chat package.
package provider

import (
	"context"
	"errors"
	"io"
	"log/slog"

	"github.com/elee1766/chatrelay/src/aisdk"
	"github.com/elee1766/chatrelay/src/chat"
)

// DefaultTemperature is used when Options leaves Temperature nil.
const DefaultTemperature = 0.7

var _ chat.Provider = (*Provider)(nil)

// Options tune every request a Provider sends.
type Options struct {
	Temperature *float64
	MaxTokens   *int
	// User is forwarded as the end-user identifier when set.
	User   string
	Logger *slog.Logger
}

// Provider answers chat turns with a bound model client.
type Provider struct {
	client aisdk.ModelClient
	opts   Options
	logger *slog.Logger
}

// New wraps client.
func New(client aisdk.ModelClient, opts Options) *Provider {
	if opts.Temperature == nil {
		t := DefaultTemperature
		opts.Temperature = &t
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	model := ""
	if info := client.GetModelInfo(); info != nil {
		model = info.ID
	}
	return &Provider{
		client: client,
		opts:   opts,
		logger: logger.With("component", "provider", "model", model),
	}
}

func (p *Provider) request(turns []chat.Turn) *aisdk.ChatCompletionRequest {
	msgs := make([]*aisdk.Message, 0, len(turns))
	for _, t := range turns {
		msgs = append(msgs, &aisdk.Message{Role: t.Role.String(), Content: t.Content})
	}
	return &aisdk.ChatCompletionRequest{
		Messages:    msgs,
		Temperature: p.opts.Temperature,
		MaxTokens:   p.opts.MaxTokens,
		User:        p.opts.User,
	}
}

// StreamCompletion implements chat.Provider.
func (p *Provider) StreamCompletion(ctx context.Context, turns []chat.Turn) (chat.FragmentStream, error) {
	req := p.request(turns)
	req.StreamOptions = &aisdk.StreamOptions{IncludeUsage: true}
	stream, err := p.client.CreateChatCompletionStream(ctx, req)
	if err != nil {
		return nil, err
	}
	return &fragments{stream: stream, logger: p.logger}, nil
}

// Complete implements chat.Provider.
func (p *Provider) Complete(ctx context.Context, turns []chat.Turn) (string, error) {
	resp, err := p.client.CreateChatCompletion(ctx, p.request(turns))
	if err != nil {
		return "", err
	}
	if len(resp.Choices) == 0 {
		return "", nil
	}
	p.logger.Debug("completion finished", "total_tokens", resp.Usage.TotalTokens)
	return resp.Choices[0].Message.Content, nil
}

// fragments turns stream chunks into text fragments, dropping chunks that
// carry no text such as role announcements and usage trailers.
type fragments struct {
	stream aisdk.StreamInterface
	logger *slog.Logger
	agg    aisdk.StreamAggregator
}

func (f *fragments) Recv() (string, error) {
	for {
		chunk, err := f.stream.Read()
		if err != nil {
			if errors.Is(err, io.EOF) {
				f.logger.Debug("stream finished",
					"completion_id", f.agg.ID,
					"served_model", f.agg.Model,
					"finish_reason", f.agg.FinishReason,
					"chars", len([]rune(f.agg.Content.String())),
					"usage", f.agg.Usage)
				return "", io.EOF
			}
			return "", err
		}
		if chunk == nil {
			return "", io.EOF
		}
		f.agg.AddChunk(chunk)
		if text := chunk.DeltaContent(); text != "" {
			return text, nil
		}
	}
}

func (f *fragments) Close() error {
	return f.stream.Close()
}
