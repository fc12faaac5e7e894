package oaiclient

import (
	"context"
	"fmt"

	"github.com/elee1766/chatrelay/src/aisdk"
)

var _ aisdk.ModelClient = (*ModelClient)(nil)

// ModelClient represents a client bound to a specific model
type ModelClient struct {
	client *Client
	model  *aisdk.ModelInfo
}

// Model looks the model up in the provider's listing and binds a client to it.
func (c *Client) Model(ctx context.Context, modelName string) (aisdk.ModelClient, error) {
	modelInfo, err := c.modelCache.GetModel(ctx, modelName)
	if err != nil {
		return nil, fmt.Errorf("failed to get model info for %s: %w", modelName, err)
	}
	return &ModelClient{client: c, model: modelInfo}, nil
}

// Bind returns a client for modelName without consulting the model listing.
// Many compatible servers do not implement /models.
func (c *Client) Bind(modelName string) *ModelClient {
	return &ModelClient{client: c, model: &aisdk.ModelInfo{ID: modelName}}
}

// CreateChatCompletion creates a chat completion with the bound model
func (mc *ModelClient) CreateChatCompletion(ctx context.Context, req *aisdk.ChatCompletionRequest) (*aisdk.ChatCompletionResponse, error) {
	req.Model = mc.model.ID
	return mc.client.createChatCompletion(ctx, req)
}

// CreateChatCompletionStream creates a streaming chat completion with the bound model
func (mc *ModelClient) CreateChatCompletionStream(ctx context.Context, req *aisdk.ChatCompletionRequest) (aisdk.StreamInterface, error) {
	req.Model = mc.model.ID
	return mc.client.createChatCompletionStream(ctx, req)
}

// GetModelInfo returns the model information
func (mc *ModelClient) GetModelInfo() *aisdk.ModelInfo {
	return mc.model
}
