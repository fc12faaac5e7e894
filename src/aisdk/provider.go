package aisdk

import (
	"context"
)

// Catalog is an endpoint that serves several models.
type Catalog interface {
	// ListModels returns the models the endpoint advertises, sorted by id.
	ListModels(ctx context.Context) ([]*ModelInfo, error)
	// Model binds a client to a model the endpoint advertises.
	Model(ctx context.Context, name string) (ModelClient, error)
}

// ModelClient sends completion requests to one model. Request.Model is set
// by the client.
type ModelClient interface {
	CreateChatCompletion(ctx context.Context, req *ChatCompletionRequest) (*ChatCompletionResponse, error)
	// CreateChatCompletionStream returns once the response headers arrived.
	// The caller must Close the stream.
	CreateChatCompletionStream(ctx context.Context, req *ChatCompletionRequest) (StreamInterface, error)
	GetModelInfo() *ModelInfo
}
