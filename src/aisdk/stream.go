package aisdk

import (
	"strings"
)

// StreamAggregator folds streamed chunks into the reply text, finish reason
// and usage of one completion.
type StreamAggregator struct {
	ID      string
	Created int64
	Model   string
	Content strings.Builder

	FinishReason string
	Usage        *Usage
}

// AddChunk processes a stream chunk and updates the aggregated state.
func (a *StreamAggregator) AddChunk(chunk *StreamChunk) {
	if a.ID == "" {
		a.ID = chunk.ID
	}
	if a.Created == 0 {
		a.Created = chunk.Created
	}
	if a.Model == "" {
		a.Model = chunk.Model
	}
	if chunk.Usage != nil {
		a.Usage = chunk.Usage
	}
	if len(chunk.Choices) == 0 {
		return
	}
	choice := chunk.Choices[0]
	if choice.Delta != nil {
		a.Content.WriteString(choice.Delta.Content)
	}
	if choice.FinishReason != "" {
		a.FinishReason = choice.FinishReason
	}
}
