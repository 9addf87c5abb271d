package model

import (
	"context"

	"schola/types"
)

// EmbedderInterface creates embedding vectors for text.
type EmbedderInterface interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// GeneratorInterface produces a completion for a chat conversation.
type GeneratorInterface interface {
	Generate(ctx context.Context, messages []types.Message) (string, error)
}

// TranscriberInterface converts recorded speech to text.
type TranscriberInterface interface {
	Transcribe(ctx context.Context, audio []byte) (string, error)
}
