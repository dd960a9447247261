package llm

import (
	"context"
)

type LLMClient interface {
	Complete(ctx context.Context, system, user string) (string, error)
}

type EmbedderClient interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}
