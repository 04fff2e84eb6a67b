//go:build !llama

package engine

// No-CGO stub compiled when the 'llama' build tag is not set, keeping
// default builds and CI CGO-free. The real adapter lives in llama.go
// (tagged 'llama'). The stub refuses to load rather than mock inference.

import (
	"context"

	"github.com/rs/zerolog"

	"localllm/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = false

type LlamaEngine struct{}

// NewLlama returns a stub engine that fails fast on Load.
func NewLlama(log zerolog.Logger) *LlamaEngine {
	return &LlamaEngine{}
}

func (e *LlamaEngine) Load(path string, ctxSize, gpuLayers int) error {
	return ErrNotBuilt("llama support not built (missing 'llama' build tag)")
}

func (e *LlamaEngine) InitGPU(device string) error {
	return ErrNotBuilt("llama support not built (missing 'llama' build tag)")
}

func (e *LlamaEngine) SetThreadCount(n int) {}

func (e *LlamaEngine) Prompt(ctx context.Context, text, template string, cb types.ResponseCallback, opts types.PromptOptions) error {
	// Should never be reached because Load fails, but stay explicit.
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	return ErrNotBuilt("llama support not built (missing 'llama' build tag)")
}

func (e *LlamaEngine) PromptStreaming(ctx context.Context, text, template string, cb types.ResponseCallback, opts types.PromptOptions) (<-chan string, error) {
	return nil, ErrNotBuilt("llama support not built (missing 'llama' build tag)")
}

func (e *LlamaEngine) Embed(ctx context.Context, texts []string, prefix string, dimensionality int, doMean, atlas bool) (types.EmbedResult, error) {
	return types.EmbedResult{}, ErrNotBuilt("llama support not built (missing 'llama' build tag)")
}

func (e *LlamaEngine) Close() error { return nil }
