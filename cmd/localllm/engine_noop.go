package main

import (
	"context"

	"localllm/pkg/types"
)

// noopEngine satisfies llm.Engine without loading anything. Used by `pull`,
// which only needs the download side of model construction.
type noopEngine struct{}

func (noopEngine) Load(path string, ctxSize, gpuLayers int) error { return nil }
func (noopEngine) InitGPU(device string) error                    { return nil }
func (noopEngine) SetThreadCount(n int)                           {}
func (noopEngine) Prompt(ctx context.Context, text, template string, cb types.ResponseCallback, opts types.PromptOptions) error {
	return nil
}
func (noopEngine) PromptStreaming(ctx context.Context, text, template string, cb types.ResponseCallback, opts types.PromptOptions) (<-chan string, error) {
	ch := make(chan string)
	close(ch)
	return ch, nil
}
func (noopEngine) Embed(ctx context.Context, texts []string, prefix string, dimensionality int, doMean, atlas bool) (types.EmbedResult, error) {
	return types.EmbedResult{}, nil
}
func (noopEngine) Close() error { return nil }
