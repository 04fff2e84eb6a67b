package llm

import (
	"context"

	"localllm/pkg/types"
)

// Engine is the native inference backend. The heavy lifting — tokenization,
// sampling, quantized weight handling, context management — happens behind
// this boundary; the package only prepares inputs and collects outputs.
//
// Only one Prompt/PromptStreaming call may be in flight per engine; Model
// serializes access.
type Engine interface {
	// Load opens the model file with the given context window size and
	// number of GPU-offloaded layers.
	Load(path string, ctxSize, gpuLayers int) error
	// InitGPU selects a compute device by name, vendor class, or the
	// generic "gpu" selector.
	InitGPU(device string) error
	// SetThreadCount overrides the CPU thread count.
	SetThreadCount(n int)
	// Prompt runs one blocking invocation. text is substituted into the
	// template's %1 slot engine-side. cb sees every produced fragment and
	// may stop generation by returning false.
	Prompt(ctx context.Context, text, template string, cb types.ResponseCallback, opts types.PromptOptions) error
	// PromptStreaming behaves like Prompt but additionally yields the
	// produced fragments on the returned channel, which is closed when
	// the engine finishes or cb requests a stop.
	PromptStreaming(ctx context.Context, text, template string, cb types.ResponseCallback, opts types.PromptOptions) (<-chan string, error)
	// Embed produces one embedding per text. dimensionality <= 0 selects
	// the model's full size; doMean selects mean-vs-truncate handling of
	// over-long texts; atlas enables strict compatibility checks.
	Embed(ctx context.Context, texts []string, prefix string, dimensionality int, doMean, atlas bool) (types.EmbedResult, error)
	// Close releases the loaded model.
	Close() error
}
