package llm

import (
	"context"
	"fmt"

	"localllm/pkg/types"
)

// MinDimensionality is the smallest embedding size that does not degrade
// retrieval quality noticeably; smaller values work but draw a warning.
const MinDimensionality = 64

// DefaultEmbeddingModel is loaded when NewEmbedder is given no model name.
const DefaultEmbeddingModel = "all-MiniLM-L6-v2.gguf2.f16.gguf"

// Embedder extracts embeddings from a loaded model.
type Embedder struct {
	m *Model
}

// NewEmbedder resolves and loads an embedding model. An empty modelName
// selects DefaultEmbeddingModel.
func NewEmbedder(ctx context.Context, modelName string, opts ...Option) (*Embedder, error) {
	if modelName == "" {
		modelName = DefaultEmbeddingModel
	}
	m, err := New(ctx, modelName, opts...)
	if err != nil {
		return nil, err
	}
	return &Embedder{m: m}, nil
}

// AsEmbedder wraps an already constructed model.
func AsEmbedder(m *Model) *Embedder { return &Embedder{m: m} }

// Close releases the underlying model.
func (e *Embedder) Close() error { return e.m.Close() }

// EmbedOptions configure one embedding call.
type EmbedOptions struct {
	// Prefix is the model-specific task prefix (e.g. "search_query"),
	// without the trailing colon. Empty means no prefix.
	Prefix string
	// Dimensionality is the target embedding size for Matryoshka-capable
	// models; nil selects the model's full size.
	Dimensionality *int
	// LongTextMode picks how over-long texts are handled: "mean"
	// (default) or "truncate".
	LongTextMode string
	// Atlas enables strict Atlas API compatibility: over-long texts with
	// mean handling become an error instead of being averaged.
	Atlas bool
}

// Embed generates one embedding per input text. Parameter validation
// happens before any engine call: a non-positive dimensionality or an
// unrecognized long-text mode is a configuration error.
func (e *Embedder) Embed(ctx context.Context, texts []string, opts EmbedOptions) (types.EmbedResult, error) {
	dim := -1
	if opts.Dimensionality != nil {
		dim = *opts.Dimensionality
		if dim <= 0 {
			return types.EmbedResult{}, types.ErrConfig(
				fmt.Sprintf("dimensionality must be nil or a positive integer, got %d", dim))
		}
		if dim < MinDimensionality {
			e.m.log.Warn().Int("dimensionality", dim).Int("minimum", MinDimensionality).
				Msg("dimensionality below the suggested minimum, performance may be degraded")
		}
	}

	var doMean bool
	switch opts.LongTextMode {
	case "", "mean":
		doMean = true
	case "truncate":
		doMean = false
	default:
		return types.EmbedResult{}, types.ErrConfig(
			fmt.Sprintf("long text mode must be one of 'mean' or 'truncate', got %q", opts.LongTextMode))
	}

	return e.m.engine.Embed(ctx, texts, opts.Prefix, dim, doMean, opts.Atlas)
}

// EmbedText is the single-text convenience form of Embed.
func (e *Embedder) EmbedText(ctx context.Context, text string, opts EmbedOptions) ([]float32, error) {
	res, err := e.Embed(ctx, []string{text}, opts)
	if err != nil {
		return nil, err
	}
	if len(res.Embeddings) == 0 {
		return nil, fmt.Errorf("engine returned no embedding")
	}
	return res.Embeddings[0], nil
}
