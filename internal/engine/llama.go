//go:build llama

package engine

import (
	"context"
	"errors"
	"strings"
	"sync"

	llama "github.com/go-skynet/go-llama.cpp"
	"github.com/rs/zerolog"

	"localllm/pkg/types"
)

// llamaBuilt indicates this binary was compiled with real llama support.
var llamaBuilt = true

// LlamaEngine drives a GGUF model through go-llama.cpp. One generation may
// be in flight at a time; callers serialize above this layer.
type LlamaEngine struct {
	mu      sync.Mutex
	model   *llama.LLama
	threads int
	log     zerolog.Logger
}

func NewLlama(log zerolog.Logger) *LlamaEngine {
	return &LlamaEngine{log: log}
}

// Load opens the model file with the given context window and GPU layer
// count. GPU layers are passed through to the backend; actual offload
// happens lazily on first inference.
func (e *LlamaEngine) Load(path string, ctxSize, gpuLayers int) error {
	if strings.TrimSpace(path) == "" {
		return errors.New("model path is empty")
	}
	m, err := llama.New(path,
		llama.SetContext(ctxSize),
		llama.SetGPULayers(gpuLayers),
	)
	if err != nil {
		return err
	}
	e.model = m
	e.log.Debug().Str("path", path).Int("ctx", ctxSize).Int("ngl", gpuLayers).Msg("model loaded")
	return nil
}

// InitGPU selects a compute device. The llama.cpp backend chooses the best
// device on its own once layers are offloaded, so only the generic "gpu"
// selector is accepted here.
func (e *LlamaEngine) InitGPU(device string) error {
	switch device {
	case "", "cpu", "gpu":
		return nil
	default:
		return errors.New("device selection by name is not supported by the llama.cpp backend: " + device)
	}
}

func (e *LlamaEngine) SetThreadCount(n int) {
	if n > 0 {
		e.threads = n
	}
}

// Prompt renders the template engine-side and runs one blocking prediction,
// forwarding each fragment to cb. A false return from cb stops emission.
func (e *LlamaEngine) Prompt(ctx context.Context, text, template string, cb types.ResponseCallback, opts types.PromptOptions) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return errors.New("llama model not loaded")
	}

	e.model.SetTokenCallback(func(tok string) bool {
		select {
		case <-ctx.Done():
			return false
		default:
		}
		if opts.Tokens == 0 {
			// Priming call: ingest only, emit nothing.
			return true
		}
		if cb == nil {
			return true
		}
		return cb(0, tok)
	})
	defer e.model.SetTokenCallback(nil)

	rendered := strings.Replace(template, "%1", text, 1)
	_, err := e.model.Predict(rendered, e.predictOptions(opts)...)
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	return nil
}

// PromptStreaming runs Prompt on a worker goroutine and yields fragments on
// the returned channel, closing it when the engine finishes or cb stops it.
func (e *LlamaEngine) PromptStreaming(ctx context.Context, text, template string, cb types.ResponseCallback, opts types.PromptOptions) (<-chan string, error) {
	if e.model == nil {
		return nil, errors.New("llama model not loaded")
	}
	out := make(chan string, 8)
	wrapped := func(tok int32, resp string) bool {
		select {
		case out <- resp:
		case <-ctx.Done():
			return false
		}
		if cb == nil {
			return true
		}
		return cb(tok, resp)
	}
	go func() {
		defer close(out)
		if err := e.Prompt(ctx, text, template, wrapped, opts); err != nil {
			e.log.Error().Err(err).Msg("streaming generation failed")
		}
	}()
	return out, nil
}

// Embed produces one embedding per input text. Dimensionality > 0 truncates
// the backend's full-size vectors; mean/atlas handling for over-long texts
// is delegated to the backend.
func (e *LlamaEngine) Embed(ctx context.Context, texts []string, prefix string, dimensionality int, doMean, atlas bool) (types.EmbedResult, error) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return types.EmbedResult{}, errors.New("llama model not loaded")
	}
	res := types.EmbedResult{Embeddings: make([][]float32, 0, len(texts))}
	for _, t := range texts {
		if ctx.Err() != nil {
			return types.EmbedResult{}, ctx.Err()
		}
		if prefix != "" {
			t = prefix + ": " + t
		}
		vec, err := e.model.Embeddings(t, llama.SetThreads(max(1, e.threads)))
		if err != nil {
			return types.EmbedResult{}, err
		}
		if dimensionality > 0 && dimensionality < len(vec) {
			vec = vec[:dimensionality]
		}
		res.Embeddings = append(res.Embeddings, vec)
	}
	return res, nil
}

func (e *LlamaEngine) Close() error {
	if e.model != nil {
		e.model.Free()
		e.model = nil
	}
	return nil
}

// predictOptions converts merged sampling params to go-llama.cpp options.
func (e *LlamaEngine) predictOptions(opts types.PromptOptions) []llama.PredictOption {
	p := opts.Params
	po := []llama.PredictOption{
		llama.SetTokens(opts.Tokens),
		llama.SetThreads(max(1, e.threads)),
		llama.SetTopK(zn(p.TopK, llama.DefaultOptions.TopK)),
		llama.SetTopP(zf(p.TopP, llama.DefaultOptions.TopP)),
		llama.SetTemperature(zf(p.Temp, llama.DefaultOptions.Temperature)),
		llama.SetPenalty(zf(p.RepeatPenalty, llama.DefaultOptions.Penalty)),
		llama.SetBatch(zn(p.NBatch, llama.DefaultOptions.Batch)),
	}
	return po
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}

func zn(v, def int) int {
	if v > 0 {
		return v
	}
	return def
}

func zf(v, def float32) float32 {
	if v > 0 {
		return v
	}
	return def
}
