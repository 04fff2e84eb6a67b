package llm

import (
	"context"
	"os"
	"path/filepath"
	"sync"
	"testing"

	"localllm/pkg/types"
)

type promptCall struct {
	text     string
	template string
	opts     types.PromptOptions
}

type embedCall struct {
	texts  []string
	prefix string
	dim    int
	doMean bool
	atlas  bool
}

// fakeEngine records every call and plays back canned fragments.
type fakeEngine struct {
	mu        sync.Mutex
	fragments []string
	promptErr error

	loadPath  string
	loadCtx   int
	loadNGL   int
	gpuDevice string
	threads   int
	closed    bool

	prompts []promptCall
	embeds  []embedCall
}

func (f *fakeEngine) Load(path string, ctxSize, gpuLayers int) error {
	f.loadPath, f.loadCtx, f.loadNGL = path, ctxSize, gpuLayers
	return nil
}

func (f *fakeEngine) InitGPU(device string) error {
	f.gpuDevice = device
	return nil
}

func (f *fakeEngine) SetThreadCount(n int) { f.threads = n }

func (f *fakeEngine) Prompt(ctx context.Context, text, template string, cb types.ResponseCallback, opts types.PromptOptions) error {
	f.mu.Lock()
	f.prompts = append(f.prompts, promptCall{text: text, template: template, opts: opts})
	f.mu.Unlock()
	if f.promptErr != nil {
		return f.promptErr
	}
	if opts.Tokens == 0 {
		// Priming call: ingest only.
		return nil
	}
	for i, frag := range f.fragments {
		if cb != nil && !cb(int32(i), frag) {
			break
		}
	}
	return nil
}

func (f *fakeEngine) PromptStreaming(ctx context.Context, text, template string, cb types.ResponseCallback, opts types.PromptOptions) (<-chan string, error) {
	f.mu.Lock()
	f.prompts = append(f.prompts, promptCall{text: text, template: template, opts: opts})
	f.mu.Unlock()
	if f.promptErr != nil {
		return nil, f.promptErr
	}
	out := make(chan string, len(f.fragments))
	go func() {
		defer close(out)
		for i, frag := range f.fragments {
			if cb != nil && !cb(int32(i), frag) {
				return
			}
			out <- frag
		}
	}()
	return out, nil
}

func (f *fakeEngine) Embed(ctx context.Context, texts []string, prefix string, dimensionality int, doMean, atlas bool) (types.EmbedResult, error) {
	f.mu.Lock()
	f.embeds = append(f.embeds, embedCall{texts: texts, prefix: prefix, dim: dimensionality, doMean: doMean, atlas: atlas})
	f.mu.Unlock()
	res := types.EmbedResult{NPromptTokens: len(texts)}
	for range texts {
		res.Embeddings = append(res.Embeddings, []float32{0.1, 0.2, 0.3})
	}
	return res, nil
}

func (f *fakeEngine) Close() error {
	f.closed = true
	return nil
}

func (f *fakeEngine) promptCalls() []promptCall {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]promptCall, len(f.prompts))
	copy(out, f.prompts)
	return out
}

// writeModelFile drops a dummy model file into dir.
func writeModelFile(t *testing.T, dir, name string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	if err := os.WriteFile(p, []byte("gguf"), 0o644); err != nil {
		t.Fatalf("write model file: %v", err)
	}
	return p
}

// newTestModel builds a Model over a dummy file and the given fake engine,
// with downloads and catalog access disabled.
func newTestModel(t *testing.T, eng *fakeEngine, opts ...Option) *Model {
	t.Helper()
	dir := t.TempDir()
	writeModelFile(t, dir, "test-model.gguf")
	all := append([]Option{
		WithModelDir(dir),
		WithAllowDownload(false),
		WithEngine(eng),
	}, opts...)
	m, err := New(context.Background(), "test-model", all...)
	if err != nil {
		t.Fatalf("new model: %v", err)
	}
	return m
}
