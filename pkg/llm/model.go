// Package llm is the public façade over a locally stored language model:
// it resolves a model name to a local file (downloading it when allowed),
// loads the file into a native inference engine, and drives generation,
// chat sessions and embedding extraction through it.
package llm

import (
	"context"
	"net/http"
	"path/filepath"
	"strings"
	"sync"

	"github.com/rs/zerolog"

	"localllm/internal/catalog"
	"localllm/internal/common/fsutil"
	"localllm/internal/download"
	"localllm/internal/engine"
	"localllm/pkg/types"
)

// defaultTemplate is the trivial one-slot template active outside sessions.
const defaultTemplate = "{0}"

// Model owns one loaded engine handle plus the optional chat-session state.
// Methods on Model are not safe for concurrent use except where noted; one
// generation is in flight per handle at a time, enforced with a mutex.
type Model struct {
	cfg    types.ModelConfig
	engine Engine
	log    zerolog.Logger

	genMu sync.Mutex // serializes generations on this handle

	// Session state. history == nil means no session is active.
	history   []*types.Message
	template  string
	formatAll Formatter
}

type options struct {
	modelDir      string
	allowDownload bool
	device        string
	ctxSize       int
	gpuLayers     int
	threads       int
	catalogURL    string
	httpClient    *http.Client
	engine        Engine
	log           zerolog.Logger
	progress      download.ProgressFunc
}

// Option configures model construction.
type Option func(*options)

// WithModelDir sets the directory holding (or receiving) the model file.
// The directory must already exist. Default is ~/.cache/localllm, which is
// created on demand.
func WithModelDir(dir string) Option { return func(o *options) { o.modelDir = dir } }

// WithAllowDownload controls whether a missing model file may be fetched
// from the remote host. Enabled by default.
func WithAllowDownload(allow bool) Option { return func(o *options) { o.allowDownload = allow } }

// WithDevice selects the compute device: "cpu" (default), "gpu", a vendor
// class, or an exact GPU name.
func WithDevice(device string) Option { return func(o *options) { o.device = device } }

// WithContextSize sets the maximum context window. Default 2048.
func WithContextSize(n int) Option { return func(o *options) { o.ctxSize = n } }

// WithGPULayers sets the number of layers offloaded to the GPU. Default 100.
func WithGPULayers(n int) Option { return func(o *options) { o.gpuLayers = n } }

// WithThreads overrides the engine's CPU thread count; 0 keeps the
// engine's automatic choice.
func WithThreads(n int) Option { return func(o *options) { o.threads = n } }

// WithCatalogURL overrides the remote catalog endpoint.
func WithCatalogURL(url string) Option { return func(o *options) { o.catalogURL = url } }

// WithHTTPClient overrides the HTTP client used for catalog and download
// requests.
func WithHTTPClient(c *http.Client) Option { return func(o *options) { o.httpClient = c } }

// WithEngine substitutes a custom inference engine. The default is the
// llama.cpp backend (stubbed out unless built with the 'llama' tag).
func WithEngine(e Engine) Option { return func(o *options) { o.engine = e } }

// WithLogger installs a structured logger. Default is a no-op logger.
func WithLogger(l zerolog.Logger) Option { return func(o *options) { o.log = l } }

// WithProgress installs a download progress observer.
func WithProgress(p download.ProgressFunc) Option { return func(o *options) { o.progress = p } }

// New resolves modelName to a local file, loads it into the engine, and
// returns a ready Model. The name's ".gguf" extension may be omitted.
func New(ctx context.Context, modelName string, opts ...Option) (*Model, error) {
	o := &options{
		allowDownload: true,
		device:        "cpu",
		ctxSize:       2048,
		gpuLayers:     100,
		log:           zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(o)
	}

	cfg, err := retrieveModel(ctx, appendExtensionIfMissing(modelName), o)
	if err != nil {
		return nil, err
	}

	eng := o.engine
	if eng == nil {
		eng = engine.NewLlama(o.log)
	}
	if err := eng.Load(cfg.Path, o.ctxSize, o.gpuLayers); err != nil {
		return nil, err
	}
	if o.device != "" && o.device != "cpu" {
		if err := eng.InitGPU(o.device); err != nil {
			return nil, err
		}
	}
	if o.threads > 0 {
		eng.SetThreadCount(o.threads)
	}

	return &Model{
		cfg:      cfg,
		engine:   eng,
		log:      o.log,
		template: defaultTemplate,
	}, nil
}

// retrieveModel locates the model file, consulting the catalog and
// downloading when allowed. The catalog record (if any) is returned with
// the resolved local path injected; a catalog miss leaves every field but
// Filename and Path empty.
func retrieveModel(ctx context.Context, filename string, o *options) (types.ModelConfig, error) {
	cfg := types.ModelConfig{Filename: filename}
	if o.allowDownload {
		rec, ok, err := catalog.New(o.catalogURL).Lookup(ctx, filename)
		if err != nil {
			return cfg, err
		}
		if ok {
			rec.Filename = filename
			cfg = rec
		}
	}

	dir := o.modelDir
	if dir == "" {
		var err error
		if dir, err = fsutil.DefaultModelDir(); err != nil {
			return cfg, err
		}
	} else {
		var err error
		if dir, err = fsutil.ExpandHome(dir); err != nil {
			return cfg, err
		}
		if !fsutil.PathExists(dir) {
			return cfg, types.ErrNotFound("model directory " + dir)
		}
	}

	dest := filepath.Join(dir, filename)
	switch {
	case fsutil.PathExists(dest):
		o.log.Debug().Str("path", dest).Msg("found model file")
		cfg.Path = dest
	case o.allowDownload:
		dl := download.New(o.httpClient, o.log, o.progress)
		path, err := dl.EnsureLocal(ctx, filename, dir, cfg.URL)
		if err != nil {
			return cfg, err
		}
		cfg.Path = path
	default:
		return cfg, types.ErrNotFound("model file " + dest)
	}
	return cfg, nil
}

// Config returns the resolved model configuration.
func (m *Model) Config() types.ModelConfig { return m.cfg }

// Close releases the engine handle.
func (m *Model) Close() error { return m.engine.Close() }

// CurrentChatSession returns a snapshot of the active transcript, or nil
// when no session is active.
func (m *Model) CurrentChatSession() []types.Message {
	if m.history == nil {
		return nil
	}
	out := make([]types.Message, len(m.history))
	for i, msg := range m.history {
		out[i] = *msg
	}
	return out
}

func appendExtensionIfMissing(modelName string) string {
	if strings.HasSuffix(modelName, ".bin") || strings.HasSuffix(modelName, ".gguf") {
		return modelName
	}
	return modelName + ".gguf"
}
