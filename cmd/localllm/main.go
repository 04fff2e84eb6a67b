package main

import (
	"bufio"
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"localllm/internal/catalog"
	"localllm/internal/config"
	"localllm/internal/httpapi"
	"localllm/internal/registry"
	"localllm/pkg/llm"
	"localllm/pkg/types"
)

type cliConfig struct {
	configPath string
	logLevel   string

	modelsDir  string
	catalogURL string
	device     string
	ctxSize    int
	gpuLayers  int
	threads    int
	noDownload bool

	addr string
}

func main() {
	if err := buildRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func buildRootCmd() *cobra.Command {
	cfg := &cliConfig{}
	root := &cobra.Command{
		Use:           "localllm",
		Short:         "Download local language models and run generation or embeddings",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	pf := root.PersistentFlags()
	pf.StringVar(&cfg.configPath, "config", "", "Optional config file (.yaml/.json/.toml)")
	pf.StringVar(&cfg.logLevel, "log-level", envOr("LOCALLLM_LOG_LEVEL", "info"), "Log level: debug|info|warn|error")
	pf.StringVar(&cfg.modelsDir, "models-dir", "", "Directory holding model files (default ~/.cache/localllm)")
	pf.StringVar(&cfg.catalogURL, "catalog-url", "", "Remote model catalog URL")
	pf.StringVar(&cfg.device, "device", "cpu", "Compute device: cpu, gpu, vendor class, or GPU name")
	pf.IntVar(&cfg.ctxSize, "ctx", 2048, "Context window size")
	pf.IntVar(&cfg.gpuLayers, "ngl", 100, "Number of GPU-offloaded layers")
	pf.IntVar(&cfg.threads, "threads", 0, "CPU thread count (0 = automatic)")
	pf.BoolVar(&cfg.noDownload, "no-download", false, "Fail instead of downloading a missing model")

	root.PersistentPreRunE = func(cmd *cobra.Command, args []string) error {
		return cfg.applyFile()
	}

	root.AddCommand(
		buildModelsCmd(cfg),
		buildPullCmd(cfg),
		buildCompleteCmd(cfg),
		buildChatCmd(cfg),
		buildEmbedCmd(cfg),
		buildServeCmd(cfg),
	)
	return root
}

// applyFile merges the optional config file under flags that were left at
// their defaults.
func (c *cliConfig) applyFile() error {
	if c.configPath == "" {
		return nil
	}
	fc, err := config.Load(c.configPath)
	if err != nil {
		return err
	}
	if c.modelsDir == "" {
		c.modelsDir = fc.ModelsDir
	}
	if c.catalogURL == "" {
		c.catalogURL = fc.CatalogURL
	}
	if fc.Device != "" && c.device == "cpu" {
		c.device = fc.Device
	}
	if fc.ContextSize > 0 && c.ctxSize == 2048 {
		c.ctxSize = fc.ContextSize
	}
	if fc.GPULayers > 0 && c.gpuLayers == 100 {
		c.gpuLayers = fc.GPULayers
	}
	if fc.Threads > 0 && c.threads == 0 {
		c.threads = fc.Threads
	}
	if !fc.DownloadAllowed() {
		c.noDownload = true
	}
	if c.addr == "" {
		c.addr = fc.Addr
	}
	return nil
}

func (c *cliConfig) logger() zerolog.Logger {
	lvl, err := zerolog.ParseLevel(c.logLevel)
	if err != nil {
		lvl = zerolog.InfoLevel
	}
	return zerolog.New(zerolog.ConsoleWriter{Out: os.Stderr}).Level(lvl).With().Timestamp().Logger()
}

func (c *cliConfig) modelOptions(log zerolog.Logger) []llm.Option {
	opts := []llm.Option{
		llm.WithLogger(log),
		llm.WithAllowDownload(!c.noDownload),
		llm.WithDevice(c.device),
		llm.WithContextSize(c.ctxSize),
		llm.WithGPULayers(c.gpuLayers),
		llm.WithThreads(c.threads),
	}
	if c.modelsDir != "" {
		opts = append(opts, llm.WithModelDir(c.modelsDir))
	}
	if c.catalogURL != "" {
		opts = append(opts, llm.WithCatalogURL(c.catalogURL))
	}
	return opts
}

func buildModelsCmd(cfg *cliConfig) *cobra.Command {
	var local bool
	cmd := &cobra.Command{
		Use:   "models",
		Short: "List downloadable models from the catalog, or local files with --local",
		RunE: func(cmd *cobra.Command, args []string) error {
			if local {
				dir := cfg.modelsDir
				if dir == "" {
					dir = "~/.cache/localllm"
				}
				models, err := registry.LoadDir(dir)
				if err != nil {
					return err
				}
				for _, m := range models {
					fmt.Println(m.Filename)
				}
				return nil
			}
			models, err := catalog.New(cfg.catalogURL).List(cmd.Context())
			if err != nil {
				return err
			}
			for _, m := range models {
				fmt.Printf("%-60s %s\n", m.Filename, m.Name)
			}
			return nil
		},
	}
	cmd.Flags().BoolVar(&local, "local", false, "List model files already on disk")
	return cmd
}

func buildPullCmd(cfg *cliConfig) *cobra.Command {
	return &cobra.Command{
		Use:   "pull <model>",
		Short: "Download a model file if not already present",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cfg.logger()
			var lastPct int = -1
			progress := func(delta, written, total int64) {
				if total == 0 {
					return
				}
				if pct := int(written * 100 / total); pct != lastPct {
					lastPct = pct
					fmt.Fprintf(os.Stderr, "\r%3d%% (%d/%d bytes)", pct, written, total)
				}
			}
			opts := append(cfg.modelOptions(log), llm.WithProgress(progress))
			m, err := llm.New(cmd.Context(), args[0], append(opts, llm.WithEngine(noopEngine{}))...)
			if err != nil {
				return err
			}
			fmt.Fprintln(os.Stderr)
			fmt.Println(m.Config().Path)
			return nil
		},
	}
}

func buildCompleteCmd(cfg *cliConfig) *cobra.Command {
	var maxTokens int
	var temp float32
	cmd := &cobra.Command{
		Use:   "complete <model> <prompt>",
		Short: "Run a single completion and print the result",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cfg.logger()
			m, err := llm.New(cmd.Context(), args[0], cfg.modelOptions(log)...)
			if err != nil {
				return err
			}
			defer m.Close()
			out, err := m.Generate(cmd.Context(), args[1], types.SamplingParams{MaxTokens: maxTokens, Temp: temp}, nil)
			if err != nil {
				return err
			}
			fmt.Println(out)
			return nil
		},
	}
	cmd.Flags().IntVar(&maxTokens, "max-tokens", 0, "Maximum tokens to generate")
	cmd.Flags().Float32Var(&temp, "temp", 0, "Sampling temperature")
	return cmd
}

func buildChatCmd(cfg *cliConfig) *cobra.Command {
	var system, template string
	cmd := &cobra.Command{
		Use:   "chat <model>",
		Short: "Interactive chat session, streaming tokens as they arrive",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cfg.logger()
			m, err := llm.New(cmd.Context(), args[0], cfg.modelOptions(log)...)
			if err != nil {
				return err
			}
			defer m.Close()

			var sessOpts []llm.SessionOption
			if system != "" {
				sessOpts = append(sessOpts, llm.WithSystemPrompt(system))
			}
			if template != "" {
				sessOpts = append(sessOpts, llm.WithPromptTemplate(template))
			}
			return m.ChatSession(func(s *llm.Session) error {
				scanner := bufio.NewScanner(os.Stdin)
				for {
					fmt.Print("> ")
					if !scanner.Scan() {
						return scanner.Err()
					}
					line := strings.TrimSpace(scanner.Text())
					if line == "" {
						continue
					}
					if line == "/quit" {
						return nil
					}
					stream, err := s.GenerateStream(cmd.Context(), line, types.SamplingParams{}, nil)
					if err != nil {
						return err
					}
					for frag := range stream {
						fmt.Print(frag)
					}
					fmt.Println()
				}
			}, sessOpts...)
		},
	}
	cmd.Flags().StringVar(&system, "system", "", "System prompt (default from catalog)")
	cmd.Flags().StringVar(&template, "template", "", "Prompt template with {0} as the user slot")
	return cmd
}

func buildEmbedCmd(cfg *cliConfig) *cobra.Command {
	var modelName, prefix, longTextMode string
	var dimensionality int
	var atlas bool
	cmd := &cobra.Command{
		Use:   "embed <text>...",
		Short: "Generate embeddings for the given texts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cfg.logger()
			e, err := llm.NewEmbedder(cmd.Context(), modelName, cfg.modelOptions(log)...)
			if err != nil {
				return err
			}
			defer e.Close()
			opts := llm.EmbedOptions{Prefix: prefix, LongTextMode: longTextMode, Atlas: atlas}
			if dimensionality != 0 {
				opts.Dimensionality = &dimensionality
			}
			res, err := e.Embed(cmd.Context(), args, opts)
			if err != nil {
				return err
			}
			for i, vec := range res.Embeddings {
				fmt.Printf("[%d] %d dims, first: %v\n", i, len(vec), head(vec, 4))
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&modelName, "model", "", "Embedding model name (default "+llm.DefaultEmbeddingModel+")")
	cmd.Flags().StringVar(&prefix, "prefix", "", "Task prefix, e.g. search_query")
	cmd.Flags().IntVar(&dimensionality, "dimensionality", 0, "Target dimensionality (0 = full size)")
	cmd.Flags().StringVar(&longTextMode, "long-text-mode", "mean", "Over-long text handling: mean or truncate")
	cmd.Flags().BoolVar(&atlas, "atlas", false, "Strict Atlas API compatibility")
	return cmd
}

func buildServeCmd(cfg *cliConfig) *cobra.Command {
	var addr, modelName string
	cmd := &cobra.Command{
		Use:   "serve <model>",
		Short: "Serve completions and embeddings over HTTP",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			log := cfg.logger()
			httpapi.SetLogger(log)
			if len(args) > 0 {
				modelName = args[0]
			}
			if modelName == "" {
				return fmt.Errorf("model name is required")
			}
			m, err := llm.New(cmd.Context(), modelName, cfg.modelOptions(log)...)
			if err != nil {
				return err
			}
			defer m.Close()

			if addr == "" {
				addr = cfg.addr
			}
			if addr == "" {
				addr = envOr("LOCALLLM_ADDR", ":8090")
			}
			svc := newService(m, cfg.modelsDir, cfg.catalogURL)
			srv := &http.Server{Addr: addr, Handler: httpapi.NewMux(svc)}

			errCh := make(chan error, 1)
			go func() {
				log.Info().Str("addr", addr).Str("model", m.Config().Filename).Msg("localllm listening")
				if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
					errCh <- err
				}
			}()

			stop := make(chan os.Signal, 1)
			signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
			select {
			case err := <-errCh:
				return err
			case <-stop:
			}
			ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			return srv.Shutdown(ctx)
		},
	}
	cmd.Flags().StringVar(&addr, "addr", "", "HTTP listen address (default :8090)")
	return cmd
}

func envOr(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func head(v []float32, n int) []float32 {
	if len(v) < n {
		return v
	}
	return v[:n]
}
