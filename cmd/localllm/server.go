package main

import (
	"context"
	"encoding/json"
	"io"

	"localllm/internal/catalog"
	"localllm/internal/registry"
	"localllm/pkg/llm"
	"localllm/pkg/types"
)

// service adapts one loaded model (plus the catalog and the local model
// directory) to the HTTP API surface.
type service struct {
	model     *llm.Model
	embedder  *llm.Embedder
	modelsDir string
	cat       *catalog.Client
}

func newService(m *llm.Model, modelsDir, catalogURL string) *service {
	return &service{
		model:     m,
		embedder:  llm.AsEmbedder(m),
		modelsDir: modelsDir,
		cat:       catalog.New(catalogURL),
	}
}

func (s *service) Ready() bool { return s.model != nil }

// Models merges the local directory scan with the remote catalog; records
// present both locally and remotely keep the local path. A catalog failure
// degrades to the local list.
func (s *service) Models(ctx context.Context) ([]types.ModelConfig, error) {
	dir := s.modelsDir
	if dir == "" {
		dir = "~/.cache/localllm"
	}
	local, err := registry.LoadDir(dir)
	if err != nil {
		return nil, err
	}
	seen := make(map[string]bool, len(local))
	for _, m := range local {
		seen[m.Filename] = true
	}
	remote, err := s.cat.List(ctx)
	if err != nil {
		return local, nil
	}
	for _, m := range remote {
		if !seen[m.Filename] {
			local = append(local, m)
		}
	}
	return local, nil
}

// Complete runs one generation and writes NDJSON chunks. In streaming mode
// each fragment becomes a line; otherwise a single line carries the whole
// completion. The final line has done=true.
func (s *service) Complete(ctx context.Context, req types.CompletionRequest, w io.Writer, flush func()) error {
	enc := json.NewEncoder(w)
	writeChunk := func(c types.CompletionChunk) error {
		if err := enc.Encode(c); err != nil {
			return err
		}
		if flush != nil {
			flush()
		}
		return nil
	}

	if req.Stream {
		stream, err := s.model.GenerateStream(ctx, req.Prompt, req.SamplingParams, nil)
		if err != nil {
			return err
		}
		for frag := range stream {
			if err := writeChunk(types.CompletionChunk{Token: frag}); err != nil {
				return err
			}
		}
		return writeChunk(types.CompletionChunk{Done: true})
	}

	out, err := s.model.Generate(ctx, req.Prompt, req.SamplingParams, nil)
	if err != nil {
		return err
	}
	return writeChunk(types.CompletionChunk{Text: out, Done: true})
}

func (s *service) Embeddings(ctx context.Context, req types.EmbeddingRequest) (types.EmbedResult, error) {
	return s.embedder.Embed(ctx, req.Texts, llm.EmbedOptions{
		Prefix:         req.Prefix,
		Dimensionality: req.Dimensionality,
		LongTextMode:   req.LongTextMode,
		Atlas:          req.Atlas,
	})
}
