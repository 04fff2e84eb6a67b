package types

// CompletionRequest is the /v1/completions payload. Sampling knobs are
// inlined; omitted fields take the documented defaults.
type CompletionRequest struct {
	Prompt string `json:"prompt"`
	Stream bool   `json:"stream,omitempty"`
	SamplingParams
}

// CompletionChunk is one NDJSON line of a streamed completion.
type CompletionChunk struct {
	Token string `json:"token,omitempty"`
	Text  string `json:"text,omitempty"`
	Done  bool   `json:"done,omitempty"`
}

// EmbeddingRequest is the /v1/embeddings payload.
type EmbeddingRequest struct {
	Texts          []string `json:"texts"`
	Prefix         string   `json:"prefix,omitempty"`
	Dimensionality *int     `json:"dimensionality,omitempty"`
	LongTextMode   string   `json:"long_text_mode,omitempty"`
	Atlas          bool     `json:"atlas,omitempty"`
}

// ModelsResponse lists the models known locally and via the catalog.
type ModelsResponse struct {
	Models []ModelConfig `json:"models"`
}

// ErrorResponse is the JSON error payload shape.
type ErrorResponse struct {
	Error string `json:"error"`
	Code  int    `json:"code"`
}
