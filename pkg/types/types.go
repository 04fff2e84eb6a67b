package types

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is one entry in a chat transcript. Content of the most recent
// assistant message grows in place while the engine streams tokens.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content"`
}

// ModelConfig describes one catalog record plus the locally resolved path.
// Fields other than Path are populated from the remote catalog; Path is
// injected exactly once after the file has been located or downloaded.
type ModelConfig struct {
	Filename       string `json:"filename"`
	Name           string `json:"name,omitempty"`
	URL            string `json:"url,omitempty"`
	SystemPrompt   string `json:"systemPrompt,omitempty"`
	PromptTemplate string `json:"promptTemplate,omitempty"`
	Description    string `json:"description,omitempty"`
	FileSize       int64  `json:"filesize,string,omitempty"`
	Path           string `json:"path,omitempty"`
}

// SamplingParams are the per-call generation knobs handed to the engine.
// Zero values mean "use the default"; NPredict, when set explicitly, wins
// over MaxTokens as the effective token cap.
type SamplingParams struct {
	MaxTokens     int     `json:"max_tokens,omitempty"`
	NPredict      int     `json:"n_predict,omitempty"`
	Temp          float32 `json:"temp,omitempty"`
	TopK          int     `json:"top_k,omitempty"`
	TopP          float32 `json:"top_p,omitempty"`
	MinP          float32 `json:"min_p,omitempty"`
	RepeatPenalty float32 `json:"repeat_penalty,omitempty"`
	RepeatLastN   int     `json:"repeat_last_n,omitempty"`
	NBatch        int     `json:"n_batch,omitempty"`
}

// Default sampling values, applied where a SamplingParams field is zero.
const (
	DefaultMaxTokens     = 200
	DefaultTemp          = 0.7
	DefaultTopK          = 40
	DefaultTopP          = 0.4
	DefaultRepeatPenalty = 1.18
	DefaultRepeatLastN   = 64
	DefaultNBatch        = 8
)

// EffectiveTokens reconciles the legacy NPredict alias with MaxTokens.
func (p SamplingParams) EffectiveTokens() int {
	if p.NPredict > 0 {
		return p.NPredict
	}
	if p.MaxTokens > 0 {
		return p.MaxTokens
	}
	return DefaultMaxTokens
}

// WithDefaults returns a copy with unset fields replaced by the defaults.
func (p SamplingParams) WithDefaults() SamplingParams {
	if p.MaxTokens == 0 {
		p.MaxTokens = DefaultMaxTokens
	}
	if p.Temp == 0 {
		p.Temp = DefaultTemp
	}
	if p.TopK == 0 {
		p.TopK = DefaultTopK
	}
	if p.TopP == 0 {
		p.TopP = DefaultTopP
	}
	if p.RepeatPenalty == 0 {
		p.RepeatPenalty = DefaultRepeatPenalty
	}
	if p.RepeatLastN == 0 {
		p.RepeatLastN = DefaultRepeatLastN
	}
	if p.NBatch == 0 {
		p.NBatch = DefaultNBatch
	}
	return p
}

// EmbedResult carries embeddings plus the number of prompt tokens the
// engine processed to produce them.
type EmbedResult struct {
	Embeddings    [][]float32 `json:"embeddings"`
	NPromptTokens int         `json:"n_prompt_tokens"`
}

// ResponseCallback receives each token as the engine produces it. Returning
// false requests that generation stop; the engine ceases further emission.
type ResponseCallback func(tokenID int32, response string) bool

// PromptOptions is the fully merged per-invocation engine configuration.
// Tokens is the reconciled output cap; 0 makes the call a priming call that
// ingests text without emitting anything.
type PromptOptions struct {
	Params       SamplingParams
	Tokens       int
	ResetContext bool
	Special      bool
}
