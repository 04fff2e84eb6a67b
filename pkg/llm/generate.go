package llm

import (
	"context"

	"localllm/pkg/types"
)

// Generate runs one blocking turn and returns the accumulated completion
// text for that turn. cb (optional) sees every fragment as it is produced
// and can stop generation early by returning false. Inside an active chat
// session the user message and the growing assistant reply are recorded in
// the transcript.
func (m *Model) Generate(ctx context.Context, prompt string, params types.SamplingParams, cb types.ResponseCallback) (string, error) {
	m.genMu.Lock()
	defer m.genMu.Unlock()

	text, template, opts, out, err := m.prepareTurn(ctx, prompt, params)
	if err != nil {
		return "", err
	}
	if err := m.engine.Prompt(ctx, text, template, wrapCallback(cb, out), opts); err != nil {
		return "", err
	}
	return out.Content, nil
}

// GenerateStream runs one turn and returns a finite, forward-only channel
// of text fragments, closed when the engine finishes or cb stops it. The
// handle stays locked until the stream is drained or ctx is canceled.
func (m *Model) GenerateStream(ctx context.Context, prompt string, params types.SamplingParams, cb types.ResponseCallback) (<-chan string, error) {
	m.genMu.Lock()

	text, template, opts, out, err := m.prepareTurn(ctx, prompt, params)
	if err != nil {
		m.genMu.Unlock()
		return nil, err
	}
	fragments, err := m.engine.PromptStreaming(ctx, text, template, wrapCallback(cb, out), opts)
	if err != nil {
		m.genMu.Unlock()
		return nil, err
	}

	stream := make(chan string)
	go func() {
		defer m.genMu.Unlock()
		defer close(stream)
		for frag := range fragments {
			select {
			case stream <- frag:
			case <-ctx.Done():
				return
			}
		}
	}()
	return stream, nil
}

// Generate runs one blocking turn within the session.
func (s *Session) Generate(ctx context.Context, prompt string, params types.SamplingParams, cb types.ResponseCallback) (string, error) {
	return s.m.Generate(ctx, prompt, params, cb)
}

// GenerateStream runs one streaming turn within the session.
func (s *Session) GenerateStream(ctx context.Context, prompt string, params types.SamplingParams, cb types.ResponseCallback) (<-chan string, error) {
	return s.m.GenerateStream(ctx, prompt, params, cb)
}

// prepareTurn merges sampling parameters, advances session state, and
// produces the exact engine invocation for this turn.
//
// The first user turn of a session is the reset turn: the engine's prior
// context is discarded and the system message is ingested through a
// zero-output priming call before the visible turn. With the default
// rendering the engine substitutes the user content into the session
// template's slots itself; with a legacy formatter installed the full
// prompt is pre-rendered here and handed over under the trivial template.
func (m *Model) prepareTurn(ctx context.Context, prompt string, params types.SamplingParams) (text, template string, opts types.PromptOptions, out *types.Message, err error) {
	opts = types.PromptOptions{
		Params: params.WithDefaults(),
		Tokens: params.EffectiveTokens(),
	}
	text = prompt
	template = "%1"
	out = &types.Message{Role: types.RoleAssistant}

	if m.history == nil {
		opts.ResetContext = true
		return text, template, opts, out, nil
	}

	reset := len(m.history) == 1
	opts.ResetContext = reset
	m.history = append(m.history, &types.Message{Role: types.RoleUser, Content: prompt})

	if m.formatAll == nil {
		if reset {
			prime := types.PromptOptions{Params: opts.Params, Tokens: 0, Special: true}
			if perr := m.engine.Prompt(ctx, m.history[0].Content, "%1", nil, prime); perr != nil {
				return "", "", opts, nil, perr
			}
		}
		template = expandSlots(m.template)
	} else {
		header := ""
		if reset {
			header = m.history[0].Content
		}
		last := []types.Message{*m.history[len(m.history)-1]}
		text = m.formatAll(m.template, last, header)
	}

	m.history = append(m.history, out)
	return text, template, opts, out, nil
}

// wrapCallback appends every fragment to the output slot before forwarding
// it to the caller's callback.
func wrapCallback(cb types.ResponseCallback, out *types.Message) types.ResponseCallback {
	return func(tokenID int32, response string) bool {
		out.Content += response
		if cb == nil {
			return true
		}
		return cb(tokenID, response)
	}
}
