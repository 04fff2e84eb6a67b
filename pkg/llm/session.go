package llm

import (
	"strings"

	"localllm/internal/catalog"
	"localllm/pkg/types"
)

// Formatter pre-renders transcript messages into raw prompt text, for
// models whose template the engine cannot apply slot-wise. header is the
// system content on the session's first turn and empty afterwards.
//
// A Formatter is a legacy hook: when one is installed the whole prompt is
// rendered here and handed to the engine under the trivial one-slot
// template, instead of letting the engine substitute slots itself.
type Formatter func(template string, messages []types.Message, header string) string

// Session is a handle to an active chat scope on a Model. It is only valid
// inside the function passed to ChatSession.
type Session struct{ m *Model }

// SessionOption configures session entry.
type SessionOption func(*sessionOptions)

type sessionOptions struct {
	systemPrompt   string
	systemSet      bool
	promptTemplate string
	formatter      Formatter
}

// WithSystemPrompt sets the session's system message. Default is the
// catalog-provided system prompt, or empty.
func WithSystemPrompt(s string) SessionOption {
	return func(o *sessionOptions) { o.systemPrompt = s; o.systemSet = true }
}

// WithPromptTemplate sets the per-turn template; {0} marks the user slot.
// Default is the catalog-provided template, falling back to the Alpaca
// style for sideloaded models.
func WithPromptTemplate(t string) SessionOption {
	return func(o *sessionOptions) { o.promptTemplate = t }
}

// WithFormatter installs a legacy free-form rendering hook, selected once
// for the whole session.
func WithFormatter(f Formatter) SessionOption {
	return func(o *sessionOptions) { o.formatter = f }
}

// ChatSession runs fn inside an active chat scope: a transcript is created
// with the system message at index 0 and the template is validated and
// bound. The scope is torn down on every exit path, including a generation
// failure inside fn.
func (m *Model) ChatSession(fn func(*Session) error, opts ...SessionOption) error {
	o := &sessionOptions{}
	for _, opt := range opts {
		opt(o)
	}

	system := o.systemPrompt
	if !o.systemSet {
		system = m.cfg.SystemPrompt
	}
	template := o.promptTemplate
	if template == "" {
		template = m.cfg.PromptTemplate
		if template == "" {
			m.log.Warn().Msg("no prompt template for sideloaded model, defaulting to Alpaca")
			template = catalog.DefaultPromptTemplate
		}
	}
	if err := validateTemplate(template); err != nil {
		return err
	}

	m.history = []*types.Message{{Role: types.RoleSystem, Content: system}}
	m.template = template
	m.formatAll = o.formatter
	defer func() {
		m.history = nil
		m.template = defaultTemplate
		m.formatAll = nil
	}()
	return fn(&Session{m: m})
}

// Transcript returns a snapshot of the session's messages.
func (s *Session) Transcript() []types.Message { return s.m.CurrentChatSession() }

// Model returns the underlying model handle.
func (s *Session) Model() *Model { return s.m }

// validateTemplate rejects a template carrying the engine's reserved %1
// marker as a bare literal: the engine would substitute it a second time.
// %1 followed by another digit (e.g. "%12") is not the marker.
func validateTemplate(template string) error {
	for i := 0; i+1 < len(template); i++ {
		if template[i] != '%' || template[i+1] != '1' {
			continue
		}
		if i+2 >= len(template) || template[i+2] < '0' || template[i+2] > '9' {
			return types.ErrTemplate(
				"prompt template containing a literal '%1' is not supported; use '{0}' as the placeholder")
		}
	}
	return nil
}

// expandSlots rewrites the session template's positional slots to the
// engine's marker convention, first occurrence each.
func expandSlots(template string) string {
	template = strings.Replace(template, "{0}", "%1", 1)
	return strings.Replace(template, "{1}", "%2", 1)
}

// FormatTranscript is the default transcript walk used with a legacy
// formatter-style rendering: the header first (when present), each user
// message through the template, each assistant message verbatim followed
// by a newline.
func FormatTranscript(template string, messages []types.Message, header string) string {
	var b strings.Builder
	if header != "" {
		b.WriteString(header)
		b.WriteString("\n\n")
	}
	for _, msg := range messages {
		switch msg.Role {
		case types.RoleUser:
			b.WriteString(strings.Replace(template, "{0}", msg.Content, 1))
		case types.RoleAssistant:
			b.WriteString(msg.Content)
			b.WriteString("\n")
		}
	}
	return b.String()
}
