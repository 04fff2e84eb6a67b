package llm

import (
	"context"
	"testing"

	"localllm/pkg/types"
)

func TestGenerateWithoutSession(t *testing.T) {
	eng := &fakeEngine{fragments: []string{"Hello", ", ", "world"}}
	m := newTestModel(t, eng)

	out, err := m.Generate(context.Background(), "say hi", types.SamplingParams{}, nil)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "Hello, world" {
		t.Fatalf("output: %q", out)
	}
	if m.CurrentChatSession() != nil {
		t.Fatalf("no transcript should exist outside a session")
	}

	calls := eng.promptCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 engine call, got %d", len(calls))
	}
	if calls[0].template != "%1" || !calls[0].opts.ResetContext {
		t.Fatalf("sessionless call must use the trivial template and reset: %+v", calls[0])
	}
}

func TestGenerateReturnsSingleTurnText(t *testing.T) {
	eng := &fakeEngine{fragments: []string{"two"}}
	m := newTestModel(t, eng)

	err := m.ChatSession(func(s *Session) error {
		if _, err := s.Generate(context.Background(), "a", types.SamplingParams{}, nil); err != nil {
			return err
		}
		out, err := s.Generate(context.Background(), "b", types.SamplingParams{}, nil)
		if err != nil {
			return err
		}
		// The second turn's text only, not the whole transcript.
		if out != "two" {
			t.Fatalf("output: %q", out)
		}
		return nil
	}, WithPromptTemplate("{0}"))
	if err != nil {
		t.Fatalf("session: %v", err)
	}
}

func TestNPredictWinsOverMaxTokens(t *testing.T) {
	eng := &fakeEngine{fragments: []string{"x"}}
	m := newTestModel(t, eng)

	if _, err := m.Generate(context.Background(), "p",
		types.SamplingParams{MaxTokens: 100, NPredict: 5}, nil); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := eng.promptCalls()[0].opts.Tokens; got != 5 {
		t.Fatalf("n_predict must win: got %d", got)
	}

	if _, err := m.Generate(context.Background(), "p",
		types.SamplingParams{MaxTokens: 100}, nil); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := eng.promptCalls()[1].opts.Tokens; got != 100 {
		t.Fatalf("max_tokens cap: got %d", got)
	}

	if _, err := m.Generate(context.Background(), "p", types.SamplingParams{}, nil); err != nil {
		t.Fatalf("generate: %v", err)
	}
	if got := eng.promptCalls()[2].opts.Tokens; got != types.DefaultMaxTokens {
		t.Fatalf("default cap: got %d", got)
	}
}

func TestCallbackStopsGeneration(t *testing.T) {
	eng := &fakeEngine{fragments: []string{"one", "two", "three"}}
	m := newTestModel(t, eng)

	var seen int
	out, err := m.Generate(context.Background(), "p", types.SamplingParams{},
		func(tokenID int32, response string) bool {
			seen++
			return seen < 2
		})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if out != "onetwo" {
		t.Fatalf("accumulated output after stop: %q", out)
	}
	if seen != 2 {
		t.Fatalf("callback invocations: %d", seen)
	}
}

func TestGenerateStreamYieldsFragments(t *testing.T) {
	eng := &fakeEngine{fragments: []string{"a", "b", "c"}}
	m := newTestModel(t, eng)

	err := m.ChatSession(func(s *Session) error {
		stream, err := s.GenerateStream(context.Background(), "p", types.SamplingParams{}, nil)
		if err != nil {
			return err
		}
		var got []string
		for frag := range stream {
			got = append(got, frag)
		}
		if len(got) != 3 || got[0] != "a" || got[2] != "c" {
			t.Fatalf("fragments: %v", got)
		}
		tr := s.Transcript()
		if tr[len(tr)-1].Content != "abc" {
			t.Fatalf("streamed content not accumulated in transcript: %q", tr[len(tr)-1].Content)
		}
		return nil
	}, WithPromptTemplate("{0}"))
	if err != nil {
		t.Fatalf("session: %v", err)
	}
}

func TestGenerateStreamSerializesHandle(t *testing.T) {
	eng := &fakeEngine{fragments: []string{"a"}}
	m := newTestModel(t, eng)

	stream, err := m.GenerateStream(context.Background(), "p", types.SamplingParams{}, nil)
	if err != nil {
		t.Fatalf("stream: %v", err)
	}
	for range stream {
	}
	// The handle unlocks once the stream is drained.
	if _, err := m.Generate(context.Background(), "q", types.SamplingParams{}, nil); err != nil {
		t.Fatalf("generate after stream: %v", err)
	}
}

func TestSamplingDefaultsMerged(t *testing.T) {
	eng := &fakeEngine{fragments: []string{"x"}}
	m := newTestModel(t, eng)

	if _, err := m.Generate(context.Background(), "p",
		types.SamplingParams{TopK: 7}, nil); err != nil {
		t.Fatalf("generate: %v", err)
	}
	p := eng.promptCalls()[0].opts.Params
	if p.TopK != 7 {
		t.Fatalf("explicit top_k lost: %d", p.TopK)
	}
	if p.Temp != types.DefaultTemp || p.NBatch != types.DefaultNBatch {
		t.Fatalf("defaults not merged: %+v", p)
	}
}
