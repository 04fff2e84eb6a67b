package types

import "testing"

func TestEffectiveTokens(t *testing.T) {
	cases := []struct {
		p    SamplingParams
		want int
	}{
		{SamplingParams{}, DefaultMaxTokens},
		{SamplingParams{MaxTokens: 50}, 50},
		{SamplingParams{NPredict: 10}, 10},
		{SamplingParams{MaxTokens: 50, NPredict: 10}, 10},
	}
	for _, c := range cases {
		if got := c.p.EffectiveTokens(); got != c.want {
			t.Fatalf("%+v: got %d want %d", c.p, got, c.want)
		}
	}
}

func TestWithDefaults(t *testing.T) {
	p := SamplingParams{TopK: 3}.WithDefaults()
	if p.TopK != 3 {
		t.Fatalf("explicit value replaced: %d", p.TopK)
	}
	if p.Temp != DefaultTemp || p.TopP != DefaultTopP || p.RepeatPenalty != DefaultRepeatPenalty {
		t.Fatalf("defaults not applied: %+v", p)
	}
	if p.MaxTokens != DefaultMaxTokens || p.NBatch != DefaultNBatch || p.RepeatLastN != DefaultRepeatLastN {
		t.Fatalf("defaults not applied: %+v", p)
	}
}
