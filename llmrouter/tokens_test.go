package llmrouter

import "testing"

func TestTokenEstimatorCount(t *testing.T) {
	est := NewTokenEstimator()

	if got := est.Count(""); got != 0 {
		t.Errorf("empty text: expected 0 tokens, got %d", got)
	}
	if got := est.Count("Hello, world"); got <= 0 {
		t.Errorf("expected positive count, got %d", got)
	}

	short := est.Count("hi")
	long := est.Count("This is a much longer sentence that should produce more tokens than a greeting.")
	if long <= short {
		t.Errorf("longer text counted %d tokens, shorter counted %d", long, short)
	}
}

func TestTokenEstimatorCountMessages(t *testing.T) {
	est := NewTokenEstimator()

	messages := []Message{
		SystemMessage("You are terse."),
		UserMessage("Hello"),
	}

	var contentOnly int
	for _, m := range messages {
		contentOnly += est.Count(m.Content)
	}

	got := est.CountMessages(messages)
	if got <= contentOnly {
		t.Errorf("expected per-message overhead: CountMessages=%d, content only=%d", got, contentOnly)
	}

	if est.CountMessages(nil) != 0 {
		t.Error("no messages should count zero tokens")
	}
}

func TestEstimateTokensShared(t *testing.T) {
	if got := EstimateTokens("embed this text"); got <= 0 {
		t.Errorf("expected positive estimate, got %d", got)
	}
}
