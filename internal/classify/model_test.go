package classify

import (
	"context"
	"strings"
	"testing"

	"dirigent/internal/types"
)

// cannedClient satisfies llm.Client with a fixed response.
type cannedClient struct {
	response string
	err      error
	lastUser string
}

func (c *cannedClient) Complete(ctx context.Context, prompt string) (string, error) {
	c.lastUser = prompt
	return c.response, c.err
}

func (c *cannedClient) CompleteWithSystem(ctx context.Context, system, user string) (string, error) {
	c.lastUser = user
	return c.response, c.err
}

func (c *cannedClient) Close() error { return nil }

func TestModelClassifierParsesVerdict(t *testing.T) {
	client := &cannedClient{response: `{
		"intent": "modify_plan",
		"confidence": 0.82,
		"reasoning": "conditional approval",
		"context_factors": {"user_tone": "neutral", "has_conditions": true, "detected_language": "en"}
	}`}

	got, err := NewModelClassifier(client).Classify(context.Background(), "yes, but use postgres",
		activePlan(), nil, types.ClassifyOptions{})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Intent != types.IntentModifyPlan {
		t.Errorf("intent = %s, want modify_plan", got.Intent)
	}
	if got.Confidence != 0.82 {
		t.Errorf("confidence = %v, want 0.82", got.Confidence)
	}
	if !got.Factors.HasConditions {
		t.Error("has_conditions should survive parsing")
	}
}

func TestModelClassifierStripsFences(t *testing.T) {
	client := &cannedClient{response: "```json\n{\"intent\": \"reject\", \"confidence\": 0.9}\n```"}

	got, err := NewModelClassifier(client).Classify(context.Background(), "no", nil, nil, types.ClassifyOptions{})
	if err != nil {
		t.Fatalf("Classify failed: %v", err)
	}
	if got.Intent != types.IntentReject {
		t.Errorf("intent = %s, want reject", got.Intent)
	}
}

func TestModelClassifierRejectsUnknownIntent(t *testing.T) {
	client := &cannedClient{response: `{"intent": "launch_missiles", "confidence": 1.0}`}
	if _, err := NewModelClassifier(client).Classify(context.Background(), "x", nil, nil, types.ClassifyOptions{}); err == nil {
		t.Error("unknown intent must be an error, not passed through")
	}
}

func TestModelClassifierClampsConfidence(t *testing.T) {
	client := &cannedClient{response: `{"intent": "new_request", "confidence": 1.7}`}
	got, err := NewModelClassifier(client).Classify(context.Background(), "x", nil, nil, types.ClassifyOptions{})
	if err != nil {
		t.Fatal(err)
	}
	if got.Confidence != 1.0 {
		t.Errorf("confidence = %v, want clamped to 1.0", got.Confidence)
	}
}

func TestPromptCarriesPlanAndHistory(t *testing.T) {
	client := &cannedClient{response: `{"intent": "uncertain", "confidence": 0.3}`}
	history := []types.ConversationMessage{
		{Role: types.RoleUser, Content: "earlier message"},
	}

	_, err := NewModelClassifier(client).Classify(context.Background(), "hm",
		activePlan(), history, types.ClassifyOptions{DetectSarcasm: true})
	if err != nil {
		t.Fatal(err)
	}

	for _, want := range []string{"Pending plan:", "earlier message", "sarcasm", "User message: hm"} {
		if !strings.Contains(client.lastUser, want) {
			t.Errorf("prompt missing %q:\n%s", want, client.lastUser)
		}
	}
}
